// Command ledger-cli operates the ledger directly against the configured
// database, bypassing HTTP. It is meant for operators and local testing.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/amirasaad/ledger/infra/initializer"
	"github.com/amirasaad/ledger/pkg/config"
	"github.com/amirasaad/ledger/pkg/domain"
	"github.com/amirasaad/ledger/pkg/domain/account"
	"github.com/amirasaad/ledger/pkg/domain/transaction"
	"github.com/amirasaad/ledger/pkg/service/ledger"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/term"
)

var errUsage = errors.New("usage")

type command struct {
	usage string
	run   func(ctx context.Context, c *cli, args []string) error
}

var commands = map[string]command{
	"migrate":    {"migrate", runMigrate},
	"token":      {"token <user-id>", runToken},
	"open":       {"open [-type T] [-currency C] [-balance B] <user-id>", runOpen},
	"accounts":   {"accounts [-active] <user-id>", runAccounts},
	"deposit":    {"deposit [-description D] <user-id> <account-id> <amount>", runDeposit},
	"withdraw":   {"withdraw [-description D] <user-id> <account-id> <amount>", runWithdraw},
	"transfer":   {"transfer [-description D] <user-id> <account-id> <destination-number> <amount>", runTransfer},
	"suspend":    {"suspend <user-id> <account-id>", statusCommand((*ledger.Service).SuspendAccount)},
	"reactivate": {"reactivate <user-id> <account-id>", statusCommand((*ledger.Service).ReactivateAccount)},
	"deactivate": {"deactivate <user-id> <account-id>", statusCommand((*ledger.Service).DeactivateAccount)},
	"history":    {"history <user-id> <account-id>", runHistory},
	"stats":      {"stats <user-id> <account-id>", runStats},
}

// cli carries the wired dependencies and the output settings.
type cli struct {
	deps  *initializer.Deps
	out   io.Writer
	plain bool
}

func main() {
	plain := !term.IsTerminal(int(os.Stdout.Fd()))
	color.NoColor = color.NoColor || plain
	if err := run(context.Background(), os.Args[1:], os.Stdout, plain); err != nil {
		if !errors.Is(err, errUsage) {
			color.New(color.FgRed).Fprintln(os.Stderr, "Error:", err) //nolint: errcheck
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer, plain bool) error {
	if len(args) == 0 {
		printUsage(out)
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(out, "Unknown command: %s\n", args[0])
		printUsage(out)
		return errUsage
	}

	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("failed to load application configuration: %w", err)
	}
	deps, err := initializer.InitializeDependencies(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close() //nolint: errcheck

	c := &cli{deps: deps, out: out, plain: plain}
	if err := cmd.run(ctx, c, args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(out, "Usage: ledger-cli", cmd.usage)
		}
		return err
	}
	return nil
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "Usage: ledger-cli <command> [arguments]")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintln(out, "  "+commands[name].usage)
	}
}

func runMigrate(_ context.Context, c *cli, _ []string) error {
	c.success("Database schema is up to date (%s)", c.deps.DB.Dialector.Name())
	return nil
}

func runToken(_ context.Context, c *cli, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	userID, err := parseID("user-id", args[0])
	if err != nil {
		return err
	}
	token, err := c.deps.Auth.GenerateToken(userID)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, token)
	return nil
}

func runOpen(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("open", flag.ContinueOnError)
	fs.SetOutput(c.out)
	accType := fs.String("type", "", "account type")
	code := fs.String("currency", "", "currency code")
	balance := fs.String("balance", "", "opening balance")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return errUsage
	}
	userID, err := parseID("user-id", fs.Arg(0))
	if err != nil {
		return err
	}
	cmd := ledger.OpenAccountCommand{UserID: userID, Type: account.Type(*accType), Currency: *code}
	if *balance != "" {
		amount, err := parseAmount(*balance)
		if err != nil {
			return err
		}
		cmd.InitialBalance = amount
	}
	acc, err := c.deps.Ledger.OpenAccount(ctx, cmd)
	if err != nil {
		return err
	}
	c.success("Account opened")
	c.accounts([]*account.Account{acc})
	return nil
}

func runAccounts(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("accounts", flag.ContinueOnError)
	fs.SetOutput(c.out)
	active := fs.Bool("active", false, "only active accounts")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return errUsage
	}
	userID, err := parseID("user-id", fs.Arg(0))
	if err != nil {
		return err
	}
	accounts, err := c.deps.Ledger.ListAccounts(ctx, userID, *active)
	if err != nil {
		return err
	}
	c.accounts(accounts)
	return nil
}

// movementArgs parses [-description D] followed by n positional arguments.
func movementArgs(name string, args []string, n int) (description string, positional []string, err error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	desc := fs.String("description", "", "free text description")
	if err := fs.Parse(args); err != nil || fs.NArg() != n {
		return "", nil, errUsage
	}
	return *desc, fs.Args(), nil
}

func runDeposit(ctx context.Context, c *cli, args []string) error {
	description, pos, err := movementArgs("deposit", args, 3)
	if err != nil {
		return err
	}
	userID, accountID, amount, err := parseMovement(pos[0], pos[1], pos[2])
	if err != nil {
		return err
	}
	tx, err := c.deps.Ledger.Deposit(ctx, ledger.DepositCommand{
		UserID: userID, AccountID: accountID, Amount: amount, Description: description,
	})
	return c.outcome("Deposit", tx, err)
}

func runWithdraw(ctx context.Context, c *cli, args []string) error {
	description, pos, err := movementArgs("withdraw", args, 3)
	if err != nil {
		return err
	}
	userID, accountID, amount, err := parseMovement(pos[0], pos[1], pos[2])
	if err != nil {
		return err
	}
	tx, err := c.deps.Ledger.Withdraw(ctx, ledger.WithdrawCommand{
		UserID: userID, AccountID: accountID, Amount: amount, Description: description,
	})
	return c.outcome("Withdraw", tx, err)
}

func runTransfer(ctx context.Context, c *cli, args []string) error {
	description, pos, err := movementArgs("transfer", args, 4)
	if err != nil {
		return err
	}
	userID, accountID, amount, err := parseMovement(pos[0], pos[1], pos[3])
	if err != nil {
		return err
	}
	tx, err := c.deps.Ledger.Transfer(ctx, ledger.TransferCommand{
		UserID:            userID,
		SourceAccountID:   accountID,
		DestinationNumber: pos[2],
		Amount:            amount,
		Description:       description,
	})
	return c.outcome("Transfer", tx, err)
}

type statusChange func(s *ledger.Service, ctx context.Context, userID, accountID uuid.UUID) (*account.Account, error)

func statusCommand(change statusChange) func(context.Context, *cli, []string) error {
	return func(ctx context.Context, c *cli, args []string) error {
		if len(args) != 2 {
			return errUsage
		}
		userID, accountID, err := parseOwner(args[0], args[1])
		if err != nil {
			return err
		}
		acc, err := change(c.deps.Ledger, ctx, userID, accountID)
		if err != nil {
			return err
		}
		c.success("Account %s is now %s", acc.Number, acc.Status)
		return nil
	}
}

func runHistory(ctx context.Context, c *cli, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	userID, accountID, err := parseOwner(args[0], args[1])
	if err != nil {
		return err
	}
	txs, err := c.deps.Ledger.ListAccountTransactions(ctx, userID, accountID, ledger.TransactionFilter{})
	if err != nil {
		return err
	}
	c.transactions(txs)
	return nil
}

func runStats(ctx context.Context, c *cli, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	userID, accountID, err := parseOwner(args[0], args[1])
	if err != nil {
		return err
	}
	stats, err := c.deps.Ledger.GetTransactionStatistics(ctx, userID, accountID)
	if err != nil {
		return err
	}
	c.table([]string{"METRIC", "VALUE"}, [][]string{
		{"transactions", fmt.Sprint(stats.TotalTransactions)},
		{"deposits", fmt.Sprint(stats.DepositCount)},
		{"withdrawals", fmt.Sprint(stats.WithdrawalCount)},
		{"transfers", fmt.Sprint(stats.TransferCount)},
		{"incoming", stats.TotalIncoming.StringFixed(2)},
		{"outgoing", stats.TotalOutgoing.StringFixed(2)},
		{"net", stats.NetChange.StringFixed(2)},
		{"balance", stats.CurrentBalance.StringFixed(2)},
	})
	return nil
}

// outcome prints a movement result. A failed attempt that was recorded is
// shown alongside the error.
func (c *cli) outcome(op string, tx *transaction.Transaction, err error) error {
	if err != nil {
		if tx != nil {
			color.New(color.FgYellow).Fprintf(c.out, "%s recorded as failed: %s\n", op, tx.Reference) //nolint: errcheck
		}
		return fmt.Errorf("%s failed (%s): %w", strings.ToLower(op), domain.KindOf(err), err)
	}
	c.success("%s successful", op)
	c.transactions([]*transaction.Transaction{tx})
	return nil
}

func (c *cli) success(format string, args ...any) {
	color.New(color.FgGreen, color.Bold).Fprintf(c.out, format+"\n", args...) //nolint: errcheck
}

func (c *cli) accounts(accounts []*account.Account) {
	rows := make([][]string, 0, len(accounts))
	for _, acc := range accounts {
		rows = append(rows, []string{
			acc.ID.String(), acc.Number, string(acc.Type), string(acc.Status),
			acc.Balance.StringFixed(2), acc.Currency.String(),
		})
	}
	c.table([]string{"ID", "NUMBER", "TYPE", "STATUS", "BALANCE", "CURRENCY"}, rows)
}

func (c *cli) transactions(txs []*transaction.Transaction) {
	rows := make([][]string, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, []string{
			tx.Reference, string(tx.Type), string(tx.Status),
			tx.Amount.StringFixed(2), tx.Currency.String(), tx.FailureReason,
		})
	}
	c.table([]string{"REFERENCE", "TYPE", "STATUS", "AMOUNT", "CURRENCY", "REASON"}, rows)
}

// table renders aligned columns on a terminal and tab separated values
// otherwise.
func (c *cli) table(header []string, rows [][]string) {
	if c.plain {
		for _, row := range rows {
			fmt.Fprintln(c.out, strings.Join(row, "\t"))
		}
		return
	}
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, color.New(color.Bold).Sprint(strings.Join(header, "\t")))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

func parseID(name, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return id, nil
}

func parseOwner(rawUser, rawAccount string) (userID, accountID uuid.UUID, err error) {
	if userID, err = parseID("user-id", rawUser); err != nil {
		return
	}
	accountID, err = parseID("account-id", rawAccount)
	return
}

func parseAmount(raw string) (*decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return &amount, nil
}

func parseMovement(rawUser, rawAccount, rawAmount string) (userID, accountID uuid.UUID, amount *decimal.Decimal, err error) {
	if userID, accountID, err = parseOwner(rawUser, rawAccount); err != nil {
		return
	}
	amount, err = parseAmount(rawAmount)
	return
}

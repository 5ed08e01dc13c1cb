package account

import (
	"context"

	"github.com/amirasaad/ledger/pkg/config"
	"github.com/amirasaad/ledger/pkg/domain/account"
	"github.com/amirasaad/ledger/pkg/domain/transaction"
	"github.com/amirasaad/ledger/pkg/middleware"
	authsvc "github.com/amirasaad/ledger/pkg/service/auth"
	"github.com/amirasaad/ledger/pkg/service/ledger"
	"github.com/amirasaad/ledger/webapi/common"
	txapi "github.com/amirasaad/ledger/webapi/transaction"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

// Routes registers HTTP routes for account operations. Every route requires
// a bearer token.
//
// Routes:
//   - POST /accounts                                 : open an account.
//   - GET  /accounts                                 : list the caller's accounts (?active=true).
//   - GET  /accounts/statistics                      : account statistics.
//   - GET  /accounts/balance                         : total balance over active accounts.
//   - GET  /accounts/number/:number                  : look up by account number.
//   - GET  /accounts/:id                             : read one account.
//   - POST /accounts/:id/deposit|withdraw|transfer   : money movement.
//   - POST /accounts/:id/suspend|reactivate|deactivate : status changes.
//   - GET  /accounts/:id/transactions[/statistics]   : history of one account.
func Routes(app *fiber.App, svc *ledger.Service, authSvc *authsvc.Service, cfg *config.App) {
	protected := middleware.JwtProtected(cfg.Auth.Jwt)
	g := app.Group("/accounts", protected)

	g.Post("/", OpenAccount(svc, authSvc))
	g.Get("/", ListAccounts(svc, authSvc))
	g.Get("/statistics", GetStatistics(svc, authSvc))
	g.Get("/balance", GetTotalBalance(svc, authSvc))
	g.Get("/number/:number", GetAccountByNumber(svc, authSvc))
	g.Get("/:id", GetAccount(svc, authSvc))

	g.Post("/:id/deposit", Deposit(svc, authSvc))
	g.Post("/:id/withdraw", Withdraw(svc, authSvc))
	g.Post("/:id/transfer", Transfer(svc, authSvc))

	g.Post("/:id/suspend", ChangeStatus(svc.SuspendAccount, authSvc, "Account suspended"))
	g.Post("/:id/reactivate", ChangeStatus(svc.ReactivateAccount, authSvc, "Account reactivated"))
	g.Post("/:id/deactivate", ChangeStatus(svc.DeactivateAccount, authSvc, "Account deactivated"))

	g.Get("/:id/transactions", ListTransactions(svc, authSvc))
	g.Get("/:id/transactions/statistics", GetTransactionStatistics(svc, authSvc))
}

// OpenAccount returns a handler opening an account for the caller.
func OpenAccount(svc *ledger.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok, err := common.CurrentUserID(c, authSvc)
		if !ok {
			return err
		}
		input, err := common.BindAndValidate[OpenAccountRequest](c)
		if input == nil {
			return err
		}
		cmd := toCommand(input)
		cmd.UserID = userID
		acc, err := svc.OpenAccount(c.UserContext(), cmd)
		if err != nil {
			log.Errorf("Failed to open account: %v", err)
			return common.ProblemDetailsJSON(c, "Failed to open account", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Account opened", ToAccountDTO(acc))
	}
}

// ListAccounts returns a handler listing the caller's accounts, newest first.
func ListAccounts(svc *ledger.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok, err := common.CurrentUserID(c, authSvc)
		if !ok {
			return err
		}
		accounts, err := svc.ListAccounts(c.UserContext(), userID, c.QueryBool("active"))
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to list accounts", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Accounts fetched", toAccountDTOs(accounts))
	}
}

// GetAccount returns a handler reading one owned account.
func GetAccount(svc *ledger.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok, err := common.CurrentUserID(c, authSvc)
		if !ok {
			return err
		}
		id, ok, err := common.ParseUUIDParam(c, "id")
		if !ok {
			return err
		}
		acc, err := svc.GetAccount(c.UserContext(), userID, id)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to fetch account", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Account fetched", ToAccountDTO(acc))
	}
}

// GetAccountByNumber returns a handler reading an owned account by number.
func GetAccountByNumber(svc *ledger.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok, err := common.CurrentUserID(c, authSvc)
		if !ok {
			return err
		}
		acc, err := svc.GetAccountByNumber(c.UserContext(), userID, c.Params("number"))
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to fetch account", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Account fetched", ToAccountDTO(acc))
	}
}

// GetStatistics returns a handler summarizing the caller's accounts.
func GetStatistics(svc *ledger.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok, err := common.CurrentUserID(c, authSvc)
		if !ok {
			return err
		}
		stats, err := svc.GetAccountStatistics(c.UserContext(), userID)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to compute statistics", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Account statistics", stats)
	}
}

// GetTotalBalance returns a handler summing the caller's active balances.
func GetTotalBalance(svc *ledger.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok, err := common.CurrentUserID(c, authSvc)
		if !ok {
			return err
		}
		total, err := svc.GetTotalBalance(c.UserContext(), userID)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to compute balance", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Total balance", BalanceDTO{TotalBalance: total.StringFixed(2)})
	}
}

// Deposit returns a handler crediting an owned account.
func Deposit(svc *ledger.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok, err := common.CurrentUserID(c, authSvc)
		if !ok {
			return err
		}
		id, ok, err := common.ParseUUIDParam(c, "id")
		if !ok {
			return err
		}
		input, err := common.BindAndValidate[MovementRequest](c)
		if input == nil {
			return err
		}
		tx, err := svc.Deposit(c.UserContext(), ledger.DepositCommand{
			UserID:      userID,
			AccountID:   id,
			Amount:      input.Amount,
			Description: input.Description,
		})
		if err != nil {
			return movementFailed(c, "Deposit failed", tx, err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Deposit successful", txapi.ToTransactionDTO(tx))
	}
}

// Withdraw returns a handler debiting an owned account.
func Withdraw(svc *ledger.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok, err := common.CurrentUserID(c, authSvc)
		if !ok {
			return err
		}
		id, ok, err := common.ParseUUIDParam(c, "id")
		if !ok {
			return err
		}
		input, err := common.BindAndValidate[MovementRequest](c)
		if input == nil {
			return err
		}
		tx, err := svc.Withdraw(c.UserContext(), ledger.WithdrawCommand{
			UserID:      userID,
			AccountID:   id,
			Amount:      input.Amount,
			Description: input.Description,
		})
		if err != nil {
			return movementFailed(c, "Withdraw failed", tx, err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Withdrawal successful", txapi.ToTransactionDTO(tx))
	}
}

// Transfer returns a handler moving money from an owned account to any
// account number.
func Transfer(svc *ledger.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok, err := common.CurrentUserID(c, authSvc)
		if !ok {
			return err
		}
		id, ok, err := common.ParseUUIDParam(c, "id")
		if !ok {
			return err
		}
		input, err := common.BindAndValidate[TransferRequest](c)
		if input == nil {
			return err
		}
		tx, err := svc.Transfer(c.UserContext(), ledger.TransferCommand{
			UserID:            userID,
			SourceAccountID:   id,
			DestinationNumber: input.DestinationAccountNumber,
			Amount:            input.Amount,
			Description:       input.Description,
		})
		if err != nil {
			return movementFailed(c, "Transfer failed", tx, err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Transfer successful", txapi.ToTransactionDTO(tx))
	}
}

// movementFailed writes the problem for a failed movement. When the attempt
// was recorded, the failed transaction travels with it so the caller learns
// its reference.
func movementFailed(c *fiber.Ctx, title string, tx *transaction.Transaction, err error) error {
	log.Errorf("%s: %v", title, err)
	if tx == nil {
		return common.ProblemDetailsJSON(c, title, err)
	}
	return common.ProblemDetailsJSON(c, title, err, common.WithTransaction(txapi.ToTransactionDTO(tx)))
}

type statusChange func(ctx context.Context, userID, accountID uuid.UUID) (*account.Account, error)

// ChangeStatus returns a handler applying a status transition.
func ChangeStatus(change statusChange, authSvc *authsvc.Service, message string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok, err := common.CurrentUserID(c, authSvc)
		if !ok {
			return err
		}
		id, ok, err := common.ParseUUIDParam(c, "id")
		if !ok {
			return err
		}
		acc, err := change(c.UserContext(), userID, id)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Status change failed", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, message, ToAccountDTO(acc))
	}
}

// ListTransactions returns a handler listing one account's history.
func ListTransactions(svc *ledger.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok, err := common.CurrentUserID(c, authSvc)
		if !ok {
			return err
		}
		id, ok, err := common.ParseUUIDParam(c, "id")
		if !ok {
			return err
		}
		filter, ok, err := txapi.ParseFilter(c)
		if !ok {
			return err
		}
		txs, err := svc.ListAccountTransactions(c.UserContext(), userID, id, filter)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to list transactions", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Transactions fetched", txapi.ToTransactionDTOs(txs))
	}
}

// GetTransactionStatistics returns a handler summarizing one account's
// history.
func GetTransactionStatistics(svc *ledger.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok, err := common.CurrentUserID(c, authSvc)
		if !ok {
			return err
		}
		id, ok, err := common.ParseUUIDParam(c, "id")
		if !ok {
			return err
		}
		stats, err := svc.GetTransactionStatistics(c.UserContext(), userID, id)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to compute statistics", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Transaction statistics", stats)
	}
}

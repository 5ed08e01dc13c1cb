package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/amirasaad/ledger/pkg/domain"
	"github.com/amirasaad/ledger/pkg/domain/account"
	"github.com/amirasaad/ledger/pkg/domain/events"
	"github.com/amirasaad/ledger/pkg/domain/transaction"
	"github.com/amirasaad/ledger/pkg/repository"
	"github.com/google/uuid"
)

const (
	defaultDepositDescription    = "Deposit to account"
	defaultWithdrawalDescription = "Withdrawal from account"
	defaultTransferDescription   = "Transfer to %s"
)

// applyFunc mutates the locked accounts of a movement. src or dst is nil when
// the transaction type has no such side.
type applyFunc func(src, dst *account.Account) error

// Deposit credits an owned, active account.
//
// On an atomic step failure the returned transaction is the persisted failed
// record and err carries the reason.
func (s *Service) Deposit(ctx context.Context, cmd DepositCommand) (*transaction.Transaction, error) {
	logger := s.logger.With("op", "Deposit", "userID", cmd.UserID, "accountID", cmd.AccountID)
	logger.Info("Deposit started")

	if err := s.limits.Require(cmd.Amount); err != nil {
		logger.Warn("Deposit failed: invalid amount", "error", err)
		return nil, err
	}
	amount := *cmd.Amount

	acc, err := s.loadAccount(ctx, cmd.AccountID)
	if err != nil {
		logger.Warn("Deposit failed: account lookup", "error", err)
		return nil, err
	}
	if err := s.policy.CanOperate(cmd.UserID, acc); err != nil {
		logger.Warn("Deposit failed: unauthorized", "error", err)
		return nil, err
	}
	if err := acc.EnsureOperable(); err != nil {
		logger.Warn("Deposit failed: account not operable", "error", err)
		return nil, err
	}

	ref, err := s.allocateReference(ctx)
	if err != nil {
		logger.Error("Deposit failed: reference allocation", "error", err)
		return nil, err
	}
	description := orDefault(cmd.Description, defaultDepositDescription)
	tx := transaction.NewDeposit(ref, acc, amount, description, s.now())

	return s.execute(ctx, "Deposit", logger.With("reference", ref), cmd.UserID, tx, func(_, dst *account.Account) error {
		return dst.Credit(amount)
	})
}

// Withdraw debits an owned, active account. The funds check happens inside the
// atomic step on the locked row.
func (s *Service) Withdraw(ctx context.Context, cmd WithdrawCommand) (*transaction.Transaction, error) {
	logger := s.logger.With("op", "Withdraw", "userID", cmd.UserID, "accountID", cmd.AccountID)
	logger.Info("Withdraw started")

	if err := s.limits.Require(cmd.Amount); err != nil {
		logger.Warn("Withdraw failed: invalid amount", "error", err)
		return nil, err
	}
	amount := *cmd.Amount

	acc, err := s.loadAccount(ctx, cmd.AccountID)
	if err != nil {
		logger.Warn("Withdraw failed: account lookup", "error", err)
		return nil, err
	}
	if err := s.policy.CanOperate(cmd.UserID, acc); err != nil {
		logger.Warn("Withdraw failed: unauthorized", "error", err)
		return nil, err
	}
	if err := acc.EnsureOperable(); err != nil {
		logger.Warn("Withdraw failed: account not operable", "error", err)
		return nil, err
	}

	ref, err := s.allocateReference(ctx)
	if err != nil {
		logger.Error("Withdraw failed: reference allocation", "error", err)
		return nil, err
	}
	description := orDefault(cmd.Description, defaultWithdrawalDescription)
	tx := transaction.NewWithdrawal(ref, acc, amount, description, s.now())

	return s.execute(ctx, "Withdraw", logger.With("reference", ref), cmd.UserID, tx, func(src, _ *account.Account) error {
		return src.Debit(amount)
	})
}

// Transfer moves money between two accounts of the same currency. Only the
// source has to be owned by the caller.
func (s *Service) Transfer(ctx context.Context, cmd TransferCommand) (*transaction.Transaction, error) {
	logger := s.logger.With("op", "Transfer", "userID", cmd.UserID,
		"sourceAccountID", cmd.SourceAccountID, "destinationNumber", cmd.DestinationNumber)
	logger.Info("Transfer started")

	if err := s.limits.Require(cmd.Amount); err != nil {
		logger.Warn("Transfer failed: invalid amount", "error", err)
		return nil, err
	}
	amount := *cmd.Amount

	destinationNumber := strings.TrimSpace(cmd.DestinationNumber)
	if destinationNumber == "" {
		err := domain.NewError(domain.KindInvalidAmount, "destination account number is required")
		logger.Warn("Transfer failed: missing destination", "error", err)
		return nil, err
	}

	src, err := s.loadAccount(ctx, cmd.SourceAccountID)
	if err != nil {
		logger.Warn("Transfer failed: source lookup", "error", err)
		return nil, err
	}
	dst, err := s.loadAccountByNumber(ctx, destinationNumber)
	if err != nil {
		logger.Warn("Transfer failed: destination lookup", "error", err)
		return nil, err
	}
	if src.ID == dst.ID {
		logger.Warn("Transfer failed: same account")
		return nil, domain.ErrSameAccountTransfer
	}
	if err := s.policy.CanOperate(cmd.UserID, src); err != nil {
		logger.Warn("Transfer failed: unauthorized", "error", err)
		return nil, err
	}
	if err := src.EnsureOperable(); err != nil {
		logger.Warn("Transfer failed: source not operable", "error", err)
		return nil, err
	}
	if err := dst.EnsureOperable(); err != nil {
		logger.Warn("Transfer failed: destination not operable", "error", err)
		return nil, err
	}
	if err := sameCurrency(src, dst); err != nil {
		logger.Warn("Transfer failed: currency mismatch", "error", err)
		return nil, err
	}

	ref, err := s.allocateReference(ctx)
	if err != nil {
		logger.Error("Transfer failed: reference allocation", "error", err)
		return nil, err
	}
	description := orDefault(cmd.Description, fmt.Sprintf(defaultTransferDescription, dst.Number))
	tx, err := transaction.NewTransfer(ref, src, dst, amount, description, s.now())
	if err != nil {
		return nil, err
	}

	return s.execute(ctx, "Transfer", logger.With("reference", ref), cmd.UserID, tx, func(src, dst *account.Account) error {
		if err := sameCurrency(src, dst); err != nil {
			return err
		}
		if err := src.Debit(amount); err != nil {
			return err
		}
		return dst.Credit(amount)
	})
}

// execute runs the atomic step for a pending transaction and records the
// outcome.
func (s *Service) execute(
	ctx context.Context,
	op string,
	logger *slog.Logger,
	userID uuid.UUID,
	tx *transaction.Transaction,
	apply applyFunc,
) (*transaction.Transaction, error) {
	unlock, err := s.locks.lock(ctx, involvedAccounts(tx)...)
	if err != nil {
		logger.Warn(op+" aborted: context done", "error", err)
		return nil, err
	}
	var completed *transaction.Transaction
	err = s.insertWithReference(ctx, tx, func() (err error) {
		completed, err = s.commit(ctx, tx, apply)
		return err
	})
	unlock()

	if err == nil {
		logger.Info(op+" successful", "transactionID", completed.ID)
		s.emit(ctx, logger, events.NewTransactionCompleted(completed, userID))
		return completed, nil
	}

	if errors.Is(err, domain.ErrIdentifierAllocationFailed) {
		logger.Error(op+" failed: reference allocation", "error", err)
		return nil, err
	}
	cause := classifyFailure(err)
	if ctx.Err() != nil {
		logger.Warn(op+" aborted: context done", "error", err)
		return nil, cause
	}
	if ferr := tx.Fail(failureReason(err), s.now()); ferr != nil {
		return nil, errors.Join(cause, ferr)
	}
	if rerr := s.insertWithReference(ctx, tx, func() error { return s.recordFailure(ctx, tx) }); rerr != nil {
		logger.Error(op+" failed: could not record failure", "error", rerr, "cause", err)
		return nil, errors.Join(cause, rerr)
	}
	logger.Warn(op+" failed", "error", err, "transactionID", tx.ID)
	s.emit(ctx, logger, events.NewTransactionFailed(tx, userID))
	return tx, cause
}

// commit re-reads the accounts with row locks, re-checks them, applies the
// mutation and inserts the completed transaction in one unit of work. tx only
// receives the before-snapshots taken under lock, so a failed record reports
// the balances the attempt actually saw; the completed copy is returned.
func (s *Service) commit(ctx context.Context, tx *transaction.Transaction, apply applyFunc) (*transaction.Transaction, error) {
	var done transaction.Transaction
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		accounts, err := uow.AccountRepository()
		if err != nil {
			return err
		}
		txs, err := uow.TransactionRepository()
		if err != nil {
			return err
		}

		src, err := lockAccount(ctx, accounts, tx.SourceAccountID)
		if err != nil {
			return err
		}
		dst, err := lockAccount(ctx, accounts, tx.DestinationAccountID)
		if err != nil {
			return err
		}
		tx.Snapshot(src, dst)
		for _, acc := range []*account.Account{src, dst} {
			if acc == nil {
				continue
			}
			if err := acc.EnsureOperable(); err != nil {
				return err
			}
		}

		done = *tx
		if err := apply(src, dst); err != nil {
			return err
		}
		if err := done.Complete(src, dst, s.now()); err != nil {
			return err
		}
		for _, acc := range []*account.Account{src, dst} {
			if acc == nil {
				continue
			}
			if err := accounts.Update(ctx, acc); err != nil {
				return err
			}
		}
		return txs.Create(ctx, &done)
	})
	if err != nil {
		return nil, err
	}
	return &done, nil
}

func lockAccount(ctx context.Context, repo repository.AccountRepository, id *uuid.UUID) (*account.Account, error) {
	if id == nil {
		return nil, nil
	}
	acc, err := repo.GetForUpdate(ctx, *id)
	if err != nil {
		return nil, accountLookupError(err, "account %s not found", *id)
	}
	return acc, nil
}

// recordFailure persists a failed transaction in its own unit of work, after
// the atomic step has been rolled back.
func (s *Service) recordFailure(ctx context.Context, tx *transaction.Transaction) error {
	return s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		txs, err := uow.TransactionRepository()
		if err != nil {
			return err
		}
		return txs.Create(ctx, tx)
	})
}

// insertWithReference runs insert and, when the reference of tx was taken by a
// concurrent writer in the meantime, allocates a fresh one and tries again.
func (s *Service) insertWithReference(ctx context.Context, tx *transaction.Transaction, insert func() error) error {
	first := true
	return retryOnClash(s.references.MaxAttempts(), "transaction reference", func() error {
		if !first {
			ref, err := s.allocateReference(ctx)
			if err != nil {
				return err
			}
			tx.Reference = ref
		}
		first = false
		return insert()
	})
}

func (s *Service) allocateReference(ctx context.Context) (string, error) {
	repo, err := s.uow.TransactionRepository()
	if err != nil {
		return "", err
	}
	return s.references.Generate(ctx, repo.ExistsByReference)
}

// classifyFailure keeps business kinds raised inside the atomic step and
// wraps everything else, serialization conflicts included, as
// TransactionFailed.
func classifyFailure(err error) error {
	switch domain.KindOf(err) {
	case domain.KindInsufficientFunds,
		domain.KindAccountNotFound,
		domain.KindAccountInactive,
		domain.KindAccountSuspended,
		domain.KindInvalidCurrency:
		return err
	}
	return domain.Wrap(domain.KindTransactionFailed, err, "transaction failed")
}

func failureReason(err error) string {
	var de *domain.Error
	if errors.As(err, &de) {
		return de.Message
	}
	if errors.Is(err, domain.ErrConflict) {
		return "concurrent update conflict"
	}
	return err.Error()
}

func sameCurrency(src, dst *account.Account) error {
	if src.Currency != dst.Currency {
		return domain.Errorf(domain.KindInvalidCurrency,
			"currency mismatch: source account is %s, destination account is %s", src.Currency, dst.Currency)
	}
	return nil
}

func involvedAccounts(tx *transaction.Transaction) []uuid.UUID {
	ids := make([]uuid.UUID, 0, 2)
	if tx.SourceAccountID != nil {
		ids = append(ids, *tx.SourceAccountID)
	}
	if tx.DestinationAccountID != nil {
		ids = append(ids, *tx.DestinationAccountID)
	}
	return ids
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

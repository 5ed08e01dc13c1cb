package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/amirasaad/ledger/pkg/currency"
	"github.com/amirasaad/ledger/pkg/domain"
	"github.com/amirasaad/ledger/pkg/domain/account"
	"github.com/amirasaad/ledger/pkg/domain/events"
	"github.com/amirasaad/ledger/pkg/money"
	"github.com/amirasaad/ledger/pkg/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OpenAccount creates an account for cmd.UserID with a freshly allocated
// number.
func (s *Service) OpenAccount(ctx context.Context, cmd OpenAccountCommand) (*account.Account, error) {
	logger := s.logger.With("op", "OpenAccount", "userID", cmd.UserID)
	logger.Info("OpenAccount started")

	if cmd.UserID == uuid.Nil {
		return nil, domain.ErrUnauthorizedOperation
	}
	code := s.defaultCurrency
	if raw := strings.TrimSpace(cmd.Currency); raw != "" {
		if !currency.IsValidFormat(raw) {
			err := domain.Errorf(domain.KindInvalidCurrency, "invalid currency code %q", raw)
			logger.Warn("OpenAccount failed: invalid currency", "error", err)
			return nil, err
		}
		code = currency.Code(raw)
	}
	typ := cmd.Type
	if typ == "" {
		typ = account.TypeChecking
	}
	if !typ.Valid() {
		logger.Warn("OpenAccount failed: invalid type", "type", typ)
		return nil, account.ErrInvalidType
	}
	balance := decimal.Zero
	if cmd.InitialBalance != nil {
		if err := money.ValidateOpeningBalance(*cmd.InitialBalance); err != nil {
			logger.Warn("OpenAccount failed: invalid opening balance", "error", err)
			return nil, err
		}
		balance = *cmd.InitialBalance
	}

	var acc *account.Account
	err := retryOnClash(s.accountNumbers.MaxAttempts(), "account number", func() error {
		var err error
		acc, err = s.createAccount(ctx, cmd.UserID, typ, code, balance)
		return err
	})
	if err != nil {
		logger.Error("OpenAccount failed", "error", err)
		return nil, err
	}
	logger.Info("OpenAccount successful", "accountID", acc.ID, "number", acc.Number)
	return acc, nil
}

// createAccount allocates a number and inserts the account in one unit of
// work.
func (s *Service) createAccount(
	ctx context.Context,
	userID uuid.UUID,
	typ account.Type,
	code currency.Code,
	balance decimal.Decimal,
) (*account.Account, error) {
	var acc *account.Account
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		repo, err := uow.AccountRepository()
		if err != nil {
			return err
		}
		number, err := s.accountNumbers.Generate(ctx, repo.ExistsByNumber)
		if err != nil {
			return err
		}
		now := s.now()
		acc, err = account.New().
			WithNumber(number).
			WithUserID(userID).
			WithType(typ).
			WithCurrency(code).
			WithBalance(balance).
			WithCreatedAt(now).
			WithUpdatedAt(now).
			Build()
		if err != nil {
			return err
		}
		return repo.Create(ctx, acc)
	})
	return acc, err
}

// GetAccount returns an account owned by userID.
func (s *Service) GetAccount(ctx context.Context, userID, accountID uuid.UUID) (*account.Account, error) {
	acc, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.CanOperate(userID, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// GetAccountByNumber returns the account with number if userID owns it.
func (s *Service) GetAccountByNumber(ctx context.Context, userID uuid.UUID, number string) (*account.Account, error) {
	acc, err := s.loadAccountByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if err := s.policy.CanOperate(userID, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// ListAccounts returns the caller's accounts, newest first.
func (s *Service) ListAccounts(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]*account.Account, error) {
	repo, err := s.uow.AccountRepository()
	if err != nil {
		return nil, err
	}
	var filter repository.AccountFilter
	if activeOnly {
		filter.Status = account.StatusActive
	}
	return repo.ListByUser(ctx, userID, filter)
}

// GetTotalBalance sums the balances of the caller's active accounts.
func (s *Service) GetTotalBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	summary, err := s.summary(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return summary.ActiveBalance, nil
}

// GetAccountStatistics reports how many accounts the caller has, how many are
// active and the total active balance.
func (s *Service) GetAccountStatistics(ctx context.Context, userID uuid.UUID) (*AccountStatistics, error) {
	summary, err := s.summary(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &AccountStatistics{
		TotalAccounts:  summary.TotalAccounts,
		ActiveAccounts: summary.ActiveAccounts,
		TotalBalance:   summary.ActiveBalance,
		Timestamp:      s.now(),
	}, nil
}

func (s *Service) summary(ctx context.Context, userID uuid.UUID) (*repository.AccountSummary, error) {
	repo, err := s.uow.AccountRepository()
	if err != nil {
		return nil, err
	}
	return repo.Summary(ctx, userID)
}

// SuspendAccount blocks money movement on an active account.
func (s *Service) SuspendAccount(ctx context.Context, userID, accountID uuid.UUID) (*account.Account, error) {
	return s.changeStatus(ctx, "SuspendAccount", userID, accountID, func(acc *account.Account) error {
		return acc.Suspend()
	})
}

// ReactivateAccount returns a suspended or inactive account to active.
func (s *Service) ReactivateAccount(ctx context.Context, userID, accountID uuid.UUID) (*account.Account, error) {
	return s.changeStatus(ctx, "ReactivateAccount", userID, accountID, func(acc *account.Account) error {
		return acc.Reactivate()
	})
}

// DeactivateAccount closes an active account whose balance is exactly zero.
func (s *Service) DeactivateAccount(ctx context.Context, userID, accountID uuid.UUID) (*account.Account, error) {
	return s.changeStatus(ctx, "DeactivateAccount", userID, accountID, func(acc *account.Account) error {
		return acc.Deactivate(s.now())
	})
}

// changeStatus runs a status transition under the same account lock and row
// lock as balance mutations.
func (s *Service) changeStatus(
	ctx context.Context,
	op string,
	userID, accountID uuid.UUID,
	transition func(*account.Account) error,
) (*account.Account, error) {
	logger := s.logger.With("op", op, "userID", userID, "accountID", accountID)
	logger.Info(op + " started")

	acc, err := s.loadAccount(ctx, accountID)
	if err != nil {
		logger.Warn(op+" failed: account lookup", "error", err)
		return nil, err
	}
	if err := s.policy.CanOperate(userID, acc); err != nil {
		logger.Warn(op+" failed: unauthorized", "error", err)
		return nil, err
	}

	unlock, err := s.locks.lock(ctx, accountID)
	if err != nil {
		logger.Warn(op+" aborted: context done", "error", err)
		return nil, err
	}
	defer unlock()

	var (
		updated *account.Account
		from    account.Status
	)
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		repo, err := uow.AccountRepository()
		if err != nil {
			return err
		}
		locked, err := lockAccount(ctx, repo, &accountID)
		if err != nil {
			return err
		}
		from = locked.Status
		if err := transition(locked); err != nil {
			return err
		}
		updated = locked
		return repo.Update(ctx, locked)
	})
	if err != nil {
		if domain.KindOf(err) == domain.KindUnknown || errors.Is(err, domain.ErrConflict) {
			err = domain.Wrap(domain.KindTransactionFailed, err, op+" failed")
		}
		logger.Warn(op+" failed", "error", err)
		return nil, err
	}

	logger.Info(op+" successful", "from", from, "to", updated.Status)
	s.emit(ctx, logger, &events.AccountStatusChanged{
		AccountID:  updated.ID,
		Number:     updated.Number,
		UserID:     updated.UserID,
		From:       from,
		To:         updated.Status,
		OccurredAt: updated.UpdatedAt,
	})
	return updated, nil
}

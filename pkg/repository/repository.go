package repository

import (
	"context"
	"time"

	"github.com/amirasaad/ledger/pkg/domain/account"
	"github.com/amirasaad/ledger/pkg/domain/transaction"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountFilter narrows account listings. Zero values mean no restriction.
type AccountFilter struct {
	Status account.Status
}

// AccountSummary aggregates the accounts of one owner.
type AccountSummary struct {
	TotalAccounts  int64
	ActiveAccounts int64
	// ActiveBalance is the sum of balances over active accounts only.
	ActiveBalance decimal.Decimal
}

// AccountRepository defines the interface for account data access operations.
type AccountRepository interface {
	Create(ctx context.Context, acc *account.Account) error
	Get(ctx context.Context, id uuid.UUID) (*account.Account, error)
	// GetForUpdate reads the account and holds a row lock until the
	// surrounding unit of work ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*account.Account, error)
	GetByNumber(ctx context.Context, number string) (*account.Account, error)
	ExistsByNumber(ctx context.Context, number string) (bool, error)
	Update(ctx context.Context, acc *account.Account) error
	// ListByUser returns the owner's accounts, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, filter AccountFilter) ([]*account.Account, error)
	Summary(ctx context.Context, userID uuid.UUID) (*AccountSummary, error)
}

// TransactionFilter narrows transaction listings. Zero values mean no
// restriction; From and To are inclusive.
type TransactionFilter struct {
	Type   transaction.Type
	Status transaction.Status
	From   *time.Time
	To     *time.Time
}

// TransactionStats aggregates the history of one account. Amount totals only
// count completed transactions; counts include every status.
type TransactionStats struct {
	TotalTransactions int64
	DepositCount      int64
	WithdrawalCount   int64
	TransferCount     int64
	TotalIncoming     decimal.Decimal
	TotalOutgoing     decimal.Decimal
}

// TransactionRepository defines the interface for the append-oriented
// transaction log.
type TransactionRepository interface {
	Create(ctx context.Context, tx *transaction.Transaction) error
	Get(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error)
	GetByReference(ctx context.Context, reference string) (*transaction.Transaction, error)
	ExistsByReference(ctx context.Context, reference string) (bool, error)
	// ListByAccounts returns transactions where any of accountIDs is source
	// or destination, newest first.
	ListByAccounts(ctx context.Context, accountIDs []uuid.UUID, filter TransactionFilter) ([]*transaction.Transaction, error)
	Stats(ctx context.Context, accountID uuid.UUID) (*TransactionStats, error)
}

package repository

import (
	"context"
	"time"

	"github.com/amirasaad/ledger/pkg/currency"
	"github.com/amirasaad/ledger/pkg/domain/transaction"
	"github.com/amirasaad/ledger/pkg/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Transaction represents a persisted transaction log row.
type Transaction struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Reference   string          `gorm:"type:varchar(40);uniqueIndex;not null"`
	Type        string          `gorm:"type:varchar(16);not null;index"`
	Amount      decimal.Decimal `gorm:"type:numeric(19,2);not null"`
	Currency    string          `gorm:"type:varchar(3);not null"`
	Description string          `gorm:"type:varchar(500)"`
	Status      string          `gorm:"type:varchar(16);not null;index"`

	SourceAccountID      *uuid.UUID `gorm:"type:uuid;index"`
	DestinationAccountID *uuid.UUID `gorm:"type:uuid;index"`

	SourceBalanceBefore      decimal.NullDecimal `gorm:"type:numeric(19,2)"`
	SourceBalanceAfter       decimal.NullDecimal `gorm:"type:numeric(19,2)"`
	DestinationBalanceBefore decimal.NullDecimal `gorm:"type:numeric(19,2)"`
	DestinationBalanceAfter  decimal.NullDecimal `gorm:"type:numeric(19,2)"`

	FailureReason string    `gorm:"type:varchar(500)"`
	CreatedAt     time.Time `gorm:"index"`
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

// TableName specifies the table name for the Transaction model.
func (Transaction) TableName() string {
	return "transactions"
}

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new TransactionRepository using the provided *gorm.DB.
func NewTransactionRepository(db *gorm.DB) repository.TransactionRepository {
	return &transactionRepository{db: db}
}

// Create implements repository.TransactionRepository.
func (r *transactionRepository) Create(ctx context.Context, tx *transaction.Transaction) error {
	m := mapTransactionToModel(tx)
	return WrapError(func() error {
		return r.db.WithContext(ctx).Create(&m).Error
	})
}

// Get implements repository.TransactionRepository.
func (r *transactionRepository) Get(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	return r.first(ctx, "id = ?", id)
}

// GetByReference implements repository.TransactionRepository.
func (r *transactionRepository) GetByReference(ctx context.Context, reference string) (*transaction.Transaction, error) {
	return r.first(ctx, "reference = ?", reference)
}

func (r *transactionRepository) first(ctx context.Context, query string, arg any) (*transaction.Transaction, error) {
	var m Transaction
	if err := WrapError(func() error { return r.db.WithContext(ctx).First(&m, query, arg).Error }); err != nil {
		return nil, err
	}
	return mapModelToTransaction(&m), nil
}

// ExistsByReference implements repository.TransactionRepository.
func (r *transactionRepository) ExistsByReference(ctx context.Context, reference string) (bool, error) {
	var count int64
	err := WrapError(func() error {
		return r.db.WithContext(ctx).Model(&Transaction{}).Where("reference = ?", reference).Count(&count).Error
	})
	return count > 0, err
}

// ListByAccounts implements repository.TransactionRepository.
func (r *transactionRepository) ListByAccounts(
	ctx context.Context,
	accountIDs []uuid.UUID,
	filter repository.TransactionFilter,
) ([]*transaction.Transaction, error) {
	if len(accountIDs) == 0 {
		return []*transaction.Transaction{}, nil
	}
	q := r.db.WithContext(ctx).
		Where("(source_account_id IN ? OR destination_account_id IN ?)", accountIDs, accountIDs)
	if filter.Type != "" {
		q = q.Where("type = ?", string(filter.Type))
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", *filter.To)
	}

	var models []Transaction
	if err := WrapError(func() error { return q.Order("created_at DESC").Find(&models).Error }); err != nil {
		return nil, err
	}
	result := make([]*transaction.Transaction, 0, len(models))
	for i := range models {
		result = append(result, mapModelToTransaction(&models[i]))
	}
	return result, nil
}

type transactionStatsRow struct {
	TotalTransactions int64
	DepositCount      int64
	WithdrawalCount   int64
	TransferCount     int64
	TotalIncoming     decimal.Decimal
	TotalOutgoing     decimal.Decimal
}

const transactionStatsQuery = `
SELECT
	COUNT(*) AS total_transactions,
	COALESCE(SUM(CASE WHEN type = @deposit THEN 1 ELSE 0 END), 0) AS deposit_count,
	COALESCE(SUM(CASE WHEN type = @withdrawal THEN 1 ELSE 0 END), 0) AS withdrawal_count,
	COALESCE(SUM(CASE WHEN type = @transfer THEN 1 ELSE 0 END), 0) AS transfer_count,
	COALESCE(SUM(CASE WHEN status = @completed AND destination_account_id = @account THEN amount ELSE 0 END), 0) AS total_incoming,
	COALESCE(SUM(CASE WHEN status = @completed AND source_account_id = @account THEN amount ELSE 0 END), 0) AS total_outgoing
FROM transactions
WHERE source_account_id = @account OR destination_account_id = @account`

// Stats implements repository.TransactionRepository.
func (r *transactionRepository) Stats(ctx context.Context, accountID uuid.UUID) (*repository.TransactionStats, error) {
	var row transactionStatsRow
	err := WrapError(func() error {
		return r.db.WithContext(ctx).Raw(transactionStatsQuery, map[string]any{
			"deposit":    string(transaction.TypeDeposit),
			"withdrawal": string(transaction.TypeWithdrawal),
			"transfer":   string(transaction.TypeTransfer),
			"completed":  string(transaction.StatusCompleted),
			"account":    accountID,
		}).Scan(&row).Error
	})
	if err != nil {
		return nil, err
	}
	return &repository.TransactionStats{
		TotalTransactions: row.TotalTransactions,
		DepositCount:      row.DepositCount,
		WithdrawalCount:   row.WithdrawalCount,
		TransferCount:     row.TransferCount,
		TotalIncoming:     row.TotalIncoming.Round(2),
		TotalOutgoing:     row.TotalOutgoing.Round(2),
	}, nil
}

func mapTransactionToModel(tx *transaction.Transaction) Transaction {
	return Transaction{
		ID:                       tx.ID,
		Reference:                tx.Reference,
		Type:                     string(tx.Type),
		Amount:                   tx.Amount,
		Currency:                 string(tx.Currency),
		Description:              tx.Description,
		Status:                   string(tx.Status),
		SourceAccountID:          tx.SourceAccountID,
		DestinationAccountID:     tx.DestinationAccountID,
		SourceBalanceBefore:      toNullDecimal(tx.SourceBalanceBefore),
		SourceBalanceAfter:       toNullDecimal(tx.SourceBalanceAfter),
		DestinationBalanceBefore: toNullDecimal(tx.DestinationBalanceBefore),
		DestinationBalanceAfter:  toNullDecimal(tx.DestinationBalanceAfter),
		FailureReason:            tx.FailureReason,
		CreatedAt:                tx.CreatedAt,
		UpdatedAt:                tx.UpdatedAt,
		CompletedAt:              tx.CompletedAt,
	}
}

func mapModelToTransaction(m *Transaction) *transaction.Transaction {
	return &transaction.Transaction{
		ID:                       m.ID,
		Reference:                m.Reference,
		Type:                     transaction.Type(m.Type),
		Amount:                   m.Amount.Round(2),
		Currency:                 currency.Code(m.Currency),
		Description:              m.Description,
		Status:                   transaction.Status(m.Status),
		SourceAccountID:          m.SourceAccountID,
		DestinationAccountID:     m.DestinationAccountID,
		SourceBalanceBefore:      fromNullDecimal(m.SourceBalanceBefore),
		SourceBalanceAfter:       fromNullDecimal(m.SourceBalanceAfter),
		DestinationBalanceBefore: fromNullDecimal(m.DestinationBalanceBefore),
		DestinationBalanceAfter:  fromNullDecimal(m.DestinationBalanceAfter),
		FailureReason:            m.FailureReason,
		CreatedAt:                m.CreatedAt,
		UpdatedAt:                m.UpdatedAt,
		CompletedAt:              m.CompletedAt,
	}
}

func toNullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func fromNullDecimal(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal.Round(2)
	return &v
}

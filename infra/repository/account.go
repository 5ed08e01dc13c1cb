package repository

import (
	"context"
	"time"

	"github.com/amirasaad/ledger/pkg/currency"
	"github.com/amirasaad/ledger/pkg/domain"
	"github.com/amirasaad/ledger/pkg/domain/account"
	"github.com/amirasaad/ledger/pkg/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Account represents an account record in the database.
type Account struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Number    string          `gorm:"type:varchar(34);uniqueIndex;not null"`
	Type      string          `gorm:"type:varchar(16);not null"`
	Balance   decimal.Decimal `gorm:"type:numeric(19,2);not null"`
	Currency  string          `gorm:"type:varchar(3);not null"`
	Status    string          `gorm:"type:varchar(16);not null;index"`
	UserID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
	ClosedAt  *time.Time
}

// TableName specifies the table name for the Account model.
func (Account) TableName() string {
	return "accounts"
}

type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new AccountRepository using the provided *gorm.DB.
func NewAccountRepository(db *gorm.DB) repository.AccountRepository {
	return &accountRepository{db: db}
}

// Create implements repository.AccountRepository.
func (r *accountRepository) Create(ctx context.Context, acc *account.Account) error {
	m := mapAccountToModel(acc)
	return WrapError(func() error {
		return r.db.WithContext(ctx).Create(&m).Error
	})
}

// Get implements repository.AccountRepository.
func (r *accountRepository) Get(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	return r.first(r.db.WithContext(ctx), "id = ?", id)
}

// GetForUpdate implements repository.AccountRepository. Dialects without row
// locks (sqlite) drop the FOR UPDATE clause.
func (r *accountRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), "id = ?", id)
}

// GetByNumber implements repository.AccountRepository.
func (r *accountRepository) GetByNumber(ctx context.Context, number string) (*account.Account, error) {
	return r.first(r.db.WithContext(ctx), "number = ?", number)
}

func (r *accountRepository) first(q *gorm.DB, query string, arg any) (*account.Account, error) {
	var m Account
	if err := WrapError(func() error { return q.First(&m, query, arg).Error }); err != nil {
		return nil, err
	}
	return mapModelToAccount(&m)
}

// ExistsByNumber implements repository.AccountRepository.
func (r *accountRepository) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	var count int64
	err := WrapError(func() error {
		return r.db.WithContext(ctx).Model(&Account{}).Where("number = ?", number).Count(&count).Error
	})
	return count > 0, err
}

// Update implements repository.AccountRepository. Only the mutable columns
// are written; number, owner and currency never change.
func (r *accountRepository) Update(ctx context.Context, acc *account.Account) error {
	acc.UpdatedAt = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&Account{}).Where("id = ?", acc.ID).Updates(map[string]any{
		"balance":    acc.Balance,
		"status":     string(acc.Status),
		"closed_at":  acc.ClosedAt,
		"updated_at": acc.UpdatedAt,
	})
	if res.Error != nil {
		return MapGormErrorToDomain(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByUser implements repository.AccountRepository.
func (r *accountRepository) ListByUser(ctx context.Context, userID uuid.UUID, filter repository.AccountFilter) ([]*account.Account, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	var models []Account
	if err := WrapError(func() error { return q.Order("created_at DESC").Find(&models).Error }); err != nil {
		return nil, err
	}
	result := make([]*account.Account, 0, len(models))
	for i := range models {
		acc, err := mapModelToAccount(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, acc)
	}
	return result, nil
}

type accountSummaryRow struct {
	TotalAccounts  int64
	ActiveAccounts int64
	ActiveBalance  decimal.Decimal
}

// Summary implements repository.AccountRepository.
func (r *accountRepository) Summary(ctx context.Context, userID uuid.UUID) (*repository.AccountSummary, error) {
	var row accountSummaryRow
	active := string(account.StatusActive)
	err := WrapError(func() error {
		return r.db.WithContext(ctx).Model(&Account{}).
			Select(`COUNT(*) AS total_accounts,
				COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS active_accounts,
				COALESCE(SUM(CASE WHEN status = ? THEN balance ELSE 0 END), 0) AS active_balance`, active, active).
			Where("user_id = ?", userID).
			Scan(&row).Error
	})
	if err != nil {
		return nil, err
	}
	return &repository.AccountSummary{
		TotalAccounts:  row.TotalAccounts,
		ActiveAccounts: row.ActiveAccounts,
		ActiveBalance:  row.ActiveBalance.Round(2),
	}, nil
}

func mapAccountToModel(acc *account.Account) Account {
	return Account{
		ID:        acc.ID,
		Number:    acc.Number,
		Type:      string(acc.Type),
		Balance:   acc.Balance,
		Currency:  string(acc.Currency),
		Status:    string(acc.Status),
		UserID:    acc.UserID,
		CreatedAt: acc.CreatedAt,
		UpdatedAt: acc.UpdatedAt,
		ClosedAt:  acc.ClosedAt,
	}
}

func mapModelToAccount(m *Account) (*account.Account, error) {
	return account.New().
		WithID(m.ID).
		WithNumber(m.Number).
		WithType(account.Type(m.Type)).
		WithBalance(m.Balance.Round(2)).
		WithCurrency(currency.Code(m.Currency)).
		WithStatus(account.Status(m.Status)).
		WithUserID(m.UserID).
		WithCreatedAt(m.CreatedAt).
		WithUpdatedAt(m.UpdatedAt).
		WithClosedAt(m.ClosedAt).
		Build()
}

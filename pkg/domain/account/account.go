package account

import (
	"errors"
	"time"

	"github.com/amirasaad/ledger/pkg/currency"
	"github.com/amirasaad/ledger/pkg/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidType is returned when an account type is not one of the known types.
	ErrInvalidType = errors.New("invalid account type")
	// ErrInvalidStatus is returned when a stored status is not one of the known statuses.
	ErrInvalidStatus = errors.New("invalid account status")
)

// Type is the product category of an account.
type Type string

const (
	TypeChecking Type = "checking"
	TypeSavings  Type = "savings"
	TypeBusiness Type = "business"
	TypeStudent  Type = "student"
)

// Valid reports whether t is a known account type.
func (t Type) Valid() bool {
	switch t {
	case TypeChecking, TypeSavings, TypeBusiness, TypeStudent:
		return true
	}
	return false
}

// Status is the lifecycle state of an account.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
	// StatusClosed is reserved; no ledger operation produces it.
	StatusClosed Status = "closed"
)

// Valid reports whether s is a known account status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended, StatusClosed:
		return true
	}
	return false
}

// Account is the aggregate holding a balance for exactly one owner.
//
// Invariants:
//   - Balance is never negative.
//   - Number is assigned once and never changes.
//   - Status only moves along active <-> suspended, active -> inactive (zero
//     balance only) and inactive -> active.
type Account struct {
	ID        uuid.UUID
	Number    string
	Type      Type
	Balance   decimal.Decimal
	Currency  currency.Code
	Status    Status
	UserID    uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
	ClosedAt  *time.Time
}

// Builder provides a fluent API for constructing Account instances.
type Builder struct {
	id        uuid.UUID
	number    string
	typ       Type
	balance   decimal.Decimal
	currency  currency.Code
	status    Status
	userID    uuid.UUID
	createdAt time.Time
	updatedAt time.Time
	closedAt  *time.Time
}

// New creates a Builder for a fresh active checking account in the default
// currency.
func New() *Builder {
	now := time.Now().UTC()
	return &Builder{
		id:        uuid.New(),
		typ:       TypeChecking,
		balance:   decimal.Zero,
		currency:  currency.DefaultCurrency,
		status:    StatusActive,
		createdAt: now,
		updatedAt: now,
	}
}

func (b *Builder) WithID(id uuid.UUID) *Builder {
	b.id = id
	return b
}

func (b *Builder) WithNumber(number string) *Builder {
	b.number = number
	return b
}

// WithUserID sets the owner. This is a mandatory field.
func (b *Builder) WithUserID(userID uuid.UUID) *Builder {
	b.userID = userID
	return b
}

func (b *Builder) WithType(t Type) *Builder {
	b.typ = t
	return b
}

func (b *Builder) WithCurrency(code currency.Code) *Builder {
	b.currency = code
	return b
}

// WithBalance sets the balance. Used for opening balances and when hydrating
// from the store.
func (b *Builder) WithBalance(balance decimal.Decimal) *Builder {
	b.balance = balance
	return b
}

func (b *Builder) WithStatus(status Status) *Builder {
	b.status = status
	return b
}

func (b *Builder) WithCreatedAt(t time.Time) *Builder {
	b.createdAt = t
	return b
}

func (b *Builder) WithUpdatedAt(t time.Time) *Builder {
	b.updatedAt = t
	return b
}

func (b *Builder) WithClosedAt(t *time.Time) *Builder {
	b.closedAt = t
	return b
}

// Build validates the invariants and returns the Account.
func (b *Builder) Build() (*Account, error) {
	if b.userID == uuid.Nil {
		return nil, domain.ErrUnauthorizedOperation
	}
	if b.number == "" {
		return nil, domain.NewError(domain.KindIdentifierAllocationFailed, "account number is required")
	}
	if !currency.IsValidFormat(string(b.currency)) {
		return nil, domain.Errorf(domain.KindInvalidCurrency, "invalid currency code %q", b.currency)
	}
	if !b.typ.Valid() {
		return nil, ErrInvalidType
	}
	if !b.status.Valid() {
		return nil, ErrInvalidStatus
	}
	if b.balance.IsNegative() {
		return nil, domain.NewError(domain.KindInvalidAmount, "balance cannot be negative")
	}
	return &Account{
		ID:        b.id,
		Number:    b.number,
		Type:      b.typ,
		Balance:   b.balance,
		Currency:  b.currency,
		Status:    b.status,
		UserID:    b.userID,
		CreatedAt: b.createdAt,
		UpdatedAt: b.updatedAt,
		ClosedAt:  b.closedAt,
	}, nil
}

// IsActive reports whether the account accepts balance mutations.
func (a *Account) IsActive() bool {
	return a.Status == StatusActive
}

// IsOwnedBy reports whether userID is the account owner.
func (a *Account) IsOwnedBy(userID uuid.UUID) bool {
	return a.UserID == userID
}

// EnsureOperable returns nil for an active account and a status specific
// error otherwise.
func (a *Account) EnsureOperable() error {
	switch a.Status {
	case StatusActive:
		return nil
	case StatusSuspended:
		return domain.Errorf(domain.KindAccountSuspended, "account %s is suspended", a.Number)
	case StatusClosed:
		return domain.Errorf(domain.KindAccountInactive, "account %s is closed", a.Number)
	default:
		return domain.Errorf(domain.KindAccountInactive, "account %s is inactive", a.Number)
	}
}

// Credit adds amount to the balance.
func (a *Account) Credit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domain.NewError(domain.KindInvalidAmount, "credit amount must be positive")
	}
	a.Balance = a.Balance.Add(amount)
	return nil
}

// Debit removes amount from the balance. The balance is left untouched when
// it does not cover amount.
func (a *Account) Debit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domain.NewError(domain.KindInvalidAmount, "debit amount must be positive")
	}
	if a.Balance.LessThan(amount) {
		return domain.Errorf(domain.KindInsufficientFunds,
			"insufficient funds: balance %s, requested %s", a.Balance.StringFixed(2), amount.StringFixed(2))
	}
	a.Balance = a.Balance.Sub(amount)
	return nil
}

// Deactivate moves an active, empty account to inactive and stamps ClosedAt.
func (a *Account) Deactivate(at time.Time) error {
	if !a.IsActive() {
		return domain.Errorf(domain.KindAccountInactive, "account %s is not active", a.Number)
	}
	if !a.Balance.IsZero() {
		return domain.Errorf(domain.KindInvalidStatusTransition,
			"account %s must have a zero balance to be deactivated", a.Number)
	}
	a.Status = StatusInactive
	a.ClosedAt = &at
	return nil
}

// Suspend moves an active account to suspended.
func (a *Account) Suspend() error {
	if !a.IsActive() {
		return domain.Errorf(domain.KindInvalidStatusTransition,
			"account %s cannot be suspended from status %s", a.Number, a.Status)
	}
	a.Status = StatusSuspended
	return nil
}

// Reactivate moves an inactive or suspended account back to active.
func (a *Account) Reactivate() error {
	switch a.Status {
	case StatusInactive, StatusSuspended:
		a.Status = StatusActive
		a.ClosedAt = nil
		return nil
	case StatusActive:
		return domain.Errorf(domain.KindInvalidStatusTransition, "account %s is already active", a.Number)
	default:
		return domain.Errorf(domain.KindInvalidStatusTransition,
			"account %s cannot be reactivated from status %s", a.Number, a.Status)
	}
}

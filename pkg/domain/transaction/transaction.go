package transaction

import (
	"errors"
	"time"

	"github.com/amirasaad/ledger/pkg/currency"
	"github.com/amirasaad/ledger/pkg/domain"
	"github.com/amirasaad/ledger/pkg/domain/account"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotPending is returned when a terminal transition is attempted on a
	// transaction that already left the pending state.
	ErrNotPending = errors.New("transaction is not pending")
	// ErrMissingSnapshot is returned when a transaction is completed without
	// the after-balance of one of its sides.
	ErrMissingSnapshot = errors.New("transaction balance snapshot missing")
	// ErrInvalidShape is returned when source/destination references do not
	// match the transaction type.
	ErrInvalidShape = errors.New("transaction accounts do not match its type")
)

// Type classifies what a transaction does.
type Type string

const (
	TypeDeposit    Type = "deposit"
	TypeWithdrawal Type = "withdrawal"
	TypeTransfer   Type = "transfer"
	TypePayment    Type = "payment"
	TypeRefund     Type = "refund"
	TypeFee        Type = "fee"
	TypeInterest   Type = "interest"
)

// Status is the lifecycle state of a transaction.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	// StatusCancelled and StatusReversed belong to correction flows and are
	// never produced by deposit, withdrawal or transfer.
	StatusCancelled Status = "cancelled"
	StatusReversed  Status = "reversed"
)

// IsTerminal reports whether no core operation moves a transaction out of s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusReversed:
		return true
	}
	return false
}

// Transaction is one attempted money movement. Before/after snapshots are set
// only for the side(s) the type touches and form the audit trail once the
// transaction is completed.
type Transaction struct {
	ID          uuid.UUID
	Reference   string
	Type        Type
	Amount      decimal.Decimal
	Currency    currency.Code
	Description string
	Status      Status

	SourceAccountID      *uuid.UUID
	DestinationAccountID *uuid.UUID

	SourceBalanceBefore      *decimal.Decimal
	SourceBalanceAfter       *decimal.Decimal
	DestinationBalanceBefore *decimal.Decimal
	DestinationBalanceAfter  *decimal.Decimal

	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

func newPending(reference string, typ Type, amount decimal.Decimal, code currency.Code, description string, now time.Time) *Transaction {
	return &Transaction{
		ID:          uuid.New(),
		Reference:   reference,
		Type:        typ,
		Amount:      amount,
		Currency:    code,
		Description: description,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewDeposit returns a pending deposit into dst.
func NewDeposit(reference string, dst *account.Account, amount decimal.Decimal, description string, now time.Time) *Transaction {
	tx := newPending(reference, TypeDeposit, amount, dst.Currency, description, now)
	tx.DestinationAccountID = ptr(dst.ID)
	tx.DestinationBalanceBefore = ptr(dst.Balance)
	return tx
}

// NewWithdrawal returns a pending withdrawal from src.
func NewWithdrawal(reference string, src *account.Account, amount decimal.Decimal, description string, now time.Time) *Transaction {
	tx := newPending(reference, TypeWithdrawal, amount, src.Currency, description, now)
	tx.SourceAccountID = ptr(src.ID)
	tx.SourceBalanceBefore = ptr(src.Balance)
	return tx
}

// NewTransfer returns a pending transfer from src to dst.
func NewTransfer(reference string, src, dst *account.Account, amount decimal.Decimal, description string, now time.Time) (*Transaction, error) {
	if src.ID == dst.ID {
		return nil, domain.ErrSameAccountTransfer
	}
	tx := newPending(reference, TypeTransfer, amount, src.Currency, description, now)
	tx.SourceAccountID = ptr(src.ID)
	tx.SourceBalanceBefore = ptr(src.Balance)
	tx.DestinationAccountID = ptr(dst.ID)
	tx.DestinationBalanceBefore = ptr(dst.Balance)
	return tx, nil
}

// Validate checks that the account references match the type.
func (t *Transaction) Validate() error {
	hasSrc, hasDst := t.SourceAccountID != nil, t.DestinationAccountID != nil
	switch t.Type {
	case TypeDeposit, TypeInterest, TypeRefund:
		if hasSrc || !hasDst {
			return ErrInvalidShape
		}
	case TypeWithdrawal, TypeFee, TypePayment:
		if !hasSrc || hasDst {
			return ErrInvalidShape
		}
	case TypeTransfer:
		if !hasSrc || !hasDst {
			return ErrInvalidShape
		}
		if *t.SourceAccountID == *t.DestinationAccountID {
			return domain.ErrSameAccountTransfer
		}
	default:
		return ErrInvalidShape
	}
	return nil
}

// Snapshot refreshes the before-balances from the current account states.
// It is called once the accounts are locked, right before mutation.
func (t *Transaction) Snapshot(src, dst *account.Account) {
	if src != nil && t.SourceAccountID != nil {
		t.SourceBalanceBefore = ptr(src.Balance)
	}
	if dst != nil && t.DestinationAccountID != nil {
		t.DestinationBalanceBefore = ptr(dst.Balance)
	}
}

// Complete records the after-balances and moves the transaction to completed.
func (t *Transaction) Complete(src, dst *account.Account, at time.Time) error {
	if t.Status != StatusPending && t.Status != StatusProcessing {
		return ErrNotPending
	}
	if t.SourceAccountID != nil {
		if src == nil {
			return ErrMissingSnapshot
		}
		t.SourceBalanceAfter = ptr(src.Balance)
	}
	if t.DestinationAccountID != nil {
		if dst == nil {
			return ErrMissingSnapshot
		}
		t.DestinationBalanceAfter = ptr(dst.Balance)
	}
	t.Status = StatusCompleted
	t.CompletedAt = &at
	t.UpdatedAt = at
	return nil
}

// Fail moves the transaction to failed with reason. After-balances are
// cleared since no mutation was applied.
func (t *Transaction) Fail(reason string, at time.Time) error {
	if t.Status != StatusPending && t.Status != StatusProcessing {
		return ErrNotPending
	}
	t.Status = StatusFailed
	t.FailureReason = reason
	t.SourceBalanceAfter = nil
	t.DestinationBalanceAfter = nil
	t.UpdatedAt = at
	return nil
}

// Involves reports whether accountID is the source or destination.
func (t *Transaction) Involves(accountID uuid.UUID) bool {
	return (t.SourceAccountID != nil && *t.SourceAccountID == accountID) ||
		(t.DestinationAccountID != nil && *t.DestinationAccountID == accountID)
}

func ptr[T any](v T) *T {
	return &v
}

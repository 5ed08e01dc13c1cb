// Package events defines the notifications the ledger publishes after a
// money movement or a status change has been persisted.
package events

import (
	"time"

	"github.com/amirasaad/ledger/pkg/domain/account"
	"github.com/amirasaad/ledger/pkg/domain/transaction"
	"github.com/amirasaad/ledger/pkg/eventbus"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TypeTransactionCompleted = "Transaction.Completed"
	TypeTransactionFailed    = "Transaction.Failed"
	TypeAccountStatusChanged = "Account.StatusChanged"
)

// TransactionEvent carries the fields shared by completed and failed movements.
type TransactionEvent struct {
	TransactionID        uuid.UUID        `json:"transaction_id"`
	Reference            string           `json:"reference"`
	TransactionType      transaction.Type `json:"transaction_type"`
	Amount               decimal.Decimal  `json:"amount"`
	Currency             string           `json:"currency"`
	SourceAccountID      *uuid.UUID       `json:"source_account_id,omitempty"`
	DestinationAccountID *uuid.UUID       `json:"destination_account_id,omitempty"`
	UserID               uuid.UUID        `json:"user_id"`
	OccurredAt           time.Time        `json:"occurred_at"`
}

type TransactionCompleted struct {
	TransactionEvent
	SourceBalanceAfter      *decimal.Decimal `json:"source_balance_after,omitempty"`
	DestinationBalanceAfter *decimal.Decimal `json:"destination_balance_after,omitempty"`
}

func (TransactionCompleted) Type() string { return TypeTransactionCompleted }

type TransactionFailed struct {
	TransactionEvent
	Reason string `json:"reason"`
}

func (TransactionFailed) Type() string { return TypeTransactionFailed }

type AccountStatusChanged struct {
	AccountID  uuid.UUID      `json:"account_id"`
	Number     string         `json:"number"`
	UserID     uuid.UUID      `json:"user_id"`
	From       account.Status `json:"from"`
	To         account.Status `json:"to"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func (AccountStatusChanged) Type() string { return TypeAccountStatusChanged }

// NewTransactionCompleted builds the event for a committed transaction.
func NewTransactionCompleted(tx *transaction.Transaction, userID uuid.UUID) *TransactionCompleted {
	return &TransactionCompleted{
		TransactionEvent:        newTransactionEvent(tx, userID),
		SourceBalanceAfter:      tx.SourceBalanceAfter,
		DestinationBalanceAfter: tx.DestinationBalanceAfter,
	}
}

// NewTransactionFailed builds the event for a transaction recorded as failed.
func NewTransactionFailed(tx *transaction.Transaction, userID uuid.UUID) *TransactionFailed {
	return &TransactionFailed{
		TransactionEvent: newTransactionEvent(tx, userID),
		Reason:           tx.FailureReason,
	}
}

func newTransactionEvent(tx *transaction.Transaction, userID uuid.UUID) TransactionEvent {
	return TransactionEvent{
		TransactionID:        tx.ID,
		Reference:            tx.Reference,
		TransactionType:      tx.Type,
		Amount:               tx.Amount,
		Currency:             string(tx.Currency),
		SourceAccountID:      tx.SourceAccountID,
		DestinationAccountID: tx.DestinationAccountID,
		UserID:               userID,
		OccurredAt:           tx.UpdatedAt,
	}
}

// EventTypes maps every published type to a constructor used when decoding
// events read back from a broker.
var EventTypes = map[string]func() eventbus.Event{
	TypeTransactionCompleted: func() eventbus.Event { return &TransactionCompleted{} },
	TypeTransactionFailed:    func() eventbus.Event { return &TransactionFailed{} },
	TypeAccountStatusChanged: func() eventbus.Event { return &AccountStatusChanged{} },
}

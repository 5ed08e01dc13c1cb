package transaction

import (
	"time"

	"github.com/amirasaad/ledger/pkg/domain/transaction"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionDTO is the API representation of a transaction.
type TransactionDTO struct {
	ID                       string     `json:"id"`
	Reference                string     `json:"reference"`
	Type                     string     `json:"type"`
	Status                   string     `json:"status"`
	Amount                   string     `json:"amount"`
	Currency                 string     `json:"currency"`
	Description              string     `json:"description"`
	SourceAccountID          *string    `json:"source_account_id,omitempty"`
	DestinationAccountID     *string    `json:"destination_account_id,omitempty"`
	SourceBalanceBefore      *string    `json:"source_balance_before,omitempty"`
	SourceBalanceAfter       *string    `json:"source_balance_after,omitempty"`
	DestinationBalanceBefore *string    `json:"destination_balance_before,omitempty"`
	DestinationBalanceAfter  *string    `json:"destination_balance_after,omitempty"`
	FailureReason            string     `json:"failure_reason,omitempty"`
	CreatedAt                time.Time  `json:"created_at"`
	CompletedAt              *time.Time `json:"completed_at,omitempty"`
}

// ToTransactionDTO maps a domain transaction to its API representation.
func ToTransactionDTO(tx *transaction.Transaction) *TransactionDTO {
	if tx == nil {
		return nil
	}
	return &TransactionDTO{
		ID:                       tx.ID.String(),
		Reference:                tx.Reference,
		Type:                     string(tx.Type),
		Status:                   string(tx.Status),
		Amount:                   tx.Amount.StringFixed(2),
		Currency:                 tx.Currency.String(),
		Description:              tx.Description,
		SourceAccountID:          idString(tx.SourceAccountID),
		DestinationAccountID:     idString(tx.DestinationAccountID),
		SourceBalanceBefore:      amountString(tx.SourceBalanceBefore),
		SourceBalanceAfter:       amountString(tx.SourceBalanceAfter),
		DestinationBalanceBefore: amountString(tx.DestinationBalanceBefore),
		DestinationBalanceAfter:  amountString(tx.DestinationBalanceAfter),
		FailureReason:            tx.FailureReason,
		CreatedAt:                tx.CreatedAt,
		CompletedAt:              tx.CompletedAt,
	}
}

// ToTransactionDTOs maps a list, preserving order.
func ToTransactionDTOs(txs []*transaction.Transaction) []*TransactionDTO {
	out := make([]*TransactionDTO, 0, len(txs))
	for _, tx := range txs {
		out = append(out, ToTransactionDTO(tx))
	}
	return out
}

func idString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func amountString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.StringFixed(2)
	return &s
}

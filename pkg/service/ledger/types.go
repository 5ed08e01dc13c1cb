package ledger

import (
	"time"

	"github.com/amirasaad/ledger/pkg/domain/account"
	"github.com/amirasaad/ledger/pkg/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DepositCommand credits AccountID. A nil Amount is rejected as InvalidAmount.
type DepositCommand struct {
	UserID      uuid.UUID
	AccountID   uuid.UUID
	Amount      *decimal.Decimal
	Description string
}

// WithdrawCommand debits AccountID.
type WithdrawCommand struct {
	UserID      uuid.UUID
	AccountID   uuid.UUID
	Amount      *decimal.Decimal
	Description string
}

// TransferCommand moves Amount from SourceAccountID to the account numbered
// DestinationNumber. The destination does not have to belong to UserID.
type TransferCommand struct {
	UserID            uuid.UUID
	SourceAccountID   uuid.UUID
	DestinationNumber string
	Amount            *decimal.Decimal
	Description       string
}

// OpenAccountCommand describes a new account. Empty fields take the defaults:
// checking, the configured currency and a zero balance.
type OpenAccountCommand struct {
	UserID         uuid.UUID
	Type           account.Type
	Currency       string
	InitialBalance *decimal.Decimal
}

// TransactionFilter narrows transaction listings.
type TransactionFilter = repository.TransactionFilter

// AccountStatistics summarizes the accounts of one owner.
type AccountStatistics struct {
	TotalAccounts  int64           `json:"total_accounts"`
	ActiveAccounts int64           `json:"active_accounts"`
	TotalBalance   decimal.Decimal `json:"total_balance"`
	Timestamp      time.Time       `json:"timestamp"`
}

// TransactionStatistics summarizes the movements of one account. Counts
// include every recorded attempt; incoming and outgoing totals only count
// completed transactions.
type TransactionStatistics struct {
	AccountID         uuid.UUID       `json:"account_id"`
	TotalTransactions int64           `json:"total_transactions"`
	DepositCount      int64           `json:"deposit_count"`
	WithdrawalCount   int64           `json:"withdrawal_count"`
	TransferCount     int64           `json:"transfer_count"`
	TotalIncoming     decimal.Decimal `json:"total_incoming"`
	TotalOutgoing     decimal.Decimal `json:"total_outgoing"`
	NetChange         decimal.Decimal `json:"net_change"`
	CurrentBalance    decimal.Decimal `json:"current_balance"`
	Timestamp         time.Time       `json:"timestamp"`
}

package account

import (
	"time"

	"github.com/amirasaad/ledger/pkg/domain/account"
	"github.com/amirasaad/ledger/pkg/service/ledger"
	"github.com/shopspring/decimal"
)

//revive:disable

// OpenAccountRequest represents the request body for opening an account.
// Omitted fields take the ledger defaults.
type OpenAccountRequest struct {
	Type           string           `json:"type" validate:"omitempty,max=16"`
	Currency       string           `json:"currency" validate:"omitempty,max=8"`
	InitialBalance *decimal.Decimal `json:"initial_balance"`
}

// MovementRequest is the body of deposit and withdraw requests.
type MovementRequest struct {
	Amount      *decimal.Decimal `json:"amount"`
	Description string           `json:"description" validate:"max=500"`
}

// TransferRequest represents the request body for transferring funds to
// another account identified by its number.
type TransferRequest struct {
	DestinationAccountNumber string           `json:"destination_account_number" validate:"max=34"`
	Amount                   *decimal.Decimal `json:"amount"`
	Description              string           `json:"description" validate:"max=500"`
}

// AccountDTO is the API representation of an account.
type AccountDTO struct {
	ID        string     `json:"id"`
	Number    string     `json:"number"`
	Type      string     `json:"type"`
	Balance   string     `json:"balance"`
	Currency  string     `json:"currency"`
	Status    string     `json:"status"`
	UserID    string     `json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

// ToAccountDTO maps a domain account to its API representation.
func ToAccountDTO(acc *account.Account) *AccountDTO {
	if acc == nil {
		return nil
	}
	return &AccountDTO{
		ID:        acc.ID.String(),
		Number:    acc.Number,
		Type:      string(acc.Type),
		Balance:   acc.Balance.StringFixed(2),
		Currency:  acc.Currency.String(),
		Status:    string(acc.Status),
		UserID:    acc.UserID.String(),
		CreatedAt: acc.CreatedAt,
		UpdatedAt: acc.UpdatedAt,
		ClosedAt:  acc.ClosedAt,
	}
}

func toAccountDTOs(accounts []*account.Account) []*AccountDTO {
	out := make([]*AccountDTO, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, ToAccountDTO(acc))
	}
	return out
}

// BalanceDTO reports the total balance of the caller's active accounts.
type BalanceDTO struct {
	TotalBalance string `json:"total_balance"`
}

func toCommand(req *OpenAccountRequest) ledger.OpenAccountCommand {
	return ledger.OpenAccountCommand{
		Type:           account.Type(req.Type),
		Currency:       req.Currency,
		InitialBalance: req.InitialBalance,
	}
}

// Package access decides whether an identity may act on an account.
package access

import (
	"github.com/amirasaad/ledger/pkg/domain"
	"github.com/amirasaad/ledger/pkg/domain/account"
	"github.com/google/uuid"
)

// Policy authorizes an identity against accounts.
type Policy interface {
	// CanOperate allows mutating or reading acc.
	CanOperate(userID uuid.UUID, acc *account.Account) error
	// CanView allows reading a transaction between src and dst. Either may be
	// nil.
	CanView(userID uuid.UUID, src, dst *account.Account) error
}

// Ownership grants access on exact owner match only.
type Ownership struct{}

// NewOwnership returns the ownership policy.
func NewOwnership() Ownership {
	return Ownership{}
}

func (Ownership) CanOperate(userID uuid.UUID, acc *account.Account) error {
	if userID == uuid.Nil || acc == nil || !acc.IsOwnedBy(userID) {
		return domain.NewError(domain.KindUnauthorizedOperation, "you are not allowed to access this account")
	}
	return nil
}

func (Ownership) CanView(userID uuid.UUID, src, dst *account.Account) error {
	if userID != uuid.Nil {
		if src != nil && src.IsOwnedBy(userID) {
			return nil
		}
		if dst != nil && dst.IsOwnedBy(userID) {
			return nil
		}
	}
	return domain.NewError(domain.KindUnauthorizedOperation, "you are not allowed to access this transaction")
}

var _ Policy = Ownership{}

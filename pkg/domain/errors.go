package domain

import (
	"errors"
	"fmt"
)

// Infrastructure-level sentinels. Repositories translate driver errors into these.
var (
	// ErrNotFound is returned when a requested resource is not found
	ErrNotFound = errors.New("resource not found")
	// ErrAlreadyExists is returned when trying to create a resource that already exists
	ErrAlreadyExists = errors.New("resource already exists")
	// ErrConflict is returned when the store aborted a unit of work because of a
	// concurrent update. The operation can be retried as a new attempt.
	ErrConflict = errors.New("concurrent update conflict")
)

// Kind is the stable, machine-readable classification of a ledger error.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidAmount
	KindTransactionLimitExceeded
	KindInsufficientFunds
	KindAccountNotFound
	KindTransactionNotFound
	KindUnauthorizedOperation
	KindAccountInactive
	KindAccountSuspended
	KindInvalidCurrency
	KindTransactionFailed
	KindIdentifierAllocationFailed
	KindInvalidStatusTransition
	KindSameAccountTransfer
)

var kindNames = map[Kind]string{
	KindUnknown:                    "Unknown",
	KindInvalidAmount:              "InvalidAmount",
	KindTransactionLimitExceeded:   "TransactionLimitExceeded",
	KindInsufficientFunds:          "InsufficientFunds",
	KindAccountNotFound:            "AccountNotFound",
	KindTransactionNotFound:        "TransactionNotFound",
	KindUnauthorizedOperation:      "UnauthorizedOperation",
	KindAccountInactive:            "AccountInactive",
	KindAccountSuspended:           "AccountSuspended",
	KindInvalidCurrency:            "InvalidCurrency",
	KindTransactionFailed:          "TransactionFailed",
	KindIdentifierAllocationFailed: "IdentifierAllocationFailed",
	KindInvalidStatusTransition:    "InvalidStatusTransition",
	KindSameAccountTransfer:        "SameAccountTransfer",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a ledger error carrying its Kind, a human readable message and an
// optional cause.
//
// Two *Error values match under errors.Is when their kinds are equal, so callers
// compare against the package sentinels:
//
//	if errors.Is(err, domain.ErrInsufficientFunds) { ... }
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// NewError returns an *Error of the given kind.
func NewError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Errorf returns an *Error of the given kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an *Error of the given kind wrapping err.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidAmount              = NewError(KindInvalidAmount, "invalid amount")
	ErrTransactionLimitExceeded   = NewError(KindTransactionLimitExceeded, "transaction limit exceeded")
	ErrInsufficientFunds          = NewError(KindInsufficientFunds, "insufficient funds")
	ErrAccountNotFound            = NewError(KindAccountNotFound, "account not found")
	ErrTransactionNotFound        = NewError(KindTransactionNotFound, "transaction not found")
	ErrUnauthorizedOperation      = NewError(KindUnauthorizedOperation, "unauthorized operation")
	ErrAccountInactive            = NewError(KindAccountInactive, "account is inactive")
	ErrAccountSuspended           = NewError(KindAccountSuspended, "account is suspended")
	ErrInvalidCurrency            = NewError(KindInvalidCurrency, "invalid currency")
	ErrTransactionFailed          = NewError(KindTransactionFailed, "transaction failed")
	ErrIdentifierAllocationFailed = NewError(KindIdentifierAllocationFailed, "identifier allocation failed")
	ErrInvalidStatusTransition    = NewError(KindInvalidStatusTransition, "invalid account status transition")
	ErrSameAccountTransfer        = NewError(KindSameAccountTransfer, "cannot transfer to the same account")
)

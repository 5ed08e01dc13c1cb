// Package common holds the response helpers shared by the HTTP handlers.
package common

import (
	"errors"

	"github.com/amirasaad/ledger/pkg/domain"
	"github.com/amirasaad/ledger/pkg/domain/account"
	authsvc "github.com/amirasaad/ledger/pkg/service/auth"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Response defines the standard API response structure for success cases.
type Response struct {
	Status  int    `json:"status"`         // HTTP status code
	Message string `json:"message"`        // Human-readable explanation
	Data    any    `json:"data,omitempty"` // Response data
}

// ProblemDetails follows RFC 9457 Problem Details for HTTP APIs.
type ProblemDetails struct {
	Type     string `json:"type,omitempty"`     // A URI reference that identifies the problem type
	Title    string `json:"title"`              // Short, human-readable summary
	Status   int    `json:"status"`             // HTTP status code
	Detail   string `json:"detail,omitempty"`   // Human-readable explanation
	Instance string `json:"instance,omitempty"` // URI reference that identifies the specific occurrence
	Kind     string `json:"kind,omitempty"`     // Ledger error kind, when known
	Errors   any    `json:"errors,omitempty"`   // Optional: additional error details

	// Transaction is the failed record persisted for the attempt, if any.
	Transaction any `json:"transaction,omitempty"`
}

// ProblemOption adds an extension member to a ProblemDetails.
type ProblemOption func(*ProblemDetails)

// WithTransaction attaches the recorded transaction of a failed movement.
func WithTransaction(tx any) ProblemOption {
	return func(pd *ProblemDetails) {
		pd.Transaction = tx
	}
}

const problemContentType = "application/problem+json"

var validate = validator.New()

// SuccessResponseJSON writes data wrapped in a Response.
func SuccessResponseJSON(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Response{Status: status, Message: message, Data: data})
}

// ErrorResponseJSON returns a response following RFC 9457 Problem Details.
// A string detail fills Detail; anything else goes to Errors.
func ErrorResponseJSON(c *fiber.Ctx, status int, title string, detail any) error {
	pd := ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Instance: c.OriginalURL(),
	}
	if detail != nil {
		if s, ok := detail.(string); ok {
			pd.Detail = s
		} else {
			pd.Errors = detail
		}
	}
	return c.Status(status).JSON(pd, problemContentType)
}

// ProblemDetailsJSON writes err as problem details with the status derived
// from its kind.
func ProblemDetailsJSON(c *fiber.Ctx, title string, err error, opts ...ProblemOption) error {
	status := ErrorToStatusCode(err)
	pd := ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   err.Error(),
		Instance: c.OriginalURL(),
	}
	if kind := domain.KindOf(err); kind != domain.KindUnknown {
		pd.Kind = kind.String()
	}
	if status == fiber.StatusInternalServerError {
		pd.Detail = "internal error"
	}
	for _, opt := range opts {
		opt(&pd)
	}
	return c.Status(status).JSON(pd, problemContentType)
}

// ErrorToStatusCode maps ledger errors to HTTP status codes.
func ErrorToStatusCode(err error) int {
	switch domain.KindOf(err) {
	case domain.KindInvalidAmount, domain.KindSameAccountTransfer:
		return fiber.StatusBadRequest
	case domain.KindTransactionLimitExceeded, domain.KindInsufficientFunds, domain.KindInvalidCurrency:
		return fiber.StatusUnprocessableEntity
	case domain.KindAccountNotFound, domain.KindTransactionNotFound:
		return fiber.StatusNotFound
	case domain.KindUnauthorizedOperation:
		return fiber.StatusForbidden
	case domain.KindAccountInactive, domain.KindAccountSuspended, domain.KindInvalidStatusTransition:
		return fiber.StatusConflict
	case domain.KindIdentifierAllocationFailed:
		return fiber.StatusServiceUnavailable
	case domain.KindTransactionFailed:
		return fiber.StatusInternalServerError
	}
	switch {
	case errors.Is(err, authsvc.ErrUnauthenticated):
		return fiber.StatusUnauthorized
	case errors.Is(err, account.ErrInvalidType):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// BindAndValidate parses the request body and validates it using go-playground/validator.
// Returns a pointer to the struct (populated), or writes an error response and returns nil.
func BindAndValidate[T any](c *fiber.Ctx) (*T, error) {
	var input T
	if err := c.BodyParser(&input); err != nil {
		return nil, ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid request body", err.Error())
	}
	if err := validate.Struct(input); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			details := make(map[string]string, len(fieldErrs))
			for _, fe := range fieldErrs {
				details[fe.Field()] = fe.Tag()
			}
			return nil, ErrorResponseJSON(c, fiber.StatusBadRequest, "Validation failed", details)
		}
		return nil, ErrorResponseJSON(c, fiber.StatusBadRequest, "Validation failed", err.Error())
	}
	return &input, nil
}

// CurrentUserID reads the caller identity from the token stored by the JWT
// middleware. On failure the 401 response is already written and the
// returned error is the write result.
func CurrentUserID(c *fiber.Ctx, authSvc *authsvc.Service) (uuid.UUID, bool, error) {
	token, _ := c.Locals("user").(*jwt.Token)
	userID, err := authSvc.GetCurrentUserID(token)
	if err != nil {
		return uuid.Nil, false, ErrorResponseJSON(c, fiber.StatusUnauthorized, "Unauthorized", err.Error())
	}
	return userID, true, nil
}

// ParseUUIDParam reads a path parameter as a uuid. On failure a 400 is
// written.
func ParseUUIDParam(c *fiber.Ctx, name string) (uuid.UUID, bool, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, false, ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid "+name, "must be a valid UUID")
	}
	return id, true, nil
}

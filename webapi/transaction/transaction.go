package transaction

import (
	"time"

	"github.com/amirasaad/ledger/pkg/config"
	"github.com/amirasaad/ledger/pkg/domain/transaction"
	"github.com/amirasaad/ledger/pkg/middleware"
	authsvc "github.com/amirasaad/ledger/pkg/service/auth"
	"github.com/amirasaad/ledger/pkg/service/ledger"
	"github.com/amirasaad/ledger/webapi/common"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// ListQuery holds the filters accepted by transaction listings.
type ListQuery struct {
	Type   string `query:"type" validate:"omitempty,oneof=deposit withdrawal transfer payment refund fee interest"`
	Status string `query:"status" validate:"omitempty,oneof=pending processing completed failed cancelled reversed"`
	From   string `query:"from" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	To     string `query:"to" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

var validate = validator.New()

// Routes registers the caller-wide transaction endpoints:
//   - GET /transactions            : every transaction touching the caller's accounts.
//   - GET /transactions/:reference : a single transaction the caller is party to.
func Routes(app *fiber.App, svc *ledger.Service, authSvc *authsvc.Service, cfg *config.App) {
	protected := middleware.JwtProtected(cfg.Auth.Jwt)
	app.Get("/transactions", protected, ListUserTransactions(svc, authSvc))
	app.Get("/transactions/:reference", protected, GetTransaction(svc, authSvc))
}

// ParseFilter reads ListQuery from the query string. On failure a 400 is
// written and ok is false.
func ParseFilter(c *fiber.Ctx) (filter ledger.TransactionFilter, ok bool, err error) {
	var q ListQuery
	if err := c.QueryParser(&q); err != nil {
		return filter, false, common.ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid query", err.Error())
	}
	if err := validate.Struct(q); err != nil {
		return filter, false, common.ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid query", err.Error())
	}
	filter.Type = transaction.Type(q.Type)
	filter.Status = transaction.Status(q.Status)
	if q.From != "" {
		from, _ := time.Parse(time.RFC3339, q.From)
		filter.From = &from
	}
	if q.To != "" {
		to, _ := time.Parse(time.RFC3339, q.To)
		filter.To = &to
	}
	return filter, true, nil
}

// ListUserTransactions returns a handler listing the caller's transactions,
// newest first.
func ListUserTransactions(svc *ledger.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok, err := common.CurrentUserID(c, authSvc)
		if !ok {
			return err
		}
		filter, ok, err := ParseFilter(c)
		if !ok {
			return err
		}
		txs, err := svc.ListUserTransactions(c.UserContext(), userID, filter)
		if err != nil {
			log.Errorf("Failed to list transactions: %v", err)
			return common.ProblemDetailsJSON(c, "Failed to list transactions", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Transactions fetched", ToTransactionDTOs(txs))
	}
}

// GetTransaction returns a handler reading one transaction by reference.
func GetTransaction(svc *ledger.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok, err := common.CurrentUserID(c, authSvc)
		if !ok {
			return err
		}
		tx, err := svc.GetTransactionByReference(c.UserContext(), userID, c.Params("reference"))
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to fetch transaction", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Transaction fetched", ToTransactionDTO(tx))
	}
}

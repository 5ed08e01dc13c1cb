// Package testutils provides an HTTP test suite running the full ledger
// application against a throwaway sqlite database.
package testutils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"time"

	"github.com/amirasaad/ledger/infra"
	infra_eventbus "github.com/amirasaad/ledger/infra/eventbus"
	infra_repository "github.com/amirasaad/ledger/infra/repository"
	"github.com/amirasaad/ledger/pkg/config"
	authsvc "github.com/amirasaad/ledger/pkg/service/auth"
	"github.com/amirasaad/ledger/pkg/service/ledger"
	"github.com/amirasaad/ledger/webapi"
	txapi "github.com/amirasaad/ledger/webapi/transaction"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

// Envelope mirrors the success body written by the handlers with a raw
// payload so each test decodes Data into its own type.
type Envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Problem mirrors the problem details body written on failures.
type Problem struct {
	Title  string         `json:"title"`
	Status int            `json:"status"`
	Detail string         `json:"detail"`
	Kind   string         `json:"kind"`
	Errors map[string]any `json:"errors"`

	Transaction *txapi.TransactionDTO `json:"transaction"`
}

// E2ETestSuite wires the real application on a fresh database per test.
type E2ETestSuite struct {
	suite.Suite
	DB     *gorm.DB
	Bus    *infra_eventbus.MemoryEventBus
	Ledger *ledger.Service
	Auth   *authsvc.Service
	App    *fiber.App
	Cfg    *config.App
}

// Config returns the configuration used by the suite. The rate limit is
// generous so only the dedicated tests trip it.
func Config(dbPath string) *config.App {
	return &config.App{
		Env: "test",
		DB: &config.DB{
			Driver:          "sqlite",
			Url:             dbPath,
			ConnMaxLifetime: time.Hour,
		},
		Auth:      &config.Auth{Jwt: &config.Jwt{Secret: "test-secret", Expiry: time.Hour}},
		RateLimit: &config.RateLimit{MaxRequests: 10000, Window: time.Minute},
		Ledger: &config.Ledger{
			MinAmount:             decimal.RequireFromString("0.01"),
			MaxAmount:             decimal.RequireFromString("1000000"),
			DefaultCurrency:       "EUR",
			MaxIdentifierAttempts: 10,
		},
		EventBus: &config.EventBus{Driver: "memory"},
	}
}

// SetupTest opens a new database and rebuilds the application.
func (s *E2ETestSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.Cfg = Config(filepath.Join(s.T().TempDir(), "ledger.db"))

	db, err := infra.NewDBConnection(s.Cfg.DB, s.Cfg.Env)
	s.Require().NoError(err)
	s.Require().NoError(infra.Migrate(db, logger))
	s.DB = db
	s.T().Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	s.Bus = infra_eventbus.NewWithMemory(logger)
	s.Ledger = ledger.NewService(ledger.Deps{
		Uow:      infra_repository.NewUoW(db),
		EventBus: s.Bus,
		Logger:   logger,
	})
	s.Auth = authsvc.NewWithJWT(s.Cfg.Auth.Jwt, logger)
	s.App = webapi.NewApp(s.Ledger, s.Auth, s.Cfg)
}

// Token signs a bearer token for userID.
func (s *E2ETestSuite) Token(userID uuid.UUID) string {
	token, err := s.Auth.GenerateToken(userID)
	s.Require().NoError(err)
	return token
}

// MakeRequest is a helper for making HTTP requests in tests.
func (s *E2ETestSuite) MakeRequest(method, path, body, token string) *http.Response {
	return MakeRequestWithApp(s.App, method, path, body, token)
}

// MakeRequestWithApp sends one request through app.
func MakeRequestWithApp(app *fiber.App, method, path, body, token string) *http.Response {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		panic(err) // For standalone tests, panic on error
	}
	return resp
}

// Decode reads a success envelope and unmarshals its data into out.
func (s *E2ETestSuite) Decode(resp *http.Response, out any) Envelope {
	defer resp.Body.Close() //nolint: errcheck
	var env Envelope
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&env))
	if out != nil && len(env.Data) > 0 {
		s.Require().NoError(json.Unmarshal(env.Data, out))
	}
	return env
}

// DecodeProblem reads a problem details body.
func (s *E2ETestSuite) DecodeProblem(resp *http.Response) Problem {
	defer resp.Body.Close() //nolint: errcheck
	s.Equal("application/problem+json", resp.Header.Get(fiber.HeaderContentType))
	var p Problem
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&p))
	return p
}

// OpenAccount opens an account through the API and returns its id and
// number.
func (s *E2ETestSuite) OpenAccount(token, initialBalance string) (id, number string) {
	body := "{}"
	if initialBalance != "" {
		body = fmt.Sprintf(`{"initial_balance":"%s"}`, initialBalance)
	}
	resp := s.MakeRequest(fiber.MethodPost, "/accounts", body, token)
	s.Require().Equal(fiber.StatusCreated, resp.StatusCode)
	var acc struct {
		ID     string `json:"id"`
		Number string `json:"number"`
	}
	s.Decode(resp, &acc)
	return acc.ID, acc.Number
}

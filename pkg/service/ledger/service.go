// Package ledger is the only component allowed to change account balances.
//
// Every money movement follows the same shape: validate without writing,
// allocate a reference, then run one atomic step under the per-account locks
// (taken in ascending id order) and a unit of work that re-reads the accounts
// with row locks. A failed atomic step is rolled back and the attempt is
// persisted as a failed transaction so no pending row is ever left behind.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/amirasaad/ledger/pkg/access"
	"github.com/amirasaad/ledger/pkg/currency"
	"github.com/amirasaad/ledger/pkg/domain"
	"github.com/amirasaad/ledger/pkg/domain/account"
	"github.com/amirasaad/ledger/pkg/eventbus"
	"github.com/amirasaad/ledger/pkg/generator"
	"github.com/amirasaad/ledger/pkg/money"
	"github.com/amirasaad/ledger/pkg/repository"
	"github.com/google/uuid"
)

// Deps holds the collaborators of the Service. Only Uow is required.
type Deps struct {
	Uow                   repository.UnitOfWork
	Policy                access.Policy
	EventBus              eventbus.Bus
	Logger                *slog.Logger
	Limits                money.Limits
	DefaultCurrency       currency.Code
	MaxIdentifierAttempts int
	Clock                 func() time.Time

	// Optional generator overrides.
	References     *generator.Generator
	AccountNumbers *generator.Generator
}

// Service implements the ledger operations.
type Service struct {
	uow             repository.UnitOfWork
	policy          access.Policy
	bus             eventbus.Bus
	logger          *slog.Logger
	limits          money.Limits
	defaultCurrency currency.Code
	clock           func() time.Time
	references      *generator.Generator
	accountNumbers  *generator.Generator
	locks           *accountLocks
}

// NewService creates a new Service with the provided dependencies.
func NewService(deps Deps) *Service {
	s := &Service{
		uow:             deps.Uow,
		policy:          deps.Policy,
		bus:             deps.EventBus,
		logger:          deps.Logger,
		limits:          deps.Limits,
		defaultCurrency: deps.DefaultCurrency,
		clock:           deps.Clock,
		references:      deps.References,
		accountNumbers:  deps.AccountNumbers,
		locks:           newAccountLocks(),
	}
	if s.policy == nil {
		s.policy = access.NewOwnership()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.limits.Min.IsZero() && s.limits.Max.IsZero() {
		s.limits = money.DefaultLimits()
	}
	if s.defaultCurrency == "" {
		s.defaultCurrency = currency.DefaultCurrency
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.references == nil {
		s.references = generator.NewReference(s.clock, generator.WithMaxAttempts(deps.MaxIdentifierAttempts))
	}
	if s.accountNumbers == nil {
		s.accountNumbers = generator.NewAccountNumber(generator.WithMaxAttempts(deps.MaxIdentifierAttempts))
	}
	return s
}

func (s *Service) now() time.Time {
	return s.clock().UTC()
}

// loadAccount reads an account outside any transaction. A missing row becomes
// AccountNotFound.
func (s *Service) loadAccount(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	repo, err := s.uow.AccountRepository()
	if err != nil {
		return nil, err
	}
	acc, err := repo.Get(ctx, id)
	if err != nil {
		return nil, accountLookupError(err, "account %s not found", id)
	}
	return acc, nil
}

func (s *Service) loadAccountByNumber(ctx context.Context, number string) (*account.Account, error) {
	repo, err := s.uow.AccountRepository()
	if err != nil {
		return nil, err
	}
	acc, err := repo.GetByNumber(ctx, number)
	if err != nil {
		return nil, accountLookupError(err, "account %s not found", number)
	}
	return acc, nil
}

func accountLookupError(err error, format string, arg any) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Errorf(domain.KindAccountNotFound, format, arg)
	}
	return err
}

// emit publishes evt after commit. Delivery problems are logged only.
func (s *Service) emit(ctx context.Context, logger *slog.Logger, evt eventbus.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Emit(context.WithoutCancel(ctx), evt); err != nil {
		logger.Warn("event publication failed", "event", evt.Type(), "error", err)
	}
}

// retryOnClash re-runs insert while it fails because a concurrent writer
// inserted the same freshly allocated identifier first. After attempts tries it
// gives up with IdentifierAllocationFailed.
func retryOnClash(attempts int, what string, insert func() error) error {
	for attempt := 1; ; attempt++ {
		err := insert()
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return err
		}
		if attempt >= attempts {
			return domain.Errorf(domain.KindIdentifierAllocationFailed,
				"could not allocate a unique %s after %d attempts", what, attempt)
		}
	}
}

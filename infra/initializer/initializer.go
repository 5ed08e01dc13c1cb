package initializer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/amirasaad/ledger/infra"
	infra_eventbus "github.com/amirasaad/ledger/infra/eventbus"
	infra_repository "github.com/amirasaad/ledger/infra/repository"
	"github.com/amirasaad/ledger/pkg/config"
	"github.com/amirasaad/ledger/pkg/currency"
	"github.com/amirasaad/ledger/pkg/domain/events"
	"github.com/amirasaad/ledger/pkg/eventbus"
	"github.com/amirasaad/ledger/pkg/money"
	authsvc "github.com/amirasaad/ledger/pkg/service/auth"
	"github.com/amirasaad/ledger/pkg/service/ledger"
	"gorm.io/gorm"
)

const consumerGroup = "ledger"

// Deps is the wired object graph shared by the server and the CLI.
type Deps struct {
	Config   *config.App
	Logger   *slog.Logger
	DB       *gorm.DB
	Uow      *infra_repository.UoW
	EventBus eventbus.Bus
	Ledger   *ledger.Service
	Auth     *authsvc.Service

	closers []func() error
}

// Close releases the event bus and the database pool.
func (d *Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i]())
	}
	return errors.Join(errs...)
}

// InitializeDependencies initializes all the application dependencies
func InitializeDependencies(cfg *config.App) (*Deps, error) {
	logger := setupLogger(cfg.Log)
	return initialize(cfg, logger)
}

func initialize(cfg *config.App, logger *slog.Logger) (deps *Deps, err error) {
	deps = &Deps{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = deps.Close()
			deps = nil
		}
	}()

	db, err := infra.NewDBConnection(cfg.DB, cfg.Env)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		return nil, err
	}
	deps.DB = db
	deps.closers = append(deps.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	if err = infra.Migrate(db, logger); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	var uowOpts []infra_repository.UoWOption
	if db.Dialector.Name() == "postgres" {
		uowOpts = append(uowOpts, infra_repository.WithIsolation(sql.LevelSerializable))
	}
	deps.Uow = infra_repository.NewUoW(db, uowOpts...)

	bus, closer, err := NewEventBus(cfg.EventBus, logger)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		deps.closers = append(deps.closers, closer)
	}
	registerAuditLog(bus, logger)
	deps.EventBus = bus

	deps.Ledger = ledger.NewService(ledger.Deps{
		Uow:                   deps.Uow,
		EventBus:              bus,
		Logger:                logger,
		Limits:                money.Limits{Min: cfg.Ledger.MinAmount, Max: cfg.Ledger.MaxAmount},
		DefaultCurrency:       currency.Code(cfg.Ledger.DefaultCurrency),
		MaxIdentifierAttempts: cfg.Ledger.MaxIdentifierAttempts,
	})
	deps.Auth = authsvc.NewWithJWT(cfg.Auth.Jwt, logger)
	return deps, nil
}

// NewEventBus builds the configured bus. A broker that cannot be reached at
// startup degrades to the in-memory bus; a missing setting is an error.
func NewEventBus(cfg *config.EventBus, logger *slog.Logger) (eventbus.Bus, func() error, error) {
	driver := "memory"
	if cfg != nil && cfg.Driver != "" {
		driver = cfg.Driver
	}

	switch driver {
	case "memory":
		return infra_eventbus.NewWithMemory(logger), nil, nil
	case "redis":
		if cfg.Redis == nil || cfg.Redis.URL == "" {
			return nil, nil, errors.New("event bus driver redis requires EVENT_BUS_REDIS_URL")
		}
		bus, err := infra_eventbus.NewWithRedis(cfg.Redis.URL, cfg.Redis.Stream, consumerGroup, events.EventTypes, logger)
		if err != nil {
			logger.Warn("Redis event bus unavailable, falling back to memory", "error", err)
			return infra_eventbus.NewWithMemory(logger), nil, nil
		}
		return bus, bus.Close, nil
	case "kafka":
		if cfg.Kafka == nil || len(cfg.Kafka.Brokers) == 0 {
			return nil, nil, errors.New("event bus driver kafka requires EVENT_BUS_KAFKA_BROKERS")
		}
		bus, err := infra_eventbus.NewWithKafka(cfg.Kafka.Brokers, events.EventTypes, &infra_eventbus.KafkaEventBusConfig{
			GroupID:     consumerGroup,
			TopicPrefix: cfg.Kafka.TopicPrefix,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return bus, bus.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported event bus driver %q", driver)
	}
}

// registerAuditLog logs every ledger event once it has gone through the bus.
func registerAuditLog(bus eventbus.Bus, logger *slog.Logger) {
	audit := logger.With("component", "audit")
	for eventType := range events.EventTypes {
		bus.Register(eventType, func(_ context.Context, evt eventbus.Event) error {
			switch e := evt.(type) {
			case *events.TransactionCompleted:
				audit.Info("Transaction completed", "reference", e.Reference, "type", e.TransactionType, "amount", e.Amount)
			case *events.TransactionFailed:
				audit.Warn("Transaction failed", "reference", e.Reference, "type", e.TransactionType, "reason", e.Reason)
			case *events.AccountStatusChanged:
				audit.Info("Account status changed", "number", e.Number, "from", e.From, "to", e.To)
			default:
				audit.Info("Event received", "type", evt.Type())
			}
			return nil
		})
	}
}

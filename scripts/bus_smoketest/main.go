// Command bus_smoketest publishes one event of every ledger type on the
// configured bus (EVENT_BUS_* variables) and waits until each one has been
// consumed back. Run it against a local redis or kafka before deploying.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/amirasaad/ledger/infra/initializer"
	"github.com/amirasaad/ledger/pkg/config"
	"github.com/amirasaad/ledger/pkg/domain/account"
	"github.com/amirasaad/ledger/pkg/domain/events"
	"github.com/amirasaad/ledger/pkg/domain/transaction"
	"github.com/amirasaad/ledger/pkg/eventbus"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const timeout = 30 * time.Second

// RunSmokeTest round-trips sample events through the bus.
func RunSmokeTest(ctx context.Context, logger *slog.Logger) error {
	_ = godotenv.Load()
	var cfg config.EventBus
	if err := envconfig.Process("EVENT_BUS", &cfg); err != nil {
		return err
	}

	bus, closer, err := initializer.NewEventBus(&cfg, logger)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer() //nolint: errcheck
	}

	samples := sampleEvents()
	var wg sync.WaitGroup
	wg.Add(len(samples))
	var once sync.Map
	for _, evt := range samples {
		bus.Register(evt.Type(), func(_ context.Context, got eventbus.Event) error {
			if _, seen := once.LoadOrStore(got.Type(), true); !seen {
				logger.Info("consumed", "type", got.Type())
				wg.Done()
			}
			return nil
		})
	}

	for _, evt := range samples {
		if err := bus.Emit(ctx, evt); err != nil {
			return fmt.Errorf("emit %s: %w", evt.Type(), err)
		}
		logger.Info("produced", "type", evt.Type())
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("event bus smoke test passed", "driver", cfg.Driver)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for events: %w", ctx.Err())
	}
}

func sampleEvents() []eventbus.Event {
	now := time.Now().UTC()
	accountID := uuid.New()
	userID := uuid.New()
	base := events.TransactionEvent{
		TransactionID:        uuid.New(),
		Reference:            "TXN-" + now.Format("20060102150405") + "-SMOKE000",
		TransactionType:      transaction.TypeDeposit,
		Amount:               decimal.RequireFromString("1.00"),
		Currency:             "EUR",
		DestinationAccountID: &accountID,
		UserID:               userID,
		OccurredAt:           now,
	}
	return []eventbus.Event{
		&events.TransactionCompleted{TransactionEvent: base},
		&events.TransactionFailed{TransactionEvent: base, Reason: "smoke test"},
		&events.AccountStatusChanged{
			AccountID:  accountID,
			Number:     "FR760000000000000000",
			UserID:     userID,
			From:       account.StatusActive,
			To:         account.StatusSuspended,
			OccurredAt: now,
		},
	}
}

// main runs the smoke test and exits non-zero on failure.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := RunSmokeTest(ctx, logger); err != nil {
		logger.Error("event bus smoke test failed", "error", err)
		os.Exit(1)
	}
}

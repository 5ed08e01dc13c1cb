package infra

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/amirasaad/ledger/infra/repository"
	"github.com/golang-migrate/migrate/v4"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate brings the schema up to date. Postgres runs the embedded SQL
// migrations; sqlite is auto-migrated from the gorm models.
func Migrate(db *gorm.DB, logger *slog.Logger) error {
	if db.Dialector.Name() != "postgres" {
		logger.Info("Auto-migrating schema", "dialect", db.Dialector.Name())
		return db.AutoMigrate(&repository.Account{}, &repository.Transaction{})
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	driver, err := migratepostgres.WithInstance(sqlDB, &migratepostgres.Config{})
	if err != nil {
		return fmt.Errorf("migrate driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		logger.Warn("Database migrated, version unknown", "error", err)
		return nil
	}
	logger.Info("Database migrated", "version", version, "dirty", dirty)
	return nil
}

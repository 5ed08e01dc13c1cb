package config

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Load reads the first env file found among envFilePath (searching parent
// directories), falls back to ./.env, then processes the environment.
func Load(envFilePath ...string) (*App, error) {
	logger := slog.Default()
	logger.Info("Loading environment variables")

	for _, path := range envFilePath {
		logger.Debug("Looking for environment file", "path", path)
		foundPath, err := FindEnvTest(path)
		if err != nil {
			logger.Debug("Environment file not found", "path", path, "error", err)
			continue
		}

		logger.Info("Loading environment from file", "path", foundPath)
		if err := godotenv.Load(foundPath); err != nil {
			logger.Error("Failed to load environment file", "path", foundPath, "error", err)
			continue
		}
		return loadFromEnv()
	}

	if err := godotenv.Load(); err != nil {
		logger.Warn("No .env file found in current directory")
	}
	return loadFromEnv()
}

func loadFromEnv() (*App, error) {
	var cfg App
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Default().Info("App config loaded",
		"env", cfg.Env,
		"db_driver", cfg.DB.Driver,
		"db", maskValue(cfg.DB.Url),
		"auth_jwt_secret", maskValue(cfg.Auth.Jwt.Secret),
		"auth_jwt_expiry", cfg.Auth.Jwt.Expiry,
		"rate_limit_max_requests", cfg.RateLimit.MaxRequests,
		"rate_limit_window", cfg.RateLimit.Window,
		"ledger_min_amount", cfg.Ledger.MinAmount.StringFixed(2),
		"ledger_max_amount", cfg.Ledger.MaxAmount.StringFixed(2),
		"event_bus_driver", cfg.EventBus.Driver,
	)
	return &cfg, nil
}

// Validate rejects combinations envconfig cannot express with tags.
func (c *App) Validate() error {
	switch c.DB.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.DB.Driver)
	}
	switch c.EventBus.Driver {
	case "memory", "redis", "kafka":
	default:
		return fmt.Errorf("unsupported event bus driver %q", c.EventBus.Driver)
	}
	if !c.Ledger.MinAmount.IsPositive() || c.Ledger.MaxAmount.LessThan(c.Ledger.MinAmount) {
		return fmt.Errorf("invalid ledger amount limits [%s, %s]", c.Ledger.MinAmount, c.Ledger.MaxAmount)
	}
	if c.Ledger.MaxIdentifierAttempts < 1 {
		return fmt.Errorf("ledger max identifier attempts must be positive, got %d", c.Ledger.MaxIdentifierAttempts)
	}
	return nil
}

func maskValue(key string) string {
	if len(key) <= 6 {
		return "****"
	}
	return key[:2] + "****" + key[len(key)-4:]
}

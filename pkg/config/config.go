package config

import (
	"time"

	"github.com/shopspring/decimal"
)

type DB struct {
	Driver          string        `envconfig:"DRIVER" default:"postgres"`
	Url             string        `envconfig:"URL"`
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"MAX_IDLE_CONNS" default:"25"`
	ConnMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME" default:"1h"`
}

type Jwt struct {
	Secret string        `envconfig:"SECRET" required:"true"`
	Expiry time.Duration `envconfig:"EXPIRY" default:"24h"`
}
type Auth struct {
	Jwt *Jwt `envconfig:"JWT"`
}

type RateLimit struct {
	MaxRequests int           `envconfig:"MAX_REQUESTS" default:"100"`
	Window      time.Duration `envconfig:"WINDOW" default:"1m"`
}

// Ledger holds the money movement rules applied by the engine.
type Ledger struct {
	MinAmount             decimal.Decimal `envconfig:"MIN_AMOUNT" default:"0.01"`
	MaxAmount             decimal.Decimal `envconfig:"MAX_AMOUNT" default:"1000000.00"`
	DefaultCurrency       string          `envconfig:"DEFAULT_CURRENCY" default:"EUR"`
	MaxIdentifierAttempts int             `envconfig:"MAX_IDENTIFIER_ATTEMPTS" default:"10"`
}

type Redis struct {
	URL    string `envconfig:"URL" default:"redis://localhost:6379/0"`
	Stream string `envconfig:"STREAM" default:"ledger:events"`
}

type Kafka struct {
	Brokers     []string `envconfig:"BROKERS" default:"localhost:9092"`
	TopicPrefix string   `envconfig:"TOPIC_PREFIX" default:"ledger."`
}

// EventBus selects where ledger events are published.
type EventBus struct {
	Driver string `envconfig:"DRIVER" default:"memory"`
	Redis  *Redis `envconfig:"REDIS"`
	Kafka  *Kafka `envconfig:"KAFKA"`
}

type Log struct {
	Level      int    `envconfig:"LEVEL" default:"0"`
	Format     string `envconfig:"FORMAT" default:"json"`
	TimeFormat string `envconfig:"TIME_FORMAT" default:"2006-01-02 15:04:05"`
	Prefix     string `envconfig:"PREFIX" default:"[ledger]"`
}

type Server struct {
	Scheme string `envconfig:"SCHEME" default:"http"`
	Host   string `envconfig:"HOST" default:"localhost"`
	Port   int    `envconfig:"PORT" default:"3000"`
}

type App struct {
	Env       string     `envconfig:"APP_ENV" default:"development"`
	Server    *Server    `envconfig:"SERVER"`
	Log       *Log       `envconfig:"LOG"`
	DB        *DB        `envconfig:"DATABASE"`
	Auth      *Auth      `envconfig:"AUTH"`
	RateLimit *RateLimit `envconfig:"RATE_LIMIT"`
	Ledger    *Ledger    `envconfig:"LEDGER"`
	EventBus  *EventBus  `envconfig:"EVENT_BUS"`
}

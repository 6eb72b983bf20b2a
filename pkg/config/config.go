package config

import (
	"time"

	"github.com/shopspring/decimal"
)

type DB struct {
	// Url selects the dialect: postgres:// or postgresql:// for postgres,
	// sqlite:// or a plain file path for sqlite.
	Url string `envconfig:"URL" default:"sqlite://backoffice.db"`
}

type Jwt struct {
	Secret string `envconfig:"SECRET" required:"true"`
	// Claim holds the acting user's id.
	Claim string `envconfig:"CLAIM" default:"user_id"`
}

type Auth struct {
	Jwt *Jwt `envconfig:"JWT"`
}

type RateLimit struct {
	MaxRequests int           `envconfig:"MAX_REQUESTS" default:"100"`
	Window      time.Duration `envconfig:"WINDOW" default:"1m"`
}

type Log struct {
	Level      int    `envconfig:"LEVEL" default:"0"`
	Format     string `envconfig:"FORMAT" default:"text"`
	TimeFormat string `envconfig:"TIME_FORMAT" default:"2006-01-02 15:04:05"`
	Prefix     string `envconfig:"PREFIX" default:"[backoffice]"`
}

type Server struct {
	Scheme string `envconfig:"SCHEME" default:"http"`
	Host   string `envconfig:"HOST" default:"localhost"`
	Port   int    `envconfig:"PORT" default:"3000"`
}

type ExchangeRate struct {
	// Fallback is the last-resort ARS per USD rate used only for the
	// operator FX leg when the rate series is empty. Zero disables it.
	Fallback decimal.Decimal `envconfig:"FALLBACK" default:"1000"`
	CacheTTL time.Duration   `envconfig:"CACHE_TTL" default:"5m"`

	// CacheRedisURL shares the rate cache across replicas. Empty keeps it
	// in process.
	CacheRedisURL string `envconfig:"CACHE_REDIS_URL"`

	// ApiUrl and ApiKey point the rate importer at exchangerate-api.com.
	ApiUrl      string        `envconfig:"API_URL" default:"https://v6.exchangerate-api.com/v6"`
	ApiKey      string        `envconfig:"API_KEY"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`
}

type Ledger struct {
	// BalanceTolerance is how far below zero a settlement account may go.
	BalanceTolerance decimal.Decimal `envconfig:"BALANCE_TOLERANCE" default:"0.01"`
	// FXTolerance is the smallest FX difference worth posting.
	FXTolerance decimal.Decimal `envconfig:"FX_TOLERANCE" default:"0.01"`
	// SettlementStaleAfter is how long an unfinished settlement blocks retries.
	SettlementStaleAfter time.Duration `envconfig:"SETTLEMENT_STALE_AFTER" default:"2m"`
}

type EventBus struct {
	Driver       string `envconfig:"DRIVER" default:"memory"`
	RedisURL     string `envconfig:"REDIS_URL"`
	KafkaBrokers string `envconfig:"KAFKA_BROKERS"`
	Topic        string `envconfig:"TOPIC" default:"backoffice.settlements"`
}

type App struct {
	Env          string        `envconfig:"APP_ENV" default:"development"`
	Server       *Server       `envconfig:"SERVER"`
	Log          *Log          `envconfig:"LOG"`
	DB           *DB           `envconfig:"DATABASE"`
	Auth         *Auth         `envconfig:"AUTH"`
	RateLimit    *RateLimit    `envconfig:"RATE_LIMIT"`
	ExchangeRate *ExchangeRate `envconfig:"EXCHANGE_RATE"`
	Ledger       *Ledger       `envconfig:"LEDGER"`
	EventBus     *EventBus     `envconfig:"EVENT_BUS"`
}

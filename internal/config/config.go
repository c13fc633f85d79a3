package config

import (
	"errors"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config is the process configuration, read once at startup.
type Config struct {
	AppEnv   string `env:"POKESWAP_APP_ENV" envDefault:"local"`
	LogLevel string `env:"POKESWAP_LOG_LEVEL" envDefault:"info"`

	HTTPAddr string `env:"POKESWAP_HTTP_ADDR" envDefault:":8080"`
	GRPCAddr string `env:"POKESWAP_GRPC_ADDR" envDefault:":9090"`

	// Empty DSN runs the API on the in-memory store.
	PGDSN            string        `env:"POKESWAP_PG_DSN"`
	PGConnectTimeout time.Duration `env:"POKESWAP_PG_CONNECT_TIMEOUT" envDefault:"30s"`

	JWTSecret  string        `env:"POKESWAP_JWT_SECRET"`
	JWTIssuer  string        `env:"POKESWAP_JWT_ISSUER" envDefault:"pokeswap"`
	AccessTTL  time.Duration `env:"POKESWAP_ACCESS_TTL" envDefault:"1h"`
	RefreshTTL time.Duration `env:"POKESWAP_REFRESH_TTL" envDefault:"720h"`

	RateBurst     int `env:"POKESWAP_RATE_BURST" envDefault:"40"`
	RatePerSecond int `env:"POKESWAP_RATE_PER_SECOND" envDefault:"20"`

	NATSURL     string `env:"NATS_URL"`
	NATSSubject string `env:"NATS_SUBJECT_TRADES" envDefault:"pokeswap.trades"`

	// Bootstrap administrator, created with every right when missing.
	AdminLogin    string `env:"POKESWAP_ADMIN_LOGIN" envDefault:"leopkmn"`
	AdminPassword string `env:"POKESWAP_ADMIN_PASSWORD"`
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Tools is the configuration shared by the migrate and smoke-trade
// binaries. It reads the same variables as Config but needs no secrets.
type Tools struct {
	AppEnv   string `env:"POKESWAP_APP_ENV" envDefault:"local"`
	LogLevel string `env:"POKESWAP_LOG_LEVEL" envDefault:"info"`

	PGDSN          string        `env:"POKESWAP_PG_DSN"`
	MigrateTimeout time.Duration `env:"POKESWAP_MIGRATE_TIMEOUT" envDefault:"30s"`

	APIURL       string        `env:"POKESWAP_API_URL" envDefault:"http://localhost:8080"`
	SmokeTimeout time.Duration `env:"POKESWAP_SMOKE_TIMEOUT" envDefault:"15s"`
}

// LoadTools reads an optional .env file and then the environment.
func LoadTools() (*Tools, error) {
	_ = godotenv.Load()
	cfg := &Tools{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if cfg.MigrateTimeout <= 0 || cfg.SmokeTimeout <= 0 {
		return nil, errors.New("tool timeouts must be positive")
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return cfg, nil
}

// Validate rejects configurations the API cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		if !c.IsLocal() {
			return errors.New("POKESWAP_JWT_SECRET is required outside local env")
		}
		c.JWTSecret = "local-dev-secret"
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return errors.New("token ttl must be positive")
	}
	if c.RateBurst <= 0 || c.RatePerSecond <= 0 {
		return errors.New("rate limit settings must be positive")
	}
	return nil
}

// IsLocal reports whether the process runs in a developer environment.
func (c *Config) IsLocal() bool {
	return c.AppEnv == "local" || c.AppEnv == "test"
}

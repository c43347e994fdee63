/*
Package config loads server configuration.

PRECEDENCE (later wins):
  1. Defaults
  2. .env file in the working directory (optional, via godotenv)
  3. Environment variables (LEDGER_*)
  4. Command-line flags

ENVIRONMENT:
  LEDGER_PORT             HTTP port (8080)
  LEDGER_DB_DRIVER        sqlite | postgres (sqlite)
  LEDGER_DB_PATH          SQLite path, ":memory:" allowed (ledger.db)
  LEDGER_DATABASE_URL     Postgres connection string
  LEDGER_TX_TIMEOUT       Unit-of-work timeout (5s)
  LEDGER_SWEEP_ENABLED    Run the expiry sweep scheduler (true)
  LEDGER_SWEEP_INTERVAL   Sweep interval (1h)
  LEDGER_LOG_LEVEL        debug | info | warn | error (info)
  LEDGER_LOG_FORMAT       json | console (json)
  LEDGER_CORS_ORIGINS     Comma-separated allowed origins; "," allows none
  LEDGER_REDIS_ADDR       Redis address; enables the stream sink
  LEDGER_REDIS_STREAM     Stream name (inventory:notifications)
  LEDGER_WEBHOOK_URL      Enables the webhook sink
  LEDGER_SEED_SCENARIO    Demo scenario loaded at startup when the store is empty

FLAGS:
  -port, -db, -driver, -database-url, -seed
*/
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Port        int
	Driver      string
	DBPath      string
	DatabaseURL string
	TxTimeout   time.Duration

	SweepEnabled  bool
	SweepInterval time.Duration

	LogLevel  string
	LogFormat string

	CORSOrigins []string

	RedisAddr   string
	RedisStream string
	WebhookURL  string

	SeedScenario string
}

func Default() Config {
	return Config{
		Port:          8080,
		Driver:        DriverSQLite,
		DBPath:        "ledger.db",
		TxTimeout:     5 * time.Second,
		SweepEnabled:  true,
		SweepInterval: time.Hour,
		LogLevel:      "info",
		LogFormat:     "json",
		CORSOrigins:   []string{"http://localhost:5173", "http://localhost:8081", "http://localhost:19006"},
		RedisStream:   "inventory:notifications",
	}
}

// Load reads .env (if present), the environment, then args.
func Load(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}
	return Parse(args, os.LookupEnv)
}

// Parse builds a Config from defaults, lookup and args without touching the
// process environment.
func Parse(args []string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.Driver, "driver", cfg.Driver, "Storage driver: sqlite or postgres")
	fs.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "Postgres connection string")
	fs.StringVar(&cfg.SeedScenario, "seed", cfg.SeedScenario, "Demo scenario to load when the store is empty")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("LEDGER_DB_DRIVER", &c.Driver)
	str("LEDGER_DB_PATH", &c.DBPath)
	str("LEDGER_DATABASE_URL", &c.DatabaseURL)
	str("LEDGER_LOG_LEVEL", &c.LogLevel)
	str("LEDGER_LOG_FORMAT", &c.LogFormat)
	str("LEDGER_REDIS_ADDR", &c.RedisAddr)
	str("LEDGER_REDIS_STREAM", &c.RedisStream)
	str("LEDGER_WEBHOOK_URL", &c.WebhookURL)
	str("LEDGER_SEED_SCENARIO", &c.SeedScenario)

	if v, ok := lookup("LEDGER_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid LEDGER_PORT %q: %w", v, err)
		}
		c.Port = port
	}
	if v, ok := lookup("LEDGER_TX_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid LEDGER_TX_TIMEOUT %q: %w", v, err)
		}
		c.TxTimeout = d
	}
	if v, ok := lookup("LEDGER_SWEEP_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid LEDGER_SWEEP_INTERVAL %q: %w", v, err)
		}
		c.SweepInterval = d
	}
	if v, ok := lookup("LEDGER_SWEEP_ENABLED"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid LEDGER_SWEEP_ENABLED %q: %w", v, err)
		}
		c.SweepEnabled = b
	}
	if v, ok := lookup("LEDGER_CORS_ORIGINS"); ok && v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.CORSOrigins = origins
	}
	return nil
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	switch c.Driver {
	case DriverSQLite:
		if c.DBPath == "" {
			return errors.New("sqlite driver requires a database path")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("postgres driver requires LEDGER_DATABASE_URL or -database-url")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Driver)
	}
	if c.TxTimeout <= 0 {
		return errors.New("transaction timeout must be positive")
	}
	if c.SweepEnabled && c.SweepInterval <= 0 {
		return errors.New("sweep interval must be positive")
	}
	return nil
}

// Package config assembles runtime settings from defaults, an optional YAML
// file, environment variables and command-line flags, in that order.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Session ledger backends. LedgerStore keeps sessions with the user record
// in the primary store.
const (
	LedgerStore = "store"
	LedgerRedis = "redis"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
	LogFormatBoth = "both"
)

const (
	minSecretLen = 32
	minBcrypt    = 4
	maxBcrypt    = 14
)

// Config holds runtime settings for the server.
type Config struct {
	Addr       string  `yaml:"addr"`
	LogLevel   string  `yaml:"log_level"`
	LogFormat  string  `yaml:"log_format"`
	JWTSecret  string  `yaml:"jwt_secret"`
	BcryptCost int     `yaml:"bcrypt_cost"`
	Storage    Storage `yaml:"storage"`
	Ledger     Ledger  `yaml:"ledger"`
}

// Storage selects and locates the primary store.
type Storage struct {
	Driver        string `yaml:"driver"`
	SQLitePath    string `yaml:"sqlite_path"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	MongoURL      string `yaml:"mongo_url"`
	MongoDatabase string `yaml:"mongo_database"`
}

// Ledger selects where live sessions are kept.
type Ledger struct {
	Backend       string `yaml:"backend"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// Default returns development defaults. JWTSecret is left empty on purpose:
// it must always be supplied.
func Default() *Config {
	return &Config{
		Addr:       ":8080",
		LogLevel:   "info",
		LogFormat:  LogFormatBoth,
		BcryptCost: 12,
		Storage: Storage{
			Driver:        DriverSQLite,
			SQLitePath:    "todo.db",
			MongoDatabase: "todo",
		},
		Ledger: Ledger{
			Backend:   LedgerStore,
			RedisAddr: "localhost:6379",
		},
	}
}

// Load builds a Config for the given command-line args (without the program
// name) and environment lookup.
func Load(args []string, getenv func(string) string) (*Config, error) {
	fs := flag.NewFlagSet("todo-api", flag.ContinueOnError)
	configFile := fs.String("config", "", "path to a YAML config file")
	addr := fs.String("addr", "", "listen address (e.g. :8080)")
	driver := fs.String("db-driver", "", "storage driver: sqlite, postgres or mongo")
	dbPath := fs.String("db-path", "", "SQLite database path")
	dsn := fs.String("db-dsn", "", "PostgreSQL DSN")
	ledger := fs.String("ledger", "", "session ledger backend: store or redis")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error")
	logFormat := fs.String("log-format", "", "log format: text, json or both")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	cfg := Default()

	path := *configFile
	if path == "" {
		path = getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}

	// Only flags given explicitly override the layers below them.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "db-driver":
			cfg.Storage.Driver = *driver
		case "db-path":
			cfg.Storage.SQLitePath = *dbPath
		case "db-dsn":
			cfg.Storage.PostgresDSN = *dsn
		case "ledger":
			cfg.Ledger.Backend = *ledger
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		}
	})

	return cfg, nil
}

// LoadFromBytes overlays YAML data onto c.
func (c *Config) LoadFromBytes(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	return c.LoadFromBytes(data)
}

func (c *Config) applyEnv(getenv func(string) string) error {
	setString := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		v := getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = n
		return nil
	}

	if port := getenv("PORT"); port != "" {
		c.Addr = ":" + port
	}
	setString("DATABASE_DRIVER", &c.Storage.Driver)
	setString("DATABASE_PATH", &c.Storage.SQLitePath)
	setString("DATABASE_DSN", &c.Storage.PostgresDSN)
	setString("MONGO_URL", &c.Storage.MongoURL)
	setString("MONGO_DATABASE", &c.Storage.MongoDatabase)
	setString("LEDGER_BACKEND", &c.Ledger.Backend)
	setString("REDIS_ADDR", &c.Ledger.RedisAddr)
	setString("REDIS_PASSWORD", &c.Ledger.RedisPassword)
	setString("JWT_SECRET", &c.JWTSecret)
	setString("LOG_LEVEL", &c.LogLevel)
	setString("LOG_FORMAT", &c.LogFormat)

	if err := setInt("REDIS_DB", &c.Ledger.RedisDB); err != nil {
		return err
	}
	return setInt("BCRYPT_COST", &c.BcryptCost)
}

// Validate reports every problem with c at once.
func (c *Config) Validate() error {
	var errs []error

	switch {
	case c.JWTSecret == "":
		errs = append(errs, errors.New("JWT_SECRET is required"))
	case len(c.JWTSecret) < minSecretLen:
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes for HMAC-SHA256 security", minSecretLen))
	}

	if c.BcryptCost < minBcrypt || c.BcryptCost > maxBcrypt {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", minBcrypt, maxBcrypt, c.BcryptCost))
	}

	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("DATABASE_PATH is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("DATABASE_DSN is required for the postgres driver"))
		}
	case DriverMongo:
		if c.Storage.MongoURL == "" {
			errs = append(errs, errors.New("MONGO_URL is required for the mongo driver"))
		}
		if c.Storage.MongoDatabase == "" {
			errs = append(errs, errors.New("MONGO_DATABASE is required for the mongo driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}

	switch c.Ledger.Backend {
	case LedgerStore:
	case LedgerRedis:
		if c.Ledger.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis ledger"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ledger backend %q", c.Ledger.Backend))
	}

	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case LogFormatText, LogFormatJSON, LogFormatBoth:
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return level, nil
}

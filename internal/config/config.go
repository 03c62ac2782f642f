package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Port               int      `env:"PORT" envDefault:"8080"`
	AppEnv             string   `env:"APP_ENV" envDefault:"local"`
	CORSAllowOrigins   string   `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
	AdminUsers         []string `env:"ADMIN_USERS" envSeparator:","`
	ChatRooms          []string `env:"CHAT_ROOMS" envSeparator:"," envDefault:"general,crash,slots,roulette,dice"`
	RateLimitPerMinute int      `env:"RATE_LIMIT_PER_MINUTE" envDefault:"100"`

	Database Database
	Redis    Redis
	Ledger   Ledger
	Crash    Crash
	Fairness Fairness
}

type Database struct {
	Host     string `env:"BLUEPRINT_DB_HOST" envDefault:"localhost"`
	Port     string `env:"BLUEPRINT_DB_PORT" envDefault:"5432"`
	Name     string `env:"BLUEPRINT_DB_DATABASE" envDefault:"casinodb"`
	Username string `env:"BLUEPRINT_DB_USERNAME" envDefault:"postgres"`
	Password string `env:"BLUEPRINT_DB_PASSWORD" envDefault:"postgres"`
	Schema   string `env:"BLUEPRINT_DB_SCHEMA" envDefault:"public"`
	// Migrations are applied at startup when set.
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"./migrations"`
	AutoMigrate    bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`
}

// URL builds the pgx connection string.
func (d Database) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		d.Username, d.Password, d.Host, d.Port, d.Name, d.Schema)
}

type Redis struct {
	Addr     string `env:"REDIS_URL" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type Ledger struct {
	Backend         string  `env:"LEDGER_BACKEND" envDefault:"redis"`
	StartingBalance float64 `env:"STARTING_BALANCE" envDefault:"1000"`
}

type Crash struct {
	BettingTime    time.Duration `env:"CRASH_BETTING_TIME" envDefault:"7s"`
	Cooldown       time.Duration `env:"CRASH_COOLDOWN" envDefault:"3s"`
	TickInterval   time.Duration `env:"CRASH_TICK_INTERVAL" envDefault:"50ms"`
	HistorySize    int           `env:"CRASH_HISTORY_SIZE" envDefault:"20"`
	SaltRotation   int           `env:"CRASH_SALT_ROTATION" envDefault:"1000"`
	MinBet         float64       `env:"CRASH_MIN_BET" envDefault:"1"`
	MaxBet         float64       `env:"CRASH_MAX_BET" envDefault:"10000"`
	RequestTimeout time.Duration `env:"CRASH_REQUEST_TIMEOUT" envDefault:"2s"`
}

type Fairness struct {
	CacheSize int `env:"FAIRNESS_CACHE_SIZE" envDefault:"500"`
}

// Load reads the environment (and any .env file) into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 {
		errs = append(errs, errors.New("PORT must be positive"))
	}
	switch c.Ledger.Backend {
	case "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("LEDGER_BACKEND %q must be redis or memory", c.Ledger.Backend))
	}
	if c.Ledger.StartingBalance < 0 {
		errs = append(errs, errors.New("STARTING_BALANCE must not be negative"))
	}
	if c.Crash.TickInterval <= 0 || c.Crash.TickInterval >= 100*time.Millisecond {
		errs = append(errs, errors.New("CRASH_TICK_INTERVAL must be between 0 and 100ms"))
	}
	if c.Crash.BettingTime <= 0 || c.Crash.Cooldown <= 0 || c.Crash.RequestTimeout <= 0 {
		errs = append(errs, errors.New("crash durations must be positive"))
	}
	if c.Crash.HistorySize <= 0 {
		errs = append(errs, errors.New("CRASH_HISTORY_SIZE must be positive"))
	}
	if c.Crash.SaltRotation <= 0 {
		errs = append(errs, errors.New("CRASH_SALT_ROTATION must be positive"))
	}
	if c.Crash.MinBet <= 0 || c.Crash.MinBet > c.Crash.MaxBet {
		errs = append(errs, errors.New("CRASH_MIN_BET must be positive and not above CRASH_MAX_BET"))
	}
	if len(c.ChatRooms) == 0 {
		errs = append(errs, errors.New("CHAT_ROOMS must list at least one room"))
	}
	return errors.Join(errs...)
}

// IsAdmin reports whether userID is in ADMIN_USERS.
func (c Config) IsAdmin(userID string) bool {
	for _, id := range c.AdminUsers {
		if strings.TrimSpace(id) == userID && userID != "" {
			return true
		}
	}
	return false
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Storage drivers understood by Config.DBDriver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var withdrawPolicies = []string{"refund_always", "skip_rejected", "pending_only"}

// Config captures environment driven configuration values for the leave service.
type Config struct {
	HTTPPort int
	Env      string
	LogLevel string

	DBDriver    string
	SQLiteDSN   string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SessionTTL           time.Duration
	SessionPruneSchedule string

	DefaultBalance int
	WithdrawPolicy string

	WebhookURL      string
	WebhookTimeout  time.Duration
	NotifyQueueSize int
	AdminEmail      string
	AdminPassword   string
	AdminName       string
	ShutdownTimeout time.Duration
}

// IsProduction reports whether the service runs with production settings.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Load reads an optional .env file from the working directory and then parses
// configuration values from the process environment.
func Load() (Config, error) {
	return LoadWithEnvFiles(".env")
}

// LoadWithEnvFiles loads the given dotenv files, skipping missing ones, then
// parses the environment. Variables already present in the process
// environment take precedence over file entries.
func LoadWithEnvFiles(files ...string) (Config, error) {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}
	return parse()
}

func parse() (Config, error) {
	cfg := Config{
		HTTPPort:             8080,
		Env:                  "development",
		LogLevel:             "info",
		DBDriver:             DriverSQLite,
		SQLiteDSN:            "file:leaveflow.db",
		SessionTTL:           24 * time.Hour,
		SessionPruneSchedule: "@hourly",
		DefaultBalance:       25,
		WithdrawPolicy:       "refund_always",
		WebhookTimeout:       5 * time.Second,
		NotifyQueueSize:      64,
		AdminName:            "Administrator",
		ShutdownTimeout:      10 * time.Second,
	}

	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 4)

	positiveInt := func(key string, target *int, allowZero bool) {
		value := env(key)
		if value == "" {
			return
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || (n == 0 && !allowZero) {
			invalid = append(invalid, key)
			return
		}
		*target = n
	}
	duration := func(key string, target *time.Duration) {
		value := env(key)
		if value == "" {
			return
		}
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			invalid = append(invalid, key)
			return
		}
		*target = d
	}

	positiveInt("LEAVEFLOW_HTTP_PORT", &cfg.HTTPPort, false)
	if value := env("LEAVEFLOW_ENV"); value != "" {
		cfg.Env = strings.ToLower(value)
	}
	if value := env("LEAVEFLOW_LOG_LEVEL"); value != "" {
		cfg.LogLevel = strings.ToLower(value)
	}

	if value := env("LEAVEFLOW_DB_DRIVER"); value != "" {
		cfg.DBDriver = strings.ToLower(value)
	}
	if dsn := env("LEAVEFLOW_SQLITE_DSN"); dsn != "" {
		cfg.SQLiteDSN = dsn
	}
	cfg.DatabaseURL = env("LEAVEFLOW_DATABASE_URL")
	switch cfg.DBDriver {
	case DriverSQLite:
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			missing = append(missing, "LEAVEFLOW_DATABASE_URL")
		}
	default:
		invalid = append(invalid, "LEAVEFLOW_DB_DRIVER")
	}

	cfg.RedisAddr = env("LEAVEFLOW_REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("LEAVEFLOW_REDIS_PASSWORD")
	positiveInt("LEAVEFLOW_REDIS_DB", &cfg.RedisDB, true)

	duration("LEAVEFLOW_SESSION_TTL", &cfg.SessionTTL)
	if schedule := env("LEAVEFLOW_SESSION_PRUNE_SCHEDULE"); schedule != "" {
		if _, err := cron.ParseStandard(schedule); err != nil {
			invalid = append(invalid, "LEAVEFLOW_SESSION_PRUNE_SCHEDULE")
		} else {
			cfg.SessionPruneSchedule = schedule
		}
	}

	positiveInt("LEAVEFLOW_DEFAULT_BALANCE", &cfg.DefaultBalance, true)
	if policy := env("LEAVEFLOW_WITHDRAW_POLICY"); policy != "" {
		policy = strings.ToLower(policy)
		if !contains(withdrawPolicies, policy) {
			invalid = append(invalid, "LEAVEFLOW_WITHDRAW_POLICY")
		} else {
			cfg.WithdrawPolicy = policy
		}
	}

	if hook := env("LEAVEFLOW_WEBHOOK_URL"); hook != "" {
		parsed, err := url.Parse(hook)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			invalid = append(invalid, "LEAVEFLOW_WEBHOOK_URL")
		} else {
			cfg.WebhookURL = hook
		}
	}
	duration("LEAVEFLOW_WEBHOOK_TIMEOUT", &cfg.WebhookTimeout)
	positiveInt("LEAVEFLOW_NOTIFY_QUEUE_SIZE", &cfg.NotifyQueueSize, false)

	cfg.AdminEmail = env("LEAVEFLOW_ADMIN_EMAIL")
	cfg.AdminPassword = os.Getenv("LEAVEFLOW_ADMIN_PASSWORD")
	if name := env("LEAVEFLOW_ADMIN_NAME"); name != "" {
		cfg.AdminName = name
	}
	if cfg.AdminEmail != "" && cfg.AdminPassword == "" {
		missing = append(missing, "LEAVEFLOW_ADMIN_PASSWORD")
	}
	duration("LEAVEFLOW_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("environment variables have invalid values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func contains(values []string, candidate string) bool {
	for _, v := range values {
		if v == candidate {
			return true
		}
	}
	return false
}

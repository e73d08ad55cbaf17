package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/clinicore/conventions/internal/clients/redis"
	"github.com/clinicore/conventions/internal/data/db"
	"github.com/clinicore/conventions/internal/jobs/scheduler"
	"github.com/clinicore/conventions/internal/observability"
	"github.com/clinicore/conventions/internal/platform/envutil"
	"github.com/clinicore/conventions/internal/platform/logger"
)

type SchedulerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Spec        string        `yaml:"spec"`
	Timeout     time.Duration `yaml:"timeout"`
	BatchSize   int           `yaml:"batch_size"`
	Concurrency int           `yaml:"concurrency"`
	LockTTL     time.Duration `yaml:"lock_ttl"`
}

type Config struct {
	LogMode           string                   `yaml:"log_mode"`
	HookSlowThreshold time.Duration            `yaml:"hook_slow_threshold"`
	DB                db.Config                `yaml:"db"`
	Redis             redis.Config             `yaml:"redis"`
	Otel              observability.OtelConfig `yaml:"otel"`
	Scheduler         SchedulerConfig          `yaml:"scheduler"`
}

func defaultConfig() Config {
	return Config{
		LogMode:           "development",
		HookSlowThreshold: 500 * time.Millisecond,
		DB: db.Config{
			Driver:        db.DriverPostgres,
			Host:          "localhost",
			Port:          "5432",
			User:          "postgres",
			Name:          "conventions",
			SlowThreshold: time.Second,
			MaxOpenConns:  20,
		},
		Otel: observability.OtelConfig{
			ServiceName: "conventions",
			Environment: "development",
			SampleRatio: 1,
		},
		Scheduler: SchedulerConfig{
			Enabled:     true,
			Spec:        scheduler.DefaultSpec,
			Timeout:     50 * time.Second,
			BatchSize:   200,
			Concurrency: 4,
			LockTTL:     55 * time.Second,
		},
	}
}

// LoadConfig layers defaults, the optional YAML file named by CONVENTIONS_CONFIG and
// the environment, in that order.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := defaultConfig()
	if path := strings.TrimSpace(os.Getenv("CONVENTIONS_CONFIG")); path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			return cfg, err
		}
		if log != nil {
			log.Info("Loaded config file", "path", path)
		}
	}
	applyEnv(&cfg, log)
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, log *logger.Logger) {
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode, log)
	cfg.HookSlowThreshold = envutil.Duration("AGGREGATE_SLOW_THRESHOLD", cfg.HookSlowThreshold, log)

	cfg.DB.Driver = envutil.String("DB_DRIVER", cfg.DB.Driver, log)
	cfg.DB.DSN = envutil.String("DATABASE_URL", cfg.DB.DSN, log)
	cfg.DB.Host = envutil.String("POSTGRES_HOST", cfg.DB.Host, log)
	cfg.DB.Port = envutil.String("POSTGRES_PORT", cfg.DB.Port, log)
	cfg.DB.User = envutil.String("POSTGRES_USER", cfg.DB.User, log)
	cfg.DB.Password = envutil.String("POSTGRES_PASSWORD", cfg.DB.Password, log)
	cfg.DB.Name = envutil.String("POSTGRES_NAME", cfg.DB.Name, log)
	cfg.DB.SQLitePath = envutil.String("SQLITE_PATH", cfg.DB.SQLitePath, log)
	cfg.DB.SlowThreshold = envutil.Duration("DB_SLOW_THRESHOLD", cfg.DB.SlowThreshold, log)
	cfg.DB.MaxOpenConns = envutil.Int("DB_MAX_OPEN_CONNS", cfg.DB.MaxOpenConns, log)
	cfg.DB.TxIsolation = envutil.String("DB_TX_ISOLATION", cfg.DB.TxIsolation, log)

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr, log)
	cfg.Redis.Password = envutil.String("REDIS_PASSWORD", cfg.Redis.Password, log)
	cfg.Redis.DB = envutil.Int("REDIS_DB", cfg.Redis.DB, log)
	cfg.Redis.Prefix = envutil.String("REDIS_LOCK_PREFIX", cfg.Redis.Prefix, log)

	cfg.Otel.Enabled = envutil.Bool("OTEL_ENABLED", cfg.Otel.Enabled, log)
	cfg.Otel.ServiceName = envutil.String("OTEL_SERVICE_NAME", cfg.Otel.ServiceName, log)
	cfg.Otel.Environment = envutil.String("OTEL_ENVIRONMENT", cfg.Otel.Environment, log)
	cfg.Otel.Version = envutil.String("OTEL_SERVICE_VERSION", cfg.Otel.Version, log)
	cfg.Otel.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Otel.Endpoint, log)
	cfg.Otel.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Otel.Insecure, log)
	cfg.Otel.SampleRatio = envutil.Float("OTEL_SAMPLE_RATIO", cfg.Otel.SampleRatio, log)
	if raw := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")); raw != "" {
		cfg.Otel.Headers = observability.ParseHeaders(raw)
	}

	cfg.Scheduler.Enabled = envutil.Bool("SCHEDULER_ENABLED", cfg.Scheduler.Enabled, log)
	cfg.Scheduler.Spec = envutil.String("SCHEDULER_SPEC", cfg.Scheduler.Spec, log)
	cfg.Scheduler.Timeout = envutil.Duration("SCHEDULER_TIMEOUT", cfg.Scheduler.Timeout, log)
	cfg.Scheduler.BatchSize = envutil.Int("SCHEDULER_BATCH_SIZE", cfg.Scheduler.BatchSize, log)
	cfg.Scheduler.Concurrency = envutil.Int("SCHEDULER_CONCURRENCY", cfg.Scheduler.Concurrency, log)
	cfg.Scheduler.LockTTL = envutil.Duration("SCHEDULER_LOCK_TTL", cfg.Scheduler.LockTTL, log)
}

func (c Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.DB.Driver)) {
	case db.DriverPostgres, db.DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	if _, err := c.DB.TxOptions(); err != nil {
		return fmt.Errorf("DB_TX_ISOLATION: %w", err)
	}
	if c.Otel.SampleRatio < 0 || c.Otel.SampleRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATIO must be within [0,1], got %v", c.Otel.SampleRatio)
	}
	if c.Scheduler.Timeout > 0 && c.Scheduler.LockTTL > 0 && c.Scheduler.LockTTL < c.Scheduler.Timeout {
		return fmt.Errorf("scheduler lock ttl %s shorter than tick timeout %s", c.Scheduler.LockTTL, c.Scheduler.Timeout)
	}
	return nil
}

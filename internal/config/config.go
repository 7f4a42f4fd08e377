package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	AppName     string `mapstructure:"app_name"`
	Environment string `mapstructure:"app_env"`
	HTTPPort    int    `mapstructure:"http_port"`
	LogLevel    string `mapstructure:"log_level"`

	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Router    RouterConfig    `mapstructure:"router"`
	Billing   BillingConfig   `mapstructure:"billing"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Vault     VaultConfig     `mapstructure:"vault"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Metrics         bool          `mapstructure:"metrics"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RouterConfig struct {
	DefaultAPIPort    int           `mapstructure:"default_api_port"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	ProvisioningPause time.Duration `mapstructure:"provisioning_pause"`
	PasswordLength    int           `mapstructure:"password_length"`
}

type BillingConfig struct {
	Timezone  string `mapstructure:"timezone"`
	GraceDays int    `mapstructure:"grace_days"`
}

type SchedulerConfig struct {
	Enabled              bool          `mapstructure:"enabled"`
	BillingCycleSpec     string        `mapstructure:"billing_cycle_spec"`
	SuspensionCheckSpec  string        `mapstructure:"suspension_check_spec"`
	OverdueSweepSpec     string        `mapstructure:"overdue_sweep_spec"`
	RouterHealthSpec     string        `mapstructure:"router_health_spec"`
	SyncLogRetentionSpec string        `mapstructure:"sync_log_retention_spec"`
	SyncLogRetentionDays int           `mapstructure:"sync_log_retention_days"`
	LeaseTTL             time.Duration `mapstructure:"lease_ttl"`
}

type VaultConfig struct {
	Provider string `mapstructure:"provider"`
	Key      string `mapstructure:"key"`
}

func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, EnvDevelopment)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "ispbilling")
	v.SetDefault("app_env", EnvProduction)
	v.SetDefault("http_port", 8080)
	v.SetDefault("log_level", "info")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "ispbilling")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.metrics", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("router.default_api_port", 8728)
	v.SetDefault("router.connect_timeout", 5*time.Second)
	v.SetDefault("router.provisioning_pause", time.Second)
	v.SetDefault("router.password_length", 12)

	v.SetDefault("billing.timezone", "UTC")
	v.SetDefault("billing.grace_days", 7)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.billing_cycle_spec", "10 0 * * *")
	v.SetDefault("scheduler.overdue_sweep_spec", "30 0 * * *")
	v.SetDefault("scheduler.suspension_check_spec", "0 1 * * *")
	v.SetDefault("scheduler.router_health_spec", "*/5 * * * *")
	v.SetDefault("scheduler.sync_log_retention_spec", "0 3 * * *")
	v.SetDefault("scheduler.sync_log_retention_days", 90)
	v.SetDefault("scheduler.lease_ttl", 10*time.Minute)

	v.SetDefault("vault.provider", "aes")
	v.SetDefault("vault.key", "")
}

// Load reads an optional .env file, then environment variables.
// Nested keys map to env names with "_" (DATABASE_DRIVER, SCHEDULER_LEASE_TTL).
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range v.AllKeys() {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Billing.GraceDays < 0 {
		return errors.New("billing grace days must not be negative")
	}
	if c.Router.ConnectTimeout <= 0 {
		return errors.New("router connect timeout must be positive")
	}
	if c.Scheduler.LeaseTTL <= 0 {
		return errors.New("scheduler lease ttl must be positive")
	}
	return nil
}

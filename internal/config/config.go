package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	DB          DBConfig          `mapstructure:"db"`
	Cron        CronConfig        `mapstructure:"cron"`
	Marketplace MarketplaceConfig `mapstructure:"marketplace"`
	RateLimits  RateLimitConfig   `mapstructure:"rate_limits"`
	Sync        SyncConfig        `mapstructure:"sync"`
	Registry    RegistryConfig    `mapstructure:"registry"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	IncrementalSync string `mapstructure:"incremental_sync"`
	Reaper          string `mapstructure:"reaper"`
	Retention       string `mapstructure:"retention"`
}

// AccountConfig holds credentials for one seller account scope.
type AccountConfig struct {
	Scope  string `mapstructure:"scope"`
	APIKey string `mapstructure:"api_key"`
}

type MarketplaceConfig struct {
	BaseURL        string          `mapstructure:"base_url"`
	Timeout        time.Duration   `mapstructure:"timeout"`
	MaxRetries     int             `mapstructure:"max_retries"`
	RetryBaseDelay time.Duration   `mapstructure:"retry_base_delay"`
	Accounts       []AccountConfig `mapstructure:"accounts"`
}

// RateLimitConfig carries requests-per-second caps per API category.
// The remote limits are scoped to the credential population, so one limiter
// instance is shared by every account and worker.
type RateLimitConfig struct {
	Orders   float64 `mapstructure:"orders"`
	Offers   float64 `mapstructure:"offers"`
	Returns  float64 `mapstructure:"returns"`
	Invoices float64 `mapstructure:"invoices"`
	Burst    int     `mapstructure:"burst"`
}

type SyncConfig struct {
	PageSize            int           `mapstructure:"page_size"`
	MaxPages            int           `mapstructure:"max_pages"`
	BatchSize           int           `mapstructure:"batch_size"`
	PerPageLatency      time.Duration `mapstructure:"per_page_latency"`
	BudgetSafetyFactor  float64       `mapstructure:"budget_safety_factor"`
	MinRunBudget        time.Duration `mapstructure:"min_run_budget"`
	StaleAfter          time.Duration `mapstructure:"stale_after"`
	MaxRecordedErrors   int           `mapstructure:"max_recorded_errors"`
	ConcurrentAccounts  bool          `mapstructure:"concurrent_accounts"`
	DefaultStrategy     string        `mapstructure:"default_strategy"`
	ScheduledResources  []string      `mapstructure:"scheduled_resources"`
	ScheduledAccounts   []string      `mapstructure:"scheduled_accounts"`
	ScheduledMode       string        `mapstructure:"scheduled_mode"`
	EstimatedTotalPages int           `mapstructure:"estimated_total_pages"`
}

type RegistryConfig struct {
	RetentionWindow time.Duration `mapstructure:"retention_window"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.incremental_sync", "@every 15m")
	v.SetDefault("cron.reaper", "@every 5m")
	v.SetDefault("cron.retention", "@daily")
	v.SetDefault("marketplace.base_url", "https://marketplace.example.com/api/v2")
	v.SetDefault("marketplace.timeout", "30s")
	v.SetDefault("marketplace.max_retries", 3)
	v.SetDefault("marketplace.retry_base_delay", "1s")
	v.SetDefault("rate_limits.orders", 12)
	v.SetDefault("rate_limits.offers", 3)
	v.SetDefault("rate_limits.returns", 5)
	v.SetDefault("rate_limits.invoices", 3)
	v.SetDefault("rate_limits.burst", 0)
	v.SetDefault("sync.page_size", 100)
	v.SetDefault("sync.max_pages", 0)
	v.SetDefault("sync.batch_size", 100)
	v.SetDefault("sync.per_page_latency", "2s")
	v.SetDefault("sync.budget_safety_factor", 3.0)
	v.SetDefault("sync.min_run_budget", "60s")
	v.SetDefault("sync.stale_after", "1h")
	v.SetDefault("sync.max_recorded_errors", 20)
	v.SetDefault("sync.concurrent_accounts", false)
	v.SetDefault("sync.default_strategy", "remote_priority")
	v.SetDefault("sync.scheduled_resources", []string{"products", "orders"})
	v.SetDefault("sync.scheduled_accounts", []string{})
	v.SetDefault("sync.scheduled_mode", "incremental")
	v.SetDefault("sync.estimated_total_pages", 50)
	v.SetDefault("registry.retention_window", "2160h")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

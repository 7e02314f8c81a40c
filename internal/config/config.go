package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"pricewatch/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	History   HistoryConfig   `mapstructure:"history"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Report    ReportConfig    `mapstructure:"report"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Asset       string `mapstructure:"asset"`
}

// ProviderConfig describes the quote endpoint.
type ProviderConfig struct {
	URL            string        `mapstructure:"url"`
	PricePath      string        `mapstructure:"price_path"`
	TimestampPath  string        `mapstructure:"timestamp_path"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	RateLimit      float64       `mapstructure:"rate_limit"`
}

// History backends.
const (
	BackendCSV      = "csv"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

// HistoryConfig selects and parameterises the append-only store.
type HistoryConfig struct {
	Backend  string         `mapstructure:"backend"`
	Path     string         `mapstructure:"path"`
	Database DatabaseConfig `mapstructure:"database"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// AnalysisConfig holds the moving-average window and spike threshold.
type AnalysisConfig struct {
	WindowSize int     `mapstructure:"window_size"`
	Threshold  float64 `mapstructure:"threshold"`
	TailSize   int     `mapstructure:"tail_size"`
}

// Run lock backends.
const (
	LockNone     = "none"
	LockPostgres = "postgres"
	LockRedis    = "redis"
)

// SchedulerConfig governs sampling cadence.
type SchedulerConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
	RunOnStart    bool          `mapstructure:"run_on_start"`
	Lock          LockConfig    `mapstructure:"lock"`
}

// LockConfig configures the single-writer run lock.
type LockConfig struct {
	Backend string        `mapstructure:"backend"`
	Key     int64         `mapstructure:"key"`
	Name    string        `mapstructure:"name"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// ReportConfig controls chart artifacts.
type ReportConfig struct {
	ChartPath string   `mapstructure:"chart_path"`
	HTMLPath  string   `mapstructure:"html_path"`
	Title     string   `mapstructure:"title"`
	Width     int      `mapstructure:"width"`
	Height    int      `mapstructure:"height"`
	S3        S3Config `mapstructure:"s3"`
}

// S3Config enables uploading rendered artifacts.
type S3Config struct {
	Enabled         bool   `mapstructure:"enabled"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	PathStyle       bool   `mapstructure:"path_style"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Timeout  time.Duration  `mapstructure:"timeout"`
	Log      LogAlertConfig `mapstructure:"log"`
	Email    EmailConfig    `mapstructure:"email"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
}

// LogAlertConfig writes alerts to the application log.
type LogAlertConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// EmailConfig describes SMTP delivery.
type EmailConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// TelegramConfig holds Bot API credentials for the telegram channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// WebhookConfig posts alerts to an HTTP endpoint.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// MetricsConfig exposes Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// RedisConfig is used by the redis run lock.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int    `mapstructure:"max_data_points"`
	Compression   string `mapstructure:"compression"`
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("PRICEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// bindLegacyEnv keeps the variable names used by earlier .env files working.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"provider.url":            {"PRICEWATCH_PROVIDER_URL", "API_URL"},
		"alerting.email.username": {"PRICEWATCH_ALERTING_EMAIL_USERNAME", "ALERT_EMAIL"},
		"alerting.email.password": {"PRICEWATCH_ALERTING_EMAIL_PASSWORD", "EMAIL_APP_PASSWORD"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "pricewatch")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.asset", "bitcoin")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 14)

	v.SetDefault("provider.url", "https://api.coingecko.com/api/v3/simple/price?ids=bitcoin&vs_currencies=usd")
	v.SetDefault("provider.price_path", "bitcoin.usd")
	v.SetDefault("provider.request_timeout", "10s")
	v.SetDefault("provider.rate_limit", 0.5)

	v.SetDefault("history.backend", BackendCSV)
	v.SetDefault("history.path", "bitcoin_data.csv")
	v.SetDefault("history.database.max_open_conns", 4)
	v.SetDefault("history.database.max_idle_conns", 1)
	v.SetDefault("history.database.conn_max_lifetime", "30m")

	v.SetDefault("analysis.window_size", 2)
	v.SetDefault("analysis.threshold", 0.05)
	v.SetDefault("analysis.tail_size", 5)

	v.SetDefault("scheduler.interval", "5m")
	v.SetDefault("scheduler.align_to_bucket", false)
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.run_on_start", true)
	v.SetDefault("scheduler.lock.backend", LockNone)
	v.SetDefault("scheduler.lock.key", int64(0x70726963))
	v.SetDefault("scheduler.lock.name", "pricewatch:run")
	v.SetDefault("scheduler.lock.ttl", "2m")

	v.SetDefault("report.chart_path", "bitcoin_trend.png")
	v.SetDefault("report.title", "Bitcoin Price Trend")
	v.SetDefault("report.width", 1280)
	v.SetDefault("report.height", 720)
	v.SetDefault("report.s3.prefix", "charts")

	v.SetDefault("alerting.enabled", true)
	v.SetDefault("alerting.timeout", "10s")
	v.SetDefault("alerting.log.enabled", true)
	v.SetDefault("alerting.email.host", "smtp.gmail.com")
	v.SetDefault("alerting.email.port", 465)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("metrics.listen", ":9108")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("redis.addr", "localhost:6379")

	v.SetDefault("export.max_data_points", 100000)
	v.SetDefault("export.compression", "snappy")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// applyDerived fills values that default from other settings.
func (c *Config) applyDerived() {
	c.History.Backend = strings.ToLower(strings.TrimSpace(c.History.Backend))
	c.Scheduler.Lock.Backend = strings.ToLower(strings.TrimSpace(c.Scheduler.Lock.Backend))
	if c.Scheduler.Lock.Backend == "" {
		c.Scheduler.Lock.Backend = LockNone
	}
	email := &c.Alerting.Email
	if email.From == "" {
		email.From = email.Username
	}
	if len(email.To) == 0 && email.From != "" {
		email.To = []string{email.From}
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Analysis.WindowSize < 1 {
		return fmt.Errorf("analysis.window_size must be at least 1")
	}
	if c.Analysis.Threshold < 0 {
		return fmt.Errorf("analysis.threshold cannot be negative")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if strings.TrimSpace(c.Provider.URL) == "" {
		return fmt.Errorf("provider.url is required")
	}
	if strings.TrimSpace(c.Provider.PricePath) == "" {
		return fmt.Errorf("provider.price_path is required")
	}

	switch c.History.Backend {
	case BackendCSV, BackendSQLite:
		if strings.TrimSpace(c.History.Path) == "" {
			return fmt.Errorf("history.path is required for backend %s", c.History.Backend)
		}
	case BackendPostgres:
		if c.History.Database.DSN == "" {
			return fmt.Errorf("history.database.dsn is required for backend postgres")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("history.backend %q is not supported", c.History.Backend)
	}

	switch c.Scheduler.Lock.Backend {
	case LockNone, LockRedis:
	case LockPostgres:
		if c.History.Backend != BackendPostgres {
			return fmt.Errorf("scheduler.lock.backend postgres requires history.backend postgres")
		}
	default:
		return fmt.Errorf("scheduler.lock.backend %q is not supported", c.Scheduler.Lock.Backend)
	}

	if c.Alerting.Email.Enabled {
		if c.Alerting.Email.Username == "" || c.Alerting.Email.Password == "" {
			return fmt.Errorf("alerting.email.username and alerting.email.password must be set")
		}
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required when telegram is enabled")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required when telegram is enabled")
		}
	}
	if c.Alerting.Webhook.Enabled && c.Alerting.Webhook.URL == "" {
		return fmt.Errorf("alerting.webhook.url must be set")
	}
	if c.Report.S3.Enabled && c.Report.S3.Bucket == "" {
		return fmt.Errorf("report.s3.bucket must be set")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}

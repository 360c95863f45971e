package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token     string  `yaml:"token"`
	Username  string  `yaml:"username"`
	AdminIDs  []int64 `yaml:"admin_ids"` // bootstrap admins, applied idempotently on start
	WebAppURL string  `yaml:"webapp_url"`
}

type AuthConfig struct {
	InitDataMaxAge    time.Duration `yaml:"init_data_max_age"`
	TestBypassEnabled bool          `yaml:"test_bypass_enabled"`
	TestBypassMarker  string        `yaml:"test_bypass_marker"`
	SessionSecret     string        `yaml:"session_secret"`
	SessionTTL        time.Duration `yaml:"session_ttl"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type TONConfig struct {
	APIURL        string `yaml:"api_url"`
	APIKey        string `yaml:"api_key"`
	WalletAddress string `yaml:"wallet_address"`
}

type PaymentConfig struct {
	Currency        string        `yaml:"currency"`
	MemoLength      int           `yaml:"memo_length"`
	MemoMaxAttempts int           `yaml:"memo_max_attempts"`
	PendingTTL      time.Duration `yaml:"pending_ttl"`
	IPNSecret       string        `yaml:"ipn_secret"` // NOWPayments
	TON             TONConfig     `yaml:"ton"`
}

type SchedulerConfig struct {
	ExpirySweepCron    string        `yaml:"expiry_sweep_cron"`
	DemoReminderCron   string        `yaml:"demo_reminder_cron"`
	DemoReminderBefore time.Duration `yaml:"demo_reminder_before"`
	PaymentWatchCron   string        `yaml:"payment_watch_cron"`
}

type EventsConfig struct {
	AMQPURL  string `yaml:"amqp_url"` // empty: events are only logged
	Exchange string `yaml:"exchange"`
}

type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
}

type Config struct {
	Env       string          `yaml:"env"`
	Bot       BotConfig       `yaml:"bot"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Payment   PaymentConfig   `yaml:"payment"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Events    EventsConfig    `yaml:"events"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads .env (if present), then the YAML file at path with ${VAR}
// references expanded from the environment.
func LoadConfig(path string, dev bool) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse expands env references in b, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Env == "" {
		c.Env = EnvProduction
	}
	c.Env = strings.ToLower(c.Env)
	if c.Auth.InitDataMaxAge == 0 {
		c.Auth.InitDataMaxAge = 24 * time.Hour
	}
	if c.Auth.SessionTTL <= 0 {
		c.Auth.SessionTTL = time.Hour
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.RequestTimeout <= 0 {
		c.HTTP.RequestTimeout = 15 * time.Second
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 10
	}
	c.Redis.TTL = normalizeTTL(c.Redis.TTL)
	if c.Payment.Currency == "" {
		c.Payment.Currency = "TON"
	}
	if c.Payment.MemoLength == 0 {
		c.Payment.MemoLength = 10
	}
	if c.Payment.MemoMaxAttempts <= 0 {
		c.Payment.MemoMaxAttempts = 5
	}
	if c.Payment.PendingTTL <= 0 {
		c.Payment.PendingTTL = 30 * time.Minute
	}
	if c.Payment.TON.APIURL == "" {
		c.Payment.TON.APIURL = "https://toncenter.com/api/v2"
	}
	if c.Scheduler.ExpirySweepCron == "" {
		c.Scheduler.ExpirySweepCron = "@every 5m"
	}
	if c.Scheduler.DemoReminderCron == "" {
		c.Scheduler.DemoReminderCron = "@every 15m"
	}
	if c.Scheduler.DemoReminderBefore <= 0 {
		c.Scheduler.DemoReminderBefore = 24 * time.Hour
	}
	if c.Scheduler.PaymentWatchCron == "" {
		c.Scheduler.PaymentWatchCron = "@every 30s"
	}
	if c.Events.Exchange == "" {
		c.Events.Exchange = "tma.events"
	}
	if c.RateLimit.PerMinute <= 0 {
		c.RateLimit.PerMinute = 20
	}
}

// Validate rejects configurations that are unsafe or cannot start.
func (c *Config) Validate() error {
	switch c.Env {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		return fmt.Errorf("env must be one of development|staging|production, got %q", c.Env)
	}
	if c.Bot.Token == "" && c.Env != EnvDevelopment {
		return errors.New("bot.token is required outside development")
	}
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	if c.Auth.InitDataMaxAge < time.Minute {
		return errors.New("auth.init_data_max_age must be at least 1m")
	}
	if c.Auth.TestBypassEnabled {
		if c.IsProduction() {
			return errors.New("auth.test_bypass_enabled is not allowed in production")
		}
		if strings.TrimSpace(c.Auth.TestBypassMarker) == "" {
			return errors.New("auth.test_bypass_marker is required when the bypass is enabled")
		}
	}
	if c.Auth.SessionSecret != "" && len(c.Auth.SessionSecret) < 32 {
		return errors.New("auth.session_secret must be at least 32 bytes")
	}
	if c.Payment.MemoLength < 8 {
		return errors.New("payment.memo_length must be at least 8")
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.Env == EnvProduction }

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}

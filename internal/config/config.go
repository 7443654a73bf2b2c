package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Borrow    BorrowConfig    `yaml:"borrow"`
	Services  ServicesConfig  `yaml:"services"`
	Events    EventsConfig    `yaml:"events"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host           string  `yaml:"host"`
	Port           int     `yaml:"port"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	User          string `yaml:"user"`
	Password      string `yaml:"password"`
	Database      string `yaml:"database"`
	SSLMode       string `yaml:"ssl_mode"`
	MaxOpenConns  int    `yaml:"max_open_conns"`
	RunMigrations bool   `yaml:"run_migrations"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// BorrowConfig contains loan policy settings
type BorrowConfig struct {
	DefaultLoanDays  int   `yaml:"default_loan_days"`
	ExtensionDays    int   `yaml:"extension_days"`
	MaxExtensions    int   `yaml:"max_extensions"`
	FinePerDayCents  int64 `yaml:"fine_per_day_cents"`
	MaxActiveBorrows int   `yaml:"max_active_borrows"`
}

// ServicesConfig selects the gateway variant and configures each remote service
type ServicesConfig struct {
	Mode string        `yaml:"mode"` // "live" or "stub"
	User ServiceConfig `yaml:"user"`
	Book ServiceConfig `yaml:"book"`
}

// ServiceConfig contains settings for one remote service
type ServiceConfig struct {
	URL           string        `yaml:"url"`
	TimeoutMS     int           `yaml:"timeout_ms"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryDelayMS  int           `yaml:"retry_delay_ms"`
	Breaker       BreakerConfig `yaml:"breaker"`
}

// BreakerConfig contains circuit breaker thresholds
type BreakerConfig struct {
	FailureThreshold     int `yaml:"failure_threshold"`
	FailureRateThreshold int `yaml:"failure_rate_threshold"` // percent
	MinimumCalls         int `yaml:"minimum_calls"`
	WindowSize           int `yaml:"window_size"`
	SuccessThreshold     int `yaml:"success_threshold"`
	OpenTimeoutMS        int `yaml:"open_timeout_ms"`
}

// EventsConfig contains event publishing settings
type EventsConfig struct {
	Sink             string       `yaml:"sink"` // "redis" or "log"
	PublishTimeoutMS int          `yaml:"publish_timeout_ms"`
	Redis            RedisConfig  `yaml:"redis"`
	Topics           TopicsConfig `yaml:"topics"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// TopicsConfig names the three event topics
type TopicsConfig struct {
	BorrowCreated   string `yaml:"borrow_created"`
	ReturnProcessed string `yaml:"return_processed"`
	DueDateChanged  string `yaml:"due_date_changed"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	Enabled            bool   `yaml:"enabled"`
	MarkOverdueBorrows string `yaml:"mark_overdue_borrows"`
}

// DefaultBorrowConfig returns the loan policy used for keys the config file
// leaves out.
func DefaultBorrowConfig() BorrowConfig {
	return BorrowConfig{
		DefaultLoanDays:  14,
		ExtensionDays:    7,
		MaxExtensions:    2,
		FinePerDayCents:  100, // $1.00
		MaxActiveBorrows: 5,
	}
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Policy defaults are set before decoding so an explicit 0 in the file
	// survives.
	cfg := Config{Borrow: DefaultBorrowConfig()}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	// Remote services
	if val := os.Getenv("SERVICES_MODE"); val != "" {
		c.Services.Mode = val
	}
	if val := os.Getenv("USER_SERVICE_URL"); val != "" {
		c.Services.User.URL = val
	}
	if val := os.Getenv("BOOK_SERVICE_URL"); val != "" {
		c.Services.Book.URL = val
	}

	// Events
	if val := os.Getenv("EVENTS_SINK"); val != "" {
		c.Events.Sink = val
	}
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		c.Events.Redis.Addr = val
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		c.Events.Redis.Password = val
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid and fills in defaults
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}

	// Borrow policy. Zero extensions, zero fines and a zero cap are valid
	// policies; defaults come from DefaultBorrowConfig.
	if c.Borrow.DefaultLoanDays <= 0 || c.Borrow.ExtensionDays <= 0 {
		return fmt.Errorf("loan and extension days must be positive")
	}
	if c.Borrow.MaxExtensions < 0 || c.Borrow.MaxActiveBorrows < 0 {
		return fmt.Errorf("borrow limits must not be negative")
	}
	if c.Borrow.FinePerDayCents < 0 {
		return fmt.Errorf("fine per day must not be negative")
	}

	// Remote services
	if c.Services.Mode == "" {
		c.Services.Mode = "live"
	}
	switch c.Services.Mode {
	case "live":
		if c.Services.User.URL == "" {
			return fmt.Errorf("user service url is required in live mode")
		}
		if c.Services.Book.URL == "" {
			return fmt.Errorf("book service url is required in live mode")
		}
	case "stub":
	default:
		return fmt.Errorf("unsupported services mode: %s", c.Services.Mode)
	}
	c.Services.User.applyDefaults()
	c.Services.Book.applyDefaults()

	// Events
	if c.Events.Sink == "" {
		c.Events.Sink = "log"
	}
	switch c.Events.Sink {
	case "redis":
		if c.Events.Redis.Addr == "" {
			return fmt.Errorf("redis address is required for the redis event sink")
		}
	case "log":
	default:
		return fmt.Errorf("unsupported event sink: %s", c.Events.Sink)
	}
	if c.Events.PublishTimeoutMS == 0 {
		c.Events.PublishTimeoutMS = 3000
	}
	if c.Events.Topics.BorrowCreated == "" {
		c.Events.Topics.BorrowCreated = "borrow-events"
	}
	if c.Events.Topics.ReturnProcessed == "" {
		c.Events.Topics.ReturnProcessed = "return-events"
	}
	if c.Events.Topics.DueDateChanged == "" {
		c.Events.Topics.DueDateChanged = "due-date-events"
	}

	// Scheduler defaults
	if c.Scheduler.MarkOverdueBorrows == "" {
		c.Scheduler.MarkOverdueBorrows = "0 0 * * * *" // hourly, on the hour (UTC)
	}

	if c.Server.RateLimitRPS == 0 {
		c.Server.RateLimitRPS = 50
	}
	if c.Server.RateLimitBurst == 0 {
		c.Server.RateLimitBurst = 100
	}

	return nil
}

func (s *ServiceConfig) applyDefaults() {
	if s.TimeoutMS == 0 {
		s.TimeoutMS = 5000
	}
	if s.RetryAttempts == 0 {
		s.RetryAttempts = 3
	}
	if s.RetryDelayMS == 0 {
		s.RetryDelayMS = 1000
	}
	if s.Breaker.FailureThreshold == 0 {
		s.Breaker.FailureThreshold = 5
	}
	if s.Breaker.FailureRateThreshold == 0 {
		s.Breaker.FailureRateThreshold = 50
	}
	if s.Breaker.MinimumCalls == 0 {
		s.Breaker.MinimumCalls = 10
	}
	if s.Breaker.WindowSize == 0 {
		s.Breaker.WindowSize = 20
	}
	if s.Breaker.SuccessThreshold == 0 {
		s.Breaker.SuccessThreshold = 2
	}
	if s.Breaker.OpenTimeoutMS == 0 {
		s.Breaker.OpenTimeoutMS = 30000
	}
}

// Timeout returns the per-call timeout
func (s ServiceConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// RetryDelay returns the pause between retry attempts
func (s ServiceConfig) RetryDelay() time.Duration {
	return time.Duration(s.RetryDelayMS) * time.Millisecond
}

// OpenTimeout returns how long a tripped breaker stays open
func (b BreakerConfig) OpenTimeout() time.Duration {
	return time.Duration(b.OpenTimeoutMS) * time.Millisecond
}

// PublishTimeout bounds a single event publish
func (e EventsConfig) PublishTimeout() time.Duration {
	return time.Duration(e.PublishTimeoutMS) * time.Millisecond
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

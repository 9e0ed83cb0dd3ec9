// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Server        ServerConfig       `mapstructure:"server"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Tokens        TokenConfig        `mapstructure:"tokens"`
	ESign         ESignConfig        `mapstructure:"esign"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Events        EventsConfig       `mapstructure:"events"`
	RateLimit     RateLimitConfig    `mapstructure:"rate_limit"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	// PublicBaseURL prefixes links sent to candidates, e.g. https://onboarding.example.com
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ReadTimeout     int `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int `mapstructure:"shutdown_timeout"` // milliseconds
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// TokenConfig controls candidate access tokens.
type TokenConfig struct {
	TTLHours int `mapstructure:"ttl_hours"`
}

// ESignConfig holds PandaDoc settings.
type ESignConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	TemplateID     string `mapstructure:"template_id"`
	WebhookKey     string `mapstructure:"webhook_key"`
	HRSignerEmail  string `mapstructure:"hr_signer_email"`
	HRSignerName   string `mapstructure:"hr_signer_name"`
	NDRole         string `mapstructure:"nd_role"`
	HRRole         string `mapstructure:"hr_role"`
	CandidateRole  string `mapstructure:"candidate_role"`
	PollAttempts   int    `mapstructure:"poll_attempts"`
	PollInterval   int    `mapstructure:"poll_interval"` // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"`
	DedupTTL       int    `mapstructure:"dedup_ttl"` // milliseconds
}

// NotificationConfig holds email and SMS settings.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// EventsConfig selects where lifecycle events are published.
type EventsConfig struct {
	Kafka struct {
		Enabled      bool     `mapstructure:"enabled"`
		Brokers      []string `mapstructure:"brokers"`
		Topic        string   `mapstructure:"topic"`
		MaxRetries   int      `mapstructure:"max_retries"`
		RetryBackoff int      `mapstructure:"retry_backoff"` // milliseconds
	} `mapstructure:"kafka"`
	Camunda struct {
		Enabled       bool   `mapstructure:"enabled"`
		BrokerAddress string `mapstructure:"broker_address"`
		MessageName   string `mapstructure:"message_name"`
		MessageTTL    int    `mapstructure:"message_ttl"` // milliseconds
	} `mapstructure:"camunda"`
}

// RateLimitConfig throttles the unauthenticated candidate endpoints.
type RateLimitConfig struct {
	Candidate struct {
		Limit  int `mapstructure:"limit"`
		Window int `mapstructure:"window"` // milliseconds
	} `mapstructure:"candidate"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

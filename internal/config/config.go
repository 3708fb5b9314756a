package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	AWS       AWSConfig       `yaml:"aws"`
	APNs      APNsConfig      `yaml:"apns"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	AMQP      AMQPConfig      `yaml:"amqp"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" env:"SERVER_PORT"`
	Host            string        `yaml:"host" env:"SERVER_HOST"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	// Driver is "postgres" or "memory".
	Driver       string `yaml:"driver" env:"DATABASE_DRIVER"`
	Host         string `yaml:"host" env:"DATABASE_HOST"`
	Port         int    `yaml:"port" env:"DATABASE_PORT"`
	User         string `yaml:"user" env:"DATABASE_USER"`
	Password     string `yaml:"password" env:"DATABASE_PASSWORD"`
	DBName       string `yaml:"dbname" env:"DATABASE_NAME"`
	SSLMode      string `yaml:"sslmode" env:"DATABASE_SSLMODE"`
	Migrate      bool   `yaml:"migrate" env:"DATABASE_MIGRATE"`
	MaxTxRetries int    `yaml:"max_tx_retries" env:"DATABASE_MAX_TX_RETRIES"`
}

// AuthConfig holds identity provider settings. JWKSURL wins over JWTSecret.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"AUTH_JWT_SECRET"`
	JWKSURL   string `yaml:"jwks_url" env:"AUTH_JWKS_URL"`
	Issuer    string `yaml:"issuer" env:"AUTH_ISSUER"`
}

// AWSConfig holds AWS configuration
type AWSConfig struct {
	Region        string `yaml:"region" env:"AWS_REGION"`
	S3Bucket      string `yaml:"s3_bucket" env:"AWS_S3_BUCKET"`
	AccessKey     string `yaml:"access_key" env:"AWS_ACCESS_KEY"`
	SecretKey     string `yaml:"secret_key" env:"AWS_SECRET_KEY"`
	Endpoint      string `yaml:"endpoint" env:"AWS_ENDPOINT"`
	PublicBaseURL string `yaml:"public_base_url" env:"AWS_PUBLIC_BASE_URL"`
}

// APNsConfig holds Apple push settings. Push is disabled when KeyPath is empty.
type APNsConfig struct {
	KeyPath    string `yaml:"key_path" env:"APNS_KEY_PATH"`
	KeyID      string `yaml:"key_id" env:"APNS_KEY_ID"`
	TeamID     string `yaml:"team_id" env:"APNS_TEAM_ID"`
	Topic      string `yaml:"topic" env:"APNS_TOPIC"`
	Production bool   `yaml:"production" env:"APNS_PRODUCTION"`
}

// RedisConfig holds redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

// RateLimitConfig configures the token bucket applied to the API
type RateLimitConfig struct {
	Enabled        bool          `yaml:"enabled" env:"RATE_LIMIT_ENABLED"`
	Capacity       int           `yaml:"capacity" env:"RATE_LIMIT_CAPACITY"`
	RefillTokens   int           `yaml:"refill_tokens" env:"RATE_LIMIT_REFILL_TOKENS"`
	RefillInterval time.Duration `yaml:"refill_interval" env:"RATE_LIMIT_REFILL_INTERVAL"`
	TTL            time.Duration `yaml:"ttl" env:"RATE_LIMIT_TTL"`
	Prefix         string        `yaml:"prefix" env:"RATE_LIMIT_PREFIX"`
}

// AMQPConfig holds message broker settings. Fan-out is disabled when URL is empty.
type AMQPConfig struct {
	URL           string `yaml:"url" env:"AMQP_URL"`
	Queue         string `yaml:"queue" env:"AMQP_QUEUE"`
	ConsumePush   bool   `yaml:"consume_push" env:"AMQP_CONSUME_PUSH"`
	PrefetchCount int    `yaml:"prefetch_count" env:"AMQP_PREFETCH_COUNT"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// Load reads configuration from a YAML file and applies environment
// overrides. A missing file is not an error; environment alone may configure
// the service.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxTxRetries == 0 {
		c.Database.MaxTxRetries = 5
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 60
	}
	if c.RateLimit.RefillTokens == 0 {
		c.RateLimit.RefillTokens = 1
	}
	if c.RateLimit.RefillInterval == 0 {
		c.RateLimit.RefillInterval = time.Second
	}
	if c.RateLimit.TTL == 0 {
		c.RateLimit.TTL = 10 * time.Minute
	}
	if c.RateLimit.Prefix == "" {
		c.RateLimit.Prefix = "rl"
	}
	if c.AMQP.Queue == "" {
		c.AMQP.Queue = "notifications.created"
	}
	if c.AMQP.PrefetchCount == 0 {
		c.AMQP.PrefetchCount = 50
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

// Validate reports configuration that would prevent the service from starting
func (c *Config) Validate() error {
	var problems []string

	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" {
			problems = append(problems, "database.host is required")
		}
		if c.Database.DBName == "" {
			problems = append(problems, "database.dbname is required")
		}
	case "memory":
	default:
		problems = append(problems, fmt.Sprintf("unknown database.driver %q", c.Database.Driver))
	}

	if c.Auth.JWTSecret == "" && c.Auth.JWKSURL == "" {
		problems = append(problems, "auth.jwt_secret or auth.jwks_url is required")
	}

	if c.APNs.KeyPath != "" && (c.APNs.KeyID == "" || c.APNs.TeamID == "" || c.APNs.Topic == "") {
		problems = append(problems, "apns.key_id, apns.team_id and apns.topic are required with apns.key_path")
	}

	switch c.Log.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("unknown log.format %q", c.Log.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

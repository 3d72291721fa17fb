// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"credledger/internal/models"
	"credledger/internal/observability"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags   string `mapstructure:"FEATURE_FLAGS"`

	DBDriver                 string `mapstructure:"DB_DRIVER"`
	DBHost                   string `mapstructure:"DB_HOST"`
	DBPort                   string `mapstructure:"DB_PORT"`
	DBUser                   string `mapstructure:"DB_USER"`
	DBPassword               string `mapstructure:"DB_PASSWORD"`
	DBName                   string `mapstructure:"DB_NAME"`
	DBSSLMode                string `mapstructure:"DB_SSLMODE"`
	DBMaxOpenConns           int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`
	SQLitePath               string `mapstructure:"SQLITE_PATH"`

	RedisURL        string        `mapstructure:"REDIS_URL"`
	RateLimitWrites int           `mapstructure:"RATE_LIMIT_WRITES"`
	RateLimitWindow time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`

	// Ledger policy.
	PostThreshold  int64  `mapstructure:"POST_THRESHOLD"`
	TitleMaxLength int    `mapstructure:"TITLE_MAX_LENGTH"`
	WeightPolicy   string `mapstructure:"WEIGHT_POLICY"`
	WeightDivisor  int64  `mapstructure:"WEIGHT_DIVISOR"`
	WeightMin      int64  `mapstructure:"WEIGHT_MIN"`
	WeightMax      int64  `mapstructure:"WEIGHT_MAX"`

	OracleURL          string        `mapstructure:"ORACLE_URL"`
	OracleAPIKey       string        `mapstructure:"ORACLE_API_KEY"`
	OracleTimeout      time.Duration `mapstructure:"ORACLE_TIMEOUT"`
	OracleRPS          float64       `mapstructure:"ORACLE_RPS"`
	OracleStatic       string        `mapstructure:"ORACLE_STATIC"`
	ReputationCacheTTL time.Duration `mapstructure:"REPUTATION_CACHE_TTL"`

	ContentStore     string `mapstructure:"CONTENT_STORE"`
	PinataAPIURL     string `mapstructure:"PINATA_API_URL"`
	PinataGatewayURL string `mapstructure:"PINATA_GATEWAY_URL"`
	PinataAPIKey     string `mapstructure:"PINATA_API_KEY"`
	PinataAPISecret  string `mapstructure:"PINATA_API_SECRET"`

	EventBus     string `mapstructure:"EVENT_BUS"`
	EventChannel string `mapstructure:"EVENT_CHANNEL"`
	NATSURL      string `mapstructure:"NATS_URL"`

	TracingEnabled     bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter    string  `mapstructure:"TRACING_EXPORTER"`
	TracingEndpoint    string  `mapstructure:"TRACING_ENDPOINT"`
	TracingSampleRatio float64 `mapstructure:"TRACING_SAMPLE_RATIO"`
}

const defaultJWTSecret = "your-secret-key-change-in-production"

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	// A local .env fills in variables the environment leaves unset.
	if err := godotenv.Load(); err == nil {
		observability.Logger.Debug("loaded .env file")
	}

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		observability.Logger.Info("loaded profile-specific configuration", "file", "config."+env+".yml")
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("FEATURE_FLAGS", "")

	viper.SetDefault("DB_DRIVER", "sqlite")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "credledger")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)
	viper.SetDefault("SQLITE_PATH", "credledger.db")

	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("RATE_LIMIT_WRITES", 30)
	viper.SetDefault("RATE_LIMIT_WINDOW", "1m")

	viper.SetDefault("POST_THRESHOLD", 160)
	viper.SetDefault("TITLE_MAX_LENGTH", 200)
	viper.SetDefault("WEIGHT_POLICY", "step")
	viper.SetDefault("WEIGHT_DIVISOR", 100)
	viper.SetDefault("WEIGHT_MIN", 1)
	viper.SetDefault("WEIGHT_MAX", 0)

	viper.SetDefault("ORACLE_URL", "")
	viper.SetDefault("ORACLE_API_KEY", "")
	viper.SetDefault("ORACLE_TIMEOUT", "3s")
	viper.SetDefault("ORACLE_RPS", 20)
	viper.SetDefault("ORACLE_STATIC", "")
	viper.SetDefault("REPUTATION_CACHE_TTL", "30s")

	viper.SetDefault("CONTENT_STORE", "memory")
	viper.SetDefault("PINATA_API_URL", "https://api.pinata.cloud")
	viper.SetDefault("PINATA_GATEWAY_URL", "https://gateway.pinata.cloud/ipfs")
	viper.SetDefault("PINATA_API_KEY", "")
	viper.SetDefault("PINATA_API_SECRET", "")

	viper.SetDefault("EVENT_BUS", "redis")
	viper.SetDefault("EVENT_CHANNEL", "ledger.events")
	viper.SetDefault("NATS_URL", "nats://localhost:4222")

	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("TRACING_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLE_RATIO", 1.0)
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.WeightPolicy = strings.ToLower(strings.TrimSpace(c.WeightPolicy))
	c.ContentStore = strings.ToLower(strings.TrimSpace(c.ContentStore))
	c.EventBus = strings.ToLower(strings.TrimSpace(c.EventBus))
}

// IsProduction reports whether the config targets a production environment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	if c.PostThreshold < 0 {
		return errors.New("POST_THRESHOLD must not be negative")
	}
	if c.TitleMaxLength <= 0 {
		return errors.New("TITLE_MAX_LENGTH must be positive")
	}
	if c.TitleMaxLength > models.MaxTitleLength {
		return fmt.Errorf("TITLE_MAX_LENGTH must not exceed %d", models.MaxTitleLength)
	}
	switch c.WeightPolicy {
	case "", "step":
		if c.WeightDivisor <= 0 {
			return errors.New("WEIGHT_DIVISOR must be positive")
		}
		if c.WeightMax > 0 && c.WeightMax < c.WeightMin {
			return errors.New("WEIGHT_MAX must not be below WEIGHT_MIN")
		}
	case "constant":
	default:
		return fmt.Errorf("unknown WEIGHT_POLICY %q", c.WeightPolicy)
	}

	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}

	switch c.ContentStore {
	case "memory":
	case "pinata":
		if c.PinataAPIKey == "" || c.PinataAPISecret == "" {
			return errors.New("PINATA_API_KEY and PINATA_API_SECRET are required for the pinata content store")
		}
	default:
		return fmt.Errorf("unknown CONTENT_STORE %q", c.ContentStore)
	}

	switch c.EventBus {
	case "redis", "none", "":
	case "nats":
		if c.NATSURL == "" {
			return errors.New("NATS_URL is required when EVENT_BUS is nats")
		}
	default:
		return fmt.Errorf("unknown EVENT_BUS %q", c.EventBus)
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBDriver == "postgres" {
			if c.DBPassword == "password" || c.DBPassword == "" {
				return errors.New("a strong DB_PASSWORD is required in production")
			}
			if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
				return errors.New("DB_SSLMODE must enable SSL in production")
			}
		}
		if c.OracleURL == "" {
			return errors.New("ORACLE_URL is required in production")
		}
		if c.AllowedOrigins == "*" {
			observability.Logger.Warn("ALLOWED_ORIGINS is set to '*' in production, this is insecure")
		}
	} else if len(c.JWTSecret) < 32 {
		observability.Logger.Warn("JWT_SECRET is shorter than 32 characters, use a stronger secret for production")
	}

	return nil
}

// DatabaseDSN builds the PostgreSQL connection string.
func (c *Config) DatabaseDSN() string {
	sslMode := c.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, sslMode,
	)
}

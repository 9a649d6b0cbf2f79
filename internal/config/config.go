package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultJWTSecretKey is only meant for local development.
const DefaultJWTSecretKey = "a_very_secret_key_that_should_be_changed"

// Config holds all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	AppName   string          `mapstructure:"APP_NAME"`
	AppEnv    string          `mapstructure:"APP_ENV"`
	LogLevel  string          `mapstructure:"LOG_LEVEL"`
	LogFormat string          `mapstructure:"LOG_FORMAT"`
	APIServer APIServerConfig `mapstructure:"API_SERVER"`
	Database  DatabaseConfig  `mapstructure:"DATABASE"`
	Auth      AuthConfig      `mapstructure:"AUTH"`
	Redis     RedisConfig     `mapstructure:"REDIS"`
	RateLimit RateLimitConfig `mapstructure:"RATE_LIMIT"`
	Kafka     KafkaConfig     `mapstructure:"KAFKA"`
}

// APIServerConfig holds the HTTP server settings.
type APIServerConfig struct {
	Host            string        `mapstructure:"HOST"`
	Port            string        `mapstructure:"PORT"`
	ReadTimeout     time.Duration `mapstructure:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `mapstructure:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	CORS            CORSConfig    `mapstructure:"CORS"`
}

// CORSConfig holds configuration for CORS.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"ALLOWED_ORIGINS"`
	AllowedMethods   []string `mapstructure:"ALLOWED_METHODS"`
	AllowedHeaders   []string `mapstructure:"ALLOWED_HEADERS"`
	ExposedHeaders   []string `mapstructure:"EXPOSED_HEADERS"`
	AllowCredentials bool     `mapstructure:"ALLOW_CREDENTIALS"`
	MaxAge           int      `mapstructure:"MAX_AGE"`
}

// DatabaseConfig holds configuration for the database.
// Type is "postgres" or "memory"; the latter keeps everything in-process.
type DatabaseConfig struct {
	Type     string `mapstructure:"TYPE"`
	Host     string `mapstructure:"HOST"`
	Port     int    `mapstructure:"PORT"`
	User     string `mapstructure:"USER"`
	Password string `mapstructure:"PASSWORD"`
	DBName   string `mapstructure:"DB_NAME"`
	SSLMode  string `mapstructure:"SSL_MODE"`
	LogSQL   bool   `mapstructure:"LOG_SQL"`
}

// AuthConfig holds configuration for session credentials.
type AuthConfig struct {
	JWTSecretKey string        `mapstructure:"JWT_SECRET_KEY"`
	JWTExpiry    time.Duration `mapstructure:"JWT_EXPIRY"`
	JWTIssuer    string        `mapstructure:"JWT_ISSUER"`
	CookieName   string        `mapstructure:"COOKIE_NAME"`
	CookieSecure bool          `mapstructure:"COOKIE_SECURE"`
}

// RedisConfig holds configuration for Redis.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"ENABLED"`
	Addr     string `mapstructure:"ADDR"`
	Password string `mapstructure:"PASSWORD"`
	DB       int    `mapstructure:"DB"`
}

// RateLimitConfig configures the fixed-window limits applied per client.
type RateLimitConfig struct {
	Window        time.Duration `mapstructure:"WINDOW"`
	AuthLimit     int64         `mapstructure:"AUTH_LIMIT"`
	ProposalLimit int64         `mapstructure:"PROPOSAL_LIMIT"`
	FailOpen      bool          `mapstructure:"FAIL_OPEN"`
	TrustProxy    bool          `mapstructure:"TRUST_PROXY"`
}

// KafkaConfig holds configuration for Kafka.
type KafkaConfig struct {
	Enabled            bool     `mapstructure:"ENABLED"`
	Brokers            []string `mapstructure:"BROKERS"`
	ClientID           string   `mapstructure:"CLIENT_ID"`
	Protocol           string   `mapstructure:"PROTOCOL"`
	RelationshipTopic  string   `mapstructure:"RELATIONSHIP_TOPIC"`
	DeliveryTimeoutSec int      `mapstructure:"DELIVERY_TIMEOUT_SECONDS"`
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Validate checks settings that have no safe default.
func (c *Config) Validate() error {
	if c.Auth.JWTSecretKey == "" {
		return errors.New("AUTH.JWT_SECRET_KEY must be set")
	}
	if c.IsProduction() && c.Auth.JWTSecretKey == DefaultJWTSecretKey {
		return errors.New("AUTH.JWT_SECRET_KEY must be changed in production")
	}
	if c.Auth.JWTExpiry <= 0 {
		return errors.New("AUTH.JWT_EXPIRY must be positive")
	}
	switch c.Database.Type {
	case "postgres", "memory":
	default:
		return errors.New("DATABASE.TYPE must be postgres or memory")
	}
	return nil
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()

	v.SetDefault("APP_NAME", "circle-go")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("API_SERVER.HOST", "0.0.0.0")
	v.SetDefault("API_SERVER.PORT", "5001")
	v.SetDefault("API_SERVER.READ_TIMEOUT", 15*time.Second)
	v.SetDefault("API_SERVER.WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("API_SERVER.SHUTDOWN_TIMEOUT", 10*time.Second)
	v.SetDefault("API_SERVER.CORS.ALLOWED_ORIGINS", []string{"http://localhost:5173"})
	v.SetDefault("API_SERVER.CORS.ALLOWED_METHODS", []string{"GET", "POST", "PUT", "OPTIONS"})
	v.SetDefault("API_SERVER.CORS.ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"})
	v.SetDefault("API_SERVER.CORS.EXPOSED_HEADERS", []string{"Content-Length", "X-Request-ID"})
	v.SetDefault("API_SERVER.CORS.ALLOW_CREDENTIALS", true)
	v.SetDefault("API_SERVER.CORS.MAX_AGE", 300)

	v.SetDefault("DATABASE.TYPE", "postgres")
	v.SetDefault("DATABASE.HOST", "localhost")
	v.SetDefault("DATABASE.PORT", 5432)
	v.SetDefault("DATABASE.USER", "postgres")
	v.SetDefault("DATABASE.PASSWORD", "password")
	v.SetDefault("DATABASE.DB_NAME", "circle_db")
	v.SetDefault("DATABASE.SSL_MODE", "disable")
	v.SetDefault("DATABASE.LOG_SQL", false)

	v.SetDefault("AUTH.JWT_SECRET_KEY", DefaultJWTSecretKey)
	v.SetDefault("AUTH.JWT_EXPIRY", 12*24*time.Hour) // 12 days
	v.SetDefault("AUTH.JWT_ISSUER", "circle-go")
	v.SetDefault("AUTH.COOKIE_NAME", "jwt")
	v.SetDefault("AUTH.COOKIE_SECURE", false)

	v.SetDefault("REDIS.ENABLED", false)
	v.SetDefault("REDIS.ADDR", "localhost:6379")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)

	v.SetDefault("RATE_LIMIT.WINDOW", time.Minute)
	v.SetDefault("RATE_LIMIT.AUTH_LIMIT", 10)
	v.SetDefault("RATE_LIMIT.PROPOSAL_LIMIT", 30)
	v.SetDefault("RATE_LIMIT.FAIL_OPEN", true)
	v.SetDefault("RATE_LIMIT.TRUST_PROXY", false)

	v.SetDefault("KAFKA.ENABLED", false)
	v.SetDefault("KAFKA.BROKERS", []string{"localhost:9092"})
	v.SetDefault("KAFKA.CLIENT_ID", "circle-go-api")
	v.SetDefault("KAFKA.PROTOCOL", "plaintext")
	v.SetDefault("KAFKA.RELATIONSHIP_TOPIC", "circle-relationship-events")
	v.SetDefault("KAFKA.DELIVERY_TIMEOUT_SECONDS", 5)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// API_SERVER.PORT can be overridden by API_SERVER_PORT, and so on.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}

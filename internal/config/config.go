package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Env      string
	Service  ServiceConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Events   EventsConfig
	Cache    CacheConfig
	Policy   PolicyConfig
	Clients  ClientsConfig
}

// ServiceConfig identifies this service in published events
type ServiceConfig struct {
	Name string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// EventsConfig selects the event transport and its connection parameters.
// Exactly one transport family is active per deployment.
type EventsConfig struct {
	// Transport is one of "nats", "kafka", "sidecar"
	Transport string

	// Topic is the single subject all review lifecycle events go to
	Topic string

	NATS    NATSConfig
	Kafka   KafkaConfig
	Sidecar SidecarConfig
}

// NATSConfig holds direct-broker connection parameters
type NATSConfig struct {
	URL    string
	Stream string
}

// KafkaConfig holds cloud-queue connection parameters
type KafkaConfig struct {
	Brokers []string
}

// SidecarConfig holds the local pub/sub sidecar parameters
type SidecarConfig struct {
	Host          string
	Port          string
	PubSubName    string
	InvokeTimeout time.Duration
}

// CacheConfig holds caching TTL configuration
type CacheConfig struct {
	RatingSummaryTTL time.Duration
	ReviewsListTTL   time.Duration
}

// PolicyConfig holds review business-rule flags
type PolicyConfig struct {
	RequirePurchase      bool
	AutoApproveVerified  bool
	ModerationRequired   bool
	MaxReviewsPerProduct int
	EditTimeLimitDays    int
}

// ClientsConfig holds direct HTTP endpoints for sibling services,
// used when the sidecar transport is not in play
type ClientsConfig struct {
	CatalogURL string
	OrderURL   string
	Timeout    time.Duration
}

// Load reads configuration from environment variables and returns a Config struct
func Load() (*Config, error) {
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("ENV", "development")
	viper.SetDefault("SERVICE_NAME", "review-service")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_READ_TIMEOUT", "10s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "10s")
	viper.SetDefault("SERVER_SHUTDOWN_TIMEOUT", "30s")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:8080")

	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "postgres")
	viper.SetDefault("DB_NAME", "reviews")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME", "5m")

	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)

	viper.SetDefault("EVENTS_TRANSPORT", "nats")
	viper.SetDefault("EVENTS_TOPIC", "reviews.events")
	viper.SetDefault("NATS_URL", "nats://localhost:4222")
	viper.SetDefault("NATS_STREAM", "REVIEWS")
	viper.SetDefault("KAFKA_BROKERS", "localhost:9092")
	viper.SetDefault("SIDECAR_HOST", "localhost")
	viper.SetDefault("SIDECAR_PORT", "3500")
	viper.SetDefault("SIDECAR_PUBSUB_NAME", "pubsub")
	viper.SetDefault("SIDECAR_INVOKE_TIMEOUT", "3s")

	viper.SetDefault("CACHE_TTL_RATING_SUMMARY", "300s")
	viper.SetDefault("CACHE_TTL_REVIEWS_LIST", "120s")

	viper.SetDefault("REVIEW_REQUIRE_PURCHASE", false)
	viper.SetDefault("REVIEW_AUTO_APPROVE_VERIFIED", true)
	viper.SetDefault("REVIEW_MODERATION_REQUIRED", true)
	viper.SetDefault("REVIEW_MAX_PER_PRODUCT", 0)
	viper.SetDefault("REVIEW_EDIT_TIME_LIMIT_DAYS", 0)

	viper.SetDefault("CATALOG_SERVICE_URL", "http://localhost:8081")
	viper.SetDefault("ORDER_SERVICE_URL", "http://localhost:8082")
	viper.SetDefault("CLIENT_TIMEOUT", "3s")

	readTimeout, err := time.ParseDuration(viper.GetString("SERVER_READ_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := time.ParseDuration(viper.GetString("SERVER_WRITE_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := time.ParseDuration(viper.GetString("SERVER_SHUTDOWN_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT: %w", err)
	}

	connMaxLifetime, err := time.ParseDuration(viper.GetString("DB_CONN_MAX_LIFETIME"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %w", err)
	}

	ratingSummaryTTL, err := time.ParseDuration(viper.GetString("CACHE_TTL_RATING_SUMMARY"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL_RATING_SUMMARY: %w", err)
	}

	reviewsListTTL, err := time.ParseDuration(viper.GetString("CACHE_TTL_REVIEWS_LIST"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL_REVIEWS_LIST: %w", err)
	}

	invokeTimeout, err := time.ParseDuration(viper.GetString("SIDECAR_INVOKE_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("invalid SIDECAR_INVOKE_TIMEOUT: %w", err)
	}

	clientTimeout, err := time.ParseDuration(viper.GetString("CLIENT_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLIENT_TIMEOUT: %w", err)
	}

	config := &Config{
		Env: viper.GetString("ENV"),
		Service: ServiceConfig{
			Name: viper.GetString("SERVICE_NAME"),
		},
		Server: ServerConfig{
			Port:            viper.GetString("SERVER_PORT"),
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
			AllowedOrigins:  splitAndTrim(viper.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:            viper.GetString("DB_HOST"),
			Port:            viper.GetString("DB_PORT"),
			User:            viper.GetString("DB_USER"),
			Password:        viper.GetString("DB_PASSWORD"),
			Name:            viper.GetString("DB_NAME"),
			SSLMode:         viper.GetString("DB_SSLMODE"),
			MaxOpenConns:    viper.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    viper.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Events: EventsConfig{
			Transport: viper.GetString("EVENTS_TRANSPORT"),
			Topic:     viper.GetString("EVENTS_TOPIC"),
			NATS: NATSConfig{
				URL:    viper.GetString("NATS_URL"),
				Stream: viper.GetString("NATS_STREAM"),
			},
			Kafka: KafkaConfig{
				Brokers: splitAndTrim(viper.GetString("KAFKA_BROKERS")),
			},
			Sidecar: SidecarConfig{
				Host:          viper.GetString("SIDECAR_HOST"),
				Port:          viper.GetString("SIDECAR_PORT"),
				PubSubName:    viper.GetString("SIDECAR_PUBSUB_NAME"),
				InvokeTimeout: invokeTimeout,
			},
		},
		Cache: CacheConfig{
			RatingSummaryTTL: ratingSummaryTTL,
			ReviewsListTTL:   reviewsListTTL,
		},
		Policy: PolicyConfig{
			RequirePurchase:      viper.GetBool("REVIEW_REQUIRE_PURCHASE"),
			AutoApproveVerified:  viper.GetBool("REVIEW_AUTO_APPROVE_VERIFIED"),
			ModerationRequired:   viper.GetBool("REVIEW_MODERATION_REQUIRED"),
			MaxReviewsPerProduct: viper.GetInt("REVIEW_MAX_PER_PRODUCT"),
			EditTimeLimitDays:    viper.GetInt("REVIEW_EDIT_TIME_LIMIT_DAYS"),
		},
		Clients: ClientsConfig{
			CatalogURL: viper.GetString("CATALOG_SERVICE_URL"),
			OrderURL:   viper.GetString("ORDER_SERVICE_URL"),
			Timeout:    clientTimeout,
		},
	}

	return config, nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// GetSidecarAddr returns the sidecar HTTP base address
func (c *Config) GetSidecarAddr() string {
	return fmt.Sprintf("http://%s:%s", c.Events.Sidecar.Host, c.Events.Sidecar.Port)
}

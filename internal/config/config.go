package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Security SecurityConfig
	Queue    QueueConfig
	TMDB     TMDBConfig
	OMDb     OMDbConfig
	Plex     PlexConfig
	Tautulli TautulliConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout  time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`
}

// Address returns the server address string.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL         string        `envconfig:"DATABASE_URL"`
	Host        string        `envconfig:"DB_HOST" default:"localhost"`
	Port        int           `envconfig:"DB_PORT" default:"5432"`
	User        string        `envconfig:"DB_USER" default:"postgres"`
	Password    string        `envconfig:"DB_PASSWORD" default:""`
	Name        string        `envconfig:"DB_NAME" default:"postgres"`
	SSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	MaxConns    int           `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns    int           `envconfig:"DB_MIN_CONNS" default:"5"`
	MaxConnLife time.Duration `envconfig:"DB_MAX_CONN_LIFE" default:"1h"`
	MaxConnIdle time.Duration `envconfig:"DB_MAX_CONN_IDLE" default:"30m"`
}

// DSN returns the PostgreSQL connection string.
// If DATABASE_URL is set, it takes precedence over individual fields.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	URL      string `envconfig:"REDIS_URL"`
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// Address returns the Redis address string (host:port).
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// SecurityConfig holds security-related configuration.
type SecurityConfig struct {
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"` // Comma-separated list
	MaxRequestBodySize int64  `envconfig:"MAX_REQUEST_BODY_SIZE" default:"10485760"`                                   // 10MB default
	RateLimitRPS       int    `envconfig:"RATE_LIMIT_RPS" default:"100"`
	RateLimitBurst     int    `envconfig:"RATE_LIMIT_BURST" default:"200"`
}

// QueueConfig holds configuration for the task-queue subsystem.
type QueueConfig struct {
	DebugMode          bool          `envconfig:"QUEUE_DEBUG_MODE" default:"false"`
	PollInterval       time.Duration `envconfig:"QUEUE_POLL_INTERVAL" default:"2s"`
	StreamPingInterval time.Duration `envconfig:"QUEUE_STREAM_PING_INTERVAL" default:"15s"`
	SubscriberBuffer   int           `envconfig:"QUEUE_SUBSCRIBER_BUFFER" default:"10"`
	DefaultListLimit   int           `envconfig:"QUEUE_DEFAULT_LIST_LIMIT" default:"50"`
}

// TMDBConfig holds TheMovieDB API configuration.
type TMDBConfig struct {
	APIKey  string        `envconfig:"TMDB_API_KEY" default:""`
	Timeout time.Duration `envconfig:"TMDB_TIMEOUT" default:"30s"`
}

// OMDbConfig holds OMDb API configuration.
type OMDbConfig struct {
	APIKey  string        `envconfig:"OMDB_API_KEY" default:""`
	Timeout time.Duration `envconfig:"OMDB_TIMEOUT" default:"30s"`
}

// PlexConfig holds Plex server configuration.
type PlexConfig struct {
	BaseURL string        `envconfig:"PLEX_BASE_URL" default:""`
	Token   string        `envconfig:"PLEX_TOKEN" default:""`
	Timeout time.Duration `envconfig:"PLEX_TIMEOUT" default:"10s"`
}

// TautulliConfig holds Tautulli API configuration.
type TautulliConfig struct {
	BaseURL string        `envconfig:"TAUTULLI_BASE_URL" default:""`
	APIKey  string        `envconfig:"TAUTULLI_API_KEY" default:""`
	Timeout time.Duration `envconfig:"TAUTULLI_TIMEOUT" default:"10s"`
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// MustLoad reads configuration and panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

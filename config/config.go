package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth0         Auth0Config
	Redis         RedisConfig
	Throttle      ThrottleConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host               string
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	CORSAllowedOrigins []string
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// Auth0Config holds the Auth0 tenant, API and machine-to-machine application settings
type Auth0Config struct {
	Domain       string // Tenant domain without scheme (e.g. dino-games.us.auth0.com)
	Audience     string // API identifier expected in the "aud" claim
	ClientID     string
	ClientSecret string
	APIBaseURL   string // Management API base, defaults to https://<domain>/api/v2
	FrontEndURL  string // Base for the post-verification redirect

	JWKSFetchesPerMinute int
	JWKSRefreshInterval  time.Duration
	HTTPTimeout          time.Duration
	TokenLifetime        time.Duration
}

// RedisConfig holds the redis connection used by request throttling.
// An empty URL disables throttling.
type RedisConfig struct {
	URL string
}

// ThrottleConfig holds the per-client request limit.
// Forwarding headers name the client only when the socket peer is in TrustedProxies.
type ThrottleConfig struct {
	Limit          int
	Window         time.Duration
	TrustedProxies []string
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists (backend/.env when run from project root, .env when run from backend/)
	_ = godotenv.Load("backend/.env")
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS",
				[]string{"http://localhost:5173", "http://localhost:3000"}),
		},
		Database: loadDatabaseConfig(),
		Auth0:    loadAuth0Config(),
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Throttle: ThrottleConfig{
			Limit:          getEnvAsInt("THROTTLE_LIMIT", 10),
			Window:         getEnvAsDuration("THROTTLE_WINDOW", time.Minute),
			TrustedProxies: getEnvAsSlice("THROTTLE_TRUSTED_PROXIES", nil),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	// Database validation (DATABASE_URL or DB_* vars)
	if c.Database.ConnectionString == "" && c.Database.Host == "" {
		return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
	}
	if c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if err := c.Auth0.Validate(); err != nil {
		return err
	}

	if c.Throttle.Limit <= 0 || c.Throttle.Window <= 0 {
		return fmt.Errorf("throttle limit and window must be positive")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// Validate checks the Auth0 settings. Every value is required in every environment:
// a missing one must stop the process at startup.
func (c *Auth0Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"AUTH0_DOMAIN", c.Domain},
		{"AUTH0_AUDIENCE", c.Audience},
		{"AUTH0_CLIENT_ID", c.ClientID},
		{"AUTH0_CLIENT_SECRET", c.ClientSecret},
		{"AUTH0_API_BASE_URL", c.APIBaseURL},
		{"FRONTEND_URL", c.FrontEndURL},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}
	if c.JWKSFetchesPerMinute <= 0 {
		return fmt.Errorf("AUTH0_JWKS_FETCHES_PER_MINUTE must be positive")
	}
	// Management tokens expire after 24h; the cache must drop them first
	if c.TokenLifetime <= 0 || c.TokenLifetime >= 24*time.Hour {
		return fmt.Errorf("AUTH0_TOKEN_LIFETIME must be between 0 and 24h, got %s", c.TokenLifetime)
	}
	return nil
}

// Issuer returns the expected "iss" claim (Auth0 always ends it with a slash)
func (c *Auth0Config) Issuer() string {
	return "https://" + c.Domain + "/"
}

// JWKSURL returns the tenant's signing key set endpoint
func (c *Auth0Config) JWKSURL() string {
	return "https://" + c.Domain + "/.well-known/jwks.json"
}

// TokenURL returns the OAuth2 token endpoint used by the client-credentials exchange
func (c *Auth0Config) TokenURL() string {
	return "https://" + c.Domain + "/oauth/token"
}

// ManagementAudience returns the audience requested for Management API tokens
func (c *Auth0Config) ManagementAudience() string {
	return "https://" + c.Domain + "/api/v2/"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "dino"),
		Password:        getEnv("DB_PASSWORD", "dino_password"),
		Database:        getEnv("DB_NAME", "dino_games"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// loadAuth0Config loads the AUTH0_* variables; the management API base defaults from the domain
func loadAuth0Config() Auth0Config {
	domain := strings.TrimSuffix(strings.TrimPrefix(getEnv("AUTH0_DOMAIN", ""), "https://"), "/")
	apiBase := ""
	if domain != "" {
		apiBase = "https://" + domain + "/api/v2"
	}
	return Auth0Config{
		Domain:               domain,
		Audience:             getEnv("AUTH0_AUDIENCE", ""),
		ClientID:             getEnv("AUTH0_CLIENT_ID", ""),
		ClientSecret:         getEnv("AUTH0_CLIENT_SECRET", ""),
		APIBaseURL:           strings.TrimSuffix(getEnv("AUTH0_API_BASE_URL", apiBase), "/"),
		FrontEndURL:          strings.TrimSuffix(getEnv("FRONTEND_URL", ""), "/"),
		JWKSFetchesPerMinute: getEnvAsInt("AUTH0_JWKS_FETCHES_PER_MINUTE", 5),
		JWKSRefreshInterval:  getEnvAsDuration("AUTH0_JWKS_REFRESH_INTERVAL", 24*time.Hour),
		HTTPTimeout:          getEnvAsDuration("AUTH0_HTTP_TIMEOUT", 10*time.Second),
		TokenLifetime:        getEnvAsDuration("AUTH0_TOKEN_LIFETIME", 23*time.Hour),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 4000)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 4000
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice splits a comma-separated value, dropping empty entries
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}

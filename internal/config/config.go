package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Token strategies accepted by AUTH_TOKEN_STRATEGY.
const (
	TokenStrategyPaseto = "paseto"
	TokenStrategyJWT    = "jwt"
)

const (
	minBcryptCost = 4
	maxBcryptCost = 31
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port            string
	Env             string // dev or prod
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TrustedOrigins  []string
}

type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	ChannelBinding string // "require" for Neon DB, empty for local
	AutoMigrate    bool
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type AuthConfig struct {
	// TokenStrategy selects the access token format: "paseto" (v4.local) or "jwt" (HS256)
	TokenStrategy string
	// TokenKey is the process-wide signing secret; exactly 32 bytes for paseto,
	// at least 32 bytes for jwt
	TokenKey            []byte
	AccessTokenDuration time.Duration
	BcryptCost          int
	// HashConcurrency caps how many bcrypt computations run at once
	HashConcurrency int
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	// TrustedProxies are the peers (IPs or CIDRs) whose forwarding headers
	// identify the client. Empty means the socket peer is always the client.
	TrustedProxies []string
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "3001"),
			Env:             getEnv("APP_ENV", "dev"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			TrustedOrigins:  getSliceEnv("TRUSTED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: loadDatabaseConfig(),
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			TokenStrategy:       strings.ToLower(getEnv("AUTH_TOKEN_STRATEGY", TokenStrategyPaseto)),
			TokenKey:            []byte(getEnv("TOKEN_KEY", "")),
			AccessTokenDuration: getDurationEnv("ACCESS_TOKEN_DURATION", 24*time.Hour),
			BcryptCost:          getIntEnv("BCRYPT_COST", 10),
			HashConcurrency:     getIntEnv("HASH_CONCURRENCY", runtime.NumCPU()),
		},
		RateLimit: RateLimitConfig{
			Requests:       getIntEnv("RATE_LIMIT_REQUESTS", 100),
			Window:         getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
			TrustedProxies: getSliceEnv("RATE_LIMIT_TRUSTED_PROXIES", nil),
		},
	}

	if err := cfg.Auth.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDatabase reads only the database settings, for tools that do not serve traffic
func LoadDatabase() DatabaseConfig {
	_ = godotenv.Load()
	return loadDatabaseConfig()
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:           getEnv("DB_HOST", "localhost"),
		Port:           getEnv("DB_PORT", "5432"),
		User:           getEnv("DB_USER", "postgres"),
		Password:       getEnv("DB_PASSWORD", "postgres"),
		DBName:         getEnv("DB_NAME", "quickflayer"),
		SSLMode:        getEnv("DB_SSLMODE", "disable"),
		ChannelBinding: getEnv("DB_CHANNEL_BINDING", ""),
		AutoMigrate:    getBoolEnv("DB_AUTO_MIGRATE", true),
	}
}

// Validate checks the token strategy, key length and hashing parameters
func (c *AuthConfig) Validate() error {
	switch c.TokenStrategy {
	case TokenStrategyPaseto:
		if len(c.TokenKey) != 32 {
			return fmt.Errorf("TOKEN_KEY must be exactly 32 bytes for paseto, got %d", len(c.TokenKey))
		}
	case TokenStrategyJWT:
		if len(c.TokenKey) < 32 {
			return fmt.Errorf("TOKEN_KEY must be at least 32 bytes for jwt, got %d", len(c.TokenKey))
		}
	default:
		return fmt.Errorf("unsupported AUTH_TOKEN_STRATEGY %q (want %q or %q)", c.TokenStrategy, TokenStrategyPaseto, TokenStrategyJWT)
	}

	if c.BcryptCost < minBcryptCost || c.BcryptCost > maxBcryptCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", minBcryptCost, maxBcryptCost, c.BcryptCost)
	}

	if c.AccessTokenDuration <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_DURATION must be positive")
	}

	if c.HashConcurrency < 1 {
		c.HashConcurrency = 1
	}

	return nil
}

func (c *DatabaseConfig) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)

	// Add channel_binding if configured (required for Neon DB)
	if c.ChannelBinding != "" {
		connStr += fmt.Sprintf(" channel_binding=%s", c.ChannelBinding)
	}

	return connStr
}

// Address returns Redis connection address (host:port)
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDevelopment returns true if the environment is set to dev
func (c *ServerConfig) IsDevelopment() bool {
	return c.Env == "dev"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolValue
}

// getDurationEnv reads a duration expressed in whole seconds
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	seconds, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return time.Duration(seconds) * time.Second
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}

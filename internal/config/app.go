package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"mitra-ai/internal/logger"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// AppConfig holds all application configuration
type AppConfig struct {
	Server    ServerConfig
	Database  DatabaseConfig
	LLM       LLMConfig
	Auth      AuthConfig
	Credits   CreditsConfig
	Registry  RegistryConfig
	Pipeline  PipelineConfig
	RateLimit RateLimitConfig
	Models    *ModelsConfig
	LogLevel  string
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Driver   string // "postgres" or "memory"
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// LLMConfig holds LLM provider configuration
type LLMConfig struct {
	Provider         string
	OpenRouterAPIKey string
	BaseURL          string
	DefaultModel     string
	MaxTokens        int
	Temperature      float64
	Timeout          time.Duration
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret       []byte
	TokenExpiration time.Duration
	AdminUsername   string
	AdminPassword   string
}

// CreditsConfig holds the credit ledger defaults
type CreditsConfig struct {
	DefaultAllowance int
	FallbackCost     int
}

// RegistryConfig controls the model registry cache
type RegistryConfig struct {
	CacheTTL time.Duration
}

// PipelineConfig tunes the message pipeline
type PipelineConfig struct {
	// HistoryLimit caps the number of messages sent to the model; 0 sends everything.
	HistoryLimit int
}

// RateLimitConfig controls per-user limits on the send-message route
type RateLimitConfig struct {
	RedisAddr     string
	RedisPassword string
	Prefix        string
	Limit         int
	Window        time.Duration
}

// LoadConfig loads and validates application configuration from environment
func LoadConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Log.Debug("No .env file found, using environment variables only")
		} else {
			logger.Log.WithError(err).Warn("Error loading .env file")
		}
	}

	config := &AppConfig{
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
	}
	logger.SetLevel(config.LogLevel)

	// Load Server config
	config.Server = ServerConfig{
		Port:           getEnvOrDefault("SERVER_PORT", "8080"),
		AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		// Model calls can take up to LLM_TIMEOUT, so writes get more room.
		WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 90*time.Second),
	}

	// Load Database config
	config.Database = DatabaseConfig{
		Driver:   getEnvOrDefault("STORE_DRIVER", "postgres"),
		Host:     getEnvOrDefault("DB_HOST", "postgres"),
		Port:     getEnvOrDefault("DB_PORT", "5432"),
		User:     getEnvOrDefault("DB_USER", "postgres"),
		Password: getEnvOrDefault("DB_PASSWORD", "postgres"),
		Name:     getEnvOrDefault("DB_NAME", "mitra"),
		SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
	}
	if config.Database.Driver != "postgres" && config.Database.Driver != "memory" {
		return nil, fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", config.Database.Driver)
	}

	// Load LLM config
	apiKey := os.Getenv("OPENROUTER_API_KEY")
	if apiKey == "" {
		logger.Log.Warn("OPENROUTER_API_KEY environment variable not set")
	}

	config.LLM = LLMConfig{
		Provider:         getEnvOrDefault("LLM_PROVIDER", "openrouter"),
		OpenRouterAPIKey: apiKey,
		BaseURL:          getEnvOrDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		DefaultModel:     getEnvOrDefault("LLM_DEFAULT_MODEL", "meta-llama/llama-3.2-3b-instruct:free"),
		MaxTokens:        getEnvAsInt("LLM_MAX_TOKENS", 800),
		Temperature:      getEnvAsFloat("LLM_TEMPERATURE", 0.7),
		Timeout:          getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
	}
	if config.LLM.Timeout <= 0 {
		return nil, fmt.Errorf("LLM_TIMEOUT must be positive")
	}

	// Load Auth config
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable must be set")
	}
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters (current length: %d)", len(jwtSecret))
	}

	config.Auth = AuthConfig{
		JWTSecret:       []byte(jwtSecret),
		TokenExpiration: getEnvAsDuration("JWT_TOKEN_EXPIRATION", 24*time.Hour),
		AdminUsername:   os.Getenv("ADMIN_USERNAME"),
		AdminPassword:   os.Getenv("ADMIN_PASSWORD"),
	}

	config.Credits = CreditsConfig{
		DefaultAllowance: getEnvAsInt("CREDITS_DEFAULT_ALLOWANCE", 100),
		FallbackCost:     getEnvAsInt("CREDITS_FALLBACK_COST", 1),
	}
	if config.Credits.DefaultAllowance < 0 || config.Credits.FallbackCost < 0 {
		return nil, fmt.Errorf("credit defaults must not be negative")
	}

	config.Registry = RegistryConfig{
		CacheTTL: getEnvAsDuration("REGISTRY_CACHE_TTL", 5*time.Second),
	}

	config.Pipeline = PipelineConfig{
		HistoryLimit: getEnvAsInt("PIPELINE_HISTORY_LIMIT", 0),
	}

	config.RateLimit = RateLimitConfig{
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		Prefix:        getEnvOrDefault("RATE_LIMIT_PREFIX", "mitra:ratelimit"),
		Limit:         getEnvAsInt("RATE_LIMIT_MESSAGES", 20),
		Window:        getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
	}

	// Load Models config
	modelsConfigPath := getEnvOrDefault("MODELS_CONFIG_PATH", "config/models.json")
	modelsConfig, err := NewModelsConfig(modelsConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load models config: %w", err)
	}
	config.Models = modelsConfig

	return config, nil
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Helper functions for environment variable parsing

func getEnvOrDefault(key, defaultValue string) string {
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
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid integer value, using default")
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid float value, using default")
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
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid duration value, using default")
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}

package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all server configuration loaded from the environment.
// Call Load after godotenv has populated the process environment.
type Config struct {
	// Server
	Port        string
	Environment string

	// Logging
	LogLevel string
	LogFile  string

	// Auth
	JWTSecret []byte
	TokenTTL  time.Duration

	// Database
	DatabaseURL string

	// Redis (optional - rate limiting degrades gracefully without it)
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// Tracing
	TracingEnabled  bool
	OTLPEndpoint    string
	TraceSampleRate float64
}

// Load reads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:        getEnvOrDefault("PORT", "8787"),
		Environment: getEnvOrDefault("ENVIRONMENT", "development"),

		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:  getEnvOrDefault("LOG_FILE", "server.log"),

		JWTSecret: []byte(os.Getenv("JWT_SECRET")),
		TokenTTL:  getEnvDuration("TOKEN_TTL", 24*time.Hour),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		RedisHost:     os.Getenv("REDIS_HOST"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		TracingEnabled:  getEnvBool("TRACING_ENABLED", false),
		OTLPEndpoint:    getEnvOrDefault("OTLP_ENDPOINT", "localhost:4318"),
		TraceSampleRate: getEnvFloat("TRACE_SAMPLE_RATE", 0.1),
	}
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnvOrDefault returns environment variable or default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

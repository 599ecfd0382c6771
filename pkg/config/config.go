package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Import        ImportConfig
	Storage       StorageConfig
	Observability ObservabilityConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	RateLimitPerSecond int
	RateLimitBurst     int
	AllowedOrigins     []string
	ShutdownTimeout    time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MinConns int
}

// ImportConfig tunes the import pipeline.
type ImportConfig struct {
	DateToleranceDays     int
	ConfidenceThreshold   float64
	MaxUploadBytes        int64
	StartingBalanceMarker string
}

type StorageConfig struct {
	LocalPath      string
	RetentionHours int
	PurgeSchedule  string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	LogLevel       string
}

// Load reads configuration from environment variables, after loading an
// optional .env file from the working directory.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "localhost"),
			Port:               getEnvAsInt("SERVER_PORT", 8080),
			RateLimitPerSecond: getEnvAsInt("SERVER_RATE_LIMIT_PER_SECOND", 20),
			RateLimitBurst:     getEnvAsInt("SERVER_RATE_LIMIT_BURST", 40),
			AllowedOrigins:     getEnvAsList("SERVER_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			ShutdownTimeout:    time.Duration(getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 15)) * time.Second,
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "budget"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("POSTGRES_MAX_CONNS", 25),
			MinConns: getEnvAsInt("POSTGRES_MIN_CONNS", 2),
		},
		Import: ImportConfig{
			DateToleranceDays:     getEnvAsInt("IMPORT_DATE_TOLERANCE_DAYS", 1),
			ConfidenceThreshold:   getEnvAsFloat("IMPORT_CONFIDENCE_THRESHOLD", 0.7),
			MaxUploadBytes:        int64(getEnvAsInt("IMPORT_MAX_UPLOAD_BYTES", 10<<20)),
			StartingBalanceMarker: getEnv("IMPORT_STARTING_BALANCE_MARKER", "Starting Balance"),
		},
		Storage: StorageConfig{
			LocalPath:      getEnv("STORAGE_LOCAL_PATH", "./uploads"),
			RetentionHours: getEnvAsInt("STORAGE_RETENTION_HOURS", 24),
			PurgeSchedule:  getEnv("STORAGE_PURGE_SCHEDULE", "@hourly"),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Import.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings the duplicate detector cannot work with.
func (c ImportConfig) Validate() error {
	if c.DateToleranceDays < 0 {
		return fmt.Errorf("IMPORT_DATE_TOLERANCE_DAYS must not be negative, got %d", c.DateToleranceDays)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("IMPORT_CONFIDENCE_THRESHOLD must be within [0, 1], got %g", c.ConfidenceThreshold)
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("IMPORT_MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Retention returns how long uploads are kept.
func (c StorageConfig) Retention() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

// Level maps LogLevel to a slog level, defaulting to info.
func (c ObservabilityConfig) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

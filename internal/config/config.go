package config

import (
	"os"
	"strconv"

	"doc-merge-server/internal/domain"
)

// AppConfig implements the domain.Config interface
type AppConfig struct {
	ServerPort     string
	OutputPath     string
	MaxFileSize    int64
	LogLevel       string
	SupabaseURL    string
	SupabaseKey    string
	SupabaseBucket string
}

// NewConfig creates a new configuration instance with default values
func NewConfig() domain.Config {
	return &AppConfig{
		// Cloud Run (and many PaaS) provide the listening port via PORT.
		// Keep SERVER_PORT for local/dev compatibility.
		ServerPort:     getEnvOrDefault("PORT", getEnvOrDefault("SERVER_PORT", "8080")),
		OutputPath:     getEnvOrDefault("OUTPUT_PATH", "./uploads"),
		MaxFileSize:    getEnvInt64OrDefault("MAX_FILE_SIZE", 100*1024*1024), // 100MB default
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		SupabaseURL:    getEnvOrDefault("SUPABASE_URL", ""),
		SupabaseKey:    getEnvOrDefault("SUPABASE_ANON_KEY", ""),
		SupabaseBucket: getEnvOrDefault("SUPABASE_BUCKET", ""),
	}
}

// GetServerPort returns the server port
func (c *AppConfig) GetServerPort() string {
	return c.ServerPort
}

// GetOutputPath returns the merged output directory path
func (c *AppConfig) GetOutputPath() string {
	return c.OutputPath
}

// GetMaxFileSize returns the maximum allowed upload size
func (c *AppConfig) GetMaxFileSize() int64 {
	return c.MaxFileSize
}

// GetLogLevel returns the logging level
func (c *AppConfig) GetLogLevel() string {
	return c.LogLevel
}

// GetSupabaseURL returns the Supabase URL
func (c *AppConfig) GetSupabaseURL() string {
	return c.SupabaseURL
}

// GetSupabaseKey returns the Supabase anon key
func (c *AppConfig) GetSupabaseKey() string {
	return c.SupabaseKey
}

// GetSupabaseBucket returns the Supabase storage bucket for merged output
func (c *AppConfig) GetSupabaseBucket() string {
	return c.SupabaseBucket
}

// Helper functions for environment variable handling
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

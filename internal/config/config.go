package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server
	Env    string
	Port   string
	APIKey string

	// Database
	DBDriver   string // "sqlite" or "postgres"
	SQLitePath string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Snapshot sync (optional; empty bucket disables the feature)
	SnapshotBucket string
	SnapshotPrefix string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Env:    getEnv("ENV", "development"),
		Port:   getEnv("PORT", "8080"),
		APIKey: getEnv("API_KEY", ""),

		DBDriver:   getEnv("DB_DRIVER", "sqlite"),
		SQLitePath: getEnv("SQLITE_PATH", "data/atelier.db"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "atelier"),
		DBPassword: getEnv("DB_PASSWORD", "atelier"),
		DBName:     getEnv("DB_NAME", "atelier"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		SnapshotBucket: getEnv("SNAPSHOT_BUCKET", ""),
		SnapshotPrefix: getEnv("SNAPSHOT_PREFIX", "atelier"),
	}

	return config, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

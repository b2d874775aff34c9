package database

import (
	"fmt"
	"net/url"
	"path/filepath"

	appconfig "atelier/internal/config"
)

// Config holds database connection settings for the configured driver.
type Config struct {
	Driver     string
	SQLitePath string
	Host       string
	Port       string
	User       string
	Password   string
	DBName     string
	SSLMode    string
}

// NewConfig derives the database configuration from application config.
func NewConfig(app *appconfig.Config) (*Config, error) {
	switch app.DBDriver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (use sqlite or postgres)", app.DBDriver)
	}

	return &Config{
		Driver:     app.DBDriver,
		SQLitePath: app.SQLitePath,
		Host:       app.DBHost,
		Port:       app.DBPort,
		User:       app.DBUser,
		Password:   app.DBPassword,
		DBName:     app.DBName,
		SSLMode:    app.DBSSLMode,
	}, nil
}

// DSN returns the GORM connection string for the configured driver.
func (c *Config) DSN() string {
	if c.Driver == "sqlite" {
		return c.SQLitePath
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// MigrateURL returns the golang-migrate database URL for the configured driver.
func (c *Config) MigrateURL() string {
	if c.Driver == "sqlite" {
		return "sqlite3://" + filepath.ToSlash(c.SQLitePath)
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		url.QueryEscape(c.User), url.QueryEscape(c.Password), c.Host, c.Port, c.DBName, c.SSLMode)
}

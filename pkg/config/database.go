package config

import (
	"fmt"
	"log"
	"strings"
	"time"
)

const (
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

const defaultDatabaseTimeout = 10 * time.Second

type DatabaseConfig struct {
	Driver  string        `koanf:"driver"`
	Dir     string        `koanf:"dir"`
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

// String returns a string representation of the database configuration.
func (c *DatabaseConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Database ---\n")
	b.WriteString(fmt.Sprintf("  driver: %s\n", c.Driver))
	b.WriteString(fmt.Sprintf("  dir: %s\n", c.Dir))
	b.WriteString(fmt.Sprintf("  url: %s\n", MaskURL(c.URL)))
	b.WriteString(fmt.Sprintf("  timeout: %s\n", c.Timeout))
	return b.String()
}

func (c *DatabaseConfig) Validate() error {
	if c.Driver == "" {
		log.Println("Using default value for database.driver")
		c.Driver = DriverSqlite
	}
	if c.Timeout <= 0 {
		log.Println("Using default value for database.timeout")
		c.Timeout = defaultDatabaseTimeout
	}
	switch c.Driver {
	case DriverSqlite:
		if c.Dir == "" {
			c.Dir = "."
		}
	case DriverPostgres:
		if c.URL == "" {
			return fmt.Errorf("database URL is not configured")
		}
		if !isValidPostgresURL(c.URL) {
			return fmt.Errorf("database URL must start with 'postgres://': %s", MaskURL(c.URL))
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown database driver: %q", c.Driver)
	}
	return nil
}

// isValidPostgresURL checks if the provided URL is a valid PostgreSQL URL
func isValidPostgresURL(url string) bool {
	return strings.HasPrefix(url, "postgres://") ||
		strings.HasPrefix(url, "postgresql://")
}

// MaskURL hides the credentials part of a connection URL.
func MaskURL(url string) string {
	if url == "" {
		return "<not configured>"
	}
	// Mask the URL by replacing the username and password with "****"
	parts := strings.Split(url, "@")
	if len(parts) == 2 {
		return "****@" + parts[1]
	}
	return "****"
}

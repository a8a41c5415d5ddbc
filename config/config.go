// Package config loads the settings of the lending library from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is read once at start-up and treated as immutable afterwards.
type Config struct {
	// Library
	LibraryName     string
	MaxBooksPerUser int
	OverdueDays     int

	// Storage
	DataDir     string
	StoreKind   string
	SaveTimeout time.Duration

	// Logging
	LogLevel string
}

// Load reads Config from the environment. Every variable is optional; unset or unparsable
// values fall back to their defaults.
func Load() *Config {
	return &Config{
		LibraryName:     getEnvString("LIBRARY_NAME", "City Library"),
		MaxBooksPerUser: getEnvInt("LIBRARY_MAX_BOOKS_PER_USER", 5),
		OverdueDays:     getEnvInt("LIBRARY_OVERDUE_DAYS", 14),
		DataDir:         getEnvString("LIBRARY_DATA_DIR", "./data"),
		StoreKind:       strings.ToLower(getEnvString("LIBRARY_STORE", "json")),
		SaveTimeout:     getEnvDuration("LIBRARY_SAVE_TIMEOUT", 5*time.Second),
		LogLevel:        getEnvString("LIBRARY_LOG_LEVEL", "info"),
	}
}

// Validate rejects settings the library cannot run with.
func (c *Config) Validate() error {
	var problems []string
	if c.MaxBooksPerUser <= 0 {
		problems = append(problems, fmt.Sprintf("max books per user must be positive (got %d)", c.MaxBooksPerUser))
	}
	if c.OverdueDays < 0 {
		problems = append(problems, fmt.Sprintf("overdue days must not be negative (got %d)", c.OverdueDays))
	}
	if c.StoreKind != "json" && c.StoreKind != "sqlite" {
		problems = append(problems, fmt.Sprintf("store must be json or sqlite (got %q)", c.StoreKind))
	}
	if c.SaveTimeout <= 0 {
		problems = append(problems, fmt.Sprintf("save timeout must be positive (got %s)", c.SaveTimeout))
	}
	if strings.TrimSpace(c.DataDir) == "" {
		problems = append(problems, "data dir must not be empty")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

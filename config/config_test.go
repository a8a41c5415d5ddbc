package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"LIBRARY_NAME", "LIBRARY_MAX_BOOKS_PER_USER", "LIBRARY_OVERDUE_DAYS", "LIBRARY_DATA_DIR",
		"LIBRARY_STORE", "LIBRARY_SAVE_TIMEOUT", "LIBRARY_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, &Config{
		LibraryName:     "City Library",
		MaxBooksPerUser: 5,
		OverdueDays:     14,
		DataDir:         "./data",
		StoreKind:       "json",
		SaveTimeout:     5 * time.Second,
		LogLevel:        "info",
	}, cfg)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("LIBRARY_NAME", "Branch 2")
	t.Setenv("LIBRARY_MAX_BOOKS_PER_USER", "3")
	t.Setenv("LIBRARY_STORE", "SQLite")
	t.Setenv("LIBRARY_SAVE_TIMEOUT", "250ms")
	t.Setenv("LIBRARY_OVERDUE_DAYS", "not-a-number")

	cfg := Load()
	assert.Equal(t, "Branch 2", cfg.LibraryName)
	assert.Equal(t, 3, cfg.MaxBooksPerUser)
	assert.Equal(t, "sqlite", cfg.StoreKind)
	assert.Equal(t, 250*time.Millisecond, cfg.SaveTimeout)
	assert.Equal(t, 14, cfg.OverdueDays)
}

func TestValidate(t *testing.T) {
	cfg := &Config{MaxBooksPerUser: 0, OverdueDays: -1, StoreKind: "redis", SaveTimeout: 0, DataDir: " "}
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"max books", "overdue days", "store must be", "save timeout", "data dir"} {
		assert.Contains(t, err.Error(), want)
	}
}

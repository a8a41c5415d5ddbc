// Package storage implements library.Store on top of a directory of JSON files or a SQLite
// database. Neither implementation writes the three resources atomically: a crash between
// writes can leave books, users and loans mutually inconsistent.
package storage

import (
	"fmt"
	"log/slog"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"

	"lending-library/library"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Resource names, also used as file stems and row keys.
const (
	ResourceBooks = "books"
	ResourceUsers = "users"
	ResourceLoans = "loans"
)

// Store kinds accepted by Open.
const (
	KindJSON   = "json"
	KindSQLite = "sqlite"
)

// Open returns the store of the given kind rooted at dir. The SQLite database lives at
// dir/library.db.
func Open(kind, dir string, log *slog.Logger) (library.Store, error) {
	switch kind {
	case KindJSON, "":
		return NewJSONStore(dir, log), nil
	case KindSQLite:
		return NewSQLiteStore(filepath.Join(dir, "library.db"), log)
	default:
		return nil, fmt.Errorf("unknown store kind %q", kind)
	}
}

// decode parses a resource payload, degrading to an empty slice when the payload is
// missing or not valid JSON.
func decode[T any](log *slog.Logger, resource string, data []byte) []T {
	out := []T{}
	if len(data) == 0 {
		return out
	}
	if !json.Valid(data) {
		log.Warn("corrupt resource, loading empty", slog.String("resource", resource))
		return out
	}
	if err := json.Unmarshal(data, &out); err != nil {
		log.Warn("unreadable resource, loading empty", slog.String("resource", resource), slog.String("error", err.Error()))
		return []T{}
	}
	if out == nil {
		out = []T{}
	}
	return out
}

func encodeAll(s library.Snapshot) (map[string][]byte, error) {
	payloads := make(map[string][]byte, 3)
	for name, v := range map[string]any{
		ResourceBooks: nonNil(s.Books),
		ResourceUsers: nonNil(s.Users),
		ResourceLoans: nonNil(s.Loans),
	} {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		payloads[name] = data
	}
	return payloads, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func resultOf(s library.Snapshot) library.SaveResult {
	return library.SaveResult{BooksCount: len(s.Books), UsersCount: len(s.Users), LoansCount: len(s.Loans)}
}

package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"lending-library/library"
)

// Seed is a bulk-import file: {"books": [...], "users": [...]}.
type Seed struct {
	Books []library.BookInput `json:"books"`
	Users []library.UserInput `json:"users"`
}

// ReadSeed decodes a seed document from r.
func ReadSeed(r io.Reader) (Seed, error) {
	var seed Seed
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return Seed{}, fmt.Errorf("decode seed: %w", err)
	}
	return seed, nil
}

// ReadSeedFile opens path (relative paths resolve from cwd) and decodes it.
func ReadSeedFile(path string) (Seed, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return Seed{}, err
	}
	defer f.Close()
	return ReadSeed(f)
}

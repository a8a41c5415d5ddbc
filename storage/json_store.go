package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"lending-library/library"
)

// JSONStore keeps books.json, users.json and loans.json under Root.
type JSONStore struct {
	Root string
	log  *slog.Logger
}

func NewJSONStore(root string, log *slog.Logger) *JSONStore {
	if log == nil {
		log = slog.Default()
	}
	return &JSONStore{Root: root, log: log}
}

func (s *JSONStore) path(resource string) string {
	return filepath.Join(s.Root, resource+".json")
}

// Save writes the three files concurrently. A failure is logged and returned; files that
// were already written stay on disk.
func (s *JSONStore) Save(ctx context.Context, snap library.Snapshot) (library.SaveResult, error) {
	if err := os.MkdirAll(s.Root, 0o755); err != nil {
		s.log.Error("save library failed", slog.String("root", s.Root), slog.String("error", err.Error()))
		return library.SaveResult{}, fmt.Errorf("create data dir: %w", err)
	}
	payloads, err := encodeAll(snap)
	if err != nil {
		s.log.Error("save library failed", slog.String("error", err.Error()))
		return library.SaveResult{}, err
	}

	g, ctx := errgroup.WithContext(ctx)
	for name, data := range payloads {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := os.WriteFile(s.path(name), data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.log.Error("save library failed", slog.String("root", s.Root), slog.String("error", err.Error()))
		return library.SaveResult{}, err
	}
	return resultOf(snap), nil
}

// Load reads the three files concurrently. Missing or corrupt files load as empty.
func (s *JSONStore) Load(ctx context.Context) (library.Snapshot, error) {
	var (
		snap library.Snapshot
		g    errgroup.Group
	)
	g.Go(func() error {
		snap.Books = decode[library.Book](s.log, ResourceBooks, s.read(ResourceBooks))
		return nil
	})
	g.Go(func() error {
		snap.Users = decode[library.User](s.log, ResourceUsers, s.read(ResourceUsers))
		return nil
	})
	g.Go(func() error {
		snap.Loans = decode[library.Loan](s.log, ResourceLoans, s.read(ResourceLoans))
		return nil
	})
	if err := g.Wait(); err != nil {
		return library.Snapshot{}, err
	}
	return snap, ctx.Err()
}

func (s *JSONStore) read(resource string) []byte {
	data, err := os.ReadFile(s.path(resource))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("read resource failed", slog.String("resource", resource), slog.String("error", err.Error()))
		}
		return nil
	}
	return data
}

// Clear deletes every *.json file under Root. A missing Root clears nothing.
func (s *JSONStore) Clear(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("list data dir: %w", err)
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := os.Remove(filepath.Join(s.Root, e.Name())); err != nil {
			s.log.Error("clear data failed", slog.String("file", e.Name()), slog.String("error", err.Error()))
			return removed, fmt.Errorf("remove %s: %w", e.Name(), err)
		}
		removed++
	}
	return removed, nil
}

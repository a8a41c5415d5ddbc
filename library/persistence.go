package library

import (
	"context"
	"errors"
	"time"

	"lending-library/async"
)

// Store persists a Snapshot as three independent resources. Implementations live in the
// storage package.
type Store interface {
	Save(ctx context.Context, s Snapshot) (SaveResult, error)
	// Load never fails because a resource is missing or corrupt; that resource comes back empty.
	Load(ctx context.Context) (Snapshot, error)
	// Clear removes every resource and reports how many were removed.
	Clear(ctx context.Context) (int, error)
}

// DefaultSaveTimeout is used by SaveWithTimeout when timeout is not positive.
const DefaultSaveTimeout = 5 * time.Second

// SaveWithTimeout snapshots the Library and saves it, giving up after timeout with an
// *async.DeadlineExceeded labelled "saveLibrary". The save itself is not cancelled and may
// still land after the timeout is reported.
func (l *Library) SaveWithTimeout(ctx context.Context, store Store, timeout time.Duration) (SaveResult, error) {
	if timeout <= 0 {
		timeout = DefaultSaveTimeout
	}
	snap := l.Snapshot()
	return async.WithTimeout(ctx, timeout, "saveLibrary", func(ctx context.Context) (SaveResult, error) {
		return store.Save(ctx, snap)
	})
}

// LoadFrom restores the Library from store.
func (l *Library) LoadFrom(ctx context.Context, store Store) error {
	snap, err := store.Load(ctx)
	if err != nil {
		return err
	}
	return l.Restore(snap)
}

// BookSource looks a book up somewhere and names where it was found.
type BookSource func(ctx context.Context, isbn string) (Book, string, error)

// FoundBook is the winner of FindBookFromSources.
type FoundBook struct {
	Book   Book
	Source string
}

var errNotInSource = errors.New("book not in source")

// LocalSource searches the Library's own catalogue.
func (l *Library) LocalSource() BookSource {
	return func(_ context.Context, isbn string) (Book, string, error) {
		if b, ok := l.FindBookByISBN(isbn); ok {
			return b, "local", nil
		}
		return Book{}, "local", errNotInSource
	}
}

// StoreSource searches the last snapshot written to store.
func StoreSource(name string, store Store) BookSource {
	return func(ctx context.Context, isbn string) (Book, string, error) {
		snap, err := store.Load(ctx)
		if err != nil {
			return Book{}, name, err
		}
		for _, b := range snap.Books {
			if b.ISBN == isbn {
				return b, name, nil
			}
		}
		return Book{}, name, errNotInSource
	}
}

// FindBookFromSources races the local catalogue against the extra sources and returns the
// first hit. ok is false when no source had the book.
func (l *Library) FindBookFromSources(ctx context.Context, isbn string, sources ...BookSource) (FoundBook, bool) {
	all := append([]BookSource{l.LocalSource()}, sources...)
	attempts := make([]func(context.Context) (FoundBook, error), 0, len(all))
	for _, src := range all {
		attempts = append(attempts, func(ctx context.Context) (FoundBook, error) {
			b, name, err := src(ctx, isbn)
			if err != nil {
				return FoundBook{}, err
			}
			return FoundBook{Book: b, Source: name}, nil
		})
	}
	found, err := async.FirstSuccess(ctx, attempts...)
	if err != nil {
		l.log.Debug("book not found in any source", "isbn", isbn, "error", err)
		return FoundBook{}, false
	}
	return found, true
}

package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lending-library/library"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleSnapshot() library.Snapshot {
	at := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	return library.Snapshot{
		Books: []library.Book{
			{Title: "Dune", Author: "Frank Herbert", ISBN: "9780441013593", PublicationYear: 1965, TotalCopies: 2, BorrowedCopies: 1, Genre: "Sci-Fi"},
			{Title: "Emma", Author: "Jane Austen", ISBN: "9780141439587", PublicationYear: 1815, TotalCopies: 1, Genre: "Classic"},
		},
		Users: []library.User{{
			Name:             "Ann",
			Email:            "ann@example.com",
			RegistrationDate: at,
			BorrowedBooks:    []library.BorrowedBook{{ISBN: "9780441013593", Title: "Dune", BorrowDate: at}},
			BorrowHistory:    []library.BorrowedBook{{ISBN: "9780441013593", Title: "Dune", BorrowDate: at}},
		}},
		Loans: []library.Loan{{UserEmail: "ann@example.com", ISBN: "9780441013593", BorrowDate: at}},
	}
}

func TestJSONStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewJSONStore(filepath.Join(t.TempDir(), "nested", "data"), quietLogger())

	res, err := store.Save(ctx, sampleSnapshot())
	require.NoError(t, err)
	assert.Equal(t, library.SaveResult{BooksCount: 2, UsersCount: 1, LoansCount: 1}, res)

	for _, name := range []string{"books.json", "users.json", "loans.json"} {
		assert.FileExists(t, filepath.Join(store.Root, name))
	}

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleSnapshot(), got)
}

func TestJSONStoreLoadDegradesToEmpty(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewJSONStore(dir, quietLogger())

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Books)
	assert.NotNil(t, got.Books)

	_, err = store.Save(ctx, sampleSnapshot())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.json"), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "loans.json"), []byte(`{"unexpected": "object"}`), 0o644))

	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Books, 2)
	assert.Empty(t, got.Users)
	assert.Empty(t, got.Loans)
}

func TestJSONStoreClear(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewJSONStore(dir, quietLogger())

	_, err := store.Save(ctx, sampleSnapshot())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o644))

	n, err := store.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))

	n, err = NewJSONStore(filepath.Join(dir, "missing"), quietLogger()).Clear(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpenStoreKinds(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(KindJSON, dir, quietLogger())
	require.NoError(t, err)
	assert.IsType(t, &JSONStore{}, s)

	s, err = Open(KindSQLite, dir, quietLogger())
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.(*SQLiteStore).Close())
	assert.FileExists(t, filepath.Join(dir, "library.db"))

	_, err = Open("redis", dir, quietLogger())
	assert.Error(t, err)
}

func TestLibrarySurvivesJSONStore(t *testing.T) {
	ctx := context.Background()
	store := NewJSONStore(t.TempDir(), quietLogger())

	lib, err := library.New("A")
	require.NoError(t, err)
	_, err = lib.AddBook(library.BookInput{ISBN: "1", Title: "One"})
	require.NoError(t, err)
	_, err = lib.RegisterUser(library.UserInput{Email: "a@x.io"})
	require.NoError(t, err)
	_, err = lib.BorrowBook("a@x.io", "1")
	require.NoError(t, err)
	_, err = lib.SaveWithTimeout(ctx, store, time.Second)
	require.NoError(t, err)

	again, err := library.New("A")
	require.NoError(t, err)
	require.NoError(t, again.LoadFrom(ctx, store))
	require.NoError(t, again.ReturnBook("a@x.io", "1"))
	b, ok := again.FindBookByISBN("1")
	require.True(t, ok)
	assert.True(t, b.IsAvailable())
}

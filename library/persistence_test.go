package library

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lending-library/async"
)

// memStore is an in-memory Store. delay slows every Save down.
type memStore struct {
	mu    sync.Mutex
	snap  Snapshot
	delay time.Duration
	saves int
	err   error
}

func (m *memStore) Save(_ context.Context, s Snapshot) (SaveResult, error) {
	time.Sleep(m.delay)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return SaveResult{}, m.err
	}
	m.snap = s
	m.saves++
	return SaveResult{BooksCount: len(s.Books), UsersCount: len(s.Users), LoansCount: len(s.Loans)}, nil
}

func (m *memStore) Load(context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap, nil
}

func (m *memStore) Clear(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = Snapshot{}
	return 3, nil
}

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func seeded(t *testing.T) *Library {
	t.Helper()
	lib, _ := newTestLibrary(t)
	addBook(t, lib, "1", 2)
	addBook(t, lib, "2", 1)
	addUser(t, lib, "a@x.io")
	_, err := lib.BorrowBook("a@x.io", "1")
	require.NoError(t, err)
	return lib
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	lib := seeded(t)

	res, err := lib.SaveWithTimeout(ctx, store, time.Second)
	require.NoError(t, err)
	assert.Equal(t, SaveResult{BooksCount: 2, UsersCount: 1, LoansCount: 1}, res)

	restored, _ := newTestLibrary(t)
	var restoredEv []Event
	restored.On(EventLibraryRestored, func(ev Event) { restoredEv = append(restoredEv, ev) })
	require.NoError(t, restored.LoadFrom(ctx, store))

	assert.Equal(t, lib.Books(), restored.Books())
	assert.Equal(t, lib.Loans(), restored.Loans())
	u, ok := restored.FindUserByEmail("a@x.io")
	require.True(t, ok)
	assert.Equal(t, 1, u.BorrowCount())
	assert.Equal(t, DefaultMaxBooksPerUser, u.Limit())

	require.Len(t, restoredEv, 1)
	assert.Equal(t, RestoredEvent{Books: 2, Users: 1, Loans: 1}, restoredEv[0].Data)

	require.NoError(t, restored.ReturnBook("a@x.io", "1"))
}

func TestSaveWithTimeoutReportsDeadlineButSaveStillLands(t *testing.T) {
	store := &memStore{delay: 200 * time.Millisecond}
	lib := seeded(t)

	_, err := lib.SaveWithTimeout(context.Background(), store, 20*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	var de *async.DeadlineExceeded
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "saveLibrary", de.Label)

	assert.Eventually(t, func() bool { return store.saveCount() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestSaveWithTimeoutPassesStoreErrors(t *testing.T) {
	boom := errors.New("disk full")
	_, err := seeded(t).SaveWithTimeout(context.Background(), &memStore{err: boom}, 0)
	assert.ErrorIs(t, err, boom)
}

func TestRestoreRejectsInvalidSnapshot(t *testing.T) {
	cases := map[string]Snapshot{
		"missing isbn":    {Books: []Book{{Title: "x", TotalCopies: 1}}},
		"duplicate isbn":  {Books: []Book{{ISBN: "1", TotalCopies: 1}, {ISBN: "1", TotalCopies: 1}}},
		"bad copies":      {Books: []Book{{ISBN: "1", TotalCopies: 1, BorrowedCopies: 2}}},
		"missing email":   {Users: []User{{Name: "x"}}},
		"duplicate email": {Users: []User{{Email: "a@x.io"}, {Email: "a@x.io"}}},
		"duplicate loan":  {Loans: []Loan{{UserEmail: "a@x.io", ISBN: "1"}, {UserEmail: "a@x.io", ISBN: "1"}}},
	}
	for name, snap := range cases {
		t.Run(name, func(t *testing.T) {
			lib := seeded(t)
			before := lib.Snapshot()
			err := lib.Restore(snap)
			assert.True(t, HasCode(err, CodeInvalidSnapshot), "got %v", err)
			assert.Equal(t, before, lib.Snapshot())
		})
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	lib := seeded(t)
	snap := lib.Snapshot()
	snap.Books[0].BorrowedCopies = 0
	snap.Users[0].BorrowedBooks[0].Title = "changed"

	b, _ := lib.FindBookByISBN("1")
	assert.Equal(t, 1, b.BorrowedCopies)
	u, _ := lib.FindUserByEmail("a@x.io")
	assert.Equal(t, "Book 1", u.BorrowedBooks[0].Title)
}

func TestFindBookFromSources(t *testing.T) {
	ctx := context.Background()
	lib, _ := newTestLibrary(t)
	addBook(t, lib, "1", 1)

	archive := &memStore{snap: Snapshot{Books: []Book{{ISBN: "9", Title: "Archived", TotalCopies: 1}}}}

	found, ok := lib.FindBookFromSources(ctx, "1", StoreSource("archive", archive))
	require.True(t, ok)
	assert.Equal(t, "local", found.Source)

	found, ok = lib.FindBookFromSources(ctx, "9", StoreSource("archive", archive))
	require.True(t, ok)
	assert.Equal(t, "archive", found.Source)
	assert.Equal(t, "Archived", found.Book.Title)

	_, ok = lib.FindBookFromSources(ctx, "404", StoreSource("archive", archive))
	assert.False(t, ok)
}

func TestFindBookFromSlowSourceLosesToLocal(t *testing.T) {
	lib, _ := newTestLibrary(t)
	addBook(t, lib, "1", 1)

	slow := func(ctx context.Context, isbn string) (Book, string, error) {
		select {
		case <-time.After(time.Second):
			return Book{ISBN: isbn}, "slow", nil
		case <-ctx.Done():
			return Book{}, "slow", ctx.Err()
		}
	}
	start := time.Now()
	found, ok := lib.FindBookFromSources(context.Background(), "1", slow)
	require.True(t, ok)
	assert.Equal(t, "local", found.Source)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRestoreRebuildsLoansWhenLoanListIsLost(t *testing.T) {
	snap := seeded(t).Snapshot()
	snap.Loans = nil

	var logs bytes.Buffer
	lib, _ := newTestLibrary(t, WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))))
	require.NoError(t, lib.Restore(snap))

	loans := lib.Loans()
	require.Len(t, loans, 1)
	assert.Equal(t, Loan{UserEmail: "a@x.io", ISBN: "1", BorrowDate: snap.Users[0].BorrowedBooks[0].BorrowDate}, loans[0])
	assert.Contains(t, logs.String(), "dangling loan references")

	require.NoError(t, lib.ReturnBook("a@x.io", "1"))
	b, _ := lib.FindBookByISBN("1")
	assert.Equal(t, 0, b.BorrowedCopies)
}

func TestRestoreReturnsCopiesOfMissingMembers(t *testing.T) {
	snap := seeded(t).Snapshot()
	snap.Users = nil

	lib, _ := newTestLibrary(t)
	require.NoError(t, lib.Restore(snap))

	assert.Empty(t, lib.Loans())
	b, _ := lib.FindBookByISBN("1")
	assert.Equal(t, 0, b.BorrowedCopies)
	assert.NoError(t, lib.RemoveBook("1"))
}

func TestRestoreDropsBorrowsOfMissingBooks(t *testing.T) {
	snap := seeded(t).Snapshot()
	snap.Books = nil

	lib, _ := newTestLibrary(t)
	require.NoError(t, lib.Restore(snap))

	assert.Empty(t, lib.Loans())
	u, ok := lib.FindUserByEmail("a@x.io")
	require.True(t, ok)
	assert.Zero(t, u.BorrowCount())
	assert.Len(t, u.BorrowHistory, 1)

	addBook(t, lib, "1", 1)
	_, err := lib.BorrowBook("a@x.io", "1")
	assert.NoError(t, err)
}

func TestRestoreDoesNotInventLoansForUncountedCopies(t *testing.T) {
	snap := seeded(t).Snapshot()
	snap.Loans = nil
	snap.Books[0].BorrowedCopies = 0

	lib, _ := newTestLibrary(t)
	require.NoError(t, lib.Restore(snap))

	assert.Empty(t, lib.Loans())
	u, _ := lib.FindUserByEmail("a@x.io")
	assert.Zero(t, u.BorrowCount())
}

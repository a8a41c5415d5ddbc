package library

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBookRejectsBadCopyCounts(t *testing.T) {
	cases := []struct {
		name            string
		total, borrowed int
	}{
		{"negative total", -1, 0},
		{"negative borrowed", 2, -1},
		{"borrowed above total", 2, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewBook("T", "A", "1", 2000, tc.total, tc.borrowed, "G")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvariant)
			assert.True(t, HasCode(err, CodeInvalidCopyCount))
		})
	}
}

func TestBookBorrowAndReturn(t *testing.T) {
	b, err := NewBook("Dune", "Frank Herbert", "9780441013593", 1965, 2, 0, "Sci-Fi")
	require.NoError(t, err)

	require.NoError(t, b.Borrow())
	require.NoError(t, b.Borrow())
	assert.False(t, b.IsAvailable())
	assert.Equal(t, 0, b.AvailableCopies())

	err = b.Borrow()
	assert.True(t, HasCode(err, CodeNoCopiesAvailable))
	assert.Equal(t, 2, b.BorrowedCopies)

	require.NoError(t, b.Return())
	require.NoError(t, b.Return())
	err = b.Return()
	assert.True(t, HasCode(err, CodeNoCopiesBorrowed))
	assert.Equal(t, 0, b.BorrowedCopies)
}

func TestBookSetCopiesKeepsPairConsistent(t *testing.T) {
	b, err := NewBook("T", "A", "1", 2000, 3, 2, "G")
	require.NoError(t, err)

	err = b.SetCopies(1, 2)
	require.Error(t, err)
	assert.Equal(t, 3, b.TotalCopies)
	assert.Equal(t, 2, b.BorrowedCopies)

	require.NoError(t, b.SetCopies(5, 2))
	assert.Equal(t, 3, b.AvailableCopies())
}

func TestBookSetDetailsOnlyTouchesGivenFields(t *testing.T) {
	b, err := NewBook("Old", "Author", "1", 2000, 1, 0, "General")
	require.NoError(t, err)

	title := "New"
	b.SetDetails(BookUpdate{Title: &title})
	assert.Equal(t, "New", b.Title)
	assert.Equal(t, "Author", b.Author)
	assert.Equal(t, "General", b.Genre)
	assert.Equal(t, 2000, b.PublicationYear)
}

func TestBookFormattedInfo(t *testing.T) {
	b, err := NewBook("Emma", "Jane Austen", "9780141439587", 1815, 2, 1, "Classic")
	require.NoError(t, err)

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 210, b.Age(now))
	info := b.FormattedInfo(now)
	assert.Contains(t, info, "Title: Emma")
	assert.Contains(t, info, "Book Age: 210 years")
	assert.Contains(t, info, "Available Copies: 1")
	assert.Contains(t, info, "Available: Yes")
}

func TestCompareByYear(t *testing.T) {
	books := []Book{{ISBN: "c", PublicationYear: 2001}, {ISBN: "a", PublicationYear: 1950}, {ISBN: "b", PublicationYear: 1999}}
	slices.SortFunc(books, CompareByYear)
	assert.Equal(t, []string{"a", "b", "c"}, []string{books[0].ISBN, books[1].ISBN, books[2].ISBN})
}

func TestErrorFormatting(t *testing.T) {
	err := notFoundError(CodeBookNotFound, "book with ISBN %s not found", "42")
	assert.Equal(t, "[BookNotFound] book with ISBN 42 not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrConflict)

	var de *Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, CodeBookNotFound, de.Code)
}

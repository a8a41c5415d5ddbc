package library

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func TestUserBorrowLimit(t *testing.T) {
	u := NewUser("Ann", "ann@example.com", day0, 2)
	require.NoError(t, u.AddBorrowedBook("1", "One", day0))
	require.NoError(t, u.AddBorrowedBook("2", "Two", day0))
	assert.False(t, u.CanBorrow())

	err := u.AddBorrowedBook("3", "Three", day0)
	assert.ErrorIs(t, err, ErrInvariant)
	assert.True(t, HasCode(err, CodeBorrowLimitReached))
	assert.Equal(t, 2, u.BorrowCount())
	assert.Len(t, u.BorrowHistory, 2)
}

func TestUserRejectsSecondCopyOfSameBook(t *testing.T) {
	u := NewUser("Ann", "ann@example.com", day0, 5)
	require.NoError(t, u.AddBorrowedBook("1", "One", day0))

	err := u.AddBorrowedBook("1", "One", day0)
	assert.ErrorIs(t, err, ErrConflict)
	assert.True(t, HasCode(err, CodeBookAlreadyBorrowed))
}

func TestUserRemoveKeepsHistory(t *testing.T) {
	u := NewUser("Ann", "ann@example.com", day0, 5)
	require.NoError(t, u.AddBorrowedBook("1", "One", day0))
	require.NoError(t, u.RemoveBorrowedBook("1"))

	assert.Empty(t, u.BorrowedBooks)
	require.Len(t, u.BorrowHistory, 1)
	assert.Equal(t, "1", u.BorrowHistory[0].ISBN)

	err := u.RemoveBorrowedBook("1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, HasCode(err, CodeBookNotBorrowed))
}

func TestUserHasOverdueBooks(t *testing.T) {
	u := NewUser("Ann", "ann@example.com", day0, 5)
	require.NoError(t, u.AddBorrowedBook("1", "One", day0))

	assert.False(t, u.HasOverdueBooks(14, AddDays(day0, 14)))
	assert.True(t, u.HasOverdueBooks(14, AddDays(day0, 14).Add(time.Minute)))
}

func TestUserProfileIsACopy(t *testing.T) {
	u := NewUser("Ann", "ann@example.com", day0, 5)
	require.NoError(t, u.AddBorrowedBook("1", "One", day0))

	p := u.Profile()
	p.BorrowedBooks[0].Title = "changed"
	assert.Equal(t, "One", u.BorrowedBooks[0].Title)
}

func TestUserFormattedHistory(t *testing.T) {
	u := NewUser("Ann", "ann@example.com", day0, 5)
	require.NoError(t, u.AddBorrowedBook("1", "One", day0))

	out := u.FormattedHistory()
	assert.Contains(t, out, "User: Ann")
	assert.Contains(t, out, "No. Borrowed Books: 1")
	assert.Contains(t, out, "• One (ISBN: 1) borrowed on 01-03-2024")
}

func TestUserSetInfo(t *testing.T) {
	u := NewUser("Ann", "ann@example.com", day0, 5)
	u.SetInfo(UserUpdate{})
	assert.Equal(t, "Ann", u.Name)

	name := "Anna"
	u.SetInfo(UserUpdate{Name: &name})
	assert.Equal(t, "Anna", u.Name)
	assert.Equal(t, "ann@example.com", u.Email)
}

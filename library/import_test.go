package library

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeFromDataIsBestEffort(t *testing.T) {
	lib, _ := newTestLibrary(t)
	addBook(t, lib, "dup", 1)

	books := []BookInput{
		{ISBN: "1", Title: "One"},
		{Title: "No ISBN"},
		{ISBN: "dup"},
		{ISBN: "2", Title: "Two", TotalCopies: copies(3)},
	}
	users := []UserInput{
		{Name: "Ann", Email: "ann@x.io"},
		{Name: "Ann again", Email: "ann@x.io"},
		{Name: "Nobody"},
	}

	res := lib.InitializeFromData(context.Background(), books, users)
	assert.Equal(t, 2, res.AddedBooks)
	assert.Equal(t, 2, res.FailedBooks)
	assert.Equal(t, 1, res.AddedUsers)
	assert.Equal(t, 2, res.FailedUsers)

	require.Len(t, res.Failures, 4)
	assert.Equal(t, "book", res.Failures[0].Kind)
	assert.Equal(t, 1, res.Failures[0].Index)
	assert.True(t, HasCode(res.Failures[0].Err, CodeMissingISBN))
	assert.True(t, HasCode(res.Failures[1].Err, CodeDuplicateISBN))
	assert.Equal(t, "ann@x.io", res.Failures[2].Key)
	assert.True(t, HasCode(res.Failures[2].Err, CodeDuplicateEmail))
	assert.True(t, HasCode(res.Failures[3].Err, CodeMissingEmail))

	assert.Len(t, lib.Books(), 3)
	assert.Len(t, lib.Users(), 1)
}

func TestInitializeFromDataStopsAddingWhenCancelled(t *testing.T) {
	lib, _ := newTestLibrary(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := lib.InitializeFromData(ctx, []BookInput{{ISBN: "1"}}, []UserInput{{Email: "a@x.io"}})
	assert.Zero(t, res.AddedBooks)
	assert.Zero(t, res.AddedUsers)
	assert.Equal(t, 1, res.FailedBooks)
	assert.Equal(t, 1, res.FailedUsers)
	assert.ErrorIs(t, res.Failures[0].Err, context.Canceled)
	assert.Empty(t, lib.Books())
}

package library

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsValidISBN(t *testing.T) {
	assert.True(t, IsValidISBN("9780441013593"))
	assert.False(t, IsValidISBN("978044101359"))
	assert.False(t, IsValidISBN("978-0441013593"))
	assert.False(t, IsValidISBN("97804410135930"))
	assert.False(t, IsValidISBN(""))
}

func TestIsValidEmail(t *testing.T) {
	assert.True(t, IsValidEmail("ann@example.com"))
	assert.False(t, IsValidEmail("ann@example"))
	assert.False(t, IsValidEmail("ann example@x.com"))
	assert.False(t, IsValidEmail("@example.com"))
}

func TestIsValidYear(t *testing.T) {
	assert.False(t, IsValidYear(1000))
	assert.True(t, IsValidYear(1001))
	assert.True(t, IsValidYear(time.Now().Year()))
	assert.False(t, IsValidYear(time.Now().Year()+1))
}

func TestIsValidBook(t *testing.T) {
	zero := 0
	good := BookInput{ISBN: "9780441013593", PublicationYear: 1965}
	assert.True(t, IsValidBook(good))

	noCopies := good
	noCopies.TotalCopies = &zero
	assert.False(t, IsValidBook(noCopies))

	badISBN := good
	badISBN.ISBN = "123"
	assert.False(t, IsValidBook(badISBN))

	assert.False(t, IsValidPageCount(0))
}

func TestDates(t *testing.T) {
	assert.True(t, IsLeapYear(2000))
	assert.False(t, IsLeapYear(1900))
	assert.True(t, IsLeapYear(2024))
	assert.False(t, IsLeapYear(2023))

	a := time.Date(2024, 2, 28, 12, 0, 0, 0, time.UTC)
	b := AddDays(a, 2)
	assert.Equal(t, "01-03-2024", FormatDate(AddDays(a, 2).Add(-12*time.Hour)))
	assert.InDelta(t, 2.0, DaysBetween(a, b), 1e-9)
	assert.InDelta(t, 0.5, DaysBetween(a, a.Add(12*time.Hour)), 1e-9)
}

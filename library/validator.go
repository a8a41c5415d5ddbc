package library

import (
	"regexp"
	"time"
)

var (
	isbnPattern  = regexp.MustCompile(`^\d{13}$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// Format checks only. The Library itself enforces presence and uniqueness of ISBN and email,
// never their format, so callers run these before AddBook / RegisterUser when they care.

func IsValidISBN(isbn string) bool    { return isbnPattern.MatchString(isbn) }
func IsValidEmail(email string) bool  { return emailPattern.MatchString(email) }
func IsValidPageCount(pages int) bool { return pages > 0 }

// IsValidYear accepts years after 1000 up to and including the current year.
func IsValidYear(year int) bool {
	return year > 1000 && year <= time.Now().Year()
}

// IsValidBook runs the format checks that apply to a book import record.
func IsValidBook(in BookInput) bool {
	total := 1
	if in.TotalCopies != nil {
		total = *in.TotalCopies
	}
	return IsValidISBN(in.ISBN) && IsValidYear(in.PublicationYear) && IsValidPageCount(total)
}

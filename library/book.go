package library

import (
	"fmt"
	"time"
)

// Book is a catalogue title with a number of physical copies, some of which may be lent out.
// 0 <= BorrowedCopies <= TotalCopies holds for every Book built by NewBook and mutated
// through its methods.
type Book struct {
	Title           string `json:"title"`
	Author          string `json:"author"`
	ISBN            string `json:"isbn"`
	PublicationYear int    `json:"publicationYear"`
	TotalCopies     int    `json:"totalCopies"`
	BorrowedCopies  int    `json:"borrowedCopies"`
	Genre           string `json:"genre"`
}

// NewBook builds a Book and checks the copy counts.
func NewBook(title, author, isbn string, year, total, borrowed int, genre string) (*Book, error) {
	if err := checkCopies(total, borrowed); err != nil {
		return nil, err
	}
	return &Book{
		Title:           title,
		Author:          author,
		ISBN:            isbn,
		PublicationYear: year,
		TotalCopies:     total,
		BorrowedCopies:  borrowed,
		Genre:           genre,
	}, nil
}

func checkCopies(total, borrowed int) error {
	if total < 0 {
		return invariantError(CodeInvalidCopyCount, "total copies cannot be less than 0 (got %d)", total)
	}
	if borrowed < 0 || borrowed > total {
		return invariantError(CodeInvalidCopyCount, "borrowed copies must be between 0 and %d (got %d)", total, borrowed)
	}
	return nil
}

func (b *Book) AvailableCopies() int { return b.TotalCopies - b.BorrowedCopies }
func (b *Book) IsAvailable() bool    { return b.AvailableCopies() > 0 }

// Age is the number of years since publication, relative to now.
func (b *Book) Age(now time.Time) int {
	return now.Year() - b.PublicationYear
}

// Borrow takes one copy off the shelf.
func (b *Book) Borrow() error {
	if !b.IsAvailable() {
		return invariantError(CodeNoCopiesAvailable, "no copies of %q available", b.Title)
	}
	b.BorrowedCopies++
	return nil
}

// Return puts one borrowed copy back.
func (b *Book) Return() error {
	if b.BorrowedCopies <= 0 {
		return invariantError(CodeNoCopiesBorrowed, "no borrowed copies of %q to return", b.Title)
	}
	b.BorrowedCopies--
	return nil
}

// SetCopies replaces both counts at once so the pair is never observed half-updated.
func (b *Book) SetCopies(total, borrowed int) error {
	if err := checkCopies(total, borrowed); err != nil {
		return err
	}
	b.TotalCopies = total
	b.BorrowedCopies = borrowed
	return nil
}

// SetDetails overwrites the descriptive fields that are set in u. Nil fields are left alone.
func (b *Book) SetDetails(u BookUpdate) {
	if u.Title != nil {
		b.Title = *u.Title
	}
	if u.Author != nil {
		b.Author = *u.Author
	}
	if u.Genre != nil {
		b.Genre = *u.Genre
	}
	if u.PublicationYear != nil {
		b.PublicationYear = *u.PublicationYear
	}
}

// Info is the short catalogue card.
func (b *Book) Info() string {
	return fmt.Sprintf("Title: %s\nAuthor: %s\nISBN: %s\nPublication Year: %d\nGenre: %s",
		b.Title, b.Author, b.ISBN, b.PublicationYear, b.Genre)
}

// FormattedInfo is the full card including copy counts.
func (b *Book) FormattedInfo(now time.Time) string {
	available := "No"
	if b.IsAvailable() {
		available = "Yes"
	}
	return fmt.Sprintf("%s\nBook Age: %d years\nTotal Copies: %d\nBorrowed Copies: %d\nAvailable Copies: %d\nAvailable: %s",
		b.Info(), b.Age(now), b.TotalCopies, b.BorrowedCopies, b.AvailableCopies(), available)
}

// CompareByYear orders books by publication year, oldest first.
func CompareByYear(a, b Book) int {
	return a.PublicationYear - b.PublicationYear
}

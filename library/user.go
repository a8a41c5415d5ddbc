package library

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// DefaultMaxBooksPerUser is the borrow cap used when a Library is built without WithMaxBooksPerUser.
const DefaultMaxBooksPerUser = 5

// BorrowedBook is one entry in a member's current loans or borrow history.
type BorrowedBook struct {
	ISBN       string    `json:"isbn"`
	Title      string    `json:"title"`
	BorrowDate time.Time `json:"borrowDate"`
}

// User is a registered library member identified by email.
type User struct {
	Name             string         `json:"name"`
	Email            string         `json:"email"`
	RegistrationDate time.Time      `json:"registrationDate"`
	BorrowedBooks    []BorrowedBook `json:"borrowedBooks"`
	BorrowHistory    []BorrowedBook `json:"borrowHistory"`

	limit int
}

// NewUser creates a member with no loans. limit is the number of books the member may hold at once.
func NewUser(name, email string, registered time.Time, limit int) *User {
	return &User{
		Name:             name,
		Email:            email,
		RegistrationDate: registered,
		BorrowedBooks:    []BorrowedBook{},
		BorrowHistory:    []BorrowedBook{},
		limit:            limit,
	}
}

// Limit returns the member's borrow cap.
func (u *User) Limit() int { return u.limit }

func (u *User) CanBorrow() bool  { return len(u.BorrowedBooks) < u.limit }
func (u *User) BorrowCount() int { return len(u.BorrowedBooks) }

func (u *User) hasBorrowed(isbn string) bool {
	return slices.ContainsFunc(u.BorrowedBooks, func(b BorrowedBook) bool { return b.ISBN == isbn })
}

// AddBorrowedBook records a new loan in both the current list and the history.
func (u *User) AddBorrowedBook(isbn, title string, at time.Time) error {
	if !u.CanBorrow() {
		return invariantError(CodeBorrowLimitReached, "%s has reached the borrowing limit of %d", u.Name, u.limit)
	}
	if u.hasBorrowed(isbn) {
		return conflictError(CodeBookAlreadyBorrowed, "%s already holds %s", u.Name, isbn)
	}
	entry := BorrowedBook{ISBN: isbn, Title: title, BorrowDate: at}
	u.BorrowedBooks = append(u.BorrowedBooks, entry)
	u.BorrowHistory = append(u.BorrowHistory, entry)
	return nil
}

// RemoveBorrowedBook drops the first current loan for isbn. History is never pruned.
func (u *User) RemoveBorrowedBook(isbn string) error {
	i := slices.IndexFunc(u.BorrowedBooks, func(b BorrowedBook) bool { return b.ISBN == isbn })
	if i == -1 {
		return notFoundError(CodeBookNotBorrowed, "%s has not borrowed %s", u.Name, isbn)
	}
	u.BorrowedBooks = slices.Delete(u.BorrowedBooks, i, i+1)
	return nil
}

// HasOverdueBooks reports whether any current loan is older than days.
func (u *User) HasOverdueBooks(days int, now time.Time) bool {
	for _, b := range u.BorrowedBooks {
		if DaysBetween(b.BorrowDate, now) > float64(days) {
			return true
		}
	}
	return false
}

// SetInfo applies the non-nil fields of upd.
func (u *User) SetInfo(upd UserUpdate) {
	if upd.Name != nil {
		u.Name = *upd.Name
	}
}

// Profile is a read-only view of the member.
type Profile struct {
	Name             string         `json:"name"`
	Email            string         `json:"email"`
	RegistrationDate time.Time      `json:"registrationDate"`
	BorrowedBooks    []BorrowedBook `json:"borrowedBooks"`
	BorrowHistory    []BorrowedBook `json:"borrowHistory"`
}

func (u *User) Profile() Profile {
	return Profile{
		Name:             u.Name,
		Email:            u.Email,
		RegistrationDate: u.RegistrationDate,
		BorrowedBooks:    slices.Clone(u.BorrowedBooks),
		BorrowHistory:    slices.Clone(u.BorrowHistory),
	}
}

// FormattedHistory renders the member card with every book ever borrowed.
func (u *User) FormattedHistory() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "User: %s\nEmail: %s\nNo. Borrowed Books: %d\nAccount History:", u.Name, u.Email, u.BorrowCount())
	for _, b := range u.BorrowHistory {
		fmt.Fprintf(&sb, "\n• %s (ISBN: %s) borrowed on %s", b.Title, b.ISBN, FormatDate(b.BorrowDate))
	}
	return sb.String()
}

func (u *User) clone() User {
	c := *u
	c.BorrowedBooks = slices.Clone(u.BorrowedBooks)
	c.BorrowHistory = slices.Clone(u.BorrowHistory)
	return c
}

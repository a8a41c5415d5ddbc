package library

import "time"

// Loan is an active borrow relationship. (UserEmail, ISBN) identifies it.
type Loan struct {
	UserEmail  string    `json:"userEmail"`
	ISBN       string    `json:"isbn"`
	BorrowDate time.Time `json:"borrowDate"`
}

type loanKey struct {
	email string
	isbn  string
}

func (l Loan) key() loanKey { return loanKey{email: l.UserEmail, isbn: l.ISBN} }

// BookInput is the data accepted by AddBook. Zero values take the documented defaults:
// title and author "Unknown", year the current year, one copy, genre "General".
// TotalCopies is a pointer so an explicit 0 is distinguishable from "not given".
type BookInput struct {
	Title           string `json:"title,omitempty"`
	Author          string `json:"author,omitempty"`
	ISBN            string `json:"isbn"`
	PublicationYear int    `json:"publicationYear,omitempty"`
	TotalCopies     *int   `json:"totalCopies,omitempty"`
	BorrowedCopies  int    `json:"borrowedCopies,omitempty"`
	Genre           string `json:"genre,omitempty"`
}

// UserInput is the data accepted by RegisterUser. An empty name becomes "Anonymous".
type UserInput struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// BookUpdate is a partial update; nil fields are left untouched.
// TotalCopies is validated against the copies currently lent out.
type BookUpdate struct {
	Title           *string `json:"title,omitempty"`
	Author          *string `json:"author,omitempty"`
	Genre           *string `json:"genre,omitempty"`
	PublicationYear *int    `json:"publicationYear,omitempty"`
	TotalCopies     *int    `json:"totalCopies,omitempty"`
}

// UserUpdate is a partial update; nil fields are left untouched. Email is the member's
// identity and cannot be changed.
type UserUpdate struct {
	Name *string `json:"name,omitempty"`
}

// Snapshot is the persisted form of a Library: three independent collections.
type Snapshot struct {
	Books []Book `json:"books"`
	Users []User `json:"users"`
	Loans []Loan `json:"loans"`
}

// SaveResult reports how many records a Store wrote per collection.
type SaveResult struct {
	BooksCount int `json:"booksCount"`
	UsersCount int `json:"usersCount"`
	LoansCount int `json:"loansCount"`
}

// Statistics is a summary of the Library's current state.
type Statistics struct {
	Name           string `json:"name"`
	TotalBooks     int    `json:"totalBooks"`
	AvailableBooks int    `json:"availableBooks"`
	TotalUsers     int    `json:"totalUsers"`
	ActiveLoans    int    `json:"activeLoans"`
}

// ImportFailure describes one record InitializeFromData could not add.
type ImportFailure struct {
	Kind  string `json:"kind"` // "book" or "user"
	Index int    `json:"index"`
	Key   string `json:"key"`
	Err   error  `json:"-"`
}

// ImportResult is the outcome of a best-effort InitializeFromData run.
type ImportResult struct {
	AddedBooks  int             `json:"addedBooks"`
	AddedUsers  int             `json:"addedUsers"`
	FailedBooks int             `json:"failedBooks"`
	FailedUsers int             `json:"failedUsers"`
	Failures    []ImportFailure `json:"failures,omitempty"`
}

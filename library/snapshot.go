package library

import (
	"log/slog"
	"slices"
	"strings"
)

// Snapshot copies the three collections for persistence.
func (l *Library) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s := Snapshot{
		Books: make([]Book, 0, len(l.books)),
		Users: make([]User, 0, len(l.users)),
		Loans: slices.Clone(l.loans),
	}
	for _, b := range l.books {
		s.Books = append(s.Books, *b)
	}
	for _, u := range l.users {
		s.Users = append(s.Users, u.clone())
	}
	if s.Loans == nil {
		s.Loans = []Loan{}
	}
	return s
}

// Restore replaces the whole state with s. Every book and member is checked the same way
// AddBook and RegisterUser would check them, and loan pairs must be unique; on any failure
// the current state is kept.
//
// The three collections are persisted independently, so one of them may come back empty.
// Restore then repairs the references between them (see reconcileLoans) and logs a warning.
func (l *Library) Restore(s Snapshot) error {
	return l.commit("restore", func() (Event, error) {
		books := make([]*Book, 0, len(s.Books))
		seenISBN := make(map[string]struct{}, len(s.Books))
		for _, in := range s.Books {
			if strings.TrimSpace(in.ISBN) == "" {
				return Event{}, validationError(CodeInvalidSnapshot, "book %q has no ISBN", in.Title)
			}
			if _, dup := seenISBN[in.ISBN]; dup {
				return Event{}, validationError(CodeInvalidSnapshot, "duplicate ISBN %s", in.ISBN)
			}
			seenISBN[in.ISBN] = struct{}{}
			b, err := NewBook(in.Title, in.Author, in.ISBN, in.PublicationYear, in.TotalCopies, in.BorrowedCopies, in.Genre)
			if err != nil {
				return Event{}, validationError(CodeInvalidSnapshot, "book %s: %v", in.ISBN, err)
			}
			books = append(books, b)
		}

		users := make([]*User, 0, len(s.Users))
		seenEmail := make(map[string]struct{}, len(s.Users))
		for _, in := range s.Users {
			if strings.TrimSpace(in.Email) == "" {
				return Event{}, validationError(CodeInvalidSnapshot, "user %q has no email", in.Name)
			}
			if _, dup := seenEmail[in.Email]; dup {
				return Event{}, validationError(CodeInvalidSnapshot, "duplicate email %s", in.Email)
			}
			seenEmail[in.Email] = struct{}{}
			u := NewUser(in.Name, in.Email, in.RegistrationDate, l.maxBooksPerUser)
			u.BorrowedBooks = append(u.BorrowedBooks, in.BorrowedBooks...)
			u.BorrowHistory = append(u.BorrowHistory, in.BorrowHistory...)
			users = append(users, u)
		}

		loans := make([]Loan, 0, len(s.Loans))
		active := make(map[loanKey]struct{}, len(s.Loans))
		for _, ln := range s.Loans {
			if _, dup := active[ln.key()]; dup {
				return Event{}, validationError(CodeInvalidSnapshot, "duplicate loan of %s by %s", ln.ISBN, ln.UserEmail)
			}
			active[ln.key()] = struct{}{}
			loans = append(loans, ln)
		}

		loans, repaired := reconcileLoans(books, users, loans)
		if repaired > 0 {
			l.log.Warn("restored snapshot had dangling loan references",
				slog.Int("repaired", repaired),
				slog.Int("loans_before", len(active)),
				slog.Int("loans_after", len(loans)),
			)
			active = make(map[loanKey]struct{}, len(loans))
			for _, ln := range loans {
				active[ln.key()] = struct{}{}
			}
		}

		l.books, l.users, l.loans, l.active = books, users, loans, active
		return l.event(EventLibraryRestored, RestoredEvent{Books: len(books), Users: len(users), Loans: len(loans)}), nil
	})
}

// reconcileLoans makes loans, members' current borrows and borrowed copy counts agree:
//   - a loan whose member or book is gone, or that the member does not hold, is dropped and
//     its copy goes back on the shelf;
//   - a held book with no loan gets its loan back when the book has a borrowed copy left to
//     account for it, otherwise the member's entry is dropped.
//
// It returns the surviving loans and how many references it changed.
func reconcileLoans(books []*Book, users []*User, loans []Loan) ([]Loan, int) {
	bookByISBN := make(map[string]*Book, len(books))
	for _, b := range books {
		bookByISBN[b.ISBN] = b
	}
	userByEmail := make(map[string]*User, len(users))
	for _, u := range users {
		userByEmail[u.Email] = u
	}

	repaired := 0
	kept := make([]Loan, 0, len(loans))
	perBook := make(map[string]int, len(books))
	var dropped []*Book
	for _, ln := range loans {
		u, b := userByEmail[ln.UserEmail], bookByISBN[ln.ISBN]
		if u != nil && b != nil && u.hasBorrowed(ln.ISBN) {
			kept = append(kept, ln)
			perBook[ln.ISBN]++
			continue
		}
		repaired++
		if b != nil {
			dropped = append(dropped, b)
		}
	}
	for _, b := range dropped {
		if b.BorrowedCopies > perBook[b.ISBN] {
			b.BorrowedCopies--
		}
	}

	held := make(map[loanKey]struct{}, len(kept))
	for _, ln := range kept {
		held[ln.key()] = struct{}{}
	}
	for _, u := range users {
		current := make([]BorrowedBook, 0, len(u.BorrowedBooks))
		for _, bb := range u.BorrowedBooks {
			ln := Loan{UserEmail: u.Email, ISBN: bb.ISBN, BorrowDate: bb.BorrowDate}
			if _, ok := held[ln.key()]; ok {
				current = append(current, bb)
				continue
			}
			repaired++
			b := bookByISBN[bb.ISBN]
			if b == nil || b.BorrowedCopies <= perBook[bb.ISBN] {
				continue
			}
			kept = append(kept, ln)
			held[ln.key()] = struct{}{}
			perBook[bb.ISBN]++
			current = append(current, bb)
		}
		u.BorrowedBooks = current
	}
	return kept, repaired
}

package library

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Library owns the catalogue, the members and the active loans, and runs the borrow/return
// lifecycle. All mutations are serialized by one lock; queries return copies.
type Library struct {
	name            string
	maxBooksPerUser int
	historySize     int
	now             func() time.Time
	log             *slog.Logger

	mu    sync.RWMutex
	books []*Book
	users []*User
	loans []Loan
	// active indexes loans by (email, isbn) so a pair can hold at most one loan.
	active map[loanKey]struct{}

	bus *eventBus
}

// Option configures a Library.
type Option func(*Library) error

// WithMaxBooksPerUser sets the number of books a member may hold at once.
func WithMaxBooksPerUser(n int) Option {
	return func(l *Library) error {
		if n <= 0 {
			return fmt.Errorf("max books per user must be positive, got %d", n)
		}
		l.maxBooksPerUser = n
		return nil
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Library) error {
		if now == nil {
			return errors.New("clock must not be nil")
		}
		l.now = now
		return nil
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(l *Library) error {
		if log == nil {
			return errors.New("logger must not be nil")
		}
		l.log = log
		return nil
	}
}

// WithHistorySize sets how many recent events are retained.
func WithHistorySize(n int) Option {
	return func(l *Library) error {
		if n <= 0 {
			return fmt.Errorf("history size must be positive, got %d", n)
		}
		l.historySize = n
		return nil
	}
}

// New builds an empty Library.
func New(name string, opts ...Option) (*Library, error) {
	l := &Library{
		name:            name,
		maxBooksPerUser: DefaultMaxBooksPerUser,
		historySize:     DefaultHistorySize,
		now:             time.Now,
		log:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		active:          make(map[loanKey]struct{}),
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	l.bus = newEventBus(l.historySize)
	return l, nil
}

func (l *Library) Name() string         { return l.name }
func (l *Library) MaxBooksPerUser() int { return l.maxBooksPerUser }

// commit runs fn inside the write lock. On success the event fn produced is appended to the
// history before the lock is released, and handlers run after it is released.
func (l *Library) commit(op string, fn func() (Event, error)) error {
	l.mu.Lock()
	ev, err := fn()
	var subs []subscriber
	if err == nil {
		subs = l.bus.record(ev)
	}
	l.mu.Unlock()

	if err != nil {
		l.log.Info("mutation rejected", slog.String("op", op), slog.String("error", err.Error()))
		return err
	}
	l.log.Debug("mutation applied", slog.String("op", op), slog.String("event", string(ev.Name)))
	dispatch(ev, subs)
	return nil
}

func (l *Library) event(name EventName, data any) Event {
	return Event{ID: uuid.New(), Name: name, Data: data, Timestamp: l.now()}
}

// ------------------ Books ------------------

func (l *Library) findBook(isbn string) (int, *Book) {
	for i, b := range l.books {
		if b.ISBN == isbn {
			return i, b
		}
	}
	return -1, nil
}

func (l *Library) mustFindBook(isbn string) (int, *Book, error) {
	i, b := l.findBook(isbn)
	if b == nil {
		return -1, nil, notFoundError(CodeBookNotFound, "book with ISBN %s not found", isbn)
	}
	return i, b, nil
}

// AddBook adds a new title. The ISBN is required and must be unique; every other field
// falls back to its default.
func (l *Library) AddBook(in BookInput) (Book, error) {
	var added Book
	err := l.commit("add book", func() (Event, error) {
		if strings.TrimSpace(in.ISBN) == "" {
			return Event{}, validationError(CodeMissingISBN, "ISBN is required to add a book")
		}
		if _, existing := l.findBook(in.ISBN); existing != nil {
			return Event{}, conflictError(CodeDuplicateISBN, "a book with ISBN %s already exists", in.ISBN)
		}
		book, err := NewBook(
			cmp.Or(in.Title, "Unknown"),
			cmp.Or(in.Author, "Unknown"),
			in.ISBN,
			cmp.Or(in.PublicationYear, l.now().Year()),
			totalOrDefault(in.TotalCopies),
			in.BorrowedCopies,
			cmp.Or(in.Genre, "General"),
		)
		if err != nil {
			return Event{}, err
		}
		l.books = append(l.books, book)
		added = *book
		return l.event(EventBookAdded, BookEvent{Book: added}), nil
	})
	return added, err
}

func totalOrDefault(total *int) int {
	if total == nil {
		return 1
	}
	return *total
}

// RemoveBook deletes a title. A book that still has active loans is kept and a
// ConflictError is returned, so loans are never orphaned.
func (l *Library) RemoveBook(isbn string) error {
	return l.commit("remove book", func() (Event, error) {
		i, book, err := l.mustFindBook(isbn)
		if err != nil {
			return Event{}, err
		}
		if n := l.loansFor(func(ln Loan) bool { return ln.ISBN == isbn }); n > 0 {
			return Event{}, conflictError(CodeBookHasActiveLoans, "book %s has %d active loan(s)", isbn, n)
		}
		l.books = slices.Delete(l.books, i, i+1)
		return l.event(EventBookRemoved, BookEvent{Book: *book}), nil
	})
}

// UpdateBook applies a partial update. Copy counts are validated before anything changes.
func (l *Library) UpdateBook(isbn string, upd BookUpdate) (Book, error) {
	var updated Book
	err := l.commit("update book", func() (Event, error) {
		_, book, err := l.mustFindBook(isbn)
		if err != nil {
			return Event{}, err
		}
		if upd.TotalCopies != nil {
			if err := book.SetCopies(*upd.TotalCopies, book.BorrowedCopies); err != nil {
				return Event{}, err
			}
		}
		book.SetDetails(upd)
		updated = *book
		return l.event(EventBookUpdated, BookEvent{Book: updated}), nil
	})
	return updated, err
}

// FindBookByISBN returns a copy of the book, if present.
func (l *Library) FindBookByISBN(isbn string) (Book, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, b := l.findBook(isbn); b != nil {
		return *b, true
	}
	return Book{}, false
}

// FindBooksByAuthor matches the author name exactly, ignoring case.
func (l *Library) FindBooksByAuthor(author string) []Book {
	return l.filterBooks(func(b *Book) bool { return strings.EqualFold(b.Author, author) })
}

// FindBooksByGenre matches the genre exactly, ignoring case.
func (l *Library) FindBooksByGenre(genre string) []Book {
	return l.filterBooks(func(b *Book) bool { return strings.EqualFold(b.Genre, genre) })
}

// Books returns every title in insertion order.
func (l *Library) Books() []Book {
	return l.filterBooks(func(*Book) bool { return true })
}

func (l *Library) filterBooks(keep func(*Book) bool) []Book {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := []Book{}
	for _, b := range l.books {
		if keep(b) {
			out = append(out, *b)
		}
	}
	return out
}

// ------------------ Users ------------------

func (l *Library) findUser(email string) (int, *User) {
	for i, u := range l.users {
		if u.Email == email {
			return i, u
		}
	}
	return -1, nil
}

func (l *Library) mustFindUser(email string) (int, *User, error) {
	i, u := l.findUser(email)
	if u == nil {
		return -1, nil, notFoundError(CodeUserNotFound, "user with email %s not found", email)
	}
	return i, u, nil
}

// RegisterUser adds a member. The email is required and must be unique.
func (l *Library) RegisterUser(in UserInput) (User, error) {
	var registered User
	err := l.commit("register user", func() (Event, error) {
		if strings.TrimSpace(in.Email) == "" {
			return Event{}, validationError(CodeMissingEmail, "email is required to register a user")
		}
		if _, existing := l.findUser(in.Email); existing != nil {
			return Event{}, conflictError(CodeDuplicateEmail, "user with email %s already exists", in.Email)
		}
		user := NewUser(cmp.Or(in.Name, "Anonymous"), in.Email, l.now(), l.maxBooksPerUser)
		l.users = append(l.users, user)
		registered = user.clone()
		return l.event(EventUserRegistered, UserEvent{User: user.Profile()}), nil
	})
	return registered, err
}

// RemoveUser deletes a member who holds no books.
func (l *Library) RemoveUser(email string) error {
	return l.commit("remove user", func() (Event, error) {
		i, user, err := l.mustFindUser(email)
		if err != nil {
			return Event{}, err
		}
		if n := l.loansFor(func(ln Loan) bool { return ln.UserEmail == email }); n > 0 {
			return Event{}, conflictError(CodeUserHasActiveLoans, "user %s has %d active loan(s)", email, n)
		}
		l.users = slices.Delete(l.users, i, i+1)
		return l.event(EventUserRemoved, UserEvent{User: user.Profile()}), nil
	})
}

// UpdateUser applies a partial update to a member.
func (l *Library) UpdateUser(email string, upd UserUpdate) (User, error) {
	var updated User
	err := l.commit("update user", func() (Event, error) {
		_, user, err := l.mustFindUser(email)
		if err != nil {
			return Event{}, err
		}
		user.SetInfo(upd)
		updated = user.clone()
		return l.event(EventUserUpdated, UserEvent{User: user.Profile()}), nil
	})
	return updated, err
}

// FindUserByEmail returns a copy of the member, if present.
func (l *Library) FindUserByEmail(email string) (User, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, u := l.findUser(email); u != nil {
		return u.clone(), true
	}
	return User{}, false
}

// Users returns every member in registration order.
func (l *Library) Users() []User {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]User, 0, len(l.users))
	for _, u := range l.users {
		out = append(out, u.clone())
	}
	return out
}

// ------------------ Circulation ------------------

// BorrowBook lends one copy of isbn to the member. Every guard is checked before any state
// changes, so a failed borrow leaves the book, the member and the loan list untouched.
func (l *Library) BorrowBook(email, isbn string) (Loan, error) {
	var loan Loan
	err := l.commit("borrow book", func() (Event, error) {
		_, user, err := l.mustFindUser(email)
		if err != nil {
			return Event{}, err
		}
		_, book, err := l.mustFindBook(isbn)
		if err != nil {
			return Event{}, err
		}
		if !book.IsAvailable() {
			return Event{}, invariantError(CodeNoCopiesAvailable, "no available copies of %q", book.Title)
		}
		if !user.CanBorrow() {
			return Event{}, invariantError(CodeBorrowLimitReached, "%s has reached the borrowing limit of %d", user.Name, user.Limit())
		}
		loan = Loan{UserEmail: email, ISBN: isbn, BorrowDate: l.now()}
		if _, dup := l.active[loan.key()]; dup || user.hasBorrowed(isbn) {
			return Event{}, conflictError(CodeLoanAlreadyActive, "%s already has %q on loan", user.Name, book.Title)
		}

		if err := book.Borrow(); err != nil {
			return Event{}, err
		}
		if err := user.AddBorrowedBook(isbn, book.Title, loan.BorrowDate); err != nil {
			_ = book.Return()
			return Event{}, err
		}
		l.loans = append(l.loans, loan)
		l.active[loan.key()] = struct{}{}
		return l.event(EventLoanCreated, LoanEvent{UserEmail: email, ISBN: isbn, BookTitle: book.Title}), nil
	})
	if err != nil {
		return Loan{}, err
	}
	return loan, nil
}

// ReturnBook closes the member's loan of isbn. The borrow history keeps the entry.
func (l *Library) ReturnBook(email, isbn string) error {
	return l.commit("return book", func() (Event, error) {
		_, user, err := l.mustFindUser(email)
		if err != nil {
			return Event{}, err
		}
		_, book, err := l.mustFindBook(isbn)
		if err != nil {
			return Event{}, err
		}
		i := slices.IndexFunc(l.loans, func(ln Loan) bool { return ln.UserEmail == email && ln.ISBN == isbn })
		if i == -1 {
			return Event{}, notFoundError(CodeLoanNotFound, "%s did not borrow %q", user.Name, book.Title)
		}
		if book.BorrowedCopies <= 0 {
			return Event{}, invariantError(CodeNoCopiesBorrowed, "no borrowed copies of %q to return", book.Title)
		}
		if !user.hasBorrowed(isbn) {
			return Event{}, notFoundError(CodeBookNotBorrowed, "%s has not borrowed %s", user.Name, isbn)
		}

		if err := book.Return(); err != nil {
			return Event{}, err
		}
		if err := user.RemoveBorrowedBook(isbn); err != nil {
			book.BorrowedCopies++
			return Event{}, err
		}
		delete(l.active, l.loans[i].key())
		l.loans = slices.Delete(l.loans, i, i+1)
		return l.event(EventLoanReturned, LoanEvent{UserEmail: email, ISBN: isbn, BookTitle: book.Title}), nil
	})
}

// loansFor counts active loans matching match. Callers hold l.mu.
func (l *Library) loansFor(match func(Loan) bool) int {
	n := 0
	for _, ln := range l.loans {
		if match(ln) {
			n++
		}
	}
	return n
}

// Loans returns every active loan in the order it was created.
func (l *Library) Loans() []Loan {
	return l.filterLoans(func(Loan) bool { return true })
}

func (l *Library) GetUserLoans(email string) []Loan {
	return l.filterLoans(func(ln Loan) bool { return ln.UserEmail == email })
}

// GetOverdueLoans returns the loans older than days. A loan exactly days old is not overdue.
func (l *Library) GetOverdueLoans(days int) []Loan {
	now := l.now()
	return l.filterLoans(func(ln Loan) bool { return DaysBetween(ln.BorrowDate, now) > float64(days) })
}

func (l *Library) filterLoans(keep func(Loan) bool) []Loan {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := []Loan{}
	for _, ln := range l.loans {
		if keep(ln) {
			out = append(out, ln)
		}
	}
	return out
}

// ------------------ Reports ------------------

// GetPopularBooks returns up to limit books by borrowed copies, most first. Ties keep
// catalogue order. A non-positive limit returns every book.
func (l *Library) GetPopularBooks(limit int) []Book {
	books := l.Books()
	slices.SortStableFunc(books, func(a, b Book) int { return cmp.Compare(b.BorrowedCopies, a.BorrowedCopies) })
	return head(books, limit)
}

// GetActiveUsers returns up to limit members by length of borrow history, most first. Ties
// keep registration order.
func (l *Library) GetActiveUsers(limit int) []User {
	users := l.Users()
	slices.SortStableFunc(users, func(a, b User) int { return cmp.Compare(len(b.BorrowHistory), len(a.BorrowHistory)) })
	return head(users, limit)
}

func head[T any](s []T, limit int) []T {
	if limit > 0 && limit < len(s) {
		return s[:limit]
	}
	return s
}

func (l *Library) Statistics() Statistics {
	l.mu.RLock()
	defer l.mu.RUnlock()
	available := 0
	for _, b := range l.books {
		if b.IsAvailable() {
			available++
		}
	}
	return Statistics{
		Name:           l.name,
		TotalBooks:     len(l.books),
		AvailableBooks: available,
		TotalUsers:     len(l.users),
		ActiveLoans:    len(l.loans),
	}
}

// GenerateReport renders the statistics with the five most popular books and most active
// members.
func (l *Library) GenerateReport() string {
	stats := l.Statistics()
	var sb strings.Builder
	fmt.Fprintf(&sb, "Library: %s\nTotal Books: %d\nAvailable Books: %d\nTotal Users: %d\nActive Loans: %d\n",
		stats.Name, stats.TotalBooks, stats.AvailableBooks, stats.TotalUsers, stats.ActiveLoans)
	sb.WriteString("\nTop 5 Popular Books:\n")
	for _, b := range l.GetPopularBooks(5) {
		fmt.Fprintf(&sb, "• %s (Borrowed: %d)\n", b.Title, b.BorrowedCopies)
	}
	sb.WriteString("\nTop 5 Active Users:\n")
	for _, u := range l.GetActiveUsers(5) {
		fmt.Fprintf(&sb, "• %s (Borrowed: %d)\n", u.Name, len(u.BorrowHistory))
	}
	return sb.String()
}

// ------------------ Events ------------------

// On registers handler for one event name.
func (l *Library) On(name EventName, handler Handler) Subscription {
	return l.bus.subscribe(name, handler, false)
}

// OnAny registers handler for every event.
func (l *Library) OnAny(handler Handler) Subscription {
	return l.bus.subscribe("", handler, true)
}

// EventHistory returns the last limit events, oldest first. A non-positive limit returns
// the whole retained history.
func (l *Library) EventHistory(limit int) []Event {
	history := l.bus.snapshot()
	if limit > 0 && limit < len(history) {
		return history[len(history)-limit:]
	}
	return history
}

func (l *Library) EventStats() EventStats {
	return statsOf(l.bus.snapshot())
}

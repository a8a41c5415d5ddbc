package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/term"

	"lending-library/library"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// isTerminal reports whether w is an interactive terminal. Anything else gets JSON.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func termWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return 120
}

// render prints text for a terminal and v as indented JSON otherwise.
func (a *app) render(v any, text func(w io.Writer)) error {
	if isTerminal(a.out) {
		text(a.out)
		return nil
	}
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printBooks(w io.Writer, books []library.Book) {
	if len(books) == 0 {
		fmt.Fprintln(w, "No books found.")
		return
	}
	titleWidth := min(40, max(20, termWidth(w)-80))
	fmt.Fprintf(w, "%-13s  %-*s %-25s %-12s %9s\n", "ISBN", titleWidth, "Title", "Author", "Genre", "Available")
	fmt.Fprintln(w, strings.Repeat("-", 13+2+titleWidth+1+25+1+12+1+9))
	for _, b := range books {
		fmt.Fprintf(w, "%-13s  %-*s %-25s %-12s %4d/%-4d\n",
			b.ISBN,
			titleWidth, library.Truncate(b.Title, titleWidth),
			library.Truncate(b.Author, 25),
			library.Truncate(b.Genre, 12),
			b.AvailableCopies(), b.TotalCopies)
	}
}

func printUsers(w io.Writer, users []library.User) {
	if len(users) == 0 {
		fmt.Fprintln(w, "No members found.")
		return
	}
	fmt.Fprintf(w, "%-30s %-30s %-8s %-8s\n", "Name", "Email", "Holding", "History")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, u := range users {
		fmt.Fprintf(w, "%-30s %-30s %-8d %-8d\n",
			library.Truncate(u.Name, 30), library.Truncate(u.Email, 30), u.BorrowCount(), len(u.BorrowHistory))
	}
}

func printLoans(w io.Writer, loans []library.Loan) {
	if len(loans) == 0 {
		fmt.Fprintln(w, "No loans found.")
		return
	}
	fmt.Fprintf(w, "%-30s %-13s %-10s\n", "Member", "ISBN", "Borrowed")
	fmt.Fprintln(w, strings.Repeat("-", 55))
	for _, ln := range loans {
		fmt.Fprintf(w, "%-30s %-13s %-10s\n", library.Truncate(ln.UserEmail, 30), ln.ISBN, library.FormatDate(ln.BorrowDate))
	}
}

func printEvent(w io.Writer, ev library.Event) {
	fmt.Fprintf(w, "[%s] %s", ev.Timestamp.Format("15:04:05"), ev.Name)
	switch d := ev.Data.(type) {
	case library.BookEvent:
		fmt.Fprintf(w, " %s (%s)", d.Book.Title, d.Book.ISBN)
	case library.UserEvent:
		fmt.Fprintf(w, " %s <%s>", d.User.Name, d.User.Email)
	case library.LoanEvent:
		fmt.Fprintf(w, " %q by %s", d.BookTitle, d.UserEmail)
	case library.RestoredEvent:
		fmt.Fprintf(w, " %d books, %d users, %d loans", d.Books, d.Users, d.Loans)
	}
	fmt.Fprintln(w)
}

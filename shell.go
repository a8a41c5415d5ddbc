package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"lending-library/library"
	"lending-library/metrics"
)

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive prompt; events are printed as they happen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return newShell(a, cmd.InOrStdin(), cmd.OutOrStdout()).run(cmd.Context())
		},
	}
}

type shell struct {
	*app
	out io.Writer

	in      io.Reader
	lines   chan string
	scanErr error
	done    <-chan struct{}
}

func newShell(a *app, in io.Reader, out io.Writer) *shell {
	return &shell{app: a, in: in, out: out, lines: make(chan string)}
}

// scan feeds input lines to the prompt so that a blocked read does not hold up Ctrl-C.
// scanErr is written before lines is closed.
func (s *shell) scan() {
	sc := bufio.NewScanner(s.in)
	for sc.Scan() {
		select {
		case s.lines <- sc.Text():
		case <-s.done:
			return
		}
	}
	s.scanErr = sc.Err()
	close(s.lines)
}

func (s *shell) run(ctx context.Context) error {
	s.done = ctx.Done()
	go s.scan()

	sub := s.lib.OnAny(func(ev library.Event) { printEvent(s.out, ev) })
	defer sub.Cancel()

	fmt.Fprintf(s.out, "Welcome to %s!\n", s.lib.Name())
	fmt.Fprintln(s.out, "Available commands:")
	fmt.Fprintln(s.out, "  Books: add book, remove book, list books, search author, search genre")
	fmt.Fprintln(s.out, "  Members: add member, remove member, list members")
	fmt.Fprintln(s.out, "  Circulation: checkout, return, loans, overdue")
	fmt.Fprintln(s.out, "  Reports: popular, active, report, events, stats, metrics")
	fmt.Fprintln(s.out, "  System: save, exit")

	for {
		line, ok := s.prompt("\n> ")
		if !ok {
			if ctx.Err() != nil {
				fmt.Fprintln(s.out, "\nInterrupted.")
				return nil
			}
			return s.scanErr
		}

		switch line {
		case "":
		case "add book":
			s.handleAddBook()
		case "remove book":
			if isbn, ok := s.prompt("ISBN: "); ok {
				s.report(s.lib.RemoveBook(isbn))
			}
		case "list books":
			printBooks(s.out, s.lib.Books())
		case "search author":
			if author, ok := s.prompt("Author: "); ok {
				printBooks(s.out, s.lib.FindBooksByAuthor(author))
			}
		case "search genre":
			if genre, ok := s.prompt("Genre: "); ok {
				printBooks(s.out, s.lib.FindBooksByGenre(genre))
			}
		case "add member", "register":
			s.handleAddMember()
		case "remove member":
			if email, ok := s.prompt("Email: "); ok {
				s.report(s.lib.RemoveUser(email))
			}
		case "list members":
			printUsers(s.out, s.lib.Users())
		case "checkout", "borrow":
			if email, isbn, ok := s.promptLoan(); ok {
				_, err := s.lib.BorrowBook(email, isbn)
				s.report(err)
			}
		case "return":
			if email, isbn, ok := s.promptLoan(); ok {
				s.report(s.lib.ReturnBook(email, isbn))
			}
		case "loans":
			printLoans(s.out, s.lib.Loans())
		case "overdue":
			printLoans(s.out, s.lib.GetOverdueLoans(s.cfg.OverdueDays))
		case "popular":
			printBooks(s.out, s.lib.GetPopularBooks(5))
		case "active":
			printUsers(s.out, s.lib.GetActiveUsers(5))
		case "report":
			fmt.Fprint(s.out, s.lib.GenerateReport())
		case "events":
			for _, ev := range s.lib.EventHistory(10) {
				printEvent(s.out, ev)
			}
		case "stats":
			s.printEventStats()
		case "metrics":
			s.report(metrics.WriteText(s.out, s.registry))
		case "save":
			s.report(s.save(ctx))
		case "exit", "quit":
			fmt.Fprintln(s.out, "Goodbye!")
			return nil
		default:
			fmt.Fprintln(s.out, "Unknown command. Type one of the available commands listed above.")
		}
	}
}

// prompt reads one trimmed line. ok is false when input ended or the shell was interrupted.
func (s *shell) prompt(label string) (string, bool) {
	fmt.Fprint(s.out, label)
	select {
	case line, open := <-s.lines:
		return strings.TrimSpace(line), open
	case <-s.done:
		return "", false
	}
}

func (s *shell) promptLoan() (email, isbn string, ok bool) {
	if email, ok = s.prompt("Member email: "); !ok {
		return "", "", false
	}
	if isbn, ok = s.prompt("ISBN: "); !ok {
		return "", "", false
	}
	return email, isbn, true
}

func (s *shell) report(err error) {
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
	}
}

func (s *shell) handleAddBook() {
	var in library.BookInput
	fields := []struct {
		label string
		dst   *string
	}{
		{"ISBN: ", &in.ISBN},
		{"Title: ", &in.Title},
		{"Author: ", &in.Author},
		{"Genre (optional): ", &in.Genre},
	}
	for _, f := range fields {
		v, ok := s.prompt(f.label)
		if !ok {
			return
		}
		*f.dst = v
	}

	year, ok := s.promptInt("Publication year (optional): ")
	if !ok {
		return
	}
	in.PublicationYear = year

	copies, ok := s.promptInt("Copies (optional): ")
	if !ok {
		return
	}
	if copies != 0 {
		in.TotalCopies = &copies
	}

	book, err := s.lib.AddBook(in)
	if err != nil {
		fmt.Fprintf(s.out, "Error adding book: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Added %q with %d copies.\n", book.Title, book.TotalCopies)
}

// promptInt reads an optional integer; blank input yields 0.
func (s *shell) promptInt(label string) (int, bool) {
	for {
		raw, ok := s.prompt(label)
		if !ok {
			return 0, false
		}
		if raw == "" {
			return 0, true
		}
		n, err := strconv.Atoi(raw)
		if err == nil {
			return n, true
		}
		fmt.Fprintf(s.out, "Invalid number: %s\n", raw)
	}
}

func (s *shell) handleAddMember() {
	name, ok := s.prompt("Name: ")
	if !ok {
		return
	}
	email, ok := s.prompt("Email: ")
	if !ok {
		return
	}
	if email != "" && !library.IsValidEmail(email) {
		fmt.Fprintf(s.out, "Warning: %q does not look like an email address.\n", email)
	}
	user, err := s.lib.RegisterUser(library.UserInput{Name: name, Email: email})
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Registered member '%s' <%s>\n", user.Name, user.Email)
}

func (s *shell) printEventStats() {
	stats := s.lib.EventStats()
	fmt.Fprintf(s.out, "Events retained: %d\n", stats.Total)
	for _, name := range slices.Sorted(maps.Keys(stats.Counts)) {
		fmt.Fprintf(s.out, "  %-18s %d\n", name, stats.Counts[name])
	}
	if stats.LastEvent != nil {
		fmt.Fprint(s.out, "Last: ")
		printEvent(s.out, *stats.LastEvent)
	}
}

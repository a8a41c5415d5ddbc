package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"lending-library/library"
	"lending-library/metrics"
	"lending-library/storage"
)

// ------------------ Books ------------------

func newBookCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "book", Short: "Manage the catalogue"}
	cmd.AddCommand(newBookAddCmd(a), newBookRemoveCmd(a), newBookUpdateCmd(a), newBookShowCmd(a), newBookListCmd(a))
	return cmd
}

func newBookAddCmd(a *app) *cobra.Command {
	var (
		in     library.BookInput
		copies int
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a title to the catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("copies") {
				in.TotalCopies = &copies
			}
			if strict && !library.IsValidBook(in) {
				return fmt.Errorf("book %q failed format checks (13-digit ISBN, year, copies)", in.ISBN)
			}
			book, err := a.lib.AddBook(in)
			if err != nil {
				return err
			}
			return a.render(book, func(w io.Writer) {
				fmt.Fprintf(w, "Added %q (ISBN %s, %d copies).\n", book.Title, book.ISBN, book.TotalCopies)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.ISBN, "isbn", "", "13-digit ISBN (required)")
	f.StringVar(&in.Title, "title", "", "title")
	f.StringVar(&in.Author, "author", "", "author")
	f.StringVar(&in.Genre, "genre", "", "genre")
	f.IntVar(&in.PublicationYear, "year", 0, "publication year (default: current year)")
	f.IntVar(&copies, "copies", 1, "total copies")
	f.BoolVar(&strict, "strict", false, "run ISBN, year and copy format checks first")
	return cmd
}

func newBookRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <isbn>",
		Short: "Remove a title with no active loans",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := a.lib.RemoveBook(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Removed book %s.\n", args[0])
			return nil
		},
	}
}

func newBookUpdateCmd(a *app) *cobra.Command {
	var (
		title, author, genre string
		year, copies         int
	)
	cmd := &cobra.Command{
		Use:   "update <isbn>",
		Short: "Change the given fields of a title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var upd library.BookUpdate
			f := cmd.Flags()
			if f.Changed("title") {
				upd.Title = &title
			}
			if f.Changed("author") {
				upd.Author = &author
			}
			if f.Changed("genre") {
				upd.Genre = &genre
			}
			if f.Changed("year") {
				upd.PublicationYear = &year
			}
			if f.Changed("copies") {
				upd.TotalCopies = &copies
			}
			book, err := a.lib.UpdateBook(args[0], upd)
			if err != nil {
				return err
			}
			return a.render(book, func(w io.Writer) { fmt.Fprintln(w, book.Info()) })
		},
	}
	f := cmd.Flags()
	f.StringVar(&title, "title", "", "new title")
	f.StringVar(&author, "author", "", "new author")
	f.StringVar(&genre, "genre", "", "new genre")
	f.IntVar(&year, "year", 0, "new publication year")
	f.IntVar(&copies, "copies", 0, "new total copies")
	return cmd
}

func newBookShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <isbn>",
		Short: "Show one title",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			book, ok := a.lib.FindBookByISBN(args[0])
			if !ok {
				return fmt.Errorf("book with ISBN %s not found", args[0])
			}
			return a.render(book, func(w io.Writer) { fmt.Fprintln(w, book.FormattedInfo(time.Now())) })
		},
	}
}

func newBookListCmd(a *app) *cobra.Command {
	var author, genre string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List titles, optionally by author or genre",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var books []library.Book
			switch {
			case author != "":
				books = a.lib.FindBooksByAuthor(author)
			case genre != "":
				books = a.lib.FindBooksByGenre(genre)
			default:
				books = a.lib.Books()
			}
			return a.render(books, func(w io.Writer) { printBooks(w, books) })
		},
	}
	cmd.Flags().StringVar(&author, "author", "", "only books by this author (case-insensitive)")
	cmd.Flags().StringVar(&genre, "genre", "", "only books in this genre (case-insensitive)")
	return cmd
}

func newFindCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "find <isbn>",
		Short: "Look a title up in the catalogue and the saved snapshot, first hit wins",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			found, ok := a.lib.FindBookFromSources(cmd.Context(), args[0], library.StoreSource("snapshot", a.store))
			if !ok {
				return fmt.Errorf("book with ISBN %s not found in any source", args[0])
			}
			return a.render(found, func(w io.Writer) {
				fmt.Fprintf(w, "Found in %s:\n%s\n", found.Source, found.Book.Info())
			})
		},
	}
}

// ------------------ Members ------------------

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage members"}
	cmd.AddCommand(newUserRegisterCmd(a), newUserRemoveCmd(a), newUserUpdateCmd(a), newUserShowCmd(a), newUserListCmd(a))
	return cmd
}

func newUserRegisterCmd(a *app) *cobra.Command {
	var (
		in     library.UserInput
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a member",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if strict && !library.IsValidEmail(in.Email) {
				return fmt.Errorf("email %q is not valid", in.Email)
			}
			user, err := a.lib.RegisterUser(in)
			if err != nil {
				return err
			}
			return a.render(user.Profile(), func(w io.Writer) {
				fmt.Fprintf(w, "Registered %s <%s>.\n", user.Name, user.Email)
			})
		},
	}
	cmd.Flags().StringVar(&in.Email, "email", "", "email (required, unique)")
	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().BoolVar(&strict, "strict", false, "check the email format first")
	return cmd
}

func newUserRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <email>",
		Short: "Remove a member holding no books",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := a.lib.RemoveUser(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Removed member %s.\n", args[0])
			return nil
		},
	}
}

func newUserUpdateCmd(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "update <email>",
		Short: "Change a member's details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var upd library.UserUpdate
			if cmd.Flags().Changed("name") {
				upd.Name = &name
			}
			user, err := a.lib.UpdateUser(args[0], upd)
			if err != nil {
				return err
			}
			return a.render(user.Profile(), func(w io.Writer) {
				fmt.Fprintf(w, "Updated %s <%s>.\n", user.Name, user.Email)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new display name")
	return cmd
}

func newUserShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <email>",
		Short: "Show a member and their borrow history",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			user, ok := a.lib.FindUserByEmail(args[0])
			if !ok {
				return fmt.Errorf("user with email %s not found", args[0])
			}
			overdue := user.HasOverdueBooks(a.cfg.OverdueDays, time.Now())
			return a.render(user.Profile(), func(w io.Writer) {
				fmt.Fprintln(w, user.FormattedHistory())
				if overdue {
					fmt.Fprintf(w, "\n! Holds books for more than %d days.\n", a.cfg.OverdueDays)
				}
			})
		},
	}
}

func newUserListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List members",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			users := a.lib.Users()
			return a.render(profiles(users), func(w io.Writer) { printUsers(w, users) })
		},
	}
}

func profiles(users []library.User) []library.Profile {
	out := make([]library.Profile, 0, len(users))
	for _, u := range users {
		out = append(out, u.Profile())
	}
	return out
}

// ------------------ Circulation ------------------

func newBorrowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "borrow <email> <isbn>",
		Short: "Lend a copy to a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			loan, err := a.lib.BorrowBook(args[0], args[1])
			if err != nil {
				return err
			}
			return a.render(loan, func(w io.Writer) {
				fmt.Fprintf(w, "%s borrowed %s on %s.\n", loan.UserEmail, loan.ISBN, library.FormatDate(loan.BorrowDate))
			})
		},
	}
}

func newReturnCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "return <email> <isbn>",
		Short: "Take a copy back from a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := a.lib.ReturnBook(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s returned %s.\n", args[0], args[1])
			return nil
		},
	}
}

func newLoansCmd(a *app) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "loans",
		Short: "List active loans",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			loans := a.lib.Loans()
			if email != "" {
				loans = a.lib.GetUserLoans(email)
			}
			return a.render(loans, func(w io.Writer) { printLoans(w, loans) })
		},
	}
	cmd.Flags().StringVar(&email, "user", "", "only loans of this member")
	return cmd
}

func newOverdueCmd(a *app) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "overdue",
		Short: "List loans older than a number of days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("days") {
				days = a.cfg.OverdueDays
			}
			loans := a.lib.GetOverdueLoans(days)
			return a.render(loans, func(w io.Writer) { printLoans(w, loans) })
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "threshold in days (default from LIBRARY_OVERDUE_DAYS)")
	return cmd
}

// ------------------ Reports ------------------

func newPopularCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "popular",
		Short: "Most borrowed titles",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			books := a.lib.GetPopularBooks(limit)
			return a.render(books, func(w io.Writer) { printBooks(w, books) })
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 5, "how many titles")
	return cmd
}

func newActiveCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "active",
		Short: "Members with the longest borrow history",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			users := a.lib.GetActiveUsers(limit)
			return a.render(profiles(users), func(w io.Writer) { printUsers(w, users) })
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 5, "how many members")
	return cmd
}

func newReportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Summary report",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			report := a.lib.GenerateReport()
			return a.render(map[string]any{
				"statistics":   a.lib.Statistics(),
				"popularBooks": a.lib.GetPopularBooks(5),
				"activeUsers":  profiles(a.lib.GetActiveUsers(5)),
			}, func(w io.Writer) { fmt.Fprint(w, report) })
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Library statistics and the metrics of this run",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			stats := a.lib.Statistics()
			if err := a.render(stats, func(w io.Writer) {
				fmt.Fprintf(w, "Library: %s\nBooks: %d (%d available)\nMembers: %d\nActive loans: %d\n\n",
					stats.Name, stats.TotalBooks, stats.AvailableBooks, stats.TotalUsers, stats.ActiveLoans)
			}); err != nil {
				return err
			}
			if isTerminal(a.out) {
				return metrics.WriteText(a.out, a.registry)
			}
			return nil
		},
	}
}

// ------------------ Data ------------------

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <seed.json>",
		Short: "Best-effort import of books and members from a seed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := storage.ReadSeedFile(args[0])
			if err != nil {
				return err
			}
			res := a.lib.InitializeFromData(cmd.Context(), seed.Books, seed.Users)
			return a.render(importReport(res), func(w io.Writer) { printImport(w, res) })
		},
	}
}

type importFailure struct {
	Kind  string `json:"kind"`
	Index int    `json:"index"`
	Key   string `json:"key"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

// importReport turns ImportResult failures into printable diagnostics.
func importReport(res library.ImportResult) map[string]any {
	failures := make([]importFailure, 0, len(res.Failures))
	for _, f := range res.Failures {
		item := importFailure{Kind: f.Kind, Index: f.Index, Key: f.Key, Error: f.Err.Error()}
		var de *library.Error
		if errors.As(f.Err, &de) {
			item.Code = de.Code
		}
		failures = append(failures, item)
	}
	return map[string]any{
		"addedBooks":  res.AddedBooks,
		"failedBooks": res.FailedBooks,
		"addedUsers":  res.AddedUsers,
		"failedUsers": res.FailedUsers,
		"failures":    failures,
	}
}

func printImport(w io.Writer, res library.ImportResult) {
	fmt.Fprintf(w, "Books: %d added, %d failed\n", res.AddedBooks, res.FailedBooks)
	fmt.Fprintf(w, "Members: %d added, %d failed\n", res.AddedUsers, res.FailedUsers)
	for _, f := range res.Failures {
		fmt.Fprintf(w, "  %s #%d (%s): %v\n", f.Kind, f.Index, f.Key, f.Err)
	}
}

func newClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the saved snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := a.store.Clear(cmd.Context())
			if err != nil {
				return err
			}
			a.dirty = false
			fmt.Fprintf(a.out, "Removed %d resource(s).\n", n)
			return nil
		},
	}
}

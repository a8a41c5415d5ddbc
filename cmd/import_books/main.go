package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"lending-library/config"
	"lending-library/library"
	"lending-library/logger"
	"lending-library/storage"
)

func main() {
	cfg := config.Load()
	seedPath := flag.String("seed", "seed.json", "seed file with books and users")
	clean := flag.Bool("clean", false, "delete the existing snapshot before importing")
	flag.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory holding the library snapshot")
	flag.StringVar(&cfg.StoreKind, "store", cfg.StoreKind, "snapshot store: json or sqlite")
	flag.Parse()

	if err := run(context.Background(), cfg, *seedPath, *clean, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, seedPath string, clean bool, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logger.Setup(os.Stderr, logger.ParseLevel(cfg.LogLevel))

	store, err := storage.Open(cfg.StoreKind, cfg.DataDir, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}

	if clean {
		fmt.Fprintln(out, "Cleaning up existing snapshot...")
		n, err := store.Clear(ctx)
		if err != nil {
			return fmt.Errorf("clear store: %w", err)
		}
		fmt.Fprintf(out, "Removed %d resource(s).\n", n)
	}

	lib, err := library.New(cfg.LibraryName,
		library.WithMaxBooksPerUser(cfg.MaxBooksPerUser),
		library.WithLogger(log),
	)
	if err != nil {
		return err
	}
	if err := lib.LoadFrom(ctx, store); err != nil {
		return fmt.Errorf("load library: %w", err)
	}

	seed, err := storage.ReadSeedFile(seedPath)
	if err != nil {
		return fmt.Errorf("read seed: %w", err)
	}
	fmt.Fprintf(out, "Importing %d books and %d users from %s...\n", len(seed.Books), len(seed.Users), seedPath)

	res := lib.InitializeFromData(ctx, seed.Books, seed.Users)
	for _, f := range res.Failures {
		fmt.Fprintf(out, "  skipped %s #%d (%s): %v\n", f.Kind, f.Index, f.Key, f.Err)
	}

	saved, err := lib.SaveWithTimeout(ctx, store, cfg.SaveTimeout)
	if err != nil {
		return fmt.Errorf("save library: %w", err)
	}

	fmt.Fprintf(out, "\nImport complete!\n")
	fmt.Fprintf(out, "Books: %d imported, %d errors\n", res.AddedBooks, res.FailedBooks)
	fmt.Fprintf(out, "Users: %d imported, %d errors\n", res.AddedUsers, res.FailedUsers)
	fmt.Fprintf(out, "Saved %d books, %d users, %d loans.\n", saved.BooksCount, saved.UsersCount, saved.LoansCount)

	if res.AddedBooks > 0 {
		fmt.Fprintln(out, "\nCatalogue:")
		fmt.Fprintf(out, "%-13s %-50s %-30s\n", "ISBN", "Title", "Author")
		fmt.Fprintln(out, strings.Repeat("-", 95))
		for _, book := range lib.Books() {
			fmt.Fprintf(out, "%-13s %-50s %-30s\n", book.ISBN, library.Truncate(book.Title, 50), library.Truncate(book.Author, 30))
		}
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"lending-library/config"
	"lending-library/library"
	"lending-library/logger"
	"lending-library/metrics"
	"lending-library/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds what every command needs: one Library loaded from the configured store.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	lib      *library.Library
	store    library.Store
	registry *prometheus.Registry
	metrics  *metrics.Collector
	out      io.Writer
	dirty    bool
}

// open builds the Library and restores it from the store.
func (a *app) open(ctx context.Context) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	a.log = logger.Setup(os.Stderr, logger.ParseLevel(a.cfg.LogLevel))

	store, err := storage.Open(a.cfg.StoreKind, a.cfg.DataDir, a.log)
	if err != nil {
		return err
	}
	a.store = store

	lib, err := library.New(a.cfg.LibraryName,
		library.WithMaxBooksPerUser(a.cfg.MaxBooksPerUser),
		library.WithLogger(a.log),
	)
	if err != nil {
		return err
	}
	a.lib = lib

	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.NewCollector(a.registry)
	a.metrics.Attach(lib)

	if err := lib.LoadFrom(ctx, store); err != nil {
		return fmt.Errorf("load library: %w", err)
	}
	lib.OnAny(func(library.Event) {
		a.dirty = true
	})
	return nil
}

// save writes the snapshot if anything changed since it was loaded or last saved.
func (a *app) save(ctx context.Context) error {
	if !a.dirty {
		return nil
	}
	start := time.Now()
	res, err := a.lib.SaveWithTimeout(ctx, a.store, a.cfg.SaveTimeout)
	a.metrics.RecordSave(time.Since(start), err)
	if err != nil {
		return fmt.Errorf("save library: %w", err)
	}
	a.dirty = false
	a.log.Info("library saved",
		slog.Int("books", res.BooksCount),
		slog.Int("users", res.UsersCount),
		slog.Int("loans", res.LoansCount),
	)
	return nil
}

func (a *app) close() {
	if c, ok := a.store.(io.Closer); ok {
		c.Close()
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{cfg: config.Load(), out: out}

	root := &cobra.Command{
		Use:           "lending-library",
		Short:         "Manage a small lending library: books, members and loans",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			defer a.close()
			// An interrupted shell still saves what it changed.
			return a.save(context.WithoutCancel(cmd.Context()))
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfg.DataDir, "data-dir", a.cfg.DataDir, "directory holding the library snapshot")
	flags.StringVar(&a.cfg.StoreKind, "store", a.cfg.StoreKind, "snapshot store: json or sqlite")
	flags.StringVar(&a.cfg.LibraryName, "name", a.cfg.LibraryName, "library name")
	flags.IntVar(&a.cfg.MaxBooksPerUser, "max-books", a.cfg.MaxBooksPerUser, "books a member may hold at once")
	flags.DurationVar(&a.cfg.SaveTimeout, "save-timeout", a.cfg.SaveTimeout, "give up waiting for a save after this long")
	flags.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "debug, info, warn or error")

	root.AddCommand(
		newBookCmd(a),
		newUserCmd(a),
		newBorrowCmd(a),
		newReturnCmd(a),
		newLoansCmd(a),
		newOverdueCmd(a),
		newPopularCmd(a),
		newActiveCmd(a),
		newFindCmd(a),
		newReportCmd(a),
		newStatsCmd(a),
		newImportCmd(a),
		newClearCmd(a),
		newShellCmd(a),
	)
	return root
}

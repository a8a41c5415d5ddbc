package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/blake2b"

	"lending-library/library"
)

// SQLiteStore keeps each resource as one JSON payload row in a SQLite database. A resource
// whose content digest matches the last saved one is not rewritten.
type SQLiteStore struct {
	db  *sql.DB
	log *slog.Logger

	putStmt    *sql.Stmt
	getStmt    *sql.Stmt
	digestStmt *sql.Stmt
}

// NewSQLiteStore opens (or creates) the database at dbPath, applies schema migrations, and
// prepares common statements.
func NewSQLiteStore(dbPath string, log *slog.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = slog.Default()
	}
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	store := &SQLiteStore{db: db, log: log}
	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases prepared statements and closes the DB.
func (s *SQLiteStore) Close() error {
	for _, stmt := range []*sql.Stmt{s.putStmt, s.getStmt, s.digestStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	// WAL improves write concurrency.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS resources (
            name TEXT PRIMARY KEY,
            payload BLOB NOT NULL,
            saved_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
		`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt, schemaVersion); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (s *SQLiteStore) prepareStatements() error {
	var err error
	if s.putStmt, err = s.db.Prepare(`INSERT INTO resources(name,payload,saved_at) VALUES(?,?,CURRENT_TIMESTAMP)
        ON CONFLICT(name) DO UPDATE SET payload=excluded.payload, saved_at=excluded.saved_at`); err != nil {
		return err
	}
	if s.getStmt, err = s.db.Prepare(`SELECT payload FROM resources WHERE name=?`); err != nil {
		return err
	}
	if s.digestStmt, err = s.db.Prepare(`SELECT value FROM meta WHERE key=?`); err != nil {
		return err
	}
	return nil
}

func digestKey(resource string) string { return "digest:" + resource }

func digestOf(payload []byte) string {
	sum := blake2b.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Save writes each resource in its own transaction, in books, users, loans order.
// Unchanged resources are skipped.
func (s *SQLiteStore) Save(ctx context.Context, snap library.Snapshot) (library.SaveResult, error) {
	payloads, err := encodeAll(snap)
	if err != nil {
		s.log.Error("save library failed", slog.String("error", err.Error()))
		return library.SaveResult{}, err
	}
	for _, name := range []string{ResourceBooks, ResourceUsers, ResourceLoans} {
		if err := s.put(ctx, name, payloads[name]); err != nil {
			s.log.Error("save library failed", slog.String("resource", name), slog.String("error", err.Error()))
			return library.SaveResult{}, err
		}
	}
	return resultOf(snap), nil
}

func (s *SQLiteStore) put(ctx context.Context, name string, payload []byte) error {
	digest := digestOf(payload)
	var stored string
	err := s.digestStmt.QueryRowContext(ctx, digestKey(name)).Scan(&stored)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read digest %s: %w", name, err)
	}
	if stored == digest && s.has(ctx, name) {
		s.log.Debug("resource unchanged", slog.String("resource", name))
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.StmtContext(ctx, s.putStmt).ExecContext(ctx, name, payload); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO meta(key,value) VALUES(?,?)
        ON CONFLICT(key) DO UPDATE SET value=excluded.value`, digestKey(name), digest); err != nil {
		return fmt.Errorf("write digest %s: %w", name, err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) has(ctx context.Context, name string) bool {
	var payload []byte
	return s.getStmt.QueryRowContext(ctx, name).Scan(&payload) == nil
}

func (s *SQLiteStore) get(ctx context.Context, name string) []byte {
	var payload []byte
	err := s.getStmt.QueryRowContext(ctx, name).Scan(&payload)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.log.Warn("read resource failed", slog.String("resource", name), slog.String("error", err.Error()))
		}
		return nil
	}
	return bytes.Clone(payload)
}

// Load reads every resource. Missing or corrupt rows load as empty.
func (s *SQLiteStore) Load(ctx context.Context) (library.Snapshot, error) {
	snap := library.Snapshot{
		Books: decode[library.Book](s.log, ResourceBooks, s.get(ctx, ResourceBooks)),
		Users: decode[library.User](s.log, ResourceUsers, s.get(ctx, ResourceUsers)),
		Loans: decode[library.Loan](s.log, ResourceLoans, s.get(ctx, ResourceLoans)),
	}
	return snap, ctx.Err()
}

// Clear deletes every stored resource and its digest.
func (s *SQLiteStore) Clear(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM resources`)
	if err != nil {
		return 0, fmt.Errorf("clear resources: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM meta WHERE key LIKE 'digest:%'`); err != nil {
		return 0, fmt.Errorf("clear digests: %w", err)
	}
	return int(n), tx.Commit()
}

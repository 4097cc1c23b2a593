// Package store persists compilation runs in SQLite so the CLI history
// command and the HTTP server can list past results.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // Registers the sqlite3 driver.

	"github.com/victortavares4/dsl-investments/pkg/portlang"
)

// ErrNotFound is returned when a run ID is unknown.
var ErrNotFound = errors.New("run not found")

const (
	dirPerm      = 0o755
	defaultLimit = 50
	memoryPath   = ":memory:"
)

// Run is one recorded compilation.
type Run struct {
	ID          string                `json:"id"`
	CreatedAt   time.Time             `json:"created_at"`
	Document    string                `json:"document"`
	Portfolio   string                `json:"portfolio,omitempty"`
	Outcome     string                `json:"outcome"`
	Errors      int                   `json:"errors"`
	Warnings    int                   `json:"warnings"`
	Bytes       int                   `json:"bytes"`
	SourceHash  string                `json:"source_hash"`
	Duration    time.Duration         `json:"duration_ns"`
	Diagnostics []portlang.Diagnostic `json:"diagnostics,omitempty"`
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Document string
	Outcome  string
	Since    time.Time
	Limit    int
	Offset   int
}

// Store records and queries runs.
type Store interface {
	Record(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	List(ctx context.Context, filter Filter) ([]*Run, error)
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// SQLite implements Store on a SQLite database file.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a SQLite store.
type Option func(*SQLite)

// WithClock replaces time.Now for CreatedAt defaults and Prune cutoffs.
func WithClock(now func() time.Time) Option {
	return func(s *SQLite) {
		s.now = now
	}
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string, opts ...Option) (*SQLite, error) {
	dsn := memoryPath

	if path != memoryPath {
		err := os.MkdirAll(filepath.Dir(path), dirPerm)
		if err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}

		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if path == memoryPath {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	s := &SQLite{db: db, now: time.Now}

	for _, opt := range opts {
		opt(s)
	}

	err = s.initSchema()
	if err != nil {
		return nil, errors.Join(fmt.Errorf("initialize schema: %w", err), db.Close())
	}

	return s, nil
}

func (s *SQLite) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		document TEXT NOT NULL,
		portfolio TEXT,
		outcome TEXT NOT NULL,
		errors INTEGER NOT NULL,
		warnings INTEGER NOT NULL,
		bytes INTEGER NOT NULL,
		source_hash TEXT NOT NULL,
		duration_ns INTEGER NOT NULL,
		diagnostics TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_runs_document ON runs(document);
	CREATE INDEX IF NOT EXISTS idx_runs_outcome ON runs(outcome);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("exec schema: %w", err)
	}

	return nil
}

// Record inserts run, filling ID and CreatedAt when empty.
func (s *SQLite) Record(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now()
	}

	// Stored as text; UTC keeps lexical and chronological order equal.
	run.CreatedAt = run.CreatedAt.UTC()

	var diagJSON []byte

	if len(run.Diagnostics) > 0 {
		var err error

		diagJSON, err = json.Marshal(run.Diagnostics)
		if err != nil {
			return fmt.Errorf("encode diagnostics: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, document, portfolio, outcome, errors, warnings,
			bytes, source_hash, duration_ns, diagnostics)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.CreatedAt, run.Document, run.Portfolio, run.Outcome, run.Errors, run.Warnings,
		run.Bytes, run.SourceHash, int64(run.Duration), string(diagJSON))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	return nil
}

const selectColumns = `SELECT id, created_at, document, portfolio, outcome, errors, warnings,
	bytes, source_hash, duration_ns, diagnostics FROM runs`

// Get returns the run with the given ID or ErrNotFound.
func (s *SQLite) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err != nil {
		return nil, err
	}

	return run, nil
}

// List returns runs newest first.
func (s *SQLite) List(ctx context.Context, filter Filter) ([]*Run, error) {
	var (
		clauses []string
		args    []any
	)

	if filter.Document != "" {
		clauses = append(clauses, "document = ?")
		args = append(args, filter.Document)
	}

	if filter.Outcome != "" {
		clauses = append(clauses, "outcome = ?")
		args = append(args, filter.Outcome)
	}

	if !filter.Since.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, filter.Since.UTC())
	}

	query := selectColumns
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	query += " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, limit, max(filter.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run

	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, scanErr
		}

		runs = append(runs, run)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

// Prune deletes runs older than the given age and returns how many went.
func (s *SQLite) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().UTC().Add(-olderThan)

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}

	return n, nil
}

// Ping checks the database connection.
func (s *SQLite) Ping(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("ping store: %w", err)
	}

	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	err := s.db.Close()
	if err != nil {
		return fmt.Errorf("close store: %w", err)
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		run       Run
		portfolio sql.NullString
		diagJSON  sql.NullString
		duration  int64
	)

	err := sc.Scan(&run.ID, &run.CreatedAt, &run.Document, &portfolio, &run.Outcome,
		&run.Errors, &run.Warnings, &run.Bytes, &run.SourceHash, &duration, &diagJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("scan run: %w", err)
	}

	run.Portfolio = portfolio.String
	run.Duration = time.Duration(duration)

	if diagJSON.Valid && diagJSON.String != "" {
		err = json.Unmarshal([]byte(diagJSON.String), &run.Diagnostics)
		if err != nil {
			return nil, fmt.Errorf("decode diagnostics: %w", err)
		}
	}

	return &run, nil
}

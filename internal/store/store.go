package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migration upgrades a history database by one user_version step.
type migration struct {
	version int
	name    string
	stmts   []string
}

// migrations run in order on top of schema.sql. Append only; never edit a
// released step.
var migrations = []migration{
	{
		version: 1,
		name:    "history by branch",
		stmts: []string{
			`CREATE INDEX IF NOT EXISTS idx_decisions_branch ON decisions(branch, seq)`,
		},
	},
	{
		version: 2,
		name:    "append-only decisions",
		stmts: []string{
			`CREATE TRIGGER IF NOT EXISTS decisions_no_update BEFORE UPDATE ON decisions
			BEGIN SELECT RAISE(ABORT, 'decision history is append-only'); END`,
			`CREATE TRIGGER IF NOT EXISTS decisions_no_delete BEFORE DELETE ON decisions
			BEGIN SELECT RAISE(ABORT, 'decision history is append-only'); END`,
			`CREATE TRIGGER IF NOT EXISTS tactic_outcomes_no_update BEFORE UPDATE ON tactic_outcomes
			BEGIN SELECT RAISE(ABORT, 'decision history is append-only'); END`,
		},
	},
}

// schemaVersion is the user_version of a fully migrated history database.
func schemaVersion() int {
	return migrations[len(migrations)-1].version
}

// Store is the decision history: one row per run plus the tactic outcomes
// that led to it.
type Store struct {
	db *sql.DB
}

// Open opens the history database at path, creating and migrating it as
// needed. ":memory:" gives a private in-memory history. Reopening an
// up-to-date database changes nothing.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}

	// One writer per run; a single connection also keeps an in-memory
	// history alive until Close.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("open history %s: create tables: %w", path, err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

// migrate applies every step above the database's user_version, each in its
// own transaction together with its version bump. A history written by a
// newer bumpflow is refused rather than downgraded.
func migrate(db *sql.DB) error {
	var current int
	if err := db.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if current > schemaVersion() {
		return fmt.Errorf("history schema v%d is newer than supported v%d", current, schemaVersion())
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migrate to v%d (%s): %w", m.version, m.name, err)
		}
		for _, stmt := range m.stmts {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("migrate to v%d (%s): %w", m.version, m.name, err)
			}
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate to v%d (%s): %w", m.version, m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migrate to v%d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

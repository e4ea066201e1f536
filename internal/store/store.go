// Package store owns the canonical on-disk database: an embedded relational
// engine (SQLite via modernc.org/sqlite, no cgo) with an FTS5 virtual table
// alongside the code_chunks rows it mirrors, plus blob-serialized vector
// columns for the brute-force similarity search in internal/vectorutil.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/vaultlabs/vlt/internal/obslog"
	"github.com/vaultlabs/vlt/internal/vaulterrors"
)

// Store wraps the database connection pool. All contract operations are
// transactional: commit on success, rollback and surface a wrapped
// vaulterrors.ErrStore otherwise.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at path, applies WAL
// and foreign-key pragmas, and runs the embedded migration set.
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("open %s: %w", path, err))
	}
	if err := db.Ping(); err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("ping %s: %w", path, err))
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// DB returns the underlying connection pool for packages that need raw
// access (e.g. the vector retriever's brute-force scan).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close releases the underlying connection pool, checkpointing the WAL
// first so the database file is fully consistent on disk.
func (s *Store) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// migrate creates the base schema, then applies any numbered migration not
// yet recorded in schema_migrations. The base schema is itself migration 0;
// this mirrors the original Python implementation's migrations module,
// adapted into a package function run at Open time rather than a separate
// command, since the whole module is one embedded binary.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("apply base schema: %w", err))
	}
	for _, m := range migrations {
		var applied int
		err := s.db.QueryRow(`SELECT COUNT(1) FROM schema_migrations WHERE version = ?`, m.version).Scan(&applied)
		if err != nil {
			return vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("check migration %d: %w", m.version, err))
		}
		if applied > 0 {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			return vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("begin migration %d: %w", m.version, err))
		}
		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("apply migration %d: %w", m.version, err))
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, m.version); err != nil {
			_ = tx.Rollback()
			return vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("record migration %d: %w", m.version, err))
		}
		if err := tx.Commit(); err != nil {
			return vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("commit migration %d: %w", m.version, err))
		}
		obslog.Get().Debug().Int("version", m.version).Msg("applied store migration")
	}
	return nil
}

type migration struct {
	version int
	sql     string
}

// migrations holds any schema change layered on top of the base schema.
// Empty today; present so new columns/tables can be added without dropping
// existing databases.
var migrations []migration

// withTx runs fn inside a transaction, committing on success and rolling
// back (returning the wrapped cause) otherwise.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("begin transaction: %w", err))
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

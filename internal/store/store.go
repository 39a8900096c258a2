// Package store handles SQLite persistence.
package store

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrNotFound is returned when a session or run does not exist.
var ErrNotFound = errors.New("not found")

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps SQLite access for recorded sessions and analysis runs.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY,
			user TEXT NOT NULL,
			song TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS presses (
			session_id INTEGER NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			pitch INTEGER NOT NULL,
			start REAL NOT NULL,
			length REAL NOT NULL,
			PRIMARY KEY (session_id, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS poses (
			session_id INTEGER NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			side TEXT NOT NULL,
			seq INTEGER NOT NULL,
			time REAL NOT NULL,
			px REAL NOT NULL,
			py REAL NOT NULL,
			pz REAL NOT NULL,
			qx REAL NOT NULL,
			qy REAL NOT NULL,
			qz REAL NOT NULL,
			qw REAL NOT NULL,
			PRIMARY KEY (session_id, side, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS analysis_runs (
			run_id TEXT PRIMARY KEY,
			session_id INTEGER NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			song TEXT NOT NULL,
			indices TEXT NOT NULL,
			tolerance REAL NOT NULL,
			time_gap REAL NOT NULL,
			focus_away REAL NOT NULL,
			marker_pitch INTEGER NOT NULL,
			low_key INTEGER NOT NULL,
			high_key INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			attempt_count INTEGER NOT NULL,
			eye_data_count INTEGER NOT NULL,
			ste REAL, ete REAL,
			msc REAL, mec REAL,
			missed_start REAL, missed_end REAL,
			esc REAL, eec REAL,
			em REAL, fs REAL, prft REAL, mfd REAL
		);`,
		`CREATE TABLE IF NOT EXISTS run_attempts (
			run_id TEXT NOT NULL REFERENCES analysis_runs(run_id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			attempt_index INTEGER NOT NULL,
			roll_start REAL NOT NULL,
			roll_end REAL,
			soft_start REAL,
			predicted_start REAL,
			predicted_end REAL,
			offset_samples INTEGER NOT NULL,
			start_error REAL NOT NULL,
			end_error REAL NOT NULL,
			matched_start INTEGER NOT NULL,
			matched_end INTEGER NOT NULL,
			missed_start INTEGER NOT NULL,
			missed_end INTEGER NOT NULL,
			extra_start INTEGER NOT NULL,
			extra_end INTEGER NOT NULL,
			left_status TEXT NOT NULL,
			left_reason TEXT NOT NULL,
			right_status TEXT NOT NULL,
			right_reason TEXT NOT NULL,
			PRIMARY KEY (run_id, position)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_presses_pitch ON presses(session_id, pitch);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_session ON analysis_runs(session_id, created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func closeRows(rows *sql.Rows) {
	if cerr := rows.Close(); cerr != nil {
		// Best-effort rows close.
		_ = cerr
	}
}

func closeStmt(stmt *sql.Stmt) {
	if cerr := stmt.Close(); cerr != nil {
		// Best-effort statement close.
		_ = cerr
	}
}

func rollback(tx *sql.Tx) {
	if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
		// Best-effort rollback.
		_ = rerr
	}
}

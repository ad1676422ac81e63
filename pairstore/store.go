// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: store.go - SQLite archive of collision pairs
//
// Purpose:
//   - Persists every pair handed to the result path, tagged with the process
//     session and the job it was found in, so runs can be audited later.
//
// Notes:
//   - One session row per Open, keyed by a random UUID.
//   - Writes go through one prepared statement; callers are the consumer
//     goroutines, never the sorter loop.
// ─────────────────────────────────────────────────────────────────────────────

package pairstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"ssplus/collide"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	started_at INTEGER NOT NULL,
	label      TEXT NOT NULL
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS pairs (
	session_id TEXT    NOT NULL,
	job        INTEGER NOT NULL,
	trial_a    INTEGER NOT NULL,
	trial_b    INTEGER NOT NULL,
	found_at   INTEGER NOT NULL,
	PRIMARY KEY (session_id, job, trial_a, trial_b)
) WITHOUT ROWID;
`

// Record is one archived pair.
type Record struct {
	Session uuid.UUID
	Job     uint64
	Pair    collide.Pair
	FoundAt time.Time
}

// Store archives pairs for one session.
type Store struct {
	db      *sql.DB
	insert  *sql.Stmt
	session uuid.UUID
}

// Open opens (creating if needed) the archive at path and starts a session
// labelled label.
func Open(path, label string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("pairstore: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := configure(db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("pairstore: schema: %w", err)
	}

	s := &Store{db: db, session: uuid.New()}
	if _, err := db.Exec(`INSERT INTO sessions (id, started_at, label) VALUES (?, ?, ?)`,
		s.session.String(), time.Now().UnixNano(), label); err != nil {
		db.Close()
		return nil, fmt.Errorf("pairstore: start session: %w", err)
	}

	s.insert, err = db.Prepare(`INSERT OR IGNORE INTO pairs (session_id, job, trial_a, trial_b, found_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("pairstore: prepare insert: %w", err)
	}
	return s, nil
}

func configure(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("pairstore: %s: %w", p, err)
		}
	}
	return nil
}

// Session returns the id of the session this store writes to.
func (s *Store) Session() uuid.UUID { return s.session }

// Record archives p as found in job. Re-recording the same pair is a no-op.
func (s *Store) Record(job uint64, p collide.Pair) error {
	if _, err := s.insert.Exec(s.session.String(), int64(job), int64(p.A), int64(p.B), time.Now().UnixNano()); err != nil {
		return fmt.Errorf("pairstore: record: %w", err)
	}
	return nil
}

// Count returns the number of pairs archived for session.
func (s *Store) Count(session uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM pairs WHERE session_id = ?`, session.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("pairstore: count: %w", err)
	}
	return n, nil
}

// List returns the pairs archived for session in job, oldest first.
func (s *Store) List(session uuid.UUID, job uint64) ([]Record, error) {
	rows, err := s.db.Query(`
		SELECT job, trial_a, trial_b, found_at
		FROM pairs
		WHERE session_id = ? AND job = ?
		ORDER BY found_at, trial_a`, session.String(), int64(job))
	if err != nil {
		return nil, fmt.Errorf("pairstore: list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var j, a, b, at int64
		if err := rows.Scan(&j, &a, &b, &at); err != nil {
			return nil, fmt.Errorf("pairstore: scan: %w", err)
		}
		out = append(out, Record{
			Session: session,
			Job:     uint64(j),
			Pair:    collide.Pair{A: uint32(a), B: uint32(b)},
			FoundAt: time.Unix(0, at),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pairstore: list: %w", err)
	}
	return out, nil
}

// Close releases the statement and the database.
func (s *Store) Close() error {
	return errors.Join(s.insert.Close(), s.db.Close())
}

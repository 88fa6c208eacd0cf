// Package store persists baseline sessions, screening sessions, and
// screening results in a local SQLite database.
//
// All analysis payloads are stored as JSON columns: the feature schema is
// allowed to gain columns over time, and JSON keeps old rows readable
// without migrations. Numeric values are sanitized (no NaN/Inf) before
// they reach this layer.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"pdscreen/internal/features"
	"pdscreen/internal/report"
	"pdscreen/internal/stream"
)

// Schema for the screening store.
const schema = `
CREATE TABLE IF NOT EXISTS baseline_sessions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at  INTEGER NOT NULL,
    features    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at      INTEGER NOT NULL,
    keystrokes      INTEGER NOT NULL,
    backspaces      INTEGER NOT NULL,
    summary         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS screenings (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at  INTEGER NOT NULL,
    band        TEXT NOT NULL,
    score       REAL NOT NULL,
    record      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_baseline_created ON baseline_sessions(created_at);
CREATE INDEX IF NOT EXISTS idx_screenings_created ON screenings(created_at);
`

// Store is the SQLite screening store. Safe for concurrent use; SQLite
// serializes writers and WAL mode keeps readers unblocked.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// AppendBaseline stores one baseline session's feature vector and returns
// its row ID. The vector is sanitized before serialization.
func (s *Store) AppendBaseline(v features.Vector) (int64, error) {
	data, err := json.Marshal(v.Sanitized())
	if err != nil {
		return 0, fmt.Errorf("marshal baseline features: %w", err)
	}

	result, err := s.db.Exec(
		`INSERT INTO baseline_sessions (created_at, features) VALUES (?, ?)`,
		time.Now().Unix(), string(data),
	)
	if err != nil {
		return 0, fmt.Errorf("insert baseline session: %w", err)
	}
	return result.LastInsertId()
}

// LoadBaseline returns all stored baseline feature vectors in insertion
// order. An empty corpus is not an error here; the baseline layer decides
// whether it can fit.
func (s *Store) LoadBaseline() ([]features.Vector, error) {
	rows, err := s.db.Query(
		`SELECT features FROM baseline_sessions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query baseline sessions: %w", err)
	}
	defer rows.Close()

	var corpus []features.Vector
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan baseline session: %w", err)
		}
		var v features.Vector
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return nil, fmt.Errorf("unmarshal baseline features: %w", err)
		}
		corpus = append(corpus, v)
	}
	return corpus, rows.Err()
}

// BaselineCount returns the number of stored baseline sessions.
func (s *Store) BaselineCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM baseline_sessions`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count baseline sessions: %w", err)
	}
	return n, nil
}

// ClearBaseline removes all baseline sessions, for rebuilding a baseline
// from scratch.
func (s *Store) ClearBaseline() error {
	if _, err := s.db.Exec(`DELETE FROM baseline_sessions`); err != nil {
		return fmt.Errorf("clear baseline sessions: %w", err)
	}
	return nil
}

// SaveSession persists a finished session summary. Called for every
// session, scored or not, so raw session data survives scoring failures.
func (s *Store) SaveSession(sum *stream.Summary) (int64, error) {
	data, err := json.Marshal(sum)
	if err != nil {
		return 0, fmt.Errorf("marshal session summary: %w", err)
	}

	result, err := s.db.Exec(
		`INSERT INTO sessions (created_at, keystrokes, backspaces, summary) VALUES (?, ?, ?, ?)`,
		time.Now().Unix(), sum.Session.TotalKeystrokes, sum.Session.Backspaces, string(data),
	)
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	return result.LastInsertId()
}

// SessionCount returns the number of stored session summaries.
func (s *Store) SessionCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

// SaveScreening persists one screening record.
func (s *Store) SaveScreening(rec *report.Record) (int64, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("marshal screening record: %w", err)
	}

	result, err := s.db.Exec(
		`INSERT INTO screenings (created_at, band, score, record) VALUES (?, ?, ?, ?)`,
		time.Now().Unix(), string(rec.Band), rec.Score, string(data),
	)
	if err != nil {
		return 0, fmt.Errorf("insert screening: %w", err)
	}
	return result.LastInsertId()
}

// Screening is one stored screening with its metadata.
type Screening struct {
	ID        int64
	CreatedAt time.Time
	Record    report.Record
}

// RecentScreenings returns up to limit screenings, newest first.
func (s *Store) RecentScreenings(limit int) ([]Screening, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, created_at, record FROM screenings ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query screenings: %w", err)
	}
	defer rows.Close()

	var out []Screening
	for rows.Next() {
		var (
			sc   Screening
			unix int64
			data string
		)
		if err := rows.Scan(&sc.ID, &unix, &data); err != nil {
			return nil, fmt.Errorf("scan screening: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &sc.Record); err != nil {
			return nil, fmt.Errorf("unmarshal screening record: %w", err)
		}
		sc.CreatedAt = time.Unix(unix, 0)
		out = append(out, sc)
	}
	return out, rows.Err()
}

// LatestScreening returns the most recent screening, or nil when none
// exists.
func (s *Store) LatestScreening() (*Screening, error) {
	recent, err := s.RecentScreenings(1)
	if err != nil {
		return nil, err
	}
	if len(recent) == 0 {
		return nil, nil
	}
	return &recent[0], nil
}

// ErrNotFound reports a missing row for lookups that require one.
var ErrNotFound = errors.New("not found")

// GetScreening returns one screening by ID.
func (s *Store) GetScreening(id int64) (*Screening, error) {
	var (
		sc   Screening
		unix int64
		data string
	)
	err := s.db.QueryRow(
		`SELECT id, created_at, record FROM screenings WHERE id = ?`, id,
	).Scan(&sc.ID, &unix, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get screening: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &sc.Record); err != nil {
		return nil, fmt.Errorf("unmarshal screening record: %w", err)
	}
	sc.CreatedAt = time.Unix(unix, 0)
	return &sc, nil
}

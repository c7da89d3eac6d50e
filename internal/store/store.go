// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists client-side state: one-time flags, a history of
// processing sessions, and an archive of classified errors.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/rapid-minutes/internal/errclass"
	"github.com/pdiddy/rapid-minutes/pkg/types"
)

const dbFile = "state.db"

// WelcomeFlag records that the first-run guide has been shown.
const WelcomeFlag = "rapid_minutes.welcome_shown"

// Store manages the client state SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates dir/state.db and its schema.
func NewStore(cfg types.StoreConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS flags (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			key TEXT PRIMARY KEY,
			file_id TEXT,
			file_name TEXT NOT NULL,
			status TEXT NOT NULL,
			progress INTEGER NOT NULL DEFAULT 0,
			message TEXT,
			started_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)`,
		`CREATE TABLE IF NOT EXISTS error_reports (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			context TEXT NOT NULL,
			http_status INTEGER,
			message TEXT NOT NULL,
			suggestions TEXT,
			detail TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_error_reports_kind ON error_reports(kind)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Flag reports whether key has been set.
func (s *Store) Flag(ctx context.Context, key string) (bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM flags WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading flag %s: %w", key, err)
	}
	return value == "true", nil
}

// SetFlag stores key as set or cleared.
func (s *Store) SetFlag(ctx context.Context, key string, on bool) error {
	value := "false"
	if on {
		value = "true"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO flags (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("writing flag %s: %w", key, err)
	}
	return nil
}

// RecordSession upserts a session history entry by Key.
func (s *Store) RecordSession(ctx context.Context, rec types.SessionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (key, file_id, file_name, status, progress, message, started_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			file_id=excluded.file_id, file_name=excluded.file_name, status=excluded.status,
			progress=excluded.progress, message=excluded.message, updated_at=excluded.updated_at`,
		rec.Key, rec.FileID, rec.FileName, string(rec.Status), rec.Progress, rec.Message,
		rec.StartedAt.UTC().Format(time.RFC3339Nano), rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording session %s: %w", rec.Key, err)
	}
	return nil
}

// Sessions returns up to limit history entries, newest first. A limit of
// zero or less returns all of them.
func (s *Store) Sessions(ctx context.Context, limit int) ([]types.SessionRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, COALESCE(file_id, ''), file_name, status, progress, COALESCE(message, ''), started_at, updated_at
		 FROM sessions ORDER BY started_at DESC, key LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var out []types.SessionRecord
	for rows.Next() {
		var (
			rec              types.SessionRecord
			status           string
			started, updated string
		)
		if err := rows.Scan(&rec.Key, &rec.FileID, &rec.FileName, &status, &rec.Progress, &rec.Message, &started, &updated); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		rec.Status = types.SessionStatus(status)
		rec.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// AppendReport archives a classified error.
func (s *Store) AppendReport(ctx context.Context, r errclass.Report) error {
	suggestions, _ := json.Marshal(r.Suggestions)
	var status any
	if r.HTTPStatus != 0 {
		status = r.HTTPStatus
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO error_reports (kind, context, http_status, message, suggestions, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(r.Kind), string(r.Context), status, r.Message, string(suggestions), r.Detail,
		r.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("archiving error report: %w", err)
	}
	return nil
}

// ReportFilter narrows Reports.
type ReportFilter struct {
	Kind  errclass.Kind
	Limit int
}

// Reports returns archived errors, newest first.
func (s *Store) Reports(ctx context.Context, f ReportFilter) ([]errclass.Report, error) {
	query := `SELECT kind, context, COALESCE(http_status, 0), message, COALESCE(suggestions, ''), COALESCE(detail, ''), created_at
		FROM error_reports`
	var args []any
	if f.Kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(f.Kind))
	}
	query += ` ORDER BY rowid DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying error reports: %w", err)
	}
	defer rows.Close()

	var out []errclass.Report
	for rows.Next() {
		var (
			r                    errclass.Report
			kind, rctx           string
			suggestions, created string
		)
		if err := rows.Scan(&kind, &rctx, &r.HTTPStatus, &r.Message, &suggestions, &r.Detail, &created); err != nil {
			return nil, fmt.Errorf("scanning error report: %w", err)
		}
		r.Kind = errclass.Kind(kind)
		r.Context = errclass.Context(rctx)
		if suggestions != "" && suggestions != "null" {
			_ = json.Unmarshal([]byte(suggestions), &r.Suggestions)
		}
		r.Timestamp, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, r)
	}
	return out, rows.Err()
}

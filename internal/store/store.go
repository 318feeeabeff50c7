// Package store persists triaged messages to SQLite for the export
// and analytics collaborators.
//
// The archive is a downstream sink: the similarity corpus the engine
// scans lives in memory and is rebuilt per run, while every processed
// output record lands here for later export, stats, and dashboards.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hurttlocker/triage/internal/triage"
)

// DefaultDBPath is the default archive location.
const DefaultDBPath = "~/.triage/triage.db"

// Config holds configuration for NewStore.
type Config struct {
	DBPath string
}

// Store is the SQLite-backed archive of triaged messages.
type Store struct {
	db     *sql.DB
	dbPath string
}

// ArchivedMessage is one persisted output record.
type ArchivedMessage struct {
	ID            int64
	MessageID     string
	Text          string
	User          string
	Channel       string
	Timestamp     time.Time
	ThreadTS      string
	Reactions     []string
	Category      string
	Confidence    float64
	PriorityScore float64
	Color         string
	Similar       []triage.SimilarMatch
	ArchivedAt    time.Time
}

// ListOpts controls filtering and pagination for List.
type ListOpts struct {
	Limit    int
	Offset   int
	Category string
	Channel  string
}

// Stats aggregates the archive for the stats command and the MCP
// stats tool.
type Stats struct {
	TotalMessages int64            `json:"total_messages"`
	Categories    map[string]int64 `json:"categories"`
	HighPriority  int64            `json:"high_priority"`
	MedPriority   int64            `json:"medium_priority"`
	LowPriority   int64            `json:"low_priority"`
	AvgPriority   float64          `json:"avg_priority"`
}

// NewStore opens (creating if needed) the archive database. Pass
// ":memory:" for tests.
func NewStore(cfg Config) (*Store, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = expandPath(DefaultDBPath)
	}

	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, dbPath: cfg.DBPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			message_id     TEXT NOT NULL,
			text           TEXT NOT NULL,
			user           TEXT NOT NULL,
			channel        TEXT NOT NULL,
			ts             TEXT NOT NULL,
			thread_ts      TEXT NOT NULL DEFAULT '',
			reactions      TEXT NOT NULL DEFAULT '[]',
			category       TEXT NOT NULL,
			confidence     REAL NOT NULL,
			priority_score REAL NOT NULL,
			color          TEXT NOT NULL DEFAULT '',
			similar        TEXT NOT NULL DEFAULT '[]',
			archived_at    TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_message_id ON messages(message_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_category ON messages(category)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_priority ON messages(priority_score)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}
	return nil
}

// Archive appends one triaged message to the archive. Rows are never
// updated; reprocessing the same message id appends a new row.
func (s *Store) Archive(ctx context.Context, m *triage.Message) (int64, error) {
	reactions, err := json.Marshal(m.Reactions)
	if err != nil {
		return 0, fmt.Errorf("marshaling reactions: %w", err)
	}
	similar, err := json.Marshal(m.SimilarTo)
	if err != nil {
		return 0, fmt.Errorf("marshaling similar matches: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages
			(message_id, text, user, channel, ts, thread_ts, reactions,
			 category, confidence, priority_score, color, similar, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Text, m.User, m.Channel,
		m.Timestamp.UTC().Format(time.RFC3339Nano), m.ThreadTS, string(reactions),
		m.Category, m.Confidence, m.PriorityScore, m.Color, string(similar),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting message %s: %w", m.ID, err)
	}
	return res.LastInsertId()
}

// ArchiveBatch appends a slice of messages, stopping at the first
// failure.
func (s *Store) ArchiveBatch(ctx context.Context, msgs []*triage.Message) (int64, error) {
	var n int64
	for _, m := range msgs {
		if _, err := s.Archive(ctx, m); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// List returns archived messages, newest first.
func (s *Store) List(ctx context.Context, opts ListOpts) ([]*ArchivedMessage, error) {
	if opts.Limit <= 0 {
		opts.Limit = 100
	}

	query := `
		SELECT id, message_id, text, user, channel, ts, thread_ts,
		       reactions, category, confidence, priority_score, color,
		       similar, archived_at
		FROM messages WHERE 1=1`
	args := []interface{}{}
	if opts.Category != "" {
		query += ` AND category = ?`
		args = append(args, opts.Category)
	}
	if opts.Channel != "" {
		query += ` AND channel = ?`
		args = append(args, opts.Channel)
	}
	query += ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var out []*ArchivedMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}
	return out, nil
}

// FindByMessageID returns the most recently archived row for an
// engine-level message id, or nil if none exists.
func (s *Store) FindByMessageID(ctx context.Context, messageID string) (*ArchivedMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, text, user, channel, ts, thread_ts,
		       reactions, category, confidence, priority_score, color,
		       similar, archived_at
		FROM messages WHERE message_id = ?
		ORDER BY id DESC LIMIT 1`, messageID)
	if err != nil {
		return nil, fmt.Errorf("querying message %s: %w", messageID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanMessage(rows)
}

// Stats aggregates archive contents with SQL so large archives never
// load into memory.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{Categories: map[string]int64{}}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(AVG(priority_score), 0),
		       COALESCE(SUM(CASE WHEN priority_score > 0.7 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN priority_score > 0.3 AND priority_score <= 0.7 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN priority_score <= 0.3 THEN 1 ELSE 0 END), 0)
		FROM messages`).
		Scan(&stats.TotalMessages, &stats.AvgPriority,
			&stats.HighPriority, &stats.MedPriority, &stats.LowPriority)
	if err != nil {
		return nil, fmt.Errorf("aggregating stats: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM messages GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("querying category counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cat string
		var n int64
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, fmt.Errorf("scanning category row: %w", err)
		}
		stats.Categories[cat] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating category rows: %w", err)
	}
	return stats, nil
}

func scanMessage(rows *sql.Rows) (*ArchivedMessage, error) {
	var m ArchivedMessage
	var ts, archivedAt, reactions, similar string
	if err := rows.Scan(&m.ID, &m.MessageID, &m.Text, &m.User, &m.Channel,
		&ts, &m.ThreadTS, &reactions, &m.Category, &m.Confidence,
		&m.PriorityScore, &m.Color, &similar, &archivedAt); err != nil {
		return nil, fmt.Errorf("scanning message row: %w", err)
	}

	m.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
	m.ArchivedAt, _ = time.Parse(time.RFC3339Nano, archivedAt)
	if err := json.Unmarshal([]byte(reactions), &m.Reactions); err != nil {
		return nil, fmt.Errorf("parsing reactions for row %d: %w", m.ID, err)
	}
	if err := json.Unmarshal([]byte(similar), &m.Similar); err != nil {
		return nil, fmt.Errorf("parsing similar matches for row %d: %w", m.ID, err)
	}
	return &m, nil
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

// SPDX-License-Identifier: MIT

// Package journal persists one row per notified operation episode so
// operators can audit what ran, when, and how it ended.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Pure Go driver

	oplog "github.com/ManuGH/opgate/internal/log"
	"github.com/ManuGH/opgate/internal/notify"
)

const schema = `
CREATE TABLE IF NOT EXISTS episodes (
	id         TEXT PRIMARY KEY,
	operation  TEXT NOT NULL,
	started_at TIMESTAMP NOT NULL,
	ended_at   TIMESTAMP,
	outcome    TEXT CHECK (outcome IN ('done', 'released'))
);
CREATE INDEX IF NOT EXISTS idx_episodes_started ON episodes(started_at DESC);
`

// Episode is one recorded activation of a named operation. Outcome is empty
// while the episode is still open, "done" after a clean stop, and "released"
// when the handle was disposed without completing (e.g. daemon teardown).
type Episode struct {
	ID        string     `json:"id"`
	Operation string     `json:"operation"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Outcome   string     `json:"outcome,omitempty"`
}

// Journal is a SQLite-backed notify.Sink recording operation episodes.
type Journal struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open initializes the journal database at path, creating the schema if
// needed. The DSN pragmas apply to every pooled connection.
func Open(path string) (*Journal, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: open failed: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: ping failed: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: create schema: %w", err)
	}

	return &Journal{db: db, logger: oplog.WithComponent("journal")}, nil
}

func (j *Journal) Start(ctx context.Context, operation string) (notify.Handle, error) {
	id := uuid.NewString()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO episodes (id, operation, started_at) VALUES (?, ?, ?)`,
		id, operation, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("journal: record start of %q: %w", operation, err)
	}
	return &journalHandle{journal: j, id: id, operation: operation}, nil
}

// Recent returns the most recently started episodes, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Episode, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, operation, started_at, ended_at, outcome
		 FROM episodes ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query episodes: %w", err)
	}
	defer rows.Close()

	var episodes []Episode
	for rows.Next() {
		var (
			ep      Episode
			ended   sql.NullTime
			outcome sql.NullString
		)
		if err := rows.Scan(&ep.ID, &ep.Operation, &ep.StartedAt, &ended, &outcome); err != nil {
			return nil, fmt.Errorf("journal: scan episode: %w", err)
		}
		if ended.Valid {
			t := ended.Time
			ep.EndedAt = &t
		}
		ep.Outcome = outcome.String
		episodes = append(episodes, ep)
	}
	return episodes, rows.Err()
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// HealthCheck verifies the database is reachable.
func (j *Journal) HealthCheck(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

func (j *Journal) closeEpisode(id, operation, outcome string, onlyOpen bool) {
	query := `UPDATE episodes SET ended_at = ?, outcome = ? WHERE id = ?`
	if onlyOpen {
		query += ` AND outcome IS NULL`
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := j.db.ExecContext(ctx, query, time.Now().UTC(), outcome, id); err != nil {
		j.logger.Warn().
			Err(err).
			Str("operation", operation).
			Str("episode", id).
			Str("outcome", outcome).
			Msg("failed to close episode")
	}
}

type journalHandle struct {
	journal   *Journal
	id        string
	operation string

	doneOnce    sync.Once
	releaseOnce sync.Once
}

func (h *journalHandle) MarkDone() {
	h.doneOnce.Do(func() {
		h.journal.closeEpisode(h.id, h.operation, "done", false)
	})
}

// Release records "released" only when MarkDone has not already closed the
// episode; a clean done outcome is never downgraded.
func (h *journalHandle) Release() {
	h.releaseOnce.Do(func() {
		h.journal.closeEpisode(h.id, h.operation, "released", true)
	})
}

var _ notify.Sink = (*Journal)(nil)

package adapters

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/conversation"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation/ports"
)

// LibSQLSessionStore keeps one row per conversation identity in the
// sessions table created by db.Migrate.
type LibSQLSessionStore struct {
	db *sql.DB
}

func NewLibSQLSessionStore(db *sql.DB) *LibSQLSessionStore {
	return &LibSQLSessionStore{db: db}
}

// SaveSessions upserts every record in one transaction. Records without a
// snapshot id get a fresh one.
func (s *LibSQLSessionStore) SaveSessions(ctx context.Context, records []ports.SessionRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin session flush: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
		INSERT INTO sessions (identity, snapshot_id, log_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			snapshot_id = excluded.snapshot_id,
			log_json = excluded.log_json,
			updated_at = excluded.updated_at
	`
	for _, rec := range records {
		data, err := json.Marshal(rec.Log)
		if err != nil {
			return fmt.Errorf("failed to marshal session %s: %w", rec.Identity, err)
		}
		id := rec.SnapshotID
		if id == "" {
			id = uuid.NewString()
		}
		updated := rec.UpdatedAt
		if updated.IsZero() {
			updated = time.Now()
		}
		if _, err := tx.ExecContext(ctx, query, rec.Identity, id, string(data), updated.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("failed to save session %s: %w", rec.Identity, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session flush: %w", err)
	}
	return nil
}

// LoadSessions returns every stored conversation, oldest update first.
func (s *LibSQLSessionStore) LoadSessions(ctx context.Context) ([]ports.SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identity, snapshot_id, log_json, updated_at
		FROM sessions
		ORDER BY updated_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []ports.SessionRecord
	for rows.Next() {
		var (
			rec     ports.SessionRecord
			data    string
			updated string
		)
		if err := rows.Scan(&rec.Identity, &rec.SnapshotID, &data, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		var snap conversation.Snapshot
		if err := json.Unmarshal([]byte(data), &snap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session %s: %w", rec.Identity, err)
		}
		rec.Log = snap
		if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
			rec.UpdatedAt = t
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return out, nil
}

func (s *LibSQLSessionStore) DeleteSession(ctx context.Context, identity string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE identity = ?`, identity); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", identity, err)
	}
	return nil
}

// NoopSessionStore keeps nothing.
type NoopSessionStore struct{}

func (NoopSessionStore) SaveSessions(context.Context, []ports.SessionRecord) error { return nil }

func (NoopSessionStore) LoadSessions(context.Context) ([]ports.SessionRecord, error) {
	return nil, nil
}

func (NoopSessionStore) DeleteSession(context.Context, string) error { return nil }

var (
	_ ports.SessionStore = (*LibSQLSessionStore)(nil)
	_ ports.SessionStore = NoopSessionStore{}
)

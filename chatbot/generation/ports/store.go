package ports

import (
	"context"
	"time"

	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/conversation"
)

// SessionRecord is one persisted conversation.
type SessionRecord struct {
	Identity   string
	SnapshotID string
	Log        conversation.Snapshot
	UpdatedAt  time.Time
}

// SessionStore persists the identity → conversation map between restarts.
type SessionStore interface {
	SaveSessions(ctx context.Context, records []SessionRecord) error
	LoadSessions(ctx context.Context) ([]SessionRecord, error)
	DeleteSession(ctx context.Context, identity string) error
}

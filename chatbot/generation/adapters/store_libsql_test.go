package adapters

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/conversation"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/db"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation/ports"
)

func newTestStore(t *testing.T) *LibSQLSessionStore {
	t.Helper()
	conn, err := db.ConnectToDB(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Migrate(context.Background(), conn))
	return NewLibSQLSessionStore(conn)
}

func TestLibSQLSessionStore_SaveLoadDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	l := conversation.New("hi")
	require.NoError(t, l.AppendResponse(" hello"))
	require.NoError(t, l.AddUserInput("still there?"))

	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	records := []ports.SessionRecord{
		{Identity: "guild:bob", Log: l.Snapshot(), UpdatedAt: base.Add(time.Minute)},
		{Identity: "guild:alice", Log: conversation.New().Snapshot(), UpdatedAt: base},
	}
	require.NoError(t, store.SaveSessions(ctx, records))

	loaded, err := store.LoadSessions(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "guild:alice", loaded[0].Identity)
	assert.Equal(t, "guild:bob", loaded[1].Identity)
	assert.NotEmpty(t, loaded[1].SnapshotID)
	assert.True(t, base.Add(time.Minute).Equal(loaded[1].UpdatedAt))

	restored, err := conversation.FromSnapshot(loaded[1].Log)
	require.NoError(t, err)
	assert.Equal(t, l.String(), restored.String())

	// upsert replaces the row
	require.NoError(t, l.AppendResponse(" yes"))
	records[0].Log = l.Snapshot()
	records[0].UpdatedAt = base.Add(2 * time.Minute)
	require.NoError(t, store.SaveSessions(ctx, records[:1]))

	loaded, err = store.LoadSessions(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, []string{" hello", " yes"}, loaded[1].Log.GeneratedResponses)

	require.NoError(t, store.DeleteSession(ctx, "guild:alice"))
	loaded, err = store.LoadSessions(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "guild:bob", loaded[0].Identity)
}

func TestNoopSessionStore(t *testing.T) {
	var store NoopSessionStore
	ctx := context.Background()
	require.NoError(t, store.SaveSessions(ctx, []ports.SessionRecord{{Identity: "x"}}))
	loaded, err := store.LoadSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

//go:build integration
// +build integration

package scripts

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/conversation"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/db"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation/adapters"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation/ports"
)

func must(err error, msg string) {
	if err != nil {
		log.Fatalf("%s: %v", msg, err)
	}
}

// RunSmokeSessions checks the embedded database end to end: schema
// migration, a session round trip and JSON queries over stored logs.
func RunSmokeSessions(path string) {
	fmt.Println("Smoke test: session persistence on embedded libsql")
	defer os.Remove(path)

	ctx := context.Background()
	dbconn, err := db.ConnectToDB(path)
	must(err, "connect")
	defer dbconn.Close()

	must(db.Migrate(ctx, dbconn), "migrate")
	fmt.Println("OK: migrations")

	l := conversation.New("Hello! My name is Sam")
	must(l.AppendResponse(" Hello! I am a woman named Jane"), "seed")

	store := adapters.NewLibSQLSessionStore(dbconn)
	must(store.SaveSessions(ctx, []ports.SessionRecord{{Identity: "smoke:sam", Log: l.Snapshot()}}), "save")

	records, err := store.LoadSessions(ctx)
	must(err, "load")
	if len(records) != 1 || records[0].Identity != "smoke:sam" {
		log.Fatalf("unexpected sessions: %+v", records)
	}
	fmt.Println("OK: session round trip")

	var turns int
	err = dbconn.QueryRow(`SELECT json_array_length(log_json, '$.past_user_inputs') FROM sessions WHERE identity = ?`, "smoke:sam").Scan(&turns)
	must(err, "JSON1 query")
	if turns != 1 {
		log.Fatalf("JSON1 returned %d turns", turns)
	}
	fmt.Println("OK: JSON1 over stored logs")

	must(store.DeleteSession(ctx, "smoke:sam"), "delete")
	fmt.Println("Smoke checks completed.")
}

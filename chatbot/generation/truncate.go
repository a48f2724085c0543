package generation

import (
	"errors"
	"fmt"
	"time"

	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/conversation"
)

// truncate evicts oldest turns while the serialized log exceeds limit. It
// returns the final serialization and the number of evicted turns. The loop
// runs at most log.Len() times; when only the pending input is left the
// result may still exceed limit.
func truncate(log *conversation.Log, serialize func(*conversation.Log) ([]int, error), limit int) ([]int, int, error) {
	ids, err := serialize(log)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to serialize conversation: %w", err)
	}

	evicted := 0
	for bound := log.Len(); len(ids) > limit && bound > 0; bound-- {
		if err := log.EvictOldestTurn(); err != nil {
			if errors.Is(err, conversation.ErrEmpty) {
				break
			}
			return nil, evicted, err
		}
		evicted++

		if ids, err = serialize(log); err != nil {
			return nil, evicted, fmt.Errorf("failed to serialize conversation: %w", err)
		}
	}
	return ids, evicted, nil
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

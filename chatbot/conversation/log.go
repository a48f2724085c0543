// Package conversation implements the ordered record of a dialogue: completed
// user/bot turns plus at most one user input still waiting for an answer.
//
// A Log is not safe for concurrent use. Callers serialize access per
// conversation identity (see the session package).
package conversation

import (
	"errors"
	"fmt"
	"iter"
	"strings"
)

var (
	// ErrInvalidState reports misuse of the pending-input protocol.
	ErrInvalidState = errors.New("conversation: invalid state")
	// ErrEmpty reports an operation that needs at least one completed turn.
	ErrEmpty = errors.New("conversation: no turns")
)

// Log is a linear conversation history.
//
// len(pastUserInputs) == len(generatedResponses) holds except between
// AddUserInput and AppendResponse, when pending is set.
type Log struct {
	pastUserInputs     []string
	generatedResponses []string
	pending            string
	hasPending         bool
}

// New creates a log. A seed, when given, becomes the pending user input.
func New(seed ...string) *Log {
	l := &Log{}
	if len(seed) > 0 {
		l.pending = seed[0]
		l.hasPending = true
	}
	return l
}

// AddUserInput sets the pending user input.
func (l *Log) AddUserInput(text string) error {
	if l.hasPending {
		return fmt.Errorf("%w: user input %q is still awaiting a response", ErrInvalidState, l.pending)
	}
	l.pending = text
	l.hasPending = true
	return nil
}

// AppendResponse pairs the pending input with text and completes the turn.
func (l *Log) AppendResponse(text string) error {
	if !l.hasPending {
		return fmt.Errorf("%w: no pending user input to answer", ErrInvalidState)
	}
	l.pastUserInputs = append(l.pastUserInputs, l.pending)
	l.generatedResponses = append(l.generatedResponses, text)
	l.pending = ""
	l.hasPending = false
	return nil
}

// MarkProcessed is a no-op transition. AppendResponse is the only operation
// that consumes the pending input; callers seeding a greeting must call it.
func (l *Log) MarkProcessed() {}

// IterTexts yields (isUser, text) in chronological order: each completed
// turn as user then bot, followed by the pending input if any. The sequence
// reads the log's current content each time it is ranged over.
func (l *Log) IterTexts() iter.Seq2[bool, string] {
	return func(yield func(bool, string) bool) {
		for i := range l.pastUserInputs {
			if !yield(true, l.pastUserInputs[i]) {
				return
			}
			if i < len(l.generatedResponses) && !yield(false, l.generatedResponses[i]) {
				return
			}
		}
		if l.hasPending {
			yield(true, l.pending)
		}
	}
}

// EvictOldestTurn removes the oldest user input together with its response.
func (l *Log) EvictOldestTurn() error {
	if len(l.pastUserInputs) == 0 || len(l.generatedResponses) == 0 {
		return ErrEmpty
	}
	l.pastUserInputs = l.pastUserInputs[1:]
	l.generatedResponses = l.generatedResponses[1:]
	return nil
}

// AmendLastResponse replaces the most recent bot response in place.
func (l *Log) AmendLastResponse(text string) error {
	if len(l.generatedResponses) == 0 {
		return fmt.Errorf("%w: nothing to amend", ErrEmpty)
	}
	l.generatedResponses[len(l.generatedResponses)-1] = text
	return nil
}

// Pending returns the unanswered user input, if any.
func (l *Log) Pending() (string, bool) {
	return l.pending, l.hasPending
}

// Len returns the number of completed turns.
func (l *Log) Len() int {
	return len(l.pastUserInputs)
}

// PastUserInputs returns a copy of the answered user inputs, oldest first.
func (l *Log) PastUserInputs() []string {
	return append([]string(nil), l.pastUserInputs...)
}

// GeneratedResponses returns a copy of the bot responses, oldest first.
func (l *Log) GeneratedResponses() []string {
	return append([]string(nil), l.generatedResponses...)
}

// LastResponse returns the newest bot response.
func (l *Log) LastResponse() (string, bool) {
	if len(l.generatedResponses) == 0 {
		return "", false
	}
	return l.generatedResponses[len(l.generatedResponses)-1], true
}

// Clone returns a deep copy.
func (l *Log) Clone() *Log {
	return &Log{
		pastUserInputs:     l.PastUserInputs(),
		generatedResponses: l.GeneratedResponses(),
		pending:            l.pending,
		hasPending:         l.hasPending,
	}
}

// String renders the dialogue the way the REPL prints its summary.
func (l *Log) String() string {
	var b strings.Builder
	for isUser, text := range l.IterTexts() {
		if isUser {
			b.WriteString("user >> ")
		} else {
			b.WriteString("bot >> ")
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return b.String()
}

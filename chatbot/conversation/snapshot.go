package conversation

import "fmt"

// Snapshot is the plain-data form of a Log used for persistence.
type Snapshot struct {
	PastUserInputs     []string `json:"past_user_inputs"`
	GeneratedResponses []string `json:"generated_responses"`
	PendingUserInput   *string  `json:"pending_user_input,omitempty"`
}

// Snapshot copies the log's content.
func (l *Log) Snapshot() Snapshot {
	s := Snapshot{
		PastUserInputs:     l.PastUserInputs(),
		GeneratedResponses: l.GeneratedResponses(),
	}
	if l.hasPending {
		pending := l.pending
		s.PendingUserInput = &pending
	}
	return s
}

// FromSnapshot rebuilds a log, rejecting snapshots whose turn lists are out of step.
func FromSnapshot(s Snapshot) (*Log, error) {
	if len(s.PastUserInputs) != len(s.GeneratedResponses) {
		return nil, fmt.Errorf("%w: snapshot has %d user inputs and %d responses",
			ErrInvalidState, len(s.PastUserInputs), len(s.GeneratedResponses))
	}
	l := &Log{
		pastUserInputs:     append([]string(nil), s.PastUserInputs...),
		generatedResponses: append([]string(nil), s.GeneratedResponses...),
	}
	if s.PendingUserInput != nil {
		l.pending = *s.PendingUserInput
		l.hasPending = true
	}
	return l, nil
}

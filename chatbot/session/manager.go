// Package session owns the map from conversation identity to conversation
// log. Every mutation of one identity's log runs under that identity's
// lock; generation runs on a Dispatcher.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/conversation"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation/adapters"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation/ports"
)

// SeedFunc builds the log a new or reset conversation starts with.
type SeedFunc func() *conversation.Log

type entry struct {
	mu        sync.Mutex
	log       *conversation.Log
	updatedAt time.Time
	// version counts mutations; saved is the version last persisted.
	version uint64
	saved   uint64
}

// Manager is safe for concurrent use.
type Manager struct {
	adapter    generation.Adapter
	dispatcher *Dispatcher
	store      ports.SessionStore
	logger     zerolog.Logger

	flushOnResponse bool
	now             func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

// Options configures a Manager. Zero values select a one-worker dispatcher
// and no persistence.
type Options struct {
	Dispatcher      *Dispatcher
	Store           ports.SessionStore
	FlushOnResponse bool
	Logger          zerolog.Logger
}

func NewManager(adapter generation.Adapter, opts Options) *Manager {
	d := opts.Dispatcher
	if d == nil {
		d = NewDispatcher(1)
	}
	store := opts.Store
	if store == nil {
		store = adapters.NoopSessionStore{}
	}
	return &Manager{
		adapter:         adapter,
		dispatcher:      d,
		store:           store,
		logger:          opts.Logger.With().Str("component", "sessions").Logger(),
		flushOnResponse: opts.FlushOnResponse,
		now:             time.Now,
		sessions:        make(map[string]*entry),
	}
}

// lookup returns the entry for id, creating an empty one if needed.
func (m *Manager) lookup(id string) (*entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		e = &entry{}
		m.sessions[id] = e
	}
	return e, !ok
}

func (m *Manager) get(id string) (*entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	return e, ok
}

// GetOrCreate makes sure id has a log, building it with seed when absent.
// It reports whether a new log was created.
func (m *Manager) GetOrCreate(id string, seed SeedFunc) bool {
	e, _ := m.lookup(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.log != nil {
		return false
	}
	e.log = seed()
	m.touch(e)
	return true
}

// Reset replaces the log of id with a freshly seeded one.
func (m *Manager) Reset(id string, seed SeedFunc) {
	e, _ := m.lookup(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = seed()
	m.touch(e)
	m.logger.Debug().Str("identity", id).Msg("Session reset")
}

// Amend replaces the newest response of id. It returns conversation.ErrEmpty
// when there is nothing to amend.
func (m *Manager) Amend(id, text string) error {
	e, ok := m.get(id)
	if !ok {
		return conversation.ErrEmpty
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.log == nil {
		return conversation.ErrEmpty
	}
	if err := e.log.AmendLastResponse(text); err != nil {
		return err
	}
	m.touch(e)
	return nil
}

// History returns a copy of the log of id.
func (m *Manager) History(id string) (*conversation.Log, bool) {
	e, ok := m.get(id)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.log == nil {
		return nil, false
	}
	return e.log.Clone(), true
}

// Respond adds utterance to the log of id and generates the answer. The
// work happens on a copy that replaces the stored log only on success, so
// a failed generation leaves the conversation as it was.
func (m *Manager) Respond(ctx context.Context, id, utterance string) (string, error) {
	e, _ := m.lookup(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	work := conversation.New()
	if e.log != nil {
		work = e.log.Clone()
	}
	if err := work.AddUserInput(utterance); err != nil {
		return "", err
	}

	err := m.dispatcher.Do(ctx, func(ctx context.Context) error {
		return m.adapter.Respond(ctx, work)
	})
	if errors.Is(err, ErrJobPanicked) {
		err = fmt.Errorf("%w: %w", generation.ErrGenerationFailure, err)
	}
	if err != nil {
		m.logger.Warn().Err(err).Str("identity", id).Msg("Respond failed, keeping previous log")
		return "", err
	}

	e.log = work
	m.touch(e)
	response, _ := work.LastResponse()

	if m.flushOnResponse {
		if err := m.saveLocked(ctx, id, e); err != nil {
			m.logger.Error().Err(err).Str("identity", id).Msg("Failed to persist session")
		}
	}
	return response, nil
}

func (m *Manager) touch(e *entry) {
	e.updatedAt = m.now()
	e.version++
}

func (m *Manager) record(id string, e *entry) ports.SessionRecord {
	return ports.SessionRecord{
		Identity:  id,
		Log:       e.log.Snapshot(),
		UpdatedAt: e.updatedAt,
	}
}

// saveLocked persists one entry. The caller holds e.mu.
func (m *Manager) saveLocked(ctx context.Context, id string, e *entry) error {
	if err := m.store.SaveSessions(ctx, []ports.SessionRecord{m.record(id, e)}); err != nil {
		return err
	}
	e.saved = e.version
	return nil
}

// Load replaces in-memory sessions with the store's content. Unanswered
// inputs left by an interrupted run are dropped.
func (m *Manager) Load(ctx context.Context) error {
	records, err := m.store.LoadSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load sessions: %w", err)
	}

	loaded := make(map[string]*entry, len(records))
	for _, rec := range records {
		snap := rec.Log
		if snap.PendingUserInput != nil {
			m.logger.Warn().Str("identity", rec.Identity).Msg("Dropping unanswered input from stored session")
			snap.PendingUserInput = nil
		}
		log, err := conversation.FromSnapshot(snap)
		if err != nil {
			m.logger.Warn().Err(err).Str("identity", rec.Identity).Msg("Skipping corrupt stored session")
			continue
		}
		loaded[rec.Identity] = &entry{log: log, updatedAt: rec.UpdatedAt}
	}

	m.mu.Lock()
	m.sessions = loaded
	m.mu.Unlock()

	m.logger.Info().Int("sessions", len(loaded)).Msg("Loaded sessions")
	return nil
}

// Flush persists every session changed since the last flush.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	entries := make([]*entry, 0, len(m.sessions))
	for id, e := range m.sessions {
		ids = append(ids, id)
		entries = append(entries, e)
	}
	m.mu.Unlock()

	type pending struct {
		e       *entry
		version uint64
	}
	var (
		records []ports.SessionRecord
		flushed []pending
	)
	for i, e := range entries {
		e.mu.Lock()
		if e.version != e.saved && e.log != nil {
			records = append(records, m.record(ids[i], e))
			flushed = append(flushed, pending{e, e.version})
		}
		e.mu.Unlock()
	}
	if len(records) == 0 {
		return nil
	}

	if err := m.store.SaveSessions(ctx, records); err != nil {
		return fmt.Errorf("failed to flush sessions: %w", err)
	}
	for _, f := range flushed {
		f.e.mu.Lock()
		if f.e.saved < f.version {
			f.e.saved = f.version
		}
		f.e.mu.Unlock()
	}
	m.logger.Info().Int("sessions", len(records)).Msg("Flushed sessions")
	return nil
}

// Len returns the number of known identities.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close flushes and stops the dispatcher.
func (m *Manager) Close(ctx context.Context) error {
	err := m.Flush(ctx)
	m.dispatcher.Close()
	return err
}

// IsGenerationFailure reports whether err came from the model backend
// rather than from a misuse of the log.
func IsGenerationFailure(err error) bool {
	return errors.Is(err, generation.ErrGenerationFailure)
}

package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/conversation"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation/generationtest"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation/ports"
)

type memoryStore struct {
	mu      sync.Mutex
	records map[string]ports.SessionRecord
	saves   int
	err     error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]ports.SessionRecord)}
}

func (s *memoryStore) SaveSessions(_ context.Context, records []ports.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saves++
	for _, r := range records {
		s.records[r.Identity] = r
	}
	return nil
}

func (s *memoryStore) LoadSessions(context.Context) ([]ports.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.SessionRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	return out, nil
}

func (s *memoryStore) DeleteSession(_ context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, identity)
	return nil
}

func newAdapter(gen ports.Generator) generation.Adapter {
	return generation.NewSeqToSeqAdapter(generation.Config{
		Tokenizer: generationtest.NewWordTokenizer("", 128),
		Generator: gen,
		Logger:    zerolog.Nop(),
	})
}

func greeting() *conversation.Log {
	l := conversation.New("Hello! My name is Sam")
	_ = l.AppendResponse(" Hello! I am a woman named Jane")
	return l
}

func TestRespondCommitsOnSuccess(t *testing.T) {
	m := NewManager(newAdapter(generationtest.Reply(" fine thanks")), Options{})
	defer m.Close(context.Background())

	assert.True(t, m.GetOrCreate("g:sam", greeting))
	assert.False(t, m.GetOrCreate("g:sam", greeting))

	got, err := m.Respond(context.Background(), "g:sam", "how are you")
	require.NoError(t, err)
	assert.Equal(t, " fine thanks", got)

	hist, ok := m.History("g:sam")
	require.True(t, ok)
	assert.Equal(t, []string{"Hello! My name is Sam", "how are you"}, hist.PastUserInputs())
	_, pending := hist.Pending()
	assert.False(t, pending)
}

func TestRespondFailureLeavesLogUntouched(t *testing.T) {
	boom := errors.New("backend down")
	fail := generationtest.GeneratorFunc(func(context.Context, ports.Prompt, ports.Options) (ports.Completion, error) {
		return ports.Completion{}, boom
	})
	m := NewManager(newAdapter(fail), Options{})
	defer m.Close(context.Background())

	m.GetOrCreate("g:sam", greeting)
	before, _ := m.History("g:sam")

	_, err := m.Respond(context.Background(), "g:sam", "hello?")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, IsGenerationFailure(err))

	after, _ := m.History("g:sam")
	assert.Equal(t, before.String(), after.String())
	_, pending := after.Pending()
	assert.False(t, pending)
}

func TestRespondWithoutExistingLog(t *testing.T) {
	m := NewManager(newAdapter(generationtest.Reply(" hi")), Options{})
	defer m.Close(context.Background())

	_, err := m.Respond(context.Background(), "g:new", "hey")
	require.NoError(t, err)
	hist, ok := m.History("g:new")
	require.True(t, ok)
	assert.Equal(t, 1, hist.Len())
}

func TestResetAndAmend(t *testing.T) {
	m := NewManager(newAdapter(generationtest.Reply(" bad")), Options{})
	defer m.Close(context.Background())

	assert.ErrorIs(t, m.Amend("g:nobody", "x"), conversation.ErrEmpty)
	m.Reset("g:empty", func() *conversation.Log { return conversation.New() })
	assert.ErrorIs(t, m.Amend("g:empty", "x"), conversation.ErrEmpty)

	m.GetOrCreate("g:sam", greeting)
	_, err := m.Respond(context.Background(), "g:sam", "tell me")
	require.NoError(t, err)

	require.NoError(t, m.Amend("g:sam", " good"))
	hist, _ := m.History("g:sam")
	last, _ := hist.LastResponse()
	assert.Equal(t, " good", last)

	m.Reset("g:sam", greeting)
	hist, _ = m.History("g:sam")
	assert.Equal(t, 1, hist.Len())
}

func TestPerIdentityRequestsAreSerialized(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	gen := generationtest.GeneratorFunc(func(context.Context, ports.Prompt, ports.Options) (ports.Completion, error) {
		n := inFlight.Add(1)
		for {
			cur := maxInFlight.Load()
			if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return ports.Completion{Text: " ok"}, nil
	})
	m := NewManager(newAdapter(gen), Options{Dispatcher: NewDispatcher(4)})
	defer m.Close(context.Background())

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Respond(context.Background(), "g:same", "hi")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight.Load())
	hist, _ := m.History("g:same")
	assert.Equal(t, 8, hist.Len())
}

func TestFlushAndLoad(t *testing.T) {
	store := newMemoryStore()
	m := NewManager(newAdapter(generationtest.Reply(" yo")), Options{Store: store})

	m.GetOrCreate("g:a", greeting)
	m.GetOrCreate("g:b", greeting)
	_, err := m.Respond(context.Background(), "g:a", "sup")
	require.NoError(t, err)

	require.NoError(t, m.Flush(context.Background()))
	assert.Equal(t, 1, store.saves)
	assert.Len(t, store.records, 2)

	// nothing changed since the last flush
	require.NoError(t, m.Flush(context.Background()))
	assert.Equal(t, 1, store.saves)
	require.NoError(t, m.Close(context.Background()))

	dangling := "unanswered"
	rec := store.records["g:b"]
	rec.Log.PendingUserInput = &dangling
	store.records["g:b"] = rec

	restored := NewManager(newAdapter(generationtest.Reply(" again")), Options{Store: store})
	defer restored.Close(context.Background())
	require.NoError(t, restored.Load(context.Background()))
	assert.Equal(t, 2, restored.Len())

	hist, ok := restored.History("g:a")
	require.True(t, ok)
	assert.Equal(t, 2, hist.Len())

	// dropped pending input does not block the next message
	_, err = restored.Respond(context.Background(), "g:b", "hello")
	require.NoError(t, err)
}

func TestFlushOnResponse(t *testing.T) {
	store := newMemoryStore()
	m := NewManager(newAdapter(generationtest.Reply(" yo")), Options{Store: store, FlushOnResponse: true})
	defer m.Close(context.Background())

	_, err := m.Respond(context.Background(), "g:a", "sup")
	require.NoError(t, err)
	assert.Contains(t, store.records, "g:a")

	store.err = errors.New("disk full")
	_, err = m.Respond(context.Background(), "g:a", "still there")
	assert.NoError(t, err, "persistence errors do not fail the reply")
}

func TestDispatcherRecoversPanics(t *testing.T) {
	d := NewDispatcher(1)
	defer d.Close()

	err := d.Do(context.Background(), func(context.Context) error { panic("kaboom") })
	require.ErrorIs(t, err, ErrJobPanicked)
	assert.Contains(t, err.Error(), "kaboom")

	require.NoError(t, d.Do(context.Background(), func(context.Context) error { return nil }))
}

func TestRespondTreatsPanicAsGenerationFailure(t *testing.T) {
	gen := generationtest.GeneratorFunc(func(context.Context, ports.Prompt, ports.Options) (ports.Completion, error) {
		panic("nil tensor")
	})
	m := NewManager(newAdapter(gen), Options{})
	defer m.Close(context.Background())
	m.GetOrCreate("g:a", greeting)

	_, err := m.Respond(context.Background(), "g:a", "hi")
	require.Error(t, err)
	assert.True(t, IsGenerationFailure(err))
	assert.ErrorIs(t, err, ErrJobPanicked)

	log, ok := m.History("g:a")
	require.True(t, ok)
	assert.Equal(t, 1, log.Len())
	_, pending := log.Pending()
	assert.False(t, pending)
}

func TestDispatcherQueuedJobHonoursDeadline(t *testing.T) {
	d := NewDispatcher(1)
	defer d.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = d.Do(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var ran atomic.Bool
	begin := time.Now()
	err := d.Do(ctx, func(context.Context) error {
		ran.Store(true)
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(begin), time.Second)

	close(release)
	require.NoError(t, d.Do(context.Background(), func(context.Context) error { return nil }))
	assert.False(t, ran.Load(), "job queued past its deadline never runs")
}

func TestDispatcherContextAndClose(t *testing.T) {
	d := NewDispatcher(1)

	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	err := d.Do(ctx, func(context.Context) error {
		<-release
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	close(release)

	d.Close()
	assert.ErrorIs(t, d.Do(context.Background(), func(context.Context) error { return nil }), ErrDispatcherClosed)
}

// Package generationtest provides deterministic tokenizer and generator
// doubles for adapter and session tests.
package generationtest

import (
	"context"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation/ports"
)

// EndOfSequence is the special token WordTokenizer appends when asked for
// special tokens.
const EndOfSequence = "</s>"

// WordTokenizer maps every whitespace-separated word to one token. The EOS
// marker always becomes its own token even when glued to a word.
type WordTokenizer struct {
	EOS       string
	MaxLength int
	// AddEOS makes EncodeWithSpecial append EndOfSequence.
	AddEOS bool

	mu    sync.Mutex
	vocab map[string]int
	words []string
	texts []string
}

func NewWordTokenizer(eos string, maxLength int) *WordTokenizer {
	return &WordTokenizer{EOS: eos, MaxLength: maxLength}
}

func (w *WordTokenizer) Encode(text string) ([]int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.texts = append(w.texts, text)
	return w.encode(text), nil
}

func (w *WordTokenizer) EncodeWithSpecial(text string) ([]int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.texts = append(w.texts, text)
	ids := w.encode(text)
	if w.AddEOS {
		ids = append(ids, w.id(EndOfSequence))
	}
	return ids, nil
}

func (w *WordTokenizer) encode(text string) []int {
	if w.EOS != "" {
		text = strings.ReplaceAll(text, w.EOS, " "+w.EOS+" ")
	}
	fields := strings.Fields(text)
	ids := make([]int, 0, len(fields))
	for _, f := range fields {
		ids = append(ids, w.id(f))
	}
	return ids
}

func (w *WordTokenizer) id(word string) int {
	if w.vocab == nil {
		w.vocab = make(map[string]int)
	}
	if id, ok := w.vocab[word]; ok {
		return id
	}
	id := len(w.words)
	w.vocab[word] = id
	w.words = append(w.words, word)
	return id
}

// Decode joins the words of ids with single spaces.
func (w *WordTokenizer) Decode(ids []int, skipSpecial bool) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id < 0 || id >= len(w.words) {
			continue
		}
		word := w.words[id]
		if skipSpecial && (word == EndOfSequence || (w.EOS != "" && word == w.EOS)) {
			continue
		}
		out = append(out, word)
	}
	return strings.Join(out, " "), nil
}

// IDs encodes text without recording it, for building expected values.
func (w *WordTokenizer) IDs(text string) []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.encode(text)
}

// Texts returns every string passed to Encode or EncodeWithSpecial.
func (w *WordTokenizer) Texts() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.texts...)
}

func (w *WordTokenizer) EOSToken() string    { return w.EOS }
func (w *WordTokenizer) ModelMaxLength() int { return w.MaxLength }

// MockGenerator is a testify mock of ports.Generator.
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt ports.Prompt, opts ports.Options) (ports.Completion, error) {
	args := m.Called(ctx, prompt, opts)
	return args.Get(0).(ports.Completion), args.Error(1)
}

// GeneratorFunc adapts a function to ports.Generator.
type GeneratorFunc func(ctx context.Context, prompt ports.Prompt, opts ports.Options) (ports.Completion, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt ports.Prompt, opts ports.Options) (ports.Completion, error) {
	return f(ctx, prompt, opts)
}

// Reply returns a generator that always answers text.
func Reply(text string) GeneratorFunc {
	return func(context.Context, ports.Prompt, ports.Options) (ports.Completion, error) {
		return ports.Completion{Text: text}, nil
	}
}

var (
	_ ports.Tokenizer = (*WordTokenizer)(nil)
	_ ports.Generator = (*MockGenerator)(nil)
	_ ports.Generator = GeneratorFunc(nil)
)

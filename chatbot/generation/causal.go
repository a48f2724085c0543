package generation

import (
	"slices"
	"strings"

	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/conversation"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation/ports"
)

// CausalAdapter drives left-to-right language models (DialoGPT, GPT-J).
// Each turn is encoded as its text followed by the EOS token and the
// encodings are concatenated. The model continues the sequence, so any
// echoed prompt is removed from the output.
type CausalAdapter struct {
	*engine
	eos string
}

func NewCausalAdapter(cfg Config, eos string) *CausalAdapter {
	a := &CausalAdapter{}
	a.engine = newEngine(string(FamilyCausal), cfg, dialoGPTContext)
	a.eos = eos
	if a.eos == "" && cfg.Tokenizer != nil {
		a.eos = cfg.Tokenizer.EOSToken()
	}
	a.serialize = a.Serialize
	a.promptText = func(ids []int) (string, error) { return a.tok.Decode(ids, false) }
	a.decode = a.decodeCompletion
	return a
}

func (a *CausalAdapter) Serialize(log *conversation.Log) ([]int, error) {
	var ids []int
	for _, text := range log.IterTexts() {
		turn, err := a.tok.Encode(text + a.eos)
		if err != nil {
			return nil, err
		}
		ids = append(ids, turn...)
	}
	return ids, nil
}

func (a *CausalAdapter) decodeCompletion(p ports.Prompt, c ports.Completion) (string, error) {
	text := strings.TrimPrefix(c.Text, p.Text)
	if len(c.IDs) > 0 {
		ids := c.IDs
		if len(ids) >= len(p.IDs) && slices.Equal(ids[:len(p.IDs)], p.IDs) {
			ids = ids[len(p.IDs):]
		}
		// keep EOS in the text so the reply can be cut there
		var err error
		text, err = a.tok.Decode(ids, a.eos == "")
		if err != nil {
			return "", err
		}
	}

	if a.eos != "" {
		// generation stops at the first end-of-turn marker
		if i := strings.Index(text, a.eos); i >= 0 {
			text = text[:i]
		}
	}
	return strings.TrimSpace(text), nil
}

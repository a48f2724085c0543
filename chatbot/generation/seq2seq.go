package generation

import (
	"strings"

	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/conversation"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation/ports"
)

// turnSeparator joins turns for BlenderBot-style models.
const turnSeparator = "  "

// SeqToSeqAdapter drives encoder-decoder dialogue models (BlenderBot). The
// encoder input is every turn joined by a double space, user turns prefixed
// with a space, encoded once with the model's special tokens.
type SeqToSeqAdapter struct {
	*engine
}

func NewSeqToSeqAdapter(cfg Config) *SeqToSeqAdapter {
	a := &SeqToSeqAdapter{}
	a.engine = newEngine(string(FamilySeqToSeq), cfg, blenderBotContext)
	a.serialize = a.Serialize
	a.promptText = func(ids []int) (string, error) { return a.tok.Decode(ids, true) }
	a.decode = a.decodeCompletion
	return a
}

func (a *SeqToSeqAdapter) Serialize(log *conversation.Log) ([]int, error) {
	var parts []string
	for isUser, text := range log.IterTexts() {
		if isUser {
			parts = append(parts, " "+text)
		} else {
			parts = append(parts, text)
		}
	}
	return a.tok.EncodeWithSpecial(strings.Join(parts, turnSeparator))
}

// decodeCompletion returns the decoder output. It never contains the prompt.
func (a *SeqToSeqAdapter) decodeCompletion(_ ports.Prompt, c ports.Completion) (string, error) {
	if len(c.IDs) > 0 {
		return a.tok.Decode(c.IDs, true)
	}
	return c.Text, nil
}

package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/conversation"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation/adapters"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation/ports"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/session"
)

const (
	noResponse     = "*`No response`*"
	failedResponse = "Sorry, I couldn't come up with a response. Please try again."
	slowDown       = "You're sending messages too fast, give me a moment."
)

// Handler turns inbound messages into session operations.
type Handler struct {
	name         string
	gender       string
	contextLimit int

	sessions  *session.Manager
	transport Transport
	limiter   ports.RateLimiter
	router    *Router
	guard     *Guardrails
	logger    zerolog.Logger
}

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	Name         string
	Gender       string
	ContextLimit int
	Sessions     *session.Manager
	Transport    Transport
	Limiter      ports.RateLimiter
	Logger       zerolog.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = adapters.NoopRateLimiter{}
	}
	return &Handler{
		name:         cfg.Name,
		gender:       cfg.Gender,
		contextLimit: cfg.ContextLimit,
		sessions:     cfg.Sessions,
		transport:    cfg.Transport,
		limiter:      limiter,
		router:       NewRouter(),
		guard:        NewGuardrails(),
		logger:       cfg.Logger.With().Str("component", "bot").Logger(),
	}
}

// Identity keys a conversation by guild and author.
func Identity(guildID, authorID string) string {
	if guildID == "" {
		guildID = "dm"
	}
	return guildID + ":" + authorID
}

// Addressed reports whether content starts with the bot's name followed by
// a space or comma, and returns the rest of the message.
func (h *Handler) Addressed(content string) (string, bool) {
	// compare rune by rune; case folding can change byte length
	n := utf8.RuneCountInString(h.name)
	end := 0
	for i := 0; i < n; i++ {
		if end >= len(content) {
			return "", false
		}
		_, size := utf8.DecodeRuneInString(content[end:])
		end += size
	}
	if !strings.EqualFold(content[:end], h.name) {
		return "", false
	}
	rest := content[end:]
	if !strings.HasPrefix(rest, " ") && !strings.HasPrefix(rest, ",") {
		return "", false
	}
	return strings.TrimSpace(rest[1:]), true
}

// Greeting builds the log every new conversation starts from.
func (h *Handler) Greeting(display string) *conversation.Log {
	l := conversation.New("Hello! My name is " + display)
	// a fresh log always has the seed pending
	_ = l.AppendResponse(fmt.Sprintf(" Hello! I am a %s named %s", h.gender, h.name))
	return l
}

// HandleMessage processes one message. Messages not addressed to the bot
// are ignored.
func (h *Handler) HandleMessage(ctx context.Context, msg Message) error {
	utterance, ok := h.Addressed(msg.Content)
	if !ok {
		return nil
	}

	id := Identity(msg.GuildID, msg.Author.ID)
	seed := func() *conversation.Log { return h.Greeting(msg.Author.DisplayName) }
	if h.sessions.GetOrCreate(id, seed) {
		h.logger.Info().Str("identity", id).Msg("New conversation")
	}

	switch cmd, arg := h.router.Match(utterance); cmd {
	case CommandReset:
		h.sessions.Reset(id, seed)
		return h.transport.SendEmbed(ctx, msg.ChannelID, Embed{
			Title:       "Reset",
			Description: fmt.Sprintf("Your message history with %s has been reset", h.name),
			Author:      &msg.Author,
		})
	case CommandHistory:
		history := h.history(id, msg.Author.DisplayName)
		if history == "" {
			history = "No history"
		}
		return h.transport.SendEmbed(ctx, msg.ChannelID, Embed{
			Title:       "Message History",
			Description: history,
			Footer:      fmt.Sprintf("%s can only remember the last %d tokens in the conversation", h.name, h.contextLimit),
			Author:      &msg.Author,
		})
	case CommandAmend:
		embed := Embed{Title: "Amended Message History", Author: &msg.Author}
		if err := h.sessions.Amend(id, arg); err != nil {
			if !errors.Is(err, conversation.ErrEmpty) {
				return err
			}
			embed.Description = "No history to amend"
		} else {
			embed.Description = h.history(id, msg.Author.DisplayName)
		}
		return h.transport.SendEmbed(ctx, msg.ChannelID, embed)
	}

	return h.respond(ctx, id, msg, utterance)
}

func (h *Handler) respond(ctx context.Context, id string, msg Message, utterance string) error {
	release, err := h.limiter.Acquire(ctx, id)
	if err != nil {
		if errors.Is(err, adapters.ErrRateLimitExceeded) {
			h.logger.Debug().Str("identity", id).Msg("Rate limited")
			return h.transport.Reply(ctx, msg, slowDown)
		}
		return err
	}
	defer release()

	if err := h.transport.Typing(ctx, msg.ChannelID); err != nil {
		h.logger.Debug().Err(err).Msg("Failed to send typing indicator")
	}

	response, err := h.sessions.Respond(ctx, id, utterance)
	if err != nil {
		if session.IsGenerationFailure(err) {
			h.logger.Error().Err(err).Str("identity", id).Msg("Generation failed")
			return h.transport.Reply(ctx, msg, failedResponse)
		}
		return fmt.Errorf("respond to %s: %w", id, err)
	}

	response = h.guard.SanitizeOutput(strings.TrimSpace(response))
	if response == "" {
		response = noResponse
	}
	return h.transport.Reply(ctx, msg, response)
}

// history renders the log as "<speaker> >> <text>" lines.
func (h *Handler) history(id, display string) string {
	log, ok := h.sessions.History(id)
	if !ok {
		return ""
	}
	var b strings.Builder
	for isUser, text := range log.IterTexts() {
		speaker := h.name
		if isUser {
			speaker = display
		}
		fmt.Fprintf(&b, "%s >> %s\n", speaker, text)
	}
	return b.String()
}

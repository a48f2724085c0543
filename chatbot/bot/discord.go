package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

const (
	embedColor          = 0x3498db
	maxEmbedDescription = 4096
	maxMessageLength    = 2000
)

// DiscordTransport implements Transport over a discordgo session.
type DiscordTransport struct {
	session *discordgo.Session
}

func NewDiscordTransport(s *discordgo.Session) *DiscordTransport {
	return &DiscordTransport{session: s}
}

func (d *DiscordTransport) Reply(ctx context.Context, msg Message, text string) error {
	ref := &discordgo.MessageReference{
		MessageID: msg.ID,
		ChannelID: msg.ChannelID,
		GuildID:   msg.GuildID,
	}
	_, err := d.session.ChannelMessageSendReply(msg.ChannelID, clipHead(text, maxMessageLength), ref, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord reply: %w", err)
	}
	return nil
}

func (d *DiscordTransport) SendEmbed(ctx context.Context, channelID string, e Embed) error {
	embed := &discordgo.MessageEmbed{
		Title: e.Title,
		// long histories keep their newest lines
		Description: clipTail(e.Description, maxEmbedDescription),
		Color:       embedColor,
	}
	if e.Author != nil {
		embed.Author = &discordgo.MessageEmbedAuthor{Name: e.Author.DisplayName, IconURL: e.Author.AvatarURL}
	}
	if e.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	if _, err := d.session.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord embed: %w", err)
	}
	return nil
}

func (d *DiscordTransport) Typing(ctx context.Context, channelID string) error {
	return d.session.ChannelTyping(channelID, discordgo.WithContext(ctx))
}

// FromDiscord converts a gateway message.
func FromDiscord(m *discordgo.Message) Message {
	author := Author{}
	if m.Author != nil {
		author.ID = m.Author.ID
		author.DisplayName = m.Author.Username
		if m.Author.GlobalName != "" {
			author.DisplayName = m.Author.GlobalName
		}
		author.AvatarURL = m.Author.AvatarURL("")
	}
	if m.Member != nil && m.Member.Nick != "" {
		author.DisplayName = m.Member.Nick
	}
	return Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		Author:    author,
		Content:   m.Content,
	}
}

// RunDiscord connects with token and feeds messages to the handler built by
// newHandler until ctx is done.
func RunDiscord(ctx context.Context, token string, newHandler func(Transport) *Handler, logger zerolog.Logger) error {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return fmt.Errorf("failed to create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent

	h := newHandler(NewDiscordTransport(s))

	s.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		logger.Info().Str("user", r.User.String()).Msg("Logged in")
	})
	s.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot || (s.State.User != nil && m.Author.ID == s.State.User.ID) {
			return
		}
		if err := h.HandleMessage(ctx, FromDiscord(m.Message)); err != nil {
			logger.Error().Err(err).Str("channel", m.ChannelID).Msg("Failed to handle message")
		}
	})

	if err := s.Open(); err != nil {
		return fmt.Errorf("failed to open discord gateway: %w", err)
	}
	defer s.Close()

	<-ctx.Done()
	logger.Info().Msg("Disconnecting from discord")
	return nil
}

func clipHead(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func clipTail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

// Package bot answers chat-platform messages addressed to the bot by name.
package bot

import "context"

// Author is the sender of a message.
type Author struct {
	ID          string
	DisplayName string
	AvatarURL   string
}

// Message is an inbound chat message with the fields the handler reads.
type Message struct {
	ID        string
	ChannelID string
	GuildID   string
	Author    Author
	Content   string
}

// Embed is a titled rich message.
type Embed struct {
	Title       string
	Description string
	Footer      string
	Author      *Author
}

// Transport sends the handler's output back to the platform.
type Transport interface {
	// Reply answers msg with plain text.
	Reply(ctx context.Context, msg Message, text string) error
	SendEmbed(ctx context.Context, channelID string, embed Embed) error
	// Typing shows the typing indicator in a channel.
	Typing(ctx context.Context, channelID string) error
}

package domain

import "context"

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelTelegram Channel = "telegram"
)

// Message is one outbound notification. To is a channel-specific address:
// an email address or a Telegram chat id.
type Message struct {
	Channel Channel
	To      string
	Subject string
	Body    string
}

// Sender delivers a message over one channel. Any returned error counts as a
// failed delivery.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

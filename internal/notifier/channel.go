package notifier

import (
	"context"
	"strings"
)

// Channel delivers a rendered message to one address.
// ref identifies the delivery at the provider (message id, chat:message).
type Channel interface {
	Name() string
	Send(ctx context.Context, to string, msg Message) (ref string, err error)
}

const (
	ChannelEmail    = "email"
	ChannelTelegram = "telegram"
)

// route maps a recipient to a channel name and the channel-local address.
func route(recipient string) (channel, addr string) {
	r := strings.TrimSpace(recipient)
	if chat, ok := strings.CutPrefix(r, "telegram:"); ok {
		return ChannelTelegram, strings.TrimSpace(chat)
	}
	return ChannelEmail, strings.TrimSpace(strings.TrimPrefix(r, "mailto:"))
}

package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gamewatch/pkg/tgui"

	tele "gopkg.in/telebot.v4"
)

type TelegramConfig struct {
	Token string
	// APIURL overrides the Bot API endpoint; empty means the public one.
	APIURL  string
	Timeout time.Duration
}

// TelegramChannel sends messages through the Bot API.
// The bot runs offline: it never polls for updates.
type TelegramChannel struct {
	bot *tele.Bot
}

func NewTelegramChannel(cfg TelegramConfig) (*TelegramChannel, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		URL:     cfg.APIURL,
		Offline: true,
		Client:  &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return &TelegramChannel{bot: b}, nil
}

func (c *TelegramChannel) Name() string { return ChannelTelegram }

// Send delivers msg.Chat (plain msg.Text when unset) to chat id `to` and
// returns "chat_id:message_id".
// telebot has no context support, so ctx is only checked before the call.
func (c *TelegramChannel) Send(ctx context.Context, to string, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	chatID, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid telegram chat id %q", to)
	}
	out := msg.Chat
	if out.Text == "" {
		out = tgui.New().ParseMode("").Line(msg.Text).Build()
	}
	if out.Text == "" {
		out.Text = msg.Subject
	}
	m, err := c.bot.Send(&tele.Chat{ID: chatID}, out.Text, out.SendOptions())
	if err != nil {
		return "", fmt.Errorf("telegram send: %w", err)
	}
	return fmt.Sprintf("%d:%d", chatID, m.ID), nil
}

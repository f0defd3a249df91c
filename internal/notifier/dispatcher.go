package notifier

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gamewatch/internal/storage"
	"gamewatch/pkg/logx"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

var ErrNoChannel = errors.New("no channel for recipient")

type Config struct {
	SMTP     SMTPConfig
	Telegram TelegramConfig

	// RatePerSec paces sends across all channels; <= 0 disables pacing.
	RatePerSec  int
	SendTimeout time.Duration
}

// RecordStore persists successful deliveries.
type RecordStore interface {
	AppendNotification(ctx context.Context, r storage.NotificationRecord) error
}

// Delivery is the outcome of one Notify call. Err is set iff OK is false.
// RecordID is set only when the record was persisted.
type Delivery struct {
	OK       bool
	Channel  string
	Ref      string
	RecordID uuid.UUID
	Err      error
}

// Dispatcher sends one notification per call and logs it. It is safe for concurrent use.
type Dispatcher struct {
	mu       sync.RWMutex
	cfg      Config
	channels map[string]Channel
	limiter  *rate.Limiter

	store RecordStore
	log   logx.Logger
	now   func() time.Time
}

// New builds the channels that cfg configures. An SMTP host enables email,
// a Telegram token enables Telegram. store may be nil.
func New(cfg Config, store RecordStore, log logx.Logger) (*Dispatcher, error) {
	d := newDispatcher(store, log)
	if err := d.Apply(cfg); err != nil {
		return nil, err
	}
	return d, nil
}

// NewWithChannels builds a dispatcher over explicit channels.
func NewWithChannels(store RecordStore, log logx.Logger, channels ...Channel) *Dispatcher {
	d := newDispatcher(store, log)
	for _, ch := range channels {
		d.channels[ch.Name()] = ch
	}
	return d
}

func newDispatcher(store RecordStore, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{
		channels: map[string]Channel{},
		store:    store,
		log:      log.With(logx.String("comp", "notifier")),
		now:      time.Now,
	}
}

// Apply rebuilds channels and pacing from cfg. On error the previous
// channels stay in place.
func (d *Dispatcher) Apply(cfg Config) error {
	channels := map[string]Channel{}
	if strings.TrimSpace(cfg.SMTP.Host) != "" {
		ch, err := NewEmailChannel(cfg.SMTP)
		if err != nil {
			return fmt.Errorf("email channel: %w", err)
		}
		channels[ChannelEmail] = ch
	}
	if strings.TrimSpace(cfg.Telegram.Token) != "" {
		ch, err := NewTelegramChannel(cfg.Telegram)
		if err != nil {
			return fmt.Errorf("telegram channel: %w", err)
		}
		channels[ChannelTelegram] = ch
	}

	var limiter *rate.Limiter
	if cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}

	d.mu.Lock()
	d.cfg = cfg
	d.channels = channels
	d.limiter = limiter
	d.mu.Unlock()

	d.log.Debug("channels configured", logx.Strs("channels", d.Channels()))
	return nil
}

// Channels lists the configured channel names.
func (d *Dispatcher) Channels() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.channels))
	for name := range d.channels {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Notify sends the activation to exactly one recipient.
func (d *Dispatcher) Notify(ctx context.Context, recipient, displayName string, act Activation) Delivery {
	name, addr := route(recipient)

	d.mu.RLock()
	ch := d.channels[name]
	limiter := d.limiter
	timeout := d.cfg.SendTimeout
	d.mu.RUnlock()

	log := d.log.With(logx.String("recipient", recipient), logx.String("player", displayName), logx.String("channel", name))
	fail := func(err error) Delivery {
		log.Warn("notification failed", logx.Err(err))
		return Delivery{Channel: name, Err: err}
	}

	if ch == nil {
		return fail(fmt.Errorf("%w: %s channel not configured", ErrNoChannel, name))
	}
	if addr == "" {
		return fail(fmt.Errorf("empty recipient address"))
	}
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return fail(fmt.Errorf("rate limit wait: %w", err))
		}
	}

	msg, err := Render(displayName, act)
	if err != nil {
		return fail(err)
	}

	sendCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ref, err := ch.Send(sendCtx, addr, msg)
	if err != nil {
		return fail(err)
	}

	out := Delivery{OK: true, Channel: name, Ref: ref}
	log.Info("notification sent", logx.String("ref", ref))

	if d.store == nil {
		return out
	}
	rec := storage.NotificationRecord{
		ID:          uuid.New(),
		SentAt:      d.now().UTC(),
		Recipient:   recipient,
		PlayerName:  displayName,
		Channel:     name,
		DeliveryRef: ref,
	}
	if act.Game != nil {
		rec.GameMode = act.Game.GameMode
		rec.GameType = act.Game.GameType
	}
	// A record failure keeps the delivery successful.
	if err := d.store.AppendNotification(context.WithoutCancel(ctx), rec); err != nil {
		log.Warn("notification record not persisted", logx.Err(err), logx.String("record_id", rec.ID.String()))
		return out
	}
	out.RecordID = rec.ID
	return out
}

package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gamewatch/internal/notifier"
	"gamewatch/internal/riot"
	"gamewatch/internal/storage"
	"gamewatch/pkg/logx"
)

// ErrRegistryUnavailable is the only error that fails a whole cycle.
var ErrRegistryUnavailable = errors.New("registry unavailable")

// Activation is the event handed to the dispatcher.
type Activation = notifier.Activation

// Registry is the part of storage.Store the cycle needs.
type Registry interface {
	ListPlayers(ctx context.Context) ([]storage.Player, error)
	UpdatePlayer(ctx context.Context, id string, u storage.PlayerUpdate) error
}

type StatusClient interface {
	CheckStatus(ctx context.Context, puuid, region string) riot.Status
}

type Dispatcher interface {
	Notify(ctx context.Context, recipient, displayName string, act Activation) notifier.Delivery
}

// Policy decides whether a player still in the same game is notified again.
type Policy string

const (
	// PolicyEveryPoll notifies on every cycle that sees the player in game.
	PolicyEveryPoll Policy = "every_poll"
	// PolicySession notifies once per game id; the stored id resets when the player is seen inactive.
	PolicySession Policy = "session"
)

type Config struct {
	Recipients []string
	Workers    int
	Renotify   Policy
}

type Deps struct {
	Registry   Registry
	Status     StatusClient
	Dispatcher Dispatcher
	Log        logx.Logger
	Now        func() time.Time
}

// Summary is the result of one cycle. Key lists are sorted.
type Summary struct {
	Checked     []string `json:"checked"`
	Skipped     []string `json:"skipped"`
	Active      []string `json:"active"`
	Unknown     []string `json:"unknown"`
	Unprocessed []string `json:"unprocessed,omitempty"`

	Notified       int      `json:"notified"`
	NotifyFailed   int      `json:"notify_failed"`
	Suppressed     int      `json:"suppressed"`
	BookkeepFailed []string `json:"bookkeep_failed"`

	StartedAt time.Time     `json:"started_at"`
	Took      time.Duration `json:"-"`
	Err       error         `json:"-"`
}

func newSummary(start time.Time) Summary {
	return Summary{
		Checked:        []string{},
		Skipped:        []string{},
		Active:         []string{},
		Unknown:        []string{},
		BookkeepFailed: []string{},
		StartedAt:      start.UTC(),
	}
}

// Failed reports whether the cycle hit a fatal error.
func (s Summary) Failed() bool { return s.Err != nil }

func (s Summary) MarshalJSON() ([]byte, error) {
	type plain Summary
	out := struct {
		plain
		Took  string `json:"took"`
		Error string `json:"error,omitempty"`
	}{plain: plain(s), Took: s.Took.String()}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}
	return json.Marshal(out)
}

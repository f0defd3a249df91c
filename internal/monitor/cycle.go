// Package monitor runs the polling cycle: read the registry, ask the status
// API about every player with a puuid, notify recipients for players in game,
// and record when each player was checked.
//
// Per-player failures are logged and counted; only a registry read failure
// fails the cycle. Nothing is kept in memory between cycles.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gamewatch/internal/riot"
	"gamewatch/internal/storage"
	"gamewatch/pkg/logx"

	"golang.org/x/sync/errgroup"
)

const bookkeepTimeout = 5 * time.Second

type Monitor struct {
	mu  sync.RWMutex
	cfg Config

	reg    Registry
	status StatusClient
	disp   Dispatcher
	log    logx.Logger
	now    func() time.Time
}

func New(cfg Config, d Deps) *Monitor {
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Monitor{
		cfg:    normalize(cfg),
		reg:    d.Registry,
		status: d.Status,
		disp:   d.Dispatcher,
		log:    d.Log.With(logx.String("comp", "monitor")),
		now:    d.Now,
	}
}

func normalize(cfg Config) Config {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Renotify == "" {
		cfg.Renotify = PolicyEveryPoll
	}
	cfg.Recipients = append([]string(nil), cfg.Recipients...)
	return cfg
}

// Apply replaces the config; a running cycle keeps the snapshot it started with.
func (m *Monitor) Apply(cfg Config) {
	m.mu.Lock()
	m.cfg = normalize(cfg)
	m.mu.Unlock()
}

func (m *Monitor) config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// tally collects per-player outcomes from the workers.
type tally struct {
	mu sync.Mutex
	s  Summary
}

func (t *tally) add(fn func(s *Summary)) {
	t.mu.Lock()
	fn(&t.s)
	t.mu.Unlock()
}

// Run executes one cycle over the whole registry.
func (m *Monitor) Run(ctx context.Context) Summary {
	start := m.now()
	cfg := m.config()

	players, err := m.reg.ListPlayers(ctx)
	if err != nil {
		s := newSummary(start)
		s.Err = fmt.Errorf("%w: %w", ErrRegistryUnavailable, err)
		s.Took = m.now().Sub(start)
		m.log.Error("cycle failed: registry unreadable", logx.Err(err))
		return s
	}

	t := &tally{s: newSummary(start)}
	var g errgroup.Group
	g.SetLimit(cfg.Workers)
	for _, p := range players {
		if p.PUUID == "" {
			m.log.Info("player skipped: no puuid", logx.String("player", p.ID))
			t.add(func(s *Summary) { s.Skipped = append(s.Skipped, p.ID) })
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				t.add(func(s *Summary) { s.Unprocessed = append(s.Unprocessed, p.ID) })
				return nil
			}
			m.checkPlayer(ctx, cfg, p, t)
			return nil
		})
	}
	_ = g.Wait()

	s := t.s
	for _, l := range [][]string{s.Checked, s.Skipped, s.Active, s.Unknown, s.Unprocessed, s.BookkeepFailed} {
		sort.Strings(l)
	}
	s.Took = m.now().Sub(start)

	m.log.Info("cycle finished",
		logx.Int("players", len(players)),
		logx.Int("checked", len(s.Checked)),
		logx.Int("skipped", len(s.Skipped)),
		logx.Strs("active", s.Active),
		logx.Int("unknown", len(s.Unknown)),
		logx.Int("notified", s.Notified),
		logx.Int("notify_failed", s.NotifyFailed),
		logx.Int("bookkeep_failed", len(s.BookkeepFailed)),
		logx.Duration("took", s.Took),
	)
	return s
}

// checkPlayer runs poll, detect, notify and bookkeep for one player, in that order.
func (m *Monitor) checkPlayer(ctx context.Context, cfg Config, p storage.Player, t *tally) {
	log := m.log.With(logx.String("player", p.ID), logx.String("region", p.Region))

	polledAt := m.now().UTC()
	st := m.status.CheckStatus(ctx, p.PUUID, p.Region)
	t.add(func(s *Summary) { s.Checked = append(s.Checked, p.ID) })

	upd := storage.PlayerUpdate{LastChecked: &polledAt}
	switch st.Kind {
	case riot.Active:
		t.add(func(s *Summary) { s.Active = append(s.Active, p.ID) })
		gameID := m.handleActive(ctx, cfg, p, st.Game, polledAt, t, log)
		upd.ActiveGameID = &gameID
	case riot.Inactive:
		var zero int64
		upd.ActiveGameID = &zero
	default:
		// Unknown says nothing about the game; the stored game id stays.
		t.add(func(s *Summary) { s.Unknown = append(s.Unknown, p.ID) })
		log.Warn("status unknown", logx.Err(st.Err))
	}

	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepTimeout)
	defer cancel()
	if err := m.reg.UpdatePlayer(bctx, p.ID, upd); err != nil {
		t.add(func(s *Summary) { s.BookkeepFailed = append(s.BookkeepFailed, p.ID) })
		if errors.Is(err, storage.ErrNotFound) {
			log.Warn("bookkeeping skipped: player removed during cycle")
			return
		}
		log.Error("bookkeeping failed", logx.Err(err))
	}
}

// handleActive notifies every recipient unless the session policy suppresses
// it, and returns the game id to store.
func (m *Monitor) handleActive(ctx context.Context, cfg Config, p storage.Player, game *riot.ActiveGame, at time.Time, t *tally, log logx.Logger) int64 {
	var gameID int64
	if game != nil {
		gameID = game.GameID
	}
	log = log.With(logx.Int64("game_id", gameID))

	if cfg.Renotify == PolicySession && gameID != 0 && p.ActiveGameID == gameID {
		log.Debug("notification suppressed: same game already notified")
		t.add(func(s *Summary) { s.Suppressed++ })
		return gameID
	}

	act := Activation{PlayerID: p.ID, PUUID: p.PUUID, ObservedAt: at, Game: game}
	name := game.DisplayName(p.PUUID, p.Name)
	log.Info("player in game", logx.String("name", name), logx.Int("recipients", len(cfg.Recipients)))

	ok := 0
	for _, r := range cfg.Recipients {
		del := m.disp.Notify(ctx, r, name, act)
		if del.OK {
			ok++
			continue
		}
		log.Debug("recipient failed", logx.String("recipient", r), logx.Err(del.Err))
	}
	failed := len(cfg.Recipients) - ok
	t.add(func(s *Summary) {
		s.Notified += ok
		s.NotifyFailed += failed
	})

	// Keep the previous id when nobody was reached so the session policy retries next cycle.
	if ok == 0 && len(cfg.Recipients) > 0 {
		return p.ActiveGameID
	}
	return gameID
}

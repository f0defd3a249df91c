package app

import (
	"context"

	"gamewatch/internal/config"
	"gamewatch/internal/monitor"
	"gamewatch/internal/registry"
	"gamewatch/internal/storage"
	"gamewatch/pkg/logx"
)

// RunOnce runs a single monitor cycle bounded by monitor.cycle_timeout.
func (a *App) RunOnce(ctx context.Context) monitor.Summary {
	if sc, err := mapSchedulerConfig(a.cfgm.Get()); err == nil && sc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sc.Timeout)
		defer cancel()
	}
	return a.mon.Run(ctx)
}

// Resolve resolves one player (upserting it) when name is set, otherwise
// every tracked player that has no puuid yet.
func (a *App) Resolve(ctx context.Context, name, region string) (registry.ResolveResult, error) {
	if name != "" {
		p, err := a.reg.ResolveOne(ctx, name, region)
		if err != nil {
			return registry.ResolveResult{Updated: []string{}, Failed: map[string]string{storage.PlayerID(name, region): err.Error()}}, err
		}
		return registry.ResolveResult{Updated: []string{p.ID}}, nil
	}
	return a.reg.ResolveMissing(ctx)
}

// Seed adds seeds to the registry. With no explicit seeds it falls back to
// the config players, then to GAMEWATCH_PLAYER_NAMES/REGIONS.
func (a *App) Seed(ctx context.Context, seeds []registry.Seed) (registry.SeedResult, error) {
	if len(seeds) == 0 {
		seeds = seedsFromConfig(a.cfgm.Get(), config.EnvPlayers(a.env))
	}
	if len(seeds) == 0 {
		a.log.Warn("nothing to seed: no players in flags, config or environment")
	}
	return a.reg.Seed(ctx, seeds)
}

func (a *App) Players(ctx context.Context) ([]storage.Player, error) {
	return a.store.ListPlayers(ctx)
}

// History lists delivered notifications, newest first.
func (a *App) History(ctx context.Context, limit int) ([]storage.NotificationRecord, error) {
	recs, err := a.store.ListNotifications(ctx, limit)
	if err != nil {
		return nil, err
	}
	a.log.Debug("history listed", logx.Int("records", len(recs)), logx.Int("limit", limit))
	return recs, nil
}

// Package registry maintains the set of tracked players: seeding it from
// configuration and resolving summoner names to puuids.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gamewatch/internal/storage"
	"gamewatch/pkg/logx"
)

// Store is the subset of storage.Store used here.
type Store interface {
	ListPlayers(ctx context.Context) ([]storage.Player, error)
	GetPlayer(ctx context.Context, id string) (storage.Player, error)
	AddPlayer(ctx context.Context, p storage.Player) (bool, error)
	UpdatePlayer(ctx context.Context, id string, u storage.PlayerUpdate) error
}

type Resolver interface {
	ResolvePUUID(ctx context.Context, name, region string) (string, error)
}

// Seed is one player to track.
type Seed struct {
	Name   string
	Region string
}

// ParseSeed parses "name#region".
func ParseSeed(s string) (Seed, error) {
	i := strings.LastIndex(s, "#")
	if i <= 0 || i == len(s)-1 {
		return Seed{}, fmt.Errorf("invalid player %q (want name#region)", s)
	}
	return Seed{Name: strings.TrimSpace(s[:i]), Region: storage.NormalizeRegion(s[i+1:])}, nil
}

type SeedResult struct {
	Added    []string `json:"added"`
	Existing []string `json:"existing"`
	Invalid  int      `json:"invalid"`
}

type ResolveResult struct {
	Updated []string          `json:"updated"`
	Failed  map[string]string `json:"failed,omitempty"`
}

type Service struct {
	store    Store
	resolver Resolver
	log      logx.Logger
}

// New builds the service. resolver may be nil when only seeding is needed.
func New(store Store, resolver Resolver, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{store: store, resolver: resolver, log: log.With(logx.String("comp", "registry"))}
}

// Seed inserts every seed that is not yet tracked. Seeds without a name or
// region are counted as invalid and skipped.
func (s *Service) Seed(ctx context.Context, seeds []Seed) (SeedResult, error) {
	res := SeedResult{Added: []string{}, Existing: []string{}}
	for _, sd := range seeds {
		name, region := strings.TrimSpace(sd.Name), storage.NormalizeRegion(sd.Region)
		if name == "" || region == "" {
			res.Invalid++
			continue
		}
		p := storage.Player{ID: storage.PlayerID(name, region), Name: name, Region: region}
		created, err := s.store.AddPlayer(ctx, p)
		if err != nil {
			return res, fmt.Errorf("add %s: %w", p.ID, err)
		}
		if created {
			s.log.Info("player added", logx.String("player", p.ID))
			res.Added = append(res.Added, p.ID)
		} else {
			s.log.Debug("player already tracked", logx.String("player", p.ID))
			res.Existing = append(res.Existing, p.ID)
		}
	}
	return res, nil
}

// ResolveOne resolves a single player and stores the puuid, adding the
// player first when it is not tracked yet.
func (s *Service) ResolveOne(ctx context.Context, name, region string) (storage.Player, error) {
	if s.resolver == nil {
		return storage.Player{}, errors.New("no resolver configured")
	}
	name, region = strings.TrimSpace(name), storage.NormalizeRegion(region)
	puuid, err := s.resolver.ResolvePUUID(ctx, name, region)
	if err != nil {
		return storage.Player{}, err
	}

	id := storage.PlayerID(name, region)
	if _, err := s.store.AddPlayer(ctx, storage.Player{ID: id, Name: name, Region: region, PUUID: puuid}); err != nil {
		return storage.Player{}, fmt.Errorf("add %s: %w", id, err)
	}
	if err := s.store.UpdatePlayer(ctx, id, storage.PlayerUpdate{PUUID: &puuid}); err != nil {
		return storage.Player{}, fmt.Errorf("update %s: %w", id, err)
	}
	s.log.Info("puuid resolved", logx.String("player", id))
	return s.store.GetPlayer(ctx, id)
}

// ResolveMissing resolves every tracked player without a puuid. A failed
// lookup is recorded and the rest continue.
func (s *Service) ResolveMissing(ctx context.Context) (ResolveResult, error) {
	if s.resolver == nil {
		return ResolveResult{}, errors.New("no resolver configured")
	}
	players, err := s.store.ListPlayers(ctx)
	if err != nil {
		return ResolveResult{}, fmt.Errorf("list players: %w", err)
	}

	res := ResolveResult{Updated: []string{}, Failed: map[string]string{}}
	for _, p := range players {
		if p.PUUID != "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		puuid, err := s.resolver.ResolvePUUID(ctx, p.Name, p.Region)
		if err == nil {
			err = s.store.UpdatePlayer(ctx, p.ID, storage.PlayerUpdate{PUUID: &puuid})
		}
		if err != nil {
			s.log.Warn("puuid not resolved", logx.String("player", p.ID), logx.Err(err))
			res.Failed[p.ID] = err.Error()
			continue
		}
		res.Updated = append(res.Updated, p.ID)
	}
	sort.Strings(res.Updated)
	s.log.Info("puuid resolution finished", logx.Int("updated", len(res.Updated)), logx.Int("failed", len(res.Failed)))
	return res, nil
}

package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gamewatch/pkg/logx"
)

// fileStore keeps the registry without a database.
//
// Files:
//   - <prefix>.players.json        (snapshot, rewritten atomically on every change)
//   - <prefix>.notifications.jsonl (append-only JSON Lines)
//   - <prefix>.lock                (advisory lock shared by every process using the store)
//
// The snapshot is re-read on every operation so that a daemon and a CLI
// working on the same files see each other's writes.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	lockFile    *os.File
	playersPath string

	notifPath string
	notifFile *os.File
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	playersPath := prefix + ".players.json"
	notifPath := prefix + ".notifications.jsonl"

	lf, err := os.OpenFile(prefix+".lock", os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}

	s := &fileStore{
		log:         log,
		lockFile:    lf,
		playersPath: playersPath,
		notifPath:   notifPath,
	}

	var count int
	if err := s.locked(false, func() error {
		players, err := s.loadLocked()
		count = len(players)
		return err
	}); err != nil {
		_ = lf.Close()
		return nil, fmt.Errorf("load %s: %w", playersPath, err)
	}

	nf, err := os.OpenFile(notifPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		_ = lf.Close()
		return nil, err
	}
	s.notifFile = nf

	log.Debug("file store opened", logx.String("players", playersPath), logx.Int("count", count))
	return s, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notifFile == nil {
		return nil
	}
	err := errors.Join(s.notifFile.Close(), s.lockFile.Close())
	s.notifFile = nil
	return err
}

// locked runs fn under the inter-process lock. Callers hold s.mu.
func (s *fileStore) locked(exclusive bool, fn func() error) error {
	if err := lockFile(s.lockFile, exclusive); err != nil {
		return fmt.Errorf("lock store: %w", err)
	}
	defer func() { _ = unlockFile(s.lockFile) }()
	return fn()
}

func (s *fileStore) ListPlayers(ctx context.Context) ([]Player, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notifFile == nil {
		return nil, ErrDisabled
	}
	var out []Player
	err := s.locked(false, func() error {
		players, err := s.loadLocked()
		if err != nil {
			return err
		}
		out = make([]Player, 0, len(players))
		for _, p := range players {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fileStore) GetPlayer(ctx context.Context, id string) (Player, error) {
	if err := ctx.Err(); err != nil {
		return Player{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notifFile == nil {
		return Player{}, ErrDisabled
	}
	var p Player
	err := s.locked(false, func() error {
		players, err := s.loadLocked()
		if err != nil {
			return err
		}
		var ok bool
		if p, ok = players[id]; !ok {
			return ErrNotFound
		}
		return nil
	})
	return p, err
}

func (s *fileStore) AddPlayer(ctx context.Context, p Player) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if p.ID == "" {
		p.ID = PlayerID(p.Name, p.Region)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notifFile == nil {
		return false, ErrDisabled
	}
	created := false
	err := s.locked(true, func() error {
		players, err := s.loadLocked()
		if err != nil {
			return err
		}
		if _, ok := players[p.ID]; ok {
			return nil
		}
		now := time.Now().UTC()
		p.CreatedAt, p.UpdatedAt = now, now
		players[p.ID] = p
		if err := s.saveLocked(players); err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

func (s *fileStore) UpdatePlayer(ctx context.Context, id string, u PlayerUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notifFile == nil {
		return ErrDisabled
	}
	return s.locked(true, func() error {
		players, err := s.loadLocked()
		if err != nil {
			return err
		}
		next, ok := players[id]
		if !ok {
			return ErrNotFound
		}
		if u.empty() {
			return nil
		}
		u.apply(&next)
		next.UpdatedAt = time.Now().UTC()
		players[id] = next
		return s.saveLocked(players)
	})
}

func (s *fileStore) AppendNotification(ctx context.Context, r NotificationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notifFile == nil {
		return errors.New("notification log closed")
	}
	return s.locked(true, func() error {
		return json.NewEncoder(s.notifFile).Encode(r)
	})
}

func (s *fileStore) ListNotifications(ctx context.Context, limit int) ([]NotificationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.notifPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Ring of the last `limit` records.
	ring := make([]NotificationRecord, 0, limit)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		var r NotificationRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		if len(ring) == limit {
			copy(ring, ring[1:])
			ring = ring[:limit-1]
		}
		ring = append(ring, r)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(ring)-1; i < j; i, j = i+1, j-1 {
		ring[i], ring[j] = ring[j], ring[i]
	}
	return ring, nil
}

// loadLocked reads the current snapshot. A missing file is an empty registry.
func (s *fileStore) loadLocked() (map[string]Player, error) {
	players := map[string]Player{}
	if err := loadPlayersSnapshot(s.playersPath, players); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return players, nil
}

func (s *fileStore) saveLocked(players map[string]Player) error {
	list := make([]Player, 0, len(players))
	for _, p := range players {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	tmp := s.playersPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(list); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.playersPath)
}

func loadPlayersSnapshot(path string, out map[string]Player) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var list []Player
	if err := json.NewDecoder(f).Decode(&list); err != nil {
		return err
	}
	for _, p := range list {
		if p.ID == "" {
			continue
		}
		out[p.ID] = p
	}
	return nil
}

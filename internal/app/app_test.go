package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gamewatch/internal/config"
	"gamewatch/internal/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func riotServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/kr/lol/summoner/v4/summoners/by-name/Faker", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"puuid":"p-faker","name":"Faker"}`))
	})
	mux.HandleFunc("/kr/lol/spectator/v5/active-games/by-summoner/p-faker", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"gameId":4242,"gameMode":"CLASSIC","gameType":"MATCHED_GAME"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, mutate func(cfg map[string]any)) string {
	t.Helper()
	dir := t.TempDir()
	cfg := map[string]any{
		"logging": map[string]any{"level": "error", "console": true},
		"storage": map[string]any{"driver": "file", "path": filepath.Join(dir, "gamewatch.json")},
		"riot":    map[string]any{"api_key": "RGAPI-test", "base_url": "http://127.0.0.1:1/{region}"},
		"monitor": map[string]any{"enabled": false, "schedule": "1h"},
		"notify":  map[string]any{"sender": "", "recipients": []string{}},
	}
	if mutate != nil {
		mutate(cfg)
	}
	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, b, 0o644))
	return path
}

func TestOneShotFlow(t *testing.T) {
	srv := riotServer(t)
	path := writeConfig(t, func(cfg map[string]any) {
		cfg["riot"] = map[string]any{"api_key": "RGAPI-test", "base_url": srv.URL + "/{region}"}
		cfg["players"] = []map[string]string{{"name": "Faker", "region": "KR"}}
	})

	ctx := context.Background()
	a, err := NewApp(ctx, path, nil)
	require.NoError(t, err)
	defer a.Close()

	seeded, err := a.Seed(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Faker#KR"}, seeded.Added)

	resolved, err := a.Resolve(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Faker#KR"}, resolved.Updated)

	s := a.RunOnce(ctx)
	require.NoError(t, s.Err)
	assert.Equal(t, []string{"Faker#KR"}, s.Checked)
	assert.Equal(t, []string{"Faker#KR"}, s.Active)
	assert.Zero(t, s.Notified, "no recipients configured")

	players, err := a.Players(ctx)
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.Equal(t, "p-faker", players[0].PUUID)
	assert.Equal(t, int64(4242), players[0].ActiveGameID)
	assert.False(t, players[0].LastChecked.IsZero())

	recs, err := a.History(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestResolveOneUpserts(t *testing.T) {
	srv := riotServer(t)
	path := writeConfig(t, func(cfg map[string]any) {
		cfg["riot"] = map[string]any{"api_key": "RGAPI-test", "base_url": srv.URL + "/{region}"}
	})
	ctx := context.Background()
	a, err := NewApp(ctx, path, nil)
	require.NoError(t, err)
	defer a.Close()

	res, err := a.Resolve(ctx, "Faker", "KR")
	require.NoError(t, err)
	assert.Equal(t, []string{"Faker#KR"}, res.Updated)

	res, err = a.Resolve(ctx, "Nobody", "KR")
	require.Error(t, err)
	assert.Contains(t, res.Failed, "Nobody#KR")
}

func TestSeedFallsBackToEnv(t *testing.T) {
	t.Setenv("GAMEWATCH_PLAYER_NAMES", "A, B")
	t.Setenv("GAMEWATCH_PLAYER_REGIONS", "euw1,na1")
	path := writeConfig(t, nil)

	ctx := context.Background()
	a, err := NewApp(ctx, path, config.NewEnv())
	require.NoError(t, err)
	defer a.Close()

	res, err := a.Seed(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"A#EUW1", "B#NA1"}, res.Added)

	// explicit seeds win over config and env
	res, err = a.Seed(ctx, []registry.Seed{{Name: "A", Region: "euw1"}, {Name: "C", Region: "kr"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"C#KR"}, res.Added)
	assert.Equal(t, []string{"A#EUW1"}, res.Existing)
}

func TestValidateRejectsIncompleteNotify(t *testing.T) {
	path := writeConfig(t, nil)
	a, err := NewApp(context.Background(), path, nil)
	require.NoError(t, err)
	defer a.Close()

	cfg := *a.cfgm.Get()
	require.NoError(t, a.validate(context.Background(), &cfg))

	cfg.Notify.SMTP.Host = "smtp.example.com"
	cfg.Notify.Sender = ""
	assert.Error(t, a.validate(context.Background(), &cfg))

	cfg.Notify.Sender = "bot@example.com"
	cfg.Monitor.CycleTimeout = "soon"
	assert.Error(t, a.validate(context.Background(), &cfg))
}

func TestStartApplyStop(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	path := writeConfig(t, nil)
	a, err := NewApp(context.Background(), path, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))
	assert.False(t, a.sched.Enabled())
	assert.True(t, a.sched.Next().IsZero())

	oldCfg := a.cfgm.Get()
	newCfg := *oldCfg
	on := true
	newCfg.Monitor.Enabled = &on
	newCfg.Monitor.Renotify = config.RenotifySession
	a.apply(oldCfg, &newCfg)
	assert.True(t, a.sched.Enabled())
	assert.False(t, a.sched.Next().IsZero(), "reload enables the trigger")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	require.NoError(t, a.Stop(stopCtx, StopAppStop))
	assert.NoError(t, a.Err())
	select {
	case <-a.Done():
	default:
		t.Fatal("Done must be closed after Stop")
	}
}

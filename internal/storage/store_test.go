package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gamewatch/pkg/logx"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, driver string) Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gamewatch.db")
	st, err := Open(context.Background(), Config{Driver: driver, Path: path}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

var drivers = []string{"file", "sqlite"}

func TestPlayersRoundTrip(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			st := openTestStore(t, driver)

			players, err := st.ListPlayers(ctx)
			require.NoError(t, err)
			assert.Empty(t, players)

			created, err := st.AddPlayer(ctx, Player{Name: "Faker", Region: "KR"})
			require.NoError(t, err)
			assert.True(t, created)

			created, err = st.AddPlayer(ctx, Player{Name: "Faker", Region: "KR", PUUID: "other"})
			require.NoError(t, err)
			assert.False(t, created, "insert-if-absent must not overwrite")

			_, err = st.AddPlayer(ctx, Player{ID: "Caps#EUW1", Name: "Caps", Region: "EUW1", PUUID: "p-caps"})
			require.NoError(t, err)

			players, err = st.ListPlayers(ctx)
			require.NoError(t, err)
			require.Len(t, players, 2)
			assert.Equal(t, "Caps#EUW1", players[0].ID)
			assert.Equal(t, "Faker#KR", players[1].ID)
			assert.Empty(t, players[1].PUUID)
			assert.True(t, players[1].LastChecked.IsZero())
			assert.False(t, players[1].CreatedAt.IsZero())
		})
	}
}

func TestUpdatePlayerPartial(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			st := openTestStore(t, driver)
			_, err := st.AddPlayer(ctx, Player{Name: "Faker", Region: "KR", PUUID: "p1"})
			require.NoError(t, err)

			checked := time.Date(2024, 5, 1, 12, 30, 0, 0, time.FixedZone("CEST", 2*3600))
			gameID := int64(4242)
			require.NoError(t, st.UpdatePlayer(ctx, "Faker#KR", PlayerUpdate{LastChecked: &checked, ActiveGameID: &gameID}))

			p, err := st.GetPlayer(ctx, "Faker#KR")
			require.NoError(t, err)
			assert.True(t, p.LastChecked.Equal(checked))
			assert.Equal(t, time.UTC, p.LastChecked.Location())
			assert.Equal(t, int64(4242), p.ActiveGameID)
			assert.Equal(t, "p1", p.PUUID, "unset fields are preserved")

			puuid := "p2"
			require.NoError(t, st.UpdatePlayer(ctx, "Faker#KR", PlayerUpdate{PUUID: &puuid}))
			p, err = st.GetPlayer(ctx, "Faker#KR")
			require.NoError(t, err)
			assert.Equal(t, "p2", p.PUUID)
			assert.Equal(t, int64(4242), p.ActiveGameID)
			assert.True(t, p.LastChecked.Equal(checked))
		})
	}
}

func TestUpdatePlayerNotFound(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			st := openTestStore(t, driver)
			now := time.Now()
			err := st.UpdatePlayer(ctx, "ghost#NA1", PlayerUpdate{LastChecked: &now})
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, st.UpdatePlayer(ctx, "ghost#NA1", PlayerUpdate{}), ErrNotFound)

			_, err = st.GetPlayer(ctx, "ghost#NA1")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestNotificationsNewestFirst(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			st := openTestStore(t, driver)

			base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			for i := 0; i < 5; i++ {
				require.NoError(t, st.AppendNotification(ctx, NotificationRecord{
					SentAt:     base.Add(time.Duration(i) * time.Minute),
					Recipient:  "a@example.com",
					PlayerName: "Faker",
					GameMode:   "CLASSIC",
					GameType:   "MATCHED_GAME",
					Channel:    "email",
				}))
			}

			recs, err := st.ListNotifications(ctx, 3)
			require.NoError(t, err)
			require.Len(t, recs, 3)
			assert.True(t, recs[0].SentAt.Equal(base.Add(4*time.Minute)))
			assert.True(t, recs[2].SentAt.Equal(base.Add(2*time.Minute)))
			assert.NotEqual(t, uuid.Nil, recs[0].ID)
			assert.NotEqual(t, recs[0].ID, recs[1].ID)
			assert.Equal(t, "CLASSIC", recs[0].GameMode)

			all, err := st.ListNotifications(ctx, 0)
			require.NoError(t, err)
			assert.Len(t, all, 5)
		})
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "registry.json")
	st, err := Open(ctx, Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	_, err = st.AddPlayer(ctx, Player{Name: "Faker", Region: "KR", PUUID: "p1"})
	require.NoError(t, err)
	require.NoError(t, st.AppendNotification(ctx, NotificationRecord{Recipient: "a@example.com", PlayerName: "Faker"}))
	require.NoError(t, st.Close())

	st, err = Open(ctx, Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()
	p, err := st.GetPlayer(ctx, "Faker#KR")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.PUUID)
	recs, err := st.ListNotifications(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mongo"}, logx.Nop())
	require.Error(t, err)
	_, err = Open(context.Background(), Config{}, logx.Nop())
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestFileStoreSharedBetweenHandles(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "registry.json")
	daemon, err := Open(ctx, Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	defer daemon.Close()
	_, err = daemon.AddPlayer(ctx, Player{Name: "A", Region: "NA1"})
	require.NoError(t, err)

	cli, err := Open(ctx, Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	_, err = cli.AddPlayer(ctx, Player{Name: "B", Region: "EUW1"})
	require.NoError(t, err)
	puuid := "p-a"
	require.NoError(t, cli.UpdatePlayer(ctx, "A#NA1", PlayerUpdate{PUUID: &puuid}))
	require.NoError(t, cli.Close())

	players, err := daemon.ListPlayers(ctx)
	require.NoError(t, err)
	require.Len(t, players, 2)

	checked := time.Now()
	require.NoError(t, daemon.UpdatePlayer(ctx, "A#NA1", PlayerUpdate{LastChecked: &checked}))

	reopened, err := Open(ctx, Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	defer reopened.Close()
	b, err := reopened.GetPlayer(ctx, "B#EUW1")
	require.NoError(t, err)
	assert.Equal(t, "B", b.Name)
	a, err := reopened.GetPlayer(ctx, "A#NA1")
	require.NoError(t, err)
	assert.Equal(t, "p-a", a.PUUID)
	assert.False(t, a.LastChecked.IsZero())
}

func TestPlayerID(t *testing.T) {
	assert.Equal(t, "Faker#KR", PlayerID(" Faker ", "KR"))
	assert.Equal(t, "Faker#KR", PlayerID("Faker", " kr "))
}

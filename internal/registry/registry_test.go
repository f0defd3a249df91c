package registry

import (
	"context"
	"path/filepath"
	"testing"

	"gamewatch/internal/riot"
	"gamewatch/internal/storage"
	"gamewatch/pkg/logx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver map[string]string

func (f fakeResolver) ResolvePUUID(ctx context.Context, name, region string) (string, error) {
	if p, ok := f[name+"#"+region]; ok {
		return p, nil
	}
	return "", riot.ErrNotFound
}

func openStore(t *testing.T) storage.Store {
	t.Helper()
	st, err := storage.Open(context.Background(), storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "gw.json")}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSeedInsertsIfAbsent(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	svc := New(st, nil, logx.Nop())

	res, err := svc.Seed(ctx, []Seed{{Name: "Faker", Region: "KR"}, {Name: "Caps", Region: "EUW1"}, {Name: "", Region: "NA1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Faker#KR", "Caps#EUW1"}, res.Added)
	assert.Equal(t, 1, res.Invalid)

	puuid := "p-faker"
	require.NoError(t, st.UpdatePlayer(ctx, "Faker#KR", storage.PlayerUpdate{PUUID: &puuid}))

	res, err = svc.Seed(ctx, []Seed{{Name: "Faker", Region: "KR"}})
	require.NoError(t, err)
	assert.Empty(t, res.Added)
	assert.Equal(t, []string{"Faker#KR"}, res.Existing)

	p, err := st.GetPlayer(ctx, "Faker#KR")
	require.NoError(t, err)
	assert.Equal(t, "p-faker", p.PUUID, "reseeding keeps existing data")
}

func TestResolveOneUpserts(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	svc := New(st, fakeResolver{"Faker#KR": "p-faker"}, logx.Nop())

	p, err := svc.ResolveOne(ctx, "Faker", "KR")
	require.NoError(t, err)
	assert.Equal(t, "Faker#KR", p.ID)
	assert.Equal(t, "p-faker", p.PUUID)

	_, err = svc.ResolveOne(ctx, "Nobody", "KR")
	assert.ErrorIs(t, err, riot.ErrNotFound)
	_, err = st.GetPlayer(ctx, "Nobody#KR")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRegionCaseDoesNotDuplicate(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	svc := New(st, fakeResolver{"Faker#KR": "p-faker"}, logx.Nop())

	_, err := svc.Seed(ctx, []Seed{{Name: "Faker", Region: "KR"}})
	require.NoError(t, err)
	res, err := svc.Seed(ctx, []Seed{{Name: "Faker", Region: "kr"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Faker#KR"}, res.Existing)

	p, err := svc.ResolveOne(ctx, "Faker", "kr")
	require.NoError(t, err)
	assert.Equal(t, "Faker#KR", p.ID)
	assert.Equal(t, "KR", p.Region)

	players, err := st.ListPlayers(ctx)
	require.NoError(t, err)
	assert.Len(t, players, 1)
}

func TestResolveMissing(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	svc := New(st, fakeResolver{"Faker#KR": "p-faker", "Caps#EUW1": "p-caps"}, logx.Nop())
	_, err := svc.Seed(ctx, []Seed{{"Faker", "KR"}, {"Caps", "EUW1"}, {"Ghost", "NA1"}})
	require.NoError(t, err)
	_, err = st.AddPlayer(ctx, storage.Player{Name: "Known", Region: "NA1", PUUID: "p-known"})
	require.NoError(t, err)

	res, err := svc.ResolveMissing(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Caps#EUW1", "Faker#KR"}, res.Updated)
	assert.Contains(t, res.Failed, "Ghost#NA1")
	assert.NotContains(t, res.Failed, "Known#NA1")

	p, err := st.GetPlayer(ctx, "Caps#EUW1")
	require.NoError(t, err)
	assert.Equal(t, "p-caps", p.PUUID)
}

func TestParseSeed(t *testing.T) {
	s, err := ParseSeed("Hide on bush#KR")
	require.NoError(t, err)
	assert.Equal(t, Seed{Name: "Hide on bush", Region: "KR"}, s)

	s, err = ParseSeed("Caps#euw1")
	require.NoError(t, err)
	assert.Equal(t, "EUW1", s.Region)

	for _, bad := range []string{"", "noregion", "#KR", "Faker#"} {
		_, err := ParseSeed(bad)
		assert.Error(t, err, bad)
	}
}

package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gamewatch/internal/notifier"
	"gamewatch/internal/riot"
	"gamewatch/internal/storage"
	"gamewatch/pkg/logx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	mu        sync.Mutex
	players   map[string]storage.Player
	listErr   error
	updateErr map[string]error
	updates   map[string][]storage.PlayerUpdate
}

func newFakeRegistry(players ...storage.Player) *fakeRegistry {
	r := &fakeRegistry{
		players:   map[string]storage.Player{},
		updateErr: map[string]error{},
		updates:   map[string][]storage.PlayerUpdate{},
	}
	for _, p := range players {
		r.players[p.ID] = p
	}
	return r
}

func (r *fakeRegistry) ListPlayers(ctx context.Context) ([]storage.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]storage.Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	return out, nil
}

func (r *fakeRegistry) UpdatePlayer(ctx context.Context, id string, u storage.PlayerUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.updateErr[id]; err != nil {
		return err
	}
	p, ok := r.players[id]
	if !ok {
		return storage.ErrNotFound
	}
	r.updates[id] = append(r.updates[id], u)
	if u.LastChecked != nil {
		p.LastChecked = *u.LastChecked
	}
	if u.ActiveGameID != nil {
		p.ActiveGameID = *u.ActiveGameID
	}
	r.players[id] = p
	return nil
}

func (r *fakeRegistry) updated(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates[id])
}

func (r *fakeRegistry) player(id string) storage.Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.players[id]
}

type fakeStatus struct {
	mu     sync.Mutex
	byID   map[string]riot.Status
	calls  map[string]int
	before func(puuid string)
}

func newFakeStatus() *fakeStatus {
	return &fakeStatus{byID: map[string]riot.Status{}, calls: map[string]int{}}
}

func (f *fakeStatus) set(puuid string, st riot.Status) {
	f.mu.Lock()
	f.byID[puuid] = st
	f.mu.Unlock()
}

func (f *fakeStatus) CheckStatus(ctx context.Context, puuid, region string) riot.Status {
	if f.before != nil {
		f.before(puuid)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[puuid]++
	st, ok := f.byID[puuid]
	if !ok {
		return riot.Status{Kind: riot.Inactive}
	}
	return st
}

type notifyCall struct {
	Recipient, Name, PlayerID string
}

type fakeDispatcher struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls []notifyCall
}

func (f *fakeDispatcher) Notify(ctx context.Context, recipient, displayName string, act Activation) notifier.Delivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notifyCall{Recipient: recipient, Name: displayName, PlayerID: act.PlayerID})
	if f.fail[recipient] {
		return notifier.Delivery{Err: errors.New("send failed")}
	}
	return notifier.Delivery{OK: true, Ref: "ref"}
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func active(gameID int64) riot.Status {
	return riot.Status{Kind: riot.Active, Game: &riot.ActiveGame{GameID: gameID, GameMode: "CLASSIC", GameType: "MATCHED_GAME"}}
}

func newMonitor(cfg Config, reg Registry, st StatusClient, d Dispatcher) *Monitor {
	return New(cfg, Deps{Registry: reg, Status: st, Dispatcher: d, Log: logx.Nop()})
}

var twoRecipients = []string{"a@example.com", "b@example.com"}

func TestCycleActiveAndSkipped(t *testing.T) {
	reg := newFakeRegistry(
		storage.Player{ID: "A#NA1", Name: "A", Region: "NA1", PUUID: "ext-1"},
		storage.Player{ID: "B#EU1", Name: "B", Region: "EU1"},
	)
	st := newFakeStatus()
	st.set("ext-1", active(1))
	disp := &fakeDispatcher{}

	s := newMonitor(Config{Recipients: twoRecipients}, reg, st, disp).Run(context.Background())

	require.NoError(t, s.Err)
	assert.Equal(t, []string{"A#NA1"}, s.Checked)
	assert.Equal(t, []string{"B#EU1"}, s.Skipped)
	assert.Equal(t, []string{"A#NA1"}, s.Active)
	assert.Equal(t, 2, disp.count())
	assert.Equal(t, 2, s.Notified)
	assert.Equal(t, 1, reg.updated("A#NA1"))
	assert.Equal(t, 0, reg.updated("B#EU1"))
	assert.False(t, reg.player("A#NA1").LastChecked.IsZero())
	assert.True(t, reg.player("B#EU1").LastChecked.IsZero())
}

func TestCycleTransportErrorStillBookkept(t *testing.T) {
	reg := newFakeRegistry(storage.Player{ID: "A#NA1", Name: "A", Region: "NA1", PUUID: "ext-1"})
	st := newFakeStatus()
	st.set("ext-1", riot.Status{Kind: riot.Unknown, Err: errors.New("connection reset")})
	disp := &fakeDispatcher{}

	s := newMonitor(Config{Recipients: twoRecipients}, reg, st, disp).Run(context.Background())

	require.NoError(t, s.Err)
	assert.Equal(t, []string{"A#NA1"}, s.Checked)
	assert.Empty(t, s.Active)
	assert.Equal(t, []string{"A#NA1"}, s.Unknown)
	assert.Zero(t, disp.count())
	assert.Equal(t, 1, reg.updated("A#NA1"))
	assert.False(t, reg.player("A#NA1").LastChecked.IsZero())
}

func TestCheckedEqualsPlayersWithPUUID(t *testing.T) {
	snapshots := [][]storage.Player{
		nil,
		{{ID: "x#NA1", Region: "NA1"}},
		{{ID: "a#NA1", Region: "NA1", PUUID: "1"}, {ID: "b#NA1", Region: "NA1", PUUID: "2"}},
		{{ID: "a#NA1", Region: "NA1", PUUID: "1"}, {ID: "b#NA1", Region: "NA1"}, {ID: "c#KR", Region: "KR", PUUID: "3"}, {ID: "d#KR", Region: "KR"}},
	}
	for i, snap := range snapshots {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			reg := newFakeRegistry(snap...)
			s := newMonitor(Config{Workers: 2}, reg, newFakeStatus(), &fakeDispatcher{}).Run(context.Background())
			require.NoError(t, s.Err)

			want, skipped := []string{}, []string{}
			for _, p := range snap {
				if p.PUUID != "" {
					want = append(want, p.ID)
				} else {
					skipped = append(skipped, p.ID)
				}
			}
			assert.ElementsMatch(t, want, s.Checked)
			assert.ElementsMatch(t, skipped, s.Skipped)
			for _, p := range snap {
				if p.PUUID != "" {
					assert.Equal(t, 1, reg.updated(p.ID), p.ID)
				} else {
					assert.Equal(t, 0, reg.updated(p.ID), p.ID)
				}
			}
		})
	}
}

func TestEmptyRegistry(t *testing.T) {
	disp := &fakeDispatcher{}
	s := newMonitor(Config{Recipients: twoRecipients}, newFakeRegistry(), newFakeStatus(), disp).Run(context.Background())
	require.NoError(t, s.Err)
	assert.Empty(t, s.Checked)
	assert.Empty(t, s.Active)
	assert.Zero(t, disp.count())
}

func TestInactiveAndUnknownNeverNotify(t *testing.T) {
	reg := newFakeRegistry(
		storage.Player{ID: "a#NA1", Region: "NA1", PUUID: "1"},
		storage.Player{ID: "b#NA1", Region: "NA1", PUUID: "2"},
	)
	st := newFakeStatus()
	st.set("1", riot.Status{Kind: riot.Inactive})
	st.set("2", riot.Status{Kind: riot.Unknown, Err: riot.ErrUnexpectedStatus})
	disp := &fakeDispatcher{}

	s := newMonitor(Config{Recipients: twoRecipients}, reg, st, disp).Run(context.Background())
	assert.Zero(t, disp.count())
	assert.Empty(t, s.Active)
	assert.Equal(t, []string{"b#NA1"}, s.Unknown)
}

func TestOneFailingPlayerDoesNotStopOthers(t *testing.T) {
	var players []storage.Player
	st := newFakeStatus()
	for i := 0; i < 10; i++ {
		p := storage.Player{ID: fmt.Sprintf("p%02d#NA1", i), Region: "NA1", PUUID: fmt.Sprintf("id-%d", i)}
		players = append(players, p)
		st.set(p.PUUID, active(int64(i+1)))
	}
	st.set("id-0", riot.Status{Kind: riot.Unknown, Err: errors.New("timeout")})
	reg := newFakeRegistry(players...)
	reg.updateErr["p03#NA1"] = errors.New("write failed")
	disp := &fakeDispatcher{}

	s := newMonitor(Config{Recipients: []string{"a@example.com"}, Workers: 3}, reg, st, disp).Run(context.Background())

	require.NoError(t, s.Err)
	assert.Len(t, s.Checked, 10)
	assert.Len(t, s.Active, 9)
	assert.NotContains(t, s.Active, "p00#NA1")
	assert.Equal(t, 9, disp.count())
	assert.Equal(t, []string{"p03#NA1"}, s.BookkeepFailed)
}

func TestRecipientFailureDoesNotBlockOthers(t *testing.T) {
	reg := newFakeRegistry(storage.Player{ID: "A#NA1", Region: "NA1", PUUID: "ext-1"})
	st := newFakeStatus()
	st.set("ext-1", active(1))
	disp := &fakeDispatcher{fail: map[string]bool{"a@example.com": true}}

	s := newMonitor(Config{Recipients: []string{"a@example.com", "b@example.com", "c@example.com"}}, reg, st, disp).Run(context.Background())

	assert.Equal(t, 3, disp.count())
	assert.Equal(t, 2, s.Notified)
	assert.Equal(t, 1, s.NotifyFailed)
	assert.Equal(t, 1, reg.updated("A#NA1"))
	assert.Nil(t, s.Err)
}

func TestRepeatedCyclesNotifyEveryTime(t *testing.T) {
	reg := newFakeRegistry(
		storage.Player{ID: "A#NA1", Region: "NA1", PUUID: "ext-1"},
		storage.Player{ID: "B#NA1", Region: "NA1", PUUID: "ext-2"},
	)
	st := newFakeStatus()
	st.set("ext-1", active(7))
	disp := &fakeDispatcher{}
	m := newMonitor(Config{Recipients: twoRecipients}, reg, st, disp)

	first := m.Run(context.Background())
	second := m.Run(context.Background())
	assert.Equal(t, first.Active, second.Active)
	assert.Equal(t, []string{"A#NA1"}, second.Active)
	assert.Equal(t, 4, disp.count())
}

func TestSessionPolicy(t *testing.T) {
	reg := newFakeRegistry(storage.Player{ID: "A#NA1", Region: "NA1", PUUID: "ext-1"})
	st := newFakeStatus()
	disp := &fakeDispatcher{}
	m := newMonitor(Config{Recipients: []string{"a@example.com"}, Renotify: PolicySession}, reg, st, disp)
	ctx := context.Background()

	st.set("ext-1", active(100))
	s := m.Run(ctx)
	assert.Equal(t, 1, disp.count())
	assert.Equal(t, int64(100), reg.player("A#NA1").ActiveGameID)

	s = m.Run(ctx)
	assert.Equal(t, 1, disp.count(), "same game is not notified twice")
	assert.Equal(t, 1, s.Suppressed)
	assert.Equal(t, []string{"A#NA1"}, s.Active)

	st.set("ext-1", riot.Status{Kind: riot.Unknown, Err: errors.New("flaky")})
	m.Run(ctx)
	assert.Equal(t, int64(100), reg.player("A#NA1").ActiveGameID, "unknown keeps the stored game")

	st.set("ext-1", active(100))
	m.Run(ctx)
	assert.Equal(t, 1, disp.count())

	st.set("ext-1", riot.Status{Kind: riot.Inactive})
	m.Run(ctx)
	assert.Zero(t, reg.player("A#NA1").ActiveGameID)

	st.set("ext-1", active(100))
	m.Run(ctx)
	assert.Equal(t, 2, disp.count(), "notified again after being seen inactive")

	st.set("ext-1", active(101))
	m.Run(ctx)
	assert.Equal(t, 3, disp.count(), "a new game is a new session")
}

func TestSessionPolicyRetriesWhenAllRecipientsFail(t *testing.T) {
	reg := newFakeRegistry(storage.Player{ID: "A#NA1", Region: "NA1", PUUID: "ext-1"})
	st := newFakeStatus()
	st.set("ext-1", active(100))
	disp := &fakeDispatcher{fail: map[string]bool{"a@example.com": true}}
	m := newMonitor(Config{Recipients: []string{"a@example.com"}, Renotify: PolicySession}, reg, st, disp)

	m.Run(context.Background())
	assert.Zero(t, reg.player("A#NA1").ActiveGameID)
	m.Run(context.Background())
	assert.Equal(t, 2, disp.count())
}

func TestRegistryFailureIsFatal(t *testing.T) {
	reg := newFakeRegistry()
	reg.listErr = errors.New("table missing")
	st := newFakeStatus()
	disp := &fakeDispatcher{}

	s := newMonitor(Config{Recipients: twoRecipients}, reg, st, disp).Run(context.Background())
	require.Error(t, s.Err)
	assert.ErrorIs(t, s.Err, ErrRegistryUnavailable)
	assert.True(t, s.Failed())
	assert.Empty(t, st.calls)
	assert.Zero(t, disp.count())
}

func TestBookkeepingNotFoundIsNonFatal(t *testing.T) {
	reg := newFakeRegistry(storage.Player{ID: "A#NA1", Region: "NA1", PUUID: "ext-1"})
	st := newFakeStatus()
	st.before = func(string) {
		reg.mu.Lock()
		delete(reg.players, "A#NA1")
		reg.mu.Unlock()
	}
	s := newMonitor(Config{}, reg, st, &fakeDispatcher{}).Run(context.Background())
	require.NoError(t, s.Err)
	assert.Equal(t, []string{"A#NA1"}, s.Checked)
	assert.Equal(t, []string{"A#NA1"}, s.BookkeepFailed)
}

func TestLastCheckedIsPerPlayerPollTime(t *testing.T) {
	reg := newFakeRegistry(storage.Player{ID: "A#NA1", Region: "NA1", PUUID: "ext-1"})
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var (
		mu   sync.Mutex
		tick int
	)
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	m := New(Config{}, Deps{Registry: reg, Status: newFakeStatus(), Dispatcher: &fakeDispatcher{}, Now: now})
	s := m.Run(context.Background())

	assert.Equal(t, base.Add(time.Second), s.StartedAt)
	assert.Equal(t, base.Add(2*time.Second), reg.player("A#NA1").LastChecked)
}

func TestDisplayNameFromParticipants(t *testing.T) {
	reg := newFakeRegistry(storage.Player{ID: "old#KR", Name: "old", Region: "KR", PUUID: "p-faker"})
	st := newFakeStatus()
	st.set("p-faker", riot.Status{Kind: riot.Active, Game: &riot.ActiveGame{
		GameID:       9,
		Participants: []riot.Participant{{PUUID: "p-faker", RiotID: "Hide on bush#KR1"}},
	}})
	disp := &fakeDispatcher{}
	newMonitor(Config{Recipients: []string{"a@example.com"}}, reg, st, disp).Run(context.Background())

	require.Len(t, disp.calls, 1)
	assert.Equal(t, "Hide on bush#KR1", disp.calls[0].Name)
	assert.Equal(t, "old#KR", disp.calls[0].PlayerID)
}

func TestCanceledCycleLeavesPlayersUnprocessed(t *testing.T) {
	reg := newFakeRegistry(
		storage.Player{ID: "a#NA1", Region: "NA1", PUUID: "1"},
		storage.Player{ID: "b#NA1", Region: "NA1", PUUID: "2"},
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newMonitor(Config{}, reg, newFakeStatus(), &fakeDispatcher{}).Run(ctx)
	require.NoError(t, s.Err)
	assert.Equal(t, []string{"a#NA1", "b#NA1"}, s.Unprocessed)
	assert.Empty(t, s.Checked)
}

func TestApplySwapsRecipients(t *testing.T) {
	reg := newFakeRegistry(storage.Player{ID: "A#NA1", Region: "NA1", PUUID: "ext-1"})
	st := newFakeStatus()
	st.set("ext-1", active(1))
	disp := &fakeDispatcher{}
	m := newMonitor(Config{Recipients: []string{"a@example.com"}}, reg, st, disp)
	m.Run(context.Background())
	m.Apply(Config{Recipients: twoRecipients})
	m.Run(context.Background())
	assert.Equal(t, 3, disp.count())
}

func TestSummaryJSON(t *testing.T) {
	s := newSummary(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	s.Checked = []string{"A#NA1"}
	s.Took = 1500 * time.Millisecond
	b, err := json.Marshal(s)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, []any{"A#NA1"}, got["checked"])
	assert.Equal(t, []any{}, got["active"])
	assert.Equal(t, "1.5s", got["took"])
	assert.NotContains(t, got, "error")

	s.Err = fmt.Errorf("%w: boom", ErrRegistryUnavailable)
	b, err = json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"error":"registry unavailable: boom"`)
}

// Real dispatcher and file store: every successful send leaves one durable record.
func TestSuccessfulSendsAreRecorded(t *testing.T) {
	ctx := context.Background()
	st, err := storage.Open(ctx, storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "gw.json")}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	_, err = st.AddPlayer(ctx, storage.Player{Name: "A", Region: "NA1", PUUID: "ext-1"})
	require.NoError(t, err)
	_, err = st.AddPlayer(ctx, storage.Player{Name: "B", Region: "NA1", PUUID: "ext-2"})
	require.NoError(t, err)

	status := newFakeStatus()
	status.set("ext-1", active(5))
	disp := notifier.NewWithChannels(st, logx.Nop(), &recordingChannel{name: notifier.ChannelEmail})
	m := New(Config{Recipients: twoRecipients}, Deps{Registry: st, Status: status, Dispatcher: disp})

	s := m.Run(ctx)
	require.NoError(t, s.Err)
	assert.Equal(t, 2, s.Notified)

	recs, err := st.ListNotifications(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.ElementsMatch(t, twoRecipients, []string{recs[0].Recipient, recs[1].Recipient})

	a, err := st.GetPlayer(ctx, "A#NA1")
	require.NoError(t, err)
	assert.False(t, a.LastChecked.IsZero())
	assert.Equal(t, int64(5), a.ActiveGameID)
}

type recordingChannel struct{ name string }

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Send(ctx context.Context, to string, msg notifier.Message) (string, error) {
	return "<" + to + ">", nil
}

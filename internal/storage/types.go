package storage

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrNotFound = errors.New("player not found")
)

// Config configures storage.
type Config struct {
	Driver      string
	Path        string        // file and sqlite
	DSN         string        // postgres
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Player is one tracked entity.
type Player struct {
	ID          string    `json:"id"` // name#region
	Name        string    `json:"name"`
	Region      string    `json:"region"`
	PUUID       string    `json:"puuid,omitempty"`
	LastChecked time.Time `json:"last_checked,omitempty"`

	// ActiveGameID is the game the player was last seen in; 0 when not in game.
	ActiveGameID int64 `json:"active_game_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizeRegion returns the canonical (upper-case) form of a region code.
func NormalizeRegion(region string) string {
	return strings.ToUpper(strings.TrimSpace(region))
}

// PlayerID builds the registry key for name and region.
// Region case is not significant.
func PlayerID(name, region string) string {
	return strings.TrimSpace(name) + "#" + NormalizeRegion(region)
}

// PlayerUpdate is a partial update; nil fields are left untouched.
type PlayerUpdate struct {
	LastChecked  *time.Time
	PUUID        *string
	ActiveGameID *int64
}

func (u PlayerUpdate) empty() bool {
	return u.LastChecked == nil && u.PUUID == nil && u.ActiveGameID == nil
}

func (u PlayerUpdate) apply(p *Player) {
	if u.LastChecked != nil {
		p.LastChecked = u.LastChecked.UTC()
	}
	if u.PUUID != nil {
		p.PUUID = *u.PUUID
	}
	if u.ActiveGameID != nil {
		p.ActiveGameID = *u.ActiveGameID
	}
}

// NotificationRecord is one successful delivery.
type NotificationRecord struct {
	ID          uuid.UUID `json:"id"`
	SentAt      time.Time `json:"sent_at"`
	Recipient   string    `json:"recipient"`
	PlayerName  string    `json:"player_name"`
	GameMode    string    `json:"game_mode"`
	GameType    string    `json:"game_type"`
	Channel     string    `json:"channel"`
	DeliveryRef string    `json:"delivery_ref"`
}

func (r *NotificationRecord) normalize() {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.SentAt.IsZero() {
		r.SentAt = time.Now()
	}
	r.SentAt = r.SentAt.UTC()
}

// timeLayout is RFC3339 with fixed-width nanoseconds so stored text sorts chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

const defaultListLimit = 50

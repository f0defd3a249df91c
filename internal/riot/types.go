package riot

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrNotFound         = errors.New("not found")
)

// StatusKind is the outcome of a status query.
type StatusKind int

const (
	Unknown StatusKind = iota
	Inactive
	Active
)

func (k StatusKind) String() string {
	switch k {
	case Active:
		return "active"
	case Inactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// Status is the result of CheckStatus. Game is set only for Active, Err only for Unknown.
type Status struct {
	Kind StatusKind
	Game *ActiveGame
	Err  error
}

// ActiveGame is the subset of the spectator payload gamewatch reads.
// Raw holds the verbatim response body.
type ActiveGame struct {
	GameID        int64         `json:"gameId"`
	GameMode      string        `json:"gameMode"`
	GameType      string        `json:"gameType"`
	GameStartTime int64         `json:"gameStartTime"` // unix millis
	GameLength    int64         `json:"gameLength"`    // seconds
	PlatformID    string        `json:"platformId"`
	Participants  []Participant `json:"participants"`

	Raw json.RawMessage `json:"-"`
}

type Participant struct {
	PUUID        string `json:"puuid"`
	RiotID       string `json:"riotId"`
	SummonerName string `json:"summonerName"`
	ChampionID   int64  `json:"championId"`
	TeamID       int64  `json:"teamId"`
}

// StartedAt returns the game start time, or zero when the payload has none.
func (g *ActiveGame) StartedAt() time.Time {
	if g == nil || g.GameStartTime <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(g.GameStartTime).UTC()
}

// DisplayName returns the name of the participant with the given puuid:
// riotId when present, else summonerName, else fallback.
func (g *ActiveGame) DisplayName(puuid, fallback string) string {
	if g == nil || puuid == "" {
		return fallback
	}
	for _, p := range g.Participants {
		if p.PUUID != puuid {
			continue
		}
		if n := strings.TrimSpace(p.RiotID); n != "" {
			return n
		}
		if n := strings.TrimSpace(p.SummonerName); n != "" {
			return n
		}
		break
	}
	return fallback
}

package config

type Config struct {
	Logging LoggingConfig `json:"logging"`
	Storage StorageConfig `json:"storage"`
	Riot    RiotConfig    `json:"riot"`
	Monitor MonitorConfig `json:"monitor"`
	Notify  NotifyConfig  `json:"notify"`

	// Players seeds the registry on `gamewatch seed` (insert-if-absent).
	Players []PlayerSeed `json:"players,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects the registry backend.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/gamewatch.db" }
//
// Driver values: "file" (JSON snapshot), "sqlite", "postgres" (uses DSN).
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"`          // postgres only (do not log)
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// RiotConfig controls the spectator/summoner API client.
//
// BaseURL is a template; "{region}" is replaced by the lower-cased player region.
// Default: "https://{region}.api.riotgames.com".
type RiotConfig struct {
	APIKey     string `json:"api_key"` // do not log
	BaseURL    string `json:"base_url,omitempty"`
	Timeout    string `json:"timeout,omitempty"` // default "10s"
	RatePerSec int    `json:"rate_per_sec,omitempty"`
	Burst      int    `json:"burst,omitempty"`
}

// MonitorConfig controls the polling cycle.
//
// Schedule accepts cron ("*/2 * * * *", "@every 2m"), a Go duration ("2m") or HH:MM ("00:02").
// Renotify is "every_poll" (default) or "session".
// Enabled defaults to true when omitted.
type MonitorConfig struct {
	Enabled      *bool  `json:"enabled,omitempty"`
	Schedule     string `json:"schedule"`
	Timezone     string `json:"timezone,omitempty"`
	Workers      int    `json:"workers,omitempty"`
	CycleTimeout string `json:"cycle_timeout,omitempty"`
	Renotify     string `json:"renotify,omitempty"`
}

// NotifyConfig controls notification delivery.
//
// Recipients are email addresses, or "telegram:<chat_id>" for Telegram chats.
type NotifyConfig struct {
	Sender      string         `json:"sender"`
	Recipients  []string       `json:"recipients"`
	RatePerSec  int            `json:"rate_per_sec,omitempty"`
	SendTimeout string         `json:"send_timeout,omitempty"`
	SMTP        SMTPConfig     `json:"smtp"`
	Telegram    TelegramConfig `json:"telegram"`
}

type SMTPConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"` // do not log
}

type TelegramConfig struct {
	Token string `json:"token,omitempty"` // do not log
}

type PlayerSeed struct {
	Name   string `json:"name"`
	Region string `json:"region"`
}

// IsEnabled reports whether polling is on; an omitted flag counts as on.
func (m MonitorConfig) IsEnabled() bool { return m.Enabled == nil || *m.Enabled }

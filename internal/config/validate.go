package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gamewatch/internal/scheduler"
)

const (
	RenotifyEveryPoll = "every_poll"
	RenotifySession   = "session"
)

// ApplyDefaults fills omitted operational knobs. It never invents recipients,
// credentials or the sender identity.
func ApplyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
	if !cfg.Logging.Console && !cfg.Logging.File.Enabled {
		cfg.Logging.Console = true
	}
	if strings.TrimSpace(cfg.Storage.Driver) == "" {
		cfg.Storage.Driver = "file"
	}
	if cfg.Storage.Driver != "postgres" && strings.TrimSpace(cfg.Storage.Path) == "" {
		cfg.Storage.Path = "./data/gamewatch.json"
	}
	if strings.TrimSpace(cfg.Riot.BaseURL) == "" {
		cfg.Riot.BaseURL = "https://{region}.api.riotgames.com"
	}
	if cfg.Riot.RatePerSec <= 0 {
		cfg.Riot.RatePerSec = 20
	}
	if cfg.Riot.Burst <= 0 {
		cfg.Riot.Burst = cfg.Riot.RatePerSec
	}
	if cfg.Monitor.Enabled == nil {
		on := true
		cfg.Monitor.Enabled = &on
	}
	if strings.TrimSpace(cfg.Monitor.Schedule) == "" {
		cfg.Monitor.Schedule = "2m"
	}
	if cfg.Monitor.Workers <= 0 {
		cfg.Monitor.Workers = 4
	}
	if strings.TrimSpace(cfg.Monitor.Renotify) == "" {
		cfg.Monitor.Renotify = RenotifyEveryPoll
	}
	if cfg.Notify.SMTP.Port == 0 {
		cfg.Notify.SMTP.Port = 587
	}
}

// Validate rejects configs that cannot work. Used at startup and before a hot reload is committed.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "file", "sqlite", "sqlite3":
	case "postgres", "pgx":
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			return fmt.Errorf("storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver)
	}
	if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("riot.timeout", cfg.Riot.Timeout); err != nil {
		return err
	}
	if !strings.Contains(cfg.Riot.BaseURL, "{region}") {
		return fmt.Errorf("riot.base_url must contain {region}")
	}
	if _, err := scheduler.ParseSchedule(cfg.Monitor.Schedule); err != nil {
		return fmt.Errorf("monitor.schedule: %w", err)
	}
	if tz := strings.TrimSpace(cfg.Monitor.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("monitor.timezone: invalid %q: %w", tz, err)
		}
	}
	if _, err := ParseDurationField("monitor.cycle_timeout", cfg.Monitor.CycleTimeout); err != nil {
		return err
	}
	switch cfg.Monitor.Renotify {
	case RenotifyEveryPoll, RenotifySession:
	default:
		return fmt.Errorf("monitor.renotify: must be %q or %q", RenotifyEveryPoll, RenotifySession)
	}
	if _, err := ParseDurationField("notify.send_timeout", cfg.Notify.SendTimeout); err != nil {
		return err
	}
	for _, r := range cfg.Notify.Recipients {
		if err := validateRecipient(r); err != nil {
			return fmt.Errorf("notify.recipients: %w", err)
		}
	}
	for i, p := range cfg.Players {
		if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Region) == "" {
			return fmt.Errorf("players[%d]: name and region are required", i)
		}
	}
	return nil
}

func validateRecipient(r string) error {
	r = strings.TrimSpace(r)
	if chat, ok := strings.CutPrefix(r, "telegram:"); ok {
		if _, err := strconv.ParseInt(chat, 10, 64); err != nil {
			return fmt.Errorf("invalid telegram chat id %q", chat)
		}
		return nil
	}
	if !strings.Contains(strings.TrimPrefix(r, "mailto:"), "@") {
		return fmt.Errorf("invalid email address %q", r)
	}
	return nil
}

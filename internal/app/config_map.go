package app

import (
	"strings"
	"time"

	"gamewatch/internal/config"
	"gamewatch/internal/monitor"
	"gamewatch/internal/notifier"
	"gamewatch/internal/registry"
	"gamewatch/internal/riot"
	"gamewatch/internal/scheduler"
	"gamewatch/internal/storage"
	"gamewatch/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, 5*time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      driver,
		Path:        strings.TrimSpace(sc.Path),
		DSN:         strings.TrimSpace(sc.DSN),
		BusyTimeout: busy,
	}, nil
}

func mapRiotConfig(cfg *config.Config) (riot.Config, error) {
	timeout, err := config.ParseDurationOrDefault("riot.timeout", cfg.Riot.Timeout, 10*time.Second)
	if err != nil {
		return riot.Config{}, err
	}
	return riot.Config{
		APIKey:     cfg.Riot.APIKey,
		BaseURL:    cfg.Riot.BaseURL,
		Timeout:    timeout,
		RatePerSec: cfg.Riot.RatePerSec,
		Burst:      cfg.Riot.Burst,
	}, nil
}

func mapNotifyConfig(cfg *config.Config) (notifier.Config, error) {
	n := cfg.Notify
	sendTimeout, err := config.ParseDurationOrDefault("notify.send_timeout", n.SendTimeout, 30*time.Second)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		SMTP: notifier.SMTPConfig{
			Host:     n.SMTP.Host,
			Port:     n.SMTP.Port,
			Username: n.SMTP.Username,
			Password: n.SMTP.Password,
			Sender:   n.Sender,
		},
		Telegram:    notifier.TelegramConfig{Token: n.Telegram.Token},
		RatePerSec:  n.RatePerSec,
		SendTimeout: sendTimeout,
	}, nil
}

func mapMonitorConfig(cfg *config.Config) monitor.Config {
	return monitor.Config{
		Recipients: cfg.Notify.Recipients,
		Workers:    cfg.Monitor.Workers,
		Renotify:   monitor.Policy(cfg.Monitor.Renotify),
	}
}

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	timeout, err := config.ParseDurationField("monitor.cycle_timeout", cfg.Monitor.CycleTimeout)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		Enabled:  cfg.Monitor.IsEnabled(),
		Schedule: cfg.Monitor.Schedule,
		Timezone: cfg.Monitor.Timezone,
		Timeout:  timeout,
	}, nil
}

// seedsFromConfig returns the players listed in the config file, else those
// listed in the environment.
func seedsFromConfig(cfg *config.Config, env []config.PlayerSeed) []registry.Seed {
	src := cfg.Players
	if len(src) == 0 {
		src = env
	}
	out := make([]registry.Seed, 0, len(src))
	for _, p := range src {
		out = append(out, registry.Seed{Name: p.Name, Region: p.Region})
	}
	return out
}

package config

import (
	"reflect"

	"gamewatch/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections and safe
// structured attrs for logging. Secrets (api key, passwords, tokens, dsn) are
// only reported as "set"/"unset".
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 12)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs, logx.String("storage.driver", newCfg.Storage.Driver))
	}
	if oldCfg.Riot != newCfg.Riot {
		changed = append(changed, "riot")
		attrs = append(attrs,
			logx.String("riot.base_url", newCfg.Riot.BaseURL),
			logx.Int("riot.rate_per_sec", newCfg.Riot.RatePerSec),
			logx.Bool("riot.api_key_set", newCfg.Riot.APIKey != ""),
		)
	}
	if !reflect.DeepEqual(oldCfg.Monitor, newCfg.Monitor) {
		changed = append(changed, "monitor")
		attrs = append(attrs,
			logx.Bool("monitor.enabled", newCfg.Monitor.IsEnabled()),
			logx.String("monitor.schedule", newCfg.Monitor.Schedule),
			logx.Int("monitor.workers", newCfg.Monitor.Workers),
			logx.String("monitor.renotify", newCfg.Monitor.Renotify),
		)
	}
	if !reflect.DeepEqual(oldCfg.Notify, newCfg.Notify) {
		changed = append(changed, "notify")
		attrs = append(attrs,
			logx.Int("notify.recipients", len(newCfg.Notify.Recipients)),
			logx.String("notify.smtp_host", newCfg.Notify.SMTP.Host),
			logx.Bool("notify.telegram_set", newCfg.Notify.Telegram.Token != ""),
		)
	}
	if !reflect.DeepEqual(oldCfg.Players, newCfg.Players) {
		changed = append(changed, "players")
		attrs = append(attrs, logx.Int("players", len(newCfg.Players)))
	}
	return changed, attrs
}

// RestartRequired reports sections whose changes only take effect after a restart.
func RestartRequired(sections []string) []string {
	var out []string
	for _, s := range sections {
		switch s {
		case "storage", "riot":
			out = append(out, s)
		}
	}
	return out
}

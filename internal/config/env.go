package config

import (
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override (GAMEWATCH_RIOT_API_KEY, ...).
const EnvPrefix = "GAMEWATCH"

// envKeys are the config keys that may be overridden from the environment.
// Secrets are expected to arrive this way rather than through the config file.
var envKeys = []string{
	"logging.level",
	"storage.driver",
	"storage.path",
	"storage.dsn",
	"riot.api_key",
	"riot.base_url",
	"monitor.schedule",
	"notify.sender",
	"notify.recipients",
	"notify.smtp.host",
	"notify.smtp.port",
	"notify.smtp.username",
	"notify.smtp.password",
	"notify.telegram.token",
	"player_names",
	"player_regions",
}

// NewEnv returns a viper instance bound to GAMEWATCH_* environment variables.
func NewEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}
	return v
}

// ApplyEnv overlays environment overrides on cfg. Unset variables leave cfg untouched.
func ApplyEnv(cfg *Config, v *viper.Viper) {
	if cfg == nil || v == nil {
		return
	}
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = strings.TrimSpace(v.GetString(key))
		}
	}
	str("logging.level", &cfg.Logging.Level)
	str("storage.driver", &cfg.Storage.Driver)
	str("storage.path", &cfg.Storage.Path)
	str("storage.dsn", &cfg.Storage.DSN)
	str("riot.api_key", &cfg.Riot.APIKey)
	str("riot.base_url", &cfg.Riot.BaseURL)
	str("monitor.schedule", &cfg.Monitor.Schedule)
	str("notify.sender", &cfg.Notify.Sender)
	str("notify.smtp.host", &cfg.Notify.SMTP.Host)
	str("notify.smtp.username", &cfg.Notify.SMTP.Username)
	str("notify.smtp.password", &cfg.Notify.SMTP.Password)
	str("notify.telegram.token", &cfg.Notify.Telegram.Token)
	if v.IsSet("notify.smtp.port") {
		cfg.Notify.SMTP.Port = v.GetInt("notify.smtp.port")
	}
	if v.IsSet("notify.recipients") {
		cfg.Notify.Recipients = SplitList(v.GetString("notify.recipients"))
	}
}

// EnvPlayers returns players listed in GAMEWATCH_PLAYER_NAMES / GAMEWATCH_PLAYER_REGIONS.
// Both lists are comma separated and must have the same length; otherwise nil is returned.
func EnvPlayers(v *viper.Viper) []PlayerSeed {
	if v == nil {
		return nil
	}
	names := strings.Split(v.GetString("player_names"), ",")
	regions := strings.Split(v.GetString("player_regions"), ",")
	if len(names) != len(regions) {
		return nil
	}
	var out []PlayerSeed
	for i := range names {
		n, r := strings.TrimSpace(names[i]), strings.TrimSpace(regions[i])
		if n == "" || r == "" {
			continue
		}
		out = append(out, PlayerSeed{Name: n, Region: r})
	}
	return out
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

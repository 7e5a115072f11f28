package config

import "strings"

// Config is the root configuration for alphadesk.
type Config struct {
	App      AppConfig      `toml:"app"`
	Server   ServerConfig   `toml:"server"`
	Data     DataConfig     `toml:"data"`
	Models   ModelsConfig   `toml:"models"`
	Schedule ScheduleConfig `toml:"schedule"`
	Broker   BrokerConfig   `toml:"broker"`
	Store    StoreConfig    `toml:"store"`
	Notify   NotifyConfig   `toml:"notify"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// DataConfig controls the history fetch and the on-disk CSV fallback.
type DataConfig struct {
	Dir         string `toml:"dir"`
	SaveFetched bool   `toml:"save_fetched"`
	Lookback    int    `toml:"lookback"`
	MinHistory  int    `toml:"min_history"`
}

type ModelsConfig struct {
	Manifest string `toml:"manifest"`
}

// ScheduleConfig pins the daily run to a wall-clock time in a named zone.
type ScheduleConfig struct {
	Hour           int    `toml:"hour"`
	Minute         int    `toml:"minute"`
	Timezone       string `toml:"timezone"`
	RunImmediately bool   `toml:"run_immediately"`
}

// BrokerConfig carries Alpaca paper-trading credentials. Leaving both keys
// empty keeps the desk in simulation mode.
type BrokerConfig struct {
	APIKey    string `toml:"api_key"`
	APISecret string `toml:"api_secret"`
	BaseURL   string `toml:"base_url"`
}

func (b BrokerConfig) Configured() bool {
	return strings.TrimSpace(b.APIKey) != "" && strings.TrimSpace(b.APISecret) != ""
}

type StoreConfig struct {
	TradesPath      string `toml:"trades_path"`
	PerformancePath string `toml:"performance_path"`
	ReportsPath     string `toml:"reports_path"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// keySet tracks the field paths explicitly present in the config file, so
// defaults never clobber an explicit zero value.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault describes the default rule for a single field.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}

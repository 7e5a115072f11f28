package config

import "strings"

const (
	defaultAppEnv           = "dev"
	defaultAppLogLevel      = "info"
	defaultAppLogPath       = "data/logs/alphadesk.log"
	defaultServerAddr       = ":9980"
	defaultDataDir          = "data/history"
	defaultDataLookback     = 60
	defaultDataMinHistory   = 30
	defaultModelsManifest   = "configs/models.yaml"
	defaultScheduleHour     = 6
	defaultScheduleMinute   = 45
	defaultScheduleTimezone = "America/New_York"
	defaultBrokerBaseURL    = "https://paper-api.alpaca.markets"
	defaultTradesPath       = "data/db/trades.db"
	defaultPerformancePath  = "data/db/performance.db"
	defaultReportsPath      = "data/db/reports.db"
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Server.applyDefaults(keys)
	c.Data.applyDefaults(keys)
	c.Models.applyDefaults(keys)
	c.Schedule.applyDefaults(keys)
	c.Broker.applyDefaults(keys)
	c.Store.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (s *ServerConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("server.addr", &s.Addr, defaultServerAddr),
	)
}

func (d *DataConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("data.dir", &d.Dir, defaultDataDir),
		fieldDefault{
			key:   "data.lookback",
			need:  func() bool { return d.Lookback <= 0 },
			apply: func() { d.Lookback = defaultDataLookback },
		},
		fieldDefault{
			key:   "data.min_history",
			need:  func() bool { return d.MinHistory <= 0 },
			apply: func() { d.MinHistory = defaultDataMinHistory },
		},
	)
}

func (m *ModelsConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("models.manifest", &m.Manifest, defaultModelsManifest),
	)
}

func (s *ScheduleConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "schedule.hour",
			apply: func() { s.Hour = defaultScheduleHour },
		},
		fieldDefault{
			key:   "schedule.minute",
			apply: func() { s.Minute = defaultScheduleMinute },
		},
		stringFieldDefault("schedule.timezone", &s.Timezone, defaultScheduleTimezone),
	)
}

func (b *BrokerConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("broker.base_url", &b.BaseURL, defaultBrokerBaseURL),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.trades_path", &s.TradesPath, defaultTradesPath),
		stringFieldDefault("store.performance_path", &s.PerformancePath, defaultPerformancePath),
		stringFieldDefault("store.reports_path", &s.ReportsPath, defaultReportsPath),
	)
}

func applyFieldDefaults(keys keySet, defaults ...fieldDefault) {
	for _, def := range defaults {
		if keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

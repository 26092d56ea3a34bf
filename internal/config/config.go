// Package config loads the YAML configuration for the K-line aggregation
// service, with environment variable overrides for deployment-time
// secrets/paths.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the K-line aggregation service.
type Config struct {
	Storage Storage `yaml:"storage"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
	KLine   KLine   `yaml:"kline"`
	Cache   Cache   `yaml:"cache"`
}

// Storage holds paths for data persistence: the live SQLite database and
// the cold Parquet archive directory.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
	ArchiveDir string `yaml:"archive_dir"`
}

// Server holds the host and port that cmd/kline-server prints in its
// startup banner. No network listener in this module binds to them.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// KLine controls which periods are generated and whether raw ticks are
// persisted alongside bars.
type KLine struct {
	// RecordingPeriods lists the periods (in minutes; 1440 for daily) to
	// generate and persist. Matches PERIOD_DICT's enabled-period set.
	RecordingPeriods []int `yaml:"recording_periods"`
	RecordingTick    bool  `yaml:"recording_tick"`
	IgnorePast       bool  `yaml:"ignore_past"`

	// WarmSymbols lists symbols to hydrate from the BarStore at startup,
	// before live tick traffic arrives. WarmRatePerMinute bounds those
	// hydration reads; 0 means unbounded.
	WarmSymbols       []string `yaml:"warm_symbols"`
	WarmRatePerMinute int      `yaml:"warm_rate_per_minute"`
}

// Cache controls per-symbol in-memory bar cache sizing (spec.md §4.4).
type Cache struct {
	MaxKlineCount  int `yaml:"max_kline_count"`
	InitKlineCount int `yaml:"init_kline_count"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns the hard-coded configuration a caller should fall back to
// on ConfigLoadFailure (spec.md §6, §7): the same defaults an empty YAML
// file would produce, with environment variable overrides still applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg
}

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies defaults, and then applies environment variable
// overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// DefaultRecordingPeriods is the period set used both when a YAML config
// omits kline.recording_periods and when Load itself fails (spec.md §6,
// §7 ConfigLoadFailure), matching DEFAULT_PERIODS = (1,15,30,60) in
// original_source/drEngineEx/__init__.py.
var DefaultRecordingPeriods = []int{1, 15, 30, 60}

// applyDefaults fills in zero-valued fields with the same defaults as the
// source engine's KLineGenerator/MultiGenerator constructors.
func applyDefaults(cfg *Config) {
	if len(cfg.KLine.RecordingPeriods) == 0 {
		cfg.KLine.RecordingPeriods = append([]int(nil), DefaultRecordingPeriods...)
	}
	if cfg.Cache.MaxKlineCount == 0 {
		cfg.Cache.MaxKlineCount = 100000
	}
	if cfg.Cache.InitKlineCount == 0 {
		cfg.Cache.InitKlineCount = 10
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("ARCHIVE_DIR"); v != "" {
		cfg.Storage.ArchiveDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

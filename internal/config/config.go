package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultMakeConfPath = "/etc/make.conf"
	defaultOverlaysPath = "/etc/layman/overlays.xml"
	defaultLogLevel     = "info"
	defaultDumpFormat   = FormatConf
	defaultWatchRate    = 2.0
	defaultWatchBurst   = 1
)

// Dump output formats accepted by the CLI.
const (
	FormatConf = "conf"
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	MakeConfPath  string
	OverlaysPath  string
	LogLevel      string
	Color         bool
	DumpFormat    string
	IgnoreMissing bool
	WatchRate     float64
	WatchBurst    int
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	MakeConf      string    `yaml:"make_conf"`
	Overlays      string    `yaml:"overlays"`
	LogLevel      string    `yaml:"log_level"`
	Color         *bool     `yaml:"color"`
	DumpFormat    string    `yaml:"dump_format"`
	IgnoreMissing *bool     `yaml:"ignore_missing"`
	Watch         yamlWatch `yaml:"watch"`
}

// yamlWatch represents the watch section in YAML.
type yamlWatch struct {
	Rate  *float64 `yaml:"rate"`
	Burst *int     `yaml:"burst"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile    string
	MakeConf      *string
	Overlays      *string
	LogLevel      *string
	NoColor       *bool
	DumpFormat    *string
	IgnoreMissing *bool
	WatchRate     *float64
	WatchBurst    *int
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	// Environment first so the YAML file and flags can override it.
	applyEnvConfig(&cfg)

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		applyYAMLConfig(&cfg, yamlCfg)
	}

	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		MakeConfPath:  defaultMakeConfPath,
		OverlaysPath:  defaultOverlaysPath,
		LogLevel:      defaultLogLevel,
		Color:         true,
		DumpFormat:    defaultDumpFormat,
		IgnoreMissing: false,
		WatchRate:     defaultWatchRate,
		WatchBurst:    defaultWatchBurst,
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) {
	if yamlCfg.MakeConf != "" {
		cfg.MakeConfPath = yamlCfg.MakeConf
	}
	if yamlCfg.Overlays != "" {
		cfg.OverlaysPath = yamlCfg.Overlays
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.Color != nil {
		cfg.Color = *yamlCfg.Color
	}
	if yamlCfg.DumpFormat != "" {
		cfg.DumpFormat = yamlCfg.DumpFormat
	}
	if yamlCfg.IgnoreMissing != nil {
		cfg.IgnoreMissing = *yamlCfg.IgnoreMissing
	}
	if yamlCfg.Watch.Rate != nil && *yamlCfg.Watch.Rate > 0 {
		cfg.WatchRate = *yamlCfg.Watch.Rate
	}
	if yamlCfg.Watch.Burst != nil && *yamlCfg.Watch.Burst > 0 {
		cfg.WatchBurst = *yamlCfg.Watch.Burst
	}
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) {
	if path := strings.TrimSpace(os.Getenv("LAYMAN_MAKE_CONF")); path != "" {
		cfg.MakeConfPath = path
	}
	if path := strings.TrimSpace(os.Getenv("LAYMAN_OVERLAYS")); path != "" {
		cfg.OverlaysPath = path
	}
	if level := strings.TrimSpace(os.Getenv("LAYMAN_LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}
	if color := strings.TrimSpace(os.Getenv("LAYMAN_COLOR")); color != "" {
		if value, err := strconv.ParseBool(color); err == nil {
			cfg.Color = value
		}
	}
	if format := strings.TrimSpace(os.Getenv("LAYMAN_DUMP_FORMAT")); format != "" {
		cfg.DumpFormat = format
	}
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.MakeConf != nil && *overrides.MakeConf != "" {
		cfg.MakeConfPath = *overrides.MakeConf
	}
	if overrides.Overlays != nil && *overrides.Overlays != "" {
		cfg.OverlaysPath = *overrides.Overlays
	}
	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}
	if overrides.NoColor != nil && *overrides.NoColor {
		cfg.Color = false
	}
	if overrides.DumpFormat != nil && *overrides.DumpFormat != "" {
		cfg.DumpFormat = *overrides.DumpFormat
	}
	if overrides.IgnoreMissing != nil {
		cfg.IgnoreMissing = *overrides.IgnoreMissing
	}
	if overrides.WatchRate != nil && *overrides.WatchRate > 0 {
		cfg.WatchRate = *overrides.WatchRate
	}
	if overrides.WatchBurst != nil && *overrides.WatchBurst > 0 {
		cfg.WatchBurst = *overrides.WatchBurst
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	switch cfg.DumpFormat {
	case FormatConf, FormatYAML, FormatJSON:
	default:
		return fmt.Errorf("dump format must be one of %s, %s, %s", FormatConf, FormatYAML, FormatJSON)
	}
	if cfg.MakeConfPath == "" {
		return fmt.Errorf("make.conf path cannot be empty")
	}
	if cfg.WatchRate <= 0 {
		return fmt.Errorf("watch rate must be > 0")
	}
	if cfg.WatchBurst <= 0 {
		return fmt.Errorf("watch burst must be > 0")
	}
	return nil
}

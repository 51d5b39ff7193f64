// Package config handles configuration loading from TOML (or YAML) files and
// environment variables.
// Configuration precedence: command-line flags > environment variables >
// config file > defaults. The loaded Config is never mutated afterwards.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the daemon looks for its configuration first.
const DefaultPath = "/etc/acs/acs.toml"

// ErrInvalidConfig marks configuration values that fail validation.
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	minPowersaveUnder    = 1
	maxPowersaveUnder    = 100
	minOverheatThreshold = 40
	maxOverheatThreshold = 110
	minHysteresisTicks   = 1
	maxHysteresisTicks   = 60
)

// Rule selects one input the policy consults.
type Rule string

const (
	RuleBattery     Rule = "battery"
	RuleLid         Rule = "lid"
	RuleCharge      Rule = "charge"
	RuleTemperature Rule = "temperature"
	RuleCPUUsage    Rule = "cpu_usage"
)

// AllRules lists every rule in evaluation order.
var AllRules = []Rule{RuleBattery, RuleLid, RuleCharge, RuleTemperature, RuleCPUUsage}

// Config holds the daemon configuration.
type Config struct {
	// PowersaveUnder is the battery percentage under which the machine
	// is treated as power-critical.
	PowersaveUnder int `toml:"powersave_under" yaml:"powersave_under"`
	// OverheatThreshold is the core temperature (°C) that forces powersave.
	OverheatThreshold int    `toml:"overheat_threshold" yaml:"overheat_threshold"`
	ACGovernor        string `toml:"ac_governor" yaml:"ac_governor"`
	BatteryGovernor   string `toml:"battery_governor" yaml:"battery_governor"`
	ActiveRules       []Rule `toml:"active_rules" yaml:"active_rules"`

	// HighCPUThreshold and LowCPUThreshold bound the cpu_usage rule.
	HighCPUThreshold int `toml:"high_cpu_threshold" yaml:"high_cpu_threshold"`
	LowCPUThreshold  int `toml:"low_cpu_threshold" yaml:"low_cpu_threshold"`
	// HysteresisTicks is how many ticks a change must hold before the
	// policy may reverse it.
	HysteresisTicks int `toml:"hysteresis_ticks" yaml:"hysteresis_ticks"`
	// TurboOffOnBattery makes the battery default also force boost off.
	TurboOffOnBattery bool `toml:"turbo_off_on_battery" yaml:"turbo_off_on_battery"`

	Logging LoggingConfig `toml:"logging" yaml:"logging"`

	// Path is the file the configuration was read from, empty for defaults.
	Path string `toml:"-" yaml:"-"`
	// Warnings collects non-fatal problems found while loading.
	Warnings []string `toml:"-" yaml:"-"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `toml:"level" yaml:"level"`
	File  string `toml:"file" yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		PowersaveUnder:    20,
		OverheatThreshold: 80,
		ACGovernor:        "performance",
		BatteryGovernor:   "powersave",
		ActiveRules:       append([]Rule(nil), AllRules...),
		HighCPUThreshold:  70,
		LowCPUThreshold:   25,
		HysteresisTicks:   1,
		TurboOffOnBattery: false,
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// RuleActive reports whether r is in ActiveRules.
func (c *Config) RuleActive(r Rule) bool {
	for _, a := range c.ActiveRules {
		if a == r {
			return true
		}
	}
	return false
}

// Load reads configuration from path and merges it with defaults. A missing
// file yields the defaults with a warning. The result is validated.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("config file %s not found, using defaults", path))
	} else {
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfig, path, err)
		}
		cfg.Path = path
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return err
		}
		unknown, err := unknownYAMLKeys(data)
		if err != nil {
			return err
		}
		for _, k := range unknown {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ignoring unknown key %q", k))
		}
		return nil
	default:
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return err
		}
		for _, k := range md.Undecoded() {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ignoring unknown key %q", k.String()))
		}
		return nil
	}
}

var knownKeys = map[string]bool{
	"powersave_under": true, "overheat_threshold": true, "ac_governor": true,
	"battery_governor": true, "active_rules": true, "high_cpu_threshold": true,
	"low_cpu_threshold": true, "hysteresis_ticks": true, "turbo_off_on_battery": true,
	"logging": true, "logging.level": true, "logging.file": true,
}

func unknownYAMLKeys(data []byte) ([]string, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	var unknown []string
	for k, v := range raw {
		if !knownKeys[k] {
			unknown = append(unknown, k)
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			for nk := range nested {
				if !knownKeys[k+"."+nk] {
					unknown = append(unknown, k+"."+nk)
				}
			}
		}
	}
	sort.Strings(unknown)
	return unknown, nil
}

// CLIOverrides holds values from command-line flags.
// Empty strings are treated as "not set" and skipped.
type CLIOverrides struct {
	ConfigPath string
	LogLevel   string
}

// Locate searches standard config file paths and returns the first one found.
// Returns DefaultPath if no config file exists.
func Locate() string {
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return DefaultPath
}

// Resolve loads configuration with the full precedence chain:
// CLI flags > env vars > config file > defaults.
func Resolve(cli CLIOverrides) (*Config, error) {
	path := cli.ConfigPath
	if path == "" {
		path = os.Getenv("ACS_CONFIG")
	}
	if path == "" {
		path = Locate()
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if level := os.Getenv("ACS_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if file := os.Getenv("ACS_LOG_FILE"); file != "" {
		cfg.Logging.File = file
	}
}

// Validate checks ranges and the rule set.
func (c *Config) Validate() error {
	if err := validateRange("powersave_under", c.PowersaveUnder, minPowersaveUnder, maxPowersaveUnder); err != nil {
		return err
	}
	if err := validateRange("overheat_threshold", c.OverheatThreshold, minOverheatThreshold, maxOverheatThreshold); err != nil {
		return err
	}
	if err := validateRange("high_cpu_threshold", c.HighCPUThreshold, 1, 100); err != nil {
		return err
	}
	if err := validateRange("low_cpu_threshold", c.LowCPUThreshold, 0, c.HighCPUThreshold-1); err != nil {
		return err
	}
	if err := validateRange("hysteresis_ticks", c.HysteresisTicks, minHysteresisTicks, maxHysteresisTicks); err != nil {
		return err
	}
	if strings.TrimSpace(c.ACGovernor) == "" {
		return fmt.Errorf("%w: ac_governor must not be empty", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.BatteryGovernor) == "" {
		return fmt.Errorf("%w: battery_governor must not be empty", ErrInvalidConfig)
	}
	for _, r := range c.ActiveRules {
		if !isKnownRule(r) {
			return fmt.Errorf("%w: unknown rule %q in active_rules", ErrInvalidConfig, r)
		}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging.level must be debug, info, warn or error, got %q", ErrInvalidConfig, c.Logging.Level)
	}
	return nil
}

// CheckGovernors returns a warning for each configured governor the kernel
// does not offer. The policy substitutes the first available governor.
func (c *Config) CheckGovernors(available []string) []string {
	var warnings []string
	for _, g := range []struct{ key, name string }{
		{"ac_governor", c.ACGovernor},
		{"battery_governor", c.BatteryGovernor},
	} {
		found := false
		for _, a := range available {
			if a == g.name {
				found = true
				break
			}
		}
		if !found && len(available) > 0 {
			warnings = append(warnings, fmt.Sprintf("%s %q is not available (have %s), falling back to %q",
				g.key, g.name, strings.Join(available, " "), available[0]))
		}
	}
	return warnings
}

func isKnownRule(r Rule) bool {
	for _, k := range AllRules {
		if k == r {
			return true
		}
	}
	return false
}

func validateRange(name string, value, min, max int) error {
	if value < min || value > max {
		return fmt.Errorf("%w: %s must be between %d and %d, got %d", ErrInvalidConfig, name, min, max, value)
	}
	return nil
}

// Encode writes cfg as "toml" or "yaml".
func Encode(w io.Writer, cfg *Config, format string) error {
	switch format {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("encode config YAML: %w", err)
		}
		return enc.Close()
	case "toml", "":
		if err := toml.NewEncoder(w).Encode(cfg); err != nil {
			return fmt.Errorf("encode config TOML: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// WriteConfig serializes cfg as TOML to path, replacing any existing file
// atomically. Parent directories are created if needed.
func WriteConfig(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	var data bytes.Buffer
	if err := Encode(&data, cfg, "toml"); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".acs-*.toml")
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		if tmpPath != "" {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data.Bytes()); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp config file: %w", err)
	}
	if err := tmpFile.Chmod(0o644); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("chmod temp config file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}
	tmpPath = ""
	return nil
}

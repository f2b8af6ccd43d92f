// Package config handles breakwatch configuration. Values come from an
// optional YAML file, then environment variables, then built-in defaults.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperr "github.com/GriffinCanCode/breakwatch/internal/errors"
)

// FileEnv names the variable pointing at the optional YAML file.
const FileEnv = "BREAKWATCH_CONFIG"

type Config struct {
	PollInterval      time.Duration
	TemplatePath      string
	Comparator        string
	Modules           []string
	ModuleInitTimeout time.Duration
	DispatchTimeout   time.Duration
	ShutdownTimeout   time.Duration
	HTTPAddr          string
	LogLevel          string

	Player  PlayerConfig
	Journal JournalConfig
	Relay   RelayConfig
	Chime   ChimeConfig
}

type PlayerConfig struct {
	Process   string
	PlayCmd   string
	PauseCmd  string
	StatusCmd string
}

type JournalConfig struct {
	Path string
}

type RelayConfig struct {
	Addr string
}

type ChimeConfig struct {
	Frequency float64 // Hz
	Duration  time.Duration
}

// fileConfig mirrors Config in the on-disk YAML layout.
type fileConfig struct {
	PollIntervalMS      int      `yaml:"poll_interval_ms"`
	TemplatePath        string   `yaml:"template_path"`
	Comparator          string   `yaml:"comparator"`
	Modules             []string `yaml:"modules"`
	ModuleInitTimeoutMS int      `yaml:"module_init_timeout_ms"`
	DispatchTimeoutMS   int      `yaml:"dispatch_timeout_ms"`
	ShutdownTimeoutMS   int      `yaml:"shutdown_timeout_ms"`
	HTTPAddr            string   `yaml:"http_addr"`
	LogLevel            string   `yaml:"log_level"`
	Player              struct {
		Process   string `yaml:"process"`
		PlayCmd   string `yaml:"play_cmd"`
		PauseCmd  string `yaml:"pause_cmd"`
		StatusCmd string `yaml:"status_cmd"`
	} `yaml:"player"`
	Journal struct {
		Path string `yaml:"path"`
	} `yaml:"journal"`
	Relay struct {
		Addr string `yaml:"addr"`
	} `yaml:"relay"`
	Chime struct {
		Frequency  float64 `yaml:"frequency"`
		DurationMS int     `yaml:"duration_ms"`
	} `yaml:"chime"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		PollInterval:      1000 * time.Millisecond,
		TemplatePath:      filepath.Join("assets", "commercial-break.png"),
		Comparator:        "grid",
		Modules:           []string{"player"},
		ModuleInitTimeout: 60 * time.Second,
		DispatchTimeout:   5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		Player: PlayerConfig{
			Process:   "spotify",
			PlayCmd:   "playerctl --player=spotify play",
			PauseCmd:  "playerctl --player=spotify pause",
			StatusCmd: "playerctl --player=spotify status",
		},
		Journal: JournalConfig{Path: defaultJournalPath()},
		Relay:   RelayConfig{Addr: "localhost:50061"},
		Chime:   ChimeConfig{Frequency: 880, Duration: 150 * time.Millisecond},
	}
}

// Load reads configuration from the environment. If BREAKWATCH_CONFIG is set
// the file it names is applied first.
func Load() (*Config, error) {
	if path := os.Getenv(FileEnv); path != "" {
		return LoadFile(path)
	}
	cfg := Defaults()
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile applies a YAML file over the defaults, then the environment.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrapf(err, apperr.CodeConfigMissing, "read config file %s", path)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, apperr.Wrapf(err, apperr.CodeConfigInvalid, "parse config file %s", path)
	}
	cfg := Defaults()
	fc.apply(cfg)
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (fc *fileConfig) apply(cfg *Config) {
	if fc.PollIntervalMS != 0 {
		cfg.PollInterval = ms(fc.PollIntervalMS)
	}
	setString(&cfg.TemplatePath, fc.TemplatePath)
	setString(&cfg.Comparator, fc.Comparator)
	if fc.Modules != nil {
		cfg.Modules = fc.Modules
	}
	if fc.ModuleInitTimeoutMS != 0 {
		cfg.ModuleInitTimeout = ms(fc.ModuleInitTimeoutMS)
	}
	if fc.DispatchTimeoutMS != 0 {
		cfg.DispatchTimeout = ms(fc.DispatchTimeoutMS)
	}
	if fc.ShutdownTimeoutMS != 0 {
		cfg.ShutdownTimeout = ms(fc.ShutdownTimeoutMS)
	}
	setString(&cfg.HTTPAddr, fc.HTTPAddr)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.Player.Process, fc.Player.Process)
	setString(&cfg.Player.PlayCmd, fc.Player.PlayCmd)
	setString(&cfg.Player.PauseCmd, fc.Player.PauseCmd)
	setString(&cfg.Player.StatusCmd, fc.Player.StatusCmd)
	setString(&cfg.Journal.Path, fc.Journal.Path)
	setString(&cfg.Relay.Addr, fc.Relay.Addr)
	if fc.Chime.Frequency != 0 {
		cfg.Chime.Frequency = fc.Chime.Frequency
	}
	if fc.Chime.DurationMS != 0 {
		cfg.Chime.Duration = ms(fc.Chime.DurationMS)
	}
}

// applyEnv overlays environment variables on cfg. Numeric variables that are
// set but do not parse are reported together as CONFIG_INVALID.
func applyEnv(cfg *Config) error {
	var errs []error
	millis := func(key string, dst *time.Duration) {
		if err := getEnvMillis(key, dst); err != nil {
			errs = append(errs, err)
		}
	}

	millis("POLL_INTERVAL_MS", &cfg.PollInterval)
	cfg.TemplatePath = getEnv("TEMPLATE_PATH", cfg.TemplatePath)
	cfg.Comparator = getEnv("COMPARATOR", cfg.Comparator)
	cfg.Modules = getEnvList("MODULES", cfg.Modules)
	millis("MODULE_INIT_TIMEOUT_MS", &cfg.ModuleInitTimeout)
	millis("DISPATCH_TIMEOUT_MS", &cfg.DispatchTimeout)
	millis("SHUTDOWN_TIMEOUT_MS", &cfg.ShutdownTimeout)
	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.Player.Process = getEnv("PLAYER_PROCESS", cfg.Player.Process)
	cfg.Player.PlayCmd = getEnv("PLAYER_PLAY_CMD", cfg.Player.PlayCmd)
	cfg.Player.PauseCmd = getEnv("PLAYER_PAUSE_CMD", cfg.Player.PauseCmd)
	cfg.Player.StatusCmd = getEnv("PLAYER_STATUS_CMD", cfg.Player.StatusCmd)
	cfg.Journal.Path = getEnv("JOURNAL_PATH", cfg.Journal.Path)
	cfg.Relay.Addr = getEnv("RELAY_ADDR", cfg.Relay.Addr)
	if err := getEnvFloat("CHIME_FREQUENCY", &cfg.Chime.Frequency); err != nil {
		errs = append(errs, err)
	}
	millis("CHIME_DURATION_MS", &cfg.Chime.Duration)
	return errors.Join(errs...)
}

// Validate reports settings that make it pointless to start polling.
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return apperr.Newf(apperr.CodeConfigInvalid, "poll interval must be positive, got %v", c.PollInterval)
	}
	if c.TemplatePath == "" {
		return apperr.New(apperr.CodeConfigMissing, "reference template path is empty")
	}
	if _, err := os.Stat(c.TemplatePath); err != nil {
		return apperr.Wrapf(err, apperr.CodeConfigMissing, "reference template %s", c.TemplatePath)
	}
	switch c.Comparator {
	case "grid", "phash", "ahash", "dhash":
	default:
		return apperr.Newf(apperr.CodeConfigInvalid, "unknown comparator %q", c.Comparator)
	}
	if c.ModuleInitTimeout <= 0 || c.DispatchTimeout <= 0 || c.ShutdownTimeout <= 0 {
		return apperr.New(apperr.CodeConfigInvalid, "timeouts must be positive")
	}
	return nil
}

func defaultJournalPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "breakwatch.db"
	}
	return filepath.Join(home, ".config", "breakwatch", "journal.db")
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvMillis reads an integer millisecond count into dst. Zero and
// negative values are kept so Validate can reject them.
func getEnvMillis(key string, dst *time.Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return apperr.Wrapf(err, apperr.CodeConfigInvalid, "%s must be an integer number of milliseconds, got %q", key, v)
	}
	*dst = ms(n)
	return nil
}

func getEnvFloat(key string, dst *float64) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return apperr.Wrapf(err, apperr.CodeConfigInvalid, "%s must be a number, got %q", key, v)
	}
	*dst = f
	return nil
}

func getEnvList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}

// Package config handles configuration loading from files, defaults, and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/javiermolinar/matchplan/internal/history"
	"github.com/javiermolinar/matchplan/internal/slots"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MATCHPLAN_"

// Config holds the application configuration.
type Config struct {
	Schedule ScheduleConfig `toml:"schedule"`
	Venues   VenuesConfig   `toml:"venues"`
	Solution SolutionConfig `toml:"solution"`
	Storage  StorageConfig  `toml:"storage"`
	History  HistoryConfig  `toml:"history"`
	Export   ExportConfig   `toml:"export"`
	Log      LogConfig      `toml:"log"`
}

// ScheduleConfig holds the slot grid and rest rule.
// The grid is merged with whatever the loaded solution refers to.
type ScheduleConfig struct {
	Weeks          []int    `toml:"weeks"`            // e.g., [1, 2, 3]
	Times          []string `toml:"times"`            // e.g., ["18:00", "20:00"]
	Venues         []string `toml:"venues"`           // e.g., ["GYM A"]
	MinRestMinutes int      `toml:"min_rest_minutes"` // rest between two matches of a team on the same week
}

// VenuesConfig holds per-venue capacities. Unlisted venues hold one match per slot.
type VenuesConfig struct {
	Capacities map[string]int `toml:"capacities"`
}

// SolutionConfig locates the solver output.
type SolutionConfig struct {
	Path     string `toml:"path"`
	BaseName string `toml:"base_name"` // recorded in exports, defaults to the file name
}

// StorageConfig holds database settings.
type StorageConfig struct {
	DBPath string `toml:"db_path"`
}

// HistoryConfig bounds the undo and redo stacks.
type HistoryConfig struct {
	MaxEntries int `toml:"max_entries"`
}

// ExportConfig holds export defaults.
type ExportConfig struct {
	Author string `toml:"author"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"` // "debug", "info", "warn", "error"
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Schedule: ScheduleConfig{
			MinRestMinutes: 90,
		},
		Venues: VenuesConfig{
			Capacities: map[string]int{},
		},
		Solution: SolutionConfig{
			Path: "solution.json",
		},
		Storage: StorageConfig{
			DBPath: defaultDBPath(),
		},
		History: HistoryConfig{
			MaxEntries: history.DefaultMaxEntries,
		},
		Export: ExportConfig{
			Author: "matchplan",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// defaultDBPath returns the default database path.
func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "matchplan.db"
	}
	return filepath.Join(home, ".local", "share", "matchplan", "matchplan.db")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".config", "matchplan", "config.toml")
}

// Load loads configuration from the default path, merging with defaults,
// a .env file in the working directory and env vars.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigPath())
}

// LoadFrom loads configuration from the specified path.
// It starts with defaults, overlays file config if it exists, then applies env overrides.
func LoadFrom(path string) (*Config, error) {
	return load(path, ".env")
}

func load(path, dotenvPath string) (*Config, error) {
	cfg := Default()

	// Try to load from file (not an error if it doesn't exist)
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}

	dotenv, err := readDotEnv(dotenvPath)
	if err != nil {
		return nil, err
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := applyEnvOverrides(cfg, lookup); err != nil {
		return nil, err
	}

	cfg.Storage.DBPath = expandPath(cfg.Storage.DBPath)
	cfg.Solution.Path = expandPath(cfg.Solution.Path)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads config from a file if it exists.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// readDotEnv reads a .env file without touching the process environment.
// A missing file yields no values.
func readDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return values, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Environment variables take precedence over file config.
func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		return v, ok && v != ""
	}
	getInt := func(name string) (int, bool, error) {
		v, ok := get(name)
		if !ok {
			return 0, false, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false, fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		return n, true, nil
	}

	// Schedule overrides
	if v, ok := get("WEEKS"); ok {
		weeks, err := parseWeeks(v)
		if err != nil {
			return fmt.Errorf("%sWEEKS: %w", EnvPrefix, err)
		}
		cfg.Schedule.Weeks = weeks
	}
	if v, ok := get("TIMES"); ok {
		cfg.Schedule.Times = splitList(v)
	}
	if v, ok := get("VENUES"); ok {
		cfg.Schedule.Venues = splitList(v)
	}
	if n, ok, err := getInt("MIN_REST_MINUTES"); err != nil {
		return err
	} else if ok {
		cfg.Schedule.MinRestMinutes = n
	}

	// Solution and storage overrides
	if v, ok := get("SOLUTION"); ok {
		cfg.Solution.Path = v
	}
	if v, ok := get("BASE_NAME"); ok {
		cfg.Solution.BaseName = v
	}
	if v, ok := get("DB_PATH"); ok {
		cfg.Storage.DBPath = v
	}

	if n, ok, err := getInt("HISTORY_MAX_ENTRIES"); err != nil {
		return err
	} else if ok {
		cfg.History.MaxEntries = n
	}
	if v, ok := get("EXPORT_AUTHOR"); ok {
		cfg.Export.Author = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseWeeks(v string) ([]int, error) {
	var weeks []int
	for _, s := range splitList(v) {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, err
		}
		weeks = append(weeks, n)
	}
	return weeks, nil
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	for _, w := range c.Schedule.Weeks {
		if w < 1 {
			return fmt.Errorf("weeks must be positive, got %d", w)
		}
	}
	for _, t := range c.Schedule.Times {
		if err := validateTime(t, "times"); err != nil {
			return err
		}
	}
	for _, v := range c.Schedule.Venues {
		if strings.TrimSpace(v) == "" {
			return errors.New("venues cannot contain an empty name")
		}
	}
	if c.Schedule.MinRestMinutes < 1 {
		return errors.New("min_rest_minutes must be positive")
	}
	for venue, n := range c.Venues.Capacities {
		if n < 1 {
			return fmt.Errorf("capacity of %s must be at least 1, got %d", venue, n)
		}
	}
	if c.History.MaxEntries < 1 {
		return errors.New("max_entries must be at least 1")
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	if c.Storage.DBPath == "" {
		return errors.New("db_path must be set")
	}
	return nil
}

// validateTime checks if a time string is in HH:MM format.
func validateTime(t, field string) error {
	if len(t) != 5 || t[2] != ':' {
		return fmt.Errorf("%s must be in HH:MM format, got %q", field, t)
	}
	hour := t[0:2]
	minute := t[3:5]
	if !isDigits(hour) || !isDigits(minute) || hour > "23" || minute > "59" {
		return fmt.Errorf("%s must be in HH:MM format, got %q", field, t)
	}
	return nil
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// MinRest returns the minimum rest between two matches of a team.
func (c *Config) MinRest() time.Duration {
	return time.Duration(c.Schedule.MinRestMinutes) * time.Minute
}

// Grid returns the configured slot coordinates.
func (c *Config) Grid() slots.Grid {
	return slots.Grid{
		Weeks:  c.Schedule.Weeks,
		Times:  c.Schedule.Times,
		Venues: c.Schedule.Venues,
	}
}

// LogLevel returns the parsed log level, falling back to info.
func (c *Config) LogLevel() log.Level {
	lvl, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// Save writes the configuration to the default path.
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigPath())
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

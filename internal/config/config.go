// Package config handles XDG configuration directory, settings, and file paths.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	// AppName is the application directory name.
	AppName = "punchlist"

	// TokenFile is the stored session token filename.
	TokenFile = "token.json"

	// SettingsFile is the TOML settings filename.
	SettingsFile = "settings.toml"

	// DefaultServerURL is used when no server is configured.
	DefaultServerURL = "http://localhost:8787"
)

// Keymap holds key bindings for the interactive UI.
type Keymap struct {
	Quit    string `toml:"quit"`
	Add     string `toml:"add"`
	Up      string `toml:"up"`
	Down    string `toml:"down"`
	Toggle  string `toml:"toggle"`
	Delete  string `toml:"delete"`
	Refresh string `toml:"refresh"`
	SignOut string `toml:"sign_out"`
	Confirm string `toml:"confirm"`
	Cancel  string `toml:"cancel"`
}

// Settings holds the persisted settings from settings.toml.
type Settings struct {
	ServerURL string `toml:"server_url"`
	Keys      Keymap `toml:"keys"`
}

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	// ServerURL is the base URL of the task server.
	ServerURL string

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool

	// Logger is the process logger. Set by the dispatcher.
	Logger *slog.Logger

	// Settings are the persisted settings loaded from settings.toml.
	Settings Settings
}

// New creates a new Config with the default or specified config directory.
// If configDir is empty, uses XDG_CONFIG_HOME/punchlist or $HOME/.config/punchlist.
// Reads settings.toml if present; missing settings fall back to defaults.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}

	cfg := &Config{Dir: dir, Settings: DefaultSettings()}

	data, err := os.ReadFile(cfg.SettingsPath())
	if err == nil {
		if err := toml.Unmarshal(data, &cfg.Settings); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", SettingsFile, err)
		}
	}

	cfg.ServerURL = cfg.Settings.ServerURL
	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultServerURL
	}
	return cfg, nil
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// DefaultSettings returns the built-in settings.
func DefaultSettings() Settings {
	return Settings{
		ServerURL: DefaultServerURL,
		Keys: Keymap{
			Quit:    "q",
			Add:     "a",
			Up:      "k",
			Down:    "j",
			Toggle:  " ",
			Delete:  "d",
			Refresh: "r",
			SignOut: "o",
			Confirm: "enter",
			Cancel:  "esc",
		},
	}
}

// TokenPath returns the path to the stored session token file.
func (c *Config) TokenPath() string {
	return filepath.Join(c.Dir, TokenFile)
}

// SettingsPath returns the path to the settings file.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.Dir, SettingsFile)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// EnsureSettings writes the current settings to settings.toml if the file
// doesn't exist yet.
func (c *Config) EnsureSettings() error {
	if _, err := os.Stat(c.SettingsPath()); err == nil {
		return nil
	}
	if err := c.EnsureDir(); err != nil {
		return err
	}
	data, err := toml.Marshal(c.Settings)
	if err != nil {
		return err
	}
	return os.WriteFile(c.SettingsPath(), data, 0600)
}

// HasToken checks if the token file exists.
func (c *Config) HasToken() bool {
	_, err := os.Stat(c.TokenPath())
	return err == nil
}

// RemoveToken deletes the token file.
func (c *Config) RemoveToken() error {
	return os.Remove(c.TokenPath())
}

// Log returns the configured logger, or a silent one if none was set.
// Commands always log through this so tests stay quiet.
func (c *Config) Log() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds user preferences and the remote account. The remote
// password is stored encrypted; use SetPassword/Password to access it.
type Config struct {
	URL               string              `yaml:"url" json:"url"`                               // Remote service base URL; empty means offline-only
	Username          string              `yaml:"username" json:"username"`                     // Remote account name
	PasswordEnc       string              `yaml:"password_enc,omitempty" json:"password_enc"`   // Encrypted credential material
	Salt              string              `yaml:"salt,omitempty" json:"salt"`                   // Key-derivation salt, base64
	AllowInsecure     bool                `yaml:"allow_insecure" json:"allow_insecure"`         // Skip TLS verification
	HideCompleted     bool                `yaml:"hide_completed" json:"hide_completed"`         // Default view filter
	DefaultCalendar   string              `yaml:"default_calendar,omitempty" json:"default_calendar"`
	HiddenCalendars   []string            `yaml:"hidden_calendars,omitempty" json:"hidden_calendars"`
	TagAliases        map[string][]string `yaml:"tag_aliases,omitempty" json:"tag_aliases"`

	// Logging configuration
	LogLevel   string `yaml:"log_level" json:"log_level"`     // Log level: DEBUG, INFO, WARN, ERROR
	LogFile    string `yaml:"log_file" json:"log_file"`       // Path to log file
	LogConsole bool   `yaml:"log_console" json:"log_console"` // Enable console logging

	dir string `yaml:"-" json:"-"`
}

// DefaultConfig returns default settings
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	logPath := ""
	dir := ""
	if home != "" {
		dir = filepath.Join(home, ".caldo")
		logPath = filepath.Join(dir, "logs", "caldo.log")
	}

	return &Config{
		TagAliases: map[string][]string{},
		LogLevel:   getEnv("CALDO_LOG_LEVEL", "INFO"),
		LogFile:    getEnv("CALDO_LOG_FILE", logPath),
		LogConsole: getEnv("CALDO_LOG_CONSOLE", "false") == "true",
		dir:        dir,
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Load loads config from ~/.caldo/config.yaml
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(filepath.Join(home, ".caldo"))
}

// LoadFrom loads config from dir/config.yaml, returning defaults when
// the file does not exist.
func LoadFrom(dir string) (*Config, error) {
	configPath := filepath.Join(dir, "config.yaml")

	cfg := DefaultConfig()
	cfg.dir = dir

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.TagAliases == nil {
		cfg.TagAliases = map[string][]string{}
	}

	return cfg, nil
}

// Save saves config to dir/config.yaml
func (c *Config) Save() error {
	if c.dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		c.dir = filepath.Join(home, ".caldo")
	}

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	configPath := filepath.Join(c.dir, "config.yaml")
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Dir returns the directory the config lives in.
func (c *Config) Dir() string {
	return c.dir
}

// CalendarHidden reports whether the given calendar is toggled off.
func (c *Config) CalendarHidden(href string) bool {
	for _, h := range c.HiddenCalendars {
		if h == href {
			return true
		}
	}
	return false
}

// SetCalendarHidden updates the hidden-calendar list.
func (c *Config) SetCalendarHidden(href string, hidden bool) {
	if hidden {
		if !c.CalendarHidden(href) {
			c.HiddenCalendars = append(c.HiddenCalendars, href)
		}
		return
	}
	kept := c.HiddenCalendars[:0]
	for _, h := range c.HiddenCalendars {
		if h != href {
			kept = append(kept, h)
		}
	}
	c.HiddenCalendars = kept
}

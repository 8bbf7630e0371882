// Package config reads the user's fi configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the ~/.fi/config.toml file.
type Config struct {
	// Color is "auto", "always" or "never".
	Color string `toml:"color,omitempty"`
	// Hyperlink toggles OSC-8 file links; unset follows Color.
	Hyperlink *bool `toml:"hyperlink,omitempty"`
	// Demangle makes --demangle the default.
	Demangle bool `toml:"demangle,omitempty"`
	// RuntimeDir overrides the session socket directory.
	RuntimeDir string `toml:"runtime_dir,omitempty"`
}

// configDirOverride is set by the --config-dir flag or FI_HOME env var.
var configDirOverride string

// SetConfigDir allows the CLI to pass in the --config-dir / FI_HOME value.
func SetConfigDir(dir string) {
	configDirOverride = dir
}

// Home returns the config directory path.
// Precedence: --config-dir flag / SetConfigDir > FI_HOME env > ~/.fi
func Home() string {
	if configDirOverride != "" {
		return configDirOverride
	}
	if v := os.Getenv("FI_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".fi")
	}
	return filepath.Join(home, ".fi")
}

// Path returns the full path to config.toml.
func Path() string {
	return filepath.Join(Home(), "config.toml")
}

// Load reads config.toml and returns a Config struct.
// If the file does not exist, it returns a zero-value Config (defaults).
func Load() (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(Path())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config.toml: %w", err)
	}
	return cfg, nil
}

// WantColor decides whether output should be colored, given whether stdout
// is a terminal.
func (c *Config) WantColor(isTTY bool) bool {
	switch c.Color {
	case "always":
		return true
	case "never":
		return false
	default:
		return isTTY
	}
}

// WantHyperlink decides whether file names should carry terminal
// hyperlinks.
func (c *Config) WantHyperlink(colored bool) bool {
	if c.Hyperlink != nil {
		return *c.Hyperlink
	}
	return colored
}

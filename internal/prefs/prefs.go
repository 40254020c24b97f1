// Package prefs persists terminal UI preferences.
// Preferences are stored as TOML next to the configuration file.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"taskmaster/internal/config"
	"taskmaster/internal/utils"
)

// Prefs holds TUI preferences.
type Prefs struct {
	LastProjectID string `toml:"last_project_id"`
	ShowRecent    bool   `toml:"show_recent"`
}

// Defaults returns the preferences used when nothing is stored.
func Defaults() Prefs {
	return Prefs{ShowRecent: true}
}

// DefaultPath returns $XDG_CONFIG_HOME/taskmaster/prefs.toml.
func DefaultPath() string {
	return filepath.Join(config.GetConfigDir(), "prefs.toml")
}

// Load reads preferences from path. A missing or unreadable file yields the
// defaults; preferences never block startup.
func Load(path string) Prefs {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}

	p := Defaults()
	data, err := os.ReadFile(config.ExpandPath(path))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			utils.Debugf("read prefs %s: %v", path, err)
		}
		return p
	}
	if err := toml.Unmarshal(data, &p); err != nil {
		utils.Debugf("parse prefs %s: %v", path, err)
		return Defaults()
	}
	p.LastProjectID = strings.TrimSpace(p.LastProjectID)
	return p
}

// Save writes preferences to path, creating directories as needed.
func Save(path string, p Prefs) error {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	path = config.ExpandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	data, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}

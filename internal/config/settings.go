// Package config persists user preferences that outlive a single run:
// data service credentials, external tool overrides, and telemetry
// consent.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Settings represents persistent user preferences.
type Settings struct {
	// HyP3 data service access
	APIHost  string `json:"apiHost"`
	Username string `json:"username"`
	Password string `json:"password"`

	// Download settings
	DownloadWorkers int `json:"downloadWorkers"`

	// External tool overrides; empty means look up on PATH
	ConvertPath string `json:"convertPath"`
	EnhLeePath  string `json:"enhLeePath"`

	// Annotation font for the built-in encoder
	FontPath string `json:"fontPath"`

	// Telemetry
	TelemetryEnabled bool `json:"telemetryEnabled"`
}

// DefaultSettings returns default settings.
func DefaultSettings() *Settings {
	return &Settings{
		APIHost:          "https://api.daac.asf.alaska.edu",
		DownloadWorkers:  4,
		TelemetryEnabled: true,
	}
}

// SettingsPath returns the settings file path, creating its directory.
func SettingsPath() string {
	homeDir, _ := os.UserHomeDir()
	baseDir := filepath.Join(homeDir, ".hyp3-giant")
	os.MkdirAll(baseDir, 0o755)
	return filepath.Join(baseDir, "settings.json")
}

// LoadSettings loads settings from disk. A missing file yields
// defaults; missing fields in an existing file are filled from
// defaults, so upgrades pick up new knobs without clobbering old ones.
func LoadSettings() (*Settings, error) {
	path := SettingsPath()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultSettings(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	defaults := DefaultSettings()
	if settings.APIHost == "" {
		settings.APIHost = defaults.APIHost
	}
	if settings.DownloadWorkers == 0 {
		settings.DownloadWorkers = defaults.DownloadWorkers
	}

	return &settings, nil
}

// SaveSettings writes settings to disk.
func SaveSettings(settings *Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize settings: %w", err)
	}
	if err := os.WriteFile(SettingsPath(), data, 0o600); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsMissingFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	settings, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), settings)
}

func TestLoadSettingsMergesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".hyp3-giant")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	body := `{"username": "jdoe", "telemetryEnabled": false}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.json"), []byte(body), 0o600))

	settings, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "jdoe", settings.Username)
	assert.False(t, settings.TelemetryEnabled)
	assert.Equal(t, DefaultSettings().APIHost, settings.APIHost)
	assert.Equal(t, DefaultSettings().DownloadWorkers, settings.DownloadWorkers)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	settings := DefaultSettings()
	settings.Username = "jdoe"
	settings.ConvertPath = "/opt/imagemagick/bin/convert"
	require.NoError(t, SaveSettings(settings))

	loaded, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, settings, loaded)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lektor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.Playback.MinSpeed)
	assert.Equal(t, 3.0, cfg.Playback.MaxSpeed)
	assert.Equal(t, 0.25, cfg.Playback.SpeedStep)
	assert.Equal(t, 5, cfg.Playback.SeekStepSec)
	assert.Equal(t, 5, cfg.Playback.SnapshotIntervalSec)
	assert.Equal(t, "beep", cfg.Engine.Type)
	assert.False(t, cfg.Spoiler.Enabled)
	assert.Equal(t, 4, cfg.Messages.TimeoutSec)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
playback:
  max_speed: 2.0
  speed_step: 0.1
spoiler:
  enabled: true
engine:
  type: beep
  settings:
    sample_rate: 48000
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2.0, cfg.Playback.MaxSpeed)
	assert.Equal(t, 0.1, cfg.Playback.SpeedStep)
	assert.Equal(t, 0.5, cfg.Playback.MinSpeed) // default kept
	assert.True(t, cfg.Spoiler.Enabled)
	assert.Equal(t, 48000, cfg.Engine.Settings["sample_rate"])
}

func TestLoad_InvalidValuesRejected(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "min above max",
			content: `
playback:
  min_speed: 2.5
  max_speed: 1.0
`,
		},
		{
			name: "negative speed step",
			content: `
playback:
  speed_step: -0.5
`,
		},
		{
			name: "zero seek step",
			content: `
playback:
  seek_step_sec: -2
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LEKTOR_STATE_DIR", "/tmp/lektor-test-state")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/lektor-test-state", cfg.Store.Dir)
}

func TestGetMessage(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, cfg.Messages.EngineError, cfg.GetMessage("engine_error"))
	assert.Equal(t, cfg.Messages.StateCorrupt, cfg.GetMessage("state_corrupt"))
	// Unknown codes fall through verbatim.
	assert.Equal(t, "something_else", cfg.GetMessage("something_else"))
}

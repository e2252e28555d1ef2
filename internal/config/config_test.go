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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("missing file returns defaults", func(t *testing.T) {
		t.Parallel()
		cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("partial file overrides defaults only where set", func(t *testing.T) {
		t.Parallel()
		cfg, err := Load(writeConfig(t, `
camera:
  device: /dev/video2
trail:
  layers: 8
`))
		require.NoError(t, err)
		assert.Equal(t, "/dev/video2", cfg.Camera.Device)
		assert.Equal(t, 8, cfg.Trail.Layers)
		// Untouched sections keep defaults.
		assert.Equal(t, "720p", cfg.Camera.Resolution)
		assert.Equal(t, int64(2500), cfg.Trail.MaxDelayMS)
		assert.Equal(t, float64(60), cfg.Display.RefreshHz)
	})

	t.Run("malformed yaml is an error", func(t *testing.T) {
		t.Parallel()
		_, err := Load(writeConfig(t, "camera: [not a map"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse")
	})

	t.Run("invalid values are rejected at load", func(t *testing.T) {
		t.Parallel()
		_, err := Load(writeConfig(t, "camera:\n  fps: 500\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "camera.fps")
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	mutate := func(f func(*Config)) error {
		cfg := Default()
		f(&cfg)
		return cfg.Validate()
	}

	assert.NoError(t, mutate(func(c *Config) {}))

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty device", func(c *Config) { c.Camera.Device = "" }},
		{"bad resolution", func(c *Config) { c.Camera.Resolution = "4k" }},
		{"fps too low", func(c *Config) { c.Camera.FPS = 0.2 }},
		{"bad model complexity", func(c *Config) { c.Pose.ModelComplexity = 5 }},
		{"confidence out of range", func(c *Config) { c.Pose.MinDetectionConfidence = 1.5 }},
		{"zero layers", func(c *Config) { c.Trail.Layers = 0 }},
		{"negative delay", func(c *Config) { c.Trail.MaxDelayMS = -1 }},
		{"zero delay", func(c *Config) { c.Trail.MaxDelayMS = 0 }},
		{"zero staleness", func(c *Config) { c.Trail.StalenessMS = 0 }},
		{"zero history", func(c *Config) { c.Trail.HistoryCapacity = 0 }},
		{"zero width", func(c *Config) { c.Display.Width = 0 }},
		{"refresh too high", func(c *Config) { c.Display.RefreshHz = 300 }},
		{"negative bloom", func(c *Config) { c.Display.BloomRadius = -1 }},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Error(t, mutate(tc.mutate))
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9000"
timezone: Europe/Paris
week_start: Sunday
feed_url: https://example.com/cal.ics
layout:
  grouping: chained
  day_start: "07:30"
basic_auth:
  username: alice
  password: secret
`), 0o600))

	t.Setenv("CLASSCAL_LISTEN", ":9100")
	t.Setenv("CLASSCAL_LAYOUT__DAY_END", "20:00")
	t.Setenv("CLASSCAL_METRICS", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Listen)
	assert.Equal(t, "Europe/Paris", cfg.Timezone)
	assert.Equal(t, "sunday", cfg.WeekStart)
	assert.Equal(t, time.Sunday, cfg.FirstWeekday())
	assert.Equal(t, "https://example.com/cal.ics", cfg.FeedURL)
	assert.Equal(t, "chained", cfg.Layout.Grouping)
	assert.Equal(t, "07:30", cfg.Layout.DayStart)
	assert.Equal(t, "20:00", cfg.Layout.DayEnd)
	assert.False(t, cfg.Metrics)
	assert.True(t, cfg.BasicAuth.Enabled())
	assert.Equal(t, "secret", cfg.BasicAuth.Password)

	// Defaults survive for keys the file does not mention.
	assert.Equal(t, "*/30 * * * *", cfg.RefreshCron)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadEmptyPath(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	cfg := &Config{
		WeekStart: "friday",
		LogLevel:  "LOUD",
		Layout:    LayoutConfig{Grouping: "diagonal"},
	}
	cfg.Normalize()

	def := DefaultConfig()
	assert.Equal(t, def.Listen, cfg.Listen)
	assert.Equal(t, "Local", cfg.Timezone)
	assert.Equal(t, "monday", cfg.WeekStart)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "exact", cfg.Layout.Grouping)
	assert.Equal(t, "08:00", cfg.Layout.DayStart)
	assert.Equal(t, "19:30", cfg.Layout.DayEnd)
	assert.Empty(t, cfg.RefreshCron)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.FeedURL = "https://example.com/cal.ics"
	cfg.BasicAuth = BasicAuthConfig{Username: "bob", Password: "pw"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, time.Local, cfg.Location())

	cfg.Timezone = "Not/AZone"
	assert.Equal(t, time.Local, cfg.Location())

	cfg.Timezone = "UTC"
	assert.Equal(t, time.UTC, cfg.Location())
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "{}\n"), nil)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5173", cfg.Target.URL)
	assert.Equal(t, "body", cfg.Target.BaselineSelector)
	assert.Equal(t, 60*time.Second, cfg.Target.NavigationTimeout)
	assert.Equal(t, 10*time.Second, cfg.Target.BaselineTimeout)
	assert.Equal(t, 2*time.Second, cfg.Flow.SettleTimeout)
	assert.Equal(t, 5*time.Second, cfg.Flow.ModalTimeout)
	assert.Equal(t, "Initialize Universe", cfg.Flow.StartButtonName)
	assert.Equal(t, "div[role='dialog']", cfg.Flow.ModalSelector)
	assert.Equal(t, ModeFailFast, cfg.Assertions.Mode)
	assert.Equal(t, []string{"sfx-volume", "music-volume", "visual-accessibility"}, cfg.Assertions.Controls)
	assert.Equal(t, "verification", cfg.Evidence.Dir)
	assert.True(t, cfg.Browser.Headless)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
target:
  url: http://example.test:3000
flow:
  modalTimeout: 3s
assertions:
  mode: collect_all
`)
	t.Setenv("UIPROBE_EVIDENCE_DIR", "/tmp/evidence")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "http://example.test:3000", cfg.Target.URL)
	assert.Equal(t, 3*time.Second, cfg.Flow.ModalTimeout)
	assert.Equal(t, ModeCollectAll, cfg.Assertions.Mode)
	assert.Equal(t, "/tmp/evidence", cfg.Evidence.Dir)
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "target:\n  url: http://from-file\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("url", "", "")
	flags.String("evidence-dir", "", "")
	require.NoError(t, flags.Parse([]string{"--url", "http://from-flag"}))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "http://from-flag", cfg.Target.URL)
	// Unset flags must not clobber defaults.
	assert.Equal(t, "verification", cfg.Evidence.Dir)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := LoadConfig(writeConfig(t, "{}\n"), nil)
		require.NoError(t, err)
		return cfg
	}

	testCases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty url", func(c *Config) { c.Target.URL = "" }},
		{"unknown mode", func(c *Config) { c.Assertions.Mode = "sometimes" }},
		{"zero modal timeout", func(c *Config) { c.Flow.ModalTimeout = 0 }},
		{"no settings selectors", func(c *Config) {
			c.Flow.SettingsSelector = ""
			c.Flow.SettingsFallbackSelector = ""
		}},
		{"negative assertion timeout", func(c *Config) { c.Assertions.Timeout = -time.Second }},
		{"no sessions", func(c *Config) { c.Browser.MaxSessions = 0 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, base().Validate())
}

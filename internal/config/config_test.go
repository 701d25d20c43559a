package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Game.Products, 4)
	assert.True(t, cfg.Game.HasProduct("bread"))
	assert.False(t, cfg.Game.HasProduct("caviar"))
}

func TestValidateRejectsBadRanges(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero duration", func(c *Config) { c.Game.DurationSeconds = 0 }},
		{"negative cash", func(c *Config) { c.Game.StartingCash = -1 }},
		{"one player", func(c *Config) { c.Game.MaxPlayers = 1 }},
		{"no products", func(c *Config) { c.Game.Products = nil }},
		{"duplicate product", func(c *Config) { c.Game.Products = append(c.Game.Products, "bread") }},
		{"missing scrap value", func(c *Config) { delete(c.Game.ScrapValues, "meat") }},
		{"missing recipe entry", func(c *Config) { delete(c.Game.SetRecipe, "meat") }},
		{"zero set value", func(c *Config) { c.Game.SetValue = 0 }},
		{"factor too large", func(c *Config) { c.Game.InventoryFactor = 1 }},
		{"negative factor", func(c *Config) { c.Game.InventoryFactor = -0.1 }},
		{"min above max", func(c *Config) { c.Game.MinOrderSize = 200 }},
		{"no listen addr", func(c *Config) { c.Server.ListenAddr = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadYAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
game:
  game_duration_seconds: 60
  starting_cash: 250
server:
  listen_addr: ":9999"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Game.DurationSeconds)
	assert.Equal(t, int64(250), cfg.Game.StartingCash)
	assert.Equal(t, ":9999", cfg.Server.ListenAddr)
	// Untouched keys keep their defaults.
	assert.Equal(t, Default().Game.Products, cfg.Game.Products)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

// Package config defines all configuration for the exchange server.
// Config is loaded from a YAML file with fields overridable via GROCER_*
// environment variables. With no file path, Default() is used as-is.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yyashhp/sim-exchange/internal/common"
)

// Game holds the immutable parameters of a session. It is loaded once at
// startup and never reloaded, so later edits to the file never touch a
// live game.
type Game struct {
	DurationSeconds int                      `mapstructure:"game_duration_seconds"`
	StartingCash    int64                    `mapstructure:"starting_cash"`
	MaxPlayers      int                      `mapstructure:"max_players"`
	Products        []common.Product         `mapstructure:"products"`
	ScrapValues     map[common.Product]int64 `mapstructure:"scrap_values"`
	SetValue        int64                    `mapstructure:"set_value"`
	SetRecipe       map[common.Product]int64 `mapstructure:"set_recipe"`

	// Starting-inventory generator: the generated scrap value lands in
	// [Target*(1-Factor), Target*(1+Factor)].
	InventoryTargetValue int64   `mapstructure:"starting_inventory_target_total_value"`
	InventoryFactor      float64 `mapstructure:"starting_inventory_randomization_factor"`

	MinOrderSize   int64 `mapstructure:"min_order_size"`
	MaxOrderSize   int64 `mapstructure:"max_order_size"`
	ShowOrderNames bool  `mapstructure:"show_order_names"`
}

// Server holds the operational keys the binary needs.
type Server struct {
	ListenAddr   string `mapstructure:"listen_addr"`
	DatabasePath string `mapstructure:"database_path"`
	LogLevel     string `mapstructure:"log_level"`
}

type Config struct {
	Game   Game   `mapstructure:"game"`
	Server Server `mapstructure:"server"`
}

// Duration is the game clock as a time.Duration.
func (g Game) Duration() time.Duration {
	return time.Duration(g.DurationSeconds) * time.Second
}

// HasProduct reports membership in the configured product set.
func (g Game) HasProduct(p common.Product) bool {
	for _, q := range g.Products {
		if q == p {
			return true
		}
	}
	return false
}

// Default is the stock four-good game used when no config file is given.
func Default() *Config {
	return &Config{
		Game: Game{
			DurationSeconds: 300,
			StartingCash:    100,
			MaxPlayers:      8,
			Products:        []common.Product{"bread", "veggies", "cheese", "meat"},
			ScrapValues: map[common.Product]int64{
				"bread": 2, "veggies": 4, "cheese": 6, "meat": 8,
			},
			SetValue: 30,
			SetRecipe: map[common.Product]int64{
				"bread": 1, "veggies": 1, "cheese": 1, "meat": 1,
			},
			InventoryTargetValue: 40,
			InventoryFactor:      0.2,
			MinOrderSize:         1,
			MaxOrderSize:         100,
			ShowOrderNames:       true,
		},
		Server: Server{
			ListenAddr:   ":8080",
			DatabasePath: "grocer.db",
			LogLevel:     "info",
		},
	}
}

// Load reads config from a YAML file with env var overrides. An empty path
// yields the default config.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("GROCER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	g := c.Game
	if g.DurationSeconds <= 0 {
		return fmt.Errorf("game.game_duration_seconds must be > 0")
	}
	if g.StartingCash < 0 {
		return fmt.Errorf("game.starting_cash must be >= 0")
	}
	if g.MaxPlayers < 2 {
		return fmt.Errorf("game.max_players must be >= 2")
	}
	if len(g.Products) == 0 {
		return fmt.Errorf("game.products must not be empty")
	}
	seen := map[common.Product]bool{}
	for _, p := range g.Products {
		if p == "" {
			return fmt.Errorf("game.products must not contain empty identifiers")
		}
		if seen[p] {
			return fmt.Errorf("game.products contains duplicate %q", p)
		}
		seen[p] = true
		if g.ScrapValues[p] <= 0 {
			return fmt.Errorf("game.scrap_values[%s] must be > 0", p)
		}
		if g.SetRecipe[p] <= 0 {
			return fmt.Errorf("game.set_recipe[%s] must be > 0", p)
		}
	}
	if len(g.ScrapValues) != len(g.Products) {
		return fmt.Errorf("game.scrap_values must cover exactly the product set")
	}
	if len(g.SetRecipe) != len(g.Products) {
		return fmt.Errorf("game.set_recipe must cover exactly the product set")
	}
	if g.SetValue <= 0 {
		return fmt.Errorf("game.set_value must be > 0")
	}
	if g.InventoryTargetValue <= 0 {
		return fmt.Errorf("game.starting_inventory_target_total_value must be > 0")
	}
	if g.InventoryFactor < 0 || g.InventoryFactor >= 1 {
		return fmt.Errorf("game.starting_inventory_randomization_factor must be in [0, 1)")
	}
	if g.MinOrderSize <= 0 || g.MaxOrderSize <= 0 || g.MinOrderSize > g.MaxOrderSize {
		return fmt.Errorf("game order size bounds must be positive with min <= max")
	}
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}
	return nil
}

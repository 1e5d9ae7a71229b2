package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/calvinwijaya/count-jack/internal/game"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config represents the complete server configuration
type Config struct {
	Server ServerSettings
	Table  TableSettings
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address     string `hcl:"address,optional"`
	Port        int    `hcl:"port,optional"`
	FrontendURL string `hcl:"frontend_url,optional"`
	LogLevel    string `hcl:"log_level,optional"`

	// Database is a SQLite path or a postgres:// URL. Empty keeps sessions in memory only.
	Database string `hcl:"database,optional"`
}

// TableSettings are the defaults for new sessions and the timing of every game
type TableSettings struct {
	NumDecks           int    `hcl:"num_decks,optional"`
	NumHands           int    `hcl:"num_hands,optional"`
	Difficulty         string `hcl:"difficulty,optional"`
	ReshuffleCountdown *int   `hcl:"reshuffle_countdown,optional"`
	Seed               uint64 `hcl:"seed,optional"`
}

// file mirrors the HCL layout; both blocks may be left out
type file struct {
	Server *ServerSettings `hcl:"server,block"`
	Table  *TableSettings  `hcl:"table,block"`
}

var logLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Default returns the default configuration
func Default() *Config {
	countdown := game.DefaultReshuffleCountdown
	defaults := game.DefaultConfig()
	return &Config{
		Server: ServerSettings{
			Address:     "localhost",
			Port:        8080,
			FrontendURL: "http://localhost:5173",
			LogLevel:    "info",
		},
		Table: TableSettings{
			NumDecks:           defaults.NumDecks,
			NumHands:           defaults.NumHands,
			Difficulty:         string(defaults.Difficulty),
			ReshuffleCountdown: &countdown,
		},
	}
}

// Load loads configuration from an HCL file. A missing file yields the defaults.
func Load(filename string) (*Config, error) {
	cfg := Default()
	if filename == "" {
		return cfg, nil
	}
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return cfg, nil
	}

	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var raw file
	diags = gohcl.DecodeBody(f.Body, nil, &raw)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	// Apply defaults for missing values
	if s := raw.Server; s != nil {
		if s.Address != "" {
			cfg.Server.Address = s.Address
		}
		if s.Port != 0 {
			cfg.Server.Port = s.Port
		}
		if s.FrontendURL != "" {
			cfg.Server.FrontendURL = s.FrontendURL
		}
		if s.LogLevel != "" {
			cfg.Server.LogLevel = strings.ToLower(s.LogLevel)
		}
		cfg.Server.Database = s.Database
	}
	if t := raw.Table; t != nil {
		if t.NumDecks != 0 {
			cfg.Table.NumDecks = t.NumDecks
		}
		if t.NumHands != 0 {
			cfg.Table.NumHands = t.NumHands
		}
		if t.Difficulty != "" {
			cfg.Table.Difficulty = strings.ToLower(t.Difficulty)
		}
		if t.ReshuffleCountdown != nil {
			cfg.Table.ReshuffleCountdown = t.ReshuffleCountdown
		}
		cfg.Table.Seed = t.Seed
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if !logLevels[c.Server.LogLevel] {
		return fmt.Errorf("invalid log level: %q", c.Server.LogLevel)
	}
	if c.Table.ReshuffleCountdown != nil && *c.Table.ReshuffleCountdown < 0 {
		return fmt.Errorf("reshuffle countdown must not be negative, got %d", *c.Table.ReshuffleCountdown)
	}
	if err := c.GameConfig().Validate(); err != nil {
		return fmt.Errorf("table: %w", err)
	}
	return nil
}

// GameConfig returns the table defaults for new sessions
func (c *Config) GameConfig() game.Config {
	return game.Config{
		NumDecks:   c.Table.NumDecks,
		NumHands:   c.Table.NumHands,
		Difficulty: game.Difficulty(c.Table.Difficulty),
	}
}

// ReshuffleTicks returns the reshuffle countdown length in seconds
func (c *Config) ReshuffleTicks() int {
	if c.Table.ReshuffleCountdown == nil {
		return game.DefaultReshuffleCountdown
	}
	return *c.Table.ReshuffleCountdown
}

// ServerAddress returns the full listen address
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

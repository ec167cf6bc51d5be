package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/pokerforge/tourney/internal/tournament"
)

// Config is the complete server configuration.
type Config struct {
	Server      ServerSettings     `hcl:"server,block"`
	Store       *StoreSettings     `hcl:"store,block"`
	Tournaments []TournamentConfig `hcl:"tournament,block"`
}

// ServerSettings contains server-level configuration.
type ServerSettings struct {
	Address   string `hcl:"address,optional"`
	Port      int    `hcl:"port,optional"`
	AdminPort int    `hcl:"admin_port,optional"`
	LogLevel  string `hcl:"log_level,optional"`
}

// StoreSettings selects the persistence backend.
type StoreSettings struct {
	Driver string `hcl:"driver,optional"` // "sqlite" or "postgres"
	DSN    string `hcl:"dsn,optional"`    // file path or connection string
}

// TournamentConfig defines a tournament created at boot.
type TournamentConfig struct {
	ID            string        `hcl:"id,label"`
	Name          string        `hcl:"name"`
	MaxPlayers    int           `hcl:"max_players"`
	SeatsPerTable int           `hcl:"seats_per_table,optional"`
	StartingChips int           `hcl:"starting_chips,optional"`
	PrizePlaces   int           `hcl:"prize_places,optional"`
	Bots          int           `hcl:"bots,optional"` // bot registrants added at boot
	Levels        []LevelConfig `hcl:"level,block"`
}

// LevelConfig is one blind level. A zero duration marks the terminal level.
type LevelConfig struct {
	SmallBlind        int `hcl:"small_blind"`
	BigBlind          int `hcl:"big_blind"`
	DurationSeconds   int `hcl:"duration_seconds,optional"`
	BreakAfterSeconds int `hcl:"break_after_seconds,optional"`
}

// DefaultConfig returns the configuration used when no file is present: one
// small sit-and-go style tournament filled with bots.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSettings{
			Address:   "localhost",
			Port:      8080,
			AdminPort: 8081,
			LogLevel:  "info",
		},
		Store: &StoreSettings{Driver: "sqlite", DSN: "tourney.db"},
		Tournaments: []TournamentConfig{
			{
				ID:            "default",
				Name:          "Default Tournament",
				MaxPlayers:    9,
				SeatsPerTable: 9,
				StartingChips: 1000,
				PrizePlaces:   3,
				Bots:          8,
				Levels: []LevelConfig{
					{SmallBlind: 5, BigBlind: 10, DurationSeconds: 300},
					{SmallBlind: 10, BigBlind: 20, DurationSeconds: 300},
					{SmallBlind: 25, BigBlind: 50},
				},
			},
		},
	}
}

// LoadConfig loads configuration from an HCL file, falling back to defaults
// when the file does not exist.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	if config.Server.Address == "" {
		config.Server.Address = "localhost"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.AdminPort == 0 {
		config.Server.AdminPort = config.Server.Port + 1
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = "info"
	}
	if config.Store == nil {
		config.Store = &StoreSettings{}
	}
	if config.Store.Driver == "" {
		config.Store.Driver = "sqlite"
	}
	if config.Store.DSN == "" && config.Store.Driver == "sqlite" {
		config.Store.DSN = "tourney.db"
	}

	for i := range config.Tournaments {
		t := &config.Tournaments[i]
		if t.SeatsPerTable == 0 {
			t.SeatsPerTable = 9
		}
		if t.StartingChips == 0 {
			t.StartingChips = 1000
		}
		if t.PrizePlaces == 0 {
			t.PrizePlaces = 1
		}
	}
	return &config, nil
}

// Validate checks the configuration for basic mistakes before startup.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.AdminPort < 1 || c.Server.AdminPort > 65535 {
		return fmt.Errorf("invalid admin port: %d", c.Server.AdminPort)
	}
	if c.Server.AdminPort == c.Server.Port {
		return fmt.Errorf("admin port must differ from the client port")
	}
	seen := map[string]bool{}
	for _, t := range c.Tournaments {
		if seen[t.ID] {
			return fmt.Errorf("duplicate tournament id %q", t.ID)
		}
		seen[t.ID] = true
		if t.MaxPlayers < 2 {
			return fmt.Errorf("tournament %s: max players must be at least 2", t.ID)
		}
		if t.SeatsPerTable < 2 || t.SeatsPerTable > 10 {
			return fmt.Errorf("tournament %s: seats per table must be between 2 and 10", t.ID)
		}
		if t.Bots > t.MaxPlayers {
			return fmt.Errorf("tournament %s: more bots than seats", t.ID)
		}
		if err := t.Schedule().Validate(); err != nil {
			return fmt.Errorf("tournament %s: %w", t.ID, err)
		}
	}
	return nil
}

// Address returns the client-facing listen address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// AdminAddress returns the admin listen address.
func (c *Config) AdminAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.AdminPort)
}

// Schedule converts the configured levels to a blind schedule.
func (t TournamentConfig) Schedule() tournament.Schedule {
	out := make(tournament.Schedule, len(t.Levels))
	for i, lvl := range t.Levels {
		out[i] = tournament.BlindLevel{
			SmallBlind: lvl.SmallBlind,
			BigBlind:   lvl.BigBlind,
			Duration:   time.Duration(lvl.DurationSeconds) * time.Second,
			BreakAfter: time.Duration(lvl.BreakAfterSeconds) * time.Second,
		}
	}
	return out
}

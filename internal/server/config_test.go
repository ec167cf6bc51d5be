package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tourney.hcl")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.hcl"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "localhost:8080", cfg.Address())
	assert.Equal(t, "localhost:8081", cfg.AdminAddress())
	require.Len(t, cfg.Tournaments, 1)
	assert.Equal(t, 8, cfg.Tournaments[0].Bots)
}

func TestLoadConfigParsesHCL(t *testing.T) {
	path := writeConfig(t, `
server {
  address = "0.0.0.0"
  port    = 9000
}

store {
  driver = "postgres"
  dsn    = "postgres://localhost/tourney?sslmode=disable"
}

tournament "friday" {
  name        = "Friday Night"
  max_players = 18

  seats_per_table = 6
  starting_chips  = 1500
  prize_places    = 3

  level {
    small_blind      = 10
    big_blind        = 20
    duration_seconds = 600
  }

  level {
    small_blind         = 25
    big_blind           = 50
    duration_seconds    = 600
    break_after_seconds = 300
  }

  level {
    small_blind = 50
    big_blind   = 100
  }
}
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0:9000", cfg.Address())
	assert.Equal(t, "0.0.0.0:9001", cfg.AdminAddress(), "admin port defaults to port+1")
	assert.Equal(t, "postgres", cfg.Store.Driver)

	require.Len(t, cfg.Tournaments, 1)
	trn := cfg.Tournaments[0]
	assert.Equal(t, "friday", trn.ID)
	assert.Equal(t, 18, trn.MaxPlayers)

	schedule := trn.Schedule()
	require.Len(t, schedule, 3)
	assert.Equal(t, 10*time.Minute, schedule[0].Duration)
	assert.Equal(t, 5*time.Minute, schedule[1].BreakAfter)
	assert.Equal(t, time.Duration(0), schedule[2].Duration, "last level is terminal")
}

func TestConfigValidateRejectsMistakes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.AdminPort = cfg.Server.Port
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Tournaments[0].MaxPlayers = 1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Tournaments[0].Levels = nil
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Tournaments = append(cfg.Tournaments, cfg.Tournaments[0])
	assert.Error(t, cfg.Validate(), "duplicate tournament id")
}

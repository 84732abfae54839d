package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 720, cfg.Steps)
	assert.Len(t, cfg.Diseases, 1)
	assert.Equal(t, "baseline", cfg.Diseases[0].Name)
}

func TestLoadOverridesDefaults(t *testing.T) {
	doc := `
seed: 7
steps: 48
population:
  communities: 20
  units: 4
commute:
  flow_file: flow.bin
  stay_local_chance: 0
movement:
  walk_chance: 0.05
diseases:
  - name: strain-a
    infect: 0.5
    vac_eff: 0.9
    incubation_days: 2
    xmit_work: 0.05
initial_infections: 5
log:
  level: debug
`
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 48, cfg.Steps)
	assert.Equal(t, 20, cfg.Population.Communities)
	assert.Equal(t, "flow.bin", cfg.Commute.FlowFile)
	// Explicit zero beats the 0.25 default.
	assert.Zero(t, cfg.Commute.StayLocalChance)
	assert.Equal(t, 0.05, cfg.Movement.WalkChance)
	// Unset fields keep defaults.
	assert.Equal(t, 2000, cfg.Population.MeanCommunitySize)
	assert.Equal(t, 8, cfg.Movement.WorkStartHour)
	assert.Equal(t, ":8080", cfg.API.Addr)

	require.Len(t, cfg.Diseases, 1)
	assert.Equal(t, "strain-a", cfg.Diseases[0].Name)
	assert.Equal(t, 0.5, cfg.Diseases[0].Infect)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("steps: [not a number"), 0o644))
	_, err = Load(path)
	require.Error(t, err)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero steps", func(c *Config) { c.Steps = 0 }},
		{"fixed domain", func(c *Config) { c.Domain.Auto = false }},
		{"no communities", func(c *Config) { c.Population.Communities = 0 }},
		{"units exceed communities", func(c *Config) { c.Population.Units = c.Population.Communities + 1 }},
		{"zero workgroup size", func(c *Config) { c.Commute.WorkgroupSize = 0 }},
		{"stay local out of range", func(c *Config) { c.Commute.StayLocalChance = 1.5 }},
		{"walk chance out of range", func(c *Config) { c.Movement.WalkChance = -0.1 }},
		{"inverted work hours", func(c *Config) { c.Movement.WorkStartHour = 18 }},
		{"no diseases", func(c *Config) { c.Diseases = nil }},
		{"bad disease", func(c *Config) { c.Diseases[0].Infect = 2 }},
		{"negative infections", func(c *Config) { c.InitialInfections = -1 }},
		{"empty api addr", func(c *Config) { c.API.Addr = "" }},
		{"empty db", func(c *Config) { c.DB = "" }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, LogConfig{Level: "debug"}.SlogLevel())
	assert.Equal(t, slog.LevelInfo, LogConfig{Level: "info"}.SlogLevel())
	assert.Equal(t, slog.LevelInfo, LogConfig{}.SlogLevel())
	assert.Equal(t, slog.LevelWarn, LogConfig{Level: "WARN"}.SlogLevel())
	assert.Equal(t, slog.LevelError, LogConfig{Level: "error"}.SlogLevel())
}

func TestAssignConfig(t *testing.T) {
	cfg := Default()
	ac := cfg.Commute.AssignConfig()
	assert.Equal(t, 20, ac.WorkgroupSize)
	assert.Equal(t, 0.25, ac.StayLocal)
}

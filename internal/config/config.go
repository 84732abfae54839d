// Package config loads run configuration: YAML unmarshaled over defaults,
// then a validation pass. Command-line flags override individual fields
// after Load.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/talgya/outbreak-sim/internal/census"
	"github.com/talgya/outbreak-sim/internal/commute"
	"github.com/talgya/outbreak-sim/internal/disease"
)

// Config is one run's full configuration.
type Config struct {
	Seed  int64 `yaml:"seed"`
	Steps int   `yaml:"steps"` // simulated hours

	Domain     DomainConfig       `yaml:"domain"`
	Population census.SynthConfig `yaml:"population"`
	Commute    CommuteConfig      `yaml:"commute"`
	Movement   MovementConfig     `yaml:"movement"`

	Diseases          []disease.Params `yaml:"diseases"`
	InitialInfections int              `yaml:"initial_infections"`

	API APIConfig `yaml:"api"`
	DB  string    `yaml:"db"`
	Log LogConfig `yaml:"log"`
}

// DomainConfig controls grid sizing. Only auto-derivation from the
// community count is supported.
type DomainConfig struct {
	Auto bool `yaml:"auto"`
}

// CommuteConfig points at the worker-flow file and tunes assignment.
type CommuteConfig struct {
	// FlowFile is the binary worker-flow input. Empty means synthesize a
	// gravity-model flow in memory instead of reading one.
	FlowFile        string  `yaml:"flow_file"`
	WorkgroupSize   int     `yaml:"workgroup_size"`
	StayLocalChance float64 `yaml:"stay_local_chance"`
}

// AssignConfig converts the block into commute assignment tuning.
func (c CommuteConfig) AssignConfig() commute.AssignConfig {
	return commute.AssignConfig{
		WorkgroupSize: c.WorkgroupSize,
		StayLocal:     c.StayLocalChance,
	}
}

// MovementConfig tunes the per-tick movement pass.
type MovementConfig struct {
	WalkChance    float64 `yaml:"walk_chance"`
	TravelChance  float64 `yaml:"travel_chance"`
	WorkStartHour int     `yaml:"work_start_hour"`
	WorkEndHour   int     `yaml:"work_end_hour"`
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	Addr       string `yaml:"addr"`
	AdminToken string `yaml:"admin_token"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// SlogLevel maps the configured level name onto slog. Unknown names fall
// back to info; Validate rejects them first.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default returns the baseline configuration: a 240-community synthetic
// region, one baseline disease, a 30-day run.
func Default() *Config {
	return &Config{
		Seed:   42,
		Steps:  720,
		Domain: DomainConfig{Auto: true},
		Population: census.SynthConfig{
			Communities:       240,
			Units:             12,
			MeanCommunitySize: 2000,
		},
		Commute: CommuteConfig{
			WorkgroupSize:   commute.DefaultWorkgroupSize,
			StayLocalChance: commute.DefaultStayLocal,
		},
		Movement: MovementConfig{
			WalkChance:    0.01,
			TravelChance:  0.001,
			WorkStartHour: 8,
			WorkEndHour:   17,
		},
		Diseases:          []disease.Params{disease.Default()},
		InitialInfections: 20,
		API:               APIConfig{Addr: ":8080"},
		DB:                "outbreak.db",
		Log:               LogConfig{Level: "info"},
	}
}

// Load reads a YAML file over the defaults. Fields absent from the file
// keep their default values.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration before a run starts.
func (c *Config) Validate() error {
	if c.Steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", c.Steps)
	}
	if !c.Domain.Auto {
		return fmt.Errorf("domain.auto is the only supported sizing mode")
	}
	if c.Population.Communities <= 0 {
		return fmt.Errorf("population.communities must be positive, got %d", c.Population.Communities)
	}
	if c.Population.Units <= 0 {
		return fmt.Errorf("population.units must be positive, got %d", c.Population.Units)
	}
	if c.Population.Units > c.Population.Communities {
		return fmt.Errorf("population.units %d exceeds communities %d", c.Population.Units, c.Population.Communities)
	}
	if c.Population.MeanCommunitySize <= 0 {
		return fmt.Errorf("population.mean_community_size must be positive, got %d", c.Population.MeanCommunitySize)
	}
	if c.Commute.WorkgroupSize <= 0 {
		return fmt.Errorf("commute.workgroup_size must be positive, got %d", c.Commute.WorkgroupSize)
	}
	if c.Commute.StayLocalChance < 0 || c.Commute.StayLocalChance > 1 {
		return fmt.Errorf("commute.stay_local_chance %v out of [0,1]", c.Commute.StayLocalChance)
	}
	if c.Movement.WalkChance < 0 || c.Movement.WalkChance > 1 {
		return fmt.Errorf("movement.walk_chance %v out of [0,1]", c.Movement.WalkChance)
	}
	if c.Movement.TravelChance < 0 || c.Movement.TravelChance > 1 {
		return fmt.Errorf("movement.travel_chance %v out of [0,1]", c.Movement.TravelChance)
	}
	if c.Movement.WorkStartHour < 0 || c.Movement.WorkEndHour > 23 ||
		c.Movement.WorkStartHour >= c.Movement.WorkEndHour {
		return fmt.Errorf("movement work hours %d..%d invalid", c.Movement.WorkStartHour, c.Movement.WorkEndHour)
	}
	if len(c.Diseases) == 0 {
		return fmt.Errorf("at least one disease is required")
	}
	for i := range c.Diseases {
		if err := c.Diseases[i].Validate(); err != nil {
			return fmt.Errorf("diseases[%d]: %w", i, err)
		}
	}
	if c.InitialInfections < 0 {
		return fmt.Errorf("initial_infections must be non-negative, got %d", c.InitialInfections)
	}
	if c.API.Addr == "" {
		return fmt.Errorf("api.addr must be set")
	}
	if c.DB == "" {
		return fmt.Errorf("db path must be set")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q not one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}

package multiworld

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"realmclock.ai/internal/sim/gathering"
	"realmclock.ai/internal/sim/worldstate"
)

type Config struct {
	Worlds []WorldSpec `yaml:"worlds"`
}

type WorldSpec struct {
	ID               string `yaml:"id"`
	Seed             string `yaml:"seed"`
	SeasonLengthDays int    `yaml:"season_length_days"`
	// RFC3339 start of season 1. Only used when the world has no stored lifecycle yet.
	SeasonStartedAt string               `yaml:"season_started_at"`
	MapSize         int                  `yaml:"map_size"`
	SpawnTable      []gathering.SpawnRow `yaml:"spawn_table,omitempty"`
}

// StartTime parses SeasonStartedAt. Validate guarantees it parses for a loaded config.
func (w WorldSpec) StartTime() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(w.SeasonStartedAt))
	if err != nil {
		return time.Time{}, fmt.Errorf("world %s season_started_at: %w", w.ID, err)
	}
	return t.UTC(), nil
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	// A file replaces the default world list rather than merging into it.
	cfg = Config{}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("worlds.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("worlds.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		Worlds: []WorldSpec{
			{
				ID:               "world_alpha",
				Seed:             "world_alpha_seed",
				SeasonLengthDays: 7,
				SeasonStartedAt:  "2026-01-01T00:00:00Z",
				MapSize:          16,
				SpawnTable: []gathering.SpawnRow{
					{
						NodeType: "food", NodeLabel: "Wild Orchard", SpawnCount: 4, GatherDurationSeconds: 300,
						YieldRanges: map[string]worldstate.YieldRange{"food": {Min: 80, Max: 140}},
						AmbushRiskPct: 20, AmbushBaseStrength: 15, DepletionCycles: 3,
					},
					{
						NodeType: "wood", NodeLabel: "Old Forest", SpawnCount: 3, GatherDurationSeconds: 420,
						YieldRanges: map[string]worldstate.YieldRange{"wood": {Min: 60, Max: 120}},
						AmbushRiskPct: 35, AmbushBaseStrength: 25, DepletionCycles: 3,
					},
					{
						NodeType: "iron", NodeLabel: "Iron Vein", SpawnCount: 2, GatherDurationSeconds: 600,
						YieldRanges: map[string]worldstate.YieldRange{
							"iron":  {Min: 20, Max: 45},
							"stone": {Min: 10, Max: 30},
						},
						AmbushRiskPct: 55, AmbushBaseStrength: 40, DepletionCycles: 2,
					},
				},
			},
		},
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	for i := range c.Worlds {
		w := &c.Worlds[i]
		w.ID = strings.TrimSpace(w.ID)
		if strings.TrimSpace(w.Seed) == "" {
			w.Seed = w.ID
		}
		if w.SeasonLengthDays < 1 {
			w.SeasonLengthDays = 1
		}
		if w.MapSize < 1 {
			w.MapSize = 1
		}
	}
}

func (c Config) Validate() error {
	c.Normalize()
	if len(c.Worlds) == 0 {
		return fmt.Errorf("worlds must not be empty")
	}
	seen := map[string]bool{}
	for _, w := range c.Worlds {
		if w.ID == "" {
			return fmt.Errorf("world id must not be empty")
		}
		if seen[w.ID] {
			return fmt.Errorf("duplicate world id: %s", w.ID)
		}
		seen[w.ID] = true
		if _, err := w.StartTime(); err != nil {
			return err
		}
		for i, row := range w.SpawnTable {
			if strings.TrimSpace(row.NodeType) == "" {
				return fmt.Errorf("world %s spawn_table[%d] node_type must not be empty", w.ID, i)
			}
			if row.SpawnCount < 0 {
				return fmt.Errorf("world %s spawn_table[%d] spawn_count must be >= 0", w.ID, i)
			}
			if row.AmbushRiskPct < 0 || row.AmbushRiskPct > 100 {
				return fmt.Errorf("world %s spawn_table[%d] ambush_risk_pct must be in [0, 100]", w.ID, i)
			}
		}
	}
	return nil
}

func (c Config) WorldSpecByID(id string) (WorldSpec, bool) {
	for _, w := range c.Worlds {
		if w.ID == id {
			return w, true
		}
	}
	return WorldSpec{}, false
}

func (c Config) WorldIDs() []string {
	out := make([]string, 0, len(c.Worlds))
	for _, w := range c.Worlds {
		out = append(out, w.ID)
	}
	return out
}

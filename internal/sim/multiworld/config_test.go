package multiworld

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_WorldsYAML(t *testing.T) {
	cfg, err := Load("../../../configs/worlds.yaml")
	if err != nil {
		t.Fatalf("load worlds.yaml: %v", err)
	}
	alpha, ok := cfg.WorldSpecByID("world_alpha")
	if !ok {
		t.Fatalf("world_alpha missing: %v", cfg.WorldIDs())
	}
	if alpha.Seed != "world_alpha_seed" || alpha.SeasonLengthDays != 7 || alpha.MapSize != 16 {
		t.Fatalf("world_alpha=%+v", alpha)
	}
	if len(alpha.SpawnTable) != 3 {
		t.Fatalf("spawn rows=%d want 3", len(alpha.SpawnTable))
	}
	iron := alpha.SpawnTable[2]
	if iron.YieldRanges["stone"].Min != 10 || iron.YieldRanges["stone"].Max != 30 {
		t.Fatalf("iron yield ranges=%+v", iron.YieldRanges)
	}
	start, err := alpha.StartTime()
	if err != nil || start.Format("2006-01-02") != "2026-01-01" {
		t.Fatalf("start=%s err=%v", start, err)
	}
	if _, ok := cfg.WorldSpecByID("world_beta"); !ok {
		t.Fatalf("world_beta missing")
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if len(cfg.Worlds) != 1 || cfg.Worlds[0].ID != "world_alpha" {
		t.Fatalf("default worlds=%v", cfg.WorldIDs())
	}
}

func TestConfigNormalize_FillsSeedAndClampsSizes(t *testing.T) {
	cfg := Config{Worlds: []WorldSpec{{ID: " w1 ", SeasonStartedAt: "2026-01-01T00:00:00Z"}}}
	cfg.Normalize()
	w := cfg.Worlds[0]
	if w.ID != "w1" || w.Seed != "w1" || w.SeasonLengthDays != 1 || w.MapSize != 1 {
		t.Fatalf("normalized=%+v", w)
	}
}

func TestConfigValidate_Rejects(t *testing.T) {
	cases := map[string]string{
		"empty":    "worlds: []\n",
		"dup":      "worlds:\n  - {id: a, season_started_at: \"2026-01-01T00:00:00Z\"}\n  - {id: a, season_started_at: \"2026-01-01T00:00:00Z\"}\n",
		"bad time": "worlds:\n  - {id: a, season_started_at: \"yesterday\"}\n",
		"bad row":  "worlds:\n  - id: a\n    season_started_at: \"2026-01-01T00:00:00Z\"\n    spawn_table:\n      - {node_type: \"\", spawn_count: 1}\n",
		"bad risk": "worlds:\n  - id: a\n    season_started_at: \"2026-01-01T00:00:00Z\"\n    spawn_table:\n      - {node_type: food, ambush_risk_pct: 120}\n",
	}
	for name, raw := range cases {
		path := filepath.Join(t.TempDir(), "worlds.yaml")
		if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

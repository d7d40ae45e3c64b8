package ambush

import (
	"testing"

	"realmclock.ai/internal/sim/mathx"
)

func TestResolve_Deterministic(t *testing.T) {
	in := Input{Seed: "world_gamma_seed", EncounterID: "march_low_guard:node_iron_1", RiskPct: 40, EscortStrength: 10, BaseStrength: 25}
	a := Resolve(in)
	b := Resolve(in)
	if a != b {
		t.Fatalf("resolve not deterministic: %+v vs %+v", a, b)
	}
}

func TestResolve_LowEscortIntercepted(t *testing.T) {
	got := Resolve(Input{
		Seed:         "world_gamma_seed",
		EncounterID:  "march_low_guard:node_iron_1",
		RiskPct:      100,
		BaseStrength: 25,
	})
	if !got.Triggered {
		t.Fatalf("risk 100 must trigger: %+v", got)
	}
	if got.Roll != 0 || got.Strength != 37 {
		t.Fatalf("roll/strength mismatch: %+v", got)
	}
	if got.Outcome != OutcomeIntercepted {
		t.Fatalf("outcome=%s want %s", got.Outcome, OutcomeIntercepted)
	}
}

func TestResolve_HighEscortRepelled(t *testing.T) {
	got := Resolve(Input{
		Seed:           "world_gamma_seed",
		EncounterID:    "march_high_guard:node_iron_1",
		RiskPct:        100,
		EscortStrength: 500,
		BaseStrength:   25,
	})
	if got.Roll != 92 || got.Strength != 45 {
		t.Fatalf("roll/strength mismatch: %+v", got)
	}
	if got.Outcome != OutcomeRepelled {
		t.Fatalf("outcome=%s want %s", got.Outcome, OutcomeRepelled)
	}
}

func TestResolve_EqualStrengthFavorsAmbush(t *testing.T) {
	got := Resolve(Input{
		Seed:           "world_gamma_seed",
		EncounterID:    "march_low_guard:node_iron_1",
		RiskPct:        100,
		EscortStrength: 37,
		BaseStrength:   25,
	})
	if got.Outcome != OutcomeIntercepted {
		t.Fatalf("tie should be intercepted, got %+v", got)
	}
	got = Resolve(Input{
		Seed:           "world_gamma_seed",
		EncounterID:    "march_low_guard:node_iron_1",
		RiskPct:        100,
		EscortStrength: 38,
		BaseStrength:   25,
	})
	if got.Outcome != OutcomeRepelled {
		t.Fatalf("escort above strength should repel, got %+v", got)
	}
}

func TestResolve_NormalizesInputs(t *testing.T) {
	got := Resolve(Input{Seed: "s", EncounterID: "e", RiskPct: 0, EscortStrength: -4, BaseStrength: -9})
	if got.Triggered || got.Outcome != OutcomeNotTriggered {
		t.Fatalf("zero risk must never trigger: %+v", got)
	}
	if got.EscortStrength != 0 {
		t.Fatalf("escort should clamp to 0, got %d", got.EscortStrength)
	}
	if got.Strength < 0 || got.Strength > strengthVariance {
		t.Fatalf("strength with negative base out of range: %d", got.Strength)
	}

	empty := Resolve(Input{RiskPct: 250})
	fallback := Resolve(Input{Seed: fallbackSeed, EncounterID: fallbackEncounter, RiskPct: 100})
	if empty != fallback {
		t.Fatalf("empty ids should use fallbacks: %+v vs %+v", empty, fallback)
	}
	if !empty.Triggered {
		t.Fatalf("risk clamps to 100 and must trigger")
	}
}

func TestResolve_HashesSeedVerbatim(t *testing.T) {
	in := Input{Seed: " world_gamma_seed ", EncounterID: "march_low_guard:node_iron_1", RiskPct: 100, BaseStrength: 25}
	got := Resolve(in)
	if want := mathx.Pick(" world_gamma_seed :march_low_guard:node_iron_1:ambush_roll", 100); got.Roll != want {
		t.Fatalf("roll=%d want %d", got.Roll, want)
	}
	if want := 25 + mathx.Pick(" world_gamma_seed :march_low_guard:node_iron_1:ambush_strength", 21); got.Strength != want {
		t.Fatalf("strength=%d want %d", got.Strength, want)
	}

	blank := Resolve(Input{RiskPct: 100})
	if want := mathx.Pick("neutral_seed:neutral_encounter:ambush_roll", 100); blank.Roll != want {
		t.Fatalf("empty seed and encounter should use sentinels: roll=%d want %d", blank.Roll, want)
	}
}

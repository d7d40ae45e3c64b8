// Package ambush rolls ambush encounters for gather marches. Every value is derived from the
// seed and encounter id, so the same inputs always resolve to the same outcome.
package ambush

import (
	"fmt"

	"realmclock.ai/internal/sim/mathx"
)

type Outcome string

const (
	OutcomeNotTriggered Outcome = "ambush_not_triggered"
	OutcomeRepelled     Outcome = "ambush_repelled"
	OutcomeIntercepted  Outcome = "ambush_intercepted"
)

const (
	fallbackSeed      = "neutral_seed"
	fallbackEncounter = "neutral_encounter"

	// Strength variance on top of the node's base strength, inclusive.
	strengthVariance = 20
)

type Input struct {
	Seed           string
	EncounterID    string
	RiskPct        int
	EscortStrength int
	BaseStrength   int
}

type Result struct {
	Triggered      bool
	Roll           int
	Strength       int
	EscortStrength int
	Outcome        Outcome
}

func Resolve(in Input) Result {
	seed := in.Seed
	if seed == "" {
		seed = fallbackSeed
	}
	enc := in.EncounterID
	if enc == "" {
		enc = fallbackEncounter
	}
	risk := mathx.ClampInt(in.RiskPct, 0, 100)
	escort := mathx.NonNegative(in.EscortStrength)
	base := mathx.NonNegative(in.BaseStrength)

	roll := mathx.Pick(fmt.Sprintf("%s:%s:ambush_roll", seed, enc), 100)
	strength := base + mathx.Pick(fmt.Sprintf("%s:%s:ambush_strength", seed, enc), strengthVariance+1)

	out := Result{
		Triggered:      risk > 0 && roll < risk,
		Roll:           roll,
		Strength:       strength,
		EscortStrength: escort,
		Outcome:        OutcomeNotTriggered,
	}
	if !out.Triggered {
		return out
	}
	// A tie goes to the ambushers.
	if escort > strength {
		out.Outcome = OutcomeRepelled
	} else {
		out.Outcome = OutcomeIntercepted
	}
	return out
}

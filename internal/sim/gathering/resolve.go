package gathering

import (
	"fmt"
	"math"

	"realmclock.ai/internal/sim/ambush"
	"realmclock.ai/internal/sim/mathx"
	"realmclock.ai/internal/sim/worldstate"
)

type resolution struct {
	ambush ambush.Result
	yield  []worldstate.ResourceAmount
}

func resolveMarch(m worldstate.GatherMarchRuntimeState, n worldstate.NeutralNodeRuntimeState, interceptedMultiplier float64) resolution {
	yield := baseYield(m.DeterministicSeed, m.MarchID, n)
	amb := ambush.Resolve(ambush.Input{
		Seed:           m.DeterministicSeed,
		EncounterID:    m.MarchID + ":" + n.NodeID,
		RiskPct:        n.AmbushRiskPct,
		EscortStrength: m.EscortStrength,
		BaseStrength:   n.AmbushBaseStrength,
	})
	if amb.Outcome == ambush.OutcomeIntercepted {
		yield = scaleYield(yield, interceptedMultiplier)
	}
	return resolution{ambush: amb, yield: yield}
}

// baseYield rolls each resource in ascending resource id order. Non-positive amounts are
// dropped.
func baseYield(seed, marchID string, n worldstate.NeutralNodeRuntimeState) []worldstate.ResourceAmount {
	out := []worldstate.ResourceAmount{}
	for _, id := range n.ResourceIDs() {
		r := normalizeRange(n.YieldRanges[id])
		span := r.Max - r.Min + 1
		amount := r.Min + mathx.Pick(fmt.Sprintf("%s:%s:%s:%s", seed, marchID, n.NodeID, id), span)
		if amount <= 0 {
			continue
		}
		out = append(out, worldstate.ResourceAmount{ResourceID: id, Amount: amount})
	}
	return out
}

func scaleYield(in []worldstate.ResourceAmount, multiplier float64) []worldstate.ResourceAmount {
	out := []worldstate.ResourceAmount{}
	for _, ra := range in {
		amount := int(math.Floor(float64(ra.Amount) * multiplier))
		if amount <= 0 {
			continue
		}
		out = append(out, worldstate.ResourceAmount{ResourceID: ra.ResourceID, Amount: amount})
	}
	return out
}

func normalizeRange(r worldstate.YieldRange) worldstate.YieldRange {
	if r.Max < r.Min {
		r.Max = r.Min
	}
	return r
}

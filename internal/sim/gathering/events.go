package gathering

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"realmclock.ai/internal/protocol"
	"realmclock.ai/internal/sim/ambush"
	"realmclock.ai/internal/sim/worldstate"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func gatherStartedEvent(m worldstate.GatherMarchRuntimeState, n worldstate.NeutralNodeRuntimeState) protocol.Event {
	return protocol.NewEvent(protocol.EventGatherStarted, map[string]string{
		"march_id":      m.MarchID,
		"world_id":      m.WorldID,
		"settlement_id": m.SettlementID,
		"node_id":       n.NodeID,
		"node_label":    n.NodeLabel,
		"army_name":     m.ArmyName,
		"departed_at":   formatTime(m.DepartedAt),
		"completes_at":  formatTime(m.CompletesAt),
	})
}

func resolutionEvents(m worldstate.GatherMarchRuntimeState, n worldstate.NeutralNodeRuntimeState, amb ambush.Result) []protocol.Event {
	out := make([]protocol.Event, 0, 3)
	if amb.Triggered {
		out = append(out,
			protocol.NewEvent(protocol.EventAmbushTriggered, map[string]string{
				"march_id":        m.MarchID,
				"node_id":         n.NodeID,
				"ambush_roll":     strconv.Itoa(amb.Roll),
				"ambush_risk_pct": strconv.Itoa(n.AmbushRiskPct),
				"ambush_strength": strconv.Itoa(amb.Strength),
			}),
			protocol.NewEvent(protocol.EventAmbushResolved, map[string]string{
				"march_id":        m.MarchID,
				"node_id":         n.NodeID,
				"ambush_roll":     strconv.Itoa(amb.Roll),
				"ambush_risk_pct": strconv.Itoa(n.AmbushRiskPct),
				"ambush_strength": strconv.Itoa(amb.Strength),
				"escort_strength": strconv.Itoa(amb.EscortStrength),
				"ambush_outcome":  string(amb.Outcome),
			}),
		)
	}
	resolvedAt := m.CompletesAt
	if m.ResolvedAt != nil {
		resolvedAt = *m.ResolvedAt
	}
	out = append(out, protocol.NewEvent(protocol.EventGatherCompleted, map[string]string{
		"march_id":         m.MarchID,
		"world_id":         m.WorldID,
		"node_id":          n.NodeID,
		"haul":             HaulSummary(m.GatheredYield),
		"resolved_at":      formatTime(resolvedAt),
		"ambush_outcome":   string(amb.Outcome),
		"remaining_cycles": strconv.Itoa(n.RemainingCycles),
	}))
	return out
}

// HaulSummary renders a yield as "120 food, 40 wood", or "no haul" when empty.
func HaulSummary(yield []worldstate.ResourceAmount) string {
	if len(yield) == 0 {
		return "no haul"
	}
	parts := make([]string, 0, len(yield))
	for _, ra := range yield {
		parts = append(parts, fmt.Sprintf("%d %s", ra.Amount, ra.ResourceID))
	}
	return strings.Join(parts, ", ")
}

package gathering

import (
	"context"
	"fmt"
	"strings"

	"realmclock.ai/internal/sim/mathx"
	"realmclock.ai/internal/sim/worldstate"
)

type SpawnRow struct {
	NodeType              string                           `yaml:"node_type" json:"node_type"`
	NodeLabel             string                           `yaml:"node_label" json:"node_label"`
	SpawnCount            int                              `yaml:"spawn_count" json:"spawn_count"`
	GatherDurationSeconds int                              `yaml:"gather_duration_seconds" json:"gather_duration_seconds"`
	YieldRanges           map[string]worldstate.YieldRange `yaml:"yield_ranges" json:"yield_ranges"`
	AmbushRiskPct         int                              `yaml:"ambush_risk_pct" json:"ambush_risk_pct"`
	AmbushBaseStrength    int                              `yaml:"ambush_base_strength" json:"ambush_base_strength"`
	DepletionCycles       int                              `yaml:"depletion_cycles" json:"depletion_cycles"`
}

type SpawnRequest struct {
	WorldID    string
	WorldSeed  string
	MapSize    int
	SpawnTable []SpawnRow
}

// SpawnNeutralNodes creates the nodes a spawn table describes and returns them in table
// order. Nodes that already exist are returned as stored, so re-running a spawn after a
// restart neither resets depletion nor moves anything.
func (s *Service) SpawnNeutralNodes(ctx context.Context, req SpawnRequest) ([]worldstate.NeutralNodeRuntimeState, error) {
	mapSize := req.MapSize
	if mapSize < 1 {
		mapSize = 1
	}
	existing, err := s.nodes.ListNodes(ctx, req.WorldID)
	if err != nil {
		return nil, fmt.Errorf("list nodes %s: %w", req.WorldID, err)
	}
	occupied := make(map[worldstate.Coordinate]bool, len(existing))
	for _, n := range existing {
		occupied[n.Coordinate] = true
	}

	out := []worldstate.NeutralNodeRuntimeState{}
	ordinals := map[string]int{}
	for rowIndex, row := range req.SpawnTable {
		nodeType := strings.TrimSpace(row.NodeType)
		for i := 0; i < row.SpawnCount; i++ {
			ordinals[nodeType]++
			ordinal := ordinals[nodeType]
			nodeID := fmt.Sprintf("%s_%d", nodeType, ordinal)

			if n, ok, err := s.nodes.ReadNode(ctx, req.WorldID, nodeID); err != nil {
				return nil, fmt.Errorf("read node %s/%s: %w", req.WorldID, nodeID, err)
			} else if ok {
				out = append(out, n)
				continue
			}

			key := fmt.Sprintf("%s:%s:%d:%d", req.WorldSeed, nodeType, rowIndex, ordinal)
			coord := placeNode(key, mapSize, occupied)
			occupied[coord] = true

			saved, err := s.nodes.SaveNode(ctx, newNode(req.WorldID, nodeID, coord, row))
			if err != nil {
				return nil, fmt.Errorf("save node %s/%s: %w", req.WorldID, nodeID, err)
			}
			out = append(out, saved)
		}
	}
	return out, nil
}

// placeNode hashes key onto the map and probes forward, wrapping, to the first free tile.
// A full map falls back to the hashed tile.
func placeNode(key string, mapSize int, occupied map[worldstate.Coordinate]bool) worldstate.Coordinate {
	tiles := mapSize * mapSize
	base := mathx.Pick(key, tiles)
	for offset := 0; offset < tiles; offset++ {
		c := tileCoordinate((base+offset)%tiles, mapSize)
		if !occupied[c] {
			return c
		}
	}
	return tileCoordinate(base, mapSize)
}

func tileCoordinate(idx, mapSize int) worldstate.Coordinate {
	return worldstate.Coordinate{X: idx % mapSize, Y: idx / mapSize}
}

func newNode(worldID, nodeID string, coord worldstate.Coordinate, row SpawnRow) worldstate.NeutralNodeRuntimeState {
	label := strings.TrimSpace(row.NodeLabel)
	if label == "" {
		label = strings.TrimSpace(row.NodeType)
	}
	cycles := row.DepletionCycles
	if cycles < 1 {
		cycles = 1
	}
	ranges := make(map[string]worldstate.YieldRange, len(row.YieldRanges))
	for id, r := range row.YieldRanges {
		ranges[id] = normalizeRange(r)
	}
	return worldstate.NeutralNodeRuntimeState{
		WorldID:               worldID,
		NodeID:                nodeID,
		NodeType:              strings.TrimSpace(row.NodeType),
		NodeLabel:             label,
		Coordinate:            coord,
		NodeState:             worldstate.NodeActive,
		NodeRevision:          1,
		GatherDurationSeconds: mathx.NonNegative(row.GatherDurationSeconds),
		YieldRanges:           ranges,
		AmbushRiskPct:         mathx.ClampInt(row.AmbushRiskPct, 0, 100),
		AmbushBaseStrength:    mathx.NonNegative(row.AmbushBaseStrength),
		RemainingCycles:       cycles,
	}
}

package gathering

import (
	"context"
	"reflect"
	"testing"

	"realmclock.ai/internal/sim/worldstate"
)

func sampleSpawnRequest() SpawnRequest {
	return SpawnRequest{
		WorldID:   "world_alpha",
		WorldSeed: "world_alpha_seed",
		MapSize:   8,
		SpawnTable: []SpawnRow{
			{
				NodeType: "iron", NodeLabel: "Iron Vein", SpawnCount: 2, GatherDurationSeconds: 60,
				YieldRanges: map[string]worldstate.YieldRange{"iron": {Min: 10, Max: 20}},
				AmbushRiskPct: 35, AmbushBaseStrength: 25, DepletionCycles: 3,
			},
			{
				NodeType: "food", SpawnCount: 1, GatherDurationSeconds: 30,
				YieldRanges:     map[string]worldstate.YieldRange{"food": {Min: 50, Max: 80}},
				DepletionCycles: 2,
			},
			{NodeType: "iron", NodeLabel: "Deep Iron", SpawnCount: 1, DepletionCycles: 1},
		},
	}
}

func TestSpawnNeutralNodes_DeterministicPlacement(t *testing.T) {
	svc, _ := newTestService(t)
	nodes, err := svc.SpawnNeutralNodes(context.Background(), sampleSpawnRequest())
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	want := []struct {
		id    string
		coord worldstate.Coordinate
	}{
		{"iron_1", worldstate.Coordinate{X: 7, Y: 4}},
		{"iron_2", worldstate.Coordinate{X: 2, Y: 7}},
		{"food_1", worldstate.Coordinate{X: 6, Y: 6}},
		{"iron_3", worldstate.Coordinate{X: 7, Y: 1}},
	}
	if len(nodes) != len(want) {
		t.Fatalf("nodes=%d want %d", len(nodes), len(want))
	}
	for i, w := range want {
		n := nodes[i]
		if n.NodeID != w.id || n.Coordinate != w.coord {
			t.Fatalf("node[%d]=%s@%+v want %s@%+v", i, n.NodeID, n.Coordinate, w.id, w.coord)
		}
		if n.NodeState != worldstate.NodeActive || n.NodeRevision != 1 {
			t.Fatalf("fresh node state: %+v", n)
		}
	}
	if nodes[0].RemainingCycles != 3 || nodes[2].NodeLabel != "food" || nodes[3].NodeLabel != "Deep Iron" {
		t.Fatalf("row fields not applied: %+v", nodes)
	}
}

func TestSpawnNeutralNodes_IdempotentAndPreservesDepletion(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	req := sampleSpawnRequest()

	first, err := svc.SpawnNeutralNodes(ctx, req)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	second, err := svc.SpawnNeutralNodes(ctx, req)
	if err != nil {
		t.Fatalf("respawn: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("respawn changed nodes:\n%+v\n%+v", first, second)
	}

	reduced := first[0]
	reduced.RemainingCycles = 1
	reduced.NodeRevision++
	if _, err := store.SaveNode(ctx, reduced); err != nil {
		t.Fatalf("save: %v", err)
	}
	third, err := svc.SpawnNeutralNodes(ctx, req)
	if err != nil {
		t.Fatalf("third spawn: %v", err)
	}
	if third[0].RemainingCycles != 1 || third[0].NodeRevision != 2 {
		t.Fatalf("spawn reseeded an existing node: %+v", third[0])
	}

	// A fresh store with the same inputs lands on the same tiles.
	other, _ := newTestService(t)
	fresh, err := other.SpawnNeutralNodes(ctx, req)
	if err != nil {
		t.Fatalf("fresh spawn: %v", err)
	}
	if !reflect.DeepEqual(fresh, first) {
		t.Fatalf("spawn not deterministic across stores")
	}
}

func TestSpawnNeutralNodes_ProbesToFreeTiles(t *testing.T) {
	svc, _ := newTestService(t)
	nodes, err := svc.SpawnNeutralNodes(context.Background(), SpawnRequest{
		WorldID: "tiny", WorldSeed: "tiny_seed", MapSize: 2,
		SpawnTable: []SpawnRow{{NodeType: "wood", SpawnCount: 4, DepletionCycles: 1}},
	})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	seen := map[worldstate.Coordinate]bool{}
	for _, n := range nodes {
		if n.Coordinate.X < 0 || n.Coordinate.X > 1 || n.Coordinate.Y < 0 || n.Coordinate.Y > 1 {
			t.Fatalf("coordinate off map: %+v", n.Coordinate)
		}
		if seen[n.Coordinate] {
			t.Fatalf("duplicate coordinate %+v", n.Coordinate)
		}
		seen[n.Coordinate] = true
	}
	if len(seen) != 4 {
		t.Fatalf("expected all 4 tiles used, got %d", len(seen))
	}
}

func TestSpawnNeutralNodes_FullMapFallsBackToBaseTile(t *testing.T) {
	svc, _ := newTestService(t)
	nodes, err := svc.SpawnNeutralNodes(context.Background(), SpawnRequest{
		WorldID: "dot", WorldSeed: "dot_seed", MapSize: 0,
		SpawnTable: []SpawnRow{{NodeType: "gem", SpawnCount: 2}},
	})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("nodes=%d", len(nodes))
	}
	for _, n := range nodes {
		if n.Coordinate != (worldstate.Coordinate{}) {
			t.Fatalf("1x1 map must place at origin: %+v", n.Coordinate)
		}
		if n.RemainingCycles != 1 {
			t.Fatalf("depletion cycles should normalize to 1, got %d", n.RemainingCycles)
		}
	}
}

func TestSpawnNeutralNodes_SharedTypeKeepsCountingOrdinal(t *testing.T) {
	svc, _ := newTestService(t)
	nodes, err := svc.SpawnNeutralNodes(context.Background(), sampleSpawnRequest())
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	// The second iron row continues at iron_3, and its coordinate key uses that ordinal too.
	occupied := map[worldstate.Coordinate]bool{}
	for _, n := range nodes[:3] {
		occupied[n.Coordinate] = true
	}
	want := placeNode("world_alpha_seed:iron:2:3", 8, occupied)
	if nodes[3].NodeID != "iron_3" || nodes[3].Coordinate != want {
		t.Fatalf("node[3]=%s@%+v want iron_3@%+v", nodes[3].NodeID, nodes[3].Coordinate, want)
	}
}

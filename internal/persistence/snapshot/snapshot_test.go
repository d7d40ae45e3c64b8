package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"realmclock.ai/internal/sim/worldstate"
)

func TestWriteReadSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName(time.UnixMilli(1700000000000)))
	roll := 12
	in := SnapshotV1{
		Header: Header{SavedAt: "2026-01-01T00:00:00Z"},
		Lifecycles: []worldstate.WorldLifecycleRuntimeState{{
			WorldID: "w1", WorldRevision: 3, LifecycleState: worldstate.LifecycleLocked, SeasonNumber: 2,
			JoinableWorldState: worldstate.JoinableWorldState{JoinablePlayerIDs: []string{"p1"}},
		}},
		Nodes: []worldstate.NeutralNodeRuntimeState{{
			WorldID: "w1", NodeID: "iron_1", RemainingCycles: 2,
			YieldRanges: map[string]worldstate.YieldRange{"iron": {Min: 1, Max: 4}},
		}},
		Marches: []worldstate.GatherMarchRuntimeState{{MarchID: "m1", AmbushRoll: &roll}},
	}
	if err := WriteSnapshot(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Header.Version != Version || got.Header.Worlds != 1 || got.Header.Nodes != 1 || got.Header.Marches != 1 {
		t.Fatalf("header mismatch: %+v", got.Header)
	}
	if got.Lifecycles[0].SeasonNumber != 2 || got.Lifecycles[0].JoinableWorldState.JoinablePlayerIDs[0] != "p1" {
		t.Fatalf("lifecycle mismatch: %+v", got.Lifecycles[0])
	}
	if got.Nodes[0].YieldRanges["iron"].Max != 4 || *got.Marches[0].AmbushRoll != 12 {
		t.Fatalf("payload mismatch: %+v %+v", got.Nodes[0], got.Marches[0])
	}
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	if Latest(dir) != "" {
		t.Fatalf("empty dir should have no latest snapshot")
	}
	for _, ms := range []int64{900, 10000, 2000} {
		p := filepath.Join(dir, FileName(time.UnixMilli(ms)))
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if got := Latest(dir); filepath.Base(got) != "10000.snap.zst" {
		t.Fatalf("latest=%s", got)
	}
}

// Package memstore is the in-memory implementation of the worldstate repository ports.
package memstore

import (
	"context"
	"sort"
	"sync"

	"realmclock.ai/internal/persistence/snapshot"
	"realmclock.ai/internal/sim/worldstate"
)

type nodeKey struct {
	worldID string
	nodeID  string
}

type Store struct {
	mu sync.RWMutex

	lifecycles map[string]worldstate.WorldLifecycleRuntimeState
	archives   map[string][]worldstate.WorldSeasonArchiveSummary
	nodes      map[nodeKey]worldstate.NeutralNodeRuntimeState
	marches    map[string]worldstate.GatherMarchRuntimeState
}

var _ worldstate.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		lifecycles: map[string]worldstate.WorldLifecycleRuntimeState{},
		archives:   map[string][]worldstate.WorldSeasonArchiveSummary{},
		nodes:      map[nodeKey]worldstate.NeutralNodeRuntimeState{},
		marches:    map[string]worldstate.GatherMarchRuntimeState{},
	}
}

func (s *Store) ReadLifecycle(ctx context.Context, worldID string) (worldstate.WorldLifecycleRuntimeState, bool, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.lifecycles[worldID]
	if !ok {
		return worldstate.WorldLifecycleRuntimeState{}, false, nil
	}
	return st.Clone(), true, nil
}

func (s *Store) SaveLifecycle(ctx context.Context, st worldstate.WorldLifecycleRuntimeState) (worldstate.WorldLifecycleRuntimeState, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lifecycles[st.WorldID] = st.Clone()
	return st.Clone(), nil
}

func (s *Store) AppendArchiveSummary(ctx context.Context, sum worldstate.WorldSeasonArchiveSummary) (worldstate.WorldSeasonArchiveSummary, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archives[sum.WorldID] = append(s.archives[sum.WorldID], sum)
	return sum, nil
}

func (s *Store) ListArchiveSummaries(ctx context.Context, worldID string) ([]worldstate.WorldSeasonArchiveSummary, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]worldstate.WorldSeasonArchiveSummary{}, s.archives[worldID]...), nil
}

func (s *Store) ReadNode(ctx context.Context, worldID, nodeID string) (worldstate.NeutralNodeRuntimeState, bool, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[nodeKey{worldID, nodeID}]
	if !ok {
		return worldstate.NeutralNodeRuntimeState{}, false, nil
	}
	return n.Clone(), true, nil
}

func (s *Store) SaveNode(ctx context.Context, n worldstate.NeutralNodeRuntimeState) (worldstate.NeutralNodeRuntimeState, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[nodeKey{n.WorldID, n.NodeID}] = n.Clone()
	return n.Clone(), nil
}

func (s *Store) ListNodes(ctx context.Context, worldID string) ([]worldstate.NeutralNodeRuntimeState, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]worldstate.NeutralNodeRuntimeState, 0)
	for k, n := range s.nodes {
		if k.worldID == worldID {
			out = append(out, n.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out, nil
}

func (s *Store) ReadMarch(ctx context.Context, marchID string) (worldstate.GatherMarchRuntimeState, bool, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.marches[marchID]
	if !ok {
		return worldstate.GatherMarchRuntimeState{}, false, nil
	}
	return m.Clone(), true, nil
}

func (s *Store) SaveMarch(ctx context.Context, m worldstate.GatherMarchRuntimeState) (worldstate.GatherMarchRuntimeState, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marches[m.MarchID] = m.Clone()
	return m.Clone(), nil
}

// Export dumps the store in a stable order: worlds, then nodes by (world, node), then
// marches by id. Archives keep their append order per world.
func (s *Store) Export() snapshot.SnapshotV1 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snap snapshot.SnapshotV1
	worldIDs := make([]string, 0, len(s.lifecycles))
	for id := range s.lifecycles {
		worldIDs = append(worldIDs, id)
	}
	sort.Strings(worldIDs)
	for _, id := range worldIDs {
		snap.Lifecycles = append(snap.Lifecycles, s.lifecycles[id].Clone())
	}

	archiveWorlds := make([]string, 0, len(s.archives))
	for id := range s.archives {
		archiveWorlds = append(archiveWorlds, id)
	}
	sort.Strings(archiveWorlds)
	for _, id := range archiveWorlds {
		snap.Archives = append(snap.Archives, s.archives[id]...)
	}

	keys := make([]nodeKey, 0, len(s.nodes))
	for k := range s.nodes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].worldID != keys[j].worldID {
			return keys[i].worldID < keys[j].worldID
		}
		return keys[i].nodeID < keys[j].nodeID
	})
	for _, k := range keys {
		snap.Nodes = append(snap.Nodes, s.nodes[k].Clone())
	}

	marchIDs := make([]string, 0, len(s.marches))
	for id := range s.marches {
		marchIDs = append(marchIDs, id)
	}
	sort.Strings(marchIDs)
	for _, id := range marchIDs {
		snap.Marches = append(snap.Marches, s.marches[id].Clone())
	}
	return snap
}

// Import replaces the store contents with snap.
func (s *Store) Import(snap snapshot.SnapshotV1) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lifecycles = map[string]worldstate.WorldLifecycleRuntimeState{}
	s.archives = map[string][]worldstate.WorldSeasonArchiveSummary{}
	s.nodes = map[nodeKey]worldstate.NeutralNodeRuntimeState{}
	s.marches = map[string]worldstate.GatherMarchRuntimeState{}

	for _, st := range snap.Lifecycles {
		s.lifecycles[st.WorldID] = st.Clone()
	}
	for _, a := range snap.Archives {
		s.archives[a.WorldID] = append(s.archives[a.WorldID], a)
	}
	for _, n := range snap.Nodes {
		s.nodes[nodeKey{n.WorldID, n.NodeID}] = n.Clone()
	}
	for _, m := range snap.Marches {
		s.marches[m.MarchID] = m.Clone()
	}
}

package worldstate

import "context"

// LifecycleStateRepository stores one lifecycle record per world plus its archive history.
// Read returns ok=false for an unknown world.
type LifecycleStateRepository interface {
	ReadLifecycle(ctx context.Context, worldID string) (WorldLifecycleRuntimeState, bool, error)
	SaveLifecycle(ctx context.Context, s WorldLifecycleRuntimeState) (WorldLifecycleRuntimeState, error)
	AppendArchiveSummary(ctx context.Context, s WorldSeasonArchiveSummary) (WorldSeasonArchiveSummary, error)
	ListArchiveSummaries(ctx context.Context, worldID string) ([]WorldSeasonArchiveSummary, error)
}

// NeutralNodeStateRepository lists nodes in ascending node_id order.
type NeutralNodeStateRepository interface {
	ReadNode(ctx context.Context, worldID, nodeID string) (NeutralNodeRuntimeState, bool, error)
	SaveNode(ctx context.Context, n NeutralNodeRuntimeState) (NeutralNodeRuntimeState, error)
	ListNodes(ctx context.Context, worldID string) ([]NeutralNodeRuntimeState, error)
}

type GatherMarchStateRepository interface {
	ReadMarch(ctx context.Context, marchID string) (GatherMarchRuntimeState, bool, error)
	SaveMarch(ctx context.Context, m GatherMarchRuntimeState) (GatherMarchRuntimeState, error)
}

// Store is the full persistence surface a process wires into the sim.
type Store interface {
	LifecycleStateRepository
	NeutralNodeStateRepository
	GatherMarchStateRepository
}

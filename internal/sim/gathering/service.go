// Package gathering places neutral resource nodes on a world map and runs gather marches
// against them. All placement, yield and ambush rolls are derived from the world seed, and
// time only moves when the caller passes an observation instant.
package gathering

import (
	"context"
	"fmt"
	"strings"
	"time"

	"realmclock.ai/internal/protocol"
	"realmclock.ai/internal/sim/tuning"
	"realmclock.ai/internal/sim/worldstate"
)

type Service struct {
	nodes   worldstate.NeutralNodeStateRepository
	marches worldstate.GatherMarchStateRepository
	cfg     tuning.Gathering
}

func NewService(nodes worldstate.NeutralNodeStateRepository, marches worldstate.GatherMarchStateRepository, cfg tuning.Gathering) *Service {
	t := tuning.Tuning{Gathering: cfg}
	t.Normalize()
	return &Service{nodes: nodes, marches: marches, cfg: t.Gathering}
}

// Response is the march and node as persisted after the call, plus the events the call
// produced. Events is empty (never nil) when nothing happened.
type Response struct {
	March  worldstate.GatherMarchRuntimeState `json:"march"`
	Node   worldstate.NeutralNodeRuntimeState `json:"node"`
	Events []protocol.Event                   `json:"events"`
}

type StartRequest struct {
	WorldID      string
	WorldSeed    string
	MarchID      string
	SettlementID string
	NodeID       string
	// Optional; defaults to the configured army name.
	ArmyName string
	// Optional; the zero time is read as the Unix epoch.
	DepartedAt time.Time
	// Optional; <= 0 uses the configured default.
	TravelSecondsPerLeg int
	EscortStrength      int
}

func (s *Service) StartGatherMarch(ctx context.Context, req StartRequest) (Response, error) {
	if _, ok, err := s.marches.ReadMarch(ctx, req.MarchID); err != nil {
		return Response{}, fmt.Errorf("read march %s: %w", req.MarchID, err)
	} else if ok {
		return Response{}, protocol.WithMetadata(protocol.ErrMarchConflict,
			fmt.Sprintf("gather march %s already exists", req.MarchID),
			map[string]string{"march_id": req.MarchID})
	}

	node, ok, err := s.nodes.ReadNode(ctx, req.WorldID, req.NodeID)
	if err != nil {
		return Response{}, fmt.Errorf("read node %s/%s: %w", req.WorldID, req.NodeID, err)
	}
	if !ok {
		return Response{}, nodeNotFound(req.WorldID, req.NodeID)
	}
	if node.NodeState == worldstate.NodeDepleted {
		return Response{}, protocol.WithMetadata(protocol.ErrNodeDepleted,
			fmt.Sprintf("neutral node %s is depleted", node.NodeID),
			map[string]string{"world_id": node.WorldID, "node_id": node.NodeID})
	}

	departed := req.DepartedAt.UTC()
	if req.DepartedAt.IsZero() {
		departed = time.Unix(0, 0).UTC()
	}
	travel := req.TravelSecondsPerLeg
	if travel <= 0 {
		travel = s.cfg.DefaultTravelSecondsPerLeg
	}
	army := strings.TrimSpace(req.ArmyName)
	if army == "" {
		army = s.cfg.DefaultArmyName
	}
	escort := req.EscortStrength
	if escort < 0 {
		escort = 0
	}

	// Out, dwell, back.
	trip := time.Duration(2*travel+node.GatherDurationSeconds) * time.Second
	march := worldstate.GatherMarchRuntimeState{
		MarchID:             req.MarchID,
		WorldID:             req.WorldID,
		SettlementID:        req.SettlementID,
		NodeID:              node.NodeID,
		ArmyName:            army,
		MarchState:          worldstate.MarchInProgress,
		MarchRevision:       1,
		DeterministicSeed:   req.WorldSeed,
		DepartedAt:          departed,
		TravelSecondsPerLeg: travel,
		CompletesAt:         departed.Add(trip),
		EscortStrength:      escort,
		GatheredYield:       []worldstate.ResourceAmount{},
	}
	saved, err := s.marches.SaveMarch(ctx, march)
	if err != nil {
		return Response{}, fmt.Errorf("save march %s: %w", march.MarchID, err)
	}

	return Response{
		March:  saved,
		Node:   node,
		Events: []protocol.Event{gatherStartedEvent(saved, node)},
	}, nil
}

// AdvanceGatherMarch resolves the march if observedAt has reached its completion time.
// Before that, and forever after resolution, it returns the stored state with no events.
func (s *Service) AdvanceGatherMarch(ctx context.Context, marchID string, observedAt time.Time) (Response, error) {
	march, ok, err := s.marches.ReadMarch(ctx, marchID)
	if err != nil {
		return Response{}, fmt.Errorf("read march %s: %w", marchID, err)
	}
	if !ok {
		return Response{}, protocol.WithMetadata(protocol.ErrMarchNotFound,
			fmt.Sprintf("gather march %s not found", marchID),
			map[string]string{"march_id": marchID})
	}
	node, ok, err := s.nodes.ReadNode(ctx, march.WorldID, march.NodeID)
	if err != nil {
		return Response{}, fmt.Errorf("read node %s/%s: %w", march.WorldID, march.NodeID, err)
	}
	if !ok {
		return Response{}, nodeNotFound(march.WorldID, march.NodeID)
	}

	if march.MarchState == worldstate.MarchResolved || observedAt.Before(march.CompletesAt) {
		return Response{March: march, Node: node, Events: []protocol.Event{}}, nil
	}

	res := resolveMarch(march, node, s.cfg.InterceptedYieldMultiplier)

	resolvedAt := march.CompletesAt
	roll, strength := res.ambush.Roll, res.ambush.Strength
	march.MarchState = worldstate.MarchResolved
	march.MarchRevision++
	march.ResolvedAt = &resolvedAt
	march.AmbushRoll = &roll
	march.AmbushTriggered = res.ambush.Triggered
	march.AmbushStrength = &strength
	march.AmbushOutcome = string(res.ambush.Outcome)
	march.GatheredYield = res.yield

	savedMarch, err := s.marches.SaveMarch(ctx, march)
	if err != nil {
		return Response{}, fmt.Errorf("save march %s: %w", march.MarchID, err)
	}

	node.NodeRevision++
	node.RemainingCycles--
	if node.RemainingCycles <= 0 {
		node.RemainingCycles = 0
		node.NodeState = worldstate.NodeDepleted
	}
	savedNode, err := s.nodes.SaveNode(ctx, node)
	if err != nil {
		return Response{}, fmt.Errorf("save node %s/%s: %w", node.WorldID, node.NodeID, err)
	}

	return Response{
		March:  savedMarch,
		Node:   savedNode,
		Events: resolutionEvents(savedMarch, savedNode, res.ambush),
	}, nil
}

func (s *Service) ListNeutralNodes(ctx context.Context, worldID string) ([]worldstate.NeutralNodeRuntimeState, error) {
	nodes, err := s.nodes.ListNodes(ctx, worldID)
	if err != nil {
		return nil, fmt.Errorf("list nodes %s: %w", worldID, err)
	}
	return nodes, nil
}

func nodeNotFound(worldID, nodeID string) error {
	return protocol.WithMetadata(protocol.ErrNodeNotFound,
		fmt.Sprintf("neutral node %s not found in world %s", nodeID, worldID),
		map[string]string{"world_id": worldID, "node_id": nodeID})
}

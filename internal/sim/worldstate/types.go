// Package worldstate holds the persisted runtime records of a world and the repository ports
// that store them. Every port returns copies: mutating a returned value never touches storage.
package worldstate

import (
	"fmt"
	"sort"
	"time"
)

type LifecycleState string

const (
	LifecycleOpen     LifecycleState = "open"
	LifecycleLocked   LifecycleState = "locked"
	LifecycleArchived LifecycleState = "archived"
)

// JoinableWorldState is the set of ids active in the current season. Lists are deduplicated
// and keep first-seen order.
type JoinableWorldState struct {
	JoinablePlayerIDs   []string `json:"joinable_player_ids"`
	ActiveSettlementIDs []string `json:"active_settlement_ids"`
	ActiveMarchIDs      []string `json:"active_march_ids"`
}

func (j JoinableWorldState) Clone() JoinableWorldState {
	return JoinableWorldState{
		JoinablePlayerIDs:   cloneStrings(j.JoinablePlayerIDs),
		ActiveSettlementIDs: cloneStrings(j.ActiveSettlementIDs),
		ActiveMarchIDs:      cloneStrings(j.ActiveMarchIDs),
	}
}

// Merge appends ids from d that are not yet present, preserving order.
func (j JoinableWorldState) Merge(d JoinableWorldState) JoinableWorldState {
	return JoinableWorldState{
		JoinablePlayerIDs:   AppendUnique(j.JoinablePlayerIDs, d.JoinablePlayerIDs...),
		ActiveSettlementIDs: AppendUnique(j.ActiveSettlementIDs, d.ActiveSettlementIDs...),
		ActiveMarchIDs:      AppendUnique(j.ActiveMarchIDs, d.ActiveMarchIDs...),
	}
}

func (j JoinableWorldState) Empty() bool {
	return len(j.JoinablePlayerIDs) == 0 && len(j.ActiveSettlementIDs) == 0 && len(j.ActiveMarchIDs) == 0
}

type WorldLifecycleRuntimeState struct {
	WorldID            string             `json:"world_id"`
	WorldRevision      int                `json:"world_revision"`
	LifecycleState     LifecycleState     `json:"lifecycle_state"`
	SeasonNumber       int                `json:"season_number"`
	SeasonLengthDays   int                `json:"season_length_days"`
	SeasonStartedAt    time.Time          `json:"season_started_at"`
	StateChangedAt     time.Time          `json:"state_changed_at"`
	JoinableWorldState JoinableWorldState `json:"joinable_world_state"`
}

func (s WorldLifecycleRuntimeState) Clone() WorldLifecycleRuntimeState {
	out := s
	out.JoinableWorldState = s.JoinableWorldState.Clone()
	return out
}

type WorldSeasonArchiveSummary struct {
	ArchiveID             string    `json:"archive_id"`
	WorldID               string    `json:"world_id"`
	SeasonNumber          int       `json:"season_number"`
	ArchivedAt            time.Time `json:"archived_at"`
	JoinablePlayerCount   int       `json:"joinable_player_count"`
	ActiveSettlementCount int       `json:"active_settlement_count"`
	ActiveMarchCount      int       `json:"active_march_count"`
}

func ArchiveID(worldID string, season int) string {
	return fmt.Sprintf("%s:season:%d", worldID, season)
}

type NodeState string

const (
	NodeActive   NodeState = "active"
	NodeDepleted NodeState = "depleted"
)

type Coordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type YieldRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

type NeutralNodeRuntimeState struct {
	WorldID               string                `json:"world_id"`
	NodeID                string                `json:"node_id"`
	NodeType              string                `json:"node_type"`
	NodeLabel             string                `json:"node_label"`
	Coordinate            Coordinate            `json:"coordinate"`
	NodeState             NodeState             `json:"node_state"`
	NodeRevision          int                   `json:"node_revision"`
	GatherDurationSeconds int                   `json:"gather_duration_seconds"`
	YieldRanges           map[string]YieldRange `json:"yield_ranges"`
	AmbushRiskPct         int                   `json:"ambush_risk_pct"`
	AmbushBaseStrength    int                   `json:"ambush_base_strength"`
	RemainingCycles       int                   `json:"remaining_cycles"`
}

func (n NeutralNodeRuntimeState) Clone() NeutralNodeRuntimeState {
	out := n
	if n.YieldRanges != nil {
		out.YieldRanges = make(map[string]YieldRange, len(n.YieldRanges))
		for k, v := range n.YieldRanges {
			out.YieldRanges[k] = v
		}
	}
	return out
}

// ResourceIDs returns the node's yield resource ids in ascending order.
func (n NeutralNodeRuntimeState) ResourceIDs() []string {
	ids := make([]string, 0, len(n.YieldRanges))
	for id := range n.YieldRanges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type MarchState string

const (
	MarchInProgress MarchState = "in_progress"
	MarchResolved   MarchState = "resolved"
)

type ResourceAmount struct {
	ResourceID string `json:"resource_id"`
	Amount     int    `json:"amount"`
}

type GatherMarchRuntimeState struct {
	MarchID             string           `json:"march_id"`
	WorldID             string           `json:"world_id"`
	SettlementID        string           `json:"settlement_id"`
	NodeID              string           `json:"node_id"`
	ArmyName            string           `json:"army_name"`
	MarchState          MarchState       `json:"march_state"`
	MarchRevision       int              `json:"march_revision"`
	DeterministicSeed   string           `json:"deterministic_seed"`
	DepartedAt          time.Time        `json:"departed_at"`
	TravelSecondsPerLeg int              `json:"travel_seconds_per_leg"`
	CompletesAt         time.Time        `json:"completes_at"`
	ResolvedAt          *time.Time       `json:"resolved_at,omitempty"`
	EscortStrength      int              `json:"escort_strength"`
	AmbushRoll          *int             `json:"ambush_roll,omitempty"`
	AmbushTriggered     bool             `json:"ambush_triggered"`
	AmbushStrength      *int             `json:"ambush_strength,omitempty"`
	AmbushOutcome       string           `json:"ambush_outcome,omitempty"`
	GatheredYield       []ResourceAmount `json:"gathered_yield"`
}

func (m GatherMarchRuntimeState) Clone() GatherMarchRuntimeState {
	out := m
	if m.ResolvedAt != nil {
		t := *m.ResolvedAt
		out.ResolvedAt = &t
	}
	if m.AmbushRoll != nil {
		v := *m.AmbushRoll
		out.AmbushRoll = &v
	}
	if m.AmbushStrength != nil {
		v := *m.AmbushStrength
		out.AmbushStrength = &v
	}
	out.GatheredYield = append([]ResourceAmount{}, m.GatheredYield...)
	return out
}

// AppendUnique appends each id not already in dst (or earlier in ids). Empty ids are skipped.
func AppendUnique(dst []string, ids ...string) []string {
	out := cloneStrings(dst)
	seen := make(map[string]struct{}, len(out)+len(ids))
	for _, id := range out {
		seen[id] = struct{}{}
	}
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func cloneStrings(in []string) []string {
	return append([]string{}, in...)
}

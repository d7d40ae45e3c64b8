package multiworld

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"realmclock.ai/internal/protocol"
	"realmclock.ai/internal/sim/gathering"
	"realmclock.ai/internal/sim/lifecycle"
	"realmclock.ai/internal/sim/tuning"
	"realmclock.ai/internal/sim/worldstate"
)

// PublishedEvent is one event as delivered to sinks.
type PublishedEvent struct {
	WorldID    string         `json:"world_id"`
	ObservedAt time.Time      `json:"observed_at"`
	Event      protocol.Event `json:"event"`
}

type EventSink interface {
	Publish(ev PublishedEvent) error
}

// SinkFunc adapts a plain func to EventSink.
type SinkFunc func(PublishedEvent) error

func (f SinkFunc) Publish(ev PublishedEvent) error { return f(ev) }

// Runtime serializes every operation per world, march, and node, and fans emitted events out
// to the registered sinks in emission order.
type Runtime struct {
	cfg    Config
	store  worldstate.Store
	sched  *lifecycle.Scheduler
	gather *gathering.Service
	locks  *keyLocks
	log    *log.Logger

	sinkMu sync.RWMutex
	sinks  []EventSink
}

func NewRuntime(cfg Config, store worldstate.Store, tune tuning.Tuning, logger *log.Logger) (*Runtime, error) {
	if store == nil {
		return nil, fmt.Errorf("nil store")
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tune.Normalize()
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Runtime{
		cfg:    cfg,
		store:  store,
		sched:  lifecycle.NewScheduler(store, tune.Lifecycle),
		gather: gathering.NewService(store, store, tune.Gathering),
		locks:  newKeyLocks(),
		log:    logger,
	}, nil
}

func (r *Runtime) AddSink(s EventSink) {
	if s == nil {
		return
	}
	r.sinkMu.Lock()
	r.sinks = append(r.sinks, s)
	r.sinkMu.Unlock()
}

func (r *Runtime) Config() Config { return r.cfg }

// BootstrapResult reports what Bootstrap found or created for one world.
type BootstrapResult struct {
	WorldID string                                `json:"world_id"`
	Created bool                                  `json:"created"`
	State   worldstate.WorldLifecycleRuntimeState `json:"state"`
	Nodes   []worldstate.NeutralNodeRuntimeState  `json:"nodes"`
}

// Bootstrap seeds the lifecycle record of a world that has none and spawns its neutral
// nodes. Both steps leave existing records untouched, so it is safe on every start.
func (r *Runtime) Bootstrap(ctx context.Context, spec WorldSpec) (BootstrapResult, error) {
	unlock := r.locks.Lock(worldKey(spec.ID))
	defer unlock()

	res := BootstrapResult{WorldID: spec.ID}
	st, ok, err := r.store.ReadLifecycle(ctx, spec.ID)
	if err != nil {
		return res, fmt.Errorf("bootstrap %s: %w", spec.ID, err)
	}
	if !ok {
		start, err := spec.StartTime()
		if err != nil {
			return res, err
		}
		st, err = r.store.SaveLifecycle(ctx, lifecycle.NewWorldState(spec.ID, spec.SeasonLengthDays, start))
		if err != nil {
			return res, fmt.Errorf("bootstrap %s: %w", spec.ID, err)
		}
		res.Created = true
	}
	res.State = st

	nodes, err := r.gather.SpawnNeutralNodes(ctx, gathering.SpawnRequest{
		WorldID:    spec.ID,
		WorldSeed:  spec.Seed,
		MapSize:    spec.MapSize,
		SpawnTable: spec.SpawnTable,
	})
	if err != nil {
		return res, fmt.Errorf("spawn %s: %w", spec.ID, err)
	}
	res.Nodes = nodes
	r.log.Printf("bootstrap world=%s created=%t season=%d state=%s nodes=%d", spec.ID, res.Created, st.SeasonNumber, st.LifecycleState, len(nodes))
	return res, nil
}

// BootstrapAll bootstraps every configured world, stopping at the first failure.
func (r *Runtime) BootstrapAll(ctx context.Context) ([]BootstrapResult, error) {
	out := make([]BootstrapResult, 0, len(r.cfg.Worlds))
	for _, spec := range r.cfg.Worlds {
		res, err := r.Bootstrap(ctx, spec)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (r *Runtime) AdvanceWorld(ctx context.Context, worldID string, at time.Time) (lifecycle.Response, error) {
	unlock := r.locks.Lock(worldKey(worldID))
	defer unlock()

	resp, err := r.sched.Advance(ctx, worldID, at)
	if err != nil {
		if protocol.IsFatal(err) {
			r.log.Printf("world=%s fatal: %v", worldID, err)
		}
		return resp, err
	}
	if len(resp.Events) > 0 {
		r.log.Printf("world=%s events=%d season=%d state=%s revision=%d", worldID, len(resp.Events), resp.State.SeasonNumber, resp.State.LifecycleState, resp.State.WorldRevision)
	}
	r.publish(worldID, at, resp.Events)
	return resp, nil
}

// AdvanceAll advances every configured world to at. A failing world does not stop the
// others; all failures are joined into the returned error.
func (r *Runtime) AdvanceAll(ctx context.Context, at time.Time) (map[string]lifecycle.Response, error) {
	out := make(map[string]lifecycle.Response, len(r.cfg.Worlds))
	var errs []error
	for _, spec := range r.cfg.Worlds {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		resp, err := r.AdvanceWorld(ctx, spec.ID, at)
		if err != nil {
			errs = append(errs, fmt.Errorf("advance %s: %w", spec.ID, err))
			continue
		}
		out[spec.ID] = resp
	}
	return out, errors.Join(errs...)
}

func (r *Runtime) TrackJoinable(ctx context.Context, worldID string, at time.Time, delta worldstate.JoinableWorldState) (lifecycle.Response, error) {
	unlock := r.locks.Lock(worldKey(worldID))
	defer unlock()

	resp, err := r.sched.TrackJoinable(ctx, worldID, at, delta)
	if err != nil {
		return resp, err
	}
	r.publish(worldID, at, resp.Events)
	return resp, nil
}

func (r *Runtime) Snapshot(ctx context.Context, worldID string) (lifecycle.Response, error) {
	return r.sched.Snapshot(ctx, worldID)
}

func (r *Runtime) ListArchives(ctx context.Context, worldID string) ([]worldstate.WorldSeasonArchiveSummary, error) {
	return r.sched.ListArchives(ctx, worldID)
}

func (r *Runtime) ListNodes(ctx context.Context, worldID string) ([]worldstate.NeutralNodeRuntimeState, error) {
	return r.gather.ListNeutralNodes(ctx, worldID)
}

// StartMarchRequest is a gathering.StartRequest without the world seed; the runtime fills it
// from the world's config.
type StartMarchRequest struct {
	WorldID             string    `json:"world_id"`
	MarchID             string    `json:"march_id"`
	SettlementID        string    `json:"settlement_id"`
	NodeID              string    `json:"node_id"`
	ArmyName            string    `json:"army_name,omitempty"`
	DepartedAt          time.Time `json:"departed_at"`
	TravelSecondsPerLeg int       `json:"travel_seconds_per_leg,omitempty"`
	EscortStrength      int       `json:"escort_strength"`
}

func (r *Runtime) StartMarch(ctx context.Context, req StartMarchRequest) (gathering.Response, error) {
	spec, ok := r.cfg.WorldSpecByID(req.WorldID)
	if !ok {
		return gathering.Response{}, protocol.WithMetadata(protocol.ErrWorldNotFound,
			fmt.Sprintf("world %s is not configured", req.WorldID),
			map[string]string{"world_id": req.WorldID})
	}

	unlockMarch := r.locks.Lock(marchKey(req.MarchID))
	defer unlockMarch()
	unlockNode := r.locks.Lock(nodeKey(req.WorldID, req.NodeID))
	defer unlockNode()

	resp, err := r.gather.StartGatherMarch(ctx, gathering.StartRequest{
		WorldID:             req.WorldID,
		WorldSeed:           spec.Seed,
		MarchID:             req.MarchID,
		SettlementID:        req.SettlementID,
		NodeID:              req.NodeID,
		ArmyName:            req.ArmyName,
		DepartedAt:          req.DepartedAt,
		TravelSecondsPerLeg: req.TravelSecondsPerLeg,
		EscortStrength:      req.EscortStrength,
	})
	if err != nil {
		return resp, err
	}
	r.publish(req.WorldID, resp.March.DepartedAt, resp.Events)
	return resp, nil
}

// AdvanceMarch holds the march key, then the key of the node the march targets.
func (r *Runtime) AdvanceMarch(ctx context.Context, marchID string, at time.Time) (gathering.Response, error) {
	unlockMarch := r.locks.Lock(marchKey(marchID))
	defer unlockMarch()

	m, ok, err := r.store.ReadMarch(ctx, marchID)
	if err != nil {
		return gathering.Response{}, fmt.Errorf("read march %s: %w", marchID, err)
	}
	if ok {
		unlockNode := r.locks.Lock(nodeKey(m.WorldID, m.NodeID))
		defer unlockNode()
	}

	resp, err := r.gather.AdvanceGatherMarch(ctx, marchID, at)
	if err != nil {
		return resp, err
	}
	if len(resp.Events) > 0 {
		r.log.Printf("world=%s march=%s outcome=%s events=%d", resp.March.WorldID, marchID, resp.March.AmbushOutcome, len(resp.Events))
	}
	r.publish(resp.March.WorldID, at, resp.Events)
	return resp, nil
}

func (r *Runtime) publish(worldID string, at time.Time, events []protocol.Event) {
	if len(events) == 0 {
		return
	}
	r.sinkMu.RLock()
	sinks := append([]EventSink(nil), r.sinks...)
	r.sinkMu.RUnlock()

	for _, ev := range events {
		pe := PublishedEvent{WorldID: worldID, ObservedAt: at.UTC(), Event: ev.Clone()}
		for _, s := range sinks {
			if err := s.Publish(pe); err != nil {
				r.log.Printf("sink publish world=%s key=%s: %v", worldID, ev.ContentKey, err)
			}
		}
	}
}

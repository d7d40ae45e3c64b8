// Package lifecycle advances a world through its seasons: open, locked, archived, then reset
// into the next open season. Cutoffs are derived from the stored season start, so an advance
// observed long after the last one replays every missed transition in order.
package lifecycle

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"realmclock.ai/internal/protocol"
	"realmclock.ai/internal/sim/tuning"
	"realmclock.ai/internal/sim/worldstate"
)

// ErrCatchUpBoundExceeded matches the error Advance returns when a world needs more season
// resets than the configured bound allows in one call.
var ErrCatchUpBoundExceeded = protocol.New(protocol.ErrInvariantViolation, "catch-up bound exceeded")

type Scheduler struct {
	repo worldstate.LifecycleStateRepository
	cfg  tuning.Lifecycle
}

// NewScheduler normalizes cfg, so a zero tuning.Lifecycle runs with the default delays.
func NewScheduler(repo worldstate.LifecycleStateRepository, cfg tuning.Lifecycle) *Scheduler {
	t := tuning.Tuning{Lifecycle: cfg}
	t.Normalize()
	return &Scheduler{repo: repo, cfg: t.Lifecycle}
}

type Schedule struct {
	SeasonLockAt    time.Time `json:"season_lock_at"`
	SeasonArchiveAt time.Time `json:"season_archive_at"`
	SeasonResetAt   time.Time `json:"season_reset_at"`
}

type Response struct {
	State    worldstate.WorldLifecycleRuntimeState `json:"state"`
	Schedule Schedule                              `json:"schedule"`
	Events   []protocol.Event                      `json:"events"`
}

// NewWorldState is the seed record for a world that has never been advanced.
func NewWorldState(worldID string, seasonLengthDays int, startedAt time.Time) worldstate.WorldLifecycleRuntimeState {
	return worldstate.WorldLifecycleRuntimeState{
		WorldID:            worldID,
		WorldRevision:      1,
		LifecycleState:     worldstate.LifecycleOpen,
		SeasonNumber:       1,
		SeasonLengthDays:   seasonLengthDays,
		SeasonStartedAt:    startedAt.UTC(),
		StateChangedAt:     startedAt.UTC(),
		JoinableWorldState: emptyJoinable(),
	}
}

// ScheduleFor computes the current season's cutoffs. Season lengths below one day count as
// one day.
func (s *Scheduler) ScheduleFor(st worldstate.WorldLifecycleRuntimeState) Schedule {
	days := st.SeasonLengthDays
	if days < 1 {
		days = 1
	}
	lock := st.SeasonStartedAt.Add(time.Duration(days) * 24 * time.Hour)
	archive := lock.Add(s.cfg.LockToArchive())
	return Schedule{
		SeasonLockAt:    lock,
		SeasonArchiveAt: archive,
		SeasonResetAt:   archive.Add(s.cfg.ArchiveToReset()),
	}
}

func (s *Scheduler) Snapshot(ctx context.Context, worldID string) (Response, error) {
	st, err := s.read(ctx, worldID)
	if err != nil {
		return Response{}, err
	}
	return Response{State: st, Schedule: s.ScheduleFor(st), Events: []protocol.Event{}}, nil
}

// Advance applies every transition whose cutoff is at or before observedAt. Each transition
// is saved before the next one is computed.
func (s *Scheduler) Advance(ctx context.Context, worldID string, observedAt time.Time) (Response, error) {
	st, err := s.read(ctx, worldID)
	if err != nil {
		return Response{}, err
	}

	events := []protocol.Event{}
	seasons := 0
	for {
		sched := s.ScheduleFor(st)
		var (
			next    worldstate.WorldLifecycleRuntimeState
			emitted []protocol.Event
		)
		switch st.LifecycleState {
		case worldstate.LifecycleOpen:
			if observedAt.Before(sched.SeasonLockAt) {
				return Response{State: st, Schedule: sched, Events: events}, nil
			}
			next, emitted = lockSeason(st, sched.SeasonLockAt)

		case worldstate.LifecycleLocked:
			if observedAt.Before(sched.SeasonArchiveAt) {
				return Response{State: st, Schedule: sched, Events: events}, nil
			}
			summary := archiveSummary(st, sched.SeasonArchiveAt)
			if _, err := s.repo.AppendArchiveSummary(ctx, summary); err != nil {
				return Response{}, fmt.Errorf("append archive %s: %w", summary.ArchiveID, err)
			}
			next, emitted = archiveSeason(st, summary)

		case worldstate.LifecycleArchived:
			if observedAt.Before(sched.SeasonResetAt) {
				return Response{State: st, Schedule: sched, Events: events}, nil
			}
			if seasons >= s.cfg.MaxCatchUpSeasons {
				return Response{}, protocol.WithMetadata(protocol.ErrInvariantViolation,
					fmt.Sprintf("world %s needs more than %d season resets in one advance", worldID, s.cfg.MaxCatchUpSeasons),
					map[string]string{"world_id": worldID, "max_catch_up_seasons": strconv.Itoa(s.cfg.MaxCatchUpSeasons)})
			}
			next, emitted = resetSeason(st, sched.SeasonResetAt)
			seasons++

		default:
			return Response{}, protocol.WithMetadata(protocol.ErrInvariantViolation,
				fmt.Sprintf("world %s has unknown lifecycle state %q", worldID, st.LifecycleState),
				map[string]string{"world_id": worldID, "lifecycle_state": string(st.LifecycleState)})
		}

		saved, err := s.repo.SaveLifecycle(ctx, next)
		if err != nil {
			return Response{}, fmt.Errorf("save lifecycle %s: %w", worldID, err)
		}
		st = saved
		events = append(events, emitted...)
	}
}

// TrackJoinable advances the world to observedAt, then records the given ids as active in
// the current season. Only an open world accepts new ids.
func (s *Scheduler) TrackJoinable(ctx context.Context, worldID string, observedAt time.Time, delta worldstate.JoinableWorldState) (Response, error) {
	resp, err := s.Advance(ctx, worldID, observedAt)
	if err != nil {
		return Response{}, err
	}
	st := resp.State
	if st.LifecycleState != worldstate.LifecycleOpen {
		return Response{}, protocol.WithMetadata(protocol.ErrWorldNotJoinable,
			fmt.Sprintf("world %s is %s", worldID, st.LifecycleState),
			map[string]string{"world_id": worldID, "lifecycle_state": string(st.LifecycleState)})
	}
	st.JoinableWorldState = st.JoinableWorldState.Merge(delta)
	st.WorldRevision++
	saved, err := s.repo.SaveLifecycle(ctx, st)
	if err != nil {
		return Response{}, fmt.Errorf("save lifecycle %s: %w", worldID, err)
	}
	resp.State = saved
	return resp, nil
}

func (s *Scheduler) ListArchives(ctx context.Context, worldID string) ([]worldstate.WorldSeasonArchiveSummary, error) {
	if _, err := s.read(ctx, worldID); err != nil {
		return nil, err
	}
	out, err := s.repo.ListArchiveSummaries(ctx, worldID)
	if err != nil {
		return nil, fmt.Errorf("list archives %s: %w", worldID, err)
	}
	return out, nil
}

func (s *Scheduler) read(ctx context.Context, worldID string) (worldstate.WorldLifecycleRuntimeState, error) {
	st, ok, err := s.repo.ReadLifecycle(ctx, worldID)
	if err != nil {
		return st, fmt.Errorf("read lifecycle %s: %w", worldID, err)
	}
	if !ok {
		return st, protocol.WithMetadata(protocol.ErrWorldNotFound,
			fmt.Sprintf("world %s not found", worldID),
			map[string]string{"world_id": worldID})
	}
	return st, nil
}

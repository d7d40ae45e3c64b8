package lifecycle

import (
	"strconv"
	"time"

	"realmclock.ai/internal/protocol"
	"realmclock.ai/internal/sim/worldstate"
)

func lockSeason(st worldstate.WorldLifecycleRuntimeState, at time.Time) (worldstate.WorldLifecycleRuntimeState, []protocol.Event) {
	next := transition(st, worldstate.LifecycleLocked, at)
	return next, []protocol.Event{lifecycleEvent(protocol.EventLifecycleLocked, next, at, nil)}
}

func archiveSeason(st worldstate.WorldLifecycleRuntimeState, sum worldstate.WorldSeasonArchiveSummary) (worldstate.WorldLifecycleRuntimeState, []protocol.Event) {
	next := transition(st, worldstate.LifecycleArchived, sum.ArchivedAt)
	ev := lifecycleEvent(protocol.EventLifecycleArchived, next, sum.ArchivedAt, map[string]string{
		"archive_id":              sum.ArchiveID,
		"joinable_player_count":   strconv.Itoa(sum.JoinablePlayerCount),
		"active_settlement_count": strconv.Itoa(sum.ActiveSettlementCount),
		"active_march_count":      strconv.Itoa(sum.ActiveMarchCount),
	})
	return next, []protocol.Event{ev}
}

// resetSeason opens the next season at the reset cutoff. This is the only place joinable
// state is cleared.
func resetSeason(st worldstate.WorldLifecycleRuntimeState, at time.Time) (worldstate.WorldLifecycleRuntimeState, []protocol.Event) {
	prev := st.SeasonNumber
	next := transition(st, worldstate.LifecycleOpen, at)
	next.SeasonNumber = prev + 1
	next.SeasonStartedAt = at
	next.JoinableWorldState = emptyJoinable()
	return next, []protocol.Event{
		lifecycleEvent(protocol.EventLifecycleReset, next, at, map[string]string{
			"previous_season_number": strconv.Itoa(prev),
		}),
		lifecycleEvent(protocol.EventLifecycleOpened, next, at, nil),
	}
}

func archiveSummary(st worldstate.WorldLifecycleRuntimeState, at time.Time) worldstate.WorldSeasonArchiveSummary {
	j := st.JoinableWorldState
	return worldstate.WorldSeasonArchiveSummary{
		ArchiveID:             worldstate.ArchiveID(st.WorldID, st.SeasonNumber),
		WorldID:               st.WorldID,
		SeasonNumber:          st.SeasonNumber,
		ArchivedAt:            at,
		JoinablePlayerCount:   len(j.JoinablePlayerIDs),
		ActiveSettlementCount: len(j.ActiveSettlementIDs),
		ActiveMarchCount:      len(j.ActiveMarchIDs),
	}
}

func transition(st worldstate.WorldLifecycleRuntimeState, to worldstate.LifecycleState, at time.Time) worldstate.WorldLifecycleRuntimeState {
	next := st.Clone()
	next.LifecycleState = to
	next.StateChangedAt = at
	next.WorldRevision++
	return next
}

func lifecycleEvent(key string, st worldstate.WorldLifecycleRuntimeState, at time.Time, extra map[string]string) protocol.Event {
	tokens := map[string]string{
		"world_id":       st.WorldID,
		"season_number":  strconv.Itoa(st.SeasonNumber),
		"world_revision": strconv.Itoa(st.WorldRevision),
		"occurred_at":    at.UTC().Format(time.RFC3339),
	}
	for k, v := range extra {
		tokens[k] = v
	}
	return protocol.NewEvent(key, tokens)
}

func emptyJoinable() worldstate.JoinableWorldState {
	return worldstate.JoinableWorldState{
		JoinablePlayerIDs:   []string{},
		ActiveSettlementIDs: []string{},
		ActiveMarchIDs:      []string{},
	}
}

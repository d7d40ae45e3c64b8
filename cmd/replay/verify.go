package main

import (
	"fmt"
	"strconv"
	"time"

	persistlog "realmclock.ai/internal/persistence/log"
	"realmclock.ai/internal/protocol"
)

// nextLifecycleKey is the only lifecycle event allowed after each one.
var nextLifecycleKey = map[string]string{
	protocol.EventLifecycleLocked:   protocol.EventLifecycleArchived,
	protocol.EventLifecycleArchived: protocol.EventLifecycleReset,
	protocol.EventLifecycleReset:    protocol.EventLifecycleOpened,
	protocol.EventLifecycleOpened:   protocol.EventLifecycleLocked,
}

type worldCursor struct {
	lastKey    string
	season     int
	revision   int
	occurredAt time.Time
}

// verifier checks that a journal is a plausible output of the lifecycle scheduler: each
// world's lifecycle events follow lock, archive, reset, open with non-decreasing revisions and
// timestamps, and a reset moves to the next season.
type verifier struct {
	worlds    map[string]*worldCursor
	records   int
	lifecycle int
}

func newVerifier() *verifier { return &verifier{worlds: map[string]*worldCursor{}} }

func (v *verifier) check(rec persistlog.Record) error {
	v.records++
	if _, ok := nextLifecycleKey[rec.Event.ContentKey]; !ok {
		return nil
	}
	v.lifecycle++

	tok := rec.Event.Tokens
	season, err := strconv.Atoi(tok["season_number"])
	if err != nil {
		return fmt.Errorf("world=%s key=%s: bad season_number %q", rec.WorldID, rec.Event.ContentKey, tok["season_number"])
	}
	rev, err := strconv.Atoi(tok["world_revision"])
	if err != nil {
		return fmt.Errorf("world=%s key=%s: bad world_revision %q", rec.WorldID, rec.Event.ContentKey, tok["world_revision"])
	}
	at, err := time.Parse(time.RFC3339, tok["occurred_at"])
	if err != nil {
		return fmt.Errorf("world=%s key=%s: bad occurred_at %q", rec.WorldID, rec.Event.ContentKey, tok["occurred_at"])
	}

	c := v.worlds[rec.WorldID]
	if c == nil {
		// The journal may start anywhere in a season.
		v.worlds[rec.WorldID] = &worldCursor{lastKey: rec.Event.ContentKey, season: season, revision: rev, occurredAt: at}
		return nil
	}

	if want := nextLifecycleKey[c.lastKey]; rec.Event.ContentKey != want {
		return fmt.Errorf("world=%s season=%d: %s after %s, want %s", rec.WorldID, season, rec.Event.ContentKey, c.lastKey, want)
	}
	wantSeason := c.season
	if rec.Event.ContentKey == protocol.EventLifecycleReset {
		wantSeason++
		if prev := tok["previous_season_number"]; prev != strconv.Itoa(c.season) {
			return fmt.Errorf("world=%s: reset previous_season_number=%s, want %d", rec.WorldID, prev, c.season)
		}
	}
	if season != wantSeason {
		return fmt.Errorf("world=%s key=%s: season=%d want %d", rec.WorldID, rec.Event.ContentKey, season, wantSeason)
	}
	switch {
	case rec.Event.ContentKey == protocol.EventLifecycleOpened && rev != c.revision:
		return fmt.Errorf("world=%s season=%d: opened revision=%d, reset had %d", rec.WorldID, season, rev, c.revision)
	case rec.Event.ContentKey != protocol.EventLifecycleOpened && rev <= c.revision:
		return fmt.Errorf("world=%s season=%d key=%s: revision %d does not advance past %d", rec.WorldID, season, rec.Event.ContentKey, rev, c.revision)
	}
	if at.Before(c.occurredAt) {
		return fmt.Errorf("world=%s season=%d key=%s: occurred_at %s before %s", rec.WorldID, season, rec.Event.ContentKey, at.Format(time.RFC3339), c.occurredAt.Format(time.RFC3339))
	}

	c.lastKey, c.season, c.revision, c.occurredAt = rec.Event.ContentKey, season, rev, at
	return nil
}

package main

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	persistlog "realmclock.ai/internal/persistence/log"
	"realmclock.ai/internal/persistence/memstore"
	"realmclock.ai/internal/protocol"
	"realmclock.ai/internal/sim/lifecycle"
	"realmclock.ai/internal/sim/tuning"
)

// journalFromScheduler runs the real scheduler through a few seasons and journals its events.
func journalFromScheduler(t *testing.T, dir string) {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := store.SaveLifecycle(ctx, lifecycle.NewWorldState("world_alpha", 1, start)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	sched := lifecycle.NewScheduler(store, tuning.Defaults().Lifecycle)
	j := persistlog.NewEventJournal(dir)
	defer j.Close()
	for at := start; at.Before(start.Add(72 * time.Hour)); at = at.Add(50 * time.Minute) {
		resp, err := sched.Advance(ctx, "world_alpha", at)
		if err != nil {
			t.Fatalf("advance %s: %v", at, err)
		}
		for _, ev := range resp.Events {
			if err := j.Append("world_alpha", at, ev); err != nil {
				t.Fatalf("append: %v", err)
			}
		}
	}
}

func TestVerifierAcceptsSchedulerJournal(t *testing.T) {
	dir := t.TempDir()
	journalFromScheduler(t, dir)

	v := newVerifier()
	if err := persistlog.ReadDir(filepath.Join(dir, "events"), v.check); err != nil {
		t.Fatalf("verify: %v", err)
	}
	// Two full seasons of four events each; season 3 locks just after the last poll.
	if v.lifecycle != 8 || v.worlds["world_alpha"].season != 3 {
		t.Fatalf("lifecycle=%d cursor=%+v", v.lifecycle, v.worlds["world_alpha"])
	}
}

func lifecycleRecord(key string, season, revision int, at string, extra ...string) persistlog.Record {
	tokens := map[string]string{
		"world_id":       "world_alpha",
		"season_number":  strconv.Itoa(season),
		"world_revision": strconv.Itoa(revision),
		"occurred_at":    at,
	}
	for i := 0; i+1 < len(extra); i += 2 {
		tokens[extra[i]] = extra[i+1]
	}
	return persistlog.Record{WorldID: "world_alpha", ObservedAt: at, Event: protocol.NewEvent(key, tokens)}
}

func TestVerifierRejects(t *testing.T) {
	cases := []struct {
		name string
		recs []persistlog.Record
		want string
	}{
		{
			name: "skipped archive",
			recs: []persistlog.Record{
				lifecycleRecord(protocol.EventLifecycleLocked, 1, 1, "2026-01-02T00:00:00Z"),
				lifecycleRecord(protocol.EventLifecycleReset, 2, 2, "2026-01-02T00:06:00Z", "previous_season_number", "1"),
			},
			want: "want " + protocol.EventLifecycleArchived,
		},
		{
			name: "reset keeps season",
			recs: []persistlog.Record{
				lifecycleRecord(protocol.EventLifecycleArchived, 1, 2, "2026-01-02T00:05:00Z"),
				lifecycleRecord(protocol.EventLifecycleReset, 1, 3, "2026-01-02T00:06:00Z", "previous_season_number", "1"),
			},
			want: "season=1 want 2",
		},
		{
			name: "revision goes backwards",
			recs: []persistlog.Record{
				lifecycleRecord(protocol.EventLifecycleLocked, 1, 5, "2026-01-02T00:00:00Z"),
				lifecycleRecord(protocol.EventLifecycleArchived, 1, 4, "2026-01-02T00:05:00Z"),
			},
			want: "does not advance",
		},
		{
			name: "time goes backwards",
			recs: []persistlog.Record{
				lifecycleRecord(protocol.EventLifecycleLocked, 1, 1, "2026-01-02T00:00:00Z"),
				lifecycleRecord(protocol.EventLifecycleArchived, 1, 2, "2026-01-01T23:00:00Z"),
			},
			want: "before",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := newVerifier()
			var err error
			for _, r := range tc.recs {
				if err = v.check(r); err != nil {
					break
				}
			}
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err=%v want substring %q", err, tc.want)
			}
		})
	}
}

func TestVerifierIgnoresGatherEvents(t *testing.T) {
	v := newVerifier()
	rec := persistlog.Record{WorldID: "world_alpha", Event: protocol.NewEvent(protocol.EventGatherStarted, nil)}
	if err := v.check(rec); err != nil {
		t.Fatalf("check: %v", err)
	}
	if v.records != 1 || v.lifecycle != 0 {
		t.Fatalf("records=%d lifecycle=%d", v.records, v.lifecycle)
	}
}

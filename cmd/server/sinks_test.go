package main

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"realmclock.ai/internal/persistence/archive"
	persistlog "realmclock.ai/internal/persistence/log"
	"realmclock.ai/internal/persistence/r2s3"
	"realmclock.ai/internal/protocol"
	"realmclock.ai/internal/sim/multiworld"
)

func TestJournalAndArchiveSinks(t *testing.T) {
	dataDir := t.TempDir()
	rt := newTestRuntime(t)
	journal := newJournalSink(dataDir)
	rt.AddSink(journal)
	up := &recordingPutter{}
	mirror := r2s3.NewMirror(up, dataDir, r2s3.MirrorOptions{}, nil)
	rt.AddSink(archiveSink{dataDir: dataDir, archives: rt, mirror: mirror})

	at := time.Date(2026, 1, 2, 0, 6, 30, 0, time.UTC)
	if _, err := rt.AdvanceWorld(context.Background(), "world_alpha", at); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := journal.Close(); err != nil {
		t.Fatalf("close journal: %v", err)
	}

	var keys []string
	err := persistlog.ReadDir(filepath.Join(dataDir, "worlds", "world_alpha", "events"), func(rec persistlog.Record) error {
		if rec.WorldID != "world_alpha" || rec.ObservedAt != "2026-01-02T00:06:30Z" {
			t.Fatalf("record=%+v", rec)
		}
		keys = append(keys, rec.Event.ContentKey)
		return nil
	})
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	if len(keys) != 4 || keys[1] != protocol.EventLifecycleArchived {
		t.Fatalf("journal keys=%v", keys)
	}

	meta, err := archive.ReadSeasonSummary(filepath.Join(dataDir, "worlds", "world_alpha"), 1)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if meta.ArchiveID != "world_alpha:season:1" || meta.Snapshot != "" {
		t.Fatalf("meta=%+v", meta)
	}

	mirror.Close()
	if len(up.keys) != 1 || up.keys[0] != "worlds/world_alpha/archives/season_001/summary.json" {
		t.Fatalf("mirrored keys=%v", up.keys)
	}
}

type recordingPutter struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPutter) PutFile(_ context.Context, key, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	return nil
}

func TestArchiveSinkIgnoresOtherEvents(t *testing.T) {
	s := archiveSink{dataDir: t.TempDir(), archives: nil}
	ev := protocol.NewEvent(protocol.EventLifecycleLocked, map[string]string{"world_id": "world_alpha"})
	if err := s.Publish(multiworld.PublishedEvent{WorldID: "world_alpha", ObservedAt: time.Now(), Event: ev}); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"realmclock.ai/internal/persistence/archive"
	persistlog "realmclock.ai/internal/persistence/log"
	"realmclock.ai/internal/persistence/r2s3"
	"realmclock.ai/internal/protocol"
	"realmclock.ai/internal/sim/multiworld"
	"realmclock.ai/internal/sim/worldstate"
)

// journalSink appends every event to the per-world JSONL journal.
type journalSink struct {
	dataDir string

	mu       sync.Mutex
	journals map[string]*persistlog.EventJournal
}

func newJournalSink(dataDir string) *journalSink {
	return &journalSink{dataDir: dataDir, journals: map[string]*persistlog.EventJournal{}}
}

func (s *journalSink) Publish(ev multiworld.PublishedEvent) error {
	s.mu.Lock()
	j := s.journals[ev.WorldID]
	if j == nil {
		j = persistlog.NewEventJournal(worldDir(s.dataDir, ev.WorldID))
		s.journals[ev.WorldID] = j
	}
	s.mu.Unlock()
	return j.Append(ev.WorldID, ev.ObservedAt, ev.Event)
}

func (s *journalSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	for id, j := range s.journals {
		if err := j.Close(); err != nil && first == nil {
			first = fmt.Errorf("close journal %s: %w", id, err)
		}
	}
	s.journals = map[string]*persistlog.EventJournal{}
	return first
}

type archiveLister interface {
	ListArchives(ctx context.Context, worldID string) ([]worldstate.WorldSeasonArchiveSummary, error)
}

// archiveSink writes archives/season_NNN/summary.json when a season is archived. The newest
// snapshot, if any, is copied alongside it, and both are handed to the mirror.
type archiveSink struct {
	dataDir      string
	archives     archiveLister
	snapshotPath func() string
	mirror       *r2s3.Mirror
}

func (s archiveSink) Publish(ev multiworld.PublishedEvent) error {
	if ev.Event.ContentKey != protocol.EventLifecycleArchived {
		return nil
	}
	id := ev.Event.Tokens["archive_id"]
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	list, err := s.archives.ListArchives(ctx, ev.WorldID)
	if err != nil {
		return err
	}
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].ArchiveID != id {
			continue
		}
		snap := ""
		if s.snapshotPath != nil {
			snap = s.snapshotPath()
		}
		dir, err := archive.WriteSeasonSummary(worldDir(s.dataDir, ev.WorldID), list[i], snap)
		if err != nil {
			return err
		}
		name := ""
		if snap != "" {
			name = filepath.Base(snap)
		}
		enqueueSeason(s.mirror, dir, name)
		return nil
	}
	return fmt.Errorf("archive %s not found for world %s", id, ev.WorldID)
}

// eventIndexSink records events in the sqlite events table.
type eventIndexSink struct {
	index interface {
		RecordEvent(ctx context.Context, worldID string, observedAt time.Time, ev protocol.Event) error
	}
}

func (s eventIndexSink) Publish(ev multiworld.PublishedEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.index.RecordEvent(ctx, ev.WorldID, ev.ObservedAt, ev.Event)
}

package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"realmclock.ai/internal/persistence/memstore"
	"realmclock.ai/internal/persistence/snapshot"
	"realmclock.ai/internal/persistence/sqlitestore"
	"realmclock.ai/internal/sim/worldstate"
)

// backend is the state store plus the hooks that differ between memory and sqlite.
type backend struct {
	store worldstate.Store
	// sqlite is set only for the sqlite backend; it also indexes published events.
	sqlite *sqlitestore.Store
	mem    *memstore.Store

	snapDir string
}

func openBackend(cfg serverConfig, logger *log.Logger) (*backend, error) {
	b := &backend{snapDir: filepath.Join(cfg.DataDir, "snapshots")}
	switch cfg.StoreBackend {
	case backendSQLite:
		s, err := sqlitestore.Open(filepath.Join(cfg.DataDir, "state", "realm.sqlite"))
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		b.store, b.sqlite = s, s
		logger.Printf("store=sqlite path=%s", filepath.Join(cfg.DataDir, "state", "realm.sqlite"))
	default:
		m := memstore.New()
		if cfg.LoadLatest {
			if path := snapshot.Latest(b.snapDir); path != "" {
				snap, err := snapshot.ReadSnapshot(path)
				if err != nil {
					return nil, fmt.Errorf("read snapshot %s: %w", path, err)
				}
				m.Import(snap)
				logger.Printf("resumed from snapshot=%s worlds=%d nodes=%d marches=%d", filepath.Base(path), snap.Header.Worlds, snap.Header.Nodes, snap.Header.Marches)
			}
		}
		b.store, b.mem = m, m
		logger.Printf("store=memory snapshots=%s", b.snapDir)
	}
	return b, nil
}

// saveSnapshot writes the memory store to disk. It is a no-op for sqlite, which is durable
// on every save.
func (b *backend) saveSnapshot(at time.Time) (string, error) {
	if b.mem == nil {
		return "", nil
	}
	snap := b.mem.Export()
	snap.Header.SavedAt = at.UTC().Format(time.RFC3339Nano)
	path := filepath.Join(b.snapDir, snapshot.FileName(at))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return "", err
	}
	return path, nil
}

func (b *backend) latestSnapshot() string {
	if b.mem == nil {
		return ""
	}
	return snapshot.Latest(b.snapDir)
}

func (b *backend) Close() error {
	if b.sqlite != nil {
		return b.sqlite.Close()
	}
	return nil
}

func worldDir(dataDir, worldID string) string {
	dir := filepath.Join(dataDir, "worlds", worldID)
	_ = os.MkdirAll(dir, 0o755)
	return dir
}

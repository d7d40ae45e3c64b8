// Package sqlitestore persists the worldstate repository ports in a single SQLite file. Each
// record is stored as a JSON document next to the columns used for lookup.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"realmclock.ai/internal/protocol"
	"realmclock.ai/internal/sim/worldstate"
)

const schemaVersion = "1"

type Store struct {
	db   *sql.DB
	once sync.Once
}

var _ worldstate.Store = (*Store)(nil)

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps writes serialized and lets PRAGMAs stick.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS lifecycles (
			world_id TEXT PRIMARY KEY,
			world_revision INTEGER NOT NULL,
			lifecycle_state TEXT NOT NULL,
			season_number INTEGER NOT NULL,
			json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS archives (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			archive_id TEXT NOT NULL,
			world_id TEXT NOT NULL,
			season_number INTEGER NOT NULL,
			json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_archives_world ON archives(world_id, seq);`,
		`CREATE TABLE IF NOT EXISTS nodes (
			world_id TEXT NOT NULL,
			node_id TEXT NOT NULL,
			node_state TEXT NOT NULL,
			json TEXT NOT NULL,
			PRIMARY KEY (world_id, node_id)
		);`,
		`CREATE TABLE IF NOT EXISTS marches (
			march_id TEXT PRIMARY KEY,
			world_id TEXT NOT NULL,
			march_state TEXT NOT NULL,
			json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			world_id TEXT NOT NULL,
			observed_at TEXT NOT NULL,
			content_key TEXT NOT NULL,
			json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_world ON events(world_id, seq);`,
		`INSERT INTO meta(key,value) VALUES('schema_version','` + schemaVersion + `')
			ON CONFLICT(key) DO NOTHING;`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	var err error
	s.once.Do(func() { err = s.db.Close() })
	return err
}

func (s *Store) ReadLifecycle(ctx context.Context, worldID string) (worldstate.WorldLifecycleRuntimeState, bool, error) {
	var st worldstate.WorldLifecycleRuntimeState
	ok, err := s.readJSON(ctx, &st, `SELECT json FROM lifecycles WHERE world_id=?`, worldID)
	return st, ok, err
}

func (s *Store) SaveLifecycle(ctx context.Context, st worldstate.WorldLifecycleRuntimeState) (worldstate.WorldLifecycleRuntimeState, error) {
	b, err := json.Marshal(st)
	if err != nil {
		return st, err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO lifecycles(world_id,world_revision,lifecycle_state,season_number,json)
		VALUES(?,?,?,?,?)
		ON CONFLICT(world_id) DO UPDATE SET
			world_revision=excluded.world_revision,
			lifecycle_state=excluded.lifecycle_state,
			season_number=excluded.season_number,
			json=excluded.json`,
		st.WorldID, st.WorldRevision, string(st.LifecycleState), st.SeasonNumber, string(b))
	if err != nil {
		return st, storageErr("save lifecycle", st.WorldID, err)
	}
	return st.Clone(), nil
}

func (s *Store) AppendArchiveSummary(ctx context.Context, sum worldstate.WorldSeasonArchiveSummary) (worldstate.WorldSeasonArchiveSummary, error) {
	b, err := json.Marshal(sum)
	if err != nil {
		return sum, err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO archives(archive_id,world_id,season_number,json) VALUES(?,?,?,?)`,
		sum.ArchiveID, sum.WorldID, sum.SeasonNumber, string(b))
	if err != nil {
		return sum, storageErr("append archive", sum.ArchiveID, err)
	}
	return sum, nil
}

func (s *Store) ListArchiveSummaries(ctx context.Context, worldID string) ([]worldstate.WorldSeasonArchiveSummary, error) {
	out := []worldstate.WorldSeasonArchiveSummary{}
	err := s.eachJSON(ctx, func(raw []byte) error {
		var sum worldstate.WorldSeasonArchiveSummary
		if err := json.Unmarshal(raw, &sum); err != nil {
			return err
		}
		out = append(out, sum)
		return nil
	}, `SELECT json FROM archives WHERE world_id=? ORDER BY seq`, worldID)
	return out, err
}

func (s *Store) ReadNode(ctx context.Context, worldID, nodeID string) (worldstate.NeutralNodeRuntimeState, bool, error) {
	var n worldstate.NeutralNodeRuntimeState
	ok, err := s.readJSON(ctx, &n, `SELECT json FROM nodes WHERE world_id=? AND node_id=?`, worldID, nodeID)
	return n, ok, err
}

func (s *Store) SaveNode(ctx context.Context, n worldstate.NeutralNodeRuntimeState) (worldstate.NeutralNodeRuntimeState, error) {
	b, err := json.Marshal(n)
	if err != nil {
		return n, err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO nodes(world_id,node_id,node_state,json) VALUES(?,?,?,?)
		ON CONFLICT(world_id,node_id) DO UPDATE SET node_state=excluded.node_state, json=excluded.json`,
		n.WorldID, n.NodeID, string(n.NodeState), string(b))
	if err != nil {
		return n, storageErr("save node", n.WorldID+"/"+n.NodeID, err)
	}
	return n.Clone(), nil
}

func (s *Store) ListNodes(ctx context.Context, worldID string) ([]worldstate.NeutralNodeRuntimeState, error) {
	out := []worldstate.NeutralNodeRuntimeState{}
	err := s.eachJSON(ctx, func(raw []byte) error {
		var n worldstate.NeutralNodeRuntimeState
		if err := json.Unmarshal(raw, &n); err != nil {
			return err
		}
		out = append(out, n)
		return nil
	}, `SELECT json FROM nodes WHERE world_id=? ORDER BY node_id`, worldID)
	return out, err
}

func (s *Store) ReadMarch(ctx context.Context, marchID string) (worldstate.GatherMarchRuntimeState, bool, error) {
	var m worldstate.GatherMarchRuntimeState
	ok, err := s.readJSON(ctx, &m, `SELECT json FROM marches WHERE march_id=?`, marchID)
	return m, ok, err
}

func (s *Store) SaveMarch(ctx context.Context, m worldstate.GatherMarchRuntimeState) (worldstate.GatherMarchRuntimeState, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return m, err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO marches(march_id,world_id,march_state,json) VALUES(?,?,?,?)
		ON CONFLICT(march_id) DO UPDATE SET march_state=excluded.march_state, json=excluded.json`,
		m.MarchID, m.WorldID, string(m.MarchState), string(b))
	if err != nil {
		return m, storageErr("save march", m.MarchID, err)
	}
	return m.Clone(), nil
}

// RecordEvent indexes one published event. The JSONL journal stays the source of truth for
// replay; this table serves per-world lookups.
func (s *Store) RecordEvent(ctx context.Context, worldID string, observedAt time.Time, ev protocol.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO events(world_id,observed_at,content_key,json) VALUES(?,?,?,?)`,
		worldID, observedAt.UTC().Format(time.RFC3339Nano), ev.ContentKey, string(b))
	if err != nil {
		return storageErr("record event", worldID, err)
	}
	return nil
}

// RecentEvents returns up to limit of the newest events for a world, oldest first.
func (s *Store) RecentEvents(ctx context.Context, worldID string, limit int) ([]protocol.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	var rev []protocol.Event
	err := s.eachJSON(ctx, func(raw []byte) error {
		var ev protocol.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return err
		}
		rev = append(rev, ev)
		return nil
	}, `SELECT json FROM events WHERE world_id=? ORDER BY seq DESC LIMIT ?`, worldID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]protocol.Event, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		out = append(out, rev[i])
	}
	return out, nil
}

func (s *Store) readJSON(ctx context.Context, dst any, query string, args ...any) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storageErr("read", fmt.Sprint(args...), err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, protocol.Wrap(protocol.ErrInvariantViolation, "stored record is not valid json", err)
	}
	return true, nil
}

func (s *Store) eachJSON(ctx context.Context, fn func([]byte) error, query string, args ...any) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return storageErr("query", fmt.Sprint(args...), err)
	}
	defer rows.Close()
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return err
		}
		if err := fn([]byte(raw)); err != nil {
			return protocol.Wrap(protocol.ErrInvariantViolation, "stored record is not valid json", err)
		}
	}
	return rows.Err()
}

func storageErr(op, key string, err error) error {
	return protocol.Wrap(protocol.ErrInternal, fmt.Sprintf("%s %s", op, key), err)
}

package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"realmclock.ai/internal/persistence/archive"
	"realmclock.ai/internal/persistence/snapshot"
	"realmclock.ai/internal/sim/worldstate"
)

func TestArchivesCmdListsSeasonsInOrder(t *testing.T) {
	dataDir := t.TempDir()
	worldDir := filepath.Join(dataDir, "worlds", "world_alpha")
	for _, n := range []int{10, 2, 1} {
		sum := worldstate.WorldSeasonArchiveSummary{
			ArchiveID:           worldstate.ArchiveID("world_alpha", n),
			WorldID:             "world_alpha",
			SeasonNumber:        n,
			ArchivedAt:          time.Date(2026, 1, 1+n, 0, 5, 0, 0, time.UTC),
			JoinablePlayerCount: n,
		}
		if _, err := archive.WriteSeasonSummary(worldDir, sum, ""); err != nil {
			t.Fatalf("write season %d: %v", n, err)
		}
	}
	// Stray entries are ignored.
	_ = os.MkdirAll(filepath.Join(worldDir, "archives", "season_x"), 0o755)

	var out bytes.Buffer
	if err := archivesCmd(&out, []string{"-data", dataDir, "-world", "world_alpha"}); err != nil {
		t.Fatalf("archives: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines=%q", lines)
	}
	if !strings.HasPrefix(lines[0], "world_alpha:season:1 ") || !strings.HasPrefix(lines[2], "world_alpha:season:10 ") {
		t.Fatalf("order=%q", lines)
	}
	if !strings.Contains(lines[1], "players=2") || !strings.HasSuffix(lines[1], "snapshot=-") {
		t.Fatalf("line=%q", lines[1])
	}

	if err := archivesCmd(io.Discard, []string{"-data", dataDir}); err == nil {
		t.Fatalf("expected usage error without -world")
	}
}

func TestAdvanceCmdPostsObservedAt(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		rw.Header().Set("Content-Type", "application/json")
		_, _ = rw.Write([]byte(`{"events":[]}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := advanceCmd(&out, []string{"-url", srv.URL + "/", "-world", "world_alpha", "-at", "2026-01-02T00:06:30+02:00"})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if gotPath != "POST /v1/worlds/world_alpha/advance" {
		t.Fatalf("path=%s", gotPath)
	}
	if gotBody["observed_at"] != "2026-01-01T22:06:30Z" {
		t.Fatalf("body=%v", gotBody)
	}
	if strings.TrimSpace(out.String()) != `{"events":[]}` {
		t.Fatalf("out=%q", out.String())
	}

	if err := advanceCmd(io.Discard, []string{"-url", srv.URL, "-world", "world_alpha", "-at", "yesterday"}); err == nil {
		t.Fatalf("expected bad -at error")
	}
}

func TestStateCmdFailsOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/worlds/nowhere" {
			t.Errorf("path=%s", r.URL.Path)
		}
		rw.WriteHeader(http.StatusNotFound)
		_, _ = rw.Write([]byte(`{"code":"E_WORLD_NOT_FOUND"}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	if err := stateCmd(&out, []string{"-url", srv.URL, "-world", "nowhere"}); err == nil {
		t.Fatalf("expected error for 404")
	}
	if !strings.Contains(out.String(), "E_WORLD_NOT_FOUND") {
		t.Fatalf("body should still be printed, got %q", out.String())
	}
}

func TestSnapshotCmdReadsLatest(t *testing.T) {
	dataDir := t.TempDir()
	snapDir := filepath.Join(dataDir, "snapshots")
	at := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	snap := snapshot.SnapshotV1{Lifecycles: []worldstate.WorldLifecycleRuntimeState{{
		WorldID:        "world_alpha",
		LifecycleState: worldstate.LifecycleLocked,
		SeasonNumber:   4,
	}}}
	if err := snapshot.WriteSnapshot(filepath.Join(snapDir, snapshot.FileName(at)), snap); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}

	var out bytes.Buffer
	if err := snapshotCmd(&out, []string{"-data", dataDir}); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	var got struct {
		Header snapshot.Header                         `json:"header"`
		Worlds []worldstate.WorldLifecycleRuntimeState `json:"worlds"`
	}
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, out.String())
	}
	if got.Header.Worlds != 1 || len(got.Worlds) != 1 || got.Worlds[0].SeasonNumber != 4 {
		t.Fatalf("got=%+v", got)
	}

	if err := snapshotCmd(io.Discard, []string{"-data", t.TempDir()}); err == nil {
		t.Fatalf("expected error with no snapshots")
	}
}

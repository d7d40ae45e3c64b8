package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"realmclock.ai/internal/sim/worldstate"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	SavedAt string `json:"saved_at"`
	Worlds  int    `json:"worlds"`
	Nodes   int    `json:"nodes"`
	Marches int    `json:"marches"`
}

// SnapshotV1 is a full dump of a store. Slices are in a stable order so identical stores
// produce identical files.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Lifecycles []worldstate.WorldLifecycleRuntimeState `json:"lifecycles"`
	Archives   []worldstate.WorldSeasonArchiveSummary  `json:"archives"`
	Nodes      []worldstate.NeutralNodeRuntimeState    `json:"nodes"`
	Marches    []worldstate.GatherMarchRuntimeState    `json:"marches"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 256*1024)
	snap.Header.Version = Version
	snap.Header.Worlds = len(snap.Lifecycles)
	snap.Header.Nodes = len(snap.Nodes)
	snap.Header.Marches = len(snap.Marches)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Header line is for humans and tooling; gob carries it too.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// FileName names a snapshot by save time so lexical order is chronological.
func FileName(savedAt time.Time) string {
	return strconv.FormatInt(savedAt.UTC().UnixMilli(), 10) + ".snap.zst"
}

// Latest returns the newest snapshot file under dir, or "" if there is none.
func Latest(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".snap.zst") {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return ""
	}
	sort.Slice(names, func(i, j int) bool {
		a, _ := strconv.ParseInt(strings.TrimSuffix(names[i], ".snap.zst"), 10, 64)
		b, _ := strconv.ParseInt(strings.TrimSuffix(names[j], ".snap.zst"), 10, 64)
		return a < b
	})
	return filepath.Join(dir, names[len(names)-1])
}

package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"realmclock.ai/internal/sim/worldstate"
)

type SeasonArchiveMeta struct {
	worldstate.WorldSeasonArchiveSummary
	Snapshot  string `json:"snapshot,omitempty"`
	CreatedAt string `json:"created_at"`
}

// SeasonDir is `worldDir/archives/season_<NNN>`.
func SeasonDir(worldDir string, season int) string {
	return filepath.Join(worldDir, "archives", fmt.Sprintf("season_%03d", season))
}

// WriteSeasonSummary records an archived season under SeasonDir. When snapshotPath is set the
// snapshot is copied next to summary.json. Rewriting an existing season replaces its files.
func WriteSeasonSummary(worldDir string, sum worldstate.WorldSeasonArchiveSummary, snapshotPath string) (string, error) {
	if sum.SeasonNumber <= 0 {
		return "", fmt.Errorf("archive %s: season number %d", sum.ArchiveID, sum.SeasonNumber)
	}
	dir := SeasonDir(worldDir, sum.SeasonNumber)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	meta := SeasonArchiveMeta{
		WorldSeasonArchiveSummary: sum,
		CreatedAt:                 time.Now().UTC().Format(time.RFC3339Nano),
	}
	if snapshotPath != "" {
		dst := filepath.Join(dir, filepath.Base(snapshotPath))
		if err := copyFile(snapshotPath, dst); err != nil {
			return "", err
		}
		meta.Snapshot = filepath.Base(dst)
	}

	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", err
	}
	tmp := filepath.Join(dir, "summary.json.tmp")
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, filepath.Join(dir, "summary.json")); err != nil {
		return "", err
	}
	return dir, nil
}

func ReadSeasonSummary(worldDir string, season int) (SeasonArchiveMeta, error) {
	var meta SeasonArchiveMeta
	b, err := os.ReadFile(filepath.Join(SeasonDir(worldDir, season), "summary.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(b, &meta); err != nil {
		return meta, err
	}
	return meta, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

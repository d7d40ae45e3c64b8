package tuning

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	d := Defaults()
	if d.Lifecycle.LockToArchive() != 5*time.Minute || d.Lifecycle.ArchiveToReset() != time.Minute {
		t.Fatalf("unexpected lifecycle delays: %+v", d.Lifecycle)
	}
	if d.Lifecycle.MaxCatchUpSeasons != 512 {
		t.Fatalf("max catch-up=%d want 512", d.Lifecycle.MaxCatchUpSeasons)
	}
	if d.Gathering.DefaultTravelSecondsPerLeg != 30 || d.Gathering.DefaultArmyName != "Gathering Party" {
		t.Fatalf("unexpected gathering defaults: %+v", d.Gathering)
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	raw := []byte("lifecycle:\n  lock_to_archive_seconds: 120\ngathering:\n  default_army_name: \"  \"\n  intercepted_yield_multiplier: 0.5\n")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Lifecycle.LockToArchiveSeconds != 120 {
		t.Fatalf("lock_to_archive_seconds=%d want 120", got.Lifecycle.LockToArchiveSeconds)
	}
	if got.Lifecycle.ArchiveToResetSeconds != 60 {
		t.Fatalf("archive_to_reset_seconds should keep default, got %d", got.Lifecycle.ArchiveToResetSeconds)
	}
	if got.Gathering.DefaultArmyName != "Gathering Party" {
		t.Fatalf("blank army name should normalize to default, got %q", got.Gathering.DefaultArmyName)
	}
	if got.Gathering.InterceptedYieldMultiplier != 0.5 {
		t.Fatalf("multiplier=%v", got.Gathering.InterceptedYieldMultiplier)
	}
}

func TestLoad_RejectsInvalidMultiplier(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("gathering:\n  intercepted_yield_multiplier: 2\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestNormalize_ZeroValueMatchesDefaults(t *testing.T) {
	var got Tuning
	got.Normalize()
	if got != Defaults() {
		t.Fatalf("normalized zero value=%+v want %+v", got, Defaults())
	}

	neg := Tuning{Lifecycle: Lifecycle{LockToArchiveSeconds: -1}}
	neg.Normalize()
	if err := neg.Validate(); err == nil {
		t.Fatalf("negative lock delay should not validate")
	}
}

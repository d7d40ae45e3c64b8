package tuning

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	Lifecycle Lifecycle `yaml:"lifecycle" json:"lifecycle"`
	Gathering Gathering `yaml:"gathering" json:"gathering"`
}

type Lifecycle struct {
	LockToArchiveSeconds  int `yaml:"lock_to_archive_seconds" json:"lock_to_archive_seconds"`
	ArchiveToResetSeconds int `yaml:"archive_to_reset_seconds" json:"archive_to_reset_seconds"`
	// Upper bound on full seasons replayed by one advance. Hitting it means corrupted state.
	MaxCatchUpSeasons int `yaml:"max_catch_up_seasons" json:"max_catch_up_seasons"`
}

type Gathering struct {
	DefaultTravelSecondsPerLeg int     `yaml:"default_travel_seconds_per_leg" json:"default_travel_seconds_per_leg"`
	DefaultArmyName            string  `yaml:"default_army_name" json:"default_army_name"`
	InterceptedYieldMultiplier float64 `yaml:"intercepted_yield_multiplier" json:"intercepted_yield_multiplier"`
}

func Defaults() Tuning {
	return Tuning{
		Lifecycle: Lifecycle{
			LockToArchiveSeconds:  300,
			ArchiveToResetSeconds: 60,
			MaxCatchUpSeasons:     512,
		},
		Gathering: Gathering{
			DefaultTravelSecondsPerLeg: 30,
			DefaultArmyName:            "Gathering Party",
			InterceptedYieldMultiplier: 0,
		},
	}
}

// Load reads a tuning file over the defaults, so keys missing from the file keep their
// default values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Normalize fills unset values with Defaults. A zero lifecycle delay counts as unset; negative
// delays are left for Validate to reject.
func (t *Tuning) Normalize() {
	if t == nil {
		return
	}
	d := Defaults()
	if t.Lifecycle.LockToArchiveSeconds == 0 {
		t.Lifecycle.LockToArchiveSeconds = d.Lifecycle.LockToArchiveSeconds
	}
	if t.Lifecycle.ArchiveToResetSeconds == 0 {
		t.Lifecycle.ArchiveToResetSeconds = d.Lifecycle.ArchiveToResetSeconds
	}
	if t.Lifecycle.MaxCatchUpSeasons <= 0 {
		t.Lifecycle.MaxCatchUpSeasons = d.Lifecycle.MaxCatchUpSeasons
	}
	if t.Gathering.DefaultTravelSecondsPerLeg <= 0 {
		t.Gathering.DefaultTravelSecondsPerLeg = d.Gathering.DefaultTravelSecondsPerLeg
	}
	t.Gathering.DefaultArmyName = strings.TrimSpace(t.Gathering.DefaultArmyName)
	if t.Gathering.DefaultArmyName == "" {
		t.Gathering.DefaultArmyName = d.Gathering.DefaultArmyName
	}
}

func (t Tuning) Validate() error {
	if t.Lifecycle.LockToArchiveSeconds < 0 {
		return fmt.Errorf("lifecycle.lock_to_archive_seconds must be >= 0")
	}
	if t.Lifecycle.ArchiveToResetSeconds < 0 {
		return fmt.Errorf("lifecycle.archive_to_reset_seconds must be >= 0")
	}
	if t.Gathering.InterceptedYieldMultiplier < 0 || t.Gathering.InterceptedYieldMultiplier > 1 {
		return fmt.Errorf("gathering.intercepted_yield_multiplier must be in [0, 1]")
	}
	return nil
}

func (l Lifecycle) LockToArchive() time.Duration {
	return time.Duration(l.LockToArchiveSeconds) * time.Second
}

func (l Lifecycle) ArchiveToReset() time.Duration {
	return time.Duration(l.ArchiveToResetSeconds) * time.Second
}

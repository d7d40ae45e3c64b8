package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	persistlog "realmclock.ai/internal/persistence/log"
	"realmclock.ai/internal/persistence/snapshot"
)

func main() {
	var (
		dataDir  = flag.String("data", "./data", "runtime data directory")
		worldID  = flag.String("world", "", "only replay this world (default: every world under <data>/worlds)")
		key      = flag.String("key", "", "only print events with this content key")
		asJSON   = flag.Bool("json", false, "print matching records as JSON lines")
		snapPath = flag.String("snapshot", "", "path to .snap.zst to summarize (optional)")
	)
	flag.Parse()

	if *snapPath != "" {
		snap, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		fmt.Printf("snapshot v%d saved_at=%s worlds=%d archives=%d nodes=%d marches=%d\n",
			snap.Header.Version, snap.Header.SavedAt, len(snap.Lifecycles), len(snap.Archives), len(snap.Nodes), len(snap.Marches))
		for _, st := range snap.Lifecycles {
			fmt.Printf("  world=%s season=%d state=%s revision=%d\n", st.WorldID, st.SeasonNumber, st.LifecycleState, st.WorldRevision)
		}
	}

	worlds, err := worldDirs(*dataDir, *worldID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list worlds:", err)
		os.Exit(1)
	}
	if len(worlds) == 0 {
		if *snapPath != "" {
			return
		}
		fmt.Fprintln(os.Stderr, "no worlds found in", filepath.Join(*dataDir, "worlds"))
		os.Exit(1)
	}

	v := newVerifier()
	enc := json.NewEncoder(os.Stdout)
	for _, id := range worlds {
		dir := filepath.Join(*dataDir, "worlds", id, "events")
		err := persistlog.ReadDir(dir, func(rec persistlog.Record) error {
			if err := v.check(rec); err != nil {
				return err
			}
			if *key != "" && rec.Event.ContentKey != *key {
				return nil
			}
			if *asJSON {
				return enc.Encode(rec)
			}
			fmt.Printf("%s %s %s season=%s\n", rec.ObservedAt, rec.WorldID, rec.Event.ContentKey, rec.Event.Tokens["season_number"])
			return nil
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
	}
	fmt.Fprintf(os.Stderr, "replay ok: worlds=%d records=%d lifecycle=%d\n", len(v.worlds), v.records, v.lifecycle)
}

func worldDirs(dataDir, only string) ([]string, error) {
	if only != "" {
		return []string{only}, nil
	}
	ents, err := os.ReadDir(filepath.Join(dataDir, "worlds"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"realmclock.ai/internal/persistence/archive"
	"realmclock.ai/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		var err error
		switch os.Args[1] {
		case "state":
			err = stateCmd(os.Stdout, os.Args[2:])
		case "advance":
			err = advanceCmd(os.Stdout, os.Args[2:])
		case "archives":
			err = archivesCmd(os.Stdout, os.Args[2:])
		case "snapshot":
			err = snapshotCmd(os.Stdout, os.Args[2:])
		default:
			err = listCmd(os.Stdout, os.Args[1:])
		}
		exit(err)
		return
	}
	exit(listCmd(os.Stdout, nil))
}

func exit(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	if _, ok := err.(usageError); ok {
		os.Exit(2)
	}
	os.Exit(1)
}

type usageError string

func (e usageError) Error() string { return string(e) }

// listCmd prints the worlds that have data on disk.
func listCmd(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("admin", flag.ContinueOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	entries, err := os.ReadDir(filepath.Join(*dataDir, "worlds"))
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			fmt.Fprintln(w, e.Name())
		}
	}
	return nil
}

func stateCmd(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("state", flag.ContinueOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	worldID := fs.String("world", "", "world id (optional; default lists every world)")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	path := "/v1/worlds"
	if id := strings.TrimSpace(*worldID); id != "" {
		path += "/" + id
	}
	return call(w, http.MethodGet, endpoint(*baseURL, path), nil)
}

// advanceCmd asks a running server to advance one world. The mutating routes only answer on
// loopback, so this is meant to run on the server host.
func advanceCmd(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("advance", flag.ContinueOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	worldID := fs.String("world", "", "world id")
	at := fs.String("at", "", "observed_at as RFC3339 (optional; default server clock)")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	id := strings.TrimSpace(*worldID)
	if id == "" {
		return usageError("missing -world")
	}
	body := map[string]any{}
	if s := strings.TrimSpace(*at); s != "" {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return usageError(fmt.Sprintf("bad -at: %v", err))
		}
		body["observed_at"] = ts.UTC()
	}
	b, _ := json.Marshal(body)
	return call(w, http.MethodPost, endpoint(*baseURL, "/v1/worlds/"+id+"/advance"), b)
}

// archivesCmd prints the season summaries written under <data>/worlds/<id>/archives.
func archivesCmd(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("archives", flag.ContinueOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if strings.TrimSpace(*worldID) == "" {
		return usageError("missing -world")
	}
	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	seasons, err := archivedSeasons(worldDir)
	if err != nil {
		return err
	}
	for _, n := range seasons {
		meta, err := archive.ReadSeasonSummary(worldDir, n)
		if err != nil {
			return fmt.Errorf("season %d: %w", n, err)
		}
		fmt.Fprintf(w, "%s archived_at=%s players=%d settlements=%d marches=%d snapshot=%s\n",
			meta.ArchiveID, meta.ArchivedAt.UTC().Format(time.RFC3339),
			meta.JoinablePlayerCount, meta.ActiveSettlementCount, meta.ActiveMarchCount, orDash(meta.Snapshot))
	}
	return nil
}

func snapshotCmd(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("snapshot", flag.ContinueOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	path := fs.String("path", "", "snapshot path (optional; default latest under <data>/snapshots)")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	p := strings.TrimSpace(*path)
	if p == "" {
		p = snapshot.Latest(filepath.Join(*dataDir, "snapshots"))
		if p == "" {
			return fmt.Errorf("no snapshots under %s", filepath.Join(*dataDir, "snapshots"))
		}
	}
	snap, err := snapshot.ReadSnapshot(p)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	printJSON(w, struct {
		Path   string          `json:"path"`
		Header snapshot.Header `json:"header"`
		Worlds any             `json:"worlds"`
	}{Path: p, Header: snap.Header, Worlds: snap.Lifecycles})
	return nil
}

// archivedSeasons lists the season numbers that have an archive dir, ascending.
func archivedSeasons(worldDir string) ([]int, error) {
	ents, err := os.ReadDir(filepath.Join(worldDir, "archives"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []int
	for _, e := range ents {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "season_") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(e.Name(), "season_"))
		if err != nil || n <= 0 {
			continue
		}
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

func endpoint(baseURL, path string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
}

func call(w io.Writer, method, url string, body []byte) error {
	var r io.Reader
	if body != nil {
		r = strings.NewReader(string(body))
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	cl := &http.Client{Timeout: 10 * time.Second}
	resp, err := cl.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Fprintln(w, strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s %s: status %d", method, url, resp.StatusCode)
	}
	return nil
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

package main

import (
	"flag"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	backendMemory = "memory"
	backendSQLite = "sqlite"
)

type serverConfig struct {
	Addr          string
	ConfigDir     string
	WorldsPath    string
	TuningPath    string
	DataDir       string
	StoreBackend  string
	PollEvery     time.Duration
	SnapshotEvery time.Duration
	LoadLatest    bool
	EnablePprof   bool

	Mirror mirrorConfig
}

// mirrorConfig enables the R2 archive mirror when endpoint and bucket are set. It is env only,
// so secrets never show up in the process args.
type mirrorConfig struct {
	Endpoint        string `env:"RC_R2_ENDPOINT"`
	Bucket          string `env:"RC_R2_BUCKET"`
	AccessKeyID     string `env:"RC_R2_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"RC_R2_SECRET_ACCESS_KEY"`
	Prefix          string `env:"RC_R2_PREFIX"`
	Workers         int    `env:"RC_R2_WORKERS" envDefault:"2"`
}

func (m mirrorConfig) enabled() bool {
	return strings.TrimSpace(m.Endpoint) != "" && strings.TrimSpace(m.Bucket) != ""
}

type envConfig struct {
	StoreBackend string        `env:"RC_STORE_BACKEND" envDefault:"memory"`
	PollEvery    time.Duration `env:"RC_POLL_EVERY" envDefault:"5s"`
	DataDir      string        `env:"RC_DATA_DIR" envDefault:"./data"`
	EnablePprof  bool          `env:"RC_ENABLE_PPROF_HTTP"`
}

// parseConfig seeds flag defaults from the environment, so an explicit flag wins over env
// and env wins over the built-in default.
func parseConfig(fs *flag.FlagSet, args []string) (serverConfig, error) {
	var e envConfig
	if err := env.Parse(&e); err != nil {
		return serverConfig{}, fmt.Errorf("parse env: %w", err)
	}

	var cfg serverConfig
	if err := env.Parse(&cfg.Mirror); err != nil {
		return serverConfig{}, fmt.Errorf("parse env: %w", err)
	}
	fs.StringVar(&cfg.Addr, "addr", ":8080", "http listen address")
	fs.StringVar(&cfg.ConfigDir, "configs", "./configs", "config directory")
	fs.StringVar(&cfg.WorldsPath, "worlds", "", "path to worlds.yaml (default: <configs>/worlds.yaml)")
	fs.StringVar(&cfg.TuningPath, "tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
	fs.StringVar(&cfg.DataDir, "data", e.DataDir, "runtime data directory (or set RC_DATA_DIR)")
	fs.StringVar(&cfg.StoreBackend, "store", e.StoreBackend, "state backend: memory|sqlite (or set RC_STORE_BACKEND)")
	fs.DurationVar(&cfg.PollEvery, "poll_every", e.PollEvery, "lifecycle poll interval (or set RC_POLL_EVERY)")
	fs.DurationVar(&cfg.SnapshotEvery, "snapshot_every", time.Minute, "memory backend snapshot interval (0 disables periodic snapshots)")
	fs.BoolVar(&cfg.LoadLatest, "load_latest_snapshot", true, "memory backend: resume from the latest snapshot in the data dir")
	fs.BoolVar(&cfg.EnablePprof, "pprof", e.EnablePprof, "serve /debug/pprof (or set RC_ENABLE_PPROF_HTTP)")
	if err := fs.Parse(args); err != nil {
		return serverConfig{}, err
	}

	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	switch cfg.StoreBackend {
	case backendMemory, backendSQLite:
	default:
		return serverConfig{}, fmt.Errorf("unknown store backend %q (want memory or sqlite)", cfg.StoreBackend)
	}
	if cfg.PollEvery <= 0 {
		return serverConfig{}, fmt.Errorf("poll interval must be > 0, got %s", cfg.PollEvery)
	}
	if strings.TrimSpace(cfg.WorldsPath) == "" {
		cfg.WorldsPath = filepath.Join(cfg.ConfigDir, "worlds.yaml")
	}
	if strings.TrimSpace(cfg.TuningPath) == "" {
		cfg.TuningPath = filepath.Join(cfg.ConfigDir, "tuning.yaml")
	}
	return cfg, nil
}

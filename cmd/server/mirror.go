package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"realmclock.ai/internal/persistence/r2s3"
)

// openMirror returns nil when no bucket is configured; a nil *r2s3.Mirror ignores Enqueue.
func openMirror(cfg serverConfig) (*r2s3.Mirror, error) {
	if !cfg.Mirror.enabled() {
		return nil, nil
	}
	client, err := r2s3.New(r2s3.Credentials{
		Endpoint:        cfg.Mirror.Endpoint,
		Bucket:          cfg.Mirror.Bucket,
		AccessKeyID:     cfg.Mirror.AccessKeyID,
		SecretAccessKey: cfg.Mirror.SecretAccessKey,
	})
	if err != nil {
		return nil, err
	}
	logger := log.New(os.Stdout, "[r2] ", log.LstdFlags|log.Lmicroseconds)
	return r2s3.NewMirror(client, cfg.DataDir, r2s3.MirrorOptions{
		Prefix:  cfg.Mirror.Prefix,
		Workers: cfg.Mirror.Workers,
	}, logger), nil
}

// enqueueSeason mirrors summary.json and the snapshot copied beside it, if any.
func enqueueSeason(m *r2s3.Mirror, seasonDir, snapshotName string) {
	if m == nil {
		return
	}
	m.Enqueue(filepath.Join(seasonDir, "summary.json"))
	if snapshotName != "" {
		m.Enqueue(filepath.Join(seasonDir, snapshotName))
	}
}

func writeMirrorMetrics(w io.Writer, m *r2s3.Mirror) {
	if m == nil {
		return
	}
	st := m.Stats()
	fmt.Fprintf(w, "# HELP realmclock_r2_mirror_queue Archive mirror queue depth and capacity.\n")
	fmt.Fprintf(w, "# TYPE realmclock_r2_mirror_queue gauge\n")
	fmt.Fprintf(w, "realmclock_r2_mirror_queue{kind=%q} %d\n", "depth", st.QueueDepth)
	fmt.Fprintf(w, "realmclock_r2_mirror_queue{kind=%q} %d\n", "capacity", st.QueueCapacity)
	fmt.Fprintf(w, "# HELP realmclock_r2_mirror_files_total Archive mirror files by outcome.\n")
	fmt.Fprintf(w, "# TYPE realmclock_r2_mirror_files_total counter\n")
	fmt.Fprintf(w, "realmclock_r2_mirror_files_total{outcome=%q} %d\n", "enqueued", st.Enqueued)
	fmt.Fprintf(w, "realmclock_r2_mirror_files_total{outcome=%q} %d\n", "dropped", st.Dropped)
	fmt.Fprintf(w, "realmclock_r2_mirror_files_total{outcome=%q} %d\n", "uploaded", st.Uploaded)
	fmt.Fprintf(w, "realmclock_r2_mirror_files_total{outcome=%q} %d\n", "failed", st.Failed)
	if !st.LastSuccess.IsZero() {
		fmt.Fprintf(w, "# HELP realmclock_r2_mirror_last_success_unix Unix time of the last upload.\n")
		fmt.Fprintf(w, "# TYPE realmclock_r2_mirror_last_success_unix gauge\n")
		fmt.Fprintf(w, "realmclock_r2_mirror_last_success_unix %d\n", st.LastSuccess.Unix())
	}
}

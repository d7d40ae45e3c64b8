package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"realmclock.ai/internal/persistence/r2s3"
	"realmclock.ai/internal/protocol"
	"realmclock.ai/internal/sim/multiworld"
	"realmclock.ai/internal/sim/tuning"
	"realmclock.ai/internal/transport/ws"
)

func main() {
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := parseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	tune, err := tuning.Load(cfg.TuningPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", cfg.TuningPath)
		tune = tuning.Defaults()
	}
	worlds, err := multiworld.Load(cfg.WorldsPath)
	if err != nil {
		logger.Fatalf("load worlds config: %v", err)
	}

	be, err := openBackend(cfg, logger)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	defer be.Close()

	rt, err := multiworld.NewRuntime(worlds, be.store, tune, log.New(os.Stdout, "[multiworld] ", log.LstdFlags|log.Lmicroseconds))
	if err != nil {
		logger.Fatalf("runtime: %v", err)
	}

	mirror, err := openMirror(cfg)
	if err != nil {
		logger.Fatalf("r2 mirror: %v", err)
	}
	if mirror != nil {
		logger.Printf("r2 mirror enabled bucket=%s prefix=%s", cfg.Mirror.Bucket, cfg.Mirror.Prefix)
		defer mirror.Close()
	}

	journal := newJournalSink(cfg.DataDir)
	defer journal.Close()
	rt.AddSink(journal)
	rt.AddSink(archiveSink{dataDir: cfg.DataDir, archives: rt, snapshotPath: be.latestSnapshot, mirror: mirror})
	var events recentEvents
	if be.sqlite != nil {
		rt.AddSink(eventIndexSink{index: be.sqlite})
		events = be.sqlite
	}
	stream := ws.NewServer(logger)
	rt.AddSink(stream)

	ctx, cancel := signalContext()
	defer cancel()

	if _, err := rt.BootstrapAll(ctx); err != nil {
		logger.Fatalf("bootstrap: %v", err)
	}

	go pollLoop(ctx, cancel, rt, cfg.PollEvery, logger)
	if be.mem != nil && cfg.SnapshotEvery > 0 {
		go snapshotLoop(ctx, be, mirror, cfg.SnapshotEvery, logger)
	}

	mux := http.NewServeMux()
	a := &api{rt: rt, events: events, observers: stream.Observers, now: time.Now, log: logger, mirror: mirror}
	a.routes(mux)
	mux.HandleFunc("GET /v1/ws", stream.Handler())
	if cfg.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (RC_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s worlds=%v store=%s", cfg.Addr, worlds.WorldIDs(), cfg.StoreBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	if path, err := be.saveSnapshot(time.Now()); err != nil {
		logger.Printf("final snapshot: %v", err)
	} else if path != "" {
		logger.Printf("final snapshot=%s", path)
		mirror.Enqueue(path)
	}
}

// pollLoop drives every world with the wall clock. A fatal error stops the server: the
// stored state is corrupted and further transitions would compound it.
func pollLoop(ctx context.Context, stop context.CancelFunc, rt *multiworld.Runtime, every time.Duration, logger *log.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		if _, err := rt.AdvanceAll(ctx, time.Now()); err != nil {
			logger.Printf("advance: %v", err)
			// AdvanceAll joins per-world errors, so match any of them.
			if errors.Is(err, protocol.InvariantViolation) {
				logger.Printf("fatal lifecycle error; shutting down")
				stop()
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func snapshotLoop(ctx context.Context, be *backend, mirror *r2s3.Mirror, every time.Duration, logger *log.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			path, err := be.saveSnapshot(now)
			if err != nil {
				logger.Printf("snapshot write: %v", err)
				continue
			}
			mirror.Enqueue(path)
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

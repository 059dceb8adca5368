// getwork-collector
//
// Quota-aware job posting collector. Every few hours it enumerates
// (source × term × location) combinations, fetches postings through the
// scraper API within per-source daily and hourly budgets, deduplicates by
// fingerprint and stores the survivors in PostgreSQL. Progress is
// checkpointed per day so a restart resumes instead of repeating work.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/louiscollinsjr/getWork-run/internal/config"
	"github.com/louiscollinsjr/getWork-run/internal/db"
	"github.com/louiscollinsjr/getWork-run/internal/fetch"
	"github.com/louiscollinsjr/getWork-run/internal/quota"
	"github.com/louiscollinsjr/getWork-run/internal/rate"
	"github.com/louiscollinsjr/getWork-run/internal/retry"
	"github.com/louiscollinsjr/getWork-run/internal/scheduler"
	"github.com/louiscollinsjr/getWork-run/internal/store"
)

const version = "1.0.0"

// minSpacing is the global floor between any two outgoing requests,
// regardless of source. Per-source pacing comes from the source table.
const minSpacing = 2 * time.Second

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[collector] Config error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Println("[collector] Connecting to PostgreSQL…")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[collector] PostgreSQL: %v", err)
	}
	defer pool.Close()
	log.Println("[collector] PostgreSQL connected ✓")

	repo := store.New(pool)

	// ── Quota store ──────────────────────────────────────────────────────────
	// With Redis the budgets are shared across collector instances; without
	// it each process tracks its own usage.
	var usage quota.UsageStore = quota.NewMemoryStore()
	if cfg.RedisURL != "" {
		log.Println("[collector] Connecting to Redis…")
		rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("[collector] Redis: %v", err)
		}
		defer rdb.Close()
		usage = quota.NewRedisStore(rdb)
		log.Println("[collector] Redis connected ✓ — quota state is shared")
	} else {
		log.Println("[collector] REDIS_URL not set — quota counters are per-process")
	}

	// ── Scheduler ────────────────────────────────────────────────────────────
	tracker := quota.NewTracker(usage, cfg.Sources, cfg.BlockMin, cfg.BlockMax)
	governor := rate.NewGovernor(minSpacing)
	retrier := retry.NewController(cfg.MaxRetries, cfg.BackoffBase)
	fetcher := fetch.NewClient(cfg.ScraperAPIURL, cfg.FetchTimeout)

	sched := scheduler.New(scheduler.Params{
		Sources:              cfg.Sources,
		Terms:                cfg.SearchTerms,
		Locations:            cfg.Locations,
		BatchSize:            cfg.BatchSize,
		DedupStrict:          cfg.DedupStrict,
		MaxJobsPerRun:        cfg.MaxJobsPerRun,
		MaxJobsPerSearch:     cfg.MaxJobsPerSearch,
		HoursOld:             cfg.HoursOld,
		CheckpointFlushEvery: cfg.CheckpointFlushEvery,
		Workers:              cfg.Workers,
		FetchTimeout:         cfg.FetchTimeout,
	}, tracker, governor, retrier, fetcher, repo, repo)

	daemon := scheduler.NewDaemon(sched, cfg.CollectIntervalHours)
	if err := daemon.Start(ctx); err != nil {
		log.Fatalf("[collector] Daemon: %v", err)
	}

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[collector] v%s listening on :%s", version, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[collector] HTTP server error: %v", err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[collector] Shutting down…")
	cancel()
	daemon.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[collector] Shutdown error: %v", err)
	}
	log.Println("[collector] Stopped.")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "collector",
		"version": version,
	})
}

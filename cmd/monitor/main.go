// getwork-monitor
//
// One-shot health check for the collection pipeline. Prints the 24-hour
// metrics, raises threshold alerts (persisted idempotently per day) and,
// with -report, emits the full daily report as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/louiscollinsjr/getWork-run/internal/config"
	"github.com/louiscollinsjr/getWork-run/internal/db"
	"github.com/louiscollinsjr/getWork-run/internal/monitor"
	"github.com/louiscollinsjr/getWork-run/internal/store"
)

func main() {
	report := flag.Bool("report", false, "print the full daily report as JSON")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[monitor] Config error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[monitor] PostgreSQL: %v", err)
	}
	defer pool.Close()

	repo := store.New(pool)
	mon := monitor.New(repo, repo, cfg.Thresholds)

	if *report {
		r, err := mon.DailyReport(ctx)
		if err != nil {
			log.Fatalf("[monitor] Report failed: %v", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			log.Fatalf("[monitor] Encode report: %v", err)
		}
		return
	}

	metrics, err := mon.CollectMetrics(ctx, 24*time.Hour)
	if err != nil {
		log.Fatalf("[monitor] Metrics failed: %v", err)
	}
	alerts, err := mon.CheckHealth(ctx)
	if err != nil {
		log.Fatalf("[monitor] Health check failed: %v", err)
	}

	fmt.Printf("Collection Health Check — %s\n", time.Now().Format(time.RFC1123))
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Total postings (24h):    %d\n", metrics.TotalJobs)
	fmt.Printf("Company extraction rate: %.1f%%\n", 100*metrics.CompanyRate)
	fmt.Printf("Error rate:              %.1f%%\n", 100*metrics.ErrorRate)
	fmt.Printf("Duplicate rate:          %.1f%%\n", 100*metrics.DuplicateRate)
	fmt.Printf("Active alerts:           %d\n", len(alerts))

	if len(alerts) > 0 {
		fmt.Println("\nActive Alerts:")
		for _, a := range alerts {
			fmt.Printf("  [%s] %s\n", strings.ToUpper(string(a.Severity)), a.Message)
		}
		os.Exit(1)
	}
}

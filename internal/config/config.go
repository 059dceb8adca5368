// Package config loads and validates runtime configuration at startup.
// Precedence is env > config file > built-in defaults; Load is fail-fast —
// if a required value is missing or malformed, the process exits.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/louiscollinsjr/getWork-run/internal/model"
)

// Config holds all runtime configuration for the collection service.
type Config struct {
	Port          string
	DatabaseURL   string
	RedisURL      string // optional; empty = per-process quota counters only
	ScraperAPIURL string

	CollectIntervalHours int
	SearchTerms          []string
	Locations            []string

	BatchSize            int
	MaxRetries           int // total try budget per combination
	BackoffBase          time.Duration
	MaxJobsPerRun        int
	MaxJobsPerSearch     int
	HoursOld             int
	CheckpointFlushEvery int
	Workers              int
	DedupStrict          bool
	FetchTimeout         time.Duration
	BlockMin             time.Duration
	BlockMax             time.Duration

	Sources    []model.Source
	Thresholds model.AlertThresholds
}

// fileConfig is the optional JSON overlay (CONFIG_FILE). It sits between
// defaults and env in precedence and is the usual home of the source table.
type fileConfig struct {
	SearchTerms          []string               `json:"searchTerms"`
	Locations            []string               `json:"locations"`
	BatchSize            int                    `json:"batchSize"`
	MaxRetries           int                    `json:"maxRetries"`
	MaxJobsPerRun        int                    `json:"maxJobsPerRun"`
	MaxJobsPerSearch     int                    `json:"maxJobsPerSearch"`
	HoursOld             int                    `json:"hoursOld"`
	CheckpointFlushEvery int                    `json:"checkpointFlushEvery"`
	Workers              int                    `json:"workers"`
	Sources              []model.Source         `json:"sources"`
	Thresholds           *model.AlertThresholds `json:"alertThresholds"`
}

// Load reads the configuration and returns a validated Config.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := mergeFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := mergeEnv(cfg); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaults mirrors the quota table and thresholds the service ships with.
func defaults() *Config {
	return &Config{
		Port:                 "8083",
		ScraperAPIURL:        "http://localhost:8000",
		CollectIntervalHours: 6,
		SearchTerms: []string{
			"software engineer", "senior software engineer", "backend developer",
			"data engineer", "machine learning engineer", "devops engineer",
		},
		Locations: []string{
			"Remote", "San Francisco, CA", "New York, NY",
			"Seattle, WA", "Austin, TX", "Boston, MA",
		},
		BatchSize:            100,
		MaxRetries:           3,
		BackoffBase:          2 * time.Second,
		MaxJobsPerRun:        500,
		MaxJobsPerSearch:     50,
		HoursOld:             48,
		CheckpointFlushEvery: 5,
		Workers:              3,
		FetchTimeout:         90 * time.Second,
		BlockMin:             5 * time.Minute,
		BlockMax:             15 * time.Minute,
		Sources: []model.Source{
			{Name: "indeed", DailyLimit: 300, HourlyLimit: 50, MinDelay: 10 * time.Second, MaxDelay: 20 * time.Second, Priority: 1},
			{Name: "linkedin", DailyLimit: 100, HourlyLimit: 15, MinDelay: 30 * time.Second, MaxDelay: 60 * time.Second, Priority: 2, RequiresProxy: true},
			{Name: "glassdoor", DailyLimit: 150, HourlyLimit: 25, MinDelay: 20 * time.Second, MaxDelay: 40 * time.Second, Priority: 3},
			{Name: "google", DailyLimit: 100, HourlyLimit: 20, MinDelay: 25 * time.Second, MaxDelay: 50 * time.Second, Priority: 4},
			{Name: "zip_recruiter", DailyLimit: 200, HourlyLimit: 35, MinDelay: 15 * time.Second, MaxDelay: 30 * time.Second, Priority: 5},
		},
		Thresholds: model.AlertThresholds{
			MinDailyJobs:              100,
			MaxMissingCompanyRate:     0.3,
			MaxErrorRate:              0.1,
			MaxDuplicateRate:          0.1,
			MaxHoursWithoutCollection: 6,
		},
	}
}

func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read CONFIG_FILE %q: %w", path, err)
	}
	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse CONFIG_FILE %q: %w", path, err)
	}

	if len(fc.SearchTerms) > 0 {
		cfg.SearchTerms = fc.SearchTerms
	}
	if len(fc.Locations) > 0 {
		cfg.Locations = fc.Locations
	}
	if fc.BatchSize > 0 {
		cfg.BatchSize = fc.BatchSize
	}
	if fc.MaxRetries > 0 {
		cfg.MaxRetries = fc.MaxRetries
	}
	if fc.MaxJobsPerRun > 0 {
		cfg.MaxJobsPerRun = fc.MaxJobsPerRun
	}
	if fc.MaxJobsPerSearch > 0 {
		cfg.MaxJobsPerSearch = fc.MaxJobsPerSearch
	}
	if fc.HoursOld > 0 {
		cfg.HoursOld = fc.HoursOld
	}
	if fc.CheckpointFlushEvery > 0 {
		cfg.CheckpointFlushEvery = fc.CheckpointFlushEvery
	}
	if fc.Workers > 0 {
		cfg.Workers = fc.Workers
	}
	if len(fc.Sources) > 0 {
		cfg.Sources = fc.Sources
	}
	if fc.Thresholds != nil {
		cfg.Thresholds = *fc.Thresholds
	}
	return nil
}

func mergeEnv(cfg *Config) error {
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.RedisURL = os.Getenv("REDIS_URL")

	if v := os.Getenv("SCRAPER_API_URL"); v != "" {
		cfg.ScraperAPIURL = v
	}
	if v := os.Getenv("COLLECTOR_PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("SEARCH_TERMS"); v != "" {
		cfg.SearchTerms = splitList(v)
	}
	if v := os.Getenv("SEARCH_LOCATIONS"); v != "" {
		cfg.Locations = splitList(v)
	}
	if v := os.Getenv("DEDUP_STRICT"); v != "" {
		cfg.DedupStrict = strings.EqualFold(v, "true") || v == "1"
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"COLLECT_INTERVAL_HOURS", &cfg.CollectIntervalHours},
		{"BATCH_SIZE", &cfg.BatchSize},
		{"MAX_RETRIES", &cfg.MaxRetries},
		{"MAX_JOBS_PER_RUN", &cfg.MaxJobsPerRun},
		{"MAX_JOBS_PER_SEARCH", &cfg.MaxJobsPerSearch},
		{"HOURS_OLD_FILTER", &cfg.HoursOld},
		{"CHECKPOINT_FLUSH_EVERY", &cfg.CheckpointFlushEvery},
		{"WORKERS", &cfg.Workers},
	}
	for _, e := range ints {
		if s := os.Getenv(e.key); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil || v < 1 {
				return fmt.Errorf("%s must be a positive integer, got %q", e.key, s)
			}
			*e.dst = v
		}
	}

	if s := os.Getenv("BACKOFF_BASE_MS"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			return fmt.Errorf("BACKOFF_BASE_MS must be a positive integer, got %q", s)
		}
		cfg.BackoffBase = time.Duration(v) * time.Millisecond
	}
	if s := os.Getenv("FETCH_TIMEOUT_SECONDS"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			return fmt.Errorf("FETCH_TIMEOUT_SECONDS must be a positive integer, got %q", s)
		}
		cfg.FetchTimeout = time.Duration(v) * time.Second
	}
	return nil
}

func validate(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if len(cfg.SearchTerms) == 0 {
		return fmt.Errorf("at least one search term is required")
	}
	if len(cfg.Locations) == 0 {
		return fmt.Errorf("at least one location is required")
	}
	if len(cfg.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}
	for _, s := range cfg.Sources {
		if s.Name == "" {
			return fmt.Errorf("source with empty name")
		}
		if s.DailyLimit < 1 || s.HourlyLimit < 1 {
			return fmt.Errorf("source %q: limits must be positive", s.Name)
		}
		if s.MaxDelay < s.MinDelay {
			return fmt.Errorf("source %q: maxDelay < minDelay", s.Name)
		}
	}
	if cfg.BlockMax < cfg.BlockMin {
		return fmt.Errorf("block window: max < min")
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

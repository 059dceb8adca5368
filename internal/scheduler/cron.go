package scheduler

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

// Daemon wires the Scheduler to a cron cadence. A tick that fires while the
// previous run is still going is skipped rather than overlapped.
type Daemon struct {
	cron  *cron.Cron
	sched *Scheduler
	spec  string
}

// NewDaemon creates a Daemon that runs a collection pass every
// intervalHours hours.
func NewDaemon(sched *Scheduler, intervalHours int) *Daemon {
	return &Daemon{
		cron: cron.New(
			cron.WithLogger(cron.DefaultLogger),
			cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
		sched: sched,
		spec:  fmt.Sprintf("@every %dh", intervalHours),
	}
}

// Start registers the job and starts the cron loop. One pass runs
// immediately so a fresh deployment collects without waiting for the first
// tick.
func (d *Daemon) Start(ctx context.Context) error {
	_, err := d.cron.AddFunc(d.spec, func() {
		d.runOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	d.cron.Start()
	log.Printf("[scheduler] Cron started — spec: %s", d.spec)

	go d.runOnce(ctx)
	return nil
}

// Stop shuts down the cron loop; in-flight runs observe ctx cancellation
// separately.
func (d *Daemon) Stop() {
	d.cron.Stop()
	log.Println("[scheduler] Cron stopped")
}

func (d *Daemon) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := d.sched.Run(ctx); err != nil {
		log.Printf("[scheduler] Run ended with error: %v", err)
	}
}

// Package daemon schedules the daily pipeline run and guards the data
// directory with a liveness lock.
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/medkitt/medwatch/internal/config"
	"github.com/medkitt/medwatch/internal/types"
)

// RunFunc executes one full pipeline run.
type RunFunc func(ctx context.Context) (*types.RunResult, error)

const defaultTick = time.Minute

// Daemon runs the pipeline once at startup and then daily at the configured
// time. Runs never overlap; a due run that arrives while one is in flight is
// skipped, not queued.
type Daemon struct {
	sched    config.Scheduler
	lockPath string
	log      *log.Logger
	run      RunFunc

	sem  *semaphore.Weighted
	tick time.Duration
	now  func() time.Time
}

func New(sched config.Scheduler, lockPath string, run RunFunc, logger *log.Logger) *Daemon {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &Daemon{
		sched:    sched,
		lockPath: lockPath,
		log:      logger,
		run:      run,
		sem:      semaphore.NewWeighted(1),
		tick:     defaultTick,
		now:      time.Now,
	}
}

// Run blocks until the context is canceled. The liveness lock is held for the
// whole lifetime.
func (d *Daemon) Run(ctx context.Context) error {
	if err := AcquireLock(d.lockPath); err != nil {
		return err
	}
	defer func() {
		if err := ReleaseLock(d.lockPath); err != nil {
			d.log.Printf("releasing lock: %v", err)
		}
	}()

	hour, minute, err := parseRunTime(d.sched.DailyRunTime)
	if err != nil {
		return err
	}
	loc, err := d.location()
	if err != nil {
		return err
	}

	d.log.Printf("daemon started, daily run at %02d:%02d %s", hour, minute, loc)

	// First run happens immediately on startup.
	lastRunDay := d.runOnce(ctx, "")

	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Printf("daemon stopping")
			// Wait out an in-flight run before dropping the lock.
			if err := d.sem.Acquire(context.Background(), 1); err == nil {
				d.sem.Release(1)
			}
			return ctx.Err()
		case <-ticker.C:
			now := d.now().In(loc)
			day := now.Format("2006-01-02")
			if day == lastRunDay {
				continue
			}
			if now.Hour() > hour || (now.Hour() == hour && now.Minute() >= minute) {
				lastRunDay = d.runOnce(ctx, day)
			}
		}
	}
}

// runOnce starts a pipeline run in the background unless the previous one is
// still in flight, and returns the day stamp to record. A due run that finds
// one in flight is skipped for that day, not queued.
func (d *Daemon) runOnce(ctx context.Context, day string) string {
	if !d.sem.TryAcquire(1) {
		d.log.Printf("previous run still in progress, skipping")
		return day
	}
	go func() {
		defer d.sem.Release(1)
		result, err := d.run(ctx)
		if err != nil {
			d.log.Printf("pipeline run failed: %v", err)
			return
		}
		d.log.Printf("pipeline run finished: success=%v changes=%d applied=%d",
			result.Success, result.ChangesDetected, result.UpdatesApplied)
	}()
	return day
}

func (d *Daemon) location() (*time.Location, error) {
	tz := d.sched.Timezone
	if tz == "" {
		tz = "America/Chicago"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return loc, nil
}

func parseRunTime(s string) (hour, minute int, err error) {
	if s == "" {
		s = "02:00"
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid daily run time %q, want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid daily run time %q, want HH:MM", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid daily run time %q, want HH:MM", s)
	}
	return hour, minute, nil
}

// CronEntry renders a crontab line that runs the pipeline daily, for
// deployments that prefer cron over the daemon.
func CronEntry(sched config.Scheduler, workDir, binary string) (string, error) {
	hour, minute, err := parseRunTime(sched.DailyRunTime)
	if err != nil {
		return "", err
	}
	tz := sched.Timezone
	if tz == "" {
		tz = "America/Chicago"
	}
	return fmt.Sprintf("# medwatch - Timezone: %s\n%d %d * * * cd %s && %s run >> data/logs/cron.log 2>&1",
		tz, minute, hour, workDir, binary), nil
}

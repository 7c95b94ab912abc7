// Package jobs runs the daily background work: task generation followed by miss detection.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/streakline/internal/constants"
	"github.com/julianstephens/streakline/internal/logger"
	"github.com/julianstephens/streakline/internal/missdetect"
	"github.com/julianstephens/streakline/internal/storage"
	"github.com/julianstephens/streakline/internal/taskgen"
	"github.com/julianstephens/streakline/internal/utils"
)

type Generator interface {
	GenerateForAllActiveHabits(ctx context.Context, lookaheadDays int) (taskgen.BatchResult, error)
}

type MissDetector interface {
	Run(ctx context.Context) (missdetect.Report, error)
}

type Runner struct {
	ledger    storage.JobStore
	generator Generator
	detector  MissDetector
	runAt     time.Duration
	lookahead int
	now       func() time.Time
}

// NewRunner wires the daily jobs. runAt is the UTC time of day (HH:MM) Loop fires at;
// lookaheadDays is the window each nightly generation covers.
func NewRunner(ledger storage.JobStore, g Generator, d MissDetector, runAt string, lookaheadDays int) (*Runner, error) {
	if runAt == "" {
		runAt = constants.DefaultDailyRunAt
	}
	offset, err := utils.ParseTimeOfDay(runAt)
	if err != nil {
		return nil, fmt.Errorf("invalid daily run time %q: %w", runAt, err)
	}
	if lookaheadDays < 1 {
		lookaheadDays = constants.DefaultLookaheadDays
	}
	return &Runner{ledger: ledger, generator: g, detector: d, runAt: offset, lookahead: lookaheadDays, now: time.Now}, nil
}

// DailyReport holds the outcome of one RunDaily call. A nil result means the job was skipped.
type DailyReport struct {
	Day        time.Time
	Generation *taskgen.BatchResult
	Misses     *missdetect.Report
	Skipped    []constants.JobName
}

// RunDaily runs both jobs for the current UTC day. A job already recorded for today is
// skipped unless force is set. Both jobs run even if the first one fails.
func (r *Runner) RunDaily(ctx context.Context, force bool) (DailyReport, error) {
	report := DailyReport{Day: utils.DateOf(r.now())}

	var errs []error
	ran, err := r.run(ctx, constants.JobGenerateTasks, report.Day, force, func() error {
		res, err := r.generator.GenerateForAllActiveHabits(ctx, r.lookahead)
		if err == nil {
			report.Generation = &res
		}
		return err
	})
	if err != nil {
		errs = append(errs, err)
	} else if !ran {
		report.Skipped = append(report.Skipped, constants.JobGenerateTasks)
	}

	ran, err = r.run(ctx, constants.JobDetectMisses, report.Day, force, func() error {
		res, err := r.detector.Run(ctx)
		if err == nil {
			report.Misses = &res
		}
		return err
	})
	if err != nil {
		errs = append(errs, err)
	} else if !ran {
		report.Skipped = append(report.Skipped, constants.JobDetectMisses)
	}

	return report, errors.Join(errs...)
}

func (r *Runner) run(ctx context.Context, job constants.JobName, day time.Time, force bool, fn func() error) (bool, error) {
	first, err := r.ledger.MarkJobRun(ctx, job, day, r.now())
	if err != nil {
		return false, err
	}
	if !first && !force {
		logger.Info("Job already ran today, skipping", "job", job, "day", utils.FormatDate(day))
		return false, nil
	}

	logger.Info("Running job", "job", job, "day", utils.FormatDate(day), "forced", !first)
	if err := fn(); err != nil {
		// Let a later run retry the day.
		if clearErr := r.ledger.ClearJobRun(ctx, job, day); clearErr != nil {
			logger.Error("Failed to clear job run", "job", job, "error", clearErr)
		}
		return true, fmt.Errorf("job %s failed: %w", job, err)
	}
	return true, nil
}

// Loop calls RunDaily at the configured time every UTC day until ctx is cancelled.
func (r *Runner) Loop(ctx context.Context) error {
	for {
		next := utils.NextDailyRun(r.now(), r.runAt)
		logger.Debug("Next daily run scheduled", "at", next.Format(time.RFC3339))

		timer := time.NewTimer(next.Sub(r.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if _, err := r.RunDaily(ctx, false); err != nil {
			logger.Error("Daily run failed", "error", err)
		}
	}
}

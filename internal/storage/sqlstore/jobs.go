package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/streakline/internal/constants"
	"github.com/julianstephens/streakline/internal/utils"
)

func (r *Repo) MarkJobRun(ctx context.Context, job constants.JobName, day, startedAt time.Time) (bool, error) {
	n, err := r.exec(ctx, `
		INSERT INTO job_runs (job_name, run_day, started_at) VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING`,
		string(job), utils.FormatDate(day), formatTime(startedAt),
	)
	if err != nil {
		return false, fmt.Errorf("failed to record run of %s: %w", job, err)
	}
	return n > 0, nil
}

func (r *Repo) ClearJobRun(ctx context.Context, job constants.JobName, day time.Time) error {
	if _, err := r.exec(ctx, `DELETE FROM job_runs WHERE job_name = ? AND run_day = ?`, string(job), utils.FormatDate(day)); err != nil {
		return fmt.Errorf("failed to clear run of %s: %w", job, err)
	}
	return nil
}

package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/streakline/internal/models"
	"github.com/julianstephens/streakline/internal/storage"
	"github.com/julianstephens/streakline/internal/utils"
)

const completionColumns = `id, habit_id, owner_id, completed_at, completion_type, created_at`

type completionRow struct {
	ID          string `db:"id"`
	HabitID     string `db:"habit_id"`
	OwnerID     string `db:"owner_id"`
	CompletedAt string `db:"completed_at"`
	Type        string `db:"completion_type"`
	CreatedAt   string `db:"created_at"`
}

func (row completionRow) toModel() (models.HabitCompletion, error) {
	c := models.HabitCompletion{
		ID:      row.ID,
		HabitID: row.HabitID,
		OwnerID: row.OwnerID,
		Type:    models.CompletionType(row.Type),
	}
	var err error
	if c.CompletedAt, err = parseTime("completed_at", row.CompletedAt); err != nil {
		return models.HabitCompletion{}, err
	}
	if c.CreatedAt, err = parseTime("created_at", row.CreatedAt); err != nil {
		return models.HabitCompletion{}, err
	}
	return c, nil
}

func (r *Repo) CompletionExistsForDay(ctx context.Context, habitID string, day time.Time) (bool, error) {
	var count int
	err := r.get(ctx, &count, `SELECT count(*) FROM habit_completions WHERE habit_id = ? AND completed_day = ?`,
		habitID, utils.FormatDate(day))
	if err != nil {
		return false, fmt.Errorf("failed to check completion for %s: %w", habitID, err)
	}
	return count > 0, nil
}

func (r *Repo) ListCompletions(ctx context.Context, habitID string) ([]models.HabitCompletion, error) {
	var rows []completionRow
	err := r.selectAll(ctx, &rows, `SELECT `+completionColumns+` FROM habit_completions
		WHERE habit_id = ? ORDER BY completed_at DESC, id`, habitID)
	if err != nil {
		return nil, fmt.Errorf("failed to list completions for %s: %w", habitID, err)
	}
	out := make([]models.HabitCompletion, 0, len(rows))
	for _, row := range rows {
		c, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *Repo) GetCompletion(ctx context.Context, id, ownerID string) (models.HabitCompletion, error) {
	var row completionRow
	if err := r.get(ctx, &row, `SELECT `+completionColumns+` FROM habit_completions WHERE id = ? AND owner_id = ?`, id, ownerID); err != nil {
		return models.HabitCompletion{}, err
	}
	return row.toModel()
}

func (r *Repo) CreateCompletion(ctx context.Context, c models.HabitCompletion) error {
	n, err := r.exec(ctx, `
		INSERT INTO habit_completions (id, habit_id, owner_id, completed_at, completed_day, completion_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		c.ID, c.HabitID, c.OwnerID, formatTime(c.CompletedAt), utils.FormatDate(c.CompletedAt), string(c.Type), formatTime(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create completion: %w", err)
	}
	if n == 0 {
		return storage.ErrDuplicate
	}
	return nil
}

func (r *Repo) DeleteCompletion(ctx context.Context, id string) error {
	n, err := r.exec(ctx, `DELETE FROM habit_completions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete completion %s: %w", id, err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/streakline/internal/models"
	"github.com/julianstephens/streakline/internal/storage"
	"github.com/julianstephens/streakline/internal/utils"
)

const taskColumns = `id, owner_id, title, description, status, priority, tags, due_date, habit_id,
	completed_at, created_at, updated_at`

type taskRow struct {
	ID          string         `db:"id"`
	OwnerID     string         `db:"owner_id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	Status      string         `db:"status"`
	Priority    sql.NullString `db:"priority"`
	Tags        string         `db:"tags"`
	DueDate     sql.NullString `db:"due_date"`
	HabitID     sql.NullString `db:"habit_id"`
	CompletedAt sql.NullString `db:"completed_at"`
	CreatedAt   string         `db:"created_at"`
	UpdatedAt   string         `db:"updated_at"`
}

func (row taskRow) toModel() (models.Task, error) {
	t := models.Task{
		ID:          row.ID,
		OwnerID:     row.OwnerID,
		Title:       row.Title,
		Description: row.Description,
		Status:      models.TaskStatus(row.Status),
		Priority:    stringPtr(row.Priority),
		HabitID:     stringPtr(row.HabitID),
	}
	if row.Tags != "" {
		if err := json.Unmarshal([]byte(row.Tags), &t.Tags); err != nil {
			return models.Task{}, fmt.Errorf("failed to parse tags of task %s: %w", row.ID, err)
		}
	}
	if row.DueDate.Valid {
		d, err := utils.ParseDate(row.DueDate.String)
		if err != nil {
			return models.Task{}, fmt.Errorf("failed to parse due_date: %w", err)
		}
		t.DueDate = &d
	}
	var err error
	if t.CompletedAt, err = parseNullTime("completed_at", row.CompletedAt); err != nil {
		return models.Task{}, err
	}
	if t.CreatedAt, err = parseTime("created_at", row.CreatedAt); err != nil {
		return models.Task{}, err
	}
	if t.UpdatedAt, err = parseTime("updated_at", row.UpdatedAt); err != nil {
		return models.Task{}, err
	}
	return t, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("failed to encode tags: %w", err)
	}
	return string(data), nil
}

func dueDateColumn(d *time.Time) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: utils.FormatDate(*d), Valid: true}
}

func (r *Repo) FindHabitTask(ctx context.Context, habitID string, dueDate time.Time) (*models.Task, error) {
	var row taskRow
	err := r.get(ctx, &row, `SELECT `+taskColumns+` FROM tasks WHERE habit_id = ? AND due_date = ?`,
		habitID, utils.FormatDate(dueDate))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up task for %s: %w", habitID, err)
	}
	t, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repo) CreateTask(ctx context.Context, t models.Task) (bool, error) {
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return false, err
	}
	n, err := r.exec(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		t.ID, t.OwnerID, t.Title, t.Description, string(t.Status), nullString(t.Priority), tags,
		dueDateColumn(t.DueDate), nullString(t.HabitID), formatNullTime(t.CompletedAt),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("failed to create task: %w", err)
	}
	return n > 0, nil
}

func (r *Repo) DeletePendingTasks(ctx context.Context, habitID string, from time.Time) (int, error) {
	n, err := r.exec(ctx, `DELETE FROM tasks WHERE habit_id = ? AND status = 'pending' AND due_date >= ?`,
		habitID, utils.FormatDate(from))
	if err != nil {
		return 0, fmt.Errorf("failed to delete pending tasks for %s: %w", habitID, err)
	}
	return int(n), nil
}

func (r *Repo) GetTask(ctx context.Context, id, ownerID string) (models.Task, error) {
	var row taskRow
	if err := r.get(ctx, &row, `SELECT `+taskColumns+` FROM tasks WHERE id = ? AND owner_id = ?`, id, ownerID); err != nil {
		return models.Task{}, err
	}
	return row.toModel()
}

func (r *Repo) SaveTask(ctx context.Context, t models.Task) error {
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return err
	}
	n, err := r.exec(ctx, `
		UPDATE tasks SET
			title = ?, description = ?, status = ?, priority = ?, tags = ?, due_date = ?,
			habit_id = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		t.Title, t.Description, string(t.Status), nullString(t.Priority), tags, dueDateColumn(t.DueDate),
		nullString(t.HabitID), formatNullTime(t.CompletedAt), formatTime(t.UpdatedAt),
		t.ID, t.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("failed to save task %s: %w", t.ID, err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *Repo) ListTasks(ctx context.Context, f storage.TaskFilter) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = ?`
	args := []interface{}{f.OwnerID}

	if f.HabitID != "" {
		query += ` AND habit_id = ?`
		args = append(args, f.HabitID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.Priority.IsNull() {
		query += ` AND priority IS NULL`
	} else if p, ok := f.Priority.Get(); ok {
		query += ` AND priority = ?`
		args = append(args, p)
	}
	query += ` ORDER BY due_date IS NULL, due_date, created_at, id`

	var rows []taskRow
	if err := r.selectAll(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	tasks := make([]models.Task, 0, len(rows))
	for _, row := range rows {
		t, err := row.toModel()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

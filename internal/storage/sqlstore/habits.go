package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/julianstephens/streakline/internal/models"
	"github.com/julianstephens/streakline/internal/storage"
)

const habitColumns = `id, owner_id, identity_statement, full_description, two_minute_version, category,
	stacking_cue, motivation, anchor_habit_id, schedule_type, recurring_schedule, status,
	current_streak, last_completed_at, consecutive_misses, created_at, updated_at`

type habitRow struct {
	ID                string         `db:"id"`
	OwnerID           string         `db:"owner_id"`
	IdentityStatement string         `db:"identity_statement"`
	FullDescription   string         `db:"full_description"`
	TwoMinuteVersion  string         `db:"two_minute_version"`
	Category          string         `db:"category"`
	StackingCue       string         `db:"stacking_cue"`
	Motivation        string         `db:"motivation"`
	AnchorHabitID     sql.NullString `db:"anchor_habit_id"`
	ScheduleType      sql.NullString `db:"schedule_type"`
	Schedule          sql.NullString `db:"recurring_schedule"`
	Status            string         `db:"status"`
	CurrentStreak     int            `db:"current_streak"`
	LastCompletedAt   sql.NullString `db:"last_completed_at"`
	ConsecutiveMisses int            `db:"consecutive_misses"`
	CreatedAt         string         `db:"created_at"`
	UpdatedAt         string         `db:"updated_at"`
}

func (row habitRow) toModel() (models.Habit, error) {
	h := models.Habit{
		ID:                row.ID,
		OwnerID:           row.OwnerID,
		IdentityStatement: row.IdentityStatement,
		FullDescription:   row.FullDescription,
		TwoMinuteVersion:  row.TwoMinuteVersion,
		Category:          row.Category,
		StackingCue:       row.StackingCue,
		Motivation:        row.Motivation,
		AnchorHabitID:     stringPtr(row.AnchorHabitID),
		Status:            models.HabitStatus(row.Status),
		CurrentStreak:     row.CurrentStreak,
		ConsecutiveMisses: row.ConsecutiveMisses,
	}

	if row.Schedule.Valid && row.Schedule.String != "" {
		var s models.RecurringSchedule
		if err := json.Unmarshal([]byte(row.Schedule.String), &s); err != nil {
			return models.Habit{}, fmt.Errorf("failed to parse schedule of habit %s: %w", row.ID, err)
		}
		h.Schedule = &s
	}

	var err error
	if h.LastCompletedAt, err = parseNullTime("last_completed_at", row.LastCompletedAt); err != nil {
		return models.Habit{}, err
	}
	if h.CreatedAt, err = parseTime("created_at", row.CreatedAt); err != nil {
		return models.Habit{}, err
	}
	if h.UpdatedAt, err = parseTime("updated_at", row.UpdatedAt); err != nil {
		return models.Habit{}, err
	}
	return h, nil
}

func scheduleColumns(h models.Habit) (sql.NullString, sql.NullString, error) {
	if h.Schedule == nil {
		return sql.NullString{}, sql.NullString{}, nil
	}
	data, err := json.Marshal(h.Schedule)
	if err != nil {
		return sql.NullString{}, sql.NullString{}, fmt.Errorf("failed to encode schedule: %w", err)
	}
	return sql.NullString{String: string(h.Schedule.Type), Valid: true},
		sql.NullString{String: string(data), Valid: true}, nil
}

func (r *Repo) loadHabit(ctx context.Context, query string, args ...interface{}) (models.Habit, error) {
	var row habitRow
	if err := r.get(ctx, &row, query, args...); err != nil {
		return models.Habit{}, err
	}
	return row.toModel()
}

func (r *Repo) loadHabits(ctx context.Context, query string, args ...interface{}) ([]models.Habit, error) {
	var rows []habitRow
	if err := r.selectAll(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	habits := make([]models.Habit, 0, len(rows))
	for _, row := range rows {
		h, err := row.toModel()
		if err != nil {
			return nil, err
		}
		habits = append(habits, h)
	}
	return habits, nil
}

func (r *Repo) GetHabit(ctx context.Context, id, ownerID string) (models.Habit, error) {
	return r.loadHabit(ctx, `SELECT `+habitColumns+` FROM habits WHERE id = ? AND owner_id = ?`, id, ownerID)
}

func (r *Repo) LockHabit(ctx context.Context, id, ownerID string) (models.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE id = ? AND owner_id = ?`
	if r.inTx {
		query += r.dialect.LockClause
	}
	return r.loadHabit(ctx, query, id, ownerID)
}

func (r *Repo) ListHabits(ctx context.Context, ownerID string, includeArchived bool) ([]models.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE owner_id = ?`
	if !includeArchived {
		query += ` AND status = 'active'`
	}
	query += ` ORDER BY created_at, id`
	return r.loadHabits(ctx, query, ownerID)
}

func (r *Repo) ListActiveHabits(ctx context.Context, scheduleType models.ScheduleType) ([]models.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE status = 'active' AND recurring_schedule IS NOT NULL`
	args := []interface{}{}
	if scheduleType != "" {
		query += ` AND schedule_type = ?`
		args = append(args, string(scheduleType))
	}
	query += ` ORDER BY created_at, id`
	return r.loadHabits(ctx, query, args...)
}

func (r *Repo) ListDependents(ctx context.Context, anchorID string) ([]models.Habit, error) {
	return r.loadHabits(ctx, `SELECT `+habitColumns+` FROM habits WHERE anchor_habit_id = ? ORDER BY created_at, id`, anchorID)
}

func (r *Repo) CreateHabit(ctx context.Context, h models.Habit) error {
	schedType, sched, err := scheduleColumns(h)
	if err != nil {
		return err
	}
	_, err = r.exec(ctx, `
		INSERT INTO habits (`+habitColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.OwnerID, h.IdentityStatement, h.FullDescription, h.TwoMinuteVersion, h.Category,
		h.StackingCue, h.Motivation, nullString(h.AnchorHabitID), schedType, sched, string(h.Status),
		h.CurrentStreak, formatNullTime(h.LastCompletedAt), h.ConsecutiveMisses,
		formatTime(h.CreatedAt), formatTime(h.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create habit: %w", err)
	}
	return nil
}

func (r *Repo) SaveHabit(ctx context.Context, h models.Habit) error {
	schedType, sched, err := scheduleColumns(h)
	if err != nil {
		return err
	}
	n, err := r.exec(ctx, `
		UPDATE habits SET
			identity_statement = ?, full_description = ?, two_minute_version = ?, category = ?,
			stacking_cue = ?, motivation = ?, anchor_habit_id = ?, schedule_type = ?, recurring_schedule = ?,
			status = ?, current_streak = ?, last_completed_at = ?, consecutive_misses = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		h.IdentityStatement, h.FullDescription, h.TwoMinuteVersion, h.Category,
		h.StackingCue, h.Motivation, nullString(h.AnchorHabitID), schedType, sched,
		string(h.Status), h.CurrentStreak, formatNullTime(h.LastCompletedAt), h.ConsecutiveMisses, formatTime(h.UpdatedAt),
		h.ID, h.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("failed to save habit %s: %w", h.ID, err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *Repo) ClearAnchor(ctx context.Context, anchorID string) (int, error) {
	n, err := r.exec(ctx, `UPDATE habits SET anchor_habit_id = NULL WHERE anchor_habit_id = ?`, anchorID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear anchor %s: %w", anchorID, err)
	}
	return int(n), nil
}

func (r *Repo) DeleteHabit(ctx context.Context, id, ownerID string) error {
	n, err := r.exec(ctx, `DELETE FROM habits WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete habit %s: %w", id, err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

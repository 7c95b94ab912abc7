// Package taskgen materializes habit schedules into dated task occurrences.
// Generation is idempotent per (habit, due date): the store's unique index is the final guard
// and the existence check only avoids needless inserts.
package taskgen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/streakline/internal/constants"
	apperrors "github.com/julianstephens/streakline/internal/errors"
	"github.com/julianstephens/streakline/internal/events"
	"github.com/julianstephens/streakline/internal/logger"
	"github.com/julianstephens/streakline/internal/models"
	"github.com/julianstephens/streakline/internal/schedule"
	"github.com/julianstephens/streakline/internal/storage"
	"github.com/julianstephens/streakline/internal/utils"
	"github.com/julianstephens/streakline/internal/validation"
)

type Service struct {
	store     storage.Provider
	events    events.Emitter
	lookahead int
	now       func() time.Time
	newID     func() string
}

// NewService returns a generator configured with lookaheadDays, the default window callers
// read through Lookahead. A value below 1 falls back to DefaultLookaheadDays.
func NewService(store storage.Provider, emitter events.Emitter, lookaheadDays int) *Service {
	if emitter == nil {
		emitter = events.Nop()
	}
	if lookaheadDays < 1 {
		lookaheadDays = constants.DefaultLookaheadDays
	}
	return &Service{
		store:     store,
		events:    emitter,
		lookahead: lookaheadDays,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

func (s *Service) Lookahead() int {
	return s.lookahead
}

type Result struct {
	HabitID        string
	Generated      int
	Skipped        int
	DatesGenerated []time.Time
	DatesSkipped   []time.Time
}

func (r Result) Message() string {
	return fmt.Sprintf("Generated %d tasks, skipped %d (already exist)", r.Generated, r.Skipped)
}

type Failure struct {
	HabitID string
	Err     error
}

type BatchResult struct {
	Results        []Result
	Failures       []Failure
	TotalGenerated int
	TotalSkipped   int
}

// GenerateForHabit creates the habit's missing occurrences for
// [today, today+lookaheadDays-1].
func (s *Service) GenerateForHabit(ctx context.Context, habitID, ownerID string, lookaheadDays int) (Result, error) {
	const op = "generate tasks"
	if lookaheadDays < 1 {
		return Result{}, apperrors.InvalidSchedule(op, "lookahead must be at least 1 day, got %d", lookaheadDays)
	}
	h, err := s.store.GetHabit(ctx, habitID, ownerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Result{}, apperrors.NotFound(op, "habit %s not found", habitID)
		}
		return Result{}, err
	}
	if h.Schedule != nil && schedule.EndsBefore(*h.Schedule, utils.DateOf(s.now())) {
		return Result{HabitID: h.ID}, apperrors.InvalidSchedule(op, "schedule of habit %s ended on %s", h.ID, h.Schedule.Until)
	}
	return s.generate(ctx, h, lookaheadDays)
}

func (s *Service) generate(ctx context.Context, h models.Habit, lookaheadDays int) (Result, error) {
	const op = "generate tasks"
	res := Result{HabitID: h.ID, DatesGenerated: []time.Time{}, DatesSkipped: []time.Time{}}

	if h.Schedule == nil {
		return res, apperrors.InvalidSchedule(op, "habit %s has no schedule", h.ID)
	}
	// An ended schedule expands to nothing here; only direct requests treat it as an error.
	today := utils.DateOf(s.now())
	end := today.AddDate(0, 0, lookaheadDays-1)
	for _, due := range schedule.Expand(*h.Schedule, today, end, h.CreatedAt) {
		existing, err := s.store.FindHabitTask(ctx, h.ID, due)
		if err != nil {
			return res, err
		}
		if existing != nil {
			res.Skipped++
			res.DatesSkipped = append(res.DatesSkipped, due)
			continue
		}

		task := s.occurrence(h, due)
		if err := validation.ValidateTask(task); err != nil {
			return res, err
		}
		created, err := s.store.CreateTask(ctx, task)
		if err != nil {
			return res, err
		}
		if !created {
			// Lost a race with a concurrent generator.
			res.Skipped++
			res.DatesSkipped = append(res.DatesSkipped, due)
			continue
		}

		res.Generated++
		res.DatesGenerated = append(res.DatesGenerated, due)
		s.events.Emit(ctx, constants.EventHabitGeneratesTask, h.OwnerID, map[string]any{
			"habit_id": h.ID,
			"task_id":  task.ID,
			"due_date": utils.FormatDate(due),
		})
	}

	logger.Debug("Generated habit tasks", "habit", h.ID, "generated", res.Generated, "skipped", res.Skipped)
	return res, nil
}

func (s *Service) occurrence(h models.Habit, due time.Time) models.Task {
	now := s.now().UTC()
	habitID := h.ID
	d := utils.DateOf(due)

	var tags []string
	if h.Category != "" {
		tags = append(tags, h.Category)
	}
	tags = append(tags, constants.HabitGeneratedTag)

	return models.Task{
		ID:          s.newID(),
		OwnerID:     h.OwnerID,
		Title:       h.IdentityStatement,
		Description: describe(h),
		Status:      models.TaskPending,
		Tags:        tags,
		DueDate:     &d,
		HabitID:     &habitID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func describe(h models.Habit) string {
	var lines []string
	if h.FullDescription != "" {
		lines = append(lines, "Full: "+h.FullDescription)
	}
	if h.TwoMinuteVersion != "" {
		lines = append(lines, "2-min: "+h.TwoMinuteVersion)
	}
	return strings.Join(lines, "\n")
}

// GenerateForAllActiveHabits runs generation for every active scheduled habit. A failing
// habit is logged and recorded; the rest still run. One TASKS_GENERATED event is emitted
// per owner.
func (s *Service) GenerateForAllActiveHabits(ctx context.Context, lookaheadDays int) (BatchResult, error) {
	if lookaheadDays < 1 {
		return BatchResult{}, apperrors.InvalidSchedule("generate tasks", "lookahead must be at least 1 day, got %d", lookaheadDays)
	}
	habits, err := s.store.ListActiveHabits(ctx, "")
	if err != nil {
		return BatchResult{}, fmt.Errorf("failed to list active habits: %w", err)
	}

	var batch BatchResult
	perOwner := map[string]*ownerTotals{}
	var owners []string
	for _, h := range habits {
		tot, ok := perOwner[h.OwnerID]
		if !ok {
			tot = &ownerTotals{}
			perOwner[h.OwnerID] = tot
			owners = append(owners, h.OwnerID)
		}
		tot.habits++

		res, err := s.generate(ctx, h, lookaheadDays)
		if err != nil {
			logger.Error("Task generation failed", "habit", h.ID, "error", err)
			batch.Failures = append(batch.Failures, Failure{HabitID: h.ID, Err: err})
			tot.failed++
			continue
		}
		batch.Results = append(batch.Results, res)
		batch.TotalGenerated += res.Generated
		batch.TotalSkipped += res.Skipped
		tot.generated += res.Generated
		tot.skipped += res.Skipped
	}

	logger.Info("Task generation finished", "habits", len(habits), "generated", batch.TotalGenerated,
		"skipped", batch.TotalSkipped, "failed", len(batch.Failures))
	for _, owner := range owners {
		tot := perOwner[owner]
		s.events.Emit(ctx, constants.EventTasksGenerated, owner, map[string]any{
			"habits":          tot.habits,
			"total_generated": tot.generated,
			"total_skipped":   tot.skipped,
			"failed":          tot.failed,
		})
	}
	return batch, nil
}

type ownerTotals struct {
	habits, generated, skipped, failed int
}

// RegenerateFutureTasks drops the habit's pending occurrences from today on and generates a
// fresh week. Completed and in-progress occurrences are never removed.
func (s *Service) RegenerateFutureTasks(ctx context.Context, habitID, ownerID string) (int, Result, error) {
	const op = "regenerate tasks"
	h, err := s.store.GetHabit(ctx, habitID, ownerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, Result{}, apperrors.NotFound(op, "habit %s not found", habitID)
		}
		return 0, Result{}, err
	}

	deleted, err := s.store.DeletePendingTasks(ctx, h.ID, utils.DateOf(s.now()))
	if err != nil {
		return 0, Result{}, err
	}
	if h.Schedule == nil {
		return deleted, Result{HabitID: h.ID}, nil
	}

	res, err := s.generate(ctx, h, constants.RegenerateLookaheadDays)
	if err != nil {
		return deleted, res, err
	}
	logger.Info("Regenerated habit tasks", "habit", h.ID, "deleted", deleted, "generated", res.Generated)
	return deleted, res, nil
}

// Package tasks completes tasks and, for habit-generated ones, carries the completion over
// to the source habit on a best-effort basis.
package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/julianstephens/streakline/internal/constants"
	apperrors "github.com/julianstephens/streakline/internal/errors"
	"github.com/julianstephens/streakline/internal/events"
	"github.com/julianstephens/streakline/internal/habits"
	"github.com/julianstephens/streakline/internal/logger"
	"github.com/julianstephens/streakline/internal/models"
	"github.com/julianstephens/streakline/internal/storage"
	"github.com/julianstephens/streakline/internal/validation"
)

// HabitCompleter is the part of the habit service task completion depends on.
type HabitCompleter interface {
	Complete(ctx context.Context, id, ownerID string, ct models.CompletionType, at time.Time) (habits.CompletionResult, error)
}

type Service struct {
	store  storage.Provider
	habits HabitCompleter
	events events.Emitter
	now    func() time.Time
}

func NewService(store storage.Provider, hc HabitCompleter, emitter events.Emitter) *Service {
	if emitter == nil {
		emitter = events.Nop()
	}
	return &Service{store: store, habits: hc, events: emitter, now: time.Now}
}

// HabitSync reports what happened to the source habit of a completed task.
type HabitSync struct {
	Attempted        bool
	Synced           bool
	AlreadyCompleted bool
	CurrentStreak    int
	Error            error
}

type CompletionOutcome struct {
	Task      models.Task
	HabitSync HabitSync
}

// Complete marks a task completed. Completing an already completed task is a no-op.
// Habit sync failures are reported in the outcome and never fail the call.
func (s *Service) Complete(ctx context.Context, taskID, ownerID string) (CompletionOutcome, error) {
	task, err := s.store.GetTask(ctx, taskID, ownerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return CompletionOutcome{}, apperrors.NotFound("complete task", "task %s not found", taskID)
		}
		return CompletionOutcome{}, err
	}
	if task.Status == models.TaskCompleted {
		return CompletionOutcome{Task: task}, nil
	}

	now := s.now().UTC()
	task.Status = models.TaskCompleted
	task.CompletedAt = &now
	task.UpdatedAt = now
	if err := validation.ValidateTask(task); err != nil {
		return CompletionOutcome{}, err
	}
	if err := s.store.SaveTask(ctx, task); err != nil {
		return CompletionOutcome{}, err
	}

	s.events.Emit(ctx, constants.EventTaskCompleted, ownerID, map[string]any{
		"task_id":  task.ID,
		"habit_id": task.HabitID,
	})

	out := CompletionOutcome{Task: task}
	if task.IsHabitTask() {
		out.HabitSync = s.syncHabit(ctx, *task.HabitID, ownerID, now)
	}
	return out, nil
}

func (s *Service) syncHabit(ctx context.Context, habitID, ownerID string, at time.Time) HabitSync {
	hs := HabitSync{Attempted: true}
	res, err := s.habits.Complete(ctx, habitID, ownerID, models.CompletionFull, at)
	switch {
	case err == nil:
		hs.Synced = true
		hs.CurrentStreak = res.Habit.CurrentStreak
	case errors.Is(err, apperrors.ErrDuplicateCompletion):
		hs.Synced = true
		hs.AlreadyCompleted = true
	default:
		logger.Warn("Habit sync failed after task completion", "habit", habitID, "error", err)
		hs.Error = err
	}
	return hs
}

// List returns an owner's tasks, optionally narrowed by habit, status and priority.
func (s *Service) List(ctx context.Context, f storage.TaskFilter) ([]models.Task, error) {
	return s.store.ListTasks(ctx, f)
}

// Package habits owns the habit and completion lifecycle: creation, edits, archival,
// deletion, completions and undo. Streak fields are only written here and by the miss detector.
package habits

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
	"github.com/julianstephens/streakline/internal/storage"
	"github.com/julianstephens/streakline/internal/streak"
	"github.com/julianstephens/streakline/internal/utils"
	"github.com/julianstephens/streakline/internal/validation"
)

type Service struct {
	store  storage.Provider
	events events.Emitter
	now    func() time.Time
	newID  func() string
}

func NewService(store storage.Provider, emitter events.Emitter) *Service {
	if emitter == nil {
		emitter = events.Nop()
	}
	return &Service{
		store:  store,
		events: emitter,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// NewHabit carries the user-supplied fields of a habit being created.
type NewHabit struct {
	OwnerID           string
	IdentityStatement string
	FullDescription   string
	TwoMinuteVersion  string
	Category          string
	StackingCue       string
	Motivation        string
	AnchorHabitID     *string
	Schedule          *models.RecurringSchedule
}

func (s *Service) Create(ctx context.Context, in NewHabit) (models.Habit, error) {
	now := s.now().UTC()
	h := models.Habit{
		ID:                s.newID(),
		OwnerID:           in.OwnerID,
		IdentityStatement: strings.TrimSpace(in.IdentityStatement),
		FullDescription:   in.FullDescription,
		TwoMinuteVersion:  strings.TrimSpace(in.TwoMinuteVersion),
		Category:          in.Category,
		StackingCue:       in.StackingCue,
		Motivation:        in.Motivation,
		AnchorHabitID:     in.AnchorHabitID,
		Schedule:          in.Schedule,
		Status:            models.HabitActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := validation.ValidateHabit(h); err != nil {
		return models.Habit{}, err
	}

	if h.AnchorHabitID != nil {
		if _, err := s.store.GetHabit(ctx, *h.AnchorHabitID, h.OwnerID); err != nil {
			return models.Habit{}, notFound("create habit", "anchor habit", *h.AnchorHabitID, err)
		}
	}

	if err := s.store.CreateHabit(ctx, h); err != nil {
		return models.Habit{}, fmt.Errorf("failed to create habit: %w", err)
	}

	logger.Info("Habit created", "habit", h.ID, "owner", h.OwnerID)
	s.events.Emit(ctx, constants.EventHabitCreated, h.OwnerID, map[string]any{
		"habit_id":           h.ID,
		"identity_statement": h.IdentityStatement,
		"category":           h.Category,
		"has_schedule":       h.Schedule != nil,
	})
	return h, nil
}

func (s *Service) Get(ctx context.Context, id, ownerID string) (models.Habit, error) {
	h, err := s.store.GetHabit(ctx, id, ownerID)
	if err != nil {
		return models.Habit{}, notFound("get habit", "habit", id, err)
	}
	return h, nil
}

func (s *Service) List(ctx context.Context, ownerID string, includeArchived bool) ([]models.Habit, error) {
	return s.store.ListHabits(ctx, ownerID, includeArchived)
}

// Patch lists the fields to change. Unset fields are left alone; Null clears optional ones.
type Patch struct {
	IdentityStatement models.Optional[string]
	FullDescription   models.Optional[string]
	TwoMinuteVersion  models.Optional[string]
	Category          models.Optional[string]
	StackingCue       models.Optional[string]
	Motivation        models.Optional[string]
	AnchorHabitID     models.Optional[string]
	Schedule          models.Optional[models.RecurringSchedule]
}

type UpdateResult struct {
	Habit           models.Habit
	Updated         []string
	ScheduleChanged bool
}

func (s *Service) Update(ctx context.Context, id, ownerID string, p Patch) (UpdateResult, error) {
	var res UpdateResult
	err := s.store.InTx(ctx, func(r storage.Repository) error {
		h, err := r.LockHabit(ctx, id, ownerID)
		if err != nil {
			return notFound("update habit", "habit", id, err)
		}

		applyText(&res.Updated, "identity_statement", &h.IdentityStatement, p.IdentityStatement)
		applyText(&res.Updated, "full_description", &h.FullDescription, p.FullDescription)
		applyText(&res.Updated, "two_minute_version", &h.TwoMinuteVersion, p.TwoMinuteVersion)
		applyText(&res.Updated, "category", &h.Category, p.Category)
		applyText(&res.Updated, "stacking_cue", &h.StackingCue, p.StackingCue)
		applyText(&res.Updated, "motivation", &h.Motivation, p.Motivation)

		if p.AnchorHabitID.IsSet() {
			h.AnchorHabitID = p.AnchorHabitID.Ptr()
			res.Updated = append(res.Updated, "anchor_habit_id")
		}
		if p.Schedule.IsSet() {
			h.Schedule = p.Schedule.Ptr()
			res.Updated = append(res.Updated, "recurring_schedule")
			res.ScheduleChanged = true
		}

		if err := validation.ValidateHabit(h); err != nil {
			return err
		}
		if h.AnchorHabitID != nil && p.AnchorHabitID.IsSet() {
			if err := checkAnchor(ctx, r, h.ID, *h.AnchorHabitID, ownerID); err != nil {
				return err
			}
		}

		h.UpdatedAt = s.now().UTC()
		if err := r.SaveHabit(ctx, h); err != nil {
			return fmt.Errorf("failed to save habit: %w", err)
		}
		res.Habit = h
		return nil
	})
	if err != nil {
		return UpdateResult{}, err
	}

	s.events.Emit(ctx, constants.EventHabitUpdated, ownerID, map[string]any{
		"habit_id":         id,
		"updated_fields":   res.Updated,
		"schedule_changed": res.ScheduleChanged,
	})
	return res, nil
}

func applyText(updated *[]string, field string, dst *string, v models.Optional[string]) {
	if !v.IsSet() {
		return
	}
	val, _ := v.Get()
	*dst = strings.TrimSpace(val)
	*updated = append(*updated, field)
}

// checkAnchor walks the anchor chain starting at anchorID and fails if it leads back to
// habitID or runs deeper than MaxAnchorDepth.
func checkAnchor(ctx context.Context, r storage.HabitStore, habitID, anchorID, ownerID string) error {
	const op = "set anchor"
	visited := map[string]bool{habitID: true}
	current := anchorID
	for depth := 0; depth < constants.MaxAnchorDepth; depth++ {
		if visited[current] {
			return apperrors.CircularDependency(op, "anchoring %s to %s would create a cycle", habitID, anchorID)
		}
		visited[current] = true

		h, err := r.GetHabit(ctx, current, ownerID)
		if err != nil {
			return notFound(op, "anchor habit", current, err)
		}
		if h.AnchorHabitID == nil {
			return nil
		}
		current = *h.AnchorHabitID
	}
	return apperrors.CircularDependency(op, "anchor chain from %s exceeds %d habits", anchorID, constants.MaxAnchorDepth)
}

func (s *Service) Archive(ctx context.Context, id, ownerID string) (models.Habit, error) {
	return s.setStatus(ctx, id, ownerID, models.HabitArchived, constants.EventHabitArchived)
}

func (s *Service) Restore(ctx context.Context, id, ownerID string) (models.Habit, error) {
	return s.setStatus(ctx, id, ownerID, models.HabitActive, constants.EventHabitRestored)
}

func (s *Service) setStatus(ctx context.Context, id, ownerID string, status models.HabitStatus, event constants.EventType) (models.Habit, error) {
	var h models.Habit
	changed := false
	err := s.store.InTx(ctx, func(r storage.Repository) error {
		var err error
		h, err = r.LockHabit(ctx, id, ownerID)
		if err != nil {
			return notFound("set habit status", "habit", id, err)
		}
		if h.Status == status {
			return nil
		}
		h.Status = status
		h.UpdatedAt = s.now().UTC()
		changed = true
		return r.SaveHabit(ctx, h)
	})
	if err != nil {
		return models.Habit{}, err
	}
	if changed {
		s.events.Emit(ctx, event, ownerID, map[string]any{"habit_id": id})
	}
	return h, nil
}

type DeleteResult struct {
	DependentsDetached int
	TasksDeleted       int
}

// Delete removes a habit with its completions and pending generated tasks. Habits anchored
// to it block the delete unless force is set, in which case they are detached.
func (s *Service) Delete(ctx context.Context, id, ownerID string, force bool) (DeleteResult, error) {
	const op = "delete habit"
	var res DeleteResult
	err := s.store.InTx(ctx, func(r storage.Repository) error {
		if _, err := r.LockHabit(ctx, id, ownerID); err != nil {
			return notFound(op, "habit", id, err)
		}

		dependents, err := r.ListDependents(ctx, id)
		if err != nil {
			return err
		}
		if len(dependents) > 0 && !force {
			names := make([]string, 0, len(dependents))
			for _, d := range dependents {
				names = append(names, fmt.Sprintf("%s (%s)", d.IdentityStatement, d.ID))
			}
			return apperrors.DependencyConflict(op, "%d habit(s) anchor to %s: %s", len(dependents), id, strings.Join(names, ", "))
		}

		if res.DependentsDetached, err = r.ClearAnchor(ctx, id); err != nil {
			return err
		}
		if res.TasksDeleted, err = r.DeletePendingTasks(ctx, id, time.Time{}); err != nil {
			return err
		}
		return r.DeleteHabit(ctx, id, ownerID)
	})
	if err != nil {
		return DeleteResult{}, err
	}

	logger.Info("Habit deleted", "habit", id, "detached", res.DependentsDetached, "tasks", res.TasksDeleted)
	s.events.Emit(ctx, constants.EventHabitDeleted, ownerID, map[string]any{
		"habit_id":            id,
		"dependents_detached": res.DependentsDetached,
		"tasks_deleted":       res.TasksDeleted,
		"forced":              force,
	})
	return res, nil
}

type CompletionResult struct {
	Completion     models.HabitCompletion
	Habit          models.Habit
	PreviousStreak int
	Change         streak.Change
}

// Complete records a completion at `at` (now when zero) and advances the streak.
// A second completion on the same UTC day fails with DuplicateCompletion.
func (s *Service) Complete(ctx context.Context, id, ownerID string, ct models.CompletionType, at time.Time) (CompletionResult, error) {
	const op = "complete habit"
	now := s.now().UTC()
	if at.IsZero() {
		at = now
	}
	c := models.HabitCompletion{
		ID:          s.newID(),
		HabitID:     id,
		OwnerID:     ownerID,
		CompletedAt: at.UTC(),
		Type:        ct,
		CreatedAt:   now,
	}
	if err := validation.ValidateCompletion(c, now); err != nil {
		return CompletionResult{}, err
	}

	var res CompletionResult
	err := s.store.InTx(ctx, func(r storage.Repository) error {
		h, err := r.LockHabit(ctx, id, ownerID)
		if err != nil {
			return notFound(op, "habit", id, err)
		}
		if !h.IsActive() {
			return apperrors.Validation(op, "habit %s is archived", id)
		}

		if err := r.CreateCompletion(ctx, c); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return apperrors.DuplicateCompletion(op, "habit %s already completed on %s", id, utils.FormatDate(c.CompletedAt))
			}
			return err
		}

		res.PreviousStreak = h.CurrentStreak
		res.Change = streak.Classify(h.LastCompletedAt, c.CompletedAt)
		if h.LastCompletedAt != nil && c.CompletedAt.Before(utils.DateOf(*h.LastCompletedAt)) {
			// Backdated: rebuild from history against today, so a run that already
			// lapsed stays broken. Missed days since the last completion still count.
			all, err := r.ListCompletions(ctx, id)
			if err != nil {
				return err
			}
			h.CurrentStreak = streak.Recompute(all, now)
			res.Change = streak.Unchanged
			switch {
			case h.CurrentStreak > res.PreviousStreak:
				res.Change = streak.Increment
			case h.CurrentStreak < res.PreviousStreak:
				res.Change = streak.Reset
			}
		} else {
			h.CurrentStreak = streak.NextValue(h.CurrentStreak, h.LastCompletedAt, c.CompletedAt)
			last := c.CompletedAt
			h.LastCompletedAt = &last
			h.ConsecutiveMisses = 0
		}
		h.UpdatedAt = now

		if err := r.SaveHabit(ctx, h); err != nil {
			return err
		}
		res.Completion = c
		res.Habit = h
		return nil
	})
	if err != nil {
		return CompletionResult{}, err
	}

	logger.Debug("Habit completed", "habit", id, "streak", res.Habit.CurrentStreak, "change", res.Change)
	s.events.Emit(ctx, constants.EventHabitCompleted, ownerID, map[string]any{
		"habit_id":        id,
		"completion_id":   c.ID,
		"completion_type": string(ct),
		"completed_at":    c.CompletedAt,
		"current_streak":  res.Habit.CurrentStreak,
		"previous_streak": res.PreviousStreak,
	})
	return res, nil
}

// Undo deletes a completion and rebuilds the habit's streak from what remains.
func (s *Service) Undo(ctx context.Context, completionID, ownerID string) (models.Habit, error) {
	const op = "undo completion"
	var h models.Habit
	var c models.HabitCompletion
	err := s.store.InTx(ctx, func(r storage.Repository) error {
		var err error
		c, err = r.GetCompletion(ctx, completionID, ownerID)
		if err != nil {
			return notFound(op, "completion", completionID, err)
		}
		h, err = r.LockHabit(ctx, c.HabitID, ownerID)
		if err != nil {
			return notFound(op, "habit", c.HabitID, err)
		}
		if err := r.DeleteCompletion(ctx, completionID); err != nil {
			return notFound(op, "completion", completionID, err)
		}

		remaining, err := r.ListCompletions(ctx, h.ID)
		if err != nil {
			return err
		}
		h.CurrentStreak = streak.Recompute(remaining, s.now())
		h.LastCompletedAt = nil
		if last, ok := streak.LastCompletionDate(remaining); ok {
			h.LastCompletedAt = &last
		}
		h.UpdatedAt = s.now().UTC()
		return r.SaveHabit(ctx, h)
	})
	if err != nil {
		return models.Habit{}, err
	}

	s.events.Emit(ctx, constants.EventHabitCompletionUndone, ownerID, map[string]any{
		"habit_id":       h.ID,
		"completion_id":  completionID,
		"completed_at":   c.CompletedAt,
		"current_streak": h.CurrentStreak,
	})
	return h, nil
}

// CompletionHistory returns a habit's completions, newest first.
func (s *Service) CompletionHistory(ctx context.Context, id, ownerID string) ([]models.HabitCompletion, error) {
	if _, err := s.store.GetHabit(ctx, id, ownerID); err != nil {
		return nil, notFound("completion history", "habit", id, err)
	}
	return s.store.ListCompletions(ctx, id)
}

// notFound classifies a store miss; storage.ErrNotFound stays in the chain.
func notFound(op, what, id string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.Wrap(apperrors.KindNotFound, op, fmt.Errorf("%s %s: %w", what, id, err))
	}
	return err
}

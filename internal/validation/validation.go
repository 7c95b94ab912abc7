package validation

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/julianstephens/streakline/internal/constants"
	apperrors "github.com/julianstephens/streakline/internal/errors"
	"github.com/julianstephens/streakline/internal/models"
	"github.com/julianstephens/streakline/internal/utils"
)

// Problem is a single rule violation on one field
type Problem struct {
	Field       string
	Description string
}

// Result collects every problem found on one entity
type Result struct {
	Problems []Problem
}

func (r *Result) add(field, format string, args ...interface{}) {
	r.Problems = append(r.Problems, Problem{Field: field, Description: fmt.Sprintf(format, args...)})
}

// HasProblems returns true if any rule was violated
func (r *Result) HasProblems() bool {
	return len(r.Problems) > 0
}

// FormatReport joins all problems into one line
func (r *Result) FormatReport() string {
	parts := make([]string, 0, len(r.Problems))
	for _, p := range r.Problems {
		parts = append(parts, p.Field+": "+p.Description)
	}
	return strings.Join(parts, "; ")
}

// ValidateSchedule is the only place schedule shape rules are enforced.
// It returns an InvalidSchedule error listing every violation.
func ValidateSchedule(s models.RecurringSchedule) error {
	r := checkSchedule(s)
	if r.HasProblems() {
		return apperrors.InvalidSchedule("validate schedule", "%s", r.FormatReport())
	}
	return nil
}

func checkSchedule(s models.RecurringSchedule) *Result {
	r := &Result{}

	switch s.Type {
	case models.ScheduleDaily:
		if s.Frequency < 0 {
			r.add("frequency", "must be at least 1, got %d", s.Frequency)
		}
		if len(s.Days) > 0 {
			r.add("days", "not allowed for daily schedules")
		}
		if len(s.DaysOfMonth) > 0 || s.DayOfMonth != nil {
			r.add("days_of_month", "not allowed for daily schedules")
		}
	case models.ScheduleWeekly:
		if len(s.Days) == 0 {
			r.add("days", "weekly schedules need at least one weekday")
		}
		for _, d := range s.Days {
			if d < 0 || d > 6 {
				r.add("days", "weekday %d outside 0-6", d)
			}
		}
		if s.Frequency > 1 {
			r.add("frequency", "only daily schedules take a frequency")
		}
		if len(s.DaysOfMonth) > 0 || s.DayOfMonth != nil {
			r.add("days_of_month", "not allowed for weekly schedules")
		}
	case models.ScheduleMonthly:
		days := s.TargetDaysOfMonth()
		if len(days) == 0 {
			r.add("days_of_month", "monthly schedules need at least one day of month")
		}
		for _, d := range days {
			if d < 1 || d > 31 {
				r.add("days_of_month", "day %d outside 1-31", d)
			}
		}
		if s.Frequency > 1 {
			r.add("frequency", "only daily schedules take a frequency")
		}
		if len(s.Days) > 0 {
			r.add("days", "not allowed for monthly schedules")
		}
	default:
		r.add("type", "unknown schedule type %q", s.Type)
	}

	if s.Until != "" {
		if _, err := utils.ParseDate(s.Until); err != nil {
			r.add("until", "must be YYYY-MM-DD, got %q", s.Until)
		}
	}

	return r
}

// ValidateHabit checks a habit before it is written, on every path that creates or edits one.
// Schedule problems surface as InvalidSchedule; everything else as a validation error.
func ValidateHabit(h models.Habit) error {
	if h.Schedule != nil {
		if err := ValidateSchedule(*h.Schedule); err != nil {
			return err
		}
	}

	r := &Result{}

	if strings.TrimSpace(h.OwnerID) == "" {
		r.add("owner_id", "is required")
	}
	checkText(r, "identity_statement", h.IdentityStatement, constants.MaxIdentityStatementLen, true)
	checkText(r, "two_minute_version", h.TwoMinuteVersion, constants.MaxTwoMinuteVersionLen, true)
	checkText(r, "full_description", h.FullDescription, constants.MaxFullDescriptionLen, false)
	checkText(r, "stacking_cue", h.StackingCue, constants.MaxStackingCueLen, false)
	checkText(r, "motivation", h.Motivation, constants.MaxMotivationLen, false)

	if !slices.Contains(constants.Categories, h.Category) {
		r.add("category", "%q is not one of %s", h.Category, strings.Join(constants.Categories, ", "))
	}
	if h.Status != models.HabitActive && h.Status != models.HabitArchived {
		r.add("status", "must be active or archived, got %q", h.Status)
	}
	if h.CurrentStreak < 0 {
		r.add("current_streak", "cannot be negative")
	}
	if h.ConsecutiveMisses < 0 {
		r.add("consecutive_misses", "cannot be negative")
	}
	if h.AnchorHabitID != nil && h.ID != "" && *h.AnchorHabitID == h.ID {
		r.add("anchor_habit_id", "a habit cannot anchor to itself")
	}

	if r.HasProblems() {
		return apperrors.Validation("validate habit", "%s", r.FormatReport())
	}
	return nil
}

// ValidateCompletion rejects completions with an unknown type or a timestamp after now.
func ValidateCompletion(c models.HabitCompletion, now time.Time) error {
	r := &Result{}
	if c.HabitID == "" {
		r.add("habit_id", "is required")
	}
	if c.Type != models.CompletionFull && c.Type != models.CompletionTwoMinute {
		r.add("completion_type", "must be full or two_minute, got %q", c.Type)
	}
	if c.CompletedAt.IsZero() {
		r.add("completed_at", "is required")
	} else if c.CompletedAt.After(now) {
		r.add("completed_at", "cannot be in the future")
	}
	if r.HasProblems() {
		return apperrors.Validation("validate completion", "%s", r.FormatReport())
	}
	return nil
}

// ValidateTask checks the fields every stored task must carry.
func ValidateTask(t models.Task) error {
	r := &Result{}
	if strings.TrimSpace(t.Title) == "" {
		r.add("title", "is required")
	}
	if strings.TrimSpace(t.OwnerID) == "" {
		r.add("owner_id", "is required")
	}
	switch t.Status {
	case models.TaskPending, models.TaskInProgress, models.TaskCompleted:
	default:
		r.add("status", "unknown task status %q", t.Status)
	}
	if t.IsHabitTask() && t.DueDate == nil {
		r.add("due_date", "habit tasks need a due date")
	}
	if r.HasProblems() {
		return apperrors.Validation("validate task", "%s", r.FormatReport())
	}
	return nil
}

func checkText(r *Result, field, value string, max int, required bool) {
	if required && strings.TrimSpace(value) == "" {
		r.add(field, "is required")
		return
	}
	if n := utf8.RuneCountInString(value); n > max {
		r.add(field, "is %d characters, limit is %d", n, max)
	}
}

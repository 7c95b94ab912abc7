// Package missdetect runs the daily "never miss twice" check over active daily habits.
//
// A habit that was not completed yesterday gains a miss. The first miss only nudges;
// a second consecutive miss resets the streak to zero. Any completion clears the count.
package missdetect

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/streakline/internal/constants"
	"github.com/julianstephens/streakline/internal/events"
	"github.com/julianstephens/streakline/internal/logger"
	"github.com/julianstephens/streakline/internal/models"
	"github.com/julianstephens/streakline/internal/storage"
	"github.com/julianstephens/streakline/internal/utils"
)

type Outcome int

const (
	OnTrack Outcome = iota
	Recovered
	FirstMiss
	StreakReset
)

func (o Outcome) String() string {
	switch o {
	case OnTrack:
		return "on-track"
	case Recovered:
		return "recovered"
	case FirstMiss:
		return "first-miss"
	case StreakReset:
		return "streak-reset"
	default:
		return "unknown"
	}
}

// State is the part of a habit the detector reads and writes.
type State struct {
	ConsecutiveMisses int
	CurrentStreak     int
}

// Transition applies one day of the state machine.
func Transition(s State, completedYesterday bool) (State, Outcome) {
	if completedYesterday {
		if s.ConsecutiveMisses > 0 {
			s.ConsecutiveMisses = 0
			return s, Recovered
		}
		return s, OnTrack
	}

	s.ConsecutiveMisses++
	if s.ConsecutiveMisses >= constants.MissesBeforeReset {
		s.CurrentStreak = 0
		return s, StreakReset
	}
	return s, FirstMiss
}

type HabitFailure struct {
	HabitID string
	Err     error
}

type Report struct {
	Checked       int
	Outcomes      map[Outcome]int
	Notifications []models.Notification
	Failures      []HabitFailure
}

type Detector struct {
	store  storage.Provider
	events events.Emitter
	now    func() time.Time
}

func NewDetector(store storage.Provider, emitter events.Emitter) *Detector {
	if emitter == nil {
		emitter = events.Nop()
	}
	return &Detector{store: store, events: emitter, now: time.Now}
}

// Run checks every active daily habit against yesterday's UTC day. Each habit is updated in
// its own transaction; a failing habit is logged and reported and the run moves on.
func (d *Detector) Run(ctx context.Context) (Report, error) {
	habits, err := d.store.ListActiveHabits(ctx, models.ScheduleDaily)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list daily habits: %w", err)
	}

	now := d.now().UTC()
	yesterday := utils.DateOf(now).AddDate(0, 0, -1)
	report := Report{Outcomes: map[Outcome]int{}}

	for _, h := range habits {
		n, outcome, err := d.check(ctx, h.ID, h.OwnerID, yesterday, now)
		if err != nil {
			logger.Error("Miss detection failed", "habit", h.ID, "error", err)
			report.Failures = append(report.Failures, HabitFailure{HabitID: h.ID, Err: err})
			continue
		}
		report.Checked++
		report.Outcomes[outcome]++
		if n != nil {
			report.Notifications = append(report.Notifications, *n)
		}
	}

	logger.Info("Miss detection finished", "checked", report.Checked,
		"first_misses", report.Outcomes[FirstMiss], "resets", report.Outcomes[StreakReset],
		"failed", len(report.Failures))
	return report, nil
}

func (d *Detector) check(ctx context.Context, id, ownerID string, yesterday, now time.Time) (*models.Notification, Outcome, error) {
	var (
		outcome        Outcome
		habit          models.Habit
		previousStreak int
	)
	err := d.store.InTx(ctx, func(r storage.Repository) error {
		h, err := r.LockHabit(ctx, id, ownerID)
		if err != nil {
			return err
		}
		// Re-check under the lock; the habit may have changed since it was listed.
		if !h.IsActive() || h.Schedule == nil || h.Schedule.Type != models.ScheduleDaily {
			outcome = OnTrack
			return nil
		}

		done, err := r.CompletionExistsForDay(ctx, h.ID, yesterday)
		if err != nil {
			return err
		}

		previousStreak = h.CurrentStreak
		next, o := Transition(State{ConsecutiveMisses: h.ConsecutiveMisses, CurrentStreak: h.CurrentStreak}, done)
		outcome = o
		if o == OnTrack {
			return nil
		}

		h.ConsecutiveMisses = next.ConsecutiveMisses
		h.CurrentStreak = next.CurrentStreak
		h.UpdatedAt = now
		habit = h
		return r.SaveHabit(ctx, h)
	})
	if err != nil {
		return nil, OnTrack, err
	}

	switch outcome {
	case FirstMiss:
		n := models.NewMissNotification(habit, now)
		d.events.Emit(ctx, constants.EventHabitMissDetected, ownerID, notificationPayload(n))
		return &n, outcome, nil
	case StreakReset:
		n := models.NewStreakResetNotification(habit, previousStreak, now)
		d.events.Emit(ctx, constants.EventHabitStreakReset, ownerID, notificationPayload(n))
		return &n, outcome, nil
	case Recovered:
		logger.Debug("Habit recovered", "habit", id)
	}
	return nil, outcome, nil
}

func notificationPayload(n models.Notification) map[string]any {
	p := map[string]any{
		"habit_id":           n.HabitID,
		"habit_name":         n.HabitName,
		"consecutive_misses": n.ConsecutiveMisses,
		"notification_type":  string(n.Type),
		"message":            n.Message,
		"icon":               n.Icon,
	}
	if n.Type == models.NotificationStreakReset {
		p["previous_streak"] = n.PreviousStreak
	}
	return p
}

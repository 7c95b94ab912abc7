// Package streak computes consecutive-day streaks from completion timestamps.
// All comparisons use UTC calendar days.
package streak

import (
	"slices"
	"time"

	"github.com/julianstephens/streakline/internal/models"
	"github.com/julianstephens/streakline/internal/utils"
)

// Change describes how a new completion moves the streak
type Change int

const (
	Start Change = iota
	Unchanged
	Increment
	Reset
)

func (c Change) String() string {
	switch c {
	case Start:
		return "start"
	case Unchanged:
		return "unchanged"
	case Increment:
		return "increment"
	case Reset:
		return "reset"
	default:
		return "unknown"
	}
}

// Classify compares the day of a new completion with the previous one.
// Any gap other than 0 or 1 day resets.
func Classify(lastCompletedAt *time.Time, at time.Time) Change {
	if lastCompletedAt == nil {
		return Start
	}
	switch utils.DaysBetween(*lastCompletedAt, at) {
	case 0:
		return Unchanged
	case 1:
		return Increment
	default:
		return Reset
	}
}

// NextValue returns the streak after a completion at `at`.
func NextValue(current int, lastCompletedAt *time.Time, at time.Time) int {
	switch Classify(lastCompletedAt, at) {
	case Unchanged:
		return current
	case Increment:
		return current + 1
	default:
		return 1
	}
}

// Recompute rebuilds the streak from the full history. The streak is 0 when the latest
// completion is older than yesterday; otherwise it counts consecutive days back from it.
func Recompute(completions []models.HabitCompletion, today time.Time) int {
	days := distinctDaysDesc(completions)
	if len(days) == 0 {
		return 0
	}
	if utils.DaysBetween(days[0], today) > 1 {
		return 0
	}

	count := 1
	for i := 1; i < len(days); i++ {
		if utils.DaysBetween(days[i], days[i-1]) != 1 {
			break
		}
		count++
	}
	return count
}

// LastCompletionDate returns the latest completion timestamp in the history.
func LastCompletionDate(completions []models.HabitCompletion) (time.Time, bool) {
	if len(completions) == 0 {
		return time.Time{}, false
	}
	latest := completions[0].CompletedAt
	for _, c := range completions[1:] {
		if c.CompletedAt.After(latest) {
			latest = c.CompletedAt
		}
	}
	return latest, true
}

// IsActive reports whether the most recent completion was today or yesterday.
func IsActive(completions []models.HabitCompletion, today time.Time) bool {
	last, ok := LastCompletionDate(completions)
	if !ok {
		return false
	}
	gap := utils.DaysBetween(last, today)
	return gap == 0 || gap == 1
}

func distinctDaysDesc(completions []models.HabitCompletion) []time.Time {
	days := make([]time.Time, 0, len(completions))
	for _, c := range completions {
		days = append(days, utils.DateOf(c.CompletedAt))
	}
	slices.SortFunc(days, func(a, b time.Time) int { return b.Compare(a) })
	return slices.CompactFunc(days, time.Time.Equal)
}

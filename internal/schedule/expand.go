// Package schedule turns a habit's recurring schedule into concrete UTC calendar days.
package schedule

import (
	"slices"
	"time"

	"github.com/julianstephens/streakline/internal/models"
	"github.com/julianstephens/streakline/internal/utils"
)

// Expand returns the sorted UTC calendar days in [windowStart, windowEnd] on which s is due
// for a habit created at habitCreatedAt. All inputs are reduced to their UTC day first.
//
// Malformed or unsatisfiable input yields an empty result rather than an error.
func Expand(s models.RecurringSchedule, windowStart, windowEnd, habitCreatedAt time.Time) []time.Time {
	start, end, ok := clampWindow(s, windowStart, windowEnd, habitCreatedAt)
	if !ok {
		return []time.Time{}
	}

	if s.Type == models.ScheduleDaily {
		return expandDaily(s, start, end, utils.DateOf(habitCreatedAt))
	}

	dates := []time.Time{}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if matchesCalendar(s, d) {
			dates = append(dates, d)
		}
	}
	return dates
}

// Occurs reports whether s is due on day's UTC calendar day.
func Occurs(s models.RecurringSchedule, day, habitCreatedAt time.Time) bool {
	return len(Expand(s, day, day, habitCreatedAt)) == 1
}

// EndsBefore reports whether s has an until date strictly before day.
// An unparsable until counts as ended.
func EndsBefore(s models.RecurringSchedule, day time.Time) bool {
	if s.Until == "" {
		return false
	}
	until, err := utils.ParseDate(s.Until)
	if err != nil {
		return true
	}
	return until.Before(utils.DateOf(day))
}

func clampWindow(s models.RecurringSchedule, windowStart, windowEnd, habitCreatedAt time.Time) (time.Time, time.Time, bool) {
	start := utils.DateOf(windowStart)
	if created := utils.DateOf(habitCreatedAt); created.After(start) {
		start = created
	}

	end := utils.DateOf(windowEnd)
	if s.Until != "" {
		until, err := utils.ParseDate(s.Until)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		if until.Before(end) {
			end = until
		}
	}

	if start.After(end) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// expandDaily steps by the frequency from the first on-cadence day, with the cadence anchored to creation.
func expandDaily(s models.RecurringSchedule, start, end, created time.Time) []time.Time {
	freq := s.EffectiveFrequency()

	first := start
	if rem := utils.DaysBetween(created, start) % freq; rem != 0 {
		first = start.AddDate(0, 0, freq-rem)
	}

	dates := []time.Time{}
	for d := first; !d.After(end); d = d.AddDate(0, 0, freq) {
		dates = append(dates, d)
	}
	return dates
}

// matchesCalendar handles the weekday and day-of-month rules. Unknown types never match.
func matchesCalendar(s models.RecurringSchedule, d time.Time) bool {
	switch s.Type {
	case models.ScheduleWeekly:
		// time.Weekday already numbers Sunday as 0.
		return slices.Contains(s.Days, int(d.Weekday()))
	case models.ScheduleMonthly:
		// Day 31 never matches a 30-day month; there is no rollover.
		return slices.Contains(s.TargetDaysOfMonth(), d.Day())
	default:
		return false
	}
}

package utils

import (
	"time"

	"github.com/julianstephens/streakline/internal/constants"
)

// DateOf truncates t to midnight of its UTC calendar day.
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return DateOf(a).Equal(DateOf(b))
}

// DaysBetween returns the number of whole UTC calendar days from a to b.
// It is negative when b is before a.
func DaysBetween(a, b time.Time) int {
	// Unix seconds rather than time.Duration, which overflows past ~292 years.
	return int((DateOf(b).Unix() - DateOf(a).Unix()) / 86400)
}

// FormatDate renders the UTC calendar day of t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return DateOf(t).Format(constants.DateFormat)
}

// ParseDate parses a YYYY-MM-DD string into a UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(constants.DateFormat, s, time.UTC)
}

// ParseTimeOfDay parses HH:MM and returns the offset from midnight.
func ParseTimeOfDay(s string) (time.Duration, error) {
	t, err := time.Parse(constants.TimeFormat, s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// NextDailyRun returns the first instant after now that falls at offset past a UTC midnight.
func NextDailyRun(now time.Time, offset time.Duration) time.Time {
	next := DateOf(now).Add(offset)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

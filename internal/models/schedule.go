package models

type ScheduleType string

const (
	ScheduleDaily   ScheduleType = "daily"
	ScheduleWeekly  ScheduleType = "weekly"
	ScheduleMonthly ScheduleType = "monthly"
)

// RecurringSchedule describes which calendar days a habit is due on.
// Only the fields belonging to Type are meaningful.
type RecurringSchedule struct {
	Type ScheduleType `json:"type" yaml:"type"`

	// Frequency is the every-N-days interval for daily schedules. 0 means 1.
	Frequency int `json:"frequency,omitempty" yaml:"frequency,omitempty"`

	// Days are weekdays for weekly schedules, 0=Sunday through 6=Saturday.
	Days []int `json:"days,omitempty" yaml:"days,omitempty"`

	// DaysOfMonth are 1-31 for monthly schedules.
	DaysOfMonth []int `json:"days_of_month,omitempty" yaml:"days_of_month,omitempty"`

	// DayOfMonth is the legacy single-day form, used when DaysOfMonth is empty.
	DayOfMonth *int `json:"day_of_month,omitempty" yaml:"day_of_month,omitempty"`

	// Until is an optional inclusive end date (YYYY-MM-DD).
	Until string `json:"until,omitempty" yaml:"until,omitempty"`
}

// EffectiveFrequency returns the daily interval, treating anything below 1 as 1
func (s RecurringSchedule) EffectiveFrequency() int {
	if s.Frequency < 1 {
		return 1
	}
	return s.Frequency
}

// TargetDaysOfMonth returns DaysOfMonth, falling back to the legacy DayOfMonth
func (s RecurringSchedule) TargetDaysOfMonth() []int {
	if len(s.DaysOfMonth) > 0 {
		return s.DaysOfMonth
	}
	if s.DayOfMonth != nil {
		return []int{*s.DayOfMonth}
	}
	return nil
}

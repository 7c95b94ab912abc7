package schedule

import (
	"github.com/julianstephens/streakline/internal/models"
	"github.com/julianstephens/streakline/internal/validation"
)

// Daily builds a validated every-N-days schedule. until may be empty.
func Daily(frequency int, until string) (models.RecurringSchedule, error) {
	return build(models.RecurringSchedule{Type: models.ScheduleDaily, Frequency: frequency, Until: until})
}

// Weekly builds a validated schedule on the given weekdays (0=Sunday).
func Weekly(days []int, until string) (models.RecurringSchedule, error) {
	return build(models.RecurringSchedule{Type: models.ScheduleWeekly, Days: days, Until: until})
}

// Monthly builds a validated schedule on the given days of month.
func Monthly(daysOfMonth []int, until string) (models.RecurringSchedule, error) {
	return build(models.RecurringSchedule{Type: models.ScheduleMonthly, DaysOfMonth: daysOfMonth, Until: until})
}

func build(s models.RecurringSchedule) (models.RecurringSchedule, error) {
	if err := validation.ValidateSchedule(s); err != nil {
		return models.RecurringSchedule{}, err
	}
	return s, nil
}

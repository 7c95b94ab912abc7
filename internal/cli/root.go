package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/streakline/internal/habits"
	"github.com/julianstephens/streakline/internal/jobs"
	"github.com/julianstephens/streakline/internal/missdetect"
	"github.com/julianstephens/streakline/internal/models"
	"github.com/julianstephens/streakline/internal/schedule"
	"github.com/julianstephens/streakline/internal/storage"
	"github.com/julianstephens/streakline/internal/taskgen"
	"github.com/julianstephens/streakline/internal/tasks"
	"github.com/julianstephens/streakline/internal/utils"
)

type Context struct {
	Store    storage.Provider
	Habits   *habits.Service
	TaskGen  *taskgen.Service
	Tasks    *tasks.Service
	Detector *missdetect.Detector
	Jobs     *jobs.Runner

	// Owner is the owner id every command acts as.
	Owner string
	Out   io.Writer
	// Confirm asks a yes/no question. Defaults to an interactive huh prompt.
	Confirm func(title, description string) (bool, error)
}

var (
	TitleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	WarnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	MutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	LabelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("111")).Width(14)
)

func (c *Context) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

// Printf writes formatted command output.
func (c *Context) Printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out(), format, args...)
}

// Println writes one line of command output.
func (c *Context) Println(args ...interface{}) {
	fmt.Fprintln(c.out(), args...)
}

// Field prints an aligned "label value" line.
func (c *Context) Field(label string, value interface{}) {
	c.Printf("%s %v\n", LabelStyle.Render(label), value)
}

// Ask runs the configured confirmation prompt.
func (c *Context) Ask(title, description string) (bool, error) {
	if c.Confirm != nil {
		return c.Confirm(title, description)
	}
	return ConfirmPrompt(title, description)
}

// ConfirmPrompt shows an interactive yes/no prompt.
func ConfirmPrompt(title, description string) (bool, error) {
	var confirmed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes").
				Negative("No").
				Value(&confirmed),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}
	return confirmed, nil
}

// ScheduleFlags are the flags shared by commands that take a recurring schedule.
type ScheduleFlags struct {
	Schedule  string `help:"Schedule type (daily|weekly|monthly)."`
	Every     int    `help:"Interval in days for daily schedules." default:"1"`
	Days      string `help:"Comma-separated weekdays for weekly schedules (e.g. mon,wed,fri or 1,3,5)."`
	MonthDays string `name:"month-days" help:"Comma-separated days of month (1-31) for monthly schedules."`
	Until     string `help:"Last day the schedule applies (YYYY-MM-DD)."`
}

// Build returns the validated schedule, or nil when no schedule type was given.
func (f ScheduleFlags) Build() (*models.RecurringSchedule, error) {
	var (
		s   models.RecurringSchedule
		err error
	)
	switch f.Schedule {
	case "":
		return nil, nil
	case "daily":
		s, err = schedule.Daily(f.Every, f.Until)
	case "weekly":
		var days []int
		if days, err = ParseWeekdays(f.Days); err == nil {
			s, err = schedule.Weekly(days, f.Until)
		}
	case "monthly":
		var days []int
		if days, err = parseInts(f.MonthDays); err == nil {
			s, err = schedule.Monthly(days, f.Until)
		}
	default:
		return nil, fmt.Errorf("unknown schedule type %q", f.Schedule)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ParseWeekdays parses a comma-separated list of weekday names or numbers (0=Sunday).
func ParseWeekdays(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	dayMap := map[string]time.Weekday{
		"sun":       time.Sunday,
		"sunday":    time.Sunday,
		"mon":       time.Monday,
		"monday":    time.Monday,
		"tue":       time.Tuesday,
		"tuesday":   time.Tuesday,
		"wed":       time.Wednesday,
		"wednesday": time.Wednesday,
		"thu":       time.Thursday,
		"thursday":  time.Thursday,
		"fri":       time.Friday,
		"friday":    time.Friday,
		"sat":       time.Saturday,
		"saturday":  time.Saturday,
	}

	var days []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if wd, ok := dayMap[part]; ok {
			days = append(days, int(wd))
			continue
		}
		num, err := strconv.Atoi(part)
		if err != nil || num < 0 || num > 6 {
			return nil, fmt.Errorf("invalid weekday: %s", part)
		}
		days = append(days, num)
	}
	return days, nil
}

func parseInts(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid number: %s", part)
		}
		out = append(out, n)
	}
	return out, nil
}

// FormatSchedule renders a schedule for display.
func FormatSchedule(s *models.RecurringSchedule) string {
	if s == nil {
		return "none"
	}
	var out string
	switch s.Type {
	case models.ScheduleDaily:
		if n := s.EffectiveFrequency(); n > 1 {
			out = fmt.Sprintf("every %d days", n)
		} else {
			out = "daily"
		}
	case models.ScheduleWeekly:
		names := make([]string, 0, len(s.Days))
		for _, d := range s.Days {
			names = append(names, time.Weekday(d).String()[:3])
		}
		out = "weekly on " + strings.Join(names, ",")
	case models.ScheduleMonthly:
		days := s.TargetDaysOfMonth()
		parts := make([]string, 0, len(days))
		for _, d := range days {
			parts = append(parts, strconv.Itoa(d))
		}
		out = "monthly on day " + strings.Join(parts, ",")
	default:
		out = string(s.Type)
	}
	if s.Until != "" {
		out += " until " + s.Until
	}
	return out
}

// ParseDay parses an optional YYYY-MM-DD flag into an instant on that UTC day, keeping the
// current time of day. An empty value returns the zero time.
func ParseDay(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	day, err := utils.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format: %s (expected YYYY-MM-DD)", s)
	}
	return day.Add(now.UTC().Sub(utils.DateOf(now))), nil
}

func FormatDates(days []time.Time) string {
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, utils.FormatDate(d))
	}
	return strings.Join(parts, ", ")
}

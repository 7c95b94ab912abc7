package constants

import "time"

// EventType identifies a domain event published to the event sinks
type EventType string

// JobName identifies a daily background job
type JobName string

const (
	AppName            = "streakline"
	DefaultKeyringUser = "database-connection"
	DefaultConfigDir   = "~/.config/streakline"
	DefaultDBPath      = "~/.config/streakline/streakline.db"
	DefaultOwner       = "local"
	Version            = "v0.3.0"

	// DateFormat is the calendar day format used for due dates and completion days (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// TimeFormat is the time-of-day format used for the daily trigger (HH:MM)
	TimeFormat = "15:04"

	// Task generation
	DefaultLookaheadDays    = 7
	RegenerateLookaheadDays = 7
	HabitGeneratedTag       = "habit-generated"

	// Miss detection
	MissesBeforeReset = 2
	DefaultDailyRunAt = "00:01"

	// MaxAnchorDepth bounds the anchor chain walk when checking for cycles
	MaxAnchorDepth = 64

	// Event sinks
	DefaultEscalateAfter = 3
	EventsDirName        = "events"
	EventsFilePrefix     = "events-"
	EventsFileSuffix     = ".jsonl"

	// Notify constants
	NotifierLockfileName   = "streakline-notifier.lock"
	NotificationDurationMs = 5000
	NotifyTimeout          = 5 * time.Second
	TrayAppIdentifier      = "com.julianstephens.streakline"
	TrayExecutablePrefix   = "streakline-tray"

	// Field limits
	MaxIdentityStatementLen = 2000
	MaxTwoMinuteVersionLen  = 500
	MaxFullDescriptionLen   = 5000
	MaxStackingCueLen       = 500
	MaxMotivationLen        = 2000

	// Task status values
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"

	// Jobs
	JobGenerateTasks JobName = "generate_tasks"
	JobDetectMisses  JobName = "detect_misses"

	// Events
	EventHabitCreated          EventType = "HABIT_CREATED"
	EventHabitUpdated          EventType = "HABIT_UPDATED"
	EventHabitArchived         EventType = "HABIT_ARCHIVED"
	EventHabitRestored         EventType = "HABIT_RESTORED"
	EventHabitDeleted          EventType = "HABIT_DELETED"
	EventHabitCompleted        EventType = "HABIT_COMPLETED"
	EventHabitCompletionUndone EventType = "HABIT_COMPLETION_UNDONE"
	EventHabitMissDetected     EventType = "HABIT_MISS_DETECTED"
	EventHabitStreakReset      EventType = "HABIT_STREAK_RESET"
	EventHabitGeneratesTask    EventType = "HABIT_GENERATES_TASK"
	EventTaskCompleted         EventType = "TASK_COMPLETED"
	EventTasksGenerated        EventType = "TASKS_GENERATED"
)

// Categories is the closed set of habit categories
var Categories = []string{
	"Health & Fitness",
	"Productivity",
	"Mindfulness",
	"Learning",
	"Social",
	"Finance",
	"Creative",
	"Other",
}

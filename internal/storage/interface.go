package storage

import (
	"context"
	"errors"
	"time"

	"github.com/julianstephens/streakline/internal/constants"
	"github.com/julianstephens/streakline/internal/models"
)

var (
	// ErrNotFound is returned when a row does not exist or is not owned by the caller
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a uniqueness constraint rejects a write
	ErrDuplicate = errors.New("duplicate record")
)

type HabitStore interface {
	GetHabit(ctx context.Context, id, ownerID string) (models.Habit, error)
	// LockHabit loads a habit and holds a write lock on its row until the enclosing
	// transaction ends. Outside a transaction it behaves like GetHabit.
	LockHabit(ctx context.Context, id, ownerID string) (models.Habit, error)
	ListHabits(ctx context.Context, ownerID string, includeArchived bool) ([]models.Habit, error)
	// ListActiveHabits returns active habits with a schedule of the given type,
	// or with any schedule when scheduleType is empty.
	ListActiveHabits(ctx context.Context, scheduleType models.ScheduleType) ([]models.Habit, error)
	ListDependents(ctx context.Context, anchorID string) ([]models.Habit, error)
	CreateHabit(ctx context.Context, h models.Habit) error
	SaveHabit(ctx context.Context, h models.Habit) error
	// ClearAnchor detaches every habit anchored to anchorID and returns how many changed.
	ClearAnchor(ctx context.Context, anchorID string) (int, error)
	DeleteHabit(ctx context.Context, id, ownerID string) error
}

type CompletionStore interface {
	CompletionExistsForDay(ctx context.Context, habitID string, day time.Time) (bool, error)
	// ListCompletions returns a habit's completions newest first.
	ListCompletions(ctx context.Context, habitID string) ([]models.HabitCompletion, error)
	GetCompletion(ctx context.Context, id, ownerID string) (models.HabitCompletion, error)
	// CreateCompletion returns ErrDuplicate when the habit already has a completion that UTC day.
	CreateCompletion(ctx context.Context, c models.HabitCompletion) error
	DeleteCompletion(ctx context.Context, id string) error
}

// TaskFilter narrows ListTasks. Priority is three-way: Unset matches any priority,
// Null matches tasks without one, and Some matches that value.
type TaskFilter struct {
	OwnerID  string
	HabitID  string
	Status   models.TaskStatus
	Priority models.Optional[string]
}

type TaskStore interface {
	// FindHabitTask returns the occurrence generated for habitID on dueDate, or nil.
	FindHabitTask(ctx context.Context, habitID string, dueDate time.Time) (*models.Task, error)
	// CreateTask inserts t. A collision on (habit_id, due_date) is absorbed and reported as created=false.
	CreateTask(ctx context.Context, t models.Task) (created bool, err error)
	// DeletePendingTasks removes pending occurrences of habitID due on or after from.
	DeletePendingTasks(ctx context.Context, habitID string, from time.Time) (int, error)
	GetTask(ctx context.Context, id, ownerID string) (models.Task, error)
	SaveTask(ctx context.Context, t models.Task) error
	ListTasks(ctx context.Context, f TaskFilter) ([]models.Task, error)
}

type JobStore interface {
	// MarkJobRun records that job started on day at startedAt. first is false if the day
	// was already recorded.
	MarkJobRun(ctx context.Context, job constants.JobName, day, startedAt time.Time) (first bool, err error)
	ClearJobRun(ctx context.Context, job constants.JobName, day time.Time) error
}

// Repository is the full set of store operations, usable inside or outside a transaction.
type Repository interface {
	HabitStore
	CompletionStore
	TaskStore
	JobStore
}

type Provider interface {
	Repository

	// Lifecycle
	Init() error
	Load() error
	// Migrate applies pending schema migrations and returns how many ran.
	Migrate(ctx context.Context, logFn func(string)) (int, error)
	Close() error

	// InTx runs fn inside one transaction. fn's error rolls everything back.
	InTx(ctx context.Context, fn func(Repository) error) error

	// Utils
	GetConfigPath() string
	Driver() string
}

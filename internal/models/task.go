package models

import (
	"time"

	"github.com/julianstephens/streakline/internal/constants"
)

type TaskStatus string

const (
	TaskPending    TaskStatus = constants.TaskStatusPending
	TaskInProgress TaskStatus = constants.TaskStatusInProgress
	TaskCompleted  TaskStatus = constants.TaskStatusCompleted
)

// Task is a dated to-do item. Tasks with a HabitID are occurrences generated from a habit schedule.
type Task struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	Priority    *string    `json:"priority,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"` // UTC midnight
	HabitID     *string    `json:"habit_id,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (t Task) IsHabitTask() bool {
	return t.HabitID != nil
}

package models

import "time"

type HabitStatus string

const (
	HabitActive   HabitStatus = "active"
	HabitArchived HabitStatus = "archived"
)

type CompletionType string

const (
	CompletionFull      CompletionType = "full"
	CompletionTwoMinute CompletionType = "two_minute"
)

type Habit struct {
	ID                string             `json:"id"`
	OwnerID           string             `json:"owner_id"`
	IdentityStatement string             `json:"identity_statement"`
	FullDescription   string             `json:"full_description,omitempty"`
	TwoMinuteVersion  string             `json:"two_minute_version"`
	Category          string             `json:"category"`
	StackingCue       string             `json:"stacking_cue,omitempty"`
	Motivation        string             `json:"motivation,omitempty"`
	AnchorHabitID     *string            `json:"anchor_habit_id,omitempty"`
	Schedule          *RecurringSchedule `json:"recurring_schedule,omitempty"`
	Status            HabitStatus        `json:"status"`
	CurrentStreak     int                `json:"current_streak"`
	LastCompletedAt   *time.Time         `json:"last_completed_at,omitempty"`
	ConsecutiveMisses int                `json:"consecutive_misses"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

func (h Habit) IsActive() bool {
	return h.Status == HabitActive
}

// HabitCompletion records that a habit was performed. At most one exists per habit per UTC day.
type HabitCompletion struct {
	ID          string         `json:"id"`
	HabitID     string         `json:"habit_id"`
	OwnerID     string         `json:"owner_id"`
	CompletedAt time.Time      `json:"completed_at"`
	Type        CompletionType `json:"completion_type"`
	CreatedAt   time.Time      `json:"created_at"`
}

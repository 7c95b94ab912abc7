package models

import (
	"fmt"
	"time"

	"github.com/julianstephens/streakline/internal/constants"
)

type EventLevel string

const (
	EventLevelInfo  EventLevel = "INFO"
	EventLevelWarn  EventLevel = "WARN"
	EventLevelError EventLevel = "ERROR"
)

// Event is a domain event handed to the event sinks
type Event struct {
	Type      constants.EventType `json:"event_type"`
	OwnerID   string              `json:"user_id"`
	Timestamp time.Time           `json:"timestamp"`
	Payload   map[string]any      `json:"payload"`
	Level     EventLevel          `json:"log_level"`
}

type NotificationType string

const (
	NotificationHabitMiss   NotificationType = "HABIT_MISS"
	NotificationStreakReset NotificationType = "STREAK_RESET"
)

// Notification is a user-facing nudge produced by the miss detector
type Notification struct {
	Type              NotificationType `json:"type"`
	OwnerID           string           `json:"user_id"`
	HabitID           string           `json:"habit_id"`
	HabitName         string           `json:"habit_name"`
	ConsecutiveMisses int              `json:"consecutive_misses"`
	PreviousStreak    int              `json:"previous_streak,omitempty"`
	Message           string           `json:"message"`
	Icon              string           `json:"icon"`
	CreatedAt         time.Time        `json:"created_at"`
}

func NewMissNotification(h Habit, at time.Time) Notification {
	return Notification{
		Type:              NotificationHabitMiss,
		OwnerID:           h.OwnerID,
		HabitID:           h.ID,
		HabitName:         h.IdentityStatement,
		ConsecutiveMisses: h.ConsecutiveMisses,
		Message:           fmt.Sprintf("Get back on track today! You missed %s yesterday.", h.IdentityStatement),
		Icon:              "bell",
		CreatedAt:         at,
	}
}

func NewStreakResetNotification(h Habit, previousStreak int, at time.Time) Notification {
	return Notification{
		Type:              NotificationStreakReset,
		OwnerID:           h.OwnerID,
		HabitID:           h.ID,
		HabitName:         h.IdentityStatement,
		ConsecutiveMisses: h.ConsecutiveMisses,
		PreviousStreak:    previousStreak,
		Message:           fmt.Sprintf("Your streak has reset to 0 for %s. Start fresh today!", h.IdentityStatement),
		Icon:              "warning",
		CreatedAt:         at,
	}
}

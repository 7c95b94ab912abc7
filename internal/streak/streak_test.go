package streak

import (
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/julianstephens/streakline/internal/models"
)

var today = time.Date(2026, 2, 13, 15, 0, 0, 0, time.UTC)

func daysAgo(n int, hour int) time.Time {
	d := today.AddDate(0, 0, -n)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, time.UTC)
}

func completionsAt(times ...time.Time) []models.HabitCompletion {
	out := make([]models.HabitCompletion, len(times))
	for i, ts := range times {
		out[i] = models.HabitCompletion{ID: string(rune('a' + i)), HabitID: "h1", CompletedAt: ts, Type: models.CompletionFull}
	}
	return out
}

func TestNextValue(t *testing.T) {
	yesterday := daysAgo(1, 8)
	threeDays := daysAgo(3, 8)
	earlierToday := daysAgo(0, 6)
	lateYesterday := daysAgo(1, 23)

	tests := []struct {
		name    string
		current int
		last    *time.Time
		want    int
		change  Change
	}{
		{"first completion", 0, nil, 1, Start},
		{"yesterday increments", 4, &yesterday, 5, Increment},
		{"three days ago resets", 4, &threeDays, 1, Reset},
		{"same day is unchanged", 4, &earlierToday, 4, Unchanged},
		{"late yesterday to early today still increments", 2, &lateYesterday, 3, Increment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextValue(tt.current, tt.last, today); got != tt.want {
				t.Errorf("NextValue() = %d, want %d", got, tt.want)
			}
			if got := Classify(tt.last, today); got != tt.change {
				t.Errorf("Classify() = %v, want %v", got, tt.change)
			}
		})
	}
}

func TestRecompute(t *testing.T) {
	tests := []struct {
		name  string
		times []time.Time
		want  int
	}{
		{"empty history", nil, 0},
		{"only today", []time.Time{daysAgo(0, 9)}, 1},
		{"ending yesterday still counts", []time.Time{daysAgo(1, 9), daysAgo(2, 9), daysAgo(3, 9)}, 3},
		{"ending two days ago is broken", []time.Time{daysAgo(2, 9), daysAgo(3, 9)}, 0},
		{"gap stops the walk", []time.Time{daysAgo(0, 9), daysAgo(1, 9), daysAgo(3, 9), daysAgo(4, 9)}, 2},
		{"same day counts once", []time.Time{daysAgo(0, 7), daysAgo(0, 20), daysAgo(1, 9)}, 2},
		{"unsorted input", []time.Time{daysAgo(2, 9), daysAgo(0, 9), daysAgo(1, 9)}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Recompute(completionsAt(tt.times...), today); got != tt.want {
				t.Errorf("Recompute() = %d, want %d", got, tt.want)
			}
		})
	}
}

// Folding NextValue over a history in order must land on the same value as Recompute
// evaluated on the day of the last completion.
func TestIncrementalMatchesRecompute(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 500; trial++ {
		var times []time.Time
		cursor := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		n := 1 + rng.Intn(25)
		for i := 0; i < n; i++ {
			// Gaps of 0-3 days exercise same-day, consecutive and broken runs.
			cursor = cursor.AddDate(0, 0, rng.Intn(4)).Add(time.Duration(rng.Intn(24)) * time.Hour)
			times = append(times, cursor)
		}
		sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

		streak := 0
		var last *time.Time
		for i := range times {
			streak = NextValue(streak, last, times[i])
			last = &times[i]
		}

		if got := Recompute(completionsAt(times...), times[len(times)-1]); got != streak {
			t.Fatalf("trial %d: incremental=%d recompute=%d for %v", trial, streak, got, times)
		}
	}
}

func TestLastCompletionDateAndIsActive(t *testing.T) {
	if _, ok := LastCompletionDate(nil); ok {
		t.Error("LastCompletionDate(nil) should report false")
	}
	if IsActive(nil, today) {
		t.Error("IsActive(nil) should be false")
	}

	history := completionsAt(daysAgo(5, 9), daysAgo(1, 22), daysAgo(3, 9))
	last, ok := LastCompletionDate(history)
	if !ok || !last.Equal(daysAgo(1, 22)) {
		t.Errorf("LastCompletionDate() = %v, %v", last, ok)
	}
	if !IsActive(history, today) {
		t.Error("completion yesterday should be active")
	}
	if IsActive(completionsAt(daysAgo(2, 9)), today) {
		t.Error("completion two days ago should not be active")
	}
}

package habits

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/julianstephens/streakline/internal/constants"
	apperrors "github.com/julianstephens/streakline/internal/errors"
	"github.com/julianstephens/streakline/internal/events"
	"github.com/julianstephens/streakline/internal/models"
	"github.com/julianstephens/streakline/internal/storage"
	"github.com/julianstephens/streakline/internal/storage/sqlite"
)

type testEnv struct {
	svc   *Service
	store *sqlite.Store
	sink  *events.MemorySink
	clock time.Time
}

func setupTestService(t *testing.T) *testEnv {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	env := &testEnv{
		store: store,
		sink:  &events.MemorySink{},
		clock: time.Date(2026, 2, 13, 18, 0, 0, 0, time.UTC),
	}
	env.svc = NewService(store, events.NewDispatcher(3, env.sink))
	env.svc.now = func() time.Time { return env.clock }
	return env
}

func (e *testEnv) createHabit(t *testing.T, identity string, anchor *string) models.Habit {
	t.Helper()
	h, err := e.svc.Create(context.Background(), NewHabit{
		OwnerID:           "u1",
		IdentityStatement: identity,
		TwoMinuteVersion:  "Do it for two minutes",
		Category:          "Mindfulness",
		AnchorHabitID:     anchor,
		Schedule:          &models.RecurringSchedule{Type: models.ScheduleDaily, Frequency: 1},
	})
	if err != nil {
		t.Fatalf("Create(%q) error: %v", identity, err)
	}
	return h
}

func TestCreate(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	h := env.createHabit(t, "  I meditate  ", nil)
	if h.IdentityStatement != "I meditate" {
		t.Errorf("IdentityStatement = %q, want trimmed", h.IdentityStatement)
	}
	if h.Status != models.HabitActive || h.CurrentStreak != 0 || h.ConsecutiveMisses != 0 {
		t.Errorf("new habit state = %+v", h)
	}
	if len(env.sink.OfType(constants.EventHabitCreated)) != 1 {
		t.Error("expected one HABIT_CREATED event")
	}

	stored, err := env.svc.Get(ctx, h.ID, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if stored.ID != h.ID {
		t.Errorf("Get() = %+v", stored)
	}
}

func TestCreateRejectsBadInput(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	missing := "does-not-exist"
	tests := []struct {
		name string
		in   NewHabit
		kind apperrors.Kind
	}{
		{
			name: "bad category",
			in:   NewHabit{OwnerID: "u1", IdentityStatement: "I run", TwoMinuteVersion: "Shoes on", Category: "Sports"},
			kind: apperrors.KindValidation,
		},
		{
			name: "bad schedule",
			in: NewHabit{OwnerID: "u1", IdentityStatement: "I run", TwoMinuteVersion: "Shoes on", Category: "Other",
				Schedule: &models.RecurringSchedule{Type: models.ScheduleWeekly}},
			kind: apperrors.KindInvalidSchedule,
		},
		{
			name: "unknown anchor",
			in: NewHabit{OwnerID: "u1", IdentityStatement: "I run", TwoMinuteVersion: "Shoes on", Category: "Other",
				AnchorHabitID: &missing},
			kind: apperrors.KindNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Create(ctx, tt.in)
			if apperrors.KindOf(err) != tt.kind {
				t.Errorf("Create() error = %v, want kind %v", err, tt.kind)
			}
		})
	}
}

func TestGetOtherOwnerIsNotFound(t *testing.T) {
	env := setupTestService(t)
	h := env.createHabit(t, "I read", nil)

	_, err := env.svc.Get(context.Background(), h.ID, "intruder")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Get() error = %v, want NotFound", err)
	}
	// The store's own sentinel stays in the chain.
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get() error = %v, want it to wrap storage.ErrNotFound", err)
	}
	if apperrors.KindOf(err) != apperrors.KindNotFound {
		t.Errorf("KindOf() = %v, want KindNotFound", apperrors.KindOf(err))
	}
}

func TestUpdate(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	h := env.createHabit(t, "I read", nil)

	res, err := env.svc.Update(ctx, h.ID, "u1", Patch{
		Motivation: models.Some("Curiosity"),
		Schedule:   models.Some(models.RecurringSchedule{Type: models.ScheduleWeekly, Days: []int{1, 3}}),
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if !res.ScheduleChanged {
		t.Error("ScheduleChanged = false, want true")
	}
	if res.Habit.Motivation != "Curiosity" || res.Habit.Schedule.Type != models.ScheduleWeekly {
		t.Errorf("Update() habit = %+v", res.Habit)
	}
	if strings.Join(res.Updated, ",") != "motivation,recurring_schedule" {
		t.Errorf("Updated = %v", res.Updated)
	}

	res, err = env.svc.Update(ctx, h.ID, "u1", Patch{Schedule: models.Null[models.RecurringSchedule]()})
	if err != nil {
		t.Fatal(err)
	}
	if res.Habit.Schedule != nil {
		t.Error("Null schedule should clear it")
	}

	if _, err := env.svc.Update(ctx, h.ID, "u1", Patch{IdentityStatement: models.Null[string]()}); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("clearing a required field error = %v, want validation", err)
	}

	updated := env.sink.OfType(constants.EventHabitUpdated)
	if len(updated) != 2 {
		t.Fatalf("HABIT_UPDATED events = %d, want 2", len(updated))
	}
}

func TestUpdateRejectsAnchorCycles(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	a := env.createHabit(t, "A", nil)
	b := env.createHabit(t, "B", &a.ID)
	c := env.createHabit(t, "C", &b.ID)

	tests := []struct {
		name   string
		habit  string
		anchor string
		kind   apperrors.Kind
	}{
		{"self", a.ID, a.ID, apperrors.KindValidation},
		{"direct cycle", a.ID, b.ID, apperrors.KindCircularDependency},
		{"indirect cycle", a.ID, c.ID, apperrors.KindCircularDependency},
		{"missing anchor", a.ID, "ghost", apperrors.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Update(ctx, tt.habit, "u1", Patch{AnchorHabitID: models.Some(tt.anchor)})
			if apperrors.KindOf(err) != tt.kind {
				t.Errorf("Update() error = %v, want kind %v", err, tt.kind)
			}
		})
	}

	// Re-pointing to an unrelated chain is fine.
	d := env.createHabit(t, "D", nil)
	if _, err := env.svc.Update(ctx, c.ID, "u1", Patch{AnchorHabitID: models.Some(d.ID)}); err != nil {
		t.Errorf("valid re-anchor failed: %v", err)
	}
}

func TestCheckAnchorDepthLimit(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	prev := env.createHabit(t, "root", nil)
	for i := 0; i < constants.MaxAnchorDepth; i++ {
		id := prev.ID
		prev = env.createHabit(t, "link", &id)
	}

	newest := env.createHabit(t, "newest", nil)
	err := checkAnchor(ctx, env.store, newest.ID, prev.ID, "u1")
	if !errors.Is(err, apperrors.ErrCircularDependency) {
		t.Errorf("checkAnchor() over max depth error = %v, want CircularDependency", err)
	}
}

func TestArchiveRestore(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	h := env.createHabit(t, "I stretch", nil)

	archived, err := env.svc.Archive(ctx, h.ID, "u1")
	if err != nil || archived.Status != models.HabitArchived {
		t.Fatalf("Archive() = %+v, %v", archived, err)
	}
	if _, err := env.svc.Archive(ctx, h.ID, "u1"); err != nil {
		t.Fatalf("second Archive() error: %v", err)
	}
	if n := len(env.sink.OfType(constants.EventHabitArchived)); n != 1 {
		t.Errorf("HABIT_ARCHIVED events = %d, want 1", n)
	}

	list, _ := env.svc.List(ctx, "u1", false)
	if len(list) != 0 {
		t.Errorf("List(active) = %d habits, want 0", len(list))
	}

	restored, err := env.svc.Restore(ctx, h.ID, "u1")
	if err != nil || restored.Status != models.HabitActive {
		t.Fatalf("Restore() = %+v, %v", restored, err)
	}
}

func TestDelete(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	anchor := env.createHabit(t, "I make coffee", nil)
	dependent := env.createHabit(t, "I journal", &anchor.ID)

	due := time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)
	for _, tc := range []struct {
		id     string
		status models.TaskStatus
	}{{"pending", models.TaskPending}, {"done", models.TaskCompleted}} {
		task := models.Task{ID: tc.id, OwnerID: "u1", Title: "coffee", Status: tc.status, DueDate: &due,
			HabitID: &anchor.ID, CreatedAt: env.clock, UpdatedAt: env.clock}
		if tc.id == "done" {
			d := due.AddDate(0, 0, 1)
			task.DueDate = &d
		}
		if _, err := env.store.CreateTask(ctx, task); err != nil {
			t.Fatal(err)
		}
	}

	_, err := env.svc.Delete(ctx, anchor.ID, "u1", false)
	if !errors.Is(err, apperrors.ErrDependencyConflict) {
		t.Fatalf("Delete() without force error = %v, want DependencyConflict", err)
	}
	if !strings.Contains(err.Error(), "I journal") {
		t.Errorf("conflict should name the dependents, got %q", err)
	}

	res, err := env.svc.Delete(ctx, anchor.ID, "u1", true)
	if err != nil {
		t.Fatalf("Delete(force) error: %v", err)
	}
	if res.DependentsDetached != 1 || res.TasksDeleted != 1 {
		t.Errorf("Delete() = %+v", res)
	}

	got, err := env.svc.Get(ctx, dependent.ID, "u1")
	if err != nil {
		t.Fatalf("dependent should survive: %v", err)
	}
	if got.AnchorHabitID != nil {
		t.Error("dependent anchor should be cleared")
	}
	if _, err := env.svc.Get(ctx, anchor.ID, "u1"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("deleted habit Get() error = %v", err)
	}
	if _, err := env.store.GetTask(ctx, "done", "u1"); err != nil {
		t.Errorf("completed task should be kept: %v", err)
	}
	if len(env.sink.OfType(constants.EventHabitDeleted)) != 1 {
		t.Error("expected one HABIT_DELETED event")
	}
}

func TestCompleteAdvancesStreak(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	h := env.createHabit(t, "I walk", nil)

	steps := []struct {
		offset int
		want   int
	}{
		{-4, 1},
		{-3, 2},
		{-2, 3},
		{0, 1},
	}
	for _, step := range steps {
		at := env.clock.AddDate(0, 0, step.offset)
		env.clock = at
		res, err := env.svc.Complete(ctx, h.ID, "u1", models.CompletionFull, time.Time{})
		if err != nil {
			t.Fatalf("Complete(day %d) error: %v", step.offset, err)
		}
		if res.Habit.CurrentStreak != step.want {
			t.Errorf("Complete(day %d) streak = %d, want %d", step.offset, res.Habit.CurrentStreak, step.want)
		}
		env.clock = time.Date(2026, 2, 13, 18, 0, 0, 0, time.UTC)
	}

	if n := len(env.sink.OfType(constants.EventHabitCompleted)); n != len(steps) {
		t.Errorf("HABIT_COMPLETED events = %d, want %d", n, len(steps))
	}
}

func TestCompleteScenarioStreakFromYesterday(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	h := env.createHabit(t, "I write", nil)

	err := env.store.InTx(ctx, func(r storage.Repository) error {
		stored, err := r.LockHabit(ctx, h.ID, "u1")
		if err != nil {
			return err
		}
		yesterday := env.clock.AddDate(0, 0, -1)
		stored.CurrentStreak = 4
		stored.LastCompletedAt = &yesterday
		stored.ConsecutiveMisses = 1
		return r.SaveHabit(ctx, stored)
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := env.svc.Complete(ctx, h.ID, "u1", models.CompletionTwoMinute, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Habit.CurrentStreak != 5 || res.PreviousStreak != 4 {
		t.Errorf("streak = %d (prev %d), want 5 (prev 4)", res.Habit.CurrentStreak, res.PreviousStreak)
	}
	if res.Habit.ConsecutiveMisses != 0 {
		t.Errorf("ConsecutiveMisses = %d, want 0 after completion", res.Habit.ConsecutiveMisses)
	}
}

func TestCompleteRejections(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	h := env.createHabit(t, "I floss", nil)

	if _, err := env.svc.Complete(ctx, h.ID, "u1", models.CompletionFull, time.Time{}); err != nil {
		t.Fatal(err)
	}
	_, err := env.svc.Complete(ctx, h.ID, "u1", models.CompletionTwoMinute, env.clock.Add(-time.Hour))
	if !errors.Is(err, apperrors.ErrDuplicateCompletion) {
		t.Errorf("same-day Complete() error = %v, want DuplicateCompletion", err)
	}

	_, err = env.svc.Complete(ctx, h.ID, "u1", models.CompletionFull, env.clock.Add(48*time.Hour))
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("future Complete() error = %v, want validation", err)
	}

	_, err = env.svc.Complete(ctx, "ghost", "u1", models.CompletionFull, time.Time{})
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Complete(missing) error = %v, want NotFound", err)
	}

	if _, err := env.svc.Archive(ctx, h.ID, "u1"); err != nil {
		t.Fatal(err)
	}
	_, err = env.svc.Complete(ctx, h.ID, "u1", models.CompletionFull, env.clock.AddDate(0, 0, -1))
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("Complete(archived) error = %v, want validation", err)
	}
}

func TestCompleteBackdatedExtendsRun(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	h := env.createHabit(t, "I practice", nil)

	for _, offset := range []int{-1, 0} {
		if _, err := env.svc.Complete(ctx, h.ID, "u1", models.CompletionFull, env.clock.AddDate(0, 0, offset)); err != nil {
			t.Fatal(err)
		}
	}

	res, err := env.svc.Complete(ctx, h.ID, "u1", models.CompletionFull, env.clock.AddDate(0, 0, -2))
	if err != nil {
		t.Fatal(err)
	}
	if res.Habit.CurrentStreak != 3 {
		t.Errorf("backdated streak = %d, want 3", res.Habit.CurrentStreak)
	}
	if !res.Habit.LastCompletedAt.Equal(env.clock) {
		t.Errorf("LastCompletedAt moved to %v", res.Habit.LastCompletedAt)
	}
}

func TestCompleteBackdatedKeepsLapsedStreakBroken(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	h := env.createHabit(t, "I stretch", nil)

	if _, err := env.svc.Complete(ctx, h.ID, "u1", models.CompletionFull, env.clock.AddDate(0, 0, -5)); err != nil {
		t.Fatal(err)
	}
	// Miss detection has since reset the streak.
	lapsed, err := env.store.GetHabit(ctx, h.ID, "u1")
	if err != nil {
		t.Fatal(err)
	}
	lapsed.CurrentStreak = 0
	lapsed.ConsecutiveMisses = 3
	if err := env.store.SaveHabit(ctx, lapsed); err != nil {
		t.Fatal(err)
	}

	res, err := env.svc.Complete(ctx, h.ID, "u1", models.CompletionFull, env.clock.AddDate(0, 0, -6))
	if err != nil {
		t.Fatal(err)
	}
	if res.Habit.CurrentStreak != 0 {
		t.Errorf("streak after backdating into a lapsed run = %d, want 0", res.Habit.CurrentStreak)
	}
	if res.Habit.ConsecutiveMisses != 3 {
		t.Errorf("ConsecutiveMisses = %d, want 3", res.Habit.ConsecutiveMisses)
	}
	if want := env.clock.AddDate(0, 0, -5); !res.Habit.LastCompletedAt.Equal(want) {
		t.Errorf("LastCompletedAt = %v, want %v", res.Habit.LastCompletedAt, want)
	}
}

func TestConcurrentCompletionsSameDay(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	h := env.createHabit(t, "I hydrate", nil)

	const workers = 6
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, duplicates := 0, 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Complete(ctx, h.ID, "u1", models.CompletionFull, time.Time{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, apperrors.ErrDuplicateCompletion):
				duplicates++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || duplicates != workers-1 {
		t.Errorf("succeeded=%d duplicates=%d, want 1 and %d", succeeded, duplicates, workers-1)
	}
	got, _ := env.svc.Get(ctx, h.ID, "u1")
	if got.CurrentStreak != 1 {
		t.Errorf("CurrentStreak = %d, want 1", got.CurrentStreak)
	}
}

func TestUndoRecomputesStreak(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	h := env.createHabit(t, "I cook", nil)

	var ids []string
	for _, offset := range []int{-2, -1, 0} {
		res, err := env.svc.Complete(ctx, h.ID, "u1", models.CompletionFull, env.clock.AddDate(0, 0, offset))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, res.Completion.ID)
	}

	// Removing the middle day breaks the run: only today counts.
	got, err := env.svc.Undo(ctx, ids[1], "u1")
	if err != nil {
		t.Fatalf("Undo() error: %v", err)
	}
	if got.CurrentStreak != 1 {
		t.Errorf("streak after undoing yesterday = %d, want 1", got.CurrentStreak)
	}

	got, err = env.svc.Undo(ctx, ids[2], "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrentStreak != 0 {
		t.Errorf("streak with only a 2-day-old completion = %d, want 0", got.CurrentStreak)
	}
	if got.LastCompletedAt == nil || !got.LastCompletedAt.Equal(env.clock.AddDate(0, 0, -2)) {
		t.Errorf("LastCompletedAt = %v", got.LastCompletedAt)
	}

	got, err = env.svc.Undo(ctx, ids[0], "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.LastCompletedAt != nil || got.CurrentStreak != 0 {
		t.Errorf("empty history habit = %+v", got)
	}

	if _, err := env.svc.Undo(ctx, ids[0], "u1"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("second Undo() error = %v, want NotFound", err)
	}

	history, err := env.svc.CompletionHistory(ctx, h.ID, "u1")
	if err != nil || len(history) != 0 {
		t.Errorf("CompletionHistory() = %v, %v", history, err)
	}
	if n := len(env.sink.OfType(constants.EventHabitCompletionUndone)); n != 3 {
		t.Errorf("HABIT_COMPLETION_UNDONE events = %d, want 3", n)
	}
}

func TestSinkFailureDoesNotFailOperation(t *testing.T) {
	env := setupTestService(t)
	env.sink.SetErr(errors.New("sink down"))

	h := env.createHabit(t, "I garden", nil)
	if _, err := env.svc.Complete(context.Background(), h.ID, "u1", models.CompletionFull, time.Time{}); err != nil {
		t.Errorf("Complete() with failing sink error: %v", err)
	}
}

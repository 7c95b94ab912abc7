package events

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/julianstephens/streakline/internal/constants"
	"github.com/julianstephens/streakline/internal/logger"
	"github.com/julianstephens/streakline/internal/models"
)

// captureLogs points the global logger at a JSON buffer for the duration of the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := logger.Logger
	logger.Logger = log.NewWithOptions(&buf, log.Options{Formatter: log.JSONFormatter, Level: log.DebugLevel})
	t.Cleanup(func() { logger.Logger = old })
	return &buf
}

func logLevels(t *testing.T, buf *bytes.Buffer) []string {
	t.Helper()
	var levels []string
	sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for sc.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			t.Fatalf("bad log line %q: %v", sc.Text(), err)
		}
		levels = append(levels, entry["level"].(string))
	}
	return levels
}

func TestDispatcherDeliversToAllSinks(t *testing.T) {
	a, b := &MemorySink{}, &MemorySink{}
	d := NewDispatcher(3, a, b)
	fixed := time.Date(2026, 2, 13, 0, 1, 0, 0, time.UTC)
	d.now = func() time.Time { return fixed }

	d.Emit(context.Background(), constants.EventHabitCreated, "u1", map[string]any{"habit_id": "h1"})

	for _, s := range []*MemorySink{a, b} {
		got := s.Events()
		if len(got) != 1 {
			t.Fatalf("expected 1 event, got %d", len(got))
		}
		if got[0].Type != constants.EventHabitCreated || got[0].OwnerID != "u1" || !got[0].Timestamp.Equal(fixed) {
			t.Errorf("unexpected event: %+v", got[0])
		}
		if got[0].Payload["habit_id"] != "h1" {
			t.Errorf("payload = %v", got[0].Payload)
		}
	}
}

func TestDispatcherEscalatesRepeatedFailures(t *testing.T) {
	buf := captureLogs(t)

	failing := &MemorySink{Err: errors.New("disk full")}
	healthy := &MemorySink{}
	d := NewDispatcher(3, failing, healthy)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		d.Emit(ctx, constants.EventHabitCompleted, "u1", nil)
	}

	if got := len(healthy.Events()); got != 4 {
		t.Errorf("healthy sink got %d events, want 4", got)
	}
	if got := d.Failures("memory"); got != 4 {
		// Both sinks share a name; Failures reports the first match.
		t.Errorf("Failures() = %d, want 4", got)
	}

	want := []string{"warn", "warn", "error", "error"}
	got := logLevels(t, buf)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("log levels = %v, want %v", got, want)
	}

	// Recovery resets the counter and the next failure is back at warn.
	failing.SetErr(nil)
	d.Emit(ctx, constants.EventHabitCompleted, "u1", nil)
	if got := d.Failures("memory"); got != 0 {
		t.Errorf("Failures() after success = %d, want 0", got)
	}

	buf.Reset()
	failing.SetErr(errors.New("disk full again"))
	d.Emit(ctx, constants.EventHabitCompleted, "u1", nil)
	if got := logLevels(t, buf); len(got) != 1 || got[0] != "warn" {
		t.Errorf("log levels after reset = %v, want [warn]", got)
	}
}

func TestJSONLSink(t *testing.T) {
	dir := t.TempDir()
	sink := NewJSONLSink(dir)
	ctx := context.Background()

	ts := time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)
	e1 := models.Event{Type: constants.EventHabitCreated, OwnerID: "u1", Timestamp: ts, Payload: map[string]any{"habit_id": "h1"}, Level: models.EventLevelInfo}
	e2 := e1
	e2.Type = constants.EventHabitUpdated

	for _, e := range []models.Event{e1, e2} {
		if err := sink.Write(ctx, e); err != nil {
			t.Fatalf("Write() error: %v", err)
		}
	}

	path := sink.Path(e1)
	if !strings.HasSuffix(path, "events-2026-02-13.jsonl") {
		t.Errorf("Path() = %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read events file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &decoded); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	for _, key := range []string{"event_type", "user_id", "timestamp", "payload", "log_level"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing key %q in %s", key, lines[1])
		}
	}
	if decoded["event_type"] != "HABIT_UPDATED" {
		t.Errorf("event_type = %v", decoded["event_type"])
	}
}

func TestJSONLSinkUnwritableDir(t *testing.T) {
	file := t.TempDir() + "/not-a-dir"
	if err := os.WriteFile(file, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	sink := NewJSONLSink(file)
	err := sink.Write(context.Background(), models.Event{Type: constants.EventHabitCreated, Timestamp: time.Now()})
	if err == nil {
		t.Error("expected error writing under a regular file")
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(&buf)
	e := models.Event{Type: constants.EventHabitStreakReset, OwnerID: "u1", Payload: map[string]any{"previous_streak": 4}, Level: models.EventLevelWarn}
	if err := sink.Write(context.Background(), e); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "HABIT_STREAK_RESET") || !strings.Contains(out, "previous_streak=4") {
		t.Errorf("unexpected log output %q", out)
	}
}

func TestNop(t *testing.T) {
	// Must not panic.
	Nop().Emit(context.Background(), constants.EventHabitCreated, "u1", nil)
}

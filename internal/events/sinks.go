package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/julianstephens/streakline/internal/constants"
	"github.com/julianstephens/streakline/internal/logger"
	"github.com/julianstephens/streakline/internal/models"
)

// JSONLSink appends events to one JSON-lines file per UTC day (events-YYYY-MM-DD.jsonl).
type JSONLSink struct {
	mu  sync.Mutex
	dir string
}

func NewJSONLSink(dir string) *JSONLSink {
	return &JSONLSink{dir: dir}
}

func (s *JSONLSink) Name() string { return "jsonl" }

func (s *JSONLSink) Path(e models.Event) string {
	name := constants.EventsFilePrefix + e.Timestamp.UTC().Format(constants.DateFormat) + constants.EventsFileSuffix
	return filepath.Join(s.dir, name)
}

func (s *JSONLSink) Write(_ context.Context, e models.Event) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create events directory: %w", err)
	}
	f, err := os.OpenFile(s.Path(e), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open events file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// LogSink writes events as structured log lines.
type LogSink struct {
	l *log.Logger
}

func NewLogSink(w io.Writer) *LogSink {
	return &LogSink{l: logger.New(w, "events")}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Write(_ context.Context, e models.Event) error {
	kv := []interface{}{"owner", e.OwnerID}
	for k, v := range e.Payload {
		kv = append(kv, k, v)
	}
	switch e.Level {
	case models.EventLevelWarn:
		s.l.Warn(string(e.Type), kv...)
	case models.EventLevelError:
		s.l.Error(string(e.Type), kv...)
	default:
		s.l.Info(string(e.Type), kv...)
	}
	return nil
}

// MemorySink keeps events in memory, for dry runs and tests.
type MemorySink struct {
	mu     sync.Mutex
	events []models.Event
	// Err, when set, is returned from every Write.
	Err error
}

func (s *MemorySink) Name() string { return "memory" }

func (s *MemorySink) Write(_ context.Context, e models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.events = append(s.events, e)
	return nil
}

// Events returns a copy of everything written so far.
func (s *MemorySink) Events() []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Event(nil), s.events...)
}

// OfType returns the recorded events with the given type.
func (s *MemorySink) OfType(t constants.EventType) []models.Event {
	var out []models.Event
	for _, e := range s.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// SetErr makes subsequent writes fail with err, or succeed again when err is nil.
func (s *MemorySink) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Err = err
}

// Package events delivers domain events to pluggable sinks on a best-effort basis.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/julianstephens/streakline/internal/constants"
	"github.com/julianstephens/streakline/internal/logger"
	"github.com/julianstephens/streakline/internal/models"
)

// Emitter is what services publish through. Emit never fails the caller.
type Emitter interface {
	Emit(ctx context.Context, eventType constants.EventType, ownerID string, payload map[string]any)
}

// Sink is a single delivery target. Errors are absorbed by the Dispatcher.
type Sink interface {
	Name() string
	Write(ctx context.Context, e models.Event) error
}

type sinkState struct {
	sink     Sink
	failures int
}

// Dispatcher fans events out to its sinks. Each sink's consecutive failures are counted;
// they are logged at warn level until escalateAfter is reached and at error level from then on.
// A successful write resets the count.
type Dispatcher struct {
	mu            sync.Mutex
	sinks         []*sinkState
	escalateAfter int
	now           func() time.Time
}

func NewDispatcher(escalateAfter int, sinks ...Sink) *Dispatcher {
	if escalateAfter < 1 {
		escalateAfter = constants.DefaultEscalateAfter
	}
	d := &Dispatcher{escalateAfter: escalateAfter, now: time.Now}
	for _, s := range sinks {
		d.sinks = append(d.sinks, &sinkState{sink: s})
	}
	return d
}

// Emit builds the event and hands it to every sink in order.
func (d *Dispatcher) Emit(ctx context.Context, eventType constants.EventType, ownerID string, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	e := models.Event{
		Type:      eventType,
		OwnerID:   ownerID,
		Timestamp: d.now().UTC(),
		Payload:   payload,
		Level:     levelFor(eventType),
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, st := range d.sinks {
		if err := st.sink.Write(ctx, e); err != nil {
			st.failures++
			if st.failures >= d.escalateAfter {
				logger.Error("Event sink failing repeatedly", "sink", st.sink.Name(), "event", eventType, "failures", st.failures, "error", err)
			} else {
				logger.Warn("Event sink write failed", "sink", st.sink.Name(), "event", eventType, "failures", st.failures, "error", err)
			}
			continue
		}
		st.failures = 0
	}
}

// Failures returns the current consecutive failure count for the named sink.
func (d *Dispatcher) Failures(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, st := range d.sinks {
		if st.sink.Name() == name {
			return st.failures
		}
	}
	return 0
}

func levelFor(t constants.EventType) models.EventLevel {
	switch t {
	case constants.EventHabitStreakReset, constants.EventHabitMissDetected:
		return models.EventLevelWarn
	default:
		return models.EventLevelInfo
	}
}

type nop struct{}

func (nop) Emit(context.Context, constants.EventType, string, map[string]any) {}

// Nop returns an Emitter that discards everything.
func Nop() Emitter {
	return nop{}
}

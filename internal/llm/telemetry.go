package llm

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Telemetry levels.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Telemetry receives liveness and diagnostic events for model calls.
type Telemetry interface {
	Heartbeat(opID string, elapsed time.Duration, note string)
	Event(opID, level, msg string, data map[string]any)
}

// NopTelemetry discards everything.
type NopTelemetry struct{}

func (NopTelemetry) Heartbeat(string, time.Duration, string)      {}
func (NopTelemetry) Event(string, string, string, map[string]any) {}

// LogTelemetry writes telemetry to a zerolog logger.
type LogTelemetry struct {
	Logger zerolog.Logger
}

// Heartbeat logs a liveness line for a pending call.
func (t LogTelemetry) Heartbeat(opID string, elapsed time.Duration, note string) {
	ev := t.Logger.Info().Str("op_id", opID).Dur("elapsed", elapsed)
	if note != "" {
		ev = ev.Str("note", note)
	}
	ev.Msg("heartbeat")
}

// Event logs a diagnostic event at the matching level.
func (t LogTelemetry) Event(opID, level, msg string, data map[string]any) {
	var ev *zerolog.Event
	switch level {
	case LevelError:
		ev = t.Logger.Error()
	case LevelWarn:
		ev = t.Logger.Warn()
	default:
		ev = t.Logger.Debug()
	}
	ev.Str("op_id", opID).Fields(data).Msg(msg)
}

// RecordedEvent is one event captured by a Recorder.
type RecordedEvent struct {
	OpID  string
	Level string
	Msg   string
	Data  map[string]any
}

// Recorder keeps telemetry in memory. It is safe for concurrent use.
type Recorder struct {
	mu         sync.Mutex
	events     []RecordedEvent
	heartbeats []string
}

// Heartbeat records the op id of the heartbeat.
func (r *Recorder) Heartbeat(opID string, _ time.Duration, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.heartbeats = append(r.heartbeats, opID)
}

// Event records the event.
func (r *Recorder) Event(opID, level, msg string, data map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, RecordedEvent{OpID: opID, Level: level, Msg: msg, Data: data})
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []RecordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RecordedEvent(nil), r.events...)
}

// Heartbeats returns the number of heartbeats seen.
func (r *Recorder) Heartbeats() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.heartbeats)
}

// Messages returns the recorded event messages in order.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Msg
	}
	return out
}

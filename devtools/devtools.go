// Package devtools defines the snapshot sink consumed by dispatchers and
// ships three implementations: a no-op default, a slog sink and a
// SQLite-backed recorder.
//
// The sink is side-effect only. Dispatchers log and continue on sink
// errors; no sink failure affects dispatch semantics.
package devtools

import "log/slog"

// InitEvent is the reserved marker sent once at dispatcher
// initialization, before any real event.
const InitEvent = "@@reflux/INIT"

// Sink receives store snapshots after every processed event.
type Sink interface {
	// Connect is called once when a dispatcher initializes.
	Connect(modelID, label string) error

	// Send forwards one snapshot. Fire and forget: implementations
	// handle their own errors.
	Send(eventType string, snapshot map[string]any, modelID string)

	// Close releases sink resources. Called on dispatcher disposal.
	Close() error
}

// NopSink discards everything. It is the default sink.
type NopSink struct{}

// Connect implements Sink.
func (NopSink) Connect(string, string) error { return nil }

// Send implements Sink.
func (NopSink) Send(string, map[string]any, string) {}

// Close implements Sink.
func (NopSink) Close() error { return nil }

// LogSink writes snapshots to a slog logger at debug level.
type LogSink struct {
	log *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger uses slog.Default.
func NewLogSink(l *slog.Logger) *LogSink {
	if l == nil {
		l = slog.Default()
	}
	return &LogSink{log: l}
}

// Connect implements Sink.
func (s *LogSink) Connect(modelID, label string) error {
	s.log.Debug("devtools connected", "model", modelID, "label", label)
	return nil
}

// Send implements Sink.
func (s *LogSink) Send(eventType string, snapshot map[string]any, modelID string) {
	s.log.Debug("devtools update", "model", modelID, "event", eventType, "slices", len(snapshot))
}

// Close implements Sink.
func (s *LogSink) Close() error { return nil }

// Package harness runs conformance scenarios against a real dispatcher on
// the in-memory hub.
//
// Each scenario builds a fresh store, hub and dispatcher, executes its
// steps synchronously, captures the devtools trace and evaluates its
// assertions. Deterministic envelope ids and trace sequence numbers keep
// golden files stable across runs.
package harness

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/reflux-go/reflux/dispatch"
	"github.com/reflux-go/reflux/internal/testutil"
	"github.com/reflux-go/reflux/router"
	"github.com/reflux-go/reflux/store"
)

// TraceEvent is one captured devtools notification.
type TraceEvent struct {
	Seq     int64
	Event   string
	ModelID string
	Store   map[string]any
}

// Result is the outcome of one scenario run.
type Result struct {
	Pass     bool
	Failures []string
	Trace    []TraceEvent
	Final    map[string]any
}

// captureSink records every devtools notification with a deterministic
// sequence number.
type captureSink struct {
	clock *testutil.DeterministicClock
	trace []TraceEvent
}

func newCaptureSink() *captureSink {
	return &captureSink{clock: testutil.NewDeterministicClock()}
}

func (s *captureSink) Connect(string, string) error { return nil }

func (s *captureSink) Send(eventType string, snapshot map[string]any, modelID string) {
	s.trace = append(s.trace, TraceEvent{
		Seq:     s.clock.Next(),
		Event:   eventType,
		ModelID: modelID,
		Store:   snapshot,
	})
}

func (s *captureSink) Close() error { return nil }

// Run executes a scenario and returns its result.
//
// Execution flow:
//  1. Build the store from the initial slices.
//  2. Wire a dispatcher from the named-reducer and model definitions.
//  3. Execute each step against a fresh hub.
//  4. Evaluate assertions over the final store and captured trace.
func Run(sc *Scenario) (*Result, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	st, err := store.New(sc.ModelID, sc.Initial)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := router.New(
		router.WithLogger(quiet),
		router.WithIDGenerator(testutil.NewFixedIDGenerator("evt")),
	)

	sink := newCaptureSink()
	opts := []dispatch.Option{
		dispatch.WithDevtools(sink),
		dispatch.WithLogger(quiet),
	}

	for i, h := range sc.Handlers {
		stage, err := router.ParseStage(h.Stage)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: handler %d: %w", sc.Name, i, err)
		}
		reduce, err := buildReducer(h.Reducer, h.Args)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: handler %d: %w", sc.Name, i, err)
		}
		opts = append(opts, dispatch.WithHandlers(h.Slice, dispatch.HandlerSpec{
			EventType: h.Events,
			Stage:     stage,
			Predicate: buildPredicate(h.Unless),
			Reduce:    reduce,
		}))
	}
	for _, m := range sc.Models {
		opts = append(opts, dispatch.WithExternalModel(m.Slice, &modelStub{
			events: m.Events,
			state:  m.State,
		}))
	}

	d, err := dispatch.New(hub, st, opts...)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	if err := d.Initialize(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	for i, step := range sc.Steps {
		switch {
		case step.Publish != "":
			err = hub.Publish(sc.ModelID, step.Publish, step.Payload)
		case step.Broadcast != "":
			err = hub.Broadcast(step.Broadcast, step.Payload)
		case step.Dispose:
			err = hub.Publish(sc.ModelID, dispatch.EventDispose, nil)
		}
		if err != nil {
			return nil, fmt.Errorf("scenario %s: step %d: %w", sc.Name, i, err)
		}
	}

	result := &Result{
		Trace: sink.trace,
		Final: d.Store().Snapshot(),
	}
	result.Failures = evaluate(sc, result)
	result.Pass = len(result.Failures) == 0
	return result, nil
}

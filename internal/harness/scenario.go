package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario: a dispatcher wired from
// named reducers, a series of published events, and assertions over the
// final store and the devtools trace.
type Scenario struct {
	// Name uniquely identifies this scenario; golden files use it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// ModelID is the dispatcher's model id.
	ModelID string `yaml:"model_id"`

	// Initial contains the store's initial slices.
	Initial map[string]any `yaml:"initial,omitempty"`

	// Handlers registers reducers by name (see reducers.go).
	Handlers []HandlerDef `yaml:"handlers,omitempty"`

	// Models registers external-model stubs with fixed computed state.
	Models []ModelDef `yaml:"models,omitempty"`

	// Steps are executed in order against the hub.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final store and the trace.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// HandlerDef registers one named reducer.
type HandlerDef struct {
	// Slice is the state slice the reducer owns.
	Slice string `yaml:"slice"`

	// Events is the event-type key; comma synonyms are honored.
	Events string `yaml:"events"`

	// Stage gates the handler: pre, normal (default) or final.
	Stage string `yaml:"stage,omitempty"`

	// Reducer names a built-in reducer: set, set_payload, increment,
	// clear, replace, merge.
	Reducer string `yaml:"reducer"`

	// Args parameterize the reducer.
	Args map[string]any `yaml:"args,omitempty"`

	// Unless optionally skips the handler when a slice key equals a
	// value.
	Unless *UnlessDef `yaml:"unless,omitempty"`
}

// UnlessDef is a declarative predicate: skip when slice[key] == equals.
type UnlessDef struct {
	Key    string `yaml:"key"`
	Equals any    `yaml:"equals"`
}

// ModelDef registers an external-model stub.
type ModelDef struct {
	// Slice is the store slot the model's state is synced into.
	Slice string `yaml:"slice"`

	// Events lists the event types the model reacts to.
	Events []string `yaml:"events"`

	// State is the model's fixed computed state.
	State any `yaml:"state"`
}

// Step is one action against the hub. Exactly one of Publish, Broadcast
// or Dispose must be set.
type Step struct {
	// Publish targets the scenario's model with this event type.
	Publish string `yaml:"publish,omitempty"`

	// Broadcast submits this event type with no target model.
	Broadcast string `yaml:"broadcast,omitempty"`

	// Dispose delivers the reserved disposal event.
	Dispose bool `yaml:"dispose,omitempty"`

	// Payload is the event payload for Publish/Broadcast.
	Payload any `yaml:"payload,omitempty"`
}

// Assertion validates the final store or the trace.
type Assertion struct {
	// Type is one of final_state, trace_contains, trace_count,
	// trace_order.
	Type string `yaml:"type"`

	// Slice is the store slice (final_state).
	Slice string `yaml:"slice,omitempty"`

	// Expect contains expected field values, subset-matched
	// (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Event is the trace event type (trace_contains, trace_count).
	Event string `yaml:"event,omitempty"`

	// Count is the expected occurrence count (trace_count).
	Count int `yaml:"count,omitempty"`

	// Events is the expected in-order subsequence (trace_order).
	Events []string `yaml:"events,omitempty"`
}

// Assertion type names.
const (
	AssertFinalState    = "final_state"
	AssertTraceContains = "trace_contains"
	AssertTraceCount    = "trace_count"
	AssertTraceOrder    = "trace_order"
)

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks structural invariants of the scenario.
func (sc *Scenario) Validate() error {
	if sc.Name == "" {
		return fmt.Errorf("scenario: name is required")
	}
	if sc.ModelID == "" {
		return fmt.Errorf("scenario %s: model_id is required", sc.Name)
	}
	for i, h := range sc.Handlers {
		if h.Slice == "" || h.Events == "" || h.Reducer == "" {
			return fmt.Errorf("scenario %s: handler %d needs slice, events and reducer", sc.Name, i)
		}
	}
	for i, m := range sc.Models {
		if m.Slice == "" || len(m.Events) == 0 {
			return fmt.Errorf("scenario %s: model %d needs slice and events", sc.Name, i)
		}
	}
	for i, step := range sc.Steps {
		set := 0
		if step.Publish != "" {
			set++
		}
		if step.Broadcast != "" {
			set++
		}
		if step.Dispose {
			set++
		}
		if set != 1 {
			return fmt.Errorf("scenario %s: step %d needs exactly one of publish, broadcast, dispose", sc.Name, i)
		}
	}
	for i, a := range sc.Assertions {
		switch a.Type {
		case AssertFinalState, AssertTraceContains, AssertTraceCount, AssertTraceOrder:
		default:
			return fmt.Errorf("scenario %s: assertion %d has unknown type %q", sc.Name, i, a.Type)
		}
	}
	return nil
}

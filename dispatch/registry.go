package dispatch

import (
	"fmt"
	"strings"

	"github.com/reflux-go/reflux/router"
)

// handlerEntry is one resolved handler registration.
type handlerEntry struct {
	slice  string
	stage  router.Stage
	pred   Predicate
	reduce Reducer
}

// modelEntry associates an external model with its store slice.
type modelEntry struct {
	slice string
	model ExternalModel
}

// registry is the single lookup table built from all registration
// sources. It is append-only during construction and read-only afterward.
//
// Entry order within an event type is registration order and never
// changes; the dispatch engine relies on it for the ordering guarantee.
type registry struct {
	handlers map[string][]handlerEntry
	models   map[string][]modelEntry

	// handlerOrder tracks first registration order of handler event
	// types so the feed subscription is deterministic.
	handlerOrder []string
}

func newRegistry() *registry {
	return &registry{
		handlers: make(map[string][]handlerEntry),
		models:   make(map[string][]modelEntry),
	}
}

// addHandler registers a reducer under every synonym in eventKey.
func (r *registry) addHandler(eventKey, slice string, stage router.Stage, pred Predicate, reduce Reducer) error {
	if slice == "" {
		return &ConfigError{Code: CodeBadRegistration, Message: "handler registered with empty slice name"}
	}
	if reduce == nil {
		return &ConfigError{Code: CodeBadRegistration, Field: slice, Message: "handler registered with nil reducer"}
	}
	if stage == 0 {
		stage = router.StageNormal
	}
	if stage == router.StageAll {
		return &ConfigError{Code: CodeBadRegistration, Field: slice,
			Message: fmt.Sprintf("handler for %q registered with wildcard stage", eventKey)}
	}

	registered := 0
	for _, eventType := range strings.Split(eventKey, MultiEventDelimiter) {
		eventType = strings.TrimSpace(eventType)
		if eventType == "" {
			continue
		}
		if _, seen := r.handlers[eventType]; !seen {
			r.handlerOrder = append(r.handlerOrder, eventType)
		}
		r.handlers[eventType] = append(r.handlers[eventType], handlerEntry{
			slice:  slice,
			stage:  stage,
			pred:   pred,
			reduce: reduce,
		})
		registered++
	}
	if registered == 0 {
		return &ConfigError{Code: CodeBadRegistration, Field: slice, Message: "handler registered with empty event type"}
	}
	return nil
}

// addModel registers an external model for every event type it declares.
func (r *registry) addModel(slice string, m ExternalModel) error {
	if slice == "" {
		return &ConfigError{Code: CodeBadRegistration, Message: "external model registered with empty slice name"}
	}
	if m == nil {
		return &ConfigError{Code: CodeBadRegistration, Field: slice, Message: "external model is nil"}
	}
	types := m.EventTypes()
	if len(types) == 0 {
		return &ConfigError{Code: CodeBadRegistration, Field: slice, Message: "external model declares no event types"}
	}
	for _, eventType := range types {
		if eventType == "" {
			return &ConfigError{Code: CodeBadRegistration, Field: slice, Message: "external model declares an empty event type"}
		}
		r.models[eventType] = append(r.models[eventType], modelEntry{slice: slice, model: m})
	}
	return nil
}

// entries returns the handler list for an event type, in registration
// order. Nil when none.
func (r *registry) entries(eventType string) []handlerEntry {
	return r.handlers[eventType]
}

// modelsFor returns the model entries for an event type. Nil when none.
func (r *registry) modelsFor(eventType string) []modelEntry {
	return r.models[eventType]
}

// handlerTypes returns the handler event types in first-registration
// order.
func (r *registry) handlerTypes() []string {
	out := make([]string, len(r.handlerOrder))
	copy(out, r.handlerOrder)
	return out
}

// validateOwnership rejects configurations where, for one event type, a
// reducer and an external model both claim the same slice. Precedence
// between the two engines would otherwise be an accident of call order.
func (r *registry) validateOwnership() error {
	for eventType, models := range r.models {
		handlers := r.handlers[eventType]
		if len(handlers) == 0 {
			continue
		}
		owned := make(map[string]struct{}, len(handlers))
		for _, h := range handlers {
			owned[h.slice] = struct{}{}
		}
		for _, me := range models {
			if _, clash := owned[me.slice]; clash {
				return &ConfigError{
					Code:    CodeSliceConflict,
					Field:   me.slice,
					Message: fmt.Sprintf("slice owned by both a reducer and an external model for event %q", eventType),
				}
			}
		}
	}
	return nil
}

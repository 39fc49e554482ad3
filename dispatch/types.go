package dispatch

import (
	"context"

	"github.com/reflux-go/reflux/draft"
	"github.com/reflux-go/reflux/router"
	"github.com/reflux-go/reflux/store"
)

// EventDispose is the reserved event type that disposes a dispatcher.
// Delivery at any stage is irreversible: all subscriptions are cancelled
// and no further events are processed.
const EventDispose = "reflux/dispose"

// MultiEventDelimiter separates synonym event types in a handler-map key.
// A key like "setName,clearName" registers the same reducer under both
// types.
const MultiEventDelimiter = ","

// Event is the reducer-facing view of one delivered envelope.
type Event struct {
	Type    string
	Payload any
	Ctx     context.Context
}

// Reducer produces the next value of one state slice. It either mutates
// the draft and returns nil, or returns the next value outright. A nil
// return with an untouched draft keeps the stored reference unchanged.
//
// Reducers must be pure aside from the draft: no publishing back into the
// router, no reads of external mutable state.
type Reducer func(d *draft.Draft, ev Event) any

// Predicate gates one handler invocation. A false result skips the
// handler entirely: no state write and no per-handler diagnostic. Other
// handlers for the same event still run.
type Predicate func(current any, ev Event, st *store.Store) bool

// HandlerSpec is one explicit handler registration.
type HandlerSpec struct {
	// EventType the handler reacts to. Comma synonyms are honored as in
	// handler maps.
	EventType string

	// Stage the handler is gated to. Zero defaults to StageNormal.
	Stage router.Stage

	// Predicate optionally gates invocation. Nil means always invoke.
	Predicate Predicate

	// Reduce is the handler body.
	Reduce Reducer
}

// HandlerSource supplies handler specs for one slice. It is the explicit
// replacement for annotation scanning: an object declares its handlers
// instead of being reflected over.
type HandlerSource interface {
	EventHandlers() []HandlerSpec
}

// ExternalModel is a self-contained state machine. The dispatcher never
// invokes it as a reducer; it only pulls State into the store after
// dispatch at the final stage completes for one of its event types.
type ExternalModel interface {
	// EventTypes lists the event types the model reacts to.
	EventTypes() []string

	// State returns the model's current computed state.
	State() any
}

// InputEvent is the transformation-side view of one envelope, carrying a
// snapshot of the originating model's store.
type InputEvent struct {
	Type  string
	Event any
	Ctx   context.Context
	Store map[string]any
}

// OutputEvent is an event produced by a transformation stream, destined
// for the router. A nil *OutputEvent on a stream is filtered and never
// forwarded.
type OutputEvent struct {
	// Type of the outgoing event.
	Type string

	// Event is the payload.
	Event any

	// ModelID optionally targets a specific model. Empty defaults to the
	// producing dispatcher's own model, unless Broadcast is set.
	ModelID string

	// Broadcast rebroadcasts with no target model, taking precedence
	// over ModelID.
	Broadcast bool
}

// ObserveFunc is the capability handed to a StreamFactory: it observes
// one event type at one stage, filtered to this model, as InputEvents.
type ObserveFunc func(eventType string, stage router.Stage) <-chan InputEvent

// StreamFactory builds an output stream from the observe capability.
// The returned channel must be closed by the factory's producer when it
// completes; a nil return registers nothing.
type StreamFactory func(observe ObserveFunc) <-chan *OutputEvent

// StreamRoute declares one input subscription of a StreamSource.
type StreamRoute struct {
	EventType string
	Stage     router.Stage
}

// StreamSource is the declared-routes registration shape: all routes
// merge into the single input channel passed to Transform.
type StreamSource interface {
	// StreamRoutes lists the input subscriptions.
	StreamRoutes() []StreamRoute

	// Transform consumes merged input events and returns the output
	// stream. The input channel is closed on disposal; Transform's
	// producer must close its output channel when done.
	Transform(in <-chan InputEvent) <-chan *OutputEvent
}

// Package router defines the routing contract consumed by dispatchers and
// provides Hub, an in-memory reference implementation.
//
// The dispatcher never depends on a concrete router. It consumes the Router
// interface and presents itself to the router through the Model interface:
// the router delivers envelopes to feed subscriptions, notifies models as
// dispatch for each stage completes, and brackets batches of event
// processing with the batch hooks.
package router

import (
	"context"
	"fmt"

	"github.com/reflux-go/reflux/store"
)

// Stage identifies a phase of an event's traversal through the router.
// Every event traverses the concrete stages in order: pre, normal, final.
type Stage int

const (
	// StagePre is the first phase of an event's traversal.
	StagePre Stage = iota + 1
	// StageNormal is the main phase; handlers default to it.
	StageNormal
	// StageFinal is the terminal phase. External-model state is synced
	// only after dispatch at this stage completes.
	StageFinal
	// StageAll is a subscription-only wildcard matching every stage.
	// Delivered envelopes always carry a concrete stage.
	StageAll
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StagePre:
		return "pre"
	case StageNormal:
		return "normal"
	case StageFinal:
		return "final"
	case StageAll:
		return "all"
	default:
		return "unknown"
	}
}

// ParseStage parses a stage name as used in scenario files and CLI flags.
func ParseStage(name string) (Stage, error) {
	switch name {
	case "pre":
		return StagePre, nil
	case "normal", "":
		return StageNormal, nil
	case "final":
		return StageFinal, nil
	case "all":
		return StageAll, nil
	default:
		return 0, fmt.Errorf("router: unknown stage %q", name)
	}
}

// Envelope is one event delivery. Envelopes are immutable from the
// receiver's perspective and must not be retained past the notification.
type Envelope struct {
	// ID uniquely identifies the event across its stage traversal.
	ID string

	// Seq is the router's monotonic sequence number for the event.
	Seq int64

	// Type is the event type.
	Type string

	// Event is the payload.
	Event any

	// Stage is the concrete observation stage of this delivery.
	Stage Stage

	// ModelID is the model the delivery is addressed to.
	ModelID string

	// Ctx carries request-scoped values for predicates and reducers.
	Ctx context.Context

	// Source optionally references the store of the model that produced
	// the event. Receivers fall back to their own store when nil.
	Source *store.Store
}

// Subscription is a cancellable registration with the router.
// Cancel is idempotent.
type Subscription interface {
	Cancel()
}

// Feed is a lazy, restartable envelope source. Nothing is delivered until
// Subscribe is called; each Subscribe creates an independent subscription.
type Feed interface {
	Subscribe(fn func(Envelope)) Subscription
}

// Model is the contract a dispatcher presents to the router.
type Model interface {
	// ModelID returns the model's unique id.
	ModelID() string

	// EventDispatched is invoked once delivery of an event at the given
	// stage has completed for every subscriber.
	EventDispatched(eventType string, stage Stage)

	// BatchStarting is invoked before a batch of events is dispatched.
	BatchStarting()

	// BatchFinished is invoked after a batch, with the event types that
	// were processed in it.
	BatchFinished(eventTypes []string)
}

// Router is the routing substrate consumed by a dispatcher.
type Router interface {
	// ObserveEventsOn registers a model for dispatch notifications and
	// batch hooks, tying them to the returned subscription's lifetime.
	ObserveEventsOn(modelID string, m Model) Subscription

	// Events returns a feed of envelopes filtered by event type, target
	// model and stage. An empty type list matches every type; an empty
	// model id matches every model; StageAll matches every stage.
	Events(types []string, modelID string, stage Stage) Feed

	// Publish submits an event targeted at one model. Fire and forget.
	Publish(modelID, eventType string, payload any) error

	// Broadcast submits an event with no target model; it is delivered
	// to every matching subscription. Fire and forget.
	Broadcast(eventType string, payload any) error
}

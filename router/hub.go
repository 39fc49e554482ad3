package router

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ErrClosed is returned by Publish and Broadcast after Close.
var ErrClosed = errors.New("router: hub closed")

// IDGenerator produces envelope ids. The default generator uses random
// UUIDs; tests substitute a fixed generator for deterministic traces.
type IDGenerator interface {
	NewID() string
}

type uuidGenerator struct{}

func (uuidGenerator) NewID() string { return uuid.NewString() }

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithLogger sets the hub's logger.
func WithLogger(l *slog.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

// WithIDGenerator sets the envelope id generator.
func WithIDGenerator(g IDGenerator) HubOption {
	return func(h *Hub) {
		if g != nil {
			h.idGen = g
		}
	}
}

// Hub is an in-memory Router.
//
// Delivery is synchronous and single-writer: the first Publish or
// Broadcast on an idle hub drains the queue on the caller's goroutine,
// delivering each event at every concrete stage in order. Publishes made
// while a drain is running (reentrant publishes from handlers included)
// are queued and picked up by the running drain, never delivered inline.
//
// A full drain of the queue is one batch: BatchStarting fires on every
// registered model before the first delivery, BatchFinished after the
// last, with the event types processed in between.
type Hub struct {
	log   *slog.Logger
	idGen IDGenerator
	clock clock

	mu       sync.Mutex
	queue    *eventQueue
	models   map[string]Model
	feeds    []*feedSub
	draining bool
	closed   bool
}

// New creates an empty hub.
func New(opts ...HubOption) *Hub {
	h := &Hub{
		log:    slog.Default(),
		idGen:  uuidGenerator{},
		queue:  newEventQueue(),
		models: make(map[string]Model),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ObserveEventsOn registers a model for dispatch notifications and batch
// hooks. Cancelling the returned subscription deregisters it.
func (h *Hub) ObserveEventsOn(modelID string, m Model) Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.models[modelID] = m
	return &modelSub{hub: h, modelID: modelID}
}

// Events returns a feed filtered by event types, target model and stage.
func (h *Hub) Events(types []string, modelID string, stage Stage) Feed {
	typeSet := make(map[string]struct{}, len(types))
	for _, t := range types {
		typeSet[t] = struct{}{}
	}
	return &hubFeed{hub: h, types: typeSet, modelID: modelID, stage: stage}
}

// Publish submits an event targeted at one model.
func (h *Hub) Publish(modelID, eventType string, payload any) error {
	if modelID == "" {
		return errors.New("router: publish requires a target model id")
	}
	return h.submit(pending{modelID: modelID, eventType: eventType, payload: payload})
}

// Broadcast submits an event with no target model.
func (h *Hub) Broadcast(eventType string, payload any) error {
	return h.submit(pending{eventType: eventType, payload: payload, broadcast: true})
}

// Close stops intake. Queued events are still delivered by a running
// drain; new submissions fail with ErrClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
}

// Seq returns the current envelope sequence number.
func (h *Hub) Seq() int64 {
	return h.clock.Current()
}

func (h *Hub) submit(p pending) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	h.queue.enqueue(p)
	if h.draining {
		h.mu.Unlock()
		return nil
	}
	h.draining = true
	h.mu.Unlock()

	h.drain()
	return nil
}

// drain delivers queued events until the queue is empty, bracketing the
// run with the batch hooks of every registered model.
func (h *Hub) drain() {
	models := h.modelSnapshot()
	for _, m := range models {
		m.BatchStarting()
	}

	var processed []string
	for {
		h.mu.Lock()
		p, ok := h.queue.tryDequeue()
		if !ok {
			h.draining = false
			h.mu.Unlock()
			break
		}
		h.mu.Unlock()

		h.deliver(p)
		processed = append(processed, p.eventType)
	}

	for _, m := range models {
		m.BatchFinished(processed)
	}
}

// deliver walks one event through the concrete stages, fanning each stage
// out to matching feed subscriptions and then notifying models that
// dispatch for the stage has completed.
func (h *Hub) deliver(p pending) {
	id := h.idGen.NewID()
	seq := h.clock.Next()
	for _, stage := range []Stage{StagePre, StageNormal, StageFinal} {
		env := Envelope{
			ID:      id,
			Seq:     seq,
			Type:    p.eventType,
			Event:   p.payload,
			Stage:   stage,
			ModelID: p.modelID,
			Ctx:     context.Background(),
		}
		h.fanout(env, p.broadcast)
		h.notifyDispatched(p, stage)
	}
}

func (h *Hub) fanout(env Envelope, broadcast bool) {
	h.mu.Lock()
	subs := make([]*feedSub, len(h.feeds))
	copy(subs, h.feeds)
	h.mu.Unlock()

	for _, s := range subs {
		if s.cancelled.Load() || !s.matches(env, broadcast) {
			continue
		}
		delivered := env
		if broadcast {
			// A broadcast is addressed to whichever model the
			// subscription belongs to.
			delivered.ModelID = s.modelID
		}
		h.safeDeliver(s, delivered)
	}
}

// safeDeliver invokes one subscription callback, recovering a panic so a
// faulty subscriber cannot take down the drain loop.
func (h *Hub) safeDeliver(s *feedSub, env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("subscriber panicked during delivery",
				"event", env.Type,
				"stage", env.Stage.String(),
				"model", env.ModelID,
				"panic", r)
		}
	}()
	s.fn(env)
}

func (h *Hub) notifyDispatched(p pending, stage Stage) {
	for id, m := range h.modelSnapshot() {
		if !p.broadcast && p.modelID != id {
			continue
		}
		m.EventDispatched(p.eventType, stage)
	}
}

func (h *Hub) modelSnapshot() map[string]Model {
	h.mu.Lock()
	defer h.mu.Unlock()
	models := make(map[string]Model, len(h.models))
	for id, m := range h.models {
		models[id] = m
	}
	return models
}

func (h *Hub) addFeedSub(s *feedSub) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.feeds = append(h.feeds, s)
}

func (h *Hub) removeFeedSub(s *feedSub) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, cur := range h.feeds {
		if cur == s {
			h.feeds = append(h.feeds[:i], h.feeds[i+1:]...)
			return
		}
	}
}

// hubFeed is a lazy envelope source; each Subscribe registers an
// independent subscription.
type hubFeed struct {
	hub     *Hub
	types   map[string]struct{}
	modelID string
	stage   Stage
}

// Subscribe registers fn for matching envelopes.
func (f *hubFeed) Subscribe(fn func(Envelope)) Subscription {
	s := &feedSub{
		hub:     f.hub,
		types:   f.types,
		modelID: f.modelID,
		stage:   f.stage,
		fn:      fn,
	}
	f.hub.addFeedSub(s)
	return s
}

type feedSub struct {
	hub       *Hub
	types     map[string]struct{}
	modelID   string
	stage     Stage
	fn        func(Envelope)
	cancelled atomic.Bool
}

func (s *feedSub) matches(env Envelope, broadcast bool) bool {
	if len(s.types) > 0 {
		if _, ok := s.types[env.Type]; !ok {
			return false
		}
	}
	if s.stage != StageAll && s.stage != env.Stage {
		return false
	}
	if broadcast {
		return true
	}
	return s.modelID == "" || s.modelID == env.ModelID
}

// Cancel deregisters the subscription. Idempotent.
func (s *feedSub) Cancel() {
	if s.cancelled.Swap(true) {
		return
	}
	s.hub.removeFeedSub(s)
}

type modelSub struct {
	hub       *Hub
	modelID   string
	cancelled atomic.Bool
}

// Cancel deregisters the model. Idempotent.
func (s *modelSub) Cancel() {
	if s.cancelled.Swap(true) {
		return
	}
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	delete(s.hub.models, s.modelID)
}

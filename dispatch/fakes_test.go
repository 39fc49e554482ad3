package dispatch

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/reflux-go/reflux/router"
)

// fakeRouter is an in-package router double. Tests deliver envelopes by
// hand, so a single event can be observed at exactly one stage.
type fakeRouter struct {
	mu               sync.Mutex
	subs             []*fakeFeedSub
	models           map[string]router.Model
	calls            []routedCall
	publishErr       error
	panicNextPublish bool
}

type routedCall struct {
	ModelID   string
	Type      string
	Payload   any
	Broadcast bool
}

func newFakeRouter() *fakeRouter {
	return &fakeRouter{models: make(map[string]router.Model)}
}

func (r *fakeRouter) ObserveEventsOn(modelID string, m router.Model) router.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[modelID] = m
	return &fakeModelSub{r: r, modelID: modelID}
}

func (r *fakeRouter) Events(types []string, modelID string, stage router.Stage) router.Feed {
	typeSet := make(map[string]struct{}, len(types))
	for _, t := range types {
		typeSet[t] = struct{}{}
	}
	return &fakeFeed{r: r, types: typeSet, modelID: modelID, stage: stage}
}

func (r *fakeRouter) Publish(modelID, eventType string, payload any) error {
	return r.record(routedCall{ModelID: modelID, Type: eventType, Payload: payload})
}

func (r *fakeRouter) Broadcast(eventType string, payload any) error {
	return r.record(routedCall{Type: eventType, Payload: payload, Broadcast: true})
}

func (r *fakeRouter) record(c routedCall) error {
	r.mu.Lock()
	if r.panicNextPublish {
		r.panicNextPublish = false
		r.mu.Unlock()
		panic("router blew up")
	}
	r.calls = append(r.calls, c)
	err := r.publishErr
	r.mu.Unlock()
	return err
}

// Deliver pushes one envelope to every matching live subscription.
func (r *fakeRouter) Deliver(env router.Envelope) {
	r.mu.Lock()
	subs := make([]*fakeFeedSub, len(r.subs))
	copy(subs, r.subs)
	r.mu.Unlock()

	for _, s := range subs {
		if s.cancelled.Load() || !s.matches(env) {
			continue
		}
		s.fn(env)
	}
}

func (r *fakeRouter) routed() []routedCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]routedCall, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *fakeRouter) subCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	live := 0
	for _, s := range r.subs {
		if !s.cancelled.Load() {
			live++
		}
	}
	return live
}

type fakeFeed struct {
	r       *fakeRouter
	types   map[string]struct{}
	modelID string
	stage   router.Stage
}

func (f *fakeFeed) Subscribe(fn func(router.Envelope)) router.Subscription {
	s := &fakeFeedSub{types: f.types, modelID: f.modelID, stage: f.stage, fn: fn}
	f.r.mu.Lock()
	f.r.subs = append(f.r.subs, s)
	f.r.mu.Unlock()
	return s
}

type fakeFeedSub struct {
	types     map[string]struct{}
	modelID   string
	stage     router.Stage
	fn        func(router.Envelope)
	cancelled atomic.Bool
}

func (s *fakeFeedSub) matches(env router.Envelope) bool {
	if len(s.types) > 0 {
		if _, ok := s.types[env.Type]; !ok {
			return false
		}
	}
	if s.stage != router.StageAll && s.stage != env.Stage {
		return false
	}
	return s.modelID == "" || s.modelID == env.ModelID
}

func (s *fakeFeedSub) Cancel() { s.cancelled.Store(true) }

type fakeModelSub struct {
	r       *fakeRouter
	modelID string
}

func (s *fakeModelSub) Cancel() {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	delete(s.r.models, s.modelID)
}

// recordSink captures devtools traffic.
type recordSink struct {
	mu         sync.Mutex
	connects   []string
	sends      []sinkSend
	closes     int
	connectErr error
}

type sinkSend struct {
	Event   string
	State   map[string]any
	ModelID string
}

func (s *recordSink) Connect(modelID, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connects = append(s.connects, modelID+"/"+label)
	return s.connectErr
}

func (s *recordSink) Send(event string, state map[string]any, modelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = append(s.sends, sinkSend{Event: event, State: state, ModelID: modelID})
}

func (s *recordSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *recordSink) sent() []sinkSend {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sinkSend, len(s.sends))
	copy(out, s.sends)
	return out
}

func (s *recordSink) closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// fakeExternalModel is a canned ExternalModel.
type fakeExternalModel struct {
	types []string
	state any
}

func (m *fakeExternalModel) EventTypes() []string { return m.types }
func (m *fakeExternalModel) State() any           { return m.state }

func envelopeAt(eventType string, payload any, stage router.Stage, modelID string) router.Envelope {
	return router.Envelope{
		ID:      "evt-1",
		Seq:     1,
		Type:    eventType,
		Event:   payload,
		Stage:   stage,
		ModelID: modelID,
		Ctx:     context.Background(),
	}
}

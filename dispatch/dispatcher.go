package dispatch

import (
	"log/slog"
	"sync/atomic"

	"github.com/reflux-go/reflux/devtools"
	"github.com/reflux-go/reflux/draft"
	"github.com/reflux-go/reflux/router"
	"github.com/reflux-go/reflux/store"
)

// Dispatcher owns one model's store and reduces routed events into it.
//
// Construct with New, wire with Initialize (exactly once), tear down with
// Dispose or by delivering EventDispose. All registration happens at
// construction; the lookup tables are read-only afterward.
type Dispatcher struct {
	rt  router.Router
	st  *store.Store
	log *slog.Logger

	sink  devtools.Sink
	label string

	reg       *registry
	factories []StreamFactory
	sources   []StreamSource

	pre  PreProcessor
	post PostProcessor

	initialized bool
	disposed    atomic.Bool

	modelSub router.Subscription
	feedSub  router.Subscription
	norm     *normalizer
}

// New builds a dispatcher over the given router and store.
// Configuration errors are fatal: the returned dispatcher is nil and the
// error is a *ConfigError.
func New(rt router.Router, st *store.Store, opts ...Option) (*Dispatcher, error) {
	if rt == nil {
		return nil, &ConfigError{Code: CodeMissingRouter, Message: "router is required"}
	}
	if st == nil {
		return nil, &ConfigError{Code: CodeMissingStore, Message: "store is required"}
	}
	if st.ModelID() == "" {
		return nil, &ConfigError{Code: CodeMissingModelID, Message: "store carries an empty model id"}
	}

	cfg := &config{
		logger: slog.Default(),
		sink:   devtools.NopSink{},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.preSet && cfg.pre == nil {
		return nil, &ConfigError{Code: CodeBadProcessor, Field: "pre", Message: "pre-processor is nil"}
	}
	if cfg.postSet && cfg.post == nil {
		return nil, &ConfigError{Code: CodeBadProcessor, Field: "post", Message: "post-processor is nil"}
	}
	if cfg.label == "" {
		cfg.label = st.ModelID()
	}

	reg := newRegistry()
	for _, register := range cfg.registrations {
		if err := register(reg); err != nil {
			return nil, err
		}
	}
	if err := reg.validateOwnership(); err != nil {
		return nil, err
	}

	return &Dispatcher{
		rt:        rt,
		st:        st,
		log:       cfg.logger,
		sink:      cfg.sink,
		label:     cfg.label,
		reg:       reg,
		factories: cfg.factories,
		sources:   cfg.sources,
		pre:       cfg.pre,
		post:      cfg.post,
	}, nil
}

// ModelID returns the id of the model this dispatcher serves.
func (d *Dispatcher) ModelID() string {
	return d.st.ModelID()
}

// Store returns the dispatcher's current store. Pre/post processors may
// have replaced the instance passed to New.
func (d *Dispatcher) Store() *store.Store {
	return d.st
}

// Initialize connects the dispatcher to the router and wires all
// registrations. It must be called exactly once; a second call returns
// ErrAlreadyInitialized.
func (d *Dispatcher) Initialize() error {
	if d.disposed.Load() {
		return ErrDisposed
	}
	if d.initialized {
		return ErrAlreadyInitialized
	}
	d.initialized = true

	d.modelSub = d.rt.ObserveEventsOn(d.ModelID(), d)

	if err := d.sink.Connect(d.ModelID(), d.label); err != nil {
		// The sink is a side-effect-only collaborator; a failed connect
		// is logged, never fatal.
		d.log.Warn("devtools connect failed", "model", d.ModelID(), "error", err)
	}
	d.sink.Send(devtools.InitEvent, d.st.Snapshot(), d.ModelID())

	d.norm = newNormalizer(d)

	types := append(d.reg.handlerTypes(), EventDispose)
	feed := d.rt.Events(types, d.ModelID(), router.StageAll)
	d.feedSub = feed.Subscribe(d.HandleEvent)

	d.log.Debug("dispatcher initialized",
		"model", d.ModelID(),
		"eventTypes", len(types)-1,
		"streams", len(d.factories)+len(d.sources))
	return nil
}

// HandleEvent processes one delivered envelope: stage-gated handler
// invocation, store writes, then an unconditional devtools snapshot.
//
// It is exported only for the router feed; host code should not call it.
func (d *Dispatcher) HandleEvent(env router.Envelope) {
	if d.disposed.Load() {
		return
	}
	if env.Type == EventDispose {
		d.Dispose()
		return
	}

	ev := Event{Type: env.Type, Payload: env.Event, Ctx: env.Ctx}
	for _, entry := range d.reg.entries(env.Type) {
		if entry.stage != env.Stage {
			continue
		}
		current, _ := d.st.Get(entry.slice)
		if entry.pred != nil && !entry.pred(current, ev, d.st) {
			continue
		}
		wc := draft.New(current)
		next := draft.Finalize(wc, entry.reduce(wc, ev))
		d.st.Set(entry.slice, next)
		d.log.Debug("slice reduced",
			"model", d.ModelID(),
			"event", env.Type,
			"stage", env.Stage.String(),
			"slice", entry.slice)
	}

	// Unconditional, even when no handler ran at this stage: external
	// tooling observes the wildcard stream.
	d.sink.Send(env.Type, d.st.Snapshot(), d.ModelID())
}

// Dispose cancels every held subscription and stops all processing.
// Irreversible and idempotent. Safe to call from an event callback.
func (d *Dispatcher) Dispose() {
	if d.disposed.Swap(true) {
		return
	}
	if d.feedSub != nil {
		d.feedSub.Cancel()
	}
	if d.modelSub != nil {
		d.modelSub.Cancel()
	}
	if d.norm != nil {
		d.norm.close()
	}
	if err := d.sink.Close(); err != nil {
		d.log.Warn("devtools close failed", "model", d.ModelID(), "error", err)
	}
	d.log.Debug("dispatcher disposed", "model", d.ModelID())
}

// Disposed reports whether the dispatcher has been disposed.
func (d *Dispatcher) Disposed() bool {
	return d.disposed.Load()
}

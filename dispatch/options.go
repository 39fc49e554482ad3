package dispatch

import (
	"log/slog"
	"sort"

	"github.com/reflux-go/reflux/devtools"
	"github.com/reflux-go/reflux/router"
	"github.com/reflux-go/reflux/store"
)

// PreProcessor runs before a batch of events is dispatched. A non-nil
// return replaces the dispatcher's store for the batch and onward.
type PreProcessor func(st *store.Store) *store.Store

// PostProcessor runs after a batch with the event types processed in it.
// A non-nil return replaces the dispatcher's store.
type PostProcessor func(eventTypes []string, st *store.Store) *store.Store

// Option configures a Dispatcher at construction time.
type Option func(*config)

type config struct {
	logger *slog.Logger
	sink   devtools.Sink
	label  string

	pre     PreProcessor
	preSet  bool
	post    PostProcessor
	postSet bool

	registrations []func(*registry) error
	factories     []StreamFactory
	sources       []StreamSource
}

// WithLogger sets the dispatcher's logger. Diagnostics are
// non-authoritative; disabling them has no functional impact.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDevtools sets the devtools sink. Defaults to devtools.NopSink.
func WithDevtools(sink devtools.Sink) Option {
	return func(c *config) {
		if sink != nil {
			c.sink = sink
		}
	}
}

// WithLabel sets the label reported to the devtools sink at connect time.
// Defaults to the model id.
func WithLabel(label string) Option {
	return func(c *config) {
		c.label = label
	}
}

// WithPreProcessor sets the batch pre-processor.
func WithPreProcessor(p PreProcessor) Option {
	return func(c *config) {
		c.pre = p
		c.preSet = true
	}
}

// WithPostProcessor sets the batch post-processor.
func WithPostProcessor(p PostProcessor) Option {
	return func(c *config) {
		c.post = p
		c.postSet = true
	}
}

// WithHandlerMap registers one reducer per event-type key for a slice.
// Keys may contain comma synonyms. Stage zero defaults to StageNormal.
// Keys are registered in sorted order so entry order for an event type is
// stable across runs even when synonym keys overlap.
func WithHandlerMap(slice string, stage router.Stage, events map[string]Reducer) Option {
	keys := make([]string, 0, len(events))
	for k := range events {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return func(c *config) {
		c.registrations = append(c.registrations, func(r *registry) error {
			for _, eventKey := range keys {
				if err := r.addHandler(eventKey, slice, stage, nil, events[eventKey]); err != nil {
					return err
				}
			}
			return nil
		})
	}
}

// WithHandlers registers explicit handler specs for a slice.
func WithHandlers(slice string, specs ...HandlerSpec) Option {
	return func(c *config) {
		c.registrations = append(c.registrations, func(r *registry) error {
			for _, spec := range specs {
				if err := r.addHandler(spec.EventType, slice, spec.Stage, spec.Predicate, spec.Reduce); err != nil {
					return err
				}
			}
			return nil
		})
	}
}

// WithHandlerSource registers every spec a HandlerSource declares for a
// slice.
func WithHandlerSource(slice string, src HandlerSource) Option {
	return func(c *config) {
		c.registrations = append(c.registrations, func(r *registry) error {
			if src == nil {
				return &ConfigError{Code: CodeBadRegistration, Field: slice, Message: "handler source is nil"}
			}
			for _, spec := range src.EventHandlers() {
				if err := r.addHandler(spec.EventType, slice, spec.Stage, spec.Predicate, spec.Reduce); err != nil {
					return err
				}
			}
			return nil
		})
	}
}

// WithExternalModel registers an external model for a slice. The model's
// computed state is synced into the slice at the final stage of each of
// its event types.
func WithExternalModel(slice string, m ExternalModel) Option {
	return func(c *config) {
		c.registrations = append(c.registrations, func(r *registry) error {
			return r.addModel(slice, m)
		})
	}
}

// WithStream registers an output-event stream factory.
func WithStream(f StreamFactory) Option {
	return func(c *config) {
		if f != nil {
			c.factories = append(c.factories, f)
		}
	}
}

// WithStreamSource registers a declared-routes stream source.
func WithStreamSource(s StreamSource) Option {
	return func(c *config) {
		if s != nil {
			c.sources = append(c.sources, s)
		}
	}
}

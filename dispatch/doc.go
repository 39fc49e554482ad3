// Package dispatch implements the per-model event dispatcher and
// state-reducer engine.
//
// One Dispatcher owns one store.Store and is registered with a router
// under the store's model id. Three registration sources feed a single
// lookup table keyed by event type:
//
//   - handler maps: event type -> reducer for one slice, with comma
//     synonym keys registering one reducer under several types
//   - handler specs: explicit {event type, stage, predicate, reducer}
//     tuples, supplied directly or through a HandlerSource
//   - external models: self-contained state machines whose computed state
//     is pulled into the store only at the final observation stage
//
// Reducers receive a copy-on-write draft and either mutate it or return a
// brand-new value; an untouched draft leaves the stored reference
// unchanged. Handlers for one event type run strictly in registration
// order, and later handlers observe earlier writes through the shared
// store.
//
// Event-transformation streams, registered as factories or StreamSources,
// are merged into one fan-in. Each output event is routed back into the
// router as a broadcast or a targeted publish. A stream completing or an
// output event panicking is logged without disturbing sibling streams.
//
// Single-threaded model: the router delivers envelopes synchronously and
// the store has exactly one writer. The stream fan-in is the only
// multi-goroutine region; disposal closes it.
package dispatch

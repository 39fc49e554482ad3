// Package store holds the named state slices of one model.
//
// A Store is exclusively owned by a single dispatcher. All writes go through
// that dispatcher's event loop, so the Store itself carries no locking.
// External readers get a point-in-time view via Snapshot.
package store

import (
	"fmt"
	"sort"
)

// Store maps slice names to opaque state values for one model.
//
// The model id is mandatory and immutable. Slice values are replaced
// wholesale on every successful reduction; the Store never mutates a
// slice value in place.
type Store struct {
	modelID string
	slices  map[string]any
}

// New creates a Store for the given model id with the initial slices.
// The initial map is copied; the caller's map is not retained.
// An empty model id is a configuration error.
func New(modelID string, initial map[string]any) (*Store, error) {
	if modelID == "" {
		return nil, fmt.Errorf("store: model id must not be empty")
	}
	slices := make(map[string]any, len(initial))
	for name, value := range initial {
		slices[name] = value
	}
	return &Store{modelID: modelID, slices: slices}, nil
}

// ModelID returns the id of the model owning this store.
func (s *Store) ModelID() string {
	return s.modelID
}

// Get returns the value of the named slice.
// The second return reports whether the slice exists.
func (s *Store) Get(name string) (any, bool) {
	v, ok := s.slices[name]
	return v, ok
}

// Set replaces the value of the named slice.
// Only the owning dispatcher may call Set.
func (s *Store) Set(name string, value any) {
	s.slices[name] = value
}

// Names returns the slice names in sorted order.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.slices))
	for name := range s.slices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of slices.
func (s *Store) Len() int {
	return len(s.slices)
}

// Snapshot returns a shallow copy of all slices.
// Slice values are shared with the store; they are replaced, never
// mutated, so the snapshot is stable for reading.
func (s *Store) Snapshot() map[string]any {
	snap := make(map[string]any, len(s.slices))
	for name, value := range s.slices {
		snap[name] = value
	}
	return snap
}

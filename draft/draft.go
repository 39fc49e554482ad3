// Package draft implements the copy-on-write working copy handed to
// reducers.
//
// A Draft wraps one slice value. Reads pass through to the original value
// until the first write, which clones only the maps along the written path.
// If a reducer never writes, Finalize returns the original reference
// unchanged, so a no-op reduction is observable as reference identity at
// the store boundary.
package draft

import "fmt"

// TypeError reports a write through a value that is not a map.
type TypeError struct {
	Op  string
	Key string
}

// Error implements the error interface.
func (e *TypeError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("draft: %s: value at %q is not a map", e.Op, e.Key)
	}
	return fmt.Sprintf("draft: %s: slice value is not a map", e.Op)
}

// Draft is a mutable working copy of one state slice.
// The zero value is not usable; construct with New.
type Draft struct {
	base    any
	work    any
	touched bool
}

// New creates a draft over the given slice value.
// A nil base behaves as an empty map for keyed writes.
func New(base any) *Draft {
	return &Draft{base: base, work: base}
}

// Value returns the current working value.
func (d *Draft) Value() any {
	return d.work
}

// Touched reports whether the draft has been written to.
func (d *Draft) Touched() bool {
	return d.touched
}

// Replace swaps the whole working value. The draft counts as touched even
// if the new value equals the base; callers wanting referential stability
// should simply not write.
func (d *Draft) Replace(v any) {
	d.work = v
	d.touched = true
}

// Get returns the value under key on a map-shaped slice, or nil.
func (d *Draft) Get(key string) any {
	m, ok := d.work.(map[string]any)
	if !ok {
		return nil
	}
	return m[key]
}

// GetPath walks nested maps and returns the value at the path, or nil if
// any step is missing or not a map.
func (d *Draft) GetPath(path ...string) any {
	cur := d.work
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}

// Set writes key on a map-shaped slice, cloning the root map on the first
// write.
func (d *Draft) Set(key string, v any) error {
	root, err := d.writableRoot("Set")
	if err != nil {
		return err
	}
	root[key] = v
	return nil
}

// Delete removes key from a map-shaped slice, cloning the root map on the
// first write.
func (d *Draft) Delete(key string) error {
	root, err := d.writableRoot("Delete")
	if err != nil {
		return err
	}
	delete(root, key)
	return nil
}

// SetPath writes v at the nested path, cloning only the maps along the
// path. Maps missing along the path are created. An empty path replaces
// the whole value.
func (d *Draft) SetPath(v any, path ...string) error {
	if len(path) == 0 {
		d.Replace(v)
		return nil
	}
	root, err := d.writableRoot("SetPath")
	if err != nil {
		return err
	}
	m := root
	for _, key := range path[:len(path)-1] {
		child, present := m[key]
		if !present || child == nil {
			next := map[string]any{}
			m[key] = next
			m = next
			continue
		}
		cm, ok := child.(map[string]any)
		if !ok {
			return &TypeError{Op: "SetPath", Key: key}
		}
		clone := make(map[string]any, len(cm)+1)
		for k, val := range cm {
			clone[k] = val
		}
		m[key] = clone
		m = clone
	}
	m[path[len(path)-1]] = v
	return nil
}

// writableRoot returns the root map of the working value, cloning the base
// on the first write.
func (d *Draft) writableRoot(op string) (map[string]any, error) {
	if d.touched {
		m, ok := d.work.(map[string]any)
		if !ok {
			return nil, &TypeError{Op: op}
		}
		return m, nil
	}
	if d.work == nil {
		clone := map[string]any{}
		d.work = clone
		d.touched = true
		return clone, nil
	}
	m, ok := d.work.(map[string]any)
	if !ok {
		return nil, &TypeError{Op: op}
	}
	clone := make(map[string]any, len(m)+1)
	for k, v := range m {
		clone[k] = v
	}
	d.work = clone
	d.touched = true
	return clone, nil
}

// Finalize produces the next slice value from a finished reduction.
// A non-nil returned value wins; otherwise the draft result is used if the
// draft was touched; otherwise the original reference is returned
// unchanged.
func Finalize(d *Draft, returned any) any {
	if returned != nil {
		return returned
	}
	if d.touched {
		return d.work
	}
	return d.base
}

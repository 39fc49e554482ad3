package harness

import (
	"fmt"
	"reflect"

	"github.com/reflux-go/reflux/dispatch"
	"github.com/reflux-go/reflux/draft"
	"github.com/reflux-go/reflux/store"
)

// buildReducer resolves a named reducer definition into a dispatch.Reducer.
//
// Built-in reducers:
//
//	set        args: key, value          slice[key] = value
//	set_payload args: key[, from]        slice[key] = payload (or payload[from])
//	increment  args: key[, by]           slice[key] += by (default 1)
//	clear      args: key                 slice[key] = ""
//	replace    args: -                   slice = payload
//	merge      args: -                   payload map merged into slice
func buildReducer(name string, args map[string]any) (dispatch.Reducer, error) {
	key, _ := args["key"].(string)
	switch name {
	case "set":
		if key == "" {
			return nil, fmt.Errorf("reducer set: args.key is required")
		}
		value := args["value"]
		return func(d *draft.Draft, _ dispatch.Event) any {
			d.Set(key, value)
			return nil
		}, nil

	case "set_payload":
		if key == "" {
			return nil, fmt.Errorf("reducer set_payload: args.key is required")
		}
		from, _ := args["from"].(string)
		return func(d *draft.Draft, ev dispatch.Event) any {
			value := ev.Payload
			if from != "" {
				m, _ := ev.Payload.(map[string]any)
				value = m[from]
			}
			d.Set(key, value)
			return nil
		}, nil

	case "increment":
		if key == "" {
			return nil, fmt.Errorf("reducer increment: args.key is required")
		}
		by := 1
		if v, ok := args["by"].(int); ok {
			by = v
		}
		return func(d *draft.Draft, _ dispatch.Event) any {
			d.Set(key, addNumber(d.Get(key), by))
			return nil
		}, nil

	case "clear":
		if key == "" {
			return nil, fmt.Errorf("reducer clear: args.key is required")
		}
		return func(d *draft.Draft, _ dispatch.Event) any {
			d.Set(key, "")
			return nil
		}, nil

	case "replace":
		return func(_ *draft.Draft, ev dispatch.Event) any {
			return ev.Payload
		}, nil

	case "merge":
		return func(d *draft.Draft, ev dispatch.Event) any {
			m, ok := ev.Payload.(map[string]any)
			if !ok {
				return nil
			}
			for k, v := range m {
				d.Set(k, v)
			}
			return nil
		}, nil

	default:
		return nil, fmt.Errorf("unknown reducer %q", name)
	}
}

// addNumber adds by to a numeric slice value, treating a missing value as
// zero.
func addNumber(current any, by int) any {
	switch v := current.(type) {
	case nil:
		return by
	case int:
		return v + by
	case int64:
		return v + int64(by)
	case float64:
		return v + float64(by)
	default:
		return current
	}
}

// buildPredicate resolves an unless clause into a dispatch.Predicate, or
// nil when the clause is absent.
func buildPredicate(unless *UnlessDef) dispatch.Predicate {
	if unless == nil {
		return nil
	}
	return func(current any, _ dispatch.Event, _ *store.Store) bool {
		m, ok := current.(map[string]any)
		if !ok {
			return true
		}
		return !reflect.DeepEqual(m[unless.Key], unless.Equals)
	}
}

// modelStub is an external model with fixed computed state.
type modelStub struct {
	events []string
	state  any
}

func (m *modelStub) EventTypes() []string { return m.events }
func (m *modelStub) State() any           { return m.state }

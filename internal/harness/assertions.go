package harness

import (
	"bytes"
	"fmt"

	"github.com/reflux-go/reflux/internal/canonical"
)

// evaluate checks every assertion and returns one failure message per
// unmet assertion.
func evaluate(sc *Scenario, result *Result) []string {
	var failures []string
	for i, a := range sc.Assertions {
		var err error
		switch a.Type {
		case AssertFinalState:
			err = assertFinalState(a, result.Final)
		case AssertTraceContains:
			err = assertTraceContains(a, result.Trace)
		case AssertTraceCount:
			err = assertTraceCount(a, result.Trace)
		case AssertTraceOrder:
			err = assertTraceOrder(a, result.Trace)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return failures
}

func assertFinalState(a Assertion, final map[string]any) error {
	slice, ok := final[a.Slice]
	if !ok {
		return fmt.Errorf("slice %q not in final store", a.Slice)
	}
	m, ok := slice.(map[string]any)
	if !ok {
		// A non-map slice is compared wholesale against a single-key
		// expect of the form {value: ...}.
		if want, present := a.Expect["value"]; present {
			if !canonicalEqual(slice, want) {
				return fmt.Errorf("slice %q = %v, want %v", a.Slice, slice, want)
			}
			return nil
		}
		return fmt.Errorf("slice %q is not a map", a.Slice)
	}
	for key, want := range a.Expect {
		if !canonicalEqual(m[key], want) {
			return fmt.Errorf("slice %q key %q = %v, want %v", a.Slice, key, m[key], want)
		}
	}
	return nil
}

func assertTraceContains(a Assertion, trace []TraceEvent) error {
	for _, te := range trace {
		if te.Event == a.Event {
			return nil
		}
	}
	return fmt.Errorf("event %q not in trace", a.Event)
}

func assertTraceCount(a Assertion, trace []TraceEvent) error {
	count := 0
	for _, te := range trace {
		if te.Event == a.Event {
			count++
		}
	}
	if count != a.Count {
		return fmt.Errorf("event %q appears %d times, want %d", a.Event, count, a.Count)
	}
	return nil
}

func assertTraceOrder(a Assertion, trace []TraceEvent) error {
	next := 0
	for _, te := range trace {
		if next < len(a.Events) && te.Event == a.Events[next] {
			next++
		}
	}
	if next != len(a.Events) {
		return fmt.Errorf("trace does not contain %v in order (matched %d)", a.Events, next)
	}
	return nil
}

// canonicalEqual compares values through canonical encoding, so YAML and
// store representations of the same number or map compare equal.
func canonicalEqual(got, want any) bool {
	g, err := canonical.Marshal(got)
	if err != nil {
		return false
	}
	w, err := canonical.Marshal(want)
	if err != nil {
		return false
	}
	return bytes.Equal(g, w)
}

package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/reflux-go/reflux/internal/canonical"
)

// RunWithGolden executes a scenario and compares its canonical trace
// against testdata/<scenario name>.golden.
//
// Regenerate golden files with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, sc *Scenario) *Result {
	t.Helper()

	result, err := Run(sc)
	if err != nil {
		t.Fatalf("scenario %s: %v", sc.Name, err)
	}

	trace := make([]any, len(result.Trace))
	for i, te := range result.Trace {
		trace[i] = map[string]any{
			"seq":   te.Seq,
			"event": te.Event,
			"model": te.ModelID,
			"store": te.Store,
		}
	}
	snapshot := map[string]any{
		"scenario": sc.Name,
		"trace":    trace,
	}

	data, err := canonical.Marshal(snapshot)
	if err != nil {
		t.Fatalf("scenario %s: encode trace: %v", sc.Name, err)
	}

	g := goldie.New(t)
	g.Assert(t, sc.Name, data)
	return result
}

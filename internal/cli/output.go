package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/reflux-go/reflux/internal/harness"
)

// replayOutput is the JSON shape of a replay result.
type replayOutput struct {
	Scenario string             `json:"scenario"`
	Pass     bool               `json:"pass"`
	Failures []string           `json:"failures,omitempty"`
	Final    map[string]any     `json:"final"`
	Trace    []replayTraceEvent `json:"trace"`
}

type replayTraceEvent struct {
	Seq   int64          `json:"seq"`
	Event string         `json:"event"`
	Model string         `json:"model"`
	Store map[string]any `json:"store"`
}

// printResult writes a replay result in the selected format.
func printResult(w io.Writer, format string, sc *harness.Scenario, result *harness.Result) error {
	if format == "json" {
		out := replayOutput{
			Scenario: sc.Name,
			Pass:     result.Pass,
			Failures: result.Failures,
			Final:    result.Final,
		}
		for _, te := range result.Trace {
			out.Trace = append(out.Trace, replayTraceEvent{
				Seq:   te.Seq,
				Event: te.Event,
				Model: te.ModelID,
				Store: te.Store,
			})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintf(w, "scenario: %s\n", sc.Name)
	if result.Pass {
		fmt.Fprintln(w, "result: PASS")
	} else {
		fmt.Fprintln(w, "result: FAIL")
		for _, f := range result.Failures {
			fmt.Fprintf(w, "  - %s\n", f)
		}
	}
	fmt.Fprintf(w, "trace: %d event(s)\n", len(result.Trace))
	for _, te := range result.Trace {
		fmt.Fprintf(w, "  %4d  %-24s %s\n", te.Seq, te.Event, te.ModelID)
	}
	fmt.Fprintln(w, "final store:")
	names := make([]string, 0, len(result.Final))
	for name := range result.Final {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s: %v\n", name, result.Final[name])
	}
	return nil
}

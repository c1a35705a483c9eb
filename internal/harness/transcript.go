package harness

import (
	"fmt"
	"strings"
)

// Outcome is the derived fate of one submitted command.
type Outcome string

const (
	// OutcomeCompleted means the command ran to completion, successfully or not.
	OutcomeCompleted Outcome = "completed"
	// OutcomeSkippedRisk means the confirmation gate declined a risky command.
	OutcomeSkippedRisk Outcome = "skipped-risk"
	// OutcomeSkippedPlaceholder means the command carried an unresolved placeholder.
	OutcomeSkippedPlaceholder Outcome = "skipped-placeholder"
	// OutcomeFailed means the shell died while the command was in flight.
	OutcomeFailed Outcome = "failed"
	// OutcomeNotRun means the session died before the command was submitted.
	OutcomeNotRun Outcome = "not-run"
)

// Result is the per-command execution record.
type Result struct {
	Command  string
	Output   string
	ExitCode int
	Outcome  Outcome
}

// Transcript accumulates results in submission order and renders them into
// the single aggregated report handed back to the planning loop.
type Transcript struct {
	results []Result
}

// Append records one result. Order of appends equals submission order.
func (t *Transcript) Append(result Result) {
	if t == nil {
		return
	}
	t.results = append(t.results, result)
}

// Results returns a copy of the accumulated records.
func (t *Transcript) Results() []Result {
	if t == nil {
		return nil
	}
	results := make([]Result, len(t.results))
	copy(results, t.results)
	return results
}

// Len reports the number of recorded commands.
func (t *Transcript) Len() int {
	if t == nil {
		return 0
	}
	return len(t.results)
}

// Render produces the transcript text. Each entry opens with the literal
// command it ran (or its skip reason), followed by captured output and, for
// non-zero exits, an explicit error annotation with the numeric code.
func (t *Transcript) Render() string {
	if t == nil {
		return ""
	}
	entries := make([]string, 0, len(t.results))
	for _, result := range t.results {
		entries = append(entries, renderResult(result))
	}
	return strings.Join(entries, "\n")
}

func renderResult(result Result) string {
	var entry strings.Builder
	fmt.Fprintf(&entry, "$ %s\n", result.Command)

	switch result.Outcome {
	case OutcomeSkippedPlaceholder:
		entry.WriteString("[Skipped placeholder]")
	case OutcomeSkippedRisk:
		entry.WriteString("[Skipped]")
	case OutcomeNotRun:
		entry.WriteString("[Not run] session terminated before execution")
	default:
		entry.WriteString(result.Output)
		if result.Outcome == OutcomeFailed {
			entry.WriteString("\n[Error] Shell session terminated while command was running\n")
		} else if result.ExitCode != 0 {
			fmt.Fprintf(&entry, "\n[Error] Command failed with code %d\n", result.ExitCode)
		}
	}
	return entry.String()
}

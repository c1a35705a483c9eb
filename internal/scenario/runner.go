package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/shellmate/shellmate/internal/harness"
	"github.com/shellmate/shellmate/internal/planner"
)

// Planner produces a command plan for a conversation.
type Planner interface {
	PlanCommands(ctx context.Context, conversation *planner.Conversation) (planner.Plan, error)
}

// Executor runs an ordered command sequence and returns its transcript.
type Executor interface {
	Run(ctx context.Context, commands []string) (*harness.Transcript, error)
}

// RunnerOptions configures a scenario batch run.
type RunnerOptions struct {
	// Planner turns scenario tasks into command plans. Required.
	Planner Planner
	// Executor runs the planned commands. Required.
	Executor Executor
	// Output receives the human-readable batch report. May be nil.
	Output io.Writer
	// Logger receives structured batch logs. May be nil.
	Logger *log.Logger
}

// Runner feeds scenarios through the planner and executor one at a time.
type Runner struct {
	opts RunnerOptions
}

// NewRunner validates options and builds a scenario runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Planner == nil {
		return nil, errors.New("a planner is required")
	}
	if opts.Executor == nil {
		return nil, errors.New("an executor is required")
	}
	return &Runner{opts: opts}, nil
}

// Run works through the scenarios in order. Each scenario gets a fresh
// conversation and its own shell session; a planner or shell failure is
// reported in the batch output and does not stop the remaining scenarios.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) error {
	if r == nil {
		return errors.New("runner is nil")
	}

	for index, entry := range scenarios {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.printf("\n=== Scenario %d: %s ===\n", index+1, entry.Description)
		if r.opts.Logger != nil {
			r.opts.Logger.With("scenario", entry.Number).Info("scenario started")
		}

		conversation := planner.NewConversation(planner.SystemPrompt)
		conversation.AddUser("Investigate and resolve: " + entry.Description)

		plan, err := r.opts.Planner.PlanCommands(ctx, conversation)
		if err != nil {
			r.printf("[Agent error] %v\n", err)
			continue
		}
		r.printf("[AI] %s\n", plan.Explanation)

		transcript, err := r.opts.Executor.Run(ctx, plan.Commands)
		if err != nil {
			r.printf("[Agent error] %v\n", err)
			continue
		}
		if rendered := strings.TrimSpace(transcript.Render()); rendered != "" {
			r.printf("%s\n", rendered)
		}
	}
	return nil
}

func (r *Runner) printf(format string, args ...any) {
	if r.opts.Output == nil {
		return
	}
	fmt.Fprintf(r.opts.Output, format, args...)
}

package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/shellmate/shellmate/internal/risk"
)

// placeholderPattern matches bracketed identifiers the planner left for the
// caller to fill in, e.g. <container-name>.
var placeholderPattern = regexp.MustCompile(`<[\w-]+>`)

const riskPrompt = "This looks privileged or risky. Run it anyway?"

// Confirmer is the interactive approval step consulted for gated commands.
type Confirmer interface {
	Confirm(prompt string) bool
}

// RunnerOptions configures a command sequence run.
type RunnerOptions struct {
	// SafeMode enables confirmation gating for privileged or risky commands.
	SafeMode bool
	// Classifier flags destructive commands. Required when SafeMode is set.
	Classifier *risk.Classifier
	// Gate is consulted for flagged commands. Required when SafeMode is set.
	Gate Confirmer
	// Session configures the underlying shell session.
	Session SessionOptions
	// Operator receives execution progress markers. May be nil.
	Operator io.Writer
	// Logger receives structured run logs. May be nil.
	Logger *log.Logger
}

// Runner executes ordered command sequences against one shell session per run.
type Runner struct {
	opts RunnerOptions
}

// NewRunner validates options and builds a runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.SafeMode {
		if opts.Classifier == nil {
			return nil, errors.New("safe mode requires a risk classifier")
		}
		if opts.Gate == nil {
			return nil, errors.New("safe mode requires a confirmation gate")
		}
	}
	return &Runner{opts: opts}, nil
}

// Run normalizes and executes the command sequence in order inside one fresh
// shell session, so directory changes and exported variables persist across
// commands. Every command's fate is recorded in the returned transcript: one
// entry per input command, in submission order, even when the shell dies
// mid-sequence. A non-zero exit does not stop the sequence.
func (r *Runner) Run(ctx context.Context, commands []string) (*Transcript, error) {
	if r == nil {
		return nil, errors.New("runner is nil")
	}

	transcript := &Transcript{}
	if len(commands) == 0 {
		return transcript, nil
	}

	session, err := StartSession(ctx, r.opts.Session)
	if err != nil {
		return nil, fmt.Errorf("start shell session: %w", err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil && r.opts.Logger != nil {
			r.opts.Logger.With("session_id", session.ID()).Warn("session close", "error", closeErr)
		}
	}()

	for index, raw := range commands {
		cmd := Normalize(raw)

		// Placeholder check runs before the risk check: a command the planner
		// left incomplete must never reach the gate or the shell.
		if placeholderPattern.MatchString(cmd) && !strings.Contains(cmd, "<<") {
			r.operatorf("[Skipped placeholder] %s\n", cmd)
			r.logSkip(session, cmd, OutcomeSkippedPlaceholder)
			transcript.Append(Result{Command: cmd, Outcome: OutcomeSkippedPlaceholder})
			continue
		}

		if strings.Contains(raw, "\n") {
			r.operatorf("[Executing]\n(multiline command)\n")
		} else {
			r.operatorf("[Executing] %s\n", cmd)
		}

		if r.gated(cmd) && !r.opts.Gate.Confirm(riskPrompt) {
			r.operatorf("[Skipped]\n")
			r.logSkip(session, cmd, OutcomeSkippedRisk)
			transcript.Append(Result{Command: cmd, Outcome: OutcomeSkippedRisk})
			continue
		}

		result, submitErr := session.Submit(ctx, cmd)
		if submitErr != nil {
			transcript.Append(Result{
				Command: cmd,
				Output:  result.Output,
				Outcome: OutcomeFailed,
			})
			r.operatorf("[Error] Shell session terminated\n")
			if r.opts.Logger != nil {
				r.opts.Logger.With("session_id", session.ID(), "command", cmd).
					Error("shell session died mid-command", "error", submitErr)
			}
			// The session is gone; report the remainder instead of silently
			// dropping it, and never resurrect the shell mid-sequence.
			for _, rest := range commands[index+1:] {
				transcript.Append(Result{Command: Normalize(rest), Outcome: OutcomeNotRun})
			}
			break
		}

		if result.ExitCode != 0 {
			r.operatorf("[Error] Command failed with code %d\n", result.ExitCode)
		}
		transcript.Append(Result{
			Command:  cmd,
			Output:   result.Output,
			ExitCode: result.ExitCode,
			Outcome:  OutcomeCompleted,
		})
	}

	return transcript, nil
}

// gated reports whether the command needs interactive confirmation: safe mode
// enabled and the command is either privilege-escalating or classifier-flagged.
func (r *Runner) gated(cmd string) bool {
	if !r.opts.SafeMode {
		return false
	}
	if strings.HasPrefix(cmd, "sudo") {
		return true
	}
	return r.opts.Classifier.Match(cmd).Risky
}

func (r *Runner) operatorf(format string, args ...any) {
	if r.opts.Operator == nil {
		return
	}
	fmt.Fprintf(r.opts.Operator, format, args...)
}

func (r *Runner) logSkip(session *Session, cmd string, outcome Outcome) {
	if r.opts.Logger == nil {
		return
	}
	r.opts.Logger.With("session_id", session.ID(), "command", cmd, "outcome", string(outcome)).
		Info("command skipped")
}

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/shellmate/shellmate/internal/config"
	"github.com/shellmate/shellmate/internal/events"
	"github.com/shellmate/shellmate/internal/gate"
	"github.com/shellmate/shellmate/internal/harness"
	"github.com/shellmate/shellmate/internal/planner"
	"github.com/shellmate/shellmate/internal/risk"
	"github.com/spf13/cobra"
)

// taskPlanner is the planning surface the agent loop needs.
type taskPlanner interface {
	PlanCommands(ctx context.Context, conversation *planner.Conversation) (planner.Plan, error)
	AssessCompletion(ctx context.Context, conversation *planner.Conversation) (planner.Assessment, error)
}

// commandRunner executes one planned command sequence in a fresh shell session.
type commandRunner interface {
	Run(ctx context.Context, commands []string) (*harness.Transcript, error)
}

func newRunCommand(cfg *config.Config, logger *log.Logger) *cobra.Command {
	var safeMode bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the interactive agent loop",
		RunE: func(cmd *cobra.Command, _ []string) error {
			apiKey := os.Getenv("OPENAI_API_KEY")
			if strings.TrimSpace(apiKey) == "" {
				return errors.New("OPENAI_API_KEY is not set; export it and rerun")
			}

			client, err := planner.NewClient(planner.Options{
				BaseURL:        cfg.BaseURL,
				APIKey:         apiKey,
				Model:          cfg.Model,
				Temperature:    cfg.Temperature,
				RequestTimeout: cfg.RequestTimeout,
				Logger:         logger,
			})
			if err != nil {
				return fmt.Errorf("build planner client: %w", err)
			}

			runner, err := buildHarnessRunner(cfg, logger, safeMode, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}

			loop := &agentLoop{
				planner: client,
				runner:  runner,
				input:   bufio.NewReader(cmd.InOrStdin()),
				output:  cmd.OutOrStdout(),
				logger:  logger,
			}
			return loop.run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&safeMode, "safe-mode", cfg != nil && cfg.SafeMode, "require confirmation before privileged or risky commands")
	return cmd
}

// buildHarnessRunner wires the classifier, confirmation gate, event bus, and
// session options into one command runner. Output lines mirror to stdout in
// real time; the bus feeds the same lifecycle events to the run log.
func buildHarnessRunner(cfg *config.Config, logger *log.Logger, safeMode bool, input io.Reader, output io.Writer) (*harness.Runner, error) {
	classifier, err := buildClassifier(cfg)
	if err != nil {
		return nil, err
	}

	bus := events.New()
	if logger != nil {
		bus.Subscribe(events.EventTypeCommandFinished, func(event events.Event) {
			finish, ok := event.Payload.(events.CommandFinish)
			if !ok {
				return
			}
			logger.With("session_id", event.SessionID, "command", event.Command, "exit_code", finish.ExitCode).
				Info("command finished")
		})
	}

	return harness.NewRunner(harness.RunnerOptions{
		SafeMode:   safeMode,
		Classifier: classifier,
		Gate:       gate.New(input, output),
		Session: harness.SessionOptions{
			Shell:                  cfg.Shell,
			SentinelToken:          cfg.SentinelToken,
			Mirror:                 output,
			Bus:                    bus,
			Logger:                 logger,
			TerminationGracePeriod: cfg.TerminationGracePeriod,
		},
		Operator: output,
		Logger:   logger,
	})
}

func buildClassifier(cfg *config.Config) (*risk.Classifier, error) {
	signatures := risk.DefaultSignatures()
	if cfg != nil && strings.TrimSpace(cfg.SignaturesFile) != "" {
		extended, err := risk.LoadSignatures(cfg.SignaturesFile)
		if err != nil {
			return nil, fmt.Errorf("load risk signatures: %w", err)
		}
		signatures = extended
	}
	return risk.NewClassifier(signatures)
}

// agentLoop is the interactive task loop: read a task, plan commands, run
// them, feed the transcript back, and ask the model whether the task is done.
type agentLoop struct {
	planner taskPlanner
	runner  commandRunner
	input   *bufio.Reader
	output  io.Writer
	logger  *log.Logger
}

// run drives the loop until the operator types exit or quit, input reaches
// EOF, or the model judges the current task complete. The conversation
// accumulates across tasks so follow-up requests keep their context.
func (l *agentLoop) run(ctx context.Context) error {
	if l == nil {
		return errors.New("agent loop is nil")
	}

	fmt.Fprintln(l.output, "AI Agent ready. Type a task (or 'exit').")
	conversation := planner.NewConversation(planner.SystemPrompt)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprint(l.output, ">>> ")
		line, err := l.input.ReadString('\n')
		if err != nil {
			fmt.Fprintln(l.output)
			return nil
		}

		task := strings.TrimSpace(line)
		switch {
		case task == "":
			continue
		case strings.EqualFold(task, "exit"), strings.EqualFold(task, "quit"):
			return nil
		}

		if l.logger != nil {
			l.logger.With("task", task).Info("task received")
		}
		conversation.AddUser(task)

		plan, err := l.planner.PlanCommands(ctx, conversation)
		if err != nil {
			fmt.Fprintf(l.output, "[Agent error] %v\n", err)
			continue
		}
		fmt.Fprintf(l.output, "[AI] %s\n", plan.Explanation)

		transcript, err := l.runner.Run(ctx, plan.Commands)
		if err != nil {
			fmt.Fprintf(l.output, "[Agent error] %v\n", err)
			continue
		}
		if rendered := strings.TrimSpace(transcript.Render()); rendered != "" {
			conversation.AddUser(rendered)
		}

		assessment, err := l.planner.AssessCompletion(ctx, conversation)
		if err != nil {
			fmt.Fprintf(l.output, "[Agent error] %v\n", err)
			continue
		}
		if assessment.Summary != "" {
			fmt.Fprintf(l.output, "[AI] %s\n", assessment.Summary)
		}
		if assessment.Done {
			return nil
		}
	}
}

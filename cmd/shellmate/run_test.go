package main

import (
	"bufio"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shellmate/shellmate/internal/harness"
	"github.com/shellmate/shellmate/internal/planner"
)

type scriptedPlanner struct {
	plans       []planner.Plan
	planErrs    []error
	assessments []planner.Assessment
	assessErrs  []error

	planCalls   int
	assessCalls int
	recorded    [][]planner.Message
}

func (s *scriptedPlanner) PlanCommands(_ context.Context, conversation *planner.Conversation) (planner.Plan, error) {
	s.recorded = append(s.recorded, conversation.Messages())
	index := s.planCalls
	s.planCalls++
	if index < len(s.planErrs) && s.planErrs[index] != nil {
		return planner.Plan{}, s.planErrs[index]
	}
	if index < len(s.plans) {
		return s.plans[index], nil
	}
	return planner.Plan{}, errors.New("no plan scripted")
}

func (s *scriptedPlanner) AssessCompletion(_ context.Context, conversation *planner.Conversation) (planner.Assessment, error) {
	s.recorded = append(s.recorded, conversation.Messages())
	index := s.assessCalls
	s.assessCalls++
	if index < len(s.assessErrs) && s.assessErrs[index] != nil {
		return planner.Assessment{}, s.assessErrs[index]
	}
	if index < len(s.assessments) {
		return s.assessments[index], nil
	}
	return planner.Assessment{Done: true}, nil
}

type scriptedRunner struct {
	transcripts []*harness.Transcript
	err         error
	received    [][]string
}

func (s *scriptedRunner) Run(_ context.Context, commands []string) (*harness.Transcript, error) {
	s.received = append(s.received, commands)
	if s.err != nil {
		return nil, s.err
	}
	index := len(s.received) - 1
	if index < len(s.transcripts) {
		return s.transcripts[index], nil
	}
	return &harness.Transcript{}, nil
}

func newLoop(input string, plannerStub *scriptedPlanner, runnerStub *scriptedRunner) (*agentLoop, *strings.Builder) {
	var output strings.Builder
	return &agentLoop{
		planner: plannerStub,
		runner:  runnerStub,
		input:   bufio.NewReader(strings.NewReader(input)),
		output:  &output,
	}, &output
}

func TestAgentLoopExitsOnExitWord(t *testing.T) {
	t.Parallel()

	plannerStub := &scriptedPlanner{}
	loop, output := newLoop("exit\n", plannerStub, &scriptedRunner{})

	if err := loop.run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if plannerStub.planCalls != 0 {
		t.Fatalf("planner called %d times, want 0", plannerStub.planCalls)
	}
	if !strings.Contains(output.String(), "AI Agent ready.") {
		t.Fatalf("banner missing:\n%s", output.String())
	}
}

func TestAgentLoopExitsOnEOF(t *testing.T) {
	t.Parallel()

	loop, _ := newLoop("", &scriptedPlanner{}, &scriptedRunner{})
	if err := loop.run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestAgentLoopSkipsBlankTasks(t *testing.T) {
	t.Parallel()

	plannerStub := &scriptedPlanner{}
	loop, _ := newLoop("\n   \nquit\n", plannerStub, &scriptedRunner{})

	if err := loop.run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if plannerStub.planCalls != 0 {
		t.Fatalf("planner called %d times, want 0", plannerStub.planCalls)
	}
}

func TestAgentLoopRunsTaskAndStopsWhenDone(t *testing.T) {
	t.Parallel()

	transcript := &harness.Transcript{}
	transcript.Append(harness.Result{Command: "df -h", Output: "/: 42% used", Outcome: harness.OutcomeCompleted})

	plannerStub := &scriptedPlanner{
		plans:       []planner.Plan{{Explanation: "checking disk usage", Commands: []string{"df -h"}}},
		assessments: []planner.Assessment{{Done: true, Summary: "Disk usage is healthy."}},
	}
	runnerStub := &scriptedRunner{transcripts: []*harness.Transcript{transcript}}
	loop, output := newLoop("check disk space\n", plannerStub, runnerStub)

	if err := loop.run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(runnerStub.received) != 1 || runnerStub.received[0][0] != "df -h" {
		t.Fatalf("runner received %+v", runnerStub.received)
	}

	report := output.String()
	if !strings.Contains(report, "[AI] checking disk usage") {
		t.Fatalf("explanation missing:\n%s", report)
	}
	if !strings.Contains(report, "[AI] Disk usage is healthy.") {
		t.Fatalf("summary missing:\n%s", report)
	}

	// The assessment call sees the transcript as the latest user turn.
	assessMessages := plannerStub.recorded[len(plannerStub.recorded)-1]
	last := assessMessages[len(assessMessages)-1]
	if last.Role != "user" || !strings.Contains(last.Content, "/: 42% used") {
		t.Fatalf("transcript not fed back to conversation; last turn = %+v", last)
	}
}

func TestAgentLoopContinuesAfterPlannerError(t *testing.T) {
	t.Parallel()

	plannerStub := &scriptedPlanner{
		planErrs:    []error{errors.New("model unavailable"), nil},
		plans:       []planner.Plan{{}, {Explanation: "ok now", Commands: nil}},
		assessments: []planner.Assessment{{Done: true}},
	}
	loop, output := newLoop("first task\nsecond task\n", plannerStub, &scriptedRunner{})

	if err := loop.run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	report := output.String()
	if !strings.Contains(report, "[Agent error] model unavailable") {
		t.Fatalf("planner error missing:\n%s", report)
	}
	if !strings.Contains(report, "[AI] ok now") {
		t.Fatalf("second task did not run:\n%s", report)
	}
}

func TestAgentLoopContinuesAfterRunnerError(t *testing.T) {
	t.Parallel()

	plannerStub := &scriptedPlanner{
		plans: []planner.Plan{{Explanation: "try", Commands: []string{"echo hi"}}},
	}
	runnerStub := &scriptedRunner{err: errors.New("start shell session: no such shell")}
	loop, output := newLoop("task\nexit\n", plannerStub, runnerStub)

	if err := loop.run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(output.String(), "[Agent error] start shell session: no such shell") {
		t.Fatalf("runner error missing:\n%s", output.String())
	}
}

func TestAgentLoopContinuesUntilDone(t *testing.T) {
	t.Parallel()

	plannerStub := &scriptedPlanner{
		plans: []planner.Plan{
			{Explanation: "step one", Commands: nil},
			{Explanation: "step two", Commands: nil},
		},
		assessments: []planner.Assessment{
			{Done: false, Summary: "more to do"},
			{Done: true, Summary: "all done"},
		},
	}
	loop, output := newLoop("task one\ntask two\n", plannerStub, &scriptedRunner{})

	if err := loop.run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if plannerStub.planCalls != 2 {
		t.Fatalf("planner called %d times, want 2", plannerStub.planCalls)
	}
	if !strings.Contains(output.String(), "[AI] all done") {
		t.Fatalf("final summary missing:\n%s", output.String())
	}
}

func TestAgentLoopHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loop, _ := newLoop("task\n", &scriptedPlanner{}, &scriptedRunner{})
	if err := loop.run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

package harness

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/shellmate/shellmate/internal/events"
	"github.com/stretchr/testify/require"
)

func requireBash(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
}

func startTestSession(t *testing.T, opts SessionOptions) *Session {
	t.Helper()
	requireBash(t)

	if opts.Env == nil {
		// A controlled environment keeps login-shell init noise out of the
		// captured output.
		opts.Env = []string{
			"PATH=" + defaultSearchPath,
			"HOME=" + t.TempDir(),
		}
	}
	if opts.TerminationGracePeriod == 0 {
		opts.TerminationGracePeriod = 2 * time.Second
	}

	session, err := StartSession(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, session.Close())
	})
	return session
}

func TestSessionStatePersistsAcrossCommands(t *testing.T) {
	session := startTestSession(t, SessionOptions{})
	ctx := context.Background()

	_, err := session.Submit(ctx, "cd /tmp")
	require.NoError(t, err)

	result, err := session.Submit(ctx, "pwd")
	require.NoError(t, err)
	require.Equal(t, "/tmp", strings.TrimSpace(result.Output))

	_, err = session.Submit(ctx, "export SHELLMATE_TEST_VALUE=carried")
	require.NoError(t, err)

	result, err = session.Submit(ctx, "echo $SHELLMATE_TEST_VALUE")
	require.NoError(t, err)
	require.Equal(t, "carried", strings.TrimSpace(result.Output))
}

func TestSessionCapturesExitStatusAndContinues(t *testing.T) {
	session := startTestSession(t, SessionOptions{})
	ctx := context.Background()

	result, err := session.Submit(ctx, "(exit 3)")
	require.NoError(t, err)
	require.Equal(t, 3, result.ExitCode)

	result, err = session.Submit(ctx, "echo still alive")
	require.NoError(t, err)
	require.Equal(t, 0, result.ExitCode)
	require.Equal(t, "still alive", strings.TrimSpace(result.Output))
}

func TestSessionInterleavesStderrIntoOutput(t *testing.T) {
	session := startTestSession(t, SessionOptions{})

	result, err := session.Submit(context.Background(), "echo out; echo err 1>&2; echo tail")
	require.NoError(t, err)
	require.Contains(t, result.Output, "out")
	require.Contains(t, result.Output, "err")
	require.Contains(t, result.Output, "tail")
}

func TestSessionSentinelExcludedFromOutput(t *testing.T) {
	session := startTestSession(t, SessionOptions{SentinelToken: "__PROBE_DONE"})

	result, err := session.Submit(context.Background(), "echo hello")
	require.NoError(t, err)
	require.NotContains(t, result.Output, "__PROBE_DONE")
	require.Equal(t, "hello", strings.TrimSpace(result.Output))
}

func TestSessionRunsHeredocCommands(t *testing.T) {
	session := startTestSession(t, SessionOptions{})

	cmd := Normalize("cat <<EOF\nfirst line\nsecond line\nEOF")
	result, err := session.Submit(context.Background(), cmd)
	require.NoError(t, err)
	require.Equal(t, 0, result.ExitCode)
	require.Contains(t, result.Output, "first line")
	require.Contains(t, result.Output, "second line")
}

func TestSessionMirrorsOutputLines(t *testing.T) {
	var mirror strings.Builder
	session := startTestSession(t, SessionOptions{Mirror: &mirror})

	_, err := session.Submit(context.Background(), "echo mirrored")
	require.NoError(t, err)
	require.Contains(t, mirror.String(), "mirrored")
}

func TestSessionPublishesLifecycleEvents(t *testing.T) {
	requireBash(t)

	bus := events.New(WithQuietLogger())
	received := make(chan events.Event, 16)
	bus.SubscribeAll(func(event events.Event) {
		received <- event
	})

	session := startTestSession(t, SessionOptions{Bus: bus})
	_, err := session.Submit(context.Background(), "echo streamed")
	require.NoError(t, err)

	types := collectEventTypes(t, received, 3)
	require.Contains(t, types, events.EventTypeCommandStarted)
	require.Contains(t, types, events.EventTypeCommandOutputLine)
	require.Contains(t, types, events.EventTypeCommandFinished)
}

func TestSessionDeathDetectedAndSubmitFailsFast(t *testing.T) {
	session := startTestSession(t, SessionOptions{})
	ctx := context.Background()

	_, err := session.Submit(ctx, "exit 0")
	require.ErrorIs(t, err, ErrShellExited)
	require.False(t, session.Alive())

	_, err = session.Submit(ctx, "echo never runs")
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	requireBash(t)

	session, err := StartSession(context.Background(), SessionOptions{
		Env:                    []string{"PATH=" + defaultSearchPath, "HOME=" + t.TempDir()},
		TerminationGracePeriod: 2 * time.Second,
	})
	require.NoError(t, err)

	require.NoError(t, session.Close())
	require.NoError(t, session.Close())

	_, err = session.Submit(context.Background(), "echo no")
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestEnsureSearchPath(t *testing.T) {
	t.Parallel()

	withPath := ensureSearchPath([]string{"PATH=/custom/bin", "HOME=/home/x"})
	require.Equal(t, []string{"PATH=/custom/bin", "HOME=/home/x"}, withPath)

	withoutPath := ensureSearchPath([]string{"HOME=/home/x"})
	require.Contains(t, withoutPath, "PATH="+defaultSearchPath)

	emptyPath := ensureSearchPath([]string{"PATH="})
	require.Contains(t, emptyPath, "PATH="+defaultSearchPath)
}

func TestParseExitStatus(t *testing.T) {
	t.Parallel()

	require.Equal(t, 3, parseExitStatus("__CMD_EXIT:3\n", "__CMD_EXIT:"))
	require.Equal(t, 0, parseExitStatus("__CMD_EXIT:0\n", "__CMD_EXIT:"))
	require.Equal(t, 127, parseExitStatus("__CMD_EXIT:127", "__CMD_EXIT:"))
	require.Equal(t, 0, parseExitStatus("__CMD_EXIT:garbage\n", "__CMD_EXIT:"))
}

func collectEventTypes(t *testing.T, ch <-chan events.Event, want int) []string {
	t.Helper()

	types := make([]string, 0, want)
	deadline := time.After(2 * time.Second)
	for len(types) < want {
		select {
		case event := <-ch:
			types = append(types, event.Type)
		case <-deadline:
			t.Fatalf("timed out collecting events; got %v", types)
		}
	}
	return types
}

// WithQuietLogger silences dropped-event warnings in tests.
func WithQuietLogger() events.Option {
	return events.WithLogger(quietLogger{})
}

type quietLogger struct{}

func (quietLogger) Printf(string, ...any) {}

// Package harness turns planner-emitted command strings into sequenced
// executions inside one persistent shell process, capturing merged output and
// exit status per command.
package harness

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/shellmate/shellmate/internal/events"
)

const (
	// DefaultSentinelToken marks the exit-status probe line after each command.
	DefaultSentinelToken = "__CMD_EXIT"
	// DefaultShell is the shell binary spawned for a session.
	DefaultShell = "bash"
	// DefaultTerminationGracePeriod is the SIGTERM grace window before SIGKILL.
	DefaultTerminationGracePeriod = 5 * time.Second

	// defaultSearchPath keeps core utilities reachable when shell init wipes PATH.
	defaultSearchPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"
)

var (
	// ErrSessionClosed is returned by Submit after the session was closed.
	ErrSessionClosed = errors.New("shell session is closed")
	// ErrShellExited is returned when the shell process dies mid-command.
	ErrShellExited = errors.New("shell process exited before sentinel")
)

// SessionOptions configures a shell session.
type SessionOptions struct {
	// Shell is the shell binary to spawn. Defaults to bash.
	Shell string
	// SentinelToken is the fixed prefix of the exit-status probe line.
	SentinelToken string
	// Env is the process environment. Defaults to the host environment.
	Env []string
	// Mirror receives every output line in real time. May be nil.
	Mirror io.Writer
	// Bus receives command lifecycle and output-line events. May be nil.
	Bus events.Bus
	// Logger receives structured session logs. May be nil.
	Logger *log.Logger
	// TerminationGracePeriod bounds the SIGTERM wait before SIGKILL.
	TerminationGracePeriod time.Duration
}

// SubmitResult is the raw outcome of one command submission.
type SubmitResult struct {
	Output   string
	ExitCode int
}

// Session owns one long-lived interactive shell process. Shell state such as
// the working directory, exported variables, and shell functions persists
// across submissions. The session and its pipes are exclusively owned by the
// harness; exactly one command is in flight at a time.
type Session struct {
	id            string
	sentinelToken string
	gracePeriod   time.Duration
	mirror        io.Writer
	bus           events.Bus
	logger        *log.Logger

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	reader *bufio.Reader

	closed bool
	dead   bool
	reaped bool
}

// StartSession spawns one interactive login shell with stderr interleaved
// into stdout, so the captured transcript matches what an operator would see
// in a terminal.
func StartSession(ctx context.Context, opts SessionOptions) (*Session, error) {
	shell := strings.TrimSpace(opts.Shell)
	if shell == "" {
		shell = DefaultShell
	}
	token := strings.TrimSpace(opts.SentinelToken)
	if token == "" {
		token = DefaultSentinelToken
	}
	grace := opts.TerminationGracePeriod
	if grace <= 0 {
		grace = DefaultTerminationGracePeriod
	}

	env := opts.Env
	if env == nil {
		env = os.Environ()
	}
	env = ensureSearchPath(env)

	// A login shell so user shell initialization applies to every command.
	cmd := exec.CommandContext(ctx, shell, "-l")
	cmd.Env = env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open shell stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open shell stdout: %w", err)
	}
	// Share the stdout pipe so error output interleaves into the same stream.
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start shell %q: %w", shell, err)
	}

	session := &Session{
		id:            uuid.NewString(),
		sentinelToken: token,
		gracePeriod:   grace,
		mirror:        opts.Mirror,
		bus:           opts.Bus,
		logger:        opts.Logger,
		cmd:           cmd,
		stdin:         stdin,
		reader:        bufio.NewReader(stdout),
	}

	if session.logger != nil {
		session.logger.With("session_id", session.id, "shell", shell, "pid", cmd.Process.Pid).
			Info("shell session started")
	}
	return session, nil
}

// ID returns the session identifier used in events and logs.
func (s *Session) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

// Alive reports whether the session can still accept submissions.
func (s *Session) Alive() bool {
	return s != nil && !s.closed && !s.dead
}

// Submit writes one normalized command into the shell followed by a synthetic
// exit-status probe, then reads output lines until the sentinel line appears.
// Every line before the sentinel is buffered and mirrored in real time; the
// sentinel line itself is excluded from the output. An end-of-stream before
// the sentinel means the shell died: the session is marked dead and
// ErrShellExited is returned along with whatever output was gathered.
func (s *Session) Submit(ctx context.Context, command string) (SubmitResult, error) {
	if s == nil || s.closed || s.dead {
		return SubmitResult{}, ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return SubmitResult{}, err
	}

	s.publish(events.Event{
		Type:      events.EventTypeCommandStarted,
		SessionID: s.id,
		Command:   command,
	})

	probe := fmt.Sprintf("echo %s:$?\n", s.sentinelToken)
	if _, err := io.WriteString(s.stdin, command+"\n"+probe); err != nil {
		s.dead = true
		return SubmitResult{}, fmt.Errorf("write command to shell: %w", ErrShellExited)
	}

	sentinelPrefix := s.sentinelToken + ":"
	var output strings.Builder
	for {
		line, err := s.reader.ReadString('\n')
		if strings.HasPrefix(line, sentinelPrefix) {
			exitCode := parseExitStatus(line, sentinelPrefix)
			result := SubmitResult{Output: output.String(), ExitCode: exitCode}
			s.publish(events.Event{
				Type:      events.EventTypeCommandFinished,
				SessionID: s.id,
				Command:   command,
				Payload:   events.CommandFinish{ExitCode: exitCode},
			})
			return result, nil
		}
		if line != "" {
			output.WriteString(line)
			s.mirrorLine(line)
			s.publish(events.Event{
				Type:      events.EventTypeCommandOutputLine,
				SessionID: s.id,
				Command:   command,
				Payload:   events.OutputLine{Line: strings.TrimRight(line, "\n")},
			})
		}
		if err != nil {
			s.dead = true
			if s.logger != nil {
				s.logger.With("session_id", s.id).Warn("shell exited before sentinel")
			}
			return SubmitResult{Output: output.String()}, ErrShellExited
		}
	}
}

// Close tears the session down: close stdin, request graceful termination,
// wait out the grace period, and escalate to SIGKILL if the shell lingers.
// Close is idempotent and safe to call after the shell has already died.
func (s *Session) Close() error {
	if s == nil || s.cmd == nil {
		return nil
	}
	if s.closed {
		return nil
	}
	s.closed = true

	if s.stdin != nil {
		_ = s.stdin.Close()
	}

	err := s.terminate()

	s.publish(events.Event{
		Type:      events.EventTypeSessionClosed,
		SessionID: s.id,
	})
	if s.logger != nil {
		s.logger.With("session_id", s.id).Info("shell session closed")
	}
	return err
}

func (s *Session) terminate() error {
	if s.reaped {
		return nil
	}
	s.reaped = true

	if s.cmd.Process != nil {
		_ = s.cmd.Process.Signal(syscall.SIGTERM)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.cmd.Wait()
	}()

	select {
	case <-done:
		return nil
	case <-time.After(s.gracePeriod):
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		<-done
		return nil
	}
}

func (s *Session) mirrorLine(line string) {
	if s.mirror == nil {
		return
	}
	if _, err := io.WriteString(s.mirror, line); err != nil {
		return
	}
}

func (s *Session) publish(event events.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event)
}

func parseExitStatus(line, prefix string) int {
	status := strings.TrimSpace(strings.TrimPrefix(line, prefix))
	code, err := strconv.Atoi(status)
	if err != nil {
		return 0
	}
	return code
}

func ensureSearchPath(env []string) []string {
	for _, entry := range env {
		if value, ok := strings.CutPrefix(entry, "PATH="); ok && strings.TrimSpace(value) != "" {
			return env
		}
	}
	return append(env, "PATH="+defaultSearchPath)
}

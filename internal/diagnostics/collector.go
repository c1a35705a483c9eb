package diagnostics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const defaultSearchPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// Options configures a diagnostics collection run.
type Options struct {
	// OutputPath is the log file destination. Empty means
	// diagnostics-<timestamp>.log in the working directory.
	OutputPath string
	// Sections restricts collection to the named catalog sections. Empty
	// means all sections.
	Sections []string
	// Logger receives structured progress logs. May be nil.
	Logger *log.Logger

	now     func() time.Time
	catalog func() []Section
}

// Collector runs the probe catalog and writes the snapshot file.
type Collector struct {
	opts Options
}

// NewCollector validates section names against the catalog and builds a
// collector.
func NewCollector(opts Options) (*Collector, error) {
	if opts.now == nil {
		opts.now = time.Now
	}
	if opts.catalog == nil {
		opts.catalog = BuildCatalog
	}

	known := make(map[string]struct{})
	for _, section := range opts.catalog() {
		known[section.Name] = struct{}{}
	}
	for _, name := range opts.Sections {
		if _, ok := known[strings.TrimSpace(name)]; !ok {
			return nil, fmt.Errorf("unknown diagnostics section %q", name)
		}
	}

	return &Collector{opts: opts}, nil
}

// Collect runs every selected probe and writes the snapshot. A probe that is
// missing on the host is recorded with its failure output instead of aborting
// the run.
func (c *Collector) Collect(ctx context.Context) (string, error) {
	if c == nil {
		return "", errors.New("collector is nil")
	}

	outputPath, err := c.resolveOutputPath()
	if err != nil {
		return "", err
	}
	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", fmt.Errorf("create output directory: %w", err)
		}
	}

	file, err := os.OpenFile(outputPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600) // #nosec G304
	if err != nil {
		return "", fmt.Errorf("open output file %q: %w", outputPath, err)
	}
	defer func() {
		_ = file.Close()
	}()

	sections := c.selectSections()
	if err := c.writeHeader(file, outputPath, sections); err != nil {
		return "", err
	}

	for _, section := range sections {
		if len(section.Probes) == 0 {
			fmt.Fprintf(file, "## [%s] No commands available on this system.\n\n", section.Name)
			continue
		}
		for _, probe := range section.Probes {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			c.writeProbe(ctx, file, section.Name, probe)
		}
	}

	if c.opts.Logger != nil {
		c.opts.Logger.With("output", outputPath).Info("diagnostics collected")
	}
	return outputPath, nil
}

func (c *Collector) selectSections() []Section {
	catalog := c.opts.catalog()
	if len(c.opts.Sections) == 0 {
		return catalog
	}

	desired := make(map[string]struct{}, len(c.opts.Sections))
	for _, name := range c.opts.Sections {
		desired[strings.TrimSpace(name)] = struct{}{}
	}

	selected := make([]Section, 0, len(catalog))
	for _, section := range catalog {
		if _, ok := desired[section.Name]; ok {
			selected = append(selected, section)
		}
	}
	return selected
}

func (c *Collector) resolveOutputPath() (string, error) {
	if strings.TrimSpace(c.opts.OutputPath) != "" {
		return c.opts.OutputPath, nil
	}
	workingDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w", err)
	}
	stamp := c.opts.now().Format("20060102-150405")
	return filepath.Join(workingDir, fmt.Sprintf("diagnostics-%s.log", stamp)), nil
}

func (c *Collector) writeHeader(w io.Writer, outputPath string, sections []Section) error {
	names := make([]string, 0, len(sections))
	for _, section := range sections {
		names = append(names, section.Name)
	}

	host := "unknown"
	if data, err := os.ReadFile("/etc/hostname"); err == nil {
		host = strings.TrimSpace(string(data))
	}

	_, err := fmt.Fprintf(
		w,
		"# Diagnostic Snapshot\n# Generated: %s\n# Output file: %s\n# Sections: %s\n# Host: %s\n\n",
		c.opts.now().Format(time.RFC3339),
		outputPath,
		strings.Join(names, ", "),
		host,
	)
	if err != nil {
		return fmt.Errorf("write snapshot header: %w", err)
	}
	return nil
}

func (c *Collector) writeProbe(ctx context.Context, w io.Writer, section string, probe Probe) {
	fmt.Fprintf(w, "## [%s] %s\n$ %s\n", section, probe.Description, probe.Command)
	fmt.Fprintf(w, "- timestamp: %s\n", c.opts.now().Format(time.RFC3339))

	stdout, stderr, exitCode := runProbe(ctx, probe.Command)
	fmt.Fprintf(w, "- exit_code: %d\n", exitCode)

	writeStream(w, "stdout", stdout)
	writeStream(w, "stderr", stderr)
	fmt.Fprintln(w)
}

func runProbe(ctx context.Context, command string) (string, string, int) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Env = ensureSearchPath(os.Environ())

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	exitCode := 0
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			// Startup failures (missing shell, canceled context) are recorded
			// as output rather than aborting the snapshot.
			exitCode = -1
			fmt.Fprintf(&stderr, "failed to run: %v", err)
		}
	}
	return stdout.String(), stderr.String(), exitCode
}

func writeStream(w io.Writer, name, content string) {
	content = strings.TrimRight(content, "\n")
	if content == "" {
		fmt.Fprintf(w, "--- %s: <empty> ---\n", name)
		return
	}
	fmt.Fprintf(w, "--- %s ---\n%s\n", name, content)
}

func ensureSearchPath(env []string) []string {
	for _, entry := range env {
		if value, ok := strings.CutPrefix(entry, "PATH="); ok && strings.TrimSpace(value) != "" {
			return env
		}
	}
	return append(env, "PATH="+defaultSearchPath)
}

// Package gate provides the interactive approval step consulted before
// privileged or destructive commands run.
package gate

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Gate reads one-line confirmations from an interactive input stream.
type Gate struct {
	reader *bufio.Reader
	output io.Writer
}

// New builds a confirmation gate over the given streams. The reader is
// typically stdin and the writer stdout.
func New(input io.Reader, output io.Writer) *Gate {
	return &Gate{
		reader: bufio.NewReader(input),
		output: output,
	}
}

// Confirm prints the prompt and reads one line of input. Only "y" or "yes"
// (case-insensitive) counts as approval. End-of-input or a read error during
// the read is a decline, never an error: declining is always the safe default.
func (g *Gate) Confirm(prompt string) bool {
	if g == nil || g.reader == nil {
		return false
	}
	if g.output != nil {
		fmt.Fprintf(g.output, "%s [y/N]: ", prompt)
	}

	line, err := g.reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

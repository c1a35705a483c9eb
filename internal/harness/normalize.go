package harness

import "strings"

// Normalize rewrites a planner-emitted command so a line-oriented shell reader
// handles it correctly. It applies, in order: one outer-quote unwrap, literal
// escape decoding, heredoc newline termination, and per-line trailing
// whitespace removal. The function is pure and idempotent after the first
// application for input without escapes or outer quotes.
func Normalize(raw string) string {
	cmd := unwrapOuterQuotes(raw)

	// Planners sometimes emit literal two-character escapes when the transport
	// collapsed real newlines. Decode only these three sequences; a general
	// escape grammar would over-decode legitimate shell text.
	cmd = strings.ReplaceAll(cmd, `\n`, "\n")
	cmd = strings.ReplaceAll(cmd, `\t`, "\t")
	cmd = strings.ReplaceAll(cmd, `\r`, "\r")

	// A heredoc whose terminator line lacks a trailing newline is never
	// recognized by the shell and the session hangs waiting for it.
	if strings.Contains(cmd, "<<") && !strings.HasSuffix(cmd, "\n") {
		cmd += "\n"
	}

	// Trailing spaces on a heredoc terminator line also cause a hang.
	lines := strings.Split(cmd, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	joined := strings.Join(lines, "\n")

	// Whitespace-only input reduces to nothing rather than bare newlines.
	if strings.TrimSpace(joined) == "" {
		return ""
	}
	return joined
}

// unwrapOuterQuotes strips exactly one pair of matching surrounding quotes.
// Inner quotes are never touched and the unwrap does not recurse.
func unwrapOuterQuotes(cmd string) string {
	if len(cmd) < 2 {
		return cmd
	}
	first := cmd[0]
	last := cmd[len(cmd)-1]
	if first == last && (first == '"' || first == '\'') {
		return cmd[1 : len(cmd)-1]
	}
	return cmd
}

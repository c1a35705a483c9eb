package harness

import (
	"strings"
	"testing"
)

func TestNormalizeUnwrapsExactlyOneOuterQuotePair(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "double quoted whole command", raw: `"echo hi"`, want: "echo hi"},
		{name: "single quoted whole command", raw: `'echo hi'`, want: "echo hi"},
		{name: "inner quotes untouched", raw: `echo "hi"`, want: `echo "hi"`},
		{name: "no recursion", raw: `""echo hi""`, want: `"echo hi"`},
		{name: "mismatched quotes untouched", raw: `"echo hi'`, want: `"echo hi'`},
		{name: "single quote alone", raw: `'`, want: `'`},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Normalize(tc.raw); got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestNormalizeDecodesLiteralEscapes(t *testing.T) {
	t.Parallel()

	// The decoded carriage return lands at end of line, so the per-line
	// trailing-whitespace strip removes it again.
	got := Normalize(`printf a\tb\r\necho done`)
	want := "printf a\tb\necho done"
	if got != want {
		t.Fatalf("Normalize = %q, want %q", got, want)
	}
}

func TestNormalizeTerminatesHeredocs(t *testing.T) {
	t.Parallel()

	tests := []string{
		"cat <<EOF\nhello\nEOF",
		"cat <<EOF\nhello\nEOF\n",
		`cat <<EOF\nhello\nEOF`,
		"tee /tmp/x <<'END'\nbody\nEND",
	}
	for _, raw := range tests {
		got := Normalize(raw)
		if !strings.HasSuffix(got, "\n") {
			t.Fatalf("Normalize(%q) = %q, want trailing newline", raw, got)
		}
	}
}

func TestNormalizeStripsTrailingWhitespacePerLine(t *testing.T) {
	t.Parallel()

	got := Normalize("cat <<EOF\nline one  \nEOF \t\n")
	want := "cat <<EOF\nline one\nEOF\n"
	if got != want {
		t.Fatalf("Normalize = %q, want %q", got, want)
	}
}

func TestNormalizeIsIdempotentWithoutEscapesOrQuotes(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"echo hi",
		"cd /tmp && pwd",
		"cat <<EOF\nbody\nEOF\n",
		"",
	}
	for _, input := range inputs {
		once := Normalize(input)
		twice := Normalize(once)
		if once != twice {
			t.Fatalf("Normalize not idempotent for %q: once=%q twice=%q", input, once, twice)
		}
	}
}

func TestNormalizeEmptyInput(t *testing.T) {
	t.Parallel()

	if got := Normalize(""); got != "" {
		t.Fatalf("Normalize(\"\") = %q, want empty", got)
	}
	if got := Normalize("   "); got != "" {
		t.Fatalf("Normalize(whitespace) = %q, want empty", got)
	}
	if got := Normalize(" \n \t\n"); got != "" {
		t.Fatalf("Normalize(whitespace lines) = %q, want empty", got)
	}
}

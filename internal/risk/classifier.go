// Package risk classifies shell commands against a table of
// destructive-operation signatures.
package risk

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Signature is one pattern/description pair in the classification table.
type Signature struct {
	Pattern     string `yaml:"pattern"`
	Description string `yaml:"description"`
}

// Verdict is the classification outcome for one command.
type Verdict struct {
	Risky     bool
	Signature Signature
}

// DefaultSignatures returns the built-in table of irreversible or highly
// privileged command classes. The table is ordered; the classifier reports
// the first match.
func DefaultSignatures() []Signature {
	return []Signature{
		{Pattern: `\brm\s+-rf\s+/\B`, Description: "recursive delete of filesystem root"},
		{Pattern: `\bmkfs\.`, Description: "disk formatting utility"},
		{Pattern: `\bdd\s+if=`, Description: "raw block-device write"},
		{Pattern: `\b:>\s*/`, Description: "truncation redirect into a root path"},
		{Pattern: `\bchmod\s+777\s+/(?:\S*)`, Description: "world-writable chmod on a root-level path"},
		{Pattern: `\bchown\s+-R\s+\S+\s+/(?:\S*)`, Description: "recursive ownership change on a root-level path"},
		{Pattern: `\bparted\b`, Description: "partition table editor"},
		{Pattern: `\bfdisk\b`, Description: "partition table editor"},
		{Pattern: `\bsudo\s+passwd\b`, Description: "password reset utility"},
		{Pattern: `\biptables\b`, Description: "firewall rule editor"},
		{Pattern: `\bufw\b.*\breset\b`, Description: "firewall reset"},
	}
}

// Classifier matches commands against an ordered signature table.
type Classifier struct {
	signatures []Signature
	compiled   []*regexp.Regexp
}

// NewClassifier compiles the given signature table. Pattern compilation errors
// surface here rather than at match time.
func NewClassifier(signatures []Signature) (*Classifier, error) {
	if len(signatures) == 0 {
		return nil, errors.New("at least one risk signature is required")
	}

	compiled := make([]*regexp.Regexp, 0, len(signatures))
	for _, signature := range signatures {
		expr, err := regexp.Compile(signature.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile risk signature %q: %w", signature.Pattern, err)
		}
		compiled = append(compiled, expr)
	}

	table := make([]Signature, len(signatures))
	copy(table, signatures)

	return &Classifier{signatures: table, compiled: compiled}, nil
}

// NewDefaultClassifier compiles the built-in signature table.
func NewDefaultClassifier() (*Classifier, error) {
	return NewClassifier(DefaultSignatures())
}

// Match reports whether the command matches any known-destructive signature,
// along with the first matched signature for diagnostics.
func (c *Classifier) Match(command string) Verdict {
	if c == nil {
		return Verdict{}
	}
	for i, expr := range c.compiled {
		if expr.MatchString(command) {
			return Verdict{Risky: true, Signature: c.signatures[i]}
		}
	}
	return Verdict{}
}

// Signatures returns a copy of the active signature table.
func (c *Classifier) Signatures() []Signature {
	if c == nil {
		return nil
	}
	table := make([]Signature, len(c.signatures))
	copy(table, c.signatures)
	return table
}

type signatureFile struct {
	Signatures []Signature `yaml:"signatures"`
}

// LoadSignatures reads additional pattern/description pairs from a YAML file.
// The returned table is the built-in set followed by the file entries, so
// file-supplied signatures extend rather than replace the defaults.
func LoadSignatures(path string) ([]Signature, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from trusted local config.
	if err != nil {
		return nil, fmt.Errorf("read signatures file %q: %w", path, err)
	}

	var decoded signatureFile
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("decode signatures file %q: %w", path, err)
	}

	for _, signature := range decoded.Signatures {
		if signature.Pattern == "" {
			return nil, fmt.Errorf("signatures file %q: entry with empty pattern", path)
		}
	}

	return append(DefaultSignatures(), decoded.Signatures...), nil
}

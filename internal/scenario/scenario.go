// Package scenario loads numbered troubleshooting scenarios from a markdown
// file and drives the planner and harness through a selected batch of them.
package scenario

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// linePattern matches a numbered scenario entry, e.g. "28. Docker bridge down".
var linePattern = regexp.MustCompile(`^(\d+)\.\s+(.*)`)

// Scenario is one numbered entry from the scenarios file.
type Scenario struct {
	Number      int
	Description string
}

// Load extracts numbered scenario descriptions from a markdown file. Lines
// that do not start with "N. " are ignored.
func Load(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("read scenarios file %q: %w", path, err)
	}

	var scenarios []Scenario
	for _, line := range strings.Split(string(data), "\n") {
		match := linePattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		var number int
		if _, err := fmt.Sscanf(match[1], "%d", &number); err != nil {
			continue
		}
		scenarios = append(scenarios, Scenario{
			Number:      number,
			Description: strings.TrimSpace(match[2]),
		})
	}
	return scenarios, nil
}

// Select picks scenarios by their list numbers, preserving the requested
// order. Numbers without a matching entry are skipped.
func Select(scenarios []Scenario, numbers []int) []Scenario {
	byNumber := make(map[int]Scenario, len(scenarios))
	for _, entry := range scenarios {
		byNumber[entry.Number] = entry
	}

	selected := make([]Scenario, 0, len(numbers))
	for _, number := range numbers {
		if entry, ok := byNumber[number]; ok {
			selected = append(selected, entry)
		}
	}
	return selected
}

// First returns the first n scenarios, or all of them when fewer exist.
func First(scenarios []Scenario, n int) []Scenario {
	if n < 0 {
		n = 0
	}
	if n > len(scenarios) {
		n = len(scenarios)
	}
	return scenarios[:n]
}

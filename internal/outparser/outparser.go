// Package outparser implements the Output Parser (spec.md §4.5): it
// extracts the Test List Agent's `currentTest` selection from its
// free-form final text.
package outparser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tdd-orchestrator/tdd/internal/model"
)

var fencedBlockRE = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)```")

type selection struct {
	CurrentTest *model.TestCase `json:"currentTest"`
}

// ExtractCurrentTest finds the `currentTest` selection in text, per
// spec.md §4.5's two-strategy extraction: a fenced block mentioning the
// key wins first, falling back to a depth-balanced brace scan starting at
// `{"currentTest"`. A present-but-null currentTest means the workflow is
// complete and is reported as (nil, nil); any other malformed shape is a
// hard error.
func ExtractCurrentTest(text string) (*model.TestCase, error) {
	candidate, ok := findFencedCandidate(text)
	if !ok {
		candidate, ok = findBraceBalancedCandidate(text)
	}
	if !ok {
		return nil, fmt.Errorf("outparser: no currentTest JSON object found in agent output")
	}

	var sel selection
	if err := json.Unmarshal([]byte(candidate), &sel); err != nil {
		return nil, fmt.Errorf("outparser: malformed currentTest JSON: %w", err)
	}
	if sel.CurrentTest == nil {
		return nil, nil
	}
	if !sel.CurrentTest.Valid() {
		return nil, fmt.Errorf("outparser: currentTest is missing a required field")
	}
	return sel.CurrentTest, nil
}

func findFencedCandidate(text string) (string, bool) {
	for _, match := range fencedBlockRE.FindAllStringSubmatch(text, -1) {
		if strings.Contains(match[1], `"currentTest"`) {
			return strings.TrimSpace(match[1]), true
		}
	}
	return "", false
}

// findBraceBalancedCandidate scans for `{"currentTest"` or `{ "currentTest"`
// and returns the shortest depth-balanced object starting there.
func findBraceBalancedCandidate(text string) (string, bool) {
	markers := []string{`{"currentTest"`, `{ "currentTest"`}
	start := -1
	for _, m := range markers {
		if idx := strings.Index(text, m); idx >= 0 && (start == -1 || idx < start) {
			start = idx
		}
	}
	if start == -1 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

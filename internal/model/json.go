package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// wireState mirrors the JSON document shape fixed by spec.md §6: field
// names, casing, and enum spellings are part of the external contract, so
// this type exists purely to pin that shape independent of HandoffState's Go
// representation (pointers vs. nil, time.Time vs. RFC3339 string).
type wireState struct {
	Phase          Phase         `json:"phase"`
	NextPhase      Phase         `json:"nextPhase"`
	CycleNumber    int           `json:"cycleNumber"`
	CurrentTest    *TestCase     `json:"currentTest"`
	CompletedTests []string      `json:"completedTests"`
	PendingTests   []string      `json:"pendingTests"`
	TestResult     *TestResult   `json:"testResult"`
	Error          *string       `json:"error"`
	ErrorDetails   *ErrorDetails `json:"errorDetails"`
	RetryCount     int           `json:"retryCount"`
	Timestamp      string        `json:"timestamp"`
}

// MarshalJSON encodes s using the wire shape fixed by spec.md §6.
func (s HandoffState) MarshalJSON() ([]byte, error) {
	w := wireState{
		Phase:          s.Phase,
		NextPhase:      s.NextPhase,
		CycleNumber:    s.CycleNumber,
		CurrentTest:    s.CurrentTest,
		CompletedTests: s.CompletedTests,
		PendingTests:   s.PendingTests,
		TestResult:     s.TestResult,
		Error:          s.Error,
		ErrorDetails:   s.ErrorDetails,
		RetryCount:     s.RetryCount,
		Timestamp:      s.Timestamp.UTC().Format(time.RFC3339),
	}
	if w.CompletedTests == nil {
		w.CompletedTests = []string{}
	}
	if w.PendingTests == nil {
		w.PendingTests = []string{}
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes s from the wire shape fixed by spec.md §6.
func (s *HandoffState) UnmarshalJSON(data []byte) error {
	var w wireState
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("model: decode handoff state: %w", err)
	}
	ts := time.Time{}
	if w.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, w.Timestamp)
		if err != nil {
			return fmt.Errorf("model: decode handoff state timestamp: %w", err)
		}
		ts = parsed
	}
	*s = HandoffState{
		Phase:          w.Phase,
		NextPhase:      w.NextPhase,
		CycleNumber:    w.CycleNumber,
		CurrentTest:    w.CurrentTest,
		CompletedTests: w.CompletedTests,
		PendingTests:   w.PendingTests,
		TestResult:     w.TestResult,
		Error:          w.Error,
		ErrorDetails:   w.ErrorDetails,
		RetryCount:     w.RetryCount,
		Timestamp:      ts,
	}
	return nil
}

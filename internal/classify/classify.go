// Package classify implements the Error Classifier & Recovery Strategy
// (spec.md §4.8): a closed error taxonomy and a top-down recovery-action
// selection table the Workflow Driver consults between retry attempts.
package classify

import (
	"regexp"
	"strings"
	"time"

	"github.com/tdd-orchestrator/tdd/internal/model"
)

// Kind is one entry of the closed error taxonomy (spec.md §4.8).
type Kind string

const (
	KindCompilation    Kind = "COMPILATION"
	KindTestFailure    Kind = "TEST_FAILURE"
	KindUnexpectedPass Kind = "UNEXPECTED_PASS"
	KindTimeout        Kind = "TIMEOUT"
	KindRateLimit      Kind = "RATE_LIMIT"
	KindNetwork        Kind = "NETWORK"
	KindUnknown        Kind = "UNKNOWN"
)

// Action is one entry of the closed recovery-action set (spec.md §4.8).
type Action string

const (
	ActionContinue         Action = "CONTINUE"
	ActionRetryWithContext Action = "RETRY_WITH_CONTEXT"
	ActionRollbackAndRetry Action = "ROLLBACK_AND_RETRY"
	ActionWaitAndRetry     Action = "WAIT_AND_RETRY"
	ActionAbort            Action = "ABORT"
)

var (
	compilationRE = regexp.MustCompile(`(?i)compilation error|error TS\d+|SyntaxError`)
	testFailureRE = regexp.MustCompile(`(?i)FAILURES!|FAIL:|Tests run: \d+, Failures: [1-9]|FAILED`)
	successRE     = regexp.MustCompile(`(?i)OK \(\d+ tests?\)|BUILD SUCCESS|\d+ passed|Tests run: \d+, Failures: 0`)
)

// Classify inspects a phase's failure output and assigns it the first
// matching kind from the closed taxonomy, evaluated in the table order of
// spec.md §4.8.
func Classify(phase model.Phase, output string) Kind {
	lower := strings.ToLower(output)
	switch {
	case compilationRE.MatchString(output):
		return KindCompilation
	case phase == model.PhaseRed && successRE.MatchString(output) && !testFailureRE.MatchString(output):
		return KindUnexpectedPass
	case testFailureRE.MatchString(output):
		return KindTestFailure
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out"):
		return KindTimeout
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "429"):
		return KindRateLimit
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "network") || strings.Contains(lower, "dial tcp"):
		return KindNetwork
	default:
		return KindUnknown
	}
}

// RequiresRollback reports whether recovering from kind at phase requires
// discarding the working tree before retrying. Every kind is retriable
// (spec.md §4.8); only TEST_FAILURE ever forces a rollback, and only
// outside the RED phase where a failing test is the expected outcome.
func RequiresRollback(kind Kind, phase model.Phase) bool {
	return kind == KindTestFailure && phase != model.PhaseRed
}

// SelectAction evaluates the top-down table of spec.md §4.8 to decide how
// to recover from one failed phase attempt.
func SelectAction(kind Kind, phase model.Phase, retryCount int) Action {
	switch {
	case retryCount >= model.MaxRetriesPerPhase:
		return ActionAbort
	case kind == KindTestFailure && phase == model.PhaseRed:
		return ActionContinue
	case kind == KindTestFailure && (phase == model.PhaseGreen || phase == model.PhaseRefactor):
		return ActionRollbackAndRetry
	case kind == KindTimeout || kind == KindRateLimit || kind == KindNetwork:
		return ActionWaitAndRetry
	default:
		return ActionRetryWithContext
	}
}

// Backoff returns the exponential backoff delay for the given 1-based
// retry attempt, per spec.md §4.8's "1, 2, 4s across three retries"
// schedule: 2^(attempt-1) seconds.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return (1 << (attempt - 1)) * time.Second
}

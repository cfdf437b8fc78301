// Package handoff implements the Handoff Store (spec.md §4.2): it persists
// HandoffState records out-of-tree, attached to commits via the private
// namespace refs/notes/tdd-handoffs, so commit hashes stay stable across
// the orchestrator's own bookkeeping.
package handoff

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tdd-orchestrator/tdd/internal/model"
)

// NotesRef is the private namespace handoff records live under.
const NotesRef = "refs/notes/tdd-handoffs"

// Runner is the subset of gitops.Repo the store needs; kept narrow so
// tests can substitute a fake without constructing a real repository.
type Runner interface {
	Run(ctx context.Context, args ...string) (string, error)
}

// Store reads and writes HandoffState records attached to commits.
type Store struct {
	repo Runner
}

// New constructs a Store backed by repo.
func New(repo Runner) *Store {
	return &Store{repo: repo}
}

// Write attaches state to commitID, replacing any prior record (spec.md
// §4.2's write is idempotent by overwrite).
func (s *Store) Write(ctx context.Context, commitID string, state model.HandoffState) error {
	if commitID == "" {
		return fmt.Errorf("handoff: write requires a commit id")
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("handoff: marshal state for %s: %w", commitID, err)
	}
	// git notes add -f overwrites any existing note, satisfying the
	// "remove prior record first" requirement in one call.
	if _, err := s.repo.Run(ctx, "notes", "--ref="+NotesRef, "add", "-f", "-m", string(raw), commitID); err != nil {
		return fmt.Errorf("handoff: write note for %s: %w", commitID, err)
	}
	return nil
}

// Read returns the record attached to commitID, or ok=false if none exists.
func (s *Store) Read(ctx context.Context, commitID string) (state model.HandoffState, ok bool, err error) {
	out, runErr := s.repo.Run(ctx, "notes", "--ref="+NotesRef, "show", commitID)
	if runErr != nil {
		// git notes show exits non-zero both for "no note" and for a
		// missing commit; treat any failure here as "no record" rather
		// than attempt to disambiguate by parsing stderr text.
		return model.HandoffState{}, false, nil
	}
	if err := json.Unmarshal([]byte(out), &state); err != nil {
		return model.HandoffState{}, false, fmt.Errorf("handoff: malformed record for %s: %w", commitID, err)
	}
	return state, true, nil
}

// Remove deletes the record attached to commitID, reporting whether one
// existed.
func (s *Store) Remove(ctx context.Context, commitID string) (bool, error) {
	_, existed, err := s.Read(ctx, commitID)
	if err != nil {
		return false, err
	}
	if !existed {
		return false, nil
	}
	if _, err := s.repo.Run(ctx, "notes", "--ref="+NotesRef, "remove", commitID); err != nil {
		return false, fmt.Errorf("handoff: remove note for %s: %w", commitID, err)
	}
	return true, nil
}

// Record pairs a commit id with the handoff state attached to it.
type Record struct {
	CommitID string
	State    model.HandoffState
}

// FindLatest walks the ancestry of HEAD from newest to oldest and returns
// the first commit bearing a record (spec.md §4.2, used for crash resume).
func (s *Store) FindLatest(ctx context.Context) (Record, bool, error) {
	shas, err := s.ancestry(ctx)
	if err != nil {
		return Record{}, false, err
	}
	for _, sha := range shas {
		state, ok, err := s.Read(ctx, sha)
		if err != nil {
			return Record{}, false, err
		}
		if ok {
			return Record{CommitID: sha, State: state}, true, nil
		}
	}
	return Record{}, false, nil
}

// ListAll returns every record reachable from HEAD, newest-first, used for
// audit and history commands (spec.md §4.2).
func (s *Store) ListAll(ctx context.Context) ([]Record, error) {
	shas, err := s.ancestry(ctx)
	if err != nil {
		return nil, err
	}
	var records []Record
	for _, sha := range shas {
		state, ok, err := s.Read(ctx, sha)
		if err != nil {
			return nil, err
		}
		if ok {
			records = append(records, Record{CommitID: sha, State: state})
		}
	}
	return records, nil
}

func (s *Store) ancestry(ctx context.Context) ([]string, error) {
	out, err := s.repo.Run(ctx, "rev-list", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("handoff: list commit ancestry: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

package gitops

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init", "-q")
	runGit(t, dir, "config", "user.email", "tdd@example.com")
	runGit(t, dir, "config", "user.name", "tdd-orchestrator")
	return New(dir)
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoErrorf(t, err, "git %v: %s", args, out)
}

func writeAndCommit(t *testing.T, r *Repo, name, content, message string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(r.Root(), name), []byte(content), 0o644))
	sha, err := r.CommitAll(context.Background(), message)
	require.NoError(t, err)
	return sha
}

func TestCommitAllAndLatestCommit(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	sha := writeAndCommit(t, r, "a.txt", "hello", "test: first commit")
	assert.Len(t, sha, 40)

	latest, err := r.LatestCommit(ctx)
	require.NoError(t, err)
	assert.Equal(t, sha, latest)
}

func TestHasUncommittedChanges(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	writeAndCommit(t, r, "a.txt", "hello", "test: first commit")

	clean, err := r.HasUncommittedChanges(ctx)
	require.NoError(t, err)
	assert.False(t, clean)

	require.NoError(t, os.WriteFile(filepath.Join(r.Root(), "a.txt"), []byte("changed"), 0o644))
	dirty, err := r.HasUncommittedChanges(ctx)
	require.NoError(t, err)
	assert.True(t, dirty)
}

func TestRollback(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	first := writeAndCommit(t, r, "a.txt", "v1", "test: v1")
	writeAndCommit(t, r, "a.txt", "v2", "feat: v2")

	require.NoError(t, r.Rollback(ctx, first))
	latest, err := r.LatestCommit(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, latest)

	content, err := os.ReadFile(filepath.Join(r.Root(), "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(content))
}

func TestChangedFilesAndDiff(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	first := writeAndCommit(t, r, "a.txt", "hello", "test: a")
	second := writeAndCommit(t, r, "b.txt", "world", "feat: b")

	files, err := r.ChangedFiles(ctx, first, second)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt"}, files)

	diff, err := r.Diff(ctx, first, second)
	require.NoError(t, err)
	assert.Contains(t, diff, "b.txt")
}

func TestCommitMessageAndCommitCount(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	sha := writeAndCommit(t, r, "a.txt", "hello", "test: first commit")
	msg, err := r.CommitMessage(ctx, sha)
	require.NoError(t, err)
	assert.Equal(t, "test: first commit", msg)

	writeAndCommit(t, r, "b.txt", "world", "feat: second commit")
	count, err := r.CommitCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

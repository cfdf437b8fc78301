package dispatch

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdd-orchestrator/tdd/internal/schema"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, string) {
	t.Helper()
	root := t.TempDir()
	validator, err := schema.NewValidator(schema.ToolSchemas())
	require.NoError(t, err)
	return New(root, validator), root
}

func TestDispatchUnrecognizedToolFails(t *testing.T) {
	d, _ := newTestDispatcher(t)
	result := d.Dispatch(context.Background(), "Nonexistent", map[string]any{})
	assert.False(t, result.Ok)
	assert.Error(t, result.Err)
}

func TestDispatchValidatesInputsBeforeRunningHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)
	// file_path has minLength: 1 in the schema, so an empty string must be
	// rejected before handleRead ever runs.
	result := d.Dispatch(context.Background(), "Read", map[string]any{"file_path": ""})
	assert.False(t, result.Ok)
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	w := d.Dispatch(ctx, "Write", map[string]any{"file_path": "greeting.txt", "content": "hello\nworld"})
	require.True(t, w.Ok, w.Err)

	r := d.Dispatch(ctx, "Read", map[string]any{"file_path": "greeting.txt"})
	require.True(t, r.Ok, r.Err)
	assert.Equal(t, "     1\thello\n     2\tworld\n", r.Output)
}

func TestWriteCreatesMissingParentDirectories(t *testing.T) {
	d, _ := newTestDispatcher(t)
	w := d.Dispatch(context.Background(), "Write", map[string]any{"file_path": "a/b/c.txt", "content": "x"})
	require.True(t, w.Ok, w.Err)
}

func TestReadMissingFileFails(t *testing.T) {
	d, _ := newTestDispatcher(t)
	r := d.Dispatch(context.Background(), "Read", map[string]any{"file_path": "nope.txt"})
	assert.False(t, r.Ok)
}

func TestResolveRejectsPathsEscapingWorkspaceRoot(t *testing.T) {
	d, _ := newTestDispatcher(t)
	r := d.Dispatch(context.Background(), "Read", map[string]any{"file_path": "../../../etc/passwd"})
	assert.False(t, r.Ok)
	assert.ErrorContains(t, r.Err, "escapes workspace root")
}

func TestEditReplacesUniqueOccurrence(t *testing.T) {
	d, root := newTestDispatcher(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(root, "f.go"), []byte("func add(a, b int) int {\n\treturn 0\n}\n"), 0o644))

	e := d.Dispatch(ctx, "Edit", map[string]any{"file_path": "f.go", "old_string": "return 0", "new_string": "return a + b"})
	require.True(t, e.Ok, e.Err)

	got, err := os.ReadFile(filepath.Join(root, "f.go"))
	require.NoError(t, err)
	assert.Contains(t, string(got), "return a + b")
}

func TestEditFailsWhenOldStringMissing(t *testing.T) {
	d, root := newTestDispatcher(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "f.txt"), []byte("abc"), 0o644))

	e := d.Dispatch(context.Background(), "Edit", map[string]any{"file_path": "f.txt", "old_string": "zzz", "new_string": "y"})
	assert.False(t, e.Ok)
}

func TestEditFailsWhenOldStringNotUnique(t *testing.T) {
	d, root := newTestDispatcher(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "f.txt"), []byte("abc abc"), 0o644))

	e := d.Dispatch(context.Background(), "Edit", map[string]any{"file_path": "f.txt", "old_string": "abc", "new_string": "xyz"})
	assert.False(t, e.Ok)
	assert.ErrorContains(t, e.Err, "occurs 2 times")
}

func TestGlobFindsMatchingFilesSortedNewestFirst(t *testing.T) {
	d, root := newTestDispatcher(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(root, "old.go"), []byte("package x"), 0o644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(root, "old.go"), past, past))
	require.NoError(t, os.WriteFile(filepath.Join(root, "new.go"), []byte("package x"), 0o644))

	g := d.Dispatch(ctx, "Glob", map[string]any{"pattern": "*.go"})
	require.True(t, g.Ok, g.Err)
	assert.Equal(t, "new.go\nold.go", g.Output)
}

func TestGlobSkipsDenylistedDirectories(t *testing.T) {
	d, root := newTestDispatcher(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "dep.go"), []byte("package x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "real.go"), []byte("package x"), 0o644))

	g := d.Dispatch(context.Background(), "Glob", map[string]any{"pattern": "*.go"})
	require.True(t, g.Ok, g.Err)
	assert.Equal(t, "real.go", g.Output)
}

func TestGrepFindsMatchingLinesWithLineNumbers(t *testing.T) {
	d, root := newTestDispatcher(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a\nfunc Foo() {}\n"), 0o644))

	g := d.Dispatch(context.Background(), "Grep", map[string]any{"pattern": "func Foo"})
	require.True(t, g.Ok, g.Err)
	assert.Contains(t, g.Output, "a.go:2: func Foo() {}")
}

func TestGrepRespectsGlobFilter(t *testing.T) {
	d, root := newTestDispatcher(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("needle"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("needle"), 0o644))

	g := d.Dispatch(context.Background(), "Grep", map[string]any{"pattern": "needle", "glob": "*.go"})
	require.True(t, g.Ok, g.Err)
	assert.Contains(t, g.Output, "a.go")
	assert.NotContains(t, g.Output, "a.txt")
}

func TestGrepSkipsBinaryFiles(t *testing.T) {
	d, root := newTestDispatcher(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "bin.dat"), []byte("needle\x00binary"), 0o644))

	g := d.Dispatch(context.Background(), "Grep", map[string]any{"pattern": "needle"})
	require.True(t, g.Ok, g.Err)
	assert.Empty(t, g.Output)
}

func TestGrepInvalidPatternFails(t *testing.T) {
	d, _ := newTestDispatcher(t)
	g := d.Dispatch(context.Background(), "Grep", map[string]any{"pattern": "("})
	assert.False(t, g.Ok)
}

func TestGlobMissingDirectoryFails(t *testing.T) {
	d, _ := newTestDispatcher(t)
	g := d.Dispatch(context.Background(), "Glob", map[string]any{"pattern": "*.go", "path": "does/not/exist"})
	assert.False(t, g.Ok)
	assert.ErrorContains(t, g.Err, "missing directory")
}

func TestGrepMissingPathFails(t *testing.T) {
	d, _ := newTestDispatcher(t)
	g := d.Dispatch(context.Background(), "Grep", map[string]any{"pattern": "needle", "path": "does/not/exist"})
	assert.False(t, g.Ok)
	assert.ErrorContains(t, g.Err, "missing path")
}

func TestBashRunsCommandInWorkspaceRoot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("bash tool shells out to /bin/sh")
	}
	d, _ := newTestDispatcher(t)
	b := d.Dispatch(context.Background(), "Bash", map[string]any{"command": "pwd"})
	require.True(t, b.Ok, b.Err)
}

func TestBashNonZeroExitIsFailureWithOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("bash tool shells out to /bin/sh")
	}
	d, _ := newTestDispatcher(t)
	b := d.Dispatch(context.Background(), "Bash", map[string]any{"command": "echo boom 1>&2; exit 3"})
	assert.False(t, b.Ok)
	assert.ErrorContains(t, b.Err, "Exit code 3")
	assert.ErrorContains(t, b.Err, "boom")
}

func TestBashTimesOut(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("bash tool shells out to /bin/sh")
	}
	validator, err := schema.NewValidator(schema.ToolSchemas())
	require.NoError(t, err)
	d := New(t.TempDir(), validator, WithBashTimeout(1))

	b := d.Dispatch(context.Background(), "Bash", map[string]any{"command": "sleep 5"})
	assert.False(t, b.Ok)
	assert.ErrorContains(t, b.Err, "timed out")
}

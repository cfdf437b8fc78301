package dispatch

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// handleRead implements the Read tool: returns the full contents of
// file_path, each line prefixed with its 1-based line number exactly as
// cat -n would render it (spec.md §4.1).
func handleRead(_ context.Context, d *Dispatcher, inputs map[string]any) ToolResult {
	relPath, ok := stringInput(inputs, "file_path")
	if !ok || relPath == "" {
		return Failuref("read: missing required input %q", "file_path")
	}
	abs, err := d.resolve(relPath)
	if err != nil {
		return Failure(err)
	}
	f, err := os.Open(abs)
	if err != nil {
		return Failuref("read %q: %v", relPath, err)
	}
	defer f.Close()

	var b strings.Builder
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	lineNo := 1
	for scanner.Scan() {
		fmt.Fprintf(&b, "%6d\t%s\n", lineNo, scanner.Text())
		lineNo++
	}
	if err := scanner.Err(); err != nil {
		return Failuref("read %q: %v", relPath, err)
	}
	if b.Len() == 0 {
		return Success("")
	}
	return Success(b.String())
}

// handleWrite implements the Write tool: creates or overwrites file_path
// with content, creating any missing parent directories within the
// workspace root (spec.md §4.1).
func handleWrite(_ context.Context, d *Dispatcher, inputs map[string]any) ToolResult {
	relPath, ok := stringInput(inputs, "file_path")
	if !ok || relPath == "" {
		return Failuref("write: missing required input %q", "file_path")
	}
	content, ok := stringInput(inputs, "content")
	if !ok {
		return Failuref("write: missing required input %q", "content")
	}
	abs, err := d.resolve(relPath)
	if err != nil {
		return Failure(err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return Failuref("write %q: create parent directories: %v", relPath, err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return Failuref("write %q: %v", relPath, err)
	}
	return Success(fmt.Sprintf("wrote %d bytes to %s", len(content), relPath))
}

// handleEdit implements the Edit tool: replaces old_string with new_string
// in file_path. old_string must occur exactly once in the file; zero or
// multiple occurrences is a failure, per spec.md §4.1's uniqueness
// requirement (the same constraint the Edit tool documents to callers).
func handleEdit(_ context.Context, d *Dispatcher, inputs map[string]any) ToolResult {
	relPath, ok := stringInput(inputs, "file_path")
	if !ok || relPath == "" {
		return Failuref("edit: missing required input %q", "file_path")
	}
	oldString, ok := stringInput(inputs, "old_string")
	if !ok || oldString == "" {
		return Failuref("edit: missing required input %q", "old_string")
	}
	newString, ok := stringInput(inputs, "new_string")
	if !ok {
		return Failuref("edit: missing required input %q", "new_string")
	}
	abs, err := d.resolve(relPath)
	if err != nil {
		return Failure(err)
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return Failuref("edit %q: %v", relPath, err)
	}
	original := string(raw)
	count := strings.Count(original, oldString)
	switch count {
	case 0:
		return Failuref("edit %q: old_string not found", relPath)
	case 1:
		// fall through
	default:
		return Failuref("edit %q: old_string occurs %d times, expected exactly once", relPath, count)
	}
	updated := strings.Replace(original, oldString, newString, 1)
	if err := os.WriteFile(abs, []byte(updated), 0o644); err != nil {
		return Failuref("edit %q: %v", relPath, err)
	}
	return Success(fmt.Sprintf("edited %s", relPath))
}

// resolve joins relPath onto the workspace root and rejects any path that
// would escape it, so a test's own "../../../etc/passwd" style input can
// never reach outside the checkout the orchestrator is operating on.
func (d *Dispatcher) resolve(relPath string) (string, error) {
	abs := relPath
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(d.root, relPath)
	}
	abs = filepath.Clean(abs)
	rel, err := filepath.Rel(d.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", Failuref("path %q escapes workspace root", relPath).Err
	}
	return abs, nil
}

package dispatch

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// handleGlob implements the Glob tool: returns paths under path (default
// the workspace root) matching pattern, sorted by most-recently-modified
// first, matching the convention the model's own Glob tool description
// advertises (spec.md §4.1).
func handleGlob(_ context.Context, d *Dispatcher, inputs map[string]any) ToolResult {
	pattern, ok := stringInput(inputs, "pattern")
	if !ok || pattern == "" {
		return Failuref("glob: missing required input %q", "pattern")
	}
	base := d.root
	if relPath, ok := stringInput(inputs, "path"); ok && relPath != "" {
		abs, err := d.resolve(relPath)
		if err != nil {
			return Failure(err)
		}
		base = abs
	}
	if _, err := os.Stat(base); err != nil {
		if os.IsNotExist(err) {
			return Failuref("glob: missing directory %q", base)
		}
		return Failuref("glob: %v", err)
	}

	type match struct {
		path    string
		modTime int64
	}
	var matches []match
	err := filepath.WalkDir(base, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if entry.IsDir() {
			if d.skipDirNames[entry.Name()] || (entry.Name() != "." && strings.HasPrefix(entry.Name(), ".") && path != base) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return nil
		}
		ok, err := filepath.Match(pattern, rel)
		if err != nil {
			return err
		}
		if !ok {
			// Also try matching just the basename, for patterns like "*.go"
			// applied against files several directories deep.
			ok, err = filepath.Match(pattern, filepath.Base(rel))
			if err != nil {
				return err
			}
		}
		if !ok {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return nil
		}
		matches = append(matches, match{path: rel, modTime: info.ModTime().UnixNano()})
		return nil
	})
	if err != nil {
		return Failuref("glob %q: %v", pattern, err)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].modTime > matches[j].modTime })
	lines := make([]string, 0, len(matches))
	for _, m := range matches {
		lines = append(lines, m.path)
	}
	return Success(strings.Join(lines, "\n"))
}

// handleGrep implements the Grep tool: a regexp search over file contents
// rooted at path (default the workspace root), skipping binary files and
// the dispatcher's configured directory denylist, capped at grepMaxMatch
// results with a truncation notice appended when the cap is hit (spec.md
// §4.1).
func handleGrep(_ context.Context, d *Dispatcher, inputs map[string]any) ToolResult {
	pattern, ok := stringInput(inputs, "pattern")
	if !ok || pattern == "" {
		return Failuref("grep: missing required input %q", "pattern")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Failuref("grep: invalid pattern %q: %v", pattern, err)
	}
	base := d.root
	if relPath, ok := stringInput(inputs, "path"); ok && relPath != "" {
		abs, err := d.resolve(relPath)
		if err != nil {
			return Failure(err)
		}
		base = abs
	}
	if _, err := os.Stat(base); err != nil {
		if os.IsNotExist(err) {
			return Failuref("grep: missing path %q", base)
		}
		return Failuref("grep: %v", err)
	}
	var globFilter func(rel string) bool
	if g, ok := stringInput(inputs, "glob"); ok && g != "" {
		globFilter = func(rel string) bool {
			ok, _ := filepath.Match(g, filepath.Base(rel))
			return ok
		}
	}

	var records []string
	truncated := false
	walkErr := filepath.WalkDir(base, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || truncated {
			if truncated {
				return filepath.SkipAll
			}
			return nil
		}
		if entry.IsDir() {
			if d.skipDirNames[entry.Name()] || (entry.Name() != "." && strings.HasPrefix(entry.Name(), ".") && path != base) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.binaryExtSet[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return nil
		}
		if globFilter != nil && !globFilter(rel) {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return nil
		}
		defer f.Close()
		if isBinary(f) {
			return nil
		}
		if _, err := f.Seek(0, 0); err != nil {
			return nil
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
		lineNo := 1
		for scanner.Scan() {
			if re.MatchString(scanner.Text()) {
				records = append(records, fmt.Sprintf("%s:%d: %s", rel, lineNo, scanner.Text()))
				if len(records) >= d.grepMaxMatch {
					truncated = true
					return filepath.SkipAll
				}
			}
			lineNo++
		}
		return nil
	})
	if walkErr != nil {
		return Failuref("grep %q: %v", pattern, walkErr)
	}
	out := strings.Join(records, "\n")
	if truncated {
		out += fmt.Sprintf("\n... truncated at %d matches", d.grepMaxMatch)
	}
	return Success(out)
}

// isBinary sniffs the first 8000 bytes of f for a NUL byte, the same
// heuristic git and most grep implementations use to skip binary content.
func isBinary(f *os.File) bool {
	buf := make([]byte, 8000)
	n, _ := f.Read(buf)
	return bytes.IndexByte(buf[:n], 0) != -1
}

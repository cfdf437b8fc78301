// Package testframework implements the Test-Framework Detector (C18):
// workspace-relative auto-detection of the command that runs a project's
// test suite (spec.md §6). app.New calls Detect once, failing fast when no
// command is found and exposing the result as App.TestCommand.
package testframework

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// candidate pairs a marker file, relative to the workspace root, with the
// test command it implies. Checked in order; first match wins (spec.md
// §6).
type candidate struct {
	marker  string
	command string
}

var candidates = []candidate{
	{marker: "pom.xml", command: "mvn test"},
	{marker: "build.gradle", command: "./gradlew test"},
	{marker: "build.gradle.kts", command: "./gradlew test"},
	{marker: "pytest.ini", command: "pytest"},
	{marker: "pyproject.toml", command: "pytest"},
	{marker: "setup.py", command: "pytest"},
}

// Detect returns the test command for root, preferring override if it is
// non-empty (config.Config's TestCommand, spec.md §6's "override framework
// auto-detection"). package.json is checked separately from candidates
// because it requires inspecting the file's "scripts.test" key rather than
// mere presence.
func Detect(root string, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	for _, c := range candidates {
		if exists(filepath.Join(root, c.marker)) {
			return c.command, nil
		}
	}

	if hasNPMTestScript(root) {
		return "npm test", nil
	}

	return "", fmt.Errorf("testframework: no recognized test framework in %s and test.command is unset; aborting before first phase", root)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func hasNPMTestScript(root string) bool {
	raw, err := os.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		return false
	}
	var pkg struct {
		Scripts map[string]string `json:"scripts"`
	}
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return false
	}
	_, ok := pkg.Scripts["test"]
	return ok
}

package testframework

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestDetectOverrideAlwaysWins(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pom.xml", "")
	cmd, err := Detect(dir, "make test")
	require.NoError(t, err)
	assert.Equal(t, "make test", cmd)
}

func TestDetectMarkerFilesInPriorityOrder(t *testing.T) {
	cases := []struct {
		marker string
		want   string
	}{
		{"pom.xml", "mvn test"},
		{"build.gradle", "./gradlew test"},
		{"build.gradle.kts", "./gradlew test"},
		{"pytest.ini", "pytest"},
		{"pyproject.toml", "pytest"},
		{"setup.py", "pytest"},
	}
	for _, c := range cases {
		dir := t.TempDir()
		writeFile(t, dir, c.marker, "")
		cmd, err := Detect(dir, "")
		require.NoError(t, err)
		assert.Equal(t, c.want, cmd, "marker %s", c.marker)
	}
}

func TestDetectFirstCandidateWinsWhenMultiplePresent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "build.gradle", "")
	writeFile(t, dir, "pytest.ini", "")
	cmd, err := Detect(dir, "")
	require.NoError(t, err)
	assert.Equal(t, "./gradlew test", cmd, "pom/gradle candidates precede pytest candidates in the table")
}

func TestDetectNPMTestScript(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"scripts": {"test": "jest"}}`)
	cmd, err := Detect(dir, "")
	require.NoError(t, err)
	assert.Equal(t, "npm test", cmd)
}

func TestDetectPackageJSONWithoutTestScriptIsNotAMatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"scripts": {"build": "webpack"}}`)
	_, err := Detect(dir, "")
	assert.Error(t, err)
}

func TestDetectNoMarkersIsAnError(t *testing.T) {
	dir := t.TempDir()
	_, err := Detect(dir, "")
	assert.Error(t, err)
}

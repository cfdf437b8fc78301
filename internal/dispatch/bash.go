package dispatch

import (
	"bytes"
	"context"
	"os/exec"
	"time"
)

// handleBash implements the Bash tool: runs command through the platform
// shell, rooted at the workspace root, bounded by the dispatcher's
// configured wall-clock timeout (spec.md §4.1 / §6). A non-zero exit code
// is a tool failure whose message is prefixed "Exit code <n>" followed by
// combined stdout+stderr, so the model sees exactly what a developer would
// see at a terminal.
func handleBash(ctx context.Context, d *Dispatcher, inputs map[string]any) ToolResult {
	command, ok := stringInput(inputs, "command")
	if !ok || command == "" {
		return Failuref("bash: missing required input %q", "command")
	}

	timeout := time.Duration(d.bashTimeout) * time.Second
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", command)
	cmd.Dir = d.root

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return Failuref("bash: command timed out after %s\n%s", timeout, out.String())
	}
	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if ok := asExitError(err, &exitErr); ok {
			exitCode = exitErr.ExitCode()
		}
		return Failuref("Exit code %d\n%s", exitCode, out.String())
	}
	return Success(out.String())
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}

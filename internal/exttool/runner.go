package exttool

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// Runner abstracts synchronous invocation of the external helper programs
// the pipeline delegates to (gdal_translate, gdalwarp, enh_lee, convert).
// The core stages only ever see this interface; process-spawning details
// stay behind it so tests can substitute a fake.
type Runner interface {
	// Run invokes name with args and blocks until it exits, returning
	// combined stdout. A non-zero exit is reported as an error carrying
	// the tool's stderr.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)

	// LookPath reports where name resolves on this system, or an error
	// when the tool is not installed.
	LookPath(name string) (string, error)
}

// ExecRunner runs tools as local child processes.
type ExecRunner struct {
	// Timeout bounds a single tool invocation. Zero means no limit.
	Timeout time.Duration

	// Dir is the working directory for invocations; empty means inherit.
	Dir string
}

// Run executes the tool, capturing stdout and stderr separately so failure
// messages surface the tool's own diagnostics.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%s timed out after %s", name, r.Timeout)
		}
		return nil, fmt.Errorf("%s failed: %w\nstderr: %s", name, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// LookPath resolves the tool on PATH.
func (r *ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

package adb

import (
	"bytes"
	"context"
	stderrors "errors"
	"os/exec"
	"time"
)

// Runner executes an external command and reports its outcome.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) *Result
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args and captures both output streams.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) *Result {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	result := &Result{
		Args:     append([]string{name}, args...),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
		}
		result.Err = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			result.Err = ctxErr
		}
	}

	return result
}

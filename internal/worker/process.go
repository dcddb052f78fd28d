package worker

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/doomedramen/autopwn/internal/jobs"
	"github.com/doomedramen/autopwn/pkg/debug"
)

// maxStderrCapture bounds how much tool stderr is kept for the job error field.
const maxStderrCapture = 8 * 1024

// killGracePeriod is how long a child gets after SIGTERM before SIGKILL.
const killGracePeriod = 5 * time.Second

// RunTool spawns one external tool process and streams its stdout line by line
// into onLine. The call blocks until the process exits or ctx is cancelled.
// Cancellation sends SIGTERM and escalates to SIGKILL after a grace period.
// A non-zero exit is returned as an ExternalToolError carrying captured stderr.
func RunTool(ctx context.Context, name string, args []string, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Cancel = func() error {
		debug.Debug("Sending SIGTERM to %s (pid %d)", name, cmd.Process.Pid)
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = killGracePeriod

	var stderr limitedBuffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout pipe for %s: %w", name, err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", name, err)
	}
	debug.Info("Started %s (pid %d)", name, cmd.Process.Pid)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if onLine != nil {
			onLine(scanner.Text())
		}
	}
	// Scanner errors other than a closed pipe are folded into Wait's result.

	err = cmd.Wait()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		// Terminated by pause/stop or timeout; the caller decides what that
		// means for the job record.
		return ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &jobs.ExternalToolError{
			Tool:     name,
			ExitCode: exitErr.ExitCode(),
			Stderr:   stderr.String(),
		}
	}
	return fmt.Errorf("%s failed: %w", name, err)
}

// limitedBuffer keeps only the first maxStderrCapture bytes written.
type limitedBuffer struct {
	buf bytes.Buffer
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	remaining := maxStderrCapture - b.buf.Len()
	if remaining > 0 {
		if len(p) > remaining {
			b.buf.Write(p[:remaining])
		} else {
			b.buf.Write(p)
		}
	}
	// Report full consumption so the child never blocks on stderr.
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	return string(bytes.TrimSpace(b.buf.Bytes()))
}

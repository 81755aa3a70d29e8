package hls

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

// stderrTailSize bounds how much transcoder error output is retained
// for diagnostics. The stream itself must be drained continuously
// regardless: an undrained stderr pipe fills up and deadlocks
// long-running transcodes.
const stderrTailSize = 4 * 1024

// JobStatus is the lifecycle state of a transcoder process.
type JobStatus string

// Job lifecycle states. All but StatusRunning are terminal.
const (
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusCancelled JobStatus = "cancelled"
	StatusFailed    JobStatus = "failed"
	StatusTimedOut  JobStatus = "timed_out"
)

// Job wraps one transcoder subprocess. It is a pure process wrapper:
// argument construction is the Streamer's concern and all output-file
// semantics live in the readiness probe and the cache.
type Job struct {
	ItemID    string
	Variant   Variant
	Dir       string
	StartedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	status   JobStatus
	exitCode int
	startErr error
	stderr   *tailBuffer
}

// startJob spawns the transcoder asynchronously and returns immediately.
// The process is terminated by Cancel or by the hard timeout, whichever
// fires first.
func startJob(itemID string, v Variant, dir, bin string, argv []string, timeout time.Duration, logger *slog.Logger) *Job {
	ctx, cancel := context.WithCancel(context.Background())
	j := &Job{
		ItemID:    itemID,
		Variant:   v,
		Dir:       dir,
		StartedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
		status:    StatusRunning,
		stderr:    &tailBuffer{max: stderrTailSize},
	}
	go j.run(ctx, bin, argv, timeout, logger)
	return j
}

// run executes the process and records the terminal status.
func (j *Job) run(ctx context.Context, bin string, argv []string, timeout time.Duration, logger *slog.Logger) {
	defer close(j.done)

	runCtx, cancelTimeout := context.WithTimeout(ctx, timeout)
	defer cancelTimeout()

	cmd := exec.CommandContext(runCtx, bin, argv...) //nolint:gosec // binary path is validated at streamer init
	cmd.Stdout = io.Discard
	cmd.Stderr = j.stderr

	if err := cmd.Start(); err != nil {
		j.mu.Lock()
		j.startErr = err
		j.mu.Unlock()
		j.setTerminal(StatusFailed, -1)
		if logger != nil {
			logger.Error("transcoder failed to start", "item", j.ItemID, "error", err)
		}
		return
	}

	err := cmd.Wait()

	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		j.setTerminal(StatusCancelled, exitCode(err))
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		j.setTerminal(StatusTimedOut, exitCode(err))
		if logger != nil {
			logger.Error("transcoder timed out", "item", j.ItemID, "timeout", timeout)
		}
	case err != nil:
		j.setTerminal(StatusFailed, exitCode(err))
	default:
		j.setTerminal(StatusCompleted, 0)
	}
}

// Cancel terminates the process if it is still running. Safe to call
// multiple times and after the job has finished.
func (j *Job) Cancel() {
	j.cancel()
}

// Done is closed when the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Status returns the current lifecycle state.
func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Running reports whether the process has not yet terminated.
func (j *Job) Running() bool {
	return j.Status() == StatusRunning
}

// ExitCode returns the process exit code, valid once the job is terminal.
func (j *Job) ExitCode() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.exitCode
}

// StartErr returns the error that prevented the process from starting,
// or nil once it has started. Visible before the job turns terminal.
func (j *Job) StartErr() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.startErr
}

// StderrTail returns up to the last 4 KiB of the transcoder's error output.
func (j *Job) StderrTail() string {
	return j.stderr.String()
}

func (j *Job) setTerminal(status JobStatus, code int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = status
	j.exitCode = code
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}

// tailBuffer is an io.Writer retaining only the last max bytes written.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

// Write implements io.Writer. It never fails, so the subprocess is
// always drained.
func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(p) >= t.max {
		t.buf = append(t.buf[:0], p[len(p)-t.max:]...)
		return len(p), nil
	}
	t.buf = append(t.buf, p...)
	if overflow := len(t.buf) - t.max; overflow > 0 {
		t.buf = t.buf[overflow:]
	}
	return len(p), nil
}

// String returns the retained tail.
func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

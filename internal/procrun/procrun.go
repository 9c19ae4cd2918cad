package procrun

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"hls-vault/internal/logging"
)

// Result describes a finished process.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Duration time.Duration

	// Err is non-nil when the process failed to run to a clean exit:
	// start failure, non-zero exit, kill on timeout or cancellation.
	Err error
}

// Success reports whether the process started and exited zero.
func (r Result) Success() bool {
	return r.Err == nil && r.ExitCode == 0
}

// Handle tracks one running supervised process.
type Handle struct {
	cmd     *exec.Cmd
	cancel  context.CancelFunc
	timeCtx context.Context
	stdout  bytes.Buffer
	stderr  bytes.Buffer
	started time.Time
	done    chan struct{}
	result  Result
}

// Start spawns name with args under supervision and returns immediately.
// A timeout of zero means no wall-clock limit beyond ctx itself. The process
// is killed when ctx is cancelled or the timeout expires.
func Start(ctx context.Context, timeout time.Duration, name string, args ...string) (*Handle, error) {
	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}

	cmd := exec.CommandContext(runCtx, name, args...)

	h := &Handle{
		cmd:     cmd,
		cancel:  cancel,
		timeCtx: runCtx,
		done:    make(chan struct{}),
	}
	cmd.Stdout = &h.stdout
	cmd.Stderr = &h.stderr

	logging.Debug("spawning process: %s %v", name, args)

	h.started = time.Now()
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, err
	}

	go h.await()
	return h, nil
}

// Run spawns the process and blocks until it terminates.
func Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error) {
	h, err := Start(ctx, timeout, name, args...)
	if err != nil {
		return Result{Err: err}, err
	}
	return h.Wait(), nil
}

func (h *Handle) await() {
	err := h.cmd.Wait()
	h.cancel()

	res := Result{
		Stdout:   h.stdout.String(),
		Stderr:   h.stderr.String(),
		Duration: time.Since(h.started),
		Err:      err,
	}
	if state := h.cmd.ProcessState; state != nil {
		res.ExitCode = state.ExitCode()
	}
	if errors.Is(h.timeCtx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
	}

	h.result = res
	close(h.done)
}

// Wait blocks until the process terminates and returns its result. Safe to
// call from multiple goroutines; all callers see the same result.
func (h *Handle) Wait() Result {
	<-h.done
	return h.result
}

// Done exposes completion for select loops.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

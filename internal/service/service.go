// Package service owns the lifecycle of the backend server subprocess.
package service

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/user/applaunch/internal/config"
)

type State string

const (
	StateRunning State = "running"
	StateExited  State = "exited"
)

// Handle tracks one started backend process. It is created by Start and
// mutated only by the waiter goroutine; callers observe it through methods.
type Handle struct {
	ID  string
	PID int

	mu       sync.RWMutex
	state    State
	exitCode *int

	cmd  *exec.Cmd
	done chan struct{}
	out  io.Closer // startup log file, if any
}

// IsRunning reports liveness without blocking.
func (h *Handle) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state == StateRunning
}

// ExitCode returns the recorded exit code once the process has exited.
func (h *Handle) ExitCode() (int, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.exitCode == nil {
		return 0, false
	}
	return *h.exitCode, true
}

// Done returns a channel closed when the process exits, however it exits.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Start launches the backend command detached from the launcher's stdio.
// Exactly one process is created per call; there is no respawn on exit.
func Start(cfg config.ServiceConfig) (*Handle, error) {
	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Dir = cfg.Dir

	// stdin stays nil (/dev/null). Output is discarded unless the config
	// points it at a log file.
	var out io.Closer
	if cfg.StartupLog != "" {
		f, err := os.OpenFile(cfg.StartupLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open startup log: %w", err)
		}
		cmd.Stdout = f
		cmd.Stderr = f
		out = f
	}

	if err := cmd.Start(); err != nil {
		if out != nil {
			_ = out.Close()
		}
		return nil, &SpawnError{Command: cfg.Command, Err: err}
	}

	h := &Handle{
		ID:    uuid.NewString(),
		PID:   cmd.Process.Pid,
		state: StateRunning,
		cmd:   cmd,
		done:  make(chan struct{}),
		out:   out,
	}

	go h.waitForExit()

	return h, nil
}

// waitForExit reaps the process and records its final state.
func (h *Handle) waitForExit() {
	err := h.cmd.Wait()

	h.mu.Lock()
	code := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		code = exitErr.ExitCode()
	} else if err != nil {
		code = -1
	}
	h.exitCode = &code
	h.state = StateExited
	h.mu.Unlock()

	if h.out != nil {
		_ = h.out.Close()
	}
	close(h.done)
}

// Terminate requests graceful termination and escalates to SIGKILL if the
// process has not exited within timeout. It is idempotent: terminating an
// already-exited handle is a no-op.
func Terminate(h *Handle, timeout time.Duration) error {
	if !h.IsRunning() {
		return nil
	}

	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Process may have exited between the check and the signal.
		if !h.IsRunning() {
			return nil
		}
		log.Printf("service: SIGTERM pid %d: %v, escalating", h.PID, err)
	}

	select {
	case <-h.done:
		return nil
	case <-time.After(timeout):
	}

	log.Printf("service: pid %d did not exit within %v, sending SIGKILL", h.PID, timeout)
	if err := h.cmd.Process.Kill(); err != nil {
		if !h.IsRunning() {
			return nil
		}
		return &TerminationError{PID: h.PID, Err: err}
	}

	// SIGKILL cannot be ignored; the waiter closes done once the
	// process is reaped.
	select {
	case <-h.done:
		return nil
	case <-time.After(timeout):
		return &TerminationError{PID: h.PID, Err: fmt.Errorf("still running after SIGKILL")}
	}
}

// Package session orchestrates one launcher run: start the backend, wait
// for readiness, open the browser, then hold the session open until a
// shutdown trigger arrives.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/user/applaunch/internal/browser"
	"github.com/user/applaunch/internal/config"
	"github.com/user/applaunch/internal/readiness"
	"github.com/user/applaunch/internal/service"
)

// ErrLaunchFailed is the umbrella for any failure before the browser is
// up; whatever was already started has been cleaned up best-effort.
var ErrLaunchFailed = errors.New("launch failed")

// Stages reported by LaunchFailedError.
const (
	StageBackendSpawn = "backend spawn"
	StageReadiness    = "readiness"
	StageBrowserSpawn = "browser spawn"
)

type LaunchFailedError struct {
	Stage string
	Err   error
}

func (e *LaunchFailedError) Error() string {
	return fmt.Sprintf("launch failed at %s: %v", e.Stage, e.Err)
}

func (e *LaunchFailedError) Unwrap() []error {
	return []error{ErrLaunchFailed, e.Err}
}

// Supervisor drives the session state machine. It runs no internal
// concurrency of its own: the backend and browser are independent OS
// processes, and the supervisor's only job between browser launch and
// shutdown is to keep the parent process alive.
type Supervisor struct {
	cfg *config.Config

	mu     sync.RWMutex
	state  State
	handle *service.Handle

	// Collaborators, swappable in tests.
	startService  func(config.ServiceConfig) (*service.Handle, error)
	launchBrowser func(config.BrowserConfig, string) (int, error)
	strategy      readiness.Strategy
}

func New(cfg *config.Config) *Supervisor {
	var strategy readiness.Strategy
	switch cfg.Readiness.Strategy {
	case config.StrategyDelay:
		strategy = readiness.FixedDelay{Delay: cfg.Readiness.Delay.Std()}
	default:
		strategy = readiness.PortPoll{
			Interval: cfg.Readiness.PollInterval.Std(),
			MaxWait:  cfg.Readiness.MaxWait.Std(),
		}
	}

	return &Supervisor{
		cfg:           cfg,
		state:         StateNotStarted,
		startService:  service.Start,
		launchBrowser: browser.Launch,
		strategy:      strategy,
	}
}

// State returns the current session state.
func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Handle exposes the backend handle once the service has been started.
func (s *Supervisor) Handle() *service.Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handle
}

func (s *Supervisor) setState(next State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order[next] <= order[s.state] {
		// States never move backwards; a violation here is a
		// supervisor bug, not a runtime condition.
		panic(fmt.Sprintf("session: state %s -> %s", s.state, next))
	}
	s.state = next
}

// Run executes one full session. The passed context is the shutdown
// trigger: cancel it (Ctrl-C, SIGTERM, console close) and the supervisor
// terminates the backend and ends the session.
//
// Failures before the browser is up abort the launch and return a
// LaunchFailedError after cleanup. Failures at shutdown are returned as
// the service's TerminationError but the session still reaches Ended.
func (s *Supervisor) Run(ctx context.Context) error {
	s.setState(StateServiceStarting)
	log.Printf("starting backend: %s (port %d)", s.cfg.Service.Command, s.cfg.Service.Port)

	handle, err := s.startService(s.cfg.Service)
	if err != nil {
		return &LaunchFailedError{Stage: StageBackendSpawn, Err: err}
	}
	s.mu.Lock()
	s.handle = handle
	s.mu.Unlock()

	if err := s.strategy.Wait(ctx, s.cfg.Service.Port); err != nil {
		if ctx.Err() != nil {
			// Shutdown arrived while the backend was still coming
			// up; not a failure.
			log.Printf("shutdown requested during startup")
			return s.shutdown(handle)
		}
		log.Printf("backend never became ready: %v", err)
		s.cleanup(handle)
		return &LaunchFailedError{Stage: StageReadiness, Err: err}
	}

	s.setState(StateServiceReady)
	log.Printf("backend ready on port %d", s.cfg.Service.Port)

	if s.cfg.NoBrowser {
		log.Printf("browser launch disabled, open %s manually", s.cfg.TargetURL())
	} else {
		pid, err := s.launchBrowser(s.cfg.Browser, s.cfg.TargetURL())
		if err != nil {
			s.cleanup(handle)
			return &LaunchFailedError{Stage: StageBrowserSpawn, Err: err}
		}
		s.setState(StateBrowserLaunched)
		log.Printf("browser launched (pid %d) at %s", pid, s.cfg.TargetURL())
	}

	// Hold the session open. The backend exiting on its own also ends
	// the session: any browser window is left alone and no restart is
	// attempted.
	select {
	case <-ctx.Done():
		log.Printf("shutting down...")
	case <-handle.Done():
		log.Printf("backend exited, ending session")
	}

	return s.shutdown(handle)
}

// shutdown terminates the backend and moves the session to its terminal
// state. A termination failure is returned for reporting but does not
// keep the session from ending.
func (s *Supervisor) shutdown(handle *service.Handle) error {
	s.setState(StateTerminating)
	err := service.Terminate(handle, s.cfg.TerminateTimeout.Std())
	if err != nil {
		log.Printf("cleanup: %v", err)
	}
	s.setState(StateEnded)
	return err
}

// cleanup is the pre-browser failure path: best-effort terminate, errors
// logged only, since the launch error itself is what gets surfaced.
func (s *Supervisor) cleanup(handle *service.Handle) {
	if err := service.Terminate(handle, s.cfg.TerminateTimeout.Std()); err != nil {
		log.Printf("cleanup: %v", err)
	}
}

package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/applaunch/internal/browser"
	"github.com/user/applaunch/internal/config"
	"github.com/user/applaunch/internal/readiness"
	"github.com/user/applaunch/internal/service"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func testConfig(port int) *config.Config {
	return &config.Config{
		Service: config.ServiceConfig{
			Command: "sleep",
			Args:    []string{"30"},
			Port:    port,
		},
		Readiness: config.ReadinessConfig{
			Strategy:     config.StrategyPoll,
			MaxWait:      config.Duration(5 * time.Second),
			PollInterval: config.Duration(50 * time.Millisecond),
			Delay:        config.Duration(50 * time.Millisecond),
		},
		Browser: config.BrowserConfig{
			Width:   1280,
			Height:  800,
			AppMode: true,
		},
		TerminateTimeout: config.Duration(2 * time.Second),
	}
}

// browserRecorder stands in for the real browser so tests can count
// launches and inspect the URL.
type browserRecorder struct {
	mu    sync.Mutex
	calls int
	url   string
	err   error
}

func (r *browserRecorder) launch(cfg config.BrowserConfig, url string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.url = url
	if r.err != nil {
		return 0, r.err
	}
	return 4242, nil
}

func (r *browserRecorder) snapshot() (int, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls, r.url
}

func waitForState(t *testing.T, sup *Supervisor, want State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if sup.State() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("supervisor never reached state %s (stuck at %s)", want, sup.State())
}

// Scenario A: the backend binds its port after 500ms; the session launches
// the browser exactly once with the right URL and shuts down cleanly on
// the shutdown trigger.
func TestRunFullSession(t *testing.T) {
	port := freePort(t)
	cfg := testConfig(port)
	sup := New(cfg)

	rec := &browserRecorder{}
	sup.launchBrowser = rec.launch

	stopListener := make(chan struct{})
	defer close(stopListener)
	go func() {
		time.Sleep(500 * time.Millisecond)
		l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			return
		}
		<-stopListener
		l.Close()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- sup.Run(ctx) }()

	waitForState(t, sup, StateBrowserLaunched)
	require.True(t, sup.Handle().IsRunning())

	// Shutdown trigger.
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("session did not end")
	}

	assert.Equal(t, StateEnded, sup.State())
	assert.False(t, sup.Handle().IsRunning())

	calls, url := rec.snapshot()
	assert.Equal(t, 1, calls)
	assert.Contains(t, url, fmt.Sprintf(":%d", port))
	assert.Equal(t, ExitOK, ExitCode(nil))
}

// Scenario B: nonexistent backend command fails the launch before any
// browser is involved.
func TestRunBackendSpawnFailure(t *testing.T) {
	cfg := testConfig(freePort(t))
	cfg.Service.Command = "/nonexistent/backend-binary"
	sup := New(cfg)

	rec := &browserRecorder{}
	sup.launchBrowser = rec.launch

	err := sup.Run(context.Background())
	require.Error(t, err)

	assert.True(t, errors.Is(err, ErrLaunchFailed))
	assert.True(t, errors.Is(err, service.ErrSpawn))

	var launchErr *LaunchFailedError
	require.True(t, errors.As(err, &launchErr))
	assert.Equal(t, StageBackendSpawn, launchErr.Stage)

	calls, _ := rec.snapshot()
	assert.Equal(t, 0, calls)
	assert.Equal(t, ExitBackendSpawn, ExitCode(err))
}

func TestRunReadinessTimeout(t *testing.T) {
	cfg := testConfig(freePort(t))
	cfg.Readiness.MaxWait = config.Duration(300 * time.Millisecond)
	sup := New(cfg)

	rec := &browserRecorder{}
	sup.launchBrowser = rec.launch

	err := sup.Run(context.Background())
	require.Error(t, err)

	assert.True(t, errors.Is(err, ErrLaunchFailed))
	assert.True(t, errors.Is(err, readiness.ErrTimeout))
	assert.Equal(t, ExitReadinessTimeout, ExitCode(err))

	// The backend that never became ready was cleaned up.
	assert.False(t, sup.Handle().IsRunning())

	calls, _ := rec.snapshot()
	assert.Equal(t, 0, calls)
}

func TestRunBrowserSpawnFailure(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	port := l.Addr().(*net.TCPAddr).Port

	cfg := testConfig(port)
	sup := New(cfg)

	rec := &browserRecorder{err: &browser.SpawnError{Command: "chromium", Err: errors.New("not found")}}
	sup.launchBrowser = rec.launch

	err = sup.Run(context.Background())
	require.Error(t, err)

	assert.True(t, errors.Is(err, ErrLaunchFailed))
	assert.True(t, errors.Is(err, browser.ErrSpawn))
	assert.Equal(t, ExitBrowserSpawn, ExitCode(err))
	assert.False(t, sup.Handle().IsRunning())
}

// Decided behavior: the backend exiting on its own ends the session
// normally; the browser window is left alone.
func TestRunBackendSelfExit(t *testing.T) {
	cfg := testConfig(freePort(t))
	cfg.Service.Command = "sh"
	cfg.Service.Args = []string{"-c", "sleep 0.3"}
	cfg.Readiness.Strategy = config.StrategyDelay
	cfg.Readiness.Delay = config.Duration(50 * time.Millisecond)
	sup := New(cfg)

	rec := &browserRecorder{}
	sup.launchBrowser = rec.launch

	err := sup.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateEnded, sup.State())
	assert.False(t, sup.Handle().IsRunning())
	assert.Equal(t, ExitOK, ExitCode(err))
}

func TestRunNoBrowser(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	port := l.Addr().(*net.TCPAddr).Port

	cfg := testConfig(port)
	cfg.NoBrowser = true
	sup := New(cfg)

	rec := &browserRecorder{}
	sup.launchBrowser = rec.launch

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- sup.Run(ctx) }()

	waitForState(t, sup, StateServiceReady)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("session did not end")
	}

	calls, _ := rec.snapshot()
	assert.Equal(t, 0, calls)
	assert.Equal(t, StateEnded, sup.State())
}

// A shutdown signal while the backend is still starting aborts the launch
// cleanly rather than reporting a failure.
func TestRunCanceledDuringStartup(t *testing.T) {
	cfg := testConfig(freePort(t))
	sup := New(cfg)

	rec := &browserRecorder{}
	sup.launchBrowser = rec.launch

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	err := sup.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, StateEnded, sup.State())
	assert.False(t, sup.Handle().IsRunning())

	calls, _ := rec.snapshot()
	assert.Equal(t, 0, calls)
}

func TestExitCodeMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"nil", nil, ExitOK},
		{"backend spawn", &LaunchFailedError{Stage: StageBackendSpawn, Err: &service.SpawnError{Command: "x", Err: errors.New("x")}}, ExitBackendSpawn},
		{"readiness", &LaunchFailedError{Stage: StageReadiness, Err: &readiness.TimeoutError{Port: 1, Waited: time.Second}}, ExitReadinessTimeout},
		{"browser spawn", &LaunchFailedError{Stage: StageBrowserSpawn, Err: &browser.SpawnError{Command: "x", Err: errors.New("x")}}, ExitBrowserSpawn},
		{"termination", &service.TerminationError{PID: 1, Err: errors.New("x")}, ExitTermination},
		{"other", errors.New("bad flag"), ExitUsage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, ExitCode(tt.err))
		})
	}
}

// Package browser spawns a browser window pointed at the backend's local
// address. The browser is an external collaborator: the launcher only
// depends on the executable accepting a URL and basic window-sizing flags.
package browser

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/user/applaunch/internal/config"
)

// ErrSpawn mirrors the service package's spawn failure: the browser
// executable could not be started.
var ErrSpawn = errors.New("browser could not be spawned")

type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn browser %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return ErrSpawn
}

// Args builds the argument list for a configured browser executable.
// Chromium-family flags; app mode opens a dedicated window without
// browser chrome.
func Args(cfg config.BrowserConfig, url string) []string {
	args := []string{
		fmt.Sprintf("--window-size=%d,%d", cfg.Width, cfg.Height),
		fmt.Sprintf("--window-position=%d,%d", cfg.X, cfg.Y),
	}
	if cfg.AppMode {
		args = append(args, fmt.Sprintf("--app=%s", url))
	} else {
		args = append(args, url)
	}
	return args
}

// Launch spawns the browser and returns its process id immediately. It
// never waits for the window to close: the browser may manage windows and
// tabs outside this session's concern. Each launch requests a fresh
// window; no running instance is detected or reused.
func Launch(cfg config.BrowserConfig, url string) (int, error) {
	var cmd *exec.Cmd

	if cfg.Command != "" {
		cmd = exec.Command(cfg.Command, Args(cfg, url)...)
	} else {
		// No browser configured: fall back to the platform's default
		// opener. Openers take no geometry flags.
		switch runtime.GOOS {
		case "darwin":
			cmd = exec.Command("open", url)
		case "linux":
			cmd = exec.Command("xdg-open", url)
		case "windows":
			cmd = exec.Command("cmd", "/c", "start", url)
		default:
			return 0, &SpawnError{Command: "default opener", Err: fmt.Errorf("unsupported platform %s", runtime.GOOS)}
		}
	}

	if err := cmd.Start(); err != nil {
		return 0, &SpawnError{Command: cmd.Path, Err: err}
	}

	pid := cmd.Process.Pid

	// Reap the child so it does not linger as a zombie.
	go func() {
		_ = cmd.Wait()
	}()

	return pid, nil
}

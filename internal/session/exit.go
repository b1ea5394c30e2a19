package session

import (
	"errors"

	"github.com/user/applaunch/internal/browser"
	"github.com/user/applaunch/internal/readiness"
	"github.com/user/applaunch/internal/service"
)

// Exit codes reported by the launcher. Each failure class gets its own
// code so callers can tell a dead backend from a missing browser.
const (
	ExitOK               = 0
	ExitUsage            = 1
	ExitBackendSpawn     = 2
	ExitReadinessTimeout = 3
	ExitBrowserSpawn     = 4
	ExitTermination      = 5
)

// ExitCode maps a Run error to the launcher's exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, service.ErrSpawn):
		return ExitBackendSpawn
	case errors.Is(err, readiness.ErrTimeout):
		return ExitReadinessTimeout
	case errors.Is(err, browser.ErrSpawn):
		return ExitBrowserSpawn
	case errors.Is(err, service.ErrTermination):
		return ExitTermination
	default:
		return ExitUsage
	}
}

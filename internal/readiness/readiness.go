// Package readiness blocks the launch sequence until the backend is
// presumed able to accept connections, not merely started.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrTimeout is returned when the maximum wait elapses before the
// service becomes reachable.
var ErrTimeout = errors.New("service did not become ready in time")

type TimeoutError struct {
	Port   int
	Waited time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("port %d not reachable after %v", e.Port, e.Waited)
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}

// Strategy decides when a started service counts as ready.
type Strategy interface {
	Wait(ctx context.Context, port int) error
}

// PortPoll dials the service's listen port until it accepts a connection
// or MaxWait elapses. Preferred when the port is known up front: it closes
// the race between "process started" and "socket bound".
type PortPoll struct {
	Interval time.Duration
	MaxWait  time.Duration
}

func (p PortPoll) Wait(ctx context.Context, port int) error {
	addr := net.JoinHostPort("127.0.0.1", fmt.Sprintf("%d", port))
	deadline := time.Now().Add(p.MaxWait)

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		conn, err := net.DialTimeout("tcp", addr, p.Interval)
		if err == nil {
			conn.Close()
			return nil
		}

		if time.Now().After(deadline) {
			return &TimeoutError{Port: port, Waited: p.MaxWait}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// FixedDelay sleeps a configured duration with no verification. A weak
// fallback for backends whose port is not known at launch time.
type FixedDelay struct {
	Delay time.Duration
}

func (f FixedDelay) Wait(ctx context.Context, port int) error {
	timer := time.NewTimer(f.Delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package session

// State tracks how far the session has progressed. Transitions are
// one-directional; no state is revisited.
type State string

const (
	StateNotStarted      State = "not_started"
	StateServiceStarting State = "service_starting"
	StateServiceReady    State = "service_ready"
	StateBrowserLaunched State = "browser_launched"
	StateTerminating     State = "terminating"
	StateEnded           State = "ended"
)

// order assigns each state its position in the forward-only progression.
// Terminating is reachable from any earlier state once shutdown begins.
var order = map[State]int{
	StateNotStarted:      0,
	StateServiceStarting: 1,
	StateServiceReady:    2,
	StateBrowserLaunched: 3,
	StateTerminating:     4,
	StateEnded:           5,
}

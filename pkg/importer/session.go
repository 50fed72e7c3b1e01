// Package importer drives one paginated import session: bounded-concurrency
// page fetching, offset-addressed sink writes, and the progress/completion
// state machine.
package importer

import (
	"sync"

	"github.com/google/uuid"
)

// State is the lifecycle state of an import session.
type State int32

const (
	// StateIdle means the session exists but no fetch has started.
	StateIdle State = iota

	// StateActive means pages are being fetched.
	StateActive

	// StateFinished means every expected record was retrieved and the
	// destination was finalized. Terminal.
	StateFinished

	// StateCancelled means the session failed or was aborted and the
	// destination was removed. Terminal.
	StateCancelled
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateFinished:
		return "finished"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateCancelled
}

// Session tracks one end-to-end paginated import from confirmation to
// finalize or cancel. Counters are mutated by the driver's collector and
// read by the coordinator; all access goes through the mutex.
type Session struct {
	ID           string
	Destination  string
	TotalResults int

	mu        sync.Mutex
	state     State
	retrieved int
	inFlight  int
	elapsed   int // whole seconds
}

// NewSession creates an idle session for the given destination and expected
// total.
func NewSession(destination string, totalResults int) *Session {
	return &Session{
		ID:           uuid.NewString(),
		Destination:  destination,
		TotalResults: totalResults,
		state:        StateIdle,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Activate moves the session from idle to active. Returns false if the
// session already left idle.
func (s *Session) Activate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return s.state == StateActive
	}
	s.state = StateActive
	return true
}

// Finish moves the session from active to finished. Returns false if the
// session is not active; a terminal session is never resurrected.
func (s *Session) Finish() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return false
	}
	s.state = StateFinished
	return true
}

// Cancel moves the session to cancelled from any non-terminal state.
// Returns false if the session was already terminal, so cleanup runs once.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return false
	}
	s.state = StateCancelled
	return true
}

// AddRetrieved adds a page's record count to the cumulative counter and
// returns the new total.
func (s *Session) AddRetrieved(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retrieved += n
	return s.retrieved
}

// Retrieved returns the cumulative retrieved record count.
func (s *Session) Retrieved() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retrieved
}

// IncInFlight records one dispatched fetch and returns the new in-flight count.
func (s *Session) IncInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight++
	return s.inFlight
}

// DecInFlight records one completed fetch.
func (s *Session) DecInFlight() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--
}

// Tick advances the elapsed-time counter by one second while the session is
// active. Once the session leaves active, ticks are no-ops: an in-flight
// timer must not resurrect a finished or cancelled session.
func (s *Session) Tick() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return s.elapsed, false
	}
	s.elapsed++
	return s.elapsed, true
}

// Snapshot is a point-in-time view of the session for progress rendering.
type Snapshot struct {
	SessionID      string
	Destination    string
	State          State
	Retrieved      int
	Total          int
	InFlight       int
	ElapsedSeconds int
	Percent        float64
}

// Snapshot returns a consistent view of the session's counters.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	percent := 0.0
	if s.TotalResults > 0 {
		percent = float64(s.retrieved) / float64(s.TotalResults) * 100
	}
	return Snapshot{
		SessionID:      s.ID,
		Destination:    s.Destination,
		State:          s.state,
		Retrieved:      s.retrieved,
		Total:          s.TotalResults,
		InFlight:       s.inFlight,
		ElapsedSeconds: s.elapsed,
		Percent:        percent,
	}
}

// AllLoaded reports whether every expected record has been retrieved.
func (s *Session) AllLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retrieved >= s.TotalResults
}

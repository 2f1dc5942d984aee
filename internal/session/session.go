// Package session implements the Session record (spec §3) and its store:
// in-memory, authoritative, optionally mirrored to badger for durability
// and to Redis for external observability (spec §4.9).
package session

import (
	"context"
	"time"

	"github.com/M4GNV5/iso15118/internal/message"
)

// Role is which side of the session this process is playing.
type Role string

const (
	RoleEVCC Role = "EVCC"
	RoleSECC Role = "SECC"
)

// TimerName is one of the three dialect-specific deadlines a session
// tracks (spec §3).
type TimerName string

const (
	SequenceTimeout    TimerName = "SequenceTimeout"
	OngoingTimeout     TimerName = "OngoingTimeout"
	PerformanceTimeout TimerName = "PerformanceTimeout"
)

// TimeoutFor returns the dialect-specific value of a named timer (spec
// §4.5: -2 sequence 40s, ongoing 60s, performance 4.5s for CurrentDemand;
// -20 is analogous, per spec's own wording, so it reuses the same values
// until the -20 Annex timer table is wired in as a distinct constant set).
func TimeoutFor(d message.Dialect, name TimerName) time.Duration {
	switch name {
	case SequenceTimeout:
		return 40 * time.Second
	case OngoingTimeout:
		return 60 * time.Second
	case PerformanceTimeout:
		return 4500 * time.Millisecond
	default:
		return 40 * time.Second
	}
}

// Two-stage shutdown delays, grounded on the original's
// V2GCommunicationSession.stop() (SUPPLEMENTED FEATURES, SPEC_FULL.md §4):
// sleep 2s to give an in-flight response time to reach the peer, then 3s
// more before the socket itself closes. Named and overridable rather than
// a bare time.Sleep, since spec §5 requires every suspension to be just
// another case in the session's select.
var (
	PreCloseDelay    = 2 * time.Second
	SocketCloseDelay = 3 * time.Second
)

// Session is the unit of work (spec §3): created at connection accept,
// mutated only by its owning state machine goroutine, destroyed on
// termination. Store wraps access from diagnostics/mirror code with a
// per-session lock so nothing outside the owning goroutine ever observes
// a half-written field.
type Session struct {
	ID        [8]byte
	Role      Role
	Dialect   message.Dialect
	TLS       bool
	StartedAt time.Time

	CurrentState string
	StartState   string // for Resume()

	SelectedMode   message.EnergyTransferMode
	SelectedMethod message.PaymentOption
	Schedule       message.ChargingSchedule

	EVCCID string
	EVSEID string

	Deadlines map[TimerName]time.Time

	Terminated bool
	Paused     bool
}

// New creates a session in its start state, with no timers armed.
func New(id [8]byte, role Role, d message.Dialect, startState string) *Session {
	return &Session{
		ID:           id,
		Role:         role,
		Dialect:      d,
		StartedAt:    time.Now(),
		CurrentState: startState,
		StartState:   startState,
		Deadlines:    make(map[TimerName]time.Time),
	}
}

// Arm sets a timer deadline relative to now.
func (s *Session) Arm(name TimerName) {
	s.Deadlines[name] = time.Now().Add(TimeoutFor(s.Dialect, name))
}

// Cancel clears a timer, as required on arrival of its paired response
// (spec Testable Property 2: "either the paired response arrives and its
// timer is cancelled, or the timer fires ... never both, never neither").
func (s *Session) Cancel(name TimerName) {
	delete(s.Deadlines, name)
}

// NextDeadline returns the soonest armed timer, for use as a select case
// in the session's read/timer/controller suspension loop (spec §5).
func (s *Session) NextDeadline() (TimerName, time.Time, bool) {
	var (
		soonest TimerName
		at      time.Time
		found   bool
	)
	for name, deadline := range s.Deadlines {
		if !found || deadline.Before(at) {
			soonest, at, found = name, deadline, true
		}
	}
	return soonest, at, found
}

// Resume implements the original's SessionStateMachine.resume(): reset to
// the start state without tearing down the transport. It is not general
// TCP-loss resumability (spec's Open Questions decline that). Neither engine
// has a Pause state, and nothing in this repo calls it.
func (s *Session) Resume() {
	s.CurrentState = s.StartState
	s.Paused = false
}

// Stop runs the two-stage graceful shutdown: wait PreCloseDelay (time for
// an in-flight response to reach the peer), then SocketCloseDelay more,
// then invoke closeSocket. ctx cancellation skips straight to closing.
func (s *Session) Stop(ctx context.Context, closeSocket func() error) error {
	s.Terminated = true

	select {
	case <-time.After(PreCloseDelay):
	case <-ctx.Done():
		return closeSocket()
	}

	select {
	case <-time.After(SocketCloseDelay):
	case <-ctx.Done():
	}

	return closeSocket()
}

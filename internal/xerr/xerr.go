// Package xerr defines the error taxonomy shared by every role engine.
//
// Every session failure is expressed as one of these kinds so the session
// loop can decide, without string-matching, whether to respond with a
// FAILED_* message, whether to retry (only SDP ever does), and what exit
// code a CLI entry point should return.
package xerr

import "fmt"

// Kind is one of the error categories named by the error handling design.
type Kind string

const (
	Config     Kind = "ConfigError"
	Codec      Kind = "CodecError"
	Protocol   Kind = "ProtocolError"
	Security   Kind = "SecurityError"
	Timeout    Kind = "Timeout"
	Transport  Kind = "TransportError"
	Controller Kind = "ControllerError"
)

// Error is the structured diagnostic record required by spec §7: every
// session failure produces exactly one of these, never a stack trace to the
// peer.
type Error struct {
	Kind      Kind
	SessionID string
	State     string
	Detail    string
	Cause     error
}

func (e *Error) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("%s in state %s (session %s): %s", e.Kind, e.State, e.SessionID, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error not yet attached to a session.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Wrap attaches session context to an existing error, tagging it with kind
// if it is not already an *Error.
func Wrap(kind Kind, sessionID, state string, err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		if e.SessionID == "" {
			e.SessionID = sessionID
		}
		if e.State == "" {
			e.State = state
		}
		return e
	}
	return &Error{Kind: kind, SessionID: sessionID, State: state, Detail: err.Error(), Cause: err}
}

func (e *Error) WithSession(sessionID, state string) *Error {
	e.SessionID = sessionID
	e.State = state
	return e
}

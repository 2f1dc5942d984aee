// Package router maps a decoded message to a handler given the session's
// current state, and centralizes the request/response pairing and
// session-id validation the SECC engine needs (spec §4.4). The EVCC engine
// drives its own step table and checks session ids in its round trip.
package router

import (
	"fmt"

	"github.com/M4GNV5/iso15118/internal/message"
	"github.com/M4GNV5/iso15118/internal/session"
	"github.com/M4GNV5/iso15118/internal/xerr"
)

// Key identifies one (state, message kind) cell of a role's transition
// table.
type Key struct {
	State string
	Kind  message.Kind
}

// Handler is one role's reaction to a message arriving in a given state:
// it returns the message to send back (nil if none, e.g. mid-loop
// requests that get no synchronous reply in some framings) and the state
// to transition to.
type Handler func(sess *session.Session, msg message.Message) (reply message.Message, nextState string, err error)

// Table is a role's full (state, kind) → Handler map, built once per
// session by internal/secc.
type Table map[Key]Handler

// Lookup finds the handler for the session's current state and the
// arriving message's kind. A miss is UnexpectedMessage (spec §4.4): the
// caller must map that to FAILED_SEQUENCE_ERROR and terminate.
func (t Table) Lookup(state string, kind message.Kind) (Handler, error) {
	h, ok := t[Key{State: state, Kind: kind}]
	if !ok {
		return nil, xerr.New(xerr.Protocol, fmt.Sprintf("unexpected message %s in state %s", kind, state))
	}
	return h, nil
}

// Validate centralizes the original's check_msg/check_msg_v2/check_msg_v20
// helper (SPEC_FULL.md §4): does the session id on msg match sess, and is
// msg one of the kinds the caller is willing to accept right now. This is
// where Testable Property 1 (the session-id invariant) is enforced.
func Validate(sess *session.Session, msg message.Message, accepted ...message.Kind) error {
	if keyed, ok := msg.(message.Keyed); ok {
		if keyed.GetHeader().SessionID != sess.ID {
			return xerr.New(xerr.Protocol, fmt.Sprintf("session id mismatch: have %x, got %x", sess.ID, keyed.GetHeader().SessionID))
		}
	}
	if len(accepted) == 0 {
		return nil
	}
	for _, k := range accepted {
		if msg.Kind() == k {
			return nil
		}
	}
	return xerr.New(xerr.Protocol, fmt.Sprintf("unexpected message kind %s", msg.Kind()))
}

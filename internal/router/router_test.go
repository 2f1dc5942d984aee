package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/M4GNV5/iso15118/internal/message"
	"github.com/M4GNV5/iso15118/internal/session"
	"github.com/M4GNV5/iso15118/internal/xerr"
)

func newTestSession(id [8]byte) *session.Session {
	return session.New(id, session.RoleSECC, message.DialectISO2, "SessionSetup")
}

func TestLookupReturnsHandlerOnHit(t *testing.T) {
	called := false
	table := Table{
		{State: "SessionSetup", Kind: message.KindSessionSetup}: func(sess *session.Session, msg message.Message) (message.Message, string, error) {
			called = true
			return nil, "ServiceDiscovery", nil
		},
	}

	h, err := table.Lookup("SessionSetup", message.KindSessionSetup)
	require.NoError(t, err)

	_, next, err := h(nil, nil)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "ServiceDiscovery", next)
}

func TestLookupMissIsProtocolError(t *testing.T) {
	table := Table{}

	_, err := table.Lookup("SessionSetup", message.KindCableCheck)
	require.Error(t, err)

	var xe *xerr.Error
	require.ErrorAs(t, err, &xe)
	assert.Equal(t, xerr.Protocol, xe.Kind)
}

func TestValidateAcceptsMatchingSessionID(t *testing.T) {
	var id [8]byte
	copy(id[:], "SESSION1")
	sess := newTestSession(id)

	msg := message.CableCheckReq{Header: message.Header{SessionID: id}, D: message.DialectISO2}
	assert.NoError(t, Validate(sess, msg))
}

func TestValidateRejectsSessionIDMismatch(t *testing.T) {
	var sessID, msgID [8]byte
	copy(sessID[:], "SESSION1")
	copy(msgID[:], "SESSION2")
	sess := newTestSession(sessID)

	msg := message.CableCheckReq{Header: message.Header{SessionID: msgID}, D: message.DialectISO2}
	err := Validate(sess, msg)
	require.Error(t, err)

	var xe *xerr.Error
	require.ErrorAs(t, err, &xe)
	assert.Equal(t, xerr.Protocol, xe.Kind)
}

func TestValidateEnforcesKindWhitelist(t *testing.T) {
	var id [8]byte
	copy(id[:], "SESSION1")
	sess := newTestSession(id)

	msg := message.CableCheckReq{Header: message.Header{SessionID: id}, D: message.DialectISO2}

	assert.NoError(t, Validate(sess, msg, message.KindCableCheck, message.KindSessionSetup))
	assert.Error(t, Validate(sess, msg, message.KindServiceDiscovery))
}

func TestValidateWithNoAcceptedKindsOnlyChecksSessionID(t *testing.T) {
	var id [8]byte
	copy(id[:], "SESSION1")
	sess := newTestSession(id)

	msg := message.CableCheckReq{Header: message.Header{SessionID: id}, D: message.DialectISO2}
	assert.NoError(t, Validate(sess, msg))
}

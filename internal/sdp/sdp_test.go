package sdp

import (
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/M4GNV5/iso15118/internal/v2gtp"
)

func TestEncodeDecodeRequestRoundTrip(t *testing.T) {
	req := Request{Security: SecurityTLS, Transport: TransportTCP}
	raw := EncodeRequest(req)

	frame, err := v2gtp.Decode(raw, 0)
	require.NoError(t, err)
	assert.Equal(t, v2gtp.PayloadSDPRequest, frame.PayloadType)

	got, err := DecodeRequest(frame.Body)
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestEncodeDecodeResponseRoundTrip(t *testing.T) {
	res := Response{
		Security:  SecurityTLS,
		Transport: TransportTCP,
		Address:   net.ParseIP("fe80::1"),
		Port:      64109,
	}
	raw := EncodeResponse(res)

	frame, err := v2gtp.Decode(raw, 0)
	require.NoError(t, err)
	assert.Equal(t, v2gtp.PayloadSDPResponse, frame.PayloadType)

	got, err := DecodeResponse(frame.Body)
	require.NoError(t, err)
	assert.True(t, res.Address.Equal(got.Address))
	assert.Equal(t, res.Port, got.Port)
	assert.False(t, got.Refused)
}

func TestRespondRefusesPlainTCPWhenTLSEnforced(t *testing.T) {
	req := Request{Security: SecurityNoTLS, Transport: TransportTCP}
	res := Respond(req, Endpoint{Address: net.ParseIP("fe80::2"), Port: 12345, TLS: true}, true)

	assert.Equal(t, req.Security, res.Security)
	assert.Nil(t, res.Address)
	assert.Zero(t, res.Port)
}

func TestRespondOffersTLSEndpointWhenAvailable(t *testing.T) {
	req := Request{Security: SecurityTLS, Transport: TransportTCP}
	res := Respond(req, Endpoint{Address: net.ParseIP("fe80::2"), Port: 12345, TLS: true}, false)

	assert.Equal(t, SecurityTLS, res.Security)
	assert.True(t, net.ParseIP("fe80::2").Equal(res.Address))
	assert.EqualValues(t, 12345, res.Port)
}

func TestRespondOffersPlainWhenSECCHasNoTLSIdentity(t *testing.T) {
	// Even if the peer asked for TLS, a SECC with no TLS configured must not
	// claim to offer it.
	req := Request{Security: SecurityTLS, Transport: TransportTCP}
	res := Respond(req, Endpoint{Address: net.ParseIP("fe80::2"), Port: 12345, TLS: false}, false)

	assert.Equal(t, SecurityNoTLS, res.Security)
}

// fakePacketConn is an in-memory PacketConn for Discover: the first N
// WriteTo calls are swallowed (simulating a silent peer), then a well-formed
// SDPResponse is handed back on ReadFrom.
type fakePacketConn struct {
	silentWrites int
	writes       int
	response     []byte
}

func (f *fakePacketConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	f.writes++
	return len(b), nil
}

func (f *fakePacketConn) ReadFrom(b []byte) (int, net.Addr, error) {
	if f.writes <= f.silentWrites {
		return 0, nil, &net.OpError{Op: "read", Err: errTimeout{}}
	}
	n := copy(b, f.response)
	return n, &net.UDPAddr{}, nil
}

func (f *fakePacketConn) SetReadDeadline(t time.Time) error { return nil }

type errTimeout struct{}

func (errTimeout) Error() string   { return "i/o timeout" }
func (errTimeout) Timeout() bool   { return true }
func (errTimeout) Temporary() bool { return true }

func TestDiscoverRetriesUntilResponse(t *testing.T) {
	res := Response{Security: SecurityNoTLS, Transport: TransportTCP, Address: net.ParseIP("fe80::3"), Port: 9001}
	conn := &fakePacketConn{silentWrites: 2, response: EncodeResponse(res)}

	got, err := Discover(conn, &net.UDPAddr{}, Request{Security: SecurityNoTLS, Transport: TransportTCP}, logrus.NewEntry(logrus.New()))
	require.NoError(t, err)
	assert.True(t, res.Address.Equal(got.Address))
	assert.Equal(t, res.Port, got.Port)
	assert.GreaterOrEqual(t, conn.writes, 3)
}

func TestDiscoverFailsAfterRetryBudgetExhausted(t *testing.T) {
	conn := &fakePacketConn{silentWrites: maxRetries + 1}

	_, err := Discover(conn, &net.UDPAddr{}, Request{Security: SecurityNoTLS, Transport: TransportTCP}, nil)
	assert.Error(t, err)
}

package evcc

import (
	"context"
	"crypto/rand"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/M4GNV5/iso15118/internal/controller/sim"
	"github.com/M4GNV5/iso15118/internal/exi"
	"github.com/M4GNV5/iso15118/internal/message"
	"github.com/M4GNV5/iso15118/internal/secc"
	"github.com/M4GNV5/iso15118/internal/session"
	"github.com/M4GNV5/iso15118/internal/transport"
	"github.com/M4GNV5/iso15118/internal/v2gtp"
)

// runFakeSECC plays the peer side of net.Pipe the way cmd/start-secc's
// handleConnection/runSession pair does: negotiate the dialect over SAP,
// then hand every subsequent frame to a real secc.Engine until the
// session terminates.
func runFakeSECC(t *testing.T, conn net.Conn) {
	t.Helper()

	framed := transport.NewFramedConn(conn, message.DialectISO2)
	frame, err := framed.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, v2gtp.PayloadSAP, frame.PayloadType)

	sapReq, err := exi.DecodeSAPRequest(frame.Body)
	require.NoError(t, err)

	dialect := message.DialectISO2
	schemaID := 0
	for _, offer := range sapReq.Offers {
		if offer.SchemaID == 0 {
			dialect, schemaID = message.DialectISO2, 0
			break
		}
	}

	sapBody, err := exi.Encode(message.SupportedAppProtocolRes{ResponseCode: message.SAPSuccessNegotiation, SchemaID: schemaID}, message.DialectUnknown)
	require.NoError(t, err)
	require.NoError(t, framed.WriteFrame(v2gtp.Frame{PayloadType: v2gtp.PayloadSAP, Body: sapBody}))

	framed = transport.NewFramedConn(conn, dialect)
	var id [8]byte
	_, err = rand.Read(id[:])
	require.NoError(t, err)

	sess := session.New(id, session.RoleSECC, dialect, secc.StateSessionSetup)
	ctrl := sim.NewSECC([]message.EnergyTransferMode{message.ACThreePhaseCore})
	engine := secc.New(sess, ctrl, nil, logrus.NewEntry(logrus.New()))

	for {
		frame, err := framed.ReadFrame()
		if err != nil {
			return
		}
		msg, err := exi.Decode(frame.Body, dialect)
		if err != nil {
			return
		}
		reply, stepErr := engine.Step(msg)
		if reply != nil {
			body, encErr := exi.Encode(reply, dialect)
			require.NoError(t, encErr)
			pt := v2gtp.PayloadEXI2
			if dialect == message.DialectISO20 {
				pt = v2gtp.PayloadEXI20
			}
			if writeErr := framed.WriteFrame(v2gtp.Frame{PayloadType: pt, Body: body}); writeErr != nil {
				return
			}
		}
		if stepErr != nil || engine.Sess.Terminated {
			return
		}
	}
}

func TestEngineRunDrivesFullEIMSessionAgainstRealSECC(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		runFakeSECC(t, serverConn)
	}()

	ctrl := sim.NewEVCC(message.ACThreePhaseCore, message.PaymentEIM, false)
	sess := session.New([8]byte{}, session.RoleEVCC, message.DialectUnknown, StateSupportedAppProtocol)
	framed := transport.NewFramedConn(clientConn, message.DialectISO2)
	log := logrus.NewEntry(logrus.New())

	engine := New(sess, ctrl, framed, log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := engine.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, StateTerminated, sess.CurrentState)
	assert.True(t, sess.Terminated)
	assert.Equal(t, message.DialectISO2, sess.Dialect)
	assert.NotEmpty(t, sess.EVSEID)

	clientConn.Close()
	serverConn.Close()
	<-done
}

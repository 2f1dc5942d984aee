// Package evcc implements the EVCC-side state machine (spec §4.5): the
// initiator half of the HLC session. Unlike internal/secc, which reacts to
// whatever arrives in its current state, the EVCC drives the exchange
// itself — each state decides what to send next, then waits for the paired
// response.
package evcc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/M4GNV5/iso15118/internal/controller"
	"github.com/M4GNV5/iso15118/internal/exi"
	"github.com/M4GNV5/iso15118/internal/message"
	"github.com/M4GNV5/iso15118/internal/session"
	"github.com/M4GNV5/iso15118/internal/transport"
	"github.com/M4GNV5/iso15118/internal/v2gtp"
	"github.com/M4GNV5/iso15118/internal/xerr"
)

const (
	StateSupportedAppProtocol     = "SupportedAppProtocol"
	StateSessionSetup             = "SessionSetup"
	StateServiceDiscovery         = "ServiceDiscovery"
	StateServiceDetail            = "ServiceDetail"
	StatePaymentServiceSelection  = "PaymentServiceSelection"
	StateCertificateInstallation  = "CertificateInstallation"
	StatePaymentDetails           = "PaymentDetails"
	StateAuthorization            = "Authorization"
	StateChargeParameterDiscovery = "ChargeParameterDiscovery"
	StateCableCheck               = "CableCheck"
	StatePreCharge                = "PreCharge"
	StatePowerDeliveryStart       = "PowerDeliveryStart"
	StateCharging                 = "Charging"
	StatePowerDeliveryStop        = "PowerDeliveryStop"
	StateWeldingDetection         = "WeldingDetection"
	StateSessionStop              = "SessionStop"
	StateTerminated               = "Terminated"
)

// protocolOffer pairs one SupportedAppProtocolReq offer with the dialect it
// would select, so the negotiated SchemaID can be mapped straight back.
type protocolOffer struct {
	offer   message.ProtocolOffer
	dialect message.Dialect
}

// Step is one state's action: build and send whatever request the state
// calls for, await its paired response, and report which state to move to
// next. Distinct from internal/router.Handler, since here the session
// drives rather than reacts (spec §4.5).
type Step func(ctx context.Context, e *Engine) (next string, err error)

// Table is the EVCC's full state → Step map, built once at construction.
type Table map[string]Step

// Engine is one EVCC-side session: the session record, the controller it
// consults for every decision a real EV's BMS/HMI would make, and the
// framed connection it speaks the negotiated dialect over.
type Engine struct {
	Sess       *session.Session
	Dialect    message.Dialect
	Controller controller.EVCCController
	Conn       *transport.FramedConn
	Log        *logrus.Entry

	table Table

	offeredServices []message.OfferedService
	selectedService int
	selectedMethod  message.PaymentOption
	contractChain   [][]byte
	genChallenge    []byte
}

// New builds an EVCC engine. Sess starts in StateSupportedAppProtocol; its
// dialect is still message.DialectUnknown until negotiation completes.
func New(sess *session.Session, ctrl controller.EVCCController, conn *transport.FramedConn, log *logrus.Entry) *Engine {
	e := &Engine{
		Sess:       sess,
		Dialect:    sess.Dialect,
		Controller: ctrl,
		Conn:       conn,
		Log:        log,
	}
	e.table = e.buildTable()
	return e
}

// Run drives the session from its current state to StateTerminated,
// stopping early if ctx is cancelled or a step returns an error.
func (e *Engine) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if e.Sess.CurrentState == StateTerminated {
			e.Sess.Terminated = true
			return nil
		}
		step, ok := e.table[e.Sess.CurrentState]
		if !ok {
			missing := e.Sess.CurrentState
			e.Sess.CurrentState = StateTerminated
			e.Sess.Terminated = true
			return xerr.New(xerr.Protocol, fmt.Sprintf("no step defined for state %s", missing))
		}

		next, err := step(ctx, e)
		if err != nil {
			e.Log.WithFields(logrus.Fields{"state": e.Sess.CurrentState}).WithError(err).Warn("evcc: step failed")
			e.Sess.CurrentState = StateTerminated
			e.Sess.Terminated = true
			return err
		}
		e.Sess.CurrentState = next
	}
}

func payloadTypeFor(msg message.Message, d message.Dialect) v2gtp.PayloadType {
	if msg.Dialect() == message.DialectUnknown {
		return v2gtp.PayloadSAP
	}
	if d == message.DialectISO20 {
		return v2gtp.PayloadEXI20
	}
	return v2gtp.PayloadEXI2
}

// send encodes msg for the session's negotiated dialect (or the dialect-
// less SAP framing before negotiation) and writes it as one v2gtp frame.
func (e *Engine) send(msg message.Message) error {
	body, err := exi.Encode(msg, e.Dialect)
	if err != nil {
		return err
	}
	return e.Conn.WriteFrame(v2gtp.Frame{PayloadType: payloadTypeFor(msg, e.Dialect), Body: body})
}

// recv reads one frame and decodes it, routing to the SAP decoder while the
// dialect is still unresolved.
func (e *Engine) recv() (message.Message, error) {
	frame, err := e.Conn.ReadFrame()
	if err != nil {
		return nil, err
	}
	if frame.PayloadType == v2gtp.PayloadSAP {
		res, err := exi.DecodeSAPResponse(frame.Body)
		if err != nil {
			return nil, err
		}
		return res, nil
	}
	return exi.Decode(frame.Body, e.Dialect)
}

// roundTrip sends req, arms timer, awaits the response, cancels timer, and
// validates the session id once one is established (spec Testable
// Property 1, Property 2). The timer is enforced on the connection itself
// via SetReadDeadline, not just recorded in the session, so a stalled peer
// actually unblocks recv() instead of leaving it parked on Read forever.
func (e *Engine) roundTrip(req message.Message, timer session.TimerName, checkSession bool) (message.Message, error) {
	if err := e.send(req); err != nil {
		return nil, err
	}
	e.Sess.Arm(timer)
	deadline := time.Now().Add(session.TimeoutFor(e.Dialect, timer))
	if err := e.Conn.SetReadDeadline(deadline); err != nil {
		e.Sess.Cancel(timer)
		return nil, xerr.Wrap(xerr.Transport, "", e.Sess.CurrentState, err)
	}
	res, err := e.recv()
	e.Sess.Cancel(timer)
	_ = e.Conn.SetReadDeadline(time.Time{})
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, xerr.New(xerr.Timeout, fmt.Sprintf("%s fired waiting for a response", timer))
		}
		return nil, err
	}
	if checkSession {
		if keyed, ok := res.(message.Keyed); ok && keyed.GetHeader().SessionID != e.Sess.ID {
			return nil, xerr.New(xerr.Protocol, "response carries a different session id")
		}
	}
	return res, nil
}

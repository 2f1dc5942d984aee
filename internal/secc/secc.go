// Package secc implements the SECC-side state machine (spec §4.6): the
// responder half of the HLC session, driven by arriving EVCC requests
// rather than by its own schedule.
package secc

import (
	"crypto/x509"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/M4GNV5/iso15118/internal/controller"
	"github.com/M4GNV5/iso15118/internal/message"
	"github.com/M4GNV5/iso15118/internal/pki"
	"github.com/M4GNV5/iso15118/internal/router"
	"github.com/M4GNV5/iso15118/internal/session"
)

// States, abridged -2 naming (spec §4.5/§4.6: "-20 is analogous with
// renamed phases" — both dialects share this table since the kind-tag
// space is shared, per internal/exi's own grounding note).
const (
	StateSessionSetup                = "SessionSetup"
	StateServiceDiscovery            = "ServiceDiscovery"
	StateServiceSelection            = "ServiceSelection"
	StateCertificateOrPaymentDetails = "CertificateOrPaymentDetails"
	StateAuthorization               = "Authorization"
	StateChargeParameterDiscovery    = "ChargeParameterDiscovery"
	StateCableCheck                  = "CableCheck"
	StatePreCharge                   = "PreCharge"
	StatePowerDeliveryStart          = "PowerDeliveryStart"
	StateCharging                    = "Charging"
	StateWeldingOrStop               = "WeldingOrStop"
	StateTerminated                  = "Terminated"
)

type failedKey struct {
	kind message.Kind
	code message.ResponseCode
}

// Engine is one SECC-side session: the session record, the controller it
// consults, the trust store it validates PnC chains against, and the
// transition table built once at construction.
type Engine struct {
	Sess       *session.Session
	Dialect    message.Dialect
	Controller controller.SECCController
	Trust      *pki.TrustStore
	Log        *logrus.Entry

	table Table

	offeredModes    []message.EnergyTransferMode
	offeredServices []message.OfferedService
	selectedMethod  message.PaymentOption
	contractLeaf    *x509.Certificate

	failedTemplates map[failedKey]message.Message
}

// Table is an alias so secc's own package doc can describe it without
// forcing every caller to import internal/router directly.
type Table = router.Table

// New builds a SECC engine for a freshly assigned session id. The session
// itself is created by the caller (the connection handler) right after
// SupportedAppProtocol negotiation, with its id already assigned, before
// SessionSetupReq arrives.
func New(sess *session.Session, ctrl controller.SECCController, trust *pki.TrustStore, log *logrus.Entry) *Engine {
	e := &Engine{
		Sess:            sess,
		Dialect:         sess.Dialect,
		Controller:      ctrl,
		Trust:           trust,
		Log:             log,
		failedTemplates: make(map[failedKey]message.Message),
	}
	e.table = e.buildTable()
	return e
}

// Step processes one arriving request and returns the reply to send, or
// an error if the session must close. Errors are already the FAILED_*
// reply when one is owed to the peer (see respondFailed); a non-nil error
// always means "close the connection after sending the returned reply, if
// any".
func (e *Engine) Step(msg message.Message) (reply message.Message, err error) {
	handler, lookupErr := e.table.Lookup(e.Sess.CurrentState, msg.Kind())
	if lookupErr != nil {
		e.Log.WithFields(logrus.Fields{"state": e.Sess.CurrentState, "kind": msg.Kind()}).Warn("secc: unexpected message")
		e.Sess.CurrentState = StateTerminated
		e.Sess.Terminated = true
		return e.respondFailed(msg.Kind(), message.FailedSequenceError), lookupErr
	}

	reply, next, err := handler(e.Sess, msg)
	e.Sess.CurrentState = next
	if next == StateTerminated || err != nil {
		e.Sess.Terminated = true
	}
	return reply, err
}

// respondFailed builds (or reuses) the schema-minimal FAILED_* response
// for kind/code, per the original's stop_state_machine and its
// failed_responses_isov2/isov20 template cache (SPEC_FULL.md §4).
func (e *Engine) respondFailed(kind message.Kind, code message.ResponseCode) message.Message {
	fk := failedKey{kind: kind, code: code}
	if msg, ok := e.failedTemplates[fk]; ok {
		return msg
	}
	msg := message.MinimalFailedResponse(kind, e.Dialect, e.Sess.ID, code)
	e.failedTemplates[fk] = msg
	return msg
}

func (e *Engine) now() time.Time { return time.Now() }

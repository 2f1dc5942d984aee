package secc

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"

	"github.com/M4GNV5/iso15118/internal/controller"
	"github.com/M4GNV5/iso15118/internal/message"
	"github.com/M4GNV5/iso15118/internal/pki"
	"github.com/M4GNV5/iso15118/internal/router"
	"github.com/M4GNV5/iso15118/internal/session"
	"github.com/M4GNV5/iso15118/internal/xerr"
)

func (e *Engine) buildTable() Table {
	t := make(Table)

	t[router.Key{State: StateSessionSetup, Kind: message.KindSessionSetup}] = e.handleSessionSetup
	t[router.Key{State: StateServiceDiscovery, Kind: message.KindServiceDiscovery}] = e.handleServiceDiscovery

	t[router.Key{State: StateServiceSelection, Kind: message.KindServiceDetail}] = e.handleServiceDetail
	t[router.Key{State: StateServiceSelection, Kind: message.KindPaymentServiceSelect}] = e.handlePaymentServiceSelect

	t[router.Key{State: StateCertificateOrPaymentDetails, Kind: message.KindCertificateInstall}] = e.handleCertificateInstall
	t[router.Key{State: StateCertificateOrPaymentDetails, Kind: message.KindPaymentDetails}] = e.handlePaymentDetails

	t[router.Key{State: StateAuthorization, Kind: message.KindAuthorization}] = e.handleAuthorization

	t[router.Key{State: StateChargeParameterDiscovery, Kind: message.KindChargeParamDiscovery}] = e.handleChargeParameterDiscovery

	t[router.Key{State: StateCableCheck, Kind: message.KindCableCheck}] = e.handleCableCheck
	t[router.Key{State: StatePreCharge, Kind: message.KindPreCharge}] = e.handlePreCharge
	t[router.Key{State: StatePowerDeliveryStart, Kind: message.KindPowerDelivery}] = e.handlePowerDeliveryStart

	t[router.Key{State: StateCharging, Kind: message.KindCurrentDemand}] = e.handleCurrentDemand
	t[router.Key{State: StateCharging, Kind: message.KindChargingStatus}] = e.handleChargingStatus
	t[router.Key{State: StateCharging, Kind: message.KindPowerDelivery}] = e.handlePowerDeliveryStop

	t[router.Key{State: StateWeldingOrStop, Kind: message.KindWeldingDetection}] = e.handleWeldingDetection
	t[router.Key{State: StateWeldingOrStop, Kind: message.KindSessionStop}] = e.handleSessionStop

	return t
}

func (e *Engine) handleSessionSetup(sess *session.Session, msg message.Message) (message.Message, string, error) {
	req := msg.(message.SessionSetupReq)

	// sess.ID was assigned once, at connection accept, and is already the
	// id the session was stored under (spec §4.9) — it must not change
	// here, or the store's durable/mirror records would keep referencing
	// an id that was never sent on the wire.
	sess.EVCCID = req.EVCCID

	return message.SessionSetupRes{
		Header:       message.Header{SessionID: sess.ID},
		D:            sess.Dialect,
		ResponseCode: message.OKNewSessionEstablished,
		EVSEID:       e.Controller.EVSEID(),
	}, StateServiceDiscovery, nil
}

func (e *Engine) handleServiceDiscovery(sess *session.Session, msg message.Message) (message.Message, string, error) {
	if err := router.Validate(sess, msg, message.KindServiceDiscovery); err != nil {
		return e.respondFailed(msg.Kind(), message.FailedUnknownSession), StateTerminated, err
	}
	modes, err := e.Controller.SupportedModes(context.Background())
	if err != nil {
		return e.respondFailed(msg.Kind(), message.FailedSequenceError), StateTerminated, err
	}
	e.offeredModes = modes
	e.offeredServices = []message.OfferedService{{ServiceID: 1, EnergyModes: modes, FreeService: false}}

	return message.ServiceDiscoveryRes{
		Header:          message.Header{SessionID: sess.ID},
		D:               sess.Dialect,
		ResponseCode:    message.OK,
		PaymentOptions:  []message.PaymentOption{message.PaymentEIM, message.PaymentPnC},
		OfferedServices: e.offeredServices,
	}, StateServiceSelection, nil
}

func (e *Engine) handleServiceDetail(sess *session.Session, msg message.Message) (message.Message, string, error) {
	req := msg.(message.ServiceDetailReq)
	if err := router.Validate(sess, msg); err != nil {
		return e.respondFailed(req.Kind(), message.FailedUnknownSession), StateTerminated, err
	}
	return message.ServiceDetailRes{
		Header:       message.Header{SessionID: sess.ID},
		D:            sess.Dialect,
		ResponseCode: message.OK,
		ServiceID:    req.ServiceID,
	}, StateServiceSelection, nil
}

func (e *Engine) handlePaymentServiceSelect(sess *session.Session, msg message.Message) (message.Message, string, error) {
	req := msg.(message.PaymentServiceSelectionReq)
	if err := router.Validate(sess, msg); err != nil {
		return e.respondFailed(req.Kind(), message.FailedUnknownSession), StateTerminated, err
	}
	if !offeredContains(e.offeredServices, req.SelectedService) {
		return e.respondFailed(req.Kind(), message.FailedNoServiceSelected), StateTerminated,
			xerr.New(xerr.Protocol, "selected service was not offered")
	}
	e.selectedMethod = req.PaymentOption
	sess.SelectedMethod = req.PaymentOption

	next := StateAuthorization
	if req.PaymentOption == message.PaymentPnC {
		next = StateCertificateOrPaymentDetails
	}
	return message.PaymentServiceSelectionRes{
		Header:       message.Header{SessionID: sess.ID},
		D:            sess.Dialect,
		ResponseCode: message.OK,
	}, next, nil
}

func offeredContains(services []message.OfferedService, id int) bool {
	for _, s := range services {
		if s.ServiceID == id {
			return true
		}
	}
	return false
}

func (e *Engine) handleCertificateInstall(sess *session.Session, msg message.Message) (message.Message, string, error) {
	req := msg.(message.CertificateInstallationReq)
	if err := router.Validate(sess, msg); err != nil {
		return e.respondFailed(req.Kind(), message.FailedUnknownSession), StateTerminated, err
	}
	chain, err := pki.ParseChain(req.OEMChain)
	if err != nil {
		return e.respondFailed(req.Kind(), message.FailedCertChainError), StateTerminated, err
	}
	if err := pki.ValidateChain(chain, pki.RoleOEMRoot, e.Trust, e.now()); err != nil {
		return e.respondFailed(req.Kind(), message.FailedCertChainError), StateTerminated, err
	}
	return message.CertificateInstallationRes{
		Header:            message.Header{SessionID: sess.ID},
		D:                 sess.Dialect,
		ResponseCode:      message.OK,
		ContractChain:     req.OEMChain,
		ContractSignedKey: req.CSRPayload,
	}, StateCertificateOrPaymentDetails, nil
}

func (e *Engine) handlePaymentDetails(sess *session.Session, msg message.Message) (message.Message, string, error) {
	req := msg.(message.PaymentDetailsReq)
	if err := router.Validate(sess, msg); err != nil {
		return e.respondFailed(req.Kind(), message.FailedUnknownSession), StateTerminated, err
	}
	chain, err := pki.ParseChain(req.ContractChain)
	if err != nil {
		return e.respondFailed(req.Kind(), message.FailedCertChainError), StateTerminated, err
	}
	if err := pki.ValidateChain(chain, pki.RoleContractRoot, e.Trust, e.now()); err != nil {
		if errors.Is(err, pki.ErrExpired) {
			return e.respondFailed(req.Kind(), message.FailedCertExpired), StateTerminated, err
		}
		return e.respondFailed(req.Kind(), message.FailedCertChainError), StateTerminated, err
	}
	e.contractLeaf = chain[0]

	challenge := make([]byte, 16)
	if _, err := rand.Read(challenge); err != nil {
		return e.respondFailed(req.Kind(), message.FailedUnknown), StateTerminated, err
	}
	return message.PaymentDetailsRes{
		Header:       message.Header{SessionID: sess.ID},
		D:            sess.Dialect,
		ResponseCode: message.OK,
		GenChallenge: challenge,
	}, StateAuthorization, nil
}

func (e *Engine) handleAuthorization(sess *session.Session, msg message.Message) (message.Message, string, error) {
	req := msg.(message.AuthorizationReq)
	if err := router.Validate(sess, msg); err != nil {
		return e.respondFailed(req.Kind(), message.FailedUnknownSession), StateTerminated, err
	}

	if e.selectedMethod == message.PaymentPnC {
		if e.contractLeaf == nil {
			return e.respondFailed(req.Kind(), message.FailedSignatureError), StateTerminated,
				xerr.New(xerr.Security, "no validated contract certificate to verify signature against")
		}
		if err := pki.VerifyFragmentSignature(e.contractLeaf, req.SignedFragment, req.Signature); err != nil {
			return e.respondFailed(req.Kind(), message.FailedSignatureError), StateTerminated, err
		}
	}

	status, err := e.Controller.IsAuthorized(context.Background(), hex.EncodeToString(sess.ID[:]), e.selectedMethod)
	if err != nil {
		return e.respondFailed(req.Kind(), message.FailedSequenceError), StateTerminated, err
	}

	switch status {
	case controller.Rejected:
		return e.respondFailed(req.Kind(), message.FailedSignatureError), StateTerminated, nil
	case controller.Ongoing:
		return message.AuthorizationRes{
			Header:         message.Header{SessionID: sess.ID},
			D:              sess.Dialect,
			ResponseCode:   message.OK,
			EVSEProcessing: "Ongoing",
		}, StateAuthorization, nil
	default:
		return message.AuthorizationRes{
			Header:         message.Header{SessionID: sess.ID},
			D:              sess.Dialect,
			ResponseCode:   message.OK,
			EVSEProcessing: "Finished",
		}, StateChargeParameterDiscovery, nil
	}
}

func (e *Engine) handleChargeParameterDiscovery(sess *session.Session, msg message.Message) (message.Message, string, error) {
	req := msg.(message.ChargeParameterDiscoveryReq)
	if err := router.Validate(sess, msg); err != nil {
		return e.respondFailed(req.Kind(), message.FailedUnknownSession), StateTerminated, err
	}
	if !modeOffered(e.offeredModes, req.RequestedMode) {
		return e.respondFailed(req.Kind(), message.FailedSequenceError), StateTerminated, nil
	}

	schedule, err := e.Controller.BuildSchedule(context.Background(), controller.ScheduleRequirements{
		Mode:          req.RequestedMode,
		MaxPower:      req.MaxPower,
		MaxCurrent:    req.MaxCurrent,
		DepartureTime: req.DepartureTime,
	})
	if err != nil {
		return e.respondFailed(req.Kind(), message.FailedSequenceError), StateTerminated, err
	}
	sess.SelectedMode = req.RequestedMode
	sess.Schedule = schedule

	return message.ChargeParameterDiscoveryRes{
		Header:           message.Header{SessionID: sess.ID},
		D:                sess.Dialect,
		ResponseCode:     message.OK,
		EVSEProcessing:   "Finished",
		Schedules:        []message.ChargingSchedule{schedule},
		EVSENotification: message.EVSENotificationNone,
	}, StateCableCheck, nil
}

func modeOffered(offered []message.EnergyTransferMode, want message.EnergyTransferMode) bool {
	for _, m := range offered {
		if m == want {
			return true
		}
	}
	return false
}

func (e *Engine) handleCableCheck(sess *session.Session, msg message.Message) (message.Message, string, error) {
	req := msg.(message.CableCheckReq)
	if err := router.Validate(sess, msg); err != nil {
		return e.respondFailed(req.Kind(), message.FailedUnknownSession), StateTerminated, err
	}
	return message.CableCheckRes{
		Header:         message.Header{SessionID: sess.ID},
		D:              sess.Dialect,
		ResponseCode:   message.OK,
		EVSEProcessing: "Finished",
	}, StatePreCharge, nil
}

func (e *Engine) handlePreCharge(sess *session.Session, msg message.Message) (message.Message, string, error) {
	req := msg.(message.PreChargeReq)
	if err := router.Validate(sess, msg); err != nil {
		return e.respondFailed(req.Kind(), message.FailedUnknownSession), StateTerminated, err
	}
	voltage, err := e.Controller.PresentVoltage(context.Background())
	if err != nil {
		return e.respondFailed(req.Kind(), message.FailedSequenceError), StateTerminated, err
	}
	return message.PreChargeRes{
		Header:         message.Header{SessionID: sess.ID},
		D:              sess.Dialect,
		ResponseCode:   message.OK,
		PresentVoltage: voltage,
	}, StatePowerDeliveryStart, nil
}

func (e *Engine) handlePowerDeliveryStart(sess *session.Session, msg message.Message) (message.Message, string, error) {
	req := msg.(message.PowerDeliveryReq)
	if err := router.Validate(sess, msg); err != nil {
		return e.respondFailed(req.Kind(), message.FailedUnknownSession), StateTerminated, err
	}
	if req.Progress != message.ChargeProgressStart {
		return e.respondFailed(req.Kind(), message.FailedSequenceError), StateTerminated, nil
	}
	return message.PowerDeliveryRes{
		Header:       message.Header{SessionID: sess.ID},
		D:            sess.Dialect,
		ResponseCode: message.OK,
	}, StateCharging, nil
}

func (e *Engine) handleCurrentDemand(sess *session.Session, msg message.Message) (message.Message, string, error) {
	req := msg.(message.CurrentDemandReq)
	if err := router.Validate(sess, msg); err != nil {
		return e.respondFailed(req.Kind(), message.FailedUnknownSession), StateTerminated, err
	}
	voltage, err := e.Controller.PresentVoltage(context.Background())
	if err != nil {
		return e.respondFailed(req.Kind(), message.FailedSequenceError), StateTerminated, err
	}
	current, err := e.Controller.PresentCurrent(context.Background())
	if err != nil {
		return e.respondFailed(req.Kind(), message.FailedSequenceError), StateTerminated, err
	}
	notif := message.EVSENotificationNone
	if stop, _ := e.Controller.ShouldStop(context.Background()); stop {
		notif = message.EVSENotificationStop
	}
	return message.CurrentDemandRes{
		Header:           message.Header{SessionID: sess.ID},
		D:                sess.Dialect,
		ResponseCode:     message.OK,
		PresentVoltage:   voltage,
		PresentCurrent:   current,
		EVSENotification: notif,
	}, StateCharging, nil
}

func (e *Engine) handleChargingStatus(sess *session.Session, msg message.Message) (message.Message, string, error) {
	req := msg.(message.ChargingStatusReq)
	if err := router.Validate(sess, msg); err != nil {
		return e.respondFailed(req.Kind(), message.FailedUnknownSession), StateTerminated, err
	}
	notif := message.EVSENotificationNone
	if stop, _ := e.Controller.ShouldStop(context.Background()); stop {
		notif = message.EVSENotificationStop
	}
	return message.ChargingStatusRes{
		Header:           message.Header{SessionID: sess.ID},
		D:                sess.Dialect,
		ResponseCode:     message.OK,
		EVSENotification: notif,
		ScheduleID:       sess.Schedule.ScheduleID,
	}, StateCharging, nil
}

func (e *Engine) handlePowerDeliveryStop(sess *session.Session, msg message.Message) (message.Message, string, error) {
	req := msg.(message.PowerDeliveryReq)
	if err := router.Validate(sess, msg); err != nil {
		return e.respondFailed(req.Kind(), message.FailedUnknownSession), StateTerminated, err
	}
	return message.PowerDeliveryRes{
		Header:       message.Header{SessionID: sess.ID},
		D:            sess.Dialect,
		ResponseCode: message.OK,
	}, StateWeldingOrStop, nil
}

func (e *Engine) handleWeldingDetection(sess *session.Session, msg message.Message) (message.Message, string, error) {
	req := msg.(message.WeldingDetectionReq)
	if err := router.Validate(sess, msg); err != nil {
		return e.respondFailed(req.Kind(), message.FailedUnknownSession), StateTerminated, err
	}
	voltage, err := e.Controller.PresentVoltage(context.Background())
	if err != nil {
		return e.respondFailed(req.Kind(), message.FailedSequenceError), StateTerminated, err
	}
	return message.WeldingDetectionRes{
		Header:         message.Header{SessionID: sess.ID},
		D:              sess.Dialect,
		ResponseCode:   message.OK,
		PresentVoltage: voltage,
	}, StateWeldingOrStop, nil
}

func (e *Engine) handleSessionStop(sess *session.Session, msg message.Message) (message.Message, string, error) {
	req := msg.(message.SessionStopReq)
	if err := router.Validate(sess, msg); err != nil {
		return e.respondFailed(req.Kind(), message.FailedUnknownSession), StateTerminated, err
	}
	return message.SessionStopRes{
		Header:       message.Header{SessionID: sess.ID},
		D:            sess.Dialect,
		ResponseCode: message.OK,
	}, StateTerminated, nil
}

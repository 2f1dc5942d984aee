package evcc

import (
	"context"

	"github.com/M4GNV5/iso15118/internal/message"
	"github.com/M4GNV5/iso15118/internal/pki"
	"github.com/M4GNV5/iso15118/internal/session"
	"github.com/M4GNV5/iso15118/internal/xerr"
)

var protocolOffers = []protocolOffer{
	{offer: message.ProtocolOffer{Name: "urn:iso:std:iso:15118:-2:2013:MsgDef", Major: 2, Minor: 0, SchemaID: 0}, dialect: message.DialectISO2},
	{offer: message.ProtocolOffer{Name: "urn:iso:std:iso:15118:-20:2022:CommonMessages", Major: 1, Minor: 0, SchemaID: 1}, dialect: message.DialectISO20},
}

func (e *Engine) buildTable() Table {
	return Table{
		StateSupportedAppProtocol:     e.stepSupportedAppProtocol,
		StateSessionSetup:             e.stepSessionSetup,
		StateServiceDiscovery:         e.stepServiceDiscovery,
		StateServiceDetail:            e.stepServiceDetail,
		StatePaymentServiceSelection:  e.stepPaymentServiceSelection,
		StateCertificateInstallation:  e.stepCertificateInstallation,
		StatePaymentDetails:           e.stepPaymentDetails,
		StateAuthorization:            e.stepAuthorization,
		StateChargeParameterDiscovery: e.stepChargeParameterDiscovery,
		StateCableCheck:               e.stepCableCheck,
		StatePreCharge:                e.stepPreCharge,
		StatePowerDeliveryStart:       e.stepPowerDeliveryStart,
		StateCharging:                 e.stepCharging,
		StatePowerDeliveryStop:        e.stepPowerDeliveryStop,
		StateWeldingDetection:         e.stepWeldingDetection,
		StateSessionStop:              e.stepSessionStop,
	}
}

func (e *Engine) stepSupportedAppProtocol(ctx context.Context, _ *Engine) (string, error) {
	offers := make([]message.ProtocolOffer, len(protocolOffers))
	for i, po := range protocolOffers {
		offers[i] = po.offer
	}
	req := message.SupportedAppProtocolReq{Offers: offers}
	if err := e.send(req); err != nil {
		return StateTerminated, err
	}
	raw, err := e.recv()
	if err != nil {
		return StateTerminated, err
	}
	res, ok := raw.(message.SupportedAppProtocolRes)
	if !ok {
		return StateTerminated, xerr.New(xerr.Protocol, "expected SupportedAppProtocolRes")
	}
	if res.ResponseCode == message.SAPNoNegotiation {
		return StateTerminated, xerr.New(xerr.Protocol, "SECC offered no compatible protocol")
	}
	for _, po := range protocolOffers {
		if po.offer.SchemaID == res.SchemaID {
			e.Dialect = po.dialect
			e.Sess.Dialect = po.dialect
			return StateSessionSetup, nil
		}
	}
	return StateTerminated, xerr.New(xerr.Protocol, "negotiated schema id matches no offer")
}

func (e *Engine) stepSessionSetup(ctx context.Context, _ *Engine) (string, error) {
	req := message.SessionSetupReq{D: e.Dialect, EVCCID: e.Controller.EVCCID()}
	raw, err := e.roundTrip(req, session.SequenceTimeout, false)
	if err != nil {
		return StateTerminated, err
	}
	res, ok := raw.(message.SessionSetupRes)
	if !ok {
		return StateTerminated, xerr.New(xerr.Protocol, "expected SessionSetupRes")
	}
	if !res.ResponseCode.IsOK() {
		return StateTerminated, xerr.New(xerr.Protocol, "SessionSetup refused: "+string(res.ResponseCode))
	}
	e.Sess.ID = res.GetHeader().SessionID
	e.Sess.EVSEID = res.EVSEID
	return StateServiceDiscovery, nil
}

func (e *Engine) stepServiceDiscovery(ctx context.Context, _ *Engine) (string, error) {
	mode, err := e.Controller.EnergyMode(ctx)
	if err != nil {
		return StateTerminated, err
	}
	req := message.ServiceDiscoveryReq{Header: message.Header{SessionID: e.Sess.ID}, D: e.Dialect, RequestedEnergyMode: mode}
	raw, err := e.roundTrip(req, session.SequenceTimeout, true)
	if err != nil {
		return StateTerminated, err
	}
	res, ok := raw.(message.ServiceDiscoveryRes)
	if !ok {
		return StateTerminated, xerr.New(xerr.Protocol, "expected ServiceDiscoveryRes")
	}
	if !res.ResponseCode.IsOK() {
		return StateTerminated, xerr.New(xerr.Protocol, "ServiceDiscovery refused: "+string(res.ResponseCode))
	}
	e.offeredServices = res.OfferedServices
	e.selectedService = defaultServiceID(e.offeredServices)
	if hasNonChargingService(e.offeredServices) {
		return StateServiceDetail, nil
	}
	return StatePaymentServiceSelection, nil
}

func defaultServiceID(services []message.OfferedService) int {
	for _, s := range services {
		if s.ServiceID == 1 {
			return 1
		}
	}
	if len(services) > 0 {
		return services[0].ServiceID
	}
	return 1
}

func hasNonChargingService(services []message.OfferedService) bool {
	for _, s := range services {
		if s.ServiceID != 1 {
			return true
		}
	}
	return false
}

func (e *Engine) stepServiceDetail(ctx context.Context, _ *Engine) (string, error) {
	var detailID int
	for _, s := range e.offeredServices {
		if s.ServiceID != 1 {
			detailID = s.ServiceID
			break
		}
	}
	req := message.ServiceDetailReq{Header: message.Header{SessionID: e.Sess.ID}, D: e.Dialect, ServiceID: detailID}
	raw, err := e.roundTrip(req, session.SequenceTimeout, true)
	if err != nil {
		return StateTerminated, err
	}
	if _, ok := raw.(message.ServiceDetailRes); !ok {
		return StateTerminated, xerr.New(xerr.Protocol, "expected ServiceDetailRes")
	}
	return StatePaymentServiceSelection, nil
}

func (e *Engine) stepPaymentServiceSelection(ctx context.Context, _ *Engine) (string, error) {
	method, err := e.Controller.AuthorizationMethod(ctx)
	if err != nil {
		return StateTerminated, err
	}
	e.selectedMethod = method
	req := message.PaymentServiceSelectionReq{
		Header:          message.Header{SessionID: e.Sess.ID},
		D:               e.Dialect,
		PaymentOption:   method,
		SelectedService: e.selectedService,
	}
	raw, err := e.roundTrip(req, session.SequenceTimeout, true)
	if err != nil {
		return StateTerminated, err
	}
	res, ok := raw.(message.PaymentServiceSelectionRes)
	if !ok {
		return StateTerminated, xerr.New(xerr.Protocol, "expected PaymentServiceSelectionRes")
	}
	if !res.ResponseCode.IsOK() {
		return StateTerminated, xerr.New(xerr.Protocol, "PaymentServiceSelection refused: "+string(res.ResponseCode))
	}
	e.Sess.SelectedMethod = method
	if method == message.PaymentPnC {
		return StateCertificateInstallation, nil
	}
	return StateAuthorization, nil
}

func (e *Engine) stepCertificateInstallation(ctx context.Context, _ *Engine) (string, error) {
	chain, err := e.Controller.OEMCertificateChain(ctx)
	if err != nil {
		return StateTerminated, err
	}
	csr, err := e.Controller.CSRPayload(ctx)
	if err != nil {
		return StateTerminated, err
	}
	req := message.CertificateInstallationReq{
		Header:     message.Header{SessionID: e.Sess.ID},
		D:          e.Dialect,
		OEMChain:   chain,
		CSRPayload: csr,
	}
	raw, err := e.roundTrip(req, session.SequenceTimeout, true)
	if err != nil {
		return StateTerminated, err
	}
	res, ok := raw.(message.CertificateInstallationRes)
	if !ok {
		return StateTerminated, xerr.New(xerr.Protocol, "expected CertificateInstallationRes")
	}
	if !res.ResponseCode.IsOK() {
		return StateTerminated, xerr.New(xerr.Protocol, "CertificateInstallation refused: "+string(res.ResponseCode))
	}
	e.contractChain = res.ContractChain
	return StatePaymentDetails, nil
}

func (e *Engine) stepPaymentDetails(ctx context.Context, _ *Engine) (string, error) {
	emaid, err := e.Controller.ContractEMAID(ctx)
	if err != nil {
		return StateTerminated, err
	}
	chain := e.contractChain
	if chain == nil {
		chain, err = e.Controller.OEMCertificateChain(ctx)
		if err != nil {
			return StateTerminated, err
		}
	}
	req := message.PaymentDetailsReq{
		Header:        message.Header{SessionID: e.Sess.ID},
		D:             e.Dialect,
		ContractChain: chain,
		EMAID:         emaid,
	}
	raw, err := e.roundTrip(req, session.SequenceTimeout, true)
	if err != nil {
		return StateTerminated, err
	}
	res, ok := raw.(message.PaymentDetailsRes)
	if !ok {
		return StateTerminated, xerr.New(xerr.Protocol, "expected PaymentDetailsRes")
	}
	if !res.ResponseCode.IsOK() {
		return StateTerminated, xerr.New(xerr.Protocol, "PaymentDetails refused: "+string(res.ResponseCode))
	}
	e.genChallenge = res.GenChallenge
	return StateAuthorization, nil
}

func (e *Engine) stepAuthorization(ctx context.Context, _ *Engine) (string, error) {
	req := message.AuthorizationReq{
		Header:       message.Header{SessionID: e.Sess.ID},
		D:            e.Dialect,
		GenChallenge: e.genChallenge,
	}
	if e.selectedMethod == message.PaymentPnC {
		fragment, err := pki.CanonicalFragment(req, e.Dialect)
		if err != nil {
			return StateTerminated, err
		}
		signature, err := e.Controller.SignAuthorization(ctx, fragment)
		if err != nil {
			return StateTerminated, err
		}
		req.SignedFragment = fragment
		req.Signature = signature
	}

	raw, err := e.roundTrip(req, session.OngoingTimeout, true)
	if err != nil {
		return StateTerminated, err
	}
	res, ok := raw.(message.AuthorizationRes)
	if !ok {
		return StateTerminated, xerr.New(xerr.Protocol, "expected AuthorizationRes")
	}
	if !res.ResponseCode.IsOK() {
		return StateTerminated, xerr.New(xerr.Protocol, "Authorization refused: "+string(res.ResponseCode))
	}
	if res.EVSEProcessing == "Ongoing" {
		return StateAuthorization, nil
	}
	return StateChargeParameterDiscovery, nil
}

func (e *Engine) stepChargeParameterDiscovery(ctx context.Context, _ *Engine) (string, error) {
	mode, err := e.Controller.EnergyMode(ctx)
	if err != nil {
		return StateTerminated, err
	}
	maxPower, err := e.Controller.MaxPower(ctx)
	if err != nil {
		return StateTerminated, err
	}
	departure, err := e.Controller.DepartureTime(ctx)
	if err != nil {
		return StateTerminated, err
	}
	req := message.ChargeParameterDiscoveryReq{
		Header:        message.Header{SessionID: e.Sess.ID},
		D:             e.Dialect,
		RequestedMode: mode,
		MaxPower:      maxPower,
		DepartureTime: departure,
	}
	raw, err := e.roundTrip(req, session.SequenceTimeout, true)
	if err != nil {
		return StateTerminated, err
	}
	res, ok := raw.(message.ChargeParameterDiscoveryRes)
	if !ok {
		return StateTerminated, xerr.New(xerr.Protocol, "expected ChargeParameterDiscoveryRes")
	}
	if !res.ResponseCode.IsOK() {
		return StateTerminated, xerr.New(xerr.Protocol, "ChargeParameterDiscovery refused: "+string(res.ResponseCode))
	}
	if res.EVSEProcessing == "Ongoing" {
		return StateChargeParameterDiscovery, nil
	}
	if len(res.Schedules) > 0 {
		e.Sess.Schedule = res.Schedules[0]
	}
	e.Sess.SelectedMode = mode
	return StateCableCheck, nil
}

func (e *Engine) stepCableCheck(ctx context.Context, _ *Engine) (string, error) {
	req := message.CableCheckReq{Header: message.Header{SessionID: e.Sess.ID}, D: e.Dialect}
	raw, err := e.roundTrip(req, session.OngoingTimeout, true)
	if err != nil {
		return StateTerminated, err
	}
	res, ok := raw.(message.CableCheckRes)
	if !ok {
		return StateTerminated, xerr.New(xerr.Protocol, "expected CableCheckRes")
	}
	if !res.ResponseCode.IsOK() {
		return StateTerminated, xerr.New(xerr.Protocol, "CableCheck refused: "+string(res.ResponseCode))
	}
	if res.EVSEProcessing == "Ongoing" {
		return StateCableCheck, nil
	}
	return StatePreCharge, nil
}

func (e *Engine) stepPreCharge(ctx context.Context, _ *Engine) (string, error) {
	req := message.PreChargeReq{Header: message.Header{SessionID: e.Sess.ID}, D: e.Dialect}
	raw, err := e.roundTrip(req, session.SequenceTimeout, true)
	if err != nil {
		return StateTerminated, err
	}
	if _, ok := raw.(message.PreChargeRes); !ok {
		return StateTerminated, xerr.New(xerr.Protocol, "expected PreChargeRes")
	}
	return StatePowerDeliveryStart, nil
}

func (e *Engine) stepPowerDeliveryStart(ctx context.Context, _ *Engine) (string, error) {
	req := message.PowerDeliveryReq{
		Header:     message.Header{SessionID: e.Sess.ID},
		D:          e.Dialect,
		Progress:   message.ChargeProgressStart,
		ScheduleID: e.Sess.Schedule.ScheduleID,
	}
	raw, err := e.roundTrip(req, session.SequenceTimeout, true)
	if err != nil {
		return StateTerminated, err
	}
	res, ok := raw.(message.PowerDeliveryRes)
	if !ok {
		return StateTerminated, xerr.New(xerr.Protocol, "expected PowerDeliveryRes")
	}
	if !res.ResponseCode.IsOK() {
		return StateTerminated, xerr.New(xerr.Protocol, "PowerDelivery(Start) refused: "+string(res.ResponseCode))
	}
	return StateCharging, nil
}

// stepCharging runs the CurrentDemand/ChargingStatus loop (spec §4.5:
// PerformanceTimeout-bounded, at least once per cycle) until the
// controller reports completion or the SECC asks for renegotiation.
func (e *Engine) stepCharging(ctx context.Context, _ *Engine) (string, error) {
	stop, err := e.Controller.ChargingShouldStop(ctx)
	if err != nil {
		return StateTerminated, err
	}
	if stop {
		return StatePowerDeliveryStop, nil
	}
	renegotiate, err := e.Controller.RenegotiationRequested(ctx)
	if err != nil {
		return StateTerminated, err
	}
	if renegotiate {
		return StateChargeParameterDiscovery, nil
	}

	current, voltage, err := e.Controller.TargetCurrentDemand(ctx)
	if err != nil {
		return StateTerminated, err
	}
	if e.Sess.SelectedMode.IsDC() {
		req := message.CurrentDemandReq{
			Header:        message.Header{SessionID: e.Sess.ID},
			D:             e.Dialect,
			TargetCurrent: current,
			TargetVoltage: voltage,
		}
		raw, err := e.roundTrip(req, session.PerformanceTimeout, true)
		if err != nil {
			return StateTerminated, err
		}
		res, ok := raw.(message.CurrentDemandRes)
		if !ok {
			return StateTerminated, xerr.New(xerr.Protocol, "expected CurrentDemandRes")
		}
		if !res.ResponseCode.IsOK() {
			return StateTerminated, xerr.New(xerr.Protocol, "CurrentDemand refused: "+string(res.ResponseCode))
		}
		if res.EVSENotification == message.EVSENotificationReNegotiate {
			return StateChargeParameterDiscovery, nil
		}
		if res.EVSENotification == message.EVSENotificationStop {
			return StatePowerDeliveryStop, nil
		}
		return StateCharging, nil
	}

	req := message.ChargingStatusReq{Header: message.Header{SessionID: e.Sess.ID}, D: e.Dialect}
	raw, err := e.roundTrip(req, session.PerformanceTimeout, true)
	if err != nil {
		return StateTerminated, err
	}
	res, ok := raw.(message.ChargingStatusRes)
	if !ok {
		return StateTerminated, xerr.New(xerr.Protocol, "expected ChargingStatusRes")
	}
	if !res.ResponseCode.IsOK() {
		return StateTerminated, xerr.New(xerr.Protocol, "ChargingStatus refused: "+string(res.ResponseCode))
	}
	if res.EVSENotification == message.EVSENotificationReNegotiate {
		return StateChargeParameterDiscovery, nil
	}
	if res.EVSENotification == message.EVSENotificationStop {
		return StatePowerDeliveryStop, nil
	}
	return StateCharging, nil
}

func (e *Engine) stepPowerDeliveryStop(ctx context.Context, _ *Engine) (string, error) {
	req := message.PowerDeliveryReq{
		Header:     message.Header{SessionID: e.Sess.ID},
		D:          e.Dialect,
		Progress:   message.ChargeProgressStop,
		ScheduleID: e.Sess.Schedule.ScheduleID,
	}
	raw, err := e.roundTrip(req, session.SequenceTimeout, true)
	if err != nil {
		return StateTerminated, err
	}
	res, ok := raw.(message.PowerDeliveryRes)
	if !ok {
		return StateTerminated, xerr.New(xerr.Protocol, "expected PowerDeliveryRes")
	}
	if !res.ResponseCode.IsOK() {
		return StateTerminated, xerr.New(xerr.Protocol, "PowerDelivery(Stop) refused: "+string(res.ResponseCode))
	}
	if e.Sess.SelectedMode.IsDC() {
		return StateWeldingDetection, nil
	}
	return StateSessionStop, nil
}

func (e *Engine) stepWeldingDetection(ctx context.Context, _ *Engine) (string, error) {
	req := message.WeldingDetectionReq{Header: message.Header{SessionID: e.Sess.ID}, D: e.Dialect}
	raw, err := e.roundTrip(req, session.SequenceTimeout, true)
	if err != nil {
		return StateTerminated, err
	}
	if _, ok := raw.(message.WeldingDetectionRes); !ok {
		return StateTerminated, xerr.New(xerr.Protocol, "expected WeldingDetectionRes")
	}
	return StateSessionStop, nil
}

func (e *Engine) stepSessionStop(ctx context.Context, _ *Engine) (string, error) {
	req := message.SessionStopReq{Header: message.Header{SessionID: e.Sess.ID}, D: e.Dialect, Terminate: true}
	raw, err := e.roundTrip(req, session.SequenceTimeout, true)
	if err != nil {
		return StateTerminated, err
	}
	if _, ok := raw.(message.SessionStopRes); !ok {
		return StateTerminated, xerr.New(xerr.Protocol, "expected SessionStopRes")
	}
	return StateTerminated, nil
}

// Package message defines the sum of request/response types carried by
// both ISO 15118 dialects, and the small set of value types (schedules,
// physical values, enums) they share. Requests and responses are paired by
// Kind; the dialect a concrete message belongs to is carried in its D field
// (or is implicit for the dialect-less SupportedAppProtocol exchange).
package message

// Dialect selects the message family. Fixed for a session once chosen at
// SupportedAppProtocol negotiation (spec §3).
type Dialect string

const (
	DialectUnknown Dialect = ""
	DialectISO2    Dialect = "-2"
	DialectISO20   Dialect = "-20"
)

// Kind tags every request/response pair; the router keys its transition
// table on (state, Kind).
type Kind string

const (
	KindSupportedAppProtocol Kind = "SupportedAppProtocol"
	KindSessionSetup         Kind = "SessionSetup"
	KindServiceDiscovery     Kind = "ServiceDiscovery"
	KindServiceDetail        Kind = "ServiceDetail"
	KindPaymentServiceSelect Kind = "PaymentServiceSelection"
	KindCertificateInstall   Kind = "CertificateInstallation"
	KindPaymentDetails       Kind = "PaymentDetails"
	KindAuthorization        Kind = "Authorization"
	KindChargeParamDiscovery Kind = "ChargeParameterDiscovery"
	KindCableCheck           Kind = "CableCheck"
	KindPreCharge            Kind = "PreCharge"
	KindPowerDelivery        Kind = "PowerDelivery"
	KindCurrentDemand        Kind = "CurrentDemand"
	KindChargingStatus       Kind = "ChargingStatus"
	KindWeldingDetection     Kind = "WeldingDetection"
	KindSessionStop          Kind = "SessionStop"
)

// ResponseCode values per schema (spec §4.6).
type ResponseCode string

const (
	OK                      ResponseCode = "OK"
	OKNewSessionEstablished ResponseCode = "OK_NewSessionEstablished"
	OKCertExpiresSoon       ResponseCode = "OK_CertificateExpiresSoon"

	FailedSequenceError     ResponseCode = "FAILED_SequenceError"
	FailedUnknownSession    ResponseCode = "FAILED_UnknownSession"
	FailedCertExpired       ResponseCode = "FAILED_CertificateExpired"
	FailedCertChainError    ResponseCode = "FAILED_CertificateChainError"
	FailedSignatureError    ResponseCode = "FAILED_SignatureError"
	FailedNoServiceSelected ResponseCode = "FAILED_NoChargeServiceSelected"
	FailedUnknown           ResponseCode = "FAILED"
)

func (r ResponseCode) IsOK() bool {
	switch r {
	case OK, OKNewSessionEstablished, OKCertExpiresSoon:
		return true
	default:
		return false
	}
}

// EnergyTransferMode enumerates the selectable energy transfer modes.
type EnergyTransferMode string

const (
	ACSinglePhaseCore EnergyTransferMode = "AC_single_phase_core"
	ACThreePhaseCore  EnergyTransferMode = "AC_three_phase_core"
	DCCore            EnergyTransferMode = "DC_core"
	DCExtended        EnergyTransferMode = "DC_extended"
	DCComboCore       EnergyTransferMode = "DC_combo_core"
	DCUnique          EnergyTransferMode = "DC_unique"
)

func (m EnergyTransferMode) IsDC() bool {
	switch m {
	case DCCore, DCExtended, DCComboCore, DCUnique:
		return true
	default:
		return false
	}
}

// PaymentOption is the authorization method named in the schema.
type PaymentOption string

const (
	PaymentEIM PaymentOption = "EIM"
	PaymentPnC PaymentOption = "PnC"
)

// EVSENotification signals an SECC-initiated session event.
type EVSENotification string

const (
	EVSENotificationNone        EVSENotification = ""
	EVSENotificationStop        EVSENotification = "Stop"
	EVSENotificationReNegotiate EVSENotification = "ReNegotiate"
)

// ChargeProgress is the PowerDeliveryReq directive.
type ChargeProgress string

const (
	ChargeProgressStart       ChargeProgress = "Start"
	ChargeProgressStop        ChargeProgress = "Stop"
	ChargeProgressRenegotiate ChargeProgress = "Renegotiate"
)

// Unit is the physical unit of a PhysicalValue, per the schema's
// unit-and-multiplier encoding.
type Unit string

const (
	UnitWatt    Unit = "W"
	UnitAmpere  Unit = "A"
	UnitVolt    Unit = "V"
	UnitWattHr  Unit = "Wh"
	UnitSeconds Unit = "s"
	UnitPercent Unit = "percent"
)

// PhysicalValue is the schema's explicit unit-and-multiplier numeric
// encoding: actual value = Value * 10^Multiplier, in Unit.
type PhysicalValue struct {
	Value      int16
	Multiplier int8
	Unit       Unit
}

func (p PhysicalValue) Float() float64 {
	v := float64(p.Value)
	m := p.Multiplier
	for ; m > 0; m-- {
		v *= 10
	}
	for ; m < 0; m++ {
		v /= 10
	}
	return v
}

// ScheduleEntry is one (start_offset, duration, max_power) triple.
type ScheduleEntry struct {
	StartOffsetSeconds uint32
	DurationSeconds    uint32
	MaxPower           PhysicalValue
}

// ChargingSchedule is immutable once accepted; renegotiation produces a
// new one rather than mutating this slice in place (spec §3).
type ChargingSchedule struct {
	ScheduleID int
	Entries    []ScheduleEntry
}

// Header is present on every message that follows SessionSetupRes; the
// SAP exchange has none.
type Header struct {
	SessionID [8]byte
}

// GetHeader lets every struct that embeds Header satisfy Keyed without
// per-type boilerplate, since embedding promotes this method automatically.
func (h Header) GetHeader() Header { return h }

// Keyed is satisfied by every message that carries a session id.
type Keyed interface {
	GetHeader() Header
}

// Message is the sum type every request/response satisfies.
type Message interface {
	Kind() Kind
	Dialect() Dialect
	IsRequest() bool
}

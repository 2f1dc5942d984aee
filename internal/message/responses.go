package message

// ResponseCodeSAP covers the tiny, dialect-less SAP negotiation outcome
// space, distinct from the richer ResponseCode used once a dialect and
// session exist.
type ResponseCodeSAP string

const (
	SAPSuccessNegotiation    ResponseCodeSAP = "SuccessNegotiation"
	SAPSuccessMinorDeviation ResponseCodeSAP = "SuccessNegotiationWithMinorDeviation"
	SAPNoNegotiation         ResponseCodeSAP = "NoNegotiation"
)

type SupportedAppProtocolRes struct {
	ResponseCode ResponseCodeSAP
	SchemaID     int // index into the EVCC's offer list the SECC picked
}

func (SupportedAppProtocolRes) Kind() Kind       { return KindSupportedAppProtocol }
func (SupportedAppProtocolRes) Dialect() Dialect { return DialectUnknown }
func (SupportedAppProtocolRes) IsRequest() bool  { return false }

// SessionSetupRes carries the session id the SECC assigns on the first
// response (spec §4.6): every later frame, in both directions, echoes it.
type SessionSetupRes struct {
	Header
	D            Dialect
	ResponseCode ResponseCode
	EVSEID       string
}

func (r SessionSetupRes) Kind() Kind       { return KindSessionSetup }
func (r SessionSetupRes) Dialect() Dialect { return r.D }
func (SessionSetupRes) IsRequest() bool    { return false }

type OfferedService struct {
	ServiceID   int
	EnergyModes []EnergyTransferMode
	FreeService bool
}

type ServiceDiscoveryRes struct {
	Header
	D               Dialect
	ResponseCode    ResponseCode
	PaymentOptions  []PaymentOption
	OfferedServices []OfferedService
}

func (r ServiceDiscoveryRes) Kind() Kind       { return KindServiceDiscovery }
func (r ServiceDiscoveryRes) Dialect() Dialect { return r.D }
func (ServiceDiscoveryRes) IsRequest() bool    { return false }

type ServiceDetailRes struct {
	Header
	D            Dialect
	ResponseCode ResponseCode
	ServiceID    int
}

func (r ServiceDetailRes) Kind() Kind       { return KindServiceDetail }
func (r ServiceDetailRes) Dialect() Dialect { return r.D }
func (ServiceDetailRes) IsRequest() bool    { return false }

type PaymentServiceSelectionRes struct {
	Header
	D            Dialect
	ResponseCode ResponseCode
}

func (r PaymentServiceSelectionRes) Kind() Kind       { return KindPaymentServiceSelect }
func (r PaymentServiceSelectionRes) Dialect() Dialect { return r.D }
func (PaymentServiceSelectionRes) IsRequest() bool    { return false }

type CertificateInstallationRes struct {
	Header
	D                 Dialect
	ResponseCode      ResponseCode
	ContractChain     [][]byte // DER, leaf-first, issued contract certificate chain
	ContractSignedKey []byte
}

func (r CertificateInstallationRes) Kind() Kind       { return KindCertificateInstall }
func (r CertificateInstallationRes) Dialect() Dialect { return r.D }
func (CertificateInstallationRes) IsRequest() bool    { return false }

type PaymentDetailsRes struct {
	Header
	D            Dialect
	ResponseCode ResponseCode
	GenChallenge []byte
}

func (r PaymentDetailsRes) Kind() Kind       { return KindPaymentDetails }
func (r PaymentDetailsRes) Dialect() Dialect { return r.D }
func (PaymentDetailsRes) IsRequest() bool    { return false }

type AuthorizationRes struct {
	Header
	D              Dialect
	ResponseCode   ResponseCode
	EVSEProcessing string // "Finished" | "Ongoing"
}

func (r AuthorizationRes) Kind() Kind       { return KindAuthorization }
func (r AuthorizationRes) Dialect() Dialect { return r.D }
func (AuthorizationRes) IsRequest() bool    { return false }

type ChargeParameterDiscoveryRes struct {
	Header
	D                Dialect
	ResponseCode     ResponseCode
	EVSEProcessing   string // "Finished" | "Ongoing"
	Schedules        []ChargingSchedule
	EVSENotification EVSENotification
}

func (r ChargeParameterDiscoveryRes) Kind() Kind       { return KindChargeParamDiscovery }
func (r ChargeParameterDiscoveryRes) Dialect() Dialect { return r.D }
func (ChargeParameterDiscoveryRes) IsRequest() bool    { return false }

type CableCheckRes struct {
	Header
	D              Dialect
	ResponseCode   ResponseCode
	EVSEProcessing string
}

func (r CableCheckRes) Kind() Kind       { return KindCableCheck }
func (r CableCheckRes) Dialect() Dialect { return r.D }
func (CableCheckRes) IsRequest() bool    { return false }

type PreChargeRes struct {
	Header
	D              Dialect
	ResponseCode   ResponseCode
	PresentVoltage PhysicalValue
}

func (r PreChargeRes) Kind() Kind       { return KindPreCharge }
func (r PreChargeRes) Dialect() Dialect { return r.D }
func (PreChargeRes) IsRequest() bool    { return false }

type PowerDeliveryRes struct {
	Header
	D            Dialect
	ResponseCode ResponseCode
}

func (r PowerDeliveryRes) Kind() Kind       { return KindPowerDelivery }
func (r PowerDeliveryRes) Dialect() Dialect { return r.D }
func (PowerDeliveryRes) IsRequest() bool    { return false }

type CurrentDemandRes struct {
	Header
	D                Dialect
	ResponseCode     ResponseCode
	PresentVoltage   PhysicalValue
	PresentCurrent   PhysicalValue
	EVSENotification EVSENotification
}

func (r CurrentDemandRes) Kind() Kind       { return KindCurrentDemand }
func (r CurrentDemandRes) Dialect() Dialect { return r.D }
func (CurrentDemandRes) IsRequest() bool    { return false }

type ChargingStatusRes struct {
	Header
	D                Dialect
	ResponseCode     ResponseCode
	EVSENotification EVSENotification
	ScheduleID       int
}

func (r ChargingStatusRes) Kind() Kind       { return KindChargingStatus }
func (r ChargingStatusRes) Dialect() Dialect { return r.D }
func (ChargingStatusRes) IsRequest() bool    { return false }

type WeldingDetectionRes struct {
	Header
	D              Dialect
	ResponseCode   ResponseCode
	PresentVoltage PhysicalValue
}

func (r WeldingDetectionRes) Kind() Kind       { return KindWeldingDetection }
func (r WeldingDetectionRes) Dialect() Dialect { return r.D }
func (WeldingDetectionRes) IsRequest() bool    { return false }

type SessionStopRes struct {
	Header
	D            Dialect
	ResponseCode ResponseCode
}

func (r SessionStopRes) Kind() Kind       { return KindSessionStop }
func (r SessionStopRes) Dialect() Dialect { return r.D }
func (SessionStopRes) IsRequest() bool    { return false }

// MinimalFailedResponse builds the schema-minimal negative response for a
// given request kind, per the original's stop_state_machine behavior: the
// SECC always answers, even a malformed or out-of-sequence request, with
// only mandatory fields populated.
func MinimalFailedResponse(kind Kind, d Dialect, sessionID [8]byte, code ResponseCode) Message {
	h := Header{SessionID: sessionID}
	switch kind {
	case KindSessionSetup:
		return SessionSetupRes{Header: h, D: d, ResponseCode: code}
	case KindServiceDiscovery:
		return ServiceDiscoveryRes{Header: h, D: d, ResponseCode: code}
	case KindServiceDetail:
		return ServiceDetailRes{Header: h, D: d, ResponseCode: code}
	case KindPaymentServiceSelect:
		return PaymentServiceSelectionRes{Header: h, D: d, ResponseCode: code}
	case KindCertificateInstall:
		return CertificateInstallationRes{Header: h, D: d, ResponseCode: code}
	case KindPaymentDetails:
		return PaymentDetailsRes{Header: h, D: d, ResponseCode: code}
	case KindAuthorization:
		return AuthorizationRes{Header: h, D: d, ResponseCode: code}
	case KindChargeParamDiscovery:
		return ChargeParameterDiscoveryRes{Header: h, D: d, ResponseCode: code}
	case KindCableCheck:
		return CableCheckRes{Header: h, D: d, ResponseCode: code}
	case KindPreCharge:
		return PreChargeRes{Header: h, D: d, ResponseCode: code}
	case KindPowerDelivery:
		return PowerDeliveryRes{Header: h, D: d, ResponseCode: code}
	case KindCurrentDemand:
		return CurrentDemandRes{Header: h, D: d, ResponseCode: code}
	case KindChargingStatus:
		return ChargingStatusRes{Header: h, D: d, ResponseCode: code}
	case KindWeldingDetection:
		return WeldingDetectionRes{Header: h, D: d, ResponseCode: code}
	case KindSessionStop:
		return SessionStopRes{Header: h, D: d, ResponseCode: code}
	default:
		return SessionSetupRes{Header: h, D: d, ResponseCode: code}
	}
}

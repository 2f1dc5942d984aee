package message

// ProtocolOffer is one entry of a SupportedAppProtocolReq's protocol list;
// priority is implied by list order (spec §4.5 design notes).
type ProtocolOffer struct {
	Name     string
	Major    int
	Minor    int
	SchemaID int
}

// SupportedAppProtocolReq has no session id; it precedes SessionSetup and
// decides the dialect for the rest of the session.
type SupportedAppProtocolReq struct {
	Offers []ProtocolOffer
}

func (SupportedAppProtocolReq) Kind() Kind       { return KindSupportedAppProtocol }
func (SupportedAppProtocolReq) Dialect() Dialect { return DialectUnknown }
func (SupportedAppProtocolReq) IsRequest() bool  { return true }

type SessionSetupReq struct {
	Header
	D      Dialect
	EVCCID string
}

func (r SessionSetupReq) Kind() Kind       { return KindSessionSetup }
func (r SessionSetupReq) Dialect() Dialect { return r.D }
func (SessionSetupReq) IsRequest() bool    { return true }

type ServiceDiscoveryReq struct {
	Header
	D                   Dialect
	RequestedEnergyMode EnergyTransferMode
}

func (r ServiceDiscoveryReq) Kind() Kind       { return KindServiceDiscovery }
func (r ServiceDiscoveryReq) Dialect() Dialect { return r.D }
func (ServiceDiscoveryReq) IsRequest() bool    { return true }

type ServiceDetailReq struct {
	Header
	D         Dialect
	ServiceID int
}

func (r ServiceDetailReq) Kind() Kind       { return KindServiceDetail }
func (r ServiceDetailReq) Dialect() Dialect { return r.D }
func (ServiceDetailReq) IsRequest() bool    { return true }

type PaymentServiceSelectionReq struct {
	Header
	D               Dialect
	PaymentOption   PaymentOption
	SelectedService int
}

func (r PaymentServiceSelectionReq) Kind() Kind       { return KindPaymentServiceSelect }
func (r PaymentServiceSelectionReq) Dialect() Dialect { return r.D }
func (PaymentServiceSelectionReq) IsRequest() bool    { return true }

// CertificateInstallationReq carries the EVCC's OEM provisioning
// certificate chain and a CSR-equivalent payload for contract cert
// issuance (PnC flow).
type CertificateInstallationReq struct {
	Header
	D          Dialect
	OEMChain   [][]byte // DER, leaf-first
	CSRPayload []byte
}

func (r CertificateInstallationReq) Kind() Kind       { return KindCertificateInstall }
func (r CertificateInstallationReq) Dialect() Dialect { return r.D }
func (CertificateInstallationReq) IsRequest() bool    { return true }

type PaymentDetailsReq struct {
	Header
	D             Dialect
	ContractChain [][]byte // DER, leaf-first
	EMAID         string
}

func (r PaymentDetailsReq) Kind() Kind       { return KindPaymentDetails }
func (r PaymentDetailsReq) Dialect() Dialect { return r.D }
func (PaymentDetailsReq) IsRequest() bool    { return true }

// AuthorizationReq optionally carries a detached signature over a
// canonical-EXI fragment, for the PnC flow (spec §4.7).
type AuthorizationReq struct {
	Header
	D              Dialect
	GenChallenge   []byte
	SignedFragment []byte
	Signature      []byte
}

func (r AuthorizationReq) Kind() Kind       { return KindAuthorization }
func (r AuthorizationReq) Dialect() Dialect { return r.D }
func (AuthorizationReq) IsRequest() bool    { return true }

type ChargeParameterDiscoveryReq struct {
	Header
	D             Dialect
	RequestedMode EnergyTransferMode
	MaxPower      PhysicalValue
	MaxCurrent    PhysicalValue
	DepartureTime uint32 // seconds from session start; 0 = unspecified
}

func (r ChargeParameterDiscoveryReq) Kind() Kind       { return KindChargeParamDiscovery }
func (r ChargeParameterDiscoveryReq) Dialect() Dialect { return r.D }
func (ChargeParameterDiscoveryReq) IsRequest() bool    { return true }

type CableCheckReq struct {
	Header
	D Dialect
}

func (r CableCheckReq) Kind() Kind       { return KindCableCheck }
func (r CableCheckReq) Dialect() Dialect { return r.D }
func (CableCheckReq) IsRequest() bool    { return true }

type PreChargeReq struct {
	Header
	D             Dialect
	TargetVoltage PhysicalValue
	TargetCurrent PhysicalValue
}

func (r PreChargeReq) Kind() Kind       { return KindPreCharge }
func (r PreChargeReq) Dialect() Dialect { return r.D }
func (PreChargeReq) IsRequest() bool    { return true }

type PowerDeliveryReq struct {
	Header
	D          Dialect
	Progress   ChargeProgress
	ScheduleID int
}

func (r PowerDeliveryReq) Kind() Kind       { return KindPowerDelivery }
func (r PowerDeliveryReq) Dialect() Dialect { return r.D }
func (PowerDeliveryReq) IsRequest() bool    { return true }

type CurrentDemandReq struct {
	Header
	D                    Dialect
	TargetCurrent        PhysicalValue
	TargetVoltage        PhysicalValue
	ChargingComplete     bool
	BulkChargingComplete bool
}

func (r CurrentDemandReq) Kind() Kind       { return KindCurrentDemand }
func (r CurrentDemandReq) Dialect() Dialect { return r.D }
func (CurrentDemandReq) IsRequest() bool    { return true }

type ChargingStatusReq struct {
	Header
	D Dialect
}

func (r ChargingStatusReq) Kind() Kind       { return KindChargingStatus }
func (r ChargingStatusReq) Dialect() Dialect { return r.D }
func (ChargingStatusReq) IsRequest() bool    { return true }

type WeldingDetectionReq struct {
	Header
	D              Dialect
	PresentVoltage PhysicalValue
}

func (r WeldingDetectionReq) Kind() Kind       { return KindWeldingDetection }
func (r WeldingDetectionReq) Dialect() Dialect { return r.D }
func (WeldingDetectionReq) IsRequest() bool    { return true }

type SessionStopReq struct {
	Header
	D         Dialect
	Terminate bool
}

func (r SessionStopReq) Kind() Kind       { return KindSessionStop }
func (r SessionStopReq) Dialect() Dialect { return r.D }
func (SessionStopReq) IsRequest() bool    { return true }

// Package sim provides deterministic-enough simulator implementations of
// the controller interfaces, gated by SECC_CONTROLLER_SIM /
// EVCC_CONTROLLER_SIM (spec §6). Identifiers and plausible numeric ranges
// follow the teacher's own fixture-generation style in charging_scenario.go,
// which leans on go-faker/faker rather than hand-rolled random logic.
package sim

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"time"

	"github.com/go-faker/faker/v4"

	"github.com/M4GNV5/iso15118/internal/controller"
	"github.com/M4GNV5/iso15118/internal/message"
)

func fakeNumber(min, max int) int {
	v, err := faker.RandomInt(min, max, 1)
	if err != nil || len(v) == 0 {
		return min
	}
	return v[0]
}

// EVCC is a battery-model-free simulator: SOC climbs toward its target at
// a fixed rate and the session stops once it arrives.
type EVCC struct {
	id        string
	mode      message.EnergyTransferMode
	method    message.PaymentOption
	useTLS    bool
	soc       float64
	targetSOC float64
	maxPowerW int16
	emaid     string
	oemChain  [][]byte
	oemKey    *ecdsa.PrivateKey
}

// NewEVCC builds a simulator EVCC controller with plausible fixture data.
func NewEVCC(mode message.EnergyTransferMode, method message.PaymentOption, useTLS bool) *EVCC {
	return &EVCC{
		id:        "EVCC-" + faker.CCNumber(),
		mode:      mode,
		method:    method,
		useTLS:    useTLS,
		soc:       float64(fakeNumber(10, 40)),
		targetSOC: float64(fakeNumber(70, 100)),
		maxPowerW: int16(fakeNumber(11000, 150000) / 1000), // kW-scale, fits int16 via multiplier below
		emaid:     "EMA" + faker.CCNumber(),
	}
}

func (e *EVCC) EVCCID() string { return e.id }

func (e *EVCC) EnergyMode(ctx context.Context) (message.EnergyTransferMode, error) {
	return e.mode, nil
}

func (e *EVCC) AuthorizationMethod(ctx context.Context) (message.PaymentOption, error) {
	return e.method, nil
}

func (e *EVCC) UseTLS() bool { return e.useTLS }

func (e *EVCC) PresentSOC(ctx context.Context) (float64, error) { return e.soc, nil }
func (e *EVCC) TargetSOC(ctx context.Context) (float64, error)  { return e.targetSOC, nil }

func (e *EVCC) MaxPower(ctx context.Context) (message.PhysicalValue, error) {
	return message.PhysicalValue{Value: e.maxPowerW, Multiplier: 3, Unit: message.UnitWatt}, nil
}

func (e *EVCC) DepartureTime(ctx context.Context) (uint32, error) {
	return uint32(fakeNumber(1800, 28800)), nil
}

func (e *EVCC) TargetCurrentDemand(ctx context.Context) (current, voltage message.PhysicalValue, err error) {
	e.soc += 0.5
	if e.mode.IsDC() {
		voltage = message.PhysicalValue{Value: int16(fakeNumber(380, 800)), Multiplier: 0, Unit: message.UnitVolt}
		current = message.PhysicalValue{Value: int16(fakeNumber(80, 500)), Multiplier: 0, Unit: message.UnitAmpere}
	} else {
		voltage = message.PhysicalValue{Value: int16(fakeNumber(208, 240)), Multiplier: 0, Unit: message.UnitVolt}
		current = message.PhysicalValue{Value: int16(fakeNumber(16, 80)), Multiplier: 0, Unit: message.UnitAmpere}
	}
	return current, voltage, nil
}

func (e *EVCC) ChargingShouldStop(ctx context.Context) (bool, error) {
	return e.soc >= e.targetSOC, nil
}

func (e *EVCC) RenegotiationRequested(ctx context.Context) (bool, error) {
	return false, nil
}

// OEMCertificateChain generates a throwaway self-signed certificate on
// first use, for exercising the PnC wire path in absence of a real OEM
// provisioning PKI. It naturally fails ValidateChain against any real
// trust store, the same way a simulator with no PKI configured would in
// practice.
func (e *EVCC) OEMCertificateChain(ctx context.Context) ([][]byte, error) {
	if e.method != message.PaymentPnC {
		return nil, nil
	}
	if e.oemChain == nil {
		chain, key, err := selfSignedChain(e.id)
		if err != nil {
			return nil, err
		}
		e.oemChain = chain
		e.oemKey = key
	}
	return e.oemChain, nil
}

// SignAuthorization signs fragment with the key generated alongside the
// simulator's throwaway OEM chain; EIM-only sessions never call this.
func (e *EVCC) SignAuthorization(ctx context.Context, fragment []byte) ([]byte, error) {
	if e.oemKey == nil {
		return nil, nil
	}
	hash := sha256.Sum256(fragment)
	return ecdsa.SignASN1(rand.Reader, e.oemKey, hash[:])
}

func (e *EVCC) CSRPayload(ctx context.Context) ([]byte, error) {
	if e.method != message.PaymentPnC {
		return nil, nil
	}
	return []byte(e.id + "-csr"), nil
}

func (e *EVCC) ContractEMAID(ctx context.Context) (string, error) {
	return e.emaid, nil
}

// selfSignedChain mirrors generate_certificate/main.go's shape (EC P-256,
// self-signed) without writing anything to disk.
func selfSignedChain(subject string) ([][]byte, *ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return nil, nil, err
	}
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: subject},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, err
	}
	return [][]byte{der}, key, nil
}

var _ controller.EVCCController = (*EVCC)(nil)

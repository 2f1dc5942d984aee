// Package controller defines the abstract capability sets the state
// machines call into to read or mutate the physical-world context (spec
// §4.8). The core never knows whether an implementation is a real EVSE/EV
// or a simulator; internal/controller/sim provides the latter.
package controller

import (
	"context"

	"github.com/M4GNV5/iso15118/internal/message"
)

// AuthorizationStatus is the outcome of a SECC authorization oracle call.
type AuthorizationStatus string

const (
	Accepted AuthorizationStatus = "Accepted"
	Ongoing  AuthorizationStatus = "Ongoing"
	Rejected AuthorizationStatus = "Rejected"
)

// EnergyLimits is what a controller reports as physically available,
// independent of whatever schedule has been negotiated so far.
type EnergyLimits struct {
	MaxPower   message.PhysicalValue
	MaxCurrent message.PhysicalValue
}

// ScheduleRequirements is what the SECC controller needs to build a
// ChargingSchedule: the EVCC's requested mode and departure time, plus
// what the EVCC asked for via ChargeParameterDiscoveryReq.
type ScheduleRequirements struct {
	Mode          message.EnergyTransferMode
	MaxPower      message.PhysicalValue
	MaxCurrent    message.PhysicalValue
	DepartureTime uint32
}

// EVCCController is everything the EVCC state machine consults (spec
// §4.8). All calls are synchronous from the state machine's viewpoint;
// an implementation may defer internally but must resolve before the
// step's timer fires.
type EVCCController interface {
	EVCCID() string
	EnergyMode(ctx context.Context) (message.EnergyTransferMode, error)
	AuthorizationMethod(ctx context.Context) (message.PaymentOption, error)
	UseTLS() bool

	PresentSOC(ctx context.Context) (float64, error)
	TargetSOC(ctx context.Context) (float64, error)
	MaxPower(ctx context.Context) (message.PhysicalValue, error)
	DepartureTime(ctx context.Context) (uint32, error)

	// TargetCurrentDemand is consulted once per CurrentDemand/ChargingStatus
	// loop iteration.
	TargetCurrentDemand(ctx context.Context) (current, voltage message.PhysicalValue, err error)

	ChargingShouldStop(ctx context.Context) (bool, error)
	RenegotiationRequested(ctx context.Context) (bool, error)

	// OEMCertificateChain/CSRPayload/ContractEMAID are only consulted along
	// the PnC path (AuthorizationMethod returning message.PaymentPnC); an
	// EIM-only controller may return a nil chain and an empty EMAID.
	OEMCertificateChain(ctx context.Context) ([][]byte, error)
	CSRPayload(ctx context.Context) ([]byte, error)
	ContractEMAID(ctx context.Context) (string, error)

	// SignAuthorization signs fragment with the private key backing the
	// contract certificate chain, for AuthorizationReq's detached signature
	// on the PnC path (spec §4.7). Unused and safe to no-op for EIM-only
	// controllers.
	SignAuthorization(ctx context.Context, fragment []byte) ([]byte, error)
}

// SECCController is everything the SECC state machine consults (spec
// §4.8).
type SECCController interface {
	EVSEID() string
	SupportedModes(ctx context.Context) ([]message.EnergyTransferMode, error)

	IsAuthorized(ctx context.Context, sessionID string, method message.PaymentOption) (AuthorizationStatus, error)

	PresentVoltage(ctx context.Context) (message.PhysicalValue, error)
	PresentCurrent(ctx context.Context) (message.PhysicalValue, error)
	Limits(ctx context.Context) (EnergyLimits, error)

	BuildSchedule(ctx context.Context, req ScheduleRequirements) (message.ChargingSchedule, error)

	ShouldStop(ctx context.Context) (bool, error)
}

package sim

import (
	"context"

	"github.com/go-faker/faker/v4"

	"github.com/M4GNV5/iso15118/internal/controller"
	"github.com/M4GNV5/iso15118/internal/message"
)

// SECC is a simulator EVSE: it always authorizes EIM, accepts any contract
// chain the PnC validation layer already approved, and hands back a flat
// single-entry schedule sized to the requested power.
type SECC struct {
	id    string
	modes []message.EnergyTransferMode
	ticks int
}

// NewSECC builds a simulator SECC controller offering modes.
func NewSECC(modes []message.EnergyTransferMode) *SECC {
	return &SECC{
		id:    "EVSE-" + faker.CCNumber(),
		modes: modes,
	}
}

func (s *SECC) EVSEID() string { return s.id }

func (s *SECC) SupportedModes(ctx context.Context) ([]message.EnergyTransferMode, error) {
	return s.modes, nil
}

func (s *SECC) IsAuthorized(ctx context.Context, sessionID string, method message.PaymentOption) (controller.AuthorizationStatus, error) {
	if method == message.PaymentEIM {
		return controller.Accepted, nil
	}
	// PnC authorization is decided upstream by internal/pki chain/signature
	// validation; by the time the SECC state machine asks the controller
	// at all, the cryptographic gate already passed.
	return controller.Accepted, nil
}

func (s *SECC) PresentVoltage(ctx context.Context) (message.PhysicalValue, error) {
	return message.PhysicalValue{Value: int16(fakeNumber(380, 800)), Unit: message.UnitVolt}, nil
}

func (s *SECC) PresentCurrent(ctx context.Context) (message.PhysicalValue, error) {
	s.ticks++
	return message.PhysicalValue{Value: int16(fakeNumber(80, 500)), Unit: message.UnitAmpere}, nil
}

func (s *SECC) Limits(ctx context.Context) (controller.EnergyLimits, error) {
	return controller.EnergyLimits{
		MaxPower:   message.PhysicalValue{Value: int16(fakeNumber(50, 350)), Multiplier: 3, Unit: message.UnitWatt},
		MaxCurrent: message.PhysicalValue{Value: int16(fakeNumber(80, 500)), Unit: message.UnitAmpere},
	}, nil
}

func (s *SECC) BuildSchedule(ctx context.Context, req controller.ScheduleRequirements) (message.ChargingSchedule, error) {
	return message.ChargingSchedule{
		ScheduleID: 1,
		Entries: []message.ScheduleEntry{
			{
				StartOffsetSeconds: 0,
				DurationSeconds:    req.DepartureTime,
				MaxPower:           req.MaxPower,
			},
		},
	}, nil
}

func (s *SECC) ShouldStop(ctx context.Context) (bool, error) {
	return s.ticks > 20, nil
}

var _ controller.SECCController = (*SECC)(nil)

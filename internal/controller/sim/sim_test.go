package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/M4GNV5/iso15118/internal/controller"
	"github.com/M4GNV5/iso15118/internal/message"
)

func TestNewEVCCReportsRequestedModeAndMethod(t *testing.T) {
	ctx := context.Background()
	e := NewEVCC(message.ACThreePhaseCore, message.PaymentEIM, true)

	mode, err := e.EnergyMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, message.ACThreePhaseCore, mode)

	method, err := e.AuthorizationMethod(ctx)
	require.NoError(t, err)
	assert.Equal(t, message.PaymentEIM, method)

	assert.True(t, e.UseTLS())
	assert.NotEmpty(t, e.EVCCID())
}

func TestEVCCChargingShouldStopOnceSOCReachesTarget(t *testing.T) {
	ctx := context.Background()
	e := NewEVCC(message.ACThreePhaseCore, message.PaymentEIM, false)

	target, err := e.TargetSOC(ctx)
	require.NoError(t, err)

	stop, err := e.ChargingShouldStop(ctx)
	require.NoError(t, err)
	assert.False(t, stop)

	for i := 0; i < 200; i++ {
		_, _, err := e.TargetCurrentDemand(ctx)
		require.NoError(t, err)
		soc, err := e.PresentSOC(ctx)
		require.NoError(t, err)
		if soc >= target {
			break
		}
	}

	stop, err = e.ChargingShouldStop(ctx)
	require.NoError(t, err)
	assert.True(t, stop)
}

func TestEVCCEIMControllerHasNoPnCMaterial(t *testing.T) {
	ctx := context.Background()
	e := NewEVCC(message.ACThreePhaseCore, message.PaymentEIM, false)

	chain, err := e.OEMCertificateChain(ctx)
	require.NoError(t, err)
	assert.Nil(t, chain)

	csr, err := e.CSRPayload(ctx)
	require.NoError(t, err)
	assert.Nil(t, csr)
}

func TestEVCCPnCControllerGeneratesChainAndSignsFragments(t *testing.T) {
	ctx := context.Background()
	e := NewEVCC(message.ACThreePhaseCore, message.PaymentPnC, true)

	chain, err := e.OEMCertificateChain(ctx)
	require.NoError(t, err)
	require.Len(t, chain, 1)

	// A second call must return the same throwaway chain rather than
	// regenerating it every time it's consulted.
	again, err := e.OEMCertificateChain(ctx)
	require.NoError(t, err)
	assert.Equal(t, chain, again)

	sig, err := e.SignAuthorization(ctx, []byte("fragment"))
	require.NoError(t, err)
	assert.NotEmpty(t, sig)

	emaid, err := e.ContractEMAID(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, emaid)
}

func TestNewSECCReportsSupportedModes(t *testing.T) {
	ctx := context.Background()
	modes := []message.EnergyTransferMode{message.ACThreePhaseCore, message.DCComboCore}
	s := NewSECC(modes)

	got, err := s.SupportedModes(ctx)
	require.NoError(t, err)
	assert.Equal(t, modes, got)
	assert.NotEmpty(t, s.EVSEID())
}

func TestSECCAuthorizesBothPaymentOptions(t *testing.T) {
	ctx := context.Background()
	s := NewSECC(nil)

	status, err := s.IsAuthorized(ctx, "session", message.PaymentEIM)
	require.NoError(t, err)
	assert.Equal(t, controller.Accepted, status)

	status, err = s.IsAuthorized(ctx, "session", message.PaymentPnC)
	require.NoError(t, err)
	assert.Equal(t, controller.Accepted, status)
}

func TestSECCShouldStopAfterEnoughTicks(t *testing.T) {
	ctx := context.Background()
	s := NewSECC(nil)

	for i := 0; i < 20; i++ {
		_, err := s.PresentCurrent(ctx)
		require.NoError(t, err)
	}
	stop, err := s.ShouldStop(ctx)
	require.NoError(t, err)
	assert.False(t, stop)

	_, err = s.PresentCurrent(ctx)
	require.NoError(t, err)
	stop, err = s.ShouldStop(ctx)
	require.NoError(t, err)
	assert.True(t, stop)
}

func TestSECCBuildScheduleReflectsRequirements(t *testing.T) {
	ctx := context.Background()
	s := NewSECC(nil)

	req := controller.ScheduleRequirements{
		Mode:          message.ACThreePhaseCore,
		MaxPower:      message.PhysicalValue{Value: 11, Multiplier: 3, Unit: message.UnitWatt},
		DepartureTime: 3600,
	}
	sched, err := s.BuildSchedule(ctx, req)
	require.NoError(t, err)
	require.Len(t, sched.Entries, 1)
	assert.Equal(t, req.DepartureTime, sched.Entries[0].DurationSeconds)
	assert.Equal(t, req.MaxPower, sched.Entries[0].MaxPower)
}

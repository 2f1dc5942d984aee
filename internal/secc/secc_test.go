package secc

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/M4GNV5/iso15118/internal/controller/sim"
	"github.com/M4GNV5/iso15118/internal/message"
	"github.com/M4GNV5/iso15118/internal/session"
)

func newTestEngine() *Engine {
	sess := session.New([8]byte{}, session.RoleSECC, message.DialectISO2, StateSessionSetup)
	ctrl := sim.NewSECC([]message.EnergyTransferMode{message.ACThreePhaseCore})
	log := logrus.NewEntry(logrus.New())
	return New(sess, ctrl, nil, log)
}

func TestEngineDrivesEIMSessionToTermination(t *testing.T) {
	e := newTestEngine()

	reply, err := e.Step(message.SessionSetupReq{D: message.DialectISO2, EVCCID: "EVCC-TEST"})
	require.NoError(t, err)
	setupRes, ok := reply.(message.SessionSetupRes)
	require.True(t, ok)
	assert.Equal(t, message.OKNewSessionEstablished, setupRes.ResponseCode)
	assert.Equal(t, StateServiceDiscovery, e.Sess.CurrentState)

	sessionID := e.Sess.ID

	reply, err = e.Step(message.ServiceDiscoveryReq{Header: message.Header{SessionID: sessionID}, D: message.DialectISO2})
	require.NoError(t, err)
	_, ok = reply.(message.ServiceDiscoveryRes)
	require.True(t, ok)
	assert.Equal(t, StateServiceSelection, e.Sess.CurrentState)

	reply, err = e.Step(message.PaymentServiceSelectionReq{
		Header:          message.Header{SessionID: sessionID},
		D:               message.DialectISO2,
		PaymentOption:   message.PaymentEIM,
		SelectedService: 1,
	})
	require.NoError(t, err)
	_, ok = reply.(message.PaymentServiceSelectionRes)
	require.True(t, ok)
	assert.Equal(t, StateAuthorization, e.Sess.CurrentState)

	reply, err = e.Step(message.AuthorizationReq{Header: message.Header{SessionID: sessionID}, D: message.DialectISO2})
	require.NoError(t, err)
	authRes, ok := reply.(message.AuthorizationRes)
	require.True(t, ok)
	assert.Equal(t, "Finished", authRes.EVSEProcessing)
	assert.Equal(t, StateChargeParameterDiscovery, e.Sess.CurrentState)

	reply, err = e.Step(message.ChargeParameterDiscoveryReq{
		Header:        message.Header{SessionID: sessionID},
		D:             message.DialectISO2,
		RequestedMode: message.ACThreePhaseCore,
		DepartureTime: 3600,
	})
	require.NoError(t, err)
	_, ok = reply.(message.ChargeParameterDiscoveryRes)
	require.True(t, ok)
	assert.Equal(t, StateCableCheck, e.Sess.CurrentState)

	reply, err = e.Step(message.CableCheckReq{Header: message.Header{SessionID: sessionID}, D: message.DialectISO2})
	require.NoError(t, err)
	_, ok = reply.(message.CableCheckRes)
	require.True(t, ok)
	assert.Equal(t, StatePreCharge, e.Sess.CurrentState)

	reply, err = e.Step(message.PreChargeReq{Header: message.Header{SessionID: sessionID}, D: message.DialectISO2})
	require.NoError(t, err)
	_, ok = reply.(message.PreChargeRes)
	require.True(t, ok)
	assert.Equal(t, StatePowerDeliveryStart, e.Sess.CurrentState)

	reply, err = e.Step(message.PowerDeliveryReq{
		Header:   message.Header{SessionID: sessionID},
		D:        message.DialectISO2,
		Progress: message.ChargeProgressStart,
	})
	require.NoError(t, err)
	_, ok = reply.(message.PowerDeliveryRes)
	require.True(t, ok)
	assert.Equal(t, StateCharging, e.Sess.CurrentState)

	reply, err = e.Step(message.CurrentDemandReq{Header: message.Header{SessionID: sessionID}, D: message.DialectISO2})
	require.NoError(t, err)
	_, ok = reply.(message.CurrentDemandRes)
	require.True(t, ok)
	assert.Equal(t, StateCharging, e.Sess.CurrentState)

	reply, err = e.Step(message.PowerDeliveryReq{
		Header:   message.Header{SessionID: sessionID},
		D:        message.DialectISO2,
		Progress: message.ChargeProgressStop,
	})
	require.NoError(t, err)
	_, ok = reply.(message.PowerDeliveryRes)
	require.True(t, ok)
	assert.Equal(t, StateWeldingOrStop, e.Sess.CurrentState)

	reply, err = e.Step(message.SessionStopReq{Header: message.Header{SessionID: sessionID}, D: message.DialectISO2})
	require.NoError(t, err)
	_, ok = reply.(message.SessionStopRes)
	require.True(t, ok)
	assert.Equal(t, StateTerminated, e.Sess.CurrentState)
	assert.True(t, e.Sess.Terminated)
}

func TestEngineRejectsOutOfSequenceMessage(t *testing.T) {
	e := newTestEngine()

	// ServiceDiscoveryReq arriving before SessionSetup has run is an
	// unexpected message for the current state.
	reply, err := e.Step(message.ServiceDiscoveryReq{D: message.DialectISO2})
	require.Error(t, err)

	failed, ok := reply.(message.ServiceDiscoveryRes)
	require.True(t, ok)
	assert.Equal(t, message.FailedSequenceError, failed.ResponseCode)
	assert.Equal(t, StateTerminated, e.Sess.CurrentState)
	assert.True(t, e.Sess.Terminated)
}

func TestEngineRejectsSessionIDMismatchMidSession(t *testing.T) {
	e := newTestEngine()

	_, err := e.Step(message.SessionSetupReq{D: message.DialectISO2, EVCCID: "EVCC-TEST"})
	require.NoError(t, err)

	var wrongID [8]byte
	copy(wrongID[:], "WRONGID!")
	_, err = e.Step(message.ServiceDiscoveryReq{Header: message.Header{SessionID: wrongID}, D: message.DialectISO2})
	assert.Error(t, err)
	assert.Equal(t, StateTerminated, e.Sess.CurrentState)
}

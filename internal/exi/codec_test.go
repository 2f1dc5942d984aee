package exi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/M4GNV5/iso15118/internal/message"
)

func TestEncodeDecodeSupportedAppProtocol(t *testing.T) {
	req := message.SupportedAppProtocolReq{Offers: []message.ProtocolOffer{
		{Name: "urn:iso:std:iso:15118:-2:2013:MsgDef", Major: 2, Minor: 0, SchemaID: 0},
		{Name: "urn:iso:std:iso:15118:-20:2022:CommonMessages", Major: 1, Minor: 0, SchemaID: 1},
	}}
	body, err := Encode(req, message.DialectUnknown)
	require.NoError(t, err)

	got, err := DecodeSAPRequest(body)
	require.NoError(t, err)
	assert.Equal(t, req, got)

	res := message.SupportedAppProtocolRes{ResponseCode: message.SAPSuccessNegotiation, SchemaID: 1}
	body, err = Encode(res, message.DialectUnknown)
	require.NoError(t, err)

	gotRes, err := DecodeSAPResponse(body)
	require.NoError(t, err)
	assert.Equal(t, res, gotRes)
}

func TestEncodeDecodeSessionSetup(t *testing.T) {
	var sessionID [8]byte
	copy(sessionID[:], "SESSION1")

	req := message.SessionSetupReq{
		Header: message.Header{SessionID: sessionID},
		D:      message.DialectISO2,
		EVCCID: "EVCC-001",
	}
	body, err := Encode(req, message.DialectISO2)
	require.NoError(t, err)

	decoded, err := Decode(body, message.DialectISO2)
	require.NoError(t, err)

	got, ok := decoded.(message.SessionSetupReq)
	require.True(t, ok)
	assert.Equal(t, req.Header, got.Header)
	assert.Equal(t, req.EVCCID, got.EVCCID)
	assert.True(t, got.IsRequest())
}

func TestEncodeDecodeChargeParameterDiscoveryWithSchedules(t *testing.T) {
	var sessionID [8]byte
	copy(sessionID[:], "SESSION2")

	res := message.ChargeParameterDiscoveryRes{
		Header:         message.Header{SessionID: sessionID},
		D:              message.DialectISO2,
		ResponseCode:   message.OK,
		EVSEProcessing: "Finished",
		Schedules: []message.ChargingSchedule{
			{
				ScheduleID: 1,
				Entries: []message.ScheduleEntry{
					{StartOffsetSeconds: 0, DurationSeconds: 3600, MaxPower: message.PhysicalValue{Value: 11, Multiplier: 3, Unit: message.UnitWatt}},
					{StartOffsetSeconds: 3600, DurationSeconds: 1800, MaxPower: message.PhysicalValue{Value: 7, Multiplier: 3, Unit: message.UnitWatt}},
				},
			},
		},
		EVSENotification: message.EVSENotificationReNegotiate,
	}

	body, err := Encode(res, message.DialectISO2)
	require.NoError(t, err)

	decoded, err := Decode(body, message.DialectISO2)
	require.NoError(t, err)

	got, ok := decoded.(message.ChargeParameterDiscoveryRes)
	require.True(t, ok)
	assert.Equal(t, res, got)
}

func TestDecodeRejectsUnknownKindTag(t *testing.T) {
	w := newBitWriter()
	w.WriteBool(false)
	w.WriteByte(99) // not a registered kind tag
	w.WriteBytes(make([]byte, 8))

	_, err := Decode(w.Bytes(), message.DialectISO2)
	assert.Error(t, err)
}

func TestDecodeRejectsTruncatedBody(t *testing.T) {
	var sessionID [8]byte
	req := message.CableCheckReq{Header: message.Header{SessionID: sessionID}, D: message.DialectISO2}
	body, err := Encode(req, message.DialectISO2)
	require.NoError(t, err)

	_, err = Decode(body[:len(body)-1], message.DialectISO2)
	assert.Error(t, err)
}

func TestPhysicalValueFloat(t *testing.T) {
	pv := message.PhysicalValue{Value: 11, Multiplier: 3, Unit: message.UnitWatt}
	assert.Equal(t, 11000.0, pv.Float())

	neg := message.PhysicalValue{Value: 500, Multiplier: -1, Unit: message.UnitVolt}
	assert.Equal(t, 50.0, neg.Float())
}

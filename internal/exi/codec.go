// Package exi implements the schema-informed wire codec between typed
// messages (package message) and the EXI-layer bitstream carried inside a
// v2gtp frame.
//
// There is no EXI (W3C Efficient XML Interchange) library in the retrieval
// pack or, to this author's knowledge, the wider Go ecosystem; EXI's
// schema-informed grammar tables are not something a generic binary codec
// (protobuf, flatbuffers) can reproduce bit-for-bit, and Testable Property 7
// (canonical output must be byte-identical across runs) rules out anything
// that isn't deterministic by construction. This package hand-rolls the
// event-code-table idea instead: every message kind has a fixed small
// integer tag, every enumeration has a fixed small-width code, and every
// field is written in a fixed order — the same shape as a real EXI grammar,
// without parsing an XSD to build it.
package exi

import (
	"fmt"

	"github.com/M4GNV5/iso15118/internal/message"
	"github.com/M4GNV5/iso15118/internal/xerr"
)

var errShortRead = fmt.Errorf("exi: short read")

// kindTag is the event-code table mapping a message Kind to a small
// integer. Both dialects share this one table since the abridged -20
// message set mirrors -2 kind-for-kind (spec: "-20 is analogous with
// renamed phases").
var kindTag = map[message.Kind]byte{
	message.KindSessionSetup:         1,
	message.KindServiceDiscovery:     2,
	message.KindServiceDetail:        3,
	message.KindPaymentServiceSelect: 4,
	message.KindCertificateInstall:   5,
	message.KindPaymentDetails:       6,
	message.KindAuthorization:        7,
	message.KindChargeParamDiscovery: 8,
	message.KindCableCheck:           9,
	message.KindPreCharge:            10,
	message.KindPowerDelivery:        11,
	message.KindCurrentDemand:        12,
	message.KindChargingStatus:       13,
	message.KindWeldingDetection:     14,
	message.KindSessionStop:          15,
}

var tagKind = reverseTagTable()

func reverseTagTable() map[byte]message.Kind {
	m := make(map[byte]message.Kind, len(kindTag))
	for k, v := range kindTag {
		m[v] = k
	}
	return m
}

// responseCodeTable / energyModeTable / etc. are the fixed-width enum
// event-code tables. Widths are chosen just large enough for the current
// member count, as a real schema-informed grammar would.
var responseCodeTable = []message.ResponseCode{
	message.OK, message.OKNewSessionEstablished, message.OKCertExpiresSoon,
	message.FailedSequenceError, message.FailedUnknownSession, message.FailedCertExpired,
	message.FailedCertChainError, message.FailedSignatureError, message.FailedNoServiceSelected,
	message.FailedUnknown,
}

var energyModeTable = []message.EnergyTransferMode{
	message.ACSinglePhaseCore, message.ACThreePhaseCore, message.DCCore,
	message.DCExtended, message.DCComboCore, message.DCUnique,
}

var paymentOptionTable = []message.PaymentOption{message.PaymentEIM, message.PaymentPnC}

var evseNotificationTable = []message.EVSENotification{
	message.EVSENotificationNone, message.EVSENotificationStop, message.EVSENotificationReNegotiate,
}

var chargeProgressTable = []message.ChargeProgress{
	message.ChargeProgressStart, message.ChargeProgressStop, message.ChargeProgressRenegotiate,
}

var unitTable = []message.Unit{
	message.UnitWatt, message.UnitAmpere, message.UnitVolt, message.UnitWattHr,
	message.UnitSeconds, message.UnitPercent,
	"", // unset PhysicalValue: a field left at its zero value
}

func codeOf[T comparable](table []T, v T, bits int, w *bitWriter) error {
	for i, e := range table {
		if e == v {
			w.WriteBits(uint64(i), bits)
			return nil
		}
	}
	return xerr.New(xerr.Codec, fmt.Sprintf("value %v not in event-code table", v))
}

func decodeOf[T any](table []T, bits int, r *bitReader) (T, error) {
	var zero T
	idx, err := r.ReadBits(bits)
	if err != nil {
		return zero, err
	}
	if int(idx) >= len(table) {
		return zero, xerr.New(xerr.Codec, fmt.Sprintf("event code %d out of range", idx))
	}
	return table[int(idx)], nil
}

func bitsFor(n int) int {
	b := 0
	for (1 << b) < n {
		b++
	}
	if b == 0 {
		b = 1
	}
	return b
}

var (
	responseCodeBits     = bitsFor(len(responseCodeTable))
	energyModeBits       = bitsFor(len(energyModeTable))
	paymentOptionBits    = bitsFor(len(paymentOptionTable))
	evseNotificationBits = bitsFor(len(evseNotificationTable))
	chargeProgressBits   = bitsFor(len(chargeProgressTable))
	unitBits             = bitsFor(len(unitTable))
)

func writePhysicalValue(w *bitWriter, pv message.PhysicalValue) error {
	w.WriteInt16(pv.Value)
	w.WriteInt8(pv.Multiplier)
	return codeOf(unitTable, pv.Unit, unitBits, w)
}

func readPhysicalValue(r *bitReader) (message.PhysicalValue, error) {
	var pv message.PhysicalValue
	v, err := r.ReadInt16()
	if err != nil {
		return pv, err
	}
	m, err := r.ReadInt8()
	if err != nil {
		return pv, err
	}
	u, err := decodeOf(unitTable, unitBits, r)
	if err != nil {
		return pv, err
	}
	pv.Value, pv.Multiplier, pv.Unit = v, m, u
	return pv, nil
}

func writeCertChain(w *bitWriter, chain [][]byte) {
	w.WriteByte(byte(len(chain)))
	for _, c := range chain {
		w.WriteVarBytes(c)
	}
}

func readCertChain(r *bitReader) ([][]byte, error) {
	n, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, n)
	for i := range out {
		b, err := r.ReadVarBytes()
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

func writeSchedules(w *bitWriter, schedules []message.ChargingSchedule) error {
	w.WriteByte(byte(len(schedules)))
	for _, s := range schedules {
		w.WriteUint16(uint16(s.ScheduleID))
		w.WriteByte(byte(len(s.Entries)))
		for _, e := range s.Entries {
			w.WriteUint32(e.StartOffsetSeconds)
			w.WriteUint32(e.DurationSeconds)
			if err := writePhysicalValue(w, e.MaxPower); err != nil {
				return err
			}
		}
	}
	return nil
}

func readSchedules(r *bitReader) ([]message.ChargingSchedule, error) {
	n, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	out := make([]message.ChargingSchedule, n)
	for i := range out {
		id, err := r.ReadUint16()
		if err != nil {
			return nil, err
		}
		cnt, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		entries := make([]message.ScheduleEntry, cnt)
		for j := range entries {
			start, err := r.ReadUint32()
			if err != nil {
				return nil, err
			}
			dur, err := r.ReadUint32()
			if err != nil {
				return nil, err
			}
			pv, err := readPhysicalValue(r)
			if err != nil {
				return nil, err
			}
			entries[j] = message.ScheduleEntry{StartOffsetSeconds: start, DurationSeconds: dur, MaxPower: pv}
		}
		out[i] = message.ChargingSchedule{ScheduleID: int(id), Entries: entries}
	}
	return out, nil
}

// Encode serializes msg into an EXI-layer bitstream. The caller (router /
// session code) is responsible for wrapping the result in a v2gtp frame
// with the correct payload type for d.
func Encode(msg message.Message, d message.Dialect) ([]byte, error) {
	w := newBitWriter()

	if sap, ok := msg.(message.SupportedAppProtocolReq); ok {
		return encodeSAPReq(w, sap), nil
	}
	if sap, ok := msg.(message.SupportedAppProtocolRes); ok {
		return encodeSAPRes(w, sap)
	}

	w.WriteBool(msg.IsRequest())
	tag, ok := kindTag[msg.Kind()]
	if !ok {
		return nil, xerr.New(xerr.Codec, fmt.Sprintf("no event-code tag for kind %s", msg.Kind()))
	}
	w.WriteByte(tag)

	if err := writeHeader(w, msg); err != nil {
		return nil, err
	}
	if err := encodeBody(w, msg); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// DecodeSAPRequest / DecodeSAPResponse decode the dialect-less
// SupportedAppProtocol exchange. The v2gtp payload type (PayloadSAP) tells
// the caller a SAP message is present; which side of the pair it is
// follows from who is decoding (SECC always reads a request here, EVCC
// always reads a response), so there is no ambiguity to resolve at decode
// time the way there would be for a generic handler.
func DecodeSAPRequest(data []byte) (message.SupportedAppProtocolReq, error) {
	msg, err := decodeSAPReq(data)
	if err != nil {
		return message.SupportedAppProtocolReq{}, xerr.New(xerr.Codec, fmt.Sprintf("malformed SupportedAppProtocolReq: %v", err))
	}
	return msg, nil
}

func DecodeSAPResponse(data []byte) (message.SupportedAppProtocolRes, error) {
	msg, err := decodeSAPRes(data)
	if err != nil {
		return message.SupportedAppProtocolRes{}, xerr.New(xerr.Codec, fmt.Sprintf("malformed SupportedAppProtocolRes: %v", err))
	}
	return msg, nil
}

// Decode parses an EXI-layer bitstream for the negotiated dialect (-2 or
// -20). The v2gtp payload type must already have ruled out the SAP case;
// use DecodeSAPRequest/DecodeSAPResponse for that.
func Decode(data []byte, d message.Dialect) (message.Message, error) {
	r := newBitReader(data)

	isReq, err := r.ReadBool()
	if err != nil {
		return nil, xerr.New(xerr.Codec, "truncated message: missing request/response bit")
	}
	tagByte, err := r.ReadByte()
	if err != nil {
		return nil, xerr.New(xerr.Codec, "truncated message: missing kind tag")
	}
	kind, ok := tagKind[tagByte]
	if !ok {
		return nil, xerr.New(xerr.Codec, fmt.Sprintf("unknown element tag %d", tagByte))
	}

	header, err := readHeader(r)
	if err != nil {
		return nil, xerr.New(xerr.Codec, fmt.Sprintf("truncated %s header: %v", kind, err))
	}

	msg, err := decodeBody(r, d, header, kind, isReq)
	if err != nil {
		return nil, xerr.New(xerr.Codec, fmt.Sprintf("truncated or malformed %s body: %v", kind, err))
	}
	return msg, nil
}

func writeHeader(w *bitWriter, msg message.Message) error {
	h, ok := headerOf(msg)
	if !ok {
		return xerr.New(xerr.Codec, "message has no header")
	}
	w.WriteBytes(h.SessionID[:])
	return nil
}

func readHeader(r *bitReader) (message.Header, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return message.Header{}, err
	}
	var h message.Header
	copy(h.SessionID[:], b)
	return h, nil
}

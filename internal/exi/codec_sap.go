package exi

import "github.com/M4GNV5/iso15118/internal/message"

// SupportedAppProtocol has its own tiny grammar: it precedes dialect
// selection, so it cannot reuse the per-dialect event-code table above.
func encodeSAPReq(w *bitWriter, req message.SupportedAppProtocolReq) []byte {
	w.WriteByte(byte(len(req.Offers)))
	for _, o := range req.Offers {
		w.WriteString(o.Name)
		w.WriteByte(byte(o.Major))
		w.WriteByte(byte(o.Minor))
		w.WriteByte(byte(o.SchemaID))
	}
	return w.Bytes()
}

func encodeSAPRes(w *bitWriter, res message.SupportedAppProtocolRes) ([]byte, error) {
	if err := codeOf(sapCodeTable, res.ResponseCode, sapCodeBits, w); err != nil {
		return nil, err
	}
	w.WriteByte(byte(res.SchemaID))
	return w.Bytes(), nil
}

var sapCodeTable = []message.ResponseCodeSAP{
	message.SAPSuccessNegotiation, message.SAPSuccessMinorDeviation, message.SAPNoNegotiation,
}
var sapCodeBits = bitsFor(len(sapCodeTable))

func decodeSAPReq(data []byte) (message.SupportedAppProtocolReq, error) {
	r := newBitReader(data)
	n, err := r.ReadByte()
	if err != nil {
		return message.SupportedAppProtocolReq{}, err
	}
	offers := make([]message.ProtocolOffer, n)
	for i := range offers {
		name, err := r.ReadString()
		if err != nil {
			return message.SupportedAppProtocolReq{}, err
		}
		major, err := r.ReadByte()
		if err != nil {
			return message.SupportedAppProtocolReq{}, err
		}
		minor, err := r.ReadByte()
		if err != nil {
			return message.SupportedAppProtocolReq{}, err
		}
		schemaID, err := r.ReadByte()
		if err != nil {
			return message.SupportedAppProtocolReq{}, err
		}
		offers[i] = message.ProtocolOffer{Name: name, Major: int(major), Minor: int(minor), SchemaID: int(schemaID)}
	}
	return message.SupportedAppProtocolReq{Offers: offers}, nil
}

func decodeSAPRes(data []byte) (message.SupportedAppProtocolRes, error) {
	r := newBitReader(data)
	code, err := decodeOf(sapCodeTable, sapCodeBits, r)
	if err != nil {
		return message.SupportedAppProtocolRes{}, err
	}
	schemaID, err := r.ReadByte()
	if err != nil {
		return message.SupportedAppProtocolRes{}, err
	}
	return message.SupportedAppProtocolRes{ResponseCode: code, SchemaID: int(schemaID)}, nil
}

// Package v2gtp implements the Vehicle-to-Grid Transfer Protocol framing
// that wraps every SDP datagram and every EXI bitstream on the wire.
//
// Frame layout (spec §3, §6), big-endian:
//
//	0x01 | 0xFE | payload_type(2B) | length(4B) | body
package v2gtp

import (
	"encoding/binary"
	"fmt"

	"github.com/M4GNV5/iso15118/internal/xerr"
)

const (
	ProtocolVersion        byte = 0x01
	ProtocolVersionInverse byte = 0xFE

	HeaderLength = 8
)

// PayloadType identifies what the frame body carries. Values are
// authoritative per the ISO 15118 standard; this table matches it.
type PayloadType uint16

const (
	PayloadSDPRequest  PayloadType = 0x9000
	PayloadSDPResponse PayloadType = 0x9001
	PayloadEXI2        PayloadType = 0x8001
	PayloadEXI20       PayloadType = 0x8002
	PayloadSAP         PayloadType = 0x8000
)

// MaxFrameLength per dialect (spec Open Questions): chosen as a safe upper
// bound consistent with the original implementation's note that the
// largest message (CertificateInstallationRes) runs 5-6 KB.
const (
	MaxFrameLengthV2  = 8192
	MaxFrameLengthV20 = 65535
)

// Frame is a decoded v2gtp datagram.
type Frame struct {
	PayloadType PayloadType
	Body        []byte
}

// Encode serializes f into its wire representation.
func Encode(f Frame) []byte {
	out := make([]byte, HeaderLength+len(f.Body))
	out[0] = ProtocolVersion
	out[1] = ProtocolVersionInverse
	binary.BigEndian.PutUint16(out[2:4], uint16(f.PayloadType))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(f.Body)))
	copy(out[HeaderLength:], f.Body)
	return out
}

// Decode parses a complete v2gtp datagram (header + body already
// reassembled by the transport layer). maxLength is the dialect-specific
// frame length ceiling; exceeding it is a protocol error per spec §4.2.
func Decode(raw []byte, maxLength int) (Frame, error) {
	if len(raw) < HeaderLength {
		return Frame{}, xerr.New(xerr.Codec, fmt.Sprintf("frame too short: %d bytes", len(raw)))
	}
	if raw[0] != ProtocolVersion || raw[1] != ProtocolVersionInverse {
		return Frame{}, xerr.New(xerr.Codec, fmt.Sprintf("bad version/inverse pair: %#x/%#x", raw[0], raw[1]))
	}
	pt := PayloadType(binary.BigEndian.Uint16(raw[2:4]))
	length := binary.BigEndian.Uint32(raw[4:8])
	body := raw[HeaderLength:]
	if int(length) != len(body) {
		return Frame{}, xerr.New(xerr.Codec, fmt.Sprintf("length mismatch: header says %d, got %d", length, len(body)))
	}
	if maxLength > 0 && len(body) > maxLength {
		return Frame{}, xerr.New(xerr.Codec, fmt.Sprintf("frame body %d bytes exceeds max %d", len(body), maxLength))
	}
	switch pt {
	case PayloadSDPRequest, PayloadSDPResponse, PayloadEXI2, PayloadEXI20, PayloadSAP:
	default:
		return Frame{}, xerr.New(xerr.Codec, fmt.Sprintf("unknown payload type %#x", pt))
	}
	return Frame{PayloadType: pt, Body: body}, nil
}

// ReadFrame reads exactly one frame via read, reassembling a partial read of
// the header and body as required by spec §4.2. read is any function with
// io.Reader's Read signature; transport.FramedConn passes its net.Conn's Read.
func ReadFrame(read func([]byte) (int, error), maxLength int) (Frame, error) {
	header := make([]byte, HeaderLength)
	if err := readFull(read, header); err != nil {
		return Frame{}, xerr.Wrap(xerr.Transport, "", "", err)
	}
	if header[0] != ProtocolVersion || header[1] != ProtocolVersionInverse {
		return Frame{}, xerr.New(xerr.Codec, fmt.Sprintf("bad version/inverse pair: %#x/%#x", header[0], header[1]))
	}
	length := binary.BigEndian.Uint32(header[4:8])
	if maxLength > 0 && int(length) > maxLength {
		return Frame{}, xerr.New(xerr.Codec, fmt.Sprintf("frame body %d bytes exceeds max %d", length, maxLength))
	}
	body := make([]byte, length)
	if err := readFull(read, body); err != nil {
		return Frame{}, xerr.Wrap(xerr.Transport, "", "", err)
	}
	pt := PayloadType(binary.BigEndian.Uint16(header[2:4]))
	switch pt {
	case PayloadSDPRequest, PayloadSDPResponse, PayloadEXI2, PayloadEXI20, PayloadSAP:
	default:
		return Frame{}, xerr.New(xerr.Codec, fmt.Sprintf("unknown payload type %#x", pt))
	}
	return Frame{PayloadType: pt, Body: body}, nil
}

func readFull(read func([]byte) (int, error), buf []byte) error {
	for off := 0; off < len(buf); {
		n, err := read(buf[off:])
		if n > 0 {
			off += n
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("short read: got %d of %d bytes", off, len(buf))
		}
	}
	return nil
}

// Package sdp implements the SECC Discovery Protocol datagrams (spec §4.3):
// the UDP multicast exchange an EVCC uses to find the TCP/TLS endpoint of a
// SECC before any EXI message is exchanged. It only knows how to build and
// parse SDPRequest/SDPResponse bodies and run the client retry cadence; the
// actual multicast socket lives in internal/transport.
package sdp

import (
	"fmt"
	"net"

	"github.com/M4GNV5/iso15118/internal/v2gtp"
	"github.com/M4GNV5/iso15118/internal/xerr"
)

// Security is the requested/offered transport security.
type Security byte

const (
	SecurityTLS   Security = 0x00
	SecurityNoTLS Security = 0x10
)

// Transport is the requested/offered stream transport. ISO 15118 names
// only TCP today; the field is carried for forward compatibility with the
// standard, not because this repo offers a choice.
type Transport byte

const (
	TransportTCP Transport = 0x00
)

// Request is what an EVCC broadcasts to find a SECC.
type Request struct {
	Security  Security
	Transport Transport
}

// Response is what a SECC answers with: its TCP/TLS endpoint, or a refusal
// if the requested security does not satisfy local policy.
type Response struct {
	Security  Security
	Transport Transport
	Address   net.IP // nil on refusal
	Port      uint16 // 0 on refusal
	Refused   bool
}

// EncodeRequest serializes req as a v2gtp-framed SDP request datagram.
func EncodeRequest(req Request) []byte {
	body := []byte{byte(req.Security), byte(req.Transport)}
	return v2gtp.Encode(v2gtp.Frame{PayloadType: v2gtp.PayloadSDPRequest, Body: body})
}

// DecodeRequest parses a raw SDP request datagram (header already
// validated by the caller's transport layer via v2gtp.Decode/ReadFrame).
func DecodeRequest(body []byte) (Request, error) {
	if len(body) < 2 {
		return Request{}, xerr.New(xerr.Codec, fmt.Sprintf("sdp request too short: %d bytes", len(body)))
	}
	return Request{Security: Security(body[0]), Transport: Transport(body[1])}, nil
}

// EncodeResponse serializes res as a v2gtp-framed SDP response datagram.
// A refusal carries the zero address/port with Security/Transport echoing
// what was offered, per spec §4.3 ("it never silently drops").
func EncodeResponse(res Response) []byte {
	body := make([]byte, 20)
	body[0] = byte(res.Security)
	body[1] = byte(res.Transport)
	addr := res.Address.To16()
	if addr == nil {
		addr = make(net.IP, 16)
	}
	copy(body[2:18], addr)
	body[18] = byte(res.Port >> 8)
	body[19] = byte(res.Port)
	return v2gtp.Encode(v2gtp.Frame{PayloadType: v2gtp.PayloadSDPResponse, Body: body})
}

// DecodeResponse parses a raw SDP response datagram body.
func DecodeResponse(body []byte) (Response, error) {
	if len(body) != 20 {
		return Response{}, xerr.New(xerr.Codec, fmt.Sprintf("sdp response malformed: %d bytes", len(body)))
	}
	res := Response{
		Security:  Security(body[0]),
		Transport: Transport(body[1]),
		Address:   net.IP(append([]byte{}, body[2:18]...)),
		Port:      uint16(body[18])<<8 | uint16(body[19]),
	}
	res.Refused = res.Port == 0
	return res, nil
}

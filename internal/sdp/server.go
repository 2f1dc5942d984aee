package sdp

import "net"

// Endpoint is the TCP/TLS listener a SECC advertises in its SDP response.
type Endpoint struct {
	Address net.IP
	Port    uint16
	TLS     bool
}

// Respond builds the SECC's answer to req given local policy. When
// enforceTLS is set and req asked for plain TCP, it returns the refusal
// form instead of the endpoint — SECC_ENFORCE_TLS (spec §6, scenario S2).
func Respond(req Request, endpoint Endpoint, enforceTLS bool) Response {
	if enforceTLS && req.Security != SecurityTLS {
		return Response{Security: req.Security, Transport: req.Transport}
	}

	sec := SecurityNoTLS
	if endpoint.TLS {
		sec = SecurityTLS
	}
	return Response{
		Security:  sec,
		Transport: TransportTCP,
		Address:   endpoint.Address,
		Port:      endpoint.Port,
	}
}

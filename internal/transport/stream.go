package transport

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"strconv"
	"time"

	"github.com/M4GNV5/iso15118/internal/message"
	"github.com/M4GNV5/iso15118/internal/v2gtp"
	"github.com/M4GNV5/iso15118/internal/xerr"
)

// TLSConfigV2 is the ISO-15118-2-mandated TLS 1.2 profile: one cipher,
// ECDHE-ECDSA-AES128-SHA256, and nothing else (spec §4.2, §6). clientCAs
// is nil for server-only authentication, set for the PnC mutual-auth case.
func TLSConfigV2(cert tls.Certificate, clientCAs *x509.CertPool) *tls.Config {
	cfg := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		MaxVersion:   tls.VersionTLS12,
		CipherSuites: []uint16{tls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA256},
		Certificates: []tls.Certificate{cert},
	}
	applyClientCAs(cfg, clientCAs)
	return cfg
}

// TLSConfigV20 is the ISO-15118-20 TLS 1.3 profile.
func TLSConfigV20(cert tls.Certificate, clientCAs *x509.CertPool) *tls.Config {
	cfg := &tls.Config{
		MinVersion:   tls.VersionTLS13,
		MaxVersion:   tls.VersionTLS13,
		Certificates: []tls.Certificate{cert},
	}
	applyClientCAs(cfg, clientCAs)
	return cfg
}

func applyClientCAs(cfg *tls.Config, clientCAs *x509.CertPool) {
	if clientCAs == nil {
		return
	}
	cfg.ClientCAs = clientCAs
	cfg.ClientAuth = tls.VerifyClientCertIfGiven
}

// Listen opens a TCP listener on an ephemeral port bound to the address
// SDP will advertise. tlsConfig is nil for a plain-TCP SECC (SDP
// SecurityNoTLS was accepted).
func Listen(bindAddr string, tlsConfig *tls.Config) (net.Listener, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(bindAddr, "0"))
	if err != nil {
		return nil, xerr.Wrap(xerr.Transport, "", "", err)
	}
	if tlsConfig != nil {
		return tls.NewListener(ln, tlsConfig), nil
	}
	return ln, nil
}

// Dial connects the EVCC side to the SECC endpoint SDP advertised.
func Dial(address string, port uint16, tlsConfig *tls.Config, timeout time.Duration) (net.Conn, error) {
	addr := net.JoinHostPort(address, strconv.Itoa(int(port)))
	dialer := &net.Dialer{Timeout: timeout}
	if tlsConfig != nil {
		conn, err := tls.DialWithDialer(dialer, "tcp", addr, tlsConfig)
		if err != nil {
			return nil, xerr.Wrap(xerr.Transport, "", "", err)
		}
		return conn, nil
	}
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return nil, xerr.Wrap(xerr.Transport, "", "", err)
	}
	return conn, nil
}

// FramedConn wraps a net.Conn and speaks v2gtp frames instead of raw
// bytes, reassembling partial reads per spec §4.2.
type FramedConn struct {
	net.Conn
	maxLength int
}

// NewFramedConn wraps conn for the given dialect's maximum frame length.
func NewFramedConn(conn net.Conn, d message.Dialect) *FramedConn {
	max := v2gtp.MaxFrameLengthV2
	if d == message.DialectISO20 {
		max = v2gtp.MaxFrameLengthV20
	}
	return &FramedConn{Conn: conn, maxLength: max}
}

// ReadFrame blocks for exactly one complete v2gtp frame.
func (c *FramedConn) ReadFrame() (v2gtp.Frame, error) {
	frame, err := v2gtp.ReadFrame(c.Conn.Read, c.maxLength)
	if err != nil {
		return v2gtp.Frame{}, err
	}
	return frame, nil
}

// WriteFrame sends one v2gtp frame, failing as TransportError on any
// partial write (spec §4.2: no silent partial delivery).
func (c *FramedConn) WriteFrame(f v2gtp.Frame) error {
	raw := v2gtp.Encode(f)
	n, err := c.Conn.Write(raw)
	if err != nil {
		return xerr.Wrap(xerr.Transport, "", "", err)
	}
	if n != len(raw) {
		return xerr.New(xerr.Transport, "short write")
	}
	return nil
}

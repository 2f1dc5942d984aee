package sdp

import (
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/M4GNV5/iso15118/internal/v2gtp"
	"github.com/M4GNV5/iso15118/internal/xerr"
)

// PacketConn is the slice of net.PacketConn/net.UDPConn Discover needs; a
// real socket or a test fake both satisfy it.
type PacketConn interface {
	WriteTo(b []byte, addr net.Addr) (int, error)
	ReadFrom(b []byte) (int, net.Addr, error)
	SetReadDeadline(t time.Time) error
}

const (
	initialRetryDelay = 250 * time.Millisecond
	maxRetryDelay     = 4 * time.Second
	maxRetries        = 50
)

// Discover runs the EVCC side of SDP (spec §4.3): broadcast a Request on
// conn to dest, retrying with a doubling-until-capped backoff, until a
// Response arrives or the retry budget is exhausted (SDPFailure).
func Discover(conn PacketConn, dest net.Addr, req Request, log *logrus.Entry) (Response, error) {
	buf := make([]byte, 2048)
	delay := initialRetryDelay

	for attempt := 0; attempt < maxRetries; attempt++ {
		if _, err := conn.WriteTo(EncodeRequest(req), dest); err != nil {
			return Response{}, xerr.Wrap(xerr.Transport, "", "", err)
		}
		if err := conn.SetReadDeadline(time.Now().Add(delay)); err != nil {
			return Response{}, xerr.Wrap(xerr.Transport, "", "", err)
		}

		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if log != nil {
				log.WithField("attempt", attempt).Debug("sdp: no response, retrying")
			}
			if delay < maxRetryDelay {
				delay *= 2
				if delay > maxRetryDelay {
					delay = maxRetryDelay
				}
			}
			continue
		}

		frame, err := v2gtp.Decode(buf[:n], 0)
		if err != nil || frame.PayloadType != v2gtp.PayloadSDPResponse {
			continue
		}
		res, err := DecodeResponse(frame.Body)
		if err != nil {
			continue
		}
		return res, nil
	}

	return Response{}, xerr.New(xerr.Transport, "sdp: no SECC responded within retry budget")
}

// Package transport provides the two network channels the rest of the
// stack needs (spec §4.2): the IPv6 link-local UDP multicast socket SDP
// runs over, and the TCP/TLS stream the HLC session runs over, plus a
// v2gtp-frame-aware reader/writer around that stream.
package transport

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/net/ipv6"

	"github.com/M4GNV5/iso15118/internal/xerr"
)

// MulticastGroup and MulticastPort are the fixed SDP rendezvous group and
// port (spec §6).
const (
	MulticastGroup = "ff02::1"
	MulticastPort  = 15118
	hopLimit       = 255
)

// MulticastConn wraps an IPv6 UDP socket joined to the SDP multicast group
// on one interface, with the standard's hop limit fixed on every send.
type MulticastConn struct {
	pc   *ipv6.PacketConn
	udp  *net.UDPConn
	dest *net.UDPAddr
}

// ListenMulticast joins the SDP group on ifaceName and returns a socket
// ready for both the SECC (receive requests, send responses) and the EVCC
// (send requests, receive responses) roles — which one a caller plays is a
// matter of which functions it calls, not of socket setup.
func ListenMulticast(ifaceName string) (*MulticastConn, error) {
	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, xerr.Wrap(xerr.Transport, "", "", fmt.Errorf("interface %q: %w", ifaceName, err))
	}

	udpConn, err := net.ListenUDP("udp6", &net.UDPAddr{Port: MulticastPort})
	if err != nil {
		return nil, xerr.Wrap(xerr.Transport, "", "", err)
	}

	group := net.ParseIP(MulticastGroup)
	pc := ipv6.NewPacketConn(udpConn)
	if err := pc.JoinGroup(iface, &net.UDPAddr{IP: group}); err != nil {
		udpConn.Close()
		return nil, xerr.Wrap(xerr.Transport, "", "", err)
	}
	if err := pc.SetMulticastHopLimit(hopLimit); err != nil {
		udpConn.Close()
		return nil, xerr.Wrap(xerr.Transport, "", "", err)
	}
	if err := pc.SetMulticastInterface(iface); err != nil {
		udpConn.Close()
		return nil, xerr.Wrap(xerr.Transport, "", "", err)
	}

	return &MulticastConn{
		pc:  pc,
		udp: udpConn,
		dest: &net.UDPAddr{
			IP:   group,
			Port: MulticastPort,
			Zone: iface.Name,
		},
	}, nil
}

// Dest is the multicast group address EVCC sends SDPRequests to.
func (c *MulticastConn) Dest() net.Addr { return c.dest }

func (c *MulticastConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	return c.udp.WriteTo(b, addr)
}

func (c *MulticastConn) ReadFrom(b []byte) (int, net.Addr, error) {
	return c.udp.ReadFrom(b)
}

func (c *MulticastConn) SetReadDeadline(t time.Time) error {
	return c.udp.SetReadDeadline(t)
}

func (c *MulticastConn) Close() error {
	return c.udp.Close()
}

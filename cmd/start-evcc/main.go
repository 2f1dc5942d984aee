// Command start-evcc runs the EVCC role: discover a SECC over SDP, dial its
// advertised endpoint, negotiate a dialect, and drive the session with
// internal/evcc.Engine. Printed status follows the teacher's go-pretty
// table idiom rather than a bare log line, per SPEC_FULL.md's domain-stack
// wiring for the CLI surface.
package main

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/M4GNV5/iso15118/internal/config"
	"github.com/M4GNV5/iso15118/internal/controller"
	"github.com/M4GNV5/iso15118/internal/controller/sim"
	"github.com/M4GNV5/iso15118/internal/evcc"
	"github.com/M4GNV5/iso15118/internal/logging"
	"github.com/M4GNV5/iso15118/internal/message"
	"github.com/M4GNV5/iso15118/internal/pki"
	"github.com/M4GNV5/iso15118/internal/sdp"
	"github.com/M4GNV5/iso15118/internal/session"
	"github.com/M4GNV5/iso15118/internal/transport"
)

const dialTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	var (
		envPath    string
		oemIdent   string
		energyMode string
	)
	flag.StringVar(&envPath, "env", "", "path to .env file (defaults to ./.env)")
	flag.StringVar(&oemIdent, "identity", "", "PKI identity name presented for mutual TLS (empty disables client certs)")
	flag.StringVar(&energyMode, "mode", "AC_three_phase_core", "energy transfer mode to request")
	flag.Parse()

	cfg, err := config.Load(envPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "start-evcc: config:", err)
		return 1
	}
	log := logging.New(cfg.LogLevel).WithField("role", "EVCC")

	trust, err := pki.LoadTrustStore(cfg.PKIPath)
	if err != nil {
		log.WithError(err).Error("loading trust store")
		return 2
	}

	var identity *tls.Certificate
	if oemIdent != "" {
		cert, err := pki.LoadIdentity(cfg.PKIPath, oemIdent)
		if err != nil {
			log.WithError(err).Error("loading client identity")
			return 2
		}
		identity = &cert
	}

	ctrl := newEVCCController(cfg, message.EnergyTransferMode(energyMode))

	mc, err := transport.ListenMulticast(cfg.Iface.Name)
	if err != nil {
		log.WithError(err).Error("joining SDP multicast group")
		return 2
	}
	defer mc.Close()

	sdpReq := sdp.Request{Transport: sdp.TransportTCP}
	if ctrl.UseTLS() {
		sdpReq.Security = sdp.SecurityTLS
	} else {
		sdpReq.Security = sdp.SecurityNoTLS
	}

	res, err := sdp.Discover(mc, mc.Dest(), sdpReq, log)
	if err != nil {
		log.WithError(err).Error("SDP discovery failed")
		return 2
	}
	if res.Refused {
		log.Error("SECC refused the requested transport security")
		return 2
	}
	if cfg.EVCCEnforceTLS && res.Security != sdp.SecurityTLS {
		log.Error("SECC endpoint is not TLS and EVCC_ENFORCE_TLS is set")
		return 2
	}

	var tlsConfig *tls.Config
	if res.Security == sdp.SecurityTLS {
		cert := tls.Certificate{}
		if identity != nil {
			cert = *identity
		}
		tlsConfig = transport.TLSConfigV2(cert, trust.Pool(pki.RoleV2GRoot))
		tlsConfig.InsecureSkipVerify = true // the handshake does not verify the SECC certificate, and the EVCC does not validate it anywhere else
	}

	conn, err := transport.Dial(res.Address.String(), res.Port, tlsConfig, dialTimeout)
	if err != nil {
		log.WithError(err).Error("dialing SECC endpoint")
		return 2
	}
	defer conn.Close()
	log.WithField("addr", fmt.Sprintf("%s:%d", res.Address, res.Port)).Info("evcc: connected")

	framed := transport.NewFramedConn(conn, message.DialectISO2)
	id, err := randomSessionID()
	if err != nil {
		log.WithError(err).Error("generating session id")
		return 3
	}
	sess := session.New(id, session.RoleEVCC, message.DialectUnknown, evcc.StateSupportedAppProtocol)
	sess.TLS = res.Security == sdp.SecurityTLS
	sessLog := log.WithField("session_id", fmt.Sprintf("%x", id))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	engine := evcc.New(sess, ctrl, framed, sessLog)
	if err := engine.Run(ctx); err != nil {
		logging.Fault(sessLog, "Protocol", fmt.Sprintf("%x", id), sess.CurrentState, err.Error())
		printStatus(sess)
		return 3
	}

	printStatus(sess)
	return 0
}

func newEVCCController(cfg *config.Config, mode message.EnergyTransferMode) controller.EVCCController {
	return sim.NewEVCC(mode, message.PaymentEIM, cfg.EVCCUseTLS)
}

func randomSessionID() ([8]byte, error) {
	var id [8]byte
	_, err := rand.Read(id[:])
	return id, err
}

// printStatus renders the final session state as a go-pretty table, the
// CLI-surface analogue of cmd/start-secc's /sessions HTTP endpoint.
func printStatus(sess *session.Session) {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRow(table.Row{"Session ID", fmt.Sprintf("%x", sess.ID)})
	t.AppendRow(table.Row{"Dialect", sess.Dialect})
	t.AppendRow(table.Row{"Final state", sess.CurrentState})
	t.AppendRow(table.Row{"EVSE ID", sess.EVSEID})
	t.AppendRow(table.Row{"Selected mode", sess.SelectedMode})
	t.AppendRow(table.Row{"Terminated", sess.Terminated})
	fmt.Println(t.Render())
}

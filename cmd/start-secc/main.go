// Command start-secc runs the SECC role: advertise over SDP, accept one HLC
// session per incoming connection, and drive it with internal/secc.Engine
// until termination. Flag/env wiring follows the teacher's main.go shape —
// flag.Parse() for the few things an operator plausibly overrides at
// invocation time, internal/config for everything the standard itself
// governs.
package main

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sirupsen/logrus"

	"github.com/M4GNV5/iso15118/internal/config"
	"github.com/M4GNV5/iso15118/internal/controller"
	"github.com/M4GNV5/iso15118/internal/controller/sim"
	"github.com/M4GNV5/iso15118/internal/exi"
	"github.com/M4GNV5/iso15118/internal/logging"
	"github.com/M4GNV5/iso15118/internal/message"
	"github.com/M4GNV5/iso15118/internal/pki"
	"github.com/M4GNV5/iso15118/internal/sdp"
	"github.com/M4GNV5/iso15118/internal/secc"
	"github.com/M4GNV5/iso15118/internal/session"
	"github.com/M4GNV5/iso15118/internal/transport"
	"github.com/M4GNV5/iso15118/internal/v2gtp"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		envPath       string
		evseIdent     string
		httpAddr      string
		sessionDBPath string
	)
	flag.StringVar(&envPath, "env", "", "path to .env file (defaults to ./.env)")
	flag.StringVar(&evseIdent, "identity", "evse", "PKI identity name to load for the TLS listener")
	flag.StringVar(&httpAddr, "http", "127.0.0.1:8080", "operator diagnostics endpoint address")
	flag.StringVar(&sessionDBPath, "session-db", "", "badger directory for durable session mirroring (empty disables it)")
	flag.Parse()

	cfg, err := config.Load(envPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "start-secc: config:", err)
		return 1
	}
	log := logging.New(cfg.LogLevel).WithField("role", "SECC")

	trust, err := pki.LoadTrustStore(cfg.PKIPath)
	if err != nil {
		log.WithError(err).Error("loading trust store")
		return 2
	}

	var tlsConfigV2, tlsConfigV20 *tls.Config
	identity, identErr := pki.LoadIdentity(cfg.PKIPath, evseIdent)
	if identErr == nil {
		tlsConfigV2 = transport.TLSConfigV2(identity, trust.Pool(pki.RoleContractRoot))
		tlsConfigV20 = transport.TLSConfigV20(identity, trust.Pool(pki.RoleContractRoot))
	} else {
		log.WithError(identErr).Warn("no TLS identity loaded, only plain TCP SDP offers will be honored")
	}

	var mirror *session.Mirror
	if cfg.RedisEnabled() {
		mirror = session.NewMirror(net.JoinHostPort(cfg.RedisHost, fmt.Sprint(cfg.RedisPort)), log)
	}
	store, err := session.NewStore(sessionDBPath, mirror, log)
	if err != nil {
		log.WithError(err).Error("opening session store")
		return 2
	}
	defer store.Close()
	if mirror != nil {
		defer mirror.Close()
	}

	advertiseIP, err := linkLocalAddr(cfg.Iface)
	if err != nil {
		log.WithError(err).Error("resolving interface address")
		return 2
	}

	ln, err := transport.Listen("::", nil)
	if err != nil {
		log.WithError(err).Error("opening TCP listener")
		return 2
	}
	defer ln.Close()
	tcpAddr := &net.TCPAddr{IP: advertiseIP, Port: ln.Addr().(*net.TCPAddr).Port}
	log.WithField("addr", tcpAddr).Info("secc: listening")

	mc, err := transport.ListenMulticast(cfg.Iface.Name)
	if err != nil {
		log.WithError(err).Error("joining SDP multicast group")
		return 2
	}
	defer mc.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		serveSDP(ctx, mc, tcpAddr, tlsConfigV2 != nil, cfg.SECCEnforceTLS, log)
	}()
	go func() {
		defer wg.Done()
		serveOperatorHTTP(ctx, httpAddr, store, log)
	}()

	go acceptLoop(ctx, ln, store, trust, cfg, tlsConfigV2, tlsConfigV20, log)

	<-ctx.Done()
	log.Info("secc: shutting down")
	wg.Wait()
	return 0
}

// serveSDP answers SDPRequests on the multicast socket with the TCP
// endpoint's address and port, honoring SECC_ENFORCE_TLS (spec §6 scenario
// S2).
func serveSDP(ctx context.Context, mc *transport.MulticastConn, tcpAddr *net.TCPAddr, offerTLS, enforceTLS bool, log *logrus.Entry) {
	buf := make([]byte, 2048)
	for ctx.Err() == nil {
		n, peer, err := mc.ReadFrom(buf)
		if err != nil {
			continue
		}
		frame, err := v2gtp.Decode(buf[:n], 0)
		if err != nil || frame.PayloadType != v2gtp.PayloadSDPRequest {
			continue
		}
		req, err := sdp.DecodeRequest(frame.Body)
		if err != nil {
			log.WithError(err).Debug("secc: malformed SDPRequest")
			continue
		}
		res := sdp.Respond(req, sdp.Endpoint{
			Address: tcpAddr.IP,
			Port:    uint16(tcpAddr.Port),
			TLS:     offerTLS,
		}, enforceTLS)
		if _, err := mc.WriteTo(sdp.EncodeResponse(res), peer); err != nil {
			log.WithError(err).Debug("secc: failed to answer SDPRequest")
		}
	}
}

// acceptLoop accepts raw TCP connections and, when a TLS identity was
// loaded, wraps each in a TLS 1.2 server handshake before SAP negotiation
// begins (matching the teacher's plain net.Listener + manual wrap style).
// tlsV2 is used for every TLS connection regardless of the dialect SAP
// later negotiates; splitting the listener by dialect would require
// knowing the dialect before the handshake completes, which the standard's
// own ordering (TLS, then SAP) does not give us (spec's Open Question
// decision, see DESIGN.md).
func acceptLoop(ctx context.Context, ln net.Listener, store *session.Store, trust *pki.TrustStore, cfg *config.Config, tlsV2, tlsV20 *tls.Config, log *logrus.Entry) {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Warn("secc: accept failed")
			continue
		}
		if tlsV2 != nil {
			conn = tls.Server(conn, tlsV2)
		}
		go handleConnection(ctx, conn, store, trust, cfg, log)
	}
}

// handleConnection negotiates the dialect over SupportedAppProtocol, then
// hands off to internal/secc.Engine for the rest of the session.
func handleConnection(ctx context.Context, conn net.Conn, store *session.Store, trust *pki.TrustStore, cfg *config.Config, log *logrus.Entry) {
	defer conn.Close()

	framed := transport.NewFramedConn(conn, message.DialectISO2)
	frame, err := framed.ReadFrame()
	if err != nil {
		log.WithError(err).Debug("secc: failed to read SupportedAppProtocolReq")
		return
	}
	if frame.PayloadType != v2gtp.PayloadSAP {
		log.Warn("secc: first frame was not SupportedAppProtocol")
		return
	}
	sapReq, err := exi.DecodeSAPRequest(frame.Body)
	if err != nil {
		log.WithError(err).Debug("secc: malformed SupportedAppProtocolReq")
		return
	}
	dialect, schemaID, ok := negotiateDialect(sapReq.Offers)
	sapCode := message.SAPSuccessNegotiation
	if !ok {
		sapCode = message.SAPNoNegotiation
	}
	sapBody, err := exi.Encode(message.SupportedAppProtocolRes{ResponseCode: sapCode, SchemaID: schemaID}, message.DialectUnknown)
	if err != nil {
		log.WithError(err).Error("secc: encoding SupportedAppProtocolRes")
		return
	}
	if err := framed.WriteFrame(v2gtp.Frame{PayloadType: v2gtp.PayloadSAP, Body: sapBody}); err != nil {
		log.WithError(err).Debug("secc: writing SupportedAppProtocolRes")
		return
	}
	if !ok {
		return
	}

	framed = transport.NewFramedConn(conn, dialect)
	id, err := randomSessionID()
	if err != nil {
		log.WithError(err).Error("secc: generating session id")
		return
	}
	sess := session.New(id, session.RoleSECC, dialect, secc.StateSessionSetup)
	sessLog := log.WithField("session_id", fmt.Sprintf("%x", id))

	ctrl := newSECCController(cfg)
	engine := secc.New(sess, ctrl, trust, sessLog)
	if err := store.Put(sess); err != nil {
		sessLog.WithError(err).Error("secc: storing session")
		return
	}
	defer store.Delete(id)

	runSession(ctx, framed, dialect, engine, sessLog)
}

func runSession(ctx context.Context, conn *transport.FramedConn, d message.Dialect, engine *secc.Engine, log *logrus.Entry) {
	for {
		if ctx.Err() != nil {
			return
		}
		frame, err := conn.ReadFrame()
		if err != nil {
			log.WithError(err).Debug("secc: connection closed")
			return
		}
		msg, err := exi.Decode(frame.Body, d)
		if err != nil {
			log.WithError(err).Warn("secc: malformed frame, closing")
			return
		}
		reply, err := engine.Step(msg)
		if reply != nil {
			body, encErr := exi.Encode(reply, d)
			if encErr != nil {
				log.WithError(encErr).Error("secc: encoding reply")
				return
			}
			pt := v2gtp.PayloadEXI2
			if d == message.DialectISO20 {
				pt = v2gtp.PayloadEXI20
			}
			if writeErr := conn.WriteFrame(v2gtp.Frame{PayloadType: pt, Body: body}); writeErr != nil {
				log.WithError(writeErr).Debug("secc: writing reply")
				return
			}
		}
		if err != nil {
			logging.Fault(log, "Protocol", fmt.Sprintf("%x", engine.Sess.ID), engine.Sess.CurrentState, err.Error())
			return
		}
		if engine.Sess.Terminated {
			return
		}
	}
}

func linkLocalAddr(iface *net.Interface) (net.IP, error) {
	addrs, err := iface.Addrs()
	if err != nil {
		return nil, err
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if ipNet.IP.To4() == nil && ipNet.IP.IsLinkLocalUnicast() {
			return ipNet.IP, nil
		}
	}
	return nil, fmt.Errorf("no IPv6 link-local address on %s", iface.Name)
}

func negotiateDialect(offers []message.ProtocolOffer) (message.Dialect, int, bool) {
	for _, offer := range offers {
		switch offer.SchemaID {
		case 0:
			return message.DialectISO2, offer.SchemaID, true
		case 1:
			return message.DialectISO20, offer.SchemaID, true
		}
	}
	return message.DialectUnknown, 0, false
}

func randomSessionID() ([8]byte, error) {
	var id [8]byte
	_, err := rand.Read(id[:])
	return id, err
}

// newSECCController builds the controller the session consults. No real
// EVSE hardware backend ships with this repo, so SECC_CONTROLLER_SIM=false
// with no further wiring still runs the simulator; an operator driving
// actual charger hardware supplies their own controller.SECCController.
func newSECCController(cfg *config.Config) controller.SECCController {
	return sim.NewSECC([]message.EnergyTransferMode{message.ACThreePhaseCore, message.DCCore})
}

// serveOperatorHTTP exposes /sessions as a go-pretty table of active
// sessions, per the teacher's own http_server.go control-plane idiom.
func serveOperatorHTTP(ctx context.Context, addr string, store *session.Store, log *logrus.Entry) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
		t := table.NewWriter()
		t.AppendHeader(table.Row{"Session ID", "State", "Dialect", "EVCC ID", "Started At"})
		for _, sess := range store.List() {
			t.AppendRow(table.Row{
				fmt.Sprintf("%x", sess.ID),
				sess.CurrentState,
				sess.Dialect,
				sess.EVCCID,
				sess.StartedAt.Format("15:04:05"),
			})
		}
		if r.URL.Query().Get("format") == "json" {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(store.List())
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, t.Render())
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	log.WithField("addr", addr).Info("secc: operator endpoint listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Warn("secc: operator endpoint stopped")
	}
}

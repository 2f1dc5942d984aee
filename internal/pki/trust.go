// Package pki implements certificate chain validation, canonical-EXI
// signature verification, and TLS identity loading for both roles (spec
// §4.7). It is grounded directly on the teacher's generate_certificate/
// tool, which already does every x509/pem operation this package needs —
// no third-party PKI library exists in the retrieval pack or, to this
// author's knowledge, the wider Go ecosystem.
package pki

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"github.com/M4GNV5/iso15118/internal/xerr"
)

// Role names one of the four independent trust-anchor sets (spec §4.7).
type Role string

const (
	RoleV2GRoot      Role = "v2g_root"
	RoleMORoot       Role = "mo_root"
	RoleOEMRoot      Role = "oem_root"
	RoleContractRoot Role = "contract_root"
)

// TrustStore holds the per-role anchor sets loaded once at startup (spec
// §5: "loaded once at startup and refreshed only on explicit reload").
type TrustStore struct {
	anchors map[Role][]*x509.Certificate
}

// LoadTrustStore reads "<pkiPath>/<role>.pem" for every known role. A
// missing file for a role that is never exercised by the running process
// (e.g. an EVCC never needs RoleMORoot) is not an error here — absence is
// only a problem the first time a chain under that role is validated.
func LoadTrustStore(pkiPath string) (*TrustStore, error) {
	ts := &TrustStore{anchors: make(map[Role][]*x509.Certificate)}
	for _, role := range []Role{RoleV2GRoot, RoleMORoot, RoleOEMRoot, RoleContractRoot} {
		path := filepath.Join(pkiPath, string(role)+".pem")
		raw, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, xerr.New(xerr.Config, fmt.Sprintf("reading trust anchor %s: %v", path, err))
		}
		certs, err := parsePEMCertificates(raw)
		if err != nil {
			return nil, xerr.New(xerr.Config, fmt.Sprintf("parsing trust anchor %s: %v", path, err))
		}
		ts.anchors[role] = certs
	}
	return ts, nil
}

func (ts *TrustStore) anchorsFor(role Role) []*x509.Certificate {
	return ts.anchors[role]
}

// Pool builds an *x509.CertPool for role, for use as a tls.Config's
// ClientCAs/RootCAs in the mutual-authentication PnC flow.
func (ts *TrustStore) Pool(role Role) *x509.CertPool {
	pool := x509.NewCertPool()
	for _, c := range ts.anchorsFor(role) {
		pool.AddCert(c)
	}
	return pool
}

func parsePEMCertificates(raw []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, raw = pem.Decode(raw)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("no CERTIFICATE blocks found")
	}
	return certs, nil
}

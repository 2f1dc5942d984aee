package pki

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/M4GNV5/iso15118/internal/xerr"
)

// ErrExpired distinguishes a validity-window failure from every other
// chain-validation failure, so a caller can map it to the schema's
// FAILED_CertificateExpired rather than the generic FAILED_CertificateChainError.
var ErrExpired = errors.New("certificate outside validity window")

// ParseChain decodes a leaf-first list of DER certificates, as carried on
// the wire by CertificateInstallation/PaymentDetails messages.
func ParseChain(der [][]byte) ([]*x509.Certificate, error) {
	certs := make([]*x509.Certificate, len(der))
	for i, raw := range der {
		cert, err := x509.ParseCertificate(raw)
		if err != nil {
			return nil, xerr.New(xerr.Security, fmt.Sprintf("chain certificate %d malformed: %v", i, err))
		}
		certs[i] = cert
	}
	return certs, nil
}

// ValidateChain checks the invariant of spec §3/§4.7: each non-root
// certificate is signed by the next, within its validity window, and
// carries KeyUsageDigitalSignature; the final certificate in the chain
// must itself be signed by (or equal to) a trust anchor belonging to
// role.
func ValidateChain(certs []*x509.Certificate, role Role, ts *TrustStore, now time.Time) error {
	if len(certs) == 0 {
		return xerr.New(xerr.Security, "empty certificate chain")
	}

	for i, cert := range certs {
		if now.Before(cert.NotBefore) || now.After(cert.NotAfter) {
			return xerr.Wrap(xerr.Security, "", "", fmt.Errorf("certificate %d (%s): %w", i, cert.Subject, ErrExpired))
		}
		if cert.KeyUsage&x509.KeyUsageDigitalSignature == 0 {
			return xerr.New(xerr.Security, fmt.Sprintf("certificate %d (%s) lacks digital signature key usage", i, cert.Subject))
		}
		if i+1 < len(certs) {
			if err := cert.CheckSignatureFrom(certs[i+1]); err != nil {
				return xerr.New(xerr.Security, fmt.Sprintf("certificate %d (%s) not signed by %d (%s): %v", i, cert.Subject, i+1, certs[i+1].Subject, err))
			}
		}
	}

	last := certs[len(certs)-1]
	for _, anchor := range ts.anchorsFor(role) {
		if last.Equal(anchor) {
			return nil
		}
		if now.Before(anchor.NotBefore) || now.After(anchor.NotAfter) {
			continue
		}
		if last.CheckSignatureFrom(anchor) == nil {
			return nil
		}
	}
	return xerr.New(xerr.Security, fmt.Sprintf("chain root %s matches no %s trust anchor", last.Subject, role))
}

// EncodePEM is a small convenience that wraps a DER certificate in a PEM
// block, mirroring the teacher's writeToFile shape without the file I/O.
// Nothing in this repo calls it; cmd/gencert encodes its PEM blocks itself.
func EncodePEM(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

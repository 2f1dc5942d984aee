// Command gencert builds the PKI tree internal/pki reads at startup: the
// four independent trust-anchor roots (spec §4.7) and the leaf identities
// issued under them. Grounded directly on generate_certificate/main.go's
// genCA/genClientCrt/writeToFile shape, with one deliberate deviation: keys
// are ECDSA P-256 rather than the teacher's RSA-4096, since ISO 15118 PnC
// signatures (internal/pki.VerifyFragmentSignature) are ECDSA over the
// standard's mandated curve.
package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"flag"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"
)

var rootRoles = map[string]bool{
	"v2g_root":      true,
	"mo_root":       true,
	"oem_root":      true,
	"contract_root": true,
}

var leafIssuer = map[string]string{
	"evse":     "v2g_root",
	"contract": "contract_root",
}

func main() {
	var (
		role    string
		out     string
		subject string
	)
	flag.StringVar(&role, "role", "", "which identity to generate: v2g_root|mo_root|oem_root|contract_root|evse|contract")
	flag.StringVar(&out, "out", "./pki", "PKI directory to write into")
	flag.StringVar(&subject, "cn", "", "certificate common name (defaults to the role)")
	flag.Parse()

	if role == "" {
		flag.Usage()
		os.Exit(1)
	}
	if subject == "" {
		subject = role
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "gencert:", err)
		os.Exit(2)
	}

	if rootRoles[role] {
		if err := genRoot(out, role, subject); err != nil {
			fmt.Fprintln(os.Stderr, "gencert:", err)
			os.Exit(2)
		}
		return
	}

	issuer, ok := leafIssuer[role]
	if !ok {
		fmt.Fprintf(os.Stderr, "gencert: unknown role %q\n", role)
		os.Exit(1)
	}
	if err := genLeaf(out, role, issuer, subject); err != nil {
		fmt.Fprintln(os.Stderr, "gencert:", err)
		os.Exit(2)
	}
}

func certSubject(cn string) pkix.Name {
	return pkix.Name{
		CommonName:   cn,
		Organization: []string{"iso15118-sim"},
		Country:      []string{"EG"},
	}
}

func genRoot(out, role, cn string) error {
	sn, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return err
	}
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return err
	}
	tmpl := &x509.Certificate{
		SerialNumber:          sn,
		Subject:               certSubject(cn),
		NotBefore:             time.Now(),
		NotAfter:              time.Now().AddDate(10, 0, 0),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return err
	}
	return writeIdentity(out, role, der, key)
}

func genLeaf(out, role, issuerRole, cn string) error {
	issuerCert, issuerKey, err := readIdentity(out, issuerRole)
	if err != nil {
		return fmt.Errorf("reading issuer %s: %w", issuerRole, err)
	}

	sn, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return err
	}
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return err
	}
	tmpl := &x509.Certificate{
		SerialNumber: sn,
		Subject:      certSubject(cn),
		NotBefore:    time.Now(),
		NotAfter:     time.Now().AddDate(1, 0, 0),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, issuerCert, &key.PublicKey, issuerKey)
	if err != nil {
		return err
	}
	return writeIdentity(out, role, der, key)
}

func writeIdentity(dir, name string, der []byte, key *ecdsa.PrivateKey) error {
	certPath := filepath.Join(dir, name+".pem")
	keyPath := filepath.Join(dir, name+".key")

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		return err
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return err
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return os.WriteFile(keyPath, keyPEM, 0o600)
}

func readIdentity(dir, name string) (*x509.Certificate, *ecdsa.PrivateKey, error) {
	certRaw, err := os.ReadFile(filepath.Join(dir, name+".pem"))
	if err != nil {
		return nil, nil, err
	}
	block, _ := pem.Decode(certRaw)
	if block == nil {
		return nil, nil, fmt.Errorf("%s.pem: no PEM block", name)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, nil, err
	}

	keyRaw, err := os.ReadFile(filepath.Join(dir, name+".key"))
	if err != nil {
		return nil, nil, err
	}
	keyBlock, _ := pem.Decode(keyRaw)
	if keyBlock == nil {
		return nil, nil, fmt.Errorf("%s.key: no PEM block", name)
	}
	key, err := x509.ParseECPrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, nil, err
	}
	return cert, key, nil
}

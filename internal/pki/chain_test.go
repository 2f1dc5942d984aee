package pki

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func genCert(t *testing.T, subject string, issuer *x509.Certificate, issuerKey *ecdsa.PrivateKey, notBefore, notAfter time.Time, isCA bool) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: subject},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	if isCA {
		tmpl.IsCA = true
		tmpl.KeyUsage |= x509.KeyUsageCertSign
	}

	parent, parentKey := tmpl, key
	if issuer != nil {
		parent, parentKey = issuer, issuerKey
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, parent, &key.PublicKey, parentKey)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert, key
}

func newTrustStore(roots map[Role]*x509.Certificate) *TrustStore {
	ts := &TrustStore{anchors: make(map[Role][]*x509.Certificate)}
	for role, cert := range roots {
		ts.anchors[role] = []*x509.Certificate{cert}
	}
	return ts
}

func TestValidateChainAcceptsLeafSignedByTrustedRoot(t *testing.T) {
	now := time.Now()
	root, rootKey := genCert(t, "v2g root", nil, nil, now.Add(-time.Hour), now.Add(10*365*24*time.Hour), true)
	leaf, _ := genCert(t, "evse-001", root, rootKey, now.Add(-time.Hour), now.Add(365*24*time.Hour), false)

	ts := newTrustStore(map[Role]*x509.Certificate{RoleV2GRoot: root})

	err := ValidateChain([]*x509.Certificate{leaf}, RoleV2GRoot, ts, now)
	assert.NoError(t, err)
}

func TestValidateChainWalksIntermediateChain(t *testing.T) {
	now := time.Now()
	root, rootKey := genCert(t, "contract root", nil, nil, now.Add(-time.Hour), now.Add(10*365*24*time.Hour), true)
	mo, moKey := genCert(t, "mobility operator", root, rootKey, now.Add(-time.Hour), now.Add(5*365*24*time.Hour), true)
	leaf, _ := genCert(t, "contract-001", mo, moKey, now.Add(-time.Hour), now.Add(365*24*time.Hour), false)

	ts := newTrustStore(map[Role]*x509.Certificate{RoleContractRoot: root})

	err := ValidateChain([]*x509.Certificate{leaf, mo}, RoleContractRoot, ts, now)
	assert.NoError(t, err)
}

func TestValidateChainRejectsExpiredCertificate(t *testing.T) {
	now := time.Now()
	root, rootKey := genCert(t, "v2g root", nil, nil, now.Add(-48*time.Hour), now.Add(10*365*24*time.Hour), true)
	leaf, _ := genCert(t, "evse-002", root, rootKey, now.Add(-48*time.Hour), now.Add(-time.Hour), false)

	ts := newTrustStore(map[Role]*x509.Certificate{RoleV2GRoot: root})

	err := ValidateChain([]*x509.Certificate{leaf}, RoleV2GRoot, ts, now)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestValidateChainRejectsUnknownRoot(t *testing.T) {
	now := time.Now()
	root, rootKey := genCert(t, "some other root", nil, nil, now.Add(-time.Hour), now.Add(10*365*24*time.Hour), true)
	leaf, _ := genCert(t, "evse-003", root, rootKey, now.Add(-time.Hour), now.Add(365*24*time.Hour), false)

	ts := newTrustStore(map[Role]*x509.Certificate{}) // no anchors loaded at all

	err := ValidateChain([]*x509.Certificate{leaf}, RoleV2GRoot, ts, now)
	assert.Error(t, err)
}

func TestValidateChainRejectsBrokenSignatureLink(t *testing.T) {
	now := time.Now()
	root, rootKey := genCert(t, "v2g root", nil, nil, now.Add(-time.Hour), now.Add(10*365*24*time.Hour), true)
	_, _ = rootKey, root
	otherRoot, otherKey := genCert(t, "unrelated root", nil, nil, now.Add(-time.Hour), now.Add(10*365*24*time.Hour), true)
	leaf, _ := genCert(t, "evse-004", otherRoot, otherKey, now.Add(-time.Hour), now.Add(365*24*time.Hour), false)

	ts := newTrustStore(map[Role]*x509.Certificate{RoleV2GRoot: root})

	err := ValidateChain([]*x509.Certificate{leaf}, RoleV2GRoot, ts, now)
	assert.Error(t, err)
}

func TestVerifyFragmentSignature(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	now := time.Now()
	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "contract-001"},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	fragment := []byte("canonical EXI AuthorizationReq fragment")
	digest := sha256.Sum256(fragment)
	sig, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	require.NoError(t, err)

	assert.NoError(t, VerifyFragmentSignature(leaf, fragment, sig))
	assert.Error(t, VerifyFragmentSignature(leaf, []byte("tampered fragment"), sig))
}

package pki

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"fmt"

	"github.com/M4GNV5/iso15118/internal/exi"
	"github.com/M4GNV5/iso15118/internal/message"
	"github.com/M4GNV5/iso15118/internal/xerr"
)

// CanonicalFragment re-encodes msg through internal/exi and returns the
// bytes a signer would have hashed. EXI's grammar-table encoding is
// deterministic by construction (Testable Property 7), so this is the
// canonical form regardless of which process produced msg.
func CanonicalFragment(msg message.Message, d message.Dialect) ([]byte, error) {
	return exi.Encode(msg, d)
}

// VerifyFragmentSignature checks a detached ECDSA signature over the
// SHA-256 digest of a canonical-EXI fragment (spec §4.7: "the verifier
// must reconstruct the exact canonical encoding the signer used"). ISO
// 15118 PnC signatures are ECDSA on the standard's mandated curve; the
// leaf certificate's public key must be of that type.
func VerifyFragmentSignature(leaf *x509.Certificate, fragment []byte, signature []byte) error {
	pub, ok := leaf.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return xerr.New(xerr.Security, fmt.Sprintf("leaf certificate key type %T is not ECDSA", leaf.PublicKey))
	}
	digest := sha256.Sum256(fragment)
	if !ecdsa.VerifyASN1(pub, digest[:], signature) {
		return xerr.New(xerr.Security, "fragment signature verification failed")
	}
	return nil
}

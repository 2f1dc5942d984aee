package pki

import (
	"crypto/tls"
	"fmt"
	"path/filepath"

	"github.com/M4GNV5/iso15118/internal/xerr"
)

// LoadIdentity loads a cert+key pair from "<pkiPath>/<name>.pem" and
// "<pkiPath>/<name>.key", the layout cmd/gencert writes and
// generate_certificate/main.go's writeToFile convention already used.
func LoadIdentity(pkiPath, name string) (tls.Certificate, error) {
	certPath := filepath.Join(pkiPath, name+".pem")
	keyPath := filepath.Join(pkiPath, name+".key")
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return tls.Certificate{}, xerr.New(xerr.Config, fmt.Sprintf("loading identity %q: %v", name, err))
	}
	return cert, nil
}

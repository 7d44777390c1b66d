// Carga del certificado de firma desde .p12 (PKCS#12) o par PEM.

package signer

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/pkcs12"

	"github.com/tu-usuario/retail-dte/internal/domain"
)

// Load carga el certificado según la extensión de la ruta: .p12/.pfx usa
// PKCS#12 con contraseña; cualquier otra cosa se trata como PEM.
// Todo fallo de carga se reporta como domain.ErrCertInvalid.
func Load(certPath, keyPath, password string) (tls.Certificate, error) {
	lower := strings.ToLower(certPath)
	if strings.HasSuffix(lower, ".p12") || strings.HasSuffix(lower, ".pfx") {
		return LoadFromP12(certPath, password)
	}
	return LoadFromPEM(certPath, keyPath)
}

// LoadFromP12 carga certificado y llave privada desde un archivo .p12/.pfx.
// El password puede ser vacío si el archivo no está protegido.
func LoadFromP12(path, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("leer p12: %v: %w", err, domain.ErrCertInvalid)
	}
	priv, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		// Contraseña incorrecta o archivo corrupto: indistinguibles aquí.
		return tls.Certificate{}, fmt.Errorf("decodificar p12: %v: %w", err, domain.ErrCertInvalid)
	}
	return tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  priv,
		Leaf:        cert,
	}, nil
}

// LoadFromPEM carga certificado y llave desde archivos PEM (por separado o
// combinados en un solo archivo).
func LoadFromPEM(certPath, keyPath string) (tls.Certificate, error) {
	if certPath == "" {
		return tls.Certificate{}, fmt.Errorf("ruta de certificado vacía: %w", domain.ErrCertInvalid)
	}
	if keyPath == "" {
		keyPath = certPath
	}
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("cargar PEM: %v: %w", err, domain.ErrCertInvalid)
	}
	if cert.Leaf == nil && len(cert.Certificate) > 0 {
		if leaf, err := x509.ParseCertificate(cert.Certificate[0]); err == nil {
			cert.Leaf = leaf
		}
	}
	return cert, nil
}

package signer

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tu-usuario/retail-dte/internal/domain"
)

// writePEMPair escribe certificado y llave en archivos PEM temporales.
func writePEMPair(t *testing.T) (certPath, keyPath string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "FIRMA DE PRUEBA"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	dir := t.TempDir()
	certPath = filepath.Join(dir, "cert.pem")
	keyPath = filepath.Join(dir, "key.pem")

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	require.NoError(t, os.WriteFile(certPath, certPEM, 0o600))
	require.NoError(t, os.WriteFile(keyPath, keyPEM, 0o600))
	return certPath, keyPath
}

func TestLoadFromPEM(t *testing.T) {
	certPath, keyPath := writePEMPair(t)

	cert, err := LoadFromPEM(certPath, keyPath)
	require.NoError(t, err)
	require.NotNil(t, cert.Leaf)
	assert.Equal(t, "FIRMA DE PRUEBA", cert.Leaf.Subject.CommonName)
	assert.IsType(t, &rsa.PrivateKey{}, cert.PrivateKey)
}

func TestLoadFromPEM_RutaVacia(t *testing.T) {
	_, err := LoadFromPEM("", "")
	assert.ErrorIs(t, err, domain.ErrCertInvalid)
}

func TestLoadFromPEM_ArchivoInexistente(t *testing.T) {
	_, err := LoadFromPEM("/no/existe/cert.pem", "/no/existe/key.pem")
	assert.ErrorIs(t, err, domain.ErrCertInvalid)
}

func TestLoadFromP12_Corrupto(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cert.p12")
	require.NoError(t, os.WriteFile(path, []byte("no es un p12"), 0o600))

	_, err := LoadFromP12(path, "clave")
	assert.ErrorIs(t, err, domain.ErrCertInvalid)
}

func TestLoad_EligePorExtension(t *testing.T) {
	// .p12 inexistente pasa por la ruta PKCS#12 y falla al leer el archivo.
	_, err := Load("/no/existe/cert.p12", "", "clave")
	assert.ErrorIs(t, err, domain.ErrCertInvalid)

	certPath, keyPath := writePEMPair(t)
	cert, err := Load(certPath, keyPath, "")
	require.NoError(t, err)
	assert.NotEmpty(t, cert.Certificate)
}

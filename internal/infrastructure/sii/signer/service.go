// Servicio de firma digital XML-DSig para DTE (SII).
// Agrega <ds:Signature> como último hijo del elemento <DTE>, con referencia
// al <Documento> por su atributo ID.

package signer

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/tu-usuario/retail-dte/internal/domain"
	pkgsii "github.com/tu-usuario/retail-dte/pkg/sii"
)

// DigitalSignatureService implementa pkg/sii.Signer.
// La firma es idempotente respecto del contenido: re-firmar los mismos bytes
// canónicos produce una firma válida (no necesariamente idéntica byte a byte).
type DigitalSignatureService struct{}

// NewDigitalSignatureService crea el servicio.
func NewDigitalSignatureService() *DigitalSignatureService {
	return &DigitalSignatureService{}
}

// Sign firma el XML del DTE. Rechaza certificados vencidos antes de tocar el
// documento: un DTE firmado con certificado vencido es rechazo seguro del SII.
func (s *DigitalSignatureService) Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, error) {
	if len(xmlBytes) == 0 {
		return nil, fmt.Errorf("sii: XML vacío: %w", domain.ErrSignFailure)
	}
	x509Cert, err := leafCertificate(cert)
	if err != nil {
		return nil, err
	}
	if time.Now().After(x509Cert.NotAfter) {
		return nil, fmt.Errorf("certificado vencido el %s: %w",
			x509Cert.NotAfter.Format("2006-01-02"), domain.ErrCertExpired)
	}
	priv, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("el certificado debe incluir llave privada RSA: %w", domain.ErrCertInvalid)
	}

	referenceURI, err := documentReferenceID(xmlBytes)
	if err != nil {
		return nil, err
	}

	// 1) Digest del documento canónico (C14N inclusive).
	canonicalDoc, err := canonicalizeXML(xmlBytes)
	if err != nil {
		canonicalDoc = xmlBytes
	}
	docDigest := sha1.Sum(canonicalDoc)

	// 2) SignedInfo canónico firmado con RSA-SHA1.
	signedInfoXML := buildSignedInfo(referenceURI, base64.StdEncoding.EncodeToString(docDigest[:]))
	canonicalSignedInfo, err := canonicalizeXML([]byte(signedInfoXML))
	if err != nil {
		canonicalSignedInfo = []byte(signedInfoXML)
	}
	signedInfoDigest := sha1.Sum(canonicalSignedInfo)
	signatureValue, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA1, signedInfoDigest[:])
	if err != nil {
		return nil, fmt.Errorf("firmar SignedInfo: %v: %w", err, domain.ErrSignFailure)
	}

	// 3) KeyInfo: llave pública y certificado.
	signatureXML := buildSignature(
		signedInfoXML,
		base64.StdEncoding.EncodeToString(signatureValue),
		base64.StdEncoding.EncodeToString(x509Cert.Raw),
		priv.PublicKey,
	)

	// 4) Inyectar como último hijo de <DTE>.
	return injectSignature(xmlBytes, signatureXML)
}

func leafCertificate(cert tls.Certificate) (*x509.Certificate, error) {
	if cert.Leaf != nil {
		return cert.Leaf, nil
	}
	if len(cert.Certificate) == 0 {
		return nil, fmt.Errorf("certificado sin contenido: %w", domain.ErrCertInvalid)
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("parsear certificado: %v: %w", err, domain.ErrCertInvalid)
	}
	return leaf, nil
}

// documentReferenceID obtiene el atributo ID del elemento Documento para la
// Reference URI de la firma.
func documentReferenceID(xmlBytes []byte) (string, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = latin1Reader
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return "", fmt.Errorf("parsear DTE: %v: %w", err, domain.ErrSignFailure)
	}
	root := doc.Root()
	if root == nil {
		return "", fmt.Errorf("DTE sin raíz: %w", domain.ErrSignFailure)
	}
	documento := root.SelectElement("Documento")
	if documento == nil {
		return "", fmt.Errorf("DTE sin elemento Documento: %w", domain.ErrSignFailure)
	}
	id := documento.SelectAttrValue("ID", "")
	if id == "" {
		return "", fmt.Errorf("Documento sin atributo ID: %w", domain.ErrSignFailure)
	}
	return "#" + id, nil
}

func canonicalizeXML(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	dec.CharsetReader = latin1Reader
	return c14n.Canonicalize(dec)
}

// latin1Reader permite decodificar los XML ISO-8859-1 del SII.
func latin1Reader(charset string, input io.Reader) (io.Reader, error) {
	if strings.EqualFold(charset, "ISO-8859-1") || strings.EqualFold(charset, "ISO8859-1") {
		return transform.NewReader(input, charmap.ISO8859_1.NewDecoder()), nil
	}
	return input, nil
}

func buildSignedInfo(referenceURI, docDigestB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<ds:SignedInfo xmlns:ds="` + NamespaceDS + `">`)
	sb.WriteString(`<ds:CanonicalizationMethod Algorithm="` + AlgC14N + `"/>`)
	sb.WriteString(`<ds:SignatureMethod Algorithm="` + AlgRSASHA1 + `"/>`)
	sb.WriteString(`<ds:Reference URI="` + referenceURI + `">`)
	sb.WriteString(`<ds:Transforms><ds:Transform Algorithm="` + TransformEnveloped + `"/>`)
	sb.WriteString(`<ds:Transform Algorithm="` + AlgC14N + `"/></ds:Transforms>`)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + AlgSHA1 + `"/>`)
	sb.WriteString(`<ds:DigestValue>` + docDigestB64 + `</ds:DigestValue>`)
	sb.WriteString(`</ds:Reference>`)
	sb.WriteString(`</ds:SignedInfo>`)
	return sb.String()
}

func buildSignature(signedInfoXML, signatureValueB64, certB64 string, pub rsa.PublicKey) string {
	modulusB64 := base64.StdEncoding.EncodeToString(pub.N.Bytes())
	exponentB64 := base64.StdEncoding.EncodeToString(bigEndianExponent(pub.E))

	var sb strings.Builder
	sb.WriteString(`<ds:Signature xmlns:ds="` + NamespaceDS + `">`)
	sb.WriteString(signedInfoXML)
	sb.WriteString(`<ds:SignatureValue>` + signatureValueB64 + `</ds:SignatureValue>`)
	sb.WriteString(`<ds:KeyInfo>`)
	// El formato SII pide la llave pública explícita además del certificado.
	sb.WriteString(`<ds:KeyValue><ds:RSAKeyValue>`)
	sb.WriteString(`<ds:Modulus>` + modulusB64 + `</ds:Modulus>`)
	sb.WriteString(`<ds:Exponent>` + exponentB64 + `</ds:Exponent>`)
	sb.WriteString(`</ds:RSAKeyValue></ds:KeyValue>`)
	sb.WriteString(`<ds:X509Data><ds:X509Certificate>` + certB64 + `</ds:X509Certificate></ds:X509Data>`)
	sb.WriteString(`</ds:KeyInfo>`)
	sb.WriteString(`</ds:Signature>`)
	return sb.String()
}

func bigEndianExponent(e int) []byte {
	b := []byte{byte(e >> 16), byte(e >> 8), byte(e)}
	for len(b) > 1 && b[0] == 0 {
		b = b[1:]
	}
	return b
}

// injectSignature agrega ds:Signature como último hijo del elemento DTE.
// Devuelve el documento re-codificado en ISO-8859-1, como declara su procinst.
func injectSignature(xmlBytes []byte, signatureXML string) ([]byte, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = latin1Reader
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("parsear DTE: %v: %w", err, domain.ErrSignFailure)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("DTE sin raíz: %w", domain.ErrSignFailure)
	}
	sigDoc := etree.NewDocument()
	if err := sigDoc.ReadFromString(signatureXML); err != nil {
		return nil, fmt.Errorf("parsear Signature: %v: %w", err, domain.ErrSignFailure)
	}
	root.AddChild(sigDoc.Root().Copy())

	var out bytes.Buffer
	if _, err := doc.WriteTo(&out); err != nil {
		return nil, fmt.Errorf("serializar DTE firmado: %v: %w", err, domain.ErrSignFailure)
	}
	encoded, err := charmap.ISO8859_1.NewEncoder().Bytes(out.Bytes())
	if err != nil {
		return nil, fmt.Errorf("codificar DTE firmado: %v: %w", err, domain.ErrSignFailure)
	}
	return encoded, nil
}

var _ pkgsii.Signer = (*DigitalSignatureService)(nil)

// Parser de archivos CAF (Código de Autorización de Folios) emitidos por el SII.
// El CAF llega como XML <AUTORIZACION> en ISO-8859-1 y contiene el rango
// autorizado, la identidad del emisor y la llave privada RSASK con la que se
// firma el TED de cada documento. El payload nunca se sintetiza localmente.

package sii

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// CAFData es el contenido relevante de una <AUTORIZACION> del SII.
type CAFData struct {
	EmitterRUT  string          // <RE>
	RazonSocial string          // <RS>
	DTEType     int             // <TD>
	RangeFrom   int64           // <RNG><D>
	RangeTo     int64           // <RNG><H>
	IssuedDate  string          // <FA>, YYYY-MM-DD
	PrivateKey  *rsa.PrivateKey // <RSASK>, firma el TED
	CAFElement  string          // el elemento <CAF> completo, se incrusta tal cual en el TED
}

type cafXML struct {
	XMLName xml.Name `xml:"AUTORIZACION"`
	CAF     struct {
		DA struct {
			RE  string `xml:"RE"`
			RS  string `xml:"RS"`
			TD  int    `xml:"TD"`
			RNG struct {
				D int64 `xml:"D"`
				H int64 `xml:"H"`
			} `xml:"RNG"`
			FA string `xml:"FA"`
		} `xml:"DA"`
	} `xml:"CAF"`
	RSASK string `xml:"RSASK"`
}

// ParseCAF interpreta el XML de un CAF. Acepta ISO-8859-1 (el encoding que usa
// el SII) y UTF-8.
func ParseCAF(raw []byte) (*CAFData, error) {
	dec := xml.NewDecoder(strings.NewReader(string(raw)))
	dec.CharsetReader = latin1Reader

	var parsed cafXML
	if err := dec.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("sii: decodificar CAF: %w", err)
	}
	da := parsed.CAF.DA
	if da.RE == "" || da.TD == 0 {
		return nil, fmt.Errorf("sii: CAF sin emisor o tipo de documento")
	}
	if da.RNG.D <= 0 || da.RNG.H < da.RNG.D {
		return nil, fmt.Errorf("sii: rango de folios inválido [%d, %d]", da.RNG.D, da.RNG.H)
	}

	key, err := parseRSASK(parsed.RSASK)
	if err != nil {
		return nil, err
	}

	cafElem, err := extractCAFElement(raw)
	if err != nil {
		return nil, err
	}

	return &CAFData{
		EmitterRUT:  strings.TrimSpace(da.RE),
		RazonSocial: strings.TrimSpace(da.RS),
		DTEType:     da.TD,
		RangeFrom:   da.RNG.D,
		RangeTo:     da.RNG.H,
		IssuedDate:  strings.TrimSpace(da.FA),
		PrivateKey:  key,
		CAFElement:  cafElem,
	}, nil
}

// latin1Reader permite decodificar los XML ISO-8859-1 del SII.
func latin1Reader(charset string, input io.Reader) (io.Reader, error) {
	if strings.EqualFold(charset, "ISO-8859-1") || strings.EqualFold(charset, "ISO8859-1") {
		return transform.NewReader(input, charmap.ISO8859_1.NewDecoder()), nil
	}
	return input, nil
}

// parseRSASK decodifica la llave privada PEM del CAF (PKCS#1 o PKCS#8).
func parseRSASK(block string) (*rsa.PrivateKey, error) {
	block = strings.TrimSpace(block)
	if block == "" {
		return nil, fmt.Errorf("sii: CAF sin RSASK")
	}
	p, _ := pem.Decode([]byte(block))
	if p == nil {
		return nil, fmt.Errorf("sii: RSASK no es PEM válido")
	}
	if key, err := x509.ParsePKCS1PrivateKey(p.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(p.Bytes)
	if err != nil {
		return nil, fmt.Errorf("sii: parsear RSASK: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("sii: RSASK no es una llave RSA")
	}
	return key, nil
}

// extractCAFElement devuelve el elemento <CAF> serializado tal como vino en la
// autorización. El TED debe incluirlo byte a byte: su firma FRMA la hizo el
// SII y cualquier re-serialización con cambios la invalidaría.
func extractCAFElement(raw []byte) (string, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = latin1Reader
	if err := doc.ReadFromBytes(raw); err != nil {
		return "", fmt.Errorf("sii: parsear autorización: %w", err)
	}
	caf := doc.Root().SelectElement("CAF")
	if caf == nil {
		return "", fmt.Errorf("sii: autorización sin elemento CAF")
	}
	frag := etree.NewDocument()
	frag.SetRoot(caf.Copy())
	out, err := frag.WriteToString()
	if err != nil {
		return "", fmt.Errorf("sii: serializar CAF: %w", err)
	}
	return strings.TrimSpace(out), nil
}

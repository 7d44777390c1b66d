// Construcción del TED (Timbre Electrónico de Documento).
// El TED es el bloque <DD> con los datos mínimos del documento más el CAF
// embebido, firmado con la llave privada RSASK del propio CAF (SHA1withRSA).
// Es lo que viaja en el código de barras PDF417 de la representación impresa.

package sii

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/beevik/etree"
	"golang.org/x/text/encoding/charmap"

	"github.com/tu-usuario/retail-dte/internal/domain/entity"
)

// RUT genérico que exige el SII cuando la boleta no identifica receptor.
const rutReceptorAnonimo = "66666666-6"

// TEDBuilder arma y firma el timbre electrónico de un documento.
type TEDBuilder struct{}

// NewTEDBuilder crea el builder.
func NewTEDBuilder() *TEDBuilder {
	return &TEDBuilder{}
}

// Build genera el elemento <TED> firmado para el documento dado.
// caf debe ser el CAF del que salió el folio del documento.
func (b *TEDBuilder) Build(doc *entity.Document, details []*entity.DocumentDetail, caf *CAFData) (*etree.Element, error) {
	if doc == nil || caf == nil {
		return nil, fmt.Errorf("sii: documento o CAF nulo para el TED")
	}
	if doc.Folio < caf.RangeFrom || doc.Folio > caf.RangeTo {
		return nil, fmt.Errorf("sii: folio %d fuera del rango del CAF [%d, %d]",
			doc.Folio, caf.RangeFrom, caf.RangeTo)
	}

	receptor := doc.ReceiverRUT
	nombreReceptor := doc.ReceiverName
	if receptor == "" {
		receptor = rutReceptorAnonimo
		nombreReceptor = "SIN RECEPTOR"
	}
	primerItem := ""
	if len(details) > 0 {
		primerItem = details[0].Description
	}

	// DD: los campos van en este orden exacto; la firma cubre el elemento
	// serializado sin espacios entre tags.
	dd := buildDD(ddFields{
		emisor:    doc.EmitterRUT,
		tipo:      doc.DTEType,
		folio:     doc.Folio,
		fecha:     doc.IssuedAt.Format("2006-01-02"),
		receptor:  receptor,
		nombreRec: nombreReceptor,
		monto:     doc.TotalAmount.StringFixed(0),
		item1:     primerItem,
		caf:       caf.CAFElement,
		timestamp: time.Now().Format("2006-01-02T15:04:05"),
	})

	firma, err := signDD(dd, caf.PrivateKey)
	if err != nil {
		return nil, err
	}

	tedXML := `<TED version="1.0">` + dd +
		`<FRMT algoritmo="SHA1withRSA">` + firma + `</FRMT></TED>`

	frag := etree.NewDocument()
	if err := frag.ReadFromString(tedXML); err != nil {
		return nil, fmt.Errorf("sii: armar TED: %w", err)
	}
	return frag.Root().Copy(), nil
}

type ddFields struct {
	emisor    string
	tipo      int
	folio     int64
	fecha     string
	receptor  string
	nombreRec string
	monto     string
	item1     string
	caf       string
	timestamp string
}

func buildDD(f ddFields) string {
	var sb strings.Builder
	sb.WriteString(`<DD>`)
	sb.WriteString(fmt.Sprintf(`<RE>%s</RE>`, escapeText(f.emisor)))
	sb.WriteString(fmt.Sprintf(`<TD>%d</TD>`, f.tipo))
	sb.WriteString(fmt.Sprintf(`<F>%d</F>`, f.folio))
	sb.WriteString(fmt.Sprintf(`<FE>%s</FE>`, f.fecha))
	sb.WriteString(fmt.Sprintf(`<RR>%s</RR>`, escapeText(f.receptor)))
	sb.WriteString(fmt.Sprintf(`<RSR>%s</RSR>`, escapeText(truncate(f.nombreRec, 40))))
	sb.WriteString(fmt.Sprintf(`<MNT>%s</MNT>`, f.monto))
	sb.WriteString(fmt.Sprintf(`<IT1>%s</IT1>`, escapeText(truncate(f.item1, 40))))
	sb.WriteString(f.caf)
	sb.WriteString(fmt.Sprintf(`<TSTED>%s</TSTED>`, f.timestamp))
	sb.WriteString(`</DD>`)
	return sb.String()
}

// signDD firma el DD serializado con SHA1withRSA, como exige el formato TED.
// La firma cubre los bytes ISO-8859-1 del DD, que son los que el receptor lee
// en el documento final.
func signDD(dd string, key *rsa.PrivateKey) (string, error) {
	if key == nil {
		return "", fmt.Errorf("sii: CAF sin llave privada para firmar el TED")
	}
	encoded, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(dd))
	if err != nil {
		return "", fmt.Errorf("sii: codificar DD a ISO-8859-1: %w", err)
	}
	digest := sha1.Sum(encoded)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA1, digest[:])
	if err != nil {
		return "", fmt.Errorf("sii: firmar DD del TED: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

func escapeText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// truncate corta por runas: un corte por bytes podría partir un carácter
// multibyte y dejar una secuencia UTF-8 inválida que no codifica a ISO-8859-1.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

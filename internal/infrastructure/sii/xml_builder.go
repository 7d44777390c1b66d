// Construcción del XML de un DTE según el formato del SII (versión 1.0).
// El documento se arma completo, con TED incluido, y queda listo para que el
// firmador agregue el nodo ds:Signature al final del elemento DTE.

package sii

import (
	"bytes"
	"fmt"
	"time"

	"github.com/beevik/etree"
	"golang.org/x/text/encoding/charmap"

	"github.com/tu-usuario/retail-dte/internal/domain/entity"
	pkgsii "github.com/tu-usuario/retail-dte/pkg/sii"
)

// NamespaceDTE es el namespace oficial de los DTE del SII.
const NamespaceDTE = "http://www.sii.cl/SiiDte"

// BuildContext agrupa todo lo necesario para armar el XML de un documento.
type BuildContext struct {
	Document *entity.Document
	Details  []*entity.DocumentDetail
	Emitter  *entity.Company
	Receiver *entity.Customer // nil en boletas sin receptor
	CAF      *CAFData
}

// XMLBuilder construye el XML del DTE (sin firma XML-DSig).
type XMLBuilder struct {
	ted *TEDBuilder
}

// NewXMLBuilder crea el builder.
func NewXMLBuilder() *XMLBuilder {
	return &XMLBuilder{ted: NewTEDBuilder()}
}

// DocumentElementID devuelve el ID del elemento Documento, usado también como
// Reference URI por el firmador.
func DocumentElementID(doc *entity.Document) string {
	return fmt.Sprintf("F%dT%d", doc.Folio, doc.DTEType)
}

// Build genera los bytes del DTE. El TED se firma con la llave del CAF.
func (s *XMLBuilder) Build(ctx *BuildContext) ([]byte, error) {
	if ctx == nil || ctx.Document == nil || ctx.Emitter == nil || ctx.CAF == nil {
		return nil, fmt.Errorf("sii: faltan documento, emisor o CAF en el contexto")
	}
	if len(ctx.Details) == 0 {
		return nil, fmt.Errorf("sii: documento sin líneas de detalle")
	}
	doc := ctx.Document

	out := etree.NewDocument()
	out.CreateProcInst("xml", `version="1.0" encoding="ISO-8859-1"`)

	dte := out.CreateElement("DTE")
	dte.CreateAttr("version", "1.0")
	dte.CreateAttr("xmlns", NamespaceDTE)

	documento := dte.CreateElement("Documento")
	documento.CreateAttr("ID", DocumentElementID(doc))

	// ── Encabezado ──
	enc := documento.CreateElement("Encabezado")

	idDoc := enc.CreateElement("IdDoc")
	idDoc.CreateElement("TipoDTE").SetText(fmt.Sprintf("%d", doc.DTEType))
	idDoc.CreateElement("Folio").SetText(fmt.Sprintf("%d", doc.Folio))
	idDoc.CreateElement("FchEmis").SetText(doc.IssuedAt.Format("2006-01-02"))

	emisor := enc.CreateElement("Emisor")
	emisor.CreateElement("RUTEmisor").SetText(ctx.Emitter.RUT)
	emisor.CreateElement("RznSoc").SetText(ctx.Emitter.RazonSocial)
	emisor.CreateElement("GiroEmis").SetText(ctx.Emitter.Giro)
	emisor.CreateElement("DirOrigen").SetText(ctx.Emitter.Direccion)
	emisor.CreateElement("CmnaOrigen").SetText(ctx.Emitter.Comuna)

	if ctx.Receiver != nil {
		receptor := enc.CreateElement("Receptor")
		receptor.CreateElement("RUTRecep").SetText(ctx.Receiver.RUT)
		receptor.CreateElement("RznSocRecep").SetText(ctx.Receiver.RazonSocial)
		if ctx.Receiver.Giro != "" {
			receptor.CreateElement("GiroRecep").SetText(ctx.Receiver.Giro)
		}
		if ctx.Receiver.Direccion != "" {
			receptor.CreateElement("DirRecep").SetText(ctx.Receiver.Direccion)
			receptor.CreateElement("CmnaRecep").SetText(ctx.Receiver.Comuna)
		}
	}

	totales := enc.CreateElement("Totales")
	if !pkgsii.IsExemptType(doc.DTEType) {
		totales.CreateElement("MntNeto").SetText(doc.NetAmount.StringFixed(0))
		if !doc.ExemptAmount.IsZero() {
			totales.CreateElement("MntExe").SetText(doc.ExemptAmount.StringFixed(0))
		}
		totales.CreateElement("TasaIVA").SetText(fmt.Sprintf("%d", pkgsii.IVARatePercent))
		totales.CreateElement("IVA").SetText(doc.TaxAmount.StringFixed(0))
	} else {
		totales.CreateElement("MntExe").SetText(doc.ExemptAmount.StringFixed(0))
	}
	totales.CreateElement("MntTotal").SetText(doc.TotalAmount.StringFixed(0))

	// ── Detalle: una entrada por línea, preservando la secuencia de la orden ──
	for _, d := range ctx.Details {
		det := documento.CreateElement("Detalle")
		det.CreateElement("NroLinDet").SetText(fmt.Sprintf("%d", d.LineNumber))
		if d.Exempt {
			det.CreateElement("IndExe").SetText("1")
		}
		det.CreateElement("NmbItem").SetText(truncate(d.Description, 80))
		det.CreateElement("QtyItem").SetText(d.Quantity.String())
		det.CreateElement("PrcItem").SetText(d.UnitPrice.StringFixed(0))
		det.CreateElement("MontoItem").SetText(d.LineTotal.StringFixed(0))
	}

	// ── TED firmado con la llave del CAF ──
	ted, err := s.ted.Build(doc, ctx.Details, ctx.CAF)
	if err != nil {
		return nil, err
	}
	documento.AddChild(ted)

	documento.CreateElement("TmstFirma").SetText(time.Now().Format("2006-01-02T15:04:05"))

	var buf bytes.Buffer
	if _, err := out.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("sii: serializar DTE: %w", err)
	}
	// Los bytes que viajan al SII van en ISO-8859-1, como declara el procinst.
	encoded, err := charmap.ISO8859_1.NewEncoder().Bytes(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("sii: codificar DTE a ISO-8859-1: %w", err)
	}
	return encoded, nil
}

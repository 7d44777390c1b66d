// Package pdf implementa la representación impresa de un DTE del SII.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  EMISOR: Razón Social + RUT   │  Recuadro: TIPO + FOLIO      │
//	│  Giro / Dirección             │  Fecha de emisión            │
//	│  ─────────────────────────────────────────────────────────  │
//	│  RECEPTOR (si el documento lo identifica)                    │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Cant | Detalle | P.Unit | Exento | Total línea       │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTALES: Neto / Exento / IVA 19% / TOTAL                    │
//	│  ─────────────────────────────────────────────────────────  │
//	│  QR de verificación + Resolución SII + leyenda               │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/tu-usuario/retail-dte/internal/domain/entity"
	pkgsii "github.com/tu-usuario/retail-dte/pkg/sii"
)

// ── Paleta ────────────────────────────────────────────────────────────────────

var (
	colorSIIRed = &props.Color{Red: 180, Green: 20, Blue: 20}
	colorGray   = &props.Color{Red: 100, Green: 100, Blue: 100}
)

// ── Generator ─────────────────────────────────────────────────────────────────

// DTEPDFGenerator genera la representación impresa usando Maroto v2.
type DTEPDFGenerator struct{}

// NewDTEPDFGenerator construye el generador.
func NewDTEPDFGenerator() *DTEPDFGenerator { return &DTEPDFGenerator{} }

// GenerateDTEPDF genera el PDF del documento y devuelve sus bytes.
func (g *DTEPDFGenerator) GenerateDTEPDF(
	_ context.Context,
	doc *entity.Document,
	details []*entity.DocumentDetail,
	emitter *entity.Company,
) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle(dteTypeName(doc.DTEType), true).
		WithAuthor(emitter.RazonSocial, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(doc, emitter))
	m.AddRows(line.NewRow(1, props.Line{Color: colorSIIRed, Thickness: 0.5}))
	if doc.ReceiverRUT != "" {
		m.AddRows(receptorRow(doc))
	}
	m.AddRows(line.NewRow(1, props.Line{Color: colorSIIRed, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	for _, r := range tableDetailRows(details) {
		m.AddRows(r)
	}

	m.AddRows(line.NewRow(1, props.Line{Color: colorSIIRed, Thickness: 0.3}))
	m.AddRows(totalsRow(doc))

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	for _, r := range siiFooterRows(doc, emitter) {
		m.AddRows(r)
	}

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return out.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

// headerRow: identidad del emisor a la izquierda; el recuadro rojo
// reglamentario con RUT, tipo y folio a la derecha.
func headerRow(doc *entity.Document, emitter *entity.Company) core.Row {
	return row.New(22).Add(
		col.New(7).Add(
			text.New(emitter.RazonSocial, props.Text{
				Style: fontstyle.Bold, Size: 12, Top: 1,
			}),
			text.New(emitter.Giro, props.Text{Size: 8, Top: 8, Color: colorGray}),
			text.New(fmt.Sprintf("%s, %s", emitter.Direccion, emitter.Comuna), props.Text{
				Size: 8, Top: 13, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New("R.U.T.: "+emitter.RUT, props.Text{
				Style: fontstyle.Bold, Size: 10, Align: align.Center,
				Color: colorSIIRed, Top: 1,
			}),
			text.New(dteTypeName(doc.DTEType), props.Text{
				Style: fontstyle.Bold, Size: 9, Align: align.Center,
				Color: colorSIIRed, Top: 7,
			}),
			text.New(fmt.Sprintf("N° %d", doc.Folio), props.Text{
				Style: fontstyle.Bold, Size: 11, Align: align.Center,
				Color: colorSIIRed, Top: 12,
			}),
			text.New("Fecha: "+doc.IssuedAt.Format("02/01/2006"), props.Text{
				Size: 8, Align: align.Center, Top: 18, Color: colorGray,
			}),
		),
	)
}

// receptorRow: identidad del receptor cuando el documento lo exige.
func receptorRow(doc *entity.Document) core.Row {
	return row.New(12).Add(
		col.New(12).Add(
			text.New("SEÑOR(ES)", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorSIIRed, Top: 1,
			}),
			text.New(fmt.Sprintf("%s   |   R.U.T.: %s", doc.ReceiverName, doc.ReceiverRUT),
				props.Text{Size: 9, Top: 7}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Cant.", 1, align.Center),
		h("Detalle", 5, align.Left),
		h("P. Unitario", 2, align.Right),
		h("Exento", 1, align.Center),
		h("Total", 3, align.Right),
	)
}

func tableDetailRows(details []*entity.DocumentDetail) []core.Row {
	result := make([]core.Row, 0, len(details))
	for _, d := range details {
		exento := ""
		if d.Exempt {
			exento = "E"
		}
		result = append(result, row.New(7).Add(
			col.New(1).Add(text.New(
				d.Quantity.StringFixed(0),
				props.Text{Size: 8, Align: align.Center, Top: 1},
			)),
			col.New(5).Add(text.New(
				d.Description,
				props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1},
			)),
			col.New(2).Add(text.New(
				"$"+formatMoney(d.UnitPrice.StringFixed(0)),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
			col.New(1).Add(text.New(
				exento,
				props.Text{Size: 8, Align: align.Center, Top: 1},
			)),
			col.New(3).Add(text.New(
				"$"+formatMoney(d.LineTotal.StringFixed(0)),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
		))
	}
	return result
}

// totalsRow: bloque de totales alineado a la derecha. Los documentos exentos
// omiten la línea de IVA.
func totalsRow(doc *entity.Document) core.Row {
	label := func(s string) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2,
		})
	}
	value := func(s string) core.Component {
		return text.New(s, props.Text{Size: 9, Align: align.Right, Right: 1})
	}

	labels := []core.Component{}
	values := []core.Component{}
	if !pkgsii.IsExemptType(doc.DTEType) {
		labels = append(labels, label("Neto:"), label(fmt.Sprintf("IVA (%d%%):", pkgsii.IVARatePercent)))
		values = append(values,
			value("$"+formatMoney(doc.NetAmount.StringFixed(0))),
			value("$"+formatMoney(doc.TaxAmount.StringFixed(0))),
		)
	}
	if !doc.ExemptAmount.IsZero() {
		labels = append(labels, label("Exento:"))
		values = append(values, value("$"+formatMoney(doc.ExemptAmount.StringFixed(0))))
	}
	labels = append(labels, text.New("TOTAL:", props.Text{
		Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorSIIRed, Right: 2,
	}))
	values = append(values, text.New("$"+formatMoney(doc.TotalAmount.StringFixed(0)), props.Text{
		Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorSIIRed, Right: 1,
	}))

	return row.New(26).Add(
		col.New(3),
		col.New(3).Add(labels...),
		col.New(3).Add(values...),
		col.New(3),
	)
}

// siiFooterRows: QR de verificación, resolución y leyenda legal.
func siiFooterRows(doc *entity.Document, emitter *entity.Company) []core.Row {
	qrData := fmt.Sprintf("%s;%d;%d;%s;%s",
		emitter.RUT, doc.DTEType, doc.Folio,
		doc.IssuedAt.Format("2006-01-02"), doc.TotalAmount.StringFixed(0))

	rows := []core.Row{
		row.New(40).Add(
			col.New(4).Add(code.NewQr(qrData, props.Rect{
				Percent: 90,
				Center:  true,
			})),
			col.New(8).Add(
				text.New("Timbre Electrónico SII", props.Text{
					Style: fontstyle.Bold, Size: 9, Top: 4, Left: 3, Color: colorSIIRed,
				}),
				text.New(fmt.Sprintf("Res. %d de %s — Verifique documento: www.sii.cl",
					emitter.ResolucionNum, emitter.ResolucionFecha.Format("02/01/2006")),
					props.Text{Size: 8, Top: 12, Left: 3, Color: colorGray}),
				text.New("Documento tributario electrónico emitido según formato del SII.",
					props.Text{Size: 7, Top: 18, Left: 3, Color: colorGray}),
			),
		),
	}
	return rows
}

// ── helpers ───────────────────────────────────────────────────────────────────

func dteTypeName(dteType int) string {
	switch dteType {
	case pkgsii.DTEFactura:
		return "FACTURA ELECTRÓNICA"
	case pkgsii.DTEFacturaExenta:
		return "FACTURA NO AFECTA O EXENTA ELECTRÓNICA"
	case pkgsii.DTEBoleta:
		return "BOLETA ELECTRÓNICA"
	case pkgsii.DTEBoletaExenta:
		return "BOLETA NO AFECTA O EXENTA ELECTRÓNICA"
	case pkgsii.DTEGuiaDespacho:
		return "GUÍA DE DESPACHO ELECTRÓNICA"
	case pkgsii.DTENotaDebito:
		return "NOTA DE DÉBITO ELECTRÓNICA"
	case pkgsii.DTENotaCredito:
		return "NOTA DE CRÉDITO ELECTRÓNICA"
	}
	return fmt.Sprintf("DTE TIPO %d", dteType)
}

// formatMoney inserta puntos de miles en un string numérico sin decimales.
// Ej: "25000" → "25.000", "1000000" → "1.000.000"
func formatMoney(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	buf := make([]byte, 0, n+n/3)
	for i, c := range []byte(s) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, '.')
		}
		buf = append(buf, c)
	}
	return string(buf)
}

package sii

import (
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tu-usuario/retail-dte/internal/domain/entity"
)

func buildFixture(t *testing.T, dteType int) *BuildContext {
	t.Helper()
	raw, _ := fixtureCAF(t, "76543210-3", dteType, 1, 100)
	caf, err := ParseCAF([]byte(raw))
	require.NoError(t, err)

	exempt := dteType == 34 || dteType == 41
	doc := &entity.Document{
		EmitterRUT:   "76543210-3",
		DTEType:      dteType,
		Folio:        15,
		IssuedAt:     time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		NetAmount:    decimal.NewFromInt(2000),
		ExemptAmount: decimal.Zero,
		TaxAmount:    decimal.NewFromInt(380),
		TotalAmount:  decimal.NewFromInt(2380),
	}
	if exempt {
		doc.NetAmount = decimal.Zero
		doc.TaxAmount = decimal.Zero
		doc.ExemptAmount = decimal.NewFromInt(2380)
	}
	return &BuildContext{
		Document: doc,
		Details: []*entity.DocumentDetail{
			{LineNumber: 1, Description: "Pan amasado", Quantity: decimal.NewFromInt(4),
				UnitPrice: decimal.NewFromInt(250), Exempt: exempt, LineTotal: decimal.NewFromInt(1000)},
			{LineNumber: 2, Description: "Mermelada frutilla", Quantity: decimal.NewFromInt(1),
				UnitPrice: decimal.NewFromInt(1380), Exempt: exempt, LineTotal: decimal.NewFromInt(1380)},
		},
		Emitter: &entity.Company{
			RUT:         "76543210-3",
			RazonSocial: "COMERCIAL DE PRUEBA LTDA",
			Giro:        "Venta al por menor",
			Direccion:   "Av. Providencia 1234",
			Comuna:      "Providencia",
		},
		CAF: caf,
	}
}

func parseDTE(t *testing.T, raw []byte) *etree.Document {
	t.Helper()
	out := etree.NewDocument()
	out.ReadSettings.CharsetReader = latin1Reader
	require.NoError(t, out.ReadFromBytes(raw))
	return out
}

func TestXMLBuilder_Build(t *testing.T) {
	ctx := buildFixture(t, 39)
	raw, err := NewXMLBuilder().Build(ctx)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(raw), `<?xml version="1.0" encoding="ISO-8859-1"?>`),
		"el SII exige ISO-8859-1 en la declaración")

	out := parseDTE(t, raw)
	dte := out.Root()
	require.Equal(t, "DTE", dte.Tag)
	assert.Equal(t, "1.0", dte.SelectAttrValue("version", ""))
	assert.Equal(t, NamespaceDTE, dte.SelectAttrValue("xmlns", ""))

	documento := dte.SelectElement("Documento")
	require.NotNil(t, documento)
	assert.Equal(t, "F15T39", documento.SelectAttrValue("ID", ""))

	idDoc := documento.SelectElement("Encabezado").SelectElement("IdDoc")
	assert.Equal(t, "39", idDoc.SelectElement("TipoDTE").Text())
	assert.Equal(t, "15", idDoc.SelectElement("Folio").Text())
	assert.Equal(t, "2026-08-20", idDoc.SelectElement("FchEmis").Text())

	emisor := documento.SelectElement("Encabezado").SelectElement("Emisor")
	assert.Equal(t, "76543210-3", emisor.SelectElement("RUTEmisor").Text())
	assert.Equal(t, "COMERCIAL DE PRUEBA LTDA", emisor.SelectElement("RznSoc").Text())

	// Boleta sin receptor identificado: el encabezado no lleva Receptor.
	assert.Nil(t, documento.SelectElement("Encabezado").SelectElement("Receptor"))

	totales := documento.SelectElement("Encabezado").SelectElement("Totales")
	assert.Equal(t, "2000", totales.SelectElement("MntNeto").Text())
	assert.Equal(t, "19", totales.SelectElement("TasaIVA").Text())
	assert.Equal(t, "380", totales.SelectElement("IVA").Text())
	assert.Equal(t, "2380", totales.SelectElement("MntTotal").Text())
	assert.Nil(t, totales.SelectElement("MntExe"), "sin monto exento no se emite MntExe")

	detalles := documento.SelectElements("Detalle")
	require.Len(t, detalles, 2)
	assert.Equal(t, "1", detalles[0].SelectElement("NroLinDet").Text())
	assert.Equal(t, "Pan amasado", detalles[0].SelectElement("NmbItem").Text())
	assert.Equal(t, "4", detalles[0].SelectElement("QtyItem").Text())
	assert.Equal(t, "250", detalles[0].SelectElement("PrcItem").Text())
	assert.Equal(t, "1000", detalles[0].SelectElement("MontoItem").Text())
	assert.Equal(t, "2", detalles[1].SelectElement("NroLinDet").Text())

	require.NotNil(t, documento.SelectElement("TED"), "el timbre va dentro del Documento")
	assert.NotNil(t, documento.SelectElement("TmstFirma"))
}

func TestXMLBuilder_Build_ConReceptor(t *testing.T) {
	ctx := buildFixture(t, 33)
	ctx.Document.ReceiverRUT = "11111111-1"
	ctx.Document.ReceiverName = "IMPORTADORA EJEMPLO SPA"
	ctx.Receiver = &entity.Customer{
		RUT:         "11111111-1",
		RazonSocial: "IMPORTADORA EJEMPLO SPA",
		Giro:        "Importación",
		Direccion:   "Moneda 975",
		Comuna:      "Santiago",
	}

	raw, err := NewXMLBuilder().Build(ctx)
	require.NoError(t, err)

	documento := parseDTE(t, raw).Root().SelectElement("Documento")
	assert.Equal(t, "F15T33", documento.SelectAttrValue("ID", ""))

	receptor := documento.SelectElement("Encabezado").SelectElement("Receptor")
	require.NotNil(t, receptor)
	assert.Equal(t, "11111111-1", receptor.SelectElement("RUTRecep").Text())
	assert.Equal(t, "IMPORTADORA EJEMPLO SPA", receptor.SelectElement("RznSocRecep").Text())
	assert.Equal(t, "Importación", receptor.SelectElement("GiroRecep").Text())
	assert.Equal(t, "Moneda 975", receptor.SelectElement("DirRecep").Text())
	assert.Equal(t, "Santiago", receptor.SelectElement("CmnaRecep").Text())
}

func TestXMLBuilder_Build_Exento(t *testing.T) {
	ctx := buildFixture(t, 41)
	raw, err := NewXMLBuilder().Build(ctx)
	require.NoError(t, err)

	totales := parseDTE(t, raw).Root().SelectElement("Documento").
		SelectElement("Encabezado").SelectElement("Totales")
	assert.Nil(t, totales.SelectElement("MntNeto"))
	assert.Nil(t, totales.SelectElement("IVA"))
	assert.Nil(t, totales.SelectElement("TasaIVA"))
	assert.Equal(t, "2380", totales.SelectElement("MntExe").Text())
	assert.Equal(t, "2380", totales.SelectElement("MntTotal").Text())
}

func TestXMLBuilder_Build_LineaExenta(t *testing.T) {
	ctx := buildFixture(t, 33)
	ctx.Details[1].Exempt = true

	raw, err := NewXMLBuilder().Build(ctx)
	require.NoError(t, err)

	detalles := parseDTE(t, raw).Root().SelectElement("Documento").SelectElements("Detalle")
	require.Len(t, detalles, 2)
	assert.Nil(t, detalles[0].SelectElement("IndExe"))
	assert.Equal(t, "1", detalles[1].SelectElement("IndExe").Text())
}

func TestXMLBuilder_Build_DescripcionLargaMultibyte(t *testing.T) {
	ctx := buildFixture(t, 39)
	ctx.Details[0].Description = strings.Repeat("x", 79) + "ñame rallado"

	raw, err := NewXMLBuilder().Build(ctx)
	require.NoError(t, err)

	detalles := parseDTE(t, raw).Root().SelectElement("Documento").SelectElements("Detalle")
	nombre := detalles[0].SelectElement("NmbItem").Text()
	assert.Equal(t, strings.Repeat("x", 79)+"ñ", nombre, "corte a 80 por runas, no por bytes")
}

func TestXMLBuilder_Build_ContextoIncompleto(t *testing.T) {
	b := NewXMLBuilder()

	_, err := b.Build(nil)
	assert.Error(t, err)

	ctx := buildFixture(t, 39)
	ctx.Details = nil
	_, err = b.Build(ctx)
	assert.Error(t, err)

	ctx = buildFixture(t, 39)
	ctx.Emitter = nil
	_, err = b.Build(ctx)
	assert.Error(t, err)
}

package emission

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tu-usuario/retail-dte/internal/domain"
	"github.com/tu-usuario/retail-dte/internal/domain/entity"
	pkgsii "github.com/tu-usuario/retail-dte/pkg/sii"
)

func testEmitter() *entity.Company {
	return &entity.Company{
		RUT:         testEmitterRUT,
		RazonSocial: "COMERCIAL DE PRUEBA LTDA",
		Giro:        "VENTA AL POR MENOR",
		Direccion:   "AVENIDA SIEMPRE VIVA 742",
		Comuna:      "SANTIAGO",
	}
}

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestAssembleDocument_FacturaNeta(t *testing.T) {
	input := AssembleInput{
		OrderID: "orden-001",
		DTEType: pkgsii.DTEFactura,
		Folio:   43,
		CAFID:   "caf-1",
		Emitter: testEmitter(),
		Receiver: &entity.Customer{
			RUT:         "12345678-5",
			RazonSocial: "CLIENTE SPA",
		},
		Lines: []OrderLine{
			{ProductID: "p1", Description: "Producto A", Quantity: d(2), UnitPrice: d(500)},
			{ProductID: "p2", Description: "Producto B", Quantity: d(1), UnitPrice: d(800)},
			{ProductID: "p3", Description: "Producto C", Quantity: d(5), UnitPrice: d(100)},
		},
		IssuedAt: time.Now(),
	}

	doc, details, err := AssembleDocument(input)
	require.NoError(t, err)

	assert.Equal(t, entity.StatusDraft, doc.Status)
	assert.Equal(t, int64(43), doc.Folio)
	assert.Equal(t, "12345678-5", doc.ReceiverRUT)

	// 1000 + 800 + 500 = 2300 neto; IVA 19% = 437; total 2737.
	assert.True(t, doc.NetAmount.Equal(d(2300)), "neto = %s", doc.NetAmount)
	assert.True(t, doc.TaxAmount.Equal(d(437)), "iva = %s", doc.TaxAmount)
	assert.True(t, doc.TotalAmount.Equal(d(2737)), "total = %s", doc.TotalAmount)

	// El detalle preserva la secuencia de la orden, numerado desde 1.
	require.Len(t, details, 3)
	for i, det := range details {
		assert.Equal(t, i+1, det.LineNumber)
		assert.Equal(t, doc.ID, det.DocumentID)
	}
	assert.True(t, details[0].LineTotal.Equal(d(1000)))
}

func TestAssembleDocument_BoletaGrossDown(t *testing.T) {
	doc, _, err := AssembleDocument(AssembleInput{
		OrderID: "orden-002",
		DTEType: pkgsii.DTEBoleta,
		Folio:   1,
		CAFID:   "caf-1",
		Emitter: testEmitter(),
		Lines: []OrderLine{
			{Description: "Producto", Quantity: d(1), UnitPrice: d(1190)},
		},
		IssuedAt: time.Now(),
	})
	require.NoError(t, err)

	// Boleta: el precio trae IVA incluido; neto hacia abajo.
	assert.True(t, doc.NetAmount.Equal(d(1000)), "neto = %s", doc.NetAmount)
	assert.True(t, doc.TaxAmount.Equal(d(190)), "iva = %s", doc.TaxAmount)
	assert.True(t, doc.TotalAmount.Equal(d(1190)))
	assert.Empty(t, doc.ReceiverRUT, "boleta sin receptor identificado")
}

func TestAssembleDocument_TipoExentoFuerzaExencion(t *testing.T) {
	doc, details, err := AssembleDocument(AssembleInput{
		OrderID: "orden-003",
		DTEType: pkgsii.DTEFacturaExenta,
		Folio:   1,
		CAFID:   "caf-1",
		Emitter: testEmitter(),
		Receiver: &entity.Customer{
			RUT:         "12345678-5",
			RazonSocial: "CLIENTE SPA",
		},
		Lines: []OrderLine{
			{Description: "Servicio", Quantity: d(1), UnitPrice: d(5000), Exempt: false},
		},
		IssuedAt: time.Now(),
	})
	require.NoError(t, err)

	assert.True(t, details[0].Exempt)
	assert.True(t, doc.ExemptAmount.Equal(d(5000)))
	assert.True(t, doc.TaxAmount.IsZero())
	assert.True(t, doc.TotalAmount.Equal(d(5000)))
}

func TestAssembleDocument_OrdenInvalida(t *testing.T) {
	base := AssembleInput{
		OrderID:  "orden-004",
		DTEType:  pkgsii.DTEBoleta,
		Folio:    1,
		CAFID:    "caf-1",
		Emitter:  testEmitter(),
		IssuedAt: time.Now(),
	}

	t.Run("sin líneas", func(t *testing.T) {
		in := base
		in.Lines = nil
		_, _, err := AssembleDocument(in)
		assert.ErrorIs(t, err, domain.ErrInvalidOrder)
	})

	t.Run("cantidad cero", func(t *testing.T) {
		in := base
		in.Lines = []OrderLine{{Description: "x", Quantity: d(0), UnitPrice: d(100)}}
		_, _, err := AssembleDocument(in)
		assert.ErrorIs(t, err, domain.ErrInvalidOrder)
	})

	t.Run("precio negativo", func(t *testing.T) {
		in := base
		in.Lines = []OrderLine{{Description: "x", Quantity: d(1), UnitPrice: d(-100)}}
		_, _, err := AssembleDocument(in)
		assert.ErrorIs(t, err, domain.ErrInvalidOrder)
	})

	t.Run("sin emisor", func(t *testing.T) {
		in := base
		in.Emitter = nil
		in.Lines = []OrderLine{{Description: "x", Quantity: d(1), UnitPrice: d(100)}}
		_, _, err := AssembleDocument(in)
		assert.ErrorIs(t, err, domain.ErrInvalidOrder)
	})
}

func TestAssembleDocument_Determinista(t *testing.T) {
	in := AssembleInput{
		OrderID: "orden-005",
		DTEType: pkgsii.DTEBoleta,
		Folio:   7,
		CAFID:   "caf-1",
		Emitter: testEmitter(),
		Lines: []OrderLine{
			{Description: "A", Quantity: d(3), UnitPrice: d(333)},
			{Description: "B", Quantity: d(2), UnitPrice: d(111)},
		},
		IssuedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}

	a, _, err := AssembleDocument(in)
	require.NoError(t, err)
	b, _, err := AssembleDocument(in)
	require.NoError(t, err)

	// Mismos insumos, mismos montos (los IDs sí cambian).
	assert.True(t, a.NetAmount.Equal(b.NetAmount))
	assert.True(t, a.TaxAmount.Equal(b.TaxAmount))
	assert.True(t, a.TotalAmount.Equal(b.TotalAmount))
}

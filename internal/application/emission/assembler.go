package emission

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tu-usuario/retail-dte/internal/domain"
	"github.com/tu-usuario/retail-dte/internal/domain/entity"
	domsii "github.com/tu-usuario/retail-dte/internal/domain/sii"
	pkgsii "github.com/tu-usuario/retail-dte/pkg/sii"
)

// OrderLine línea de venta ya resuelta contra el catálogo (precio y exención
// definitivos).
type OrderLine struct {
	ProductID   string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Exempt      bool
}

// AssembleInput entrada del armado: la orden, el folio ya reservado y las
// identidades. El assembler no toca folios ni persistencia: es una
// transformación pura de sus entradas.
type AssembleInput struct {
	OrderID  string
	DTEType  int
	Folio    int64
	CAFID    string
	Emitter  *entity.Company
	Receiver *entity.Customer // nil en boletas sin receptor
	Lines    []OrderLine
	IssuedAt time.Time
}

// AssembleDocument construye el documento canónico en estado DRAFT.
// Copia las líneas en el orden de entrada (la secuencia es legalmente parte
// del documento), calcula totales y estampa la fecha de emisión.
func AssembleDocument(in AssembleInput) (*entity.Document, []*entity.DocumentDetail, error) {
	if err := validateLines(in.Lines); err != nil {
		return nil, nil, err
	}
	if in.Emitter == nil {
		return nil, nil, fmt.Errorf("sin identidad de emisor: %w", domain.ErrInvalidOrder)
	}

	exemptType := pkgsii.IsExemptType(in.DTEType)
	calcLines := make([]domsii.Line, len(in.Lines))
	for i, l := range in.Lines {
		calcLines[i] = domsii.Line{
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Exempt:    l.Exempt || exemptType,
		}
	}

	// Boletas traen precios con IVA incluido; facturas, precios netos.
	var totals domsii.Totals
	if pkgsii.IsBoletaType(in.DTEType) {
		totals = domsii.ComputeTotalsGrossDown(calcLines, decimal.NewFromInt(pkgsii.IVARatePercent))
	} else {
		totals = domsii.ComputeTotalsNetUp(calcLines, decimal.NewFromInt(pkgsii.IVARatePercent))
	}

	now := in.IssuedAt
	doc := &entity.Document{
		ID:           uuid.New().String(),
		EmitterRUT:   in.Emitter.RUT,
		DTEType:      in.DTEType,
		Folio:        in.Folio,
		CAFID:        in.CAFID,
		OrderID:      in.OrderID,
		IssuedAt:     now,
		NetAmount:    totals.Net,
		ExemptAmount: totals.Exempt,
		TaxAmount:    totals.Tax,
		TotalAmount:  totals.Total,
		Status:       entity.StatusDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.Receiver != nil {
		doc.ReceiverRUT = in.Receiver.RUT
		doc.ReceiverName = in.Receiver.RazonSocial
	}

	details := make([]*entity.DocumentDetail, len(in.Lines))
	for i, l := range in.Lines {
		details[i] = &entity.DocumentDetail{
			ID:          uuid.New().String(),
			DocumentID:  doc.ID,
			LineNumber:  i + 1,
			ProductID:   l.ProductID,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Exempt:      calcLines[i].Exempt,
			LineTotal:   l.Quantity.Mul(l.UnitPrice),
		}
	}
	return doc, details, nil
}

func validateLines(lines []OrderLine) error {
	if len(lines) == 0 {
		return fmt.Errorf("orden sin líneas: %w", domain.ErrInvalidOrder)
	}
	for i, l := range lines {
		if !l.Quantity.GreaterThan(decimal.Zero) {
			return fmt.Errorf("línea %d: cantidad no positiva: %w", i+1, domain.ErrInvalidOrder)
		}
		if l.UnitPrice.LessThan(decimal.Zero) {
			return fmt.Errorf("línea %d: precio negativo: %w", i+1, domain.ErrInvalidOrder)
		}
	}
	return nil
}

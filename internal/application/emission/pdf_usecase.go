package emission

import (
	"context"

	"github.com/tu-usuario/retail-dte/internal/domain/entity"
)

// DTEPDFGenerator puerto de salida hacia el render de la representación
// impresa del documento.
type DTEPDFGenerator interface {
	GenerateDTEPDF(ctx context.Context, doc *entity.Document, details []*entity.DocumentDetail, emitter *entity.Company) ([]byte, error)
}

// PDFUseCase genera la representación impresa de un documento del ledger.
type PDFUseCase struct {
	query   *DocumentQueryUseCase
	gen     DTEPDFGenerator
	emitter *entity.Company
}

// NewPDFUseCase crea el caso de uso.
func NewPDFUseCase(query *DocumentQueryUseCase, gen DTEPDFGenerator, emitter *entity.Company) *PDFUseCase {
	return &PDFUseCase{query: query, gen: gen, emitter: emitter}
}

// Generate busca el documento por su llave legal y renderiza el PDF.
func (u *PDFUseCase) Generate(ctx context.Context, dteType int, folio int64) ([]byte, error) {
	doc, details, err := u.query.GetRaw(ctx, dteType, folio)
	if err != nil {
		return nil, err
	}
	return u.gen.GenerateDTEPDF(ctx, doc, details, u.emitter)
}

package emission

import (
	"context"

	"github.com/tu-usuario/retail-dte/internal/application/dto"
	"github.com/tu-usuario/retail-dte/internal/domain"
	"github.com/tu-usuario/retail-dte/internal/domain/entity"
	"github.com/tu-usuario/retail-dte/internal/domain/repository"
)

// DocumentQueryUseCase lecturas del ledger de documentos emitidos.
type DocumentQueryUseCase struct {
	docRepo    repository.DocumentRepository
	emitterRUT string
}

// NewDocumentQueryUseCase crea el caso de uso.
func NewDocumentQueryUseCase(docRepo repository.DocumentRepository, emitterRUT string) *DocumentQueryUseCase {
	return &DocumentQueryUseCase{docRepo: docRepo, emitterRUT: emitterRUT}
}

// GetByFolio busca un documento por su llave legal (tipo y folio del emisor
// configurado), con su detalle completo.
func (u *DocumentQueryUseCase) GetByFolio(ctx context.Context, dteType int, folio int64) (*dto.DocumentResponse, error) {
	doc, err := u.docRepo.GetByKey(ctx, u.emitterRUT, dteType, folio)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	details, err := u.docRepo.GetDetails(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	return toDocumentResponse(doc, details), nil
}

// GetRaw devuelve las entidades crudas (para el render de PDF).
func (u *DocumentQueryUseCase) GetRaw(ctx context.Context, dteType int, folio int64) (*entity.Document, []*entity.DocumentDetail, error) {
	doc, err := u.docRepo.GetByKey(ctx, u.emitterRUT, dteType, folio)
	if err != nil {
		return nil, nil, err
	}
	if doc == nil {
		return nil, nil, domain.ErrNotFound
	}
	details, err := u.docRepo.GetDetails(ctx, doc.ID)
	if err != nil {
		return nil, nil, err
	}
	return doc, details, nil
}

func toDocumentResponse(doc *entity.Document, details []*entity.DocumentDetail) *dto.DocumentResponse {
	resp := &dto.DocumentResponse{
		EmitDocumentResponse: *toEmitResponse(doc),
		OrderID:              doc.OrderID,
		ReceiverRUT:          doc.ReceiverRUT,
		Details:              make([]dto.DocumentDetailResponse, len(details)),
	}
	for i, d := range details {
		resp.Details[i] = dto.DocumentDetailResponse{
			LineNumber:  d.LineNumber,
			ProductID:   d.ProductID,
			Description: d.Description,
			Quantity:    d.Quantity,
			UnitPrice:   d.UnitPrice,
			Exempt:      d.Exempt,
			LineTotal:   d.LineTotal,
		}
	}
	return resp
}

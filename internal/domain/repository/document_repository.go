package repository

import (
	"context"

	"github.com/tu-usuario/retail-dte/internal/domain/entity"
)

// DocumentRepository define el puerto del ledger de documentos emitidos.
// El ledger es append-mostly: la cabecera se inserta una vez por folio y solo
// mutan estado, artefacto firmado, track id y último error.
type DocumentRepository interface {
	// Create inserta cabecera y detalle. Una segunda inserción para la misma
	// tupla (emisor, tipo, folio) es un error de programación: retorna
	// domain.ErrDuplicate en lugar de sobreescribir.
	Create(ctx context.Context, doc *entity.Document, details []*entity.DocumentDetail) error

	// Update persiste los campos mutables de la cabecera (estado, XML firmado,
	// track id, último error). Nunca toca folio, tipo ni emisor.
	Update(ctx context.Context, doc *entity.Document) error

	GetByID(ctx context.Context, id string) (*entity.Document, error)

	// GetByKey busca por la llave legal del documento.
	GetByKey(ctx context.Context, emitterRUT string, dteType int, folio int64) (*entity.Document, error)

	GetDetails(ctx context.Context, documentID string) ([]*entity.DocumentDetail, error)

	// ListByStatus devuelve hasta limit documentos en el estado dado, más
	// antiguos primero. Lo usa la reconciliación de envíos pendientes.
	ListByStatus(ctx context.Context, status string, limit int) ([]*entity.Document, error)
}

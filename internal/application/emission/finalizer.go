package emission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tu-usuario/retail-dte/internal/domain"
	"github.com/tu-usuario/retail-dte/internal/domain/entity"
	"github.com/tu-usuario/retail-dte/internal/domain/repository"
	infsii "github.com/tu-usuario/retail-dte/internal/infrastructure/sii"
	"github.com/tu-usuario/retail-dte/pkg/logger"
	pkgsii "github.com/tu-usuario/retail-dte/pkg/sii"
)

// Finalizer aplica el estado terminal de un documento en una sola transacción:
// actualización de cabecera, descuento de stock (si corresponde) y entrada de
// auditoría. Lo comparten la emisión y la reconciliación para que ambos
// caminos produzcan exactamente los mismos efectos.
type Finalizer struct {
	tx  TxRunner
	log *logger.Logger
}

// NewFinalizer crea el finalizador.
func NewFinalizer(tx TxRunner, log *logger.Logger) *Finalizer {
	return &Finalizer{tx: tx, log: log.Component("finalizer")}
}

// statusForEstado traduce el estado del SII al estado del ledger.
func statusForEstado(estado string) (string, bool) {
	switch estado {
	case pkgsii.EstadoAceptado:
		return entity.StatusAceptado, true
	case pkgsii.EstadoReparo:
		return entity.StatusReparo, true
	case pkgsii.EstadoRechazado:
		return entity.StatusRechazado, true
	}
	return "", false
}

// Apply lleva el documento al estado terminal que corresponde al resultado del
// SII. En aceptación (con o sin reparos) descuenta stock línea a línea; en
// rechazo deja el folio consumido y la glosa como último error. Siempre
// registra la transición en la bitácora de auditoría.
func (f *Finalizer) Apply(ctx context.Context, doc *entity.Document, result *infsii.SubmitResult) error {
	status, ok := statusForEstado(result.Estado)
	if !ok {
		return fmt.Errorf("estado %q no es terminal: %w", result.Estado, domain.ErrConflict)
	}

	return f.tx.RunTerminal(ctx, func(
		docRepo repository.DocumentRepository,
		stockRepo repository.StockRepository,
		auditRepo repository.AuditRepository,
	) error {
		doc.Status = status
		doc.TrackID = firstNonEmpty(result.TrackID, doc.TrackID)
		if status == entity.StatusRechazado {
			doc.LastError = result.Glosa
		}
		doc.UpdatedAt = time.Now()
		if err := docRepo.Update(ctx, doc); err != nil {
			return fmt.Errorf("actualizar documento %s: %w", doc.ID, err)
		}

		if entity.IsAcceptedStatus(status) {
			details, err := docRepo.GetDetails(ctx, doc.ID)
			if err != nil {
				return fmt.Errorf("leer detalle para descuento de stock: %w", err)
			}
			for _, d := range details {
				if d.ProductID == "" {
					continue // línea libre, sin producto de catálogo
				}
				if err := stockRepo.Decrement(ctx, d.ProductID, d.Quantity); err != nil {
					if errors.Is(err, domain.ErrInsufficientStock) {
						// El documento ya es legalmente válido; el inventario
						// negativo es un problema operacional, no de emisión.
						f.log.Warn().
							Str("document_id", doc.ID).
							Str("product_id", d.ProductID).
							Msg("stock insuficiente al descontar venta aceptada")
						continue
					}
					return fmt.Errorf("descontar stock de %s: %w", d.ProductID, err)
				}
			}
		}

		return auditRepo.Create(ctx, &entity.AuditEntry{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			EmitterRUT: doc.EmitterRUT,
			DTEType:    doc.DTEType,
			Folio:      doc.Folio,
			Outcome:    status,
			Detail:     result.Glosa,
			CreatedAt:  time.Now(),
		})
	})
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// Reconciliación de envíos sin estado terminal. Consulta al SII por TrackID
// y cierra los documentos que ya tienen veredicto. Nunca re-envía un folio.

package emission

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/tu-usuario/retail-dte/internal/application/dto"
	"github.com/tu-usuario/retail-dte/internal/domain/entity"
	"github.com/tu-usuario/retail-dte/internal/domain/repository"
	infsii "github.com/tu-usuario/retail-dte/internal/infrastructure/sii"
	"github.com/tu-usuario/retail-dte/pkg/logger"
)

const (
	// reconcileBatchSize acota cuántos documentos se revisan por pasada y
	// por estado. Lo que no alcance entra en la pasada siguiente.
	reconcileBatchSize = 100

	// reconcileConcurrency consultas simultáneas al WS del SII.
	reconcileConcurrency = 4
)

// ReconcileUseCase resuelve documentos que quedaron sin estado terminal:
// ENVIADO cuyo acuse llegó "en cola", y ENVIO_PENDIENTE por timeout o corte
// de red. Solo puede consultar los que tienen TrackID; un pendiente sin
// TrackID requiere resolución manual y se reporta como tal.
type ReconcileUseCase struct {
	docRepo   repository.DocumentRepository
	submitter infsii.Submitter
	finalizer *Finalizer
	ambiente  string
	log       *logger.Logger
}

// NewReconcileUseCase crea el caso de uso.
func NewReconcileUseCase(
	docRepo repository.DocumentRepository,
	submitter infsii.Submitter,
	finalizer *Finalizer,
	ambiente string,
	log *logger.Logger,
) *ReconcileUseCase {
	return &ReconcileUseCase{
		docRepo:   docRepo,
		submitter: submitter,
		finalizer: finalizer,
		ambiente:  ambiente,
		log:       log.Component("reconcile"),
	}
}

// Execute corre una pasada de reconciliación y devuelve el resumen.
// Los errores por documento se registran y cuentan como pendientes; la pasada
// completa solo falla si no se pudo ni listar el trabajo.
func (u *ReconcileUseCase) Execute(ctx context.Context) (*dto.ReconcileResponse, error) {
	var candidates []*entity.Document
	for _, status := range []string{entity.StatusEnviado, entity.StatusEnvioPendiente} {
		docs, err := u.docRepo.ListByStatus(ctx, status, reconcileBatchSize)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, docs...)
	}

	var resolved, pending atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileConcurrency)
	for _, doc := range candidates {
		doc := doc
		g.Go(func() error {
			if u.reconcileOne(gctx, doc) {
				resolved.Add(1)
			} else {
				pending.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait() // los workers no retornan error; solo acotan concurrencia

	resp := &dto.ReconcileResponse{
		Examined: len(candidates),
		Resolved: int(resolved.Load()),
		Pending:  int(pending.Load()),
	}
	u.log.Info().Int("examined", resp.Examined).Int("resolved", resp.Resolved).
		Int("pending", resp.Pending).Msg("pasada de reconciliación")
	return resp, nil
}

// reconcileOne consulta y cierra un documento. Devuelve true si quedó en
// estado terminal.
func (u *ReconcileUseCase) reconcileOne(ctx context.Context, doc *entity.Document) bool {
	if doc.TrackID == "" {
		// Sin acuse no hay qué consultar. Queda para resolución manual
		// (verificación en el portal del SII por tipo y folio).
		u.log.Warn().Str("document_id", doc.ID).Int64("folio", doc.Folio).
			Msg("pendiente sin track id; requiere resolución manual")
		return false
	}

	result, err := u.submitter.QueryStatus(ctx, doc.TrackID, u.ambiente)
	if err != nil {
		u.log.Warn().Err(err).Str("document_id", doc.ID).Str("track_id", doc.TrackID).
			Msg("consulta de estado falló; se reintenta en la próxima pasada")
		return false
	}
	if _, terminal := statusForEstado(result.Estado); !terminal {
		return false // sigue en cola en el SII
	}

	if err := u.finalizer.Apply(ctx, doc, result); err != nil {
		u.log.Error().Err(err).Str("document_id", doc.ID).
			Msg("no se pudo cerrar el documento reconciliado")
		return false
	}
	u.log.Info().Str("document_id", doc.ID).Int64("folio", doc.Folio).
		Str("status", doc.Status).Msg("documento reconciliado")
	return true
}

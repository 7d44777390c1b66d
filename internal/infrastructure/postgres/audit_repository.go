package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tu-usuario/retail-dte/internal/domain/entity"
	"github.com/tu-usuario/retail-dte/internal/domain/repository"
)

var _ repository.AuditRepository = (*AuditRepo)(nil)

// AuditRepo bitácora de transiciones terminales, append-only (usable con pool o tx).
type AuditRepo struct {
	q Querier
}

// NewAuditRepository construye el adaptador. Pasar pool o tx (Querier).
func NewAuditRepository(q Querier) *AuditRepo {
	return &AuditRepo{q: q}
}

// Create registra una transición terminal.
func (r *AuditRepo) Create(ctx context.Context, entry *entity.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	query := `
		INSERT INTO audit_entries (id, document_id, emitter_rut, dte_type, folio, outcome, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(ctx, query,
		entry.ID, entry.DocumentID, entry.EmitterRUT, entry.DTEType,
		entry.Folio, entry.Outcome, nullIfEmpty(entry.Detail), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert auditoría: %w", err)
	}
	return nil
}

package repository

import (
	"context"

	"github.com/tu-usuario/retail-dte/internal/domain/entity"
)

// AuditRepository puerto de salida hacia la bitácora de auditoría.
type AuditRepository interface {
	Create(ctx context.Context, entry *entity.AuditEntry) error
}

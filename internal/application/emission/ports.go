package emission

import (
	"context"

	"github.com/tu-usuario/retail-dte/internal/domain/repository"
)

// TxRunner ejecuta el cierre terminal de un documento en una transacción:
// actualización de estado, descuento de stock y entrada de auditoría caen o
// persisten juntos.
type TxRunner interface {
	RunTerminal(ctx context.Context, fn func(
		docRepo repository.DocumentRepository,
		stockRepo repository.StockRepository,
		auditRepo repository.AuditRepository,
	) error) error
}

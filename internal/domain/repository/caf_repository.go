package repository

import (
	"context"

	"github.com/tu-usuario/retail-dte/internal/domain/entity"
)

// CAFRepository define el puerto de persistencia para los rangos de folios (CAF).
type CAFRepository interface {
	Create(ctx context.Context, caf *entity.CAF) error
	GetByID(ctx context.Context, id string) (*entity.CAF, error)

	// GetActiveByType devuelve el CAF activo y con folios disponibles más
	// antiguo (por fecha de carga) para el emisor y tipo de DTE dados.
	// Devuelve nil, nil si no existe: el llamador lo traduce a
	// domain.ErrNoFoliosAvailable.
	GetActiveByType(ctx context.Context, emitterRUT string, dteType int) (*entity.CAF, error)

	// TryConsume incrementa el contador de folios consumidos en uno, solo si
	// el valor actual coincide con expectedConsumed y el rango no está agotado.
	// Devuelve false (sin error) cuando otro reservante avanzó el contador
	// primero; el llamador reintenta con una lectura fresca. Esta es la única
	// operación que muta un CAF.
	TryConsume(ctx context.Context, cafID string, expectedConsumed int64) (bool, error)

	// ListByEmitter lista todos los CAF del emisor (activos y agotados).
	ListByEmitter(ctx context.Context, emitterRUT string) ([]*entity.CAF, error)
}

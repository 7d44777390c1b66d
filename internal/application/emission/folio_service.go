package emission

import (
	"context"
	"fmt"

	"github.com/tu-usuario/retail-dte/internal/domain"
	"github.com/tu-usuario/retail-dte/internal/domain/entity"
	"github.com/tu-usuario/retail-dte/internal/domain/repository"
)

// maxReserveAttempts acota el loop optimista de reserva. Con contención real
// de terminales (decenas de cajas) el conflicto se resuelve en 1-2 intentos;
// agotar los reintentos indica un problema operacional, no de negocio.
const maxReserveAttempts = 8

// FolioService administra la reserva de folios sobre los CAF cargados.
// La reserva es la única operación que muta un CAF y se ejecuta como un
// update condicional contra el contador compartido: dos reservas concurrentes
// jamás reciben el mismo folio y ningún folio se salta sin quedar consumido.
type FolioService struct {
	cafRepo repository.CAFRepository
}

// NewFolioService construye el servicio.
func NewFolioService(cafRepo repository.CAFRepository) *FolioService {
	return &FolioService{cafRepo: cafRepo}
}

// Reserve entrega el siguiente folio disponible para el emisor y tipo de DTE.
// Devuelve el folio y el CAF del que salió (con el contador ya avanzado).
//
// Ciclo optimista: leer el CAF activo más antiguo, calcular
// folio = range_from + consumed, intentar el incremento condicional y
// reintentar con una lectura fresca si otro reservante ganó la carrera.
// No se sostiene ningún lock durante los pasos lentos posteriores (armado,
// firma, envío).
func (s *FolioService) Reserve(ctx context.Context, emitterRUT string, dteType int) (int64, *entity.CAF, error) {
	for attempt := 0; attempt < maxReserveAttempts; attempt++ {
		caf, err := s.cafRepo.GetActiveByType(ctx, emitterRUT, dteType)
		if err != nil {
			return 0, nil, fmt.Errorf("leer CAF activo: %w", err)
		}
		if caf == nil {
			return 0, nil, domain.ErrNoFoliosAvailable
		}
		if caf.Exhausted() {
			// El repositorio filtra agotados; si aparece uno es una carrera
			// con la última reserva del rango. Releer.
			continue
		}

		folio := caf.NextFolio()
		ok, err := s.cafRepo.TryConsume(ctx, caf.ID, caf.Consumed)
		if err != nil {
			return 0, nil, fmt.Errorf("consumir folio: %w", err)
		}
		if !ok {
			continue // otro reservante avanzó el contador; reintentar
		}
		caf.Consumed++
		return folio, caf, nil
	}
	return 0, nil, fmt.Errorf("reserva de folio sin progreso tras %d intentos: %w",
		maxReserveAttempts, domain.ErrConflict)
}

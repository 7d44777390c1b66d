package emission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tu-usuario/retail-dte/internal/application/dto"
	"github.com/tu-usuario/retail-dte/internal/domain"
	"github.com/tu-usuario/retail-dte/internal/domain/entity"
	"github.com/tu-usuario/retail-dte/internal/domain/repository"
	infsii "github.com/tu-usuario/retail-dte/internal/infrastructure/sii"
	"github.com/tu-usuario/retail-dte/pkg/logger"
	pkgsii "github.com/tu-usuario/retail-dte/pkg/sii"
)

// CAFUseCase administra la carga y consulta de rangos de folios.
type CAFUseCase struct {
	cafRepo    repository.CAFRepository
	emitterRUT string
	log        *logger.Logger
}

// NewCAFUseCase crea el caso de uso.
func NewCAFUseCase(cafRepo repository.CAFRepository, emitterRUT string, log *logger.Logger) *CAFUseCase {
	return &CAFUseCase{cafRepo: cafRepo, emitterRUT: emitterRUT, log: log.Component("caf")}
}

// Load valida y registra un CAF descargado del SII. El XML crudo se conserva
// byte a byte: la llave RSASK del CAF firma el TED de cada documento del rango.
func (u *CAFUseCase) Load(ctx context.Context, rawXML string) (*dto.CAFResponse, error) {
	data, err := infsii.ParseCAF([]byte(rawXML))
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrInvalidCAF)
	}
	if data.EmitterRUT != u.emitterRUT {
		return nil, fmt.Errorf("el CAF pertenece a %s, no al emisor configurado %s: %w",
			data.EmitterRUT, u.emitterRUT, domain.ErrInvalidCAF)
	}
	if !pkgsii.ValidDTETypes[data.DTEType] {
		return nil, fmt.Errorf("el CAF declara tipo de DTE %d no soportado: %w",
			data.DTEType, domain.ErrInvalidCAF)
	}
	if data.RangeFrom > data.RangeTo {
		return nil, fmt.Errorf("rango de folios invertido [%d, %d]: %w",
			data.RangeFrom, data.RangeTo, domain.ErrInvalidCAF)
	}

	now := time.Now()
	caf := &entity.CAF{
		ID:         uuid.New().String(),
		EmitterRUT: data.EmitterRUT,
		DTEType:    data.DTEType,
		RangeFrom:  data.RangeFrom,
		RangeTo:    data.RangeTo,
		Consumed:   0,
		IsActive:   true,
		RawXML:     rawXML,
		LoadedAt:   now,
		UpdatedAt:  now,
	}
	if err := u.cafRepo.Create(ctx, caf); err != nil {
		return nil, fmt.Errorf("registrar CAF: %w", err)
	}

	u.log.Info().Int("dte_type", caf.DTEType).Int64("range_from", caf.RangeFrom).
		Int64("range_to", caf.RangeTo).Msg("CAF cargado")
	return toCAFResponse(caf), nil
}

// List devuelve todos los CAF del emisor con su consumo actual.
func (u *CAFUseCase) List(ctx context.Context) ([]*dto.CAFResponse, error) {
	cafs, err := u.cafRepo.ListByEmitter(ctx, u.emitterRUT)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.CAFResponse, len(cafs))
	for i, caf := range cafs {
		out[i] = toCAFResponse(caf)
	}
	return out, nil
}

func toCAFResponse(caf *entity.CAF) *dto.CAFResponse {
	return &dto.CAFResponse{
		ID:        caf.ID,
		DTEType:   caf.DTEType,
		RangeFrom: caf.RangeFrom,
		RangeTo:   caf.RangeTo,
		Consumed:  caf.Consumed,
		Remaining: caf.Remaining(),
		IsActive:  caf.IsActive,
		LoadedAt:  caf.LoadedAt.Format(time.RFC3339),
	}
}

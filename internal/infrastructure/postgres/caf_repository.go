package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tu-usuario/retail-dte/internal/domain"
	"github.com/tu-usuario/retail-dte/internal/domain/entity"
	"github.com/tu-usuario/retail-dte/internal/domain/repository"
)

var _ repository.CAFRepository = (*CAFRepo)(nil)

// CAFRepo implementación de CAFRepository sobre PostgreSQL (usable con pool o tx).
type CAFRepo struct {
	q Querier
}

// NewCAFRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCAFRepository(q Querier) *CAFRepo {
	return &CAFRepo{q: q}
}

const cafColumns = `id, emitter_rut, dte_type, range_from, range_to, consumed, is_active, raw_xml, loaded_at, updated_at`

// Create registra un CAF nuevo. El rango de un mismo emisor y tipo no puede
// repetirse (constraint único): un CAF cargado dos veces es ErrDuplicate.
func (r *CAFRepo) Create(ctx context.Context, caf *entity.CAF) error {
	if caf.ID == "" {
		caf.ID = uuid.New().String()
	}
	query := `
		INSERT INTO cafs (` + cafColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(ctx, query,
		caf.ID, caf.EmitterRUT, caf.DTEType, caf.RangeFrom, caf.RangeTo,
		caf.Consumed, caf.IsActive, caf.RawXML, caf.LoadedAt, caf.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("CAF ya cargado: %w", domain.ErrDuplicate)
		}
		return fmt.Errorf("insert caf: %w", err)
	}
	return nil
}

// GetByID obtiene un CAF por su id.
func (r *CAFRepo) GetByID(ctx context.Context, id string) (*entity.CAF, error) {
	query := `SELECT ` + cafColumns + ` FROM cafs WHERE id = $1`
	caf, err := scanCAF(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get caf: %w", err)
	}
	return caf, nil
}

// GetActiveByType devuelve el CAF activo con folios disponibles más antiguo
// para el emisor y tipo. Los rangos se agotan en orden de carga.
func (r *CAFRepo) GetActiveByType(ctx context.Context, emitterRUT string, dteType int) (*entity.CAF, error) {
	query := `
		SELECT ` + cafColumns + `
		FROM cafs
		WHERE emitter_rut = $1 AND dte_type = $2 AND is_active
		  AND consumed < range_to - range_from + 1
		ORDER BY loaded_at ASC
		LIMIT 1`
	caf, err := scanCAF(r.q.QueryRow(ctx, query, emitterRUT, dteType))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get caf activo: %w", err)
	}
	return caf, nil
}

// TryConsume avanza el contador de folios en uno, solo si nadie lo movió desde
// la lectura del llamador. El WHERE condicional es el compare-and-set que hace
// imposible entregar el mismo folio dos veces, sin importar cuántas instancias
// del servicio compartan la base.
func (r *CAFRepo) TryConsume(ctx context.Context, cafID string, expectedConsumed int64) (bool, error) {
	query := `
		UPDATE cafs
		SET consumed = consumed + 1, updated_at = now()
		WHERE id = $1 AND consumed = $2
		  AND consumed < range_to - range_from + 1`
	tag, err := r.q.Exec(ctx, query, cafID, expectedConsumed)
	if err != nil {
		return false, fmt.Errorf("consumir folio: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByEmitter lista todos los CAF del emisor, más antiguos primero.
func (r *CAFRepo) ListByEmitter(ctx context.Context, emitterRUT string) ([]*entity.CAF, error) {
	query := `SELECT ` + cafColumns + ` FROM cafs WHERE emitter_rut = $1 ORDER BY loaded_at ASC`
	rows, err := r.q.Query(ctx, query, emitterRUT)
	if err != nil {
		return nil, fmt.Errorf("listar cafs: %w", err)
	}
	defer rows.Close()

	var out []*entity.CAF
	for rows.Next() {
		caf, err := scanCAF(rows)
		if err != nil {
			return nil, fmt.Errorf("scan caf: %w", err)
		}
		out = append(out, caf)
	}
	return out, rows.Err()
}

func scanCAF(row pgx.Row) (*entity.CAF, error) {
	var caf entity.CAF
	err := row.Scan(
		&caf.ID, &caf.EmitterRUT, &caf.DTEType, &caf.RangeFrom, &caf.RangeTo,
		&caf.Consumed, &caf.IsActive, &caf.RawXML, &caf.LoadedAt, &caf.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &caf, nil
}

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

var _ repository.CustomerRepository = (*CustomerRepo)(nil)

// CustomerRepo persistencia de receptores de DTE (usable con pool o tx).
type CustomerRepo struct {
	q Querier
}

// NewCustomerRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCustomerRepository(q Querier) *CustomerRepo {
	return &CustomerRepo{q: q}
}

// GetByRUT busca un receptor por RUT. Devuelve nil, nil si no existe.
func (r *CustomerRepo) GetByRUT(ctx context.Context, rut string) (*entity.Customer, error) {
	query := `
		SELECT id, rut, razon_social, COALESCE(giro, ''), COALESCE(direccion, ''),
		       COALESCE(comuna, ''), COALESCE(email, ''), created_at, updated_at
		FROM customers WHERE rut = $1`
	var c entity.Customer
	err := r.q.QueryRow(ctx, query, rut).Scan(
		&c.ID, &c.RUT, &c.RazonSocial, &c.Giro, &c.Direccion,
		&c.Comuna, &c.Email, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get receptor: %w", err)
	}
	return &c, nil
}

// Create registra un receptor nuevo.
func (r *CustomerRepo) Create(ctx context.Context, c *entity.Customer) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	query := `
		INSERT INTO customers (id, rut, razon_social, giro, direccion, comuna, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(ctx, query,
		c.ID, c.RUT, c.RazonSocial, nullIfEmpty(c.Giro), nullIfEmpty(c.Direccion),
		nullIfEmpty(c.Comuna), nullIfEmpty(c.Email), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("receptor %s: %w", c.RUT, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert receptor: %w", err)
	}
	return nil
}

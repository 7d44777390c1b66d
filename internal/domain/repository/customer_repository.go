package repository

import (
	"context"

	"github.com/tu-usuario/retail-dte/internal/domain/entity"
)

// CustomerRepository persistencia de receptores de DTE.
type CustomerRepository interface {
	GetByRUT(ctx context.Context, rut string) (*entity.Customer, error)
	Create(ctx context.Context, c *entity.Customer) error
}

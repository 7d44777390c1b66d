package repository

import (
	"context"

	"github.com/tu-usuario/retail-dte/internal/domain/entity"
)

// ProductRepository es el puerto de solo lectura hacia el catálogo de precios.
// El catálogo se mantiene fuera de este subsistema.
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Product, error)
}

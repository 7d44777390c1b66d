package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/tu-usuario/retail-dte/internal/domain/entity"
)

// StockRepository puerto de salida hacia el inventario. El descuento ocurre
// solo tras un estado terminal aceptado, dentro de la misma transacción que
// persiste ese estado.
type StockRepository interface {
	Get(ctx context.Context, productID string) (*entity.Stock, error)

	// Decrement descuenta qty del stock del producto. Retorna
	// domain.ErrInsufficientStock si el resultado sería negativo.
	Decrement(ctx context.Context, productID string, qty decimal.Decimal) error
}

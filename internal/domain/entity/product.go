package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product es la vista de solo lectura del catálogo de precios que consume la
// emisión. El mantenimiento del catálogo vive fuera de este subsistema.
type Product struct {
	ID        string
	SKU       string
	Name      string
	Price     decimal.Decimal // precio unitario neto en pesos enteros
	Exempt    bool            // producto exento de IVA
	UpdatedAt time.Time
}

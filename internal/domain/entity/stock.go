package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stock cantidad disponible de un producto. El descuento ocurre solo cuando
// un documento alcanza un estado aceptado (ACEPTADO o REPARO).
type Stock struct {
	ProductID string
	Quantity  decimal.Decimal
	UpdatedAt time.Time
}

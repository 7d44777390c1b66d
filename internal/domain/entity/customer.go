package entity

import "time"

// Customer representa al receptor de un DTE (obligatorio en facturas,
// opcional en boletas).
type Customer struct {
	ID          string
	RUT         string
	RazonSocial string
	Giro        string
	Direccion   string
	Comuna      string
	Email       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

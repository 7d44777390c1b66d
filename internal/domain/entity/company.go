package entity

import "time"

// Company representa al emisor de los DTE (identidad declarada ante el SII).
type Company struct {
	ID          string
	RUT         string // formato 76543210-3
	RazonSocial string
	Giro        string
	Direccion   string
	Comuna      string
	// Resolución del SII que autoriza a este contribuyente a emitir DTE.
	ResolucionNum   int
	ResolucionFecha time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

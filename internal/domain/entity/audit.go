package entity

import "time"

// AuditEntry registra cada transición terminal de un documento: folio, tipo y
// desenlace. Una entrada por transición, append-only.
type AuditEntry struct {
	ID         string
	DocumentID string
	EmitterRUT string
	DTEType    int
	Folio      int64
	Outcome    string // ACEPTADO, REPARO, RECHAZADO
	Detail     string // glosa del SII o detalle del error
	CreatedAt  time.Time
}

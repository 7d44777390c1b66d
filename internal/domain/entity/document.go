package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados del ciclo de vida de un DTE.
//
//	DRAFT → SIGNED → ENVIADO → {ACEPTADO | REPARO | RECHAZADO}
//
// Un timeout o error de red en el envío deja el documento en ENVIO_PENDIENTE:
// el SII pudo haber recibido el envío aunque el acuse se haya perdido, por lo
// que nunca se re-envía el mismo folio; la reconciliación consulta por TrackID.
const (
	StatusDraft          = "DRAFT"           // folio reservado, documento armado
	StatusSigned         = "SIGNED"          // XML firmado, pendiente de envío
	StatusEnviado        = "ENVIADO"         // entregado al SII, respuesta recibida
	StatusEnvioPendiente = "ENVIO_PENDIENTE" // envío sin acuse (timeout/red); reconciliable
	StatusAceptado       = "ACEPTADO"        // aceptado por el SII
	StatusReparo         = "REPARO"          // aceptado con reparos (observaciones)
	StatusRechazado      = "RECHAZADO"       // rechazado por el SII; el folio queda consumido igual
)

// IsTerminalStatus indica si el estado es definitivo (dispara efectos laterales).
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusAceptado, StatusReparo, StatusRechazado:
		return true
	}
	return false
}

// IsAcceptedStatus indica si el estado terminal descuenta stock.
func IsAcceptedStatus(status string) bool {
	return status == StatusAceptado || status == StatusReparo
}

// Document representa la cabecera de un DTE emitido (o en emisión).
// La tupla (EmitterRUT, DTEType, Folio) es única: es la llave legal del
// documento y la que protege el ledger contra doble persistencia.
// Los documentos nunca se borran; un rechazo queda como registro permanente
// del consumo de su folio.
type Document struct {
	ID           string
	EmitterRUT   string
	DTEType      int
	Folio        int64
	CAFID        string // CAF del que salió el folio
	OrderID      string // venta que originó la emisión
	ReceiverRUT  string // vacío en boletas sin receptor identificado
	ReceiverName string
	IssuedAt     time.Time // fecha de emisión estampada en el DTE
	NetAmount    decimal.Decimal
	ExemptAmount decimal.Decimal
	TaxAmount    decimal.Decimal
	TotalAmount  decimal.Decimal
	Status       string
	XMLSigned    string // XML firmado completo (retención legal, nunca se reescribe)
	TrackID      string // track id devuelto por el SII tras el envío
	LastError    string // detalle del último fallo (firma, envío o rechazo)
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DocumentDetail representa una línea del DTE, en el orden de la orden original.
type DocumentDetail struct {
	ID          string
	DocumentID  string
	LineNumber  int // secuencia 1..N, preserva el orden de entrada
	ProductID   string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal // pesos enteros por unidad
	Exempt      bool
	LineTotal   decimal.Decimal // Quantity * UnitPrice
}

package entity

import "time"

// CAF representa un Código de Autorización de Folios emitido por el SII:
// un rango de folios [RangeFrom, RangeTo] autorizado para un tipo de DTE.
//
// Invariantes:
//   - Consumed <= RangeTo - RangeFrom + 1
//   - RangeFrom, RangeTo y DTEType son inmutables una vez cargado el CAF;
//     Consumed es el único campo que muta, y solo vía la reserva atómica.
//   - RawXML es el payload tal como lo emitió el SII (incluye la llave RSASK
//     con la que se firma el TED); nunca se sintetiza localmente.
type CAF struct {
	ID         string
	EmitterRUT string // RUT del emisor autorizado, formato 76543210-3
	DTEType    int    // tipo de DTE autorizado (33, 39, ...)
	RangeFrom  int64
	RangeTo    int64
	Consumed   int64 // folios ya reservados dentro del rango
	IsActive   bool
	RawXML     string // <AUTORIZACION> completa emitida por el SII
	LoadedAt   time.Time
	UpdatedAt  time.Time
}

// Size devuelve la cantidad total de folios que autoriza el rango.
func (c *CAF) Size() int64 {
	return c.RangeTo - c.RangeFrom + 1
}

// Remaining devuelve los folios aún no reservados.
func (c *CAF) Remaining() int64 {
	return c.Size() - c.Consumed
}

// Exhausted indica si el rango no tiene folios disponibles.
func (c *CAF) Exhausted() bool {
	return c.Consumed >= c.Size()
}

// NextFolio devuelve el folio que correspondería a la próxima reserva.
// Solo tiene sentido si !Exhausted(); la reserva real la hace el repositorio
// con un update condicional sobre Consumed.
func (c *CAF) NextFolio() int64 {
	return c.RangeFrom + c.Consumed
}

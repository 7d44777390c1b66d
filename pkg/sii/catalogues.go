// Package sii contiene catálogos y validaciones alineados al formato de
// Documentos Tributarios Electrónicos del SII (Chile).
package sii

// =============================================================================
// Tipos de DTE (códigos oficiales SII)
// =============================================================================

const (
	DTEFactura       = 33 // Factura electrónica afecta a IVA
	DTEFacturaExenta = 34 // Factura electrónica exenta
	DTEBoleta        = 39 // Boleta electrónica afecta a IVA
	DTEBoletaExenta  = 41 // Boleta electrónica exenta
	DTEGuiaDespacho  = 52 // Guía de despacho electrónica
	DTENotaDebito    = 56 // Nota de débito electrónica
	DTENotaCredito   = 61 // Nota de crédito electrónica
)

// ValidDTETypes contiene los tipos de DTE que este sistema puede emitir.
var ValidDTETypes = map[int]bool{
	DTEFactura:       true,
	DTEFacturaExenta: true,
	DTEBoleta:        true,
	DTEBoletaExenta:  true,
	DTEGuiaDespacho:  true,
	DTENotaDebito:    true,
	DTENotaCredito:   true,
}

// IsExemptType indica si el tipo de DTE es exento de IVA (no lleva MntIVA).
func IsExemptType(dteType int) bool {
	return dteType == DTEFacturaExenta || dteType == DTEBoletaExenta
}

// IsBoletaType indica si el tipo corresponde a boleta: los precios de línea
// vienen con IVA incluido y el neto se calcula hacia abajo (gross-down).
func IsBoletaType(dteType int) bool {
	return dteType == DTEBoleta || dteType == DTEBoletaExenta
}

// =============================================================================
// IVA
// =============================================================================

// IVARatePercent es la tasa de IVA vigente en puntos porcentuales.
// El SII la publica como "19" en el elemento TasaIVA del DTE.
const IVARatePercent = 19

// =============================================================================
// Ambientes SII
// =============================================================================

const (
	// AmbienteCertificacion apunta a maullin.sii.cl (set de pruebas).
	AmbienteCertificacion = "test"
	// AmbienteProduccion apunta a palena.sii.cl.
	AmbienteProduccion = "prod"
	// AmbienteDev no envía al SII: simula aceptación local.
	AmbienteDev = "dev"
)

// =============================================================================
// Estados de respuesta del SII a un envío (glosa de estado de up-load)
// =============================================================================

const (
	// EstadoEPR: envío procesado y aceptado.
	EstadoAceptado = "EPR"
	// EstadoRPR: aceptado con reparos (observaciones no invalidantes).
	EstadoReparo = "RPR"
	// EstadoRCH: envío rechazado.
	EstadoRechazado = "RCH"
)

package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	// ErrNoFoliosAvailable: no queda CAF activo con folios disponibles para el
	// tipo de documento. Requiere acción administrativa (cargar un CAF nuevo);
	// nunca se sustituye un folio de otro rango en silencio.
	ErrNoFoliosAvailable = errors.New("sin folios disponibles para el tipo de documento")

	// ErrInvalidOrder: la orden no puede convertirse en documento (sin líneas,
	// cantidad no positiva o precio negativo). No consume folio.
	ErrInvalidOrder = errors.New("orden inválida para emisión")

	// ErrCertExpired: el certificado de firma está vencido.
	ErrCertExpired = errors.New("certificado de firma vencido")

	// ErrCertInvalid: el certificado no se pudo cargar (ruta, formato o contraseña).
	ErrCertInvalid = errors.New("certificado de firma inválido")

	// ErrSignFailure: error criptográfico de bajo nivel al firmar.
	ErrSignFailure = errors.New("fallo al firmar el documento")

	// ErrInvalidCAF: el archivo CAF no parsea, no corresponde al emisor
	// configurado o declara un tipo de DTE no soportado.
	ErrInvalidCAF = errors.New("archivo CAF inválido")

	ErrNotFound          = errors.New("recurso no encontrado")
	ErrDuplicate         = errors.New("recurso duplicado")
	ErrConflict          = errors.New("conflicto con el estado actual")
	ErrInsufficientStock = errors.New("stock insuficiente")
)

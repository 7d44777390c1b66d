package dto

import "github.com/shopspring/decimal"

// EmitDocumentRequest es la entrada única del flujo de emisión: una venta
// completada que debe convertirse en DTE.
type EmitDocumentRequest struct {
	OrderID  string            `json:"order_id"`
	DTEType  int               `json:"dte_type"`
	Receiver *ReceiverInfo     `json:"receiver,omitempty"` // obligatorio en facturas
	Items    []EmitItemRequest `json:"items"`
}

// EmitItemRequest una línea de la venta, en el orden en que debe quedar en el DTE.
type EmitItemRequest struct {
	ProductID   string          `json:"product_id"`
	Description string          `json:"description,omitempty"` // vacío = nombre de catálogo
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"` // cero = precio de catálogo
}

// ReceiverInfo identidad del receptor del documento.
type ReceiverInfo struct {
	RUT         string `json:"rut"`
	RazonSocial string `json:"razon_social"`
	Giro        string `json:"giro,omitempty"`
	Direccion   string `json:"direccion,omitempty"`
	Comuna      string `json:"comuna,omitempty"`
	Email       string `json:"email,omitempty"`
}

// EmitDocumentResponse resultado de la emisión. Status refleja hasta dónde
// llegó el flujo; un documento en ENVIO_PENDIENTE ya consumió su folio y se
// resolverá por reconciliación.
type EmitDocumentResponse struct {
	DocumentID   string          `json:"document_id"`
	DTEType      int             `json:"dte_type"`
	Folio        int64           `json:"folio"`
	Status       string          `json:"status"`
	TrackID      string          `json:"track_id,omitempty"`
	NetAmount    decimal.Decimal `json:"net_amount"`
	ExemptAmount decimal.Decimal `json:"exempt_amount"`
	TaxAmount    decimal.Decimal `json:"tax_amount"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	IssuedAt     string          `json:"issued_at"`
	LastError    string          `json:"last_error,omitempty"`
}

// DocumentDetailResponse una línea del documento tal como quedó en el ledger.
type DocumentDetailResponse struct {
	LineNumber  int             `json:"line_number"`
	ProductID   string          `json:"product_id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Exempt      bool            `json:"exempt,omitempty"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// DocumentResponse vista completa de un documento del ledger.
type DocumentResponse struct {
	EmitDocumentResponse
	OrderID     string                   `json:"order_id"`
	ReceiverRUT string                   `json:"receiver_rut,omitempty"`
	Details     []DocumentDetailResponse `json:"details"`
}

// LoadCAFRequest carga de un CAF emitido por la autoridad (XML crudo).
type LoadCAFRequest struct {
	RawXML string `json:"raw_xml"`
}

// CAFResponse vista de un rango de folios y su consumo.
type CAFResponse struct {
	ID        string `json:"id"`
	DTEType   int    `json:"dte_type"`
	RangeFrom int64  `json:"range_from"`
	RangeTo   int64  `json:"range_to"`
	Consumed  int64  `json:"consumed"`
	Remaining int64  `json:"remaining"`
	IsActive  bool   `json:"is_active"`
	LoadedAt  string `json:"loaded_at"`
}

// ReconcileResponse resumen de una pasada de reconciliación.
type ReconcileResponse struct {
	Examined int `json:"examined"`
	Resolved int `json:"resolved"`
	Pending  int `json:"pending"`
}

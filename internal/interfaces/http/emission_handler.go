package http

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/tu-usuario/retail-dte/internal/application/dto"
	"github.com/tu-usuario/retail-dte/internal/application/emission"
	"github.com/tu-usuario/retail-dte/internal/domain"
)

// EmissionHandler maneja las peticiones HTTP de emisión de documentos.
type EmissionHandler struct {
	emit      *emission.EmitDocumentUseCase
	query     *emission.DocumentQueryUseCase
	pdf       *emission.PDFUseCase
	reconcile *emission.ReconcileUseCase
}

// NewEmissionHandler construye el handler.
func NewEmissionHandler(
	emit *emission.EmitDocumentUseCase,
	query *emission.DocumentQueryUseCase,
	pdf *emission.PDFUseCase,
	reconcile *emission.ReconcileUseCase,
) *EmissionHandler {
	return &EmissionHandler{emit: emit, query: query, pdf: pdf, reconcile: reconcile}
}

// Emit convierte una venta completada en un DTE.
// POST /api/documents
func (h *EmissionHandler) Emit(c *fiber.Ctx) error {
	var in dto.EmitDocumentRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	resp, err := h.emit.Execute(c.Context(), &in)
	if err != nil {
		return emissionError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// GetByFolio obtiene un documento por su llave legal.
// GET /api/documents/:type/:folio
func (h *EmissionHandler) GetByFolio(c *fiber.Ctx) error {
	dteType, folio, err := parseDocumentKey(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	}
	resp, err := h.query.GetByFolio(c.Context(), dteType, folio)
	if err != nil {
		return emissionError(c, err)
	}
	return c.JSON(resp)
}

// GetPDF genera la representación impresa del documento.
// GET /api/documents/:type/:folio/pdf
func (h *EmissionHandler) GetPDF(c *fiber.Ctx) error {
	dteType, folio, err := parseDocumentKey(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	}
	pdfBytes, err := h.pdf.Generate(c.Context(), dteType, folio)
	if err != nil {
		return emissionError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition,
		fmt.Sprintf(`inline; filename="dte_%d_%d.pdf"`, dteType, folio))
	return c.Send(pdfBytes)
}

// Reconcile corre una pasada de reconciliación de envíos sin veredicto.
// POST /api/reconcile
func (h *EmissionHandler) Reconcile(c *fiber.Ctx) error {
	resp, err := h.reconcile.Execute(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(resp)
}

func parseDocumentKey(c *fiber.Ctx) (int, int64, error) {
	dteType, err := strconv.Atoi(c.Params("type"))
	if err != nil {
		return 0, 0, errors.New("tipo de DTE inválido")
	}
	folio, err := strconv.ParseInt(c.Params("folio"), 10, 64)
	if err != nil {
		return 0, 0, errors.New("folio inválido")
	}
	return dteType, folio, nil
}

// emissionError traduce los errores de dominio a códigos HTTP.
func emissionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidOrder):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_ORDER", Message: err.Error()})
	case errors.Is(err, domain.ErrNoFoliosAvailable):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "NO_FOLIOS", Message: "sin folios disponibles; cargue un CAF nuevo"})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "documento no encontrado"})
	case errors.Is(err, domain.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "DUPLICATE", Message: err.Error()})
	case errors.Is(err, domain.ErrCertExpired):
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "CERT_EXPIRED", Message: "certificado de firma vencido"})
	case errors.Is(err, domain.ErrCertInvalid):
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "CERT_INVALID", Message: "certificado de firma inválido"})
	case errors.Is(err, domain.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: err.Error()})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
}

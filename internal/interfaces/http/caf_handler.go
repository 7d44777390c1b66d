package http

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/tu-usuario/retail-dte/internal/application/dto"
	"github.com/tu-usuario/retail-dte/internal/application/emission"
	"github.com/tu-usuario/retail-dte/internal/domain"
)

// CAFHandler maneja la carga y consulta de rangos de folios.
type CAFHandler struct {
	uc *emission.CAFUseCase
}

// NewCAFHandler construye el handler.
func NewCAFHandler(uc *emission.CAFUseCase) *CAFHandler {
	return &CAFHandler{uc: uc}
}

// Load carga un CAF descargado del SII.
// POST /api/cafs
func (h *CAFHandler) Load(c *fiber.Ctx) error {
	var in dto.LoadCAFRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if strings.TrimSpace(in.RawXML) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "raw_xml requerido"})
	}
	resp, err := h.uc.Load(c.Context(), in.RawXML)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCAF) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "INVALID_CAF", Message: err.Error()})
		}
		if errors.Is(err, domain.ErrDuplicate) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "DUPLICATE", Message: "CAF ya cargado"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// List devuelve los CAF del emisor con su consumo.
// GET /api/cafs
func (h *CAFHandler) List(c *fiber.Ctx) error {
	cafs, err := h.uc.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(cafs)
}

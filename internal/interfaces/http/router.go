package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tu-usuario/retail-dte/internal/application/emission"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Emit      *emission.EmitDocumentUseCase
	Query     *emission.DocumentQueryUseCase
	PDF       *emission.PDFUseCase
	Reconcile *emission.ReconcileUseCase
	CAF       *emission.CAFUseCase
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Documentos tributarios
	documents := api.Group("/documents")
	emissionHandler := NewEmissionHandler(deps.Emit, deps.Query, deps.PDF, deps.Reconcile)
	documents.Post("/", emissionHandler.Emit)
	documents.Get("/:type/:folio", emissionHandler.GetByFolio)
	documents.Get("/:type/:folio/pdf", emissionHandler.GetPDF)

	// Reconciliación manual (el ciclo periódico corre igual)
	api.Post("/reconcile", emissionHandler.Reconcile)

	// Rangos de folios
	cafs := api.Group("/cafs")
	cafHandler := NewCAFHandler(deps.CAF)
	cafs.Post("/", cafHandler.Load)
	cafs.Get("/", cafHandler.List)
}

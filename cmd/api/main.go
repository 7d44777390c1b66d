package main

import (
	"context"
	"crypto/tls"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/tu-usuario/retail-dte/internal/application/emission"
	infrapdf "github.com/tu-usuario/retail-dte/internal/infrastructure/pdf"
	"github.com/tu-usuario/retail-dte/internal/infrastructure/postgres"
	infrasii "github.com/tu-usuario/retail-dte/internal/infrastructure/sii"
	"github.com/tu-usuario/retail-dte/internal/infrastructure/sii/signer"
	httpRouter "github.com/tu-usuario/retail-dte/internal/interfaces/http"
	"github.com/tu-usuario/retail-dte/pkg/config"
	"github.com/tu-usuario/retail-dte/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("ambiente_sii", cfg.SII.Ambiente).
		Msg("iniciando aplicación")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	cafRepo := postgres.NewCAFRepository(pool)
	docRepo := postgres.NewDocumentRepository(pool)
	productRepo := postgres.NewProductRepository(pool)
	customerRepo := postgres.NewCustomerRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	// El certificado se carga en cada emisión: renovarlo no requiere reinicio.
	loadCert := func() (tls.Certificate, error) {
		return signer.Load(cfg.SII.CertPath, cfg.SII.CertKeyPath, cfg.SII.CertPassword)
	}

	// Cliente SOAP SII — en ambiente dev el flujo de emisión no lo invoca.
	submitter := infrasii.NewSOAPClient()

	finalizer := emission.NewFinalizer(txRunner, log)
	emitUC := emission.NewEmitDocumentUseCase(
		emission.NewFolioService(cafRepo),
		docRepo, productRepo, customerRepo,
		infrasii.NewXMLBuilder(),
		signer.NewDigitalSignatureService(),
		loadCert, submitter, finalizer,
		cfg.SII, log,
	)
	queryUC := emission.NewDocumentQueryUseCase(docRepo, cfg.SII.RutEmisor)
	pdfUC := emission.NewPDFUseCase(queryUC, infrapdf.NewDTEPDFGenerator(),
		emission.EmitterFromConfig(cfg.SII))
	reconcileUC := emission.NewReconcileUseCase(docRepo, submitter, finalizer,
		cfg.SII.Ambiente, log)
	cafUC := emission.NewCAFUseCase(cafRepo, cfg.SII.RutEmisor, log)

	// Ciclo de reconciliación: resuelve envíos sin veredicto por TrackID.
	if cfg.SII.ReconcileSecs > 0 {
		go func() {
			ticker := time.NewTicker(time.Duration(cfg.SII.ReconcileSecs) * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if _, err := reconcileUC.Execute(ctx); err != nil {
						log.Error().Err(err).Msg("pasada de reconciliación")
					}
				}
			}
		}()
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Emit:      emitUC,
		Query:     queryUC,
		PDF:       pdfUC,
		Reconcile: reconcileUC,
		CAF:       cafUC,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")
	stop() // detiene el ciclo de reconciliación

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

// Caso de uso de emisión: convierte una venta completada en un DTE legalmente
// emitido. El flujo es una máquina de estados persistida folio a folio:
//
//	validar → reservar folio → armar (DRAFT) → firmar (SIGNED) → enviar
//	(ENVIADO) → cerrar {ACEPTADO | REPARO | RECHAZADO}
//
// Una vez reservado, el folio nunca vuelve al pool: todo fallo posterior deja
// el documento persistido con su folio y el detalle del error.

package emission

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tu-usuario/retail-dte/internal/application/dto"
	"github.com/tu-usuario/retail-dte/internal/domain"
	"github.com/tu-usuario/retail-dte/internal/domain/entity"
	"github.com/tu-usuario/retail-dte/internal/domain/repository"
	infsii "github.com/tu-usuario/retail-dte/internal/infrastructure/sii"
	"github.com/tu-usuario/retail-dte/pkg/config"
	"github.com/tu-usuario/retail-dte/pkg/logger"
	pkgsii "github.com/tu-usuario/retail-dte/pkg/sii"
)

// CertLoader entrega el certificado de firma vigente. Se resuelve en cada
// emisión para que una renovación del certificado no requiera reinicio.
type CertLoader func() (tls.Certificate, error)

// EmitDocumentUseCase orquesta la emisión completa de un DTE.
type EmitDocumentUseCase struct {
	folios       *FolioService
	docRepo      repository.DocumentRepository
	productRepo  repository.ProductRepository
	customerRepo repository.CustomerRepository
	builder      *infsii.XMLBuilder
	signer       pkgsii.Signer
	loadCert     CertLoader
	submitter    infsii.Submitter
	finalizer    *Finalizer
	emitter      *entity.Company
	ambiente     string
	submitTO     time.Duration
	log          *logger.Logger
}

// NewEmitDocumentUseCase arma el caso de uso. La identidad del emisor sale de
// la configuración: es la misma para todos los documentos del proceso.
func NewEmitDocumentUseCase(
	folios *FolioService,
	docRepo repository.DocumentRepository,
	productRepo repository.ProductRepository,
	customerRepo repository.CustomerRepository,
	builder *infsii.XMLBuilder,
	signer pkgsii.Signer,
	loadCert CertLoader,
	submitter infsii.Submitter,
	finalizer *Finalizer,
	cfg config.SIIConfig,
	log *logger.Logger,
) *EmitDocumentUseCase {
	return &EmitDocumentUseCase{
		folios:       folios,
		docRepo:      docRepo,
		productRepo:  productRepo,
		customerRepo: customerRepo,
		builder:      builder,
		signer:       signer,
		loadCert:     loadCert,
		submitter:    submitter,
		finalizer:    finalizer,
		emitter:      EmitterFromConfig(cfg),
		ambiente:     cfg.Ambiente,
		submitTO:     time.Duration(cfg.SubmitTimeout) * time.Second,
		log:          log.Component("emission"),
	}
}

// EmitterFromConfig arma la identidad del emisor declarada en configuración.
func EmitterFromConfig(cfg config.SIIConfig) *entity.Company {
	resolucionFch, _ := time.Parse("2006-01-02", cfg.ResolucionFch)
	return &entity.Company{
		RUT:             cfg.RutEmisor,
		RazonSocial:     cfg.RazonSocial,
		Giro:            cfg.Giro,
		Direccion:       cfg.DireccionOrigen,
		Comuna:          cfg.ComunaOrigen,
		ResolucionNum:   cfg.ResolucionNum,
		ResolucionFecha: resolucionFch,
	}
}

// Execute emite el documento para la orden dada.
//
// Contrato de errores: un error ANTES de la reserva no consume folio; después
// de la reserva, el documento queda persistido (con LastError si falló la
// firma) y un fallo de transporte retorna respuesta en ENVIO_PENDIENTE, no
// error, porque el SII pudo haber recibido el envío.
func (u *EmitDocumentUseCase) Execute(ctx context.Context, req *dto.EmitDocumentRequest) (*dto.EmitDocumentResponse, error) {
	lines, receiver, err := u.resolveOrder(ctx, req)
	if err != nil {
		return nil, err
	}

	folio, caf, err := u.folios.Reserve(ctx, u.emitter.RUT, req.DTEType)
	if err != nil {
		return nil, err
	}

	doc, details, err := AssembleDocument(AssembleInput{
		OrderID:  req.OrderID,
		DTEType:  req.DTEType,
		Folio:    folio,
		CAFID:    caf.ID,
		Emitter:  u.emitter,
		Receiver: receiver,
		Lines:    lines,
		IssuedAt: time.Now(),
	})
	if err != nil {
		// No debería ocurrir: la orden ya fue validada antes de reservar.
		// El folio queda consumido; se registra la pérdida.
		u.log.Error().Err(err).Int64("folio", folio).Int("dte_type", req.DTEType).
			Msg("orden inválida detectada tras reservar folio")
		return nil, err
	}

	// El folio entra al ledger antes de cualquier paso lento: desde aquí el
	// documento existe aunque el proceso muera.
	if err := u.docRepo.Create(ctx, doc, details); err != nil {
		return nil, fmt.Errorf("registrar documento en el ledger: %w", err)
	}

	u.log.Info().Str("document_id", doc.ID).Int("dte_type", doc.DTEType).
		Int64("folio", doc.Folio).Str("order_id", doc.OrderID).Msg("documento armado")

	if u.ambiente == pkgsii.AmbienteDev {
		return u.executeDev(ctx, doc)
	}

	signed, err := u.sign(ctx, doc, details, receiver, caf)
	if err != nil {
		return nil, err
	}

	return u.submit(ctx, doc, signed)
}

// resolveOrder valida la orden y la resuelve contra el catálogo de precios.
// Se ejecuta completa ANTES de reservar folio: una orden inválida jamás
// consume numeración.
func (u *EmitDocumentUseCase) resolveOrder(ctx context.Context, req *dto.EmitDocumentRequest) ([]OrderLine, *entity.Customer, error) {
	if req == nil || !pkgsii.ValidDTETypes[req.DTEType] {
		return nil, nil, fmt.Errorf("tipo de DTE no soportado: %w", domain.ErrInvalidOrder)
	}
	if len(req.Items) == 0 {
		return nil, nil, fmt.Errorf("orden sin líneas: %w", domain.ErrInvalidOrder)
	}
	if strings.TrimSpace(req.OrderID) == "" {
		return nil, nil, fmt.Errorf("orden sin identificador: %w", domain.ErrInvalidOrder)
	}

	// Las facturas exigen receptor identificado; las boletas no.
	if !pkgsii.IsBoletaType(req.DTEType) && req.Receiver == nil {
		return nil, nil, fmt.Errorf("el tipo %d exige receptor: %w", req.DTEType, domain.ErrInvalidOrder)
	}

	var receiver *entity.Customer
	if req.Receiver != nil {
		if err := pkgsii.ValidateRUT(req.Receiver.RUT); err != nil {
			return nil, nil, fmt.Errorf("RUT de receptor: %v: %w", err, domain.ErrInvalidOrder)
		}
		var err error
		receiver, err = u.resolveReceiver(ctx, req.Receiver)
		if err != nil {
			return nil, nil, err
		}
	}

	lines := make([]OrderLine, 0, len(req.Items))
	for i, item := range req.Items {
		line := OrderLine{
			ProductID:   item.ProductID,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		}
		if item.ProductID != "" {
			product, err := u.productRepo.GetByID(ctx, item.ProductID)
			if err != nil {
				return nil, nil, fmt.Errorf("línea %d: producto %s: %w", i+1, item.ProductID, err)
			}
			if line.Description == "" {
				line.Description = product.Name
			}
			if line.UnitPrice.IsZero() {
				line.UnitPrice = product.Price
			}
			line.Exempt = product.Exempt
		}
		if line.Description == "" {
			return nil, nil, fmt.Errorf("línea %d sin descripción: %w", i+1, domain.ErrInvalidOrder)
		}
		lines = append(lines, line)
	}
	// Cantidades y precios se validan acá, con los valores ya resueltos del
	// catálogo: después de este punto la orden reserva folio.
	if err := validateLines(lines); err != nil {
		return nil, nil, err
	}
	return lines, receiver, nil
}

// resolveReceiver busca el receptor por RUT y lo registra si es la primera vez.
func (u *EmitDocumentUseCase) resolveReceiver(ctx context.Context, info *dto.ReceiverInfo) (*entity.Customer, error) {
	existing, err := u.customerRepo.GetByRUT(ctx, info.RUT)
	if err != nil {
		return nil, fmt.Errorf("buscar receptor %s: %w", info.RUT, err)
	}
	if existing != nil {
		return existing, nil
	}
	now := time.Now()
	c := &entity.Customer{
		ID:          uuid.New().String(),
		RUT:         info.RUT,
		RazonSocial: info.RazonSocial,
		Giro:        info.Giro,
		Direccion:   info.Direccion,
		Comuna:      info.Comuna,
		Email:       info.Email,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := u.customerRepo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("registrar receptor %s: %w", info.RUT, err)
	}
	return c, nil
}

// sign construye el XML y lo firma. Cualquier fallo deja el documento en
// DRAFT con LastError; el folio ya está consumido y no se recicla.
func (u *EmitDocumentUseCase) sign(ctx context.Context, doc *entity.Document, details []*entity.DocumentDetail, receiver *entity.Customer, caf *entity.CAF) ([]byte, error) {
	cafData, err := infsii.ParseCAF([]byte(caf.RawXML))
	if err != nil {
		return nil, u.markError(ctx, doc, fmt.Errorf("parsear CAF %s: %w", caf.ID, err))
	}

	xmlBytes, err := u.builder.Build(&infsii.BuildContext{
		Document: doc,
		Details:  details,
		Emitter:  u.emitter,
		Receiver: receiver,
		CAF:      cafData,
	})
	if err != nil {
		return nil, u.markError(ctx, doc, fmt.Errorf("armar XML: %w", err))
	}

	cert, err := u.loadCert()
	if err != nil {
		return nil, u.markError(ctx, doc, err)
	}
	signed, err := u.signer.Sign(xmlBytes, cert)
	if err != nil {
		return nil, u.markError(ctx, doc, err)
	}

	doc.Status = entity.StatusSigned
	doc.XMLSigned = string(signed)
	doc.UpdatedAt = time.Now()
	if err := u.docRepo.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("persistir documento firmado: %w", err)
	}
	return signed, nil
}

// submit entrega el documento firmado al SII y cierra el estado.
func (u *EmitDocumentUseCase) submit(ctx context.Context, doc *entity.Document, signed []byte) (*dto.EmitDocumentResponse, error) {
	sendCtx, cancel := context.WithTimeout(ctx, u.submitTO)
	defer cancel()

	filename := fmt.Sprintf("DTE_%s_T%dF%d.xml",
		strings.ReplaceAll(doc.EmitterRUT, "-", ""), doc.DTEType, doc.Folio)

	result, err := u.submitter.Submit(sendCtx, signed, filename, u.ambiente)
	if err != nil {
		// El acuse se perdió, no necesariamente el envío: el documento queda
		// pendiente y la reconciliación lo resolverá. Nunca se re-envía el
		// mismo folio a ciegas.
		doc.Status = entity.StatusEnvioPendiente
		doc.LastError = err.Error()
		doc.UpdatedAt = time.Now()
		if uerr := u.docRepo.Update(ctx, doc); uerr != nil {
			return nil, fmt.Errorf("persistir envío pendiente: %w", uerr)
		}
		u.log.Warn().Err(err).Str("document_id", doc.ID).Int64("folio", doc.Folio).
			Msg("envío sin acuse; queda para reconciliación")
		return toEmitResponse(doc), nil
	}

	doc.Status = entity.StatusEnviado
	doc.TrackID = result.TrackID
	doc.LastError = ""
	doc.UpdatedAt = time.Now()
	if err := u.docRepo.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("persistir envío: %w", err)
	}

	if _, terminal := statusForEstado(result.Estado); terminal {
		if err := u.finalizer.Apply(ctx, doc, result); err != nil {
			return nil, err
		}
	}

	u.log.Info().Str("document_id", doc.ID).Int64("folio", doc.Folio).
		Str("track_id", doc.TrackID).Str("status", doc.Status).Msg("documento enviado")
	return toEmitResponse(doc), nil
}

// executeDev simula el ciclo completo sin tocar la red ni exigir certificado.
// Para desarrollo local y demos; jamás en certificación ni producción.
func (u *EmitDocumentUseCase) executeDev(ctx context.Context, doc *entity.Document) (*dto.EmitDocumentResponse, error) {
	doc.Status = entity.StatusSigned
	doc.UpdatedAt = time.Now()
	if err := u.docRepo.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("persistir documento (dev): %w", err)
	}
	result := &infsii.SubmitResult{
		TrackID: fmt.Sprintf("DEV-%d-%d", doc.DTEType, doc.Folio),
		Estado:  pkgsii.EstadoAceptado,
		Glosa:   "aceptación simulada (ambiente dev)",
	}
	if err := u.finalizer.Apply(ctx, doc, result); err != nil {
		return nil, err
	}
	return toEmitResponse(doc), nil
}

// markError persiste el fallo en el documento y devuelve el error original.
// El documento conserva su estado (DRAFT si aún no se firmó).
func (u *EmitDocumentUseCase) markError(ctx context.Context, doc *entity.Document, cause error) error {
	doc.LastError = cause.Error()
	doc.UpdatedAt = time.Now()
	if uerr := u.docRepo.Update(ctx, doc); uerr != nil {
		u.log.Error().Err(uerr).Str("document_id", doc.ID).
			Msg("no se pudo persistir el error del documento")
	}
	u.log.Error().Err(cause).Str("document_id", doc.ID).Int64("folio", doc.Folio).
		Msg("emisión interrumpida; folio consumido")
	return cause
}

func toEmitResponse(doc *entity.Document) *dto.EmitDocumentResponse {
	return &dto.EmitDocumentResponse{
		DocumentID:   doc.ID,
		DTEType:      doc.DTEType,
		Folio:        doc.Folio,
		Status:       doc.Status,
		TrackID:      doc.TrackID,
		NetAmount:    doc.NetAmount,
		ExemptAmount: doc.ExemptAmount,
		TaxAmount:    doc.TaxAmount,
		TotalAmount:  doc.TotalAmount,
		IssuedAt:     doc.IssuedAt.Format(time.RFC3339),
		LastError:    doc.LastError,
	}
}

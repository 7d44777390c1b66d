package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tu-usuario/retail-dte/internal/domain"
	"github.com/tu-usuario/retail-dte/internal/domain/entity"
	"github.com/tu-usuario/retail-dte/internal/domain/repository"
)

var _ repository.DocumentRepository = (*DocumentRepo)(nil)

// DocumentRepo implementación del ledger de documentos sobre PostgreSQL
// (usable con pool o tx).
type DocumentRepo struct {
	q Querier
}

// NewDocumentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewDocumentRepository(q Querier) *DocumentRepo {
	return &DocumentRepo{q: q}
}

const documentColumns = `id, emitter_rut, dte_type, folio, caf_id, order_id,
	receiver_rut, receiver_name, issued_at, net_amount, exempt_amount,
	tax_amount, total_amount, status, xml_signed, track_id, last_error,
	created_at, updated_at`

// Create inserta cabecera y detalle en una sola sentencia por tabla. La llave
// legal (emitter_rut, dte_type, folio) tiene constraint único: un folio no se
// escribe dos veces, viniera de donde viniera el segundo intento.
func (r *DocumentRepo) Create(ctx context.Context, doc *entity.Document, details []*entity.DocumentDetail) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	query := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`
	_, err := r.q.Exec(ctx, query,
		doc.ID, doc.EmitterRUT, doc.DTEType, doc.Folio, doc.CAFID, doc.OrderID,
		nullIfEmpty(doc.ReceiverRUT), nullIfEmpty(doc.ReceiverName), doc.IssuedAt,
		doc.NetAmount, doc.ExemptAmount, doc.TaxAmount, doc.TotalAmount,
		doc.Status, nullIfEmpty(doc.XMLSigned), nullIfEmpty(doc.TrackID),
		nullIfEmpty(doc.LastError), doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("folio %d del tipo %d ya registrado: %w",
				doc.Folio, doc.DTEType, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert documento: %w", err)
	}

	for _, d := range details {
		if d.ID == "" {
			d.ID = uuid.New().String()
		}
		detailQuery := `
			INSERT INTO document_details (id, document_id, line_number, product_id, description, quantity, unit_price, exempt, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		_, err := r.q.Exec(ctx, detailQuery,
			d.ID, doc.ID, d.LineNumber, nullIfEmpty(d.ProductID), d.Description,
			d.Quantity, d.UnitPrice, d.Exempt, d.LineTotal,
		)
		if err != nil {
			return fmt.Errorf("insert detalle línea %d: %w", d.LineNumber, err)
		}
	}
	return nil
}

// Update persiste los campos mutables de la cabecera. La llave legal y los
// montos quedan como se escribieron en Create.
func (r *DocumentRepo) Update(ctx context.Context, doc *entity.Document) error {
	query := `
		UPDATE documents
		SET status = $2, xml_signed = $3, track_id = $4, last_error = $5, updated_at = now()
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		doc.ID, doc.Status, nullIfEmpty(doc.XMLSigned),
		nullIfEmpty(doc.TrackID), nullIfEmpty(doc.LastError),
	)
	if err != nil {
		return fmt.Errorf("update documento: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID obtiene un documento por su id interno.
func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	doc, err := scanDocument(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get documento: %w", err)
	}
	return doc, nil
}

// GetByKey busca por la llave legal. Devuelve nil, nil si no existe.
func (r *DocumentRepo) GetByKey(ctx context.Context, emitterRUT string, dteType int, folio int64) (*entity.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents
		WHERE emitter_rut = $1 AND dte_type = $2 AND folio = $3`
	doc, err := scanDocument(r.q.QueryRow(ctx, query, emitterRUT, dteType, folio))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get documento por folio: %w", err)
	}
	return doc, nil
}

// GetDetails devuelve el detalle en el orden de las líneas.
func (r *DocumentRepo) GetDetails(ctx context.Context, documentID string) ([]*entity.DocumentDetail, error) {
	query := `
		SELECT id, document_id, line_number, COALESCE(product_id, ''), description, quantity, unit_price, exempt, line_total
		FROM document_details
		WHERE document_id = $1
		ORDER BY line_number ASC`
	rows, err := r.q.Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("listar detalle: %w", err)
	}
	defer rows.Close()

	var out []*entity.DocumentDetail
	for rows.Next() {
		var d entity.DocumentDetail
		if err := rows.Scan(&d.ID, &d.DocumentID, &d.LineNumber, &d.ProductID,
			&d.Description, &d.Quantity, &d.UnitPrice, &d.Exempt, &d.LineTotal); err != nil {
			return nil, fmt.Errorf("scan detalle: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// ListByStatus devuelve hasta limit documentos en el estado dado, más antiguos
// primero.
func (r *DocumentRepo) ListByStatus(ctx context.Context, status string, limit int) ([]*entity.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2`
	rows, err := r.q.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("listar por estado: %w", err)
	}
	defer rows.Close()

	var out []*entity.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan documento: %w", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func scanDocument(row pgx.Row) (*entity.Document, error) {
	var doc entity.Document
	var receiverRUT, receiverName, xmlSigned, trackID, lastError *string
	err := row.Scan(
		&doc.ID, &doc.EmitterRUT, &doc.DTEType, &doc.Folio, &doc.CAFID, &doc.OrderID,
		&receiverRUT, &receiverName, &doc.IssuedAt, &doc.NetAmount, &doc.ExemptAmount,
		&doc.TaxAmount, &doc.TotalAmount, &doc.Status, &xmlSigned, &trackID,
		&lastError, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.ReceiverRUT = deref(receiverRUT)
	doc.ReceiverName = deref(receiverName)
	doc.XMLSigned = deref(xmlSigned)
	doc.TrackID = deref(trackID)
	doc.LastError = deref(lastError)
	return &doc, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

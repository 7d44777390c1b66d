package emission

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tu-usuario/retail-dte/internal/domain"
	"github.com/tu-usuario/retail-dte/internal/domain/entity"
	"github.com/tu-usuario/retail-dte/internal/domain/repository"
	infsii "github.com/tu-usuario/retail-dte/internal/infrastructure/sii"
)

// ── Fixture: CAF fabricado con una llave RSA de prueba ─────────────────────────

func newTestCAFXML(t *testing.T, rut string, dteType int, from, to int64) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	return fmt.Sprintf(`<AUTORIZACION>
<CAF version="1.0"><DA><RE>%s</RE><RS>COMERCIAL DE PRUEBA LTDA</RS><TD>%d</TD><RNG><D>%d</D><H>%d</H></RNG><FA>2026-01-15</FA><RSAPK><M>0</M><E>Aw==</E></RSAPK><IDK>100</IDK></DA><FRMA algoritmo="SHA1withRSA">ZmlybWEtZGUtcHJ1ZWJh</FRMA></CAF>
<RSASK>%s</RSASK>
</AUTORIZACION>`, rut, dteType, from, to, keyPEM)
}

func newTestCAF(t *testing.T, rut string, dteType int, from, to, consumed int64) *entity.CAF {
	t.Helper()
	return &entity.CAF{
		ID:         fmt.Sprintf("caf-%d-%d", dteType, from),
		EmitterRUT: rut,
		DTEType:    dteType,
		RangeFrom:  from,
		RangeTo:    to,
		Consumed:   consumed,
		IsActive:   true,
		RawXML:     newTestCAFXML(t, rut, dteType, from, to),
		LoadedAt:   time.Now(),
	}
}

// ── Fakes de repositorios (en memoria, seguros para concurrencia) ──────────────

type fakeCAFRepo struct {
	mu   sync.Mutex
	cafs map[string]*entity.CAF
}

func newFakeCAFRepo(cafs ...*entity.CAF) *fakeCAFRepo {
	r := &fakeCAFRepo{cafs: make(map[string]*entity.CAF)}
	for _, c := range cafs {
		cp := *c
		r.cafs[c.ID] = &cp
	}
	return r
}

func (r *fakeCAFRepo) Create(_ context.Context, caf *entity.CAF) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.cafs {
		if existing.EmitterRUT == caf.EmitterRUT && existing.DTEType == caf.DTEType &&
			existing.RangeFrom == caf.RangeFrom {
			return domain.ErrDuplicate
		}
	}
	cp := *caf
	r.cafs[caf.ID] = &cp
	return nil
}

func (r *fakeCAFRepo) GetByID(_ context.Context, id string) (*entity.CAF, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	caf, ok := r.cafs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *caf
	return &cp, nil
}

func (r *fakeCAFRepo) GetActiveByType(_ context.Context, emitterRUT string, dteType int) (*entity.CAF, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *entity.CAF
	for _, caf := range r.cafs {
		if caf.EmitterRUT != emitterRUT || caf.DTEType != dteType || !caf.IsActive || caf.Exhausted() {
			continue
		}
		if best == nil || caf.LoadedAt.Before(best.LoadedAt) {
			best = caf
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (r *fakeCAFRepo) TryConsume(_ context.Context, cafID string, expectedConsumed int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	caf, ok := r.cafs[cafID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if caf.Consumed != expectedConsumed || caf.Exhausted() {
		return false, nil
	}
	caf.Consumed++
	return true, nil
}

func (r *fakeCAFRepo) ListByEmitter(_ context.Context, emitterRUT string) ([]*entity.CAF, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.CAF
	for _, caf := range r.cafs {
		if caf.EmitterRUT == emitterRUT {
			cp := *caf
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LoadedAt.Before(out[j].LoadedAt) })
	return out, nil
}

type fakeDocRepo struct {
	mu      sync.Mutex
	docs    map[string]*entity.Document
	details map[string][]*entity.DocumentDetail
}

func newFakeDocRepo() *fakeDocRepo {
	return &fakeDocRepo{
		docs:    make(map[string]*entity.Document),
		details: make(map[string][]*entity.DocumentDetail),
	}
}

func (r *fakeDocRepo) Create(_ context.Context, doc *entity.Document, details []*entity.DocumentDetail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.docs {
		if existing.EmitterRUT == doc.EmitterRUT && existing.DTEType == doc.DTEType &&
			existing.Folio == doc.Folio {
			return fmt.Errorf("documento %d/%d ya registrado: %w", doc.DTEType, doc.Folio, domain.ErrDuplicate)
		}
	}
	cp := *doc
	r.docs[doc.ID] = &cp
	r.details[doc.ID] = append([]*entity.DocumentDetail(nil), details...)
	return nil
}

func (r *fakeDocRepo) Update(_ context.Context, doc *entity.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[doc.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *doc
	r.docs[doc.ID] = &cp
	return nil
}

func (r *fakeDocRepo) GetByID(_ context.Context, id string) (*entity.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (r *fakeDocRepo) GetByKey(_ context.Context, emitterRUT string, dteType int, folio int64) (*entity.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, doc := range r.docs {
		if doc.EmitterRUT == emitterRUT && doc.DTEType == dteType && doc.Folio == folio {
			cp := *doc
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeDocRepo) GetDetails(_ context.Context, documentID string) ([]*entity.DocumentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*entity.DocumentDetail(nil), r.details[documentID]...), nil
}

func (r *fakeDocRepo) ListByStatus(_ context.Context, status string, limit int) ([]*entity.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Document
	for _, doc := range r.docs {
		if doc.Status == status {
			cp := *doc
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeProductRepo struct {
	products map[string]*entity.Product
}

func (r *fakeProductRepo) GetByID(_ context.Context, id string) (*entity.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

type fakeCustomerRepo struct {
	mu        sync.Mutex
	customers map[string]*entity.Customer
}

func newFakeCustomerRepo() *fakeCustomerRepo {
	return &fakeCustomerRepo{customers: make(map[string]*entity.Customer)}
}

func (r *fakeCustomerRepo) GetByRUT(_ context.Context, rut string) (*entity.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.customers[rut], nil
}

func (r *fakeCustomerRepo) Create(_ context.Context, c *entity.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.customers[c.RUT] = c
	return nil
}

type fakeStockRepo struct {
	mu    sync.Mutex
	stock map[string]decimal.Decimal
}

func newFakeStockRepo(initial map[string]decimal.Decimal) *fakeStockRepo {
	if initial == nil {
		initial = make(map[string]decimal.Decimal)
	}
	return &fakeStockRepo{stock: initial}
}

func (r *fakeStockRepo) Get(_ context.Context, productID string) (*entity.Stock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	qty, ok := r.stock[productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &entity.Stock{ProductID: productID, Quantity: qty}, nil
}

func (r *fakeStockRepo) Decrement(_ context.Context, productID string, qty decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.stock[productID]
	if current.LessThan(qty) {
		return domain.ErrInsufficientStock
	}
	r.stock[productID] = current.Sub(qty)
	return nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []*entity.AuditEntry
}

func (r *fakeAuditRepo) Create(_ context.Context, entry *entity.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

// fakeTxRunner ejecuta el cierre terminal sin transacción real: los fakes ya
// son atómicos por operación, suficiente para verificar efectos.
type fakeTxRunner struct {
	docRepo   *fakeDocRepo
	stockRepo *fakeStockRepo
	auditRepo *fakeAuditRepo
}

func (r *fakeTxRunner) RunTerminal(_ context.Context, fn func(
	repository.DocumentRepository,
	repository.StockRepository,
	repository.AuditRepository,
) error) error {
	return fn(r.docRepo, r.stockRepo, r.auditRepo)
}

// ── Fakes de puertos externos ──────────────────────────────────────────────────

type fakeSubmitter struct {
	submitFn func(ctx context.Context, signedXML []byte, filename, env string) (*infsii.SubmitResult, error)
	queryFn  func(ctx context.Context, trackID, env string) (*infsii.SubmitResult, error)
}

func (f *fakeSubmitter) Submit(ctx context.Context, signedXML []byte, filename, env string) (*infsii.SubmitResult, error) {
	return f.submitFn(ctx, signedXML, filename, env)
}

func (f *fakeSubmitter) QueryStatus(ctx context.Context, trackID, env string) (*infsii.SubmitResult, error) {
	return f.queryFn(ctx, trackID, env)
}

type fakeSigner struct {
	err error
}

func (f *fakeSigner) Sign(xmlBytes []byte, _ tls.Certificate) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append(xmlBytes, []byte("<!--firmado-->")...), nil
}

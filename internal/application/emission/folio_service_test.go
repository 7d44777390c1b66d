package emission

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tu-usuario/retail-dte/internal/domain"
	pkgsii "github.com/tu-usuario/retail-dte/pkg/sii"
)

const testEmitterRUT = "76543210-3"

func TestFolioService_Reserve_Sequential(t *testing.T) {
	repo := newFakeCAFRepo(newTestCAF(t, testEmitterRUT, pkgsii.DTEBoleta, 1, 1000, 42))
	svc := NewFolioService(repo)

	folio, caf, err := svc.Reserve(context.Background(), testEmitterRUT, pkgsii.DTEBoleta)
	require.NoError(t, err)
	assert.Equal(t, int64(43), folio, "range_from + consumed")
	assert.Equal(t, int64(43), caf.Consumed)

	folio, _, err = svc.Reserve(context.Background(), testEmitterRUT, pkgsii.DTEBoleta)
	require.NoError(t, err)
	assert.Equal(t, int64(44), folio)
}

func TestFolioService_Reserve_ConcurrentNoDuplicates(t *testing.T) {
	const n = 50
	repo := newFakeCAFRepo(newTestCAF(t, testEmitterRUT, pkgsii.DTEBoleta, 100, 100+n-1, 0))
	svc := NewFolioService(repo)

	var (
		mu     sync.Mutex
		folios []int64
		errs   []error
		wg     sync.WaitGroup
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			var (
				folio int64
				err   error
			)
			for {
				folio, _, err = svc.Reserve(context.Background(), testEmitterRUT, pkgsii.DTEBoleta)
				if errors.Is(err, domain.ErrConflict) {
					continue // contención extrema: el llamador reintenta
				}
				break
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			folios = append(folios, folio)
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	require.Len(t, folios, n)
	sort.Slice(folios, func(i, j int) bool { return folios[i] < folios[j] })
	for i, folio := range folios {
		// Sin duplicados y sin saltos: la secuencia es exactamente 100..149.
		assert.Equal(t, int64(100+i), folio)
	}
}

func TestFolioService_Reserve_Exhausted(t *testing.T) {
	repo := newFakeCAFRepo(newTestCAF(t, testEmitterRUT, pkgsii.DTEBoleta, 1, 2, 2))
	svc := NewFolioService(repo)

	_, _, err := svc.Reserve(context.Background(), testEmitterRUT, pkgsii.DTEBoleta)
	assert.ErrorIs(t, err, domain.ErrNoFoliosAvailable)

	// El agotamiento no muta nada: el contador sigue donde estaba.
	caf, err := repo.GetByID(context.Background(), "caf-39-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), caf.Consumed)
}

func TestFolioService_Reserve_NoCAFForType(t *testing.T) {
	repo := newFakeCAFRepo(newTestCAF(t, testEmitterRUT, pkgsii.DTEBoleta, 1, 100, 0))
	svc := NewFolioService(repo)

	_, _, err := svc.Reserve(context.Background(), testEmitterRUT, pkgsii.DTEFactura)
	assert.ErrorIs(t, err, domain.ErrNoFoliosAvailable)
}

func TestFolioService_Reserve_RollsOverToNextCAF(t *testing.T) {
	older := newTestCAF(t, testEmitterRUT, pkgsii.DTEBoleta, 1, 10, 9)
	newer := newTestCAF(t, testEmitterRUT, pkgsii.DTEBoleta, 11, 20, 0)
	newer.LoadedAt = older.LoadedAt.Add(1)
	repo := newFakeCAFRepo(older, newer)
	svc := NewFolioService(repo)

	// Último folio del rango antiguo.
	folio, _, err := svc.Reserve(context.Background(), testEmitterRUT, pkgsii.DTEBoleta)
	require.NoError(t, err)
	assert.Equal(t, int64(10), folio)

	// El siguiente sale del rango nuevo, sin inventar folios intermedios.
	folio, caf, err := svc.Reserve(context.Background(), testEmitterRUT, pkgsii.DTEBoleta)
	require.NoError(t, err)
	assert.Equal(t, int64(11), folio)
	assert.Equal(t, newer.ID, caf.ID)
}

package allocation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storestock/backend/internal/apperror"
	"storestock/backend/internal/domain"
	"storestock/backend/internal/metrics"
	"storestock/backend/internal/store"
	"storestock/backend/internal/store/memory"
)

var central = domain.StoreRef{Name: "Central", Location: "Mall A"}

// split identity seeded as two rows holding 3 and 2 units
var iphoneBlack128 = domain.NewIdentity(central, "iphone 15", "BLACK", domain.NumericStorage(128))

type flakyStore struct {
	store.InventoryStore
	calls      int
	failOnCall int
	err        error
	beforeCall func(call int)
}

func (f *flakyStore) CompareAndSetQuantity(ctx context.Context, rowID int64, expected int, next int) error {
	f.calls++
	if f.beforeCall != nil {
		f.beforeCall(f.calls)
	}
	if f.calls == f.failOnCall {
		return f.err
	}
	return f.InventoryStore.CompareAndSetQuantity(ctx, rowID, expected, next)
}

func quantities(t *testing.T, s store.InventoryStore, id domain.Identity) []int {
	t.Helper()
	rows, err := s.ListInventory(context.Background(), store.IdentityFilter(id))
	require.NoError(t, err)
	out := make([]int, len(rows))
	for i, row := range rows {
		out[i] = row.Quantity
	}
	return out
}

func total(values []int) int {
	sum := 0
	for _, v := range values {
		sum += v
	}
	return sum
}

func TestDeductConservesUnits(t *testing.T) {
	for requested := 1; requested <= 5; requested++ {
		repo := memory.NewSeeded()
		engine := NewEngine(repo, metrics.New())

		before := quantities(t, repo, iphoneBlack128)
		alloc, err := engine.Deduct(context.Background(), iphoneBlack128, requested)
		require.NoError(t, err, "requested %d", requested)

		after := quantities(t, repo, iphoneBlack128)
		assert.Equal(t, total(before)-requested, total(after))
		assert.Equal(t, requested, alloc.Deducted())
		for _, q := range after {
			assert.GreaterOrEqual(t, q, 0)
		}
	}
}

func TestDeductIsDeterministic(t *testing.T) {
	first, err := NewEngine(memory.NewSeeded(), nil).Deduct(context.Background(), iphoneBlack128, 4)
	require.NoError(t, err)
	second, err := NewEngine(memory.NewSeeded(), nil).Deduct(context.Background(), iphoneBlack128, 4)
	require.NoError(t, err)

	assert.Equal(t, first.Rows, second.Rows)
	require.Len(t, first.Rows, 2)
	assert.Equal(t, domain.RowDeduction{RowID: 1, Before: 3, Deducted: 3, After: 0}, first.Rows[0])
	assert.Equal(t, domain.RowDeduction{RowID: 2, Before: 2, Deducted: 1, After: 1}, first.Rows[1])
}

func TestDeductInsufficientLeavesRowsUntouched(t *testing.T) {
	repo := memory.NewSeeded()
	engine := NewEngine(repo, nil)

	_, err := engine.Deduct(context.Background(), iphoneBlack128, 6)
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, 6, appErr.Details["requested"])
	assert.Equal(t, 5, appErr.Details["available"])
	assert.Equal(t, []int{3, 2}, quantities(t, repo, iphoneBlack128))
}

func TestDeductNotFound(t *testing.T) {
	engine := NewEngine(memory.NewSeeded(), nil)
	_, err := engine.Deduct(context.Background(), domain.NewIdentity(central, "Pixel 9", "Black", domain.NoStorage()), 1)
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))
}

func TestDeductTreatsNullEmptyAndZeroStorageAsOne(t *testing.T) {
	repo := memory.NewSeeded()
	engine := NewEngine(repo, nil)
	ipad := domain.NewIdentity(central, "iPad Air", "Blue", domain.StorageFrom(""))

	alloc, err := engine.Deduct(context.Background(), ipad, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, alloc.Available)
	assert.Equal(t, []int{0, 0, 0}, quantities(t, repo, ipad))
}

func TestDeductRejectsNonPositiveQuantity(t *testing.T) {
	engine := NewEngine(memory.NewSeeded(), nil)
	_, err := engine.Deduct(context.Background(), iphoneBlack128, 0)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestDeductRollsBackOnWriteFailure(t *testing.T) {
	repo := memory.NewSeeded()
	flaky := &flakyStore{InventoryStore: repo, failOnCall: 2, err: errors.New("connection reset")}
	engine := NewEngine(flaky, nil)

	_, err := engine.Deduct(context.Background(), iphoneBlack128, 4)
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeStoreUnavailable, appErr.Code)
	assert.Equal(t, true, appErr.Details["rolled_back"])
	assert.Equal(t, []int{3, 2}, quantities(t, repo, iphoneBlack128))
}

func TestDeductReportsRaceWhenRowChangesMidway(t *testing.T) {
	repo := memory.NewSeeded()
	flaky := &flakyStore{InventoryStore: repo}
	flaky.beforeCall = func(call int) {
		if call == 2 {
			// another writer takes one unit from the second row
			require.NoError(t, repo.CompareAndSetQuantity(context.Background(), 2, 2, 1))
		}
	}
	engine := NewEngine(flaky, nil)

	_, err := engine.Deduct(context.Background(), iphoneBlack128, 4)
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeAllocationRace, appErr.Code)
	assert.Equal(t, 3, appErr.Details["deducted"])
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.Equal(t, []int{3, 1}, quantities(t, repo, iphoneBlack128))
}

func TestRestoreUndoesAllocation(t *testing.T) {
	repo := memory.NewSeeded()
	engine := NewEngine(repo, nil)

	alloc, err := engine.Deduct(context.Background(), iphoneBlack128, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0}, quantities(t, repo, iphoneBlack128))

	require.NoError(t, engine.Restore(context.Background(), alloc))
	assert.Equal(t, []int{3, 2}, quantities(t, repo, iphoneBlack128))
}

func TestConcurrentDeductionsNeverOversell(t *testing.T) {
	repo := memory.NewSeeded()
	engine := NewEngine(repo, nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := engine.Deduct(context.Background(), iphoneBlack128, 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 0, total(quantities(t, repo, iphoneBlack128)))
}

func TestPlanSkipsEmptyAndNegativeRows(t *testing.T) {
	rows := []domain.InventoryRow{
		{ID: 1, Quantity: -2},
		{ID: 2, Quantity: 0},
		{ID: 3, Quantity: 4},
		{ID: 4, Quantity: 4},
	}
	steps, remaining := Plan(rows, 6)
	assert.Equal(t, 0, remaining)
	assert.Equal(t, []domain.RowDeduction{
		{RowID: 3, Before: 4, Deducted: 4, After: 0},
		{RowID: 4, Before: 4, Deducted: 2, After: 2},
	}, steps)
	assert.Equal(t, 8, ComputeAvailable(rows))
}

func TestLocateAndAvailable(t *testing.T) {
	engine := NewEngine(memory.NewSeeded(), nil)

	id, err := engine.Locate(context.Background(), iphoneBlack128)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	avail, err := engine.Available(context.Background(), iphoneBlack128)
	require.NoError(t, err)
	assert.Equal(t, 5, avail.Available)
	assert.Equal(t, 2, avail.Rows)
}

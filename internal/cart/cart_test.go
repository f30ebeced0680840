package cart

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storestock/backend/internal/apperror"
	"storestock/backend/internal/domain"
)

var (
	storeA = domain.StoreRef{Name: "Central", Location: "Mall A"}
	storeB = domain.StoreRef{Name: "Harbour", Location: "Pier 3"}
)

func TestAddLineMergesEquivalentLines(t *testing.T) {
	c, err := AddLine(New(), storeA, domain.CartLine{Product: "P1", Color: "Red", Storage: domain.StorageFrom(""), Quantity: 2})
	require.NoError(t, err)
	c, err = AddLine(c, storeA, domain.CartLine{Product: "p1", Color: "red", Storage: domain.StorageFrom(nil), Quantity: 3})
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	assert.Equal(t, 5, c.Items[0].Quantity)
	assert.Equal(t, "p1|red|NULL", c.Items[0].Key)
	require.NotNil(t, c.Store)
	assert.Equal(t, storeA, *c.Store)
}

func TestAddLineKeepsDistinctVariantsApart(t *testing.T) {
	c, err := AddLine(New(), storeA, domain.CartLine{Product: "iPhone 15", Color: "Black", Storage: domain.StorageFrom(128), Quantity: 1})
	require.NoError(t, err)
	c, err = AddLine(c, storeA, domain.CartLine{Product: "iPhone 15", Color: "Black", Storage: domain.StorageFrom("256"), Quantity: 1})
	require.NoError(t, err)

	assert.Len(t, c.Items, 2)
	assert.Equal(t, 2, TotalQuantity(c))
}

func TestAddLineRejectsOtherStoreAndLeavesCartUnchanged(t *testing.T) {
	c, err := AddLine(New(), storeA, domain.CartLine{Product: "P1", Color: "Red", Quantity: 1})
	require.NoError(t, err)

	after, err := AddLine(c, storeB, domain.CartLine{Product: "P2", Color: "Blue", Quantity: 1})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeCrossStore))
	assert.Equal(t, c, after)
	assert.Len(t, c.Items, 1)
	assert.Equal(t, storeA, *c.Store)
}

func TestAddLineDoesNotMutateInput(t *testing.T) {
	c, err := AddLine(New(), storeA, domain.CartLine{Product: "P1", Color: "Red", Quantity: 1})
	require.NoError(t, err)

	_, err = AddLine(c, storeA, domain.CartLine{Product: "P1", Color: "Red", Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Items[0].Quantity)
}

func TestAddLineValidates(t *testing.T) {
	_, err := AddLine(New(), storeA, domain.CartLine{Product: "P1", Color: "Red", Quantity: 0})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = AddLine(New(), domain.StoreRef{}, domain.CartLine{Product: "P1", Color: "Red", Quantity: 1})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestSetQuantityClampsAndEmpties(t *testing.T) {
	c, err := AddLine(New(), storeA, domain.CartLine{Product: "P1", Color: "Red", Quantity: 2})
	require.NoError(t, err)
	key := c.Items[0].Key

	c = SetQuantity(c, key, 7)
	assert.Equal(t, 7, c.Items[0].Quantity)

	c = SetQuantity(c, "missing", 3)
	assert.Len(t, c.Items, 1)

	c = SetQuantity(c, key, -4)
	assert.Empty(t, c.Items)
	assert.Nil(t, c.Store)
}

func TestRemoveLineReturnsToEmptyState(t *testing.T) {
	c, _ := AddLine(New(), storeA, domain.CartLine{Product: "P1", Color: "Red", Quantity: 1})
	c, _ = AddLine(c, storeA, domain.CartLine{Product: "P2", Color: "Red", Quantity: 1})

	c = RemoveLine(c, "p1|red|NULL")
	require.Len(t, c.Items, 1)
	assert.NotNil(t, c.Store)

	c = RemoveLine(c, "p2|red|NULL")
	assert.Empty(t, c.Items)
	assert.Nil(t, c.Store)

	// an emptied cart accepts any store again
	c, err := AddLine(c, storeB, domain.CartLine{Product: "P3", Color: "Red", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, storeB, *c.Store)
}

func TestNormalizeRepairsStoredCart(t *testing.T) {
	stored := domain.Cart{
		Store: &storeA,
		Items: []domain.CartLine{
			{Key: "stale", Product: "P1", Color: "Red", Quantity: 1},
			{Product: "p1", Color: "RED", Quantity: 2},
			{Product: "P2", Color: "Red", Quantity: 0},
		},
	}
	c := Normalize(stored)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "p1|red|NULL", c.Items[0].Key)
	assert.Equal(t, 3, c.Items[0].Quantity)

	orphan := Normalize(domain.Cart{Items: []domain.CartLine{{Product: "P1", Color: "Red", Quantity: 1}}})
	assert.Empty(t, orphan.Items)
	assert.Nil(t, orphan.Store)
}

func TestStoresRoundTripAndRecoverFromGarbage(t *testing.T) {
	ctx := context.Background()
	fileStore, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	for name, s := range map[string]Store{"memory": NewMemoryStore(), "file": fileStore} {
		t.Run(name, func(t *testing.T) {
			empty, err := s.Load(ctx, DefaultKey)
			require.NoError(t, err)
			assert.Empty(t, empty.Items)
			assert.Nil(t, empty.Store)

			c, err := AddLine(New(), storeA, domain.CartLine{Product: "iPhone 15", Color: "Black", Storage: domain.StorageFrom(128), Quantity: 2})
			require.NoError(t, err)
			require.NoError(t, s.Save(ctx, DefaultKey, c))

			loaded, err := s.Load(ctx, DefaultKey)
			require.NoError(t, err)
			assert.Equal(t, c, loaded)

			require.NoError(t, s.Delete(ctx, DefaultKey))
			loaded, err = s.Load(ctx, DefaultKey)
			require.NoError(t, err)
			assert.Empty(t, loaded.Items)
		})
	}

	require.NoError(t, os.WriteFile(fileStore.path("broken"), []byte("{not json"), 0o644))
	c, err := fileStore.Load(ctx, "broken")
	require.NoError(t, err)
	assert.Equal(t, New(), c)
}


func TestFileStoreAcceptsLongKeys(t *testing.T) {
	ctx := context.Background()
	fileStore, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	key := strings.Repeat("a", 400)
	c, err := AddLine(New(), storeA, domain.CartLine{Product: "Airpods", Color: "White", Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, fileStore.Save(ctx, key, c))

	loaded, err := fileStore.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, c, loaded)

	short := filepath.Base(fileStore.path("a"))
	assert.Len(t, filepath.Base(fileStore.path(key)), len(short))
	assert.NotEqual(t, fileStore.path(key), fileStore.path(key+"b"))
	require.NoError(t, fileStore.Delete(ctx, key))
}

package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storestock/backend/internal/domain"
	"storestock/backend/internal/store"
)

func TestInventoryQueryBuildsIdentityPredicates(t *testing.T) {
	s := NewWithPool(nil)
	id := domain.NewIdentity(domain.StoreRef{Name: "Central", Location: "Mall A"}, "iPhone  15", "Black", domain.NumericStorage(128))

	sql, args, err := s.inventoryQuery(store.IdentityFilter(id)).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "name = $1")
	assert.Contains(t, sql, "location = $2")
	assert.Contains(t, sql, "lower(regexp_replace(btrim(product)")
	assert.Contains(t, sql, "::numeric END) = $5")
	assert.Contains(t, sql, "ORDER BY id ASC")
	assert.Equal(t, []any{"Central", "Mall A", "iphone 15", "black", float64(128)}, args)
}

func TestStoragePredicateCoversEveryEmptyEncoding(t *testing.T) {
	sql, args, err := storagePredicate(domain.NoStorage()).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "storage IS NULL")
	assert.Contains(t, sql, "btrim(storage) = ''")
	assert.Contains(t, sql, "= 0")
	assert.Empty(t, args)

	sql, args, err = storagePredicate(domain.ParseStorage("128")).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "'"+domain.DecimalPattern+"'")
	assert.Equal(t, []any{128.0}, args)

	sql, args, err = storagePredicate(domain.ParseStorage(" 1TB ")).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "btrim(storage) = ?", sql)
	assert.Equal(t, []any{"1TB"}, args)
}

func TestSalesQueryAppliesFilterAndPaging(t *testing.T) {
	s := NewWithPool(nil)
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	sql, args, err := s.salesQuery(domain.SaleFilter{
		From:       from,
		Products:   []string{"iPhone 15"},
		StoreNames: []string{"Central", "Harbour"},
		Limit:      20,
		Offset:     40,
	}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "time >= $1")
	assert.Contains(t, sql, "IN ($2)")
	assert.Contains(t, sql, "name IN ($3,$4)")
	assert.Contains(t, sql, "ORDER BY time DESC, id DESC LIMIT 20 OFFSET 40")
	assert.Equal(t, []any{from, "iphone 15", "Central", "Harbour"}, args)
}

func TestStoreAgainstDatabase(t *testing.T) {
	databaseURL := os.Getenv("STORESTOCK_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set STORESTOCK_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Migrate(ctx))

	ref := domain.StoreRef{
		Name:     fmt.Sprintf("it-store-%d", time.Now().UnixNano()),
		Location: "Integration",
	}
	t.Cleanup(func() {
		_, _ = s.pool.Exec(ctx, `DELETE FROM inventory WHERE name = $1`, ref.Name)
		_, _ = s.pool.Exec(ctx, `DELETE FROM sales WHERE name = $1`, ref.Name)
	})

	for _, storage := range []domain.Storage{domain.NoStorage(), domain.ParseStorage("0")} {
		_, err := s.InsertInventory(ctx, domain.InventoryRow{
			StoreName: ref.Name, StoreLocation: ref.Location,
			Product: "iPad  Air", Color: "Blue", Storage: storage, Quantity: 2, Price: 599,
		})
		require.NoError(t, err)
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO inventory (name, location, product, color, storage, quantity, price) VALUES ($1, $2, 'ipad air', 'BLUE', '', 1, 599)`, ref.Name, ref.Location)
	require.NoError(t, err)

	id := domain.NewIdentity(ref, "iPad Air", "blue", domain.NoStorage())
	rows, err := s.ListInventory(ctx, store.IdentityFilter(id))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Less(t, rows[0].ID, rows[1].ID)

	require.NoError(t, s.CompareAndSetQuantity(ctx, rows[0].ID, 2, 0))
	err = s.CompareAndSetQuantity(ctx, rows[0].ID, 2, 0)
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.ErrorIs(t, s.CompareAndSetQuantity(ctx, -1, 0, 0), store.ErrNotFound)

	sale, err := s.InsertSale(ctx, domain.SaleRecord{
		SubmissionID: "it", Product: "iPad Air", Color: "Blue", StoreName: ref.Name,
		Quantity: 2, Price: 1198, Time: time.Now(),
	})
	require.NoError(t, err)

	sales, err := s.ListSales(ctx, domain.SaleFilter{StoreNames: []string{ref.Name}})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, sale.ID, sales[0].ID)
	assert.True(t, sales[0].Storage.IsNone())
	assert.InDelta(t, 1198, sales[0].Price, 0.001)

	products, err := s.ListStoreProducts(ctx, ref)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ipad  air", "ipad air"}, products)
}

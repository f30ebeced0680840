package store

import (
	"context"
	"errors"

	"storestock/backend/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned by CompareAndSetQuantity when the stored
	// quantity is no longer the expected one.
	ErrConflict = errors.New("conflict")
)

// InventoryFilter selects inventory rows. Store fields match exactly,
// Product and Color match after domain.NormalizeName, and a nil Storage
// matches every variant.
type InventoryFilter struct {
	StoreName     string
	StoreLocation string
	Product       string
	Color         string
	Storage       *domain.Storage
}

func IdentityFilter(id domain.Identity) InventoryFilter {
	storage := id.Storage
	return InventoryFilter{
		StoreName:     id.Store.Name,
		StoreLocation: id.Store.Location,
		Product:       id.Product,
		Color:         id.Color,
		Storage:       &storage,
	}
}

func (f InventoryFilter) Matches(row domain.InventoryRow) bool {
	if f.StoreName != "" && row.StoreName != f.StoreName {
		return false
	}
	if f.StoreLocation != "" && row.StoreLocation != f.StoreLocation {
		return false
	}
	if f.Product != "" && domain.NormalizeName(row.Product) != domain.NormalizeName(f.Product) {
		return false
	}
	if f.Color != "" && domain.NormalizeName(row.Color) != domain.NormalizeName(f.Color) {
		return false
	}
	if f.Storage != nil && !f.Storage.Equal(row.Storage) {
		return false
	}
	return true
}

type InventoryStore interface {
	// ListInventory returns matching rows ordered by id ascending.
	ListInventory(ctx context.Context, filter InventoryFilter) ([]domain.InventoryRow, error)
	CompareAndSetQuantity(ctx context.Context, rowID int64, expected int, next int) error
	InsertInventory(ctx context.Context, row domain.InventoryRow) (*domain.InventoryRow, error)
}

type SalesStore interface {
	InsertSale(ctx context.Context, sale domain.SaleRecord) (*domain.SaleRecord, error)
	// ListSales returns matching sales ordered by time descending.
	ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.SaleRecord, error)
	DistinctSaleProducts(ctx context.Context) ([]string, error)
	DistinctSaleStores(ctx context.Context) ([]string, error)
}

type CatalogStore interface {
	ListStores(ctx context.Context) ([]domain.StoreRef, error)
	// ListStoreProducts returns trimmed, lowercased, distinct, sorted names.
	ListStoreProducts(ctx context.Context, store domain.StoreRef) ([]string, error)
	ListProductColors(ctx context.Context, store domain.StoreRef, product string) ([]string, error)
}

type Repository interface {
	InventoryStore
	SalesStore
	CatalogStore
}

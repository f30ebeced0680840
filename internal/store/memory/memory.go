package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"storestock/backend/internal/domain"
	"storestock/backend/internal/store"
)

type Store struct {
	mu              sync.RWMutex
	inventory       map[int64]domain.InventoryRow
	nextInventoryID int64
	sales           []domain.SaleRecord
	nextSaleID      int64
}

var _ store.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		inventory: make(map[int64]domain.InventoryRow),
	}
}

// NewSeeded returns a store with demo inventory for two stores, including a
// split identity and the three encodings of "no storage".
func NewSeeded() *Store {
	s := New()

	central := domain.StoreRef{Name: "Central", Location: "Mall A"}
	harbour := domain.StoreRef{Name: "Harbour", Location: "Pier 3"}

	rows := []struct {
		store    domain.StoreRef
		product  string
		color    string
		storage  any
		quantity int
		price    float64
	}{
		{central, "iPhone 15", "Black", 128, 3, 799},
		{central, "iPhone 15", "Black", "128", 2, 799},
		{central, "iPhone 15", "Black", 256, 4, 899},
		{central, "iPhone 15", "Blue", 128, 5, 799},
		{central, "iPad Air", "Blue", nil, 2, 599},
		{central, "iPad Air", "Blue", "", 1, 599},
		{central, "iPad Air", "Blue", 0, 1, 599},
		{central, "AirPods", "White", nil, 10, 129},
		{harbour, "iPhone 15", "Black", 128, 6, 809},
		{harbour, "Galaxy S24", "Gray", "1TB", 2, 1099},
	}
	for _, r := range rows {
		s.nextInventoryID++
		s.inventory[s.nextInventoryID] = domain.InventoryRow{
			ID:            s.nextInventoryID,
			StoreName:     r.store.Name,
			StoreLocation: r.store.Location,
			Product:       r.product,
			Color:         r.color,
			Storage:       domain.StorageFrom(r.storage),
			Quantity:      r.quantity,
			Price:         r.price,
		}
	}

	base := time.Date(2024, 3, 1, 2, 15, 0, 0, time.UTC)
	sales := []domain.SaleRecord{
		{Product: "iPhone 15", Color: "Black", Storage: domain.NumericStorage(128), StoreName: "Central", Quantity: 1, Price: 799, Time: base},
		{Product: "AirPods", Color: "White", StoreName: "Central", Quantity: 2, Price: 258, Time: base.Add(90 * time.Minute)},
		{Product: "iPhone 15", Color: "Black", Storage: domain.NumericStorage(128), StoreName: "Harbour", Quantity: 1, Price: 809, Time: base.Add(26 * time.Hour)},
		{Product: "Galaxy S24", Color: "Gray", Storage: domain.ParseStorage("1TB"), StoreName: "Harbour", Quantity: 1, Price: 1099, Time: base.AddDate(0, 1, 0)},
	}
	for i, sale := range sales {
		s.nextSaleID++
		sale.ID = s.nextSaleID
		sale.SubmissionID = fmt.Sprintf("seed-%d", i+1)
		s.sales = append(s.sales, sale)
	}

	return s
}

func (s *Store) ListInventory(_ context.Context, filter store.InventoryFilter) ([]domain.InventoryRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.InventoryRow, 0)
	for _, row := range s.inventory {
		if filter.Matches(row) {
			out = append(out, row)
		}
	}
	slices.SortFunc(out, func(a, b domain.InventoryRow) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) CompareAndSetQuantity(_ context.Context, rowID int64, expected int, next int) error {
	if next < 0 {
		return fmt.Errorf("row %d: quantity cannot go negative (%d)", rowID, next)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.inventory[rowID]
	if !ok {
		return store.ErrNotFound
	}
	if row.Quantity != expected {
		return fmt.Errorf("%w: row %d holds %d, expected %d", store.ErrConflict, rowID, row.Quantity, expected)
	}
	row.Quantity = next
	s.inventory[rowID] = row
	return nil
}

func (s *Store) InsertInventory(_ context.Context, row domain.InventoryRow) (*domain.InventoryRow, error) {
	if row.Quantity < 0 {
		return nil, fmt.Errorf("quantity cannot be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextInventoryID++
	row.ID = s.nextInventoryID
	s.inventory[row.ID] = row
	return &row, nil
}

func (s *Store) InsertSale(_ context.Context, sale domain.SaleRecord) (*domain.SaleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSaleID++
	sale.ID = s.nextSaleID
	s.sales = append(s.sales, sale)
	return &sale, nil
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleFilter) ([]domain.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make(map[string]struct{}, len(filter.Products))
	for _, p := range filter.Products {
		products[domain.NormalizeName(p)] = struct{}{}
	}
	stores := make(map[string]struct{}, len(filter.StoreNames))
	for _, name := range filter.StoreNames {
		stores[name] = struct{}{}
	}

	out := make([]domain.SaleRecord, 0)
	for _, sale := range s.sales {
		if !filter.From.IsZero() && sale.Time.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && sale.Time.After(filter.To) {
			continue
		}
		if len(products) > 0 {
			if _, ok := products[domain.NormalizeName(sale.Product)]; !ok {
				continue
			}
		}
		if len(stores) > 0 {
			if _, ok := stores[sale.StoreName]; !ok {
				continue
			}
		}
		out = append(out, sale)
	}

	slices.SortStableFunc(out, func(a, b domain.SaleRecord) int {
		if c := b.Time.Compare(a.Time); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []domain.SaleRecord{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) DistinctSaleProducts(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := make([]string, 0, len(s.sales))
	for _, sale := range s.sales {
		values = append(values, sale.Product)
	}
	return distinctSorted(values), nil
}

func (s *Store) DistinctSaleStores(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := make([]string, 0, len(s.sales))
	for _, sale := range s.sales {
		values = append(values, sale.StoreName)
	}
	return distinctSorted(values), nil
}

func (s *Store) ListStores(_ context.Context) ([]domain.StoreRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[domain.StoreRef]struct{})
	out := make([]domain.StoreRef, 0)
	for _, row := range s.inventory {
		ref := row.Store()
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	slices.SortFunc(out, func(a, b domain.StoreRef) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.Location, b.Location)
	})
	return out, nil
}

func (s *Store) ListStoreProducts(_ context.Context, ref domain.StoreRef) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := make([]string, 0)
	for _, row := range s.inventory {
		if row.Store().Equal(ref) {
			values = append(values, strings.ToLower(strings.TrimSpace(row.Product)))
		}
	}
	return distinctSorted(values), nil
}

func (s *Store) ListProductColors(_ context.Context, ref domain.StoreRef, product string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := domain.NormalizeName(product)
	values := make([]string, 0)
	for _, row := range s.inventory {
		if row.Store().Equal(ref) && domain.NormalizeName(row.Product) == want {
			values = append(values, strings.ToLower(strings.TrimSpace(row.Color)))
		}
	}
	return distinctSorted(values), nil
}

// Snapshot returns a copy of every inventory row ordered by id.
func (s *Store) Snapshot() []domain.InventoryRow {
	rows, _ := s.ListInventory(context.Background(), store.InventoryFilter{})
	return rows
}

func distinctSorted(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		out = append(out, v)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storestock/backend/internal/domain"
	"storestock/backend/internal/store"
)

//go:embed schema.sql
var schemaSQL string

var tracer = otel.Tracer("storestock/backend/internal/store/postgres")

// numericStorage evaluates to the storage column as a number, or NULL when
// the column does not hold a plain decimal.
const numericStorage = `(CASE WHEN btrim(storage) ~ '` + domain.DecimalPattern + `' THEN btrim(storage)::numeric END)`

var inventoryColumns = []string{
	"id", "name", "location", "product", "color", "storage", "quantity", "price::float8 AS price",
}

var saleColumns = []string{
	"id", "submission_id", "product", "color", "storage", "name", "quantity", "price::float8 AS price", "time",
}

type Store struct {
	pool    *pgxpool.Pool
	builder squirrel.StatementBuilderType
}

var _ store.Repository = (*Store)(nil)

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := NewPool(ctx, DefaultPoolConfig(databaseURL))
	if err != nil {
		return nil, err
	}
	return NewWithPool(pool), nil
}

func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate creates the inventory and sales tables when they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func normalizedColumn(column string) string {
	return "lower(regexp_replace(btrim(" + column + "), '\\s+', ' ', 'g'))"
}

func storagePredicate(storage domain.Storage) squirrel.Sqlizer {
	switch storage.Kind() {
	case domain.NumericVariant:
		n, _ := storage.Number()
		return squirrel.Expr(numericStorage+" = ?", n)
	case domain.TextVariant:
		return squirrel.Expr("btrim(storage) = ?", storage.String())
	default:
		return squirrel.Or{
			squirrel.Eq{"storage": nil},
			squirrel.Expr("btrim(storage) = ''"),
			squirrel.Expr(numericStorage + " = 0"),
		}
	}
}

func (s *Store) inventoryQuery(filter store.InventoryFilter) squirrel.SelectBuilder {
	q := s.builder.Select(inventoryColumns...).From("inventory").OrderBy("id ASC")
	if filter.StoreName != "" {
		q = q.Where(squirrel.Eq{"name": filter.StoreName})
	}
	if filter.StoreLocation != "" {
		q = q.Where(squirrel.Eq{"location": filter.StoreLocation})
	}
	if filter.Product != "" {
		q = q.Where(squirrel.Eq{normalizedColumn("product"): domain.NormalizeName(filter.Product)})
	}
	if filter.Color != "" {
		q = q.Where(squirrel.Eq{normalizedColumn("color"): domain.NormalizeName(filter.Color)})
	}
	if filter.Storage != nil {
		q = q.Where(storagePredicate(*filter.Storage))
	}
	return q
}

func (s *Store) ListInventory(ctx context.Context, filter store.InventoryFilter) ([]domain.InventoryRow, error) {
	ctx, span := tracer.Start(ctx, "postgres.ListInventory")
	defer span.End()

	sql, args, err := s.inventoryQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build inventory query: %w", err)
	}

	var rows []domain.InventoryRow
	if err := pgxscan.Select(ctx, s.pool, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}

	// SQL narrows the set; the domain rules decide.
	out := make([]domain.InventoryRow, 0, len(rows))
	for _, row := range rows {
		if filter.Matches(row) {
			out = append(out, row)
		}
	}
	span.SetAttributes(attribute.Int("inventory.rows", len(out)))
	return out, nil
}

func (s *Store) CompareAndSetQuantity(ctx context.Context, rowID int64, expected int, next int) error {
	ctx, span := tracer.Start(ctx, "postgres.CompareAndSetQuantity", trace.WithAttributes(
		attribute.Int64("inventory.row_id", rowID),
	))
	defer span.End()

	if next < 0 {
		return fmt.Errorf("row %d: quantity cannot go negative (%d)", rowID, next)
	}

	sql, args, err := s.builder.Update("inventory").
		Set("quantity", next).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": rowID, "quantity": expected}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build quantity update: %w", err)
	}

	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update quantity: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM inventory WHERE id = $1)`, rowID).Scan(&exists); err != nil {
		return fmt.Errorf("check row %d: %w", rowID, err)
	}
	if !exists {
		return store.ErrNotFound
	}
	return fmt.Errorf("%w: row %d no longer holds %d", store.ErrConflict, rowID, expected)
}

func (s *Store) InsertInventory(ctx context.Context, row domain.InventoryRow) (*domain.InventoryRow, error) {
	if row.Quantity < 0 {
		return nil, fmt.Errorf("quantity cannot be negative")
	}

	sql, args, err := s.builder.Insert("inventory").
		Columns("name", "location", "product", "color", "storage", "quantity", "price").
		Values(row.StoreName, row.StoreLocation, strings.TrimSpace(row.Product), strings.TrimSpace(row.Color), row.Storage, row.Quantity, row.Price).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build inventory insert: %w", err)
	}

	if err := s.pool.QueryRow(ctx, sql, args...).Scan(&row.ID); err != nil {
		return nil, fmt.Errorf("insert inventory: %w", err)
	}
	return &row, nil
}

func (s *Store) InsertSale(ctx context.Context, sale domain.SaleRecord) (*domain.SaleRecord, error) {
	ctx, span := tracer.Start(ctx, "postgres.InsertSale")
	defer span.End()

	sql, args, err := s.builder.Insert("sales").
		Columns("submission_id", "product", "color", "storage", "name", "quantity", "price", "time").
		Values(sale.SubmissionID, sale.Product, sale.Color, sale.Storage, sale.StoreName, sale.Quantity, sale.Price, sale.Time.UTC()).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sale insert: %w", err)
	}

	if err := s.pool.QueryRow(ctx, sql, args...).Scan(&sale.ID); err != nil {
		return nil, fmt.Errorf("insert sale: %w", err)
	}
	return &sale, nil
}

func (s *Store) salesQuery(filter domain.SaleFilter) squirrel.SelectBuilder {
	q := s.builder.Select(saleColumns...).From("sales").OrderBy("time DESC", "id DESC")
	if !filter.From.IsZero() {
		q = q.Where(squirrel.GtOrEq{"time": filter.From.UTC()})
	}
	if !filter.To.IsZero() {
		q = q.Where(squirrel.LtOrEq{"time": filter.To.UTC()})
	}
	if len(filter.Products) > 0 {
		products := make([]string, 0, len(filter.Products))
		for _, p := range filter.Products {
			products = append(products, domain.NormalizeName(p))
		}
		q = q.Where(squirrel.Eq{normalizedColumn("product"): products})
	}
	if len(filter.StoreNames) > 0 {
		q = q.Where(squirrel.Eq{"name": filter.StoreNames})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	return q
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.SaleRecord, error) {
	ctx, span := tracer.Start(ctx, "postgres.ListSales")
	defer span.End()

	sql, args, err := s.salesQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sales query: %w", err)
	}

	sales := make([]domain.SaleRecord, 0)
	if err := pgxscan.Select(ctx, s.pool, &sales, sql, args...); err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	span.SetAttributes(attribute.Int("sales.rows", len(sales)))
	return sales, nil
}

func (s *Store) DistinctSaleProducts(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, s.builder.Select("DISTINCT btrim(product)").From("sales").
		Where("btrim(product) <> ''").
		OrderBy("1"))
}

func (s *Store) DistinctSaleStores(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, s.builder.Select("DISTINCT name").From("sales").
		Where("btrim(name) <> ''").
		OrderBy("1"))
}

func (s *Store) ListStores(ctx context.Context) ([]domain.StoreRef, error) {
	sql, args, err := s.builder.Select("DISTINCT name", "location").From("inventory").
		OrderBy("name", "location").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build store query: %w", err)
	}

	stores := make([]domain.StoreRef, 0)
	if err := pgxscan.Select(ctx, s.pool, &stores, sql, args...); err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	return stores, nil
}

func (s *Store) ListStoreProducts(ctx context.Context, ref domain.StoreRef) ([]string, error) {
	return s.distinct(ctx, s.builder.Select("DISTINCT lower(btrim(product))").From("inventory").
		Where(squirrel.Eq{"name": ref.Name, "location": ref.Location}).
		Where("btrim(product) <> ''").
		OrderBy("1"))
}

func (s *Store) ListProductColors(ctx context.Context, ref domain.StoreRef, product string) ([]string, error) {
	return s.distinct(ctx, s.builder.Select("DISTINCT lower(btrim(color))").From("inventory").
		Where(squirrel.Eq{"name": ref.Name, "location": ref.Location}).
		Where(squirrel.Eq{normalizedColumn("product"): domain.NormalizeName(product)}).
		Where("btrim(color) <> ''").
		OrderBy("1"))
}

func (s *Store) distinct(ctx context.Context, q squirrel.SelectBuilder) ([]string, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build distinct query: %w", err)
	}

	values := make([]string, 0)
	if err := pgxscan.Select(ctx, s.pool, &values, sql, args...); err != nil {
		return nil, fmt.Errorf("distinct query: %w", err)
	}
	return values, nil
}

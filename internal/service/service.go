package service

import (
	"context"
	"math"
	"strings"
	"time"

	"storestock/backend/internal/allocation"
	"storestock/backend/internal/apperror"
	"storestock/backend/internal/cart"
	"storestock/backend/internal/domain"
	"storestock/backend/internal/logger"
	"storestock/backend/internal/metrics"
	"storestock/backend/internal/revenue"
	"storestock/backend/internal/store"
)

type Options struct {
	Reporter     *revenue.Reporter
	Carts        cart.Store
	Metrics      *metrics.Metrics
	RankingLimit int
}

type Service struct {
	repo         store.Repository
	engine       *allocation.Engine
	reporter     *revenue.Reporter
	carts        cart.Store
	metrics      *metrics.Metrics
	rankingLimit int
	now          func() time.Time
}

func New(repo store.Repository, opts Options) *Service {
	if opts.Reporter == nil {
		opts.Reporter = revenue.NewReporter(nil, 0, revenue.DefaultOffsetHours, opts.Metrics)
	}
	if opts.Carts == nil {
		opts.Carts = cart.NewMemoryStore()
	}
	if opts.RankingLimit <= 0 {
		opts.RankingLimit = revenue.DefaultRankingLimit
	}

	return &Service{
		repo:         repo,
		engine:       allocation.NewEngine(repo, opts.Metrics),
		reporter:     opts.Reporter,
		carts:        opts.Carts,
		metrics:      opts.Metrics,
		rankingLimit: opts.RankingLimit,
		now:          time.Now,
	}
}

func (s *Service) OffsetHours() int {
	return s.reporter.OffsetHours()
}

func (s *Service) InsertInventory(ctx context.Context, req domain.InventoryCreateRequest) (*domain.InventoryRow, error) {
	req.Store.Name = strings.TrimSpace(req.Store.Name)
	req.Store.Location = strings.TrimSpace(req.Store.Location)
	req.Product = strings.TrimSpace(req.Product)
	req.Color = strings.TrimSpace(req.Color)

	if req.Store.Name == "" || req.Store.Location == "" {
		return nil, apperror.NewValidation("store name and location are required")
	}
	if req.Product == "" || req.Color == "" {
		return nil, apperror.NewValidation("product and color are required")
	}
	if req.Quantity < 0 {
		return nil, apperror.NewValidation("quantity cannot be negative")
	}
	if req.Price < 0 || math.IsNaN(req.Price) || math.IsInf(req.Price, 0) {
		return nil, apperror.NewValidation("price must be a non-negative number")
	}

	row, err := s.repo.InsertInventory(ctx, domain.InventoryRow{
		StoreName:     req.Store.Name,
		StoreLocation: req.Store.Location,
		Product:       req.Product,
		Color:         req.Color,
		Storage:       req.Storage,
		Quantity:      req.Quantity,
		Price:         req.Price,
	})
	if err != nil {
		return nil, apperror.NewStoreUnavailable(err)
	}

	logger.Info(ctx, "inventory row inserted",
		"component", "service",
		"row_id", row.ID,
		"store", row.Store().Label(),
		"product", row.Product,
		"quantity", row.Quantity,
	)
	return row, nil
}

func (s *Service) Deduct(ctx context.Context, req domain.DeductRequest) (*domain.Allocation, error) {
	return s.engine.Deduct(ctx, req.Identity(), req.Quantity)
}

func (s *Service) Available(ctx context.Context, id domain.Identity) (*domain.AvailabilityResponse, error) {
	return s.engine.Available(ctx, id)
}

func (s *Service) ListStores(ctx context.Context) ([]domain.CatalogStore, error) {
	refs, err := s.repo.ListStores(ctx)
	if err != nil {
		return nil, apperror.NewStoreUnavailable(err)
	}

	stores := make([]domain.CatalogStore, 0, len(refs))
	for _, ref := range refs {
		stores = append(stores, domain.CatalogStore{
			Name:     ref.Name,
			Location: ref.Location,
			Label:    ref.Label(),
		})
	}
	return stores, nil
}

// StoreProducts lists the products a store carries, capitalized for display.
func (s *Service) StoreProducts(ctx context.Context, ref domain.StoreRef) ([]string, error) {
	if ref.Name == "" || ref.Location == "" {
		return nil, apperror.NewValidation("store name and location are required")
	}
	products, err := s.repo.ListStoreProducts(ctx, ref)
	if err != nil {
		return nil, apperror.NewStoreUnavailable(err)
	}
	return domain.CapitalizeAll(products), nil
}

func (s *Service) ProductColors(ctx context.Context, ref domain.StoreRef, product string) ([]string, error) {
	if ref.Name == "" || ref.Location == "" {
		return nil, apperror.NewValidation("store name and location are required")
	}
	if strings.TrimSpace(product) == "" {
		return nil, apperror.NewValidation("product is required")
	}
	colors, err := s.repo.ListProductColors(ctx, ref, product)
	if err != nil {
		return nil, apperror.NewStoreUnavailable(err)
	}
	return domain.CapitalizeAll(colors), nil
}

package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"storestock/backend/internal/apperror"
	"storestock/backend/internal/domain"
	"storestock/backend/internal/logger"
	"storestock/backend/internal/revenue"
	"storestock/backend/internal/xid"
)

// SubmitSale deducts stock for every line and records one sale per line.
// Either every line is deducted and recorded, or every deduction made so far
// is restored before the error is returned.
func (s *Service) SubmitSale(ctx context.Context, sub domain.SaleSubmission) (*domain.SaleReceipt, error) {
	if err := validateSubmission(sub); err != nil {
		return nil, err
	}

	saleTime := s.now().UTC()
	if sub.Time != nil && !sub.Time.IsZero() {
		saleTime = sub.Time.UTC()
	}

	allocations := make([]*domain.Allocation, 0, len(sub.Lines))
	records := make([]domain.SaleRecord, 0, len(sub.Lines))
	for _, line := range sub.Lines {
		id := domain.NewIdentity(sub.Store, line.Product, line.Color, line.Storage)

		price, err := s.linePrice(ctx, id, line)
		if err != nil {
			s.restoreAll(ctx, allocations)
			return nil, err
		}

		alloc, err := s.engine.Deduct(ctx, id, line.Quantity)
		if err != nil {
			s.restoreAll(ctx, allocations)
			return nil, err
		}
		allocations = append(allocations, alloc)

		records = append(records, domain.SaleRecord{
			Product:   id.Product,
			Color:     id.Color,
			Storage:   id.Storage,
			StoreName: sub.Store.Name,
			Quantity:  line.Quantity,
			Price:     price,
			Time:      saleTime,
		})
	}

	submissionID := xid.New("sale")
	saved := make([]domain.SaleRecord, 0, len(records))
	total := decimal.Zero
	for _, record := range records {
		record.SubmissionID = submissionID
		inserted, err := s.repo.InsertSale(ctx, record)
		if err != nil {
			s.restoreAll(ctx, allocations)
			logger.Error(ctx, "sale insert failed after deduction",
				"component", "service",
				"submission_id", submissionID,
				"inserted", len(saved),
				"error", err,
			)
			return nil, apperror.NewStoreUnavailable(err).WithDetail("submission_id", submissionID)
		}
		saved = append(saved, *inserted)
		total = total.Add(decimal.NewFromFloat(inserted.Price))
		s.metrics.ObserveSale(inserted.Price)
	}

	receipt := &domain.SaleReceipt{
		SubmissionID: submissionID,
		Store:        sub.Store,
		Records:      saved,
		Allocations:  make([]domain.Allocation, 0, len(allocations)),
		TotalPrice:   total.Round(2).InexactFloat64(),
	}
	for _, alloc := range allocations {
		receipt.Allocations = append(receipt.Allocations, *alloc)
	}

	logger.Info(ctx, "sale submitted",
		"component", "service",
		"submission_id", submissionID,
		"store", sub.Store.Label(),
		"lines", len(saved),
		"total", receipt.TotalPrice,
	)
	return receipt, nil
}

func validateSubmission(sub domain.SaleSubmission) error {
	if strings.TrimSpace(sub.Store.Name) == "" || strings.TrimSpace(sub.Store.Location) == "" {
		return apperror.NewInvalidRecord("store name and location are required")
	}
	if len(sub.Lines) == 0 {
		return apperror.NewInvalidRecord("at least one line is required")
	}
	for i, line := range sub.Lines {
		if strings.TrimSpace(line.Product) == "" {
			return apperror.NewInvalidRecord(fmt.Sprintf("line %d: product is required", i+1))
		}
		if strings.TrimSpace(line.Color) == "" {
			return apperror.NewInvalidRecord(fmt.Sprintf("line %d: color is required", i+1))
		}
		if line.Quantity <= 0 {
			return apperror.NewInvalidRecord(fmt.Sprintf("line %d: quantity must be greater than zero", i+1))
		}
		if line.Price != nil && (*line.Price < 0 || math.IsNaN(*line.Price) || math.IsInf(*line.Price, 0)) {
			return apperror.NewInvalidRecord(fmt.Sprintf("line %d: price must be a non-negative number", i+1))
		}
	}
	return nil
}

// linePrice is the given line total, or the unit price of the first row of
// the identity times the quantity.
func (s *Service) linePrice(ctx context.Context, id domain.Identity, line domain.SaleLine) (float64, error) {
	if line.Price != nil {
		return *line.Price, nil
	}
	rows, err := s.engine.ResolveCandidates(ctx, id)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, apperror.NewNotFound(id)
	}
	unit := decimal.NewFromFloat(rows[0].Price)
	return unit.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2).InexactFloat64(), nil
}

// restoreAll undoes allocations newest first. Failures are logged; the
// caller already has an error to return.
func (s *Service) restoreAll(ctx context.Context, allocations []*domain.Allocation) {
	ctx = context.WithoutCancel(ctx)
	for i := len(allocations) - 1; i >= 0; i-- {
		if err := s.engine.Restore(ctx, allocations[i]); err != nil {
			logger.Error(ctx, "restoring deducted stock failed",
				"component", "service",
				"identity", allocations[i].Identity.String(),
				"units", allocations[i].Deducted(),
				"error", err,
			)
		}
	}
}

// saleFilter resolves query dates into instants in the reporting zone.
func (s *Service) saleFilter(q domain.SalesQuery) (domain.SaleFilter, error) {
	filter := domain.SaleFilter{
		Products:   compact(q.Products),
		StoreNames: compact(q.StoreNames),
		Limit:      max(q.Limit, 0),
		Offset:     max(q.Offset, 0),
	}

	start, end := strings.TrimSpace(q.StartDate), strings.TrimSpace(q.EndDate)
	if start == "" {
		start = end
	}
	if end == "" {
		end = start
	}
	if start == "" {
		return filter, nil
	}

	from, _, err := revenue.DayBounds(start, s.OffsetHours())
	if err != nil {
		return filter, apperror.NewValidation(err.Error())
	}
	_, to, err := revenue.DayBounds(end, s.OffsetHours())
	if err != nil {
		return filter, apperror.NewValidation(err.Error())
	}
	if to.Before(from) {
		return filter, apperror.NewValidation("end_date must not be before start_date")
	}
	filter.From, filter.To = from, to
	return filter, nil
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (s *Service) ListSales(ctx context.Context, q domain.SalesQuery) ([]domain.SaleRecord, error) {
	filter, err := s.saleFilter(q)
	if err != nil {
		return nil, err
	}
	sales, err := s.repo.ListSales(ctx, filter)
	if err != nil {
		return nil, apperror.NewStoreUnavailable(err)
	}
	return sales, nil
}

// SalesStats summarizes every sale the query matches; paging is ignored.
func (s *Service) SalesStats(ctx context.Context, q domain.SalesQuery) (domain.SalesStats, error) {
	q.Limit, q.Offset = 0, 0
	sales, err := s.ListSales(ctx, q)
	if err != nil {
		return domain.SalesStats{}, err
	}
	return revenue.Summarize(sales), nil
}

func (s *Service) DistinctProducts(ctx context.Context) ([]string, error) {
	products, err := s.repo.DistinctSaleProducts(ctx)
	if err != nil {
		return nil, apperror.NewStoreUnavailable(err)
	}
	return products, nil
}

func (s *Service) DistinctStores(ctx context.Context) ([]string, error) {
	stores, err := s.repo.DistinctSaleStores(ctx)
	if err != nil {
		return nil, apperror.NewStoreUnavailable(err)
	}
	return stores, nil
}

func (s *Service) RevenueReport(ctx context.Context, q domain.SalesQuery, granularity string, day string) (*domain.RevenueReport, error) {
	g, ok := revenue.ParseGranularity(strings.ToLower(strings.TrimSpace(granularity)))
	if !ok {
		return nil, apperror.NewValidation("granularity must be daily, monthly or hourly")
	}
	q.Limit, q.Offset = 0, 0
	filter, err := s.saleFilter(q)
	if err != nil {
		return nil, err
	}
	return s.reporter.Revenue(ctx, g, strings.TrimSpace(day), filter, s.loader(filter))
}

func (s *Service) ProductRanking(ctx context.Context, q domain.SalesQuery, sortKey string, limit int) (*domain.RankingResult, error) {
	key, ok := revenue.ParseSortKey(sortKey)
	if !ok {
		return nil, apperror.NewValidation("sort must be revenue, quantity, stores or price")
	}
	if limit <= 0 {
		limit = s.rankingLimit
	}
	q.Limit, q.Offset = 0, 0
	filter, err := s.saleFilter(q)
	if err != nil {
		return nil, err
	}
	return s.reporter.Ranking(ctx, key, limit, filter, s.loader(filter))
}

func (s *Service) loader(filter domain.SaleFilter) revenue.Loader {
	return func(ctx context.Context) ([]domain.SaleRecord, error) {
		return s.repo.ListSales(ctx, filter)
	}
}

package revenue

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"time"

	"storestock/backend/internal/apperror"
	"storestock/backend/internal/cache"
	"storestock/backend/internal/domain"
	"storestock/backend/internal/logger"
	"storestock/backend/internal/metrics"
)

// Loader fetches the sale records a report is computed from.
type Loader func(ctx context.Context) ([]domain.SaleRecord, error)

// Reporter computes reports over loaded sale records and keeps the results
// in a short-lived cache.
type Reporter struct {
	cache       cache.ReportCache
	cacheTTL    time.Duration
	offsetHours int
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewReporter(cacheStore cache.ReportCache, cacheTTL time.Duration, offsetHours int, m *metrics.Metrics) *Reporter {
	if cacheStore == nil {
		cacheStore = cache.NoopReportCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &Reporter{
		cache:       cacheStore,
		cacheTTL:    cacheTTL,
		offsetHours: offsetHours,
		metrics:     m,
		now:         time.Now,
	}
}

func (r *Reporter) OffsetHours() int {
	return r.offsetHours
}

// Revenue builds a daily, monthly or hourly report. Hourly reports need day
// (YYYY-MM-DD) and cover only that local day.
func (r *Reporter) Revenue(ctx context.Context, granularity domain.Granularity, day string, filter domain.SaleFilter, load Loader) (*domain.RevenueReport, error) {
	if granularity == domain.GranularityHourly && day == "" {
		return nil, apperror.NewValidation("date is required for hourly revenue")
	}

	key := r.cacheKey("revenue", map[string]any{
		"granularity": granularity,
		"day":         day,
		"filter":      filter,
		"offset":      r.offsetHours,
	})
	var cached domain.RevenueReport
	if ok, err := r.cache.Get(ctx, key, &cached); err == nil && ok {
		return &cached, nil
	} else if err != nil {
		logger.Warn(ctx, "report cache read failed", "component", "revenue", "error", err)
	}

	records, err := loadRecords(ctx, load)
	if err != nil {
		return nil, err
	}

	var (
		buckets []domain.RevenueBucket
		skipped int
	)
	if granularity == domain.GranularityHourly {
		buckets, skipped, err = HourlyForDay(records, day, r.offsetHours)
		if err != nil {
			return nil, apperror.NewValidation(err.Error())
		}
	} else {
		buckets, skipped = Aggregate(records, granularity, r.offsetHours)
	}
	if skipped > 0 {
		r.metrics.ObserveSkippedRecords(skipped)
		logger.Warn(ctx, "sale records skipped during aggregation",
			"component", "revenue",
			"skipped", skipped,
			"granularity", granularity,
		)
	}

	report := &domain.RevenueReport{
		Granularity: granularity,
		Date:        day,
		OffsetHours: r.offsetHours,
		Buckets:     buckets,
		Total:       TotalOf(buckets),
		GeneratedAt: r.now().UTC(),
	}
	r.store(ctx, key, report)
	return report, nil
}

func (r *Reporter) Ranking(ctx context.Context, sortKey domain.RankSortKey, limit int, filter domain.SaleFilter, load Loader) (*domain.RankingResult, error) {
	key := r.cacheKey("ranking", map[string]any{
		"sort":   sortKey,
		"limit":  limit,
		"filter": filter,
	})
	var cached domain.RankingResult
	if ok, err := r.cache.Get(ctx, key, &cached); err == nil && ok {
		return &cached, nil
	}

	records, err := loadRecords(ctx, load)
	if err != nil {
		return nil, err
	}

	result := RankBy(records, sortKey, limit)
	r.store(ctx, key, &result)
	return &result, nil
}

func (r *Reporter) store(ctx context.Context, key string, value any) {
	if err := r.cache.Set(ctx, key, value, r.cacheTTL); err != nil {
		logger.Warn(ctx, "report cache write failed", "component", "revenue", "error", err)
	}
}

func (r *Reporter) cacheKey(kind string, parts map[string]any) string {
	payload, _ := json.Marshal(parts)
	sum := sha1.Sum(payload)
	return "report:" + kind + ":" + hex.EncodeToString(sum[:])
}

func loadRecords(ctx context.Context, load Loader) ([]domain.SaleRecord, error) {
	records, err := load(ctx)
	if err != nil {
		if _, ok := apperror.AsAppError(err); ok {
			return nil, err
		}
		return nil, apperror.NewStoreUnavailable(err)
	}
	return records, nil
}

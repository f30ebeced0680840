package revenue

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storestock/backend/internal/domain"
)

func sale(ts string, price float64) domain.SaleRecord {
	t, _ := time.Parse(time.RFC3339, ts)
	return domain.SaleRecord{Product: "P", StoreName: "S", Quantity: 1, Price: price, Time: t}
}

func TestBucketByDailyAppliesOffset(t *testing.T) {
	records := []domain.SaleRecord{
		sale("2024-03-01T20:00:00Z", 10),
		sale("2024-03-01T10:00:00Z", 5.5),
		sale("2024-03-02T01:00:00Z", 4.5),
	}

	buckets := BucketBy(records, domain.GranularityDaily, 8)
	assert.Equal(t, []domain.RevenueBucket{
		{Key: "2024-03-01", Revenue: 5.5},
		{Key: "2024-03-02", Revenue: 14.5},
	}, buckets)

	utc := BucketBy(records, domain.GranularityDaily, 0)
	assert.Equal(t, []domain.RevenueBucket{
		{Key: "2024-03-01", Revenue: 15.5},
		{Key: "2024-03-02", Revenue: 4.5},
	}, utc)
}

func TestBucketByMonthlyCrossesMonthBoundary(t *testing.T) {
	records := []domain.SaleRecord{
		sale("2024-01-31T18:00:00Z", 100),
		sale("2024-01-15T00:00:00Z", 50),
		sale("2023-12-31T23:00:00Z", 1),
	}
	assert.Equal(t, []domain.RevenueBucket{
		{Key: "2024-01", Revenue: 51},
		{Key: "2024-02", Revenue: 100},
	}, BucketBy(records, domain.GranularityMonthly, 8))
}

func TestBucketByHourlyAlwaysHas24Buckets(t *testing.T) {
	buckets := BucketBy(nil, domain.GranularityHourly, 8)
	require.Len(t, buckets, 24)
	for i, b := range buckets {
		assert.Equal(t, 0.0, b.Revenue)
		if i > 0 {
			assert.Less(t, buckets[i-1].Key, b.Key)
		}
	}
	assert.Equal(t, "00:00", buckets[0].Key)
	assert.Equal(t, "23:00", buckets[23].Key)
}

func TestBucketBySkipsMissingTimesAndZeroesBadPrices(t *testing.T) {
	records := []domain.SaleRecord{
		{Product: "P", Price: 99},
		sale("2024-03-01T00:00:00Z", math.NaN()),
		sale("2024-03-01T01:00:00Z", 3),
	}
	buckets, skipped := Aggregate(records, domain.GranularityDaily, 0)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, []domain.RevenueBucket{{Key: "2024-03-01", Revenue: 3}}, buckets)
}

func TestBucketByRoundsAccumulatedSumHalfAwayFromZero(t *testing.T) {
	records := []domain.SaleRecord{
		sale("2024-03-01T00:00:00Z", 0.1),
		sale("2024-03-01T00:10:00Z", 0.2),
		sale("2024-03-02T00:00:00Z", 1.005),
		sale("2024-03-03T00:00:00Z", 0.0625),
		sale("2024-03-03T00:00:00Z", 0.0625),
		sale("2024-03-04T00:00:00Z", -0.125),
	}
	buckets := BucketBy(records, domain.GranularityDaily, 0)
	assert.Equal(t, []domain.RevenueBucket{
		{Key: "2024-03-01", Revenue: 0.3},
		{Key: "2024-03-02", Revenue: 1.01},
		{Key: "2024-03-03", Revenue: 0.13},
		{Key: "2024-03-04", Revenue: -0.13},
	}, buckets)
}

func TestBucketByIsRepeatable(t *testing.T) {
	records := []domain.SaleRecord{
		sale("2024-03-01T00:00:00Z", 19.99),
		sale("2024-03-01T05:00:00Z", 0.01),
		sale("2024-03-01T07:00:00Z", 33.333),
	}
	first := BucketBy(records, domain.GranularityDaily, 8)
	second := BucketBy(records, domain.GranularityDaily, 8)
	require.Len(t, first, 1)
	assert.Equal(t, math.Float64bits(first[0].Revenue), math.Float64bits(second[0].Revenue))
}

func TestHourlyForDayKeepsOnlyThatLocalDay(t *testing.T) {
	records := []domain.SaleRecord{
		sale("2024-03-01T02:15:00Z", 799),
		sale("2024-03-01T02:45:00Z", 1),
		sale("2024-03-01T17:00:00Z", 500),
		sale("2024-02-29T15:59:59Z", 7),
	}
	buckets, _, err := HourlyForDay(records, "2024-03-01", 8)
	require.NoError(t, err)
	require.Len(t, buckets, 24)
	assert.Equal(t, domain.RevenueBucket{Key: "10:00", Revenue: 800}, buckets[10])
	assert.Equal(t, 800.0, TotalOf(buckets))

	_, _, err = HourlyForDay(records, "03/01/2024", 8)
	assert.Error(t, err)
}

func TestDayBounds(t *testing.T) {
	start, end, err := DayBounds("2024-03-01", 8)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 16, 0, 0, 0, time.UTC), start.UTC())
	assert.Equal(t, time.Date(2024, 3, 1, 15, 59, 59, 999999999, time.UTC), end.UTC())
}

func TestSummarize(t *testing.T) {
	records := []domain.SaleRecord{
		{Quantity: 2, Price: 10.005},
		{Quantity: 3, Price: math.Inf(1)},
		{Quantity: 1, Price: 5},
	}
	assert.Equal(t, domain.SalesStats{TotalRecords: 3, TotalRevenue: 15.01, TotalQuantity: 6}, Summarize(records))
}

func TestParseGranularity(t *testing.T) {
	g, ok := ParseGranularity("")
	assert.True(t, ok)
	assert.Equal(t, domain.GranularityDaily, g)
	_, ok = ParseGranularity("weekly")
	assert.False(t, ok)
}

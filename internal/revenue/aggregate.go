// Package revenue turns sale records into time-bucketed revenue and product
// rankings. Every function here is pure and safe to call concurrently on
// independent record batches.
package revenue

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"storestock/backend/internal/domain"
)

const DefaultOffsetHours = 8

const dayLayout = "2006-01-02"

// Zone is the fixed reporting zone for an offset in hours.
func Zone(offsetHours int) *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", offsetHours), offsetHours*3600)
}

func ParseGranularity(raw string) (domain.Granularity, bool) {
	switch g := domain.Granularity(raw); g {
	case domain.GranularityDaily, domain.GranularityMonthly, domain.GranularityHourly:
		return g, true
	case "":
		return domain.GranularityDaily, true
	default:
		return "", false
	}
}

// DayBounds returns the first and last instant of a local calendar day.
func DayBounds(day string, offsetHours int) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(dayLayout, day, Zone(offsetHours))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", day)
	}
	return start, start.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}

// BucketBy sums sale prices per day, month or hour of day in the zone given
// by offsetHours. Records without a timestamp are skipped and a price that is
// not a finite number counts as 0. Buckets are sorted by key; hourly output
// always has 24 buckets.
func BucketBy(records []domain.SaleRecord, granularity domain.Granularity, offsetHours int) []domain.RevenueBucket {
	buckets, _ := Aggregate(records, granularity, offsetHours)
	return buckets
}

// Aggregate is BucketBy that also reports how many records were skipped.
func Aggregate(records []domain.SaleRecord, granularity domain.Granularity, offsetHours int) ([]domain.RevenueBucket, int) {
	zone := Zone(offsetHours)
	sums := make(map[string]decimal.Decimal)

	if granularity == domain.GranularityHourly {
		for hour := 0; hour < 24; hour++ {
			sums[hourKey(hour)] = decimal.Zero
		}
	}

	skipped := 0
	for _, record := range records {
		if record.Time.IsZero() {
			skipped++
			continue
		}
		key, ok := bucketKey(record.Time.In(zone), granularity)
		if !ok {
			skipped++
			continue
		}
		sums[key] = sums[key].Add(priceOf(record))
	}

	keys := make([]string, 0, len(sums))
	for key := range sums {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	out := make([]domain.RevenueBucket, 0, len(keys))
	for _, key := range keys {
		out = append(out, domain.RevenueBucket{Key: key, Revenue: roundMoney(sums[key])})
	}
	return out, skipped
}

// HourlyForDay restricts records to one local calendar day and buckets them
// by hour.
func HourlyForDay(records []domain.SaleRecord, day string, offsetHours int) ([]domain.RevenueBucket, int, error) {
	start, end, err := DayBounds(day, offsetHours)
	if err != nil {
		return nil, 0, err
	}

	selected := make([]domain.SaleRecord, 0, len(records))
	for _, record := range records {
		if record.Time.IsZero() {
			selected = append(selected, record)
			continue
		}
		if record.Time.Before(start) || record.Time.After(end) {
			continue
		}
		selected = append(selected, record)
	}

	buckets, skipped := Aggregate(selected, domain.GranularityHourly, offsetHours)
	return buckets, skipped, nil
}

// Summarize is the record/revenue/quantity summary shown next to sale lists.
func Summarize(records []domain.SaleRecord) domain.SalesStats {
	sum := decimal.Zero
	quantity := 0
	for _, record := range records {
		sum = sum.Add(priceOf(record))
		quantity += record.Quantity
	}
	return domain.SalesStats{
		TotalRecords:  len(records),
		TotalRevenue:  roundMoney(sum),
		TotalQuantity: quantity,
	}
}

// TotalOf sums bucket revenues the same way buckets are rounded.
func TotalOf(buckets []domain.RevenueBucket) float64 {
	sum := decimal.Zero
	for _, b := range buckets {
		sum = sum.Add(decimal.NewFromFloat(b.Revenue))
	}
	return roundMoney(sum)
}

func bucketKey(local time.Time, granularity domain.Granularity) (string, bool) {
	switch granularity {
	case domain.GranularityDaily:
		return local.Format(dayLayout), true
	case domain.GranularityMonthly:
		return local.Format("2006-01"), true
	case domain.GranularityHourly:
		return hourKey(local.Hour()), true
	default:
		return "", false
	}
}

func hourKey(hour int) string {
	return fmt.Sprintf("%02d:00", hour)
}

func priceOf(record domain.SaleRecord) decimal.Decimal {
	if math.IsNaN(record.Price) || math.IsInf(record.Price, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(record.Price)
}

// roundMoney rounds half away from zero to 2 places.
func roundMoney(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

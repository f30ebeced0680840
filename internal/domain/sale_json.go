package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp accepts the timestamp shapes produced by the record store
// and by API clients. Values without a zone are read as UTC.
func ParseTimestamp(raw string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, trimmed); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// UnmarshalJSON is lenient: a price or quantity that is not numeric becomes 0
// and an unparseable time is left zero so aggregation can skip the record.
func (r *SaleRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID           int64   `json:"id"`
		SubmissionID string  `json:"submission_id"`
		Product      string  `json:"product"`
		Color        string  `json:"color"`
		Storage      Storage `json:"storage"`
		StoreName    string  `json:"name"`
		Quantity     any     `json:"quantity"`
		Price        any     `json:"price"`
		Time         any     `json:"time"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = SaleRecord{
		ID:           raw.ID,
		SubmissionID: raw.SubmissionID,
		Product:      raw.Product,
		Color:        raw.Color,
		Storage:      raw.Storage,
		StoreName:    raw.StoreName,
		Quantity:     int(coerceNumber(raw.Quantity)),
		Price:        coerceNumber(raw.Price),
		Time:         coerceTime(raw.Time),
	}
	return nil
}

func coerceNumber(v any) float64 {
	var n float64
	switch val := v.(type) {
	case float64:
		n = val
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0
		}
		n = parsed
	default:
		return 0
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return n
}

func coerceTime(v any) time.Time {
	switch val := v.(type) {
	case string:
		ts, _ := ParseTimestamp(val)
		return ts
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return time.Time{}
		}
		return time.UnixMilli(int64(val)).UTC()
	default:
		return time.Time{}
	}
}

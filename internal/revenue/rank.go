package revenue

import (
	"cmp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"storestock/backend/internal/domain"
)

const DefaultRankingLimit = 10

func ParseSortKey(raw string) (domain.RankSortKey, bool) {
	switch key := domain.RankSortKey(strings.ToLower(strings.TrimSpace(raw))); key {
	case domain.RankByRevenue, domain.RankByQuantity, domain.RankByStores, domain.RankByPrice:
		return key, true
	case "":
		return domain.RankByRevenue, true
	default:
		return "", false
	}
}

type productTotals struct {
	name      string
	revenue   decimal.Decimal
	quantity  int
	stores    map[string]struct{}
	unitSum   decimal.Decimal
	unitCount int
	average   decimal.Decimal
}

// RankBy groups records by product and orders the groups descending by
// sortKey. The average price is the mean of per-record unit prices; records
// with a non-positive quantity do not contribute to it. Ties keep the order
// in which products first appear in records.
func RankBy(records []domain.SaleRecord, sortKey domain.RankSortKey, limit int) domain.RankingResult {
	if limit <= 0 {
		limit = DefaultRankingLimit
	}
	if _, ok := ParseSortKey(string(sortKey)); !ok || sortKey == "" {
		sortKey = domain.RankByRevenue
	}

	index := make(map[string]int)
	groups := make([]*productTotals, 0)
	for _, record := range records {
		key := domain.NormalizeName(record.Product)
		if key == "" {
			continue
		}
		pos, ok := index[key]
		if !ok {
			pos = len(groups)
			index[key] = pos
			groups = append(groups, &productTotals{
				name:    strings.TrimSpace(record.Product),
				revenue: decimal.Zero,
				stores:  make(map[string]struct{}),
				unitSum: decimal.Zero,
			})
		}
		g := groups[pos]

		price := priceOf(record)
		g.revenue = g.revenue.Add(price)
		g.quantity += record.Quantity
		if name := strings.TrimSpace(record.StoreName); name != "" {
			g.stores[name] = struct{}{}
		}
		if record.Quantity > 0 {
			g.unitSum = g.unitSum.Add(price.Div(decimal.NewFromInt(int64(record.Quantity))))
			g.unitCount++
		}
	}

	for _, g := range groups {
		g.average = decimal.Zero
		if g.unitCount > 0 {
			g.average = g.unitSum.Div(decimal.NewFromInt(int64(g.unitCount)))
		}
	}

	slices.SortStableFunc(groups, func(a, b *productTotals) int {
		switch sortKey {
		case domain.RankByQuantity:
			return cmp.Compare(b.quantity, a.quantity)
		case domain.RankByStores:
			return cmp.Compare(len(b.stores), len(a.stores))
		case domain.RankByPrice:
			return b.average.Cmp(a.average)
		default:
			return b.revenue.Cmp(a.revenue)
		}
	})

	total := len(groups)
	if len(groups) > limit {
		groups = groups[:limit]
	}

	items := make([]domain.ProductRanking, 0, len(groups))
	for _, g := range groups {
		items = append(items, domain.ProductRanking{
			Product:       g.name,
			TotalRevenue:  roundMoney(g.revenue),
			TotalQuantity: g.quantity,
			StoreCount:    len(g.stores),
			AveragePrice:  roundMoney(g.average),
		})
	}

	return domain.RankingResult{
		SortKey:       sortKey,
		Items:         items,
		TotalProducts: total,
	}
}

package domain

import (
	"strings"
	"time"
)

type StoreRef struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

func (s StoreRef) IsZero() bool {
	return strings.TrimSpace(s.Name) == "" && strings.TrimSpace(s.Location) == ""
}

func (s StoreRef) Equal(other StoreRef) bool {
	return s.Name == other.Name && s.Location == other.Location
}

func (s StoreRef) Label() string {
	return s.Name + " - " + s.Location
}

func (s StoreRef) String() string {
	return s.Label()
}

type CatalogStore struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Label    string `json:"label"`
}

type InventoryRow struct {
	ID            int64   `json:"id" db:"id"`
	StoreName     string  `json:"store_name" db:"name"`
	StoreLocation string  `json:"store_location" db:"location"`
	Product       string  `json:"product" db:"product"`
	Color         string  `json:"color" db:"color"`
	Storage       Storage `json:"storage" db:"storage"`
	Quantity      int     `json:"quantity" db:"quantity"`
	Price         float64 `json:"price" db:"price"`
}

func (r InventoryRow) Store() StoreRef {
	return StoreRef{Name: r.StoreName, Location: r.StoreLocation}
}

type InventoryCreateRequest struct {
	Store    StoreRef `json:"store"`
	Product  string   `json:"product"`
	Color    string   `json:"color"`
	Storage  Storage  `json:"storage"`
	Quantity int      `json:"quantity"`
	Price    float64  `json:"price"`
}

type DeductRequest struct {
	Store    StoreRef `json:"store"`
	Product  string   `json:"product"`
	Color    string   `json:"color"`
	Storage  Storage  `json:"storage"`
	Quantity int      `json:"quantity"`
}

func (r DeductRequest) Identity() Identity {
	return NewIdentity(r.Store, r.Product, r.Color, r.Storage)
}

type RowDeduction struct {
	RowID    int64 `json:"row_id"`
	Before   int   `json:"before"`
	Deducted int   `json:"deducted"`
	After    int   `json:"after"`
}

type Allocation struct {
	Identity  Identity       `json:"identity"`
	Requested int            `json:"requested"`
	Available int            `json:"available"`
	Rows      []RowDeduction `json:"rows"`
}

func (a Allocation) Deducted() int {
	total := 0
	for _, row := range a.Rows {
		total += row.Deducted
	}
	return total
}

type AvailabilityResponse struct {
	Identity  Identity `json:"identity"`
	Available int      `json:"available"`
	RowID     int64    `json:"row_id,omitempty"`
	Rows      int      `json:"rows"`
}

// SaleRecord is one persisted sale line. Price is the line total.
type SaleRecord struct {
	ID           int64     `json:"id" db:"id"`
	SubmissionID string    `json:"submission_id" db:"submission_id"`
	Product      string    `json:"product" db:"product"`
	Color        string    `json:"color" db:"color"`
	Storage      Storage   `json:"storage" db:"storage"`
	StoreName    string    `json:"name" db:"name"`
	Quantity     int       `json:"quantity" db:"quantity"`
	Price        float64   `json:"price" db:"price"`
	Time         time.Time `json:"time" db:"time"`
}

type SaleLine struct {
	Product  string   `json:"product"`
	Color    string   `json:"color"`
	Storage  Storage  `json:"storage"`
	Quantity int      `json:"quantity"`
	Price    *float64 `json:"price,omitempty"`
}

type SaleSubmission struct {
	Store StoreRef   `json:"store"`
	Time  *time.Time `json:"time,omitempty"`
	Lines []SaleLine `json:"lines"`
}

type SaleReceipt struct {
	SubmissionID string       `json:"submission_id"`
	Store        StoreRef     `json:"store"`
	Records      []SaleRecord `json:"records"`
	Allocations  []Allocation `json:"allocations"`
	TotalPrice   float64      `json:"total_price"`
}

// SaleFilter bounds are inclusive. A zero From or To leaves that side open.
type SaleFilter struct {
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	Products   []string  `json:"products,omitempty"`
	StoreNames []string  `json:"store_names,omitempty"`
	Limit      int       `json:"limit,omitempty"`
	Offset     int       `json:"offset,omitempty"`
}

// SalesQuery is the caller-facing form of SaleFilter. Dates are YYYY-MM-DD
// in the reporting zone; giving only one of them selects that single day.
type SalesQuery struct {
	StartDate  string   `json:"start_date,omitempty"`
	EndDate    string   `json:"end_date,omitempty"`
	Products   []string `json:"products,omitempty"`
	StoreNames []string `json:"store_names,omitempty"`
	Limit      int      `json:"limit,omitempty"`
	Offset     int      `json:"offset,omitempty"`
}

type SalesStats struct {
	TotalRecords  int     `json:"total_records"`
	TotalRevenue  float64 `json:"total_revenue"`
	TotalQuantity int     `json:"total_quantity"`
}

type Granularity string

const (
	GranularityDaily   Granularity = "daily"
	GranularityMonthly Granularity = "monthly"
	GranularityHourly  Granularity = "hourly"
)

type RevenueBucket struct {
	Key     string  `json:"key"`
	Revenue float64 `json:"revenue"`
}

type RevenueReport struct {
	Granularity Granularity     `json:"granularity"`
	Date        string          `json:"date,omitempty"`
	OffsetHours int             `json:"offset_hours"`
	Buckets     []RevenueBucket `json:"buckets"`
	Total       float64         `json:"total"`
	GeneratedAt time.Time       `json:"generated_at"`
}

type RankSortKey string

const (
	RankByRevenue  RankSortKey = "revenue"
	RankByQuantity RankSortKey = "quantity"
	RankByStores   RankSortKey = "stores"
	RankByPrice    RankSortKey = "price"
)

type ProductRanking struct {
	Product       string  `json:"product"`
	TotalRevenue  float64 `json:"total_revenue"`
	TotalQuantity int     `json:"total_quantity"`
	StoreCount    int     `json:"store_count"`
	AveragePrice  float64 `json:"average_price"`
}

type RankingResult struct {
	SortKey       RankSortKey      `json:"sort_key"`
	Items         []ProductRanking `json:"items"`
	TotalProducts int              `json:"total_products"`
}

type Cart struct {
	Store *StoreRef  `json:"store"`
	Items []CartLine `json:"items"`
}

type CartLine struct {
	Key      string  `json:"key"`
	Product  string  `json:"product"`
	Color    string  `json:"color"`
	Storage  Storage `json:"storage"`
	Quantity int     `json:"quantity"`
}

type CartLineRequest struct {
	Store    StoreRef `json:"store"`
	Product  string   `json:"product"`
	Color    string   `json:"color"`
	Storage  Storage  `json:"storage"`
	Quantity int      `json:"quantity"`
}

type CartQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type CartCheckoutRequest struct {
	Prices map[string]float64 `json:"prices,omitempty"`
	Time   *time.Time         `json:"time,omitempty"`
}

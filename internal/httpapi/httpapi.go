package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storestock/backend/internal/apperror"
	"storestock/backend/internal/domain"
	"storestock/backend/internal/logger"
	"storestock/backend/internal/metrics"
	"storestock/backend/internal/service"
	"storestock/backend/internal/xid"
)

const (
	cartSessionHeader = "X-Cart-Session"
	requestIDHeader   = "X-Request-ID"
	cartLinesPrefix   = "/api/v1/cart/lines/"

	maxHeaderIDLen = 128
)

// ReadinessCheck reports whether a backing store can take traffic.
type ReadinessCheck func(ctx context.Context) error

type API struct {
	service       *service.Service
	metrics       *metrics.Metrics
	allowedOrigin string
	ready         ReadinessCheck
}

func New(svc *service.Service, m *metrics.Metrics, allowedOrigin string, ready ReadinessCheck) *API {
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}
	return &API{
		service:       svc,
		metrics:       m,
		allowedOrigin: allowedOrigin,
		ready:         ready,
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.Handle("/metrics", a.metrics.Handler())

	mux.HandleFunc("/api/v1/stores", a.handleStores)
	mux.HandleFunc("/api/v1/stores/products", a.handleStoreProducts)
	mux.HandleFunc("/api/v1/stores/colors", a.handleProductColors)

	mux.HandleFunc("/api/v1/inventory", a.handleInventory)
	mux.HandleFunc("/api/v1/inventory/available", a.handleAvailable)
	mux.HandleFunc("/api/v1/inventory/deduct", a.handleDeduct)

	mux.HandleFunc("/api/v1/sales", a.handleSales)
	mux.HandleFunc("/api/v1/sales/stats", a.handleSalesStats)
	mux.HandleFunc("/api/v1/sales/products", a.handleSaleProducts)
	mux.HandleFunc("/api/v1/sales/stores", a.handleSaleStores)

	mux.HandleFunc("/api/v1/reports/revenue", a.handleRevenueReport)
	mux.HandleFunc("/api/v1/reports/ranking", a.handleRanking)

	mux.HandleFunc("/api/v1/cart", a.handleCart)
	mux.HandleFunc("/api/v1/cart/lines", a.handleCartLines)
	mux.HandleFunc(cartLinesPrefix, a.handleCartLineActions)
	mux.HandleFunc("/api/v1/cart/checkout", a.handleCartCheckout)

	return a.withMiddleware(mux)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	status := http.StatusOK
	body := map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	}
	if a.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.ready(ctx); err != nil {
			logger.Warn(r.Context(), "readiness check failed", "component", "httpapi", "error", err)
			status = http.StatusServiceUnavailable
			body["ok"] = false
		}
	}
	writeJSON(w, status, body)
}

func (a *API) handleStores(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	stores, err := a.service.ListStores(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": stores})
}

func (a *API) handleStoreProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	products, err := a.service.StoreProducts(r.Context(), storeFromQuery(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": products})
}

func (a *API) handleProductColors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	colors, err := a.service.ProductColors(r.Context(), storeFromQuery(r), r.URL.Query().Get("product"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": colors})
}

func (a *API) handleInventory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.InventoryCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	row, err := a.service.InsertInventory(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

func (a *API) handleAvailable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	query := r.URL.Query()
	id := domain.NewIdentity(storeFromQuery(r), query.Get("product"), query.Get("color"), domain.ParseStorage(query.Get("storage")))
	resp, err := a.service.Available(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleDeduct(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.DeductRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	allocation, err := a.service.Deduct(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, allocation)
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sales, err := a.service.ListSales(r.Context(), salesQueryFromRequest(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": sales})
	case http.MethodPost:
		var sub domain.SaleSubmission
		if err := decodeJSON(r, &sub); err != nil {
			writeError(w, r, err)
			return
		}
		receipt, err := a.service.SubmitSale(r.Context(), sub)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, receipt)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSalesStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	stats, err := a.service.SalesStats(r.Context(), salesQueryFromRequest(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleSaleProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	products, err := a.service.DistinctProducts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": products})
}

func (a *API) handleSaleStores(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	stores, err := a.service.DistinctStores(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": stores})
}

func (a *API) handleRevenueReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	query := r.URL.Query()
	report, err := a.service.RevenueReport(r.Context(), salesQueryFromRequest(r), query.Get("granularity"), query.Get("date"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	switch exportFormat(r) {
	case "csv":
		writeCSV(w, r, "revenue-"+string(report.Granularity)+".csv", revenueToRows(report))
	case "xlsx":
		writeXLSX(w, r, "revenue-"+string(report.Granularity)+".xlsx", "Revenue", revenueToRows(report))
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

func (a *API) handleRanking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	query := r.URL.Query()
	limit := parsePositiveLimit(query.Get("limit"), 0, 500)
	ranking, err := a.service.ProductRanking(r.Context(), salesQueryFromRequest(r), query.Get("sort"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	switch exportFormat(r) {
	case "csv":
		writeCSV(w, r, "ranking-"+string(ranking.SortKey)+".csv", rankingToRows(ranking))
	case "xlsx":
		writeXLSX(w, r, "ranking-"+string(ranking.SortKey)+".xlsx", "Ranking", rankingToRows(ranking))
	default:
		writeJSON(w, http.StatusOK, ranking)
	}
}

func (a *API) handleCart(w http.ResponseWriter, r *http.Request) {
	session := r.Header.Get(cartSessionHeader)
	switch r.Method {
	case http.MethodGet:
		c, err := a.service.GetCart(r.Context(), session)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	case http.MethodDelete:
		c, err := a.service.ClearCart(r.Context(), session)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCartLines(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.CartLineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := a.service.AddToCart(r.Context(), r.Header.Get(cartSessionHeader), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) handleCartLineActions(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, cartLinesPrefix)
	if key == "" {
		writeError(w, r, apperror.NewValidation("cart line key is required"))
		return
	}
	session := r.Header.Get(cartSessionHeader)

	switch r.Method {
	case http.MethodPatch:
		var req domain.CartQuantityRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		c, err := a.service.SetCartQuantity(r.Context(), session, key, req.Quantity)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	case http.MethodDelete:
		c, err := a.service.RemoveCartLine(r.Context(), session, key)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCartCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.CartCheckoutRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	receipt, err := a.service.CheckoutCart(r.Context(), r.Header.Get(cartSessionHeader), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (a *API) withMiddleware(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+cartSessionHeader+", "+requestIDHeader)
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" || len(requestID) > maxHeaderIDLen {
			requestID = xid.New("req")
		}
		w.Header().Set(requestIDHeader, requestID)
		r = r.WithContext(logger.WithRequestID(r.Context(), requestID))

		if r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		startedAt := time.Now()
		if len(r.Header.Get(cartSessionHeader)) > maxHeaderIDLen {
			writeError(rec, r, apperror.NewValidation(cartSessionHeader+" is too long").WithDetail("max_length", maxHeaderIDLen))
		} else {
			mux.ServeHTTP(rec, r)
		}
		elapsed := time.Since(startedAt)

		a.metrics.ObserveHTTP(methodLabel(r.Method), routeLabel(mux, r), rec.status, elapsed)
		logger.Info(r.Context(), "http request",
			"component", "httpapi",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", elapsed,
		)
	})
}

// routeLabel is the mux pattern that serves r. Unrouted paths share one label.
func routeLabel(mux *http.ServeMux, r *http.Request) string {
	if _, pattern := mux.Handler(r); pattern != "" {
		return pattern
	}
	return "other"
}

func methodLabel(method string) string {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodPut, http.MethodHead:
		return method
	}
	return "OTHER"
}

func storeFromQuery(r *http.Request) domain.StoreRef {
	query := r.URL.Query()
	return domain.StoreRef{
		Name:     strings.TrimSpace(query.Get("name")),
		Location: strings.TrimSpace(query.Get("location")),
	}
}

// salesQueryFromRequest reads filters from the query string. List values may
// be repeated or comma separated.
func salesQueryFromRequest(r *http.Request) domain.SalesQuery {
	query := r.URL.Query()
	return domain.SalesQuery{
		StartDate:  query.Get("start_date"),
		EndDate:    query.Get("end_date"),
		Products:   splitList(query["product"]),
		StoreNames: splitList(query["store"]),
		Limit:      parsePositiveLimit(query.Get("limit"), 0, 1000),
		Offset:     parseOffset(query.Get("offset")),
	}
}

func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func exportFormat(r *http.Request) string {
	return strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return apperror.NewValidation("invalid request body: " + err.Error())
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func parseOffset(raw string) int {
	offset, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || offset < 0 {
		return 0
	}
	return offset
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]any{
		"error": "method not allowed",
	})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperror.HTTPStatus(err)
	appErr, ok := apperror.AsAppError(err)
	if !ok {
		appErr = apperror.NewInternal(err)
	}

	// 5xx bodies never carry driver or file system detail.
	if status >= 500 {
		logger.Error(r.Context(), "request failed",
			"component", "httpapi",
			"status", status,
			"code", appErr.Code,
			"error", err,
		)
		msg := "internal server error"
		if appErr.Code == apperror.CodeStoreUnavailable {
			msg = appErr.Message
		}
		writeJSON(w, status, map[string]any{
			"error": msg,
			"code":  appErr.Code,
		})
		return
	}

	body := map[string]any{
		"error": appErr.Message,
		"code":  appErr.Code,
	}
	if len(appErr.Details) > 0 {
		body["details"] = appErr.Details
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

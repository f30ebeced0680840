// Package allocation deducts stock for a logical identity that may be spread
// over several inventory rows.
//
// A deduction is check-then-commit: candidates are read, their total is
// compared with the request, and only then is each row written with a
// conditional update. Any write failure restores the rows already written,
// so callers never observe a partial deduction.
package allocation

import (
	"context"
	"errors"
	"slices"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storestock/backend/internal/apperror"
	"storestock/backend/internal/domain"
	"storestock/backend/internal/logger"
	"storestock/backend/internal/metrics"
	"storestock/backend/internal/store"
)

var tracer = otel.Tracer("storestock/backend/internal/allocation")

type Engine struct {
	inventory store.InventoryStore
	locks     *identityLocks
	metrics   *metrics.Metrics
}

func NewEngine(inventory store.InventoryStore, m *metrics.Metrics) *Engine {
	return &Engine{
		inventory: inventory,
		locks:     newIdentityLocks(),
		metrics:   m,
	}
}

// ResolveCandidates returns every row of the identity, ordered by id.
func (e *Engine) ResolveCandidates(ctx context.Context, id domain.Identity) ([]domain.InventoryRow, error) {
	rows, err := e.inventory.ListInventory(ctx, store.IdentityFilter(id))
	if err != nil {
		return nil, apperror.NewStoreUnavailable(err)
	}
	slices.SortStableFunc(rows, func(a, b domain.InventoryRow) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
	return rows, nil
}

// ComputeAvailable sums row quantities. Negative quantities count as zero.
func ComputeAvailable(rows []domain.InventoryRow) int {
	total := 0
	for _, row := range rows {
		if row.Quantity > 0 {
			total += row.Quantity
		}
	}
	return total
}

// Plan spreads requested over rows in the given order, taking
// min(remaining, quantity) from each. It returns the per-row steps and
// whatever could not be placed.
func Plan(rows []domain.InventoryRow, requested int) ([]domain.RowDeduction, int) {
	remaining := requested
	steps := make([]domain.RowDeduction, 0, len(rows))
	for _, row := range rows {
		if remaining <= 0 {
			break
		}
		current := max(row.Quantity, 0)
		take := min(remaining, current)
		if take <= 0 {
			continue
		}
		steps = append(steps, domain.RowDeduction{
			RowID:    row.ID,
			Before:   row.Quantity,
			Deducted: take,
			After:    row.Quantity - take,
		})
		remaining -= take
	}
	return steps, remaining
}

func (e *Engine) Deduct(ctx context.Context, id domain.Identity, requested int) (*domain.Allocation, error) {
	if err := validateIdentity(id); err != nil {
		return nil, err
	}
	if requested <= 0 {
		return nil, apperror.NewValidation("quantity must be greater than zero")
	}

	ctx, span := tracer.Start(ctx, "allocation.Deduct", trace.WithAttributes(
		attribute.String("identity", id.Key()),
		attribute.String("store", id.Store.Label()),
		attribute.Int("requested", requested),
	))
	defer span.End()

	unlock := e.locks.lock(id.LockKey())
	defer unlock()

	rows, err := e.ResolveCandidates(ctx, id)
	if err != nil {
		return nil, e.fail(ctx, span, "store_unavailable", err)
	}
	if len(rows) == 0 {
		return nil, e.fail(ctx, span, "not_found", apperror.NewNotFound(id))
	}

	available := ComputeAvailable(rows)
	if available < requested {
		return nil, e.fail(ctx, span, "insufficient_stock", apperror.NewInsufficientStock(id, requested, available))
	}

	plan, remaining := Plan(rows, requested)
	if remaining != 0 {
		return nil, e.fail(ctx, span, "race", apperror.NewAllocationRace(id, requested, requested-remaining))
	}

	applied := make([]domain.RowDeduction, 0, len(plan))
	for _, step := range plan {
		if step.After < 0 {
			rbErr := e.rollback(ctx, applied)
			appErr := apperror.NewInternal(errors.New("planned deduction would leave a row negative")).
				WithDetail("row_id", step.RowID)
			return nil, e.fail(ctx, span, "error", withRollback(appErr, rbErr))
		}

		if err := e.inventory.CompareAndSetQuantity(ctx, step.RowID, step.Before, step.After); err != nil {
			rbErr := e.rollback(ctx, applied)
			deducted := sumDeducted(applied)

			var appErr *apperror.AppError
			result := "store_unavailable"
			if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrNotFound) {
				appErr = apperror.NewAllocationRace(id, requested, deducted).WithCause(err)
				result = "race"
			} else {
				appErr = apperror.NewStoreUnavailable(err)
			}
			appErr.WithDetail("row_id", step.RowID)
			return nil, e.fail(ctx, span, result, withRollback(appErr, rbErr))
		}
		applied = append(applied, step)
	}

	if deducted := sumDeducted(applied); deducted != requested {
		rbErr := e.rollback(ctx, applied)
		return nil, e.fail(ctx, span, "race", withRollback(apperror.NewAllocationRace(id, requested, deducted), rbErr))
	}

	e.metrics.ObserveDeduction("ok", requested)
	logger.Info(ctx, "inventory deducted",
		"component", "allocation",
		"identity", id.String(),
		"requested", requested,
		"available_before", available,
		"rows", len(applied),
	)

	return &domain.Allocation{
		Identity:  id,
		Requested: requested,
		Available: available,
		Rows:      applied,
	}, nil
}

// Restore puts back the quantities of a completed allocation. It fails with
// ALLOCATION_RACE if a row was changed after the allocation was applied.
func (e *Engine) Restore(ctx context.Context, allocation *domain.Allocation) error {
	if allocation == nil || len(allocation.Rows) == 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, "allocation.Restore", trace.WithAttributes(
		attribute.String("identity", allocation.Identity.Key()),
		attribute.Int("units", allocation.Deducted()),
	))
	defer span.End()

	unlock := e.locks.lock(allocation.Identity.LockKey())
	defer unlock()

	if err := e.rollback(ctx, allocation.Rows); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrNotFound) {
			return apperror.NewAllocationRace(allocation.Identity, allocation.Requested, allocation.Deducted()).WithCause(err)
		}
		return apperror.NewStoreUnavailable(err)
	}
	return nil
}

// Locate returns the id of the first row of the identity.
func (e *Engine) Locate(ctx context.Context, id domain.Identity) (int64, error) {
	if err := validateIdentity(id); err != nil {
		return 0, err
	}
	rows, err := e.ResolveCandidates(ctx, id)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, apperror.NewNotFound(id)
	}
	return rows[0].ID, nil
}

func (e *Engine) Available(ctx context.Context, id domain.Identity) (*domain.AvailabilityResponse, error) {
	if err := validateIdentity(id); err != nil {
		return nil, err
	}
	rows, err := e.ResolveCandidates(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := &domain.AvailabilityResponse{
		Identity:  id,
		Available: ComputeAvailable(rows),
		Rows:      len(rows),
	}
	if len(rows) > 0 {
		resp.RowID = rows[0].ID
	}
	return resp, nil
}

// rollback restores applied steps newest first. It keeps going after a
// failure so that as many rows as possible are restored.
func (e *Engine) rollback(ctx context.Context, applied []domain.RowDeduction) error {
	if len(applied) == 0 {
		return nil
	}
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for i := len(applied) - 1; i >= 0; i-- {
		step := applied[i]
		if err := e.inventory.CompareAndSetQuantity(ctx, step.RowID, step.After, step.Before); err != nil {
			logger.Error(ctx, "inventory rollback failed",
				"component", "allocation",
				"row_id", step.RowID,
				"restore_to", step.Before,
				"error", err,
			)
			errs = append(errs, err)
			continue
		}
		logger.Warn(ctx, "inventory deduction rolled back",
			"component", "allocation",
			"row_id", step.RowID,
			"units", step.Deducted,
		)
	}

	err := errors.Join(errs...)
	e.metrics.ObserveRollback(err == nil)
	return err
}

func (e *Engine) fail(ctx context.Context, span trace.Span, result string, err error) error {
	e.metrics.ObserveDeduction(result, 0)
	span.RecordError(err)
	span.SetStatus(codes.Error, result)
	logger.Warn(ctx, "inventory deduction rejected", "component", "allocation", "result", result, "error", err)
	return err
}

func withRollback(appErr *apperror.AppError, rbErr error) *apperror.AppError {
	appErr.WithDetail("rolled_back", rbErr == nil)
	if rbErr != nil {
		appErr.WithDetail("rollback_error", rbErr.Error())
	}
	return appErr
}

func sumDeducted(steps []domain.RowDeduction) int {
	total := 0
	for _, step := range steps {
		total += step.Deducted
	}
	return total
}

func validateIdentity(id domain.Identity) error {
	if strings.TrimSpace(id.Store.Name) == "" || strings.TrimSpace(id.Store.Location) == "" {
		return apperror.NewValidation("store name and location are required")
	}
	if strings.TrimSpace(id.Product) == "" {
		return apperror.NewValidation("product is required")
	}
	if strings.TrimSpace(id.Color) == "" {
		return apperror.NewValidation("color is required")
	}
	return nil
}

// Package apperror carries the error taxonomy shared by the allocation engine,
// the cart and the HTTP layer.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeAllocationRace    = "ALLOCATION_RACE"
	CodeCrossStore        = "CROSS_STORE"
	CodeInvalidRecord     = "INVALID_RECORD"
	CodeStoreUnavailable  = "STORE_UNAVAILABLE"
	CodeInternal          = "INTERNAL_ERROR"
)

// AppError is a classified failure with enough context in Details to render a
// message without another lookup.
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	HTTPStatus int            `json:"-"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound reports that no inventory row matches identity. identity is
// anything with a readable String form, usually a domain.Identity.
func NewNotFound(identity fmt.Stringer) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("no inventory records found for %s", identity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"identity": identity},
	}
}

func NewInsufficientStock(identity fmt.Stringer, requested int, available int) *AppError {
	return &AppError{
		Code:       CodeInsufficientStock,
		Message:    fmt.Sprintf("insufficient inventory for %s: available %d, required %d", identity, available, requested),
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"identity":  identity,
			"requested": requested,
			"available": available,
		},
	}
}

// NewAllocationRace reports that the rows changed between read and write, so
// the deduction could not be completed as planned.
func NewAllocationRace(identity fmt.Stringer, requested int, deducted int) *AppError {
	return &AppError{
		Code:       CodeAllocationRace,
		Message:    fmt.Sprintf("inventory for %s changed during allocation: deducted %d of %d", identity, deducted, requested),
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"identity":  identity,
			"requested": requested,
			"deducted":  deducted,
		},
	}
}

func NewCrossStore(bound fmt.Stringer, attempted fmt.Stringer) *AppError {
	return &AppError{
		Code:       CodeCrossStore,
		Message:    fmt.Sprintf("cart already holds items from %s; cannot add items from %s", bound, attempted),
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"cart_store":      bound.String(),
			"attempted_store": attempted.String(),
		},
	}
}

func NewInvalidRecord(reason string) *AppError {
	return &AppError{
		Code:       CodeInvalidRecord,
		Message:    reason,
		HTTPStatus: http.StatusBadRequest,
	}
}

func NewStoreUnavailable(err error) *AppError {
	return &AppError{
		Code:       CodeStoreUnavailable,
		Message:    "record store unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func HasCode(err error, code string) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// HTTPStatus returns 500 for anything that is not an AppError.
func HTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// Package errors provides categorized errors for the yield streamer service.
// Every validation and authorization failure is raised before any state
// mutation and carries enough context for programmatic retry.
package errors

import (
	"fmt"
	"math/big"
	"net/http"

	"github.com/cloudwalk/yield-streamer/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryValidation represents request validation errors (4xx)
	CategoryValidation ErrorCategory = "validation"
	// CategoryAuthorization represents authorization errors
	CategoryAuthorization ErrorCategory = "authorization"
	// CategoryBusinessRule represents intentional business-rule rejections
	CategoryBusinessRule ErrorCategory = "business_rule"
	// CategoryArithmetic represents checked-arithmetic and range errors
	CategoryArithmetic ErrorCategory = "arithmetic"
	// CategoryNotFound represents not found errors
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryDatabase represents database errors
	CategoryDatabase ErrorCategory = "database"
	// CategoryCache represents cache errors
	CategoryCache ErrorCategory = "cache"
	// CategorySystem represents internal errors (5xx)
	CategorySystem ErrorCategory = "system"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// Authorization errors

// NewUnauthorizedHookCallerError reports a balance tracker hook invoked by a
// caller other than the configured token source.
func NewUnauthorizedHookCallerError(caller string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthorization,
		StatusCode: http.StatusForbidden,
		Code:       "UNAUTHORIZED_HOOK_CALLER",
		Message:    fmt.Sprintf("caller %s is not the configured token source", caller),
		Details: map[string]interface{}{
			"caller": caller,
		},
	}
}

// NewUnauthorizedAdminError reports an admin operation attempted without the
// owner credential.
func NewUnauthorizedAdminError(operation string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthorization,
		StatusCode: http.StatusUnauthorized,
		Code:       "UNAUTHORIZED_ADMIN",
		Message:    fmt.Sprintf("operation %q requires the owner credential", operation),
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// Validation errors

// NewInvalidAddressError creates an invalid address error
func NewInvalidAddressError(address string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_ADDRESS",
		Message:    fmt.Sprintf("invalid address format: %s", address),
		Details: map[string]interface{}{
			"address": address,
		},
	}
}

// NewInvalidParameterError creates an invalid parameter error
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_PARAMETER",
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewInvalidDayRangeError reports a range query with toDay before fromDay or
// fromDay before the tracker initialization day.
func NewInvalidDayRangeError(fromDay, toDay, initDay types.Day) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_DAY_RANGE",
		Message:    fmt.Sprintf("invalid day range [%d, %d] (initialization day %d)", fromDay, toDay, initDay),
		Details: map[string]interface{}{
			"fromDay": uint64(fromDay),
			"toDay":   uint64(toDay),
			"initDay": uint64(initDay),
		},
	}
}

// NewScheduleNotMonotonicError reports a schedule entry whose effective day is
// not strictly greater than the last configured entry.
func NewScheduleNotMonotonicError(schedule string, effectiveDay, lastDay types.Day) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "SCHEDULE_NOT_MONOTONIC",
		Message:    fmt.Sprintf("%s schedule: effective day %d must be greater than %d", schedule, effectiveDay, lastDay),
		Details: map[string]interface{}{
			"schedule":     schedule,
			"effectiveDay": uint64(effectiveDay),
			"lastDay":      uint64(lastDay),
		},
	}
}

// NewRedundantConfigurationError reports a reconfiguration that would not
// change the stored value.
func NewRedundantConfigurationError(what, value string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "REDUNDANT_CONFIGURATION",
		Message:    fmt.Sprintf("%s is already configured to %s", what, value),
		Details: map[string]interface{}{
			"target": what,
			"value":  value,
		},
	}
}

// NewInvalidLookBackError reports a look-back period with a zero or
// out-of-range length.
func NewInvalidLookBackError(effectiveDay types.Day, length uint64, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_LOOK_BACK",
		Message:    fmt.Sprintf("look-back period {day %d, length %d}: %s", effectiveDay, length, reason),
		Details: map[string]interface{}{
			"effectiveDay": uint64(effectiveDay),
			"length":       length,
			"reason":       reason,
		},
	}
}

// NewLookBackAlreadySetError reports the current-version limitation that only
// a single look-back period is ever supported.
func NewLookBackAlreadySetError() *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusConflict,
		Code:       "LOOK_BACK_ALREADY_SET",
		Message:    "a look-back period is already configured; only one is supported",
	}
}

// NewScheduleNotConfiguredError reports a yield computation attempted before
// the relevant schedule has any entry covering the requested day.
func NewScheduleNotConfiguredError(schedule string, day types.Day) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusConflict,
		Code:       "SCHEDULE_NOT_CONFIGURED",
		Message:    fmt.Sprintf("no %s entry is in effect on day %d", schedule, day),
		Details: map[string]interface{}{
			"schedule": schedule,
			"day":      uint64(day),
		},
	}
}

// Arithmetic errors

// NewValueOverflowError reports a balance or day index that exceeds the
// supported storage width.
func NewValueOverflowError(what string, value string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryArithmetic,
		StatusCode: http.StatusUnprocessableEntity,
		Code:       "VALUE_OVERFLOW",
		Message:    fmt.Sprintf("%s out of range: %s", what, value),
		Details: map[string]interface{}{
			"target": what,
			"value":  value,
		},
	}
}

// Business-rule errors

// NewShortfallError reports a claim amount exceeding the total available
// yield. The claim is rejected all-or-nothing; the shortfall value lets the
// caller retry with a smaller amount.
func NewShortfallError(account string, shortfall *big.Int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryBusinessRule,
		StatusCode: http.StatusUnprocessableEntity,
		Code:       "SHORTFALL",
		Message:    fmt.Sprintf("claim exceeds available yield by %s", shortfall.String()),
		Details: map[string]interface{}{
			"account":   account,
			"shortfall": shortfall.String(),
		},
	}
}

// Not found errors

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// System errors

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       "DATABASE_ERROR",
		Message:    fmt.Sprintf("database operation failed: %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewCacheError creates a cache error
func NewCacheError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryCache,
		StatusCode: http.StatusInternalServerError,
		Code:       "CACHE_ERROR",
		Message:    fmt.Sprintf("cache operation failed: %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewInternalError creates a generic internal error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// IsCategory reports whether err is a CategorizedError of the given category.
func IsCategory(err error, category ErrorCategory) bool {
	ce, ok := err.(*CategorizedError)
	return ok && ce.Category == category
}

// AsCategorized returns err as a CategorizedError when possible.
func AsCategorized(err error) (*CategorizedError, bool) {
	ce, ok := err.(*CategorizedError)
	return ce, ok
}

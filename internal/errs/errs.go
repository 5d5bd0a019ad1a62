// Package errs defines the error taxonomy shared by every component of the
// trading core (exchange adapters, the store, the lock primitive, and the
// scheduler). Callers distinguish categories with errors.Is/errors.As
// instead of string matching, and the scheduler uses Category to decide
// whether to retry, surface, or silently skip.
package errs

import (
	"errors"
	"fmt"
)

// Category names one of the error kinds from the trading-core error taxonomy.
type Category string

const (
	CategoryConfig            Category = "config_error"
	CategoryAuth              Category = "auth_error"
	CategoryTransport         Category = "transport_error"
	CategoryRateLimited       Category = "rate_limited"
	CategoryInvalidArgument   Category = "invalid_argument"
	CategoryInsufficientFunds Category = "insufficient_funds"
	CategoryNotFound          Category = "not_found"
	CategoryPriceValidation   Category = "price_validation_error"
	CategoryLockContention    Category = "lock_contention"
	CategoryConsistency       Category = "consistency_error"
)

// Retryable reports whether the scheduler's boundary retry logic should
// attempt this category again with backoff.
func (c Category) Retryable() bool {
	switch c {
	case CategoryTransport, CategoryRateLimited:
		return true
	default:
		return false
	}
}

// Error wraps an underlying cause with a taxonomy category and a component
// tag, so the scheduler's health indicator can count recurring categories
// without parsing messages.
type Error struct {
	Category  Category
	Component string
	Err       error
}

func (e *Error) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("%s: %s: %v", e.Component, e.Category, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Category, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a categorized error.
func New(category Category, component string, err error) *Error {
	return &Error{Category: category, Component: component, Err: err}
}

// Wrap is New with a formatted message instead of a pre-built error.
func Wrap(category Category, component, format string, args ...any) *Error {
	return &Error{Category: category, Component: component, Err: fmt.Errorf(format, args...)}
}

// Is lets errors.Is(err, errs.ConfigError) match any *Error of that category,
// by comparing against these category sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Err == nil {
		return e.Category == t.Category
	}
	return e.Category == t.Category && errors.Is(e.Err, t.Err)
}

// Sentinels usable with errors.Is(err, errs.ConfigError) to test category
// membership regardless of the wrapped cause.
var (
	ConfigError            = &Error{Category: CategoryConfig}
	AuthError              = &Error{Category: CategoryAuth}
	TransportError         = &Error{Category: CategoryTransport}
	RateLimited            = &Error{Category: CategoryRateLimited}
	InvalidArgument        = &Error{Category: CategoryInvalidArgument}
	InsufficientFunds      = &Error{Category: CategoryInsufficientFunds}
	NotFound               = &Error{Category: CategoryNotFound}
	PriceValidationError   = &Error{Category: CategoryPriceValidation}
	LockContention         = &Error{Category: CategoryLockContention}
	ConsistencyError       = &Error{Category: CategoryConsistency}
)

// CategoryOf extracts the taxonomy category from err, defaulting to "" when
// err does not carry one (or is nil).
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return ""
}

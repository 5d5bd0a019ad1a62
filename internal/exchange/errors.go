package exchange

import "github.com/kvantix/perpfutures-core/internal/errs"

// IsNotFound reports whether err is a not-found classified error, letting
// cancel-order callers treat "already gone" the same as "cancelled".
func IsNotFound(err error) bool {
	return errs.CategoryOf(err) == errs.CategoryNotFound
}

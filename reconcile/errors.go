package reconcile

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrProductNotFound is returned before any processing when the product id
// has no matching document.
var ErrProductNotFound = errors.New("product not found")

// FieldErrors is a validation failure keyed by the offending field. It is
// returned before any transaction is opened; no mutation has happened.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e FieldErrors) add(field, format string, args ...interface{}) {
	if _, ok := e[field]; ok {
		return
	}
	e[field] = fmt.Sprintf(format, args...)
}

// ConsistencyError reports an expected-vs-actual mismatch between the carts
// the engine computed as needing a patch and the carts the store reported as
// modified. It always aborts the whole transaction.
type ConsistencyError struct {
	Phase    string
	Expected int
	Modified int
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("changes reverted: %s: expected %d cart update(s), store reported %d",
		e.Phase, e.Expected, e.Modified)
}

package querycache

import (
	"fmt"
)

// DependencyIndexError reports a failed read-modify-write on a table's
// dependency index. The engine degrades (skips the append or returns zero
// invalidated) instead of propagating; this type exists for logs and hooks.
type DependencyIndexError struct {
	Table    string
	FetchErr error
	StoreErr error
}

func (e *DependencyIndexError) Error() string {
	switch {
	case e.FetchErr != nil && e.StoreErr != nil:
		return fmt.Sprintf("dependency index %q: fetch and store failed: fetch=%v; store=%v",
			e.Table, e.FetchErr, e.StoreErr)
	case e.FetchErr != nil:
		return fmt.Sprintf("dependency index %q: fetch failed: %v", e.Table, e.FetchErr)
	case e.StoreErr != nil:
		return fmt.Sprintf("dependency index %q: store failed: %v", e.Table, e.StoreErr)
	default:
		return fmt.Sprintf("dependency index %q: unknown error", e.Table)
	}
}

func (e *DependencyIndexError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.FetchErr != nil {
		errs = append(errs, e.FetchErr)
	}
	if e.StoreErr != nil {
		errs = append(errs, e.StoreErr)
	}
	return errs
}

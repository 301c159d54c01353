package detection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akmatori/alertsieve/internal/alerts"
)

// maxLoggedField caps alert-derived strings in log lines
const maxLoggedField = 200

// Query selects alerts from the historical store.
// Matching rows satisfy From <= CreatedAt < To and are returned ascending by CreatedAt.
type Query struct {
	Host string
	// Title empty means any title
	Title string
	// Severity nil means any severity
	Severity     *alerts.Severity
	From         time.Time
	To           time.Time
	ResolvedOnly bool
}

// Store is the narrow read contract the detectors depend on
type Store interface {
	Query(ctx context.Context, q Query) ([]alerts.Alert, error)
}

// StoreError wraps a failed historical store operation
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// asStoreError keeps an existing StoreError and wraps anything else
func asStoreError(op string, err error) *StoreError {
	var se *StoreError
	if errors.As(err, &se) {
		return se
	}
	return &StoreError{Op: op, Err: err}
}

// window bounds a lookback ending (exclusively) at the alert's creation time
func window(ref time.Time, lookback time.Duration) (time.Time, time.Time) {
	return ref.Add(-lookback), ref
}

// queryWithTimeout bounds a single store call
func queryWithTimeout(ctx context.Context, store Store, q Query, timeout time.Duration) ([]alerts.Alert, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return store.Query(ctx, q)
}

package testhelpers

import (
	"context"
	"slices"
	"sync"

	"github.com/akmatori/alertsieve/internal/alerts"
	"github.com/akmatori/alertsieve/internal/detection"
)

// MemoryStore is an in-memory historical store honoring the detection.Query contract
type MemoryStore struct {
	mu      sync.Mutex
	alerts  []alerts.Alert
	queries []detection.Query

	// QueryErr, when set, is returned by every Query call
	QueryErr error
	// AppendErr, when set, is returned by every Append call
	AppendErr error
}

// NewMemoryStore creates a store seeded with history
func NewMemoryStore(seed ...alerts.Alert) *MemoryStore {
	s := &MemoryStore{}
	for _, a := range seed {
		s.alerts = append(s.alerts, a.Clone())
	}
	return s
}

// Query returns matching alerts ascending by creation time
func (s *MemoryStore) Query(ctx context.Context, q detection.Query) ([]alerts.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries = append(s.queries, q)
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []alerts.Alert
	for _, a := range s.alerts {
		if a.Host != q.Host {
			continue
		}
		if q.Title != "" && a.Title != q.Title {
			continue
		}
		if q.Severity != nil && a.Severity != *q.Severity {
			continue
		}
		if a.CreatedAt.Before(q.From) || !a.CreatedAt.Before(q.To) {
			continue
		}
		if q.ResolvedOnly && a.ResolvedAt == nil {
			continue
		}
		out = append(out, a.Clone())
	}

	slices.SortStableFunc(out, func(a, b alerts.Alert) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

// Append adds an alert to history
func (s *MemoryStore) Append(ctx context.Context, alert alerts.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.AppendErr != nil {
		return s.AppendErr
	}
	s.alerts = append(s.alerts, alert.Clone())
	return nil
}

// Len returns the number of stored alerts
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

// Queries returns a copy of the queries seen so far
func (s *MemoryStore) Queries() []detection.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.queries)
}

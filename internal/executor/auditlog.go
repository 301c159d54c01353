// Package executor carries out decisions and keeps the audit trail.
package executor

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/akmatori/alertsieve/internal/alerts"
)

// Audit actions
const (
	ActionSuppressed = "suppressed"
	ActionForwarded  = "forwarded"
)

// Entry is one immutable audit record
type Entry struct {
	ID         string         `json:"id"`
	AlertID    string         `json:"alert_id"`
	Timestamp  time.Time      `json:"timestamp"`
	Action     string         `json:"action"`
	Reason     string         `json:"reason"`
	Confidence float64        `json:"confidence"`
	Alert      alerts.Alert   `json:"alert"`
	Degraded   []string       `json:"degraded,omitempty"`
	Evidence   map[string]any `json:"evidence,omitempty"`
}

func (e Entry) clone() Entry {
	out := e
	out.Alert = e.Alert.Clone()
	out.Degraded = slices.Clone(e.Degraded)
	if e.Evidence != nil {
		out.Evidence = make(map[string]any, len(e.Evidence))
		for k, v := range e.Evidence {
			out.Evidence[k] = v
		}
	}
	return out
}

// Filter narrows List results. Zero values mean no restriction.
type Filter struct {
	Action string
	Host   string
	Since  time.Time
	Limit  int
	Offset int
}

func (f Filter) matches(e Entry) bool {
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Host != "" && e.Alert.Host != f.Host {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

// AuditReader is the read side shared by the in-memory log and the durable store
type AuditReader interface {
	ListSince(ctx context.Context, since time.Time) ([]Entry, error)
}

// AuditLog is the append-only in-memory audit trail, bucketed by action
type AuditLog struct {
	mu       sync.RWMutex
	entries  []Entry
	byAction map[string][]int
}

// NewAuditLog creates an empty audit log
func NewAuditLog() *AuditLog {
	return &AuditLog{byAction: make(map[string][]int)}
}

// Append stores a copy of the entry
func (l *AuditLog) Append(entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry.clone())
	l.byAction[entry.Action] = append(l.byAction[entry.Action], len(l.entries)-1)
}

// Len returns the number of entries
func (l *AuditLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Count returns the number of entries recorded with the given action
func (l *AuditLog) Count(action string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.byAction[action])
}

// List returns matching entries newest first
func (l *AuditLog) List(filter Filter) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Entry
	skipped := 0
	visit := func(e Entry) bool {
		if !filter.matches(e) {
			return true
		}
		if skipped < filter.Offset {
			skipped++
			return true
		}
		out = append(out, e.clone())
		return filter.Limit <= 0 || len(out) < filter.Limit
	}

	if filter.Action != "" {
		idx := l.byAction[filter.Action]
		for i := len(idx) - 1; i >= 0; i-- {
			if !visit(l.entries[idx[i]]) {
				break
			}
		}
		return out
	}
	for i := len(l.entries) - 1; i >= 0; i-- {
		if !visit(l.entries[i]) {
			break
		}
	}
	return out
}

// ListSince returns entries with Timestamp >= since, oldest first
func (l *AuditLog) ListSince(ctx context.Context, since time.Time) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := l.List(Filter{Since: since})
	slices.Reverse(out)
	return out, nil
}

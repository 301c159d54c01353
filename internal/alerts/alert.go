package alerts

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidAlert is returned (wrapped) by Validate for alerts that cannot be evaluated.
var ErrInvalidAlert = errors.New("invalid alert")

// Source identifies the monitoring system an alert came from
type Source string

const (
	SourcePagerDuty Source = "pagerduty"
	SourceJira      Source = "jira"
	SourceIcinga    Source = "icinga"
	SourceOther     Source = "other"
)

// Severity is the normalized severity. Source-specific spellings are mapped by NormalizeSeverity.
type Severity string

const (
	SeveritySev1 Severity = "sev1"
	SeveritySev2 Severity = "sev2"
	SeveritySev3 Severity = "sev3"
)

// IsCritical reports whether the severity belongs to the critical set.
func (s Severity) IsCritical() bool {
	return s == SeveritySev1
}

// Alert is one observed event, either freshly ingested or read back from history.
type Alert struct {
	ID             *string    `json:"id"`
	Source         Source     `json:"source"`
	Host           string     `json:"host"`
	Title          string     `json:"title"`
	Severity       Severity   `json:"severity"`
	Status         *string    `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	ResolvedAt     *time.Time `json:"resolved_at"`
	DecisionReason *string    `json:"decision_reason"`
}

// Validate checks the invariants every alert must satisfy before it is evaluated.
func (a Alert) Validate() error {
	if strings.TrimSpace(a.Host) == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidAlert)
	}
	if strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidAlert)
	}
	if a.CreatedAt.IsZero() {
		return fmt.Errorf("%w: created_at is required", ErrInvalidAlert)
	}
	switch a.Severity {
	case SeveritySev1, SeveritySev2, SeveritySev3:
	default:
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidAlert, a.Severity)
	}
	if a.ResolvedAt != nil && a.ResolvedAt.Before(a.CreatedAt) {
		return fmt.Errorf("%w: resolved_at is before created_at", ErrInvalidAlert)
	}
	return nil
}

// IDString returns the alert id or an empty string when the source did not provide one.
func (a Alert) IDString() string {
	if a.ID == nil {
		return ""
	}
	return *a.ID
}

// StatusString returns the status or an empty string when unset.
func (a Alert) StatusString() string {
	if a.Status == nil {
		return ""
	}
	return *a.Status
}

// WithDecision returns a copy of the alert carrying the decision reason.
// The receiver is left untouched.
func (a Alert) WithDecision(reason string) Alert {
	out := a.Clone()
	r := reason
	out.DecisionReason = &r
	return out
}

// Clone returns a deep copy so snapshots stored in audit records can't be mutated through shared pointers.
func (a Alert) Clone() Alert {
	out := a
	if a.ID != nil {
		id := *a.ID
		out.ID = &id
	}
	if a.Status != nil {
		s := *a.Status
		out.Status = &s
	}
	if a.ResolvedAt != nil {
		r := *a.ResolvedAt
		out.ResolvedAt = &r
	}
	if a.DecisionReason != nil {
		d := *a.DecisionReason
		out.DecisionReason = &d
	}
	return out
}

// StringPtr is a small helper for building optional fields.
func StringPtr(s string) *string {
	return &s
}

// TimePtr is a small helper for building optional timestamps.
func TimePtr(t time.Time) *time.Time {
	return &t
}

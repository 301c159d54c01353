package classifier

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/akmatori/alertsieve/internal/alerts"
)

// FeatureVector is the typed input sent to the classifier.
// Optional fields are pointers and are encoded as explicit JSON nulls when unset.
type FeatureVector struct {
	Source     alerts.Source
	Host       string
	Severity   alerts.Severity
	Status     *string
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// FeaturesFromAlert builds the feature vector for an alert
func FeaturesFromAlert(a alerts.Alert) FeatureVector {
	c := a.Clone()
	return FeatureVector{
		Source:     c.Source,
		Host:       c.Host,
		Severity:   c.Severity,
		Status:     c.Status,
		CreatedAt:  c.CreatedAt,
		ResolvedAt: c.ResolvedAt,
	}
}

// Validate checks the vector before it leaves the process
func (f FeatureVector) Validate() error {
	if strings.TrimSpace(f.Host) == "" {
		return fmt.Errorf("host is required")
	}
	if f.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	switch f.Severity {
	case alerts.SeveritySev1, alerts.SeveritySev2, alerts.SeveritySev3:
	default:
		return fmt.Errorf("unknown severity %q", f.Severity)
	}
	if f.ResolvedAt != nil && f.ResolvedAt.Before(f.CreatedAt) {
		return fmt.Errorf("resolved_at is before created_at")
	}
	return nil
}

type featureWire struct {
	Source     string  `json:"source"`
	Host       string  `json:"host"`
	Severity   string  `json:"severity"`
	Status     *string `json:"status"`
	CreatedAt  string  `json:"created_at"`
	ResolvedAt *string `json:"resolved_at"`
}

func (f FeatureVector) wire() featureWire {
	w := featureWire{
		Source:    string(f.Source),
		Host:      f.Host,
		Severity:  string(f.Severity),
		Status:    f.Status,
		CreatedAt: f.CreatedAt.UTC().Format(time.RFC3339),
	}
	if w.Source == "" {
		w.Source = string(alerts.SourceOther)
	}
	if f.ResolvedAt != nil {
		s := f.ResolvedAt.UTC().Format(time.RFC3339)
		w.ResolvedAt = &s
	}
	return w
}

// MarshalJSON encodes timestamps as RFC3339 UTC and unset optionals as null
func (f FeatureVector) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.wire())
}

// CacheKey identifies the vector for prediction memoization
func (f FeatureVector) CacheKey() string {
	w := f.wire()
	status, resolved := "<nil>", "<nil>"
	if w.Status != nil {
		status = *w.Status
	}
	if w.ResolvedAt != nil {
		resolved = *w.ResolvedAt
	}
	return strings.Join([]string{w.Source, w.Host, w.Severity, status, w.CreatedAt, resolved}, "\x1f")
}

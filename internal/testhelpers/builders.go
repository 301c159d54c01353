package testhelpers

import (
	"fmt"
	"time"

	"github.com/akmatori/alertsieve/internal/alerts"
)

// BaseTime is a fixed reference instant so tests never depend on the wall clock
var BaseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// AlertBuilder builds alerts.Alert instances for testing
type AlertBuilder struct {
	alert alerts.Alert
}

// NewAlertBuilder creates a new alert builder with defaults matching "web-01 / High CPU / sev2"
func NewAlertBuilder() *AlertBuilder {
	return &AlertBuilder{
		alert: alerts.Alert{
			Source:    alerts.SourcePagerDuty,
			Host:      "web-01",
			Title:     "High CPU",
			Severity:  alerts.SeveritySev2,
			Status:    alerts.StringPtr("firing"),
			CreatedAt: BaseTime,
		},
	}
}

// WithID sets the alert id
func (b *AlertBuilder) WithID(id string) *AlertBuilder {
	b.alert.ID = alerts.StringPtr(id)
	return b
}

// WithHost sets the host
func (b *AlertBuilder) WithHost(host string) *AlertBuilder {
	b.alert.Host = host
	return b
}

// WithTitle sets the title
func (b *AlertBuilder) WithTitle(title string) *AlertBuilder {
	b.alert.Title = title
	return b
}

// WithSource sets the source
func (b *AlertBuilder) WithSource(source alerts.Source) *AlertBuilder {
	b.alert.Source = source
	return b
}

// WithSeverity sets the severity
func (b *AlertBuilder) WithSeverity(severity alerts.Severity) *AlertBuilder {
	b.alert.Severity = severity
	return b
}

// WithStatus sets the status; empty clears it
func (b *AlertBuilder) WithStatus(status string) *AlertBuilder {
	if status == "" {
		b.alert.Status = nil
		return b
	}
	b.alert.Status = alerts.StringPtr(status)
	return b
}

// CreatedAt sets the creation time
func (b *AlertBuilder) CreatedAt(t time.Time) *AlertBuilder {
	b.alert.CreatedAt = t
	return b
}

// CreatedBefore sets the creation time relative to BaseTime
func (b *AlertBuilder) CreatedBefore(d time.Duration) *AlertBuilder {
	b.alert.CreatedAt = BaseTime.Add(-d)
	return b
}

// ResolvedAfter marks the alert resolved d after creation
func (b *AlertBuilder) ResolvedAfter(d time.Duration) *AlertBuilder {
	b.alert.ResolvedAt = alerts.TimePtr(b.alert.CreatedAt.Add(d))
	return b
}

// Build returns the constructed alert
func (b *AlertBuilder) Build() alerts.Alert {
	return b.alert.Clone()
}

// FlappingHistory returns alerts for web-01/High CPU alternating firing/resolved,
// one per minute ending six minutes before BaseTime (outside the default duplicate window).
// n alerts produce n-1 transitions.
func FlappingHistory(n int) []alerts.Alert {
	out := make([]alerts.Alert, 0, n)
	for i := 0; i < n; i++ {
		status := "firing"
		if i%2 == 1 {
			status = "resolved"
		}
		out = append(out, NewAlertBuilder().
			WithID(fmt.Sprintf("flap-%d", i)).
			WithStatus(status).
			CreatedBefore(time.Duration(n-i+5)*time.Minute).
			Build())
	}
	return out
}

// ResolvedHistory returns resolved alerts for web-01/High CPU spread over the previous days,
// resolved after the given durations.
func ResolvedHistory(resolutions ...time.Duration) []alerts.Alert {
	out := make([]alerts.Alert, 0, len(resolutions))
	for i, d := range resolutions {
		out = append(out, NewAlertBuilder().
			WithID(fmt.Sprintf("res-%d", i)).
			WithStatus("resolved").
			CreatedBefore(time.Duration(i+1)*6*time.Hour).
			ResolvedAfter(d).
			Build())
	}
	return out
}

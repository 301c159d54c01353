package adapters

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/akmatori/alertsieve/internal/alerts"
)

// AlertmanagerAdapter handles Prometheus Alertmanager webhooks.
// Alertmanager is not one of the named sources, so its alerts are recorded as "other".
type AlertmanagerAdapter struct {
	alerts.BaseAdapter
}

// NewAlertmanagerAdapter creates a new Alertmanager adapter
func NewAlertmanagerAdapter() *AlertmanagerAdapter {
	return &AlertmanagerAdapter{
		BaseAdapter: alerts.BaseAdapter{SourceType: "alertmanager", SecretHeader: "X-Alertmanager-Secret"},
	}
}

// AlertmanagerPayload represents the webhook payload from Alertmanager
type AlertmanagerPayload struct {
	Alerts   []AlertmanagerAlert `json:"alerts"`
	Status   string              `json:"status"`
	GroupKey string              `json:"groupKey"`
}

// AlertmanagerAlert represents a single alert in the payload
type AlertmanagerAlert struct {
	Status      string            `json:"status"`
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
	StartsAt    time.Time         `json:"startsAt"`
	EndsAt      time.Time         `json:"endsAt"`
	Fingerprint string            `json:"fingerprint"`
}

// ParsePayload parses an Alertmanager group notification into alerts
func (a *AlertmanagerAdapter) ParsePayload(body []byte) ([]alerts.Alert, error) {
	var payload AlertmanagerPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse alertmanager payload: %w", err)
	}

	result := make([]alerts.Alert, 0, len(payload.Alerts))
	for _, am := range payload.Alerts {
		result = append(result, a.parseAlert(am))
	}
	return result, nil
}

func (a *AlertmanagerAdapter) parseAlert(am AlertmanagerAlert) alerts.Alert {
	title := am.Labels["alertname"]
	if summary := am.Annotations["summary"]; title == "" && summary != "" {
		title = summary
	}

	host := am.Labels["instance"]
	if host == "" {
		host = am.Labels["host"]
	}

	createdAt := am.StartsAt.UTC()
	if am.StartsAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	alert := alerts.Alert{
		ID:        alerts.OptionalString(am.Fingerprint),
		Source:    alerts.SourceOther,
		Host:      host,
		Title:     title,
		Severity:  alerts.NormalizeSeverity(am.Labels["severity"]),
		Status:    alerts.NormalizeStatus(am.Status),
		CreatedAt: createdAt,
	}
	// Alertmanager sends a far-future endsAt for firing alerts
	if am.Status == "resolved" && !am.EndsAt.IsZero() {
		endsAt := am.EndsAt.UTC()
		alert.ResolvedAt = &endsAt
	}
	return alert
}

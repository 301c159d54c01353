package adapters

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/akmatori/alertsieve/internal/alerts"
)

// PagerDutyAdapter handles PagerDuty v3 webhooks
type PagerDutyAdapter struct {
	alerts.BaseAdapter
}

// NewPagerDutyAdapter creates a new PagerDuty adapter
func NewPagerDutyAdapter() *PagerDutyAdapter {
	return &PagerDutyAdapter{
		BaseAdapter: alerts.BaseAdapter{SourceType: "pagerduty", SecretHeader: "X-PagerDuty-Signature"},
	}
}

// PagerDutyPayload represents the webhook payload from PagerDuty
type PagerDutyPayload struct {
	Event struct {
		ID         string `json:"id"`
		EventType  string `json:"event_type"` // incident.triggered, incident.resolved, etc.
		OccurredAt string `json:"occurred_at"`
		Data       struct {
			ID        string `json:"id"`
			Type      string `json:"type"`
			Title     string `json:"title"`
			Status    string `json:"status"`
			Urgency   string `json:"urgency"`
			CreatedAt string `json:"created_at"`
			Priority  struct {
				ID      string `json:"id"`
				Summary string `json:"summary"`
			} `json:"priority"`
			Service struct {
				ID      string `json:"id"`
				Name    string `json:"name"`
				Summary string `json:"summary"`
			} `json:"service"`
			Source string `json:"source"`
		} `json:"data"`
	} `json:"event"`
}

// ParsePayload parses a PagerDuty webhook payload into a single alert
func (a *PagerDutyAdapter) ParsePayload(body []byte) ([]alerts.Alert, error) {
	var payload PagerDutyPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse pagerduty payload: %w", err)
	}

	event := payload.Event
	data := event.Data
	if data.Title == "" {
		return nil, fmt.Errorf("pagerduty payload has no incident title")
	}

	host := data.Source
	if host == "" {
		host = data.Service.Name
	}

	createdAt, ok := alerts.ParseTimestamp(data.CreatedAt)
	if !ok {
		createdAt, ok = alerts.ParseTimestamp(event.OccurredAt)
	}
	if !ok {
		createdAt = time.Now().UTC()
	}

	alert := alerts.Alert{
		ID:        alerts.OptionalString(data.ID),
		Source:    alerts.SourcePagerDuty,
		Host:      host,
		Title:     data.Title,
		Severity:  a.mapUrgencyToSeverity(data.Urgency, data.Priority.Summary),
		Status:    alerts.NormalizeStatus(a.statusFromEvent(event.EventType, data.Status)),
		CreatedAt: createdAt,
	}

	if strings.HasSuffix(event.EventType, ".resolved") {
		if resolvedAt, ok := alerts.ParseTimestamp(event.OccurredAt); ok && !resolvedAt.Before(createdAt) {
			alert.ResolvedAt = &resolvedAt
		}
	}

	return []alerts.Alert{alert}, nil
}

func (a *PagerDutyAdapter) statusFromEvent(eventType, status string) string {
	if status != "" {
		return status
	}
	// incident.triggered -> triggered
	if idx := strings.LastIndex(eventType, "."); idx >= 0 {
		return eventType[idx+1:]
	}
	return eventType
}

// mapUrgencyToSeverity maps PagerDuty priority/urgency to normalized severity
func (a *PagerDutyAdapter) mapUrgencyToSeverity(urgency, priority string) alerts.Severity {
	// Check priority first
	if priority != "" {
		if sev := alerts.NormalizeSeverity(priority); sev != alerts.SeveritySev3 {
			return sev
		}
	}

	switch strings.ToLower(urgency) {
	case "high":
		return alerts.SeveritySev2
	default:
		return alerts.SeveritySev3
	}
}

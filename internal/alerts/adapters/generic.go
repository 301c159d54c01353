package adapters

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/akmatori/alertsieve/internal/alerts"
)

// GenericAdapter accepts alerts already shaped like the internal model.
// It backs the "other" source and the evaluate API.
type GenericAdapter struct {
	alerts.BaseAdapter
}

// NewGenericAdapter creates a new generic adapter
func NewGenericAdapter() *GenericAdapter {
	return &GenericAdapter{
		BaseAdapter: alerts.BaseAdapter{SourceType: "other", SecretHeader: "X-Webhook-Secret"},
	}
}

// GenericAlert is the loosely-typed wire form; severity and status are normalized on parse
type GenericAlert struct {
	ID         string      `json:"id"`
	Source     string      `json:"source"`
	Host       string      `json:"host"`
	Title      string      `json:"title"`
	Severity   string      `json:"severity"`
	Status     string      `json:"status"`
	CreatedAt  interface{} `json:"created_at"`
	ResolvedAt interface{} `json:"resolved_at"`
}

// ParsePayload parses a single alert object or an array of them
func (a *GenericAdapter) ParsePayload(body []byte) ([]alerts.Alert, error) {
	var raw []GenericAlert

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse alert payload: %w", err)
		}
	} else {
		var single GenericAlert
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, fmt.Errorf("failed to parse alert payload: %w", err)
		}
		raw = append(raw, single)
	}

	result := make([]alerts.Alert, 0, len(raw))
	for _, g := range raw {
		result = append(result, g.ToAlert())
	}
	return result, nil
}

// ToAlert converts the wire form. Missing created_at defaults to now; validation is left to the caller.
func (g GenericAlert) ToAlert() alerts.Alert {
	createdAt, ok := alerts.ParseTimestamp(g.CreatedAt)
	if !ok {
		createdAt = time.Now().UTC()
	}

	alert := alerts.Alert{
		ID:        alerts.OptionalString(g.ID),
		Source:    alerts.NormalizeSource(g.Source),
		Host:      g.Host,
		Title:     g.Title,
		Severity:  alerts.NormalizeSeverity(g.Severity),
		Status:    alerts.NormalizeStatus(g.Status),
		CreatedAt: createdAt,
	}
	if resolvedAt, ok := alerts.ParseTimestamp(g.ResolvedAt); ok {
		alert.ResolvedAt = &resolvedAt
	}
	return alert
}

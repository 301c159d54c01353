package adapters

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/akmatori/alertsieve/internal/alerts"
)

// JiraAdapter handles Jira issue webhooks (jira:issue_created / jira:issue_updated)
type JiraAdapter struct {
	alerts.BaseAdapter

	// HostField is the dot path inside the issue used as host (custom fields differ per project)
	HostField string
}

// NewJiraAdapter creates a new Jira adapter
func NewJiraAdapter() *JiraAdapter {
	return &JiraAdapter{
		BaseAdapter: alerts.BaseAdapter{SourceType: "jira", SecretHeader: "X-Jira-Secret"},
	}
}

// ParsePayload parses a Jira webhook payload into a single alert
func (a *JiraAdapter) ParsePayload(body []byte) ([]alerts.Alert, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse jira payload: %w", err)
	}

	issue, ok := payload["issue"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("jira payload has no issue")
	}

	title := alerts.ExtractString(issue, "fields.summary")
	if title == "" {
		return nil, fmt.Errorf("jira issue has no summary")
	}

	host := a.extractHost(issue)

	createdAt, ok := alerts.ParseTimestamp(alerts.ExtractNestedValue(issue, "fields.created"))
	if !ok {
		createdAt = time.Now().UTC()
	}

	alert := alerts.Alert{
		ID:        alerts.OptionalString(alerts.ExtractString(issue, "key")),
		Source:    alerts.SourceJira,
		Host:      host,
		Title:     title,
		Severity:  alerts.NormalizeSeverity(alerts.ExtractString(issue, "fields.priority.name")),
		Status:    alerts.NormalizeStatus(alerts.ExtractString(issue, "fields.status.name")),
		CreatedAt: createdAt,
	}

	if resolvedAt, ok := alerts.ParseTimestamp(alerts.ExtractNestedValue(issue, "fields.resolutiondate")); ok && !resolvedAt.Before(createdAt) {
		alert.ResolvedAt = &resolvedAt
	}

	return []alerts.Alert{alert}, nil
}

// extractHost prefers the configured field, then the first component, the first label and the project key.
func (a *JiraAdapter) extractHost(issue map[string]interface{}) string {
	if host := alerts.ExtractString(issue, a.HostField); host != "" {
		return host
	}
	if components, ok := alerts.ExtractNestedValue(issue, "fields.components").([]interface{}); ok && len(components) > 0 {
		if first, ok := components[0].(map[string]interface{}); ok {
			if name, _ := first["name"].(string); name != "" {
				return name
			}
		}
	}
	if labels, ok := alerts.ExtractNestedValue(issue, "fields.labels").([]interface{}); ok && len(labels) > 0 {
		if label, _ := labels[0].(string); label != "" {
			return label
		}
	}
	return alerts.ExtractString(issue, "fields.project.key")
}

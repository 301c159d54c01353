package adapters

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/akmatori/alertsieve/internal/alerts"
)

// IcingaAdapter handles notifications posted by an Icinga2 notification command.
// The body is either a single notification object or a JSON array of them.
type IcingaAdapter struct {
	alerts.BaseAdapter
}

// NewIcingaAdapter creates a new Icinga adapter
func NewIcingaAdapter() *IcingaAdapter {
	return &IcingaAdapter{
		BaseAdapter: alerts.BaseAdapter{SourceType: "icinga", SecretHeader: "X-Icinga-Token"},
	}
}

// IcingaNotification is the object emitted by the notification command
type IcingaNotification struct {
	ID               string      `json:"id"`
	NotificationType string      `json:"notification_type"` // PROBLEM, RECOVERY, ACKNOWLEDGEMENT, ...
	HostName         string      `json:"host_name"`
	HostDisplayName  string      `json:"host_display_name"`
	ServiceName      string      `json:"service_name"`
	ServiceDisplay   string      `json:"service_display_name"`
	State            string      `json:"state"` // OK, WARNING, CRITICAL, UNKNOWN, UP, DOWN
	Output           string      `json:"output"`
	Timestamp        interface{} `json:"timestamp"`
	LastStateChange  interface{} `json:"last_state_change"`
}

// ParsePayload parses one or more Icinga notifications
func (a *IcingaAdapter) ParsePayload(body []byte) ([]alerts.Alert, error) {
	var notifications []IcingaNotification

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &notifications); err != nil {
			return nil, fmt.Errorf("failed to parse icinga payload: %w", err)
		}
	} else {
		var single IcingaNotification
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, fmt.Errorf("failed to parse icinga payload: %w", err)
		}
		notifications = append(notifications, single)
	}

	result := make([]alerts.Alert, 0, len(notifications))
	for _, n := range notifications {
		alert, err := a.toAlert(n)
		if err != nil {
			return nil, err
		}
		result = append(result, alert)
	}
	return result, nil
}

func (a *IcingaAdapter) toAlert(n IcingaNotification) (alerts.Alert, error) {
	host := n.HostName
	if host == "" {
		host = n.HostDisplayName
	}
	if host == "" {
		return alerts.Alert{}, fmt.Errorf("icinga notification has no host_name")
	}

	title := n.ServiceDisplay
	if title == "" {
		title = n.ServiceName
	}
	if title == "" {
		// Host checks carry no service; use the plugin output instead
		title = firstLine(n.Output)
	}
	if title == "" {
		title = "Host check " + strings.ToUpper(n.State)
	}

	createdAt, ok := alerts.ParseTimestamp(n.LastStateChange)
	if !ok {
		createdAt, ok = alerts.ParseTimestamp(n.Timestamp)
	}
	if !ok {
		createdAt = time.Now().UTC()
	}

	alert := alerts.Alert{
		ID:        alerts.OptionalString(n.ID),
		Source:    alerts.SourceIcinga,
		Host:      host,
		Title:     title,
		Severity:  a.mapStateToSeverity(n.State),
		Status:    alerts.NormalizeStatus(a.statusFromNotification(n)),
		CreatedAt: createdAt,
	}

	if strings.EqualFold(n.NotificationType, "RECOVERY") {
		if resolvedAt, ok := alerts.ParseTimestamp(n.Timestamp); ok && !resolvedAt.Before(createdAt) {
			alert.ResolvedAt = &resolvedAt
		}
	}
	return alert, nil
}

func (a *IcingaAdapter) statusFromNotification(n IcingaNotification) string {
	switch strings.ToUpper(n.NotificationType) {
	case "RECOVERY":
		return "resolved"
	case "ACKNOWLEDGEMENT":
		return "acknowledged"
	case "PROBLEM":
		return "firing"
	}
	return n.State
}

// mapStateToSeverity maps Icinga check states to normalized severity
func (a *IcingaAdapter) mapStateToSeverity(state string) alerts.Severity {
	switch strings.ToUpper(state) {
	case "CRITICAL", "DOWN":
		return alerts.SeveritySev1
	case "WARNING", "UNREACHABLE":
		return alerts.SeveritySev2
	default:
		return alerts.SeveritySev3
	}
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

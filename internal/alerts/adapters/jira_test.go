package adapters

import (
	"testing"

	"github.com/akmatori/alertsieve/internal/alerts"
)

func TestJiraAdapter_ParsePayload(t *testing.T) {
	adapter := NewJiraAdapter()

	payload := []byte(`{
		"webhookEvent": "jira:issue_created",
		"issue": {
			"key": "OPS-1234",
			"fields": {
				"summary": "Disk usage above 90%",
				"created": "2024-05-01T10:00:00.000+0000",
				"priority": {"name": "Highest"},
				"status": {"name": "Open"},
				"components": [{"name": "web-01"}],
				"labels": ["ignored"],
				"project": {"key": "OPS"}
			}
		}
	}`)

	parsed, err := adapter.ParsePayload(payload)
	if err != nil {
		t.Fatalf("ParsePayload returned error: %v", err)
	}
	if len(parsed) != 1 {
		t.Fatalf("Expected 1 alert, got %d", len(parsed))
	}

	alert := parsed[0]
	if alert.Source != alerts.SourceJira {
		t.Errorf("Expected source jira, got %s", alert.Source)
	}
	if alert.IDString() != "OPS-1234" {
		t.Errorf("Expected ID 'OPS-1234', got '%s'", alert.IDString())
	}
	if alert.Host != "web-01" {
		t.Errorf("Expected Host 'web-01', got '%s'", alert.Host)
	}
	if alert.Severity != alerts.SeveritySev1 {
		t.Errorf("Expected sev1 for Highest priority, got %s", alert.Severity)
	}
	if alert.StatusString() != "firing" {
		t.Errorf("Expected status 'firing', got '%s'", alert.StatusString())
	}
	if alert.CreatedAt.Hour() != 10 {
		t.Errorf("Expected created_at hour 10, got %v", alert.CreatedAt)
	}
}

func TestJiraAdapter_HostFallbacks(t *testing.T) {
	adapter := NewJiraAdapter()

	tests := []struct {
		name     string
		fields   string
		expected string
	}{
		{"labels", `"labels": ["db-02"], "project": {"key": "OPS"}`, "db-02"},
		{"project key", `"project": {"key": "OPS"}`, "OPS"},
		{"empty components", `"components": [], "project": {"key": "INFRA"}`, "INFRA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := []byte(`{"issue": {"key": "X-1", "fields": {"summary": "s", ` + tt.fields + `}}}`)
			parsed, err := adapter.ParsePayload(payload)
			if err != nil {
				t.Fatalf("ParsePayload returned error: %v", err)
			}
			if parsed[0].Host != tt.expected {
				t.Errorf("Expected host %q, got %q", tt.expected, parsed[0].Host)
			}
		})
	}
}

func TestJiraAdapter_ParsePayload_Resolved(t *testing.T) {
	adapter := NewJiraAdapter()

	payload := []byte(`{"issue": {"key": "OPS-9", "fields": {
		"summary": "Flaky check",
		"created": "2024-05-01T10:00:00Z",
		"resolutiondate": "2024-05-01T10:05:00Z",
		"status": {"name": "Done"},
		"priority": {"name": "Medium"},
		"labels": ["app-01"]
	}}}`)

	parsed, err := adapter.ParsePayload(payload)
	if err != nil {
		t.Fatalf("ParsePayload returned error: %v", err)
	}
	alert := parsed[0]
	if alert.StatusString() != "resolved" {
		t.Errorf("Expected status 'resolved', got '%s'", alert.StatusString())
	}
	if alert.ResolvedAt == nil {
		t.Fatal("Expected ResolvedAt to be set")
	}
	if alert.Severity != alerts.SeveritySev3 {
		t.Errorf("Expected sev3 for Medium priority, got %s", alert.Severity)
	}
}

func TestJiraAdapter_ParsePayload_Errors(t *testing.T) {
	adapter := NewJiraAdapter()

	tests := []struct {
		name    string
		payload string
	}{
		{"invalid json", `{not json`},
		{"no issue", `{"webhookEvent": "jira:issue_created"}`},
		{"no summary", `{"issue": {"key": "X-1", "fields": {}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := adapter.ParsePayload([]byte(tt.payload)); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

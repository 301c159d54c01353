package alerts

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// AlertAdapter defines the interface for source-specific alert parsing
type AlertAdapter interface {
	// GetSourceType returns the source path segment (e.g., "pagerduty")
	GetSourceType() string

	// ValidateWebhookSecret validates the incoming webhook against the configured shared secret
	ValidateWebhookSecret(r *http.Request, secret string) error

	// ParsePayload parses the raw request body into alerts.
	// A single webhook can contain multiple alerts (e.g., Icinga batches)
	ParsePayload(body []byte) ([]Alert, error)
}

// BaseAdapter provides common functionality for all adapters
type BaseAdapter struct {
	SourceType   string
	SecretHeader string
}

// GetSourceType returns the source type name
func (b *BaseAdapter) GetSourceType() string {
	return b.SourceType
}

// ValidateWebhookSecret accepts the secret in the adapter's header or as a bearer token.
// An empty secret disables the check.
func (b *BaseAdapter) ValidateWebhookSecret(r *http.Request, secret string) error {
	if secret == "" {
		return nil
	}

	provided := ""
	if b.SecretHeader != "" {
		provided = r.Header.Get(b.SecretHeader)
	}
	if provided == "" {
		provided = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if provided == "" {
		return fmt.Errorf("missing webhook secret")
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
		return fmt.Errorf("webhook secret mismatch")
	}
	return nil
}

// ExtractNestedValue extracts a value using dot notation (e.g., "fields.priority.name")
func ExtractNestedValue(data map[string]interface{}, path string) interface{} {
	if path == "" {
		return nil
	}

	parts := strings.Split(path, ".")
	current := interface{}(data)

	for _, part := range parts {
		switch v := current.(type) {
		case map[string]interface{}:
			current = v[part]
		case map[string]string:
			current = v[part]
		default:
			return nil
		}
		if current == nil {
			return nil
		}
	}

	return current
}

// ExtractString extracts a string value using dot notation
func ExtractString(data map[string]interface{}, path string) string {
	val := ExtractNestedValue(data, path)
	if val == nil {
		return ""
	}
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}

// ParseTimestamp accepts RFC3339 strings and unix seconds (as float64 from encoding/json).
func ParseTimestamp(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		if t == "" {
			return time.Time{}, false
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000-0700", "2006-01-02 15:04:05"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC(), true
			}
		}
	case float64:
		if t > 0 {
			sec := int64(t)
			return time.Unix(sec, int64((t-float64(sec))*1e9)).UTC(), true
		}
	case int64:
		if t > 0 {
			return time.Unix(t, 0).UTC(), true
		}
	}
	return time.Time{}, false
}

// optionalString returns nil for empty values so "unset" never travels as an empty string.
func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// OptionalString is exported for adapters living in sibling packages.
func OptionalString(s string) *string {
	return optionalString(s)
}

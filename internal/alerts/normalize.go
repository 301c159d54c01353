package alerts

import "strings"

// DefaultSeverityMapping lists the source-specific spellings folded into each severity.
// Anything not listed here normalizes to sev3.
var DefaultSeverityMapping = map[Severity][]string{
	SeveritySev1: {"sev1", "severity-1", "severity1", "s1", "critical", "p1", "disaster", "emergency", "fatal", "blocker", "highest"},
	SeveritySev2: {"sev2", "severity-2", "severity2", "s2", "high", "major", "p2", "error", "severe"},
	SeveritySev3: {"sev3", "severity-3", "severity3", "s3", "warning", "warn", "minor", "p3", "p4", "p5", "medium", "average", "low", "lowest", "info", "informational", "notice", "unknown"},
}

var severityLookup = func() map[string]Severity {
	lookup := make(map[string]Severity)
	for normalized, aliases := range DefaultSeverityMapping {
		for _, alias := range aliases {
			lookup[alias] = normalized
		}
	}
	return lookup
}()

// NormalizeSeverity normalizes severity strings to sev1/sev2/sev3
func NormalizeSeverity(severity string) Severity {
	key := strings.ToLower(strings.TrimSpace(severity))
	if s, ok := severityLookup[key]; ok {
		return s
	}
	// PagerDuty priorities arrive as "P1 - Critical"
	for _, field := range strings.FieldsFunc(key, func(r rune) bool { return r == ' ' || r == '-' || r == '_' || r == ':' }) {
		if s, ok := severityLookup[field]; ok && s != SeveritySev3 {
			return s
		}
	}
	return SeveritySev3
}

// NormalizeSource maps free-form source names onto the known sources
func NormalizeSource(source string) Source {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case "pagerduty", "pd":
		return SourcePagerDuty
	case "jira":
		return SourceJira
	case "icinga", "icinga2":
		return SourceIcinga
	default:
		return SourceOther
	}
}

// NormalizeStatus lowercases the status and folds common synonyms.
// Empty input stays unset.
func NormalizeStatus(status string) *string {
	s := strings.ToLower(strings.TrimSpace(status))
	switch s {
	case "":
		return nil
	case "firing", "alerting", "triggered", "active", "problem", "open", "critical", "down":
		s = "firing"
	case "resolved", "ok", "recovery", "inactive", "closed", "done", "up":
		s = "resolved"
	case "acknowledged", "ack", "acknowledgement", "in progress":
		s = "acknowledged"
	}
	return &s
}

package api

import (
	"github.com/akmatori/alertsieve/internal/executor"
	"github.com/akmatori/alertsieve/internal/policy"
)

// EntryToDecision converts an audit entry to its list representation.
// The full alert snapshot and evidence are left out to keep listings small.
func EntryToDecision(e executor.Entry) DecisionItem {
	return DecisionItem{
		ID:         e.ID,
		AlertID:    e.AlertID,
		Host:       e.Alert.Host,
		Title:      e.Alert.Title,
		Source:     string(e.Alert.Source),
		Severity:   string(e.Alert.Severity),
		Action:     e.Action,
		Reason:     e.Reason,
		Rule:       policy.Rule(e.Reason),
		Confidence: e.Confidence,
		Degraded:   e.Degraded,
		DecidedAt:  e.Timestamp,
	}
}

// EntriesToDecisions converts a slice of audit entries.
func EntriesToDecisions(entries []executor.Entry) []DecisionItem {
	items := make([]DecisionItem, len(entries))
	for i, e := range entries {
		items[i] = EntryToDecision(e)
	}
	return items
}

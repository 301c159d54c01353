package policy

import (
	"fmt"
	"strings"
)

// Action is what happens to an alert
type Action string

const (
	ActionForward  Action = "forward"
	ActionSuppress Action = "suppress"
)

// Reason strings. Only these, the ml_prediction_confidence_<p> family and the
// error_in_decision_<msg> fallback are ever produced.
const (
	ReasonDuplicate       = "duplicate_alert"
	ReasonFlapping        = "flapping_alert"
	ReasonSelfResolving   = "self_resolving_alert"
	ReasonCriticalForward = "critical_alert_always_forward"
	ReasonDefaultForward  = "default_forward_no_strong_suppress"

	reasonMLPrefix    = "ml_prediction_confidence_"
	reasonErrorPrefix = "error_in_decision_"
)

// Rule labels for reasons that carry a suffix
const (
	RuleMLPrediction = "ml_prediction"
	RuleError        = "error_in_decision"
)

// MLReason formats the classifier reason with two decimals
func MLReason(probability float64) string {
	return fmt.Sprintf("%s%.2f", reasonMLPrefix, probability)
}

// ErrorReason builds the fail-safe reason. The message is reduced to
// lowercase word characters so the reason stays a single token.
func ErrorReason(msg string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(msg) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			underscore = false
		default:
			if !underscore && b.Len() > 0 {
				b.WriteByte('_')
				underscore = true
			}
		}
	}
	out := strings.TrimSuffix(b.String(), "_")
	if len(out) > 80 {
		out = strings.TrimSuffix(out[:80], "_")
	}
	if out == "" {
		out = "unknown"
	}
	return reasonErrorPrefix + out
}

// Rule strips the variable suffix from a reason, for metrics labels and summaries
func Rule(reason string) string {
	switch {
	case strings.HasPrefix(reason, reasonMLPrefix):
		return RuleMLPrediction
	case strings.HasPrefix(reason, reasonErrorPrefix):
		return RuleError
	}
	return reason
}

// IsSuppressReason reports whether a stored decision reason belongs to a suppress rule
func IsSuppressReason(reason string) bool {
	switch Rule(reason) {
	case ReasonDuplicate, ReasonFlapping, ReasonSelfResolving, RuleMLPrediction:
		return true
	}
	return false
}

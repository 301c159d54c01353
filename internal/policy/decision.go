// Package policy turns detector verdicts and a classifier prediction into one Decision.
//
// Rules are evaluated in a fixed order and the first match wins:
//
//  1. duplicate                      -> suppress duplicate_alert
//  2. flapping                       -> suppress flapping_alert
//  3. self-resolving                 -> suppress self_resolving_alert
//  4. sev1 and CriticalAlwaysForward -> forward critical_alert_always_forward
//  5. classifier says suppress, p >= SuppressionThreshold -> suppress ml_prediction_confidence_<p>
//  6. otherwise                      -> forward default_forward_no_strong_suppress
//
// A critical alert that is also a duplicate or flapping is suppressed by rules 1-3.
package policy

import (
	"fmt"
	"math"

	"github.com/akmatori/alertsieve/internal/alerts"
	"github.com/akmatori/alertsieve/internal/classifier"
	"github.com/akmatori/alertsieve/internal/config"
	"github.com/akmatori/alertsieve/internal/detection"
)

// Decision is the final verdict for one alert
type Decision struct {
	Action     Action  `json:"action"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// Rule returns the reason without its variable suffix
func (d Decision) Rule() string {
	return Rule(d.Reason)
}

// PolicyError is raised when the rules could not be evaluated
type PolicyError struct {
	Op  string
	Err error
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("policy %s: %v", e.Op, e.Err)
}

func (e *PolicyError) Unwrap() error {
	return e.Err
}

// Decide evaluates the rules. It always returns a decision.
func Decide(
	alert alerts.Alert,
	dup detection.DuplicateResult,
	flap detection.FlappingResult,
	selfRes detection.SelfResolutionResult,
	pred *classifier.Prediction,
	settings config.Settings,
) Decision {
	d, _ := Evaluate(alert, dup, flap, selfRes, pred, settings)
	return d
}

// Evaluate is Decide that also reports the *PolicyError behind a fail-safe forward
func Evaluate(
	alert alerts.Alert,
	dup detection.DuplicateResult,
	flap detection.FlappingResult,
	selfRes detection.SelfResolutionResult,
	pred *classifier.Prediction,
	settings config.Settings,
) (decision Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			perr := &PolicyError{Op: "evaluate", Err: fmt.Errorf("panic: %v", r)}
			decision, err = Fallback(perr), perr
		}
	}()

	if verr := alert.Validate(); verr != nil {
		perr := &PolicyError{Op: "validate_alert", Err: verr}
		return Fallback(perr), perr
	}
	if verr := settings.Validate(); verr != nil {
		perr := &PolicyError{Op: "validate_settings", Err: verr}
		return Fallback(perr), perr
	}

	return evaluate(alert, dup, flap, selfRes, pred, settings)
}

// Fallback is the forward decision used whenever evaluation fails
func Fallback(err error) Decision {
	msg := "unknown"
	if err != nil {
		msg = err.Error()
		if perr, ok := err.(*PolicyError); ok && perr.Err != nil {
			msg = perr.Err.Error()
		}
	}
	return Decision{Action: ActionForward, Reason: ErrorReason(msg), Confidence: 0}
}

func evaluate(
	alert alerts.Alert,
	dup detection.DuplicateResult,
	flap detection.FlappingResult,
	selfRes detection.SelfResolutionResult,
	pred *classifier.Prediction,
	settings config.Settings,
) (Decision, error) {
	if dup.IsDuplicate {
		return Decision{Action: ActionSuppress, Reason: ReasonDuplicate, Confidence: 1.0}, nil
	}
	if flap.IsFlapping {
		return Decision{Action: ActionSuppress, Reason: ReasonFlapping, Confidence: flap.Confidence}, nil
	}
	if selfRes.IsSelfResolving {
		return Decision{Action: ActionSuppress, Reason: ReasonSelfResolving, Confidence: selfRes.Confidence}, nil
	}
	// Critical forwarding is checked after the suppression signals, so a sev1 duplicate is still suppressed.
	if alert.Severity.IsCritical() && settings.CriticalAlwaysForward {
		return Decision{Action: ActionForward, Reason: ReasonCriticalForward, Confidence: 1.0}, nil
	}

	if pred != nil && pred.Label() == classifier.LabelSuppress {
		p := pred.Probability()
		if math.IsNaN(p) || p < 0 || p > 1 {
			perr := &PolicyError{Op: "classifier_probability", Err: fmt.Errorf("probability %v out of range", p)}
			return Fallback(perr), perr
		}
		if p >= settings.SuppressionThreshold {
			return Decision{Action: ActionSuppress, Reason: MLReason(p), Confidence: p}, nil
		}
	}

	return Decision{Action: ActionForward, Reason: ReasonDefaultForward, Confidence: 0.5}, nil
}

package workflow

import (
	"time"

	"github.com/akmatori/alertsieve/internal/alerts"
	"github.com/akmatori/alertsieve/internal/classifier"
	"github.com/akmatori/alertsieve/internal/detection"
	"github.com/akmatori/alertsieve/internal/executor"
	"github.com/akmatori/alertsieve/internal/policy"
)

// State is a pipeline position. States only move forward.
type State string

const (
	StateReceived              State = "received"
	StateAnalyzed              State = "analyzed"
	StateDuplicateChecked      State = "duplicate_checked"
	StatePatternChecked        State = "pattern_checked"
	StateClassified            State = "classified"
	StateClassificationSkipped State = "classification_skipped"
	StateDecided               State = "decided"
	StateActionExecuted        State = "action_executed"
)

// StepStatus is the outcome of one step
type StepStatus string

const (
	StatusOK       StepStatus = "ok"
	StatusDegraded StepStatus = "degraded"
	StatusSkipped  StepStatus = "skipped"
	StatusFailed   StepStatus = "failed"
)

// Step names
const (
	StepAnalyze        = "analyze"
	StepDuplicateCheck = "duplicate_check"
	StepPatternCheck   = "pattern_check"
	StepClassify       = "classify"
	StepDecide         = "decide"
	StepExecute        = "execute"
)

// Step is one entry of the audit record
type Step struct {
	Name     string        `json:"name"`
	State    State         `json:"state"`
	Status   StepStatus    `json:"status"`
	Detail   string        `json:"detail,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Record is everything the pipeline observed and decided for one alert
type Record struct {
	Alert          alerts.Alert                   `json:"alert"`
	State          State                          `json:"state"`
	Steps          []Step                         `json:"steps"`
	Duplicate      detection.DuplicateResult      `json:"duplicate"`
	Flapping       detection.FlappingResult       `json:"flapping"`
	SelfResolution detection.SelfResolutionResult `json:"self_resolution"`
	Prediction     *classifier.Prediction         `json:"prediction,omitempty"`
	Decision       policy.Decision                `json:"decision"`
	Action         *executor.ActionResult         `json:"action,omitempty"`
	Degraded       []string                       `json:"degraded,omitempty"`
	StartedAt      time.Time                      `json:"started_at"`
	Duration       time.Duration                  `json:"duration"`
}

// Step returns the named step, if recorded
func (r *Record) Step(name string) (Step, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return Step{}, false
}

func (r *Record) add(step Step) {
	r.Steps = append(r.Steps, step)
	r.State = step.State
	if step.Status == StatusDegraded || step.Status == StatusFailed {
		r.Degraded = append(r.Degraded, step.Name)
	}
}

func (r *Record) evidence() map[string]any {
	ev := map[string]any{
		"duplicate":       r.Duplicate,
		"flapping":        r.Flapping,
		"self_resolution": r.SelfResolution,
	}
	if r.Prediction != nil {
		ev["prediction"] = r.Prediction
	}
	return ev
}

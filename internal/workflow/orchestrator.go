// Package workflow runs one alert through detection, classification, policy and action.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/akmatori/alertsieve/internal/alerts"
	"github.com/akmatori/alertsieve/internal/classifier"
	"github.com/akmatori/alertsieve/internal/config"
	"github.com/akmatori/alertsieve/internal/detection"
	"github.com/akmatori/alertsieve/internal/executor"
	"github.com/akmatori/alertsieve/internal/metrics"
	"github.com/akmatori/alertsieve/internal/policy"
)

// ActionExecutor carries out a decision
type ActionExecutor interface {
	Execute(ctx context.Context, req executor.Request) executor.ActionResult
}

// Orchestrator owns the per-alert state machine
type Orchestrator struct {
	duplicates     *detection.DuplicateDetector
	flapping       *detection.FlappingDetector
	selfResolution *detection.SelfResolutionDetector
	classifier     classifier.Classifier
	executor       ActionExecutor
	settings       config.Settings
	logger         *slog.Logger
}

// NewOrchestrator wires the detectors around a store. A nil classifier behaves like classifier.Disabled.
func NewOrchestrator(
	store detection.Store,
	clf classifier.Classifier,
	exec ActionExecutor,
	settings config.Settings,
	storeTimeout time.Duration,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if clf == nil {
		clf = classifier.Disabled{}
	}
	return &Orchestrator{
		duplicates:     detection.NewDuplicateDetector(store, storeTimeout, logger),
		flapping:       detection.NewFlappingDetector(store, storeTimeout, logger),
		selfResolution: detection.NewSelfResolutionDetector(store, storeTimeout, logger),
		classifier:     clf,
		executor:       exec,
		settings:       settings,
		logger:         logger.With("component", "workflow"),
	}
}

// Settings returns the decision settings the orchestrator was built with
func (o *Orchestrator) Settings() config.Settings {
	return o.settings
}

// Process runs the full pipeline including the action step. It always returns a record with a decision.
func (o *Orchestrator) Process(ctx context.Context, alert alerts.Alert) Record {
	return o.run(ctx, alert, true)
}

// Evaluate runs the pipeline up to the decision without side effects
func (o *Orchestrator) Evaluate(ctx context.Context, alert alerts.Alert) Record {
	return o.run(ctx, alert, false)
}

func (o *Orchestrator) run(ctx context.Context, in alerts.Alert, act bool) Record {
	start := time.Now()
	rec := Record{State: StateReceived, StartedAt: start.UTC()}

	alert, valid := o.analyze(&rec, in)
	rec.Alert = alert

	if valid {
		o.checkDuplicates(ctx, &rec)
		o.checkPatterns(ctx, &rec)
	} else {
		rec.add(Step{Name: StepDuplicateCheck, State: StateDuplicateChecked, Status: StatusSkipped, Detail: "invalid alert"})
		rec.add(Step{Name: StepPatternCheck, State: StatePatternChecked, Status: StatusSkipped, Detail: "invalid alert"})
	}

	o.classify(ctx, &rec, valid)
	o.decide(&rec)

	if act && o.executor != nil {
		o.execute(ctx, &rec)
	} else {
		rec.add(Step{Name: StepExecute, State: StateActionExecuted, Status: StatusSkipped, Detail: "dry run"})
	}

	rec.Duration = time.Since(start)
	metrics.ObservePipeline(rec.Duration)
	return rec
}

// analyze fills defaults and validates the alert
func (o *Orchestrator) analyze(rec *Record, in alerts.Alert) (alerts.Alert, bool) {
	start := time.Now()
	alert := in.Clone()

	if alert.Source == "" {
		alert.Source = alerts.SourceOther
	} else {
		alert.Source = alerts.NormalizeSource(string(alert.Source))
	}
	if alert.Status != nil && strings.TrimSpace(*alert.Status) == "" {
		alert.Status = nil
	}
	switch alert.Severity {
	case alerts.SeveritySev1, alerts.SeveritySev2, alerts.SeveritySev3:
	default:
		alert.Severity = alerts.NormalizeSeverity(string(alert.Severity))
	}

	step := Step{Name: StepAnalyze, State: StateAnalyzed, Status: StatusOK}
	err := alert.Validate()
	if err != nil {
		step.Status = StatusFailed
		step.Error = err.Error()
		o.logger.Warn("alert failed validation", "alert_id", alert.IDString(), "error", err)
	} else {
		step.Detail = fmt.Sprintf("source=%s severity=%s", alert.Source, alert.Severity)
	}
	step.Duration = time.Since(start)
	rec.add(step)
	return alert, err == nil
}

func (o *Orchestrator) checkDuplicates(ctx context.Context, rec *Record) {
	start := time.Now()
	rec.Duplicate = o.duplicates.Detect(ctx, rec.Alert, o.settings)

	step := Step{Name: StepDuplicateCheck, State: StateDuplicateChecked, Status: StatusOK}
	if rec.Duplicate.Err != nil {
		metrics.ObserveDetectorError("duplicate")
		step.Status = StatusDegraded
		step.Error = rec.Duplicate.Err.Error()
	} else {
		step.Detail = fmt.Sprintf("duplicate=%t count=%d", rec.Duplicate.IsDuplicate, rec.Duplicate.DuplicateCount)
	}
	step.Duration = time.Since(start)
	rec.add(step)
}

// checkPatterns runs the flapping and self-resolution queries side by side
func (o *Orchestrator) checkPatterns(ctx context.Context, rec *Record) {
	start := time.Now()

	var (
		flap detection.FlappingResult
		self detection.SelfResolutionResult
	)
	// Detectors fail open, so neither goroutine returns an error.
	var g errgroup.Group
	g.Go(func() error {
		flap = o.flapping.Detect(ctx, rec.Alert, o.settings)
		return nil
	})
	g.Go(func() error {
		self = o.selfResolution.Detect(ctx, rec.Alert, o.settings)
		return nil
	})
	g.Wait()

	rec.Flapping = flap
	rec.SelfResolution = self

	step := Step{Name: StepPatternCheck, State: StatePatternChecked, Status: StatusOK}
	var errs []string
	if flap.Err != nil {
		metrics.ObserveDetectorError("flapping")
		errs = append(errs, flap.Err.Error())
	}
	if self.Err != nil {
		metrics.ObserveDetectorError("self_resolution")
		errs = append(errs, self.Err.Error())
	}
	if len(errs) > 0 {
		step.Status = StatusDegraded
		step.Error = strings.Join(errs, "; ")
	}
	step.Detail = fmt.Sprintf("flapping=%t transitions=%d self_resolving=%t quick=%d/%d",
		flap.IsFlapping, flap.Transitions, self.IsSelfResolving, self.QuickResolved, self.TotalResolved)
	step.Duration = time.Since(start)
	rec.add(step)
}

// suppressSignal reports whether a detector already decided the outcome
func (rec *Record) suppressSignal() bool {
	return rec.Duplicate.IsDuplicate || rec.Flapping.IsFlapping || rec.SelfResolution.IsSelfResolving
}

func (o *Orchestrator) classify(ctx context.Context, rec *Record, valid bool) {
	start := time.Now()

	switch {
	case !valid:
		rec.add(Step{Name: StepClassify, State: StateClassificationSkipped, Status: StatusSkipped, Detail: "invalid alert"})
		return
	case rec.suppressSignal():
		metrics.ObserveClassifierCall(metrics.OutcomeSkipped)
		rec.add(Step{Name: StepClassify, State: StateClassificationSkipped, Status: StatusSkipped, Detail: "suppression signal present"})
		return
	}

	pred, err := o.classifier.Predict(ctx, classifier.FeaturesFromAlert(rec.Alert))
	step := Step{Name: StepClassify, State: StateClassified, Status: StatusOK}
	switch {
	case errors.Is(err, classifier.ErrClassifierDisabled):
		step.State = StateClassificationSkipped
		step.Status = StatusSkipped
		step.Detail = "classifier disabled"
	case err != nil:
		step.Status = StatusFailed
		step.Error = err.Error()
		o.logger.Warn("classification failed, falling through to default policy",
			"alert_id", rec.Alert.IDString(), "error", err)
	default:
		rec.Prediction = pred
		step.Detail = fmt.Sprintf("label=%s p=%.2f", pred.PredictedLabel, pred.Probability())
	}
	step.Duration = time.Since(start)
	rec.add(step)
}

func (o *Orchestrator) decide(rec *Record) {
	start := time.Now()
	decision, err := policy.Evaluate(rec.Alert, rec.Duplicate, rec.Flapping, rec.SelfResolution, rec.Prediction, o.settings)
	rec.Decision = decision

	step := Step{Name: StepDecide, State: StateDecided, Status: StatusOK, Detail: string(decision.Action) + " " + decision.Reason}
	if err != nil {
		step.Status = StatusFailed
		step.Error = err.Error()
		o.logger.Error("policy evaluation failed, forwarding", "alert_id", rec.Alert.IDString(), "error", err)
	}
	step.Duration = time.Since(start)
	rec.add(step)
}

func (o *Orchestrator) execute(ctx context.Context, rec *Record) {
	start := time.Now()
	result := o.executor.Execute(ctx, executor.Request{
		Alert:    rec.Alert,
		Decision: rec.Decision,
		Degraded: rec.Degraded,
		Evidence: rec.evidence(),
	})
	rec.Action = &result

	step := Step{Name: StepExecute, State: StateActionExecuted, Status: StatusOK, Detail: result.Action}
	if result.Failed() {
		step.Status = StatusDegraded
		var errs []string
		for _, e := range []string{result.SinkError, result.HistoryError} {
			if e != "" {
				errs = append(errs, e)
			}
		}
		if result.Notification != nil && result.Notification.Error != "" {
			errs = append(errs, result.Notification.Error)
		}
		step.Error = strings.Join(errs, "; ")
	}
	step.Duration = time.Since(start)
	rec.add(step)
}

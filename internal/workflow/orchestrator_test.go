package workflow_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/akmatori/alertsieve/internal/alerts"
	"github.com/akmatori/alertsieve/internal/classifier"
	"github.com/akmatori/alertsieve/internal/config"
	"github.com/akmatori/alertsieve/internal/executor"
	"github.com/akmatori/alertsieve/internal/policy"
	"github.com/akmatori/alertsieve/internal/testhelpers"
	"github.com/akmatori/alertsieve/internal/workflow"
)

type harness struct {
	store      *testhelpers.MemoryStore
	classifier classifier.Classifier
	notifier   *testhelpers.RecordingNotifier
	audit      *executor.AuditLog
	orch       *workflow.Orchestrator
}

func newHarness(clf classifier.Classifier, history ...alerts.Alert) *harness {
	h := &harness{
		store:      testhelpers.NewMemoryStore(history...),
		classifier: clf,
		notifier:   testhelpers.NewRecordingNotifier(),
		audit:      executor.NewAuditLog(),
	}
	exec := executor.NewExecutor(h.audit, h.notifier, nil, executor.WithHistory(h.store))
	h.orch = workflow.NewOrchestrator(h.store, clf, exec, config.DefaultSettings(), time.Second, nil)
	return h
}

func assertDecision(t *testing.T, rec workflow.Record, action policy.Action, reason string, confidence float64) {
	t.Helper()
	if rec.Decision.Action != action || rec.Decision.Reason != reason {
		t.Fatalf("Decision = %s/%s, want %s/%s", rec.Decision.Action, rec.Decision.Reason, action, reason)
	}
	if diff := rec.Decision.Confidence - confidence; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Confidence = %v, want %v", rec.Decision.Confidence, confidence)
	}
}

func stepStatus(t *testing.T, rec workflow.Record, name string) workflow.StepStatus {
	t.Helper()
	step, ok := rec.Step(name)
	if !ok {
		t.Fatalf("Step %s missing from record", name)
	}
	return step.Status
}

func TestProcess_ScenarioA_NoHistory(t *testing.T) {
	h := newHarness(nil)
	rec := h.orch.Process(context.Background(), testhelpers.NewAlertBuilder().WithID("a").Build())

	assertDecision(t, rec, policy.ActionForward, policy.ReasonDefaultForward, 0.5)
	if rec.State != workflow.StateActionExecuted {
		t.Errorf("Expected final state action_executed, got %s", rec.State)
	}

	var names []string
	for _, s := range rec.Steps {
		names = append(names, s.Name)
	}
	want := []string{
		workflow.StepAnalyze, workflow.StepDuplicateCheck, workflow.StepPatternCheck,
		workflow.StepClassify, workflow.StepDecide, workflow.StepExecute,
	}
	if !slices.Equal(names, want) {
		t.Errorf("Steps = %v, want %v", names, want)
	}
	if !rec.Duplicate.NoData || !rec.Flapping.NoData || !rec.SelfResolution.NoData {
		t.Error("Expected explicit no-data markers for empty history")
	}
	if len(h.notifier.Payloads()) != 1 {
		t.Error("Expected forward to notify")
	}
	if h.store.Len() != 1 {
		t.Error("Expected decided alert appended to history")
	}
	if len(rec.Degraded) != 0 {
		t.Errorf("Expected no degraded steps, got %v", rec.Degraded)
	}
}

func TestProcess_ScenarioB_Duplicate(t *testing.T) {
	fake := testhelpers.NewSuppressClassifier(0.99)
	h := newHarness(fake)

	first := h.orch.Process(context.Background(), testhelpers.NewAlertBuilder().WithID("first").CreatedBefore(2*time.Minute).Build())
	assertDecision(t, first, policy.ActionSuppress, "ml_prediction_confidence_0.99", 0.99)

	second := h.orch.Process(context.Background(), testhelpers.NewAlertBuilder().WithID("second").Build())
	assertDecision(t, second, policy.ActionSuppress, policy.ReasonDuplicate, 1.0)

	if got := stepStatus(t, second, workflow.StepClassify); got != workflow.StatusSkipped {
		t.Errorf("Expected classification skipped, got %s", got)
	}
	step, _ := second.Step(workflow.StepClassify)
	if step.State != workflow.StateClassificationSkipped {
		t.Errorf("Expected classification_skipped state, got %s", step.State)
	}
	if fake.Calls() != 1 {
		t.Errorf("Expected classifier called only for the first alert, got %d calls", fake.Calls())
	}
}

func TestProcess_ScenarioC_Flapping(t *testing.T) {
	h := newHarness(testhelpers.NewSuppressClassifier(0.99), testhelpers.FlappingHistory(5)...)
	rec := h.orch.Process(context.Background(), testhelpers.NewAlertBuilder().Build())

	if !rec.Flapping.IsFlapping || rec.Flapping.Transitions != 4 {
		t.Fatalf("Expected flapping with 4 transitions, got %+v", rec.Flapping)
	}
	assertDecision(t, rec, policy.ActionSuppress, policy.ReasonFlapping, 1.0)
	if len(h.notifier.Payloads()) != 0 {
		t.Error("Suppressed alert must not notify")
	}
}

func TestProcess_ScenarioD_SelfResolving(t *testing.T) {
	history := testhelpers.ResolvedHistory(
		5*time.Minute, 10*time.Minute, 15*time.Minute+30*time.Second, 3*time.Minute, 40*time.Minute,
	)
	h := newHarness(nil, history...)
	rec := h.orch.Process(context.Background(), testhelpers.NewAlertBuilder().Build())

	assertDecision(t, rec, policy.ActionSuppress, policy.ReasonSelfResolving, 0.8)
	if rec.SelfResolution.TotalResolved != 5 || rec.SelfResolution.QuickResolved != 4 {
		t.Errorf("Unexpected self-resolution counts %+v", rec.SelfResolution)
	}
}

func TestProcess_ScenarioE_Classifier(t *testing.T) {
	fake := testhelpers.NewSuppressClassifier(0.85)
	h := newHarness(fake)
	rec := h.orch.Process(context.Background(), testhelpers.NewAlertBuilder().Build())

	assertDecision(t, rec, policy.ActionSuppress, "ml_prediction_confidence_0.85", 0.85)
	if rec.Prediction == nil {
		t.Fatal("Expected prediction in record")
	}
	step, _ := rec.Step(workflow.StepClassify)
	if step.State != workflow.StateClassified || step.Status != workflow.StatusOK {
		t.Errorf("Unexpected classify step %+v", step)
	}
	features := fake.Features()
	if len(features) != 1 || features[0].Host != "web-01" {
		t.Errorf("Unexpected features sent %+v", features)
	}
}

func TestProcess_CriticalAlert(t *testing.T) {
	fake := testhelpers.NewSuppressClassifier(0.99)
	h := newHarness(fake)
	rec := h.orch.Process(context.Background(), testhelpers.NewAlertBuilder().WithSeverity(alerts.SeveritySev1).Build())

	assertDecision(t, rec, policy.ActionForward, policy.ReasonCriticalForward, 1.0)
}

func TestProcess_StoreFailureFailsOpen(t *testing.T) {
	h := newHarness(nil)
	h.store.QueryErr = errors.New("connection refused")

	rec := h.orch.Process(context.Background(), testhelpers.NewAlertBuilder().Build())

	assertDecision(t, rec, policy.ActionForward, policy.ReasonDefaultForward, 0.5)
	for _, name := range []string{workflow.StepDuplicateCheck, workflow.StepPatternCheck} {
		if got := stepStatus(t, rec, name); got != workflow.StatusDegraded {
			t.Errorf("Expected %s degraded, got %s", name, got)
		}
	}
	if !slices.Contains(rec.Degraded, workflow.StepDuplicateCheck) || !slices.Contains(rec.Degraded, workflow.StepPatternCheck) {
		t.Errorf("Expected degraded steps listed, got %v", rec.Degraded)
	}

	entries := h.audit.List(executor.Filter{})
	if len(entries) != 1 || len(entries[0].Degraded) != 2 {
		t.Errorf("Expected audit entry noting degraded steps, got %+v", entries)
	}
}

func TestProcess_ClassifierFailure(t *testing.T) {
	fake := &testhelpers.FakeClassifier{Err: errors.New("503")}
	h := newHarness(fake)

	rec := h.orch.Process(context.Background(), testhelpers.NewAlertBuilder().Build())

	assertDecision(t, rec, policy.ActionForward, policy.ReasonDefaultForward, 0.5)
	if got := stepStatus(t, rec, workflow.StepClassify); got != workflow.StatusFailed {
		t.Errorf("Expected classify failed, got %s", got)
	}
	if !slices.Contains(rec.Degraded, workflow.StepClassify) {
		t.Errorf("Expected classify in degraded list, got %v", rec.Degraded)
	}
}

func TestProcess_ClassifierDisabledIsNotDegraded(t *testing.T) {
	h := newHarness(classifier.Disabled{})
	rec := h.orch.Process(context.Background(), testhelpers.NewAlertBuilder().Build())

	if got := stepStatus(t, rec, workflow.StepClassify); got != workflow.StatusSkipped {
		t.Errorf("Expected classify skipped, got %s", got)
	}
	if len(rec.Degraded) != 0 {
		t.Errorf("Disabled classifier must not degrade the record, got %v", rec.Degraded)
	}
}

func TestProcess_InvalidAlert(t *testing.T) {
	fake := testhelpers.NewSuppressClassifier(0.99)
	h := newHarness(fake)

	rec := h.orch.Process(context.Background(), testhelpers.NewAlertBuilder().WithTitle("").Build())

	if rec.Decision.Action != policy.ActionForward || !strings.HasPrefix(rec.Decision.Reason, "error_in_decision_") {
		t.Fatalf("Expected fail-safe forward, got %+v", rec.Decision)
	}
	if rec.Decision.Confidence != 0 {
		t.Errorf("Expected zero confidence, got %v", rec.Decision.Confidence)
	}
	if got := stepStatus(t, rec, workflow.StepAnalyze); got != workflow.StatusFailed {
		t.Errorf("Expected analyze failed, got %s", got)
	}
	for _, name := range []string{workflow.StepDuplicateCheck, workflow.StepPatternCheck, workflow.StepClassify} {
		if got := stepStatus(t, rec, name); got != workflow.StatusSkipped {
			t.Errorf("Expected %s skipped, got %s", name, got)
		}
	}
	if fake.Calls() != 0 || len(h.store.Queries()) != 0 {
		t.Error("Invalid alerts must not reach the store or the classifier")
	}
	if len(h.notifier.Payloads()) != 1 {
		t.Error("Invalid alerts are still forwarded")
	}
}

func TestProcess_Normalization(t *testing.T) {
	h := newHarness(nil)
	alert := testhelpers.NewAlertBuilder().WithSource("").WithSeverity("Critical").Build()
	alert.Status = alerts.StringPtr("  ")

	rec := h.orch.Process(context.Background(), alert)

	if rec.Alert.Source != alerts.SourceOther || rec.Alert.Severity != alerts.SeveritySev1 || rec.Alert.Status != nil {
		t.Errorf("Unexpected normalized alert %+v", rec.Alert)
	}
	assertDecision(t, rec, policy.ActionForward, policy.ReasonCriticalForward, 1.0)
}

func TestProcess_Idempotent(t *testing.T) {
	h := newHarness(testhelpers.NewSuppressClassifier(0.85), testhelpers.ResolvedHistory(time.Minute)...)
	alert := testhelpers.NewAlertBuilder().WithID("same").Build()

	first := h.orch.Process(context.Background(), alert)
	second := h.orch.Process(context.Background(), alert)

	if first.Decision != second.Decision {
		t.Errorf("Decision changed on rerun: %+v vs %+v", first.Decision, second.Decision)
	}
}

func TestEvaluate_NoSideEffects(t *testing.T) {
	h := newHarness(nil)
	rec := h.orch.Evaluate(context.Background(), testhelpers.NewAlertBuilder().Build())

	assertDecision(t, rec, policy.ActionForward, policy.ReasonDefaultForward, 0.5)
	if rec.Action != nil {
		t.Error("Expected no action result for dry run")
	}
	if got := stepStatus(t, rec, workflow.StepExecute); got != workflow.StatusSkipped {
		t.Errorf("Expected execute skipped, got %s", got)
	}
	if h.store.Len() != 0 || h.audit.Len() != 0 || len(h.notifier.Payloads()) != 0 {
		t.Error("Evaluate must not touch history, audit or notifier")
	}
}

func TestProcess_CancelledContextStillDecides(t *testing.T) {
	h := newHarness(testhelpers.NewSuppressClassifier(0.99))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := h.orch.Process(ctx, testhelpers.NewAlertBuilder().Build())

	assertDecision(t, rec, policy.ActionForward, policy.ReasonDefaultForward, 0.5)
	if rec.State != workflow.StateActionExecuted {
		t.Errorf("Expected pipeline to reach action_executed, got %s", rec.State)
	}
}

package testhelpers

import (
	"context"
	"sync"

	"github.com/akmatori/alertsieve/internal/classifier"
	"github.com/akmatori/alertsieve/internal/notify"
)

// FakeClassifier returns a canned prediction or error and counts calls
type FakeClassifier struct {
	mu         sync.Mutex
	Prediction *classifier.Prediction
	Err        error
	calls      int
	features   []classifier.FeatureVector
}

// NewSuppressClassifier predicts "suppress" with probability p
func NewSuppressClassifier(p float64) *FakeClassifier {
	return &FakeClassifier{Prediction: &classifier.Prediction{
		PredictedLabel:     "suppress",
		LabelProbabilities: map[string]float64{"suppress": p, "forward": 1 - p},
	}}
}

// Predict implements classifier.Classifier
func (f *FakeClassifier) Predict(ctx context.Context, features classifier.FeatureVector) (*classifier.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.features = append(f.features, features)
	if err := ctx.Err(); err != nil {
		return nil, &classifier.ClassifierError{Op: "predict", Err: err}
	}
	if f.Err != nil {
		return nil, &classifier.ClassifierError{Op: "predict", Err: f.Err}
	}
	if f.Prediction == nil {
		return nil, &classifier.ClassifierError{Op: "predict", Err: classifier.ErrClassifierDisabled}
	}
	p := *f.Prediction
	return &p, nil
}

// Calls returns how many times Predict ran
func (f *FakeClassifier) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Features returns the feature vectors seen so far
func (f *FakeClassifier) Features() []classifier.FeatureVector {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]classifier.FeatureVector(nil), f.features...)
}

// RecordingNotifier captures payloads and returns a fixed result
type RecordingNotifier struct {
	mu       sync.Mutex
	Result   notify.Result
	payloads []notify.Payload
}

// NewRecordingNotifier returns a notifier that reports every payload as delivered
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{Result: notify.Result{Delivered: true}}
}

// Notify implements notify.Notifier
func (n *RecordingNotifier) Notify(ctx context.Context, payload notify.Payload) notify.Result {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payloads = append(n.payloads, payload)
	return n.Result
}

// Payloads returns a copy of everything sent so far
func (n *RecordingNotifier) Payloads() []notify.Payload {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Payload(nil), n.payloads...)
}

// Package classifier scores alerts against an external suppression model.
package classifier

import (
	"context"
	"errors"
	"fmt"
)

// ErrClassifierDisabled is returned when no classifier endpoint is configured
var ErrClassifierDisabled = errors.New("classifier disabled")

// Classifier returns a prediction for a feature vector
type Classifier interface {
	Predict(ctx context.Context, features FeatureVector) (*Prediction, error)
}

// ClassifierError wraps a failed classifier call
type ClassifierError struct {
	Op  string
	Err error
}

func (e *ClassifierError) Error() string {
	return fmt.Sprintf("classifier %s: %v", e.Op, e.Err)
}

func (e *ClassifierError) Unwrap() error {
	return e.Err
}

// Disabled is the classifier used when CLASSIFIER_URL is empty
type Disabled struct{}

// Predict always fails with ErrClassifierDisabled
func (Disabled) Predict(ctx context.Context, features FeatureVector) (*Prediction, error) {
	return nil, &ClassifierError{Op: "predict", Err: ErrClassifierDisabled}
}

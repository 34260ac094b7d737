package inference

// Package inference wraps the externally trained osteoarthritis grading
// model. The model is loaded once at process start and shared read-only
// across all requests; classification is a pure function of the input
// image, so no locking is needed.

import (
	"context"
	"errors"
	"image"
)

// ErrModelNotLoaded is returned when classification is attempted before
// the engine has weights available.
var ErrModelNotLoaded = errors.New("inference model not loaded")

// Prediction is the classifier output contract: a label, a confidence in
// [0,1] for that label, and the joint regions the model flags.
type Prediction struct {
	Label         string
	Confidence    float64
	AffectedAreas []string
}

// Classifier is the pipeline's view of the model: normalized image in,
// prediction out. Failures propagate as hard failures of the analysis
// request; the caller defines no retry semantics here.
type Classifier interface {
	Classify(ctx context.Context, img image.Image) (Prediction, error)
}

package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"math"
	"os"

	"github.com/disintegration/imaging"
)

// Input geometry expected by the serialized model: images are scaled to
// inputSize x inputSize grayscale, then mean-pooled into poolSize x
// poolSize intensity features in [0,1].
const (
	inputSize = 224
	poolSize  = 14
	features  = poolSize * poolSize
)

// weightsFile is the on-disk format of the exported model: one weight
// vector and bias per label, plus the joint regions reported per label.
// The training pipeline that produces this file lives outside this
// repository; the engine treats it as an opaque artifact.
type weightsFile struct {
	Labels        []string            `json:"labels"`
	Weights       [][]float64         `json:"weights"`
	Bias          []float64           `json:"bias"`
	AffectedAreas map[string][]string `json:"affected_areas"`
}

// Engine evaluates the exported grading model. It is immutable after
// Load and therefore safe to share across concurrent requests.
type Engine struct {
	labels  []string
	weights [][]float64
	bias    []float64
	areas   map[string][]string
}

// Load reads and validates serialized model weights. It is called once
// at process start; a missing or malformed file is a startup failure,
// never a per-request one.
func Load(path string) (*Engine, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model weights: %w", err)
	}
	var wf weightsFile
	if err := json.Unmarshal(raw, &wf); err != nil {
		return nil, fmt.Errorf("parse model weights: %w", err)
	}
	if len(wf.Labels) == 0 {
		return nil, fmt.Errorf("model weights: no labels")
	}
	if len(wf.Weights) != len(wf.Labels) || len(wf.Bias) != len(wf.Labels) {
		return nil, fmt.Errorf("model weights: labels/weights/bias lengths differ")
	}
	for i, w := range wf.Weights {
		if len(w) != features {
			return nil, fmt.Errorf("model weights: label %q expects %d features, has %d", wf.Labels[i], features, len(w))
		}
	}
	return &Engine{
		labels:  wf.Labels,
		weights: wf.Weights,
		bias:    wf.Bias,
		areas:   wf.AffectedAreas,
	}, nil
}

// Classify runs the model over a decoded image and returns the
// highest-scoring label with its softmax confidence. Deterministic for a
// fixed engine and input.
func (e *Engine) Classify(ctx context.Context, img image.Image) (Prediction, error) {
	if e == nil || len(e.labels) == 0 {
		return Prediction{}, ErrModelNotLoaded
	}
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}

	feats := extractFeatures(img)

	logits := make([]float64, len(e.labels))
	for i := range e.labels {
		sum := e.bias[i]
		for j, f := range feats {
			sum += e.weights[i][j] * f
		}
		logits[i] = sum
	}

	probs := softmax(logits)
	best := 0
	for i := range probs {
		if probs[i] > probs[best] {
			best = i
		}
	}

	label := e.labels[best]
	return Prediction{
		Label:         label,
		Confidence:    probs[best],
		AffectedAreas: e.areas[label],
	}, nil
}

// extractFeatures scales the image to the model's input geometry,
// converts to grayscale and mean-pools blocks into [0,1] intensities.
func extractFeatures(img image.Image) []float64 {
	scaled := imaging.Resize(img, inputSize, inputSize, imaging.Lanczos)
	gray := imaging.Grayscale(scaled)

	const block = inputSize / poolSize
	feats := make([]float64, features)
	for by := 0; by < poolSize; by++ {
		for bx := 0; bx < poolSize; bx++ {
			var sum float64
			for y := by * block; y < (by+1)*block; y++ {
				for x := bx * block; x < (bx+1)*block; x++ {
					r, _, _, _ := gray.At(x, y).RGBA()
					sum += float64(r) / 0xffff
				}
			}
			feats[by*poolSize+bx] = sum / (block * block)
		}
	}
	return feats
}

func softmax(logits []float64) []float64 {
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}
	var denom float64
	out := make([]float64, len(logits))
	for i, v := range logits {
		out[i] = math.Exp(v - max)
		denom += out[i]
	}
	for i := range out {
		out[i] /= denom
	}
	return out
}

package ml

import (
	"fmt"
	"strconv"
)

// Prediction is the outcome of a single inference call.
type Prediction struct {
	Label string
	// Probabilities maps class label to probability; every native model
	// exposes a class distribution.
	Probabilities map[string]float64
}

// Predictor runs inference against a serialized model artifact.
type Predictor interface {
	Predict(artifact []byte, metadata map[string]interface{}, input map[string]interface{}) (*Prediction, error)
}

// Predict runs inference on a decoded artifact. Input features are
// aligned to the training feature list: missing features contribute
// zero, unknown keys are ignored.
func (a *Artifact) Predict(input map[string]interface{}) (*Prediction, error) {
	x := make([]float64, len(a.Features))
	for i, f := range a.Features {
		raw, ok := input[f.Column]
		if !ok {
			continue
		}
		if f.Level != "" {
			if asString(raw) == f.Level {
				x[i] = 1
			}
			continue
		}
		v, err := asFloat(raw)
		if err != nil {
			return nil, fmt.Errorf("feature %q: %w", f.Column, err)
		}
		x[i] = v
	}

	proba := a.predictProba(x)
	if proba == nil {
		return nil, fmt.Errorf("model artifact carries no model")
	}

	probabilities := make(map[string]float64, len(a.Classes))
	for i, class := range a.Classes {
		probabilities[class] = proba[i]
	}

	return &Prediction{
		Label:         a.Classes[argmax(proba)],
		Probabilities: probabilities,
	}, nil
}

// NativePredictor decodes artifacts produced by NativeTrainer.
type NativePredictor struct{}

// NewNativePredictor creates the in-process predictor.
func NewNativePredictor() *NativePredictor {
	return &NativePredictor{}
}

// Predict implements Predictor. Metadata is advisory; the artifact is
// self-contained.
func (p *NativePredictor) Predict(artifact []byte, metadata map[string]interface{}, input map[string]interface{}) (*Prediction, error) {
	model, err := DecodeArtifact(artifact)
	if err != nil {
		return nil, err
	}
	return model.Predict(input)
}

func asString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func asFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("expected a number, got %q", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

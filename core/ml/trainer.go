package ml

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
)

const (
	ModelRandomForest       = "RandomForest"
	ModelDecisionTree       = "DecisionTree"
	ModelLogisticRegression = "LogisticRegression"
)

var (
	// ErrUnsupportedModel is returned for a model type the trainer does
	// not implement.
	ErrUnsupportedModel = errors.New("unsupported model type")

	// ErrTargetMissing is returned when the target column is not in the
	// dataset.
	ErrTargetMissing = errors.New("target column not found in dataset")

	// ErrBadHyperparameter is returned for a hyperparameter with an
	// invalid type or value.
	ErrBadHyperparameter = errors.New("invalid hyperparameter")
)

// FitResult is the product of a successful training run.
type FitResult struct {
	// Artifact is the serialized model, self-contained: it embeds the
	// feature encoding so prediction needs nothing but the artifact.
	Artifact []byte

	// Metadata describes the run: model type, feature list, sample
	// counts, accuracy. The worker augments it with provenance fields
	// before staging.
	Metadata map[string]interface{}

	// Accuracy on the held-out test split, in [0, 1].
	Accuracy float64
}

// Trainer fits a model to a raw dataset.
type Trainer interface {
	Fit(ctx context.Context, dataset []byte, modelType, targetColumn string, hyperparameters map[string]interface{}) (*FitResult, error)
}

// Artifact is the gob-encoded model container. Exactly one of the model
// pointers is set, matching ModelType.
type Artifact struct {
	ModelType string
	Features  []FeatureSpec
	Classes   []string

	Forest *ForestModel
	Tree   *TreeNode
	Logit  *LogitModel
}

// NativeTrainer trains models in-process on CSV datasets.
type NativeTrainer struct{}

// NewNativeTrainer creates the in-process trainer.
func NewNativeTrainer() *NativeTrainer {
	return &NativeTrainer{}
}

// Fit implements Trainer.
func (t *NativeTrainer) Fit(ctx context.Context, raw []byte, modelType, targetColumn string, hyperparameters map[string]interface{}) (*FitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ds, err := loadDataset(raw, targetColumn)
	if err != nil {
		return nil, err
	}

	seed, err := intParam(hyperparameters, "random_state", 42)
	if err != nil {
		return nil, err
	}
	trainX, trainY, testX, testY := ds.split(0.2, int64(seed))
	if len(trainX) == 0 || len(testX) == 0 {
		return nil, fmt.Errorf("dataset too small to split into train and test sets")
	}

	artifact := &Artifact{
		ModelType: modelType,
		Features:  ds.features,
		Classes:   ds.classes,
	}

	switch modelType {
	case ModelRandomForest:
		nTrees, err := intParam(hyperparameters, "n_estimators", 50)
		if err != nil {
			return nil, err
		}
		maxDepth, err := intParam(hyperparameters, "max_depth", 8)
		if err != nil {
			return nil, err
		}
		minSplit, err := intParam(hyperparameters, "min_samples_split", 2)
		if err != nil {
			return nil, err
		}
		if nTrees < 1 {
			return nil, fmt.Errorf("%w: n_estimators must be positive, got %d", ErrBadHyperparameter, nTrees)
		}
		artifact.Forest = fitForest(trainX, trainY, len(ds.classes), nTrees, maxDepth, minSplit, int64(seed))

	case ModelDecisionTree:
		maxDepth, err := intParam(hyperparameters, "max_depth", 8)
		if err != nil {
			return nil, err
		}
		minSplit, err := intParam(hyperparameters, "min_samples_split", 2)
		if err != nil {
			return nil, err
		}
		artifact.Tree = buildTree(trainX, trainY, len(ds.classes), treeParams{
			maxDepth:        maxDepth,
			minSamplesSplit: minSplit,
		})

	case ModelLogisticRegression:
		if len(ds.classes) != 2 {
			return nil, fmt.Errorf("%w: LogisticRegression requires a binary target, got %d classes", ErrBadHyperparameter, len(ds.classes))
		}
		lr, err := floatParam(hyperparameters, "learning_rate", 0.1)
		if err != nil {
			return nil, err
		}
		epochs, err := intParam(hyperparameters, "epochs", 100)
		if err != nil {
			return nil, err
		}
		artifact.Logit = fitLogit(trainX, trainY, lr, epochs, int64(seed))

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, modelType)
	}

	correct := 0
	for i, x := range testX {
		if argmax(artifact.predictProba(x)) == testY[i] {
			correct++
		}
	}
	accuracy := float64(correct) / float64(len(testX))

	encoded, err := encodeArtifact(artifact)
	if err != nil {
		return nil, err
	}

	featureNames := make([]string, len(ds.features))
	for i, f := range ds.features {
		featureNames[i] = f.Name
	}

	return &FitResult{
		Artifact: encoded,
		Metadata: map[string]interface{}{
			"model_type":                    modelType,
			"features":                      featureNames,
			"target_column":                 targetColumn,
			"classes":                       ds.classes,
			"accuracy":                      accuracy,
			"training_samples":              len(trainX),
			"test_samples":                  len(testX),
			"original_categorical_features": ds.categorical,
		},
		Accuracy: accuracy,
	}, nil
}

// predictProba dispatches to the embedded model.
func (a *Artifact) predictProba(x []float64) []float64 {
	switch {
	case a.Forest != nil:
		return a.Forest.predictProba(x)
	case a.Tree != nil:
		return a.Tree.predictProba(x)
	case a.Logit != nil:
		return a.Logit.predictProba(x)
	}
	return nil
}

func encodeArtifact(a *Artifact) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(a); err != nil {
		return nil, fmt.Errorf("failed to encode model artifact: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeArtifact deserializes a model artifact.
func DecodeArtifact(data []byte) (*Artifact, error) {
	var a Artifact
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&a); err != nil {
		return nil, fmt.Errorf("failed to decode model artifact: %w", err)
	}
	if a.Forest == nil && a.Tree == nil && a.Logit == nil {
		return nil, fmt.Errorf("model artifact carries no model")
	}
	return &a, nil
}

func argmax(proba []float64) int {
	best := 0
	for i, p := range proba {
		if p > proba[best] {
			best = i
		}
	}
	return best
}

// intParam reads an integer hyperparameter; JSON numbers arrive as
// float64.
func intParam(params map[string]interface{}, key string, def int) (int, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%w: %s must be an integer, got %v", ErrBadHyperparameter, key, v)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("%w: %s must be an integer, got %T", ErrBadHyperparameter, key, v)
	}
}

func floatParam(params map[string]interface{}, key string, def float64) (float64, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %s must be a number, got %T", ErrBadHyperparameter, key, v)
	}
}

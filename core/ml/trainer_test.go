package ml

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// churnCSV builds a cleanly separable dataset: rows with high usage and
// a long contract stay, the rest churn.
func churnCSV(rows int) []byte {
	var b strings.Builder
	b.WriteString("CustomerID,usage,tenure,Contract,Churn\n")
	for i := 0; i < rows; i++ {
		if i%2 == 0 {
			fmt.Fprintf(&b, "c%d,%d,%d,Two year,No\n", i, 80+i%10, 24+i%12)
		} else {
			fmt.Fprintf(&b, "c%d,%d,%d,Monthly,Yes\n", i, 5+i%10, 1+i%3)
		}
	}
	return []byte(b.String())
}

func TestNativeTrainerFit(t *testing.T) {
	trainer := NewNativeTrainer()
	ctx := context.Background()

	for _, modelType := range []string{ModelRandomForest, ModelDecisionTree, ModelLogisticRegression} {
		t.Run(modelType, func(t *testing.T) {
			result, err := trainer.Fit(ctx, churnCSV(200), modelType, "Churn", map[string]interface{}{
				"random_state": float64(7), // JSON numbers arrive as float64
			})
			if err != nil {
				t.Fatalf("Fit: %v", err)
			}
			if result.Accuracy < 0 || result.Accuracy > 1 {
				t.Errorf("accuracy = %v, want within [0, 1]", result.Accuracy)
			}
			// The dataset is separable; anything near chance means the
			// pipeline is broken, not unlucky.
			if result.Accuracy < 0.8 {
				t.Errorf("accuracy = %v on a separable dataset", result.Accuracy)
			}
			if len(result.Artifact) == 0 {
				t.Fatal("empty artifact")
			}
			if got := result.Metadata["model_type"]; got != modelType {
				t.Errorf("metadata model_type = %v, want %s", got, modelType)
			}
			if got := result.Metadata["target_column"]; got != "Churn" {
				t.Errorf("metadata target_column = %v", got)
			}

			model, err := DecodeArtifact(result.Artifact)
			if err != nil {
				t.Fatalf("DecodeArtifact: %v", err)
			}
			if model.ModelType != modelType {
				t.Errorf("decoded model type = %s, want %s", model.ModelType, modelType)
			}
		})
	}
}

func TestNativeTrainerFitErrors(t *testing.T) {
	trainer := NewNativeTrainer()
	ctx := context.Background()

	t.Run("unsupported model type", func(t *testing.T) {
		_, err := trainer.Fit(ctx, churnCSV(20), "SupportVectorMachine", "Churn", nil)
		if !errors.Is(err, ErrUnsupportedModel) {
			t.Errorf("err = %v, want ErrUnsupportedModel", err)
		}
	})

	t.Run("missing target column", func(t *testing.T) {
		_, err := trainer.Fit(ctx, churnCSV(20), ModelRandomForest, "Label", nil)
		if !errors.Is(err, ErrTargetMissing) {
			t.Errorf("err = %v, want ErrTargetMissing", err)
		}
	})

	t.Run("bad hyperparameter type", func(t *testing.T) {
		_, err := trainer.Fit(ctx, churnCSV(20), ModelRandomForest, "Churn", map[string]interface{}{
			"n_estimators": "lots",
		})
		if !errors.Is(err, ErrBadHyperparameter) {
			t.Errorf("err = %v, want ErrBadHyperparameter", err)
		}
	})

	t.Run("logistic regression needs binary target", func(t *testing.T) {
		csv := []byte("f,Label\n1,a\n2,b\n3,c\n4,a\n5,b\n6,c\n7,a\n8,b\n9,c\n10,a\n")
		_, err := trainer.Fit(ctx, csv, ModelLogisticRegression, "Label", nil)
		if !errors.Is(err, ErrBadHyperparameter) {
			t.Errorf("err = %v, want ErrBadHyperparameter", err)
		}
	})

	t.Run("empty dataset", func(t *testing.T) {
		if _, err := trainer.Fit(ctx, []byte("a,b\n"), ModelRandomForest, "b", nil); err == nil {
			t.Error("expected error for dataset without rows")
		}
	})
}

func TestIdentifierColumnsDropped(t *testing.T) {
	trainer := NewNativeTrainer()
	result, err := trainer.Fit(context.Background(), churnCSV(100), ModelDecisionTree, "Churn", nil)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	model, err := DecodeArtifact(result.Artifact)
	if err != nil {
		t.Fatalf("DecodeArtifact: %v", err)
	}
	for _, f := range model.Features {
		if f.Column == "CustomerID" {
			t.Error("identifier column leaked into the feature set")
		}
	}
}

func TestOneHotEncodingDropsFirstLevel(t *testing.T) {
	trainer := NewNativeTrainer()
	result, err := trainer.Fit(context.Background(), churnCSV(100), ModelDecisionTree, "Churn", nil)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	model, _ := DecodeArtifact(result.Artifact)
	var contractLevels []string
	for _, f := range model.Features {
		if f.Column == "Contract" {
			contractLevels = append(contractLevels, f.Level)
		}
	}
	// Contract has levels {Monthly, Two year}; the first sorted level is
	// dropped, leaving a single indicator.
	if len(contractLevels) != 1 || contractLevels[0] != "Two year" {
		t.Errorf("Contract indicators = %v, want [Two year]", contractLevels)
	}
}

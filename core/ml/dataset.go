package ml

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
)

// identifierColumns are dropped from the feature set before training.
// They identify rows, they do not describe them.
var identifierColumns = map[string]bool{
	"CustomerID": true,
	"ID":         true,
	"Id":         true,
}

// FeatureSpec describes how one model input dimension is derived from a
// raw column. Numeric columns map 1:1; categorical columns expand into
// one indicator per retained level (first level dropped).
type FeatureSpec struct {
	Name   string // feature name, e.g. "tenure" or "Contract_Two year"
	Column string // source column
	Level  string // categorical level; empty for numeric features
}

// dataset is a parsed, encoded CSV ready for fitting.
type dataset struct {
	features []FeatureSpec
	classes  []string // sorted distinct target values
	// categorical lists the original categorical columns, in column order.
	categorical []string

	x [][]float64
	y []int
}

// loadDataset parses CSV bytes, drops identifier columns, one-hot
// encodes categorical features and maps target values to class indices.
func loadDataset(raw []byte, targetColumn string) (*dataset, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse dataset CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("dataset has no data rows")
	}

	header := records[0]
	rows := records[1:]

	targetIdx := -1
	for i, name := range header {
		if name == targetColumn {
			targetIdx = i
		}
	}
	if targetIdx < 0 {
		return nil, fmt.Errorf("%w: %q not in columns %v", ErrTargetMissing, targetColumn, header)
	}

	// Feature columns: everything except the target and identifiers.
	type column struct {
		name    string
		idx     int
		numeric bool
		levels  []string
	}
	var cols []column
	for i, name := range header {
		if i == targetIdx || identifierColumns[name] {
			continue
		}
		numeric := true
		levelSet := map[string]bool{}
		for _, row := range rows {
			if _, err := strconv.ParseFloat(row[i], 64); err != nil {
				numeric = false
			}
			levelSet[row[i]] = true
		}
		c := column{name: name, idx: i, numeric: numeric}
		if !numeric {
			for level := range levelSet {
				c.levels = append(c.levels, level)
			}
			sort.Strings(c.levels)
		}
		cols = append(cols, c)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("dataset has no feature columns besides target %q", targetColumn)
	}

	ds := &dataset{}
	for _, c := range cols {
		if c.numeric {
			ds.features = append(ds.features, FeatureSpec{Name: c.name, Column: c.name})
			continue
		}
		ds.categorical = append(ds.categorical, c.name)
		// Drop the first level; it is implied by all indicators being zero.
		for _, level := range c.levels[1:] {
			ds.features = append(ds.features, FeatureSpec{
				Name:   c.name + "_" + level,
				Column: c.name,
				Level:  level,
			})
		}
	}

	classSet := map[string]bool{}
	for _, row := range rows {
		classSet[row[targetIdx]] = true
	}
	for class := range classSet {
		ds.classes = append(ds.classes, class)
	}
	sort.Strings(ds.classes)
	classIdx := map[string]int{}
	for i, class := range ds.classes {
		classIdx[class] = i
	}

	for _, row := range rows {
		vec := make([]float64, 0, len(ds.features))
		for _, c := range cols {
			if c.numeric {
				v, _ := strconv.ParseFloat(row[c.idx], 64)
				vec = append(vec, v)
				continue
			}
			for _, level := range c.levels[1:] {
				if row[c.idx] == level {
					vec = append(vec, 1)
				} else {
					vec = append(vec, 0)
				}
			}
		}
		ds.x = append(ds.x, vec)
		ds.y = append(ds.y, classIdx[row[targetIdx]])
	}

	return ds, nil
}

// split divides the dataset into train and test partitions.
func (ds *dataset) split(testFraction float64, seed int64) (trainX [][]float64, trainY []int, testX [][]float64, testY []int) {
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(len(ds.x))

	nTest := int(float64(len(ds.x)) * testFraction)
	if nTest < 1 && len(ds.x) > 1 {
		nTest = 1
	}

	for i, idx := range perm {
		if i < nTest {
			testX = append(testX, ds.x[idx])
			testY = append(testY, ds.y[idx])
		} else {
			trainX = append(trainX, ds.x[idx])
			trainY = append(trainY, ds.y[idx])
		}
	}
	return trainX, trainY, testX, testY
}

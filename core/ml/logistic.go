package ml

import (
	"math"
	"math/rand"
)

// LogitModel is a binary logistic regression classifier trained with
// stochastic gradient descent. Features are standardized at fit time
// using the recorded means and scales.
type LogitModel struct {
	Weights []float64
	Bias    float64
	Means   []float64
	Scales  []float64
}

// fitLogit trains a binary classifier; y must contain classes {0, 1}.
func fitLogit(x [][]float64, y []int, learningRate float64, epochs int, seed int64) *LogitModel {
	n := len(x)
	d := len(x[0])

	m := &LogitModel{
		Weights: make([]float64, d),
		Means:   make([]float64, d),
		Scales:  make([]float64, d),
	}

	for j := 0; j < d; j++ {
		for i := 0; i < n; i++ {
			m.Means[j] += x[i][j]
		}
		m.Means[j] /= float64(n)
		for i := 0; i < n; i++ {
			dv := x[i][j] - m.Means[j]
			m.Scales[j] += dv * dv
		}
		m.Scales[j] = math.Sqrt(m.Scales[j] / float64(n))
		if m.Scales[j] == 0 {
			m.Scales[j] = 1
		}
	}

	rng := rand.New(rand.NewSource(seed))
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < epochs; epoch++ {
		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
		for _, i := range order {
			p := m.prob1(x[i])
			grad := p - float64(y[i])
			for j := 0; j < d; j++ {
				m.Weights[j] -= learningRate * grad * m.standardize(x[i][j], j)
			}
			m.Bias -= learningRate * grad
		}
	}
	return m
}

func (m *LogitModel) standardize(v float64, j int) float64 {
	return (v - m.Means[j]) / m.Scales[j]
}

func (m *LogitModel) prob1(x []float64) float64 {
	z := m.Bias
	for j, w := range m.Weights {
		z += w * m.standardize(x[j], j)
	}
	return 1 / (1 + math.Exp(-z))
}

// predictProba returns [P(class 0), P(class 1)].
func (m *LogitModel) predictProba(x []float64) []float64 {
	p := m.prob1(x)
	return []float64{1 - p, p}
}

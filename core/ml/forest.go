package ml

import (
	"math"
	"math/rand"
)

// ForestModel is a bagged ensemble of classification trees with
// per-split feature subsampling.
type ForestModel struct {
	Trees    []*TreeNode
	NClasses int
}

// fitForest trains nTrees trees on bootstrap samples of (x, y).
func fitForest(x [][]float64, y []int, nClasses, nTrees, maxDepth, minSamplesSplit int, seed int64) *ForestModel {
	rng := rand.New(rand.NewSource(seed))
	mtry := int(math.Sqrt(float64(len(x[0]))))
	if mtry < 1 {
		mtry = 1
	}

	forest := &ForestModel{NClasses: nClasses}
	for t := 0; t < nTrees; t++ {
		bx := make([][]float64, len(x))
		by := make([]int, len(y))
		for i := range x {
			j := rng.Intn(len(x))
			bx[i] = x[j]
			by[i] = y[j]
		}
		tree := buildTree(bx, by, nClasses, treeParams{
			maxDepth:        maxDepth,
			minSamplesSplit: minSamplesSplit,
			mtry:            mtry,
			rng:             rng,
		})
		forest.Trees = append(forest.Trees, tree)
	}
	return forest
}

// predictProba averages the leaf distributions of all trees.
func (f *ForestModel) predictProba(x []float64) []float64 {
	proba := make([]float64, f.NClasses)
	for _, tree := range f.Trees {
		for i, p := range tree.predictProba(x) {
			proba[i] += p
		}
	}
	for i := range proba {
		proba[i] /= float64(len(f.Trees))
	}
	return proba
}

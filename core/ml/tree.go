package ml

import (
	"math/rand"
	"sort"
)

// TreeNode is a node of a CART classification tree. Exported fields so
// trained trees survive gob encoding inside the model artifact.
type TreeNode struct {
	Feature   int
	Threshold float64
	Left      *TreeNode
	Right     *TreeNode

	// Leaf distribution over classes, normalized.
	Leaf  bool
	Proba []float64
}

// treeParams bound tree growth.
type treeParams struct {
	maxDepth        int
	minSamplesSplit int
	// mtry is the number of features sampled per split; 0 means all.
	mtry int
	rng  *rand.Rand
}

// buildTree grows a tree on (x, y) with nClasses classes.
func buildTree(x [][]float64, y []int, nClasses int, p treeParams) *TreeNode {
	return growNode(x, y, nClasses, p, 0)
}

func growNode(x [][]float64, y []int, nClasses int, p treeParams, depth int) *TreeNode {
	counts := classCounts(y, nClasses)

	if depth >= p.maxDepth || len(y) < p.minSamplesSplit || isPure(counts) {
		return leaf(counts)
	}

	feature, threshold, ok := bestSplit(x, y, nClasses, p)
	if !ok {
		return leaf(counts)
	}

	var lx, rx [][]float64
	var ly, ry []int
	for i, row := range x {
		if row[feature] <= threshold {
			lx = append(lx, row)
			ly = append(ly, y[i])
		} else {
			rx = append(rx, row)
			ry = append(ry, y[i])
		}
	}
	if len(ly) == 0 || len(ry) == 0 {
		return leaf(counts)
	}

	return &TreeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      growNode(lx, ly, nClasses, p, depth+1),
		Right:     growNode(rx, ry, nClasses, p, depth+1),
	}
}

func leaf(counts []float64) *TreeNode {
	total := 0.0
	for _, c := range counts {
		total += c
	}
	proba := make([]float64, len(counts))
	for i, c := range counts {
		if total > 0 {
			proba[i] = c / total
		}
	}
	return &TreeNode{Leaf: true, Proba: proba}
}

func classCounts(y []int, nClasses int) []float64 {
	counts := make([]float64, nClasses)
	for _, c := range y {
		counts[c]++
	}
	return counts
}

func isPure(counts []float64) bool {
	nonzero := 0
	for _, c := range counts {
		if c > 0 {
			nonzero++
		}
	}
	return nonzero <= 1
}

func gini(counts []float64, total float64) float64 {
	if total == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := c / total
		g -= p * p
	}
	return g
}

// bestSplit scans candidate feature/threshold pairs and returns the one
// with the lowest weighted gini impurity.
func bestSplit(x [][]float64, y []int, nClasses int, p treeParams) (int, float64, bool) {
	nFeatures := len(x[0])
	candidates := make([]int, nFeatures)
	for i := range candidates {
		candidates[i] = i
	}
	if p.mtry > 0 && p.mtry < nFeatures {
		p.rng.Shuffle(nFeatures, func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})
		candidates = candidates[:p.mtry]
	}

	bestGini := -1.0
	bestFeature := -1
	bestThreshold := 0.0

	for _, f := range candidates {
		values := make([]float64, 0, len(x))
		for _, row := range x {
			values = append(values, row[f])
		}
		sort.Float64s(values)

		for i := 1; i < len(values); i++ {
			if values[i] == values[i-1] {
				continue
			}
			threshold := (values[i] + values[i-1]) / 2

			leftCounts := make([]float64, nClasses)
			rightCounts := make([]float64, nClasses)
			var leftTotal, rightTotal float64
			for j, row := range x {
				if row[f] <= threshold {
					leftCounts[y[j]]++
					leftTotal++
				} else {
					rightCounts[y[j]]++
					rightTotal++
				}
			}

			total := leftTotal + rightTotal
			weighted := (leftTotal/total)*gini(leftCounts, leftTotal) +
				(rightTotal/total)*gini(rightCounts, rightTotal)

			if bestGini < 0 || weighted < bestGini {
				bestGini = weighted
				bestFeature = f
				bestThreshold = threshold
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

// predictProba walks the tree for one sample.
func (n *TreeNode) predictProba(x []float64) []float64 {
	node := n
	for !node.Leaf {
		if x[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Proba
}

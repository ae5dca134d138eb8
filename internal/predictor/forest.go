package predictor

import (
	"math/rand"
	"sort"
)

// DefaultForestSize is the number of bagged trees.
const DefaultForestSize = 100

// forest is a bagged ensemble of regression trees grown to purity on
// bootstrap resamples. Every prediction is an average of training targets, so
// it never leaves the observed target range.
type forest struct {
	size    int
	minLeaf int
	seed    int64
	trees   []*treeNode
}

type treeNode struct {
	feature     int
	threshold   float64
	value       float64
	left, right *treeNode
}

func (f *forest) fit(x [][]float64, y []float64) error {
	rng := rand.New(rand.NewSource(f.seed))
	n := len(x)
	f.trees = make([]*treeNode, 0, f.size)
	for t := 0; t < f.size; t++ {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = rng.Intn(n)
		}
		f.trees = append(f.trees, f.grow(x, y, idx))
	}
	return nil
}

func (f *forest) predict(x []float64) float64 {
	var sum float64
	for _, t := range f.trees {
		sum += t.eval(x)
	}
	return sum / float64(len(f.trees))
}

func (n *treeNode) eval(x []float64) float64 {
	for n.left != nil {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

// grow splits idx on the feature/threshold pair with the lowest summed squared
// error until no split improves on the parent.
func (f *forest) grow(x [][]float64, y []float64, idx []int) *treeNode {
	var total, totalSq float64
	for _, i := range idx {
		total += y[i]
		totalSq += y[i] * y[i]
	}
	count := float64(len(idx))
	node := &treeNode{value: total / count}
	if len(idx) < 2*f.minLeaf {
		return node
	}

	best := totalSq - total*total/count - 1e-12
	bestFeature, bestThreshold := -1, 0.0
	for feature := range x[0] {
		sort.SliceStable(idx, func(a, b int) bool { return x[idx[a]][feature] < x[idx[b]][feature] })
		var sumL, sqL float64
		for i := 0; i < len(idx)-1; i++ {
			v := y[idx[i]]
			sumL += v
			sqL += v * v
			left, right := i+1, len(idx)-i-1
			if left < f.minLeaf || right < f.minLeaf {
				continue
			}
			lo, hi := x[idx[i]][feature], x[idx[i+1]][feature]
			if lo == hi {
				continue
			}
			sumR, sqR := total-sumL, totalSq-sqL
			cost := sqL - sumL*sumL/float64(left) + sqR - sumR*sumR/float64(right)
			if cost < best {
				best, bestFeature, bestThreshold = cost, feature, (lo+hi)/2
			}
		}
	}
	if bestFeature < 0 {
		return node
	}

	var leftIdx, rightIdx []int
	for _, i := range idx {
		if x[i][bestFeature] <= bestThreshold {
			leftIdx = append(leftIdx, i)
		} else {
			rightIdx = append(rightIdx, i)
		}
	}
	if len(leftIdx) == 0 || len(rightIdx) == 0 {
		// Midpoint rounded onto a neighbour; the split separates nothing.
		return node
	}
	node.feature, node.threshold = bestFeature, bestThreshold
	node.left = f.grow(x, y, leftIdx)
	node.right = f.grow(x, y, rightIdx)
	return node
}

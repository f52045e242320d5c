// Package model implements the unsupervised anomaly model behind the credit
// score: an isolation forest (Liu et al.) over standardized feature matrices.
//
// Scoring conventions follow the reference ensemble implementation: ScoreSamples
// returns values in (-1, 0) where lower means more isolated, and
// DecisionFunction shifts those by a contamination-derived offset so negative
// values mark anomalies. Runs are deterministic under a fixed seed.
package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Default hyperparameters.
const (
	DefaultTrees         = 100
	DefaultSubsample     = 256
	DefaultContamination = 0.1
	DefaultSeed          = 42
)

const eulerGamma = 0.5772156649015329

// treeNode is one node of an isolation tree. Leaves have nil children and
// carry the number of samples that reached them.
type treeNode struct {
	Feature   int       `json:"feature,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      *treeNode `json:"left,omitempty"`
	Right     *treeNode `json:"right,omitempty"`
	Size      int       `json:"size,omitempty"`
}

func (n *treeNode) leaf() bool { return n.Left == nil && n.Right == nil }

// IsolationForest isolates anomalies by random recursive partitioning.
// Anomalous points need fewer splits to isolate, giving shorter average
// path lengths across the ensemble.
type IsolationForest struct {
	Trees         int     `json:"trees"`
	Subsample     int     `json:"subsample"`
	Contamination float64 `json:"contamination"`
	Seed          int64   `json:"seed"`

	Roots     []*treeNode `json:"roots,omitempty"`
	NFeatures int         `json:"nFeatures,omitempty"`
	SampleLen int         `json:"sampleLen,omitempty"` // actual per-tree subsample after capping
	Offset    float64     `json:"offset,omitempty"`
}

// NewIsolationForest creates an unfitted forest with the given parameters.
// Non-positive parameters fall back to the defaults.
func NewIsolationForest(trees, subsample int, contamination float64, seed int64) *IsolationForest {
	if trees <= 0 {
		trees = DefaultTrees
	}
	if subsample <= 1 {
		subsample = DefaultSubsample
	}
	if contamination <= 0 || contamination > 0.5 {
		contamination = DefaultContamination
	}
	return &IsolationForest{
		Trees:         trees,
		Subsample:     subsample,
		Contamination: contamination,
		Seed:          seed,
	}
}

// Fit builds the ensemble on x and derives the decision offset from the
// contamination quantile of the training scores.
func (f *IsolationForest) Fit(x [][]float64) error {
	if len(x) == 0 {
		return errors.New("forest: empty training matrix")
	}
	f.NFeatures = len(x[0])
	if f.NFeatures == 0 {
		return errors.New("forest: zero-width training matrix")
	}

	f.SampleLen = f.Subsample
	if f.SampleLen > len(x) {
		f.SampleLen = len(x)
	}
	maxDepth := int(math.Ceil(math.Log2(math.Max(2, float64(f.SampleLen)))))

	rng := rand.New(rand.NewSource(f.Seed))
	f.Roots = make([]*treeNode, f.Trees)
	for t := 0; t < f.Trees; t++ {
		idx := rng.Perm(len(x))[:f.SampleLen]
		f.Roots[t] = buildTree(x, idx, 0, maxDepth, rng)
	}

	// Offset so that roughly a contamination fraction of the training set
	// lands below zero on the decision function.
	scores, err := f.ScoreSamples(x)
	if err != nil {
		return err
	}
	f.Offset = quantile(scores, f.Contamination)
	return nil
}

func buildTree(x [][]float64, idx []int, depth, maxDepth int, rng *rand.Rand) *treeNode {
	if depth >= maxDepth || len(idx) <= 1 {
		return &treeNode{Size: len(idx)}
	}

	// Only features that still vary inside this node are splittable.
	splittable := make([]int, 0, len(x[0]))
	for j := range x[idx[0]] {
		lo, hi := nodeRange(x, idx, j)
		if hi > lo {
			splittable = append(splittable, j)
		}
	}
	if len(splittable) == 0 {
		return &treeNode{Size: len(idx)}
	}

	feature := splittable[rng.Intn(len(splittable))]
	lo, hi := nodeRange(x, idx, feature)
	threshold := lo + rng.Float64()*(hi-lo)

	var left, right []int
	for _, i := range idx {
		if x[i][feature] < threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &treeNode{Size: len(idx)}
	}

	return &treeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      buildTree(x, left, depth+1, maxDepth, rng),
		Right:     buildTree(x, right, depth+1, maxDepth, rng),
	}
}

func nodeRange(x [][]float64, idx []int, feature int) (lo, hi float64) {
	lo, hi = x[idx[0]][feature], x[idx[0]][feature]
	for _, i := range idx[1:] {
		v := x[i][feature]
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// pathLength walks one sample down one tree. External nodes holding more
// than one sample contribute the average unbuilt subtree depth c(size).
func pathLength(root *treeNode, sample []float64) float64 {
	depth := 0.0
	n := root
	for !n.leaf() {
		if sample[n.Feature] < n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
		depth++
	}
	return depth + avgPathLength(n.Size)
}

// avgPathLength is c(n), the average path length of an unsuccessful BST
// search in a tree of n nodes: 2H(n-1) - 2(n-1)/n.
func avgPathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		nf := float64(n)
		return 2*(math.Log(nf-1)+eulerGamma) - 2*(nf-1)/nf
	}
}

// ScoreSamples returns -2^(-E[h(x)]/c(psi)) per sample: values in (-1, 0)
// where lower means more anomalous.
func (f *IsolationForest) ScoreSamples(x [][]float64) ([]float64, error) {
	if len(f.Roots) == 0 {
		return nil, fmt.Errorf("forest: %w", ErrNotFitted)
	}
	norm := avgPathLength(f.SampleLen)

	out := make([]float64, len(x))
	for i, sample := range x {
		if len(sample) != f.NFeatures {
			return nil, fmt.Errorf("forest: sample %d has %d features, fitted with %d", i, len(sample), f.NFeatures)
		}
		var total float64
		for _, root := range f.Roots {
			total += pathLength(root, sample)
		}
		mean := total / float64(len(f.Roots))
		out[i] = -math.Pow(2, -mean/norm)
	}
	return out, nil
}

// DecisionFunction returns ScoreSamples shifted by the fitted offset.
// Negative values are anomalies.
func (f *IsolationForest) DecisionFunction(x [][]float64) ([]float64, error) {
	scores, err := f.ScoreSamples(x)
	if err != nil {
		return nil, err
	}
	for i := range scores {
		scores[i] -= f.Offset
	}
	return scores, nil
}

// Predict returns 1 for inliers and -1 for anomalies.
func (f *IsolationForest) Predict(x [][]float64) ([]int, error) {
	decision, err := f.DecisionFunction(x)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(decision))
	for i, d := range decision {
		if d < 0 {
			out[i] = -1
		} else {
			out[i] = 1
		}
	}
	return out, nil
}

// quantile computes the q-quantile of xs with linear interpolation.
func quantile(xs []float64, q float64) float64 {
	cp := append([]float64(nil), xs...)
	sort.Float64s(cp)
	if len(cp) == 1 {
		return cp[0]
	}
	pos := q * float64(len(cp)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return cp[lo]
	}
	frac := pos - float64(lo)
	return cp[lo]*(1-frac) + cp[hi]*frac
}

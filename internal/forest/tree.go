package forest

import (
	"math"
	"math/rand"
	"sort"
)

// node is one decision-tree node. Internal nodes carry the split; every
// node keeps its training class histogram so decision paths stay
// inspectable and per-prediction attributions can be derived.
type node struct {
	Feature   int         `json:"feature"`
	Kind      FeatureKind `json:"kind,omitempty"`
	Threshold float64     `json:"threshold,omitempty"` // numeric: left iff value <= threshold
	Category  int         `json:"category,omitempty"`  // categorical: left iff encoded == category
	Counts    []int       `json:"counts"`
	Left      *node       `json:"left,omitempty"`
	Right     *node       `json:"right,omitempty"`
}

func (n *node) isLeaf() bool {
	return n.Left == nil
}

func (n *node) goesLeft(vector []float64) bool {
	if n.Kind == FeatureNumeric {
		return vector[n.Feature] <= n.Threshold
	}
	return int(vector[n.Feature]) == n.Category
}

// distribution returns the node's class histogram normalized to a
// probability vector.
func (n *node) distribution() []float64 {
	total := 0
	for _, c := range n.Counts {
		total += c
	}
	dist := make([]float64, len(n.Counts))
	if total == 0 {
		return dist
	}
	for i, c := range n.Counts {
		dist[i] = float64(c) / float64(total)
	}
	return dist
}

// predict walks the tree and returns the leaf distribution.
func (n *node) predict(vector []float64) []float64 {
	cur := n
	for !cur.isLeaf() {
		if cur.goesLeft(vector) {
			cur = cur.Left
		} else {
			cur = cur.Right
		}
	}
	return cur.distribution()
}

// treeBuilder grows one randomized tree over a bootstrap sample.
type treeBuilder struct {
	vectors     [][]float64
	labels      []int
	schema      Schema
	classes     int
	maxDepth    int
	minLeaf     int
	mtry        int
	rng         *rand.Rand
	total       int       // bootstrap sample size, for importance weighting
	importances []float64 // accumulated impurity decrease per feature
}

func (b *treeBuilder) classCounts(indices []int) []int {
	counts := make([]int, b.classes)
	for _, idx := range indices {
		counts[b.labels[idx]]++
	}
	return counts
}

func gini(counts []int) float64 {
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 0
	}
	impurity := 1.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		impurity -= p * p
	}
	return impurity
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

type split struct {
	feature   int
	kind      FeatureKind
	threshold float64
	category  int
	gain      float64
	left      []int
	right     []int
}

func (b *treeBuilder) build(indices []int, depth int) *node {
	counts := b.classCounts(indices)
	n := &node{Feature: -1, Counts: counts}

	if isPure(counts) || depth >= b.maxDepth || len(indices) < 2*b.minLeaf {
		return n
	}

	best := b.bestSplit(indices, counts)
	if best == nil {
		return n
	}

	b.importances[best.feature] += best.gain * float64(len(indices)) / float64(b.total)

	n.Feature = best.feature
	n.Kind = best.kind
	n.Threshold = best.threshold
	n.Category = best.category
	n.Left = b.build(best.left, depth+1)
	n.Right = b.build(best.right, depth+1)
	return n
}

// bestSplit evaluates a random subset of mtry features and returns the
// split with the highest Gini impurity decrease, or nil when no split
// clears the minimum leaf size with positive gain.
func (b *treeBuilder) bestSplit(indices []int, parentCounts []int) *split {
	parentGini := gini(parentCounts)
	nFeatures := len(b.schema.Features)

	perm := b.rng.Perm(nFeatures)
	candidates := perm[:b.mtry]

	var best *split
	for _, feature := range candidates {
		var s *split
		if b.schema.Features[feature].Kind == FeatureNumeric {
			s = b.bestNumericSplit(indices, feature, parentGini)
		} else {
			s = b.bestCategoricalSplit(indices, feature, parentGini)
		}
		if s == nil {
			continue
		}
		if best == nil || s.gain > best.gain ||
			(s.gain == best.gain && s.feature < best.feature) {
			best = s
		}
	}
	if best == nil || best.gain <= 1e-12 {
		return nil
	}
	return best
}

func (b *treeBuilder) splitGain(parentGini float64, left, right []int) float64 {
	total := len(left) + len(right)
	lGini := gini(b.classCounts(left))
	rGini := gini(b.classCounts(right))
	return parentGini -
		float64(len(left))/float64(total)*lGini -
		float64(len(right))/float64(total)*rGini
}

func (b *treeBuilder) bestNumericSplit(indices []int, feature int, parentGini float64) *split {
	sorted := make([]int, len(indices))
	copy(sorted, indices)
	sort.Slice(sorted, func(i, j int) bool {
		return b.vectors[sorted[i]][feature] < b.vectors[sorted[j]][feature]
	})

	var best *split
	for i := 1; i < len(sorted); i++ {
		prev := b.vectors[sorted[i-1]][feature]
		cur := b.vectors[sorted[i]][feature]
		if prev == cur {
			continue
		}
		if i < b.minLeaf || len(sorted)-i < b.minLeaf {
			continue
		}
		threshold := prev + (cur-prev)/2
		left := sorted[:i]
		right := sorted[i:]
		gain := b.splitGain(parentGini, left, right)
		if best == nil || gain > best.gain {
			l := make([]int, len(left))
			copy(l, left)
			r := make([]int, len(right))
			copy(r, right)
			best = &split{
				feature:   feature,
				kind:      FeatureNumeric,
				threshold: threshold,
				gain:      gain,
				left:      l,
				right:     r,
			}
		}
	}
	return best
}

func (b *treeBuilder) bestCategoricalSplit(indices []int, feature int, parentGini float64) *split {
	present := make(map[int]struct{})
	for _, idx := range indices {
		present[int(b.vectors[idx][feature])] = struct{}{}
	}
	if len(present) < 2 {
		return nil
	}
	categories := make([]int, 0, len(present))
	for c := range present {
		categories = append(categories, c)
	}
	sort.Ints(categories)

	var best *split
	for _, category := range categories {
		var left, right []int
		for _, idx := range indices {
			if int(b.vectors[idx][feature]) == category {
				left = append(left, idx)
			} else {
				right = append(right, idx)
			}
		}
		if len(left) < b.minLeaf || len(right) < b.minLeaf {
			continue
		}
		gain := b.splitGain(parentGini, left, right)
		if best == nil || gain > best.gain {
			best = &split{
				feature:  feature,
				kind:     FeatureCategorical,
				category: category,
				gain:     gain,
				left:     left,
				right:    right,
			}
		}
	}
	return best
}

// pathContributions walks the tree for one input and attributes the change
// in the target class probability to the feature split at each step (the
// decision-path attribution used by Explain). Contributions across a tree
// sum to P_leaf(target) − P_root(target).
func (n *node) pathContributions(vector []float64, target int, out []float64) {
	cur := n
	for !cur.isLeaf() {
		var next *node
		if cur.goesLeft(vector) {
			next = cur.Left
		} else {
			next = cur.Right
		}
		out[cur.Feature] += next.distribution()[target] - cur.distribution()[target]
		cur = next
	}
}

// depth is used by tests to sanity-check growth limits.
func (n *node) depth() int {
	if n.isLeaf() {
		return 0
	}
	left := n.Left.depth()
	right := n.Right.depth()
	return 1 + int(math.Max(float64(left), float64(right)))
}

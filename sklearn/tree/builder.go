package tree

import (
	"cmp"
	"math"
	"math/rand"
	"slices"
)

const (
	// featureThreshold は同一値とみなす特徴量の差
	featureThreshold = 1e-7
	// minImpurity 以下のノードは純粋とみなす
	minImpurity = 2.220446049250313e-16
)

type sortItem struct {
	x   float64
	row int
}

type split struct {
	feature   int
	threshold float64
	proxy     float64
}

// pending is a node waiting on the build stack.
type pending struct {
	start, end int
	depth      int
	parent     int
	isLeft     bool
}

// builder grows one tree depth-first. samples[start:end] holds the rows that
// reach the node being built; splitting reorders that range in place.
type builder struct {
	tree        *DecisionTreeRegressor
	data        *Dataset
	weights     []float64
	samples     []int
	maxFeatures int
	rng         *rand.Rand
	scratch     []sortItem
}

func (b *builder) build() ([]node, int) {
	nodes := make([]node, 0, 64)
	depth := 0
	stack := []pending{{start: 0, end: len(b.samples), parent: leafChild}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		id := len(nodes)
		nodes = append(nodes, b.leaf(p.start, p.end))
		if p.parent != leafChild {
			if p.isLeft {
				nodes[p.parent].left = id
			} else {
				nodes[p.parent].right = id
			}
		}
		depth = max(depth, p.depth)

		if b.stop(&nodes[id], p.depth) {
			continue
		}
		s, ok := b.bestSplit(p.start, p.end, &nodes[id])
		if !ok {
			continue
		}
		mid := b.partition(p.start, p.end, s)
		nodes[id].feature = s.feature
		nodes[id].threshold = s.threshold

		stack = append(stack,
			pending{start: mid, end: p.end, depth: p.depth + 1, parent: id},
			pending{start: p.start, end: mid, depth: p.depth + 1, parent: id, isLeft: true},
		)
	}
	return nodes, depth
}

// leaf computes the weighted mean and variance of the rows in [start, end).
func (b *builder) leaf(start, end int) node {
	var wsum, wy float64
	for _, r := range b.samples[start:end] {
		w := b.weights[r]
		wsum += w
		wy += w * b.data.y[r]
	}
	mean := wy / wsum

	var ss float64
	for _, r := range b.samples[start:end] {
		d := b.data.y[r] - mean
		ss += b.weights[r] * d * d
	}
	return node{
		feature:  leafChild,
		left:     leafChild,
		right:    leafChild,
		value:    mean,
		impurity: ss / wsum,
		weight:   wsum,
		nSamples: end - start,
	}
}

func (b *builder) stop(n *node, depth int) bool {
	t := b.tree
	switch {
	case t.maxDepth > 0 && depth >= t.maxDepth:
		return true
	case n.nSamples < t.minSamplesSplit, n.nSamples < 2*t.minSamplesLeaf:
		return true
	case n.impurity <= minImpurity:
		return true
	}
	return false
}

// bestSplit draws features in random order and keeps the split that
// maximizes wl*mean_l^2 + wr*mean_r^2, which is equivalent to minimizing the
// children's weighted variance. Constant features are skipped without
// counting against maxFeatures, and the search goes on past maxFeatures
// until some valid split is found.
func (b *builder) bestSplit(start, end int, parent *node) (split, bool) {
	m := end - start
	items := b.scratch[:m]
	minLeaf := b.tree.minSamplesLeaf
	wsum := parent.weight
	wy := parent.value * parent.weight

	best := split{proxy: math.Inf(-1)}
	found := false
	visited := 0

	for _, f := range b.rng.Perm(b.data.nFeatures) {
		if visited >= b.maxFeatures && found {
			break
		}

		col := b.data.cols[f]
		for i, r := range b.samples[start:end] {
			items[i] = sortItem{x: col[r], row: r}
		}
		slices.SortFunc(items, func(a, c sortItem) int { return cmp.Compare(a.x, c.x) })
		if items[m-1].x <= items[0].x+featureThreshold {
			continue
		}
		visited++

		var wl, wyl float64
		for i := 0; i < m-1; i++ {
			r := items[i].row
			w := b.weights[r]
			wl += w
			wyl += w * b.data.y[r]

			if items[i+1].x <= items[i].x+featureThreshold {
				continue
			}
			if i+1 < minLeaf || m-i-1 < minLeaf {
				continue
			}
			wr := wsum - wl
			if wr <= 0 {
				continue
			}
			wyr := wy - wyl
			proxy := wyl*wyl/wl + wyr*wyr/wr
			if proxy > best.proxy {
				threshold := items[i].x/2 + items[i+1].x/2
				if threshold >= items[i+1].x || math.IsInf(threshold, 0) {
					threshold = items[i].x
				}
				best = split{feature: f, threshold: threshold, proxy: proxy}
				found = true
			}
		}
	}
	return best, found
}

// partition moves rows going left to the front of [start, end) and returns
// the first index of the right child.
func (b *builder) partition(start, end int, s split) int {
	col := b.data.cols[s.feature]
	i, j := start, end-1
	for i <= j {
		if col[b.samples[i]] <= s.threshold {
			i++
			continue
		}
		b.samples[i], b.samples[j] = b.samples[j], b.samples[i]
		j--
	}
	return i
}

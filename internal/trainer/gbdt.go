package trainer

import (
	"math"
	"sort"

	"github.com/SAP-F-2025/integrity-service/internal/classifier"
)

// Params control gradient boosting with logistic loss.
type Params struct {
	Trees          int     `mapstructure:"trees" json:"trees"`
	MaxDepth       int     `mapstructure:"max_depth" json:"max_depth"`
	LearningRate   float64 `mapstructure:"learning_rate" json:"learning_rate"`
	Lambda         float64 `mapstructure:"lambda" json:"lambda"`
	MinChildWeight float64 `mapstructure:"min_child_weight" json:"min_child_weight"`
	Gamma          float64 `mapstructure:"gamma" json:"gamma"`
}

func DefaultParams() Params {
	return Params{Trees: 120, MaxDepth: 5, LearningRate: 0.08, Lambda: 1, MinChildWeight: 0.5}
}

const (
	minHessian = 1e-6
	minGain    = 1e-9
)

// fitBoosted grows p.Trees regression trees on second-order gradients of the
// log loss. Labels are 0/1. It returns the base log-odds and the trees.
func fitBoosted(x [][]float64, y []float64, p Params) (float64, []classifier.Tree) {
	n := len(y)
	pos := 0.0
	for _, v := range y {
		pos += v
	}
	prior := math.Min(math.Max(pos/float64(n), 1e-3), 1-1e-3)
	base := math.Log(prior / (1 - prior))

	margin := make([]float64, n)
	for i := range margin {
		margin[i] = base
	}
	g := make([]float64, n)
	h := make([]float64, n)
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	trees := make([]classifier.Tree, 0, p.Trees)
	for t := 0; t < p.Trees; t++ {
		for i := range y {
			pr := classifier.Sigmoid(margin[i])
			g[i] = pr - y[i]
			h[i] = math.Max(pr*(1-pr), minHessian)
		}
		b := &treeBuilder{x: x, g: g, h: h, p: p}
		b.grow(all, 0)
		tree := classifier.Tree{Nodes: b.nodes}
		for i := range x {
			margin[i] += tree.Nodes[leafIndex(&tree, x[i])].Value
		}
		trees = append(trees, tree)
	}
	return base, trees
}

func leafIndex(t *classifier.Tree, row []float64) int {
	i := 0
	for !t.Nodes[i].IsLeaf() {
		n := &t.Nodes[i]
		if row[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return i
}

type treeBuilder struct {
	x     [][]float64
	g, h  []float64
	p     Params
	nodes []classifier.Node
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

// grow appends the subtree for rows in pre-order and returns its index.
func (b *treeBuilder) grow(rows []int, depth int) int {
	var gs, hs float64
	for _, i := range rows {
		gs += b.g[i]
		hs += b.h[i]
	}
	idx := len(b.nodes)
	b.nodes = append(b.nodes, classifier.Node{Feature: -1, Cover: hs})

	best, ok := b.bestSplit(rows, gs, hs, depth)
	if !ok {
		b.nodes[idx].Value = -gs / (hs + b.p.Lambda) * b.p.LearningRate
		return idx
	}

	var left, right []int
	for _, i := range rows {
		if b.x[i][best.feature] < best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[idx].Feature = best.feature
	b.nodes[idx].Threshold = best.threshold
	b.nodes[idx].Left = l
	b.nodes[idx].Right = r
	return idx
}

func (b *treeBuilder) bestSplit(rows []int, gs, hs float64, depth int) (split, bool) {
	if depth >= b.p.MaxDepth || len(rows) < 2 || hs < 2*b.p.MinChildWeight {
		return split{}, false
	}
	score := func(g, h float64) float64 { return g * g / (h + b.p.Lambda) }
	parent := score(gs, hs)

	best := split{gain: minGain}
	found := false
	sorted := make([]int, len(rows))
	for f := range b.x[rows[0]] {
		copy(sorted, rows)
		sort.SliceStable(sorted, func(i, j int) bool { return b.x[sorted[i]][f] < b.x[sorted[j]][f] })

		var gl, hl float64
		for k := 0; k < len(sorted)-1; k++ {
			i := sorted[k]
			gl += b.g[i]
			hl += b.h[i]
			cur, next := b.x[i][f], b.x[sorted[k+1]][f]
			if cur == next {
				continue
			}
			hr := hs - hl
			if hl < b.p.MinChildWeight || hr < b.p.MinChildWeight {
				continue
			}
			gain := 0.5*(score(gl, hl)+score(gs-gl, hr)-parent) - b.p.Gamma
			if gain > best.gain {
				best = split{feature: f, threshold: (cur + next) / 2, gain: gain}
				found = true
			}
		}
	}
	return best, found
}

// Package classifier scores feature vectors with a gradient boosted tree
// ensemble and explains each score with per-feature Shapley attributions.
package classifier

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/SAP-F-2025/integrity-service/internal/features"
)

var (
	ErrModelNotLoaded  = errors.New("classifier model not loaded")
	ErrArtifactInvalid = errors.New("invalid model artifact")
)

// Node is one tree node. Leaves have Feature == -1. An internal node sends a
// sample left when its value is strictly below Threshold.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
	Value     float64 `json:"value,omitempty"`
	Cover     float64 `json:"cover"`
}

func (n *Node) IsLeaf() bool {
	return n.Feature < 0
}

// Tree is a flat node list rooted at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// leaf returns the leaf value reached by x.
func (t *Tree) leaf(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return n.Value
		}
		if x[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// expected is the cover-weighted mean leaf value of the subtree at i.
func (t *Tree) expected(i int) float64 {
	n := &t.Nodes[i]
	if n.IsLeaf() {
		return n.Value
	}
	l, r := &t.Nodes[n.Left], &t.Nodes[n.Right]
	if n.Cover <= 0 {
		return (t.expected(n.Left) + t.expected(n.Right)) / 2
	}
	return (l.Cover*t.expected(n.Left) + r.Cover*t.expected(n.Right)) / n.Cover
}

type TransformKind string

const (
	TransformLog1p TransformKind = "log1p"
	TransformClip  TransformKind = "clip"
)

// Transform is a numeric rewrite applied to one input column before scoring.
type Transform struct {
	Feature string        `json:"feature"`
	Kind    TransformKind `json:"kind"`
	Max     float64       `json:"max,omitempty"`
}

func (t Transform) apply(x float64) float64 {
	switch t.Kind {
	case TransformLog1p:
		return math.Log1p(math.Max(x, 0))
	case TransformClip:
		return math.Min(x, t.Max)
	}
	return x
}

// Metrics summarize a training run.
type Metrics struct {
	Samples        int     `json:"samples"`
	Positives      int     `json:"positives"`
	Negatives      int     `json:"negatives"`
	TrainSize      int     `json:"train_size"`
	TestSize       int     `json:"test_size"`
	Accuracy       float64 `json:"accuracy"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	TruePositives  int     `json:"true_positives"`
	FalsePositives int     `json:"false_positives"`
	TrueNegatives  int     `json:"true_negatives"`
	FalseNegatives int     `json:"false_negatives"`
}

// Model is a trained ensemble together with the ordered columns it expects.
// A loaded Model is never mutated.
type Model struct {
	Version      string      `json:"version"`
	FeatureNames []string    `json:"feature_names"`
	BaseScore    float64     `json:"base_score"`
	Trees        []Tree      `json:"trees"`
	Transforms   []Transform `json:"transforms,omitempty"`
	TrainedAt    time.Time   `json:"trained_at"`
	Metrics      *Metrics    `json:"metrics,omitempty"`
}

// Validate checks that every node references a known column and child.
func (m *Model) Validate() error {
	if len(m.FeatureNames) == 0 {
		return fmt.Errorf("%w: no feature names", ErrArtifactInvalid)
	}
	if len(m.Trees) == 0 {
		return fmt.Errorf("%w: no trees", ErrArtifactInvalid)
	}
	for ti, t := range m.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("%w: tree %d is empty", ErrArtifactInvalid, ti)
		}
		for ni, n := range t.Nodes {
			if n.IsLeaf() {
				continue
			}
			if n.Feature >= len(m.FeatureNames) {
				return fmt.Errorf("%w: tree %d node %d uses feature %d", ErrArtifactInvalid, ti, ni, n.Feature)
			}
			// children always follow their parent, so walks terminate
			if n.Left <= ni || n.Right <= ni || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
				return fmt.Errorf("%w: tree %d node %d has bad children", ErrArtifactInvalid, ti, ni)
			}
		}
	}
	return nil
}

// Prepare applies the stored transforms and aligns v to the model columns.
// Columns missing from v read as 0.
func (m *Model) Prepare(v features.Vector) []float64 {
	if len(m.Transforms) > 0 {
		v = v.Clone()
		for _, t := range m.Transforms {
			v[t.Feature] = t.apply(v.Get(t.Feature))
		}
	}
	return v.Select(m.FeatureNames)
}

// Margin returns the raw log-odds score for an aligned row.
func (m *Model) Margin(x []float64) float64 {
	s := m.BaseScore
	for i := range m.Trees {
		s += m.Trees[i].leaf(x)
	}
	return s
}

// ExpectedMargin is the margin of an average training sample.
func (m *Model) ExpectedMargin() float64 {
	s := m.BaseScore
	for i := range m.Trees {
		s += m.Trees[i].expected(0)
	}
	return s
}

func Sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

package classifier

import (
	"math"
	"sort"

	"github.com/SAP-F-2025/integrity-service/internal/features"
)

const (
	DefaultTopFactors = 5

	// DecisionThreshold is the probability at which the model's binary
	// prediction flips to cheating.
	DecisionThreshold = 0.5

	DefaultVoiceOnlySeconds = 10.0
)

// Factor is one feature's contribution to a prediction, in log-odds.
type Factor struct {
	Feature     string  `json:"feature"`
	Attribution float64 `json:"attribution"`
}

type Prediction struct {
	Cheating      bool     `json:"cheating"`
	Probability   float64  `json:"probability"`
	TopFactors    []Factor `json:"top_factors"`
	ModelVersion  string   `json:"model_version"`
	ExpectedValue float64  `json:"expected_value"`
}

// Predictor scores vectors with whatever model the handle currently holds.
type Predictor struct {
	handle *Handle
	topN   int
}

func NewPredictor(h *Handle, topN int) *Predictor {
	if topN <= 0 {
		topN = DefaultTopFactors
	}
	return &Predictor{handle: h, topN: topN}
}

// Predict adds derived features, aligns v to the model columns and returns the
// probability with its top attributions. It fails only when no model is loaded.
func (p *Predictor) Predict(v features.Vector) (Prediction, error) {
	m, err := p.handle.Current()
	if err != nil {
		return Prediction{}, err
	}
	return m.Predict(v, p.topN), nil
}

// Predict scores v against m.
func (m *Model) Predict(v features.Vector, topN int) Prediction {
	x := m.Prepare(features.AddDerived(v))
	prob := Sigmoid(m.Margin(x))
	return Prediction{
		Cheating:      prob >= DecisionThreshold,
		Probability:   prob,
		TopFactors:    topFactors(m.FeatureNames, m.Shap(x), topN),
		ModelVersion:  m.Version,
		ExpectedValue: m.ExpectedMargin(),
	}
}

func topFactors(names []string, phi []float64, n int) []Factor {
	out := make([]Factor, 0, len(names))
	for i, name := range names {
		if phi[i] == 0 {
			continue
		}
		out = append(out, Factor{Feature: name, Attribution: phi[i]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := math.Abs(out[i].Attribution), math.Abs(out[j].Attribution)
		if ai != aj {
			return ai > aj
		}
		return out[i].Feature < out[j].Feature
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// VoiceOnly reports whether speech is the sole anomaly in v: every other
// behavioral counter is zero and more than minSeconds were voiced.
func VoiceOnly(v features.Vector, minSeconds float64) bool {
	for _, name := range features.BehaviorCounters {
		if v.Get(name) != 0 {
			return false
		}
	}
	return v.Get(features.VoicedSeconds) > minSeconds
}

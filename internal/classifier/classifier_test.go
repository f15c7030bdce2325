package classifier

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/integrity-service/internal/features"
)

// testModel has two trees over three columns, one of them splitting on the
// same feature twice along a path.
func testModel() *Model {
	return &Model{
		Version:      "test",
		FeatureNames: []string{"a", "b", "c"},
		BaseScore:    -0.2,
		Trees: []Tree{
			{Nodes: []Node{
				{Feature: 0, Threshold: 1, Left: 1, Right: 2, Cover: 10},
				{Feature: 1, Threshold: 5, Left: 3, Right: 4, Cover: 6},
				{Feature: 0, Threshold: 3, Left: 5, Right: 6, Cover: 4},
				{Feature: -1, Value: -0.8, Cover: 4},
				{Feature: -1, Value: 0.3, Cover: 2},
				{Feature: -1, Value: 0.5, Cover: 1},
				{Feature: -1, Value: 1.2, Cover: 3},
			}},
			{Nodes: []Node{
				{Feature: 2, Threshold: 0.5, Left: 1, Right: 2, Cover: 10},
				{Feature: -1, Value: -0.4, Cover: 7},
				{Feature: 1, Threshold: 2, Left: 3, Right: 4, Cover: 3},
				{Feature: -1, Value: 0.1, Cover: 1},
				{Feature: -1, Value: 0.9, Cover: 2},
			}},
		},
	}
}

// conditional is E[f(x) | x_S] with missing features averaged by cover.
func conditional(t *Tree, i int, x []float64, s map[int]bool) float64 {
	n := &t.Nodes[i]
	if n.IsLeaf() {
		return n.Value
	}
	if s[n.Feature] {
		if x[n.Feature] < n.Threshold {
			return conditional(t, n.Left, x, s)
		}
		return conditional(t, n.Right, x, s)
	}
	l, r := &t.Nodes[n.Left], &t.Nodes[n.Right]
	return (l.Cover*conditional(t, n.Left, x, s) + r.Cover*conditional(t, n.Right, x, s)) / n.Cover
}

func bruteShap(m *Model, x []float64) []float64 {
	k := len(m.FeatureNames)
	value := func(mask int) float64 {
		s := map[int]bool{}
		for j := 0; j < k; j++ {
			if mask&(1<<j) != 0 {
				s[j] = true
			}
		}
		total := 0.0
		for ti := range m.Trees {
			total += conditional(&m.Trees[ti], 0, x, s)
		}
		return total
	}
	fact := func(n int) float64 {
		f := 1.0
		for i := 2; i <= n; i++ {
			f *= float64(i)
		}
		return f
	}
	phi := make([]float64, k)
	for i := 0; i < k; i++ {
		for mask := 0; mask < 1<<k; mask++ {
			if mask&(1<<i) != 0 {
				continue
			}
			size := 0
			for j := 0; j < k; j++ {
				if mask&(1<<j) != 0 {
					size++
				}
			}
			w := fact(size) * fact(k-size-1) / fact(k)
			phi[i] += w * (value(mask|1<<i) - value(mask))
		}
	}
	return phi
}

func TestShap_MatchesExactShapley(t *testing.T) {
	m := testModel()
	rows := [][]float64{
		{0, 0, 0},
		{0, 9, 1},
		{2, 1, 1},
		{5, 3, 0},
		{5, 1, 2},
	}
	for _, x := range rows {
		phi := m.Shap(x)
		want := bruteShap(m, x)
		for i := range phi {
			assert.InDelta(t, want[i], phi[i], 1e-9, "row %v feature %d", x, i)
		}
	}
}

func TestShap_Additive(t *testing.T) {
	m := testModel()
	for _, x := range [][]float64{{0, 0, 0}, {4, 7, 1}, {1, 5, 0.5}} {
		sum := m.ExpectedMargin()
		for _, p := range m.Shap(x) {
			sum += p
		}
		assert.InDelta(t, m.Margin(x), sum, 1e-9)
	}
}

func TestShap_Stump(t *testing.T) {
	m := &Model{
		FeatureNames: []string{"a"},
		Trees: []Tree{{Nodes: []Node{
			{Feature: 0, Threshold: 1, Left: 1, Right: 2, Cover: 4},
			{Feature: -1, Value: 2, Cover: 1},
			{Feature: -1, Value: -2, Cover: 3},
		}}},
	}
	// vl - (a*vl + b*vr)/n
	assert.InDelta(t, 2-(1*2+3*-2)/4.0, m.Shap([]float64{0})[0], 1e-12)
	assert.InDelta(t, -2-(1*2+3*-2)/4.0, m.Shap([]float64{3})[0], 1e-12)
}

func TestModel_Predict(t *testing.T) {
	m := testModel()
	v := features.Vector{"a": 5, "b": 3, "c": 0}

	p := m.Predict(v, 2)

	margin := -0.2 + 1.2 - 0.4
	assert.InDelta(t, Sigmoid(margin), p.Probability, 1e-12)
	assert.Equal(t, p.Probability >= 0.5, p.Cheating)
	assert.Equal(t, "test", p.ModelVersion)
	require.Len(t, p.TopFactors, 2)
	assert.GreaterOrEqual(t, math.Abs(p.TopFactors[0].Attribution), math.Abs(p.TopFactors[1].Attribution))
}

func TestModel_PrepareAppliesTransformsAndFillsMissing(t *testing.T) {
	m := &Model{
		FeatureNames: []string{"rate", "voice", "absent"},
		Transforms: []Transform{
			{Feature: "rate", Kind: TransformLog1p},
			{Feature: "voice", Kind: TransformClip, Max: 20},
		},
	}
	v := features.Vector{"rate": math.E - 1, "voice": 45}

	x := m.Prepare(v)

	assert.InDelta(t, 1.0, x[0], 1e-12)
	assert.Equal(t, 20.0, x[1])
	assert.Equal(t, 0.0, x[2])
	assert.Equal(t, 45.0, v["voice"], "input vector must not change")
}

func TestModel_Validate(t *testing.T) {
	assert.NoError(t, testModel().Validate())

	m := testModel()
	m.FeatureNames = nil
	assert.ErrorIs(t, m.Validate(), ErrArtifactInvalid)

	m = testModel()
	m.Trees[0].Nodes[1].Feature = 7
	assert.ErrorIs(t, m.Validate(), ErrArtifactInvalid)

	m = testModel()
	m.Trees[1].Nodes[2].Left = 0
	assert.ErrorIs(t, m.Validate(), ErrArtifactInvalid)
}

func TestArtifact_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models", "integrity.json")
	m := testModel()

	require.NoError(t, SaveFile(path, m))
	loaded, err := LoadFile(path)
	require.NoError(t, err)

	x := []float64{2, 1, 1}
	assert.Equal(t, m.FeatureNames, loaded.FeatureNames)
	assert.InDelta(t, m.Margin(x), loaded.Margin(x), 1e-12)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestArtifact_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, ErrModelNotLoaded)

	_, err = Decode([]byte("{not json"))
	assert.ErrorIs(t, err, ErrArtifactInvalid)
}

func TestHandle(t *testing.T) {
	h := NewHandle(nil)
	_, err := NewPredictor(h, 0).Predict(features.Vector{})
	assert.ErrorIs(t, err, ErrModelNotLoaded)

	path := filepath.Join(t.TempDir(), "model.json")
	assert.Error(t, h.LoadFile(path))

	first := testModel()
	h.Store(first)
	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"feature_names":[]}`), 0o644))
	assert.Error(t, h.LoadFile(bad))

	cur, err := h.Current()
	require.NoError(t, err)
	assert.Same(t, first, cur, "failed reload keeps the current model")
}

func TestHandle_StoreNilKeepsCurrent(t *testing.T) {
	h := NewHandle(nil)
	assert.NotPanics(t, func() { h.Store(nil) })
	_, err := h.Current()
	assert.ErrorIs(t, err, ErrModelNotLoaded)

	first := testModel()
	h.Store(first)
	h.Store(nil)
	cur, err := h.Current()
	require.NoError(t, err)
	assert.Same(t, first, cur)
}

func TestWatcher_CreatesDirAndLoadsFirstModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models", "integrity_model.json")
	h := NewHandle(nil)

	w, err := NewWatcher(path, h, nil)
	require.NoError(t, err)
	assert.DirExists(t, filepath.Dir(path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, SaveFile(path, testModel()))
	require.Eventually(t, func() bool {
		m, err := h.Current()
		return err == nil && m.Version == "test"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestTopFactors(t *testing.T) {
	got := topFactors([]string{"a", "b", "c", "d"}, []float64{0.1, -0.5, 0, 0.5}, 3)
	assert.Equal(t, []Factor{{"b", -0.5}, {"d", 0.5}, {"a", 0.1}}, got)
}

func TestVoiceOnly(t *testing.T) {
	assert.True(t, VoiceOnly(features.Vector{features.VoicedSeconds: 11}, DefaultVoiceOnlySeconds))
	assert.False(t, VoiceOnly(features.Vector{features.VoicedSeconds: 10}, DefaultVoiceOnlySeconds))
	assert.False(t, VoiceOnly(features.Vector{features.VoicedSeconds: 30, features.TabSwitchesCount: 1}, DefaultVoiceOnlySeconds))
	assert.True(t, VoiceOnly(features.Vector{features.VoicedSeconds: 6}, 5))
}

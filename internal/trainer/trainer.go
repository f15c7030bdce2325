// Package trainer rebuilds the classifier from labeled attempts and publishes
// it atomically.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"path/filepath"
	"sync"
	"time"

	"github.com/SAP-F-2025/integrity-service/internal/classifier"
	"github.com/google/uuid"
)

var (
	ErrInsufficientData   = errors.New("not enough labeled attempts to train")
	ErrSingleClass        = errors.New("labeled attempts contain a single class")
	ErrTrainingInProgress = errors.New("training already in progress")
)

const lockKey = "integrity:trainer:lock"

// ExampleSource lists every attempt that carries a ground-truth label.
type ExampleSource interface {
	LabeledExamples(ctx context.Context) ([]Example, error)
}

// Locker guards against concurrent retrains across processes.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type Config struct {
	ModelPath    string        `mapstructure:"model_path"`
	VersionsDir  string        `mapstructure:"versions_dir"`
	MinSamples   int           `mapstructure:"min_samples"`
	TestFraction float64       `mapstructure:"test_fraction"`
	SmoteK       int           `mapstructure:"smote_k"`
	Seed         int64         `mapstructure:"seed"`
	LockTTL      time.Duration `mapstructure:"lock_ttl"`
	Params       Params        `mapstructure:"params"`
}

func DefaultConfig() Config {
	return Config{
		ModelPath:    "models/integrity_model.json",
		VersionsDir:  "model_versions",
		MinSamples:   10,
		TestFraction: 0.2,
		SmoteK:       5,
		Seed:         42,
		LockTTL:      10 * time.Minute,
		Params:       DefaultParams(),
	}
}

// Result describes a published model.
type Result struct {
	Model         *classifier.Model   `json:"-"`
	RunID         string              `json:"run_id"`
	Version       string              `json:"version"`
	ArtifactPath  string              `json:"artifact_path"`
	BenchmarkPath string              `json:"benchmark_path"`
	ReportPath    string              `json:"report_path"`
	Metrics       classifier.Metrics  `json:"metrics"`
	Importance    []classifier.Factor `json:"importance"`
}

type Trainer struct {
	source ExampleSource
	handle *classifier.Handle
	locker Locker
	cfg    Config
	logger *slog.Logger
	mu     sync.Mutex
	now    func() time.Time
}

// New builds a trainer. locker may be nil for single-process deployments.
func New(source ExampleSource, handle *classifier.Handle, locker Locker, cfg Config, logger *slog.Logger) *Trainer {
	def := DefaultConfig()
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = def.MinSamples
	}
	if cfg.TestFraction <= 0 || cfg.TestFraction >= 1 {
		cfg.TestFraction = def.TestFraction
	}
	if cfg.SmoteK <= 0 {
		cfg.SmoteK = def.SmoteK
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = def.LockTTL
	}
	if cfg.Params.Trees <= 0 {
		cfg.Params = def.Params
	}
	return &Trainer{source: source, handle: handle, locker: locker, cfg: cfg, logger: logger, now: time.Now}
}

// Train fits a new model from all labeled attempts, writes it next to the
// current artifact, keeps a timestamped benchmark copy and swaps it into the
// handle. Only one Train runs at a time; a second caller gets
// ErrTrainingInProgress. On any error the current model stays in place.
func (t *Trainer) Train(ctx context.Context) (*Result, error) {
	if !t.mu.TryLock() {
		return nil, ErrTrainingInProgress
	}
	defer t.mu.Unlock()

	if t.locker != nil {
		ok, err := t.locker.Acquire(ctx, lockKey, t.cfg.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire training lock: %w", err)
		}
		if !ok {
			return nil, ErrTrainingInProgress
		}
		defer func() {
			if err := t.locker.Release(context.WithoutCancel(ctx), lockKey); err != nil {
				t.logger.Warn("Failed to release training lock", "error", err)
			}
		}()
	}

	start := t.now()
	examples, err := t.source.LabeledExamples(ctx)
	if err != nil {
		return nil, fmt.Errorf("load labeled attempts: %w", err)
	}
	if len(examples) < t.cfg.MinSamples {
		t.logger.Warn("Not enough labeled attempts, keeping current model",
			"samples", len(examples), "min_samples", t.cfg.MinSamples)
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientData, len(examples), t.cfg.MinSamples)
	}
	pos, neg := countClasses(examples)
	if pos == 0 || neg == 0 {
		t.logger.Warn("Labeled attempts contain one class only, keeping current model", "positives", pos, "negatives", neg)
		return nil, ErrSingleClass
	}

	version := start.UTC().Format("20060102_150405")
	model := &classifier.Model{
		Version:      version,
		FeatureNames: Columns(),
		Transforms:   DefaultTransforms(),
		TrainedAt:    start.UTC(),
	}

	rng := rand.New(rand.NewSource(t.cfg.Seed))
	x, y := vectorize(examples, model)
	x, y = oversample(x, y, t.cfg.SmoteK, rng)
	trainIdx, testIdx := stratifiedSplit(y, t.cfg.TestFraction, rng)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	model.BaseScore, model.Trees = fitBoosted(pick(x, trainIdx), pickLabels(y, trainIdx), t.cfg.Params)
	metrics := evaluate(model, pick(x, testIdx), pickLabels(y, testIdx))
	metrics.Samples, metrics.Positives, metrics.Negatives = len(examples), pos, neg
	metrics.TrainSize, metrics.TestSize = len(trainIdx), len(testIdx)
	model.Metrics = &metrics

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{
		Model:         model,
		RunID:         uuid.NewString(),
		Version:       version,
		ArtifactPath:  t.cfg.ModelPath,
		BenchmarkPath: filepath.Join(t.cfg.VersionsDir, "model_"+version+".json"),
		ReportPath:    filepath.Join(t.cfg.VersionsDir, "model_"+version+".xlsx"),
		Metrics:       metrics,
		Importance:    importance(model, pick(x, testIdx)),
	}

	// The served artifact is replaced last so a failed run leaves it untouched.
	if err := classifier.SaveFile(res.BenchmarkPath, model); err != nil {
		return nil, fmt.Errorf("write benchmark copy: %w", err)
	}
	if err := WriteBenchmarkReport(res.ReportPath, model, res.Importance); err != nil {
		t.logger.Warn("Failed to write training report", "path", res.ReportPath, "error", err)
		res.ReportPath = ""
	}
	if err := classifier.SaveFile(res.ArtifactPath, model); err != nil {
		return nil, err
	}
	t.handle.Store(model)

	t.logger.Info("Classifier retrained",
		"run_id", res.RunID,
		"version", version,
		"samples", len(examples),
		"train_size", metrics.TrainSize,
		"test_size", metrics.TestSize,
		"accuracy", metrics.Accuracy,
		"duration", t.now().Sub(start))
	return res, nil
}

func pick(x [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = x[j]
	}
	return out
}

func pickLabels(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}

func evaluate(m *classifier.Model, x [][]float64, y []float64) classifier.Metrics {
	var mt classifier.Metrics
	for i, row := range x {
		pred := classifier.Sigmoid(m.Margin(row)) >= classifier.DecisionThreshold
		actual := y[i] == 1
		switch {
		case pred && actual:
			mt.TruePositives++
		case pred && !actual:
			mt.FalsePositives++
		case !pred && actual:
			mt.FalseNegatives++
		default:
			mt.TrueNegatives++
		}
	}
	if n := len(x); n > 0 {
		mt.Accuracy = float64(mt.TruePositives+mt.TrueNegatives) / float64(n)
	}
	if d := mt.TruePositives + mt.FalsePositives; d > 0 {
		mt.Precision = float64(mt.TruePositives) / float64(d)
	}
	if d := mt.TruePositives + mt.FalseNegatives; d > 0 {
		mt.Recall = float64(mt.TruePositives) / float64(d)
	}
	return mt
}

// importance is the mean absolute attribution per column over x, largest first.
func importance(m *classifier.Model, x [][]float64) []classifier.Factor {
	sums := make([]float64, len(m.FeatureNames))
	for _, row := range x {
		for i, phi := range m.Shap(row) {
			sums[i] += math.Abs(phi)
		}
	}
	out := make([]classifier.Factor, 0, len(sums))
	for i, s := range sums {
		if len(x) > 0 {
			s /= float64(len(x))
		}
		out = append(out, classifier.Factor{Feature: m.FeatureNames[i], Attribution: s})
	}
	sortFactors(out)
	return out
}

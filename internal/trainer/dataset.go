package trainer

import (
	"github.com/SAP-F-2025/integrity-service/internal/classifier"
	"github.com/SAP-F-2025/integrity-service/internal/features"
)

// Example is one labeled attempt. Cheating is the ground truth.
type Example struct {
	AttemptID uint
	Input     features.Input
	Cheating  bool
}

// ExcludedColumns are left out of training: modality switches carry no
// behavior, and the camera counts and flags are already decided by rules.
var ExcludedColumns = []string{
	features.CameraEnabled, features.AudioEnabled, features.ProctoringEnabled,
	features.MobileDetected, features.MultipleFacesFlag, features.FaceMismatchFlag, features.NoFaceFlag,
	features.MobileDetectedCount, features.MultipleFacesCount, features.FaceMismatchCount, features.NoFaceCount,
	features.OffscreenSeconds, features.GazeDownCount,
}

// DefaultTransforms compress heavy tails before fitting.
func DefaultTransforms() []classifier.Transform {
	return []classifier.Transform{
		{Feature: features.CharsPerMinute, Kind: classifier.TransformLog1p},
		{Feature: features.VoicedSeconds, Kind: classifier.TransformClip, Max: 20},
	}
}

// Columns returns the training columns in schema order.
func Columns() []string {
	excluded := make(map[string]bool, len(ExcludedColumns))
	for _, n := range ExcludedColumns {
		excluded[n] = true
	}
	var cols []string
	for _, n := range features.Schema {
		if !excluded[n] {
			cols = append(cols, n)
		}
	}
	return cols
}

// vectorize runs every example through the inference feature path and the
// stored transforms, so training rows match what the predictor will see.
func vectorize(examples []Example, layout *classifier.Model) ([][]float64, []float64) {
	x := make([][]float64, len(examples))
	y := make([]float64, len(examples))
	for i, ex := range examples {
		v := features.AddDerived(features.Extract(ex.Input).Flatten())
		x[i] = layout.Prepare(v)
		if ex.Cheating {
			y[i] = 1
		}
	}
	return x, y
}

func countClasses(examples []Example) (pos, neg int) {
	for _, ex := range examples {
		if ex.Cheating {
			pos++
		} else {
			neg++
		}
	}
	return pos, neg
}

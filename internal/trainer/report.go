package trainer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/integrity-service/internal/classifier"
)

// WriteBenchmarkReport stores a spreadsheet with the run's metrics and the per-feature
// importance next to the benchmark copy.
func WriteBenchmarkReport(path string, m *classifier.Model, importance []classifier.Factor) error {
	f := excelize.NewFile()
	defer f.Close()

	const summary = "Summary"
	index, err := f.NewSheet(summary)
	if err != nil {
		return fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to drop default sheet: %w", err)
	}

	rows := [][]any{
		{"Version", m.Version},
		{"Trained At", m.TrainedAt.Format("2006-01-02 15:04:05")},
		{"Trees", len(m.Trees)},
		{"Features", len(m.FeatureNames)},
	}
	if mt := m.Metrics; mt != nil {
		rows = append(rows,
			[]any{"Samples", mt.Samples},
			[]any{"Positives", mt.Positives},
			[]any{"Negatives", mt.Negatives},
			[]any{"Train Size", mt.TrainSize},
			[]any{"Test Size", mt.TestSize},
			[]any{"Accuracy", mt.Accuracy},
			[]any{"Precision", mt.Precision},
			[]any{"Recall", mt.Recall},
			[]any{"True Positives", mt.TruePositives},
			[]any{"False Positives", mt.FalsePositives},
			[]any{"True Negatives", mt.TrueNegatives},
			[]any{"False Negatives", mt.FalseNegatives},
		)
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summary, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary row: %w", err)
		}
	}

	const sheet = "Importance"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetCellValue(sheet, "A1", "Feature")
	f.SetCellValue(sheet, "B1", "Mean |SHAP|")
	for i, factor := range importance {
		f.SetCellValue(sheet, fmt.Sprintf("A%d", i+2), factor.Feature)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", i+2), factor.Attribution)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}
	return nil
}

func sortFactors(fs []classifier.Factor) {
	sort.SliceStable(fs, func(i, j int) bool {
		if fs[i].Attribution != fs[j].Attribution {
			return fs[i].Attribution > fs[j].Attribution
		}
		return fs[i].Feature < fs[j].Feature
	})
}

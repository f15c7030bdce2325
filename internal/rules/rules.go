// Package rules holds the hard, ordered cheating rules. The first rule that
// matches decides the verdict and the rest are skipped.
package rules

import (
	"fmt"

	"github.com/SAP-F-2025/integrity-service/internal/features"
)

// Thresholds are the tunable limits of the rule set.
type Thresholds struct {
	OffscreenRatio           float64 `mapstructure:"offscreen_ratio" json:"offscreen_ratio"`
	OffscreenRatioNoWriting  float64 `mapstructure:"offscreen_ratio_no_writing" json:"offscreen_ratio_no_writing"`
	MobileDetections         int     `mapstructure:"mobile_detections" json:"mobile_detections"`
	MultipleFaces            int     `mapstructure:"multiple_faces" json:"multiple_faces"`
	FaceMismatches           int     `mapstructure:"face_mismatches" json:"face_mismatches"`
	VoicedRatio              float64 `mapstructure:"voiced_ratio" json:"voiced_ratio"`
	GazeDown                 int     `mapstructure:"gaze_down" json:"gaze_down"`
	ReadingAloudNeedsWriting bool    `mapstructure:"reading_aloud_requires_writing" json:"reading_aloud_requires_writing"`
	PasteCharsPerMinute      float64 `mapstructure:"paste_chars_per_minute" json:"paste_chars_per_minute"`
	PasteMaxKeyPresses       int     `mapstructure:"paste_max_key_presses" json:"paste_max_key_presses"`
	TabSwitches              int     `mapstructure:"tab_switches" json:"tab_switches"`
	EscPresses               int     `mapstructure:"esc_presses" json:"esc_presses"`
}

// DefaultThresholds returns the production rule limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		OffscreenRatio:           0.6,
		OffscreenRatioNoWriting:  0.5,
		MobileDetections:         1,
		MultipleFaces:            2,
		FaceMismatches:           2,
		VoicedRatio:              0.5,
		GazeDown:                 2,
		ReadingAloudNeedsWriting: true,
		PasteCharsPerMinute:      700,
		PasteMaxKeyPresses:       10,
		TabSwitches:              2,
		EscPresses:               2,
	}
}

// Context carries the evaluation inputs that are not features.
type Context struct {
	ProctoringEnabled bool
}

// Rule is one hard check. Features lists the feature names the rule reads.
type Rule struct {
	Priority int
	Name     string
	Reason   string
	Features []string
	Match    func(v features.Vector, c Context) bool
}

// Result is the outcome of running the rule set.
type Result struct {
	Triggered bool
	Reason    string
	Rule      *Rule
}

// Engine evaluates an ordered rule list.
type Engine struct {
	rules []Rule
}

// NewEngine builds the canonical rule list for th.
func NewEngine(th Thresholds) *Engine {
	return &Engine{rules: buildRules(th)}
}

// Rules returns the rules in evaluation order.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Apply returns whether any rule matched and the reason of the first one.
func (e *Engine) Apply(v features.Vector, proctoringEnabled bool) (bool, string) {
	r := e.Evaluate(v, Context{ProctoringEnabled: proctoringEnabled})
	return r.Triggered, r.Reason
}

// Evaluate runs the rules in priority order and stops at the first match.
func (e *Engine) Evaluate(v features.Vector, c Context) Result {
	for i := range e.rules {
		if e.rules[i].Match(v, c) {
			return Result{Triggered: true, Reason: e.rules[i].Reason, Rule: &e.rules[i]}
		}
	}
	return Result{}
}

func buildRules(th Thresholds) []Rule {
	rules := []Rule{
		{
			Name:     "offscreen_gaze",
			Reason:   fmt.Sprintf("Student looked away excessively (off-screen gaze ≥ %.0f%% of the attempt)", th.OffscreenRatio*100),
			Features: []string{features.OffscreenSeconds, features.DurationSeconds},
			Match: func(v features.Vector, _ Context) bool {
				return offscreenShare(v) >= th.OffscreenRatio
			},
		},
		{
			Name:     "offscreen_gaze_no_writing",
			Reason:   fmt.Sprintf("Student looked away excessively (off-screen gaze ≥ %.0f%% with no writing required)", th.OffscreenRatioNoWriting*100),
			Features: []string{features.OffscreenSeconds, features.DurationSeconds, features.WritingRequired},
			Match: func(v features.Vector, _ Context) bool {
				return !v.Bool(features.WritingRequired) && offscreenShare(v) >= th.OffscreenRatioNoWriting
			},
		},
		{
			Name:     "mobile_phone",
			Reason:   "Mobile phone detected in camera",
			Features: []string{features.MobileDetectedCount},
			Match: func(v features.Vector, _ Context) bool {
				return v.Get(features.MobileDetectedCount) >= float64(th.MobileDetections)
			},
		},
		{
			Name:     "multiple_faces",
			Reason:   "Multiple faces detected in camera",
			Features: []string{features.MultipleFacesCount},
			Match: func(v features.Vector, _ Context) bool {
				return v.Get(features.MultipleFacesCount) >= float64(th.MultipleFaces)
			},
		},
		{
			Name:     "face_mismatch",
			Reason:   "Face did not match the registered student",
			Features: []string{features.FaceMismatchCount},
			Match: func(v features.Vector, _ Context) bool {
				return v.Get(features.FaceMismatchCount) >= float64(th.FaceMismatches)
			},
		},
		{
			Name:     "reading_aloud",
			Reason:   "Extensive speaking while looking down, likely reading answers aloud",
			Features: []string{features.VoicedSeconds, features.DurationSeconds, features.GazeDownCount, features.WritingRequired},
			Match: func(v features.Vector, _ Context) bool {
				if th.ReadingAloudNeedsWriting && !v.Bool(features.WritingRequired) {
					return false
				}
				return v.Get(features.VoicedSeconds) > th.VoicedRatio*duration(v) &&
					v.Get(features.GazeDownCount) >= float64(th.GazeDown)
			},
		},
		{
			Name:     "implausible_typing",
			Reason:   "Answer text appeared faster than it could be typed (pasted)",
			Features: []string{features.CharsPerMinute, features.KeyPressCount, features.WritingRequired},
			Match: func(v features.Vector, _ Context) bool {
				return v.Bool(features.WritingRequired) &&
					v.Get(features.CharsPerMinute) > th.PasteCharsPerMinute &&
					v.Get(features.KeyPressCount) < float64(th.PasteMaxKeyPresses)
			},
		},
		{
			Name:     "text_without_keystrokes",
			Reason:   "Answer text present without any recorded key presses",
			Features: []string{features.TotalChars, features.KeyPressCount, features.WritingRequired},
			Match: func(v features.Vector, _ Context) bool {
				return v.Bool(features.WritingRequired) &&
					v.Get(features.TotalChars) > 0 &&
					v.Get(features.KeyPressCount) == 0
			},
		},
		{
			Name:     "focus_violations",
			Reason:   "Repeated tab switches or ESC presses during a proctored attempt",
			Features: []string{features.TabSwitchesCount, features.EscPressedCount},
			Match: func(v features.Vector, c Context) bool {
				return c.ProctoringEnabled &&
					(v.Get(features.TabSwitchesCount) > float64(th.TabSwitches) ||
						v.Get(features.EscPressedCount) > float64(th.EscPresses))
			},
		},
	}
	for i := range rules {
		rules[i].Priority = i + 1
	}
	return rules
}

func duration(v features.Vector) float64 {
	d := v.Get(features.DurationSeconds)
	if d < 1 {
		return 1
	}
	return d
}

func offscreenShare(v features.Vector) float64 {
	return v.Get(features.OffscreenSeconds) / duration(v)
}

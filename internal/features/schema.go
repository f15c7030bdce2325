// Package features turns an attempt's raw activity into a flat, named feature
// vector shared by the rule engine, the classifier and the trainer.
package features

import "math"

// Distilled features.
const (
	DurationSeconds    = "duration_seconds"
	WritingRequired    = "writing_required"
	MobileDetected     = "mobile_detected"
	MultipleFacesFlag  = "multiple_faces_flag"
	FaceMismatchFlag   = "face_mismatch_flag"
	NoFaceFlag         = "no_face_flag"
	OffscreenSeconds   = "offscreen_seconds"
	CopyPasteRatio     = "copy_paste_ratio"
	ImpossibleTyping   = "impossible_typing"
	VoicedSeconds      = "voiced_seconds"
	VoicedRatio        = "voiced_ratio"
	SpeakingTooMuch    = "speaking_too_much"
	ActivityDensity    = "activity_density"
	ShortSessionNoLogs = "short_session_no_logs"
)

// Modality flags copied into the vector.
const (
	CameraEnabled     = "camera_enabled"
	AudioEnabled      = "audio_enabled"
	ProctoringEnabled = "proctoring_enabled"
)

// Raw counters.
const (
	MobileDetectedCount = "mobile_detected_count"
	MultipleFacesCount  = "multiple_faces_detected"
	FaceMismatchCount   = "face_mismatch_count"
	NoFaceCount         = "no_face_detected_count"
	GazeDownCount       = "gaze_down_count"
	EscPressedCount     = "esc_pressed_count"
	SecondScreenEvents  = "second_screen_events"
	TabSwitchesCount    = "tab_switches_count"
	WindowBlurCount     = "window_blur_count"
	CopyPasteEvents     = "copy_paste_events"
	KeyPressCount       = "key_press_count"
	TotalChars          = "total_chars"
	AvgKeyDelay         = "avg_key_delay"
	CharsPerMinute      = "chars_per_minute"
	EventCount          = "event_count"
	FocusLostCount      = "focus_lost_count"
	VoiceNoMouthCount   = "voice_no_mouth_count"
)

// Derived features, computed by AddDerived for both training and inference.
const (
	MobileDetectedFlag  = "mobile_detected_flag"
	KeyPressesPerMinute = "key_presses_per_min"
	TypingSpeedSuspect  = "typing_speed_suspect"
	NoFaceRate          = "no_face_rate"
	MultipleFacesRate   = "multiple_faces_rate"
	FaceMismatchRate    = "face_mismatch_rate"
	OffscreenRatio      = "offscreen_ratio"
)

var (
	DistilledNames = []string{
		DurationSeconds, WritingRequired, MobileDetected, MultipleFacesFlag,
		FaceMismatchFlag, NoFaceFlag, OffscreenSeconds, CopyPasteRatio,
		ImpossibleTyping, VoicedSeconds, VoicedRatio, SpeakingTooMuch,
		ActivityDensity, ShortSessionNoLogs,
	}

	ModalityNames = []string{CameraEnabled, AudioEnabled, ProctoringEnabled}

	RawNames = []string{
		VoicedSeconds, MobileDetectedCount, MultipleFacesCount, FaceMismatchCount,
		NoFaceCount, GazeDownCount, EscPressedCount, SecondScreenEvents,
		TabSwitchesCount, WindowBlurCount, CopyPasteEvents, KeyPressCount,
		TotalChars, AvgKeyDelay, CharsPerMinute, OffscreenSeconds, EventCount,
		FocusLostCount, VoiceNoMouthCount,
	}

	DerivedNames = []string{
		MobileDetectedFlag, KeyPressesPerMinute, TypingSpeedSuspect, NoFaceRate,
		MultipleFacesRate, FaceMismatchRate, OffscreenRatio,
	}

	// CameraNames are zeroed whenever the camera modality is off.
	CameraNames = []string{
		MobileDetected, MultipleFacesFlag, FaceMismatchFlag, NoFaceFlag,
		OffscreenSeconds, MobileDetectedCount, MultipleFacesCount,
		FaceMismatchCount, NoFaceCount, GazeDownCount,
	}

	// BehaviorCounters are the non-voice anomaly counters checked by the
	// voice-only override.
	BehaviorCounters = []string{
		CopyPasteEvents, MultipleFacesCount, FaceMismatchCount,
		MobileDetectedCount, EscPressedCount, SecondScreenEvents,
		TabSwitchesCount, WindowBlurCount,
	}
)

// Schema is the canonical ordered list of every feature name the service knows.
// Model columns are always a subset of it.
var Schema = buildSchema()

func buildSchema() []string {
	seen := make(map[string]bool)
	var names []string
	for _, group := range [][]string{DistilledNames, ModalityNames, RawNames, DerivedNames} {
		for _, n := range group {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	return names
}

// Known reports whether name belongs to Schema.
func Known(name string) bool {
	for _, n := range Schema {
		if n == name {
			return true
		}
	}
	return false
}

// Vector maps feature names to values. Booleans are stored as 0/1.
// A missing key always reads as 0.
type Vector map[string]float64

// Get returns the value for name, or 0 when the key is absent.
func (v Vector) Get(name string) float64 {
	if v == nil {
		return 0
	}
	x, ok := v[name]
	if !ok || math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}

// Bool reads a 0/1 feature.
func (v Vector) Bool(name string) bool {
	return v.Get(name) != 0
}

func (v Vector) SetBool(name string, b bool) {
	v[name] = boolToFloat(b)
}

func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	for k, x := range v {
		out[k] = x
	}
	return out
}

// Select returns values for names in order, substituting 0 for missing keys.
func (v Vector) Select(names []string) []float64 {
	out := make([]float64, len(names))
	for i, n := range names {
		out[i] = v.Get(n)
	}
	return out
}

// Merge returns a new vector with the keys of others layered over v.
func (v Vector) Merge(others ...Vector) Vector {
	out := v.Clone()
	for _, o := range others {
		for k, x := range o {
			out[k] = x
		}
	}
	return out
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

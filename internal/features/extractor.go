package features

import (
	"math"

	"github.com/SAP-F-2025/integrity-service/internal/models"
)

const (
	// GazeGapCapSeconds bounds a single gap between off-screen gaze events so
	// one stale event cannot stretch across a long idle period.
	GazeGapCapSeconds = 30.0

	minRateWindowSeconds = 60.0

	impossibleTypingMinChars = 300
	impossibleTypingCPM      = 500.0
	fastTypingCPM            = 350.0
	fastTypingKeyRatio       = 0.4
	copyPasteKeyRatio        = 0.2

	speakingTooMuchMinSeconds = 90.0
	speakingTooMuchRatio      = 0.5

	shortSessionSeconds = 60.0
)

// Input is everything the extractor reads for one attempt. Nil analyses are
// allowed and read as zero.
type Input struct {
	Attempt         *models.Attempt
	Modality        models.ModalityFlags
	WritingRequired bool
	Events          []models.ActivityEvent
	Activity        *models.ActivityAnalysis
	Audio           *models.AudioAnalysis
}

// NewInput builds an Input, taking modality and writing requirement from the
// attempt's assessment.
func NewInput(attempt *models.Attempt, events []models.ActivityEvent, activity *models.ActivityAnalysis, audio *models.AudioAnalysis) Input {
	in := Input{Attempt: attempt, Events: events, Activity: activity, Audio: audio}
	if attempt != nil {
		in.Modality = attempt.Assessment.Modality
		in.WritingRequired = attempt.Assessment.RequiresWriting()
	}
	return in
}

// Extraction holds the labeled features and the raw counters separately.
type Extraction struct {
	Features Vector `json:"features"`
	Raw      Vector `json:"raw"`
}

// Flatten merges features and raw counters into one vector.
func (e Extraction) Flatten() Vector {
	return e.Features.Merge(e.Raw)
}

// Extract computes the feature vectors for one attempt. It is a pure function
// of its input.
func Extract(in Input) Extraction {
	events := SortEvents(GatedEvents(in.Events, in.Modality))
	duration := Duration(in.Attempt, events)
	rateWindow := math.Max(duration, minRateWindowSeconds)

	cam := cameraSignals(events, in.Modality.CameraEnabled)

	var act models.ActivityAnalysis
	if in.Activity != nil {
		act = *in.Activity
	}
	focusTrusted := in.Modality.CameraEnabled || in.Modality.ProctoringEnabled
	if !focusTrusted {
		act.EscPressed, act.SecondScreen, act.TabSwitches, act.WindowBlurs = 0, 0, 0, 0
		act.CopyPasteEvents, act.TotalFocusLost = 0, 0
	}
	avgDelay := 0.0
	if act.AverageKeyDelay != nil {
		avgDelay = *act.AverageKeyDelay
	}

	cpm := float64(act.TotalChars) / (rateWindow / 60)
	impossible := in.WritingRequired && impossibleWriting(cpm, act.TotalKeyPresses, act.TotalChars)
	copyPasteRatio := in.WritingRequired && act.TotalChars > 0 &&
		float64(act.TotalKeyPresses) < float64(act.TotalChars)*copyPasteKeyRatio

	var voicedSeconds, voicedRatio float64
	voiceNoMouth := 0
	if in.Modality.AudioEnabled && in.Audio != nil {
		voicedSeconds = in.Audio.VoicedSeconds
		voicedRatio = in.Audio.VoicedRatio
		voiceNoMouth = in.Audio.VoiceNoMouthCount
	}
	speakingTooMuch := duration >= speakingTooMuchMinSeconds && voicedRatio >= speakingTooMuchRatio

	eventCount := len(events)
	totalSignals := eventCount + act.TotalFocusLost
	density := float64(totalSignals) / duration

	f := Vector{
		DurationSeconds:    duration,
		OffscreenSeconds:   cam.offscreenSeconds,
		VoicedSeconds:      round(voicedSeconds, 2),
		VoicedRatio:        voicedRatio,
		ActivityDensity:    round(density, 4),
		ShortSessionNoLogs: boolToFloat(duration > shortSessionSeconds && totalSignals == 0),
	}
	f.SetBool(WritingRequired, in.WritingRequired)
	f.SetBool(MobileDetected, cam.mobile > 0)
	f.SetBool(MultipleFacesFlag, cam.multipleFaces > 0)
	f.SetBool(FaceMismatchFlag, cam.faceMismatch > 0)
	f.SetBool(NoFaceFlag, cam.noFace > 0)
	f.SetBool(CopyPasteRatio, copyPasteRatio)
	f.SetBool(ImpossibleTyping, impossible)
	f.SetBool(SpeakingTooMuch, speakingTooMuch)
	f.SetBool(CameraEnabled, in.Modality.CameraEnabled)
	f.SetBool(AudioEnabled, in.Modality.AudioEnabled)
	f.SetBool(ProctoringEnabled, in.Modality.ProctoringEnabled)

	raw := Vector{
		VoicedSeconds:       round(voicedSeconds, 2),
		MobileDetectedCount: float64(cam.mobile),
		MultipleFacesCount:  float64(cam.multipleFaces),
		FaceMismatchCount:   float64(cam.faceMismatch),
		NoFaceCount:         float64(cam.noFace),
		GazeDownCount:       float64(cam.gazeDown),
		EscPressedCount:     float64(act.EscPressed),
		SecondScreenEvents:  float64(act.SecondScreen),
		TabSwitchesCount:    float64(act.TabSwitches),
		WindowBlurCount:     float64(act.WindowBlurs),
		CopyPasteEvents:     float64(act.CopyPasteEvents),
		KeyPressCount:       float64(act.TotalKeyPresses),
		TotalChars:          float64(act.TotalChars),
		AvgKeyDelay:         avgDelay,
		CharsPerMinute:      round(cpm, 2),
		OffscreenSeconds:    cam.offscreenSeconds,
		EventCount:          float64(eventCount),
		FocusLostCount:      float64(act.TotalFocusLost),
		VoiceNoMouthCount:   float64(voiceNoMouth),
	}

	return Extraction{Features: f, Raw: raw}
}

type cameraCounts struct {
	mobile, multipleFaces, faceMismatch, noFace, gazeDown int
	offscreenSeconds                                      float64
}

// cameraSignals expects events sorted by timestamp.
func cameraSignals(events []models.ActivityEvent, enabled bool) cameraCounts {
	var c cameraCounts
	if !enabled {
		return c
	}
	var prevGaze *models.ActivityEvent
	for i := range events {
		e := &events[i]
		switch e.Type {
		case models.EventMobileDetected:
			c.mobile++
		case models.EventMultipleFaces:
			c.multipleFaces++
		case models.EventFaceMismatch:
			c.faceMismatch++
		case models.EventNoFace:
			c.noFace++
		case models.EventGazeDown:
			c.gazeDown++
		}
		if e.Type == models.EventGazeOffscreen || e.Type == models.EventHeadPoseSuspicious {
			if prevGaze != nil {
				gap := math.Abs(e.Timestamp.Sub(prevGaze.Timestamp).Seconds())
				c.offscreenSeconds += math.Min(gap, GazeGapCapSeconds)
			}
			prevGaze = e
		}
	}
	c.offscreenSeconds = round(c.offscreenSeconds, 3)
	return c
}

func impossibleWriting(cpm float64, keyPresses, chars int) bool {
	if chars < impossibleTypingMinChars {
		return false
	}
	if cpm > impossibleTypingCPM {
		return true
	}
	return cpm > fastTypingCPM && float64(keyPresses) < float64(chars)*fastTypingKeyRatio
}

// GatedEvents drops events collected while their modality was off. Camera
// events need the camera, voice events need audio, keyboard and focus events
// need the camera or proctoring. Unknown types are dropped.
func GatedEvents(events []models.ActivityEvent, m models.ModalityFlags) []models.ActivityEvent {
	out := make([]models.ActivityEvent, 0, len(events))
	for _, e := range events {
		switch {
		case e.Type.IsCamera():
			if !m.CameraEnabled {
				continue
			}
		case e.Type.IsAudio():
			if !m.AudioEnabled {
				continue
			}
		case e.Type.IsKeyboard():
			if !m.CameraEnabled && !m.ProctoringEnabled {
				continue
			}
		default:
			continue
		}
		out = append(out, e)
	}
	return out
}

// IsCleanSession reports whether the attempt recorded nothing to analyze:
// no events at all, or only benign face_match markers.
func IsCleanSession(events []models.ActivityEvent) bool {
	for _, e := range events {
		if e.Type != models.EventFaceMatch {
			return false
		}
	}
	return true
}

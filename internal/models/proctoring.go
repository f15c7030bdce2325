package models

import (
	"time"

	"gorm.io/datatypes"
)

type ActivityEventType string

const (
	// Keyboard / focus telemetry
	EventKeyPress     ActivityEventType = "key_press"
	EventEscPressed   ActivityEventType = "esc_pressed"
	EventTabHidden    ActivityEventType = "tab_hidden"
	EventWindowBlur   ActivityEventType = "window_blur"
	EventSecondScreen ActivityEventType = "second_screen"
	EventCopy         ActivityEventType = "copy_event"
	EventPaste        ActivityEventType = "paste_event"
	EventCut          ActivityEventType = "cut_event"

	// Camera
	EventFaceMatch          ActivityEventType = "face_match"
	EventMobileDetected     ActivityEventType = "mobile_detected"
	EventMultipleFaces      ActivityEventType = "multiple_faces"
	EventFaceMismatch       ActivityEventType = "face_mismatch"
	EventNoFace             ActivityEventType = "no_face_found"
	EventGazeOffscreen      ActivityEventType = "gaze_offscreen"
	EventGazeDown           ActivityEventType = "gaze_down"
	EventGazeUnclear        ActivityEventType = "gaze_unclear"
	EventHeadPoseSuspicious ActivityEventType = "head_pose_suspicious"

	// Audio
	EventVoiceDetected  ActivityEventType = "voice_detected"
	EventVoiceNoMouth   ActivityEventType = "voice_no_mouth"
	EventTooMuchTalking ActivityEventType = "too_much_talking"
)

var knownEventTypes = map[ActivityEventType]bool{
	EventKeyPress: true, EventEscPressed: true, EventTabHidden: true, EventWindowBlur: true,
	EventSecondScreen: true, EventCopy: true, EventPaste: true, EventCut: true,
	EventFaceMatch: true, EventMobileDetected: true, EventMultipleFaces: true, EventFaceMismatch: true,
	EventNoFace: true, EventGazeOffscreen: true, EventGazeDown: true, EventGazeUnclear: true,
	EventHeadPoseSuspicious: true, EventVoiceDetected: true, EventVoiceNoMouth: true, EventTooMuchTalking: true,
}

// IsKnown reports whether the collector is allowed to send this type.
func (t ActivityEventType) IsKnown() bool {
	return knownEventTypes[t]
}

// IsFocusLoss reports whether the event means the exam window lost focus.
func (t ActivityEventType) IsFocusLoss() bool {
	return t == EventTabHidden || t == EventWindowBlur || t == EventSecondScreen
}

// IsCamera reports whether the event comes from the webcam analyzer.
func (t ActivityEventType) IsCamera() bool {
	switch t {
	case EventFaceMatch, EventMobileDetected, EventMultipleFaces, EventFaceMismatch, EventNoFace,
		EventGazeOffscreen, EventGazeDown, EventGazeUnclear, EventHeadPoseSuspicious:
		return true
	}
	return false
}

// IsAudio reports whether the event comes from the microphone analyzer.
func (t ActivityEventType) IsAudio() bool {
	return t == EventVoiceDetected || t == EventVoiceNoMouth || t == EventTooMuchTalking
}

// IsKeyboard reports whether the event is lockdown telemetry: keys, focus or clipboard.
func (t ActivityEventType) IsKeyboard() bool {
	return t == EventKeyPress || t == EventEscPressed || t.IsFocusLoss() || t.IsClipboard()
}

// IsClipboard reports whether the event is a copy, cut or paste.
func (t ActivityEventType) IsClipboard() bool {
	return t == EventCopy || t == EventPaste || t == EventCut
}

// ActivityEvent is one immutable timestamped occurrence within an attempt.
type ActivityEvent struct {
	ID        uint              `json:"id" gorm:"primaryKey"`
	AttemptID uint              `json:"attempt_id" gorm:"not null;index:idx_events_attempt_ts,priority:1"`
	Type      ActivityEventType `json:"event_type" gorm:"column:event_type;size:40;not null;index"`
	Timestamp time.Time         `json:"timestamp" gorm:"not null;index:idx_events_attempt_ts,priority:2"`

	// Optional payload
	PressedKey   *string        `json:"pressed_key" gorm:"size:32"`
	KeyDelay     *float64       `json:"key_delay"` // ms since previous key press
	Message      string         `json:"message" gorm:"type:text"`
	AnomalyScore *float64       `json:"anomaly_score"`
	Value        *float64       `json:"value"` // scalar measurement, e.g. voiced seconds of an audio chunk
	Metadata     datatypes.JSON `json:"metadata,omitempty"`

	QuestionID *uint     `json:"question_id" gorm:"index"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ActivityEvent) TableName() string {
	return "activity_events"
}

// ActivityAnalysis is a recomputable aggregate of keyboard/focus events.
// It is a cache: the events stay the source of truth.
type ActivityAnalysis struct {
	ID              uint     `json:"id" gorm:"primaryKey"`
	AttemptID       uint     `json:"attempt_id" gorm:"uniqueIndex;not null"`
	EscPressed      int      `json:"esc_pressed"`
	SecondScreen    int      `json:"second_screen_events"`
	TabSwitches     int      `json:"tab_switches"`
	WindowBlurs     int      `json:"window_blurs"`
	CopyPasteEvents int      `json:"copy_paste_events"`
	TotalKeyPresses int      `json:"total_key_presses"`
	AverageKeyDelay *float64 `json:"average_key_delay"`
	TotalChars      int      `json:"total_chars"`
	TotalFocusLost  int      `json:"total_focus_lost"`
	IsSuspicious    bool     `json:"is_suspicious"`

	UpdatedAt time.Time `json:"updated_at"`
}

func (ActivityAnalysis) TableName() string {
	return "activity_analyses"
}

// AudioAnalysis is the recomputable aggregate of voice activity.
type AudioAnalysis struct {
	ID                uint    `json:"id" gorm:"primaryKey"`
	AttemptID         uint    `json:"attempt_id" gorm:"uniqueIndex;not null"`
	VoicedSeconds     float64 `json:"voiced_seconds"`
	VoicedRatio       float64 `json:"voiced_ratio"`
	VoiceNoMouthCount int     `json:"voice_no_mouth_count"`
	TooMuchTalking    int     `json:"too_much_talking_count"`

	UpdatedAt time.Time `json:"updated_at"`
}

func (AudioAnalysis) TableName() string {
	return "audio_analyses"
}

package features

import (
	"math"
	"sort"
	"time"

	"github.com/SAP-F-2025/integrity-service/internal/models"
)

const (
	suspiciousCounterLimit = 2
	suspiciousKeyDelayMs   = 50.0
)

// SortEvents returns a copy of events ordered by timestamp, then id.
func SortEvents(events []models.ActivityEvent) []models.ActivityEvent {
	sorted := make([]models.ActivityEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

// Duration returns the attempt length in seconds, never below 1.
// Missing timestamps fall back to the first/last recorded event; a window that
// still cannot be determined, or ends before it starts, is clamped to 1 second.
func Duration(attempt *models.Attempt, events []models.ActivityEvent) float64 {
	var start, end *time.Time
	if attempt != nil {
		start, end = attempt.StartedAt, attempt.FinishedAt
	}
	if (start == nil || end == nil) && len(events) > 0 {
		sorted := SortEvents(events)
		if start == nil {
			first := sorted[0].Timestamp
			start = &first
		}
		if end == nil {
			last := sorted[len(sorted)-1].Timestamp
			end = &last
		}
	}
	if start == nil || end == nil {
		return 1
	}
	return math.Max(end.Sub(*start).Seconds(), 1)
}

// RecomputeActivity rebuilds the keyboard/focus aggregate from raw events and
// answers. Running it twice over the same input yields the same row.
func RecomputeActivity(attemptID uint, events []models.ActivityEvent, answers []models.Answer, proctoring bool) models.ActivityAnalysis {
	a := models.ActivityAnalysis{AttemptID: attemptID}

	clipboard := 0
	var delaySum float64
	delayCount := 0
	for _, e := range events {
		switch e.Type {
		case models.EventEscPressed:
			a.EscPressed++
		case models.EventSecondScreen:
			a.SecondScreen++
		case models.EventTabHidden:
			a.TabSwitches++
		case models.EventWindowBlur:
			a.WindowBlurs++
		case models.EventCopy, models.EventPaste, models.EventCut:
			clipboard++
		case models.EventKeyPress:
			a.TotalKeyPresses++
			if e.KeyDelay != nil {
				delaySum += *e.KeyDelay
				delayCount++
			}
		}
	}
	// a cut followed by a paste is one logical transfer
	a.CopyPasteEvents = clipboard / 2
	if delayCount > 0 {
		avg := delaySum / float64(delayCount)
		a.AverageKeyDelay = &avg
	}
	for i := range answers {
		a.TotalChars += answers[i].CharCount()
	}
	a.TotalFocusLost = a.SecondScreen + a.WindowBlurs + a.TabSwitches

	if proctoring {
		a.IsSuspicious = a.EscPressed > suspiciousCounterLimit ||
			a.SecondScreen > suspiciousCounterLimit ||
			a.TabSwitches > suspiciousCounterLimit ||
			a.WindowBlurs > suspiciousCounterLimit ||
			(a.AverageKeyDelay != nil && *a.AverageKeyDelay < suspiciousKeyDelayMs)
	}
	return a
}

// RecomputeAudio rebuilds the voice aggregate from voice events. Each
// voice_detected event carries the voiced seconds of its audio chunk in Value.
func RecomputeAudio(attemptID uint, events []models.ActivityEvent, durationSeconds float64) models.AudioAnalysis {
	a := models.AudioAnalysis{AttemptID: attemptID}
	for _, e := range events {
		switch e.Type {
		case models.EventVoiceDetected:
			if e.Value != nil && *e.Value > 0 {
				a.VoicedSeconds += *e.Value
			}
		case models.EventVoiceNoMouth:
			a.VoiceNoMouthCount++
		case models.EventTooMuchTalking:
			a.TooMuchTalking++
		}
	}
	a.VoicedSeconds = round(a.VoicedSeconds, 2)
	a.VoicedRatio = round(math.Min(a.VoicedSeconds/math.Max(durationSeconds, 1), 1), 4)
	return a
}

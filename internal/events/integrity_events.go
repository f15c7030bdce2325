package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType identifies what happened to an attempt or to the model.
type EventType string

const (
	VerdictIssued   EventType = "verdict.issued"
	VerdictReviewed EventType = "verdict.reviewed"
	// LabelCorrected is a command: a reviewer overturned the model and the
	// attempt now carries a training label.
	LabelCorrected EventType = "label.corrected"
	ModelRetrained EventType = "model.retrained"
)

const (
	eventSource  = "integrity-service"
	eventVersion = "1.0"
)

// Event is the envelope published on every topic.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Source    string            `json:"source"`
	Version   string            `json:"version"`
	Data      json.RawMessage   `json:"data"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewEvent wraps data into an envelope with a fresh id.
func NewEvent(eventType EventType, data interface{}) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    eventSource,
		Version:   eventVersion,
		Data:      raw,
		Metadata:  map[string]string{},
	}, nil
}

// Decode unmarshals the payload into dst.
func (e *Event) Decode(dst interface{}) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event %s has no payload", e.ID)
	}
	return json.Unmarshal(e.Data, dst)
}

// ParseEvent reads an envelope from a message payload.
func ParseEvent(payload []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if e.Type == "" {
		return nil, fmt.Errorf("event %q has no type", e.ID)
	}
	return &e, nil
}

// ===== PAYLOADS =====

type VerdictIssuedData struct {
	AttemptID     uint     `json:"attempt_id"`
	Cheating      bool     `json:"cheating"`
	Probability   *float64 `json:"probability"`
	Certainty     string   `json:"certainty"`
	RuleTriggered bool     `json:"rule_triggered"`
	Reason        string   `json:"reason"`
	ModelVersion  string   `json:"model_version,omitempty"`
}

type VerdictReviewedData struct {
	AttemptID    uint   `json:"attempt_id"`
	ReviewerID   uint   `json:"reviewer_id"`
	FinalVerdict bool   `json:"final_verdict"`
	Overturned   bool   `json:"overturned"`
	Comment      string `json:"comment,omitempty"`
}

type LabelCorrectedData struct {
	AttemptID  uint `json:"attempt_id"`
	ReviewerID uint `json:"reviewer_id"`
	Label      bool `json:"label"`
}

type ModelRetrainedData struct {
	RunID    string  `json:"run_id"`
	Version  string  `json:"version"`
	Trigger  string  `json:"trigger"`
	Samples  int     `json:"samples"`
	Accuracy float64 `json:"accuracy"`
}

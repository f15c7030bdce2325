package services

import (
	"encoding/json"
	"time"

	"github.com/SAP-F-2025/integrity-service/internal/classifier"
	"github.com/SAP-F-2025/integrity-service/internal/features"
	"github.com/SAP-F-2025/integrity-service/internal/models"
)

// ===== REQUESTS =====

type EventInput struct {
	Type         models.ActivityEventType `json:"event_type" validate:"required,event_type"`
	Timestamp    time.Time                `json:"timestamp" validate:"required"`
	PressedKey   *string                  `json:"pressed_key" validate:"omitempty,max=32"`
	KeyDelay     *float64                 `json:"key_delay" validate:"omitempty,gte=0"`
	Message      string                   `json:"message" validate:"max=2000"`
	AnomalyScore *float64                 `json:"anomaly_score"`
	Value        *float64                 `json:"value" validate:"omitempty,gte=0"`
	QuestionID   *uint                    `json:"question_id"`
	Metadata     json.RawMessage          `json:"metadata,omitempty"`
}

type IngestEventsRequest struct {
	Events []EventInput `json:"events" validate:"required,min=1,max=5000,dive"`
}

type ReviewRequest struct {
	FinalVerdict *bool  `json:"final_verdict" validate:"required"`
	ReviewerID   uint   `json:"reviewer_id" validate:"required"`
	Comment      string `json:"comment" validate:"max=2000"`
}

// ===== RESPONSES =====

type ReviewInfo struct {
	FinalVerdict bool      `json:"final_verdict"`
	ReviewedBy   uint      `json:"reviewed_by"`
	ReviewedAt   time.Time `json:"reviewed_at"`
	Comment      string    `json:"comment,omitempty"`
}

type VerdictResponse struct {
	AttemptID     uint                `json:"attempt_id"`
	Cheating      bool                `json:"cheating"`
	Probability   *float64            `json:"probability"`
	Certainty     string              `json:"certainty"`
	RuleTriggered bool                `json:"rule_triggered"`
	Reason        string              `json:"reason"`
	TopFactors    []classifier.Factor `json:"top_factors"`
	ModelVersion  string              `json:"model_version,omitempty"`
	EvaluatedAt   time.Time           `json:"evaluated_at"`
	Review        *ReviewInfo         `json:"review,omitempty"`
	Label         *bool               `json:"label,omitempty"`
}

type FeaturesResponse struct {
	AttemptID uint            `json:"attempt_id"`
	Duration  float64         `json:"duration_seconds"`
	Features  features.Vector `json:"features"`
	Raw       features.Vector `json:"raw"`
	// Model is the vector the classifier sees, derived columns included.
	Model features.Vector `json:"model"`
}

type IngestResponse struct {
	AttemptID uint  `json:"attempt_id"`
	Accepted  int   `json:"accepted"`
	Total     int64 `json:"total"`
}

type ModelInfo struct {
	Loaded       bool                `json:"loaded"`
	Version      string              `json:"version,omitempty"`
	TrainedAt    *time.Time          `json:"trained_at,omitempty"`
	FeatureNames []string            `json:"feature_names,omitempty"`
	Trees        int                 `json:"trees"`
	Metrics      *classifier.Metrics `json:"metrics,omitempty"`
}

func toVerdictResponse(rec *models.VerdictRecord) *VerdictResponse {
	resp := &VerdictResponse{
		AttemptID:     rec.AttemptID,
		Cheating:      rec.Cheating,
		Probability:   rec.Probability,
		Certainty:     rec.Certainty,
		RuleTriggered: rec.RuleTriggered,
		Reason:        rec.Reason,
		TopFactors:    []classifier.Factor{},
		ModelVersion:  rec.ModelVersion,
		EvaluatedAt:   rec.EvaluatedAt,
		Label:         rec.Label,
	}
	if len(rec.TopFactors) > 0 {
		// A corrupt column only costs the explanation, not the verdict.
		_ = json.Unmarshal(rec.TopFactors, &resp.TopFactors)
	}
	if rec.FinalVerdict != nil && rec.ReviewedAt != nil {
		resp.Review = &ReviewInfo{
			FinalVerdict: *rec.FinalVerdict,
			ReviewedAt:   *rec.ReviewedAt,
			Comment:      rec.ReviewComment,
		}
		if rec.ReviewedBy != nil {
			resp.Review.ReviewedBy = *rec.ReviewedBy
		}
	}
	return resp
}

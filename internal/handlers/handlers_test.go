package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/integrity-service/internal/classifier"
	"github.com/SAP-F-2025/integrity-service/internal/repositories"
	"github.com/SAP-F-2025/integrity-service/internal/services"
	"github.com/SAP-F-2025/integrity-service/internal/trainer"
	"github.com/SAP-F-2025/integrity-service/internal/utils"
)

type MockEvaluation struct{ mock.Mock }

func (m *MockEvaluation) Evaluate(ctx context.Context, id uint) (*services.VerdictResponse, error) {
	args := m.Called(ctx, id)
	resp, _ := args.Get(0).(*services.VerdictResponse)
	return resp, args.Error(1)
}

func (m *MockEvaluation) GetVerdict(ctx context.Context, id uint) (*services.VerdictResponse, error) {
	args := m.Called(ctx, id)
	resp, _ := args.Get(0).(*services.VerdictResponse)
	return resp, args.Error(1)
}

func (m *MockEvaluation) ListVerdicts(ctx context.Context, f repositories.VerdictFilters) ([]*services.VerdictResponse, int64, error) {
	args := m.Called(ctx, f)
	items, _ := args.Get(0).([]*services.VerdictResponse)
	return items, args.Get(1).(int64), args.Error(2)
}

func (m *MockEvaluation) Stats(ctx context.Context) (*repositories.VerdictStats, error) {
	args := m.Called(ctx)
	stats, _ := args.Get(0).(*repositories.VerdictStats)
	return stats, args.Error(1)
}

func (m *MockEvaluation) Features(ctx context.Context, id uint) (*services.FeaturesResponse, error) {
	args := m.Called(ctx, id)
	resp, _ := args.Get(0).(*services.FeaturesResponse)
	return resp, args.Error(1)
}

func (m *MockEvaluation) IngestEvents(ctx context.Context, id uint, req *services.IngestEventsRequest) (*services.IngestResponse, error) {
	args := m.Called(ctx, id, req)
	resp, _ := args.Get(0).(*services.IngestResponse)
	return resp, args.Error(1)
}

type MockReview struct{ mock.Mock }

func (m *MockReview) ApplyReview(ctx context.Context, id uint, req *services.ReviewRequest) (*services.VerdictResponse, error) {
	args := m.Called(ctx, id, req)
	resp, _ := args.Get(0).(*services.VerdictResponse)
	return resp, args.Error(1)
}

type MockRetrain struct{ mock.Mock }

func (m *MockRetrain) Retrain(ctx context.Context, trigger string) (*trainer.Result, error) {
	args := m.Called(ctx, trigger)
	res, _ := args.Get(0).(*trainer.Result)
	return res, args.Error(1)
}

func (m *MockRetrain) ModelInfo() *services.ModelInfo {
	return m.Called().Get(0).(*services.ModelInfo)
}

type testServer struct {
	router  *gin.Engine
	eval    *MockEvaluation
	review  *MockReview
	retrain *MockRetrain
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := &testServer{
		router:  gin.New(),
		eval:    &MockEvaluation{},
		review:  &MockReview{},
		retrain: &MockRetrain{},
	}
	logger := utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	NewHandlerManager(s.eval, s.review, s.retrain, logger).SetupRoutes(s.router)
	t.Cleanup(func() {
		s.eval.AssertExpectations(t)
		s.review.AssertExpectations(t)
		s.retrain.AssertExpectations(t)
	})
	return s
}

func (s *testServer) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestEvaluate(t *testing.T) {
	s := newTestServer(t)
	p := 0.82
	s.eval.On("Evaluate", mock.Anything, uint(12)).Return(&services.VerdictResponse{
		AttemptID: 12, Cheating: true, Probability: &p, Certainty: "high",
		TopFactors: []classifier.Factor{{Feature: "tab_switches_count", Attribution: 1.2}},
	}, nil)

	w := s.do(http.MethodPost, "/api/v1/attempts/12/evaluate", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got services.VerdictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.True(t, got.Cheating)
	assert.Equal(t, "high", got.Certainty)
	require.Len(t, got.TopFactors, 1)
}

func TestEvaluateErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"attempt missing", services.ErrAttemptNotFound, http.StatusNotFound, "attempt_not_found"},
		{"model missing", fmt.Errorf("classify attempt: %w", classifier.ErrModelNotLoaded), http.StatusServiceUnavailable, "model_unavailable"},
		{"bad artifact", classifier.ErrArtifactInvalid, http.StatusServiceUnavailable, "model_unavailable"},
		{"unexpected", assert.AnError, http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t)
			s.eval.On("Evaluate", mock.Anything, uint(5)).Return(nil, tc.err)

			w := s.do(http.MethodPost, "/api/v1/attempts/5/evaluate", nil)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, decodeError(t, w).Code)
		})
	}
}

func TestInvalidAttemptID(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/api/v1/attempts/abc/evaluate", "/api/v1/attempts/0/evaluate"} {
		w := s.do(http.MethodPost, path, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.Equal(t, "invalid_id", decodeError(t, w).Code)
	}
}

func TestGetVerdictNotEvaluated(t *testing.T) {
	s := newTestServer(t)
	s.eval.On("GetVerdict", mock.Anything, uint(3)).Return(nil, services.ErrVerdictNotFound)

	w := s.do(http.MethodGet, "/api/v1/attempts/3/verdict", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "verdict_not_found", decodeError(t, w).Code)
}

func TestReview(t *testing.T) {
	s := newTestServer(t)
	final := false
	s.review.On("ApplyReview", mock.Anything, uint(9), mock.MatchedBy(func(r *services.ReviewRequest) bool {
		return r.FinalVerdict != nil && !*r.FinalVerdict && r.ReviewerID == 4
	})).Return(&services.VerdictResponse{AttemptID: 9, Label: &final}, nil)

	w := s.do(http.MethodPost, "/api/v1/attempts/9/review", map[string]interface{}{
		"final_verdict": false,
		"reviewer_id":   4,
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReviewValidationErrors(t *testing.T) {
	s := newTestServer(t)
	s.review.On("ApplyReview", mock.Anything, uint(9), mock.Anything).
		Return(nil, services.ValidationErrors{{Field: "final_verdict", Message: "is required", Rule: "required"}})

	w := s.do(http.MethodPost, "/api/v1/attempts/9/review", map[string]interface{}{"reviewer_id": 4})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "validation_failed", resp.Code)
	assert.NotNil(t, resp.Details)
}

func TestReviewMalformedBody(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/attempts/9/review", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_payload", decodeError(t, w).Code)
}

func TestIngestEvents(t *testing.T) {
	s := newTestServer(t)
	s.eval.On("IngestEvents", mock.Anything, uint(2), mock.MatchedBy(func(r *services.IngestEventsRequest) bool {
		return len(r.Events) == 1 && r.Events[0].Type == "tab_hidden"
	})).Return(&services.IngestResponse{AttemptID: 2, Accepted: 1, Total: 1}, nil)

	w := s.do(http.MethodPost, "/api/v1/attempts/2/events", map[string]interface{}{
		"events": []map[string]interface{}{{"event_type": "tab_hidden", "timestamp": "2025-05-12T09:01:00Z"}},
	})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestListVerdicts(t *testing.T) {
	s := newTestServer(t)
	s.eval.On("ListVerdicts", mock.Anything, mock.MatchedBy(func(f repositories.VerdictFilters) bool {
		return f.Cheating != nil && *f.Cheating && f.Limit == 50 && f.Offset == 10
	})).Return([]*services.VerdictResponse{{AttemptID: 1}}, int64(11), nil)

	w := s.do(http.MethodGet, "/api/v1/verdicts?cheating=true&offset=10", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(11), resp.Total)
	assert.Equal(t, 50, resp.Limit)
}

func TestRetrain(t *testing.T) {
	cases := []struct {
		name   string
		res    *trainer.Result
		err    error
		status int
	}{
		{"published", &trainer.Result{Version: "20250512_090000"}, nil, http.StatusOK},
		{"busy", nil, trainer.ErrTrainingInProgress, http.StatusConflict},
		{"too few labels", nil, fmt.Errorf("%w: have 3, need 10", trainer.ErrInsufficientData), http.StatusUnprocessableEntity},
		{"one class", nil, trainer.ErrSingleClass, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t)
			s.retrain.On("Retrain", mock.Anything, services.TriggerManual).Return(tc.res, tc.err)
			w := s.do(http.MethodPost, "/api/v1/model/retrain", nil)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestHealthAndModel(t *testing.T) {
	s := newTestServer(t)
	s.retrain.On("ModelInfo").Return(&services.ModelInfo{Loaded: true, Version: "v7", Trees: 120})

	w := s.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, true, health["model_loaded"])

	w = s.do(http.MethodGet, "/api/v1/model", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var info services.ModelInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "v7", info.Version)
}

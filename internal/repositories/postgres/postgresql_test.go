package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/integrity-service/internal/models"
	"github.com/SAP-F-2025/integrity-service/internal/repositories"
	"github.com/SAP-F-2025/integrity-service/internal/testutil"
)

var base = time.Date(2025, 5, 12, 9, 0, 0, 0, time.UTC)

func seedAttempt(t *testing.T, db *gorm.DB) *models.Attempt {
	t.Helper()
	text := "answer text"
	assessment := models.Assessment{
		Title:    "Networks midterm",
		Modality: models.ModalityFlags{CameraEnabled: true, ProctoringEnabled: true},
		Questions: []models.Question{
			{Type: models.QuestionSingle, Text: "q2", Order: 2},
			{Type: models.QuestionOpen, Text: "q1", Order: 1},
		},
	}
	require.NoError(t, db.Create(&assessment).Error)

	start, end := base, base.Add(20*time.Minute)
	attempt := models.Attempt{AssessmentID: assessment.ID, StudentID: 42, StartedAt: &start, FinishedAt: &end}
	require.NoError(t, db.Create(&attempt).Error)
	require.NoError(t, db.Create(&models.Answer{AttemptID: attempt.ID, QuestionID: assessment.Questions[1].ID, Text: &text}).Error)
	return &attempt
}

func TestAttemptPostgreSQL_GetWithDetails(t *testing.T) {
	db := testutil.OpenTestDB(t)
	seeded := seedAttempt(t, db)
	repo := NewAttemptPostgreSQL(db)
	ctx := context.Background()

	got, err := repo.GetWithDetails(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, "Networks midterm", got.Assessment.Title)
	require.Len(t, got.Assessment.Questions, 2)
	assert.Equal(t, "q1", got.Assessment.Questions[0].Text)
	assert.True(t, got.Assessment.RequiresWriting())
	require.Len(t, got.Answers, 1)
	assert.Equal(t, 11, got.Answers[0].CharCount())

	_, err = repo.GetWithDetails(ctx, 999)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	many, err := repo.GetManyWithDetails(ctx, []uint{seeded.ID, 999})
	require.NoError(t, err)
	assert.Len(t, many, 1)
}

func TestAttemptPostgreSQL_List(t *testing.T) {
	db := testutil.OpenTestDB(t)
	seeded := seedAttempt(t, db)
	require.NoError(t, db.Create(&models.Attempt{AssessmentID: seeded.AssessmentID, StudentID: 7}).Error)
	repo := NewAttemptPostgreSQL(db)

	all, total, err := repo.List(context.Background(), repositories.AttemptFilters{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, all, 2)

	finished, total, err := repo.List(context.Background(), repositories.AttemptFilters{FinishedOnly: true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, seeded.ID, finished[0].ID)
}

func TestEventPostgreSQL_ListOrdered(t *testing.T) {
	db := testutil.OpenTestDB(t)
	attempt := seedAttempt(t, db)
	repo := NewEventPostgreSQL(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateBatch(ctx, []*models.ActivityEvent{
		{AttemptID: attempt.ID, Type: models.EventTabHidden, Timestamp: base.Add(3 * time.Minute)},
		{AttemptID: attempt.ID, Type: models.EventKeyPress, Timestamp: base.Add(time.Minute)},
		{AttemptID: attempt.ID, Type: models.EventMobileDetected, Timestamp: base.Add(2 * time.Minute),
			Metadata: datatypes.JSON(`{"confidence":0.91}`)},
	}))
	require.NoError(t, repo.CreateBatch(ctx, nil))

	events, err := repo.ListByAttempt(ctx, attempt.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, models.EventKeyPress, events[0].Type)
	assert.Equal(t, models.EventMobileDetected, events[1].Type)
	assert.JSONEq(t, `{"confidence":0.91}`, string(events[1].Metadata))

	n, err := repo.CountByAttempt(ctx, attempt.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestAnalysisPostgreSQL_Upsert(t *testing.T) {
	db := testutil.OpenTestDB(t)
	attempt := seedAttempt(t, db)
	repo := NewAnalysisPostgreSQL(db)
	ctx := context.Background()

	missing, err := repo.GetActivity(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, repo.UpsertActivity(ctx, &models.ActivityAnalysis{AttemptID: attempt.ID, TabSwitches: 1}))
	require.NoError(t, repo.UpsertActivity(ctx, &models.ActivityAnalysis{AttemptID: attempt.ID, TabSwitches: 4, TotalFocusLost: 4}))

	got, err := repo.GetActivity(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.TabSwitches)
	assert.Equal(t, 4, got.TotalFocusLost)

	var count int64
	db.Model(&models.ActivityAnalysis{}).Count(&count)
	assert.EqualValues(t, 1, count)

	require.NoError(t, repo.UpsertAudio(ctx, &models.AudioAnalysis{AttemptID: attempt.ID, VoicedSeconds: 3}))
	require.NoError(t, repo.UpsertAudio(ctx, &models.AudioAnalysis{AttemptID: attempt.ID, VoicedSeconds: 9.5, VoicedRatio: 0.1}))
	audio, err := repo.GetAudio(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, 9.5, audio.VoicedSeconds)
}

func TestVerdictPostgreSQL_SaveKeepsReview(t *testing.T) {
	db := testutil.OpenTestDB(t)
	attempt := seedAttempt(t, db)
	repo := NewVerdictPostgreSQL(db)
	ctx := context.Background()

	p := 0.62
	require.NoError(t, repo.Save(ctx, &models.VerdictRecord{
		AttemptID: attempt.ID, Cheating: true, Probability: &p, Certainty: "medium",
		TopFactors: datatypes.JSON(`[]`), EvaluatedAt: base,
	}))

	label := false
	reviewed, err := repo.ApplyReview(ctx, attempt.ID, repositories.ReviewUpdate{
		FinalVerdict: false, ReviewerID: 9, Comment: "talking to themself", ReviewedAt: base.Add(time.Hour), Label: &label,
	})
	require.NoError(t, err)
	require.NotNil(t, reviewed.FinalVerdict)
	assert.False(t, *reviewed.FinalVerdict)
	require.NotNil(t, reviewed.Label)
	assert.Equal(t, models.LabelProfessor, reviewed.LabelSource)

	// re-evaluation only touches evaluation columns
	p2 := 0.3
	require.NoError(t, repo.Save(ctx, &models.VerdictRecord{
		AttemptID: attempt.ID, Cheating: false, Probability: &p2, Certainty: "medium",
		TopFactors: datatypes.JSON(`[]`), EvaluatedAt: base.Add(2 * time.Hour),
	}))
	got, err := repo.GetByAttempt(ctx, attempt.ID)
	require.NoError(t, err)
	assert.False(t, got.Cheating)
	assert.Equal(t, 0.3, *got.Probability)
	require.NotNil(t, got.ReviewedBy)
	assert.EqualValues(t, 9, *got.ReviewedBy)
	require.NotNil(t, got.Label)
	assert.False(t, *got.Label)

	labeled, err := repo.ListLabeled(ctx)
	require.NoError(t, err)
	assert.Len(t, labeled, 1)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, repositories.VerdictStats{Total: 1, Reviewed: 1, Labeled: 1}, *stats)
}

func TestVerdictPostgreSQL_Missing(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewVerdictPostgreSQL(db)
	ctx := context.Background()

	_, err := repo.GetByAttempt(ctx, 5)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	_, err = repo.ApplyReview(ctx, 5, repositories.ReviewUpdate{ReviewedAt: base})
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	assert.ErrorIs(t, repo.SetLabel(ctx, 5, true, models.LabelBootstrap), repositories.ErrNotFound)
}

func TestVerdictPostgreSQL_ListFilters(t *testing.T) {
	db := testutil.OpenTestDB(t)
	a := seedAttempt(t, db)
	b := seedAttempt(t, db)
	repo := NewVerdictPostgreSQL(db)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &models.VerdictRecord{AttemptID: a.ID, Cheating: true, RuleTriggered: true, EvaluatedAt: base}))
	require.NoError(t, repo.Save(ctx, &models.VerdictRecord{AttemptID: b.ID, EvaluatedAt: base.Add(time.Minute)}))
	require.NoError(t, repo.SetLabel(ctx, a.ID, true, models.LabelBootstrap))

	yes := true
	list, total, err := repo.List(ctx, repositories.VerdictFilters{RuleTriggered: &yes})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, a.ID, list[0].AttemptID)

	all, _, err := repo.List(ctx, repositories.VerdictFilters{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b.ID, all[0].AttemptID, "newest evaluation first")
}

package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewEvent(t *testing.T) {
	p := 0.8
	e, err := NewEvent(VerdictIssued, VerdictIssuedData{AttemptID: 7, Cheating: true, Probability: &p, Certainty: "high"})
	require.NoError(t, err)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, VerdictIssued, e.Type)
	assert.Equal(t, eventSource, e.Source)
	assert.False(t, e.Timestamp.IsZero())

	var data VerdictIssuedData
	require.NoError(t, e.Decode(&data))
	assert.Equal(t, uint(7), data.AttemptID)
	require.NotNil(t, data.Probability)
	assert.InDelta(t, 0.8, *data.Probability, 1e-12)
}

func TestParseEvent(t *testing.T) {
	_, err := ParseEvent([]byte("not json"))
	assert.Error(t, err)

	_, err = ParseEvent([]byte(`{"id":"x"}`))
	assert.Error(t, err)

	e, err := ParseEvent([]byte(`{"id":"x","type":"label.corrected","data":{"attempt_id":3,"label":true}}`))
	require.NoError(t, err)
	var data LabelCorrectedData
	require.NoError(t, e.Decode(&data))
	assert.Equal(t, LabelCorrectedData{AttemptID: 3, Label: true}, data)
}

func TestTopicsFor(t *testing.T) {
	topics := DefaultTopics()
	assert.Equal(t, topics.Commands, topics.For(LabelCorrected))
	assert.Equal(t, topics.Verdicts, topics.For(VerdictIssued))
	assert.Equal(t, topics.Verdicts, topics.For(VerdictReviewed))
	assert.Equal(t, topics.Verdicts, topics.For(ModelRetrained))
}

func TestMockEventPublisher(t *testing.T) {
	m := NewMockEventPublisher()
	e1, _ := NewEvent(VerdictIssued, VerdictIssuedData{AttemptID: 1})
	e2, _ := NewEvent(LabelCorrected, LabelCorrectedData{AttemptID: 1})
	require.NoError(t, m.Publish(context.Background(), e1))
	require.NoError(t, m.Publish(context.Background(), e2))

	assert.Len(t, m.OfType(LabelCorrected), 1)
	assert.Len(t, m.OfType(ModelRetrained), 0)

	m.Err = errors.New("broker down")
	assert.Error(t, m.Publish(context.Background(), e1))
	assert.Len(t, m.Events, 2)
}

func TestRetrainRouterDeliversLabelCorrections(t *testing.T) {
	logger := discardLogger()
	pubsub := NewMemoryPubSub(logger)
	defer pubsub.Close()

	topics := DefaultTopics()
	received := make(chan LabelCorrectedData, 1)
	router, err := NewRetrainRouter(pubsub, pubsub, RouterConfig{CommandTopic: topics.Commands},
		func(ctx context.Context, data LabelCorrectedData) error {
			received <- data
			return nil
		}, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = router.Run(ctx) }()
	select {
	case <-router.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}

	publisher := NewWatermillEventPublisher(pubsub, topics, logger)

	// Notifications go to another topic and never reach the handler.
	issued, _ := NewEvent(VerdictIssued, VerdictIssuedData{AttemptID: 1})
	require.NoError(t, publisher.Publish(ctx, issued))

	corrected, _ := NewEvent(LabelCorrected, LabelCorrectedData{AttemptID: 42, ReviewerID: 9, Label: false})
	require.NoError(t, publisher.Publish(ctx, corrected))

	select {
	case data := <-received:
		assert.Equal(t, LabelCorrectedData{AttemptID: 42, ReviewerID: 9, Label: false}, data)
	case <-time.After(5 * time.Second):
		t.Fatal("label correction was not delivered")
	}
	require.NoError(t, router.Close())
}

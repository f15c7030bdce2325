package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

// LabelCorrectedFunc handles one label.corrected command. Returning an error
// retries the message; after the last retry it goes to the poison topic.
type LabelCorrectedFunc func(ctx context.Context, data LabelCorrectedData) error

// RetrainRouter consumes the command topic and hands label corrections to
// the retrain workflow.
type RetrainRouter struct {
	router *message.Router
	logger *slog.Logger
}

type RouterConfig struct {
	CommandTopic string
	// PoisonTopic receives commands that kept failing. Empty disables it.
	PoisonTopic string
	MaxRetries  int
}

func NewRetrainRouter(
	subscriber message.Subscriber,
	publisher message.Publisher,
	cfg RouterConfig,
	handle LabelCorrectedFunc,
	logger *slog.Logger,
) (*RetrainRouter, error) {
	wlogger := watermill.NewSlogLogger(logger)

	router, err := message.NewRouter(message.RouterConfig{}, wlogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	router.AddMiddleware(middleware.Recoverer)
	if cfg.PoisonTopic != "" && publisher != nil {
		poison, err := middleware.PoisonQueue(publisher, cfg.PoisonTopic)
		if err != nil {
			return nil, fmt.Errorf("failed to create poison queue: %w", err)
		}
		router.AddMiddleware(poison)
	}
	router.AddMiddleware(middleware.Retry{
		MaxRetries:      cfg.MaxRetries,
		InitialInterval: 500 * time.Millisecond,
		Multiplier:      2,
		Logger:          wlogger,
	}.Middleware)

	r := &RetrainRouter{router: router, logger: logger}
	router.AddNoPublisherHandler("retrain_on_label_corrected", cfg.CommandTopic, subscriber,
		func(msg *message.Message) error {
			return r.dispatch(msg, handle)
		})
	return r, nil
}

func (r *RetrainRouter) dispatch(msg *message.Message, handle LabelCorrectedFunc) error {
	event, err := ParseEvent(msg.Payload)
	if err != nil {
		// Unreadable messages are acked; retrying cannot fix them.
		r.logger.Warn("Dropping malformed command", "message_id", msg.UUID, "error", err)
		return nil
	}
	if event.Type != LabelCorrected {
		return nil
	}

	var data LabelCorrectedData
	if err := event.Decode(&data); err != nil {
		r.logger.Warn("Dropping malformed label correction", "event_id", event.ID, "error", err)
		return nil
	}

	r.logger.Info("Label corrected, retraining", "event_id", event.ID, "attempt_id", data.AttemptID)
	return handle(msg.Context(), data)
}

// Run blocks until ctx is cancelled or the router is closed.
func (r *RetrainRouter) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running is closed once every handler subscribed.
func (r *RetrainRouter) Running() chan struct{} {
	return r.router.Running()
}

func (r *RetrainRouter) Close() error {
	return r.router.Close()
}

package config

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/SAP-F-2025/integrity-service/internal/events"
)

// EventConfig holds configuration for event publishing
type EventConfig struct {
	Enabled       bool
	Publisher     string // kafka, memory or mock
	KafkaBrokers  string
	VerdictTopic  string
	CommandTopic  string
	PoisonTopic   string
	ConsumerGroup string
	MaxRetries    int
}

func loadEventConfig() EventConfig {
	return EventConfig{
		Enabled:       getBool("EVENTS_ENABLED", true),
		Publisher:     getEnv("EVENTS_PUBLISHER", "kafka"),
		KafkaBrokers:  getEnv("KAFKA_BROKERS", "localhost:9092"),
		VerdictTopic:  getEnv("VERDICT_TOPIC", "integrity.verdicts"),
		CommandTopic:  getEnv("COMMAND_TOPIC", "integrity.commands"),
		PoisonTopic:   getEnv("POISON_TOPIC", "integrity.commands.poison"),
		ConsumerGroup: getEnv("CONSUMER_GROUP", "integrity-retrainer"),
		MaxRetries:    3,
	}
}

// GetKafkaBrokers returns Kafka brokers as a slice
func (c *EventConfig) GetKafkaBrokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func (c *EventConfig) Topics() events.Topics {
	return events.Topics{Verdicts: c.VerdictTopic, Commands: c.CommandTopic}
}

func (c *EventConfig) RouterConfig() events.RouterConfig {
	return events.RouterConfig{
		CommandTopic: c.CommandTopic,
		PoisonTopic:  c.PoisonTopic,
		MaxRetries:   c.MaxRetries,
	}
}

// EventBus is the wired messaging stack. Subscriber and Raw are nil when
// nothing consumes commands.
type EventBus struct {
	Publisher  events.EventPublisher
	Subscriber message.Subscriber
	Raw        message.Publisher
}

func (b *EventBus) Close() error {
	var errs []error
	if b.Subscriber != nil {
		errs = append(errs, b.Subscriber.Close())
	}
	if b.Publisher != nil {
		errs = append(errs, b.Publisher.Close())
	}
	return errors.Join(errs...)
}

// CreateEventBus builds the publisher and, for kafka and memory, the command
// subscriber.
func (c *EventConfig) CreateEventBus(logger *slog.Logger) (*EventBus, error) {
	if !c.Enabled {
		logger.Info("Event publishing disabled, using mock publisher")
		return &EventBus{Publisher: events.NewMockEventPublisher()}, nil
	}

	switch c.Publisher {
	case "kafka":
		logger.Info("Creating Kafka event bus",
			"brokers", c.KafkaBrokers,
			"verdict_topic", c.VerdictTopic,
			"command_topic", c.CommandTopic)

		raw, err := events.NewKafkaPublisher(c.GetKafkaBrokers(), logger)
		if err != nil {
			return nil, err
		}
		sub, err := events.NewKafkaSubscriber(c.GetKafkaBrokers(), c.ConsumerGroup, logger)
		if err != nil {
			raw.Close()
			return nil, err
		}
		return &EventBus{
			Publisher:  events.NewWatermillEventPublisher(raw, c.Topics(), logger),
			Subscriber: sub,
			Raw:        raw,
		}, nil
	case "memory":
		logger.Info("Using in-process event bus")
		ps := events.NewMemoryPubSub(logger)
		// GoChannel.Close is idempotent, so both sides may close it
		return &EventBus{
			Publisher:  events.NewWatermillEventPublisher(ps, c.Topics(), logger),
			Subscriber: ps,
			Raw:        ps,
		}, nil
	case "mock":
		logger.Info("Using mock event publisher")
		return &EventBus{Publisher: events.NewMockEventPublisher()}, nil
	default:
		logger.Warn("Unknown event publisher type, falling back to mock", "publisher", c.Publisher)
		return &EventBus{Publisher: events.NewMockEventPublisher()}, nil
	}
}

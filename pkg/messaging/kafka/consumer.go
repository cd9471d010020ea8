package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/erain9/runebook/pkg/messaging"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// EventConsumer reads engine events back from Kafka
type EventConsumer struct {
	reader *kafka.Reader
}

// NewEventConsumer creates a consumer in the given consumer group
func NewEventConsumer(brokers []string, topic, groupID string) (*EventConsumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &EventConsumer{reader: reader}, nil
}

// Consume calls handle for each event until ctx is done. Messages that do not
// decode are skipped.
func (c *EventConsumer) Consume(ctx context.Context, handle func(*messaging.Event) error) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		}

		var event messaging.Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			continue
		}
		if err := handle(&event); err != nil {
			return err
		}
	}
}

// Close closes the underlying reader
func (c *EventConsumer) Close() error {
	return c.reader.Close()
}

// SetupConsumer starts a consumer that logs every published event. It is a
// developer aid for watching the event stream.
func SetupConsumer(ctx context.Context, logger zerolog.Logger, brokers []string, topic, groupID string) (*EventConsumer, error) {
	consumer, err := NewEventConsumer(brokers, topic, groupID)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to create Kafka consumer - continuing without Kafka support")
		return nil, err
	}

	go func() {
		logger.Info().Str("topic", topic).Msg("Starting Kafka consumer")
		err := consumer.Consume(ctx, func(event *messaging.Event) error {
			logger.Info().
				Str("type", string(event.Type)).
				Str("rune_id", event.RuneID).
				Str("order_id", event.OrderID).
				Int("orders", len(event.Orders)).
				Interface("trades", event.Trades).
				Str("error", event.Error).
				Msg("Received engine event")
			return nil
		})
		if err != nil {
			logger.Error().Err(err).Msg("Kafka consumer error")
		}
	}()

	return consumer, nil
}

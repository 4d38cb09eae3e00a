package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-radar-watch/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes proximity alerts to a Kafka topic.
// It implements alert.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the alert topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Name identifies the publisher in metrics and logs.
func (w *Writer) Name() string { return "kafka" }

// Publish writes one alert. Alerts are keyed by their ID.
func (w *Writer) Publish(ctx context.Context, alert domain.ProximityAlert) error {
	msg, err := serializeToMessage(alert)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write alert %s: %w", alert.ID, err)
	}
	w.logger.Debug("alert published", "topic", w.writer.Topic, "alert_id", alert.ID)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a ProximityAlert into a Kafka message.
func serializeToMessage(alert domain.ProximityAlert) (kafkago.Message, error) {
	data, err := json.Marshal(alert)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize proximity alert: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(alert.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "intensity", Value: []byte(alert.Intensity.Level)},
			{Key: "detected_at", Value: []byte(alert.DetectedAt.Format(time.RFC3339))},
		},
	}, nil
}

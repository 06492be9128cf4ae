package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/incident-etl/internal/config"
	"github.com/couchcryptid/incident-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes augmented incidents to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaSinkTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes a document's incidents and publishes them in a single
// WriteMessages call. Incidents with the same case number land on the same
// partition.
func (w *Writer) LoadBatch(ctx context.Context, incidents []domain.Incident) error {
	if len(incidents) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(incidents))
	for i := range incidents {
		msg, err := serializeToMessage(incidents[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish incidents: %w", err)
	}
	w.logger.Debug("incidents published", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an Incident into a Kafka message.
func serializeToMessage(inc domain.Incident) (kafkago.Message, error) {
	data, err := json.Marshal(inc)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize incident %s: %w", inc.CaseNumber, err)
	}
	return kafkago.Message{
		Key:   []byte(inc.CaseNumber),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "agency_code", Value: []byte(inc.AgencyCode)},
			{Key: "run_id", Value: []byte(inc.RunID)},
			{Key: "processed_at", Value: []byte(inc.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}

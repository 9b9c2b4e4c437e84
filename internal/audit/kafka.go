package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSink fans high-priority events out to a kafka topic for security
// monitoring. Publishing is fire-and-forget; delivery failures are logged
// and never surfaced to the caller.
type KafkaSink struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

func NewKafkaSink(brokers []string, topic string, logger *slog.Logger) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("creating kafka client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaSink{client: client, topic: topic, logger: logger}, nil
}

func (s *KafkaSink) Publish(ctx context.Context, e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to encode audit event", "action", e.Action, "error", err)
		return
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(e.SubjectID),
		Value: payload,
	}
	s.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			s.logger.Error("failed to publish audit event",
				"action", e.Action, "subject_id", e.SubjectID, "error", err)
		}
	})
}

func (s *KafkaSink) Close() {
	s.client.Close()
}

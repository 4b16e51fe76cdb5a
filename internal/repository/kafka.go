package repository

import (
	"context"

	"SignalForge/internal/domain/models"
	pkgkafka "SignalForge/pkg/kafka"
)

// KafkaSignalPublisher emits completed signals to a Kafka topic keyed by job
// id. Downstream consumers (alerting, journaling) attach here without touching
// the pipeline. Publishing is best-effort.
type KafkaSignalPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaSignalPublisher creates a publisher for the given topic.
func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic string) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{producer: producer, topic: topic}
}

// PublishCompleted emits one completed-signal event.
func (p *KafkaSignalPublisher) PublishCompleted(ctx context.Context, result *models.SignalResult) error {
	return p.producer.Publish(ctx, p.topic, []byte(result.JobID), result)
}

// Close flushes and closes the underlying producer.
func (p *KafkaSignalPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

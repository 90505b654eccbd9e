package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Pesokrava/review_service/internal/config"
	"github.com/Pesokrava/review_service/internal/pkg/logger"
)

// KafkaProvider publishes events to a managed Kafka queue. The writer dials
// brokers lazily on the first write and keeps connections pooled per broker,
// so concurrent first publishes never open duplicate connections.
type KafkaProvider struct {
	writer *kafka.Writer
	logger *logger.Logger
}

// NewKafkaProvider validates connection parameters and configures the writer.
// Missing brokers are a startup error.
func NewKafkaProvider(cfg *config.Config, log *logger.Logger) (*KafkaProvider, error) {
	brokers := cfg.Events.Kafka.Brokers
	if len(brokers) == 0 || (len(brokers) == 1 && brokers[0] == "") {
		return nil, fmt.Errorf("kafka transport requires KAFKA_BROKERS")
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}

	return &KafkaProvider{
		writer: w,
		logger: log,
	}, nil
}

// Publish writes the payload to the topic. Returns false on any failure.
func (p *KafkaProvider) Publish(ctx context.Context, topic string, payload []byte, correlationID string) bool {
	if topic == "" {
		p.logger.Warn("Dropping publish with empty topic")
		return false
	}

	msg := kafka.Message{
		Topic: topic,
		Value: payload,
	}
	if correlationID != "" {
		msg.Headers = append(msg.Headers, kafka.Header{
			Key: "correlation_id", Value: []byte(correlationID),
		})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithFields(map[string]interface{}{
			"topic": topic,
		}).Error("Failed to publish message to Kafka", err)
		return false
	}

	p.logger.WithFields(map[string]interface{}{
		"topic": topic,
	}).Debug("Published message to Kafka")

	return true
}

// Close closes the writer and flushes pending messages
func (p *KafkaProvider) Close() error {
	if err := p.writer.Close(); err != nil {
		return err
	}
	p.logger.Info("Kafka writer closed")
	return nil
}

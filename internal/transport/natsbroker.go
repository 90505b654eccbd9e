package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Pesokrava/review_service/internal/config"
	"github.com/Pesokrava/review_service/internal/pkg/logger"
)

const correlationHeader = "Correlation-Id"

// NATSProvider publishes events straight to a NATS JetStream broker.
// The connection is established lazily on the first publish and reused;
// concurrent first publishes share a single dial attempt.
type NATSProvider struct {
	url    string
	stream string
	logger *logger.Logger

	mu sync.Mutex
	nc *nats.Conn
	js nats.JetStreamContext
}

// NewNATSProvider validates connection parameters and returns an unconnected
// provider. A missing URL is a startup error, not a publish-time one.
func NewNATSProvider(cfg *config.Config, log *logger.Logger) (*NATSProvider, error) {
	if cfg.Events.NATS.URL == "" {
		return nil, fmt.Errorf("nats transport requires NATS_URL")
	}

	return &NATSProvider{
		url:    cfg.Events.NATS.URL,
		stream: cfg.Events.NATS.Stream,
		logger: log,
	}, nil
}

// connect dials the broker under the provider lock. Callers racing on the
// first publish block here and observe the same connection or failure; a
// failed dial leaves the provider unconnected so the next publish retries.
func (p *NATSProvider) connect(topic string) (nats.JetStreamContext, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.js != nil {
		return p.js, nil
	}

	nc, err := nats.Connect(p.url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if err := p.ensureStream(js, topic); err != nil {
		nc.Close()
		return nil, err
	}

	p.logger.WithFields(map[string]interface{}{
		"url":    p.url,
		"stream": p.stream,
	}).Info("Connected to NATS JetStream")

	p.nc = nc
	p.js = js
	return js, nil
}

// ensureStream creates the review events stream if it does not exist yet.
// Work-queue retention: the downstream consumer deletes messages on ack.
func (p *NATSProvider) ensureStream(js nats.JetStreamContext, topic string) error {
	_, err := js.StreamInfo(p.stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to get stream info: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:        p.stream,
		Subjects:    []string{topic},
		Retention:   nats.WorkQueuePolicy,
		Storage:     nats.FileStorage,
		Replicas:    1,
		MaxAge:      24 * time.Hour,
		Discard:     nats.DiscardOld,
		Description: "Review lifecycle events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// Publish hands the payload to JetStream. Returns false on any failure.
func (p *NATSProvider) Publish(ctx context.Context, topic string, payload []byte, correlationID string) bool {
	if topic == "" {
		p.logger.Warn("Dropping publish with empty topic")
		return false
	}

	js, err := p.connect(topic)
	if err != nil {
		p.logger.Error("NATS connection unavailable", err)
		return false
	}

	msg := &nats.Msg{
		Subject: topic,
		Data:    payload,
		Header:  nats.Header{},
	}
	if correlationID != "" {
		msg.Header.Set(correlationHeader, correlationID)
	}

	pubAck, err := js.PublishMsg(msg, nats.Context(ctx))
	if err != nil {
		p.logger.WithFields(map[string]interface{}{
			"subject": topic,
		}).Error("Failed to publish message to JetStream", err)
		return false
	}

	p.logger.WithFields(map[string]interface{}{
		"subject":  topic,
		"stream":   pubAck.Stream,
		"sequence": pubAck.Sequence,
	}).Debug("Published message to JetStream")

	return true
}

// Close closes the NATS connection
func (p *NATSProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.nc != nil {
		p.nc.Close()
		p.nc = nil
		p.js = nil
		p.logger.Info("NATS publisher connection closed")
	}
	return nil
}

package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/Pesokrava/review_service/internal/config"
	"github.com/Pesokrava/review_service/internal/pkg/logger"
)

// Known transport families, selected by EVENTS_TRANSPORT
const (
	KindNATS    = "nats"
	KindKafka   = "kafka"
	KindSidecar = "sidecar"
)

// Provider publishes opaque event payloads to a named topic. Publish never
// propagates transport failures: it logs the condition and returns false, so
// review mutations succeed even when eventing is down. Close releases the
// underlying connection and is safe to call more than once.
type Provider interface {
	Publish(ctx context.Context, topic string, payload []byte, correlationID string) bool
	Close() error
}

// ServiceInvoker is the synchronous request/response side of the sidecar,
// used for sibling-service checks over the same local channel.
type ServiceInvoker interface {
	Invoke(ctx context.Context, appID, method string, body []byte) ([]byte, error)
}

// New constructs the transport provider named by the configuration.
// An unrecognized transport family is a fatal configuration error, raised
// here at startup rather than deferred to the first publish.
func New(cfg *config.Config, log *logger.Logger) (Provider, error) {
	switch cfg.Events.Transport {
	case KindNATS:
		return NewNATSProvider(cfg, log)
	case KindKafka:
		return NewKafkaProvider(cfg, log)
	case KindSidecar:
		return NewSidecarProvider(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown events transport %q", cfg.Events.Transport)
	}
}

var shared struct {
	mu       sync.Mutex
	provider Provider
}

// Shared returns the process-wide provider, creating it on first access.
func Shared(cfg *config.Config, log *logger.Logger) (Provider, error) {
	shared.mu.Lock()
	defer shared.mu.Unlock()

	if shared.provider != nil {
		return shared.provider, nil
	}

	p, err := New(cfg, log)
	if err != nil {
		return nil, err
	}

	shared.provider = p
	return p, nil
}

// CloseShared tears down the shared provider. Idempotent: calling it when
// no provider exists is a no-op.
func CloseShared() error {
	shared.mu.Lock()
	defer shared.mu.Unlock()

	if shared.provider == nil {
		return nil
	}

	err := shared.provider.Close()
	shared.provider = nil
	return err
}

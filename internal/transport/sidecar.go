package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/Pesokrava/review_service/internal/config"
	"github.com/Pesokrava/review_service/internal/pkg/logger"
)

// SidecarProvider publishes through a co-located pub/sub sidecar over
// localhost HTTP. The same sidecar channel also serves synchronous
// service-invocation calls used for product and purchase checks.
type SidecarProvider struct {
	baseURL string
	pubsub  string
	client  *http.Client
	logger  *logger.Logger
}

// NewSidecarProvider creates a provider talking to the local sidecar.
// No connection setup happens here; the sidecar is reached per request.
func NewSidecarProvider(cfg *config.Config, log *logger.Logger) *SidecarProvider {
	return &SidecarProvider{
		baseURL: cfg.GetSidecarAddr(),
		pubsub:  cfg.Events.Sidecar.PubSubName,
		client:  &http.Client{Timeout: cfg.Events.Sidecar.InvokeTimeout},
		logger:  log,
	}
}

// Publish posts the payload to the sidecar publish endpoint.
// Returns false on any failure.
func (p *SidecarProvider) Publish(ctx context.Context, topic string, payload []byte, correlationID string) bool {
	if topic == "" {
		p.logger.Warn("Dropping publish with empty topic")
		return false
	}

	url := fmt.Sprintf("%s/v1.0/publish/%s/%s", p.baseURL, p.pubsub, topic)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		p.logger.Error("Failed to build sidecar publish request", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	if correlationID != "" {
		req.Header.Set("X-Correlation-Id", correlationID)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.WithFields(map[string]interface{}{
			"topic": topic,
		}).Error("Sidecar publish request failed", err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		p.logger.WithFields(map[string]interface{}{
			"topic":  topic,
			"status": resp.StatusCode,
		}).Error("Sidecar rejected publish", nil)
		return false
	}

	p.logger.WithFields(map[string]interface{}{
		"topic": topic,
	}).Debug("Published message via sidecar")

	return true
}

// Invoke performs a synchronous request/response call to a sibling service
// through the sidecar. Unlike Publish, failures propagate: the caller
// decides whether an unreachable dependency is permissive or fatal.
func (p *SidecarProvider) Invoke(ctx context.Context, appID, method string, body []byte) ([]byte, error) {
	url := fmt.Sprintf("%s/v1.0/invoke/%s/method/%s", p.baseURL, appID, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build invoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sidecar invoke %s/%s failed: %w", appID, method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read invoke response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("sidecar invoke %s/%s returned status %d", appID, method, resp.StatusCode)
	}

	return data, nil
}

// Close is a no-op: the sidecar owns all connections
func (p *SidecarProvider) Close() error {
	return nil
}

package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Pesokrava/review_service/internal/domain"
	"github.com/Pesokrava/review_service/internal/pkg/logger"
	"github.com/Pesokrava/review_service/internal/transport"
)

// Publisher builds review lifecycle envelopes and hands them to the active
// transport provider. Every method returns a success indicator instead of an
// error: publishing is best-effort and must never fail a review mutation
// that already persisted. A nil provider degrades every publish to false.
type Publisher struct {
	provider transport.Provider
	topic    string
	source   string
	logger   *logger.Logger
}

// NewPublisher creates a review event publisher. The provider may be nil,
// in which case every publish logs a warning and reports failure.
func NewPublisher(provider transport.Provider, topic, source string, log *logger.Logger) *Publisher {
	return &Publisher{
		provider: provider,
		topic:    topic,
		source:   source,
		logger:   log,
	}
}

// PublishCreated publishes a review.created event
func (p *Publisher) PublishCreated(ctx context.Context, review *domain.Review, trace TraceContext) bool {
	data := snapshotData(review)
	createdAt := review.CreatedAt
	data.CreatedAt = &createdAt

	return p.publish(ctx, TypeReviewCreated, data, review.UserID.String(), trace)
}

// PublishUpdated publishes a review.updated event carrying the rating the
// review had immediately before the update, for delta-based recomputation.
func (p *Publisher) PublishUpdated(ctx context.Context, review *domain.Review, previousRating int, trace TraceContext) bool {
	data := snapshotData(review)
	updatedAt := review.UpdatedAt
	data.UpdatedAt = &updatedAt
	data.PreviousRating = &previousRating

	return p.publish(ctx, TypeReviewUpdated, data, review.UserID.String(), trace)
}

// PublishDeleted publishes a review.deleted event from the pre-deletion
// snapshot, so the consumer can subtract the rating from its aggregates.
func (p *Publisher) PublishDeleted(ctx context.Context, review *domain.Review, trace TraceContext) bool {
	data := snapshotData(review)
	deletedAt := time.Now().UTC()
	data.DeletedAt = &deletedAt

	return p.publish(ctx, TypeReviewDeleted, data, review.UserID.String(), trace)
}

// PublishApproved publishes a review.approved event. Used for downstream
// notification, not aggregate recomputation.
func (p *Publisher) PublishApproved(ctx context.Context, review *domain.Review, moderatorID string, trace TraceContext) bool {
	data := snapshotData(review)
	updatedAt := review.UpdatedAt
	data.UpdatedAt = &updatedAt

	return p.publish(ctx, TypeReviewApproved, data, moderatorID, trace)
}

func (p *Publisher) publish(ctx context.Context, eventType string, data ReviewData, actorID string, trace TraceContext) bool {
	if p.provider == nil {
		p.logger.WithFields(map[string]interface{}{
			"event_type": eventType,
			"review_id":  data.ReviewID,
		}).Warn("No event transport configured, dropping event")
		return false
	}

	envelope := newEnvelope(eventType, p.source, data, actorID, trace)

	payload, err := json.Marshal(envelope)
	if err != nil {
		p.logger.Errorf(err, "Failed to marshal %s event for review %s", eventType, data.ReviewID)
		return false
	}

	ok := p.provider.Publish(ctx, p.topic, payload, trace.CorrelationID)
	if !ok {
		p.logger.WithFields(map[string]interface{}{
			"event_type": eventType,
			"review_id":  data.ReviewID,
		}).Warn("Event publish failed")
		return false
	}

	p.logger.WithFields(map[string]interface{}{
		"event_type": eventType,
		"event_id":   envelope.ID,
		"review_id":  data.ReviewID,
	}).Debug("Event published")

	return true
}

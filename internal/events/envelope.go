package events

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/Pesokrava/review_service/internal/domain"
)

// Review lifecycle event types. Consumers distinguish events by this field;
// all types share one topic.
const (
	TypeReviewCreated  = "review.created"
	TypeReviewUpdated  = "review.updated"
	TypeReviewDeleted  = "review.deleted"
	TypeReviewApproved = "review.approved"
)

// Envelope is the CloudEvents-style wrapper for all published review events
type Envelope struct {
	SpecVersion     string     `json:"specversion"`
	Type            string     `json:"type"`
	Source          string     `json:"source"`
	ID              string     `json:"id"`
	Time            time.Time  `json:"time"`
	DataContentType string     `json:"datacontenttype"`
	Data            ReviewData `json:"data"`
	Metadata        Metadata   `json:"metadata"`
	TraceParent     string     `json:"traceparent,omitempty"`
}

// ReviewData mirrors the review fields relevant to downstream consumers.
// PreviousRating is set on update events so the catalog service can adjust
// its aggregates by delta; DeletedAt is set on delete events.
type ReviewData struct {
	ReviewID           string     `json:"reviewId"`
	ProductID          string     `json:"productId"`
	UserID             string     `json:"userId"`
	Rating             int        `json:"rating"`
	Title              string     `json:"title"`
	Comment            string     `json:"comment"`
	IsVerifiedPurchase bool       `json:"isVerifiedPurchase"`
	Status             string     `json:"status"`
	CreatedAt          *time.Time `json:"createdAt,omitempty"`
	UpdatedAt          *time.Time `json:"updatedAt,omitempty"`
	DeletedAt          *time.Time `json:"deletedAt,omitempty"`
	PreviousRating     *int       `json:"previousRating,omitempty"`
}

// Metadata carries correlation context for downstream tracing
type Metadata struct {
	CorrelationID string `json:"correlationId"`
	UserID        string `json:"userId"`
}

// TraceContext carries the identifiers needed to stitch the publish into
// the originating request's trace. Zero value means no trace context.
type TraceContext struct {
	TraceID       string
	SpanID        string
	CorrelationID string
}

// traceparent renders the standard two-segment correlation format
func (t TraceContext) traceparent() string {
	if t.TraceID == "" || t.SpanID == "" {
		return ""
	}
	return fmt.Sprintf("00-%s-%s-01", t.TraceID, t.SpanID)
}

// newEnvelope builds an envelope for the given event type and review data.
// The event id combines type, timestamp and a random suffix; collisions are
// negligible at this service's throughput, and ids are advisory only.
func newEnvelope(eventType, source string, data ReviewData, actorID string, trace TraceContext) Envelope {
	now := time.Now().UTC()

	return Envelope{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          source,
		ID:              fmt.Sprintf("%s-%d-%s", eventType, now.UnixNano(), randomSuffix()),
		Time:            now,
		DataContentType: "application/json",
		Data:            data,
		Metadata: Metadata{
			CorrelationID: trace.CorrelationID,
			UserID:        actorID,
		},
		TraceParent: trace.traceparent(),
	}
}

func randomSuffix() string {
	b := make([]byte, 4)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// snapshotData copies the review fields shared by every event type
func snapshotData(review *domain.Review) ReviewData {
	return ReviewData{
		ReviewID:           review.ID.String(),
		ProductID:          review.ProductID.String(),
		UserID:             review.UserID.String(),
		Rating:             review.Rating,
		Title:              review.Title,
		Comment:            review.Comment,
		IsVerifiedPurchase: review.IsVerifiedPurchase,
		Status:             string(review.Status),
	}
}

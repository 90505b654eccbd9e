package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ReviewStatus governs review visibility in default listings
type ReviewStatus string

const (
	StatusPending  ReviewStatus = "pending"
	StatusApproved ReviewStatus = "approved"
	StatusRejected ReviewStatus = "rejected"
	StatusHidden   ReviewStatus = "hidden"
)

// Valid reports whether s is a known review status
func (s ReviewStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusHidden:
		return true
	}
	return false
}

// VoteValue is a helpfulness vote category
type VoteValue string

const (
	VoteHelpful    VoteValue = "helpful"
	VoteNotHelpful VoteValue = "not_helpful"
)

// Valid reports whether v is one of the two allowed vote categories
func (v VoteValue) Valid() bool {
	return v == VoteHelpful || v == VoteNotHelpful
}

// ModerationAction is an administrative status transition
type ModerationAction string

const (
	ActionApprove ModerationAction = "approve"
	ActionReject  ModerationAction = "reject"
	ActionHide    ModerationAction = "hide"
)

// TargetStatus maps a moderation action to the status it produces
func (a ModerationAction) TargetStatus() (ReviewStatus, bool) {
	switch a {
	case ActionApprove:
		return StatusApproved, true
	case ActionReject:
		return StatusRejected, true
	case ActionHide:
		return StatusHidden, true
	}
	return "", false
}

// RequiresReason reports whether the action needs a non-empty reason
func (a ModerationAction) RequiresReason() bool {
	return a == ActionReject || a == ActionHide
}

// Review represents a product review. At most one review exists per
// (product, author) pair; the verified-purchase flag is set at creation
// and never altered afterwards.
type Review struct {
	ID                 uuid.UUID      `json:"id" db:"id"`
	ProductID          uuid.UUID      `json:"product_id" db:"product_id" validate:"required"`
	UserID             uuid.UUID      `json:"user_id" db:"user_id" validate:"required"`
	Rating             int            `json:"rating" db:"rating" validate:"required,min=1,max=5"`
	Title              string         `json:"title" db:"title" validate:"max=200"`
	Comment            string         `json:"comment" db:"comment" validate:"max=5000"`
	MediaURLs          pq.StringArray `json:"media_urls" db:"media_urls"`
	OrderID            string         `json:"order_id,omitempty" db:"order_id"`
	IsVerifiedPurchase bool           `json:"is_verified_purchase" db:"is_verified_purchase"`
	Status             ReviewStatus   `json:"status" db:"status"`
	HelpfulCount       int            `json:"helpful_count" db:"helpful_count"`
	NotHelpfulCount    int            `json:"not_helpful_count" db:"not_helpful_count"`
	ModeratedBy        *uuid.UUID     `json:"moderated_by,omitempty" db:"moderated_by"`
	ModeratedAt        *time.Time     `json:"moderated_at,omitempty" db:"moderated_at"`
	ModerationReason   string         `json:"moderation_reason,omitempty" db:"moderation_reason"`
	CreatedBy          uuid.UUID      `json:"created_by" db:"created_by"`
	UpdatedBy          uuid.UUID      `json:"updated_by" db:"updated_by"`
	CreatedAt          time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at" db:"updated_at"`
}

// HasContent reports whether the review carries a title or comment.
// A review with neither is rejected at validation time.
func (r *Review) HasContent() bool {
	return r.Title != "" || r.Comment != ""
}

// IsOwnedBy reports whether the review belongs to the given user
func (r *Review) IsOwnedBy(userID uuid.UUID) bool {
	return r.UserID == userID
}

// ReviewVote is a single voter's helpfulness record for a review.
// One vote per voter, mutually exclusive between the two categories.
type ReviewVote struct {
	ReviewID  uuid.UUID `json:"review_id" db:"review_id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Vote      VoteValue `json:"vote" db:"vote"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// SortOrder for review listings
type SortOrder string

const (
	SortRecent      SortOrder = "recent"
	SortRating      SortOrder = "rating"
	SortHelpfulness SortOrder = "helpfulness"
)

// ReviewFilter narrows review listings. Nil pointer fields are unfiltered.
type ReviewFilter struct {
	ProductID    *uuid.UUID
	UserID       *uuid.UUID
	Status       *ReviewStatus
	Rating       *int
	VerifiedOnly bool
	Search       string
	SortBy       SortOrder
	Limit        int
	Offset       int
}

// RatingSummary aggregates the approved reviews of a product.
// Distribution[i] holds the count of (i+1)-star reviews.
type RatingSummary struct {
	ProductID     uuid.UUID `json:"product_id"`
	Average       float64   `json:"average"`
	Total         int       `json:"total"`
	VerifiedCount int       `json:"verified_count"`
	Distribution  [5]int    `json:"distribution"`
}

// ModerationUpdate carries a status transition and its metadata
type ModerationUpdate struct {
	Status      ReviewStatus
	ModeratedBy uuid.UUID
	ModeratedAt time.Time
	Reason      string
}

// ReviewRepository defines the interface for review data access
type ReviewRepository interface {
	// Create persists a new review. Returns ErrConflict when a review
	// already exists for the (product, user) pair.
	Create(ctx context.Context, review *Review) error

	// GetByID retrieves a review by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Review, error)

	// Find retrieves reviews matching the filter with pagination,
	// returning the total match count alongside the page
	Find(ctx context.Context, filter ReviewFilter) ([]*Review, int, error)

	// Update persists content changes to an existing review
	Update(ctx context.Context, review *Review) error

	// UpdateStatus applies a moderation transition to a single review
	UpdateStatus(ctx context.Context, id uuid.UUID, mod ModerationUpdate) error

	// BulkUpdateStatus applies a moderation transition across many reviews
	// in one batch, returning the product ids of the affected records (one
	// entry per record). Missing ids are skipped, not errors.
	BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, mod ModerationUpdate) ([]uuid.UUID, error)

	// Delete physically removes a review and its votes
	Delete(ctx context.Context, id uuid.UUID) error

	// ApplyVote atomically mutates a voter's helpfulness record and the
	// matching counters: same-category revote retracts, opposite-category
	// flips, first vote inserts. Returns the review with updated counters.
	ApplyVote(ctx context.Context, reviewID, userID uuid.UUID, vote VoteValue) (*Review, error)

	// ExistsByProductAndUser reports whether the user already reviewed the product
	ExistsByProductAndUser(ctx context.Context, productID, userID uuid.UUID) (bool, error)

	// CountByProductID returns the number of reviews for a product
	CountByProductID(ctx context.Context, productID uuid.UUID) (int, error)

	// RatingSummary aggregates approved reviews for a product
	RatingSummary(ctx context.Context, productID uuid.UUID) (*RatingSummary, error)
}

package review

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Pesokrava/review_service/internal/config"
	"github.com/Pesokrava/review_service/internal/domain"
	"github.com/Pesokrava/review_service/internal/events"
	"github.com/Pesokrava/review_service/internal/pkg/logger"
	pkgvalidator "github.com/Pesokrava/review_service/internal/pkg/validator"
)

// EventPublisher defines the interface for publishing review lifecycle events.
// Every method is best-effort: the boolean result is advisory and a failed
// publish never fails the operation that already persisted.
type EventPublisher interface {
	PublishCreated(ctx context.Context, review *domain.Review, trace events.TraceContext) bool
	PublishUpdated(ctx context.Context, review *domain.Review, previousRating int, trace events.TraceContext) bool
	PublishDeleted(ctx context.Context, review *domain.Review, trace events.TraceContext) bool
	PublishApproved(ctx context.Context, review *domain.Review, moderatorID string, trace events.TraceContext) bool
}

// ProductChecker validates product existence against the catalog service
type ProductChecker interface {
	ProductExists(ctx context.Context, productID uuid.UUID) (bool, error)
}

// PurchaseChecker validates an order reference against the order service
type PurchaseChecker interface {
	VerifyPurchase(ctx context.Context, userID, productID uuid.UUID, orderID string) (bool, error)
}

// Cache defines the read-path cache for product listings and rating summaries
type Cache interface {
	GetReviewsList(ctx context.Context, productID uuid.UUID, limit, offset int) ([]*domain.Review, int, error)
	SetReviewsList(ctx context.Context, productID uuid.UUID, limit, offset int, reviews []*domain.Review, total int) error
	GetRatingSummary(ctx context.Context, productID uuid.UUID) (*domain.RatingSummary, error)
	SetRatingSummary(ctx context.Context, productID uuid.UUID, summary *domain.RatingSummary) error
	InvalidateProduct(ctx context.Context, productID uuid.UUID) error
}

// CreateInput carries a validated create request
type CreateInput struct {
	ProductID uuid.UUID `validate:"required"`
	Rating    int       `validate:"required,min=1,max=5"`
	Title     string    `validate:"max=200"`
	Comment   string    `validate:"max=5000"`
	MediaURLs []string  `validate:"max=10,dive,max=500"`
	OrderID   string    `validate:"max=100"`
}

// UpdateInput carries a partial update; nil fields are left untouched
type UpdateInput struct {
	Rating    *int     `validate:"omitempty,min=1,max=5"`
	Title     *string  `validate:"omitempty,max=200"`
	Comment   *string  `validate:"omitempty,max=5000"`
	MediaURLs []string `validate:"omitempty,max=10,dive,max=500"`
}

// Service owns the review entity lifecycle: creation gating, owner-scoped
// mutation, helpfulness voting, moderation transitions and listings.
type Service struct {
	repo      domain.ReviewRepository
	cache     Cache
	publisher EventPublisher
	products  ProductChecker
	purchases PurchaseChecker
	policy    config.PolicyConfig
	validate  *validator.Validate
	logger    *logger.Logger
}

// NewService creates a new review service
func NewService(
	repo domain.ReviewRepository,
	cache Cache,
	publisher EventPublisher,
	products ProductChecker,
	purchases PurchaseChecker,
	policy config.PolicyConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		products:  products,
		purchases: purchases,
		policy:    policy,
		validate:  pkgvalidator.Get(),
		logger:    log,
	}
}

// Create validates and persists a new review for the acting user.
//
// Gating order: input shape, account rules (inactive, admin conflict of
// interest), duplicate (product, author) pair, product existence
// (permissive when the catalog is unreachable), per-product review cap,
// then purchase verification. The verified-purchase flag and the policy
// flags together decide the initial status.
func (s *Service) Create(ctx context.Context, user *domain.User, input CreateInput) (*domain.Review, error) {
	if err := s.validate.Struct(input); err != nil {
		s.logger.Error("Review validation failed", err)
		return nil, domain.NewError(domain.ErrInvalidInput, domain.CodeInvalidInput, err.Error())
	}
	if input.Title == "" && input.Comment == "" {
		return nil, domain.NewError(domain.ErrInvalidInput, domain.CodeInvalidInput, "title or comment is required")
	}

	if err := CanCreate(user); err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByProductAndUser(ctx, input.ProductID, user.ID)
	if err != nil {
		s.logger.Error("Failed to check for existing review", err)
		return nil, err
	}
	if exists {
		return nil, domain.NewError(domain.ErrConflict, domain.CodeReviewExists, "user already reviewed this product")
	}

	// Secondary validation: an unreachable catalog must not block review
	// creation, so only a definitive "does not exist" answer rejects.
	known, err := s.products.ProductExists(ctx, input.ProductID)
	if err != nil {
		s.logger.Warnf("Product existence check unavailable for %s, allowing creation: %v", input.ProductID, err)
	} else if !known {
		return nil, domain.NewError(domain.ErrNotFound, domain.CodeProductNotFound, "product not found")
	}

	if s.policy.MaxReviewsPerProduct > 0 {
		count, err := s.repo.CountByProductID(ctx, input.ProductID)
		if err != nil {
			s.logger.Error("Failed to count product reviews", err)
			return nil, err
		}
		if count >= s.policy.MaxReviewsPerProduct {
			return nil, domain.NewError(domain.ErrConflict, domain.CodeReviewLimit, "review limit reached for this product")
		}
	}

	verified := false
	if input.OrderID != "" {
		valid, err := s.purchases.VerifyPurchase(ctx, user.ID, input.ProductID, input.OrderID)
		if err != nil {
			s.logger.Warnf("Purchase verification unavailable for order %s: %v", input.OrderID, err)
		} else {
			verified = valid
		}
	}
	if s.policy.RequirePurchase && !verified {
		return nil, domain.NewError(domain.ErrInvalidInput, domain.CodePurchaseRequired, "a verified purchase is required to review this product")
	}

	review := &domain.Review{
		ID:                 uuid.New(),
		ProductID:          input.ProductID,
		UserID:             user.ID,
		Rating:             input.Rating,
		Title:              input.Title,
		Comment:            input.Comment,
		MediaURLs:          input.MediaURLs,
		OrderID:            input.OrderID,
		IsVerifiedPurchase: verified,
		Status:             s.initialStatus(verified),
	}
	stampAudit(review, user.ID, true)

	if err := s.repo.Create(ctx, review); err != nil {
		s.logger.Error("Failed to create review", err)
		return nil, err
	}

	s.invalidateProduct(ctx, review.ProductID)
	s.publishAsync(ctx, func(bg context.Context, trace events.TraceContext) {
		s.publisher.PublishCreated(bg, review, trace)
	})

	s.logger.WithFields(map[string]interface{}{
		"review_id":  review.ID,
		"product_id": review.ProductID,
		"rating":     review.Rating,
		"status":     review.Status,
	}).Info("Review created successfully")

	return review, nil
}

// initialStatus applies the verification and moderation policy flags
func (s *Service) initialStatus(verified bool) domain.ReviewStatus {
	if verified && s.policy.AutoApproveVerified {
		return domain.StatusApproved
	}
	if s.policy.ModerationRequired {
		return domain.StatusPending
	}
	return domain.StatusApproved
}

// Update applies content changes to the user's own review. Changing the
// rating or the comment resets the status to pending for re-moderation;
// title or media-only edits keep the current status.
func (s *Service) Update(ctx context.Context, user *domain.User, id uuid.UUID, input UpdateInput) (*domain.Review, error) {
	if err := s.validate.Struct(input); err != nil {
		s.logger.Error("Review validation failed", err)
		return nil, domain.NewError(domain.ErrInvalidInput, domain.CodeInvalidInput, err.Error())
	}

	review, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := CanModify(user, review); err != nil {
		return nil, err
	}

	if s.policy.EditTimeLimitDays > 0 {
		limit := time.Duration(s.policy.EditTimeLimitDays) * 24 * time.Hour
		if time.Since(review.CreatedAt) > limit {
			return nil, domain.NewError(domain.ErrForbidden, domain.CodeEditWindowExpired, "the edit window for this review has expired")
		}
	}

	previousRating := review.Rating
	needsRemoderation := false

	if input.Rating != nil && *input.Rating != review.Rating {
		review.Rating = *input.Rating
		needsRemoderation = true
	}
	if input.Title != nil {
		review.Title = *input.Title
	}
	if input.Comment != nil && *input.Comment != review.Comment {
		review.Comment = *input.Comment
		needsRemoderation = true
	}
	if input.MediaURLs != nil {
		review.MediaURLs = input.MediaURLs
	}

	if !review.HasContent() {
		return nil, domain.NewError(domain.ErrInvalidInput, domain.CodeInvalidInput, "title or comment is required")
	}

	if needsRemoderation {
		review.Status = domain.StatusPending
	}
	stampAudit(review, user.ID, false)

	if err := s.repo.Update(ctx, review); err != nil {
		s.logger.Error("Failed to update review", err)
		return nil, err
	}

	s.invalidateProduct(ctx, review.ProductID)
	s.publishAsync(ctx, func(bg context.Context, trace events.TraceContext) {
		s.publisher.PublishUpdated(bg, review, previousRating, trace)
	})

	s.logger.WithFields(map[string]interface{}{
		"review_id":  review.ID,
		"product_id": review.ProductID,
		"rating":     review.Rating,
	}).Info("Review updated successfully")

	return review, nil
}

// Delete physically removes the user's own review along with its votes,
// then publishes a deleted event from the pre-deletion snapshot.
func (s *Service) Delete(ctx context.Context, user *domain.User, id uuid.UUID) error {
	review, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := CanModify(user, review); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error("Failed to delete review", err)
		return err
	}

	s.invalidateProduct(ctx, review.ProductID)
	s.publishAsync(ctx, func(bg context.Context, trace events.TraceContext) {
		s.publisher.PublishDeleted(bg, review, trace)
	})

	s.logger.WithFields(map[string]interface{}{
		"review_id":  id,
		"product_id": review.ProductID,
	}).Info("Review deleted successfully")

	return nil
}

// Vote casts, flips or retracts a helpfulness vote. A repeat vote in the
// same category retracts it; a vote in the opposite category flips it. The
// counter arithmetic happens atomically at the storage layer.
func (s *Service) Vote(ctx context.Context, user *domain.User, id uuid.UUID, vote domain.VoteValue) (*domain.Review, error) {
	if !vote.Valid() {
		return nil, domain.NewError(domain.ErrInvalidInput, domain.CodeInvalidVote, "vote must be helpful or not_helpful")
	}

	review, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := CanVote(user, review); err != nil {
		return nil, err
	}

	updated, err := s.repo.ApplyVote(ctx, id, user.ID, vote)
	if err != nil {
		s.logger.Error("Failed to apply vote", err)
		return nil, err
	}

	s.invalidateProduct(ctx, review.ProductID)

	s.logger.WithFields(map[string]interface{}{
		"review_id":   id,
		"voter_id":    user.ID,
		"helpful":     updated.HelpfulCount,
		"not_helpful": updated.NotHelpfulCount,
	}).Debug("Vote applied")

	return updated, nil
}

// Moderate applies an administrative status transition. Reject and hide
// require a reason; transitioning to the current status is rejected rather
// than silently succeeding. Approval publishes an approved event.
func (s *Service) Moderate(ctx context.Context, moderator *domain.User, id uuid.UUID, action domain.ModerationAction, reason string) (*domain.Review, error) {
	if err := CanModerate(moderator); err != nil {
		return nil, err
	}

	target, ok := action.TargetStatus()
	if !ok {
		return nil, domain.NewError(domain.ErrInvalidInput, domain.CodeInvalidAction, "action must be approve, reject or hide")
	}
	if action.RequiresReason() && strings.TrimSpace(reason) == "" {
		return nil, domain.NewError(domain.ErrInvalidInput, domain.CodeReasonRequired, "a reason is required for this action")
	}

	review, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if review.Status == target {
		return nil, domain.NewError(domain.ErrConflict, domain.CodeStatusUnchanged, "review is already "+string(target))
	}

	mod := domain.ModerationUpdate{
		Status:      target,
		ModeratedBy: moderator.ID,
		ModeratedAt: time.Now().UTC(),
		Reason:      strings.TrimSpace(reason),
	}

	if err := s.repo.UpdateStatus(ctx, id, mod); err != nil {
		s.logger.Error("Failed to update review status", err)
		return nil, err
	}

	review.Status = mod.Status
	review.ModeratedBy = &mod.ModeratedBy
	review.ModeratedAt = &mod.ModeratedAt
	review.ModerationReason = mod.Reason
	review.UpdatedAt = mod.ModeratedAt

	s.invalidateProduct(ctx, review.ProductID)

	if action == domain.ActionApprove {
		s.publishAsync(ctx, func(bg context.Context, trace events.TraceContext) {
			s.publisher.PublishApproved(bg, review, moderator.ID.String(), trace)
		})
	}

	s.logger.WithFields(map[string]interface{}{
		"review_id": id,
		"action":    action,
		"moderator": moderator.ID,
	}).Info("Review moderated")

	return review, nil
}

// BulkModerate applies one action across many reviews in a single batch
// update and returns the number of affected records. Ids that match nothing
// are reflected in the count, not reported as errors.
func (s *Service) BulkModerate(ctx context.Context, moderator *domain.User, ids []uuid.UUID, action domain.ModerationAction, reason string) (int, error) {
	if err := CanModerate(moderator); err != nil {
		return 0, err
	}

	target, ok := action.TargetStatus()
	if !ok {
		return 0, domain.NewError(domain.ErrInvalidInput, domain.CodeInvalidAction, "action must be approve, reject or hide")
	}
	if action.RequiresReason() && strings.TrimSpace(reason) == "" {
		return 0, domain.NewError(domain.ErrInvalidInput, domain.CodeReasonRequired, "a reason is required for this action")
	}
	if len(ids) == 0 {
		return 0, nil
	}

	mod := domain.ModerationUpdate{
		Status:      target,
		ModeratedBy: moderator.ID,
		ModeratedAt: time.Now().UTC(),
		Reason:      strings.TrimSpace(reason),
	}

	productIDs, err := s.repo.BulkUpdateStatus(ctx, ids, mod)
	if err != nil {
		s.logger.Error("Failed to bulk update review status", err)
		return 0, err
	}

	seen := make(map[uuid.UUID]struct{}, len(productIDs))
	for _, productID := range productIDs {
		if _, done := seen[productID]; done {
			continue
		}
		seen[productID] = struct{}{}
		s.invalidateProduct(ctx, productID)
	}

	s.logger.WithFields(map[string]interface{}{
		"action":    action,
		"requested": len(ids),
		"affected":  len(productIDs),
	}).Info("Bulk moderation applied")

	return len(productIDs), nil
}

// GetByID retrieves a review by ID
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*domain.Review, error) {
	review, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == domain.ErrNotFound {
			s.logger.Debugf("Review not found: %s", id)
		} else {
			s.logger.Error("Failed to get review", err)
		}
		return nil, err
	}

	return review, nil
}

// ListByProduct returns a page of a product's reviews. Listings default to
// approved reviews only; the default page is served from cache when
// possible.
func (s *Service) ListByProduct(ctx context.Context, productID uuid.UUID, filter domain.ReviewFilter) ([]*domain.Review, int, error) {
	filter.ProductID = &productID
	if filter.Status == nil {
		approved := domain.StatusApproved
		filter.Status = &approved
	}
	normalizePage(&filter)

	if cacheable(filter) {
		reviews, total, err := s.cache.GetReviewsList(ctx, productID, filter.Limit, filter.Offset)
		if err == nil {
			s.logger.Debugf("Cache hit for product %s reviews (limit=%d, offset=%d)", productID, filter.Limit, filter.Offset)
			return reviews, total, nil
		}
	}

	reviews, total, err := s.repo.Find(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list product reviews", err)
		return nil, 0, err
	}

	if cacheable(filter) {
		if err := s.cache.SetReviewsList(ctx, productID, filter.Limit, filter.Offset, reviews, total); err != nil {
			s.logger.Warnf("Failed to cache reviews for product %s: %v", productID, err)
		}
	}

	return reviews, total, nil
}

// ListByUser returns the user's own reviews across all statuses
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Review, int, error) {
	filter := domain.ReviewFilter{
		UserID: &userID,
		SortBy: domain.SortRecent,
		Limit:  limit,
		Offset: offset,
	}
	normalizePage(&filter)

	reviews, total, err := s.repo.Find(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list user reviews", err)
		return nil, 0, err
	}

	return reviews, total, nil
}

// AdminList returns reviews matching an arbitrary filter, any status
func (s *Service) AdminList(ctx context.Context, filter domain.ReviewFilter) ([]*domain.Review, int, error) {
	normalizePage(&filter)

	reviews, total, err := s.repo.Find(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list reviews", err)
		return nil, 0, err
	}

	return reviews, total, nil
}

// RatingSummary aggregates the product's approved reviews: count per star,
// verified count and the average rounded to one decimal. The aggregate
// always reflects the whole approved population, independent of any
// listing filters.
func (s *Service) RatingSummary(ctx context.Context, productID uuid.UUID) (*domain.RatingSummary, error) {
	summary, err := s.cache.GetRatingSummary(ctx, productID)
	if err == nil {
		s.logger.Debugf("Cache hit for product %s rating summary", productID)
		return summary, nil
	}

	summary, err = s.repo.RatingSummary(ctx, productID)
	if err != nil {
		s.logger.Error("Failed to compute rating summary", err)
		return nil, err
	}

	if err := s.cache.SetRatingSummary(ctx, productID, summary); err != nil {
		s.logger.Warnf("Failed to cache rating summary for product %s: %v", productID, err)
	}

	return summary, nil
}

// stampAudit assigns server-side audit fields before every persistence
// write. Timestamps are never client-supplied.
func stampAudit(review *domain.Review, actorID uuid.UUID, isNew bool) {
	now := time.Now().UTC()
	if isNew {
		review.CreatedBy = actorID
		review.CreatedAt = now
	}
	review.UpdatedBy = actorID
	review.UpdatedAt = now
}

// cacheable reports whether the filter matches the default approved listing
// that the cache stores
func cacheable(filter domain.ReviewFilter) bool {
	return filter.Status != nil && *filter.Status == domain.StatusApproved &&
		filter.Rating == nil && !filter.VerifiedOnly && filter.Search == "" &&
		(filter.SortBy == "" || filter.SortBy == domain.SortRecent)
}

func normalizePage(filter *domain.ReviewFilter) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
}

// invalidateProduct drops all cached pages and summaries for the product.
// Stale cache would show incorrect ratings and review lists.
func (s *Service) invalidateProduct(ctx context.Context, productID uuid.UUID) {
	if err := s.cache.InvalidateProduct(ctx, productID); err != nil {
		s.logger.Warnf("Failed to invalidate cache for product %s: %v", productID, err)
	}
}

// publishAsync runs the publish in the background so a slow transport never
// blocks the request, carrying the request's trace context along.
func (s *Service) publishAsync(ctx context.Context, publish func(context.Context, events.TraceContext)) {
	trace := events.TraceFromContext(ctx)
	go publish(context.Background(), trace)
}

package review

import (
	"github.com/Pesokrava/review_service/internal/domain"
)

// Access-control rules for review operations. Pure functions: they look at
// the authenticated user and the target review only, never at storage.

// CanCreate reports whether the user may create a review. Inactive accounts
// are rejected, and users carrying the admin role may not review at all
// (conflict-of-interest rule).
func CanCreate(user *domain.User) error {
	if !user.Active {
		return domain.NewError(domain.ErrForbidden, domain.CodeUserInactive, "inactive users cannot create reviews")
	}
	if user.IsAdmin() {
		return domain.NewError(domain.ErrForbidden, domain.CodeAdminCannotReview, "administrators cannot review products")
	}
	return nil
}

// CanModify reports whether the user may update or delete the review.
// Only the owning author may.
func CanModify(user *domain.User, review *domain.Review) error {
	if !review.IsOwnedBy(user.ID) {
		return domain.NewError(domain.ErrForbidden, domain.CodeNotOwner, "only the review author can modify it")
	}
	return nil
}

// CanModerate reports whether the user may apply moderation transitions.
// The authorization layer enforces this upstream; the domain service
// re-validates it here.
func CanModerate(user *domain.User) error {
	if !user.IsModerator() {
		return domain.NewError(domain.ErrForbidden, domain.CodeNotModerator, "moderator role required")
	}
	return nil
}

// CanVote reports whether the user may cast a helpfulness vote on the
// review. Authors may not vote on their own reviews.
func CanVote(user *domain.User, review *domain.Review) error {
	if review.IsOwnedBy(user.ID) {
		return domain.NewError(domain.ErrForbidden, domain.CodeCannotVoteOwn, "authors cannot vote on their own reviews")
	}
	return nil
}

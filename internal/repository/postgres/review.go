package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Pesokrava/review_service/internal/domain"
)

const uniqueViolation = "23505"

const reviewColumns = `
	id, product_id, user_id, rating, title, comment, media_urls, order_id,
	is_verified_purchase, status, helpful_count, not_helpful_count,
	moderated_by, moderated_at, moderation_reason,
	created_by, updated_by, created_at, updated_at`

// ReviewRepository implements domain.ReviewRepository for PostgreSQL
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository creates a new PostgreSQL review repository
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create persists a new review. The unique (product_id, user_id) index
// enforces the one-review-per-author invariant even under concurrent
// creates; a violation surfaces as domain.ErrConflict.
func (r *ReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	query := `
		INSERT INTO reviews (
			id, product_id, user_id, rating, title, comment, media_urls, order_id,
			is_verified_purchase, status, created_by, updated_by, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		review.ID,
		review.ProductID,
		review.UserID,
		review.Rating,
		review.Title,
		review.Comment,
		pq.StringArray(review.MediaURLs),
		review.OrderID,
		review.IsVerifiedPurchase,
		review.Status,
		review.CreatedBy,
		review.UpdatedBy,
		review.CreatedAt,
		review.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.NewError(domain.ErrConflict, domain.CodeReviewExists, "user already reviewed this product")
		}
		return err
	}

	return nil
}

// GetByID retrieves a review by ID
func (r *ReviewRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE id = $1`

	var review domain.Review
	err := r.db.GetContext(ctx, &review, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	return &review, nil
}

// Find retrieves reviews matching the filter with pagination and returns
// the total match count alongside the page
func (r *ReviewRepository) Find(ctx context.Context, filter domain.ReviewFilter) ([]*domain.Review, int, error) {
	where, args := buildWhere(filter)

	countQuery := `SELECT COUNT(*) FROM reviews` + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(
		`SELECT %s FROM reviews%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		reviewColumns, where, orderBy(filter.SortBy), len(args)+1, len(args)+2,
	)
	args = append(args, filter.Limit, filter.Offset)

	reviews := []*domain.Review{}
	if err := r.db.SelectContext(ctx, &reviews, query, args...); err != nil {
		return nil, 0, err
	}

	return reviews, total, nil
}

func buildWhere(filter domain.ReviewFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	add := func(cond string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.ProductID != nil {
		add("product_id = $%d", *filter.ProductID)
	}
	if filter.UserID != nil {
		add("user_id = $%d", *filter.UserID)
	}
	if filter.Status != nil {
		add("status = $%d", *filter.Status)
	}
	if filter.Rating != nil {
		add("rating = $%d", *filter.Rating)
	}
	if filter.VerifiedOnly {
		conditions = append(conditions, "is_verified_purchase")
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR comment ILIKE $%d)", len(args), len(args)))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func orderBy(sort domain.SortOrder) string {
	switch sort {
	case domain.SortRating:
		return "rating DESC, created_at DESC"
	case domain.SortHelpfulness:
		return "helpful_count DESC, created_at DESC"
	default:
		return "created_at DESC"
	}
}

// Update persists content changes to an existing review
func (r *ReviewRepository) Update(ctx context.Context, review *domain.Review) error {
	query := `
		UPDATE reviews
		SET rating = $1, title = $2, comment = $3, media_urls = $4,
		    status = $5, updated_by = $6, updated_at = $7
		WHERE id = $8
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		review.Rating,
		review.Title,
		review.Comment,
		pq.StringArray(review.MediaURLs),
		review.Status,
		review.UpdatedBy,
		review.UpdatedAt,
		review.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// UpdateStatus applies a moderation transition to a single review
func (r *ReviewRepository) UpdateStatus(ctx context.Context, id uuid.UUID, mod domain.ModerationUpdate) error {
	query := `
		UPDATE reviews
		SET status = $1, moderated_by = $2, moderated_at = $3,
		    moderation_reason = $4, updated_at = $3
		WHERE id = $5
	`

	result, err := r.db.ExecContext(ctx, query, mod.Status, mod.ModeratedBy, mod.ModeratedAt, mod.Reason, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// BulkUpdateStatus applies a moderation transition across many reviews in
// one statement. Reviews already in the target status are skipped so the
// count only reflects actual transitions.
func (r *ReviewRepository) BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, mod domain.ModerationUpdate) ([]uuid.UUID, error) {
	query := `
		UPDATE reviews
		SET status = $1, moderated_by = $2, moderated_at = $3,
		    moderation_reason = $4, updated_at = $3
		WHERE id = ANY($5) AND status <> $1
		RETURNING product_id
	`

	var productIDs []uuid.UUID
	err := r.db.SelectContext(ctx, &productIDs, query, mod.Status, mod.ModeratedBy, mod.ModeratedAt, mod.Reason, pq.Array(ids))
	if err != nil {
		return nil, err
	}

	return productIDs, nil
}

// Delete physically removes a review; its votes go with it via ON DELETE CASCADE
func (r *ReviewRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// ApplyVote mutates the voter's helpfulness record and the matching
// counters in one transaction. Each branch is a conditional statement
// keyed on the current vote record, and the counters move with atomic
// column arithmetic, so concurrent votes on the same review cannot lose
// updates and the counters always equal the vote-record counts.
func (r *ReviewRepository) ApplyVote(ctx context.Context, reviewID, userID uuid.UUID, vote domain.VoteValue) (*domain.Review, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	col := voteColumn(vote)
	other := voteColumn(opposite(vote))

	// Same-category revote: retract.
	result, err := tx.ExecContext(ctx,
		`DELETE FROM review_votes WHERE review_id = $1 AND user_id = $2 AND vote = $3`,
		reviewID, userID, vote,
	)
	if err != nil {
		return nil, err
	}
	retracted, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	switch {
	case retracted == 1:
		_, err = tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE reviews SET %s = %s - 1 WHERE id = $1`, col, col),
			reviewID,
		)
		if err != nil {
			return nil, err
		}

	default:
		// Opposite-category vote present: flip it.
		result, err = tx.ExecContext(ctx,
			`UPDATE review_votes SET vote = $3 WHERE review_id = $1 AND user_id = $2`,
			reviewID, userID, vote,
		)
		if err != nil {
			return nil, err
		}
		flipped, err := result.RowsAffected()
		if err != nil {
			return nil, err
		}

		if flipped == 1 {
			_, err = tx.ExecContext(ctx,
				fmt.Sprintf(`UPDATE reviews SET %s = %s + 1, %s = %s - 1 WHERE id = $1`, col, col, other, other),
				reviewID,
			)
			if err != nil {
				return nil, err
			}
		} else {
			// First vote from this user. The unique (review_id, user_id)
			// index turns a concurrent duplicate into a conflict instead
			// of a double count.
			_, err = tx.ExecContext(ctx,
				`INSERT INTO review_votes (review_id, user_id, vote) VALUES ($1, $2, $3)`,
				reviewID, userID, vote,
			)
			if err != nil {
				var pqErr *pq.Error
				if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
					return nil, domain.ErrConflict
				}
				return nil, err
			}

			_, err = tx.ExecContext(ctx,
				fmt.Sprintf(`UPDATE reviews SET %s = %s + 1 WHERE id = $1`, col, col),
				reviewID,
			)
			if err != nil {
				return nil, err
			}
		}
	}

	var review domain.Review
	err = tx.GetContext(ctx, &review, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, reviewID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &review, nil
}

func voteColumn(vote domain.VoteValue) string {
	if vote == domain.VoteHelpful {
		return "helpful_count"
	}
	return "not_helpful_count"
}

func opposite(vote domain.VoteValue) domain.VoteValue {
	if vote == domain.VoteHelpful {
		return domain.VoteNotHelpful
	}
	return domain.VoteHelpful
}

// ExistsByProductAndUser reports whether the user already reviewed the product
func (r *ReviewRepository) ExistsByProductAndUser(ctx context.Context, productID, userID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM reviews WHERE product_id = $1 AND user_id = $2)`

	var exists bool
	err := r.db.GetContext(ctx, &exists, query, productID, userID)
	if err != nil {
		return false, err
	}

	return exists, nil
}

// CountByProductID returns the total number of reviews for a product
func (r *ReviewRepository) CountByProductID(ctx context.Context, productID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM reviews WHERE product_id = $1`

	var count int
	err := r.db.GetContext(ctx, &count, query, productID)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// RatingSummary aggregates approved reviews for a product: per-star counts,
// verified count and the average rounded to one decimal
func (r *ReviewRepository) RatingSummary(ctx context.Context, productID uuid.UUID) (*domain.RatingSummary, error) {
	query := `
		SELECT rating,
		       COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE is_verified_purchase) AS verified
		FROM reviews
		WHERE product_id = $1 AND status = 'approved'
		GROUP BY rating
	`

	rows, err := r.db.QueryxContext(ctx, query, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summary := &domain.RatingSummary{ProductID: productID}
	sum := 0

	for rows.Next() {
		var rating, total, verified int
		if err := rows.Scan(&rating, &total, &verified); err != nil {
			return nil, err
		}
		if rating < 1 || rating > 5 {
			continue
		}
		summary.Distribution[rating-1] = total
		summary.Total += total
		summary.VerifiedCount += verified
		sum += rating * total
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if summary.Total > 0 {
		summary.Average = math.Round(float64(sum)/float64(summary.Total)*10) / 10
	}

	return summary, nil
}

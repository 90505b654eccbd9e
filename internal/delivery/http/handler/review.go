package handler

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/Pesokrava/review_service/internal/delivery/http/middleware"
	"github.com/Pesokrava/review_service/internal/delivery/http/request"
	"github.com/Pesokrava/review_service/internal/delivery/http/response"
	"github.com/Pesokrava/review_service/internal/domain"
	"github.com/Pesokrava/review_service/internal/pkg/logger"
	"github.com/Pesokrava/review_service/internal/usecase/review"
)

// ReviewHandler handles HTTP requests for reviews
type ReviewHandler struct {
	service *review.Service
	logger  *logger.Logger
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(service *review.Service, log *logger.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: service,
		logger:  log,
	}
}

// CreateReviewRequest represents the request body for creating a review
type CreateReviewRequest struct {
	ProductID string   `json:"product_id"`
	Rating    int      `json:"rating"`
	Title     string   `json:"title"`
	Comment   string   `json:"comment"`
	MediaURLs []string `json:"media_urls"`
	OrderID   string   `json:"order_id"`
}

// UpdateReviewRequest represents the request body for updating a review.
// Absent fields are left unchanged.
type UpdateReviewRequest struct {
	Rating    *int     `json:"rating"`
	Title     *string  `json:"title"`
	Comment   *string  `json:"comment"`
	MediaURLs []string `json:"media_urls"`
}

// VoteRequest represents the request body for a helpfulness vote
type VoteRequest struct {
	Vote string `json:"vote"`
}

// ModerateRequest represents the request body for a moderation action
type ModerateRequest struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// BulkModerateRequest represents the request body for bulk moderation
type BulkModerateRequest struct {
	IDs    []string `json:"ids"`
	Action string   `json:"action"`
	Reason string   `json:"reason"`
}

// Create handles POST /api/v1/reviews
// @Summary Create a new review
// @Description Create a review for a product. Verified purchases may be auto-approved; otherwise the review awaits moderation. Publishes a review.created event.
// @Tags Reviews
// @Accept json
// @Produce json
// @Param review body CreateReviewRequest true "Review details"
// @Success 201 {object} map[string]interface{} "Review created successfully"
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 403 {object} map[string]string "Admin conflict of interest or inactive user"
// @Failure 409 {object} map[string]string "Review already exists"
// @Router /reviews [post]
func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	var req CreateReviewRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	created, err := h.service.Create(r.Context(), user, review.CreateInput{
		ProductID: productID,
		Rating:    req.Rating,
		Title:     req.Title,
		Comment:   req.Comment,
		MediaURLs: req.MediaURLs,
		OrderID:   req.OrderID,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}

	response.Created(w, created)
}

// GetByID handles GET /api/v1/reviews/:id
func (h *ReviewHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := request.GetUUIDParam(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid review ID")
		return
	}

	found, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.handleError(w, err)
		return
	}

	response.Success(w, found)
}

// Update handles PUT /api/v1/reviews/:id
// @Summary Update a review
// @Description Update the author's own review. Rating or comment changes reset the status to pending. Publishes a review.updated event carrying the prior rating.
// @Tags Reviews
// @Accept json
// @Produce json
// @Param id path string true "Review ID (UUID)"
// @Param review body UpdateReviewRequest true "Updated review fields"
// @Success 200 {object} map[string]interface{} "Review updated successfully"
// @Failure 403 {object} map[string]string "Not the review author"
// @Failure 404 {object} map[string]string "Review not found"
// @Router /reviews/{id} [put]
func (h *ReviewHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	id, err := request.GetUUIDParam(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid review ID")
		return
	}

	var req UpdateReviewRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := h.service.Update(r.Context(), user, id, review.UpdateInput{
		Rating:    req.Rating,
		Title:     req.Title,
		Comment:   req.Comment,
		MediaURLs: req.MediaURLs,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}

	response.Success(w, updated)
}

// Delete handles DELETE /api/v1/reviews/:id
// @Summary Delete a review
// @Description Remove the author's own review. Publishes a review.deleted event from the pre-deletion snapshot.
// @Tags Reviews
// @Param id path string true "Review ID (UUID)"
// @Success 204 "Review deleted successfully"
// @Failure 403 {object} map[string]string "Not the review author"
// @Failure 404 {object} map[string]string "Review not found"
// @Router /reviews/{id} [delete]
func (h *ReviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	id, err := request.GetUUIDParam(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid review ID")
		return
	}

	if err := h.service.Delete(r.Context(), user, id); err != nil {
		h.handleError(w, err)
		return
	}

	response.NoContent(w)
}

// Vote handles POST /api/v1/reviews/:id/vote
// @Summary Vote on review helpfulness
// @Description Cast, flip or retract a helpfulness vote. Repeating the same vote retracts it; the opposite vote flips it.
// @Tags Reviews
// @Accept json
// @Produce json
// @Param id path string true "Review ID (UUID)"
// @Param vote body VoteRequest true "helpful or not_helpful"
// @Success 200 {object} map[string]interface{} "Review with updated counters"
// @Failure 403 {object} map[string]string "Authors cannot vote on their own reviews"
// @Router /reviews/{id}/vote [post]
func (h *ReviewHandler) Vote(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	id, err := request.GetUUIDParam(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid review ID")
		return
	}

	var req VoteRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := h.service.Vote(r.Context(), user, id, domain.VoteValue(req.Vote))
	if err != nil {
		h.handleError(w, err)
		return
	}

	response.Success(w, updated)
}

// Moderate handles POST /api/v1/reviews/:id/moderate
// @Summary Moderate a review
// @Description Apply approve, reject or hide. Reject and hide require a reason. Approval publishes a review.approved event.
// @Tags Moderation
// @Accept json
// @Produce json
// @Param id path string true "Review ID (UUID)"
// @Param moderation body ModerateRequest true "Action and reason"
// @Success 200 {object} map[string]interface{} "Moderated review"
// @Failure 400 {object} map[string]string "Unknown action or missing reason"
// @Failure 409 {object} map[string]string "Review already in the target status"
// @Router /reviews/{id}/moderate [post]
func (h *ReviewHandler) Moderate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	id, err := request.GetUUIDParam(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid review ID")
		return
	}

	var req ModerateRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	moderated, err := h.service.Moderate(r.Context(), user, id, domain.ModerationAction(req.Action), req.Reason)
	if err != nil {
		h.handleError(w, err)
		return
	}

	response.Success(w, moderated)
}

// BulkModerate handles POST /api/v1/reviews/moderate
// @Summary Bulk moderate reviews
// @Description Apply one moderation action across a list of review ids. Missing ids are reflected in the affected count, not errors.
// @Tags Moderation
// @Accept json
// @Produce json
// @Param moderation body BulkModerateRequest true "Ids, action and reason"
// @Success 200 {object} map[string]interface{} "Affected record count"
// @Router /reviews/moderate [post]
func (h *ReviewHandler) BulkModerate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	var req BulkModerateRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid review ID: "+raw)
			return
		}
		ids = append(ids, id)
	}

	affected, err := h.service.BulkModerate(r.Context(), user, ids, domain.ModerationAction(req.Action), req.Reason)
	if err != nil {
		h.handleError(w, err)
		return
	}

	response.Success(w, map[string]int{"affected": affected})
}

// ListByProduct handles GET /api/v1/products/:id/reviews
// @Summary List a product's reviews
// @Description Paginated approved reviews with optional rating/verified/search filters and sorting. The rating summary always reflects the whole approved population, not the current page.
// @Tags Reviews
// @Produce json
// @Param id path string true "Product ID (UUID)"
// @Param rating query int false "Filter by star rating"
// @Param verified query bool false "Verified purchases only"
// @Param search query string false "Free-text search over title and comment"
// @Param sort query string false "recent, rating or helpfulness" default(recent)
// @Param limit query int false "Page size (max 100)" default(20)
// @Param offset query int false "Items to skip" default(0)
// @Success 200 {object} map[string]interface{} "Page of reviews plus rating summary"
// @Router /products/{id}/reviews [get]
func (h *ReviewHandler) ListByProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := request.GetUUIDParam(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	filter := domain.ReviewFilter{
		VerifiedOnly: request.GetBoolQuery(r, "verified"),
		Search:       request.GetStringQuery(r, "search"),
		SortBy:       domain.SortOrder(request.GetStringQuery(r, "sort")),
	}
	if rating := request.GetIntQuery(r, "rating", 0); rating >= 1 && rating <= 5 {
		filter.Rating = &rating
	}
	filter.Limit, filter.Offset = request.GetPaginationParams(r)

	reviews, total, err := h.service.ListByProduct(r.Context(), productID, filter)
	if err != nil {
		h.handleError(w, err)
		return
	}

	summary, err := h.service.RatingSummary(r.Context(), productID)
	if err != nil {
		h.handleError(w, err)
		return
	}

	response.PaginatedWith(w, reviews, total, filter.Limit, filter.Offset, map[string]interface{}{
		"rating_summary": summary,
	})
}

// ListMine handles GET /api/v1/users/me/reviews
func (h *ReviewHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	limit, offset := request.GetPaginationParams(r)

	reviews, total, err := h.service.ListByUser(r.Context(), user.ID, limit, offset)
	if err != nil {
		h.handleError(w, err)
		return
	}

	response.Paginated(w, reviews, total, limit, offset)
}

// AdminList handles GET /api/v1/admin/reviews
// @Summary List reviews for moderation
// @Description Full-filter listing across all statuses, moderator only.
// @Tags Moderation
// @Produce json
// @Param status query string false "Filter by status"
// @Param rating query int false "Filter by star rating"
// @Param search query string false "Free-text search over title and comment"
// @Success 200 {object} map[string]interface{} "Page of reviews"
// @Router /admin/reviews [get]
func (h *ReviewHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	filter := domain.ReviewFilter{
		VerifiedOnly: request.GetBoolQuery(r, "verified"),
		Search:       request.GetStringQuery(r, "search"),
		SortBy:       domain.SortOrder(request.GetStringQuery(r, "sort")),
	}
	if raw := request.GetStringQuery(r, "status"); raw != "" {
		status := domain.ReviewStatus(raw)
		if !status.Valid() {
			response.Error(w, http.StatusBadRequest, "Invalid status filter")
			return
		}
		filter.Status = &status
	}
	if raw := request.GetStringQuery(r, "product_id"); raw != "" {
		productID, err := uuid.Parse(raw)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid product ID filter")
			return
		}
		filter.ProductID = &productID
	}
	if rating := request.GetIntQuery(r, "rating", 0); rating >= 1 && rating <= 5 {
		filter.Rating = &rating
	}
	filter.Limit, filter.Offset = request.GetPaginationParams(r)

	reviews, total, err := h.service.AdminList(r.Context(), filter)
	if err != nil {
		h.handleError(w, err)
		return
	}

	response.Paginated(w, reviews, total, filter.Limit, filter.Offset)
}

// handleError maps domain errors to HTTP responses, preserving the
// machine-readable code for client-side branching
func (h *ReviewHandler) handleError(w http.ResponseWriter, err error) {
	code := domain.ErrorCode(err)

	switch {
	case errors.Is(err, domain.ErrNotFound):
		response.ErrorCode(w, http.StatusNotFound, code, err.Error())
	case errors.Is(err, domain.ErrConflict):
		response.ErrorCode(w, http.StatusConflict, code, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		response.ErrorCode(w, http.StatusForbidden, code, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		response.ErrorCode(w, http.StatusBadRequest, code, err.Error())
	default:
		h.logger.Error("Internal error in review handler", err)
		response.Error(w, http.StatusInternalServerError, "Internal server error")
	}
}

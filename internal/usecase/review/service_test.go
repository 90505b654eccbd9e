package review

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/Pesokrava/review_service/internal/config"
	"github.com/Pesokrava/review_service/internal/domain"
	"github.com/Pesokrava/review_service/internal/events"
	"github.com/Pesokrava/review_service/internal/pkg/logger"
)

// MockReviewRepository is a mock implementation of domain.ReviewRepository
type MockReviewRepository struct {
	mock.Mock
}

func (m *MockReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *MockReviewRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Review, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *MockReviewRepository) Find(ctx context.Context, filter domain.ReviewFilter) ([]*domain.Review, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*domain.Review), args.Int(1), args.Error(2)
}

func (m *MockReviewRepository) Update(ctx context.Context, review *domain.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *MockReviewRepository) UpdateStatus(ctx context.Context, id uuid.UUID, mod domain.ModerationUpdate) error {
	args := m.Called(ctx, id, mod)
	return args.Error(0)
}

func (m *MockReviewRepository) BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, mod domain.ModerationUpdate) ([]uuid.UUID, error) {
	args := m.Called(ctx, ids, mod)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockReviewRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockReviewRepository) ApplyVote(ctx context.Context, reviewID, userID uuid.UUID, vote domain.VoteValue) (*domain.Review, error) {
	args := m.Called(ctx, reviewID, userID, vote)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *MockReviewRepository) ExistsByProductAndUser(ctx context.Context, productID, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, productID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockReviewRepository) CountByProductID(ctx context.Context, productID uuid.UUID) (int, error) {
	args := m.Called(ctx, productID)
	return args.Int(0), args.Error(1)
}

func (m *MockReviewRepository) RatingSummary(ctx context.Context, productID uuid.UUID) (*domain.RatingSummary, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RatingSummary), args.Error(1)
}

// MockCache is a mock implementation of the usecase Cache
type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetReviewsList(ctx context.Context, productID uuid.UUID, limit, offset int) ([]*domain.Review, int, error) {
	args := m.Called(ctx, productID, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*domain.Review), args.Int(1), args.Error(2)
}

func (m *MockCache) SetReviewsList(ctx context.Context, productID uuid.UUID, limit, offset int, reviews []*domain.Review, total int) error {
	args := m.Called(ctx, productID, limit, offset, reviews, total)
	return args.Error(0)
}

func (m *MockCache) GetRatingSummary(ctx context.Context, productID uuid.UUID) (*domain.RatingSummary, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RatingSummary), args.Error(1)
}

func (m *MockCache) SetRatingSummary(ctx context.Context, productID uuid.UUID, summary *domain.RatingSummary) error {
	args := m.Called(ctx, productID, summary)
	return args.Error(0)
}

func (m *MockCache) InvalidateProduct(ctx context.Context, productID uuid.UUID) error {
	args := m.Called(ctx, productID)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishCreated(ctx context.Context, review *domain.Review, trace events.TraceContext) bool {
	args := m.Called(ctx, review, trace)
	return args.Bool(0)
}

func (m *MockEventPublisher) PublishUpdated(ctx context.Context, review *domain.Review, previousRating int, trace events.TraceContext) bool {
	args := m.Called(ctx, review, previousRating, trace)
	return args.Bool(0)
}

func (m *MockEventPublisher) PublishDeleted(ctx context.Context, review *domain.Review, trace events.TraceContext) bool {
	args := m.Called(ctx, review, trace)
	return args.Bool(0)
}

func (m *MockEventPublisher) PublishApproved(ctx context.Context, review *domain.Review, moderatorID string, trace events.TraceContext) bool {
	args := m.Called(ctx, review, moderatorID, trace)
	return args.Bool(0)
}

// MockProductChecker is a mock implementation of ProductChecker
type MockProductChecker struct {
	mock.Mock
}

func (m *MockProductChecker) ProductExists(ctx context.Context, productID uuid.UUID) (bool, error) {
	args := m.Called(ctx, productID)
	return args.Bool(0), args.Error(1)
}

// MockPurchaseChecker is a mock implementation of PurchaseChecker
type MockPurchaseChecker struct {
	mock.Mock
}

func (m *MockPurchaseChecker) VerifyPurchase(ctx context.Context, userID, productID uuid.UUID, orderID string) (bool, error) {
	args := m.Called(ctx, userID, productID, orderID)
	return args.Bool(0), args.Error(1)
}

type testEnv struct {
	service   *Service
	repo      *MockReviewRepository
	cache     *MockCache
	publisher *MockEventPublisher
	products  *MockProductChecker
	purchases *MockPurchaseChecker
}

func newTestEnv(policy config.PolicyConfig) *testEnv {
	env := &testEnv{
		repo:      new(MockReviewRepository),
		cache:     new(MockCache),
		publisher: new(MockEventPublisher),
		products:  new(MockProductChecker),
		purchases: new(MockPurchaseChecker),
	}
	env.service = NewService(env.repo, env.cache, env.publisher, env.products, env.purchases, policy, logger.New("test"))
	return env
}

func defaultPolicy() config.PolicyConfig {
	return config.PolicyConfig{
		RequirePurchase:      false,
		AutoApproveVerified:  true,
		ModerationRequired:   true,
		MaxReviewsPerProduct: 0,
		EditTimeLimitDays:    0,
	}
}

func shopper() *domain.User {
	return &domain.User{
		ID:       uuid.New(),
		Username: "jane",
		Roles:    []string{"customer"},
		Active:   true,
	}
}

func moderator() *domain.User {
	return &domain.User{
		ID:       uuid.New(),
		Username: "mod",
		Roles:    []string{domain.RoleModerator},
		Active:   true,
	}
}

// waitSignal waits for an async publish to land or fails the test
func waitSignal(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestService_Create_Success(t *testing.T) {
	env := newTestEnv(defaultPolicy())
	user := shopper()
	productID := uuid.New()

	env.repo.On("ExistsByProductAndUser", mock.Anything, productID, user.ID).Return(false, nil)
	env.products.On("ProductExists", mock.Anything, productID).Return(true, nil)
	env.repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Review")).Return(nil)
	env.cache.On("InvalidateProduct", mock.Anything, productID).Return(nil)

	published := make(chan struct{})
	env.publisher.On("PublishCreated", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { close(published) }).Return(true)

	created, err := env.service.Create(context.Background(), user, CreateInput{
		ProductID: productID,
		Rating:    5,
		Title:     "Great",
		Comment:   "Exactly as described",
	})

	assert.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, user.ID, created.UserID)
	assert.Equal(t, domain.StatusPending, created.Status)
	assert.False(t, created.IsVerifiedPurchase)
	assert.Equal(t, user.ID, created.CreatedBy)

	waitSignal(t, published, "created event")
	env.repo.AssertExpectations(t)
	env.cache.AssertExpectations(t)
}

func TestService_Create_VerifiedPurchaseAutoApproved(t *testing.T) {
	env := newTestEnv(defaultPolicy())
	user := shopper()
	productID := uuid.New()

	env.repo.On("ExistsByProductAndUser", mock.Anything, productID, user.ID).Return(false, nil)
	env.products.On("ProductExists", mock.Anything, productID).Return(true, nil)
	env.purchases.On("VerifyPurchase", mock.Anything, user.ID, productID, "order-42").Return(true, nil)
	env.repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Review")).Return(nil)
	env.cache.On("InvalidateProduct", mock.Anything, productID).Return(nil)
	env.publisher.On("PublishCreated", mock.Anything, mock.Anything, mock.Anything).Return(true).Maybe()

	created, err := env.service.Create(context.Background(), user, CreateInput{
		ProductID: productID,
		Rating:    4,
		Comment:   "Solid",
		OrderID:   "order-42",
	})

	assert.NoError(t, err)
	assert.True(t, created.IsVerifiedPurchase)
	assert.Equal(t, domain.StatusApproved, created.Status)
}

func TestService_Create_AdminForbidden(t *testing.T) {
	env := newTestEnv(defaultPolicy())
	admin := &domain.User{ID: uuid.New(), Roles: []string{domain.RoleAdmin}, Active: true}

	_, err := env.service.Create(context.Background(), admin, CreateInput{
		ProductID: uuid.New(),
		Rating:    5,
		Comment:   "Nice",
	})

	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, domain.CodeAdminCannotReview, domain.ErrorCode(err))
	env.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestService_Create_InactiveUser(t *testing.T) {
	env := newTestEnv(defaultPolicy())
	user := shopper()
	user.Active = false

	_, err := env.service.Create(context.Background(), user, CreateInput{
		ProductID: uuid.New(),
		Rating:    3,
		Comment:   "Okay",
	})

	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, domain.CodeUserInactive, domain.ErrorCode(err))
}

func TestService_Create_Duplicate(t *testing.T) {
	env := newTestEnv(defaultPolicy())
	user := shopper()
	productID := uuid.New()

	env.repo.On("ExistsByProductAndUser", mock.Anything, productID, user.ID).Return(true, nil)

	_, err := env.service.Create(context.Background(), user, CreateInput{
		ProductID: productID,
		Rating:    5,
		Comment:   "Again",
	})

	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, domain.CodeReviewExists, domain.ErrorCode(err))
	env.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestService_Create_NoContent(t *testing.T) {
	env := newTestEnv(defaultPolicy())

	_, err := env.service.Create(context.Background(), shopper(), CreateInput{
		ProductID: uuid.New(),
		Rating:    5,
	})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestService_Create_RatingOutOfRange(t *testing.T) {
	env := newTestEnv(defaultPolicy())

	_, err := env.service.Create(context.Background(), shopper(), CreateInput{
		ProductID: uuid.New(),
		Rating:    6,
		Comment:   "Too good",
	})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestService_Create_UnknownProduct(t *testing.T) {
	env := newTestEnv(defaultPolicy())
	user := shopper()
	productID := uuid.New()

	env.repo.On("ExistsByProductAndUser", mock.Anything, productID, user.ID).Return(false, nil)
	env.products.On("ProductExists", mock.Anything, productID).Return(false, nil)

	_, err := env.service.Create(context.Background(), user, CreateInput{
		ProductID: productID,
		Rating:    2,
		Comment:   "Meh",
	})

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, domain.CodeProductNotFound, domain.ErrorCode(err))
}

func TestService_Create_CatalogUnavailableIsPermissive(t *testing.T) {
	env := newTestEnv(defaultPolicy())
	user := shopper()
	productID := uuid.New()

	env.repo.On("ExistsByProductAndUser", mock.Anything, productID, user.ID).Return(false, nil)
	env.products.On("ProductExists", mock.Anything, productID).Return(false, errors.New("connection refused"))
	env.repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Review")).Return(nil)
	env.cache.On("InvalidateProduct", mock.Anything, productID).Return(nil)
	env.publisher.On("PublishCreated", mock.Anything, mock.Anything, mock.Anything).Return(true).Maybe()

	created, err := env.service.Create(context.Background(), user, CreateInput{
		ProductID: productID,
		Rating:    4,
		Comment:   "Fine",
	})

	assert.NoError(t, err)
	assert.NotNil(t, created)
}

func TestService_Create_PurchaseRequired(t *testing.T) {
	policy := defaultPolicy()
	policy.RequirePurchase = true
	env := newTestEnv(policy)
	user := shopper()
	productID := uuid.New()

	env.repo.On("ExistsByProductAndUser", mock.Anything, productID, user.ID).Return(false, nil)
	env.products.On("ProductExists", mock.Anything, productID).Return(true, nil)
	env.purchases.On("VerifyPurchase", mock.Anything, user.ID, productID, "order-1").Return(false, nil)

	_, err := env.service.Create(context.Background(), user, CreateInput{
		ProductID: productID,
		Rating:    1,
		Comment:   "Never bought it",
		OrderID:   "order-1",
	})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, domain.CodePurchaseRequired, domain.ErrorCode(err))
}

func TestService_Create_ReviewLimitReached(t *testing.T) {
	policy := defaultPolicy()
	policy.MaxReviewsPerProduct = 100
	env := newTestEnv(policy)
	user := shopper()
	productID := uuid.New()

	env.repo.On("ExistsByProductAndUser", mock.Anything, productID, user.ID).Return(false, nil)
	env.products.On("ProductExists", mock.Anything, productID).Return(true, nil)
	env.repo.On("CountByProductID", mock.Anything, productID).Return(100, nil)

	_, err := env.service.Create(context.Background(), user, CreateInput{
		ProductID: productID,
		Rating:    5,
		Comment:   "One too many",
	})

	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, domain.CodeReviewLimit, domain.ErrorCode(err))
}

func existingReview(user *domain.User) *domain.Review {
	return &domain.Review{
		ID:        uuid.New(),
		ProductID: uuid.New(),
		UserID:    user.ID,
		Rating:    4,
		Title:     "Good",
		Comment:   "Works well",
		Status:    domain.StatusApproved,
		CreatedAt: time.Now().Add(-24 * time.Hour),
		UpdatedAt: time.Now().Add(-24 * time.Hour),
	}
}

func TestService_Update_NotOwner(t *testing.T) {
	env := newTestEnv(defaultPolicy())
	owner := shopper()
	stranger := shopper()
	review := existingReview(owner)

	env.repo.On("GetByID", mock.Anything, review.ID).Return(review, nil)

	newTitle := "Hijacked"
	_, err := env.service.Update(context.Background(), stranger, review.ID, UpdateInput{Title: &newTitle})

	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, domain.CodeNotOwner, domain.ErrorCode(err))
	env.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestService_Update_RatingChangeResetsStatus(t *testing.T) {
	env := newTestEnv(defaultPolicy())
	user := shopper()
	review := existingReview(user)

	env.repo.On("GetByID", mock.Anything, review.ID).Return(review, nil)
	env.repo.On("Update", mock.Anything, mock.AnythingOfType("*domain.Review")).Return(nil)
	env.cache.On("InvalidateProduct", mock.Anything, review.ProductID).Return(nil)

	published := make(chan struct{})
	env.publisher.On("PublishUpdated", mock.Anything, mock.Anything, 4, mock.Anything).
		Run(func(mock.Arguments) { close(published) }).Return(true)

	newRating := 2
	updated, err := env.service.Update(context.Background(), user, review.ID, UpdateInput{Rating: &newRating})

	assert.NoError(t, err)
	assert.Equal(t, 2, updated.Rating)
	assert.Equal(t, domain.StatusPending, updated.Status)

	waitSignal(t, published, "updated event")
	env.publisher.AssertExpectations(t)
}

func TestService_Update_TitleOnlyKeepsStatus(t *testing.T) {
	env := newTestEnv(defaultPolicy())
	user := shopper()
	review := existingReview(user)

	env.repo.On("GetByID", mock.Anything, review.ID).Return(review, nil)
	env.repo.On("Update", mock.Anything, mock.AnythingOfType("*domain.Review")).Return(nil)
	env.cache.On("InvalidateProduct", mock.Anything, review.ProductID).Return(nil)
	env.publisher.On("PublishUpdated", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(true).Maybe()

	newTitle := "Still good"
	updated, err := env.service.Update(context.Background(), user, review.ID, UpdateInput{Title: &newTitle})

	assert.NoError(t, err)
	assert.Equal(t, "Still good", updated.Title)
	assert.Equal(t, domain.StatusApproved, updated.Status)
}

func TestService_Update_EditWindowExpired(t *testing.T) {
	policy := defaultPolicy()
	policy.EditTimeLimitDays = 7
	env := newTestEnv(policy)
	user := shopper()
	review := existingReview(user)
	review.CreatedAt = time.Now().Add(-8 * 24 * time.Hour)

	env.repo.On("GetByID", mock.Anything, review.ID).Return(review, nil)

	newComment := "Too late"
	_, err := env.service.Update(context.Background(), user, review.ID, UpdateInput{Comment: &newComment})

	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, domain.CodeEditWindowExpired, domain.ErrorCode(err))
}

func TestService_Delete_Success(t *testing.T) {
	env := newTestEnv(defaultPolicy())
	user := shopper()
	review := existingReview(user)

	env.repo.On("GetByID", mock.Anything, review.ID).Return(review, nil)
	env.repo.On("Delete", mock.Anything, review.ID).Return(nil)
	env.cache.On("InvalidateProduct", mock.Anything, review.ProductID).Return(nil)

	published := make(chan struct{})
	env.publisher.On("PublishDeleted", mock.Anything, review, mock.Anything).
		Run(func(mock.Arguments) { close(published) }).Return(true)

	err := env.service.Delete(context.Background(), user, review.ID)

	assert.NoError(t, err)
	waitSignal(t, published, "deleted event")
	env.repo.AssertExpectations(t)
}

func TestService_Delete_NotFound(t *testing.T) {
	env := newTestEnv(defaultPolicy())
	id := uuid.New()

	env.repo.On("GetByID", mock.Anything, id).Return(nil, domain.ErrNotFound)

	err := env.service.Delete(context.Background(), shopper(), id)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_Vote_OwnReviewForbidden(t *testing.T) {
	env := newTestEnv(defaultPolicy())
	user := shopper()
	review := existingReview(user)

	env.repo.On("GetByID", mock.Anything, review.ID).Return(review, nil)

	_, err := env.service.Vote(context.Background(), user, review.ID, domain.VoteHelpful)

	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, domain.CodeCannotVoteOwn, domain.ErrorCode(err))
	env.repo.AssertNotCalled(t, "ApplyVote", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Vote_InvalidValue(t *testing.T) {
	env := newTestEnv(defaultPolicy())

	_, err := env.service.Vote(context.Background(), shopper(), uuid.New(), domain.VoteValue("maybe"))

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, domain.CodeInvalidVote, domain.ErrorCode(err))
}

func TestService_Vote_Success(t *testing.T) {
	env := newTestEnv(defaultPolicy())
	owner := shopper()
	voter := shopper()
	review := existingReview(owner)

	counted := *review
	counted.HelpfulCount = 1

	env.repo.On("GetByID", mock.Anything, review.ID).Return(review, nil)
	env.repo.On("ApplyVote", mock.Anything, review.ID, voter.ID, domain.VoteHelpful).Return(&counted, nil)
	env.cache.On("InvalidateProduct", mock.Anything, review.ProductID).Return(nil)

	updated, err := env.service.Vote(context.Background(), voter, review.ID, domain.VoteHelpful)

	assert.NoError(t, err)
	assert.Equal(t, 1, updated.HelpfulCount)
	env.repo.AssertExpectations(t)
}

func TestService_Moderate_NotModerator(t *testing.T) {
	env := newTestEnv(defaultPolicy())

	_, err := env.service.Moderate(context.Background(), shopper(), uuid.New(), domain.ActionApprove, "")

	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, domain.CodeNotModerator, domain.ErrorCode(err))
}

func TestService_Moderate_UnknownAction(t *testing.T) {
	env := newTestEnv(defaultPolicy())

	_, err := env.service.Moderate(context.Background(), moderator(), uuid.New(), domain.ModerationAction("escalate"), "")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, domain.CodeInvalidAction, domain.ErrorCode(err))
}

func TestService_Moderate_ReasonRequired(t *testing.T) {
	env := newTestEnv(defaultPolicy())

	_, err := env.service.Moderate(context.Background(), moderator(), uuid.New(), domain.ActionReject, "   ")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, domain.CodeReasonRequired, domain.ErrorCode(err))
}

func TestService_Moderate_StatusUnchanged(t *testing.T) {
	env := newTestEnv(defaultPolicy())
	mod := moderator()
	review := existingReview(shopper())
	review.Status = domain.StatusApproved

	env.repo.On("GetByID", mock.Anything, review.ID).Return(review, nil)

	_, err := env.service.Moderate(context.Background(), mod, review.ID, domain.ActionApprove, "")

	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, domain.CodeStatusUnchanged, domain.ErrorCode(err))
	env.repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Moderate_ApprovePublishesEvent(t *testing.T) {
	env := newTestEnv(defaultPolicy())
	mod := moderator()
	review := existingReview(shopper())
	review.Status = domain.StatusPending

	env.repo.On("GetByID", mock.Anything, review.ID).Return(review, nil)
	env.repo.On("UpdateStatus", mock.Anything, review.ID, mock.AnythingOfType("domain.ModerationUpdate")).Return(nil)
	env.cache.On("InvalidateProduct", mock.Anything, review.ProductID).Return(nil)

	published := make(chan struct{})
	env.publisher.On("PublishApproved", mock.Anything, mock.Anything, mod.ID.String(), mock.Anything).
		Run(func(mock.Arguments) { close(published) }).Return(true)

	moderated, err := env.service.Moderate(context.Background(), mod, review.ID, domain.ActionApprove, "")

	assert.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, moderated.Status)
	assert.Equal(t, &mod.ID, moderated.ModeratedBy)

	waitSignal(t, published, "approved event")
	env.publisher.AssertExpectations(t)
}

func TestService_Moderate_RejectDoesNotPublish(t *testing.T) {
	env := newTestEnv(defaultPolicy())
	mod := moderator()
	review := existingReview(shopper())
	review.Status = domain.StatusPending

	env.repo.On("GetByID", mock.Anything, review.ID).Return(review, nil)
	env.repo.On("UpdateStatus", mock.Anything, review.ID, mock.AnythingOfType("domain.ModerationUpdate")).Return(nil)
	env.cache.On("InvalidateProduct", mock.Anything, review.ProductID).Return(nil)

	moderated, err := env.service.Moderate(context.Background(), mod, review.ID, domain.ActionReject, "spam")

	assert.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, moderated.Status)
	assert.Equal(t, "spam", moderated.ModerationReason)
	env.publisher.AssertNotCalled(t, "PublishApproved", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_BulkModerate_CountsAffected(t *testing.T) {
	env := newTestEnv(defaultPolicy())
	mod := moderator()
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	productA := uuid.New()
	productB := uuid.New()

	// Two records share a product; one requested id matched nothing.
	env.repo.On("BulkUpdateStatus", mock.Anything, ids, mock.AnythingOfType("domain.ModerationUpdate")).
		Return([]uuid.UUID{productA, productA}, nil)
	env.cache.On("InvalidateProduct", mock.Anything, productA).Return(nil).Once()

	affected, err := env.service.BulkModerate(context.Background(), mod, ids, domain.ActionHide, "policy violation")

	assert.NoError(t, err)
	assert.Equal(t, 2, affected)
	env.cache.AssertExpectations(t)
	env.cache.AssertNotCalled(t, "InvalidateProduct", mock.Anything, productB)
}

func TestService_BulkModerate_EmptyIDs(t *testing.T) {
	env := newTestEnv(defaultPolicy())

	affected, err := env.service.BulkModerate(context.Background(), moderator(), nil, domain.ActionApprove, "")

	assert.NoError(t, err)
	assert.Equal(t, 0, affected)
	env.repo.AssertNotCalled(t, "BulkUpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_ListByProduct_CacheHit(t *testing.T) {
	env := newTestEnv(defaultPolicy())
	productID := uuid.New()
	cached := []*domain.Review{existingReview(shopper())}

	env.cache.On("GetReviewsList", mock.Anything, productID, 20, 0).Return(cached, 1, nil)

	reviews, total, err := env.service.ListByProduct(context.Background(), productID, domain.ReviewFilter{})

	assert.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, reviews, 1)
	env.repo.AssertNotCalled(t, "Find", mock.Anything, mock.Anything)
}

func TestService_ListByProduct_CacheMissStoresPage(t *testing.T) {
	env := newTestEnv(defaultPolicy())
	productID := uuid.New()
	stored := []*domain.Review{existingReview(shopper())}

	env.cache.On("GetReviewsList", mock.Anything, productID, 20, 0).Return(nil, 0, errors.New("cache miss"))
	env.repo.On("Find", mock.Anything, mock.AnythingOfType("domain.ReviewFilter")).Return(stored, 7, nil)
	env.cache.On("SetReviewsList", mock.Anything, productID, 20, 0, stored, 7).Return(nil)

	reviews, total, err := env.service.ListByProduct(context.Background(), productID, domain.ReviewFilter{})

	assert.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.Len(t, reviews, 1)
	env.cache.AssertExpectations(t)
}

func TestService_ListByProduct_FilteredSkipsCache(t *testing.T) {
	env := newTestEnv(defaultPolicy())
	productID := uuid.New()
	rating := 5

	env.repo.On("Find", mock.Anything, mock.MatchedBy(func(f domain.ReviewFilter) bool {
		return f.Rating != nil && *f.Rating == 5 && f.Status != nil && *f.Status == domain.StatusApproved
	})).Return([]*domain.Review{}, 0, nil)

	_, _, err := env.service.ListByProduct(context.Background(), productID, domain.ReviewFilter{Rating: &rating})

	assert.NoError(t, err)
	env.cache.AssertNotCalled(t, "GetReviewsList", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_RatingSummary_CacheMiss(t *testing.T) {
	env := newTestEnv(defaultPolicy())
	productID := uuid.New()
	summary := &domain.RatingSummary{
		ProductID:    productID,
		Average:      4.3,
		Total:        12,
		Distribution: [5]int{0, 1, 2, 3, 6},
	}

	env.cache.On("GetRatingSummary", mock.Anything, productID).Return(nil, errors.New("cache miss"))
	env.repo.On("RatingSummary", mock.Anything, productID).Return(summary, nil)
	env.cache.On("SetRatingSummary", mock.Anything, productID, summary).Return(nil)

	got, err := env.service.RatingSummary(context.Background(), productID)

	assert.NoError(t, err)
	assert.Equal(t, 4.3, got.Average)
	env.cache.AssertExpectations(t)
}

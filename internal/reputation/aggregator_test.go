package reputation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"feastq/internal/constants"
	"feastq/internal/db"
	"feastq/internal/models"
)

const ownerID = "owner-1"

func newTestAggregator(t *testing.T) (*Aggregator, *db.MemoryStore) {
	t.Helper()
	store := db.NewMemoryStore()
	store.AddMenu(models.Menu{ID: menuA, OwnerID: ownerID, Name: "Банкетное меню"})
	return NewAggregator(store, store, nil), store
}

func addReview(t *testing.T, store *db.MemoryStore, review models.Review) string {
	t.Helper()
	id, err := store.AddReview(review)
	require.NoError(t, err)
	return id
}

func TestComputeStats_MatchesPureComputation(t *testing.T) {
	agg, store := newTestAggregator(t)
	var all []models.Review
	for _, r := range []models.Review{
		{MenuID: menuA, Rating: 5, Status: constants.REVIEW_STATUS_APPROVED, Response: models.NewNullString("Спасибо")},
		{MenuID: menuA, Rating: 4, Status: constants.REVIEW_STATUS_APPROVED},
		{MenuID: menuA, Rating: 2, Status: constants.REVIEW_STATUS_PENDING, Response: models.NewNullString("Жаль")},
		{MenuID: menuA, Rating: 1, Status: constants.REVIEW_STATUS_REJECTED},
	} {
		addReview(t, store, r)
		all = append(all, r)
	}

	for _, scope := range []Scope{ScopeAll, ScopeApprovedOnly} {
		got, err := agg.ComputeStats(context.Background(), menuA, scope)
		require.NoError(t, err)
		assert.Equal(t, Compute(all, menuA, scope), got, scope)
	}
}

func TestComputeStats_EmptyMenu(t *testing.T) {
	agg, _ := newTestAggregator(t)
	stats, err := agg.ComputeStats(context.Background(), menuA, ScopeAll)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalReviews)
	assert.Len(t, stats.RatingDistribution, 5)
}

type failingStore struct {
	*db.MemoryStore
	err error
}

func (f failingStore) RatingCounts(context.Context, string, bool) (map[int]int, error) {
	return nil, f.err
}

type skewedStore struct {
	*db.MemoryStore
}

func (skewedStore) CountAndAverageRating(context.Context, string, bool) (int, float64, error) {
	return 2, 6, nil
}

func (skewedStore) RatingCounts(context.Context, string, bool) (map[int]int, error) {
	return map[int]int{5: 1, 7: 1}, nil
}

func TestComputeStats_WarnsOnRatingOutOfRange(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	store := skewedStore{MemoryStore: db.NewMemoryStore()}
	agg := NewAggregator(store, store, zap.New(core).Sugar())

	stats, err := agg.ComputeStats(context.Background(), menuA, ScopeAll)
	require.NoError(t, err)
	assert.Equal(t, 1, sumDistribution(stats.RatingDistribution))

	entries := logs.FilterField(zap.Int("rating", 7)).All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
}

func TestComputeStats_QueryError(t *testing.T) {
	boom := errors.New("connection reset")
	store := failingStore{MemoryStore: db.NewMemoryStore(), err: boom}
	agg := NewAggregator(store, store, nil)

	_, err := agg.ComputeStats(context.Background(), menuA, ScopeAll)
	assert.ErrorIs(t, err, boom)
}

func TestOwnerStats_Authorization(t *testing.T) {
	agg, store := newTestAggregator(t)
	addReview(t, store, models.Review{MenuID: menuA, Rating: 5})
	ctx := context.Background()

	stats, err := agg.OwnerStats(ctx, menuA, ownerID, ScopeAll)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalReviews)

	_, err = agg.OwnerStats(ctx, menuA, "someone-else", ScopeAll)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	_, err = agg.OwnerStats(ctx, "9b2e0c55-1111-4a2b-8c3d-000000000000", ownerID, ScopeAll)
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestListReviews(t *testing.T) {
	agg, store := newTestAggregator(t)
	ctx := context.Background()

	reviews, err := agg.ListReviews(ctx, menuA, ownerID, ScopeAll)
	require.NoError(t, err)
	assert.NotNil(t, reviews)
	assert.Empty(t, reviews)

	addReview(t, store, models.Review{MenuID: menuA, Rating: 3, Status: constants.REVIEW_STATUS_PENDING})
	addReview(t, store, models.Review{MenuID: menuA, Rating: 4, Status: constants.REVIEW_STATUS_APPROVED})

	reviews, err = agg.ListReviews(ctx, menuA, ownerID, ScopeApprovedOnly)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, 4, reviews[0].Rating)
}

func TestRespondToReview(t *testing.T) {
	agg, store := newTestAggregator(t)
	ctx := context.Background()
	id := addReview(t, store, models.Review{MenuID: menuA, Rating: 2})

	require.NoError(t, agg.RespondToReview(ctx, menuA, id, ownerID, "  Исправимся  "))
	reviews, err := store.ListReviews(ctx, menuA, false)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, "Исправимся", reviews[0].Response.String)

	assert.ErrorIs(t, agg.RespondToReview(ctx, menuA, id, ownerID, "   "), ErrInvalidResponse)
	long := strings.Repeat("я", constants.MAX_REVIEW_RESPONSE_LENGTH+1)
	assert.ErrorIs(t, agg.RespondToReview(ctx, menuA, id, ownerID, long), ErrInvalidResponse)
	assert.ErrorIs(t, agg.RespondToReview(ctx, menuA, "missing", ownerID, "ok"), ErrReviewNotFound)
	assert.ErrorIs(t, agg.RespondToReview(ctx, menuA, id, "intruder", "ok"), ErrNotAuthorized)
}

func TestModerateReview(t *testing.T) {
	agg, store := newTestAggregator(t)
	ctx := context.Background()
	id := addReview(t, store, models.Review{MenuID: menuA, Rating: 5})

	require.NoError(t, agg.ModerateReview(ctx, menuA, id, ownerID, constants.REVIEW_STATUS_APPROVED))
	stats, err := agg.ComputeStats(ctx, menuA, ScopeApprovedOnly)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalReviews)

	assert.ErrorIs(t, agg.ModerateReview(ctx, menuA, id, ownerID, "hidden"), ErrInvalidStatus)
	assert.ErrorIs(t, agg.ModerateReview(ctx, menuA, "missing", ownerID, constants.REVIEW_STATUS_REJECTED), ErrReviewNotFound)
}

func TestPublicStats_ApprovedOnly(t *testing.T) {
	agg, store := newTestAggregator(t)
	ctx := context.Background()
	addReview(t, store, models.Review{MenuID: menuA, Rating: 5, Status: constants.REVIEW_STATUS_APPROVED})
	addReview(t, store, models.Review{MenuID: menuA, Rating: 1, Status: constants.REVIEW_STATUS_PENDING})

	stats, err := agg.PublicStats(ctx, menuA)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalReviews)
	assert.Equal(t, 5.0, stats.AvgRating)

	_, err = agg.PublicStats(ctx, "9b2e0c55-1111-4a2b-8c3d-000000000000")
	assert.ErrorIs(t, err, ErrMenuNotFound)
}

package reputation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"feastq/internal/constants"
	"feastq/internal/db"
	"feastq/internal/models"
)

var (
	ErrNotAuthorized   = errors.New("меню не найдено или принадлежит другому пользователю")
	ErrMenuNotFound    = errors.New("меню не найдено")
	ErrInvalidScope    = errors.New("неверная область отзывов")
	ErrReviewNotFound  = errors.New("отзыв не найден")
	ErrInvalidResponse = errors.New("недопустимый ответ на отзыв")
	ErrInvalidStatus   = errors.New("недопустимый статус отзыва")
)

// ReviewStore - агрегатные запросы к отзывам.
type ReviewStore interface {
	CountAndAverageRating(ctx context.Context, menuID string, approvedOnly bool) (int, float64, error)
	RatingCounts(ctx context.Context, menuID string, approvedOnly bool) (map[int]int, error)
	CountResponded(ctx context.Context, menuID string, approvedOnly bool) (int, error)
	ListReviews(ctx context.Context, menuID string, approvedOnly bool) ([]models.Review, error)
	SetReviewResponse(ctx context.Context, menuID, reviewID, response string) error
	SetReviewStatus(ctx context.Context, menuID, reviewID, status string) error
}

// MenuStore отдает владельца меню.
type MenuStore interface {
	MenuOwner(ctx context.Context, menuID string) (string, error)
}

// Aggregator считает репутацию меню. Проверку владельца делают методы Owner*.
type Aggregator struct {
	reviews ReviewStore
	menus   MenuStore
	log     *zap.SugaredLogger
}

func NewAggregator(reviews ReviewStore, menus MenuStore, logger *zap.SugaredLogger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Aggregator{reviews: reviews, menus: menus, log: logger}
}

// ComputeStats выполняет три независимых агрегатных запроса параллельно.
// Снимок не атомарен: при одновременной записи агрегаты могут разойтись.
func (a *Aggregator) ComputeStats(ctx context.Context, menuID string, scope Scope) (models.ReputationStats, error) {
	approvedOnly := scope.approvedOnly()

	var (
		total     int
		avg       float64
		counts    map[int]int
		responded int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, avg, err = a.reviews.CountAndAverageRating(gctx, menuID, approvedOnly)
		return err
	})
	g.Go(func() error {
		var err error
		counts, err = a.reviews.RatingCounts(gctx, menuID, approvedOnly)
		return err
	})
	g.Go(func() error {
		var err error
		responded, err = a.reviews.CountResponded(gctx, menuID, approvedOnly)
		return err
	})
	if err := g.Wait(); err != nil {
		a.log.Errorw("Ошибка расчета репутации", "menuId", menuID, "scope", scope, "error", err)
		return models.ReputationStats{}, fmt.Errorf("reputation stats: %w", err)
	}

	for star, n := range counts {
		if star < 1 || star > 5 {
			a.log.Warnw("Оценка вне диапазона 1..5 не попадет в распределение",
				"menuId", menuID, "rating", star, "count", n)
		}
	}
	return Compose(total, avg, counts, responded), nil
}

// authorize проверяет, что меню принадлежит пользователю.
// Отсутствующее и чужое меню не различаются.
func (a *Aggregator) authorize(ctx context.Context, menuID, userID string) error {
	owner, err := a.menus.MenuOwner(ctx, menuID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrNotAuthorized
		}
		return err
	}
	if owner != userID {
		a.log.Warnw("Попытка доступа к чужому меню", "menuId", menuID, "userId", userID)
		return ErrNotAuthorized
	}
	return nil
}

// OwnerStats - статистика для владельца меню.
func (a *Aggregator) OwnerStats(ctx context.Context, menuID, userID string, scope Scope) (models.ReputationStats, error) {
	if err := a.authorize(ctx, menuID, userID); err != nil {
		return models.ReputationStats{}, err
	}
	return a.ComputeStats(ctx, menuID, scope)
}

// PublicStats - статистика по одобренным отзывам для публичной страницы меню.
func (a *Aggregator) PublicStats(ctx context.Context, menuID string) (models.ReputationStats, error) {
	if _, err := a.menus.MenuOwner(ctx, menuID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return models.ReputationStats{}, ErrMenuNotFound
		}
		return models.ReputationStats{}, err
	}
	return a.ComputeStats(ctx, menuID, ScopeApprovedOnly)
}

// ListReviews возвращает отзывы меню владельцу, новые первыми.
func (a *Aggregator) ListReviews(ctx context.Context, menuID, userID string, scope Scope) ([]models.Review, error) {
	if err := a.authorize(ctx, menuID, userID); err != nil {
		return nil, err
	}
	reviews, err := a.reviews.ListReviews(ctx, menuID, scope.approvedOnly())
	if err != nil {
		return nil, err
	}
	if reviews == nil {
		reviews = []models.Review{}
	}
	return reviews, nil
}

// RespondToReview сохраняет ответ владельца на отзыв.
func (a *Aggregator) RespondToReview(ctx context.Context, menuID, reviewID, userID, response string) error {
	response = strings.TrimSpace(response)
	if response == "" || len([]rune(response)) > constants.MAX_REVIEW_RESPONSE_LENGTH {
		return ErrInvalidResponse
	}
	if err := a.authorize(ctx, menuID, userID); err != nil {
		return err
	}
	if err := a.reviews.SetReviewResponse(ctx, menuID, reviewID, response); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrReviewNotFound
		}
		return err
	}
	a.log.Infow("Добавлен ответ на отзыв", "menuId", menuID, "reviewId", reviewID)
	return nil
}

// ModerateReview меняет статус модерации отзыва.
func (a *Aggregator) ModerateReview(ctx context.Context, menuID, reviewID, userID, status string) error {
	switch status {
	case constants.REVIEW_STATUS_PENDING, constants.REVIEW_STATUS_APPROVED, constants.REVIEW_STATUS_REJECTED:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if err := a.authorize(ctx, menuID, userID); err != nil {
		return err
	}
	if err := a.reviews.SetReviewStatus(ctx, menuID, reviewID, status); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrReviewNotFound
		}
		return err
	}
	a.log.Infow("Статус отзыва изменен", "menuId", menuID, "reviewId", reviewID, "status", status)
	return nil
}

package db

import (
	"context"
	"database/sql"
	"fmt"

	"feastq/internal/constants"
	"feastq/internal/models"
)

// reviewScope возвращает условие WHERE для отзывов меню ($1 - menu_id).
func reviewScope(approvedOnly bool) string {
	if approvedOnly {
		return `menu_id = $1 AND status = '` + constants.REVIEW_STATUS_APPROVED + `'`
	}
	return `menu_id = $1`
}

// MenuOwner возвращает владельца меню.
func (s *Store) MenuOwner(ctx context.Context, menuID string) (string, error) {
	var ownerID string
	err := s.conn.QueryRowContext(ctx, `SELECT owner_id FROM menus WHERE id = $1`, menuID).Scan(&ownerID)
	if err != nil && err != sql.ErrNoRows {
		s.log.Errorf("MenuOwner: ошибка получения владельца меню %s: %v", menuID, err)
	}
	return ownerID, translateError(err)
}

// CountAndAverageRating возвращает число отзывов и средний рейтинг (0 если отзывов нет).
func (s *Store) CountAndAverageRating(ctx context.Context, menuID string, approvedOnly bool) (int, float64, error) {
	var count int
	var avg float64
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(rating), 0)::float8 FROM reviews WHERE `+reviewScope(approvedOnly),
		menuID,
	).Scan(&count, &avg)
	if err != nil {
		s.log.Errorf("CountAndAverageRating: ошибка агрегации для меню %s: %v", menuID, err)
		return 0, 0, err
	}
	return count, avg, nil
}

// RatingCounts возвращает число отзывов по каждой оценке; отсутствующие оценки не включаются.
func (s *Store) RatingCounts(ctx context.Context, menuID string, approvedOnly bool) (map[int]int, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT rating, COUNT(*) FROM reviews WHERE `+reviewScope(approvedOnly)+` GROUP BY rating`,
		menuID,
	)
	if err != nil {
		s.log.Errorf("RatingCounts: ошибка группировки для меню %s: %v", menuID, err)
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var rating, count int
		if err := rows.Scan(&rating, &count); err != nil {
			return nil, fmt.Errorf("ошибка сканирования группы рейтинга: %w", err)
		}
		counts[rating] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// CountResponded возвращает число отзывов с ответом владельца.
func (s *Store) CountResponded(ctx context.Context, menuID string, approvedOnly bool) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reviews WHERE `+reviewScope(approvedOnly)+` AND response IS NOT NULL`,
		menuID,
	).Scan(&count)
	if err != nil {
		s.log.Errorf("CountResponded: ошибка подсчета ответов для меню %s: %v", menuID, err)
		return 0, err
	}
	return count, nil
}

// ListReviews возвращает отзывы меню, новые первыми.
func (s *Store) ListReviews(ctx context.Context, menuID string, approvedOnly bool) ([]models.Review, error) {
	rows, err := s.conn.QueryContext(ctx, `
        SELECT id, menu_id, rating, status, comment, response, created_at
        FROM reviews
        WHERE `+reviewScope(approvedOnly)+`
        ORDER BY created_at DESC`, menuID)
	if err != nil {
		s.log.Errorf("ListReviews: ошибка получения отзывов для меню %s: %v", menuID, err)
		return nil, err
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		var r models.Review
		if err := rows.Scan(&r.ID, &r.MenuID, &r.Rating, &r.Status, &r.Comment.NullString, &r.Response.NullString, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования отзыва: %w", err)
		}
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reviews, nil
}

// SetReviewResponse записывает ответ владельца на отзыв.
func (s *Store) SetReviewResponse(ctx context.Context, menuID, reviewID, response string) error {
	return s.updateReview(ctx, `UPDATE reviews SET response = $1 WHERE id = $2 AND menu_id = $3`, response, reviewID, menuID)
}

// SetReviewStatus меняет статус модерации отзыва.
func (s *Store) SetReviewStatus(ctx context.Context, menuID, reviewID, status string) error {
	return s.updateReview(ctx, `UPDATE reviews SET status = $1 WHERE id = $2 AND menu_id = $3`, status, reviewID, menuID)
}

func (s *Store) updateReview(ctx context.Context, query, value, reviewID, menuID string) error {
	result, err := s.conn.ExecContext(ctx, query, value, reviewID, menuID)
	if err != nil {
		s.log.Errorf("updateReview: ошибка обновления отзыва %s: %v", reviewID, err)
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

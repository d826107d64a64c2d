package reputation

import (
	"fmt"
	"math"

	"feastq/internal/constants"
	"feastq/internal/models"
)

// Scope - какие отзывы учитываются в статистике.
type Scope string

const (
	ScopeAll          Scope = "all"
	ScopeApprovedOnly Scope = "approvedOnly"
)

// ParseScope разбирает значение параметра запроса. Пустое значение означает def.
func ParseScope(raw string, def Scope) (Scope, error) {
	switch Scope(raw) {
	case "":
		return def, nil
	case ScopeAll, ScopeApprovedOnly:
		return Scope(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidScope, raw)
}

func (s Scope) approvedOnly() bool { return s == ScopeApprovedOnly }

// Filter оставляет отзывы меню, попадающие в scope.
func Filter(reviews []models.Review, menuID string, scope Scope) []models.Review {
	out := make([]models.Review, 0, len(reviews))
	for _, r := range reviews {
		if r.MenuID != menuID {
			continue
		}
		if scope.approvedOnly() && r.Status != constants.REVIEW_STATUS_APPROVED {
			continue
		}
		out = append(out, r)
	}
	return out
}

// CountAndAverage возвращает количество отзывов и средний рейтинг (0 для пустого набора).
func CountAndAverage(reviews []models.Review) (int, float64) {
	if len(reviews) == 0 {
		return 0, 0
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return len(reviews), float64(sum) / float64(len(reviews))
}

// RatingDistribution считает отзывы по звездам 1..5.
func RatingDistribution(reviews []models.Review) map[int]int {
	counts := make(map[int]int, 5)
	for _, r := range reviews {
		counts[r.Rating]++
	}
	return counts
}

// RespondedCount - число отзывов с ответом владельца.
func RespondedCount(reviews []models.Review) int {
	n := 0
	for _, r := range reviews {
		if r.Response.Valid {
			n++
		}
	}
	return n
}

// Compose собирает итоговую статистику из трех агрегатов.
// Распределение всегда содержит ровно ключи 1..5, значения вне диапазона отбрасываются.
func Compose(total int, avg float64, counts map[int]int, responded int) models.ReputationStats {
	dist := make(map[int]int, 5)
	for star := 1; star <= 5; star++ {
		dist[star] = counts[star]
	}

	stats := models.ReputationStats{
		TotalReviews:           total,
		RatingDistribution:     dist,
		PositiveSentimentProxy: dist[4] + dist[5],
	}
	if total == 0 {
		return stats
	}
	stats.AvgRating = avg
	stats.ResponseRate = int(math.Round(100 * float64(responded) / float64(total)))
	return stats
}

// Compute считает статистику меню по набору отзывов в памяти.
func Compute(reviews []models.Review, menuID string, scope Scope) models.ReputationStats {
	inScope := Filter(reviews, menuID, scope)
	total, avg := CountAndAverage(inScope)
	return Compose(total, avg, RatingDistribution(inScope), RespondedCount(inScope))
}

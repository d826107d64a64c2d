package models

import "time"

// Review - отзыв о меню. Модуль репутации только читает отзывы,
// жизненный цикл отзывов принадлежит внешней системе.
type Review struct {
	ID        string     `json:"id"`
	MenuID    string     `json:"menuId"`
	Rating    int        `json:"rating"` // 1..5
	Status    string     `json:"status"` // pending, approved, rejected
	Comment   NullString `json:"comment"`
	Response  NullString `json:"response"` // ответ владельца, null если нет
	CreatedAt time.Time  `json:"createdAt"`
}

// Menu - минимальное представление меню, нужное для проверки владельца.
type Menu struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReputationStats - сводные показатели репутации меню.
type ReputationStats struct {
	TotalReviews           int         `json:"totalReviews"`
	AvgRating              float64     `json:"avgRating"`
	RatingDistribution     map[int]int `json:"ratingDistribution"` // всегда ровно 5 ключей 1..5
	PositiveSentimentProxy int         `json:"positiveSentimentProxy"`
	ResponseRate           int         `json:"responseRate"` // проценты 0..100
}

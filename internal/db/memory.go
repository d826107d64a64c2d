package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"feastq/internal/constants"
	"feastq/internal/models"
)

// MemoryStore - хранилище в памяти процесса с теми же ограничениями
// уникальности, что и схема PostgreSQL. Используется без DATABASE_URL.
type MemoryStore struct {
	mu        sync.RWMutex
	referrals []models.Referral
	menus     map[string]models.Menu
	reviews   []models.Review
}

// NewMemoryStore создает пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{menus: make(map[string]models.Menu)}
}

// AddMenu добавляет меню.
func (m *MemoryStore) AddMenu(menu models.Menu) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if menu.CreatedAt.IsZero() {
		menu.CreatedAt = time.Now().UTC()
	}
	m.menus[menu.ID] = menu
}

// AddReview добавляет отзыв и возвращает его ID.
// Оценка проверяется так же, как CHECK в таблице reviews.
func (m *MemoryStore) AddReview(review models.Review) (string, error) {
	if review.Rating < 1 || review.Rating > 5 {
		return "", ErrInvalidRating
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	if review.Status == "" {
		review.Status = constants.REVIEW_STATUS_PENDING
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}
	m.reviews = append(m.reviews, review)
	return review.ID, nil
}

func (m *MemoryStore) FindCodeByReferrer(_ context.Context, referrerID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found *models.Referral
	for i := range m.referrals {
		r := &m.referrals[i]
		if r.ReferrerID == referrerID && (found == nil || r.CreatedAt.Before(found.CreatedAt)) {
			found = r
		}
	}
	if found == nil {
		return "", ErrNotFound
	}
	return found.ReferralCode, nil
}

func (m *MemoryStore) SeedCodeExists(_ context.Context, code string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.indexOf(code, constants.SEED_REFERRED_EMAIL) >= 0, nil
}

func (m *MemoryStore) FindSeedByCode(_ context.Context, code string) (models.Referral, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.indexOf(code, constants.SEED_REFERRED_EMAIL); i >= 0 {
		return m.referrals[i], nil
	}
	return models.Referral{}, ErrNotFound
}

func (m *MemoryStore) ReferralExists(_ context.Context, code, email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.indexOf(code, email) >= 0, nil
}

func (m *MemoryStore) CreateReferral(_ context.Context, r *models.Referral) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.indexOf(r.ReferralCode, r.ReferredEmail) >= 0 {
		return ErrUniqueViolation
	}
	if r.IsSeed() {
		for _, existing := range m.referrals {
			if existing.IsSeed() && existing.ReferrerID == r.ReferrerID {
				return ErrUniqueViolation
			}
		}
	}

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	m.referrals = append(m.referrals, *r)
	return nil
}

func (m *MemoryStore) GetReferral(_ context.Context, id string) (models.Referral, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.referrals {
		if r.ID == id {
			return r, nil
		}
	}
	return models.Referral{}, ErrNotFound
}

func (m *MemoryStore) ListReferralsByReferrer(_ context.Context, referrerID string) ([]models.Referral, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Referral
	for _, r := range m.referrals {
		if r.ReferrerID == referrerID && !r.IsSeed() {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) UpdateReferralStatus(_ context.Context, id, status string, completedAt models.NullTime) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.referrals {
		r := &m.referrals[i]
		if r.ID != id || r.IsSeed() {
			continue
		}
		r.Status = status
		if completedAt.Valid {
			r.CompletedAt = completedAt
		}
		return nil
	}
	return ErrNotFound
}

func (m *MemoryStore) indexOf(code, email string) int {
	for i, r := range m.referrals {
		if r.ReferralCode == code && r.ReferredEmail == email {
			return i
		}
	}
	return -1
}

func (m *MemoryStore) MenuOwner(_ context.Context, menuID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	menu, ok := m.menus[menuID]
	if !ok {
		return "", ErrNotFound
	}
	return menu.OwnerID, nil
}

// scoped возвращает копию отзывов меню в заданной области.
func (m *MemoryStore) scoped(menuID string, approvedOnly bool) []models.Review {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Review
	for _, r := range m.reviews {
		if r.MenuID != menuID {
			continue
		}
		if approvedOnly && r.Status != constants.REVIEW_STATUS_APPROVED {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (m *MemoryStore) CountAndAverageRating(_ context.Context, menuID string, approvedOnly bool) (int, float64, error) {
	reviews := m.scoped(menuID, approvedOnly)
	if len(reviews) == 0 {
		return 0, 0, nil
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return len(reviews), float64(sum) / float64(len(reviews)), nil
}

func (m *MemoryStore) RatingCounts(_ context.Context, menuID string, approvedOnly bool) (map[int]int, error) {
	counts := make(map[int]int)
	for _, r := range m.scoped(menuID, approvedOnly) {
		counts[r.Rating]++
	}
	return counts, nil
}

func (m *MemoryStore) CountResponded(_ context.Context, menuID string, approvedOnly bool) (int, error) {
	n := 0
	for _, r := range m.scoped(menuID, approvedOnly) {
		if r.Response.Valid {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) ListReviews(_ context.Context, menuID string, approvedOnly bool) ([]models.Review, error) {
	reviews := m.scoped(menuID, approvedOnly)
	sort.SliceStable(reviews, func(i, j int) bool { return reviews[i].CreatedAt.After(reviews[j].CreatedAt) })
	return reviews, nil
}

func (m *MemoryStore) SetReviewResponse(_ context.Context, menuID, reviewID, response string) error {
	return m.updateReview(menuID, reviewID, func(r *models.Review) {
		r.Response = models.NewNullString(response)
	})
}

func (m *MemoryStore) SetReviewStatus(_ context.Context, menuID, reviewID, status string) error {
	return m.updateReview(menuID, reviewID, func(r *models.Review) {
		r.Status = status
	})
}

func (m *MemoryStore) updateReview(menuID, reviewID string, apply func(*models.Review)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.reviews {
		if m.reviews[i].ID == reviewID && m.reviews[i].MenuID == menuID {
			apply(&m.reviews[i])
			return nil
		}
	}
	return ErrNotFound
}

package referral

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"feastq/internal/constants"
	"feastq/internal/db"
	"feastq/internal/models"
	"feastq/internal/utils"
)

// Store - доступ к реферальным записям.
// Отсутствие записи сообщается как db.ErrNotFound, конфликт уникальности при
// вставке - как db.ErrUniqueViolation.
type Store interface {
	FindCodeByReferrer(ctx context.Context, referrerID string) (string, error)
	SeedCodeExists(ctx context.Context, code string) (bool, error)
	FindSeedByCode(ctx context.Context, code string) (models.Referral, error)
	ReferralExists(ctx context.Context, code, email string) (bool, error)
	CreateReferral(ctx context.Context, r *models.Referral) error
	GetReferral(ctx context.Context, id string) (models.Referral, error)
	ListReferralsByReferrer(ctx context.Context, referrerID string) ([]models.Referral, error)
	UpdateReferralStatus(ctx context.Context, id, status string, completedAt models.NullTime) error
}

// Limiter ограничивает частоту действий по ключу.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Options - настраиваемые параметры реферальной программы.
type Options struct {
	RewardAmount  int64  // награда за реферала в минимальных единицах, 0 - значение по умолчанию
	PublicBaseURL string // адрес сайта для ссылок-приглашений
}

// Issuer выдает реферальные коды и принимает приглашения.
type Issuer struct {
	store   Store
	codes   *CodeGenerator
	limiter Limiter
	opts    Options
	log     *zap.SugaredLogger
	now     func() time.Time
}

// NewIssuer создает сервис. limiter может быть nil - тогда лимиты не проверяются.
func NewIssuer(store Store, codes *CodeGenerator, limiter Limiter, opts Options, logger *zap.SugaredLogger) *Issuer {
	if codes == nil {
		codes = NewCodeGenerator(nil)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if opts.RewardAmount <= 0 {
		opts.RewardAmount = constants.DEFAULT_REFERRAL_REWARD_AMOUNT
	}
	return &Issuer{
		store:   store,
		codes:   codes,
		limiter: limiter,
		opts:    opts,
		log:     logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// GetOrCreateReferralCode возвращает код пользователя, создавая якорную запись при первом обращении.
func (s *Issuer) GetOrCreateReferralCode(ctx context.Context, userID string) (string, error) {
	code, err := s.store.FindCodeByReferrer(ctx, userID)
	if err == nil {
		return code, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return "", err
	}

	for attempt := 1; attempt <= constants.REFERRAL_CODE_MAX_ATTEMPTS; attempt++ {
		candidate, err := s.codes.Generate()
		if err != nil {
			return "", err
		}

		taken, err := s.store.SeedCodeExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if taken {
			s.log.Warnw("Коллизия реферального кода", "attempt", attempt, "userId", userID)
			continue
		}

		seed := models.Referral{
			ReferrerID:    userID,
			ReferredEmail: constants.SEED_REFERRED_EMAIL,
			ReferralCode:  candidate,
			Status:        constants.REFERRAL_STATUS_PENDING,
			RewardAmount:  0,
			CreatedAt:     s.now(),
		}
		err = s.store.CreateReferral(ctx, &seed)
		if err == nil {
			s.log.Infow("Создан реферальный код", "userId", userID, "attempt", attempt)
			return candidate, nil
		}
		if !errors.Is(err, db.ErrUniqueViolation) {
			return "", err
		}

		// Параллельный запрос того же пользователя успел создать якорную запись.
		existing, ferr := s.store.FindCodeByReferrer(ctx, userID)
		if ferr == nil {
			s.log.Infow("Реферальный код создан параллельным запросом", "userId", userID)
			return existing, nil
		}
		if !errors.Is(ferr, db.ErrNotFound) {
			return "", ferr
		}
		// Код заняли между проверкой и вставкой - считаем это коллизией.
		s.log.Warnw("Коллизия реферального кода при вставке", "attempt", attempt, "userId", userID)
	}

	s.log.Errorw("Исчерпаны попытки генерации реферального кода",
		"userId", userID, "attempts", constants.REFERRAL_CODE_MAX_ATTEMPTS)
	return "", ErrCodeGenerationExhausted
}

// SubmitRequest - данные приглашения от неаутентифицированного пользователя.
type SubmitRequest struct {
	ReferralCode string
	Email        string
	ClientIP     string
}

// SubmitReferral регистрирует приглашение email по реферальному коду.
// Лимит частоты проверяется до любых обращений к хранилищу.
func (s *Issuer) SubmitReferral(ctx context.Context, req SubmitRequest) (models.Referral, error) {
	code := utils.NormalizeReferralCode(req.ReferralCode)
	email := utils.NormalizeEmail(req.Email)
	if err := utils.ValidateReferralCode(code); err != nil {
		return models.Referral{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := utils.ValidateEmail(email); err != nil {
		return models.Referral{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.checkRateLimit(ctx, req.ClientIP, email); err != nil {
		return models.Referral{}, err
	}

	seed, err := s.store.FindSeedByCode(ctx, code)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return models.Referral{}, ErrInvalidCode
		}
		return models.Referral{}, err
	}

	exists, err := s.store.ReferralExists(ctx, code, email)
	if err != nil {
		return models.Referral{}, err
	}
	if exists {
		return models.Referral{}, ErrDuplicateReferral
	}

	ref := models.Referral{
		ReferrerID:    seed.ReferrerID,
		ReferredEmail: email,
		ReferralCode:  code,
		Status:        constants.REFERRAL_STATUS_PENDING,
		RewardAmount:  s.opts.RewardAmount,
		CreatedAt:     s.now(),
	}
	if err := s.store.CreateReferral(ctx, &ref); err != nil {
		if errors.Is(err, db.ErrUniqueViolation) {
			return models.Referral{}, ErrDuplicateReferral
		}
		return models.Referral{}, err
	}

	s.log.Infow("Принят реферал", "referralId", ref.ID, "referrerId", ref.ReferrerID)
	return ref, nil
}

// checkRateLimit проверяет лимиты по IP и по email.
// Ошибка самого лимитера не блокирует запрос.
func (s *Issuer) checkRateLimit(ctx context.Context, clientIP, email string) error {
	if s.limiter == nil {
		return nil
	}
	keys := []string{constants.RATE_LIMIT_KEY_PREFIX_EMAIL + email}
	if clientIP != "" {
		keys = append([]string{constants.RATE_LIMIT_KEY_PREFIX_IP + clientIP}, keys...)
	}
	for _, key := range keys {
		allowed, err := s.limiter.Allow(ctx, key)
		if err != nil {
			s.log.Warnw("Ошибка лимитера, запрос пропущен", "key", key, "error", err)
			continue
		}
		if !allowed {
			return ErrRateLimited
		}
	}
	return nil
}

// ListReferrals возвращает приглашения пользователя, новые первыми.
func (s *Issuer) ListReferrals(ctx context.Context, userID string) ([]models.Referral, error) {
	referrals, err := s.store.ListReferralsByReferrer(ctx, userID)
	if err != nil {
		return nil, err
	}
	if referrals == nil {
		referrals = []models.Referral{}
	}
	return referrals, nil
}

// Summary считает приглашения пользователя по статусам и суммы наград.
func (s *Issuer) Summary(ctx context.Context, userID string) (models.ReferralSummary, error) {
	var summary models.ReferralSummary

	code, err := s.store.FindCodeByReferrer(ctx, userID)
	switch {
	case err == nil:
		summary.ReferralCode = code
	case !errors.Is(err, db.ErrNotFound):
		return summary, err
	}

	referrals, err := s.store.ListReferralsByReferrer(ctx, userID)
	if err != nil {
		return summary, err
	}
	for _, r := range referrals {
		summary.TotalReferrals++
		switch r.Status {
		case constants.REFERRAL_STATUS_PENDING:
			summary.Pending++
			summary.PendingRewards += r.RewardAmount
		case constants.REFERRAL_STATUS_COMPLETED:
			summary.Completed++
			summary.PendingRewards += r.RewardAmount
		case constants.REFERRAL_STATUS_REWARDED:
			summary.Rewarded++
			summary.TotalEarned += r.RewardAmount
		case constants.REFERRAL_STATUS_CANCELLED:
			summary.Cancelled++
		}
	}
	return summary, nil
}

// allowedTransitions - допустимые переходы статусов реферала.
var allowedTransitions = map[string][]string{
	constants.REFERRAL_STATUS_PENDING:   {constants.REFERRAL_STATUS_COMPLETED, constants.REFERRAL_STATUS_CANCELLED},
	constants.REFERRAL_STATUS_COMPLETED: {constants.REFERRAL_STATUS_REWARDED, constants.REFERRAL_STATUS_CANCELLED},
}

func canTransition(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// UpdateStatus переводит реферал в новый статус. Якорные записи не меняются.
func (s *Issuer) UpdateStatus(ctx context.Context, referralID, status string) (models.Referral, error) {
	ref, err := s.store.GetReferral(ctx, referralID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return models.Referral{}, ErrReferralNotFound
		}
		return models.Referral{}, err
	}
	if ref.IsSeed() {
		return models.Referral{}, ErrReferralNotFound
	}
	if !canTransition(ref.Status, status) {
		return models.Referral{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, ref.Status, status)
	}

	var completedAt models.NullTime
	if status == constants.REFERRAL_STATUS_COMPLETED {
		completedAt = models.NewNullTime(s.now())
	}
	if err := s.store.UpdateReferralStatus(ctx, referralID, status, completedAt); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return models.Referral{}, ErrReferralNotFound
		}
		return models.Referral{}, err
	}

	ref.Status = status
	if completedAt.Valid {
		ref.CompletedAt = completedAt
	}
	s.log.Infow("Статус реферала обновлен", "referralId", referralID, "status", status)
	return ref, nil
}

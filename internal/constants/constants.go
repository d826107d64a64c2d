package constants

import "time"

// Роли пользователей (приходят в claims токена)
// User roles (carried in token claims)
const (
	ROLE_USER  = "user"
	ROLE_STAFF = "staff"
	ROLE_OWNER = "owner"
	ROLE_ADMIN = "admin"
)

// Статусы реферальных записей
// Referral record statuses
const (
	REFERRAL_STATUS_PENDING   = "pending"
	REFERRAL_STATUS_COMPLETED = "completed"
	REFERRAL_STATUS_REWARDED  = "rewarded"
	REFERRAL_STATUS_CANCELLED = "cancelled"
)

// Параметры реферальных кодов
// Referral code parameters
const (
	// REFERRAL_CODE_PREFIX идет перед случайной частью кода.
	REFERRAL_CODE_PREFIX = "FQ-"
	// REFERRAL_CODE_ALPHABET - 32 символа без I, O, 0, 1.
	REFERRAL_CODE_ALPHABET = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	// REFERRAL_CODE_RANDOM_LENGTH - длина случайной части.
	REFERRAL_CODE_RANDOM_LENGTH = 8
	// REFERRAL_CODE_MAX_ATTEMPTS ограничивает число кандидатов при коллизиях.
	REFERRAL_CODE_MAX_ATTEMPTS = 5
	// REFERRAL_CODE_MAX_LENGTH - верхняя граница длины кода во входных данных.
	REFERRAL_CODE_MAX_LENGTH = 20

	// DEFAULT_REFERRAL_REWARD_AMOUNT в минимальных единицах валюты (центы).
	DEFAULT_REFERRAL_REWARD_AMOUNT int64 = 500

	// SEED_REFERRED_EMAIL - пустой email якорной записи пользователя.
	SEED_REFERRED_EMAIL = ""
)

// Лимиты на отправку рефералов без аутентификации
// Limits for unauthenticated referral submissions
const (
	DEFAULT_REFERRAL_RATE_LIMIT  = 5
	DEFAULT_REFERRAL_RATE_WINDOW = time.Hour

	RATE_LIMIT_KEY_PREFIX_IP    = "referral:submit:ip:"
	RATE_LIMIT_KEY_PREFIX_EMAIL = "referral:submit:email:"
)

// Статусы отзывов
// Review statuses
const (
	REVIEW_STATUS_PENDING  = "pending"
	REVIEW_STATUS_APPROVED = "approved"
	REVIEW_STATUS_REJECTED = "rejected"
)

// Ограничения на входные данные
// Input limits
const (
	MAX_EMAIL_LENGTH           = 255
	MAX_REVIEW_RESPONSE_LENGTH = 2000
)

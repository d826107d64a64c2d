package referral

import "errors"

var (
	// ErrCodeGenerationExhausted - все попытки сгенерировать свободный код дали коллизию.
	ErrCodeGenerationExhausted = errors.New("не удалось сгенерировать уникальный реферальный код")
	// ErrInvalidCode - реферальный код не найден.
	ErrInvalidCode = errors.New("реферальный код не найден")
	// ErrDuplicateReferral - этот email уже приглашен по данному коду.
	ErrDuplicateReferral = errors.New("этот email уже приглашен по данному коду")
	// ErrRateLimited - превышен лимит отправок.
	ErrRateLimited = errors.New("слишком много запросов")
	// ErrInvalidInput - входные данные не прошли проверку.
	ErrInvalidInput = errors.New("некорректные входные данные")
	// ErrReferralNotFound - реферал не найден (или это якорная запись).
	ErrReferralNotFound = errors.New("реферал не найден")
	// ErrInvalidTransition - недопустимая смена статуса.
	ErrInvalidTransition = errors.New("недопустимая смена статуса реферала")
)

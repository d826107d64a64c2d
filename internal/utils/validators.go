package utils

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"feastq/internal/constants"
)

// NormalizeEmail обрезает пробелы и приводит email к нижнему регистру.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var validate = validator.New()

// ValidateEmail проверяет синтаксис и длину email (после нормализации).
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email не указан")
	}
	if len(email) > constants.MAX_EMAIL_LENGTH {
		return fmt.Errorf("email длиннее %d символов", constants.MAX_EMAIL_LENGTH)
	}
	if err := validate.Var(email, "required,email"); err != nil {
		return fmt.Errorf("некорректный email")
	}
	if !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return fmt.Errorf("некорректный домен email")
	}
	return nil
}

// NormalizeReferralCode обрезает пробелы и приводит код к верхнему регистру.
func NormalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateReferralCode проверяет, что код непустой и не длиннее допустимого.
func ValidateReferralCode(code string) error {
	if code == "" {
		return fmt.Errorf("реферальный код не указан")
	}
	if len(code) > constants.REFERRAL_CODE_MAX_LENGTH {
		return fmt.Errorf("реферальный код длиннее %d символов", constants.REFERRAL_CODE_MAX_LENGTH)
	}
	return nil
}

// ValidateUUID проверяет, что идентификатор имеет форму UUID.
func ValidateUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("некорректный идентификатор '%s'", id)
	}
	return nil
}

// IsRoleOrHigher проверяет, что роль пользователя не ниже требуемой.
func IsRoleOrHigher(userRole string, requiredRole string) bool {
	roleHierarchy := map[string]int{
		constants.ROLE_USER:  0,
		constants.ROLE_STAFF: 1,
		constants.ROLE_OWNER: 2,
		constants.ROLE_ADMIN: 3,
	}

	userLevel, okUser := roleHierarchy[userRole]
	requiredLevel, okRequired := roleHierarchy[requiredRole]
	if !okUser || !okRequired {
		return false // неизвестная роль - доступ запрещен
	}
	return userLevel >= requiredLevel
}

package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	// ErrNotFound возвращается, когда запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrUniqueViolation возвращается, когда вставка нарушает ограничение уникальности.
	ErrUniqueViolation = errors.New("нарушение ограничения уникальности")
	// ErrInvalidRating возвращается для оценки вне диапазона 1..5.
	ErrInvalidRating = errors.New("оценка должна быть от 1 до 5")
)

// pgUniqueViolation - SQLSTATE unique_violation.
const pgUniqueViolation = pq.ErrorCode("23505")

// IsUniqueViolation сообщает, является ли ошибка драйвера нарушением уникальности.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}
	return errors.Is(err, ErrUniqueViolation)
}

// translateError приводит ошибки драйвера к ошибкам пакета.
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case IsUniqueViolation(err):
		return fmt.Errorf("%w: %v", ErrUniqueViolation, err)
	default:
		return err
	}
}

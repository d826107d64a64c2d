package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"feastq/internal/models"
)

const referralColumns = `id, referrer_id, referred_email, referral_code, status, reward_amount, created_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReferral(row rowScanner) (models.Referral, error) {
	var r models.Referral
	err := row.Scan(
		&r.ID,
		&r.ReferrerID,
		&r.ReferredEmail,
		&r.ReferralCode,
		&r.Status,
		&r.RewardAmount,
		&r.CreatedAt,
		&r.CompletedAt.NullTime,
	)
	return r, err
}

// FindCodeByReferrer возвращает реферальный код пользователя (по самой ранней записи).
func (s *Store) FindCodeByReferrer(ctx context.Context, referrerID string) (string, error) {
	var code string
	err := s.conn.QueryRowContext(ctx,
		`SELECT referral_code FROM referrals WHERE referrer_id = $1 ORDER BY created_at ASC LIMIT 1`,
		referrerID,
	).Scan(&code)
	if err != nil && err != sql.ErrNoRows {
		s.log.Errorf("FindCodeByReferrer: ошибка поиска кода для referrer_id %s: %v", referrerID, err)
	}
	return code, translateError(err)
}

// SeedCodeExists проверяет, занят ли код якорной записью.
func (s *Store) SeedCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.conn.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM referrals WHERE referral_code = $1 AND referred_email = '')`,
		code,
	).Scan(&exists)
	if err != nil {
		s.log.Errorf("SeedCodeExists: ошибка проверки кода %s: %v", code, err)
		return false, err
	}
	return exists, nil
}

// FindSeedByCode возвращает якорную запись кода.
func (s *Store) FindSeedByCode(ctx context.Context, code string) (models.Referral, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+referralColumns+` FROM referrals WHERE referral_code = $1 AND referred_email = ''`,
		code,
	)
	r, err := scanReferral(row)
	if err != nil && err != sql.ErrNoRows {
		s.log.Errorf("FindSeedByCode: ошибка получения якорной записи для кода %s: %v", code, err)
	}
	return r, translateError(err)
}

// ReferralExists проверяет наличие записи для пары (код, email).
func (s *Store) ReferralExists(ctx context.Context, code, email string) (bool, error) {
	var exists bool
	err := s.conn.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM referrals WHERE referral_code = $1 AND referred_email = $2)`,
		code, email,
	).Scan(&exists)
	if err != nil {
		s.log.Errorf("ReferralExists: ошибка проверки реферала (код %s): %v", code, err)
		return false, err
	}
	return exists, nil
}

// CreateReferral вставляет запись; заполняет ID и CreatedAt, если они пустые.
// Нарушение уникальности возвращается как ErrUniqueViolation.
func (s *Store) CreateReferral(ctx context.Context, r *models.Referral) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	_, err := s.conn.ExecContext(ctx, `
        INSERT INTO referrals (id, referrer_id, referred_email, referral_code, status, reward_amount, created_at, updated_at, completed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $7, $8)`,
		r.ID, r.ReferrerID, r.ReferredEmail, r.ReferralCode, r.Status, r.RewardAmount, r.CreatedAt, r.CompletedAt.NullTime,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			s.log.Infof("CreateReferral: конфликт уникальности для кода %s (referrer_id %s)", r.ReferralCode, r.ReferrerID)
		} else {
			s.log.Errorf("CreateReferral: ошибка добавления реферала (код %s): %v", r.ReferralCode, err)
		}
		return translateError(err)
	}
	s.log.Debugf("Реферальная запись %s успешно добавлена.", r.ID)
	return nil
}

// GetReferral возвращает запись по ID.
func (s *Store) GetReferral(ctx context.Context, id string) (models.Referral, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+referralColumns+` FROM referrals WHERE id = $1`, id)
	r, err := scanReferral(row)
	if err != nil && err != sql.ErrNoRows {
		s.log.Errorf("GetReferral: ошибка получения реферала %s: %v", id, err)
	}
	return r, translateError(err)
}

// ListReferralsByReferrer возвращает рефералов пользователя без якорной записи, новые первыми.
func (s *Store) ListReferralsByReferrer(ctx context.Context, referrerID string) ([]models.Referral, error) {
	rows, err := s.conn.QueryContext(ctx, `
        SELECT `+referralColumns+`
        FROM referrals
        WHERE referrer_id = $1 AND referred_email <> ''
        ORDER BY created_at DESC`, referrerID)
	if err != nil {
		s.log.Errorf("ListReferralsByReferrer: ошибка получения рефералов для referrer_id %s: %v", referrerID, err)
		return nil, err
	}
	defer rows.Close()

	var referrals []models.Referral
	for rows.Next() {
		r, errScan := scanReferral(rows)
		if errScan != nil {
			return nil, fmt.Errorf("ошибка сканирования реферала: %w", errScan)
		}
		referrals = append(referrals, r)
	}
	if err = rows.Err(); err != nil {
		s.log.Errorf("ListReferralsByReferrer: ошибка после итерации по строкам для referrer_id %s: %v", referrerID, err)
		return nil, err
	}
	return referrals, nil
}

// UpdateReferralStatus меняет статус не-якорной записи.
// completedAt записывается только если задан.
func (s *Store) UpdateReferralStatus(ctx context.Context, id, status string, completedAt models.NullTime) error {
	result, err := s.conn.ExecContext(ctx, `
        UPDATE referrals
        SET status = $1, completed_at = COALESCE($2, completed_at), updated_at = NOW()
        WHERE id = $3 AND referred_email <> ''`,
		status, completedAt.NullTime, id,
	)
	if err != nil {
		s.log.Errorf("UpdateReferralStatus: ошибка обновления статуса реферала %s: %v", id, err)
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	s.log.Infof("Статус реферала %s обновлен на %s.", id, status)
	return nil
}

package referral

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"feastq/internal/models"
	"feastq/internal/utils"
)

const exportSheetName = "Referrals"

// BuildReferralsWorkbook собирает книгу Excel со списком рефералов.
func BuildReferralsWorkbook(referrals []models.Referral) (*excelize.File, error) {
	f := excelize.NewFile()
	if _, err := f.NewSheet(exportSheetName); err != nil {
		return nil, fmt.Errorf("ошибка создания листа: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("ошибка удаления листа по умолчанию: %w", err)
	}
	index, err := f.GetSheetIndex(exportSheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)

	headers := []any{"Email", "Code", "Status", "Reward", "Created", "Completed"}
	if err := f.SetSheetRow(exportSheetName, "A1", &headers); err != nil {
		return nil, fmt.Errorf("ошибка записи заголовков: %w", err)
	}

	for i, r := range referrals {
		completed := ""
		if r.CompletedAt.Valid {
			completed = utils.FormatTimestamp(r.CompletedAt.Time)
		}
		row := []any{
			r.ReferredEmail,
			r.ReferralCode,
			r.Status,
			utils.FormatMinorUnits(r.RewardAmount),
			utils.FormatTimestamp(r.CreatedAt),
			completed,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(exportSheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("ошибка записи строки %d: %w", i+2, err)
		}
	}
	return f, nil
}

// ExportXLSX пишет в w книгу Excel с приглашениями пользователя.
func (s *Issuer) ExportXLSX(ctx context.Context, userID string, w io.Writer) error {
	referrals, err := s.ListReferrals(ctx, userID)
	if err != nil {
		return err
	}
	f, err := BuildReferralsWorkbook(referrals)
	if err != nil {
		s.log.Errorw("Ошибка формирования Excel-отчета", "userId", userID, "error", err)
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("ошибка записи Excel-отчета: %w", err)
	}
	return nil
}

package referral

import (
	"context"

	"feastq/internal/utils"
)

// ShareLink возвращает код пользователя и ссылку-приглашение с ним.
func (s *Issuer) ShareLink(ctx context.Context, userID string) (code, link string, err error) {
	code, err = s.GetOrCreateReferralCode(ctx, userID)
	if err != nil {
		return "", "", err
	}
	link, err = utils.GenerateReferralLink(s.opts.PublicBaseURL, code)
	if err != nil {
		return "", "", err
	}
	return code, link, nil
}

// ShareQRCode возвращает PNG с QR-кодом ссылки-приглашения пользователя.
func (s *Issuer) ShareQRCode(ctx context.Context, userID string) ([]byte, error) {
	code, err := s.GetOrCreateReferralCode(ctx, userID)
	if err != nil {
		return nil, err
	}
	png, err := utils.GenerateQRCode(s.opts.PublicBaseURL, code)
	if err != nil {
		s.log.Errorw("Ошибка генерации QR-кода", "userId", userID, "error", err)
		return nil, err
	}
	return png, nil
}

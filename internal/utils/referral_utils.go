package utils

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

// GenerateReferralLink собирает ссылку на регистрацию с реферальным кодом.
func GenerateReferralLink(baseURL, code string) (string, error) {
	if baseURL == "" {
		return "", fmt.Errorf("базовый адрес сайта не настроен")
	}
	if code == "" {
		return "", fmt.Errorf("пустой реферальный код")
	}
	return fmt.Sprintf("%s/signup?ref=%s", strings.TrimRight(baseURL, "/"), url.QueryEscape(code)), nil
}

// GenerateQRCode возвращает PNG с QR-кодом реферальной ссылки.
func GenerateQRCode(baseURL, code string) ([]byte, error) {
	link, err := GenerateReferralLink(baseURL, code)
	if err != nil {
		return nil, err
	}
	// qrcode.Medium - уровень коррекции ошибок, 256 - размер в пикселях.
	qrBytes, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("ошибка кодирования QR-кода для ссылки '%s': %w", link, err)
	}
	return qrBytes, nil
}

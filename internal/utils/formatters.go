package utils

import (
	"fmt"
	"time"
)

// FormatMinorUnits форматирует сумму в минимальных единицах (центах) как "12.34".
func FormatMinorUnits(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}

// FormatTimestamp форматирует время для отчетов; нулевое время дает пустую строку.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}

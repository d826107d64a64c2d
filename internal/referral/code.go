package referral

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"

	"feastq/internal/constants"
)

// CodeGenerator выдает коды вида FQ-XXXXXXXX.
// Источник случайности передается явно, чтобы тесты могли подставить детерминированный.
type CodeGenerator struct {
	rand io.Reader
}

// NewCodeGenerator создает генератор; nil означает crypto/rand.Reader.
func NewCodeGenerator(source io.Reader) *CodeGenerator {
	if source == nil {
		source = rand.Reader
	}
	return &CodeGenerator{rand: source}
}

// Generate возвращает новый код-кандидат.
// Алфавит из 32 символов, поэтому младшие 5 бит байта дают равномерный выбор.
func (g *CodeGenerator) Generate() (string, error) {
	buf := make([]byte, constants.REFERRAL_CODE_RANDOM_LENGTH)
	if _, err := io.ReadFull(g.rand, buf); err != nil {
		return "", fmt.Errorf("ошибка чтения источника случайности: %w", err)
	}

	var sb strings.Builder
	sb.Grow(len(constants.REFERRAL_CODE_PREFIX) + len(buf))
	sb.WriteString(constants.REFERRAL_CODE_PREFIX)
	for _, b := range buf {
		sb.WriteByte(constants.REFERRAL_CODE_ALPHABET[int(b)%len(constants.REFERRAL_CODE_ALPHABET)])
	}
	return sb.String(), nil
}

// IsGeneratedCode сообщает, имеет ли строка форму кода, выдаваемого генератором.
func IsGeneratedCode(code string) bool {
	rest, ok := strings.CutPrefix(code, constants.REFERRAL_CODE_PREFIX)
	if !ok || len(rest) != constants.REFERRAL_CODE_RANDOM_LENGTH {
		return false
	}
	for i := 0; i < len(rest); i++ {
		if strings.IndexByte(constants.REFERRAL_CODE_ALPHABET, rest[i]) < 0 {
			return false
		}
	}
	return true
}

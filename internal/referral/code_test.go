package referral

import (
	"bytes"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codePattern = regexp.MustCompile(`^FQ-[ABCDEFGHJKLMNPQRSTUVWXYZ23456789]{8}$`)

func TestGenerate_Format(t *testing.T) {
	gen := NewCodeGenerator(nil)
	for i := 0; i < 1000; i++ {
		code, err := gen.Generate()
		require.NoError(t, err)
		assert.Regexp(t, codePattern, code)
		assert.True(t, IsGeneratedCode(code))
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	// 0..7 -> A..H, 32 wraps to A, 255 -> 31 -> '9'
	gen := NewCodeGenerator(bytes.NewReader([]byte{0, 1, 2, 3, 4, 5, 6, 7, 32, 255, 8, 9, 10, 11, 12, 13}))

	first, err := gen.Generate()
	require.NoError(t, err)
	assert.Equal(t, "FQ-ABCDEFGH", first)

	second, err := gen.Generate()
	require.NoError(t, err)
	assert.Equal(t, "FQ-A9JKLMNP", second)

	_, err = gen.Generate()
	assert.Error(t, err)
}

func TestGenerate_AllSymbolsReachable(t *testing.T) {
	src := make([]byte, 256)
	for i := range src {
		src[i] = byte(i)
	}
	gen := NewCodeGenerator(bytes.NewReader(src))

	seen := map[rune]int{}
	for i := 0; i < 32; i++ {
		code, err := gen.Generate()
		require.NoError(t, err)
		for _, r := range code[3:] {
			seen[r]++
		}
	}
	assert.Len(t, seen, 32)
	for r, n := range seen {
		assert.Equal(t, 8, n, string(r))
	}
}

func TestIsGeneratedCode(t *testing.T) {
	assert.True(t, IsGeneratedCode("FQ-ABCDEFGH"))
	assert.False(t, IsGeneratedCode("FQ-ABCDEFG"))
	assert.False(t, IsGeneratedCode("FQ-ABCDEFGI"))
	assert.False(t, IsGeneratedCode("FQ-ABCDEF01"))
	assert.False(t, IsGeneratedCode("XX-ABCDEFGH"))
}

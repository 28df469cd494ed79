package auth

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexToken = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestNewSetupToken_FormatAndUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := NewSetupToken()
		require.NoError(t, err)
		assert.True(t, hexToken.MatchString(token), "token %q is not 32 lowercase hex chars", token)
		assert.False(t, seen[token], "duplicate token generated")
		seen[token] = true
	}
}

func TestNewNumericCode(t *testing.T) {
	code, err := NewNumericCode(6)
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9]{6}$`, code)

	for _, invalid := range []int{0, 3, 11, -1} {
		_, err := NewNumericCode(invalid)
		assert.Error(t, err)
	}
}

package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// NewSetupToken returns an opaque single-use token correlating the steps of
// a multi-step flow: 128 bits from the system CSPRNG, lowercase hex, no
// separators.
func NewSetupToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate setup token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// NewNumericCode returns a code of the given number of decimal digits for
// delivery over email or SMS. Each digit is drawn independently from the
// CSPRNG so leading zeros are as likely as any other digit.
func NewNumericCode(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", fmt.Errorf("invalid code length %d", digits)
	}

	var b strings.Builder
	b.Grow(digits)

	ten := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("failed to generate code digit: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

package auth

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, at)
	require.NoError(t, err)
	return code
}

func TestGenerateSecret_URIFormat(t *testing.T) {
	engine := NewTotpEngine("DMS Auth")

	secret, uri, err := engine.GenerateSecret("alice@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, secret)

	parsed, err := url.Parse(uri)
	require.NoError(t, err)
	assert.Equal(t, "otpauth", parsed.Scheme)
	assert.Equal(t, "totp", parsed.Host)

	q := parsed.Query()
	assert.Equal(t, secret, q.Get("secret"))
	assert.Equal(t, "DMS Auth", q.Get("issuer"))
	assert.Equal(t, "SHA1", q.Get("algorithm"))
	assert.Equal(t, "6", q.Get("digits"))
	assert.Equal(t, "30", q.Get("period"))
	assert.Contains(t, parsed.Path, url.PathEscape("DMS Auth"))
}

func TestGenerateSecret_SecretsAreUnique(t *testing.T) {
	engine := NewTotpEngine("DMS")

	a, _, err := engine.GenerateSecret("alice")
	require.NoError(t, err)
	b, _, err := engine.GenerateSecret("alice")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestValidateCode_AcceptsAdjacentWindowsOnly(t *testing.T) {
	engine := NewTotpEngine("DMS")
	secret, _, err := engine.GenerateSecret("alice")
	require.NoError(t, err)

	// Pin the reference time to the middle of a 30-second step so the
	// boundaries are unambiguous.
	now := time.Unix(time.Now().Unix()/30*30+15, 0)

	assert.True(t, engine.ValidateCodeAt(secret, codeAt(t, secret, now), now))
	assert.True(t, engine.ValidateCodeAt(secret, codeAt(t, secret, now.Add(-30*time.Second)), now))
	assert.True(t, engine.ValidateCodeAt(secret, codeAt(t, secret, now.Add(30*time.Second)), now))
	assert.False(t, engine.ValidateCodeAt(secret, codeAt(t, secret, now.Add(-90*time.Second)), now))
	assert.False(t, engine.ValidateCodeAt(secret, codeAt(t, secret, now.Add(90*time.Second)), now))
}

func TestValidateCode_MalformedSecretRejects(t *testing.T) {
	engine := NewTotpEngine("DMS")

	assert.False(t, engine.ValidateCode("not!base32???", "123456"))
	assert.False(t, engine.ValidateCode("", "123456"))
}

func TestValidateCode_WrongCodeRejects(t *testing.T) {
	engine := NewTotpEngine("DMS")
	secret, _, err := engine.GenerateSecret("alice")
	require.NoError(t, err)

	assert.False(t, engine.ValidateCode(secret, "000000"))
	assert.False(t, engine.ValidateCode(secret, "abcdef"))
}

func TestQRCodeDataURL(t *testing.T) {
	engine := NewTotpEngine("DMS")
	_, uri, err := engine.GenerateSecret("alice")
	require.NoError(t, err)

	dataURL, err := engine.QRCodeDataURL(uri)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dataURL, "data:image/png;base64,"))
}

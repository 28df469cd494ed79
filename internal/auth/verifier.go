package auth

import (
	"crypto/rsa"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// TokenVerifier validates access tokens minted by the identity provider.
// The provider signs with RS256; the realm public key is injected at
// construction so verification never calls out over the network.
type TokenVerifier struct {
	publicKey *rsa.PublicKey
	issuer    string
}

// NewTokenVerifier parses a PEM-encoded RSA public key. issuer, when
// non-empty, is enforced against the token's iss claim.
func NewTokenVerifier(publicKeyPEM []byte, issuer string) (*TokenVerifier, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse identity provider public key: %w", err)
	}
	return &TokenVerifier{publicKey: key, issuer: issuer}, nil
}

// Verify checks signature, expiry, and issuer, and returns the raw claims.
func (v *TokenVerifier) Verify(tokenString string) (jwt.MapClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return v.publicKey, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}
	return claims, nil
}

package models

// TokenPair is the result of a successful credential exchange with the
// identity provider.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// IdentityUser is the subset of the identity provider's user record the
// service needs: a stable ID plus contact points for code delivery.
type IdentityUser struct {
	ID       string
	Username string
	Email    string
	Phone    string
}

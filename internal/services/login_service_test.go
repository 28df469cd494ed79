package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgiokas/dms-auth/internal/auth"
	"github.com/tgiokas/dms-auth/internal/cache"
	"github.com/tgiokas/dms-auth/internal/models"
)

type loginFixture struct {
	svc    *LoginService
	store  *cache.Memory
	tokens *mockTokenClient
	users  *mockUserDirectory
	repo   *mockSecondFactorRepo
	sender *mockChallengeSender
	engine *auth.TotpEngine
}

func newLoginFixture(t *testing.T) *loginFixture {
	t.Helper()

	f := &loginFixture{
		store:  cache.NewMemory(),
		tokens: &mockTokenClient{},
		users:  &mockUserDirectory{},
		repo:   &mockSecondFactorRepo{},
		sender: &mockChallengeSender{},
		engine: auth.NewTotpEngine("dms-auth-test"),
	}
	f.svc = NewLoginService(
		f.tokens, f.users, f.repo, f.store, f.engine, f.sender,
		newTestAudit(), auth.NewTimingDelay(0, 0), newTestLogger(),
	)
	return f
}

// enrollSecret wires a confirmed secret into the repo and returns it.
func (f *loginFixture) enrollSecret(t *testing.T, userID string) string {
	t.Helper()

	secret, _, err := f.engine.GenerateSecret("bob")
	require.NoError(t, err)

	f.repo.ExistsFunc = func(_ context.Context, id string) (bool, error) {
		return id == userID, nil
	}
	f.repo.GetFunc = func(_ context.Context, id string) (*models.TotpSecret, error) {
		if id != userID {
			return nil, models.ErrNotFound
		}
		return &models.TotpSecret{UserID: userID, Secret: secret, Enabled: true, Verified: true}, nil
	}
	return secret
}

func TestLogin_NoSecondFactorIssuesTokensImmediately(t *testing.T) {
	f := newLoginFixture(t)

	pair, challenge, err := f.svc.Login(context.Background(), "alice", "pw", "", "10.0.0.1")
	require.NoError(t, err)
	require.NotNil(t, pair)
	assert.Nil(t, challenge)
	assert.Equal(t, "access", pair.AccessToken)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := newLoginFixture(t)
	f.tokens.ValidateCredentialsFunc = func(_ context.Context, _, _ string) error {
		return models.ErrInvalidCredentials
	}

	_, _, err := f.svc.Login(context.Background(), "alice", "wrong", "", "10.0.0.1")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestLogin_UpstreamOutageIsNotInvalidCredentials(t *testing.T) {
	f := newLoginFixture(t)
	f.tokens.ValidateCredentialsFunc = func(_ context.Context, _, _ string) error {
		return models.ErrUpstreamUnavailable
	}

	_, _, err := f.svc.Login(context.Background(), "alice", "pw", "", "10.0.0.1")
	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
	assert.NotErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestLogin_EnrolledUserGetsChallengeAndPendingAttempt(t *testing.T) {
	f := newLoginFixture(t)
	f.enrollSecret(t, "user-1")

	pair, challenge, err := f.svc.Login(context.Background(), "bob", "pw", "", "10.0.0.1")
	require.NoError(t, err)
	assert.Nil(t, pair)
	require.NotNil(t, challenge)
	assert.True(t, challenge.MFARequired)
	assert.Equal(t, models.ChallengeTOTP, challenge.Channel)
	assert.Len(t, challenge.SetupToken, 32)

	_, err = f.store.Get(context.Background(), cache.LoginPendingKey(challenge.SetupToken))
	assert.NoError(t, err, "a pending attempt must exist under the setup token")
}

func TestVerifyCode_WrongCodeLeavesAttemptIntact(t *testing.T) {
	f := newLoginFixture(t)
	f.enrollSecret(t, "user-1")

	_, challenge, err := f.svc.Login(context.Background(), "bob", "pw", "", "10.0.0.1")
	require.NoError(t, err)

	_, err = f.svc.VerifyCode(context.Background(), challenge.SetupToken, "000000", "10.0.0.1")
	assert.ErrorIs(t, err, models.ErrInvalidCode)

	_, err = f.store.Get(context.Background(), cache.LoginPendingKey(challenge.SetupToken))
	assert.NoError(t, err, "rejection must not consume the pending attempt")
}

func TestVerifyCode_CorrectCodeIssuesTokensAndConsumesAttempt(t *testing.T) {
	f := newLoginFixture(t)
	secret := f.enrollSecret(t, "user-1")

	var touched bool
	f.repo.TouchVerifiedFunc = func(_ context.Context, id string, _ time.Time) error {
		touched = id == "user-1"
		return nil
	}

	_, challenge, err := f.svc.Login(context.Background(), "bob", "pw", "", "10.0.0.1")
	require.NoError(t, err)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	pair, err := f.svc.VerifyCode(context.Background(), challenge.SetupToken, code, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "access", pair.AccessToken)
	assert.True(t, touched)

	_, err = f.store.Get(context.Background(), cache.LoginPendingKey(challenge.SetupToken))
	assert.ErrorIs(t, err, cache.ErrKeyNotFound, "attempt must be single use")

	_, err = f.svc.VerifyCode(context.Background(), challenge.SetupToken, code, "10.0.0.1")
	assert.ErrorIs(t, err, models.ErrSessionExpired)
}

func TestVerifyCode_UnknownTokenIsSessionExpired(t *testing.T) {
	f := newLoginFixture(t)

	_, err := f.svc.VerifyCode(context.Background(), "deadbeefdeadbeefdeadbeefdeadbeef", "123456", "10.0.0.1")
	assert.ErrorIs(t, err, models.ErrSessionExpired)
}

func TestVerifyCode_ConcurrentSubmissionsHaveOneWinner(t *testing.T) {
	f := newLoginFixture(t)
	secret := f.enrollSecret(t, "user-1")

	_, challenge, err := f.svc.Login(context.Background(), "bob", "pw", "", "10.0.0.1")
	require.NoError(t, err)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.VerifyCode(context.Background(), challenge.SetupToken, code, "10.0.0.1")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, expired int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, models.ErrSessionExpired):
			expired++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins, "exactly one submission may mint tokens")
	assert.Equal(t, n-1, expired)
}

func TestLogin_EmailChannelDeliversSingleUseCode(t *testing.T) {
	f := newLoginFixture(t)

	var delivered string
	f.sender.SendLoginCodeFunc = func(_ context.Context, _ *models.IdentityUser, channel, code string) error {
		assert.Equal(t, models.ChallengeEmail, channel)
		delivered = code
		return nil
	}

	_, challenge, err := f.svc.Login(context.Background(), "alice", "pw", models.ChallengeEmail, "10.0.0.1")
	require.NoError(t, err)
	require.NotNil(t, challenge)
	assert.Equal(t, models.ChallengeEmail, challenge.Channel)
	require.Len(t, delivered, 6)

	raw, err := f.store.Get(context.Background(), cache.LoginCodeKey(challenge.SetupToken))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), delivered, "only the hash of the code may be stored")

	pair, err := f.svc.VerifyCode(context.Background(), challenge.SetupToken, delivered, "10.0.0.1")
	require.NoError(t, err)
	assert.NotNil(t, pair)

	_, err = f.store.Get(context.Background(), cache.LoginCodeKey(challenge.SetupToken))
	assert.ErrorIs(t, err, cache.ErrKeyNotFound)
}

func TestLogin_FailedDeliveryRollsBackChallenge(t *testing.T) {
	f := newLoginFixture(t)
	f.sender.SendLoginCodeFunc = func(_ context.Context, _ *models.IdentityUser, _, _ string) error {
		return errors.New("smtp down")
	}

	_, challenge, err := f.svc.Login(context.Background(), "alice", "pw", models.ChallengeEmail, "10.0.0.1")
	assert.Error(t, err)
	assert.Nil(t, challenge)
}

func TestLogin_TotpChannelWithoutEnrollmentIsBadRequest(t *testing.T) {
	f := newLoginFixture(t)

	_, _, err := f.svc.Login(context.Background(), "alice", "pw", models.ChallengeTOTP, "10.0.0.1")
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestForgotPassword_UnknownUsernameIsSilent(t *testing.T) {
	f := newLoginFixture(t)
	f.users.LookupFunc = func(_ context.Context, _ string) (*models.IdentityUser, error) {
		return nil, models.ErrNotFound
	}
	f.sender.SendPasswordResetFunc = func(_ context.Context, _ *models.IdentityUser, _ string) error {
		t.Fatal("no mail may be sent for an unknown username")
		return nil
	}

	err := f.svc.ForgotPassword(context.Background(), "nobody", "10.0.0.1")
	assert.NoError(t, err)
}

func TestResetPassword_TokenIsSingleUse(t *testing.T) {
	f := newLoginFixture(t)

	var resetToken string
	f.sender.SendPasswordResetFunc = func(_ context.Context, _ *models.IdentityUser, token string) error {
		resetToken = token
		return nil
	}

	var updates int
	f.users.SetPasswordFunc = func(_ context.Context, userID, password string) error {
		updates++
		assert.Equal(t, "user-1", userID)
		assert.Equal(t, "new-pw", password)
		return nil
	}

	require.NoError(t, f.svc.ForgotPassword(context.Background(), "alice", "10.0.0.1"))
	require.NotEmpty(t, resetToken)

	require.NoError(t, f.svc.ResetPassword(context.Background(), resetToken, "new-pw", "10.0.0.1"))
	assert.Equal(t, 1, updates)

	err := f.svc.ResetPassword(context.Background(), resetToken, "new-pw", "10.0.0.1")
	assert.ErrorIs(t, err, models.ErrSessionExpired)
}

func TestRefreshAndLogoutDelegateToGateway(t *testing.T) {
	f := newLoginFixture(t)

	var refreshed, invalidated string
	f.tokens.RefreshTokensFunc = func(_ context.Context, token string) (*models.TokenPair, error) {
		refreshed = token
		return &models.TokenPair{AccessToken: "a", RefreshToken: "r", ExpiresIn: 60}, nil
	}
	f.tokens.InvalidateFunc = func(_ context.Context, token string) error {
		invalidated = token
		return nil
	}

	pair, err := f.svc.Refresh(context.Background(), "rt-1")
	require.NoError(t, err)
	assert.Equal(t, "a", pair.AccessToken)
	assert.Equal(t, "rt-1", refreshed)

	require.NoError(t, f.svc.Logout(context.Background(), "rt-2"))
	assert.Equal(t, "rt-2", invalidated)
}

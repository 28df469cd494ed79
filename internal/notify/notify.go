// Package notify delivers verification codes and password-reset links to
// users. Delivery transports are external collaborators; this package only
// formats messages and hands them to the configured clients.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tgiokas/dms-auth/internal/models"
)

// EmailClient sends a single email message.
type EmailClient interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// SMSClient sends a single SMS message.
type SMSClient interface {
	Send(ctx context.Context, to, message string) error
}

// Notifier routes a message to the channel's client.
type Notifier struct {
	email        EmailClient
	sms          SMSClient
	resetURLBase string
	logger       *slog.Logger
}

// NewNotifier creates a Notifier. resetURLBase is the front-end URL that
// password-reset links point at.
func NewNotifier(email EmailClient, sms SMSClient, resetURLBase string, logger *slog.Logger) *Notifier {
	return &Notifier{email: email, sms: sms, resetURLBase: resetURLBase, logger: logger}
}

// SendLoginCode delivers a one-time login code over the requested channel.
// The code itself is never logged.
func (n *Notifier) SendLoginCode(ctx context.Context, user *models.IdentityUser, channel, code string) error {
	switch channel {
	case models.ChallengeEmail:
		if user.Email == "" {
			return fmt.Errorf("user %s has no email address on record", user.ID)
		}
		subject := "Your sign-in verification code"
		text := fmt.Sprintf("Your verification code is %s. It expires in 5 minutes.", code)
		html := fmt.Sprintf(
			`<p>Your verification code is <strong>%s</strong>.</p><p>It expires in 5 minutes. If you did not try to sign in, you can ignore this message.</p>`,
			code)
		return n.email.Send(ctx, user.Email, subject, html, text)

	case models.ChallengeSMS:
		if user.Phone == "" {
			return fmt.Errorf("user %s has no phone number on record", user.ID)
		}
		return n.sms.Send(ctx, user.Phone, fmt.Sprintf("Verification code: %s (expires in 5 minutes)", code))

	default:
		return fmt.Errorf("unsupported challenge channel %q", channel)
	}
}

// SendPasswordReset emails a reset link embedding the single-use token.
func (n *Notifier) SendPasswordReset(ctx context.Context, user *models.IdentityUser, resetToken string) error {
	if user.Email == "" {
		return fmt.Errorf("user %s has no email address on record", user.ID)
	}

	link := fmt.Sprintf("%s/reset-password?token=%s", n.resetURLBase, resetToken)
	subject := "Password reset request"
	text := fmt.Sprintf("Reset your password: %s\nThe link expires in 30 minutes.", link)
	html := fmt.Sprintf(
		`<p>A password reset was requested for your account.</p><p><a href="%s">Reset your password</a></p><p>The link expires in 30 minutes. If you did not request this, ignore this message.</p>`,
		link)
	return n.email.Send(ctx, user.Email, subject, html, text)
}

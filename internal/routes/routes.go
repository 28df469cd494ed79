package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/tgiokas/dms-auth/internal/handlers"
)

// RateLimit bounds credential-guessing endpoints per client IP.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// RegisterRoutes registers all application routes. authenticate verifies the
// Bearer token and derives the caller context; authorize enforces the rule
// engine on top of it.
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	mfaHandler *handlers.MFAHandler,
	ruleHandler *handlers.RuleHandler,
	authenticate func(http.Handler) http.Handler,
	authorize func(http.Handler) http.Handler,
	limit RateLimit,
) {
	rateLimiter := httprate.LimitByIP(limit.Requests, limit.Window)

	// Public routes: credential endpoints, rate limited per IP
	router.Group(func(r chi.Router) {
		r.Use(rateLimiter)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/login/verify", authHandler.VerifyCode)
		r.Post("/auth/forgot-password", authHandler.ForgotPassword)
		r.Post("/auth/reset-password", authHandler.ResetPassword)
	})
	router.Post("/auth/refresh", authHandler.Refresh)
	router.Post("/auth/logout", authHandler.Logout)

	// Protected routes: authentication required
	router.Group(func(r chi.Router) {
		r.Use(authenticate)

		r.Post("/mfa/enroll", mfaHandler.BeginEnrollment)
		r.Post("/mfa/enroll/confirm", mfaHandler.ConfirmEnrollment)
		r.Post("/mfa/reenroll", mfaHandler.Reenroll)
		r.Post("/mfa/disable", mfaHandler.Disable)

		// Rule administration sits behind the rule engine itself
		r.Group(func(r chi.Router) {
			r.Use(authorize)
			r.Get("/rules", ruleHandler.List)
			r.Post("/rules", ruleHandler.Create)
			r.Get("/rules/{id}", ruleHandler.Get)
			r.Put("/rules/{id}", ruleHandler.Update)
			r.Delete("/rules/{id}", ruleHandler.Delete)
		})
	})
}

package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tgiokas/dms-auth/internal/services"
	pkghttp "github.com/tgiokas/dms-auth/pkg/http"
)

// AuthHandler handles login, second-factor verification, token lifecycle,
// and password reset requests.
type AuthHandler struct {
	loginService   *services.LoginService
	trustedProxies []string
	logger         *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(loginService *services.LoginService, trustedProxies []string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{loginService: loginService, trustedProxies: trustedProxies, logger: logger}
}

func (h *AuthHandler) clientIP(r *http.Request) string {
	return pkghttp.ExtractClientIP(r, h.trustedProxies)
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	pair, challenge, err := h.loginService.Login(r.Context(), req.Username, req.Password, req.Channel, h.clientIP(r))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	if challenge != nil {
		pkghttp.WriteJSON(w, http.StatusOK, challenge)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, pair)
}

// VerifyCode handles POST /auth/login/verify
func (h *AuthHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	pair, err := h.loginService.VerifyCode(r.Context(), req.SetupToken, req.Code, h.clientIP(r))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, pair)
}

// Refresh handles POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	pair, err := h.loginService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, pair)
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.loginService.Logout(r.Context(), req.RefreshToken); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Logged out"})
}

// ForgotPassword handles POST /auth/forgot-password. The response is the
// same whether or not the account exists.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.loginService.ForgotPassword(r.Context(), req.Username, h.clientIP(r)); err != nil {
		h.logger.Error("forgot password failed", slog.Any("error", err))
	}
	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{
		Message: "If the account exists, a reset link has been sent",
	})
}

// ResetPassword handles POST /auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.loginService.ResetPassword(r.Context(), req.ResetToken, req.NewPassword, h.clientIP(r)); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Password updated"})
}

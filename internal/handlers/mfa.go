package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tgiokas/dms-auth/internal/auth"
	"github.com/tgiokas/dms-auth/internal/services"
	pkghttp "github.com/tgiokas/dms-auth/pkg/http"
)

// MFAHandler handles authenticator enrollment requests. All routes require
// an authenticated caller; the user identity comes from the verified token,
// never from the request body.
type MFAHandler struct {
	mfaService     *services.MFAService
	trustedProxies []string
	logger         *slog.Logger
}

// NewMFAHandler creates a new MFA handler
func NewMFAHandler(mfaService *services.MFAService, trustedProxies []string, logger *slog.Logger) *MFAHandler {
	return &MFAHandler{mfaService: mfaService, trustedProxies: trustedProxies, logger: logger}
}

// BeginEnrollment handles POST /mfa/enroll
func (h *MFAHandler) BeginEnrollment(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	resp, err := h.mfaService.BeginEnrollment(r.Context(), user.UserID, user.Username)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// ConfirmEnrollment handles POST /mfa/enroll/confirm
func (h *MFAHandler) ConfirmEnrollment(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req ConfirmEnrollmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ip := pkghttp.ExtractClientIP(r, h.trustedProxies)
	if err := h.mfaService.ConfirmEnrollment(r.Context(), req.SetupToken, req.Code, ip); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Authenticator enrolled"})
}

// Reenroll handles POST /mfa/reenroll
func (h *MFAHandler) Reenroll(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req ReenrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	resp, err := h.mfaService.Reenroll(r.Context(), user.UserID, user.Username, req.CurrentCode)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Disable handles POST /mfa/disable
func (h *MFAHandler) Disable(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req DisableMFARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ip := pkghttp.ExtractClientIP(r, h.trustedProxies)
	if err := h.mfaService.DisableSecondFactor(r.Context(), user.UserID, req.CurrentCode, ip); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Authenticator removed"})
}

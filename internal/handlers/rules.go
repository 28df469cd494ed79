package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tgiokas/dms-auth/internal/auth"
	"github.com/tgiokas/dms-auth/internal/models"
	"github.com/tgiokas/dms-auth/internal/services"
	pkghttp "github.com/tgiokas/dms-auth/pkg/http"
)

// RuleHandler handles authorization rule administration.
type RuleHandler struct {
	ruleService    *services.RuleService
	trustedProxies []string
	logger         *slog.Logger
}

// NewRuleHandler creates a new rule handler
func NewRuleHandler(ruleService *services.RuleService, trustedProxies []string, logger *slog.Logger) *RuleHandler {
	return &RuleHandler{ruleService: ruleService, trustedProxies: trustedProxies, logger: logger}
}

func toRuleResponse(rule *models.BusinessRule) RuleResponse {
	return RuleResponse{
		ID:           rule.ID,
		DepartmentID: rule.DepartmentID,
		RoleID:       rule.RoleID,
		HTTPMethod:   rule.HTTPMethod,
		PathPattern:  rule.PathPattern,
		Allowed:      rule.Allowed,
		CreatedAt:    rule.CreatedAt.UTC().Format(time.RFC3339),
		ModifiedAt:   rule.ModifiedAt.UTC().Format(time.RFC3339),
	}
}

// List handles GET /rules
func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	rules, err := h.ruleService.List(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	out := make([]RuleResponse, 0, len(rules))
	for i := range rules {
		out = append(out, toRuleResponse(&rules[i]))
	}
	pkghttp.WriteJSON(w, http.StatusOK, out)
}

// Get handles GET /rules/{id}
func (h *RuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	rule, err := h.ruleService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, toRuleResponse(rule))
}

// Create handles POST /rules
func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	rule := &models.BusinessRule{
		DepartmentID: req.DepartmentID,
		RoleID:       req.RoleID,
		HTTPMethod:   req.HTTPMethod,
		PathPattern:  req.PathPattern,
		Allowed:      *req.Allowed,
	}

	ip := pkghttp.ExtractClientIP(r, h.trustedProxies)
	if err := h.ruleService.Create(r.Context(), rule, user.UserID, ip); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, toRuleResponse(rule))
}

// Update handles PUT /rules/{id}
func (h *RuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	rule := &models.BusinessRule{
		ID:           chi.URLParam(r, "id"),
		DepartmentID: req.DepartmentID,
		RoleID:       req.RoleID,
		HTTPMethod:   req.HTTPMethod,
		PathPattern:  req.PathPattern,
		Allowed:      *req.Allowed,
	}

	ip := pkghttp.ExtractClientIP(r, h.trustedProxies)
	if err := h.ruleService.Update(r.Context(), rule, user.UserID, ip); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, toRuleResponse(rule))
}

// Delete handles DELETE /rules/{id}
func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	ip := pkghttp.ExtractClientIP(r, h.trustedProxies)
	if err := h.ruleService.Delete(r.Context(), chi.URLParam(r, "id"), user.UserID, ip); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

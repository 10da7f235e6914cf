package handlers

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"runclub-backend/pkg/auth"
	"runclub-backend/pkg/config"
	"runclub-backend/pkg/database"
	"runclub-backend/pkg/metrics"
	"runclub-backend/pkg/models"
	"runclub-backend/pkg/utils"

	"github.com/sirupsen/logrus"
)

// AdminsHandler 管理员名册增删改查（仅 super_admin）
type AdminsHandler struct {
	base
}

func NewAdminsHandler(cfg *config.Config, db database.DatabaseInterface, authz *auth.Authorizer, log logrus.FieldLogger) *AdminsHandler {
	return &AdminsHandler{base: newBase(cfg, db, authz, log)}
}

type rosterRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Name  string `json:"name"`
}

// rosterView marks the implicit break-glass entry.
type rosterView struct {
	models.AdminRosterEntry
	BreakGlass bool `json:"break_glass,omitempty"`
}

// GET /api/admin/manage-admins
func (h *AdminsHandler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	if _, err := h.callerWithRole(r, models.RoleSuperAdmin); err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.db.ListAdmins(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]rosterView, 0, len(list)+1)
	listed := false
	for _, e := range list {
		bg := h.authz.Roles.IsBreakGlass(e.Email)
		if bg {
			listed = true
			e.Role = models.RoleSuperAdmin
		}
		out = append(out, rosterView{AdminRosterEntry: e, BreakGlass: bg})
	}
	if !listed && h.config.BreakGlassEmail != "" {
		out = append(out, rosterView{
			AdminRosterEntry: models.AdminRosterEntry{Email: h.config.BreakGlassEmail, Role: models.RoleSuperAdmin},
			BreakGlass:       true,
		})
	}
	utils.WriteSuccessResponse(w, out)
}

// POST /api/admin/manage-admins
func (h *AdminsHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	access, err := h.callerWithRole(r, models.RoleSuperAdmin)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	entry, err := h.parseEntry(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if h.authz.Roles.IsBreakGlass(entry.Email) {
		h.fail(w, r, utils.Conflict("The break-glass account is always a super admin and cannot be managed"))
		return
	}

	if err := h.db.CreateAdmin(r.Context(), entry); err != nil {
		metrics.RecordEvent("roster_create", "rejected")
		if errors.Is(err, database.ErrDuplicate) {
			h.fail(w, r, utils.Conflict("This email is already on the admin roster"))
			return
		}
		h.fail(w, r, err)
		return
	}
	metrics.RecordEvent("roster_create", "ok")
	h.log.WithField("email", entry.Email).WithField("role", entry.Role).WithField("by", access.Email()).Info("Admin added")
	utils.WriteCreatedResponse(w, entry)
}

// PUT /api/admin/manage-admins
func (h *AdminsHandler) UpdateAdmin(w http.ResponseWriter, r *http.Request) {
	access, err := h.callerWithRole(r, models.RoleSuperAdmin)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	entry, err := h.parseEntry(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if h.authz.Roles.IsBreakGlass(entry.Email) {
		h.fail(w, r, utils.Conflict("The break-glass account is always a super admin and cannot be managed"))
		return
	}
	if entry.Email == access.Email() && entry.Role != models.RoleSuperAdmin {
		h.fail(w, r, utils.Conflict("You cannot remove your own super admin role"))
		return
	}

	if err := h.db.UpdateAdmin(r.Context(), entry); err != nil {
		h.fail(w, r, notFoundAs(err, "Admin not found"))
		return
	}
	metrics.RecordEvent("roster_update", "ok")
	h.log.WithField("email", entry.Email).WithField("role", entry.Role).WithField("by", access.Email()).Info("Admin updated")
	utils.WriteSuccessResponse(w, entry)
}

// DELETE /api/admin/manage-admins?email=
func (h *AdminsHandler) DeleteAdmin(w http.ResponseWriter, r *http.Request) {
	access, err := h.callerWithRole(r, models.RoleSuperAdmin)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	email := models.NormalizeEmail(utils.GetQueryParam(r, "email", ""))
	if email == "" && r.ContentLength > 0 {
		var req rosterRequest
		if err := utils.ParseJSONBody(r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
		email = models.NormalizeEmail(req.Email)
	}
	if email == "" {
		h.fail(w, r, utils.Validation("email is required"))
		return
	}
	if h.authz.Roles.IsBreakGlass(email) {
		h.fail(w, r, utils.Conflict("The break-glass account cannot be removed"))
		return
	}
	if email == access.Email() {
		h.fail(w, r, utils.Conflict("You cannot remove yourself from the admin roster"))
		return
	}

	if err := h.db.DeleteAdmin(r.Context(), email); err != nil {
		h.fail(w, r, notFoundAs(err, "Admin not found"))
		return
	}
	metrics.RecordEvent("roster_delete", "ok")
	h.log.WithField("email", email).WithField("by", access.Email()).Info("Admin removed")
	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": true, "email": email})
}

func (h *AdminsHandler) parseEntry(r *http.Request) (*models.AdminRosterEntry, error) {
	var req rosterRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		return nil, err
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		return nil, utils.Validation("email must be a valid email address")
	}
	role := models.ParseRole(req.Role)
	if !role.Assignable() {
		return nil, utils.Validation("role must be one of super_admin, admin, editor, member")
	}
	return &models.AdminRosterEntry{
		Email: models.NormalizeEmail(addr.Address),
		Role:  role,
		Name:  strings.TrimSpace(req.Name),
	}, nil
}

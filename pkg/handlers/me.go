package handlers

import (
	"net/http"

	"runclub-backend/pkg/auth"
	"runclub-backend/pkg/awards"
	"runclub-backend/pkg/config"
	"runclub-backend/pkg/database"
	"runclub-backend/pkg/models"
	"runclub-backend/pkg/utils"

	"github.com/sirupsen/logrus"
)

// MeHandler exposes the caller's resolved access so clients gate views on the
// same policy the server enforces.
type MeHandler struct {
	base
	awards *awards.Service
}

func NewMeHandler(cfg *config.Config, db database.DatabaseInterface, authz *auth.Authorizer, svc *awards.Service, log logrus.FieldLogger) *MeHandler {
	return &MeHandler{base: newBase(cfg, db, authz, log), awards: svc}
}

type meResponse struct {
	User          *models.User        `json:"user"`
	Role          models.Role         `json:"role"`
	IsAdmin       bool                `json:"is_admin"`
	IsSuperAdmin  bool                `json:"is_super_admin"`
	CanReview     bool                `json:"can_review"`
	HasMembership bool                `json:"has_membership"`
	Membership    *models.Member      `json:"membership"`
	Awards        awards.Capabilities `json:"awards"`
}

// GET /api/me
func (h *MeHandler) Me(w http.ResponseWriter, r *http.Request) {
	access, err := h.caller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.authz.ResolveMembership(r.Context(), access); err != nil {
		h.fail(w, r, err)
		return
	}
	gate, _, err := h.awards.Gate(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteSuccessResponse(w, meResponse{
		User:          access.User,
		Role:          access.Role,
		IsAdmin:       access.IsAdmin(),
		IsSuperAdmin:  access.Role == models.RoleSuperAdmin,
		CanReview:     auth.RequireRole(access, models.RoleEditor).Allowed,
		HasMembership: access.HasMembership(),
		Membership:    access.Member,
		Awards:        gate.Capabilities(access.HasMembership()),
	})
}

package handlers

import (
	"net/http"

	"runclub-backend/pkg/auth"
	"runclub-backend/pkg/config"
	"runclub-backend/pkg/database"
	"runclub-backend/pkg/metrics"
	"runclub-backend/pkg/models"
	"runclub-backend/pkg/utils"

	"github.com/sirupsen/logrus"
)

// ProfileHandler 会员本人资料读取与修改
type ProfileHandler struct {
	base
}

func NewProfileHandler(cfg *config.Config, db database.DatabaseInterface, authz *auth.Authorizer, log logrus.FieldLogger) *ProfileHandler {
	return &ProfileHandler{base: newBase(cfg, db, authz, log)}
}

// GET /api/profile[?email=]
// Only administrators may read someone else's record.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	access, err := h.caller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	email := access.Email()
	if requested := models.NormalizeEmail(utils.GetQueryParam(r, "email", "")); requested != "" && requested != email {
		if !access.IsAdmin() {
			h.fail(w, r, utils.Forbidden("Only administrators can view other members' profiles"))
			return
		}
		email = requested
	}

	member, err := h.db.GetMemberByEmail(r.Context(), email)
	if err != nil {
		h.fail(w, r, notFoundAs(err, "No member profile found"))
		return
	}
	utils.WriteSuccessResponse(w, member)
}

// PATCH /api/profile
// Members edit their own contact details; the change is flagged for admin review.
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	access, err := h.caller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var patch map[string]interface{}
	if err := utils.ParseJSONBody(r, &patch); err != nil {
		h.fail(w, r, err)
		return
	}
	// clients often echo identity fields back; they are never writable here
	delete(patch, "id")
	delete(patch, "email")
	if err := validateMemberPatch(patch, models.ProfileEditableFields); err != nil {
		h.fail(w, r, err)
		return
	}

	member, err := h.db.GetMemberByEmail(r.Context(), access.Email())
	if err != nil {
		h.fail(w, r, notFoundAs(err, "No member profile found"))
		return
	}

	patch["pending_update"] = true
	updated, err := h.db.UpdateMember(r.Context(), member.ID, patch)
	if err != nil {
		metrics.RecordEvent("profile_update", "error")
		h.fail(w, r, notFoundAs(err, "No member profile found"))
		return
	}
	metrics.RecordEvent("profile_update", "ok")
	utils.WriteSuccessResponse(w, updated)
}

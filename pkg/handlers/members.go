package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"runclub-backend/pkg/auth"
	"runclub-backend/pkg/config"
	"runclub-backend/pkg/database"
	"runclub-backend/pkg/metrics"
	"runclub-backend/pkg/models"
	"runclub-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// MembersHandler 会员目录、入会申请与管理员审核
type MembersHandler struct {
	base
	now func() time.Time
}

func NewMembersHandler(cfg *config.Config, db database.DatabaseInterface, authz *auth.Authorizer, log logrus.FieldLogger) *MembersHandler {
	return &MembersHandler{base: newBase(cfg, db, authz, log), now: time.Now}
}

// GET /api/members?status=approved
func (h *MembersHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	if _, err := h.callerWithRole(r, models.RoleAdmin); err != nil {
		h.fail(w, r, err)
		return
	}
	status := models.ApplicationStatus(strings.ToLower(utils.GetQueryParam(r, "status", "")))
	switch status {
	case "", models.ApplicationPending, models.ApplicationApproved, models.ApplicationRejected:
	default:
		h.fail(w, r, utils.Validation("status must be pending, approved or rejected"))
		return
	}

	list, err := h.db.ListMembers(r.Context(), status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]models.MemberDirectoryEntry, 0, len(list))
	for _, m := range list {
		out = append(out, models.MemberDirectoryEntry{ID: m.ID, Email: m.Email, FirstName: m.FirstName, Surname: m.Surname})
	}
	utils.WriteSuccessResponse(w, out)
}

// POST /api/applications
func (h *MembersHandler) Apply(w http.ResponseWriter, r *http.Request) {
	access, err := h.caller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req models.MemberApplicationRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := validateApplication(&req); err != nil {
		h.fail(w, r, err)
		return
	}

	m := &models.Member{
		Email:                 access.Email(),
		FirstName:             req.FirstName,
		Surname:               req.Surname,
		Phone:                 req.Phone,
		DateOfBirth:           req.DateOfBirth,
		Address:               req.Address,
		Postcode:              req.Postcode,
		EmergencyContactName:  req.EmergencyContactName,
		EmergencyContactPhone: req.EmergencyContactPhone,
		MembershipType:        req.MembershipType,
		MembershipStatus:      models.MembershipPending,
		PaymentStatus:         "unpaid",
		SignatureURL:          req.SignatureURL,
		PhotoConsent:          req.PhotoConsent,
		NewsletterOptIn:       req.NewsletterOptIn,
		DirectoryOptOut:       req.DirectoryOptOut,
		Status:                models.ApplicationPending,
	}
	if err := h.db.CreateMember(r.Context(), m); err != nil {
		metrics.RecordEvent("membership_apply", "rejected")
		if errors.Is(err, database.ErrDuplicate) {
			h.fail(w, r, utils.Conflict("An application already exists for this email"))
			return
		}
		h.fail(w, r, err)
		return
	}
	metrics.RecordEvent("membership_apply", "ok")
	h.log.WithField("member_id", m.ID).WithField("email", m.Email).Info("Membership application received")
	utils.WriteCreatedResponse(w, m)
}

func validateApplication(req *models.MemberApplicationRequest) error {
	trim := []*string{
		&req.FirstName, &req.Surname, &req.Phone, &req.DateOfBirth, &req.Address, &req.Postcode,
		&req.EmergencyContactName, &req.EmergencyContactPhone, &req.SignatureURL,
	}
	for _, s := range trim {
		*s = strings.TrimSpace(*s)
	}

	required := []struct{ field, value string }{
		{"first_name", req.FirstName},
		{"surname", req.Surname},
		{"phone", req.Phone},
		{"date_of_birth", req.DateOfBirth},
		{"address", req.Address},
		{"postcode", req.Postcode},
		{"emergency_contact_name", req.EmergencyContactName},
		{"emergency_contact_phone", req.EmergencyContactPhone},
	}
	for _, f := range required {
		if f.value == "" {
			return utils.Validation(f.field + " is required")
		}
	}
	if _, err := models.ParseDate(req.DateOfBirth); err != nil {
		return utils.Validation("date_of_birth must be a date (YYYY-MM-DD)")
	}
	if req.MembershipType == "" {
		req.MembershipType = models.MembershipClub
	}
	if !req.MembershipType.Valid() {
		return utils.Validation("membership_type must be club or club+affiliation")
	}
	return nil
}

// GET /api/admin/applications?status=pending
func (h *MembersHandler) ListApplications(w http.ResponseWriter, r *http.Request) {
	if _, err := h.callerWithRole(r, models.RoleAdmin); err != nil {
		h.fail(w, r, err)
		return
	}
	status := models.ApplicationStatus(strings.ToLower(utils.GetQueryParam(r, "status", string(models.ApplicationPending))))
	list, err := h.db.ListMembers(r.Context(), status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []models.Member{}
	}
	utils.WriteSuccessResponse(w, list)
}

type applicationReview struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// POST /api/admin/applications/{id}/review
func (h *MembersHandler) ReviewApplication(w http.ResponseWriter, r *http.Request) {
	access, err := h.callerWithRole(r, models.RoleAdmin)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id := chiRoute.URLParam(r, "id")
	var req applicationReview
	if err := utils.ParseJSONBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	existing, err := h.db.GetMemberByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, notFoundAs(err, "Application not found"))
		return
	}

	patch := map[string]interface{}{}
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "approve", "approved":
		patch["status"] = string(models.ApplicationApproved)
		patch["membership_status"] = string(models.MembershipActive)
		patch["pending_update"] = false
		if existing.MembershipExpiry == nil {
			patch["membership_expiry"] = models.NewDate(h.now().AddDate(1, 0, 0)).String()
		}
	case "reject", "rejected":
		patch["status"] = string(models.ApplicationRejected)
	default:
		h.fail(w, r, utils.Validation("action must be approve or reject"))
		return
	}

	updated, err := h.db.UpdateMember(r.Context(), id, patch)
	if err != nil {
		metrics.RecordEvent("membership_review", "error")
		h.fail(w, r, notFoundAs(err, "Application not found"))
		return
	}
	metrics.RecordEvent("membership_review", "ok")
	h.log.WithFields(logrus.Fields{
		"member_id": id,
		"status":    updated.Status,
		"by":        access.Email(),
		"reason":    strings.TrimSpace(req.Reason),
	}).Info("Membership application reviewed")
	utils.WriteSuccessResponse(w, updated)
}

// PUT /api/admin/members/{id}
func (h *MembersHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	if _, err := h.callerWithRole(r, models.RoleAdmin); err != nil {
		h.fail(w, r, err)
		return
	}
	var patch map[string]interface{}
	if err := utils.ParseJSONBody(r, &patch); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := validateMemberPatch(patch, models.AdminEditableFields); err != nil {
		h.fail(w, r, err)
		return
	}

	updated, err := h.db.UpdateMember(r.Context(), chiRoute.URLParam(r, "id"), patch)
	if err != nil {
		h.fail(w, r, notFoundAs(err, "Member not found"))
		return
	}
	utils.WriteSuccessResponse(w, updated)
}

// DELETE /api/admin/members/{id}
func (h *MembersHandler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	access, err := h.callerWithRole(r, models.RoleAdmin)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id := chiRoute.URLParam(r, "id")
	if err := h.db.DeleteMember(r.Context(), id); err != nil {
		h.fail(w, r, notFoundAs(err, "Member not found"))
		return
	}
	h.log.WithField("member_id", id).WithField("by", access.Email()).Info("Member deleted")
	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": true, "id": id})
}

// GET /api/membership-check?secret=
// 将过期日早于今天的有效会员标记为 expired
func (h *MembersHandler) MembershipCheck(w http.ResponseWriter, r *http.Request) {
	today := models.NewDate(h.now())
	ids, err := h.db.ExpireMemberships(r.Context(), today)
	if err != nil {
		metrics.RecordEvent("membership_expire", "error")
		h.fail(w, r, err)
		return
	}
	metrics.RecordEvent("membership_expire", "ok")
	if ids == nil {
		ids = []string{}
	}
	h.log.WithField("expired", len(ids)).WithField("as_of", today.String()).Info("Membership expiry sweep finished")
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"as_of":   today.String(),
		"expired": len(ids),
		"ids":     ids,
	})
}

// validateMemberPatch rejects unknown columns and malformed enum or date values.
func validateMemberPatch(patch map[string]interface{}, allowed []string) error {
	if len(patch) == 0 {
		return utils.Validation("No fields to update")
	}
	ok := make(map[string]bool, len(allowed))
	for _, f := range allowed {
		ok[f] = true
	}
	for k, v := range patch {
		if !ok[k] {
			return utils.Validation("Field " + k + " cannot be updated")
		}
		s, isString := v.(string)
		switch k {
		case "membership_status":
			if !isString || !models.MembershipStatus(s).Valid() {
				return utils.Validation("membership_status must be active, pending, expired or suspended")
			}
		case "membership_type":
			if !isString || !models.MembershipType(s).Valid() {
				return utils.Validation("membership_type must be club or club+affiliation")
			}
		case "status":
			switch models.ApplicationStatus(s) {
			case models.ApplicationPending, models.ApplicationApproved, models.ApplicationRejected:
			default:
				return utils.Validation("status must be pending, approved or rejected")
			}
		case "membership_expiry", "date_of_birth":
			if v == nil {
				continue
			}
			if !isString {
				return utils.Validation(k + " must be a date (YYYY-MM-DD)")
			}
			if _, err := models.ParseDate(s); err != nil {
				return utils.Validation(k + " must be a date (YYYY-MM-DD)")
			}
		case "photo_consent", "newsletter_opt_in", "directory_opt_out", "pending_update":
			if _, isBool := v.(bool); !isBool {
				return utils.Validation(k + " must be true or false")
			}
		default:
			if v != nil && !isString {
				return utils.Validation(k + " must be a string")
			}
		}
	}
	return nil
}

func notFoundAs(err error, msg string) error {
	if errors.Is(err, database.ErrNotFound) {
		return utils.NotFound(msg)
	}
	return err
}

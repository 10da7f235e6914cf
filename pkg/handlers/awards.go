package handlers

import (
	"net/http"
	"strconv"

	"runclub-backend/pkg/auth"
	"runclub-backend/pkg/awards"
	"runclub-backend/pkg/config"
	"runclub-backend/pkg/database"
	"runclub-backend/pkg/models"
	"runclub-backend/pkg/utils"

	"github.com/sirupsen/logrus"
)

// AwardsHandler 俱乐部奖项：类别、设置、提名、审核、投票
type AwardsHandler struct {
	base
	awards *awards.Service
}

func NewAwardsHandler(cfg *config.Config, db database.DatabaseInterface, authz *auth.Authorizer, svc *awards.Service, log logrus.FieldLogger) *AwardsHandler {
	return &AwardsHandler{base: newBase(cfg, db, authz, log), awards: svc}
}

// ================= 类别 =================

// GET /api/awards/categories
func (h *AwardsHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccessResponse(w, h.awards.Categories(r.Context()))
}

// POST /api/awards/categories/manage
func (h *AwardsHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	access, in, ok := h.categoryRequest(w, r)
	if !ok {
		return
	}
	c, err := h.awards.CreateCategory(r.Context(), access, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteCreatedResponse(w, c)
}

// PUT /api/awards/categories/manage
func (h *AwardsHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	access, in, ok := h.categoryRequest(w, r)
	if !ok {
		return
	}
	c, err := h.awards.UpdateCategory(r.Context(), access, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, c)
}

// DELETE /api/awards/categories/manage?id=
func (h *AwardsHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	access, err := h.caller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id := utils.GetQueryParam(r, "id", "")
	if id == "" && r.ContentLength > 0 {
		var in awards.CategoryInput
		if err := utils.ParseJSONBody(r, &in); err != nil {
			h.fail(w, r, err)
			return
		}
		id = in.ID
	}
	if err := h.awards.DeleteCategory(r.Context(), access, id); err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": true, "id": id})
}

func (h *AwardsHandler) categoryRequest(w http.ResponseWriter, r *http.Request) (*auth.Access, awards.CategoryInput, bool) {
	var in awards.CategoryInput
	access, err := h.caller(r)
	if err != nil {
		h.fail(w, r, err)
		return nil, in, false
	}
	if err := utils.ParseJSONBody(r, &in); err != nil {
		h.fail(w, r, err)
		return nil, in, false
	}
	return access, in, true
}

// ================= 设置 =================

// GET /api/awards/public-settings
func (h *AwardsHandler) PublicSettings(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccessResponse(w, h.awards.PublicSettings(r.Context()))
}

// GET /api/awards/settings
func (h *AwardsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	if _, err := h.callerWithRole(r, models.RoleAdmin); err != nil {
		h.fail(w, r, err)
		return
	}
	settings, err := h.awards.Settings(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, settings)
}

// PUT, PATCH /api/awards/settings
// Both merge the supplied fields into the stored settings.
func (h *AwardsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	access, err := h.caller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var patch awards.SettingsPatch
	if err := utils.ParseJSONBody(r, &patch); err != nil {
		h.fail(w, r, err)
		return
	}
	settings, err := h.awards.UpdateSettings(r.Context(), access, patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, settings)
}

// ================= 提名 =================

// GET /api/awards/nominations?status=&year=&category_id=
func (h *AwardsHandler) ListNominations(w http.ResponseWriter, r *http.Request) {
	access, err := h.caller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	year, err := yearParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.awards.ListNominations(r.Context(), access, awards.NominationQuery{
		Status:     utils.GetQueryParam(r, "status", ""),
		Year:       year,
		CategoryID: utils.GetQueryParam(r, "category_id", ""),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, list)
}

// POST /api/awards/nominations
func (h *AwardsHandler) CreateNomination(w http.ResponseWriter, r *http.Request) {
	access, err := h.caller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req awards.NominationRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	n, err := h.awards.CreateNomination(r.Context(), access, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteCreatedResponse(w, n)
}

// PATCH /api/awards/nominations
func (h *AwardsHandler) UpdateNomination(w http.ResponseWriter, r *http.Request) {
	access, err := h.caller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var patch awards.NominationPatch
	if err := utils.ParseJSONBody(r, &patch); err != nil {
		h.fail(w, r, err)
		return
	}
	n, err := h.awards.UpdateNomination(r.Context(), access, patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, n)
}

// GET /api/awards/nominations-review?status=pending
func (h *AwardsHandler) ReviewQueue(w http.ResponseWriter, r *http.Request) {
	access, err := h.callerWithRole(r, models.RoleEditor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	year, err := yearParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.awards.ListNominations(r.Context(), access, awards.NominationQuery{
		Status: utils.GetQueryParam(r, "status", string(models.NominationPending)),
		Year:   year,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, list)
}

// POST /api/awards/nominations-review
func (h *AwardsHandler) ReviewNomination(w http.ResponseWriter, r *http.Request) {
	access, err := h.caller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var d awards.ReviewDecision
	if err := utils.ParseJSONBody(r, &d); err != nil {
		h.fail(w, r, err)
		return
	}
	n, err := h.awards.ReviewNomination(r.Context(), access, d)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, n)
}

// GET /api/awards/my-nominations
func (h *AwardsHandler) MyNominations(w http.ResponseWriter, r *http.Request) {
	access, err := h.caller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.awards.MyNominations(r.Context(), access)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, list)
}

// ================= 投票 =================

// GET /api/awards/votes?year=
func (h *AwardsHandler) Tallies(w http.ResponseWriter, r *http.Request) {
	access, err := h.caller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	year, err := yearParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	tallies, err := h.awards.Tallies(r.Context(), access, year)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, tallies)
}

// POST /api/awards/votes
func (h *AwardsHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	access, err := h.caller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req awards.VoteRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := h.awards.CastVote(r.Context(), access, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteCreatedResponse(w, v)
}

// GET /api/awards/votes/my-votes
func (h *AwardsHandler) MyVotes(w http.ResponseWriter, r *http.Request) {
	access, err := h.caller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.awards.MyVotes(r.Context(), access)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, list)
}

func yearParam(r *http.Request) (int, error) {
	v := utils.GetQueryParam(r, "year", "")
	if v == "" {
		return 0, nil
	}
	year, err := strconv.Atoi(v)
	if err != nil || year < 2000 || year > 2100 {
		return 0, utils.Validation("year must be a four-digit year")
	}
	return year, nil
}

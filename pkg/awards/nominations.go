package awards

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"unicode/utf8"

	"runclub-backend/pkg/auth"
	"runclub-backend/pkg/database"
	"runclub-backend/pkg/models"
	"runclub-backend/pkg/utils"
)

const (
	minReasonLength    = 10
	minRejectionLength = 5
	maxReasonLength    = 2000
)

// NominationRequest is the body of a new nomination.
type NominationRequest struct {
	CategoryID   string `json:"category_id"`
	NomineeEmail string `json:"nominee_email"`
	NomineeName  string `json:"nominee_name"`
	Reason       string `json:"reason"`
}

func (req *NominationRequest) normalize() error {
	req.CategoryID = strings.TrimSpace(req.CategoryID)
	req.NomineeName = strings.TrimSpace(req.NomineeName)
	req.Reason = strings.TrimSpace(req.Reason)

	if req.CategoryID == "" {
		return utils.Validation("category_id is required")
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(req.NomineeEmail))
	if err != nil {
		return utils.Validation("nominee_email must be a valid email address")
	}
	req.NomineeEmail = models.NormalizeEmail(addr.Address)
	if req.NomineeName == "" {
		req.NomineeName = addr.Name
	}
	if err := checkReason(req.Reason); err != nil {
		return err
	}
	return nil
}

func checkReason(reason string) error {
	n := utf8.RuneCountInString(reason)
	if n < minReasonLength {
		return utils.Validation("reason must be at least 10 characters")
	}
	if n > maxReasonLength {
		return utils.Validation("reason must be at most 2000 characters")
	}
	return nil
}

// CreateNomination files a nomination for the active year. It needs the
// nomination phase and a usable membership; one nomination per nominator,
// category and year is enforced by the store.
func (s *Service) CreateNomination(ctx context.Context, access *auth.Access, req NominationRequest) (n *models.AwardNomination, err error) {
	defer func() { s.record("nomination_create", err) }()

	gate, settings, err := s.Gate(ctx)
	if err != nil {
		return nil, err
	}
	if err := gate.CanNominate(); err != nil {
		return nil, err
	}
	if _, err := s.authz.RequireMembership(ctx, access); err != nil {
		return nil, err
	}
	if err := req.normalize(); err != nil {
		return nil, err
	}

	if _, err := s.store.GetCategory(ctx, req.CategoryID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, utils.Validation("Unknown award category")
		}
		return nil, err
	}

	n = &models.AwardNomination{
		CategoryID:     req.CategoryID,
		NomineeEmail:   req.NomineeEmail,
		NomineeName:    req.NomineeName,
		NominatorEmail: access.Email(),
		Reason:         req.Reason,
		Status:         models.NominationPending,
		AwardYear:      settings.ActiveYear,
	}
	if err := s.store.CreateNomination(ctx, n); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, utils.Conflict("You have already nominated someone in this category this year")
		}
		return nil, err
	}

	s.log.WithField("nomination_id", n.ID).
		WithField("category_id", n.CategoryID).
		WithField("nominator", n.NominatorEmail).
		Info("Nomination created")
	return n, nil
}

// NominationQuery is a listing request. An empty status means every status.
type NominationQuery struct {
	Status     string
	Year       int
	CategoryID string
}

// ListNominations returns nominations for a year (the active year by default).
// Members see approved nominations only and get that filter by default; other
// statuses need editor or above.
func (s *Service) ListNominations(ctx context.Context, access *auth.Access, q NominationQuery) ([]models.AwardNomination, error) {
	filter := models.NominationFilter{CategoryID: strings.TrimSpace(q.CategoryID), AwardYear: q.Year}

	if q.Status != "" {
		status, ok := models.ParseNominationStatus(q.Status)
		if !ok {
			return nil, utils.Validation("status must be pending, approved or rejected")
		}
		filter.Status = status
	} else if !auth.RequireRole(access, models.RoleEditor).Allowed {
		filter.Status = models.NominationApproved
	}
	if filter.Status != models.NominationApproved {
		if err := requireRole(access, models.RoleEditor); err != nil {
			return nil, err
		}
	}

	if filter.AwardYear == 0 {
		settings, err := s.Settings(ctx)
		if err != nil {
			return nil, err
		}
		filter.AwardYear = settings.ActiveYear
	}

	list, err := s.store.ListNominations(ctx, filter)
	if err != nil {
		return nil, err
	}
	return nonNil(list), nil
}

// MyNominations lists the caller's own nominations for the active year.
func (s *Service) MyNominations(ctx context.Context, access *auth.Access) ([]models.AwardNomination, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.store.ListNominations(ctx, models.NominationFilter{
		NominatorEmail: access.Email(),
		AwardYear:      settings.ActiveYear,
	})
	if err != nil {
		return nil, err
	}
	return nonNil(list), nil
}

// ReviewDecision is the body of a review action.
type ReviewDecision struct {
	NominationID string `json:"nomination_id"`
	Action       string `json:"action"`
	Reason       string `json:"reason"`
}

// ReviewNomination approves or rejects a nomination. A rejection needs a reason
// of at least 5 characters, kept as the admin note.
func (s *Service) ReviewNomination(ctx context.Context, access *auth.Access, d ReviewDecision) (n *models.AwardNomination, err error) {
	defer func() { s.record("nomination_review", err) }()

	if err := requireRole(access, models.RoleEditor); err != nil {
		return nil, err
	}
	id := strings.TrimSpace(d.NominationID)
	if id == "" {
		return nil, utils.Validation("nomination_id is required")
	}

	patch := map[string]interface{}{}
	reason := strings.TrimSpace(d.Reason)
	switch strings.ToLower(strings.TrimSpace(d.Action)) {
	case "approve", "approved":
		patch["status"] = string(models.NominationApproved)
		if reason != "" {
			patch["admin_note"] = reason
		}
	case "reject", "rejected":
		if utf8.RuneCountInString(reason) < minRejectionLength {
			return nil, utils.Validation("A rejection reason of at least 5 characters is required")
		}
		patch["status"] = string(models.NominationRejected)
		patch["admin_note"] = reason
	default:
		return nil, utils.Validation("action must be approve or reject")
	}

	n, err = s.store.UpdateNomination(ctx, id, patch)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, utils.NotFound("Nomination not found")
		}
		return nil, err
	}
	s.log.WithField("nomination_id", n.ID).
		WithField("status", n.Status).
		WithField("by", access.Email()).
		Info("Nomination reviewed")
	return n, nil
}

// NominationPatch is a partial nomination edit.
type NominationPatch struct {
	ID          string  `json:"id"`
	Status      *string `json:"status"`
	AdminNote   *string `json:"admin_note"`
	NomineeName *string `json:"nominee_name"`
	Reason      *string `json:"reason"`
}

// UpdateNomination edits a nomination. Editors may change anything editable.
// A nominator may revise the wording of their own pending nomination while
// nominations are open.
func (s *Service) UpdateNomination(ctx context.Context, access *auth.Access, p NominationPatch) (n *models.AwardNomination, err error) {
	defer func() { s.record("nomination_update", err) }()

	id := strings.TrimSpace(p.ID)
	if id == "" {
		return nil, utils.Validation("id is required")
	}
	existing, err := s.store.GetNomination(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, utils.NotFound("Nomination not found")
		}
		return nil, err
	}

	editor := auth.RequireRole(access, models.RoleEditor).Allowed
	if !editor {
		if models.NormalizeEmail(existing.NominatorEmail) != access.Email() {
			return nil, utils.Forbidden("You can only edit your own nominations")
		}
		if p.Status != nil || p.AdminNote != nil {
			return nil, utils.Forbidden("Only reviewers can change a nomination's status")
		}
		if existing.Status != models.NominationPending {
			return nil, utils.Conflict("Only pending nominations can be edited")
		}
		gate, _, err := s.Gate(ctx)
		if err != nil {
			return nil, err
		}
		if err := gate.CanNominate(); err != nil {
			return nil, err
		}
	}

	patch := map[string]interface{}{}
	if p.Status != nil {
		status, ok := models.ParseNominationStatus(*p.Status)
		if !ok {
			return nil, utils.Validation("status must be pending, approved or rejected")
		}
		patch["status"] = string(status)
		if status == models.NominationRejected {
			note := existing.AdminNote
			if p.AdminNote != nil {
				note = strings.TrimSpace(*p.AdminNote)
			}
			if utf8.RuneCountInString(note) < minRejectionLength {
				return nil, utils.Validation("A rejection reason of at least 5 characters is required")
			}
		}
	}
	if p.AdminNote != nil {
		patch["admin_note"] = strings.TrimSpace(*p.AdminNote)
	}
	if p.NomineeName != nil {
		patch["nominee_name"] = strings.TrimSpace(*p.NomineeName)
	}
	if p.Reason != nil {
		reason := strings.TrimSpace(*p.Reason)
		if err := checkReason(reason); err != nil {
			return nil, err
		}
		patch["reason"] = reason
	}
	if len(patch) == 0 {
		return nil, utils.Validation("No editable fields supplied")
	}

	n, err = s.store.UpdateNomination(ctx, id, patch)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, utils.NotFound("Nomination not found")
		}
		return nil, err
	}
	return n, nil
}

func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}

package awards

import (
	"context"
	"errors"
	"sort"
	"strings"

	"runclub-backend/pkg/auth"
	"runclub-backend/pkg/database"
	"runclub-backend/pkg/models"
	"runclub-backend/pkg/utils"
)

// VoteRequest is the body of a vote.
type VoteRequest struct {
	NominationID string `json:"nomination_id"`
}

// CastVote records a vote for an approved nomination of the active year. The
// vote carries the nomination's category so the store can hold one vote per
// voter, category and year.
func (s *Service) CastVote(ctx context.Context, access *auth.Access, req VoteRequest) (v *models.AwardVote, err error) {
	defer func() { s.record("vote_cast", err) }()

	id := strings.TrimSpace(req.NominationID)
	if id == "" {
		return nil, utils.Validation("nomination_id is required")
	}

	gate, settings, err := s.Gate(ctx)
	if err != nil {
		return nil, err
	}
	if gate.Phase != models.PhaseVoting {
		return nil, gate.CanVote(nil)
	}
	if _, err := s.authz.RequireMembership(ctx, access); err != nil {
		return nil, err
	}

	n, err := s.store.GetNomination(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, utils.NotFound("Nomination not found")
		}
		return nil, err
	}
	if err := gate.CanVote(n); err != nil {
		return nil, err
	}
	if n.AwardYear != settings.ActiveYear {
		return nil, utils.Conflict("This nomination is not part of the current awards")
	}

	v = &models.AwardVote{
		NominationID: n.ID,
		CategoryID:   n.CategoryID,
		VoterEmail:   access.Email(),
		AwardYear:    settings.ActiveYear,
	}
	if err := s.store.CreateVote(ctx, v); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, utils.Conflict("You have already voted in this category")
		}
		return nil, err
	}
	s.log.WithField("category_id", v.CategoryID).WithField("voter", v.VoterEmail).Info("Vote cast")
	return v, nil
}

// MyVotes lists the caller's votes for the active year.
func (s *Service) MyVotes(ctx context.Context, access *auth.Access) ([]models.AwardVote, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.store.ListVotesByVoter(ctx, access.Email(), settings.ActiveYear)
	if err != nil {
		return nil, err
	}
	return nonNil(list), nil
}

// Tallies counts votes per approved nomination for a year (the active year
// when zero). Admins can always see them; members once the awards are completed.
func (s *Service) Tallies(ctx context.Context, access *auth.Access, year int) ([]models.VoteTally, error) {
	gate, settings, err := s.Gate(ctx)
	if err != nil {
		return nil, err
	}
	if !access.IsAdmin() {
		if !gate.ResultsVisible() {
			return nil, utils.Forbidden("Results are not available yet")
		}
		if _, err := s.authz.RequireMembership(ctx, access); err != nil {
			return nil, err
		}
	}
	if year == 0 {
		year = settings.ActiveYear
	}

	nominations, err := s.store.ListNominations(ctx, models.NominationFilter{
		Status:    models.NominationApproved,
		AwardYear: year,
	})
	if err != nil {
		return nil, err
	}
	votes, err := s.store.ListVotes(ctx, year)
	if err != nil {
		return nil, err
	}
	return tally(nominations, votes), nil
}

// tally orders results by category, then votes descending, then nominee.
func tally(nominations []models.AwardNomination, votes []models.AwardVote) []models.VoteTally {
	counts := make(map[string]int, len(nominations))
	for _, v := range votes {
		counts[v.NominationID]++
	}

	out := make([]models.VoteTally, 0, len(nominations))
	for _, n := range nominations {
		out = append(out, models.VoteTally{
			NominationID: n.ID,
			CategoryID:   n.CategoryID,
			NomineeEmail: n.NomineeEmail,
			NomineeName:  n.NomineeName,
			Votes:        counts[n.ID],
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.CategoryID != b.CategoryID {
			return a.CategoryID < b.CategoryID
		}
		if a.Votes != b.Votes {
			return a.Votes > b.Votes
		}
		return a.NomineeEmail < b.NomineeEmail
	})
	return out
}

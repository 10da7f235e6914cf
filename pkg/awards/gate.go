package awards

import (
	"runclub-backend/pkg/models"
	"runclub-backend/pkg/utils"
)

// Gate decides which awards actions the current phase allows.
// Phase changes are explicit administrator actions; the date windows never move the phase.
type Gate struct {
	Phase models.Phase
}

// NewGate builds a gate from the stored settings. Missing settings mean setup.
func NewGate(s *models.AwardSettings) Gate {
	if s == nil || s.CurrentPhase == "" {
		return Gate{Phase: models.PhaseSetup}
	}
	return Gate{Phase: s.CurrentPhase}
}

// CanNominate allows nominations only during the nomination phase.
func (g Gate) CanNominate() error {
	if g.Phase != models.PhaseNomination {
		return utils.Conflict("Nominations are currently closed")
	}
	return nil
}

// CanVote allows a vote only during voting and only for an approved nomination.
func (g Gate) CanVote(n *models.AwardNomination) error {
	if g.Phase != models.PhaseVoting {
		return utils.Conflict("Voting is currently closed")
	}
	if n == nil || n.Status != models.NominationApproved {
		return utils.Conflict("Votes can only be cast for approved nominations")
	}
	return nil
}

// ResultsVisible reports whether members may see the tallies.
func (g Gate) ResultsVisible() bool {
	return g.Phase == models.PhaseCompleted
}

// Capabilities is the client-facing summary of what the gate allows.
type Capabilities struct {
	Phase          models.Phase `json:"current_phase"`
	CanNominate    bool         `json:"can_nominate"`
	CanVote        bool         `json:"can_vote"`
	ResultsVisible bool         `json:"results_visible"`
}

// Capabilities evaluates the gate for a caller. Members only nominate and vote
// when they hold a usable membership.
func (g Gate) Capabilities(hasMembership bool) Capabilities {
	return Capabilities{
		Phase:          g.Phase,
		CanNominate:    hasMembership && g.CanNominate() == nil,
		CanVote:        hasMembership && g.Phase == models.PhaseVoting,
		ResultsVisible: g.ResultsVisible(),
	}
}

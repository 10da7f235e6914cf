package models

import (
	"strings"
	"time"
)

// Phase is the current stage of the club awards cycle.
type Phase string

const (
	PhaseSetup      Phase = "setup"
	PhaseNomination Phase = "nomination"
	PhaseVoting     Phase = "voting"
	PhaseCompleted  Phase = "completed"
)

// ParsePhase accepts the canonical phase names and their legacy aliases
// ("inactive" for setup, "closed" for completed).
func ParsePhase(s string) (Phase, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "setup", "inactive":
		return PhaseSetup, true
	case "nomination", "nominations":
		return PhaseNomination, true
	case "voting":
		return PhaseVoting, true
	case "completed", "closed":
		return PhaseCompleted, true
	}
	return "", false
}

// AwardSettings is the singleton row controlling the awards cycle.
// The date windows are informational; only CurrentPhase gates behaviour.
type AwardSettings struct {
	ID                  string    `json:"id,omitempty" db:"id"`
	CurrentPhase        Phase     `json:"current_phase" db:"current_phase"`
	ActiveYear          int       `json:"active_year" db:"active_year"`
	NominationStartDate *Date     `json:"nomination_start_date,omitempty" db:"nomination_start_date"`
	NominationEndDate   *Date     `json:"nomination_end_date,omitempty" db:"nomination_end_date"`
	VotingStartDate     *Date     `json:"voting_start_date,omitempty" db:"voting_start_date"`
	VotingEndDate       *Date     `json:"voting_end_date,omitempty" db:"voting_end_date"`
	UpdatedAt           time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// DefaultAwardSettings is used before an administrator has saved any settings.
func DefaultAwardSettings(now time.Time) *AwardSettings {
	return &AwardSettings{CurrentPhase: PhaseSetup, ActiveYear: now.Year()}
}

// PublicAwardSettings is the unauthenticated view of the settings.
type PublicAwardSettings struct {
	CurrentPhase Phase `json:"current_phase"`
	ActiveYear   int   `json:"active_year"`
	Configured   bool  `json:"configured"`
}

// AwardCategory is an award that members can be nominated for.
type AwardCategory struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time `json:"created_at,omitempty" db:"created_at"`
}

// NominationStatus is the review state of a nomination.
type NominationStatus string

const (
	NominationPending  NominationStatus = "pending"
	NominationApproved NominationStatus = "approved"
	NominationRejected NominationStatus = "rejected"
)

// ParseNominationStatus validates a status string.
func ParseNominationStatus(s string) (NominationStatus, bool) {
	switch NominationStatus(strings.ToLower(strings.TrimSpace(s))) {
	case NominationPending:
		return NominationPending, true
	case NominationApproved:
		return NominationApproved, true
	case NominationRejected:
		return NominationRejected, true
	}
	return "", false
}

// AwardNomination is one member's nomination of another in a category.
// At most one per (nominator_email, category_id, award_year).
type AwardNomination struct {
	ID             string           `json:"id" db:"id"`
	CategoryID     string           `json:"category_id" db:"category_id"`
	NomineeEmail   string           `json:"nominee_email" db:"nominee_email"`
	NomineeName    string           `json:"nominee_name,omitempty" db:"nominee_name"`
	NominatorEmail string           `json:"nominator_email" db:"nominator_email"`
	Reason         string           `json:"reason" db:"reason"`
	Status         NominationStatus `json:"status" db:"status"`
	AwardYear      int              `json:"award_year" db:"award_year"`
	AdminNote      string           `json:"admin_note,omitempty" db:"admin_note"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}

// NominationFilter narrows a nomination listing. Zero values are ignored.
type NominationFilter struct {
	Status         NominationStatus
	AwardYear      int
	CategoryID     string
	NominatorEmail string
}

// AwardVote is one vote for an approved nomination.
// At most one per (voter_email, category_id, award_year).
type AwardVote struct {
	ID           string    `json:"id" db:"id"`
	NominationID string    `json:"nomination_id" db:"nomination_id"`
	CategoryID   string    `json:"category_id" db:"category_id"`
	VoterEmail   string    `json:"voter_email" db:"voter_email"`
	AwardYear    int       `json:"award_year" db:"award_year"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// VoteTally is the vote count for one nomination.
type VoteTally struct {
	NominationID string `json:"nomination_id"`
	CategoryID   string `json:"category_id"`
	NomineeEmail string `json:"nominee_email"`
	NomineeName  string `json:"nominee_name,omitempty"`
	Votes        int    `json:"votes"`
}

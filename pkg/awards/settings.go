package awards

import (
	"context"
	"fmt"
	"strings"

	"runclub-backend/pkg/auth"
	"runclub-backend/pkg/models"
	"runclub-backend/pkg/utils"
)

// SettingsPatch is a partial settings update. Nil fields are left alone and an
// empty date string clears that date.
type SettingsPatch struct {
	CurrentPhase        *string `json:"current_phase"`
	ActiveYear          *int    `json:"active_year"`
	NominationStartDate *string `json:"nomination_start_date"`
	NominationEndDate   *string `json:"nomination_end_date"`
	VotingStartDate     *string `json:"voting_start_date"`
	VotingEndDate       *string `json:"voting_end_date"`
}

// UpdateSettings validates the whole patch before anything is written, so a
// rejected update leaves the stored settings unchanged. Only super_admin may call it.
func (s *Service) UpdateSettings(ctx context.Context, access *auth.Access, patch SettingsPatch) (settings *models.AwardSettings, err error) {
	defer func() { s.record("settings_update", err) }()

	if err := requireRole(access, models.RoleSuperAdmin); err != nil {
		return nil, err
	}

	current, err := s.Settings(ctx)
	if err != nil {
		return nil, err
	}
	next := *current

	if patch.CurrentPhase != nil {
		phase, ok := models.ParsePhase(*patch.CurrentPhase)
		if !ok {
			return nil, utils.Validation(fmt.Sprintf("current_phase must be one of setup, nomination, voting, completed; got %q", *patch.CurrentPhase))
		}
		next.CurrentPhase = phase
	}
	if patch.ActiveYear != nil {
		if *patch.ActiveYear < 2000 || *patch.ActiveYear > 2100 {
			return nil, utils.Validation("active_year must be between 2000 and 2100")
		}
		next.ActiveYear = *patch.ActiveYear
	}

	dates := []struct {
		field string
		in    *string
		out   **models.Date
	}{
		{"nomination_start_date", patch.NominationStartDate, &next.NominationStartDate},
		{"nomination_end_date", patch.NominationEndDate, &next.NominationEndDate},
		{"voting_start_date", patch.VotingStartDate, &next.VotingStartDate},
		{"voting_end_date", patch.VotingEndDate, &next.VotingEndDate},
	}
	for _, d := range dates {
		if d.in == nil {
			continue
		}
		if strings.TrimSpace(*d.in) == "" {
			*d.out = nil
			continue
		}
		parsed, err := models.ParseDate(*d.in)
		if err != nil {
			return nil, utils.Validation(fmt.Sprintf("%s is not a valid date (expected YYYY-MM-DD)", d.field))
		}
		*d.out = &parsed
	}

	if err := checkWindow("nomination", next.NominationStartDate, next.NominationEndDate); err != nil {
		return nil, err
	}
	if err := checkWindow("voting", next.VotingStartDate, next.VotingEndDate); err != nil {
		return nil, err
	}

	if err := s.store.SaveAwardSettings(ctx, &next); err != nil {
		return nil, err
	}

	if next.CurrentPhase != current.CurrentPhase {
		s.log.WithField("from", current.CurrentPhase).
			WithField("to", next.CurrentPhase).
			WithField("by", access.Email()).
			Info("Awards phase changed")
	}
	return &next, nil
}

func checkWindow(name string, start, end *models.Date) error {
	if start != nil && end != nil && end.Before(*start) {
		return utils.Validation(fmt.Sprintf("%s window ends before it starts", name))
	}
	return nil
}

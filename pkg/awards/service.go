package awards

import (
	"context"
	"errors"
	"time"

	"runclub-backend/pkg/auth"
	"runclub-backend/pkg/database"
	"runclub-backend/pkg/metrics"
	"runclub-backend/pkg/models"
	"runclub-backend/pkg/utils"

	"github.com/sirupsen/logrus"
)

// PublicReadTimeout bounds the unauthenticated settings and category reads.
const PublicReadTimeout = 5 * time.Second

// Store is the part of the database the awards rules need.
type Store interface {
	GetAwardSettings(ctx context.Context) (*models.AwardSettings, error)
	SaveAwardSettings(ctx context.Context, s *models.AwardSettings) error

	ListCategories(ctx context.Context) ([]models.AwardCategory, error)
	GetCategory(ctx context.Context, id string) (*models.AwardCategory, error)
	CreateCategory(ctx context.Context, c *models.AwardCategory) error
	UpdateCategory(ctx context.Context, c *models.AwardCategory) error
	DeleteCategory(ctx context.Context, id string) error

	CreateNomination(ctx context.Context, n *models.AwardNomination) error
	GetNomination(ctx context.Context, id string) (*models.AwardNomination, error)
	ListNominations(ctx context.Context, filter models.NominationFilter) ([]models.AwardNomination, error)
	UpdateNomination(ctx context.Context, id string, patch map[string]interface{}) (*models.AwardNomination, error)

	CreateVote(ctx context.Context, v *models.AwardVote) error
	ListVotesByVoter(ctx context.Context, voterEmail string, year int) ([]models.AwardVote, error)
	ListVotes(ctx context.Context, year int) ([]models.AwardVote, error)
}

var _ Store = (database.DatabaseInterface)(nil)

// Service 奖项业务规则：阶段控制、提名、投票、类别
type Service struct {
	store Store
	authz *auth.Authorizer
	log   logrus.FieldLogger
	now   func() time.Time

	publicTimeout time.Duration
}

func NewService(store Store, authz *auth.Authorizer, log logrus.FieldLogger) *Service {
	return &Service{
		store:         store,
		authz:         authz,
		log:           log,
		now:           time.Now,
		publicTimeout: PublicReadTimeout,
	}
}

// record counts a business event by outcome: ok, rejected (4xx) or error.
func (s *Service) record(action string, err error) {
	outcome := "ok"
	if err != nil {
		if utils.Classify(err).Kind.Status() < 500 {
			outcome = "rejected"
		} else {
			outcome = "error"
		}
	}
	metrics.RecordEvent(action, outcome)
}

func requireRole(access *auth.Access, min models.Role) error {
	return auth.RequireRole(access, min).Err()
}

// Settings returns the stored settings, or the defaults before any were saved.
func (s *Service) Settings(ctx context.Context) (*models.AwardSettings, error) {
	settings, err := s.store.GetAwardSettings(ctx)
	if errors.Is(err, database.ErrNotFound) {
		return models.DefaultAwardSettings(s.now()), nil
	}
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// PublicSettings reads the phase within a short budget. A timeout or a missing
// table degrades to the defaults instead of failing the page.
func (s *Service) PublicSettings(ctx context.Context) *models.PublicAwardSettings {
	ctx, cancel := context.WithTimeout(ctx, s.publicTimeout)
	defer cancel()

	settings, err := s.store.GetAwardSettings(ctx)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			s.log.WithError(err).Warn("Award settings unavailable, serving defaults")
		}
		d := models.DefaultAwardSettings(s.now())
		return &models.PublicAwardSettings{CurrentPhase: d.CurrentPhase, ActiveYear: d.ActiveYear}
	}
	return &models.PublicAwardSettings{
		CurrentPhase: settings.CurrentPhase,
		ActiveYear:   settings.ActiveYear,
		Configured:   true,
	}
}

// Gate returns the gate for the current settings.
func (s *Service) Gate(ctx context.Context) (Gate, *models.AwardSettings, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return Gate{}, nil, err
	}
	return NewGate(settings), settings, nil
}

package handlers

import (
	"net/http"

	"runclub-backend/pkg/auth"
	"runclub-backend/pkg/config"
	"runclub-backend/pkg/database"
	"runclub-backend/pkg/middleware"
	"runclub-backend/pkg/models"
	"runclub-backend/pkg/utils"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// base carries what every handler needs: config, store, policy and logging.
type base struct {
	config *config.Config
	db     database.DatabaseInterface
	authz  *auth.Authorizer
	log    logrus.FieldLogger
}

func newBase(cfg *config.Config, db database.DatabaseInterface, authz *auth.Authorizer, log logrus.FieldLogger) base {
	return base{config: cfg, db: db, authz: authz, log: log}
}

// caller resolves the signed-in user's role. Membership is resolved on demand.
func (b *base) caller(r *http.Request) (*auth.Access, error) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		return nil, err
	}
	return b.authz.Access(r.Context(), user)
}

// callerWithRole resolves the caller and enforces a minimum role.
func (b *base) callerWithRole(r *http.Request, min models.Role) (*auth.Access, error) {
	access, err := b.caller(r)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireRole(access, min).Err(); err != nil {
		return nil, err
	}
	return access, nil
}

func (b *base) fail(w http.ResponseWriter, r *http.Request, err error) {
	utils.WriteError(w, b.log.WithFields(logrus.Fields{
		"method":     r.Method,
		"path":       r.URL.Path,
		"request_id": chiMiddleware.GetReqID(r.Context()),
	}), err)
}

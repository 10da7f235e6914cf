package middleware

import (
	"context"
	"net/http"

	"runclub-backend/pkg/auth"
	"runclub-backend/pkg/models"
	"runclub-backend/pkg/utils"

	"github.com/sirupsen/logrus"
)

// ContextKey 用于在context中存储用户信息的键
type ContextKey string

const (
	UserContextKey   ContextKey = "user"
	callerContextKey ContextKey = "caller"
)

// callerHolder lets the outer request logger see who the inner auth middleware resolved.
type callerHolder struct {
	email string
}

func withCallerHolder(ctx context.Context, h *callerHolder) context.Context {
	return context.WithValue(ctx, callerContextKey, h)
}

// SessionResolver resolves the caller from a request.
type SessionResolver interface {
	Resolve(r *http.Request) (*models.User, error)
}

// AuthMiddleware 会话认证中间件：无法识别调用者时返回401
func AuthMiddleware(sessions SessionResolver, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := sessions.Resolve(r)
			if err != nil {
				log.WithError(err).WithField("path", r.URL.Path).Debug("Authentication failed")
				utils.WriteError(w, nil, utils.WrapError(utils.KindUnauthenticated, err, "Authentication required"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// OptionalAuthMiddleware 可选的认证中间件（不强制要求认证）
func OptionalAuthMiddleware(sessions SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user, err := sessions.Resolve(r); err == nil {
				r = r.WithContext(WithUser(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUser stores the caller in ctx.
func WithUser(ctx context.Context, user *models.User) context.Context {
	if h, ok := ctx.Value(callerContextKey).(*callerHolder); ok && user != nil {
		h.email = user.Email
	}
	return context.WithValue(ctx, UserContextKey, user)
}

// GetUserFromContext 从context中获取用户信息
func GetUserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	return user, ok && user != nil
}

// RequireUser 要求用户必须已认证的辅助函数
func RequireUser(ctx context.Context) (*models.User, error) {
	user, ok := GetUserFromContext(ctx)
	if !ok {
		return nil, utils.WrapError(utils.KindUnauthenticated, auth.ErrNotAuthenticated, "Authentication required")
	}
	return user, nil
}

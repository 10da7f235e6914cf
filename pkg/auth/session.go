package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"runclub-backend/pkg/config"
	"runclub-backend/pkg/models"

	"github.com/sirupsen/logrus"
)

// ErrNotAuthenticated means no acceptable credential was presented.
var ErrNotAuthenticated = errors.New("not authenticated")

// Development bypass headers, honoured outside production only.
const (
	HeaderDevBypassSecret = "X-Dev-Bypass-Secret"
	HeaderDevUserEmail    = "X-Dev-User-Email"
)

// sb-<project-ref>-auth-token, optionally chunked as .0, .1, ...
var projectCookie = regexp.MustCompile(`^(sb-[A-Za-z0-9]+-auth-token)(?:\.\d+)?$`)

// SessionResolver 从请求中解析当前用户：cookie → Bearer → 开发旁路
type SessionResolver struct {
	verifier       TokenVerifier
	cookieNames    []string
	devSecret      string
	allowDevBypass bool
	log            logrus.FieldLogger
}

func NewSessionResolver(cfg *config.Config, verifier TokenVerifier, log logrus.FieldLogger) *SessionResolver {
	return &SessionResolver{
		verifier:       verifier,
		cookieNames:    cfg.SessionCookieNames,
		devSecret:      cfg.DevBypassSecret,
		allowDevBypass: !cfg.IsProduction() && cfg.DevBypassSecret != "",
		log:            log,
	}
}

// Resolve returns the caller or an error wrapping ErrNotAuthenticated.
func (s *SessionResolver) Resolve(r *http.Request) (*models.User, error) {
	var lastErr error

	if token := s.cookieToken(r); token != "" {
		user, err := s.verifier.Verify(r.Context(), token)
		if err == nil {
			return user, nil
		}
		s.log.WithError(err).Debug("Session cookie rejected")
		lastErr = err
	}

	if token := bearerToken(r); token != "" {
		user, err := s.verifier.Verify(r.Context(), token)
		if err == nil {
			return user, nil
		}
		s.log.WithError(err).Debug("Bearer token rejected")
		lastErr = err
	}

	if user, ok := s.devBypass(r); ok {
		s.log.WithField("email", user.Email).Warn("Development auth bypass used")
		return user, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAuthenticated, lastErr)
	}
	return nil, ErrNotAuthenticated
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

func (s *SessionResolver) devBypass(r *http.Request) (*models.User, bool) {
	if !s.allowDevBypass {
		return nil, false
	}
	secret := r.Header.Get(HeaderDevBypassSecret)
	if secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(s.devSecret)) != 1 {
		return nil, false
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(r.Header.Get(HeaderDevUserEmail)))
	if err != nil {
		return nil, false
	}
	email := models.NormalizeEmail(addr.Address)
	return &models.User{ID: "dev:" + email, Email: email}, true
}

// cookieToken finds the first session cookie that yields an access token.
func (s *SessionResolver) cookieToken(r *http.Request) string {
	names := append([]string{}, s.cookieNames...)

	var project []string
	seen := map[string]bool{}
	for _, c := range r.Cookies() {
		if m := projectCookie.FindStringSubmatch(c.Name); m != nil && !seen[m[1]] {
			seen[m[1]] = true
			project = append(project, m[1])
		}
	}
	sort.Strings(project)
	names = append(names, project...)

	for _, name := range names {
		raw := cookieValue(r, name)
		if raw == "" {
			continue
		}
		if token := extractAccessToken(raw); token != "" {
			return token
		}
	}
	return ""
}

// cookieValue reads a cookie, joining name.0, name.1, ... when it was split.
func cookieValue(r *http.Request, name string) string {
	if c, err := r.Cookie(name); err == nil {
		return c.Value
	}
	var b strings.Builder
	for i := 0; ; i++ {
		c, err := r.Cookie(name + "." + strconv.Itoa(i))
		if err != nil {
			break
		}
		b.WriteString(c.Value)
	}
	return b.String()
}

// extractAccessToken accepts a raw JWT, a "base64-" prefixed payload,
// a JSON array whose first element is the token, or an object with access_token.
func extractAccessToken(raw string) string {
	value := raw
	if unescaped, err := url.PathUnescape(value); err == nil {
		value = unescaped
	}
	value = strings.TrimSpace(value)

	if strings.HasPrefix(value, "base64-") {
		decoded, ok := decodeBase64(strings.TrimPrefix(value, "base64-"))
		if !ok {
			return ""
		}
		value = strings.TrimSpace(decoded)
	}

	switch {
	case strings.HasPrefix(value, "{"):
		var session struct {
			AccessToken string `json:"access_token"`
		}
		if err := json.Unmarshal([]byte(value), &session); err != nil {
			return ""
		}
		return session.AccessToken
	case strings.HasPrefix(value, "["):
		var parts []interface{}
		if err := json.Unmarshal([]byte(value), &parts); err != nil || len(parts) == 0 {
			return ""
		}
		token, _ := parts[0].(string)
		return token
	case looksLikeJWT(value):
		return value
	}
	return ""
}

func decodeBase64(s string) (string, bool) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(s); err == nil {
			return string(b), true
		}
	}
	return "", false
}

func looksLikeJWT(s string) bool {
	return strings.Count(s, ".") == 2 && !strings.ContainsAny(s, " {}[]\"")
}

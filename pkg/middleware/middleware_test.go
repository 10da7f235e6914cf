package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"runclub-backend/pkg/config"
	"runclub-backend/pkg/logger"
	"runclub-backend/pkg/models"
	"runclub-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessions struct {
	user *models.User
}

func (f fakeSessions) Resolve(r *http.Request) (*models.User, error) {
	if f.user == nil {
		return nil, errors.New("no session")
	}
	return f.user, nil
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) utils.ErrorBody {
	t.Helper()
	var body utils.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAuthMiddleware(t *testing.T) {
	var seen *models.User
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetUserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	AuthMiddleware(fakeSessions{}, logger.Discard())(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Code)
	assert.Nil(t, seen)

	user := &models.User{ID: "u1", Email: "ann@club.example"}
	rec = httptest.NewRecorder()
	AuthMiddleware(fakeSessions{user: user}, logger.Discard())(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, user, seen)
}

func TestOptionalAuthMiddleware(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		_, err := RequireUser(r.Context())
		assert.Error(t, err)
	})
	OptionalAuthMiddleware(fakeSessions{})(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}

func TestLoggerRecordsCaller(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithOutput("info", true, &buf)

	r := chi.NewRouter()
	r.Use(Logger(log))
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(fakeSessions{user: &models.User{ID: "u", Email: "ann@club.example"}}, log))
		r.Get("/api/things/{id}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/things/42", nil))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ann@club.example", entry["user"])
	assert.Equal(t, "/api/things/{id}", entry["route"])
	assert.EqualValues(t, http.StatusTeapot, entry["status"])
	assert.Equal(t, "warning", entry["level"])
}

func TestRecovery(t *testing.T) {
	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") })

	rec := httptest.NewRecorder()
	Recovery(&config.Config{Environment: "production"}, logger.Discard())(panicky).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, decodeError(t, rec).Error, "boom")

	rec = httptest.NewRecorder()
	Recovery(&config.Config{Environment: "development"}, logger.Discard())(panicky).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, decodeError(t, rec).Error, "boom")
}

func TestNormalize(t *testing.T) {
	var path, host, scheme string
	h := Normalize()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path, host, scheme = r.URL.Path, r.Host, r.URL.Scheme
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/profile/", nil)
	req.Header.Set("X-Forwarded-Proto", "https, http")
	req.Header.Set("X-Forwarded-Host", "club.example")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "/api/profile", path)
	assert.Equal(t, "club.example", host)
	assert.Equal(t, "https", scheme)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "/", path)
}

func TestContentTypeJSON(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("name=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	ContentTypeJSON(ok).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec = httptest.NewRecorder()
	ContentTypeJSON(ok).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	ContentTypeJSON(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMaxBodySize(t *testing.T) {
	var parseErr error
	h := MaxBodySize(16)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var v map[string]string
		parseErr = utils.ParseJSONBody(r, &v)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a very long value indeed"}`)))
	assert.Error(t, parseErr)
}

func TestRequireSecret(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	cases := []struct {
		name   string
		secret string
		target string
		header string
		want   int
	}{
		{"query", "s3cret", "/?secret=s3cret", "", http.StatusOK},
		{"bearer", "s3cret", "/", "Bearer s3cret", http.StatusOK},
		{"wrong", "s3cret", "/?secret=nope", "", http.StatusUnauthorized},
		{"missing", "s3cret", "/", "", http.StatusUnauthorized},
		{"unconfigured", "", "/?secret=", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			RequireSecret(tc.secret)(ok).ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestCORS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	cfg := &config.Config{Environment: "production", AllowedOrigins: []string{"https://club.example"}}
	req := httptest.NewRequest(http.MethodOptions, "/api/profile", nil)
	req.Header.Set("Origin", "https://club.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()
	CORS(cfg)(ok).ServeHTTP(rec, req)
	assert.Equal(t, "https://club.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	CORS(cfg)(ok).ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	// production without configured origins allows none
	unset := &config.Config{Environment: "production"}
	req = httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	CORS(unset)(ok).ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	dev := &config.Config{Environment: "development"}
	req = httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec = httptest.NewRecorder()
	CORS(dev)(ok).ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

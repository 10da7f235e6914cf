package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"runclub-backend/pkg/config"
	"runclub-backend/pkg/models"
	"runclub-backend/pkg/utils"
)

// ErrInvalidToken is returned for a token that is present but not acceptable.
var ErrInvalidToken = errors.New("invalid session token")

// TokenVerifier turns an access token into the user it was issued to.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.User, error)
}

// NewVerifier picks local HS256 verification when the JWT secret is configured
// and falls back to asking the auth platform otherwise.
func NewVerifier(cfg *config.Config) TokenVerifier {
	if cfg.SupabaseJWTSecret != "" {
		return NewJWTVerifier(cfg.SupabaseJWTSecret)
	}
	key := cfg.SupabaseAnon
	if key == "" {
		key = cfg.SupabaseKey
	}
	return NewRemoteVerifier(cfg.SupabaseURL, key, cfg.UpstreamTimeout)
}

// JWTVerifier checks tokens locally against the project's JWT secret.
type JWTVerifier struct {
	jwt *utils.JWTService
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{jwt: utils.NewJWTService(secret)}
}

func (v *JWTVerifier) Verify(ctx context.Context, token string) (*models.User, error) {
	user, err := v.jwt.ExtractUserFromToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return user, nil
}

// RemoteVerifier asks GoTrue who the token belongs to.
type RemoteVerifier struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewRemoteVerifier(baseURL, apiKey string, timeout time.Duration) *RemoteVerifier {
	if baseURL != "" && !strings.HasPrefix(baseURL, "http") {
		baseURL = "https://" + baseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteVerifier{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type goTrueUser struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	LastSignInAt *time.Time `json:"last_sign_in_at"`
}

func (v *RemoteVerifier) Verify(ctx context.Context, token string) (*models.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", v.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach auth service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read auth response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, ErrInvalidToken
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("auth service returned status %d", resp.StatusCode)
	}

	var u goTrueUser
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("failed to decode auth user: %w", err)
	}
	if u.ID == "" || u.Email == "" {
		return nil, ErrInvalidToken
	}
	return &models.User{ID: u.ID, Email: u.Email, LastSignInAt: u.LastSignInAt}, nil
}

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"runclub-backend/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteVerifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			_, _ = w.Write([]byte(`{"id":"u1","email":"ann@club.example","last_sign_in_at":"2025-05-01T10:00:00Z"}`))
		case "Bearer down":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"msg":"invalid JWT"}`))
		}
	}))
	defer srv.Close()

	v := NewRemoteVerifier(srv.URL, "anon-key", time.Second)

	user, err := v.Verify(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	require.NotNil(t, user.LastSignInAt)

	_, err = v.Verify(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Verify(context.Background(), "down")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidToken)
}

func TestNewVerifierSelection(t *testing.T) {
	_, ok := NewVerifier(&config.Config{SupabaseJWTSecret: "s"}).(*JWTVerifier)
	assert.True(t, ok)

	remote, ok := NewVerifier(&config.Config{SupabaseURL: "proj.supabase.co", SupabaseAnon: "anon"}).(*RemoteVerifier)
	require.True(t, ok)
	assert.Equal(t, "https://proj.supabase.co", remote.baseURL)
	assert.Equal(t, "anon", remote.apiKey)
}

package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is the authenticated identity issued by the auth platform.
// The service never writes users; it only reads the identity out of a session.
type User struct {
	ID           string     `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	LastSignInAt *time.Time `json:"last_sign_in_at,omitempty" db:"last_sign_in_at"`
}

// TokenClaims are the claims carried by a Supabase access token.
type TokenClaims struct {
	Email     string `json:"email"`
	Role      string `json:"role,omitempty"` // "authenticated" for signed-in users
	SessionID string `json:"session_id,omitempty"`
	jwt.RegisteredClaims
}

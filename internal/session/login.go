package session

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/taskboards/taskboards/internal/types"
)

// Stub credentials handed out by Login until the backend grows an auth endpoint.
const (
	StubToken  = "dev-token"
	StubUserID = "u1"
	StubName   = "Demo User"
)

// Login signs in with the stubbed backend: any well-formed email with a
// non-empty password succeeds.
func Login(email, password string, now time.Time) (Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Session{}, fmt.Errorf("email and password are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return Session{}, fmt.Errorf("invalid email %q", email)
	}
	return FromToken(StubToken, types.User{ID: StubUserID, Name: StubName, Email: email}, now), nil
}

// FromToken builds a session for an issued token, picking up the expiry from
// its claims when the token is a JWT.
func FromToken(token string, user types.User, now time.Time) Session {
	sess := Session{Token: token, User: user, CreatedAt: now}
	if exp, ok := TokenExpiry(token); ok {
		sess.ExpiresAt = exp
	}
	return sess
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature;
// verification is the backend's job. Opaque tokens report false.
func TokenExpiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(int64(exp), 0), true
}

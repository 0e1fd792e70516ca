// Package session keeps the authenticated hospital's bearer credential in
// durable client storage. Presence of a session is the only gate for
// protected operations; nothing here re-validates it against the server.
package session

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is the persisted login state.
type Session struct {
	Token      string     `json:"token"`
	HospitalID string     `json:"hospital_id"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Expired reports whether the token carried an expiry that has passed.
// Opaque tokens never expire client-side.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// Store persists the session and the onboarding flag.
type Store interface {
	// Load returns apperr.ErrNoSession when nothing usable is stored.
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Clear(ctx context.Context) error

	OnboardingSeen(ctx context.Context) (bool, error)
	MarkOnboardingSeen(ctx context.Context) error
}

// Startup is resolved once when the process starts and handed to the views
// instead of being re-read from storage on every request.
type Startup struct {
	OnboardingSeen bool
}

// ResolveStartup reads the startup flags from the store.
func ResolveStartup(ctx context.Context, store Store) (Startup, error) {
	seen, err := store.OnboardingSeen(ctx)
	if err != nil {
		return Startup{}, err
	}
	return Startup{OnboardingSeen: seen}, nil
}

// New builds a session for token. When the token is a JWT its exp claim sets
// the expiry and, if hospitalID is empty, its hospitalId or sub claim names
// the hospital. The signature is not checked: the remote service is the only
// party that verifies credentials.
func New(token, hospitalID string, now time.Time) *Session {
	s := &Session{
		Token:      token,
		HospitalID: strings.TrimSpace(hospitalID),
		CreatedAt:  now.UTC(),
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return s
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time.UTC()
		s.ExpiresAt = &t
	}
	if s.HospitalID == "" {
		if v, ok := claims["hospitalId"].(string); ok && v != "" {
			s.HospitalID = v
		} else if sub, err := claims.GetSubject(); err == nil {
			s.HospitalID = sub
		}
	}
	return s
}

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/logintel/backend/internal/cache"
)

// SessionStore tracks refresh-token sessions in Redis so logout takes
// effect immediately instead of waiting for the token's natural expiry.
// Deactivating an account does not touch this store; the IsActive checks in
// Middleware and the refresh handler reject the account's tokens instead.
// Access tokens are never tracked here — they're short-lived
// enough that statelessness is an acceptable tradeoff.
type SessionStore struct {
	cache *cache.Cache
}

// SessionData is the record stored per refresh-token session.
type SessionData struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

func NewSessionStore(cache *cache.Cache) *SessionStore {
	return &SessionStore{cache: cache}
}

// GenerateSessionID creates a cryptographically random session ID.
func GenerateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func (s *SessionStore) CreateSession(ctx context.Context, session *SessionData, ttl time.Duration) error {
	if !s.cache.IsEnabled() {
		return nil
	}
	return s.cache.Set(ctx, s.sessionKey(session.SessionID), session, ttl)
}

func (s *SessionStore) GetSession(ctx context.Context, sessionID string) (*SessionData, error) {
	if !s.cache.IsEnabled() {
		return nil, nil
	}
	var session SessionData
	if err := s.cache.Get(ctx, s.sessionKey(sessionID), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// ValidateSession reports whether a session still exists. With caching
// disabled, every session is treated as valid (stateless fallback).
func (s *SessionStore) ValidateSession(ctx context.Context, sessionID string) (bool, error) {
	if !s.cache.IsEnabled() {
		return true, nil
	}
	return s.cache.Exists(ctx, s.sessionKey(sessionID))
}

func (s *SessionStore) DeleteSession(ctx context.Context, sessionID string) error {
	if !s.cache.IsEnabled() {
		return nil
	}
	return s.cache.Delete(ctx, s.sessionKey(sessionID))
}

// DeleteUserSessions revokes every session tracked for a user, called via
// JWTManager.InvalidateUserSessions after a password reset is confirmed.
func (s *SessionStore) DeleteUserSessions(ctx context.Context, userID string) error {
	if !s.cache.IsEnabled() {
		return nil
	}
	return s.cache.DeletePattern(ctx, cache.UserSessionsPattern(userID))
}

func (s *SessionStore) ClearAllSessions(ctx context.Context) error {
	if !s.cache.IsEnabled() {
		return nil
	}
	return s.cache.DeletePattern(ctx, cache.SessionPattern())
}

func (s *SessionStore) sessionKey(sessionID string) string {
	return cache.SessionKey(sessionID)
}

func (s *SessionStore) IsEnabled() bool {
	return s.cache != nil && s.cache.IsEnabled()
}

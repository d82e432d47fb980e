// Package auth implements the identity & access gate (component A):
// authentication, token issuance/validation, and authorization checks.
// Fixed-window rate limiting lives in internal/ratelimit.
//
// Three kinds of bearer token share one claim shape, distinguished by
// TokenKind:
//   - access: short-lived (30 min), sent on every authenticated request
//   - refresh: long-lived (7 days), exchanged for a new access/refresh pair
//   - reset: single-purpose, issued by the password-reset request flow and
//     only accepted by the password-reset confirm route
//
// Tokens are stateless HMAC-SHA256 JWTs; revocation is out of scope (per the
// spec), but a Redis-backed session record tracks refresh tokens so logout
// and "disable user" take effect immediately instead of waiting out the
// token's natural expiry.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/logintel/backend/internal/cache"
	"github.com/logintel/backend/internal/models"
	"github.com/logintel/backend/internal/observability"
)

// TokenKind distinguishes access, refresh, and reset tokens sharing the same
// claim structure.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
	TokenReset   TokenKind = "reset"
)

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	SecretKey       string
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	ResetTokenTTL   time.Duration
}

// Claims is the claim set carried by every token kind this component issues.
type Claims struct {
	UserID      string    `json:"user_id"`
	Role        string    `json:"role"`
	Permissions []string  `json:"permissions,omitempty"`
	TokenKind   TokenKind `json:"token_kind"`
	jwt.RegisteredClaims
}

// JWTManager issues and validates tokens, and tracks refresh-token sessions.
type JWTManager struct {
	config       JWTConfig
	sessionStore *SessionStore
}

// NewJWTManager creates a JWT manager backed by the given session store
// (nil disables server-side session tracking; tokens remain purely
// stateless in that mode).
func NewJWTManager(config JWTConfig, sessionStore *SessionStore) *JWTManager {
	if config.Issuer == "" {
		config.Issuer = "logintel-backend"
	}
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = 30 * time.Minute
	}
	if config.RefreshTokenTTL == 0 {
		config.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if config.ResetTokenTTL == 0 {
		config.ResetTokenTTL = 1 * time.Hour
	}
	return &JWTManager{config: config, sessionStore: sessionStore}
}

// TokenPair is the access/refresh pair returned by IssueTokenPair and Refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// IssueTokenPair mints a fresh access/refresh pair for a user and, when a
// session store is configured, records the refresh token's session so it
// can be invalidated on logout independent of its natural expiry.
func (m *JWTManager) IssueTokenPair(ctx context.Context, user *models.User, ipAddress, userAgent string) (*TokenPair, error) {
	now := time.Now()

	sessionID, err := GenerateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	accessExpiry := now.Add(m.config.AccessTokenTTL)
	accessToken, err := m.sign(Claims{
		UserID:      user.ID,
		Role:        string(user.Role),
		Permissions: user.Permissions,
		TokenKind:   TokenAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExpiry),
		},
	})
	if err != nil {
		return nil, err
	}

	refreshExpiry := now.Add(m.config.RefreshTokenTTL)
	refreshToken, err := m.sign(Claims{
		UserID:    user.ID,
		Role:      string(user.Role),
		TokenKind: TokenRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   user.ID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExpiry),
		},
	})
	if err != nil {
		return nil, err
	}

	if m.sessionStore != nil && m.sessionStore.IsEnabled() {
		session := &SessionData{
			SessionID: sessionID,
			UserID:    user.ID,
			Username:  user.Username,
			Role:      string(user.Role),
			CreatedAt: now,
			ExpiresAt: refreshExpiry,
			IPAddress: ipAddress,
			UserAgent: userAgent,
		}
		if err := m.sessionStore.CreateSession(ctx, session, m.config.RefreshTokenTTL); err != nil {
			observability.HTTP().Warn().Err(err).Msg("failed to persist session record")
		}
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken, ExpiresAt: accessExpiry}, nil
}

// IssueResetToken mints a single-purpose reset token. It carries no
// permissions and is rejected by every route except confirm-reset.
func (m *JWTManager) IssueResetToken(user *models.User) (string, error) {
	now := time.Now()
	return m.sign(Claims{
		UserID:    user.ID,
		TokenKind: TokenReset,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.ResetTokenTTL)),
		},
	})
}

func (m *JWTManager) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.config.SecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a token, rejecting non-HMAC signing
// methods to prevent algorithm-substitution attacks, and requires the
// token's kind to be one of allowedKinds.
func (m *JWTManager) ValidateToken(tokenString string, allowedKinds ...TokenKind) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.config.SecretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	if len(allowedKinds) > 0 && !kindAllowed(claims.TokenKind, allowedKinds) {
		return nil, fmt.Errorf("invalid token: wrong token kind %q", claims.TokenKind)
	}

	return claims, nil
}

func kindAllowed(kind TokenKind, allowed []TokenKind) bool {
	for _, k := range allowed {
		if k == kind {
			return true
		}
	}
	return false
}

// Refresh validates a refresh token (including its session record) and
// issues a new pair, rotating the session ID so the old refresh token can't
// be replayed.
func (m *JWTManager) Refresh(ctx context.Context, refreshToken string, user *models.User) (*TokenPair, error) {
	claims, err := m.ValidateToken(refreshToken, TokenRefresh)
	if err != nil {
		return nil, err
	}

	if m.sessionStore != nil && m.sessionStore.IsEnabled() {
		valid, err := m.sessionStore.ValidateSession(ctx, claims.ID)
		if err != nil || !valid {
			return nil, errors.New("invalid token: session expired or revoked")
		}
		_ = m.sessionStore.DeleteSession(ctx, claims.ID)
	}

	return m.IssueTokenPair(ctx, user, "", "")
}

// Logout invalidates the refresh token's session so it cannot be used
// again even though the JWT itself remains structurally valid until expiry.
func (m *JWTManager) Logout(ctx context.Context, refreshToken string) error {
	if m.sessionStore == nil {
		return nil
	}
	claims, err := m.ValidateToken(refreshToken, TokenRefresh)
	if err != nil {
		return nil
	}
	return m.sessionStore.DeleteSession(ctx, claims.ID)
}

// InvalidateUserSessions revokes every active refresh-token session for a
// user; the password-reset confirm handler calls it after a reset.
func (m *JWTManager) InvalidateUserSessions(ctx context.Context, userID string) error {
	if m.sessionStore == nil {
		return nil
	}
	return m.sessionStore.DeleteUserSessions(ctx, userID)
}

// NewJWTManagerWithCache is a convenience constructor wiring a Redis-backed
// session store directly from a cache client.
func NewJWTManagerWithCache(config JWTConfig, cacheClient *cache.Cache) *JWTManager {
	return NewJWTManager(config, NewSessionStore(cacheClient))
}

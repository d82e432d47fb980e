package auth

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/logintel/backend/internal/apperrors"
	"github.com/logintel/backend/internal/db"
	"github.com/logintel/backend/internal/models"
)

var (
	errNoAuthHeader        = errors.New("authorization header is missing")
	errMalformedAuthHeader = errors.New("authorization header must be in the form: Bearer <token>")
)

const (
	ctxUserID      = "userID"
	ctxUsername    = "username"
	ctxUserRole    = "userRole"
	ctxPermissions = "permissions"
	ctxClaims      = "claims"
)

// Middleware requires a valid access token and an active, still-existing
// user. It rejects requests with `auth_required` (missing header),
// `invalid_token` (bad signature, expired, or wrong token kind), or
// `insufficient_role` (account deactivated since the token was issued).
func Middleware(jwtManager *JWTManager, userDB *db.UserDB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := extractBearerToken(c)
		if err != nil {
			apperrors.AbortWithError(c, apperrors.AuthRequired())
			return
		}

		claims, err := jwtManager.ValidateToken(tokenString, TokenAccess)
		if err != nil {
			apperrors.AbortWithError(c, apperrors.InvalidToken())
			return
		}

		user, err := userDB.GetUser(claims.UserID)
		if err != nil {
			apperrors.AbortWithError(c, apperrors.InvalidToken())
			return
		}
		if !user.IsActive {
			apperrors.AbortWithError(c, apperrors.InsufficientRole("account is disabled"))
			return
		}

		setUserContext(c, user, claims)
		c.Next()
	}
}

// OptionalAuth populates user context when a valid access token is present
// but never rejects the request when it's absent or invalid.
func OptionalAuth(jwtManager *JWTManager, userDB *db.UserDB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := extractBearerToken(c)
		if err != nil {
			c.Next()
			return
		}

		claims, err := jwtManager.ValidateToken(tokenString, TokenAccess)
		if err != nil {
			c.Next()
			return
		}

		user, err := userDB.GetUser(claims.UserID)
		if err == nil && user.IsActive {
			setUserContext(c, user, claims)
		}
		c.Next()
	}
}

// RequireRole rejects requests from users below min in the role hierarchy
// (viewer < user < analyst < admin).
func RequireRole(min models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := GetUserRole(c)
		if !ok {
			apperrors.AbortWithError(c, apperrors.AuthRequired())
			return
		}
		if !role.AtLeast(min) {
			apperrors.AbortWithError(c, apperrors.InsufficientRole(string(min)))
			return
		}
		c.Next()
	}
}

// RequirePermission rejects requests from users lacking an explicit
// permission, independent of role.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		perms, ok := GetPermissions(c)
		if !ok {
			apperrors.AbortWithError(c, apperrors.AuthRequired())
			return
		}
		for _, p := range perms {
			if p == permission {
				c.Next()
				return
			}
		}
		apperrors.AbortWithError(c, apperrors.InsufficientPermissions(permission))
	}
}

func extractBearerToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", errNoAuthHeader
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errMalformedAuthHeader
	}
	return parts[1], nil
}

func setUserContext(c *gin.Context, user *models.User, claims *Claims) {
	c.Set(ctxUserID, user.ID)
	c.Set(ctxUsername, user.Username)
	c.Set(ctxUserRole, user.Role)
	c.Set(ctxPermissions, user.Permissions)
	c.Set(ctxClaims, claims)
}

// GetUserID extracts the authenticated user's ID from the Gin context.
func GetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get(ctxUserID)
	if !exists {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// GetUsername extracts the authenticated user's username.
func GetUsername(c *gin.Context) (string, bool) {
	v, exists := c.Get(ctxUsername)
	if !exists {
		return "", false
	}
	name, ok := v.(string)
	return name, ok
}

// GetUserRole extracts the authenticated user's role.
func GetUserRole(c *gin.Context) (models.Role, bool) {
	v, exists := c.Get(ctxUserRole)
	if !exists {
		return "", false
	}
	role, ok := v.(models.Role)
	return role, ok
}

// GetPermissions extracts the authenticated user's explicit permissions.
func GetPermissions(c *gin.Context) ([]string, bool) {
	v, exists := c.Get(ctxPermissions)
	if !exists {
		return nil, false
	}
	perms, ok := v.([]string)
	return perms, ok
}

// IsAdmin reports whether the authenticated user holds the admin role.
func IsAdmin(c *gin.Context) bool {
	role, ok := GetUserRole(c)
	return ok && role == models.RoleAdmin
}

// This file implements the self-service and admin user-management endpoints
// supplementing component A (identity & access gate). The gate itself only
// covers login/refresh/logout/password reset; creating, listing, and
// deactivating accounts is an administrative surface layered on top of it.
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/logintel/backend/internal/apperrors"
	"github.com/logintel/backend/internal/auth"
	"github.com/logintel/backend/internal/db"
	"github.com/logintel/backend/internal/models"
	"github.com/logintel/backend/internal/validator"
)

// UserHandler serves the /users routes.
type UserHandler struct {
	userDB *db.UserDB
}

func NewUserHandler(userDB *db.UserDB) *UserHandler {
	return &UserHandler{userDB: userDB}
}

// RegisterRoutes mounts the self-profile routes (any authenticated user) and
// the admin user-management routes (admin role only) under router.
func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/users/me", h.GetSelf)
	router.PUT("/users/me", h.UpdateSelf)

	admin := router.Group("/users", auth.RequireRole(models.RoleAdmin))
	{
		admin.GET("", h.ListUsers)
		admin.POST("", h.CreateUser)
		admin.GET("/:id", h.GetUser)
		admin.PUT("/:id", h.UpdateUser)
		admin.DELETE("/:id", h.DeleteUser)
	}
}

// GetSelf returns the authenticated user's own profile.
func (h *UserHandler) GetSelf(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		apperrors.HandleError(c, apperrors.AuthRequired())
		return
	}
	user, err := h.userDB.GetUser(userID)
	if err != nil {
		h.handleLookupError(c, err)
		return
	}
	apperrors.Success(c, user)
}

// selfUpdateRequest restricts self-service updates to fields a user may
// change about their own account; role and permissions require an admin.
type selfUpdateRequest struct {
	Email *string `json:"email,omitempty" binding:"omitempty,email"`
}

// UpdateSelf lets a user change their own email address.
func (h *UserHandler) UpdateSelf(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		apperrors.HandleError(c, apperrors.AuthRequired())
		return
	}

	var req selfUpdateRequest
	if !validator.BindAndValidate(c, &req) {
		return
	}

	user, err := h.userDB.UpdateUser(userID, models.UpdateUserRequest{Email: req.Email})
	if err != nil {
		h.handleLookupError(c, err)
		return
	}
	apperrors.Success(c, user)
}

// ListUsers returns every account, optionally narrowed by ?role= and
// ?active_only=true.
func (h *UserHandler) ListUsers(c *gin.Context) {
	role := c.Query("role")
	activeOnly := c.Query("active_only") == "true"

	users, err := h.userDB.ListUsers(role, activeOnly)
	if err != nil {
		apperrors.HandleError(c, apperrors.Storage(err))
		return
	}
	apperrors.Success(c, gin.H{"users": users, "total": len(users)})
}

// CreateUser provisions a new account. The account starts unverified and
// must change its password out of band before it can be used productively,
// there is no invite-email flow in this backend.
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req models.CreateUserRequest
	if !validator.BindAndValidate(c, &req) {
		return
	}

	user, err := h.userDB.CreateUser(req)
	if err != nil {
		if db.IsUniqueViolation(err) {
			apperrors.HandleError(c, apperrors.ValidationFailed("username or email is already in use"))
			return
		}
		apperrors.HandleError(c, apperrors.Storage(err))
		return
	}
	apperrors.Created(c, user)
}

// GetUser returns any single account by ID.
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.userDB.GetUser(c.Param("id"))
	if err != nil {
		h.handleLookupError(c, err)
		return
	}
	apperrors.Success(c, user)
}

// UpdateUser lets an admin change another account's email, role,
// permissions, or active flag.
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req models.UpdateUserRequest
	if !validator.BindAndValidate(c, &req) {
		return
	}

	user, err := h.userDB.UpdateUser(c.Param("id"), req)
	if err != nil {
		h.handleLookupError(c, err)
		return
	}
	apperrors.Success(c, user)
}

// DeleteUser removes an account. An admin deleting their own account is
// rejected, locking yourself out of the only admin account is a
// misconfiguration, not a feature.
func (h *UserHandler) DeleteUser(c *gin.Context) {
	targetID := c.Param("id")
	if callerID, ok := auth.GetUserID(c); ok && callerID == targetID {
		apperrors.HandleError(c, apperrors.ValidationFailed("cannot delete your own account"))
		return
	}

	if err := h.userDB.DeleteUser(targetID); err != nil {
		h.handleLookupError(c, err)
		return
	}
	apperrors.Success(c, gin.H{"message": "user deleted"})
}

func (h *UserHandler) handleLookupError(c *gin.Context, err error) {
	if errors.Is(err, db.ErrUserNotFound) {
		apperrors.HandleError(c, apperrors.NotFound("user"))
		return
	}
	apperrors.HandleError(c, apperrors.Storage(err))
}

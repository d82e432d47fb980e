package models

import "time"

// Role is the coarse access level assigned to a user. Permissions (below)
// layer finer-grained grants on top of a role's defaults.
type Role string

const (
	RoleViewer  Role = "viewer"
	RoleUser    Role = "user"
	RoleAnalyst Role = "analyst"
	RoleAdmin   Role = "admin"
)

func ValidRole(s string) bool {
	switch Role(s) {
	case RoleViewer, RoleUser, RoleAnalyst, RoleAdmin:
		return true
	}
	return false
}

// roleRank orders roles from least to most privileged for RequireRole checks.
var roleRank = map[Role]int{
	RoleViewer:  0,
	RoleUser:    1,
	RoleAnalyst: 2,
	RoleAdmin:   3,
}

// AtLeast reports whether r meets or exceeds the privilege of min.
func (r Role) AtLeast(min Role) bool {
	return roleRank[r] >= roleRank[min]
}

// User is the identity record backing bearer-token authentication.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	Permissions  []string   `json:"permissions"`
	IsActive     bool       `json:"is_active"`
	IsVerified   bool       `json:"is_verified"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// HasPermission reports whether the user carries an explicit permission
// grant, independent of role.
func (u *User) HasPermission(perm string) bool {
	for _, p := range u.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

type CreateUserRequest struct {
	Username string `json:"username" binding:"required,username"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,password"`
	Role     Role   `json:"role,omitempty"`
}

type UpdateUserRequest struct {
	Email       *string  `json:"email,omitempty" binding:"omitempty,email"`
	Role        *Role    `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	IsActive    *bool    `json:"is_active,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,password"`
}

type PasswordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type PasswordResetConfirmRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,password"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

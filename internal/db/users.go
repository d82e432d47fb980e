package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/logintel/backend/internal/models"
)

// ErrUserNotFound is returned by lookups and VerifyPassword when no matching
// row exists (and by VerifyPassword for an inactive account), so callers can
// use errors.Is instead of string matching.
var ErrUserNotFound = errors.New("user not found")

// UserDB is the row store adapter for the User entity.
type UserDB struct {
	db *sql.DB
}

// NewUserDB wraps an already-open database handle.
func NewUserDB(database *Database) *UserDB {
	return &UserDB{db: database.DB()}
}

// CreateUser hashes the request's plaintext password with bcrypt (cost 12,
// the equivalent of spec's "PBKDF2-family or equivalent, >=100,000
// iterations" requirement) and inserts a new row.
func (u *UserDB) CreateUser(req models.CreateUserRequest) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	role := req.Role
	if role == "" {
		role = models.RoleViewer
	}

	var user models.User
	row := u.db.QueryRow(
		`INSERT INTO users (username, email, password_hash, role, permissions, is_active, is_verified)
		 VALUES ($1, $2, $3, $4, '{}', true, false)
		 RETURNING id, username, email, role, permissions, is_active, is_verified, last_login, created_at, updated_at`,
		req.Username, req.Email, string(hash), role,
	)

	if err := scanUser(row, &user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	user.PasswordHash = string(hash)
	return &user, nil
}

// GetUser loads a user by primary key.
func (u *UserDB) GetUser(id string) (*models.User, error) {
	row := u.db.QueryRow(
		`SELECT id, username, email, role, permissions, is_active, is_verified, last_login, created_at, updated_at
		 FROM users WHERE id = $1`, id,
	)
	var user models.User
	if err := scanUser(row, &user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetUserByUsername loads a user by username, including the password hash,
// for use during Authenticate.
func (u *UserDB) GetUserByUsername(username string) (*models.User, error) {
	row := u.db.QueryRow(
		`SELECT id, username, email, password_hash, role, permissions, is_active, is_verified, last_login, created_at, updated_at
		 FROM users WHERE username = $1`, username,
	)
	var user models.User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Role,
		pq.Array(&user.Permissions), &user.IsActive, &user.IsVerified, &user.LastLogin,
		&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return &user, nil
}

// GetUserByEmail loads a user by email, excluding the password hash.
func (u *UserDB) GetUserByEmail(email string) (*models.User, error) {
	row := u.db.QueryRow(
		`SELECT id, username, email, role, permissions, is_active, is_verified, last_login, created_at, updated_at
		 FROM users WHERE email = $1`, email,
	)
	var user models.User
	if err := scanUser(row, &user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

// ListUsers returns users optionally filtered by role and active status.
func (u *UserDB) ListUsers(role string, activeOnly bool) ([]*models.User, error) {
	query := `SELECT id, username, email, role, permissions, is_active, is_verified, last_login, created_at, updated_at FROM users WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if role != "" {
		query += fmt.Sprintf(" AND role = $%d", argIdx)
		args = append(args, role)
		argIdx++
	}
	if activeOnly {
		query += fmt.Sprintf(" AND is_active = $%d", argIdx)
		args = append(args, true)
		argIdx++
	}
	query += " ORDER BY created_at DESC"

	rows, err := u.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.Role,
			pq.Array(&user.Permissions), &user.IsActive, &user.IsVerified, &user.LastLogin,
			&user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &user)
	}
	return users, rows.Err()
}

// UpdateUser applies a sparse update built from whichever fields are set on
// req.
func (u *UserDB) UpdateUser(id string, req models.UpdateUserRequest) (*models.User, error) {
	setClauses := []string{"updated_at = now()"}
	args := []interface{}{}
	argIdx := 1

	if req.Email != nil {
		setClauses = append(setClauses, fmt.Sprintf("email = $%d", argIdx))
		args = append(args, *req.Email)
		argIdx++
	}
	if req.Role != nil {
		setClauses = append(setClauses, fmt.Sprintf("role = $%d", argIdx))
		args = append(args, *req.Role)
		argIdx++
	}
	if req.Permissions != nil {
		setClauses = append(setClauses, fmt.Sprintf("permissions = $%d", argIdx))
		args = append(args, pq.Array(req.Permissions))
		argIdx++
	}
	if req.IsActive != nil {
		setClauses = append(setClauses, fmt.Sprintf("is_active = $%d", argIdx))
		args = append(args, *req.IsActive)
		argIdx++
	}

	args = append(args, id)
	query := fmt.Sprintf(
		"UPDATE users SET %s WHERE id = $%d RETURNING id, username, email, role, permissions, is_active, is_verified, last_login, created_at, updated_at",
		joinClauses(setClauses), argIdx,
	)

	row := u.db.QueryRow(query, args...)
	var user models.User
	if err := scanUser(row, &user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return &user, nil
}

// DeleteUser removes a user row. Self-deletion is rejected by the handler
// layer, not here.
func (u *UserDB) DeleteUser(id string) error {
	result, err := u.db.Exec(`DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateLastLogin stamps last_login with the current time.
func (u *UserDB) UpdateLastLogin(id string) error {
	_, err := u.db.Exec(`UPDATE users SET last_login = now(), updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// UpdatePassword re-hashes and stores a new password.
func (u *UserDB) UpdatePassword(id string, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), 12)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	result, err := u.db.Exec(`UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`, string(hash), id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// VerifyPassword checks a username/password pair, returning the user on
// success. An unknown or inactive username yields ErrUserNotFound and a
// wrong password yields a separate "invalid password" error; the login
// handler maps both to the same authentication_failed response, so a
// client cannot tell which field was invalid.
func (u *UserDB) VerifyPassword(username, password string) (*models.User, error) {
	user, err := u.GetUserByUsername(username)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid password")
	}
	if err := u.UpdateLastLogin(user.ID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	user.LastLogin = &now
	return user, nil
}

func scanUser(row *sql.Row, user *models.User) error {
	return row.Scan(&user.ID, &user.Username, &user.Email, &user.Role,
		pq.Array(&user.Permissions), &user.IsActive, &user.IsVerified, &user.LastLogin,
		&user.CreatedAt, &user.UpdatedAt)
}

func joinClauses(clauses []string) string {
	out := ""
	for i, c := range clauses {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

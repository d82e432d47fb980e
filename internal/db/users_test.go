package db

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/logintel/backend/internal/models"
)

func newTestUserDB(t *testing.T) (*UserDB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	database := NewDatabaseForTesting(sqlDB)
	return NewUserDB(database), mock
}

var userColumns = []string{
	"id", "username", "email", "role", "permissions", "is_active", "is_verified", "last_login", "created_at", "updated_at",
}

func TestCreateUser_Success(t *testing.T) {
	userDB, mock := newTestUserDB(t)

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("alice", "alice@example.com", sqlmock.AnyArg(), models.RoleViewer).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u1", "alice", "alice@example.com", "viewer", "{}", true, false, nil, now, now))

	user, err := userDB.CreateUser(models.CreateUserRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "Sup3r$ecret!",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("Sup3r$ecret!")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_DefaultRole(t *testing.T) {
	userDB, mock := newTestUserDB(t)
	now := time.Now()
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("bob", "bob@example.com", sqlmock.AnyArg(), models.RoleViewer).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u2", "bob", "bob@example.com", "viewer", "{}", true, false, nil, now, now))

	user, err := userDB.CreateUser(models.CreateUserRequest{Username: "bob", Email: "bob@example.com", Password: "Sup3r$ecret!"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleViewer, user.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUser_Success(t *testing.T) {
	userDB, mock := newTestUserDB(t)
	now := time.Now()
	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u1", "alice", "alice@example.com", "viewer", "{}", true, false, nil, now, now))

	user, err := userDB.GetUser("u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUser_NotFound(t *testing.T) {
	userDB, mock := newTestUserDB(t)
	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := userDB.GetUser("missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByUsername_Success(t *testing.T) {
	userDB, mock := newTestUserDB(t)
	now := time.Now()
	mock.ExpectQuery(`SELECT .* FROM users WHERE username = \$1`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(append([]string{}, append([]string{"id", "username", "email", "password_hash"}, userColumns[3:]...)...)).
			AddRow("u1", "alice", "alice@example.com", "hash", "viewer", "{}", true, false, nil, now, now))

	user, err := userDB.GetUserByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyPassword_Success(t *testing.T) {
	userDB, mock := newTestUserDB(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("Sup3r$ecret!"), 12)
	require.NoError(t, err)
	now := time.Now()

	mock.ExpectQuery(`SELECT .* FROM users WHERE username = \$1`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(append([]string{"id", "username", "email", "password_hash"}, userColumns[3:]...)).
			AddRow("u1", "alice", "alice@example.com", string(hash), "viewer", "{}", true, false, nil, now, now))
	mock.ExpectExec(`UPDATE users SET last_login`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	user, err := userDB.VerifyPassword("alice", "Sup3r$ecret!")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyPassword_WrongPassword(t *testing.T) {
	userDB, mock := newTestUserDB(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-password"), 12)
	require.NoError(t, err)
	now := time.Now()

	mock.ExpectQuery(`SELECT .* FROM users WHERE username = \$1`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(append([]string{"id", "username", "email", "password_hash"}, userColumns[3:]...)).
			AddRow("u1", "alice", "alice@example.com", string(hash), "viewer", "{}", true, false, nil, now, now))

	_, err = userDB.VerifyPassword("alice", "wrong-password")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyPassword_UserNotFound(t *testing.T) {
	userDB, mock := newTestUserDB(t)
	mock.ExpectQuery(`SELECT .* FROM users WHERE username = \$1`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := userDB.VerifyPassword("ghost", "whatever")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUser_Success(t *testing.T) {
	userDB, mock := newTestUserDB(t)
	now := time.Now()
	newEmail := "alice2@example.com"

	mock.ExpectQuery(`UPDATE users SET`).
		WithArgs(newEmail, "u1").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u1", "alice", newEmail, "viewer", "{}", true, false, nil, now, now))

	user, err := userDB.UpdateUser("u1", models.UpdateUserRequest{Email: &newEmail})
	require.NoError(t, err)
	assert.Equal(t, newEmail, user.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUser_Success(t *testing.T) {
	userDB, mock := newTestUserDB(t)
	mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := userDB.DeleteUser("u1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUser_NotFound(t *testing.T) {
	userDB, mock := newTestUserDB(t)
	mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := userDB.DeleteUser("missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdatePassword_Success(t *testing.T) {
	userDB, mock := newTestUserDB(t)
	mock.ExpectExec(`UPDATE users SET password_hash`).
		WithArgs(sqlmock.AnyArg(), "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := userDB.UpdatePassword("u1", "NewSup3r$ecret!")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}


package auth

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/logintel/backend/internal/apperrors"
	"github.com/logintel/backend/internal/cache"
	"github.com/logintel/backend/internal/db"
)

var handlerUserColumns = []string{
	"id", "username", "email", "role", "permissions", "is_active", "is_verified", "last_login", "created_at", "updated_at",
}

func newTestHandler(t *testing.T) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	database := db.NewDatabaseForTesting(sqlDB)
	userDB := db.NewUserDB(database)

	disabledCache, err := cache.NewCache(cache.Config{Enabled: false})
	require.NoError(t, err)
	jwtManager := NewJWTManager(JWTConfig{SecretKey: "test-secret-key-at-least-16b"}, NewSessionStore(disabledCache))

	return NewHandler(userDB, jwtManager), mock
}

func doRequest(t *testing.T, handler gin.HandlerFunc, method, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, "/", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")
	handler(c)
	return w
}

func TestLogin_Success(t *testing.T) {
	h, mock := newTestHandler(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), 12)
	require.NoError(t, err)
	now := time.Now()

	mock.ExpectQuery(`SELECT .* FROM users WHERE username`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "username", "email", "password_hash", "role", "permissions", "is_active", "is_verified", "last_login", "created_at", "updated_at",
		}).AddRow("u1", "alice", "alice@example.com", string(hash), "analyst", "{}", true, true, nil, now, now))
	mock.ExpectExec(`UPDATE users SET last_login`).WillReturnResult(sqlmock.NewResult(0, 1))

	w := doRequest(t, h.Login, http.MethodPost, `{"username":"alice","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data AuthResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotEmpty(t, envelope.Data.AccessToken)
	require.NotEmpty(t, envelope.Data.RefreshToken)
	require.Equal(t, "alice", envelope.Data.User.Username)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin_WrongPassword(t *testing.T) {
	h, mock := newTestHandler(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), 12)
	require.NoError(t, err)
	now := time.Now()

	mock.ExpectQuery(`SELECT .* FROM users WHERE username`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "username", "email", "password_hash", "role", "permissions", "is_active", "is_verified", "last_login", "created_at", "updated_at",
		}).AddRow("u1", "alice", "alice@example.com", string(hash), "analyst", "{}", true, true, nil, now, now))

	w := doRequest(t, h.Login, http.MethodPost, `{"username":"alice","password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	var envelope struct {
		Error apperrors.ErrorResponse `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, apperrors.CodeAuthenticationFailed, envelope.Error.Code)
}

func TestLogin_DisabledAccount(t *testing.T) {
	h, mock := newTestHandler(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), 12)
	require.NoError(t, err)
	now := time.Now()

	mock.ExpectQuery(`SELECT .* FROM users WHERE username`).
		WithArgs("bob").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "username", "email", "password_hash", "role", "permissions", "is_active", "is_verified", "last_login", "created_at", "updated_at",
		}).AddRow("u2", "bob", "bob@example.com", string(hash), "viewer", "{}", false, true, nil, now, now))

	w := doRequest(t, h.Login, http.MethodPost, `{"username":"bob","password":"correct-horse"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogin_InvalidJSON(t *testing.T) {
	h, _ := newTestHandler(t)
	w := doRequest(t, h.Login, http.MethodPost, `not json`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogout_AlwaysSucceeds(t *testing.T) {
	h, _ := newTestHandler(t)
	w := doRequest(t, h.Logout, http.MethodPost, `{"refresh_token":"garbage"}`)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRequestPasswordReset_UnknownEmailStillReturns200(t *testing.T) {
	h, mock := newTestHandler(t)
	mock.ExpectQuery(`SELECT .* FROM users WHERE email`).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	w := doRequest(t, h.RequestPasswordReset, http.MethodPost, `{"email":"ghost@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotContains(t, w.Body.String(), "reset_token")
}

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/logintel/backend/internal/auth"
	"github.com/logintel/backend/internal/db"
	"github.com/logintel/backend/internal/ml"
)

func newTestHealthHandler(t *testing.T) (*HealthHandler, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	database := db.NewDatabaseForTesting(sqlDB)
	analyzer := ml.NewAnalyzer(db.NewLogDB(database), db.NewPredictionDB(database), t.TempDir())
	jwtManager := auth.NewJWTManager(auth.JWTConfig{SecretKey: "test-secret-key-0123456789"}, nil)
	return NewHealthHandler(database, nil, analyzer, jwtManager, db.NewUserDB(database)), mock
}

func TestHealth_RowStoreUp(t *testing.T) {
	h, mock := newTestHealthHandler(t)
	mock.ExpectPing()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)
	h.Health(c)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHealthDetail_ReportsEachComponent(t *testing.T) {
	h, mock := newTestHealthHandler(t)
	mock.ExpectPing()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health/detail", nil)
	h.HealthDetail(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "row_store")
	require.Contains(t, w.Body.String(), "analyzer")
}

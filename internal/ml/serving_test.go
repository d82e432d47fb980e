package ml

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logintel/backend/internal/apperrors"
	"github.com/logintel/backend/internal/db"
)

func newTestServing(t *testing.T) (*Serving, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	database := db.NewDatabaseForTesting(sqlDB)
	return NewServing(db.NewLogDB(database), db.NewPredictionDB(database)), mock
}

func TestGetPrediction_PendingWhenLogExistsButUnpredicted(t *testing.T) {
	serving, mock := newTestServing(t)
	now := time.Now()

	mock.ExpectQuery("SELECT internal_id").WillReturnRows(sqlmock.NewRows([]string{
		"internal_id", "external_id", "timestamp", "level", "message", "source_type", "raw_log",
		"host", "service", "category", "tags", "structured_data",
		"request_id", "session_id", "correlation_id", "ip_address",
		"http_method", "http_status", "endpoint", "response_time_ms", "application_type", "framework",
		"transaction_code", "sap_system", "sap_client", "sap_message_type", "sap_severity", "business_data",
		"is_anomaly", "anomaly_type", "performance_metrics", "error_details",
		"created_at", "updated_at",
	}).AddRow(
		int64(1), "ext-1", now, "INFO", "hi", "application", "raw",
		"", "", "", []byte("{}"), []byte("null"),
		"", "", "", "",
		"", nil, "", nil, "", "",
		"", "", "", "", nil, []byte("null"),
		false, "", []byte("null"), "",
		now, now,
	))
	mock.ExpectQuery("SELECT log_internal_id").WillReturnError(sql.ErrNoRows)

	_, err := serving.GetPrediction(context.Background(), "ext-1")
	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodePredictionPending, appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPrediction_NotFoundWhenLogDoesNotExist(t *testing.T) {
	serving, mock := newTestServing(t)
	mock.ExpectQuery("SELECT internal_id").WillReturnError(sql.ErrNoRows)

	_, err := serving.GetPrediction(context.Background(), "missing")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPredictionOrFallback_MockDataFallbackWhenPending(t *testing.T) {
	serving, mock := newTestServing(t)
	now := time.Now()

	mock.ExpectQuery("SELECT internal_id").WillReturnRows(sqlmock.NewRows([]string{
		"internal_id", "external_id", "timestamp", "level", "message", "source_type", "raw_log",
		"host", "service", "category", "tags", "structured_data",
		"request_id", "session_id", "correlation_id", "ip_address",
		"http_method", "http_status", "endpoint", "response_time_ms", "application_type", "framework",
		"transaction_code", "sap_system", "sap_client", "sap_message_type", "sap_severity", "business_data",
		"is_anomaly", "anomaly_type", "performance_metrics", "error_details",
		"created_at", "updated_at",
	}).AddRow(
		int64(1), "ext-1", now, "INFO", "hi", "application", "raw",
		"", "", "", []byte("{}"), []byte("null"),
		"", "", "", "",
		"", nil, "", nil, "", "",
		"", "", "", "", nil, []byte("null"),
		false, "", []byte("null"), "",
		now, now,
	))
	mock.ExpectQuery("SELECT log_internal_id").WillReturnError(sql.ErrNoRows)

	view, err := serving.GetPredictionOrFallback(context.Background(), "ext-1")
	require.NoError(t, err)
	assert.Equal(t, SourceMockDataFallback, view.Source)
	assert.Nil(t, view.Prediction)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRecent_DefaultsWindowAndLimit(t *testing.T) {
	serving, mock := newTestServing(t)
	mock.ExpectQuery("SELECT log_internal_id").WillReturnRows(sqlmock.NewRows([]string{
		"log_internal_id", "predicted_level", "level_confidence", "is_anomaly", "anomaly_score", "anomaly_confidence", "severity", "model_version", "predicted_at",
	}))

	preds, err := serving.ListRecent(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Empty(t, preds)
	assert.NoError(t, mock.ExpectationsWereMet())
}

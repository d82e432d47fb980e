package ml

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logintel/backend/internal/db"
)

func newTestAnalyzer(t *testing.T) (*Analyzer, sqlmock.Sqlmock, string) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	database := db.NewDatabaseForTesting(sqlDB)
	logDB := db.NewLogDB(database)
	predictionDB := db.NewPredictionDB(database)

	dir := t.TempDir()
	writeArtifact(t, dir, "metadata.yaml", "model_version: v1\nhas_severity_model: false\n")
	writeArtifact(t, dir, "level_classifier.yaml", "default_level: INFO\n")
	writeArtifact(t, dir, "anomaly_detector.yaml", "threshold: 0.9\n")

	return NewAnalyzer(logDB, predictionDB, dir), mock, dir
}

func TestRunOnce_NoUnpredictedLogsStoresNothing(t *testing.T) {
	analyzer, mock, _ := newTestAnalyzer(t)
	mock.ExpectQuery("SELECT internal_id").WillReturnRows(sqlmock.NewRows([]string{
		"internal_id", "external_id", "timestamp", "level", "message", "source_type", "raw_log",
		"host", "service", "category", "tags", "structured_data",
		"request_id", "session_id", "correlation_id", "ip_address",
		"http_method", "http_status", "endpoint", "response_time_ms", "application_type", "framework",
		"transaction_code", "sap_system", "sap_client", "sap_message_type", "sap_severity", "business_data",
		"is_anomaly", "anomaly_type", "performance_metrics", "error_details",
		"created_at", "updated_at",
	}))

	summary, err := analyzer.RunOnce(context.Background(), 24*time.Hour, 1000)
	require.NoError(t, err)
	assert.Zero(t, summary.Stored)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunOnce_MissingArtifactsFailsFast(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	database := db.NewDatabaseForTesting(sqlDB)
	analyzer := NewAnalyzer(db.NewLogDB(database), db.NewPredictionDB(database), t.TempDir())

	_, err = analyzer.RunOnce(context.Background(), time.Hour, 100)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunOnce_RejectsConcurrentRun(t *testing.T) {
	analyzer, mock, _ := newTestAnalyzer(t)
	analyzer.running = true

	_, err := analyzer.RunOnce(context.Background(), time.Hour, 100)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package query

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logintel/backend/internal/apperrors"
	"github.com/logintel/backend/internal/db"
	"github.com/logintel/backend/internal/models"
	"github.com/logintel/backend/internal/search"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newTestSearchClient(t *testing.T, rt roundTripFunc) *search.Client {
	t.Helper()
	es, err := elasticsearch.NewClient(elasticsearch.Config{Transport: rt})
	require.NoError(t, err)
	return search.NewClientForTesting(es, "log_entries")
}

func newTestLogDB(t *testing.T) (*db.LogDB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db.NewLogDB(db.NewDatabaseForTesting(sqlDB)), mock
}

func TestSearch_TextQueryRoutesToIndexStore(t *testing.T) {
	logDB, mock := newTestLogDB(t)
	searchClient := newTestSearchClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{
			"hits": {"total": {"value": 1}, "max_score": 2.0,
				"hits": [{"_score": 2.0, "_source": {"external_id":"ext-1","level":"ERROR","message":"disk full","timestamp":"2026-07-30T00:00:00Z"}}]}
		}`), nil
	})

	engine := NewEngine(logDB, searchClient)
	result, err := engine.Search(context.Background(), models.LogFilter{Query: "disk full"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Total)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, "ext-1", result.Entries[0].ExternalID)
	assert.NoError(t, mock.ExpectationsWereMet()) // row store untouched
}

func TestSearch_StructuredFilterRoutesToRowStore(t *testing.T) {
	logDB, mock := newTestLogDB(t)
	now := time.Now()
	mock.ExpectQuery("SELECT count").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
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
		"", "", "", pqArray(), []byte("null"),
		"", "", "", "",
		"", nil, "", nil, "", "",
		"", "", "", "", nil, []byte("null"),
		false, "", []byte("null"), "",
		now, now,
	))

	engine := NewEngine(logDB, nil)
	result, err := engine.Search(context.Background(), models.LogFilter{Service: "checkout"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Total)
	require.Len(t, result.Entries, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearch_EmptyFilterDefaultsToRecentWindow(t *testing.T) {
	logDB, mock := newTestLogDB(t)
	mock.ExpectQuery("SELECT count").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT internal_id").WillReturnRows(sqlmock.NewRows([]string{
		"internal_id", "external_id", "timestamp", "level", "message", "source_type", "raw_log",
		"host", "service", "category", "tags", "structured_data",
		"request_id", "session_id", "correlation_id", "ip_address",
		"http_method", "http_status", "endpoint", "response_time_ms", "application_type", "framework",
		"transaction_code", "sap_system", "sap_client", "sap_message_type", "sap_severity", "business_data",
		"is_anomaly", "anomaly_type", "performance_metrics", "error_details",
		"created_at", "updated_at",
	}))

	engine := NewEngine(logDB, nil)
	result, err := engine.Search(context.Background(), models.LogFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Total)
	assert.Empty(t, result.Entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearch_LimitClampedToMax(t *testing.T) {
	filter := normalize(models.LogFilter{Limit: 5000})
	assert.Equal(t, maxLimit, filter.Limit)
}

func TestSearch_TextQueryWithoutIndexStoreIsUnavailable(t *testing.T) {
	logDB, _ := newTestLogDB(t)
	engine := NewEngine(logDB, nil)
	_, err := engine.Search(context.Background(), models.LogFilter{Query: "anything"})
	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeSearchUnavailable, appErr.Code)
}

func TestCorrelate_RejectsUnknownKey(t *testing.T) {
	logDB, _ := newTestLogDB(t)
	engine := NewEngine(logDB, nil)
	_, err := engine.Correlate(context.Background(), "user_agent", "req-1", 10)
	require.Error(t, err)
}

func TestCorrelate_RequiresValue(t *testing.T) {
	logDB, _ := newTestLogDB(t)
	engine := NewEngine(logDB, nil)
	_, err := engine.Correlate(context.Background(), "request_id", "", 10)
	require.Error(t, err)
}

func TestCorrelate_AcceptsIPAddressKey(t *testing.T) {
	logDB, mock := newTestLogDB(t)
	mock.ExpectQuery("SELECT internal_id").WillReturnRows(sqlmock.NewRows([]string{
		"internal_id", "external_id", "timestamp", "level", "message", "source_type", "raw_log",
		"host", "service", "category", "tags", "structured_data",
		"request_id", "session_id", "correlation_id", "ip_address",
		"http_method", "http_status", "endpoint", "response_time_ms", "application_type", "framework",
		"transaction_code", "sap_system", "sap_client", "sap_message_type", "sap_severity", "business_data",
		"is_anomaly", "anomaly_type", "performance_metrics", "error_details",
		"created_at", "updated_at",
	}))

	engine := NewEngine(logDB, nil)
	_, err := engine.Correlate(context.Background(), "ip_address", "10.0.0.1", 10)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func pqArray() []byte {
	return []byte("{}")
}

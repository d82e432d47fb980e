package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/logintel/backend/internal/db"
	"github.com/logintel/backend/internal/ingest"
	"github.com/logintel/backend/internal/query"
	"github.com/logintel/backend/internal/search"
)

type handlerRoundTripFunc func(*http.Request) (*http.Response, error)

func (f handlerRoundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestSearchClient(t *testing.T, rt handlerRoundTripFunc) *search.Client {
	t.Helper()
	es, err := elasticsearch.NewClient(elasticsearch.Config{Transport: rt})
	require.NoError(t, err)
	return search.NewClientForTesting(es, "log_entries")
}

func jsonResp(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newTestLogHandler(t *testing.T) (*LogHandler, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	logDB := db.NewLogDB(db.NewDatabaseForTesting(sqlDB))
	coordinator := ingest.NewCoordinator(logDB, nil)
	engine := query.NewEngine(logDB, nil)
	return &LogHandler{coordinator: coordinator, engine: engine}, mock
}

func newTestLogHandlerWithSearch(t *testing.T, rt handlerRoundTripFunc) *LogHandler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	logDB := db.NewLogDB(db.NewDatabaseForTesting(sqlDB))
	searchClient := newTestSearchClient(t, rt)
	return &LogHandler{coordinator: ingest.NewCoordinator(logDB, searchClient), engine: query.NewEngine(logDB, searchClient)}
}

func doLogRequest(t *testing.T, handler gin.HandlerFunc, method, target, body string, params gin.Params) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = params
	handler(c)
	return w
}

func TestIngestBatch_RejectsEmptyBatch(t *testing.T) {
	h, _ := newTestLogHandler(t)
	w := doLogRequest(t, h.IngestBatch, http.MethodPost, "/logs/ingest", `{"logs":[]}`, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestBatch_AcceptsValidEntries(t *testing.T) {
	h, mock := newTestLogHandler(t)
	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO log_entries")
	mock.ExpectQuery("INSERT INTO log_entries").
		WillReturnRows(sqlmock.NewRows([]string{"internal_id"}).AddRow(int64(1)))
	mock.ExpectCommit()

	body := `{"logs":[{"timestamp":"2026-07-30T00:00:00Z","level":"INFO","message":"ok","source_type":"application"}]}`
	w := doLogRequest(t, h.IngestBatch, http.MethodPost, "/logs/ingest", body, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data struct {
			IngestedCount int `json:"ingested_count"`
			FailedCount   int `json:"failed_count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, 1, envelope.Data.IngestedCount)
	require.Equal(t, 0, envelope.Data.FailedCount)
}

func TestSearch_WithoutIndexStoreFallsBackToRowStore(t *testing.T) {
	h, mock := newTestLogHandler(t)
	mock.ExpectQuery("SELECT count").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{
		"internal_id", "external_id", "timestamp", "level", "message", "source_type", "raw_log",
		"host", "service", "category", "tags", "structured_data",
		"request_id", "session_id", "correlation_id", "ip_address",
		"http_method", "http_status", "endpoint", "response_time_ms", "application_type", "framework",
		"transaction_code", "sap_system", "sap_client", "sap_message_type", "sap_severity", "business_data",
		"is_anomaly", "anomaly_type", "performance_metrics", "error_details",
		"created_at", "updated_at",
	}))

	w := doLogRequest(t, h.Search, http.MethodGet, "/logs/search?host=web-1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSearch_TextQueryRoutesToIndexStore(t *testing.T) {
	h := newTestLogHandlerWithSearch(t, func(req *http.Request) (*http.Response, error) {
		return jsonResp(200, `{"hits":{"total":{"value":0},"hits":[]}}`), nil
	})

	w := doLogRequest(t, h.Search, http.MethodGet, "/logs/search?q=timeout", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestCorrelate_RequiresKeyAndValue(t *testing.T) {
	h, _ := newTestLogHandler(t)
	w := doLogRequest(t, h.Correlate, http.MethodGet, "/logs/correlation", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetByExternalID_NotFound(t *testing.T) {
	h, mock := newTestLogHandler(t)
	mock.ExpectQuery("SELECT").WillReturnError(sql.ErrNoRows)

	w := doLogRequest(t, h.GetByExternalID, http.MethodGet, "/logs/missing", "", gin.Params{{Key: "external_id", Value: "missing"}})
	require.Equal(t, http.StatusNotFound, w.Code)
}

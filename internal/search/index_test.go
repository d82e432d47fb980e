package search

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logintel/backend/internal/models"
)

// roundTripFunc lets a bare function satisfy http.RoundTripper, the
// standard way to stub the Elasticsearch client's transport in tests.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(t *testing.T, rt roundTripFunc) *Client {
	es, err := elasticsearch.NewClient(elasticsearch.Config{Transport: rt})
	require.NoError(t, err)
	return NewClientForTesting(es, "log_entries")
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestBulkIndex_Success(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"items":[{"index":{"_id":"ext-1","status":201}}]}`), nil
	})

	entries := []*models.LogEntry{{ExternalID: "ext-1", Timestamp: time.Now(), Level: models.LevelInfo, Message: "hi"}}
	results, err := client.BulkIndex(context.Background(), entries)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Indexed)
}

func TestBulkIndex_PartialFailure(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"items":[{"index":{"_id":"ext-1","status":400,"error":{"reason":"mapper_parsing_exception"}}}]}`), nil
	})

	entries := []*models.LogEntry{{ExternalID: "ext-1", Timestamp: time.Now(), Level: models.LevelInfo, Message: "hi"}}
	results, err := client.BulkIndex(context.Background(), entries)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Indexed)
	assert.Error(t, results[0].Err)
}

func TestBulkIndex_Empty(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		t.Fatal("no request should be issued for an empty batch")
		return nil, nil
	})
	results, err := client.BulkIndex(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, results)
}

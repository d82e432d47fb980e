package search

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logintel/backend/internal/models"
)

func TestQuery_TextQueryScored(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{
			"hits": {
				"total": {"value": 2},
				"max_score": 1.5,
				"hits": [
					{"_score": 1.5, "_source": {"external_id":"ext-1","level":"ERROR","message":"disk full","message_text":"disk full","timestamp":"2026-07-30T00:00:00Z"}}
				]
			}
		}`), nil
	})

	result, err := client.Query(context.Background(), models.LogFilter{Query: "disk full", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Total)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "ext-1", result.Hits[0].Entry.ExternalID)
	assert.Equal(t, 1.5, result.Hits[0].Score)
}

func TestQuery_EmptyFilterTimestampSort(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"hits": {"total": {"value": 0}, "max_score": 0, "hits": []}}`), nil
	})

	result, err := client.Query(context.Background(), models.LogFilter{Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Total)
	assert.Empty(t, result.Hits)
}

func TestQuery_Error(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(503, `{"error":"unavailable"}`), nil
	})

	_, err := client.Query(context.Background(), models.LogFilter{Limit: 10})
	assert.Error(t, err)
}

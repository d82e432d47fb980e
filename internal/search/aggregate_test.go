package search

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate_Buckets(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{
			"aggregations": {
				"by_level": {"buckets": [{"key":"ERROR","doc_count":12},{"key":"INFO","doc_count":88}]},
				"by_source_type": {"buckets": [{"key":"application","doc_count":100}]},
				"by_service": {"buckets": []},
				"by_host": {"buckets": []},
				"top_endpoints": {"buckets": []}
			}
		}`), nil
	})

	result, err := client.Aggregate(context.Background(), time.Now().Add(-24*time.Hour), time.Now())
	require.NoError(t, err)
	require.Len(t, result.ByLevel, 2)
	assert.Equal(t, "ERROR", result.ByLevel[0].Key)
	assert.Equal(t, int64(12), result.ByLevel[0].Count)
}

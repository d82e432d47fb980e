package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Bucket is a single facet bucket count.
type Bucket struct {
	Key   string
	Count int64
}

// AggregateResult holds bucketed counts over a time range, used by the
// statistics endpoint when the row store's statistics query fails.
type AggregateResult struct {
	ByLevel      []Bucket
	BySourceType []Bucket
	ByService    []Bucket
	ByHost       []Bucket
	TopEndpoints []Bucket
}

// Aggregate runs a multi-facet terms aggregation bucketed by level,
// source_type, service, host, and the most frequent endpoints within
// [start, end).
func (c *Client) Aggregate(ctx context.Context, start, end time.Time) (*AggregateResult, error) {
	body := map[string]interface{}{
		"size": 0,
		"query": map[string]interface{}{
			"range": map[string]interface{}{
				"timestamp": map[string]interface{}{"gte": start, "lt": end},
			},
		},
		"aggs": map[string]interface{}{
			"by_level":       map[string]interface{}{"terms": map[string]interface{}{"field": "level", "size": 10}},
			"by_source_type": map[string]interface{}{"terms": map[string]interface{}{"field": "source_type", "size": 10}},
			"by_service":     map[string]interface{}{"terms": map[string]interface{}{"field": "service", "size": 20}},
			"by_host":        map[string]interface{}{"terms": map[string]interface{}{"field": "host", "size": 20}},
			"top_endpoints":  map[string]interface{}{"terms": map[string]interface{}{"field": "endpoint", "size": 10}},
		},
	}

	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal aggregation: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{c.indexName},
		Body:  bytes.NewReader(bodyJSON),
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := req.Do(reqCtx, c.es)
	if err != nil {
		return nil, fmt.Errorf("query_error: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("query_error: %s", res.Status())
	}

	var parsed struct {
		Aggregations map[string]struct {
			Buckets []struct {
				Key      string `json:"key"`
				DocCount int64  `json:"doc_count"`
			} `json:"buckets"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse aggregation response: %w", err)
	}

	toBuckets := func(name string) []Bucket {
		agg, ok := parsed.Aggregations[name]
		if !ok {
			return nil
		}
		buckets := make([]Bucket, 0, len(agg.Buckets))
		for _, b := range agg.Buckets {
			buckets = append(buckets, Bucket{Key: b.Key, Count: b.DocCount})
		}
		return buckets
	}

	return &AggregateResult{
		ByLevel:      toBuckets("by_level"),
		BySourceType: toBuckets("by_source_type"),
		ByService:    toBuckets("by_service"),
		ByHost:       toBuckets("by_host"),
		TopEndpoints: toBuckets("top_endpoints"),
	}, nil
}

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/logintel/backend/internal/models"
)

// Hit is a single search result with its relevance score.
type Hit struct {
	Entry *models.LogEntry
	Score float64
}

// QueryResult is the outcome of a compound query against the index store.
type QueryResult struct {
	Hits     []Hit
	Total    int64
	MaxScore float64
}

// Query constructs a compound query from filter: term filters for exact
// fields, a range filter for the time window, and a scored full-text
// sub-query when filter.Query is present. Results are sorted by relevance
// then timestamp when a text query is present, otherwise by timestamp DESC.
func (c *Client) Query(ctx context.Context, filter models.LogFilter) (*QueryResult, error) {
	must := []map[string]interface{}{}

	if filter.Level != "" {
		must = append(must, map[string]interface{}{"term": map[string]interface{}{"level": filter.Level}})
	}
	if filter.SourceType != "" {
		must = append(must, map[string]interface{}{"term": map[string]interface{}{"source_type": filter.SourceType}})
	}
	if filter.Host != "" {
		must = append(must, map[string]interface{}{"term": map[string]interface{}{"host": filter.Host}})
	}
	if filter.Service != "" {
		must = append(must, map[string]interface{}{"term": map[string]interface{}{"service": filter.Service}})
	}
	if filter.RequestID != "" {
		must = append(must, map[string]interface{}{"term": map[string]interface{}{"request_id": filter.RequestID}})
	}
	if filter.SessionID != "" {
		must = append(must, map[string]interface{}{"term": map[string]interface{}{"session_id": filter.SessionID}})
	}
	if filter.CorrelationID != "" {
		must = append(must, map[string]interface{}{"term": map[string]interface{}{"correlation_id": filter.CorrelationID}})
	}
	if filter.IPAddress != "" {
		must = append(must, map[string]interface{}{"term": map[string]interface{}{"ip_address": filter.IPAddress}})
	}

	rangeFilter := map[string]interface{}{}
	if !filter.Start.IsZero() {
		rangeFilter["gte"] = filter.Start
	}
	if !filter.End.IsZero() {
		rangeFilter["lte"] = filter.End
	}
	if len(rangeFilter) > 0 {
		must = append(must, map[string]interface{}{"range": map[string]interface{}{"timestamp": rangeFilter}})
	}

	hasTextQuery := filter.Query != ""
	if hasTextQuery {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{"message_text": filter.Query},
		})
	}

	body := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": must},
		},
		"from": filter.Offset,
		"size": filter.Limit,
	}
	if hasTextQuery {
		body["sort"] = []map[string]interface{}{
			{"_score": "desc"},
			{"timestamp": "desc"},
		}
	} else {
		body["sort"] = []map[string]interface{}{{"timestamp": "desc"}}
	}

	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
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
		Hits struct {
			Total    struct{ Value int64 `json:"value"` } `json:"total"`
			MaxScore float64                               `json:"max_score"`
			Hits     []struct {
				Score  float64         `json:"_score"`
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse query response: %w", err)
	}

	hits := make([]Hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		var doc document
		if err := json.Unmarshal(h.Source, &doc); err != nil {
			continue
		}
		entry := doc.LogEntry
		hits = append(hits, Hit{Entry: &entry, Score: h.Score})
	}

	return &QueryResult{
		Hits:     hits,
		Total:    parsed.Hits.Total.Value,
		MaxScore: parsed.Hits.MaxScore,
	}, nil
}

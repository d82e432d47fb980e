package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/logintel/backend/internal/models"
	"github.com/logintel/backend/internal/observability"
)

// IndexResult is the per-entry outcome of a bulk index call.
type IndexResult struct {
	ExternalID string
	Indexed    bool
	Err        error
}

// document is the shape persisted to the index; it carries the full log
// entry plus a copy of the message in message_text for full-text analysis.
// This package does not create the index or its mapping; the field types
// are whatever the index store's existing mapping gives them.
type document struct {
	models.LogEntry
	MessageText string `json:"message_text"`
}

// BulkIndex submits a batch of stored log entries to the index store,
// keyed by external_id. An entry that failed to store in B must never reach
// here (the ingestion coordinator enforces that ordering).
func (c *Client) BulkIndex(ctx context.Context, entries []*models.LogEntry) ([]IndexResult, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	for _, entry := range entries {
		action := map[string]interface{}{
			"index": map[string]interface{}{
				"_index": c.indexName,
				"_id":    entry.ExternalID,
			},
		}
		actionJSON, err := json.Marshal(action)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal bulk action: %w", err)
		}
		buf.Write(actionJSON)
		buf.WriteByte('\n')

		doc := document{LogEntry: *entry, MessageText: entry.Message}
		docJSON, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal document: %w", err)
		}
		buf.Write(docJSON)
		buf.WriteByte('\n')
	}

	req := esapi.BulkRequest{
		Body:    bytes.NewReader(buf.Bytes()),
		Refresh: "false",
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := req.Do(reqCtx, c.es)
	if err != nil {
		observability.Search().Error().Err(err).Msg("bulk index request failed")
		return allFailed(entries, err), nil
	}
	defer res.Body.Close()

	if res.IsError() {
		err := fmt.Errorf("bulk request error: %s", res.Status())
		observability.Search().Error().Err(err).Msg("bulk index response error")
		return allFailed(entries, err), nil
	}

	var bulkResp struct {
		Items []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  *struct {
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return nil, fmt.Errorf("failed to parse bulk response: %w", err)
	}

	results := make([]IndexResult, 0, len(entries))
	for i, item := range bulkResp.Items {
		action, ok := item["index"]
		if !ok || i >= len(entries) {
			continue
		}
		if action.Status >= 200 && action.Status < 300 {
			results = append(results, IndexResult{ExternalID: entries[i].ExternalID, Indexed: true})
		} else {
			reason := "unknown index error"
			if action.Error != nil {
				reason = action.Error.Reason
			}
			results = append(results, IndexResult{
				ExternalID: entries[i].ExternalID,
				Indexed:    false,
				Err:        fmt.Errorf("index_failed: %s", reason),
			})
		}
	}
	return results, nil
}

func allFailed(entries []*models.LogEntry, err error) []IndexResult {
	results := make([]IndexResult, len(entries))
	for i, entry := range entries {
		results[i] = IndexResult{ExternalID: entry.ExternalID, Indexed: false, Err: err}
	}
	return results
}

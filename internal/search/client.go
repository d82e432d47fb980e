// Package search wraps the Elasticsearch-backed inverted-index store that
// backs full-text and faceted log queries (component C).
//
// The row store (internal/db) remains the source of truth; this package is
// a best-effort secondary index the search engine (internal/query) consults
// for free-text queries, and for facet aggregation only when the row
// store's statistics query fails.
package search

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/logintel/backend/internal/observability"
)

const defaultIndexName = "log_entries"

// Config holds index store configuration.
type Config struct {
	Addresses []string
	IndexName string
	Timeout   time.Duration
}

// Client is the index store adapter (component C).
type Client struct {
	es        *elasticsearch.Client
	indexName string
	timeout   time.Duration
}

// NewClient dials the configured Elasticsearch cluster and verifies
// reachability with a ping.
func NewClient(cfg Config) (*Client, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("no elasticsearch addresses configured")
	}
	indexName := cfg.IndexName
	if indexName == "" {
		indexName = defaultIndexName
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Transport: &http.Transport{
			MaxIdleConns:    10,
			IdleConnTimeout: 30 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	res, err := es.Ping(es.Ping.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to ping elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}

	observability.Search().Info().Strs("addresses", cfg.Addresses).Msg("connected to elasticsearch")

	return &Client{es: es, indexName: indexName, timeout: timeout}, nil
}

// NewClientForTesting wires a Client around an already-built *elasticsearch.Client,
// letting tests substitute a fake esapi Transport without a live cluster.
func NewClientForTesting(es *elasticsearch.Client, indexName string) *Client {
	if indexName == "" {
		indexName = defaultIndexName
	}
	return &Client{es: es, indexName: indexName, timeout: 10 * time.Second}
}

// Ping reports whether the cluster is reachable, used by the health report.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch unreachable: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}
	return nil
}

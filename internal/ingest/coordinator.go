package ingest

import (
	"context"
	"fmt"

	"github.com/logintel/backend/internal/db"
	"github.com/logintel/backend/internal/models"
	"github.com/logintel/backend/internal/observability"
	"github.com/logintel/backend/internal/search"
)

// Summary reports the outcome of one batch ingest call, broken down by
// disposition. accepted counts rows that made it into the row store,
// regardless of whether the index-store write also succeeded — B is the
// source of truth, and a failed index write is recorded for later
// reconciliation rather than turning an accepted row into a failure.
type Summary struct {
	Accepted         int               `json:"accepted"`
	StorageRejected  int               `json:"storage_rejected"`
	IndexFailed      int               `json:"index_failed"`
	ValidationFailed int               `json:"validation_failed"`
	Errors           []ValidationError `json:"errors,omitempty"`
}

// IngestedCount is the spec §6 `ingested_count`: rows that made it into the
// row store, whether or not indexing also succeeded.
func (s *Summary) IngestedCount() int {
	return s.Accepted
}

// FailedCount is the spec §6 `failed_count`: entries that never became a
// retrievable row, either because they failed validation before reaching B
// or because B itself rejected them (e.g. duplicate external_id).
func (s *Summary) FailedCount() int {
	return s.ValidationFailed + s.StorageRejected
}

// Coordinator implements component D: validate each entry, insert the valid
// ones into the row store, bulk-index the stored ones into the search
// store, and summarize. There are no implicit retries — a caller that wants
// one re-submits.
type Coordinator struct {
	logDB  *db.LogDB
	search *search.Client
}

func NewCoordinator(logDB *db.LogDB, searchClient *search.Client) *Coordinator {
	return &Coordinator{logDB: logDB, search: searchClient}
}

// Ingest runs the four-step algorithm. A total row-store outage surfaces as
// apperrors.IngestUnavailable to the caller instead of a Summary; a total
// index-store outage degrades to index_failed entries queued for
// reconciliation, since B already has the rows.
func (co *Coordinator) Ingest(ctx context.Context, entries []models.LogEntry) (*Summary, error) {
	summary := &Summary{}

	valid := make([]models.LogEntry, 0, len(entries))
	for i := range entries {
		if detail := validate(&entries[i]); detail != "" {
			summary.ValidationFailed++
			summary.Errors = append(summary.Errors, ValidationError{Index: i, Detail: detail})
			continue
		}
		valid = append(valid, entries[i])
	}

	if len(valid) == 0 {
		return summary, nil
	}

	results, err := co.logDB.InsertLogs(valid)
	if err != nil {
		return nil, fmt.Errorf("ingest: row store unavailable: %w", err)
	}

	stored := make([]*models.LogEntry, 0, len(results))
	for i, r := range results {
		if !r.Stored {
			summary.StorageRejected++
			continue
		}
		e := valid[i]
		e.InternalID = r.InternalID
		stored = append(stored, &e)
	}
	summary.Accepted = len(stored)

	if co.search == nil || len(stored) == 0 {
		return summary, nil
	}

	indexResults, err := co.search.BulkIndex(ctx, stored)
	if err != nil {
		// BulkIndex reports an unreachable or erroring index store per entry;
		// an error here means a document failed to marshal or the bulk
		// response could not be parsed. Either way every stored row needs
		// reconciliation, but none of them stop counting as accepted.
		for _, e := range stored {
			summary.IndexFailed++
			if enqErr := co.logDB.EnqueueReindex(e.ExternalID, e.InternalID, err.Error()); enqErr != nil {
				observability.Ingest().Error().Err(enqErr).Str("external_id", e.ExternalID).Msg("failed to enqueue reindex")
			}
		}
		return summary, nil
	}

	for i, r := range indexResults {
		if r.Indexed {
			continue
		}
		summary.IndexFailed++
		e := stored[i]
		reason := ""
		if r.Err != nil {
			reason = r.Err.Error()
		}
		if enqErr := co.logDB.EnqueueReindex(e.ExternalID, e.InternalID, reason); enqErr != nil {
			observability.Ingest().Error().Err(enqErr).Str("external_id", e.ExternalID).Msg("failed to enqueue reindex")
		}
	}

	return summary, nil
}

// Package ingest implements the ingestion coordinator (component D):
// validate → insert into the row store → bulk-index into the search
// store → summarize. It never retries within a single request — retry is
// the caller's responsibility, via re-submission with the same
// external_id.
package ingest

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/logintel/backend/internal/models"
)

// ValidationError describes why one entry in a batch was rejected before
// ever reaching the row store.
type ValidationError struct {
	Index  int    `json:"index"`
	Detail string `json:"detail"`
}

// validate applies the type rules in the data model to one entry, filling
// in a generated external_id when the caller omitted one. It mutates entry
// in place (assigning the generated ID) and returns a non-empty detail
// string when the entry is invalid.
func validate(entry *models.LogEntry) string {
	if entry.Timestamp.IsZero() {
		return "timestamp is required"
	}
	if !models.ValidLogLevel(string(entry.Level)) {
		return fmt.Sprintf("invalid level %q", entry.Level)
	}
	if entry.Message == "" {
		return "message is required"
	}
	if !models.ValidSourceType(string(entry.SourceType)) {
		return fmt.Sprintf("invalid source_type %q", entry.SourceType)
	}

	if entry.ExternalID == "" {
		id, err := generateExternalID(entry.SourceType, entry.Timestamp)
		if err != nil {
			return "failed to generate external_id"
		}
		entry.ExternalID = id
	}

	if entry.HTTPStatus != nil && (*entry.HTTPStatus < 100 || *entry.HTTPStatus > 599) {
		return "http_status must be in [100,599]"
	}
	if entry.ResponseTimeMs != nil && *entry.ResponseTimeMs < 0 {
		return "response_time_ms must be >= 0"
	}
	if entry.SAPMessageType != "" && !models.SAPMessageTypes[entry.SAPMessageType] {
		return fmt.Sprintf("invalid sap_message_type %q", entry.SAPMessageType)
	}
	if entry.SAPSeverity != nil && (*entry.SAPSeverity < 1 || *entry.SAPSeverity > 8) {
		return "sap_severity must be in [1,8]"
	}

	return ""
}

// generateExternalID mirrors spec §4.D's generation rule: source_type,
// timestamp-micros, and a random suffix, with negligible collision
// probability.
func generateExternalID(sourceType models.SourceType, ts time.Time) (string, error) {
	suffix := make([]byte, 6)
	if _, err := rand.Read(suffix); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%s", sourceType, ts.UnixMicro(), hex.EncodeToString(suffix)), nil
}

package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logintel/backend/internal/models"
)

func validEntry() models.LogEntry {
	return models.LogEntry{
		Timestamp:  time.Now(),
		Level:      models.LevelInfo,
		Message:    "request completed",
		SourceType: models.SourceApplication,
	}
}

func TestValidate_GeneratesExternalIDWhenAbsent(t *testing.T) {
	e := validEntry()
	require.Empty(t, e.ExternalID)

	detail := validate(&e)
	require.Empty(t, detail)
	assert.NotEmpty(t, e.ExternalID)
}

func TestValidate_PreservesProvidedExternalID(t *testing.T) {
	e := validEntry()
	e.ExternalID = "caller-supplied-id"

	detail := validate(&e)
	require.Empty(t, detail)
	assert.Equal(t, "caller-supplied-id", e.ExternalID)
}

func TestValidate_RejectsMissingTimestamp(t *testing.T) {
	e := validEntry()
	e.Timestamp = time.Time{}
	assert.NotEmpty(t, validate(&e))
}

func TestValidate_RejectsInvalidLevel(t *testing.T) {
	e := validEntry()
	e.Level = "CRITICAL"
	assert.NotEmpty(t, validate(&e))
}

func TestValidate_RejectsMissingMessage(t *testing.T) {
	e := validEntry()
	e.Message = ""
	assert.NotEmpty(t, validate(&e))
}

func TestValidate_RejectsInvalidSourceType(t *testing.T) {
	e := validEntry()
	e.SourceType = "mainframe"
	assert.NotEmpty(t, validate(&e))
}

func TestValidate_RejectsOutOfRangeHTTPStatus(t *testing.T) {
	e := validEntry()
	bad := 999
	e.HTTPStatus = &bad
	assert.NotEmpty(t, validate(&e))
}

func TestValidate_RejectsNegativeResponseTime(t *testing.T) {
	e := validEntry()
	negative := -1.0
	e.ResponseTimeMs = &negative
	assert.NotEmpty(t, validate(&e))
}

func TestValidate_RejectsInvalidSAPMessageType(t *testing.T) {
	e := validEntry()
	e.SAPMessageType = "Q"
	assert.NotEmpty(t, validate(&e))
}

func TestValidate_RejectsOutOfRangeSAPSeverity(t *testing.T) {
	e := validEntry()
	bad := 9
	e.SAPSeverity = &bad
	assert.NotEmpty(t, validate(&e))
}

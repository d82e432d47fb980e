package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/logintel/backend/internal/models"
)

func TestFeaturize_TokenizesMessage(t *testing.T) {
	entry := &models.LogEntry{Message: "Connection refused: timeout!"}
	fv := Featurize(entry)
	assert.Equal(t, []string{"connection", "refused", "timeout"}, fv.TextTokens)
}

func TestFeaturize_FallsBackOnMissingCategoricals(t *testing.T) {
	entry := &models.LogEntry{Message: "hi"}
	fv := Featurize(entry)
	assert.Equal(t, "unknown", fv.Service)
	assert.Equal(t, "unknown", fv.Endpoint)
	assert.Equal(t, "none", fv.HTTPStatusBucket)
	assert.Equal(t, "none", fv.ResponseTimeBucket)
}

func TestFeaturize_BucketsHTTPStatus(t *testing.T) {
	status := 503
	entry := &models.LogEntry{Message: "x", HTTPStatus: &status}
	fv := Featurize(entry)
	assert.Equal(t, "5xx", fv.HTTPStatusBucket)
}

func TestFeaturize_BucketsResponseTime(t *testing.T) {
	ms := 2500.0
	entry := &models.LogEntry{Message: "x", ResponseTimeMs: &ms}
	fv := Featurize(entry)
	assert.Equal(t, "very_slow", fv.ResponseTimeBucket)
}

package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSessionID_Unique(t *testing.T) {
	a, err := GenerateSessionID()
	require.NoError(t, err)
	b, err := GenerateSessionID()
	require.NoError(t, err)
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

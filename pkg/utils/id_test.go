package utils

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateID(t *testing.T) {
	a := GenerateID("job")
	b := GenerateID("job")

	assert.NotEqual(t, a, b)
	require.True(t, strings.HasPrefix(a, "job_"))

	_, err := uuid.Parse(strings.TrimPrefix(a, "job_"))
	assert.NoError(t, err)
}

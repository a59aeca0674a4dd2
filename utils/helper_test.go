package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	at, err := ParseTimestamp("2024-03-01T10:00:00+05:30")
	require.NoError(t, err)
	assert.True(t, at.Equal(time.Date(2024, 3, 1, 4, 30, 0, 0, time.UTC)))

	at, err = ParseTimestamp("2024-03-01 10:00:00")
	require.NoError(t, err)
	assert.True(t, at.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))

	at, err = ParseTimestamp("  ")
	require.NoError(t, err)
	assert.True(t, at.IsZero())

	_, err = ParseTimestamp("last tuesday")
	assert.Error(t, err)
}

func TestUniqueSlice_KeepsFirstSeenOrder(t *testing.T) {
	assert.Equal(t, []string{"b", "a", "c"}, UniqueSlice([]string{"b", "a", "b", "c", "a"}))
	assert.Empty(t, UniqueSlice([]string(nil)))
}

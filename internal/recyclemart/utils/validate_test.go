package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsWellFormedURL(t *testing.T) {
	assert.True(t, IsWellFormedURL("https://cdn.example.com/photos/a.jpg"))
	assert.True(t, IsWellFormedURL("http://localhost:9000/bucket/b.png"))
	assert.False(t, IsWellFormedURL("photos/a.jpg"))
	assert.False(t, IsWellFormedURL("ftp://example.com/a.jpg"))
	assert.False(t, IsWellFormedURL("https://"))
	assert.False(t, IsWellFormedURL(""))
}

func TestParseLimit(t *testing.T) {
	n, err := ParseLimit("", 50, 200)
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	n, err = ParseLimit("500", 50, 200)
	require.NoError(t, err)
	assert.Equal(t, 200, n)

	_, err = ParseLimit("-1", 50, 200)
	assert.Error(t, err)
	_, err = ParseLimit("ten", 50, 200)
	assert.Error(t, err)
}

func TestParseTimeRange(t *testing.T) {
	now := time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)

	from, to, err := ParseTimeRange("", "", now)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -30), from)
	assert.Equal(t, now, to)

	from, to, err = ParseTimeRange("2026-05-01", "2026-05-10", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC), to)

	_, _, err = ParseTimeRange("2026-05-10T00:00:00Z", "2026-05-01T00:00:00Z", now)
	assert.Error(t, err)

	_, _, err = ParseTimeRange("yesterday", "", now)
	assert.Error(t, err)
}

package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParsePublished_Absolute verifies common absolute layouts
func TestParsePublished_Absolute(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := map[string]time.Time{
		"2024-03-05T10:00:00Z":            time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
		"2024-03-05":                      time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		"2024.03.05 09:30":                time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC),
		"March 5, 2024":                   time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		"Tue, 05 Mar 2024 10:00:00 +0000": time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
	}
	for input, want := range cases {
		got, ok := ParsePublished(input, now)
		require.True(t, ok, "should parse %q", input)
		assert.True(t, want.Equal(got), "%q: want %v, got %v", input, want, got)
	}
}

// TestParsePublished_Relative verifies English and Korean relative times
func TestParsePublished_Relative(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		input string
		ago   time.Duration
	}{
		{"3시간 전", 3 * time.Hour},
		{"15분 전", 15 * time.Minute},
		{"2일 전", 48 * time.Hour},
		{"2 hours ago", 2 * time.Hour},
		{"1 hour ago", time.Hour},
		{"45 mins ago", 45 * time.Minute},
		{"Updated 3 days ago", 72 * time.Hour},
		{"방금 전", time.Minute},
		{"Just now", time.Minute},
	}
	for _, tc := range cases {
		got, ok := ParsePublished(tc.input, now)
		require.True(t, ok, "should parse %q", tc.input)
		assert.Equal(t, now.Add(-tc.ago), got, tc.input)
	}
}

// TestParsePublished_Unparseable verifies garbage is rejected
func TestParsePublished_Unparseable(t *testing.T) {
	_, ok := ParsePublished("sometime last spring", time.Now())
	assert.False(t, ok)

	_, ok = ParsePublished("", time.Now())
	assert.False(t, ok)
}
